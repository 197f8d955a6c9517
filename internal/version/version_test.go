package version

import "testing"

func TestParseMajor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		version string
		want    string
	}{
		{
			name:    "plain semver",
			version: "1.4.2",
			want:    "1",
		},
		{
			name:    "v prefix",
			version: "v2.0.0",
			want:    "2",
		},
		{
			name:    "pre-release",
			version: "v3.1.0-rc.1",
			want:    "3",
		},
		{
			name:    "unparseable",
			version: "devel",
			want:    "0",
		},
		{
			name:    "empty",
			version: "",
			want:    "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ParseMajor(tt.version); got != tt.want {
				t.Errorf("ParseMajor(%q) = %q, want %q", tt.version, got, tt.want)
			}
		})
	}
}

func TestIsDevelopment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		version string
		want    bool
	}{
		{
			name:    "devel",
			version: "devel",
			want:    true,
		},
		{
			name:    "unknown",
			version: "unknown",
			want:    true,
		},
		{
			name:    "empty",
			version: "",
			want:    true,
		},
		{
			name:    "dirty build",
			version: "v1.2.0+dirty",
			want:    true,
		},
		{
			name:    "pseudo version",
			version: "v0.0.0-0.20250101000000-abcdef123456",
			want:    true,
		},
		{
			name:    "release",
			version: "v1.2.0",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsDevelopment(tt.version); got != tt.want {
				t.Errorf("IsDevelopment(%q) = %v, want %v", tt.version, got, tt.want)
			}
		})
	}
}

func TestCheckCompatibilityDevelopmentServer(t *testing.T) {
	t.Parallel()

	// test binaries report a development version, which accepts every client
	if err := CheckCompatibility("v9.0.0"); err != nil {
		t.Errorf("CheckCompatibility() = %v, want nil", err)
	}
}
