//go:build !release

package footer

import (
	"charm.land/lipgloss/v2"

	"github.com/garrettladley/notisync/internal/tui/theme"
	"github.com/garrettladley/notisync/internal/version"
)

var devLabelStyle = lipgloss.NewStyle().Foreground(theme.ColorWarning)

// leftContent flags non-release builds so screenshots are not mistaken for a
// published version.
func (f Footer) leftContent() string {
	return devLabelStyle.Render("dev " + version.Get())
}
