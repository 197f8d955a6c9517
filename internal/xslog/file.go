package xslog

import (
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// NewFileLogger returns a JSON logger writing to a rotated file, along with
// the closer for that file.
func NewFileLogger(cfg FileConfig, level Level) (*slog.Logger, io.Closer) {
	w := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cmpOr(cfg.MaxSizeMB, 25),
		MaxBackups: cmpOr(cfg.MaxBackups, 10),
		MaxAge:     cmpOr(cfg.MaxAgeDays, 14),
		Compress:   true,
	}
	return NewLogger(w, level), w
}

func cmpOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
