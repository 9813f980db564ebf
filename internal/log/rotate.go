package log

import (
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation defaults used when a RotationOptions field is zero.
const (
	DefaultMaxSizeMB  = 50
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 28
)

// RotationOptions controls log file rotation.
type RotationOptions struct {
	// MaxSizeMB is the size at which the file is rotated.
	MaxSizeMB int

	// MaxBackups is the number of rotated files kept.
	MaxBackups int

	// MaxAgeDays is how long rotated files are kept.
	MaxAgeDays int

	// Compress gzips rotated files.
	Compress bool
}

// NewRotatingWriter returns a writer appending to path that rotates the file
// once it grows past opts.MaxSizeMB. The caller must Close it.
func NewRotatingWriter(path string, opts RotationOptions) *lumberjack.Logger {
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = DefaultMaxSizeMB
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = DefaultMaxBackups
	}
	if opts.MaxAgeDays <= 0 {
		opts.MaxAgeDays = DefaultMaxAgeDays
	}

	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
}
