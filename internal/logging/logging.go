package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"treesweep/internal/config"
)

// New creates a stdout-only logger
func New() *log.Logger {
	return log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds)
}

// NewWithConfig creates a logger that mirrors output to the configured
// log file when one is set. File problems fall back to stdout-only
// logging; a sweep must never fail because its log could not be opened.
func NewWithConfig(cfg *config.Config) *log.Logger {
	if cfg == nil || cfg.Logging.File == "" {
		return New()
	}

	filePath := cfg.Logging.File
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		log.Printf("failed to ensure log directory for %s: %v", filePath, err)
		return New()
	}

	rotateIfNeeded(filePath, cfg.Logging.RotateMaxMB)

	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("failed to open log file %s: %v", filePath, err)
		return New()
	}

	mw := io.MultiWriter(os.Stdout, f)
	return log.New(mw, "", log.LstdFlags|log.Lmicroseconds)
}

// rotateIfNeeded renames the log file aside once it exceeds maxMB,
// keeping one previous generation
func rotateIfNeeded(logPath string, maxMB int) {
	if maxMB <= 0 {
		return
	}

	info, err := os.Stat(logPath)
	if err != nil {
		// Log file doesn't exist yet, nothing to rotate
		return
	}

	if info.Size() < int64(maxMB)*1024*1024 {
		return
	}

	if err := os.Rename(logPath, logPath+".old"); err != nil {
		log.Printf("failed to rotate log file: %v", err)
	}
}
