package utils

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/common-nighthawk/go-figure"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogSettings configures the rotating log file. An empty File keeps logs on stderr only.
type LogSettings struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// SetupLogging points the standard logger at stderr and, when configured, a
// rotating file. The returned closer releases the file.
func SetupLogging(settings LogSettings) io.Closer {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	if settings.File == "" {
		log.SetOutput(os.Stderr)
		return io.NopCloser(nil)
	}

	rotator := &lumberjack.Logger{
		Filename:   settings.File,
		MaxSize:    settings.MaxSizeMB,
		MaxBackups: settings.MaxBackups,
		MaxAge:     settings.MaxAgeDays,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	log.Printf("INFO: [Logging] Writing logs to %s (max %d MB, %d backups).", settings.File, settings.MaxSizeMB, settings.MaxBackups)
	return rotator
}

// PrintBanner writes the startup banner to w.
func PrintBanner(w io.Writer, name, version string) {
	fmt.Fprintln(w, figure.NewFigure(name, "", true).String())
	fmt.Fprintln(w, "======================================================")
	fmt.Fprintf(w, "%s API (v%s)\n\n", name, version)
}
