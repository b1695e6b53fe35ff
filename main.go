// Package main provides the entry point for the EM/MPM segmentation viewer.
package main

import (
	"flag"
	"fmt"
	"os"

	"emmpm-viewer/internal/app"
	"emmpm-viewer/internal/config"
	"emmpm-viewer/internal/logging"
	"emmpm-viewer/internal/version"
	"emmpm-viewer/ui/mainwindow"
	"emmpm-viewer/ui/prefs"

	fyneapp "fyne.io/fyne/v2/app"
)

const appID = "io.github.emmpm-viewer"

func main() {
	configPath := flag.String("config", "", "Path to JSON config file")
	basePath := flag.String("base", "", "Base image to open")
	overlayPath := flag.String("overlay", "", "Overlay (segmentation) image to open")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("emmpm-viewer", version.String())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	logger, err := logging.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log level: %v\n", err)
		os.Exit(1)
	}
	logger.Info("starting", "version", version.String())

	a := fyneapp.NewWithID(appID)
	a.Settings().SetTheme(&app.ViewerTheme{})

	session := app.NewSession(logger.With("component", "session"))
	win, err := mainwindow.New(a, session, cfg, prefs.Load(), logger)
	if err != nil {
		logger.Error("create window", "error", err)
		os.Exit(1)
	}

	if *basePath == "" && *overlayPath == "" {
		win.RestoreLast()
	}
	if *basePath != "" {
		win.OpenBase(*basePath)
	}
	if *overlayPath != "" {
		win.OpenOverlay(*overlayPath)
	}

	win.ShowAndRun()
}
