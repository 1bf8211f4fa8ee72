// Package main is the entry point for textconsole.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dshills/textconsole/internal/app"
	"github.com/dshills/textconsole/internal/config"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	application, err := app.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}
	defer application.Close()

	// Handle signals for graceful shutdown
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	go func() {
		<-signals
		application.Shutdown()
	}()

	if err := application.Run(context.Background()); err != nil {
		if errors.Is(err, app.ErrQuit) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	return 0
}

func parseFlags() app.Options {
	opts := app.DefaultOptions()
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.ConfigPath, "config", config.DefaultPath, "Path to settings file")
	flag.StringVar(&opts.ConfigPath, "c", config.DefaultPath, "Path to settings file (shorthand)")
	flag.BoolVar(&opts.Debug, "debug", false, "Echo completed lines to the log")
	flag.BoolVar(&opts.Debug, "d", false, "Echo completed lines to the log (shorthand)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&opts.LogFile, "log-file", "", "Write the log to this file")
	flag.StringVar(&opts.PNGPath, "png", "", "Render one frame to this PNG file instead of the terminal")
	flag.StringVar(&opts.Size, "size", opts.Size, "Surface size for -png as WxH")
	flag.StringVar(&opts.Exec, "exec", "", "Stream the output of a shell command")
	flag.IntVar(&opts.Writers, "writers", -1, "Number of demo writers (-1 uses the settings file)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "textconsole - scrolling text console\n\n")
		fmt.Fprintf(os.Stderr, "Usage: textconsole [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nKeys: q/Esc/Ctrl-C quit, c/Ctrl-L clear, r rotate, d toggle debug output\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  textconsole                         Run the demo writers in the terminal\n")
		fmt.Fprintf(os.Stderr, "  textconsole -exec 'ping -c 5 ::1'   Stream a command\n")
		fmt.Fprintf(os.Stderr, "  textconsole -png out.png -size 320x240\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("textconsole %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	// Validate log level
	switch strings.ToLower(opts.LogLevel) {
	case "", "debug", "info", "warn", "error":
		// Valid
	default:
		fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
		os.Exit(1)
	}

	if flag.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "Error: unexpected arguments: %s\n", strings.Join(flag.Args(), " "))
		os.Exit(1)
	}

	return opts
}
