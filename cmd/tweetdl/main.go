package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"tweetdl/internal/adapters/chrome"
	"tweetdl/internal/adapters/ffmpeg"
	"tweetdl/internal/adapters/localstorage"
	"tweetdl/internal/adapters/terminal"
	"tweetdl/internal/cli"
	"tweetdl/internal/config"
	"tweetdl/internal/logger"
	"tweetdl/internal/service"
)

// Version is set during build via -ldflags "-X main.version=X.Y.Z"
var version = "dev"

func main() {
	// Setup context with cancellation
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout))
}

func run(ctx context.Context, args []string, stdout *os.File) int {
	// A missing .env is fine; variables might be set manually
	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	opts, err := cli.Parse(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if opts.Version {
		fmt.Fprintf(stdout, "tweetdl %s\n", version)
		return 0
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}
	if err := opts.Apply(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	log := logger.NewLogger(cfg.LogLevel)
	log.Debugf("tweetdl %s, output dir %s", version, cfg.Download.OutputDir)

	// Initialize adapters
	launcher := chrome.NewLauncher(chrome.Options{
		ExecPath:  cfg.Browser.ExecPath,
		Headless:  cfg.Browser.Headless,
		UserAgent: cfg.Browser.UserAgent,
		NoSandbox: cfg.Browser.NoSandbox,
	}, log)
	transcoder := ffmpeg.NewTranscoder(cfg.Download.FFmpegPath, log)
	storage := localstorage.NewLocalStorage(cfg.Download.OutputDir, log)
	if opts.Out != "" {
		out, err := filepath.Abs(opts.Out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid output path: %v\n", err)
			return 2
		}
		storage = storage.WithFile(out)
	}
	resolver := service.NewResolver(service.NewMatcher(cfg.Resolve.Endpoint), cfg.Resolve.Timeout, log)

	orchestrator := service.NewOrchestrator(
		launcher,
		resolver,
		transcoder,
		storage,
		terminal.New(stdout),
		log,
		service.Options{
			StageTimeout:    cfg.StageTimeout,
			DownloadTimeout: cfg.Download.Timeout,
		},
	)

	if _, err := orchestrator.Run(ctx, opts.URL); err != nil {
		return 1
	}
	return 0
}
