package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"tweetdl/internal/config"
)

// Options holds all command-line options.
type Options struct {
	// Input: the last positional token.
	URL string

	// Output
	Out       string // -out
	Downloads bool   // -downloads
	Desktop   bool   // -desktop (default)

	// Timing
	ResolveTimeout time.Duration // -timeout
	StageTimeout   time.Duration // -stage-timeout

	// Verbosity
	Verbose bool
	Version bool
}

// ErrUsage wraps flag errors that should print usage and exit 2.
var ErrUsage = errors.New("usage error")

// Parse parses args (without the program name). Zero durations mean "use
// the configured value".
func Parse(args []string, stderr io.Writer) (Options, error) {
	var opts Options
	fs := flag.NewFlagSet("tweetdl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.Out, "out", "", "Output file (default <desktop>/<tweet-id>.mp4)")
	fs.BoolVar(&opts.Desktop, "desktop", false, "Save into ~/Desktop (default)")
	fs.BoolVar(&opts.Downloads, "downloads", false, "Save into ~/Downloads")
	fs.DurationVar(&opts.ResolveTimeout, "timeout", 0, fmt.Sprintf("How long to wait for the video URL (default %s)", config.DefaultResolveTimeout))
	fs.DurationVar(&opts.StageTimeout, "stage-timeout", 0, fmt.Sprintf("Bound for browser launch, page creation and navigation (default %s)", config.DefaultStageTimeout))
	fs.BoolVar(&opts.Verbose, "verbose", false, "Log every step to stderr")
	fs.BoolVar(&opts.Version, "version", false, "Print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: tweetdl [OPTIONS] TWEET_URL\n\n")
		fmt.Fprintln(stderr, "Example:")
		fmt.Fprintln(stderr, "  tweetdl https://twitter.com/user/status/1234567890")
		fmt.Fprintln(stderr, "\nOptions:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return opts, err
		}
		return opts, fmt.Errorf("%w: %v", ErrUsage, err)
	}

	if opts.Desktop && opts.Downloads {
		return opts, fmt.Errorf("%w: -desktop and -downloads are mutually exclusive", ErrUsage)
	}
	if opts.ResolveTimeout < 0 || opts.StageTimeout < 0 {
		return opts, fmt.Errorf("%w: timeouts must not be negative", ErrUsage)
	}

	if rest := fs.Args(); len(rest) > 0 {
		opts.URL = rest[len(rest)-1]
	}
	return opts, nil
}

// Apply overlays the options on cfg.
func (o Options) Apply(cfg *config.Config) error {
	switch {
	case o.Downloads:
		dir, err := config.HomeDir(config.DownloadsDirName)
		if err != nil {
			return err
		}
		cfg.Download.OutputDir = dir
	case o.Desktop:
		dir, err := config.HomeDir(config.DesktopDirName)
		if err != nil {
			return err
		}
		cfg.Download.OutputDir = dir
	}
	if o.ResolveTimeout > 0 {
		cfg.Resolve.Timeout = o.ResolveTimeout
	}
	if o.StageTimeout > 0 {
		cfg.StageTimeout = o.StageTimeout
	}
	if o.Verbose {
		cfg.LogLevel = "debug"
	}
	return nil
}
