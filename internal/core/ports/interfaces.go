package ports

import (
	"context"
	"time"

	"tweetdl/internal/core/domain"
)

// BrowserLauncher starts a browser instance.
type BrowserLauncher interface {
	// Launch starts the browser. ctx bounds the startup only; the browser
	// lives until Close is called.
	Launch(ctx context.Context) (Browser, error)
}

// Browser is a running browser instance.
type Browser interface {
	// NewPage opens a new tab. ctx bounds the creation only.
	NewPage(ctx context.Context) (Page, error)

	// Close shuts the browser down. Safe to call more than once.
	Close() error
}

// Page is a single browser tab.
type Page interface {
	// OnResponse registers fn for every response observed on the page.
	// fn may be called concurrently. The returned func removes it.
	OnResponse(fn func(domain.Response)) (remove func())

	// Navigate loads url and waits for the page load to finish.
	Navigate(ctx context.Context, url string) error
}

// ProgressFunc receives the media position written so far by a transcoder.
type ProgressFunc func(position time.Duration)

// Transcoder saves a remote media stream into a local file.
type Transcoder interface {
	// Transcode reads sourceURL and writes destPath. progress may be nil.
	Transcode(ctx context.Context, sourceURL, destPath string, progress ProgressFunc) error
}

// Storage decides where output goes and removes leftovers.
type Storage interface {
	// OutputPath returns the absolute destination for a target, creating
	// its parent directory.
	OutputPath(ctx context.Context, targetID string) (string, error)

	// DeleteIfExists removes path, ignoring every error.
	DeleteIfExists(ctx context.Context, path string)
}

// ProgressReporter consumes the stage transitions of a run.
type ProgressReporter interface {
	Report(event domain.StageEvent)
}

// ProgressReporterFunc adapts a function to ProgressReporter.
type ProgressReporterFunc func(event domain.StageEvent)

// Report calls f(event).
func (f ProgressReporterFunc) Report(event domain.StageEvent) { f(event) }
