package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"tweetdl/internal/core/domain"
	"tweetdl/internal/core/ports"
	"tweetdl/internal/logger"
)

// Options tunes an Orchestrator.
type Options struct {
	// StageTimeout bounds browser launch, page creation and navigation.
	// Zero leaves them unbounded.
	StageTimeout time.Duration
	// DownloadTimeout bounds the transcoder run. Zero leaves it unbounded.
	DownloadTimeout time.Duration
}

// Orchestrator coordinates the download workflow.
type Orchestrator struct {
	launcher   ports.BrowserLauncher
	resolver   *Resolver
	transcoder ports.Transcoder
	storage    ports.Storage
	progress   ports.ProgressReporter
	logger     logger.Logger
	opts       Options

	now func() time.Time
}

// NewOrchestrator creates a new Orchestrator. progress may be nil.
func NewOrchestrator(
	launcher ports.BrowserLauncher,
	resolver *Resolver,
	transcoder ports.Transcoder,
	storage ports.Storage,
	progress ports.ProgressReporter,
	log logger.Logger,
	opts Options,
) *Orchestrator {
	if progress == nil {
		progress = ports.ProgressReporterFunc(func(domain.StageEvent) {})
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Orchestrator{
		launcher:   launcher,
		resolver:   resolver,
		transcoder: transcoder,
		storage:    storage,
		progress:   progress,
		logger:     log,
		opts:       opts,
		now:        time.Now,
	}
}

// run carries the per-invocation state handed from stage to stage.
type run struct {
	o      *Orchestrator
	result *domain.Result
}

// Run downloads the video of the post at rawURL. The returned result is
// never nil; the error is a *domain.StageError on failure.
func (o *Orchestrator) Run(ctx context.Context, rawURL string) (*domain.Result, error) {
	r := &run{
		o: o,
		result: &domain.Result{
			RunID:     uuid.New().String(),
			StartedAt: o.now().UTC(),
		},
	}

	r.enter(domain.StageParsing)
	target, err := domain.ParseTarget(rawURL)
	if err != nil {
		msg := "Missing Tweet ID"
		if errors.Is(err, domain.ErrMissingURL) {
			msg = "Missing Tweet URL"
		}
		return r.fail(domain.StageParsing, msg, err)
	}
	r.result.Target = target
	o.logger.Infof("[RUN %s] Starting download for %s (id %s)", r.id(), target.PageURL, target.ID)

	playbackURL, err := r.findPlaybackURL(ctx, target)
	if err != nil {
		return r.result, err
	}
	r.result.PlaybackURL = playbackURL

	return r.download(ctx, target, playbackURL)
}

// findPlaybackURL runs the browser stages. The browser is closed on every
// path once it has been launched.
func (r *run) findPlaybackURL(ctx context.Context, target domain.Target) (string, error) {
	o := r.o

	r.enter(domain.StageLaunching)
	launchCtx, cancel := o.stageContext(ctx)
	browser, err := o.launcher.Launch(launchCtx)
	cancel()
	if err != nil {
		_, err = r.fail(domain.StageLaunching, "", err)
		return "", err
	}
	var closeOnce sync.Once
	closeBrowser := func() { closeOnce.Do(func() { r.closeBrowser(browser) }) }
	defer closeBrowser()

	r.enter(domain.StageCreatingPage)
	pageCtx, cancel := o.stageContext(ctx)
	page, err := browser.NewPage(pageCtx)
	cancel()
	if err != nil {
		_, err = r.fail(domain.StageCreatingPage, "", err)
		return "", err
	}

	// Listen before navigating so a response fired during page load counts.
	resolution := o.resolver.Watch(page, target.ID)
	defer resolution.Stop()

	r.enter(domain.StageNavigating)
	navCtx, cancel := o.stageContext(ctx)
	err = page.Navigate(navCtx, target.PageURL)
	cancel()
	if err != nil {
		_, err = r.fail(domain.StageNavigating, "", err)
		return "", err
	}

	r.enter(domain.StageResolvingURL)
	playbackURL, err := resolution.Await(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrResolveTimeout) {
			o.logger.Warnf("[RUN %s] No video config response within %s", r.id(), o.resolver.Timeout())
		} else {
			o.logger.Warnf("[RUN %s] Video config unusable: %v", r.id(), err)
		}
		_, err = r.fail(domain.StageResolvingURL, "", err)
		return "", err
	}
	o.logger.Infof("[RUN %s] Resolved playback URL", r.id())
	o.logger.Debugf("[RUN %s] Playback URL: %s", r.id(), playbackURL)

	closeBrowser()
	return playbackURL, nil
}

func (r *run) download(ctx context.Context, target domain.Target, playbackURL string) (*domain.Result, error) {
	o := r.o

	r.enter(domain.StageDownloading)
	outputPath, err := o.storage.OutputPath(ctx, target.ID)
	if err != nil {
		return r.fail(domain.StageDownloading, "", err)
	}
	r.result.OutputPath = outputPath
	o.logger.Infof("[RUN %s] Downloading video stream to %s", r.id(), outputPath)

	dlCtx, cancel := ctx, context.CancelFunc(func() {})
	if o.opts.DownloadTimeout > 0 {
		dlCtx, cancel = context.WithTimeout(ctx, o.opts.DownloadTimeout)
	}
	err = o.transcoder.Transcode(dlCtx, playbackURL, outputPath, func(pos time.Duration) {
		o.progress.Report(domain.StageEvent{
			RunID:    r.id(),
			Stage:    domain.StageDownloading,
			Label:    domain.StageDownloading.Label(),
			Position: pos,
			At:       o.now(),
		})
	})
	cancel()
	if err != nil {
		o.logger.Errorf("[RUN %s] Transcoder failed: %v", r.id(), err)
		r.enter(domain.StageCleaning)
		// Cleanup still runs when ctx was cancelled.
		o.storage.DeleteIfExists(context.WithoutCancel(ctx), outputPath)
		return r.fail(domain.StageDownloading, "", err)
	}

	r.result.Success = true
	r.result.CompletedAt = o.now().UTC()
	o.logger.Infof("[RUN %s] Saved %s", r.id(), outputPath)
	o.progress.Report(domain.StageEvent{
		RunID:      r.id(),
		Stage:      domain.StageSucceeded,
		OutputPath: outputPath,
		At:         o.now(),
	})
	return r.result, nil
}

func (r *run) id() string { return r.result.RunID }

func (r *run) enter(stage domain.Stage) {
	r.o.logger.Debugf("[RUN %s] %s", r.id(), stage.Label())
	r.o.progress.Report(domain.StageEvent{
		RunID: r.id(),
		Stage: stage,
		Label: stage.Label(),
		At:    r.o.now(),
	})
}

// fail records the terminal failure. An empty msg selects the stage's
// default message.
func (r *run) fail(stage domain.Stage, msg string, cause error) (*domain.Result, error) {
	if msg == "" {
		msg = stage.FailureMessage()
	}
	r.result.Success = false
	r.result.FailedStage = stage
	r.result.ErrorMessage = msg
	r.result.CompletedAt = r.o.now().UTC()

	r.o.logger.Errorf("[RUN %s] ERROR: %s: %v", r.id(), msg, cause)
	r.o.progress.Report(domain.StageEvent{
		RunID:   r.id(),
		Stage:   domain.StageFailed,
		Message: msg,
		Err:     cause,
		At:      r.o.now(),
	})
	return r.result, &domain.StageError{Stage: stage, Message: msg, Err: cause}
}

func (r *run) closeBrowser(browser ports.Browser) {
	if err := browser.Close(); err != nil {
		r.o.logger.Warnf("[RUN %s] Failed to close browser: %v", r.id(), err)
	}
}

func (o *Orchestrator) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.opts.StageTimeout > 0 {
		return context.WithTimeout(ctx, o.opts.StageTimeout)
	}
	return context.WithCancel(ctx)
}
