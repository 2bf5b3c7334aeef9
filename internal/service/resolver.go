package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"tweetdl/internal/config"
	"tweetdl/internal/core/domain"
	"tweetdl/internal/core/ports"
	"tweetdl/internal/logger"
)

// Resolver turns a page's response stream into a single playback URL.
type Resolver struct {
	matcher Matcher
	timeout time.Duration
	logger  logger.Logger
}

// NewResolver creates a Resolver. A non-positive timeout selects
// config.DefaultResolveTimeout.
func NewResolver(matcher Matcher, timeout time.Duration, log logger.Logger) *Resolver {
	if timeout <= 0 {
		timeout = config.DefaultResolveTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{matcher: matcher, timeout: timeout, logger: log}
}

// Timeout returns the window Await waits for a match.
func (r *Resolver) Timeout() time.Duration { return r.timeout }

// Watch starts listening on page for the video configuration of targetID.
// Responses seen before Await is called are not lost.
func (r *Resolver) Watch(page ports.Page, targetID string) *Resolution {
	res := &Resolution{
		targetID: targetID,
		matcher:  r.matcher,
		timeout:  r.timeout,
		logger:   r.logger,
		done:     make(chan struct{}),
	}
	res.remove = page.OnResponse(res.observe)
	return res
}

// Resolution is a pending playback URL. It settles exactly once: with the
// first matching response, a payload error, a timeout or cancellation.
type Resolution struct {
	targetID string
	matcher  Matcher
	timeout  time.Duration
	logger   logger.Logger
	remove   func()

	once sync.Once
	done chan struct{}
	url  string
	err  error
}

type videoConfig struct {
	Track *struct {
		PlaybackURL *string `json:"playbackUrl"`
	} `json:"track"`
}

func (r *Resolution) observe(resp domain.Response) {
	if r.settled() || !r.matcher.Match(resp, r.targetID) {
		return
	}
	r.logger.Debugf("Matched video config response %s", resp.URL)

	url, err := decodePlaybackURL(resp)
	if !r.settle(url, err) {
		r.logger.Debugf("Ignoring late video config response %s", resp.URL)
	}
}

func decodePlaybackURL(resp domain.Response) (string, error) {
	if resp.Body == nil {
		return "", &domain.PayloadError{URL: resp.URL, Err: errors.New("response body unavailable")}
	}
	body, err := resp.Body()
	if err != nil {
		return "", &domain.PayloadError{URL: resp.URL, Err: err}
	}

	var cfg videoConfig
	if err := json.Unmarshal(body, &cfg); err != nil {
		return "", &domain.PayloadError{URL: resp.URL, Err: err}
	}
	if cfg.Track == nil || cfg.Track.PlaybackURL == nil || *cfg.Track.PlaybackURL == "" {
		return "", &domain.PayloadError{URL: resp.URL, Err: errors.New("track.playbackUrl missing")}
	}
	return *cfg.Track.PlaybackURL, nil
}

func (r *Resolution) settle(url string, err error) bool {
	settled := false
	r.once.Do(func() {
		r.url, r.err = url, err
		close(r.done)
		settled = true
	})
	return settled
}

func (r *Resolution) settled() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Done is closed once the resolution has settled.
func (r *Resolution) Done() <-chan struct{} { return r.done }

// Await waits up to the resolver timeout for the playback URL. The listener
// is removed before Await returns.
func (r *Resolution) Await(ctx context.Context) (string, error) {
	defer r.Stop()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case <-r.done:
	case <-timer.C:
		r.settle("", domain.ErrResolveTimeout)
	case <-ctx.Done():
		r.settle("", ctx.Err())
	}

	// Whichever trigger settled first owns the outcome.
	<-r.done
	return r.url, r.err
}

// Stop removes the listener. Later responses are ignored.
func (r *Resolution) Stop() {
	if r.remove != nil {
		r.remove()
	}
}
