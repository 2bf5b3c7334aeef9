package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"tweetdl/internal/core/domain"
	"tweetdl/internal/core/ports"
)

// fakePage lets tests push responses to registered listeners.
type fakePage struct {
	mu        sync.Mutex
	handlers  map[int]func(domain.Response)
	nextID    int
	navErr    error
	onNav     func(p *fakePage)
	navigated []string
}

func newFakePage() *fakePage {
	return &fakePage{handlers: make(map[int]func(domain.Response))}
}

func (p *fakePage) OnResponse(fn func(domain.Response)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.handlers[id] = fn
	return func() {
		p.mu.Lock()
		delete(p.handlers, id)
		p.mu.Unlock()
	}
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	p.navigated = append(p.navigated, url)
	p.mu.Unlock()
	if p.navErr != nil {
		return p.navErr
	}
	if p.onNav != nil {
		p.onNav(p)
	}
	return nil
}

func (p *fakePage) emit(resp domain.Response) {
	p.mu.Lock()
	hs := make([]func(domain.Response), 0, len(p.handlers))
	for _, h := range p.handlers {
		hs = append(hs, h)
	}
	p.mu.Unlock()
	for _, h := range hs {
		h(resp)
	}
}

func (p *fakePage) listeners() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handlers)
}

type fakeBrowser struct {
	page    *fakePage
	pageErr error
	closes  atomic.Int32
}

func (b *fakeBrowser) NewPage(ctx context.Context) (ports.Page, error) {
	if b.pageErr != nil {
		return nil, b.pageErr
	}
	return b.page, nil
}

func (b *fakeBrowser) Close() error {
	b.closes.Add(1)
	return nil
}

type fakeLauncher struct {
	browser   *fakeBrowser
	err       error
	launches  atomic.Int32
	launchCtx context.Context
}

func (l *fakeLauncher) Launch(ctx context.Context) (ports.Browser, error) {
	l.launches.Add(1)
	l.launchCtx = ctx
	if l.err != nil {
		return nil, l.err
	}
	return l.browser, nil
}

// fakeTranscoder writes a file on success, like ffmpeg would.
type fakeTranscoder struct {
	mu      sync.Mutex
	calls   []transcodeCall
	err     error
	partial bool
}

type transcodeCall struct {
	source, dest string
}

func (t *fakeTranscoder) Transcode(ctx context.Context, sourceURL, destPath string, progress ports.ProgressFunc) error {
	t.mu.Lock()
	t.calls = append(t.calls, transcodeCall{sourceURL, destPath})
	t.mu.Unlock()

	if progress != nil {
		progress(1500 * time.Millisecond)
	}
	if t.err != nil {
		if t.partial {
			_ = os.WriteFile(destPath, []byte("partial"), 0644)
		}
		return t.err
	}
	return os.WriteFile(destPath, []byte("video"), 0644)
}

func (t *fakeTranscoder) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}

// recordingStorage wraps a real directory and records cleanups.
type recordingStorage struct {
	dir      string
	mu       sync.Mutex
	cleanups []string
}

func (s *recordingStorage) OutputPath(ctx context.Context, targetID string) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, targetID+".mp4"), nil
}

func (s *recordingStorage) DeleteIfExists(ctx context.Context, path string) {
	s.mu.Lock()
	s.cleanups = append(s.cleanups, path)
	s.mu.Unlock()
	_ = os.Remove(path)
}

type recordingProgress struct {
	mu     sync.Mutex
	events []domain.StageEvent
}

func (p *recordingProgress) Report(ev domain.StageEvent) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}

func (p *recordingProgress) stages() []domain.Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Stage
	for _, ev := range p.events {
		if ev.Position != 0 {
			continue
		}
		out = append(out, ev.Stage)
	}
	return out
}

func (p *recordingProgress) last() domain.StageEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

func jsonResponse(method string, status int, url, body string) domain.Response {
	return domain.Response{
		Method: method,
		Status: status,
		URL:    url,
		Body:   func() ([]byte, error) { return []byte(body), nil },
	}
}

var errBoom = errors.New("boom")
