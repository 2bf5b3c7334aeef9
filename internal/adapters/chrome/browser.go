package chrome

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"tweetdl/internal/core/domain"
	"tweetdl/internal/core/ports"
	"tweetdl/internal/logger"
)

// Options configures the Chrome process.
type Options struct {
	ExecPath  string // empty means chromedp's discovery
	Headless  bool
	UserAgent string
	// NoSandbox disables Chrome's sandbox, required when running as root
	// in most containers.
	NoSandbox bool
}

// Launcher implements ports.BrowserLauncher with chromedp.
type Launcher struct {
	opts   Options
	logger logger.Logger
}

// NewLauncher creates a new Launcher.
func NewLauncher(opts Options, log logger.Logger) *Launcher {
	if log == nil {
		log = logger.Nop()
	}
	return &Launcher{opts: opts, logger: log}
}

func (l *Launcher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.Flag("headless", l.opts.Headless))
	if l.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.opts.ExecPath))
	}
	if l.opts.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if l.opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.opts.UserAgent))
	}
	return opts
}

// Launch starts Chrome. ctx bounds the startup; the browser outlives it and
// is stopped by Close. Cancellation of ctx's parent chain is not inherited.
func (l *Launcher) Launch(ctx context.Context) (ports.Browser, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), l.allocatorOptions()...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	b := &Browser{
		ctx:    browserCtx,
		logger: l.logger,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
	}

	if err := runBounded(ctx, b.cancel, func() error { return chromedp.Run(browserCtx) }); err != nil {
		b.cancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}
	l.logger.Debugf("Chrome started")
	return b, nil
}

// Browser is a running Chrome instance.
type Browser struct {
	ctx    context.Context
	cancel func()
	logger logger.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewPage opens a new tab with network events enabled.
func (b *Browser) NewPage(ctx context.Context) (ports.Page, error) {
	tabCtx, cancelTab := chromedp.NewContext(b.ctx)
	p := &Page{
		ctx:      tabCtx,
		cancel:   cancelTab,
		handlers: make(map[int]func(domain.Response)),
		logger:   b.logger,
	}
	p.tracker = newTracker(p.bodyReader)
	chromedp.ListenTarget(tabCtx, p.onEvent)

	if err := runBounded(ctx, cancelTab, func() error { return chromedp.Run(tabCtx, network.Enable()) }); err != nil {
		cancelTab()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	return p, nil
}

// Close shuts Chrome down gracefully and releases the allocator.
func (b *Browser) Close() error {
	b.closeOnce.Do(func() {
		if err := chromedp.Cancel(b.ctx); err != nil && !errors.Is(err, context.Canceled) {
			b.closeErr = fmt.Errorf("failed to close chrome: %w", err)
		}
		b.cancel()
		b.logger.Debugf("Chrome closed")
	})
	return b.closeErr
}

// Page is a Chrome tab.
type Page struct {
	ctx     context.Context
	cancel  context.CancelFunc
	tracker *tracker
	logger  logger.Logger

	mu       sync.Mutex
	handlers map[int]func(domain.Response)
	nextID   int
}

// OnResponse registers fn for every completed response of the tab.
func (p *Page) OnResponse(fn func(domain.Response)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextID
	p.nextID++
	p.handlers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.handlers, id)
			p.mu.Unlock()
		})
	}
}

// Navigate loads url and waits for the load event. A navigation cut short
// by ctx closes the tab.
func (p *Page) Navigate(ctx context.Context, url string) error {
	err := runBounded(ctx, p.cancel, func() error { return chromedp.Run(p.ctx, chromedp.Navigate(url)) })
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// onEvent runs on chromedp's event loop; handlers get their own goroutine
// because reading a body issues a DevTools command.
func (p *Page) onEvent(ev interface{}) {
	resp, ok := p.tracker.handle(ev)
	if !ok {
		return
	}

	p.mu.Lock()
	handlers := make([]func(domain.Response), 0, len(p.handlers))
	for _, h := range p.handlers {
		handlers = append(handlers, h)
	}
	p.mu.Unlock()

	for _, h := range handlers {
		go h(resp)
	}
}

func (p *Page) bodyReader(id network.RequestID) func() ([]byte, error) {
	return func() ([]byte, error) {
		var body []byte
		err := chromedp.Run(p.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			body, err = network.GetResponseBody(id).Do(ctx)
			return err
		}))
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		return body, nil
	}
}

// runBounded runs fn and calls abort if ctx ends first. chromedp contexts
// carry the lifetime of the browser or tab, so a stage deadline cannot be
// attached to them directly.
func runBounded(ctx context.Context, abort func(), fn func() error) error {
	stop := context.AfterFunc(ctx, abort)
	err := fn()
	if !stop() {
		// ctx ended and abort already ran.
		if cause := context.Cause(ctx); cause != nil {
			return cause
		}
	}
	return err
}
