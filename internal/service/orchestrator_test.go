package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tweetdl/internal/core/domain"
	"tweetdl/internal/logger"
)

const tweetURL = "https://twitter.com/user/status/12345"

type harness struct {
	page       *fakePage
	browser    *fakeBrowser
	launcher   *fakeLauncher
	transcoder *fakeTranscoder
	storage    *recordingStorage
	progress   *recordingProgress
	orch       *Orchestrator
}

func newHarness(t *testing.T, resolveTimeout time.Duration) *harness {
	t.Helper()
	h := &harness{
		page:       newFakePage(),
		transcoder: &fakeTranscoder{},
		storage:    &recordingStorage{dir: filepath.Join(t.TempDir(), "Desktop")},
		progress:   &recordingProgress{},
	}
	h.browser = &fakeBrowser{page: h.page}
	h.launcher = &fakeLauncher{browser: h.browser}
	h.orch = NewOrchestrator(
		h.launcher,
		newTestResolver(resolveTimeout),
		h.transcoder,
		h.storage,
		h.progress,
		logger.Nop(),
		Options{StageTimeout: time.Second},
	)
	return h
}

// serveVideoConfig makes the page emit the matching response during navigation.
func (h *harness) serveVideoConfig(playbackURL string) {
	h.page.onNav = func(p *fakePage) {
		p.emit(jsonResponse("GET", 200, "https://twitter.com/i/api/graphql/xyz", `{}`))
		p.emit(jsonResponse("GET", 200, testEndpoint, `{"track":{"playbackUrl":"`+playbackURL+`"}}`))
	}
}

func TestOrchestrator_Success(t *testing.T) {
	h := newHarness(t, time.Second)
	h.serveVideoConfig("https://video.example/abc.mp4")

	result, err := h.orch.Run(context.Background(), tweetURL)
	require.NoError(t, err)

	want := filepath.Join(h.storage.dir, "12345.mp4")
	assert.True(t, result.Success)
	assert.Equal(t, want, result.OutputPath)
	assert.Equal(t, "12345", result.Target.ID)
	assert.Equal(t, "https://video.example/abc.mp4", result.PlaybackURL)
	assert.NotEmpty(t, result.RunID)
	assert.FileExists(t, want)

	require.Equal(t, 1, h.transcoder.callCount())
	assert.Equal(t, transcodeCall{"https://video.example/abc.mp4", want}, h.transcoder.calls[0])
	assert.Equal(t, []string{tweetURL}, h.page.navigated)
	assert.Equal(t, int32(1), h.browser.closes.Load())
	assert.Empty(t, h.storage.cleanups)

	assert.Equal(t, []domain.Stage{
		domain.StageParsing,
		domain.StageLaunching,
		domain.StageCreatingPage,
		domain.StageNavigating,
		domain.StageResolvingURL,
		domain.StageDownloading,
		domain.StageSucceeded,
	}, h.progress.stages())
	last := h.progress.last()
	assert.Equal(t, domain.StageSucceeded, last.Stage)
	assert.Equal(t, want, last.OutputPath)
}

func TestOrchestrator_ReportsDownloadPosition(t *testing.T) {
	h := newHarness(t, time.Second)
	h.serveVideoConfig("https://video.example/abc.mp4")

	_, err := h.orch.Run(context.Background(), tweetURL)
	require.NoError(t, err)

	var positions []time.Duration
	for _, ev := range h.progress.events {
		if ev.Position > 0 {
			assert.Equal(t, domain.StageDownloading, ev.Stage)
			positions = append(positions, ev.Position)
		}
	}
	assert.Equal(t, []time.Duration{1500 * time.Millisecond}, positions)
}

func TestOrchestrator_NoMatchingResponse(t *testing.T) {
	h := newHarness(t, 50*time.Millisecond)

	result, err := h.orch.Run(context.Background(), tweetURL)

	var stageErr *domain.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, domain.StageResolvingURL, stageErr.Stage)
	assert.ErrorIs(t, err, domain.ErrResolveTimeout)
	assert.Equal(t, "Failed to find video URL", result.ErrorMessage)
	assert.False(t, result.Success)
	assert.Zero(t, h.transcoder.callCount())
	assert.Equal(t, int32(1), h.browser.closes.Load())
	assert.Zero(t, h.page.listeners())

	last := h.progress.last()
	assert.Equal(t, domain.StageFailed, last.Stage)
	assert.Equal(t, "Failed to find video URL", last.Message)
}

func TestOrchestrator_MalformedVideoConfig(t *testing.T) {
	h := newHarness(t, time.Second)
	h.page.onNav = func(p *fakePage) {
		p.emit(jsonResponse("GET", 200, testEndpoint, `<html>`))
	}

	result, err := h.orch.Run(context.Background(), tweetURL)

	var payloadErr *domain.PayloadError
	assert.ErrorAs(t, err, &payloadErr)
	assert.NotErrorIs(t, err, domain.ErrResolveTimeout)
	assert.Equal(t, "Failed to find video URL", result.ErrorMessage)
	assert.Zero(t, h.transcoder.callCount())
}

func TestOrchestrator_TranscoderFailure(t *testing.T) {
	for _, partial := range []bool{false, true} {
		h := newHarness(t, time.Second)
		h.serveVideoConfig("https://video.example/abc.mp4")
		h.transcoder.err = errBoom
		h.transcoder.partial = partial

		result, err := h.orch.Run(context.Background(), tweetURL)

		want := filepath.Join(h.storage.dir, "12345.mp4")
		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, "Failed to download video file", result.ErrorMessage)
		assert.Equal(t, domain.StageDownloading, result.FailedStage)
		assert.Equal(t, []string{want}, h.storage.cleanups)
		assert.NoFileExists(t, want)

		stages := h.progress.stages()
		assert.Equal(t, domain.StageCleaning, stages[len(stages)-2])
		assert.Equal(t, domain.StageFailed, stages[len(stages)-1])
	}
}

func TestOrchestrator_MissingArguments(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"", "Missing Tweet URL"},
		{"   ", "Missing Tweet URL"},
		{"https://twitter.com/", "Missing Tweet ID"},
	}

	for _, tt := range tests {
		t.Run(tt.want+"/"+tt.url, func(t *testing.T) {
			h := newHarness(t, time.Second)

			result, err := h.orch.Run(context.Background(), tt.url)

			require.Error(t, err)
			assert.Equal(t, tt.want, result.ErrorMessage)
			assert.Equal(t, domain.StageParsing, result.FailedStage)
			assert.Zero(t, h.launcher.launches.Load())
			assert.Zero(t, h.transcoder.callCount())
			assert.Empty(t, h.storage.cleanups)
		})
	}
}

func TestOrchestrator_BrowserFailures(t *testing.T) {
	t.Run("launch", func(t *testing.T) {
		h := newHarness(t, time.Second)
		h.launcher.err = errBoom

		result, err := h.orch.Run(context.Background(), tweetURL)

		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, "Failed to launch browser", result.ErrorMessage)
		assert.Zero(t, h.browser.closes.Load())
	})

	t.Run("page", func(t *testing.T) {
		h := newHarness(t, time.Second)
		h.browser.pageErr = errBoom

		result, err := h.orch.Run(context.Background(), tweetURL)

		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, "Failed to create new page", result.ErrorMessage)
		assert.Equal(t, int32(1), h.browser.closes.Load(), "browser must not leak")
	})

	t.Run("navigate", func(t *testing.T) {
		h := newHarness(t, time.Second)
		h.page.navErr = errBoom

		result, err := h.orch.Run(context.Background(), tweetURL)

		assert.ErrorIs(t, err, errBoom)
		assert.Equal(t, "Failed to open Twitter", result.ErrorMessage)
		assert.Equal(t, int32(1), h.browser.closes.Load(), "browser must not leak")
		assert.Zero(t, h.page.listeners())
		assert.Zero(t, h.transcoder.callCount())
	})
}

func TestOrchestrator_StageTimeoutBoundsLaunch(t *testing.T) {
	h := newHarness(t, time.Second)
	h.serveVideoConfig("https://video.example/abc.mp4")

	_, err := h.orch.Run(context.Background(), tweetURL)
	require.NoError(t, err)

	deadline, ok := h.launcher.launchCtx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), deadline, 2*time.Second)
}

func TestOrchestrator_OutputFileKeptOnSuccess(t *testing.T) {
	h := newHarness(t, time.Second)
	h.serveVideoConfig("https://video.example/abc.mp4")

	result, err := h.orch.Run(context.Background(), tweetURL)
	require.NoError(t, err)

	data, err := os.ReadFile(result.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "video", string(data))
}
