package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"tweetdl/internal/core/ports"
	"tweetdl/internal/logger"
)

const (
	DefaultBinary = "ffmpeg"

	progressTarget = "pipe:1"
	progressPrefix = "out_time_us="
	// stderrTail caps how much ffmpeg chatter is kept for error messages.
	stderrTail = 2048
)

// Transcoder uses the local ffmpeg binary to save a remote stream to disk.
type Transcoder struct {
	binaryPath string
	logger     logger.Logger
}

// NewTranscoder creates a new Transcoder. An empty binaryPath means ffmpeg
// from PATH.
func NewTranscoder(binaryPath string, log logger.Logger) *Transcoder {
	if binaryPath == "" {
		binaryPath = DefaultBinary
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Transcoder{binaryPath: binaryPath, logger: log}
}

// BuildArgs returns the ffmpeg arguments for one download.
func BuildArgs(sourceURL, destPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",                  // never wait for an overwrite prompt
		"-y",                        // overwrite output file
		"-i", sourceURL,             // remote playback URL
		"-progress", progressTarget, // key=value progress on stdout
		"-nostats",
		destPath,
	}
}

// Transcode runs ffmpeg and waits for it to exit. Any non-zero exit or
// launch failure is an error carrying the tail of ffmpeg's stderr.
func (t *Transcoder) Transcode(ctx context.Context, sourceURL, destPath string, progress ports.ProgressFunc) error {
	cmd := exec.CommandContext(ctx, t.binaryPath, BuildArgs(sourceURL, destPath)...)

	stderr := &tailBuffer{max: stderrTail}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	t.logger.Debugf("Running %s %s", t.binaryPath, strings.Join(BuildArgs("<playback-url>", destPath), " "))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	readProgress(stdout, progress)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg interrupted: %w", ctx.Err())
		}
		return fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// readProgress consumes ffmpeg's -progress output until EOF.
func readProgress(r io.Reader, progress ports.ProgressFunc) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if progress == nil || !strings.HasPrefix(line, progressPrefix) {
			continue
		}
		us, err := strconv.ParseInt(strings.TrimPrefix(line, progressPrefix), 10, 64)
		if err != nil || us < 0 {
			continue
		}
		progress(time.Duration(us) * time.Microsecond)
	}
	// Drain so ffmpeg never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	buf bytes.Buffer
	max int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	b.buf.Write(p)
	if over := b.buf.Len() - b.max; over > 0 {
		b.buf.Next(over)
	}
	return n, nil
}

func (b *tailBuffer) String() string { return b.buf.String() }
