package domain

import (
	"net/url"
	"strings"
	"time"
)

// Target identifies the post whose video is being extracted.
type Target struct {
	ID      string `json:"id"`
	PageURL string `json:"page_url"`
}

// ParseTarget derives the target from a post URL. The identifier is the
// trailing path segment; query string, fragment and trailing slashes are ignored.
func ParseTarget(rawURL string) (Target, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Target{}, ErrMissingURL
	}

	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	path = strings.TrimRight(path, "/")

	id := path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		id = path[i+1:]
	}
	if id == "" {
		return Target{}, ErrMissingID
	}

	return Target{ID: id, PageURL: rawURL}, nil
}

// Response is one HTTP response observed while a page loads.
type Response struct {
	Method string
	Status int
	URL    string
	// Body reads the response body. It may be called at most once and may
	// block while the browser is queried.
	Body func() ([]byte, error)
}

// Result holds the outcome of a download run.
type Result struct {
	RunID        string
	Target       Target
	PlaybackURL  string
	OutputPath   string
	Success      bool
	FailedStage  Stage
	ErrorMessage string
	StartedAt    time.Time
	CompletedAt  time.Time
}
