package service

import (
	"fmt"
	"net/http"

	"tweetdl/internal/config"
	"tweetdl/internal/core/domain"
)

// Matcher recognises the response that carries a post's video configuration.
type Matcher struct {
	endpoint string
}

// NewMatcher creates a Matcher for the given endpoint template. An empty
// template selects config.DefaultPlaybackEndpoint.
func NewMatcher(endpointTemplate string) Matcher {
	if endpointTemplate == "" {
		endpointTemplate = config.DefaultPlaybackEndpoint
	}
	return Matcher{endpoint: endpointTemplate}
}

// EndpointFor returns the exact URL expected for targetID.
func (m Matcher) EndpointFor(targetID string) string {
	return fmt.Sprintf(m.endpoint, targetID)
}

// Match reports whether resp is a successful GET of the video configuration
// for targetID. The URL comparison is exact.
func (m Matcher) Match(resp domain.Response, targetID string) bool {
	return resp.Method == http.MethodGet &&
		resp.Status == http.StatusOK &&
		resp.URL == m.EndpointFor(targetID)
}

// IsPlaybackResponse applies the default Matcher.
func IsPlaybackResponse(resp domain.Response, targetID string) bool {
	return NewMatcher("").Match(resp, targetID)
}
