package chrome

import (
	"sync"

	"github.com/chromedp/cdproto/network"

	"tweetdl/internal/core/domain"
)

// tracker correlates DevTools network events into domain.Responses. The
// method comes from requestWillBeSent, status and URL from responseReceived,
// and the response is emitted once loadingFinished says the body is ready.
type tracker struct {
	mu       sync.Mutex
	methods  map[network.RequestID]string
	pending  map[network.RequestID]domain.Response
	bodyFunc func(network.RequestID) func() ([]byte, error)
}

func newTracker(bodyFunc func(network.RequestID) func() ([]byte, error)) *tracker {
	return &tracker{
		methods:  make(map[network.RequestID]string),
		pending:  make(map[network.RequestID]domain.Response),
		bodyFunc: bodyFunc,
	}
}

// handle consumes one event and returns a completed response, if any.
func (t *tracker) handle(ev interface{}) (domain.Response, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev := ev.(type) {
	case *network.EventRequestWillBeSent:
		if ev.Request != nil {
			t.methods[ev.RequestID] = ev.Request.Method
		}
	case *network.EventResponseReceived:
		if ev.Response == nil {
			return domain.Response{}, false
		}
		t.pending[ev.RequestID] = domain.Response{
			Method: t.methods[ev.RequestID],
			Status: int(ev.Response.Status),
			URL:    ev.Response.URL,
		}
	case *network.EventLoadingFinished:
		resp, ok := t.pending[ev.RequestID]
		t.forget(ev.RequestID)
		if !ok {
			return domain.Response{}, false
		}
		if t.bodyFunc != nil {
			resp.Body = t.bodyFunc(ev.RequestID)
		}
		return resp, true
	case *network.EventLoadingFailed:
		t.forget(ev.RequestID)
	}
	return domain.Response{}, false
}

func (t *tracker) forget(id network.RequestID) {
	delete(t.methods, id)
	delete(t.pending, id)
}
