package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
)

type fakeHandler func(req Request) (any, error)

// fakeTransport answers requests from per-route handlers and counts calls.
type fakeTransport struct {
	mu       sync.Mutex
	handlers map[string]fakeHandler
	calls    map[string]int
	requests []Request
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		handlers: make(map[string]fakeHandler),
		calls:    make(map[string]int),
	}
}

func (f *fakeTransport) handle(method, route string, h fakeHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[method+" "+route] = h
}

func (f *fakeTransport) respond(method, route string, body any) {
	f.handle(method, route, func(Request) (any, error) { return body, nil })
}

func (f *fakeTransport) fail(method, route string, err error) {
	f.handle(method, route, func(Request) (any, error) { return nil, err })
}

func (f *fakeTransport) count(method, route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method+" "+route]
}

func (f *fakeTransport) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeTransport) last(method, route string) (Request, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if r := f.requests[i]; r.Method == method && r.Route == route {
			return r, true
		}
	}
	return Request{}, false
}

func (f *fakeTransport) Do(ctx context.Context, req Request, out any) error {
	key := req.Method + " " + req.Route
	f.mu.Lock()
	f.calls[key]++
	f.requests = append(f.requests, req)
	h, ok := f.handlers[key]
	f.mu.Unlock()
	if !ok {
		return &NotFoundError{Op: key, Message: "no fake handler"}
	}
	body, err := h(req)
	if err != nil {
		return err
	}
	if out == nil || body == nil {
		return nil
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("fake encode: %w", err)
	}
	return json.Unmarshal(raw, out)
}

var (
	testUserID = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	testOrgID  = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

func page(items ...any) map[string]any {
	if items == nil {
		items = []any{}
	}
	return map[string]any{"content": items}
}

// connectedFake answers the identity routes for testUserID and testOrgID.
func connectedFake() *fakeTransport {
	f := newFakeTransport()
	f.respond("GET", routeCurrentUser, map[string]any{"id": testUserID, "userName": "tester"})
	f.respond("GET", routeOrganizations, page(map[string]any{"id": testOrgID, "name": "Acme"}))
	return f
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestClient(t *testing.T, f *fakeTransport) *Client {
	t.Helper()
	logger := discardLogger()
	return NewClient(NewSession(f, "test-api-key", logger), logger)
}
