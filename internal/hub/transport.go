package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	maxResponseBytes int64 = 8 << 20
	maxErrorMessage        = 512
	defaultTimeout         = 30 * time.Second
	defaultUserAgent       = "hubsync"
)

// Request is one logical call against the Hub REST surface.
type Request struct {
	Method string
	Path   string // concrete path, ids interpolated
	Route  string // path template used for metric and span labels
	Query  url.Values
	Body   any
}

func (r Request) op() string {
	return r.Method + " " + r.Path
}

func (r Request) route() string {
	if r.Route != "" {
		return r.Route
	}
	return r.Path
}

// Transport issues requests to the Hub and decodes JSON responses into out.
// A nil out discards the response body. Errors follow the hub error taxonomy.
type Transport interface {
	Do(ctx context.Context, req Request, out any) error
}

type TransportOptions struct {
	HTTPClient     *http.Client
	Timeout        time.Duration
	UserAgent      string
	Logger         *slog.Logger
	Registerer     prometheus.Registerer // nil uses the process-wide default registry
	TracerProvider trace.TracerProvider  // nil uses the global provider
}

// HTTPTransport talks to the Hub over HTTP using bearer API-key auth.
type HTTPTransport struct {
	baseURL   *url.URL
	apiKey    string
	client    *http.Client
	userAgent string
	logger    *slog.Logger
	metrics   *clientMetrics
	tracer    trace.Tracer
}

func NewHTTPTransport(baseURL, apiKey string, opts TransportOptions) (*HTTPTransport, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse hub url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("hub url must be an absolute http or https URL, got %q", baseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var metrics *clientMetrics
	if opts.Registerer != nil {
		metrics = newClientMetrics(opts.Registerer)
	} else {
		metrics = getDefaultClientMetrics()
	}
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	return &HTTPTransport{
		baseURL:   u,
		apiKey:    strings.TrimSpace(apiKey),
		client:    httpClient,
		userAgent: userAgent,
		logger:    logger,
		metrics:   metrics,
		tracer:    tp.Tracer(tracerName),
	}, nil
}

// HubURL returns the base URL requests are sent to.
func (t *HTTPTransport) HubURL() string {
	return t.baseURL.String()
}

func (t *HTTPTransport) Do(ctx context.Context, req Request, out any) (err error) {
	route := req.route()
	ctx, span := t.tracer.Start(ctx, requestSpanName(req.Method, route), trace.WithSpanKind(trace.SpanKindClient))
	start := time.Now()
	status := 0
	defer func() {
		elapsed := time.Since(start)
		t.metrics.observe(req.Method, route, status, elapsed)
		finishRequestSpan(span, req.Method, route, status, err)
		t.logger.Debug("hub request", "method", req.Method, "path", req.Path, "status", status, "duration", elapsed)
	}()

	httpReq, err := t.newRequest(ctx, req)
	if err != nil {
		return fmt.Errorf("build %s: %w", req.op(), err)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return &ConnectivityError{Op: req.op(), Err: err}
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &ConnectivityError{Op: req.op(), Status: status, Message: "read response", Err: err}
	}
	if err := classifyStatus(req.op(), status, body); err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &ConnectivityError{Op: req.op(), Status: status, Message: "decode response: " + err.Error(), Err: err}
	}
	return nil
}

func (t *HTTPTransport) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	u := *t.baseURL
	u.Path = t.baseURL.Path + "/" + strings.TrimPrefix(req.Path, "/")
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(b)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", t.userAgent)
	if t.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)
	}
	return httpReq, nil
}

// responseMessage pulls a human message out of an error body. The Hub sends
// {"message": ...}; other JSON or plain text bodies are returned trimmed.
func responseMessage(body []byte, fallback string) string {
	raw := bytes.TrimSpace(body)
	if len(raw) == 0 {
		return fallback
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	msg := string(raw)
	if len(msg) > maxErrorMessage {
		msg = msg[:maxErrorMessage] + "..."
	}
	return msg
}
