// Package httpclient is a small JSON-over-HTTP client with OTEL tracing and
// a per-provider request counter, used by the notification senders.
package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultDialKeepAlive   = 10 * time.Second
	defaultRequestTimeout  = 10 * time.Second
	defaultMaxConnsPerHost = 5
	defaultIdleConnTimeout = 2 * time.Minute

	metricRequestCounter = "http_client_requests_total"
)

// Client builds JSON requests against a remote endpoint.
type Client interface {
	NewRequest() *Request
}

// Option configures an instrumented client.
type Option func(*options)

type options struct {
	providerName   string
	requestTimeout time.Duration
	httpClient     *http.Client
}

// WithProviderName labels traces and metrics with the remote service name.
func WithProviderName(name string) Option {
	return func(o *options) { o.providerName = name }
}

// WithRequestTimeout caps the total time for one request.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithHTTPClient substitutes the underlying http.Client, for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

type instrumentedClient struct {
	client         *http.Client
	providerName   string
	tracer         trace.Tracer
	requestCounter metric.Int64Counter
}

// NewInstrumentedClient builds a client whose transport carries OTEL spans
// and client traces, and which counts requests per provider and status.
func NewInstrumentedClient(opts ...Option) (Client, error) {
	o := options{
		providerName:   "default",
		requestTimeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					KeepAlive: defaultDialKeepAlive,
				}).DialContext,
				MaxConnsPerHost: defaultMaxConnsPerHost,
				IdleConnTimeout: defaultIdleConnTimeout,
			},
		}
	}
	httpClient.Timeout = o.requestTimeout
	httpClient.Transport = otelhttp.NewTransport(
		httpClient.Transport,
		otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
			return otelhttptrace.NewClientTrace(ctx)
		}),
	)

	meter := otel.GetMeterProvider().Meter("httpclient",
		metric.WithInstrumentationAttributes(attribute.String("provider", o.providerName)))
	requestCounter, err := meter.Int64Counter(metricRequestCounter,
		metric.WithDescription("HTTP client requests"))
	if err != nil {
		return nil, err
	}

	return &instrumentedClient{
		client:         httpClient,
		providerName:   o.providerName,
		tracer:         otel.GetTracerProvider().Tracer("httpclient"),
		requestCounter: requestCounter,
	}, nil
}

func (c *instrumentedClient) NewRequest() *Request {
	return &Request{client: c, headers: map[string]string{}}
}
