package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Request accumulates a JSON body and headers, then executes.
type Request struct {
	client  *instrumentedClient
	headers map[string]string
	body    any
}

// SetBody sets the request body; it is JSON-encoded on execution.
func (r *Request) SetBody(body any) *Request {
	r.body = body
	return r
}

// SetHeader sets one request header.
func (r *Request) SetHeader(key, value string) *Request {
	r.headers[key] = value
	return r
}

// Post executes a POST to url.
func (r *Request) Post(ctx context.Context, url string) (*Response, error) {
	return r.execute(ctx, http.MethodPost, url)
}

func (r *Request) execute(ctx context.Context, method, url string) (*Response, error) {
	c := r.client

	ctx, span := c.tracer.Start(ctx, c.providerName+" "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("provider", c.providerName),
		))
	defer span.End()

	var bodyReader io.Reader
	if r.body != nil {
		encoded, err := json.Marshal(r.body)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("encode body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.count(ctx, method, "error")
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		c.count(ctx, method, "error")
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("read body: %w", err)
	}

	c.count(ctx, method, strconv.Itoa(resp.StatusCode))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, resp.Status)
	}

	return &Response{StatusCode: resp.StatusCode, body: payload}, nil
}

func (c *instrumentedClient) count(ctx context.Context, method, status string) {
	c.requestCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", c.providerName),
		attribute.String("method", method),
		attribute.String("status", status),
	))
}

// Response carries the status and the fully read body.
type Response struct {
	StatusCode int
	body       []byte
}

// Body returns the raw response body.
func (r *Response) Body() []byte { return r.body }

// String returns the response body as a string.
func (r *Response) String() string { return string(r.body) }

// IsError reports a status code of 400 or above.
func (r *Response) IsError() bool { return r.StatusCode >= 400 }
