// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package transport is the request pipeline for the DPDA service.
//
// Every outbound call passes through two layers:
//
//   - a request decorator that attaches the anonymous session identity
//     header (X-Session-ID) unless the caller already set one
//   - a response interceptor that logs failures with enough context to
//     diagnose (method, path, status) and re-raises them unchanged
//
// The pipeline is purely observational beyond header injection: it never
// retries, never caches, never rate-limits, and never swallows or
// transforms errors. Timeouts belong to the underlying http.Client.
package transport

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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SessionHeader is the identity header attached to every request.
const SessionHeader = "X-Session-ID"

// Tracer for pipeline operations.
var tracer = otel.Tracer("pdasync.transport")

// SessionSource supplies the current session identity. Satisfied by
// *session.Provider.
type SessionSource interface {
	GetOrCreate() string
}

// Client is the HTTP entry point for all remote DPDA operations.
//
// # Thread Safety
//
// Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	httpClient *http.Client
	logger     *slog.Logger
	timeout    time.Duration
}

// WithHTTPClient injects a custom http.Client. Its Transport is still
// wrapped with the session decorator.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *clientConfig) { c.httpClient = hc }
}

// WithClientLogger sets the logger for failure logging.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *clientConfig) { c.logger = logger }
}

// WithTimeout sets the overall request timeout. Default: 30s.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) { c.timeout = d }
}

// New creates a Client for the service at baseURL.
//
// The ids source is consulted per request by the decorator; passing the
// process-wide session.Provider gives every call the same anonymous
// identity until it is reset or imported.
func New(baseURL string, ids SessionSource, opts ...ClientOption) *Client {
	cfg := clientConfig{timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	// Shallow-copy so the caller's client is not mutated.
	wrapped := *hc
	wrapped.Transport = &sessionTransport{base: base, ids: ids}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &wrapped,
		logger:  cfg.logger,
	}
}

// sessionTransport decorates requests with the session identity header.
type sessionTransport struct {
	base http.RoundTripper
	ids  SessionSource
}

// RoundTrip attaches X-Session-ID unless the caller already set one.
// An explicitly-set header always wins: callers may impersonate a
// different session deliberately (tests do).
func (t *sessionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(SessionHeader) == "" && t.ids != nil {
		req = req.Clone(req.Context())
		req.Header.Set(SessionHeader, t.ids.GetOrCreate())
	}
	return t.base.RoundTrip(req)
}

// Do executes a request and intercepts the response.
//
// # Behavior
//
//   - 2xx: the response is returned; the caller owns the body.
//   - non-2xx: the body is decoded as `{error, detail?, status_code}`
//     into an *APIError, the failure is logged, and the error is
//     returned unchanged. The body is closed.
//   - transport failure: logged and returned as-is, no retry.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	ctx, span := tracer.Start(ctx, "transport.Do",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.path", path),
		),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("build request %s %s: %w", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		c.logger.Error("request failed", "method", method, "path", path, "error", err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeAPIError(method, path, resp)
		span.SetStatus(codes.Error, apiErr.Message)
		c.logger.Error("request rejected",
			"method", method, "path", path,
			"status", resp.StatusCode, "error", apiErr.Message, "detail", apiErr.Detail)
		return nil, apiErr
	}

	return resp, nil
}

// GetJSON issues a GET and decodes the 2xx body into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.roundTripJSON(ctx, http.MethodGet, path, nil, out)
}

// PostJSON issues a POST with a JSON body and decodes the 2xx body into out.
// Pass nil in or out to skip either side.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	return c.roundTripJSON(ctx, http.MethodPost, path, in, out)
}

// PutJSON issues a PUT with a JSON body and decodes the 2xx body into out.
func (c *Client) PutJSON(ctx context.Context, path string, in, out any) error {
	return c.roundTripJSON(ctx, http.MethodPut, path, in, out)
}

// PatchJSON issues a PATCH with a JSON body and decodes the 2xx body into out.
func (c *Client) PatchJSON(ctx context.Context, path string, in, out any) error {
	return c.roundTripJSON(ctx, http.MethodPatch, path, in, out)
}

// DeleteJSON issues a DELETE and decodes the 2xx body into out.
func (c *Client) DeleteJSON(ctx context.Context, path string, out any) error {
	return c.roundTripJSON(ctx, http.MethodDelete, path, nil, out)
}

// GetRaw issues a GET and returns the raw 2xx body. Used for export
// payloads whose format is negotiated via query string.
func (c *Client) GetRaw(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.Do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (c *Client) roundTripJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	resp, err := c.Do(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// decodeAPIError drains a non-2xx response into an APIError. Bodies that
// are not the documented error shape still produce a usable error.
func decodeAPIError(method, path string, resp *http.Response) *APIError {
	defer resp.Body.Close()

	apiErr := &APIError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Message:    http.StatusText(resp.StatusCode),
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apiErr
	}

	var we wireError
	if err := json.Unmarshal(raw, &we); err == nil && we.Error != "" {
		apiErr.Message = we.Error
		apiErr.Detail = we.Detail
	} else if len(raw) > 0 {
		apiErr.Detail = strings.TrimSpace(string(raw))
	}

	return apiErr
}

// EscapePath escapes a single path segment (machine ids come from the
// server but still must not break the URL).
func EscapePath(segment string) string {
	return url.PathEscape(segment)
}
