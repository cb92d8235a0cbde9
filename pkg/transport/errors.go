// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package transport

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the DPDA service, surfaced verbatim.
//
// The pipeline never transforms remote errors: Message and Detail carry
// exactly what the server said (e.g. "initial state not in states list",
// "non-deterministic transition already exists"). Method, Path and
// StatusCode provide diagnostic context.
type APIError struct {
	// Method is the HTTP method of the failed request.
	Method string

	// Path is the request path.
	Path string

	// StatusCode is the HTTP status of the response.
	StatusCode int

	// Message is the server's `error` field.
	Message string

	// Detail is the server's optional `detail` field.
	Detail string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.StatusCode, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a remote 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsClientError reports whether err is a remote 4xx. Positional-addressing
// failures (index out of bounds after the list changed underneath the
// caller) land here; the recommended response is a full refetch of the
// transition list before retrying the intended edit.
func IsClientError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500
}

// wireError is the error body shape used by the DPDA service.
type wireError struct {
	Error      string `json:"error"`
	Detail     string `json:"detail,omitempty"`
	StatusCode int    `json:"status_code"`
}
