package client

/*
subenum — passive subdomain enumeration in Go
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a fetch failed.
type ErrorKind string

const (
	// KindConnection covers DNS, dial, TLS and other transport failures.
	KindConnection ErrorKind = "connection"
	// KindStatus is a response with a non-2xx status code.
	KindStatus ErrorKind = "status"
	// KindTimeout means the per-source deadline expired.
	KindTimeout ErrorKind = "timeout"
	// KindBody is a failure while reading the response body.
	KindBody ErrorKind = "body"
	// KindCanceled means the parent context was canceled (e.g. SIGINT).
	KindCanceled ErrorKind = "canceled"
)

// FetchError is returned by Fetcher.Fetch for every failed attempt.
// It records which source failed and how, so callers can turn it into
// statistics without string matching.
type FetchError struct {
	Source     string
	Kind       ErrorKind
	StatusCode int // Set only for KindStatus.
	Err        error
}

// Error implements the standard Go `error` interface.
func (e *FetchError) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("%s: unexpected HTTP status %d", e.Source, e.StatusCode)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Source, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Kind, e.Err)
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the fetch failed because its deadline expired.
func (e *FetchError) Timeout() bool {
	return e.Kind == KindTimeout
}

// IsTimeout reports whether err is (or wraps) a FetchError caused by a deadline.
// A nil error or any other error type returns false.
func IsTimeout(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Timeout()
	}
	return false
}

// KindOf returns the ErrorKind of a FetchError, or "" if err is not one.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
