// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotConnected is returned by Call on a session that is not connected.
var ErrNotConnected = errors.New("engine session is not connected")

// ConnectionError reports that no endpoint candidate could be connected.
type ConnectionError struct {
	Endpoints []string
	Err       error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("engine connection failed after trying %d endpoint(s): %v", len(e.Endpoints), e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TransportError reports that a call failed on the wire: a write or read
// failure, a receive timeout or a cancelled context. The session is closed
// by the time a TransportError is returned.
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("engine transport failure in %s: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransportError reports whether err left the session unusable.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te) || errors.Is(err, ErrNotConnected)
}

// ErrorKind classifies engine error payloads.
type ErrorKind int

const (
	KindGeneric ErrorKind = iota
	// KindAlreadyOpen: the document is already open in this session.
	KindAlreadyOpen
	// KindTooLarge: the requested data page exceeds the engine's result limit.
	KindTooLarge
	// KindNotFound: the referenced document, object or bookmark does not exist.
	KindNotFound
	// KindAccessDenied: the engine user may not access the entity.
	KindAccessDenied
)

func (k ErrorKind) String() string {
	switch k {
	case KindAlreadyOpen:
		return "already_open"
	case KindTooLarge:
		return "too_large"
	case KindNotFound:
		return "not_found"
	case KindAccessDenied:
		return "access_denied"
	default:
		return "generic"
	}
}

// Engine error codes (LOCERR_*) the gateway reacts to.
const (
	codeGenericNotFound     = 2
	codeGenericAccessDenied = 5
	codeAppAlreadyOpen      = 1002
	codeAppNotFound         = 1003
	codeAppAccessDenied     = 1004
)

// EngineError is an error payload returned by the engine.
type EngineError struct {
	Method    string `json:"-"`
	Code      int    `json:"code"`
	Parameter string `json:"parameter"`
	Message   string `json:"message"`
}

func (e *EngineError) Error() string {
	msg := fmt.Sprintf("engine error %d in %s: %s", e.Code, e.Method, e.Message)
	if e.Parameter != "" {
		msg += " (" + e.Parameter + ")"
	}
	return msg
}

// Kind classifies the error. This is the only place in the gateway that
// looks at engine error text.
func (e *EngineError) Kind() ErrorKind {
	msg := strings.ToLower(e.Message + " " + e.Parameter)
	switch {
	case e.Code == codeAppAlreadyOpen || strings.Contains(msg, "already open"):
		return KindAlreadyOpen
	case strings.Contains(msg, "too large"):
		return KindTooLarge
	case e.Code == codeGenericNotFound || e.Code == codeAppNotFound:
		return KindNotFound
	case e.Code == codeGenericAccessDenied || e.Code == codeAppAccessDenied:
		return KindAccessDenied
	default:
		return KindGeneric
	}
}

// KindOf returns the ErrorKind of the first *EngineError in err's chain,
// or KindGeneric.
func KindOf(err error) ErrorKind {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Kind()
	}
	return KindGeneric
}

// IsTooLarge reports whether err is an engine "result too large" error.
func IsTooLarge(err error) bool {
	return KindOf(err) == KindTooLarge
}

// IsEngineError reports whether err carries an engine error payload.
func IsEngineError(err error) bool {
	var ee *EngineError
	return errors.As(err, &ee)
}
