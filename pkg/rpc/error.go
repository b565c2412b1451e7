package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrConnection means the transport could not be established.
	ErrConnection = errors.New("connection error")
	// ErrConnectionLost means the connection dropped, or never became ready,
	// while a call was outstanding. It is carried by *ConnectionLostError.
	ErrConnectionLost = errors.New("connection lost")
	// ErrAuthentication means the node rejected the login or a required
	// namespace during the handshake. The session does not retry it.
	ErrAuthentication = errors.New("authentication failed")
	// ErrTimeout is carried by *TimeoutError.
	ErrTimeout = errors.New("call timed out")
	// ErrProtocolViolation marks a malformed inbound envelope.
	ErrProtocolViolation = errors.New("protocol violation")

	ErrUnrecognizedNotification = errors.New("unrecognized notification")
	ErrUnknownNamespace         = errors.New("namespace unavailable on node")
	ErrDuplicateRequestID       = errors.New("request id already pending")
	ErrSessionClosed            = errors.New("session closed")
	ErrInvalidConfig            = errors.New("invalid rpc config")

	// Transport errors
	ErrAlreadyConnected  = errors.New("already connected")
	ErrNotConnected      = errors.New("not connected to node")
	ErrConnectionTimeout = errors.New("websocket connection timeout")
	ErrReadingMessage    = errors.New("error reading message")
	ErrDialingWebsocket  = errors.New("error dialing websocket server")
	ErrMarshalingRequest = errors.New("error marshaling request")
	ErrSendingRequest    = errors.New("error sending request")
	ErrSendingPing       = errors.New("error sending ping")
)

// RemoteError is a JSON-RPC error object returned by the node. It is passed to
// the caller as is and never retried.
type RemoteError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}

// UnmarshalJSON keeps the optional data member raw.
func (e *RemoteError) UnmarshalJSON(b []byte) error {
	var aux struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	e.Code, e.Message = aux.Code, aux.Message
	if len(aux.Data) > 0 && string(aux.Data) != "null" {
		e.Data = aux.Data
	}
	return nil
}

// ConnectionLostError is returned for calls that were pending, or queued,
// when the connection failed.
type ConnectionLostError struct {
	RequestID uint64
	Namespace string
	Method    string
	Cause     error
}

func (e *ConnectionLostError) Error() string {
	msg := ErrConnectionLost.Error()
	if e.Namespace != "" {
		msg = fmt.Sprintf("%s: %s.%s", msg, e.Namespace, e.Method)
	}
	if e.RequestID != 0 {
		msg = fmt.Sprintf("%s (request %d)", msg, e.RequestID)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *ConnectionLostError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrConnectionLost}
	}
	return []error{ErrConnectionLost, e.Cause}
}

// TimeoutError is returned when a call's deadline passes before the response
// arrives. The node may still have executed it.
type TimeoutError struct {
	RequestID uint64
	Namespace string
	Method    string
	Elapsed   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: %s.%s after %s", ErrTimeout, e.Namespace, e.Method, e.Elapsed.Round(time.Millisecond))
}

func (e *TimeoutError) Unwrap() []error {
	return []error{ErrTimeout, context.DeadlineExceeded}
}
