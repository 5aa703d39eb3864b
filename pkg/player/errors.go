package player

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"

	"github.com/muurk/playerclient/pkg/device"
	"github.com/muurk/playerclient/pkg/wire"
)

// ErrorKind represents the category of error that occurred
type ErrorKind int

const (
	// KindConnect indicates the socket or banner could not be established
	KindConnect ErrorKind = iota + 1
	// KindDesync indicates a framing failure: bad marker run, truncated or oversized frame
	KindDesync
	// KindIO indicates the stream failed after connecting
	KindIO
	// KindSubscription indicates a device subscription was refused or impossible
	KindSubscription
	// KindRequest indicates a request was answered with RESP_NACK or RESP_ERR
	KindRequest
	// KindUnexpected indicates a frame a client should never receive
	KindUnexpected
	// KindClosed indicates the connection is already closed
	KindClosed
	// KindUsage indicates the call was invalid for the connection's state
	KindUsage
)

// String returns a human-readable name for the error kind
func (k ErrorKind) String() string {
	switch k {
	case KindConnect:
		return "connect error"
	case KindDesync:
		return "protocol desync"
	case KindIO:
		return "i/o error"
	case KindSubscription:
		return "subscription error"
	case KindRequest:
		return "request error"
	case KindUnexpected:
		return "unexpected message"
	case KindClosed:
		return "connection closed"
	case KindUsage:
		return "usage error"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Reason refines KindSubscription and KindRequest errors.
type Reason int

const (
	ReasonNone Reason = iota
	// ReasonDenied: the server granted the error access mode
	ReasonDenied
	// ReasonUnsupported: no handler exists for the interface code
	ReasonUnsupported
	// ReasonNack: the server replied RESP_NACK
	ReasonNack
	// ReasonError: the server replied RESP_ERR
	ReasonError
)

func (r Reason) String() string {
	switch r {
	case ReasonDenied:
		return "denied"
	case ReasonUnsupported:
		return "unsupported device"
	case ReasonNack:
		return "negative acknowledgement"
	case ReasonError:
		return "error acknowledgement"
	default:
		return ""
	}
}

// Error is returned by Client operations.
type Error struct {
	Kind    ErrorKind
	Reason  Reason
	Op      string       // operation, e.g. "subscribe"
	Key     *device.Key  // target device, if any
	MsgType wire.MsgType // frame type involved, if any
	Err     error        // underlying error, if any
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := "player: " + e.Op
	if e.Key != nil {
		msg += " " + e.Key.String()
	}
	if e.MsgType != 0 {
		msg += " (" + e.MsgType.String() + ")"
	}
	msg += ": " + e.Kind.String()
	if e.Reason != ReasonNone {
		msg += ": " + e.Reason.String()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// Fatal reports whether the error closed the connection.
func (e *Error) Fatal() bool {
	switch e.Kind {
	case KindConnect, KindDesync, KindIO, KindClosed:
		return true
	}
	return false
}

// Retryable reports whether repeating the operation may succeed. Fatal
// connection errors are retryable only with a fresh connection.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindSubscription:
		return e.Reason == ReasonDenied
	case KindRequest:
		return true
	case KindConnect:
		return isTransientNetErr(e.Err)
	}
	return false
}

// Sentinel errors
var (
	ErrClosed        = errors.New("connection closed")
	ErrModeConflict  = errors.New("streaming and single-read modes are mutually exclusive")
	ErrNotSubscribed = errors.New("device not subscribed")
	ErrNotWritable   = errors.New("subscription does not allow commands")
	ErrKeyTooLong    = fmt.Errorf("authentication key longer than %d bytes", AuthKeySize)
	ErrNameTooLong   = fmt.Errorf("name longer than %d bytes", NameSize)
	ErrBadAccess     = errors.New("access mode cannot be requested")
	ErrShortReply    = errors.New("reply payload too short")
)

func keyPtr(k device.Key) *device.Key { return &k }

// classify wraps a read or write failure in the fatal kind it belongs to.
func classify(op string, err error) *Error {
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	kind := KindIO
	switch {
	case errors.Is(err, wire.ErrDesync), errors.Is(err, wire.ErrTruncated), errors.Is(err, wire.ErrMalformed):
		kind = KindDesync
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		kind = KindClosed
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func isTransientNetErr(err error) bool {
	if err == nil {
		return false
	}
	if os.IsTimeout(err) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH)
}

// IsFatal reports whether err closed the connection.
func IsFatal(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Fatal()
}

// IsRetryable reports whether the failed operation may be retried.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable()
}

// IsDenied reports whether a subscription was denied by the server.
func IsDenied(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindSubscription && e.Reason == ReasonDenied
}

// IsUnsupported reports whether a subscription failed for lack of a handler.
func IsUnsupported(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindSubscription && e.Reason == ReasonUnsupported
}

// IsDesync reports whether the stream lost framing.
func IsDesync(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindDesync
}

// IsNack reports whether a request was refused with RESP_NACK or RESP_ERR.
func IsNack(err error) bool {
	var e *Error
	return errors.As(err, &e) && (e.Reason == ReasonNack || e.Reason == ReasonError)
}
