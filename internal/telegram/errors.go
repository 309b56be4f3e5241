package telegram

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	tele "gopkg.in/telebot.v3"
)

// ErrorKind classifies failures reported by the chat platform
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindRateLimited
	KindNetwork
	KindAPIRejected
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindNetwork:
		return "network"
	case KindAPIRejected:
		return "api_rejected"
	default:
		return "unknown"
	}
}

// PlatformError wraps a failed Bot API call
type PlatformError struct {
	Kind ErrorKind
	Op   string
	// RetryAfter is set for rate limited calls
	RetryAfter time.Duration
	Err        error
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("telegram %s failed (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}

// classify wraps err into a PlatformError for op. nil stays nil.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var pe *PlatformError
	if errors.As(err, &pe) {
		return err
	}

	out := &PlatformError{Kind: KindUnknown, Op: op, Err: err}

	var flood tele.FloodError
	var floodPtr *tele.FloodError
	var apiErr *tele.Error
	var groupErr tele.GroupError

	switch {
	case errors.As(err, &flood):
		out.Kind = KindRateLimited
		out.RetryAfter = time.Duration(flood.RetryAfter) * time.Second
	case errors.As(err, &floodPtr):
		out.Kind = KindRateLimited
		out.RetryAfter = time.Duration(floodPtr.RetryAfter) * time.Second
	case errors.As(err, &apiErr):
		if apiErr.Code == 429 {
			out.Kind = KindRateLimited
		} else {
			out.Kind = KindAPIRejected
		}
	case errors.As(err, &groupErr):
		out.Kind = KindAPIRejected
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		out.Kind = KindNetwork
	case isNetworkError(err):
		out.Kind = KindNetwork
	}

	return out
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// IsKind reports whether err is a PlatformError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var pe *PlatformError
	return errors.As(err, &pe) && pe.Kind == kind
}
