package resilience

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"syscall"

	"connectrpc.com/connect"

	domainerrors "github.com/mmynk/giftwiser/internal/errors"
)

// Category names a class of transient failure that is safe to retry.
type Category string

const (
	CategoryTimeout    Category = "timeout"
	CategoryConnection Category = "connection"
	CategoryDNS        Category = "dns"
	CategoryUpstream   Category = "upstream"
	CategoryStore      Category = "store"
)

// Classify reports whether err belongs to a retryable category.
//
// Only the categories listed here are retried. Typed engine failures other than
// Transient, cancellations, and unrecognized errors are never retried.
func Classify(err error) (Category, bool) {
	if err == nil || errors.Is(err, context.Canceled) {
		return "", false
	}

	var de *domainerrors.Error
	if errors.As(err, &de) {
		if de.Kind() == domainerrors.KindTransient {
			return CategoryStore, true
		}
		return "", false
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CategoryDNS, true
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, driver.ErrBadConn) {
		return CategoryConnection, true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryTimeout, true
	}

	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		switch connectErr.Code() {
		case connect.CodeUnavailable, connect.CodeDeadlineExceeded:
			return CategoryUpstream, true
		}
	}

	return "", false
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	_, ok := Classify(err)
	return ok
}
