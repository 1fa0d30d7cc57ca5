package service

import (
	"context"
	"errors"
	"math"
	"strconv"

	"connectrpc.com/connect"
	"github.com/go-playground/validator/v10"

	domainerrors "github.com/mmynk/giftwiser/internal/errors"
	"github.com/mmynk/giftwiser/internal/middleware"
)

// RetryAfterHeader carries the circuit breaker's retry hint in whole seconds.
const RetryAfterHeader = "Retry-After"

var kindCodes = map[domainerrors.Kind]connect.Code{
	domainerrors.KindValidation:    connect.CodeInvalidArgument,
	domainerrors.KindAuthorization: connect.CodePermissionDenied,
	domainerrors.KindConflict:      connect.CodeAlreadyExists,
	domainerrors.KindNotFound:      connect.CodeNotFound,
	domainerrors.KindTransient:     connect.CodeUnavailable,
	domainerrors.KindCircuitOpen:   connect.CodeUnavailable,
	domainerrors.KindInternal:      connect.CodeInternal,
}

// toConnectError maps a domain failure onto a Connect error. The domain code travels in
// the Error-Code metadata so clients can tell, say, ALREADY_CLAIMED from
// DUPLICATE_PENDING_REQUEST.
func toConnectError(err error) error {
	if err == nil {
		return nil
	}

	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}
	switch {
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}

	code := domainerrors.CodeOf(err)
	kind := code.Kind()

	msg := err.Error()
	if kind == domainerrors.KindInternal {
		// Driver and encoding details stay in the server log.
		msg = domainerrors.ErrInternal.Message
	}

	out := connect.NewError(kindCodes[kind], errors.New(msg))
	out.Meta().Set(middleware.ErrorCodeHeader, string(code))
	if retryAfter := domainerrors.RetryAfterOf(err); retryAfter > 0 {
		out.Meta().Set(RetryAfterHeader, strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
	}
	return out
}

// validationError turns validator failures into an INVALID_ARGUMENT domain error
// naming the first offending field.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		if fe.Param() != "" {
			return domainerrors.Validationf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
		}
		return domainerrors.Validationf("%s failed %s", fe.Field(), fe.Tag())
	}
	return domainerrors.ErrInvalidArgument.WithCause(err)
}

// ErrorCode extracts the domain failure code from an error returned by a Connect
// client. It returns "" for errors that did not come from this service.
func ErrorCode(err error) domainerrors.Code {
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		return ""
	}
	return domainerrors.Code(connectErr.Meta().Get(middleware.ErrorCodeHeader))
}
