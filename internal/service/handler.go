// Package service exposes the engine over Connect.
//
// Handlers are built with connect.NewUnaryHandler over the plain Go request and
// response structs in types.go, encoded with JSONCodec. Every request is validated
// with validator/v10 before it reaches the engine, and every failure leaves through
// toConnectError.
package service

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"connectrpc.com/connect"
	"github.com/go-playground/validator/v10"

	"github.com/mmynk/giftwiser/internal/middleware"
)

// ErrNoCaller is returned when a handler runs without an authenticated caller.
var ErrNoCaller = errors.New("no authenticated caller")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// route collects the procedures of one service.
type route struct {
	mux  *http.ServeMux
	opts []connect.HandlerOption
}

func newRoute(opts []connect.HandlerOption) *route {
	return &route{
		mux:  http.NewServeMux(),
		opts: append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...),
	}
}

// handle registers fn under procedure, validating the request first and mapping
// domain errors on the way out.
func handle[Req, Res any](r *route, procedure string, fn func(context.Context, *connect.Request[Req]) (*connect.Response[Res], error)) {
	r.mux.Handle(procedure, connect.NewUnaryHandler(procedure,
		func(ctx context.Context, req *connect.Request[Req]) (*connect.Response[Res], error) {
			if err := validate.StructCtx(ctx, req.Msg); err != nil {
				return nil, toConnectError(validationError(err))
			}
			resp, err := fn(ctx, req)
			if err != nil {
				return nil, toConnectError(err)
			}
			return resp, nil
		},
		r.opts...,
	))
}

// caller returns the authenticated user ID.
func caller(ctx context.Context) (string, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, ErrNoCaller)
	}
	return userID, nil
}
