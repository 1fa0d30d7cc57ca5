package service

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/giftwiser/internal/assign"
	domainerrors "github.com/mmynk/giftwiser/internal/errors"
)

const (
	AssignmentServiceName = "giftwiser.v1.AssignmentService"

	AssignmentServiceAssignItemsProcedure           = "/giftwiser.v1.AssignmentService/AssignItems"
	AssignmentServiceAssignReceiversProcedure       = "/giftwiser.v1.AssignmentService/AssignReceivers"
	AssignmentServiceRunCombinedAssignmentProcedure = "/giftwiser.v1.AssignmentService/RunCombinedAssignment"
)

// AssignmentService implements the Connect AssignmentService.
type AssignmentService struct {
	engine *assign.Engine
}

// NewAssignmentService creates a new AssignmentService.
func NewAssignmentService(e *assign.Engine) *AssignmentService {
	return &AssignmentService{engine: e}
}

// NewAssignmentServiceHandler builds an HTTP handler serving every AssignmentService
// procedure.
func NewAssignmentServiceHandler(svc *AssignmentService, opts ...connect.HandlerOption) (string, http.Handler) {
	r := newRoute(opts)
	handle(r, AssignmentServiceAssignItemsProcedure, svc.AssignItems)
	handle(r, AssignmentServiceAssignReceiversProcedure, svc.AssignReceivers)
	handle(r, AssignmentServiceRunCombinedAssignmentProcedure, svc.RunCombinedAssignment)
	return "/" + AssignmentServiceName + "/", r.mux
}

// AssignItems runs random giver assignment on a list.
func (s *AssignmentService) AssignItems(ctx context.Context, req *connect.Request[AssignmentRequest]) (*connect.Response[AssignItemsResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.AssignItemsRandomly(ctx, req.Msg.ListID, userID)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(itemResultToWire(res)), nil
}

// AssignReceivers runs anonymous receiver assignment on a list.
func (s *AssignmentService) AssignReceivers(ctx context.Context, req *connect.Request[AssignmentRequest]) (*connect.Response[AssignReceiversResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.ExecuteRandomReceiverAssignment(ctx, req.Msg.ListID, userID)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(receiverResultToWire(res)), nil
}

// RunCombinedAssignment runs giver then receiver assignment. A failure of the
// receiver step is reported in the response, not as an RPC error, because the giver
// assignments it follows are already committed.
func (s *AssignmentService) RunCombinedAssignment(ctx context.Context, req *connect.Request[AssignmentRequest]) (*connect.Response[RunCombinedResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.RunCombined(ctx, req.Msg.ListID, userID)
	if err != nil && res.Items == nil {
		return nil, err
	}

	out := &RunCombinedResponse{
		Items:     itemResultToWire(res.Items),
		Receivers: receiverResultToWire(res.Receivers),
	}
	if err != nil {
		code := domainerrors.CodeOf(err)
		out.ReceiverErrorCode = string(code)
		out.ReceiverError = err.Error()
		if code.Kind() == domainerrors.KindInternal {
			out.ReceiverError = domainerrors.ErrInternal.Message
		}
	}
	return connect.NewResponse(out), nil
}
