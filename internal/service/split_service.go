package service

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/giftwiser/internal/models"
	"github.com/mmynk/giftwiser/internal/splits"
)

const (
	SplitServiceName = "giftwiser.v1.SplitService"

	SplitServiceRequestSplitProcedure      = "/giftwiser.v1.SplitService/RequestSplit"
	SplitServiceAcceptSplitProcedure       = "/giftwiser.v1.SplitService/AcceptSplit"
	SplitServiceDenySplitProcedure         = "/giftwiser.v1.SplitService/DenySplit"
	SplitServiceListSplitRequestsProcedure = "/giftwiser.v1.SplitService/ListSplitRequests"
)

// SplitService implements the Connect SplitService on top of the split workflow.
type SplitService struct {
	workflow *splits.Workflow
}

// NewSplitService creates a new SplitService.
func NewSplitService(w *splits.Workflow) *SplitService {
	return &SplitService{workflow: w}
}

// NewSplitServiceHandler builds an HTTP handler serving every SplitService procedure.
func NewSplitServiceHandler(svc *SplitService, opts ...connect.HandlerOption) (string, http.Handler) {
	r := newRoute(opts)
	handle(r, SplitServiceRequestSplitProcedure, svc.RequestSplit)
	handle(r, SplitServiceAcceptSplitProcedure, svc.AcceptSplit)
	handle(r, SplitServiceDenySplitProcedure, svc.DenySplit)
	handle(r, SplitServiceListSplitRequestsProcedure, svc.ListSplitRequests)
	return "/" + SplitServiceName + "/", r.mux
}

// RequestSplit asks the current claimer of an item to share it with the caller.
func (s *SplitService) RequestSplit(ctx context.Context, req *connect.Request[RequestSplitRequest]) (*connect.Response[SplitRequestResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	split, err := s.workflow.RequestSplit(ctx, req.Msg.ItemID, userID)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&SplitRequestResponse{Request: splitToWire(split)}), nil
}

// AcceptSplit accepts a pending request addressed to the caller.
func (s *SplitService) AcceptSplit(ctx context.Context, req *connect.Request[ResolveSplitRequest]) (*connect.Response[ClaimResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	claim, err := s.workflow.AcceptSplit(ctx, req.Msg.RequestID, userID)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&ClaimResponse{Claim: claimToWire(claim)}), nil
}

// DenySplit denies a pending request addressed to the caller.
func (s *SplitService) DenySplit(ctx context.Context, req *connect.Request[ResolveSplitRequest]) (*connect.Response[Empty], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.workflow.DenySplit(ctx, req.Msg.RequestID, userID); err != nil {
		return nil, err
	}
	return connect.NewResponse(&Empty{}), nil
}

// ListSplitRequests returns requests addressed to the caller.
func (s *SplitService) ListSplitRequests(ctx context.Context, req *connect.Request[ListSplitRequestsRequest]) (*connect.Response[ListSplitRequestsResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	reqs, err := s.workflow.ListSplitRequests(ctx, userID, models.SplitStatus(req.Msg.Status))
	if err != nil {
		return nil, err
	}

	out := make([]*SplitRequest, len(reqs))
	for i := range reqs {
		out[i] = splitToWire(&reqs[i])
	}
	return connect.NewResponse(&ListSplitRequestsResponse{Requests: out}), nil
}
