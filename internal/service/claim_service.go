package service

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/giftwiser/internal/ledger"
)

const (
	ClaimServiceName = "giftwiser.v1.ClaimService"

	ClaimServiceClaimProcedure        = "/giftwiser.v1.ClaimService/Claim"
	ClaimServiceUnclaimProcedure      = "/giftwiser.v1.ClaimService/Unclaim"
	ClaimServiceSetPurchasedProcedure = "/giftwiser.v1.ClaimService/SetPurchased"
	ClaimServiceClaimCountsProcedure  = "/giftwiser.v1.ClaimService/ClaimCounts"
	ClaimServiceListClaimsProcedure   = "/giftwiser.v1.ClaimService/ListClaims"
)

// ClaimService implements the Connect ClaimService on top of the claim ledger.
type ClaimService struct {
	ledger *ledger.Ledger
}

// NewClaimService creates a new ClaimService.
func NewClaimService(l *ledger.Ledger) *ClaimService {
	return &ClaimService{ledger: l}
}

// NewClaimServiceHandler builds an HTTP handler serving every ClaimService procedure.
// It returns the path prefix to mount the handler on.
func NewClaimServiceHandler(svc *ClaimService, opts ...connect.HandlerOption) (string, http.Handler) {
	r := newRoute(opts)
	handle(r, ClaimServiceClaimProcedure, svc.Claim)
	handle(r, ClaimServiceUnclaimProcedure, svc.Unclaim)
	handle(r, ClaimServiceSetPurchasedProcedure, svc.SetPurchased)
	handle(r, ClaimServiceClaimCountsProcedure, svc.ClaimCounts)
	handle(r, ClaimServiceListClaimsProcedure, svc.ListClaims)
	return "/" + ClaimServiceName + "/", r.mux
}

// Claim reserves an item for the caller.
func (s *ClaimService) Claim(ctx context.Context, req *connect.Request[ClaimRequest]) (*connect.Response[ClaimResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	claim, err := s.ledger.Claim(ctx, req.Msg.ItemID, userID)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&ClaimResponse{Claim: claimToWire(claim)}), nil
}

// Unclaim releases the caller's claim on an item.
func (s *ClaimService) Unclaim(ctx context.Context, req *connect.Request[UnclaimRequest]) (*connect.Response[Empty], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.ledger.Unclaim(ctx, req.Msg.ItemID, userID); err != nil {
		return nil, err
	}
	return connect.NewResponse(&Empty{}), nil
}

// SetPurchased toggles the purchased flag on one of the caller's claims.
func (s *ClaimService) SetPurchased(ctx context.Context, req *connect.Request[SetPurchasedRequest]) (*connect.Response[ClaimResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	claim, err := s.ledger.SetPurchased(ctx, req.Msg.ClaimID, userID, req.Msg.Purchased)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&ClaimResponse{Claim: claimToWire(claim)}), nil
}

// ClaimCounts returns per-list claimed-item counts as visible to the caller.
func (s *ClaimService) ClaimCounts(ctx context.Context, req *connect.Request[ClaimCountsRequest]) (*connect.Response[ClaimCountsResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.ledger.ClaimCounts(ctx, userID, req.Msg.ListIDs)
	if err != nil {
		return nil, err
	}

	out := make([]ListClaimCount, len(counts))
	for i, c := range counts {
		out[i] = ListClaimCount{ListID: c.ListID, Count: c.Count, Withheld: c.Withheld}
	}
	return connect.NewResponse(&ClaimCountsResponse{Counts: out}), nil
}

// ListClaims returns the claim state of an item filtered for the caller.
func (s *ClaimService) ListClaims(ctx context.Context, req *connect.Request[ListClaimsRequest]) (*connect.Response[ListClaimsResponse], error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.ledger.ItemClaims(ctx, userID, req.Msg.ItemID)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(claimViewToWire(view)), nil
}
