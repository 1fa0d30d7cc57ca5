package sqldb

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	domainerrors "github.com/mmynk/giftwiser/internal/errors"
	"github.com/mmynk/giftwiser/internal/models"
)

const splitColumns = "id, item_id, requester_id, original_claimer_id, status, created_at, resolved_at"

func scanSplitRequest(row rowScanner) (*models.SplitRequest, error) {
	r := &models.SplitRequest{}
	var status string
	if err := row.Scan(&r.ID, &r.ItemID, &r.RequesterID, &r.OriginalClaimerID, &status, &r.CreatedAt, &r.ResolvedAt); err != nil {
		return nil, err
	}
	r.Status = models.SplitStatus(status)
	return r, nil
}

// CreateSplitRequest inserts a pending split request. The partial unique index on
// (item_id, requester_id) WHERE status = 'pending' rejects duplicates.
func (s *Store) CreateSplitRequest(ctx context.Context, req *models.SplitRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.CreatedAt == 0 {
		req.CreatedAt = s.now().Unix()
	}
	req.Status = models.SplitPending
	req.ResolvedAt = 0

	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO split_requests (`+splitColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		req.ID, req.ItemID, req.RequesterID, req.OriginalClaimerID, string(req.Status), req.CreatedAt, req.ResolvedAt,
	)
	if isUniqueViolation(err) {
		return domainerrors.ErrDuplicatePendingRequest
	}
	if err != nil {
		return s.wrap("insert split request", err)
	}
	return nil
}

// GetSplitRequest retrieves a split request by ID.
func (s *Store) GetSplitRequest(ctx context.Context, requestID string) (*models.SplitRequest, error) {
	req, err := scanSplitRequest(s.db.QueryRowContext(ctx,
		s.q(`SELECT `+splitColumns+` FROM split_requests WHERE id = ?`),
		requestID,
	))
	if nf := notFound(err, "split request", requestID); nf != nil {
		return nil, nf
	}
	if err != nil {
		return nil, s.wrap("get split request", err)
	}
	return req, nil
}

// AcceptSplitRequest resolves a pending request and inserts the shared claim in one
// transaction. The conditional status update guarantees a request is accepted once;
// UNIQUE(item_id, slot) guarantees an item never gets a third claim.
func (s *Store) AcceptSplitRequest(ctx context.Context, requestID string, resolvedAt int64) (*models.Claim, error) {
	var claim *models.Claim
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		req, err := s.resolvePending(ctx, tx, requestID, models.SplitAccepted, resolvedAt)
		if err != nil {
			return err
		}

		var primaries int
		if err := tx.QueryRowContext(ctx,
			s.q("SELECT COUNT(*) FROM claims WHERE item_id = ? AND claimer_id = ? AND slot = ?"),
			req.ItemID, req.OriginalClaimerID, int(models.SlotPrimary),
		).Scan(&primaries); err != nil {
			return s.wrap("check primary claim", err)
		}
		if primaries == 0 {
			return domainerrors.ErrItemNotClaimed
		}

		claim = &models.Claim{
			ID:        uuid.New().String(),
			ItemID:    req.ItemID,
			ClaimerID: req.RequesterID,
			Slot:      models.SlotShared,
			CreatedAt: resolvedAt,
		}
		_, err = tx.ExecContext(ctx,
			s.q(`INSERT INTO claims (`+claimColumns+`) VALUES (?, ?, ?, ?, ?, ?)`),
			claim.ID, claim.ItemID, claim.ClaimerID, int(claim.Slot), claim.Purchased, claim.CreatedAt,
		)
		if isUniqueViolation(err) {
			return domainerrors.ErrAlreadyClaimed.WithMessage("item is already shared or the requester already claims it")
		}
		if err != nil {
			return s.wrap("insert shared claim", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claim, nil
}

// DenySplitRequest resolves a pending request as denied.
func (s *Store) DenySplitRequest(ctx context.Context, requestID string, resolvedAt int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := s.resolvePending(ctx, tx, requestID, models.SplitDenied, resolvedAt)
		return err
	})
}

// ListSplitRequests returns requests addressed to an original claimer.
func (s *Store) ListSplitRequests(ctx context.Context, originalClaimerID string, status models.SplitStatus) ([]models.SplitRequest, error) {
	query := `SELECT ` + splitColumns + ` FROM split_requests WHERE original_claimer_id = ?`
	args := []any{originalClaimerID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, s.wrap("list split requests", err)
	}
	defer rows.Close()

	var out []models.SplitRequest
	for rows.Next() {
		r, err := scanSplitRequest(rows)
		if err != nil {
			return nil, s.wrap("scan split request", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("iterate split requests", err)
	}
	return out, nil
}

// resolvePending moves a pending request to a terminal status inside tx.
func (s *Store) resolvePending(ctx context.Context, tx *sql.Tx, requestID string, to models.SplitStatus, resolvedAt int64) (*models.SplitRequest, error) {
	req, err := scanSplitRequest(tx.QueryRowContext(ctx,
		s.q(`SELECT `+splitColumns+` FROM split_requests WHERE id = ?`),
		requestID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainerrors.NotFoundf("split request not found: %s", requestID)
	}
	if err != nil {
		return nil, s.wrap("get split request", err)
	}
	if req.Status != models.SplitPending {
		return nil, domainerrors.ErrAlreadyResolved
	}

	res, err := tx.ExecContext(ctx,
		s.q("UPDATE split_requests SET status = ?, resolved_at = ? WHERE id = ? AND status = ?"),
		string(to), resolvedAt, requestID, string(models.SplitPending),
	)
	if err != nil {
		return nil, s.wrap("resolve split request", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, s.wrap("read rows affected", err)
	}
	if n == 0 {
		return nil, domainerrors.ErrAlreadyResolved
	}

	req.Status = to
	req.ResolvedAt = resolvedAt
	return req, nil
}
