package sqldb

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	domainerrors "github.com/mmynk/giftwiser/internal/errors"
	"github.com/mmynk/giftwiser/internal/models"
)

const claimColumns = "id, item_id, claimer_id, slot, purchased, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(row rowScanner) (*models.Claim, error) {
	c := &models.Claim{}
	var slot int
	if err := row.Scan(&c.ID, &c.ItemID, &c.ClaimerID, &slot, &c.Purchased, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Slot = models.ClaimSlot(slot)
	return c, nil
}

// CreateClaim inserts the primary claim on an item. UNIQUE(item_id, slot) is the
// serialization point: of two concurrent inserts exactly one commits.
func (s *Store) CreateClaim(ctx context.Context, itemID, userID string) (*models.Claim, bool, error) {
	claim := &models.Claim{
		ID:        uuid.New().String(),
		ItemID:    itemID,
		ClaimerID: userID,
		Slot:      models.SlotPrimary,
		CreatedAt: s.now().Unix(),
	}

	var existing *models.Claim
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		claims, err := s.claimsForItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		for i := range claims {
			if claims[i].ClaimerID == userID {
				existing = &claims[i]
				return nil
			}
		}
		if len(claims) > 0 {
			return domainerrors.ErrAlreadyClaimed
		}

		_, err = tx.ExecContext(ctx,
			s.q(`INSERT INTO claims (`+claimColumns+`) VALUES (?, ?, ?, ?, ?, ?)`),
			claim.ID, claim.ItemID, claim.ClaimerID, int(claim.Slot), claim.Purchased, claim.CreatedAt,
		)
		if isUniqueViolation(err) {
			return domainerrors.ErrAlreadyClaimed
		}
		if err != nil {
			return s.wrap("insert claim", err)
		}
		return nil
	})

	if errors.Is(err, domainerrors.ErrAlreadyClaimed) {
		// A concurrent call by the same user may have won the race.
		if own, lookupErr := s.claimByUser(ctx, itemID, userID); lookupErr == nil && own != nil {
			return own, false, nil
		}
		return nil, false, err
	}
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	return claim, true, nil
}

// DeleteClaim removes userID's claim. When the primary claimer leaves, the shared
// claim (if any) becomes primary and pending requests addressed to the leaver are denied.
func (s *Store) DeleteClaim(ctx context.Context, itemID, userID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var slot int
		err := tx.QueryRowContext(ctx,
			s.q("SELECT slot FROM claims WHERE item_id = ? AND claimer_id = ?"),
			itemID, userID,
		).Scan(&slot)
		if errors.Is(err, sql.ErrNoRows) {
			return domainerrors.ErrNotClaimedByYou
		}
		if err != nil {
			return s.wrap("get claim slot", err)
		}

		if _, err := tx.ExecContext(ctx,
			s.q("DELETE FROM claims WHERE item_id = ? AND claimer_id = ?"),
			itemID, userID,
		); err != nil {
			return s.wrap("delete claim", err)
		}

		if models.ClaimSlot(slot) != models.SlotPrimary {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			s.q("UPDATE claims SET slot = ? WHERE item_id = ? AND slot = ?"),
			int(models.SlotPrimary), itemID, int(models.SlotShared),
		); err != nil {
			return s.wrap("promote shared claim", err)
		}

		if _, err := tx.ExecContext(ctx,
			s.q(`UPDATE split_requests SET status = ?, resolved_at = ?
				WHERE item_id = ? AND original_claimer_id = ? AND status = ?`),
			string(models.SplitDenied), s.now().Unix(), itemID, userID, string(models.SplitPending),
		); err != nil {
			return s.wrap("deny orphaned split requests", err)
		}
		return nil
	})
}

// GetClaim retrieves a claim by ID.
func (s *Store) GetClaim(ctx context.Context, claimID string) (*models.Claim, error) {
	claim, err := scanClaim(s.db.QueryRowContext(ctx,
		s.q(`SELECT `+claimColumns+` FROM claims WHERE id = ?`),
		claimID,
	))
	if nf := notFound(err, "claim", claimID); nf != nil {
		return nil, nf
	}
	if err != nil {
		return nil, s.wrap("get claim", err)
	}
	return claim, nil
}

// SetClaimPurchased updates the purchased flag of a claim owned by userID. A claim
// that does not exist is reported as not claimed by the caller.
func (s *Store) SetClaimPurchased(ctx context.Context, claimID, userID string, purchased bool) (*models.Claim, error) {
	res, err := s.db.ExecContext(ctx,
		s.q("UPDATE claims SET purchased = ? WHERE id = ? AND claimer_id = ?"),
		purchased, claimID, userID,
	)
	if err != nil {
		return nil, s.wrap("update claim purchased", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, s.wrap("read rows affected", err)
	}

	claim, err := s.GetClaim(ctx, claimID)
	if domainerrors.Is(err, domainerrors.ErrNotFound) {
		return nil, domainerrors.ErrNotClaimedByYou
	}
	if err != nil {
		return nil, err
	}
	if n == 0 || claim.ClaimerID != userID {
		return nil, domainerrors.ErrNotClaimedByYou
	}
	return claim, nil
}

// ListClaims returns the claims on an item, primary first.
func (s *Store) ListClaims(ctx context.Context, itemID string) ([]models.Claim, error) {
	return s.claimsForItem(ctx, s.db, itemID)
}

// CountClaimedItems counts items with at least one claim, per list.
func (s *Store) CountClaimedItems(ctx context.Context, listIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(listIDs))
	if len(listIDs) == 0 {
		return counts, nil
	}

	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT i.list_id, COUNT(DISTINCT c.item_id)
		FROM claims c JOIN items i ON i.id = c.item_id
		WHERE i.list_id IN (`+placeholders(len(listIDs))+`)
		GROUP BY i.list_id`),
		stringArgs(listIDs)...,
	)
	if err != nil {
		return nil, s.wrap("count claimed items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var listID string
		var n int
		if err := rows.Scan(&listID, &n); err != nil {
			return nil, s.wrap("scan claim count", err)
		}
		counts[listID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("iterate claim counts", err)
	}
	return counts, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) claimsForItem(ctx context.Context, q querier, itemID string) ([]models.Claim, error) {
	rows, err := q.QueryContext(ctx,
		s.q(`SELECT `+claimColumns+` FROM claims WHERE item_id = ? ORDER BY slot`),
		itemID,
	)
	if err != nil {
		return nil, s.wrap("list claims", err)
	}
	defer rows.Close()

	var claims []models.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, s.wrap("scan claim", err)
		}
		claims = append(claims, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("iterate claims", err)
	}
	return claims, nil
}

func (s *Store) claimByUser(ctx context.Context, itemID, userID string) (*models.Claim, error) {
	claim, err := scanClaim(s.db.QueryRowContext(ctx,
		s.q(`SELECT `+claimColumns+` FROM claims WHERE item_id = ? AND claimer_id = ?`),
		itemID, userID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, s.wrap("get claim by user", err)
	}
	return claim, nil
}
