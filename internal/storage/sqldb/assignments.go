package sqldb

import (
	"context"
)

// AssignGiver sets an item's giver if it is still unassigned and unclaimed.
func (s *Store) AssignGiver(ctx context.Context, itemID, giverID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE items SET assigned_giver_id = ?
		WHERE id = ? AND assigned_giver_id IS NULL
			AND NOT EXISTS (SELECT 1 FROM claims WHERE claims.item_id = ?)`),
		giverID, itemID, itemID,
	)
	if err != nil {
		return false, s.wrap("assign giver", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, s.wrap("read rows affected", err)
	}
	return n == 1, nil
}

// AssignRecipient sets an item's secret recipient if it is still unassigned and the
// chosen recipient neither claims the item nor is its assigned giver at the time of
// the write.
func (s *Store) AssignRecipient(ctx context.Context, itemID, recipientID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE items SET assigned_recipient_id = ?
		WHERE id = ? AND assigned_recipient_id IS NULL
			AND (assigned_giver_id IS NULL OR assigned_giver_id <> ?)
			AND NOT EXISTS (SELECT 1 FROM claims WHERE claims.item_id = ? AND claims.claimer_id = ?)`),
		recipientID, itemID, recipientID, itemID, recipientID,
	)
	if err != nil {
		return false, s.wrap("assign recipient", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, s.wrap("read rows affected", err)
	}
	return n == 1, nil
}

// MarkAssignmentExecuted stamps the list's last assignment time.
func (s *Store) MarkAssignmentExecuted(ctx context.Context, listID string, at int64) error {
	res, err := s.db.ExecContext(ctx,
		s.q("UPDATE lists SET random_assignment_executed_at = ? WHERE id = ?"),
		at, listID,
	)
	if err != nil {
		return s.wrap("mark assignment executed", err)
	}
	return s.expectRow(res, "list", listID)
}
