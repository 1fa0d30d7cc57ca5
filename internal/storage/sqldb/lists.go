package sqldb

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	domainerrors "github.com/mmynk/giftwiser/internal/errors"
	"github.com/mmynk/giftwiser/internal/models"
)

const listColumns = `id, event_id, owner_id, name, scope, random_assignment_enabled,
	random_assignment_mode, random_assignment_executed_at,
	random_receiver_assignment_enabled, created_at`

// CreateList persists a new list together with its recipients and viewers.
func (s *Store) CreateList(ctx context.Context, list *models.List) error {
	if list.ID == "" {
		list.ID = uuid.New().String()
	}
	if list.CreatedAt == 0 {
		list.CreatedAt = s.now().Unix()
	}
	if list.Scope == "" {
		list.Scope = models.ScopeEvent
	}
	if list.RandomAssignmentMode == "" {
		list.RandomAssignmentMode = models.ModeOnePerMember
	}
	if !list.RandomAssignmentMode.Valid() {
		return domainerrors.Validationf("invalid assignment mode: %q", list.RandomAssignmentMode)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			s.q(`INSERT INTO lists (`+listColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			list.ID, list.EventID, list.OwnerID, list.Name, string(list.Scope),
			list.RandomAssignmentEnabled, string(list.RandomAssignmentMode),
			list.RandomAssignmentExecutedAt, list.RandomReceiverAssignmentEnabled, list.CreatedAt,
		)
		if err != nil {
			return s.wrap("insert list", err)
		}

		for _, userID := range list.RecipientIDs {
			if _, err := tx.ExecContext(ctx,
				s.q("INSERT INTO list_recipients (list_id, user_id) VALUES (?, ?)"),
				list.ID, userID,
			); err != nil {
				return s.wrap("insert list recipient", err)
			}
		}

		for _, userID := range list.ViewerIDs {
			if _, err := tx.ExecContext(ctx,
				s.q("INSERT INTO list_viewers (list_id, user_id) VALUES (?, ?)"),
				list.ID, userID,
			); err != nil {
				return s.wrap("insert list viewer", err)
			}
		}
		return nil
	})
}

// GetList retrieves a list by ID with recipients and viewers.
func (s *Store) GetList(ctx context.Context, listID string) (*models.List, error) {
	list := &models.List{}
	var scope, mode string
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT `+listColumns+` FROM lists WHERE id = ?`),
		listID,
	).Scan(&list.ID, &list.EventID, &list.OwnerID, &list.Name, &scope,
		&list.RandomAssignmentEnabled, &mode, &list.RandomAssignmentExecutedAt,
		&list.RandomReceiverAssignmentEnabled, &list.CreatedAt)
	if nf := notFound(err, "list", listID); nf != nil {
		return nil, nf
	}
	if err != nil {
		return nil, s.wrap("get list", err)
	}
	list.Scope = models.VisibilityScope(scope)
	list.RandomAssignmentMode = models.AssignmentMode(mode)

	list.RecipientIDs, err = s.listUserIDs(ctx, "list_recipients", listID)
	if err != nil {
		return nil, err
	}
	list.ViewerIDs, err = s.listUserIDs(ctx, "list_viewers", listID)
	if err != nil {
		return nil, err
	}
	return list, nil
}

// UpdateAssignmentConfig replaces the assignment configuration of a list.
func (s *Store) UpdateAssignmentConfig(ctx context.Context, listID string, cfg models.AssignmentConfig) error {
	if cfg.RandomAssignmentMode == "" {
		cfg.RandomAssignmentMode = models.ModeOnePerMember
	}
	if !cfg.RandomAssignmentMode.Valid() {
		return domainerrors.Validationf("invalid assignment mode: %q", cfg.RandomAssignmentMode)
	}

	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE lists SET random_assignment_enabled = ?, random_assignment_mode = ?,
			random_receiver_assignment_enabled = ? WHERE id = ?`),
		cfg.RandomAssignmentEnabled, string(cfg.RandomAssignmentMode),
		cfg.RandomReceiverAssignmentEnabled, listID,
	)
	if err != nil {
		return s.wrap("update assignment config", err)
	}
	return s.expectRow(res, "list", listID)
}

// AddListRecipient marks a member as a designated recipient of a list.
func (s *Store) AddListRecipient(ctx context.Context, listID, userID string) error {
	return s.addListUser(ctx, "list_recipients", listID, userID)
}

// AddListViewer grants a member visibility of a selected-scope list.
func (s *Store) AddListViewer(ctx context.Context, listID, userID string) error {
	return s.addListUser(ctx, "list_viewers", listID, userID)
}

// AddAssignmentExclusion excludes a member from receiver assignment on a list.
func (s *Store) AddAssignmentExclusion(ctx context.Context, listID, userID string) error {
	return s.addListUser(ctx, "list_assignment_exclusions", listID, userID)
}

// ListAssignmentExclusions returns the members excluded from receiver assignment.
func (s *Store) ListAssignmentExclusions(ctx context.Context, listID string) ([]string, error) {
	return s.listUserIDs(ctx, "list_assignment_exclusions", listID)
}

// DeleteList removes a list. Items, claims and split requests cascade.
func (s *Store) DeleteList(ctx context.Context, listID string) error {
	res, err := s.db.ExecContext(ctx, s.q("DELETE FROM lists WHERE id = ?"), listID)
	if err != nil {
		return s.wrap("delete list", err)
	}
	return s.expectRow(res, "list", listID)
}

// addListUser inserts into one of the (list_id, user_id) link tables. Re-adding is a no-op.
// table is always a package constant, never caller input.
func (s *Store) addListUser(ctx context.Context, table, listID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		s.q("INSERT INTO "+table+" (list_id, user_id) VALUES (?, ?)"),
		listID, userID,
	)
	if isUniqueViolation(err) {
		return nil
	}
	if err != nil {
		return s.wrap("insert into "+table, err)
	}
	return nil
}

func (s *Store) listUserIDs(ctx context.Context, table, listID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q("SELECT user_id FROM "+table+" WHERE list_id = ? ORDER BY user_id"),
		listID,
	)
	if err != nil {
		return nil, s.wrap("query "+table, err)
	}
	ids, err := scanStrings(rows)
	if err != nil {
		return nil, s.wrap("scan "+table, err)
	}
	return ids, nil
}

// expectRow returns a not found error when an update or delete touched no rows.
func (s *Store) expectRow(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return s.wrap("read rows affected", err)
	}
	if n == 0 {
		return domainerrors.NotFoundf("%s not found: %s", what, id)
	}
	return nil
}
