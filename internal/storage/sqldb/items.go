package sqldb

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/mmynk/giftwiser/internal/models"
)

// CreateItem persists a new item. Assignment fields are never taken from the caller.
func (s *Store) CreateItem(ctx context.Context, item *models.Item) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.CreatedAt == 0 {
		item.CreatedAt = s.now().Unix()
	}
	item.AssignedGiverID = ""
	item.AssignedRecipientID = ""

	_, err := s.db.ExecContext(ctx,
		s.q("INSERT INTO items (id, list_id, description, created_at) VALUES (?, ?, ?, ?)"),
		item.ID, item.ListID, item.Description, item.CreatedAt,
	)
	if err != nil {
		return s.wrap("insert item", err)
	}
	return nil
}

// GetItem retrieves an item with its event and current claimers.
func (s *Store) GetItem(ctx context.Context, itemID string) (*models.Item, error) {
	item := &models.Item{}
	var giver, recipient sql.NullString
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT i.id, i.list_id, l.event_id, i.description,
			i.assigned_giver_id, i.assigned_recipient_id, i.created_at
		FROM items i JOIN lists l ON l.id = i.list_id
		WHERE i.id = ?`),
		itemID,
	).Scan(&item.ID, &item.ListID, &item.EventID, &item.Description, &giver, &recipient, &item.CreatedAt)
	if nf := notFound(err, "item", itemID); nf != nil {
		return nil, nf
	}
	if err != nil {
		return nil, s.wrap("get item", err)
	}
	item.AssignedGiverID = giver.String
	item.AssignedRecipientID = recipient.String

	rows, err := s.db.QueryContext(ctx,
		s.q("SELECT claimer_id FROM claims WHERE item_id = ? ORDER BY slot"),
		itemID,
	)
	if err != nil {
		return nil, s.wrap("get item claimers", err)
	}
	item.ClaimerIDs, err = scanStrings(rows)
	if err != nil {
		return nil, s.wrap("scan item claimers", err)
	}
	return item, nil
}

// ListItems returns all items on a list in creation order.
func (s *Store) ListItems(ctx context.Context, listID string) ([]models.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT i.id, i.list_id, l.event_id, i.description,
			i.assigned_giver_id, i.assigned_recipient_id, i.created_at
		FROM items i JOIN lists l ON l.id = i.list_id
		WHERE i.list_id = ?
		ORDER BY i.created_at, i.id`),
		listID,
	)
	if err != nil {
		return nil, s.wrap("list items", err)
	}
	defer rows.Close()

	var items []models.Item
	index := make(map[string]int)
	for rows.Next() {
		var item models.Item
		var giver, recipient sql.NullString
		if err := rows.Scan(&item.ID, &item.ListID, &item.EventID, &item.Description,
			&giver, &recipient, &item.CreatedAt); err != nil {
			return nil, s.wrap("scan item", err)
		}
		item.AssignedGiverID = giver.String
		item.AssignedRecipientID = recipient.String
		index[item.ID] = len(items)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("iterate items", err)
	}
	rows.Close()

	claimRows, err := s.db.QueryContext(ctx,
		s.q(`SELECT c.item_id, c.claimer_id
		FROM claims c JOIN items i ON i.id = c.item_id
		WHERE i.list_id = ?
		ORDER BY c.item_id, c.slot`),
		listID,
	)
	if err != nil {
		return nil, s.wrap("list item claimers", err)
	}
	defer claimRows.Close()

	for claimRows.Next() {
		var itemID, claimerID string
		if err := claimRows.Scan(&itemID, &claimerID); err != nil {
			return nil, s.wrap("scan item claimer", err)
		}
		if i, ok := index[itemID]; ok {
			items[i].ClaimerIDs = append(items[i].ClaimerIDs, claimerID)
		}
	}
	if err := claimRows.Err(); err != nil {
		return nil, s.wrap("iterate item claimers", err)
	}
	return items, nil
}

// DeleteItem removes an item. Claims and split requests cascade.
func (s *Store) DeleteItem(ctx context.Context, itemID string) error {
	res, err := s.db.ExecContext(ctx, s.q("DELETE FROM items WHERE id = ?"), itemID)
	if err != nil {
		return s.wrap("delete item", err)
	}
	return s.expectRow(res, "item", itemID)
}
