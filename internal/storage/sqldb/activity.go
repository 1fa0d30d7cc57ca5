package sqldb

import (
	"context"

	"github.com/google/uuid"

	"github.com/mmynk/giftwiser/internal/models"
)

// AppendActivity writes an activity record to the outbox.
func (s *Store) AppendActivity(ctx context.Context, rec *models.ActivityRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt == 0 {
		rec.CreatedAt = s.now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO activity (id, kind, event_id, actor_id, target_user_id, list_id, item_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.ID, string(rec.Kind), rec.EventID, rec.ActorID, rec.TargetUserID,
		rec.ListID, rec.ItemID, rec.Payload, rec.CreatedAt,
	)
	if err != nil {
		return s.wrap("insert activity", err)
	}
	return nil
}

// ListActivity returns an event's activity created at or after since, oldest first.
func (s *Store) ListActivity(ctx context.Context, eventID string, since int64, limit int) ([]models.ActivityRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT id, kind, event_id, actor_id, target_user_id, list_id, item_id, payload, created_at
		FROM activity
		WHERE event_id = ? AND created_at >= ?
		ORDER BY created_at, id
		LIMIT ?`),
		eventID, since, limit,
	)
	if err != nil {
		return nil, s.wrap("list activity", err)
	}
	defer rows.Close()

	var out []models.ActivityRecord
	for rows.Next() {
		var rec models.ActivityRecord
		var kind string
		if err := rows.Scan(&rec.ID, &kind, &rec.EventID, &rec.ActorID, &rec.TargetUserID,
			&rec.ListID, &rec.ItemID, &rec.Payload, &rec.CreatedAt); err != nil {
			return nil, s.wrap("scan activity", err)
		}
		rec.Kind = models.ActivityKind(kind)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("iterate activity", err)
	}
	return out, nil
}
