package sqldb

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	domainerrors "github.com/mmynk/giftwiser/internal/errors"
	"github.com/mmynk/giftwiser/internal/models"
)

// CreateEvent persists a new event.
func (s *Store) CreateEvent(ctx context.Context, event *models.Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt == 0 {
		event.CreatedAt = s.now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		s.q("INSERT INTO events (id, name, created_by, created_at) VALUES (?, ?, ?, ?)"),
		event.ID, event.Name, event.CreatedBy, event.CreatedAt,
	)
	if err != nil {
		return s.wrap("insert event", err)
	}
	return nil
}

// AddMember adds a user to an event with the given role.
func (s *Store) AddMember(ctx context.Context, member *models.Member) error {
	if !member.Role.Valid() {
		return domainerrors.Validationf("invalid role: %q", member.Role)
	}
	if member.JoinedAt == 0 {
		member.JoinedAt = s.now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		s.q("INSERT INTO members (event_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)"),
		member.EventID, member.UserID, string(member.Role), member.JoinedAt,
	)
	if isUniqueViolation(err) {
		return domainerrors.Validationf("user %s is already a member of event %s", member.UserID, member.EventID)
	}
	if err != nil {
		return s.wrap("insert member", err)
	}
	return nil
}

// GetMember retrieves the membership of a user in an event.
func (s *Store) GetMember(ctx context.Context, eventID, userID string) (*models.Member, error) {
	m := &models.Member{}
	var role string
	err := s.db.QueryRowContext(ctx,
		s.q("SELECT event_id, user_id, role, joined_at FROM members WHERE event_id = ? AND user_id = ?"),
		eventID, userID,
	).Scan(&m.EventID, &m.UserID, &role, &m.JoinedAt)
	if nf := notFound(err, "member", fmt.Sprintf("%s/%s", eventID, userID)); nf != nil {
		return nil, nf
	}
	if err != nil {
		return nil, s.wrap("get member", err)
	}
	m.Role = models.Role(role)
	return m, nil
}

// ListMembers returns every member of an event.
func (s *Store) ListMembers(ctx context.Context, eventID string) ([]models.Member, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q("SELECT event_id, user_id, role, joined_at FROM members WHERE event_id = ? ORDER BY user_id"),
		eventID,
	)
	if err != nil {
		return nil, s.wrap("list members", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		var role string
		if err := rows.Scan(&m.EventID, &m.UserID, &role, &m.JoinedAt); err != nil {
			return nil, s.wrap("scan member", err)
		}
		m.Role = models.Role(role)
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("iterate members", err)
	}
	return members, nil
}
