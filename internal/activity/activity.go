// Package activity records engine events for the notification subsystem.
//
// The engine only emits activity. Delivery (push, email, in-app feed) belongs to the
// notification subsystem, which reads the outbox.
package activity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mmynk/giftwiser/internal/models"
	"github.com/mmynk/giftwiser/internal/resilience"
	"github.com/mmynk/giftwiser/internal/storage"
)

// Sink accepts activity for asynchronous delivery.
type Sink interface {
	Post(ctx context.Context, a models.Activity) error
}

// Outbox is a Sink that persists activity in the store.
type Outbox struct {
	store  storage.ActivityStore
	guard  *resilience.Guard
	logger *slog.Logger
	now    func() time.Time
}

// Ensure Outbox implements Sink
var _ Sink = (*Outbox)(nil)

// NewOutbox creates an outbox writing to store through guard.
func NewOutbox(store storage.ActivityStore, guard *resilience.Guard, logger *slog.Logger) *Outbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Outbox{store: store, guard: guard, logger: logger, now: time.Now}
}

// Post encodes and appends a to the outbox.
func (o *Outbox) Post(ctx context.Context, a models.Activity) error {
	payload, err := EncodePayload(a.Attributes)
	if err != nil {
		return err
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt == 0 {
		a.CreatedAt = o.now().Unix()
	}

	rec := &models.ActivityRecord{
		ID:           a.ID,
		Kind:         a.Kind,
		EventID:      a.EventID,
		ActorID:      a.ActorID,
		TargetUserID: a.TargetUserID,
		ListID:       a.ListID,
		ItemID:       a.ItemID,
		Payload:      payload,
		CreatedAt:    a.CreatedAt,
	}
	if err := o.guard.Do(ctx, func(ctx context.Context) error {
		return o.store.AppendActivity(ctx, rec)
	}); err != nil {
		return err
	}

	o.logger.Debug("Activity recorded",
		"kind", string(a.Kind),
		"event_id", a.EventID,
		"target_user_id", a.TargetUserID)
	return nil
}

// List returns decoded activity of an event created at or after since.
func (o *Outbox) List(ctx context.Context, eventID string, since int64, limit int) ([]models.Activity, error) {
	recs, err := resilience.Call(ctx, o.guard, func(ctx context.Context) ([]models.ActivityRecord, error) {
		return o.store.ListActivity(ctx, eventID, since, limit)
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.Activity, 0, len(recs))
	for _, rec := range recs {
		attrs, err := DecodePayload(rec.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode activity %s: %w", rec.ID, err)
		}
		out = append(out, models.Activity{
			ID:           rec.ID,
			Kind:         rec.Kind,
			EventID:      rec.EventID,
			ActorID:      rec.ActorID,
			TargetUserID: rec.TargetUserID,
			ListID:       rec.ListID,
			ItemID:       rec.ItemID,
			Attributes:   attrs,
			CreatedAt:    rec.CreatedAt,
		})
	}
	return out, nil
}

// EncodePayload serializes attributes as a protobuf Struct. Nil or empty attributes
// encode to nil.
func EncodePayload(attrs map[string]any) ([]byte, error) {
	if len(attrs) == 0 {
		return nil, nil
	}
	s, err := structpb.NewStruct(attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode activity attributes: %w", err)
	}
	b, err := proto.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal activity attributes: %w", err)
	}
	return b, nil
}

// DecodePayload reverses EncodePayload. Numbers decode as float64.
func DecodePayload(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return map[string]any{}, nil
	}
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return s.AsMap(), nil
}
