package activity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/giftwiser/internal/models"
)

type memStore struct {
	recs []models.ActivityRecord
	err  error
}

func (m *memStore) AppendActivity(_ context.Context, rec *models.ActivityRecord) error {
	if m.err != nil {
		return m.err
	}
	m.recs = append(m.recs, *rec)
	return nil
}

func (m *memStore) ListActivity(_ context.Context, eventID string, since int64, limit int) ([]models.ActivityRecord, error) {
	var out []models.ActivityRecord
	for _, r := range m.recs {
		if r.EventID == eventID && r.CreatedAt >= since {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestPayloadRoundTrip(t *testing.T) {
	b, err := EncodePayload(map[string]any{"request_id": "r1", "assignments_made": 3})
	require.NoError(t, err)

	attrs, err := DecodePayload(b)
	require.NoError(t, err)
	assert.Equal(t, "r1", attrs["request_id"])
	assert.Equal(t, 3.0, attrs["assignments_made"])

	empty, err := EncodePayload(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestEncodePayload_RejectsUnsupportedValues(t *testing.T) {
	_, err := EncodePayload(map[string]any{"bad": struct{}{}})
	assert.Error(t, err)
}

func TestOutbox_PostAndList(t *testing.T) {
	store := &memStore{}
	outbox := NewOutbox(store, nil, nil)
	ctx := context.Background()

	err := outbox.Post(ctx, models.Activity{
		Kind:         models.ActivitySplitRequested,
		EventID:      "e1",
		ActorID:      "alice",
		TargetUserID: "bob",
		ItemID:       "i1",
		Attributes:   map[string]any{"request_id": "r1"},
	})
	require.NoError(t, err)
	require.Len(t, store.recs, 1)
	assert.NotEmpty(t, store.recs[0].ID)
	assert.NotZero(t, store.recs[0].CreatedAt)

	got, err := outbox.List(ctx, "e1", 0, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "bob", got[0].TargetUserID)
	assert.Equal(t, "r1", got[0].Attributes["request_id"])
}

func TestOutbox_PostPropagatesStoreError(t *testing.T) {
	outbox := NewOutbox(&memStore{err: errors.New("disk full")}, nil, nil)
	err := outbox.Post(context.Background(), models.Activity{Kind: models.ActivityItemClaimed, EventID: "e1"})
	assert.EqualError(t, err, "disk full")
}
