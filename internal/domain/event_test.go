package domain_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textrpg/internal/domain"
)

type recordingHandler struct {
	calls []string
	err   error
}

func (h *recordingHandler) OnCreated(_ context.Context, _ domain.LifecycleEvent, p domain.CreatedPayload) error {
	h.calls = append(h.calls, "created:"+p.Name)
	return h.err
}

func (h *recordingHandler) OnNameChanged(_ context.Context, _ domain.LifecycleEvent, p domain.NameChangedPayload) error {
	h.calls = append(h.calls, "renamed:"+p.OldName+"->"+p.NewName)
	return h.err
}

func (h *recordingHandler) OnLeveledUp(_ context.Context, _ domain.LifecycleEvent, _ domain.LeveledUpPayload) error {
	h.calls = append(h.calls, "leveled")
	return h.err
}

func (h *recordingHandler) OnDied(_ context.Context, _ domain.LifecycleEvent) error {
	h.calls = append(h.calls, "died")
	return h.err
}

func (h *recordingHandler) OnDeleted(_ context.Context, _ domain.LifecycleEvent) error {
	h.calls = append(h.calls, "deleted")
	return h.err
}

func TestDispatch_RoutesEveryKind(t *testing.T) {
	h := &recordingHandler{}
	ctx := context.Background()
	events := []domain.LifecycleEvent{
		domain.NewCreatedEvent("c1", "Hero", domain.DefaultStats, now),
		domain.NewNameChangedEvent("c1", "Hero", "Champion", now),
		domain.NewLeveledUpEvent("c1", 1, 3, now),
		domain.NewDiedEvent("c1", now),
		domain.NewDeletedEvent("c1", now),
	}
	for _, e := range events {
		require.NoError(t, domain.Dispatch(ctx, h, e))
	}
	assert.Equal(t, []string{"created:Hero", "renamed:Hero->Champion", "leveled", "died", "deleted"}, h.calls)
	assert.Len(t, domain.EventKinds, len(events))
}

func TestDispatch_UnknownKind(t *testing.T) {
	h := &recordingHandler{}
	e := domain.NewDiedEvent("c1", now)
	e.Kind = "character.teleported"

	err := domain.Dispatch(context.Background(), h, e)
	require.ErrorIs(t, err, domain.ErrUnknownEventKind)
	assert.Empty(t, h.calls)
}

func TestDispatch_MissingPayload(t *testing.T) {
	e := domain.NewLeveledUpEvent("c1", 1, 2, now)
	e.LeveledUp = nil
	err := domain.Dispatch(context.Background(), &recordingHandler{}, e)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDispatch_PropagatesHandlerError(t *testing.T) {
	boom := errors.New("boom")
	err := domain.Dispatch(context.Background(), &recordingHandler{err: boom}, domain.NewDeletedEvent("c1", now))
	require.ErrorIs(t, err, boom)
}

func TestEvent_IDsAreUnique(t *testing.T) {
	a := domain.NewDiedEvent("c1", now)
	b := domain.NewDiedEvent("c1", now)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, a.ID, 26)
}

func TestEvent_Notification(t *testing.T) {
	e := domain.NewLeveledUpEvent("c1", 2, 4, now)
	n := e.Notification()
	assert.Equal(t, e.ID, n.EventID)
	assert.Equal(t, "c1", n.CharacterID)
	assert.Equal(t, domain.EventLeveledUp, n.Kind)
	assert.Equal(t, "Character leveled up from 2 to 4!", n.Message)
	assert.Equal(t, now, n.Timestamp)
}
