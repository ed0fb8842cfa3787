package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textrpg/internal/adapter/memory"
	"textrpg/internal/app"
	"textrpg/internal/domain"
)

func TestNotifier_ForwardsEveryKind(t *testing.T) {
	sink := &memory.Notifications{}
	n := app.NewNotifier(sink, testOptions().Logger)
	ctx := context.Background()

	events := []domain.LifecycleEvent{
		domain.NewCreatedEvent("c1", "Hero", domain.DefaultStats, fixedNow),
		domain.NewNameChangedEvent("c1", "Hero", "Champion", fixedNow),
		domain.NewLeveledUpEvent("c1", 1, 2, fixedNow),
		domain.NewDiedEvent("c1", fixedNow),
		domain.NewDeletedEvent("c1", fixedNow),
	}
	for _, e := range events {
		require.NoError(t, n.Handle(ctx, e))
	}

	got := sink.All()
	require.Len(t, got, len(events))
	for i, e := range events {
		assert.Equal(t, e.ID, got[i].EventID)
		assert.Equal(t, e.Kind, got[i].Kind)
		assert.NotEmpty(t, got[i].Message)
	}
	assert.Equal(t, `Character "Hero" was created!`, got[0].Message)
}

func TestNotifier_RejectsUnknownKind(t *testing.T) {
	sink := &memory.Notifications{}
	n := app.NewNotifier(sink, nil)
	e := domain.NewDeletedEvent("c1", fixedNow)
	e.Kind = "character.unknown"

	require.ErrorIs(t, n.Handle(context.Background(), e), domain.ErrUnknownEventKind)
	assert.Empty(t, sink.All())
}
