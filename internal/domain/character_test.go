package domain_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textrpg/internal/domain"
)

func TestNewCharacter_Defaults(t *testing.T) {
	c := newHero(t)

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "Hero", c.Name)
	assert.Equal(t, 1, c.Level)
	assert.Equal(t, 35, c.Stats.TotalPower())
	assert.Equal(t, domain.Health{Current: 125, Max: 125}, c.Health)
	assert.Equal(t, domain.Experience{Current: 0, Max: 400, ForNextLevel: 400}, c.Experience)
	assert.Zero(t, c.Version)
	assert.Equal(t, now, c.CreatedAt)
	assert.Equal(t, now, c.UpdatedAt)
	require.NoError(t, c.Validate())
}

func TestNewCharacter_CustomStats(t *testing.T) {
	c, err := domain.NewCharacter("Mage", &domain.Stats{Strength: 4, Dexterity: 6, Intelligence: 30, Luck: 2}, now)
	require.NoError(t, err)
	assert.Equal(t, 135, c.Health.Max)
	assert.Equal(t, "Mage", c.Stats.PrimaryAttribute())
	assert.False(t, c.Stats.IsBalanced())
}

func TestNewCharacter_UniqueIDs(t *testing.T) {
	a := newHero(t)
	b := newHero(t)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestNewCharacter_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		stats *domain.Stats
	}{
		{"blank", "   ", nil},
		{"empty", "", nil},
		{"too long", strings.Repeat("a", domain.MaxNameLength+1), nil},
		{"markup", "<script>", nil},
		{"ampersand", "Tom & Jerry", nil},
		{"quote", `Bob"`, nil},
		{"negative stat", "Hero", &domain.Stats{Strength: -1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := domain.NewCharacter(tc.input, tc.stats, now)
			require.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestNewOwnedCharacter(t *testing.T) {
	c, err := domain.NewOwnedCharacter("player-1", "Hero", nil, now)
	require.NoError(t, err)
	assert.Equal(t, "player-1", c.OwnerID)
	assert.True(t, c.IsOwnedBy("player-1"))
	assert.False(t, c.IsOwnedBy("player-2"))
	assert.False(t, c.IsOwnedBy(""))
	require.NoError(t, c.Validate())

	unowned := newHero(t)
	assert.True(t, unowned.IsOwnedBy(""))

	for _, bad := range []string{" ", " player", "player\n", strings.Repeat("x", domain.MaxOwnerIDLength+1)} {
		_, err := domain.NewOwnedCharacter(bad, "Hero", nil, now)
		require.ErrorIs(t, err, domain.ErrInvalidInput, "owner %q", bad)
	}
}

func TestValidateName_AcceptsMaxLengthRunes(t *testing.T) {
	require.NoError(t, domain.ValidateName(strings.Repeat("é", domain.MaxNameLength)))
}

func TestTakeDamage(t *testing.T) {
	c := newHero(t)

	hurt, err := c.TakeDamage(25, now)
	require.NoError(t, err)
	assert.Equal(t, 100, hurt.Health.Current)
	assert.False(t, hurt.Health.IsDead())

	dead, err := hurt.TakeDamage(1_000_000, now)
	require.NoError(t, err)
	assert.Equal(t, 0, dead.Health.Current)
	assert.True(t, dead.Health.IsDead())

	_, err = c.TakeDamage(0, now)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestHeal(t *testing.T) {
	c := newHero(t)
	c, err := c.TakeDamage(50, now)
	require.NoError(t, err)

	healed, err := c.Heal(20, now)
	require.NoError(t, err)
	assert.Equal(t, 95, healed.Health.Current)

	full, err := healed.Heal(int(^uint(0)>>1), now)
	require.NoError(t, err)
	assert.True(t, full.Health.IsFull())

	_, err = c.Heal(-1, now)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRename(t *testing.T) {
	c := newHero(t)
	renamed, err := c.Rename("Champion", now)
	require.NoError(t, err)
	assert.Equal(t, "Champion", renamed.Name)
	assert.Equal(t, c.ID, renamed.ID)

	_, err = c.Rename("", now)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStats_PrimaryAttribute(t *testing.T) {
	tests := []struct {
		stats domain.Stats
		want  string
	}{
		{domain.Stats{Strength: 20, Dexterity: 1, Intelligence: 1, Luck: 1}, "Warrior"},
		{domain.Stats{Strength: 1, Dexterity: 20, Intelligence: 1, Luck: 1}, "Archer"},
		{domain.Stats{Strength: 1, Dexterity: 1, Intelligence: 20, Luck: 1}, "Mage"},
		{domain.Stats{Strength: 1, Dexterity: 1, Intelligence: 1, Luck: 20}, "Rogue"},
		{domain.Stats{Strength: 10, Dexterity: 10, Intelligence: 10, Luck: 10}, "Warrior"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.stats.PrimaryAttribute())
	}
}

func TestHealth_Percentage(t *testing.T) {
	assert.InDelta(t, 50.0, domain.Health{Current: 50, Max: 100}.Percentage(), 0.001)
	assert.Zero(t, domain.Health{}.Percentage())
}
