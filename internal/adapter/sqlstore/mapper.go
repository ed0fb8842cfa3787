package sqlstore

import (
	"fmt"
	"time"

	"textrpg/internal/domain"
)

const columns = "id, name, level, experience_current, experience_max, health_current, health_max, " +
	"strength, dexterity, intelligence, luck, version, created_at, updated_at, owner_id"

// characterRow is the flat storage shape of a character. Timestamps are
// unix microseconds so every dialect stores them identically.
type characterRow struct {
	ID                string
	Name              string
	Level             int64
	ExperienceCurrent int64
	ExperienceMax     int64
	HealthCurrent     int64
	HealthMax         int64
	Strength          int64
	Dexterity         int64
	Intelligence      int64
	Luck              int64
	Version           int64
	CreatedAt         int64
	UpdatedAt         int64
	OwnerID           string
}

func toRow(c domain.Character) characterRow {
	return characterRow{
		ID:                c.ID,
		Name:              c.Name,
		Level:             int64(c.Level),
		ExperienceCurrent: c.Experience.Current,
		ExperienceMax:     c.Experience.Max,
		HealthCurrent:     int64(c.Health.Current),
		HealthMax:         int64(c.Health.Max),
		Strength:          int64(c.Stats.Strength),
		Dexterity:         int64(c.Stats.Dexterity),
		Intelligence:      int64(c.Stats.Intelligence),
		Luck:              int64(c.Stats.Luck),
		Version:           c.Version,
		CreatedAt:         c.CreatedAt.UnixMicro(),
		UpdatedAt:         c.UpdatedAt.UnixMicro(),
		OwnerID:           c.OwnerID,
	}
}

// toDomain rebuilds the aggregate and rejects rows that break its invariants.
func (r characterRow) toDomain() (domain.Character, error) {
	c := domain.Character{
		ID:      r.ID,
		OwnerID: r.OwnerID,
		Name:    r.Name,
		Level:   int(r.Level),
		Experience: domain.Experience{
			Current:      r.ExperienceCurrent,
			Max:          r.ExperienceMax,
			ForNextLevel: max(0, r.ExperienceMax-r.ExperienceCurrent),
		},
		Health: domain.Health{Current: int(r.HealthCurrent), Max: int(r.HealthMax)},
		Stats: domain.Stats{
			Strength:     int(r.Strength),
			Dexterity:    int(r.Dexterity),
			Intelligence: int(r.Intelligence),
			Luck:         int(r.Luck),
		},
		Version:   r.Version,
		CreatedAt: fromMicros(r.CreatedAt),
		UpdatedAt: fromMicros(r.UpdatedAt),
	}
	if err := c.Validate(); err != nil {
		return domain.Character{}, fmt.Errorf("corrupt character row %s: %w", r.ID, err)
	}
	return c, nil
}

func (r *characterRow) dest() []any {
	return []any{
		&r.ID, &r.Name, &r.Level, &r.ExperienceCurrent, &r.ExperienceMax, &r.HealthCurrent, &r.HealthMax,
		&r.Strength, &r.Dexterity, &r.Intelligence, &r.Luck, &r.Version, &r.CreatedAt, &r.UpdatedAt, &r.OwnerID,
	}
}

func fromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}
