// Package domain contains the character aggregate, the progression rules
// and the ports the application layer depends on.
package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// MaxNameLength is the longest permitted character name, in runes.
	MaxNameLength = 50
	// MaxOwnerIDLength bounds owner ids, in bytes.
	MaxOwnerIDLength = 128
)

const forbiddenNameChars = `<>"'&`

// DefaultStats are assigned when a character is created without custom stats.
var DefaultStats = Stats{Strength: 10, Dexterity: 10, Intelligence: 10, Luck: 5}

// Character is the aggregate root of the progression model.
type Character struct {
	ID         string     `json:"id"`
	OwnerID    string     `json:"ownerId,omitempty"`
	Name       string     `json:"name"`
	Level      int        `json:"level"`
	Experience Experience `json:"experience"`
	Health     Health     `json:"health"`
	Stats      Stats      `json:"stats"`
	Version    int64      `json:"version"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Experience is relative to the character's current level.
type Experience struct {
	Current      int64 `json:"current"`
	Max          int64 `json:"max"`
	ForNextLevel int64 `json:"forNextLevel"`
}

// Percentage is for display only.
func (e Experience) Percentage() float64 {
	if e.Max == 0 {
		return 0
	}
	return float64(e.Current) / float64(e.Max) * 100
}

// Health holds current and maximum hit points.
type Health struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

// Decrease lowers current health, never below zero.
func (h Health) Decrease(amount int) Health {
	if amount >= h.Current {
		h.Current = 0
		return h
	}
	h.Current -= amount
	return h
}

// Increase raises current health, never above max.
func (h Health) Increase(amount int) Health {
	if amount >= h.Max-h.Current {
		h.Current = h.Max
		return h
	}
	h.Current += amount
	return h
}

func (h Health) IsDead() bool { return h.Current == 0 }
func (h Health) IsFull() bool { return h.Current == h.Max }

// Percentage is for display only.
func (h Health) Percentage() float64 {
	if h.Max == 0 {
		return 0
	}
	return float64(h.Current) / float64(h.Max) * 100
}

// Stats are the four primary attributes.
type Stats struct {
	Strength     int `json:"strength"`
	Dexterity    int `json:"dexterity"`
	Intelligence int `json:"intelligence"`
	Luck         int `json:"luck"`
}

// TotalPower sums all four attributes.
func (s Stats) TotalPower() int {
	return s.Strength + s.Dexterity + s.Intelligence + s.Luck
}

// IsBalanced reports whether no two attributes differ by more than 10.
func (s Stats) IsBalanced() bool {
	hi := max(s.Strength, s.Dexterity, s.Intelligence, s.Luck)
	lo := min(s.Strength, s.Dexterity, s.Intelligence, s.Luck)
	return hi-lo <= 10
}

// PrimaryAttribute names the archetype of the highest attribute. Ties go to
// the attribute listed first.
func (s Stats) PrimaryAttribute() string {
	switch max(s.Strength, s.Dexterity, s.Intelligence, s.Luck) {
	case s.Strength:
		return "Warrior"
	case s.Dexterity:
		return "Archer"
	case s.Intelligence:
		return "Mage"
	default:
		return "Rogue"
	}
}

// Validate rejects negative attributes.
func (s Stats) Validate() error {
	if s.Strength < 0 || s.Dexterity < 0 || s.Intelligence < 0 || s.Luck < 0 {
		return fmt.Errorf("%w: stats cannot be negative", ErrInvalidInput)
	}
	return nil
}

// ValidateName checks a character name is non-blank, at most MaxNameLength
// runes and free of markup characters.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name cannot be blank", ErrInvalidInput)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Errorf("%w: name cannot exceed %d characters", ErrInvalidInput, MaxNameLength)
	}
	if strings.ContainsAny(name, forbiddenNameChars) {
		return fmt.Errorf("%w: name contains invalid characters", ErrInvalidInput)
	}
	return nil
}

// ValidateOwnerID accepts the empty id of an unowned character or a
// non-blank id without surrounding whitespace.
func ValidateOwnerID(ownerID string) error {
	if ownerID == "" {
		return nil
	}
	if strings.TrimSpace(ownerID) != ownerID || len(ownerID) > MaxOwnerIDLength {
		return fmt.Errorf("%w: owner id %q is malformed", ErrInvalidInput, ownerID)
	}
	return nil
}

// NewOwnedCharacter is NewCharacter for a character belonging to ownerID.
func NewOwnedCharacter(ownerID, name string, stats *Stats, now time.Time) (Character, error) {
	if err := ValidateOwnerID(ownerID); err != nil {
		return Character{}, err
	}
	c, err := NewCharacter(name, stats, now)
	if err != nil {
		return Character{}, err
	}
	c.OwnerID = ownerID
	return c, nil
}

// IsOwnedBy reports whether ownerID owns c. Unowned characters match only
// the empty owner.
func (c Character) IsOwnedBy(ownerID string) bool {
	return c.OwnerID == ownerID
}

// NewCharacter creates a level-1 character with full health. A nil stats
// pointer selects DefaultStats.
func NewCharacter(name string, stats *Stats, now time.Time) (Character, error) {
	if err := ValidateName(name); err != nil {
		return Character{}, err
	}
	s := DefaultStats
	if stats != nil {
		s = *stats
	}
	if err := s.Validate(); err != nil {
		return Character{}, err
	}
	maxHealth := MaxHealthFor(BaseLevel, s.Intelligence)
	return Character{
		ID:         uuid.NewString(),
		Name:       name,
		Level:      BaseLevel,
		Experience: NewExperience(BaseLevel, 0),
		Health:     Health{Current: maxHealth, Max: maxHealth},
		Stats:      s,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Validate checks the aggregate invariants. Repositories call it on rows
// loaded from storage.
func (c Character) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: id cannot be empty", ErrInvalidInput)
	}
	if err := ValidateName(c.Name); err != nil {
		return err
	}
	if err := ValidateOwnerID(c.OwnerID); err != nil {
		return err
	}
	if c.Level < BaseLevel || c.Level > MaxLevel {
		return fmt.Errorf("%w: level %d out of range", ErrInvalidInput, c.Level)
	}
	if c.Experience.Current < 0 || c.Experience.Max <= 0 || c.Experience.ForNextLevel < 0 {
		return fmt.Errorf("%w: experience %+v violates bounds", ErrInvalidInput, c.Experience)
	}
	if c.Health.Max <= 0 || c.Health.Current < 0 || c.Health.Current > c.Health.Max {
		return fmt.Errorf("%w: health %d/%d violates bounds", ErrInvalidInput, c.Health.Current, c.Health.Max)
	}
	return c.Stats.Validate()
}

// Rename returns a copy of c carrying name.
func (c Character) Rename(name string, now time.Time) (Character, error) {
	if err := ValidateName(name); err != nil {
		return c, err
	}
	c.Name = name
	c.UpdatedAt = now
	return c, nil
}

// TakeDamage returns a copy of c with health reduced by amount.
func (c Character) TakeDamage(amount int, now time.Time) (Character, error) {
	if amount <= 0 {
		return c, fmt.Errorf("%w: damage amount must be positive, got %d", ErrInvalidInput, amount)
	}
	c.Health = c.Health.Decrease(amount)
	c.UpdatedAt = now
	return c, nil
}

// Heal returns a copy of c with health restored by amount.
func (c Character) Heal(amount int, now time.Time) (Character, error) {
	if amount <= 0 {
		return c, fmt.Errorf("%w: heal amount must be positive, got %d", ErrInvalidInput, amount)
	}
	c.Health = c.Health.Increase(amount)
	c.UpdatedAt = now
	return c, nil
}
