package adapthttp

import (
	"time"

	"textrpg/internal/domain"
)

type characterResponse struct {
	ID         string             `json:"id"`
	OwnerID    string             `json:"ownerId,omitempty"`
	Name       string             `json:"name"`
	Level      int                `json:"level"`
	Experience experienceResponse `json:"experience"`
	Health     healthResponse     `json:"health"`
	Stats      statsResponse      `json:"stats"`
	Version    int64              `json:"version"`
	CreatedAt  time.Time          `json:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

type experienceResponse struct {
	Current      int64   `json:"current"`
	Max          int64   `json:"max"`
	ForNextLevel int64   `json:"forNextLevel"`
	Percentage   float64 `json:"percentage"`
}

type healthResponse struct {
	Current    int     `json:"current"`
	Max        int     `json:"max"`
	Percentage float64 `json:"percentage"`
	Dead       bool    `json:"dead"`
}

type statsResponse struct {
	domain.Stats
	TotalPower       int    `json:"totalPower"`
	PrimaryAttribute string `json:"primaryAttribute"`
	Balanced         bool   `json:"balanced"`
}

func toResponse(c domain.Character) characterResponse {
	return characterResponse{
		ID:      c.ID,
		OwnerID: c.OwnerID,
		Name:    c.Name,
		Level:   c.Level,
		Experience: experienceResponse{
			Current:      c.Experience.Current,
			Max:          c.Experience.Max,
			ForNextLevel: c.Experience.ForNextLevel,
			Percentage:   c.Experience.Percentage(),
		},
		Health: healthResponse{
			Current:    c.Health.Current,
			Max:        c.Health.Max,
			Percentage: c.Health.Percentage(),
			Dead:       c.Health.IsDead(),
		},
		Stats: statsResponse{
			Stats:            c.Stats,
			TotalPower:       c.Stats.TotalPower(),
			PrimaryAttribute: c.Stats.PrimaryAttribute(),
			Balanced:         c.Stats.IsBalanced(),
		},
		Version:   c.Version,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
