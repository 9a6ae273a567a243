// internal/game/rules.go
package game

import (
	"fmt"

	"github.com/jason-s-yu/boom/internal/apperr"
)

// HouseRules are the per-table knobs a host may set when creating a lobby.
type HouseRules struct {
	HandSize         int `json:"handSize"`         // cards dealt to each player per round
	RoundLimit       int `json:"roundLimit"`       // game ends after this many rounds; 0 means no limit
	ScoreLimit       int `json:"scoreLimit"`       // game ends once a player reaches this total; 0 means no limit
	ChallengePenalty int `json:"challengePenalty"` // cards drawn by the loser of a Boom challenge
}

// DefaultHouseRules returns the standard table rules.
func DefaultHouseRules() HouseRules {
	return HouseRules{
		HandSize:         7,
		ScoreLimit:       500,
		ChallengePenalty: 2,
	}
}

func (rules HouseRules) withDefaults() HouseRules {
	if rules.HandSize <= 0 {
		rules.HandSize = DefaultHouseRules().HandSize
	}
	if rules.ChallengePenalty <= 0 {
		rules.ChallengePenalty = DefaultHouseRules().ChallengePenalty
	}
	return rules
}

// CheckDeal reports whether a full table of seats can be dealt under these
// rules with at least one card left to flip.
func (rules HouseRules) CheckDeal(seats int) error {
	handSize := rules.withDefaults().HandSize
	if seats*handSize >= deckSize {
		return fmt.Errorf("cannot deal %d cards to %d players from %d: %w", handSize, seats, deckSize, apperr.ErrInvalidRules)
	}
	return nil
}

// Update applies the keys present in newRules. Missing or null keys keep the old value.
func (rules *HouseRules) Update(newRules map[string]interface{}) error {
	assignInt := func(field *int, key string, minVal, maxVal int) error {
		val, exists := newRules[key]
		if !exists || val == nil {
			return nil
		}
		var n int
		switch v := val.(type) {
		case float64: // JSON numbers decode as float64
			if v != float64(int(v)) {
				return fmt.Errorf("%s must be a whole number", key)
			}
			n = int(v)
		case int:
			n = v
		default:
			return fmt.Errorf("invalid type for %s", key)
		}
		if n < minVal || n > maxVal {
			return fmt.Errorf("%s must be between %d and %d", key, minVal, maxVal)
		}
		*field = n
		return nil
	}

	if err := assignInt(&rules.HandSize, "handSize", 1, 15); err != nil {
		return err
	}
	if err := assignInt(&rules.RoundLimit, "roundLimit", 0, 100); err != nil {
		return err
	}
	if err := assignInt(&rules.ScoreLimit, "scoreLimit", 0, 10000); err != nil {
		return err
	}
	if err := assignInt(&rules.ChallengePenalty, "challengePenalty", 1, 10); err != nil {
		return err
	}
	return nil
}

// ParseRules applies rules on top of a copy of current.
func ParseRules(rules map[string]interface{}, current HouseRules) (HouseRules, error) {
	houseRules := current
	err := houseRules.Update(rules)
	return houseRules, err
}
