// internal/game/cards.go
package game

import (
	"encoding/json"
	"fmt"
	"math/rand"
)

// CardType identifies what a card does when played.
type CardType string

const (
	CardNumber       CardType = "number"
	CardSkip         CardType = "skip"
	CardReverse      CardType = "reverse"
	CardDrawTwo      CardType = "drawTwo"
	CardWild         CardType = "wild"
	CardWildDrawFour CardType = "wildDrawFour"
	CardBoom         CardType = "boom"
)

// Color of a card. Wild cards carry no color; the chosen color lives on the game.
type Color string

const (
	NoColor Color = ""
	Red     Color = "red"
	Yellow  Color = "yellow"
	Green   Color = "green"
	Blue    Color = "blue"
)

// Colors lists the playable colors in a stable order.
var Colors = []Color{Red, Yellow, Green, Blue}

// Valid reports whether c is one of the four playable colors.
func (c Color) Valid() bool {
	switch c {
	case Red, Yellow, Green, Blue:
		return true
	}
	return false
}

// Card is an immutable value. Two cards with the same fields are interchangeable,
// so hands are matched by value rather than by identity.
type Card struct {
	Type  CardType `json:"type"`
	Value int      `json:"value"`
	Color Color    `json:"color,omitempty"`
}

// MarshalJSON omits the value for anything that is not a number card.
func (c Card) MarshalJSON() ([]byte, error) {
	type wire struct {
		Type  CardType `json:"type"`
		Value *int     `json:"value,omitempty"`
		Color Color    `json:"color,omitempty"`
	}
	w := wire{Type: c.Type, Color: c.Color}
	if c.Type == CardNumber {
		v := c.Value
		w.Value = &v
	}
	return json.Marshal(w)
}

// IsWild reports whether the player picks the color after playing the card.
func (c Card) IsWild() bool {
	return c.Type == CardWild || c.Type == CardWildDrawFour
}

// Normalize strips fields that do not belong to the card's type, so a client
// sending {"type":"wild","color":"red"} still matches the wild in its hand.
func (c Card) Normalize() Card {
	if c.IsWild() {
		return Card{Type: c.Type}
	}
	if c.Type != CardNumber {
		c.Value = 0
	}
	return c
}

// Validate checks that the card could exist in a standard deck.
func (c Card) Validate() error {
	switch c.Type {
	case CardNumber:
		if c.Value < 0 || c.Value > 9 {
			return fmt.Errorf("number card value %d out of range", c.Value)
		}
		if !c.Color.Valid() {
			return fmt.Errorf("number card needs a color")
		}
	case CardSkip, CardReverse, CardDrawTwo, CardBoom:
		if !c.Color.Valid() {
			return fmt.Errorf("%s card needs a color", c.Type)
		}
	case CardWild, CardWildDrawFour:
	default:
		return fmt.Errorf("unknown card type %q", c.Type)
	}
	return nil
}

// Points is the value of the card when left in a losing hand.
func (c Card) Points() int {
	switch c.Type {
	case CardNumber:
		return c.Value
	case CardSkip, CardReverse, CardDrawTwo:
		return 20
	case CardBoom:
		return 30
	case CardWild, CardWildDrawFour:
		return 50
	}
	return 0
}

func (c Card) String() string {
	switch c.Type {
	case CardNumber:
		return fmt.Sprintf("%s %d", c.Color, c.Value)
	case CardWild, CardWildDrawFour:
		return string(c.Type)
	default:
		return fmt.Sprintf("%s %s", c.Color, c.Type)
	}
}

const deckSize = 112

// StandardDeck builds the 112-card deck: per color one 0, two of each 1-9, two
// each of skip/reverse/drawTwo and one boom; plus four wilds and four wild draw fours.
func StandardDeck() []Card {
	deck := make([]Card, 0, deckSize)
	for _, color := range Colors {
		deck = append(deck, Card{Type: CardNumber, Value: 0, Color: color})
		for v := 1; v <= 9; v++ {
			deck = append(deck,
				Card{Type: CardNumber, Value: v, Color: color},
				Card{Type: CardNumber, Value: v, Color: color},
			)
		}
		for _, t := range []CardType{CardSkip, CardReverse, CardDrawTwo} {
			deck = append(deck, Card{Type: t, Color: color}, Card{Type: t, Color: color})
		}
		deck = append(deck, Card{Type: CardBoom, Color: color})
	}
	for i := 0; i < 4; i++ {
		deck = append(deck, Card{Type: CardWild}, Card{Type: CardWildDrawFour})
	}
	return deck
}

func shuffle(r *rand.Rand, cards []Card) {
	r.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
}

// handPoints sums the penalty value of a hand.
func handPoints(hand []Card) int {
	total := 0
	for _, c := range hand {
		total += c.Points()
	}
	return total
}
