// internal/game/sync_state.go
package game

// PlayerView is the public part of one player's state.
type PlayerView struct {
	PlayerID      string `json:"playerId"`
	UserID        string `json:"userId"`
	Name          string `json:"name"`
	HandSize      int    `json:"handSize"`
	Score         int    `json:"score"`
	Active        bool   `json:"isActive"`
	Connected     bool   `json:"connected"`
	HasDrawn      bool   `json:"hasDrawnThisTurn"`
	IsCurrentTurn bool   `json:"isCurrentTurn"`
}

// PublicState is the snapshot every participant sees. Hands are never included;
// they travel separately to their owner.
type PublicState struct {
	GameID          string       `json:"gameId"`
	LobbyID         string       `json:"lobbyId"`
	Phase           Phase        `json:"phase"`
	Round           int          `json:"round"`
	TurnID          int          `json:"turnId"`
	CurrentPlayerID string       `json:"currentPlayerId"`
	TurnOrder       []string     `json:"turnOrder"`
	DiscardTop      Card         `json:"discardTop"`
	DiscardPile     []Card       `json:"discardPile"`
	DeckSize        int          `json:"deckSize"`
	CurrentColor    Color        `json:"currentColor"`
	PendingColor    bool         `json:"pendingColor"`
	Challengeable   bool         `json:"challengeable"`
	Players         []PlayerView `json:"players"`
	Rules           HouseRules   `json:"rules"`
	LastRound       *RoundResult `json:"lastRound,omitempty"`
	LastAction      string       `json:"lastAction,omitempty"`
	WinnerID        string       `json:"winnerId,omitempty"`
}

// PublicState snapshots the game. Assumes g.Mu is held.
func (g *Game) PublicState() PublicState {
	current := g.CurrentPlayerID()
	ps := PublicState{
		GameID:          g.ID,
		LobbyID:         g.LobbyID,
		Phase:           g.phase,
		Round:           g.round,
		TurnID:          g.turnID,
		CurrentPlayerID: current,
		TurnOrder:       append([]string(nil), g.turnOrder...),
		DiscardPile:     append([]Card(nil), g.discard...),
		DeckSize:        len(g.deck),
		CurrentColor:    g.currentColor,
		PendingColor:    g.pending != nil,
		Challengeable:   g.boom != nil,
		Rules:           g.Rules,
		LastAction:      g.lastAction,
		WinnerID:        g.winnerID,
	}
	if len(g.discard) > 0 {
		ps.DiscardTop = g.discard[len(g.discard)-1]
	}
	if g.lastRound != nil {
		lr := *g.lastRound
		ps.LastRound = &lr
	}
	for _, p := range g.players {
		ps.Players = append(ps.Players, PlayerView{
			PlayerID:      p.ID,
			UserID:        p.UserID,
			Name:          p.Name,
			HandSize:      len(p.Hand),
			Score:         p.Score,
			Active:        p.Active,
			Connected:     p.Connected,
			HasDrawn:      p.HasDrawnThisTurn,
			IsCurrentTurn: p.ID == current && g.phase != PhaseGameOver,
		})
	}
	return ps
}

// Hands copies every player's hand keyed by player ID. Assumes g.Mu is held.
func (g *Game) Hands() map[string][]Card {
	out := make(map[string][]Card, len(g.players))
	for _, p := range g.players {
		out[p.ID] = append([]Card{}, p.Hand...)
	}
	return out
}
