package chessdto

import (
	"encoding/json"
	"time"
)

// Event kinds the server sends.
const (
	EvSessionCreated    = "sessionCreated"
	EvGameList          = "gameList"
	EvBoardSnapshot     = "boardSnapshot"
	EvSquareDelta       = "squareDelta"
	EvTurn              = "turn"
	EvLegalDestinations = "legalDestinations"
	EvChat              = "chat"
	EvInfo              = "info"
	EvGameEnded         = "gameEnded"
	EvError             = "error"
	EvOnlineFriends     = "onlineFriends"
	EvDirectMessage     = "directMessage"
)

// Envelope is one outbound frame.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// RawEnvelope is the client-side view of an Envelope.
type RawEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewEnvelope(kind string, payload any) Envelope {
	return Envelope{Type: kind, Payload: payload}
}

type SessionCreated struct {
	SessionID string `json:"sessionId"`
	Owner     string `json:"owner"`
}

type GameListEntry struct {
	SessionID string    `json:"sessionId"`
	Owner     string    `json:"owner"`
	OwnerName string    `json:"ownerName"`
	CreatedAt time.Time `json:"createdAt"`
}

type GameList struct {
	Games []GameListEntry `json:"games"`
}

type GameEnded struct {
	SessionID string `json:"sessionId"`
	Won       bool   `json:"won"`
	Draw      bool   `json:"draw,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Winner    string `json:"winner,omitempty"`
	Loser     string `json:"loser,omitempty"`
}

type Chat struct {
	SessionID string `json:"sessionId"`
	From      string `json:"from"`
	Text      string `json:"text"`
}

type Info struct {
	SessionID string `json:"sessionId,omitempty"`
	Text      string `json:"text"`
}
