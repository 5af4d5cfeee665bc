package chessdto

// BoardSnapshot is the full position sent when a game starts.
// Pieces maps squares to FEN letters; empty squares are omitted.
type BoardSnapshot struct {
	SessionID string            `json:"sessionId"`
	FEN       string            `json:"fen"`
	Pieces    map[string]string `json:"pieces"`
	White     string            `json:"white"`
	Black     string            `json:"black"`
	YourSide  string            `json:"yourSide"`
}

type SquareState struct {
	Square string `json:"square"`
	Piece  string `json:"piece"`
}

// SquareDelta lists the squares a move changed. Piece is "" for a vacated square.
type SquareDelta struct {
	SessionID string        `json:"sessionId"`
	From      string        `json:"from"`
	To        string        `json:"to"`
	Changes   []SquareState `json:"changes"`
}

type Turn struct {
	SessionID  string `json:"sessionId"`
	IsYourTurn bool   `json:"isYourTurn"`
}

type LegalDestinations struct {
	SessionID string   `json:"sessionId"`
	From      string   `json:"from"`
	Squares   []string `json:"squares"`
}
