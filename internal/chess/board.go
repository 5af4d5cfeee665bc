package chess

import (
	"fmt"
	"strings"
)

// Side identifies the color that owns a piece or the move.
type Side int

const (
	White Side = iota
	Black
)

func (s Side) String() string {
	if s == Black {
		return "Black"
	}
	return "White"
}

// Opponent returns the other color.
func (s Side) Opponent() Side {
	if s == White {
		return Black
	}
	return White
}

// Square is an algebraic square name such as "e2".
type Square string

// ParseSquare normalizes and validates an algebraic square name.
func ParseSquare(raw string) (Square, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return "", fmt.Errorf("invalid square %q", raw)
	}
	return Square(s), nil
}

// SquareChange reports the content of one square after a move.
// Piece uses FEN letters (upper case white, lower case black); empty means vacant.
type SquareChange struct {
	Square Square `json:"square"`
	Piece  string `json:"piece"`
}

// AppliedMove describes a move the board accepted. Final is set when the
// move decided the game (mate or draw), so nobody is on move afterwards.
type AppliedMove struct {
	From    Square
	To      Square
	Side    Side
	Changes []SquareChange
	Final   bool
}

// Snapshot is a full board view for a (re)joining client.
type Snapshot struct {
	FEN    string
	Pieces map[Square]string
	Turn   Side
}

// Listener receives board notifications. Calls happen synchronously inside
// AttemptMove, so implementations must not call back into the board.
type Listener interface {
	CheckAsserted(by, against Side)
	MoveApplied(move AppliedMove)
	CheckmateAsserted(mated Side)
	DrawReached(reason string)
}

// Board is one match worth of rules state. Implementations are not safe for
// concurrent use; callers serialize access.
type Board interface {
	AttemptMove(from, to Square) bool
	LegalDestinations(from Square) []Square
	Turn() Side
	Snapshot() Snapshot
	Subscribe(l Listener)
}

// Factory creates fresh boards in the starting position.
type Factory func() Board
