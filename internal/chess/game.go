package chess

import (
	"sort"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// gameBoard adapts corentings/chess to the Board contract.
type gameBoard struct {
	game      *nchess.Game
	listeners []Listener
}

// NewBoard returns a board in the standard starting position.
func NewBoard() Board {
	return &gameBoard{game: nchess.NewGame()}
}

func (b *gameBoard) Subscribe(l Listener) {
	if l != nil {
		b.listeners = append(b.listeners, l)
	}
}

func (b *gameBoard) Turn() Side {
	return sideFrom(b.game.Position().Turn())
}

func (b *gameBoard) AttemptMove(from, to Square) bool {
	if b.game.Outcome() != nchess.NoOutcome {
		return false
	}
	fs, ok := toSquare(from)
	if !ok {
		return false
	}
	ts, ok := toSquare(to)
	if !ok || fs == ts {
		return false
	}

	pos := b.game.Position()
	mover := sideFrom(pos.Turn())
	before := pos.Board().SquareMap()

	uci := fs.String() + ts.String()
	// promotion square without a suffix: always promote to a queen
	if p := pos.Board().Piece(fs); p.Type() == nchess.Pawn && (ts.Rank() == nchess.Rank8 || ts.Rank() == nchess.Rank1) {
		uci += "q"
	}
	if err := b.game.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
		return false
	}

	after := b.game.Position().Board().SquareMap()
	applied := AppliedMove{
		From:    from,
		To:      to,
		Side:    mover,
		Changes: diffSquares(before, after),
		Final:   b.game.Outcome() != nchess.NoOutcome,
	}
	for _, l := range b.listeners {
		l.MoveApplied(applied)
	}

	switch b.game.Outcome() {
	case nchess.WhiteWon, nchess.BlackWon:
		if b.game.Method() == nchess.Checkmate {
			for _, l := range b.listeners {
				l.CheckmateAsserted(mover.Opponent())
			}
		}
	case nchess.Draw:
		reason := drawReason(b.game.Method())
		for _, l := range b.listeners {
			l.DrawReached(reason)
		}
	default:
		if last := lastMove(b.game); last != nil && last.HasTag(nchess.Check) {
			for _, l := range b.listeners {
				l.CheckAsserted(mover, mover.Opponent())
			}
		}
	}
	return true
}

func (b *gameBoard) LegalDestinations(from Square) []Square {
	fs, ok := toSquare(from)
	if !ok {
		return nil
	}
	seen := make(map[Square]struct{})
	var out []Square
	for _, mv := range b.game.ValidMoves() {
		if mv.S1() != fs {
			continue
		}
		dst := Square(mv.S2().String())
		if _, dup := seen[dst]; dup {
			continue
		}
		seen[dst] = struct{}{}
		out = append(out, dst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (b *gameBoard) Snapshot() Snapshot {
	pieces := make(map[Square]string)
	for sq, p := range b.game.Position().Board().SquareMap() {
		if p == nchess.NoPiece {
			continue
		}
		pieces[Square(sq.String())] = pieceLetter(p)
	}
	return Snapshot{FEN: b.game.FEN(), Pieces: pieces, Turn: b.Turn()}
}

func toSquare(s Square) (nchess.Square, bool) {
	v, err := ParseSquare(string(s))
	if err != nil {
		return nchess.NoSquare, false
	}
	return nchess.NewSquare(nchess.File(v[0]-'a'), nchess.Rank(v[1]-'1')), true
}

func sideFrom(c nchess.Color) Side {
	if c == nchess.Black {
		return Black
	}
	return White
}

func lastMove(game *nchess.Game) *nchess.Move {
	moves := game.Moves()
	if len(moves) == 0 {
		return nil
	}
	return moves[len(moves)-1]
}

func diffSquares(before, after map[nchess.Square]nchess.Piece) []SquareChange {
	touched := make(map[nchess.Square]struct{})
	for sq, p := range before {
		if after[sq] != p {
			touched[sq] = struct{}{}
		}
	}
	for sq, p := range after {
		if before[sq] != p {
			touched[sq] = struct{}{}
		}
	}
	out := make([]SquareChange, 0, len(touched))
	for sq := range touched {
		letter := ""
		if p, ok := after[sq]; ok && p != nchess.NoPiece {
			letter = pieceLetter(p)
		}
		out = append(out, SquareChange{Square: Square(sq.String()), Piece: letter})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Square < out[j].Square })
	return out
}

func pieceLetter(p nchess.Piece) string {
	var letter string
	switch p.Type() {
	case nchess.King:
		letter = "k"
	case nchess.Queen:
		letter = "q"
	case nchess.Rook:
		letter = "r"
	case nchess.Bishop:
		letter = "b"
	case nchess.Knight:
		letter = "n"
	case nchess.Pawn:
		letter = "p"
	default:
		return ""
	}
	if p.Color() == nchess.White {
		return strings.ToUpper(letter)
	}
	return letter
}

func drawReason(m nchess.Method) string {
	switch m {
	case nchess.Stalemate:
		return "stalemate"
	case nchess.InsufficientMaterial:
		return "insufficient_material"
	case nchess.ThreefoldRepetition, nchess.FivefoldRepetition:
		return "repetition"
	case nchess.FiftyMoveRule, nchess.SeventyFiveMoveRule:
		return "move_rule"
	default:
		return "draw"
	}
}
