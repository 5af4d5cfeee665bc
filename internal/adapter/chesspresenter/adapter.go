package chesspresenter

import (
	"sort"

	"github.com/park285/cheese-chess-server/internal/chess"
	"github.com/park285/cheese-chess-server/internal/domain"
	"github.com/park285/cheese-chess-server/internal/pvpchess"
	"github.com/park285/cheese-chess-server/pkg/chessdto"
)

// ToDTOSnapshot renders snap for identity, one of the seats in p.
func ToDTOSnapshot(p pvpchess.Participants, snap chess.Snapshot, identity string) chessdto.BoardSnapshot {
	pieces := make(map[string]string, len(snap.Pieces))
	for sq, letter := range snap.Pieces {
		pieces[string(sq)] = letter
	}
	side := chess.White
	if identity == p.Black {
		side = chess.Black
	}
	return chessdto.BoardSnapshot{
		SessionID: p.SessionID,
		FEN:       snap.FEN,
		Pieces:    pieces,
		White:     p.White,
		Black:     p.Black,
		YourSide:  side.String(),
	}
}

func ToDTODelta(id string, move chess.AppliedMove) chessdto.SquareDelta {
	changes := make([]chessdto.SquareState, 0, len(move.Changes))
	for _, c := range move.Changes {
		changes = append(changes, chessdto.SquareState{Square: string(c.Square), Piece: c.Piece})
	}
	return chessdto.SquareDelta{SessionID: id, From: string(move.From), To: string(move.To), Changes: changes}
}

func ToDTOGameList(list []pvpchess.WaitingSession) chessdto.GameList {
	games := make([]chessdto.GameListEntry, 0, len(list))
	for _, w := range list {
		games = append(games, chessdto.GameListEntry{
			SessionID: w.SessionID,
			Owner:     w.Owner,
			OwnerName: w.OwnerName,
			CreatedAt: w.CreatedAt,
		})
	}
	return chessdto.GameList{Games: games}
}

func ToDTOFriends(friends []domain.Friend) chessdto.OnlineFriends {
	out := make([]chessdto.Friend, 0, len(friends))
	for _, f := range friends {
		out = append(out, chessdto.Friend{Login: f.Login, Name: f.Name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Login < out[j].Login })
	return chessdto.OnlineFriends{Friends: out}
}

func squareStrings(in []chess.Square) []string {
	out := make([]string, len(in))
	for i, sq := range in {
		out[i] = string(sq)
	}
	return out
}
