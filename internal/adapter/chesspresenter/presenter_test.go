package chesspresenter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/park285/cheese-chess-server/internal/chess"
	"github.com/park285/cheese-chess-server/internal/msgcat"
	"github.com/park285/cheese-chess-server/internal/pvpchess"
	"github.com/park285/cheese-chess-server/pkg/chessdto"
)

type sent struct {
	to  string // "*" for broadcast
	env chessdto.Envelope
}

type fakeSender struct {
	mu  sync.Mutex
	out []sent
}

func (f *fakeSender) SendTo(identity string, env chessdto.Envelope) int {
	f.mu.Lock()
	f.out = append(f.out, sent{to: identity, env: env})
	f.mu.Unlock()
	return 1
}

func (f *fakeSender) Broadcast(env chessdto.Envelope) int {
	return f.SendTo("*", env)
}

func (f *fakeSender) find(to, kind string) []chessdto.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []chessdto.Envelope
	for _, s := range f.out {
		if s.to == to && s.env.Type == kind {
			out = append(out, s.env)
		}
	}
	return out
}

type staticLobby []pvpchess.WaitingSession

func (s staticLobby) ListWaitingSessions(context.Context) ([]pvpchess.WaitingSession, error) {
	return s, nil
}

func newTestPresenter(t *testing.T) (*Presenter, *fakeSender) {
	t.Helper()
	msgs, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat: %v", err)
	}
	out := &fakeSender{}
	return NewPresenter(out, NewFormatter(msgs)), out
}

var seats = pvpchess.Participants{SessionID: "S1", White: "A", Black: "B"}

func TestGameStartedSendsSnapshotAndTurns(t *testing.T) {
	p, out := newTestPresenter(t)
	p.GameStarted(seats, chess.NewBoard().Snapshot())

	for id, side := range map[string]string{"A": "White", "B": "Black"} {
		snaps := out.find(id, chessdto.EvBoardSnapshot)
		if len(snaps) != 1 {
			t.Fatalf("%s: expected one snapshot", id)
		}
		snap := snaps[0].Payload.(chessdto.BoardSnapshot)
		if snap.YourSide != side || len(snap.Pieces) != 32 {
			t.Fatalf("%s: unexpected snapshot %+v", id, snap)
		}
	}
	if turn := out.find("A", chessdto.EvTurn); len(turn) != 1 || !turn[0].Payload.(chessdto.Turn).IsYourTurn {
		t.Fatalf("A should be on move: %+v", turn)
	}
	if turn := out.find("B", chessdto.EvTurn); len(turn) != 1 || turn[0].Payload.(chessdto.Turn).IsYourTurn {
		t.Fatalf("B should wait: %+v", turn)
	}
}

func TestMoveAppliedNarration(t *testing.T) {
	p, out := newTestPresenter(t)
	move := chess.AppliedMove{From: "e2", To: "e4", Side: chess.White, Changes: []chess.SquareChange{{Square: "e2"}, {Square: "e4", Piece: "P"}}}
	p.MoveApplied(seats, move, chess.Black)

	deltas := out.find("B", chessdto.EvSquareDelta)
	if len(deltas) != 1 || len(deltas[0].Payload.(chessdto.SquareDelta).Changes) != 2 {
		t.Fatalf("unexpected delta: %+v", deltas)
	}
	info := out.find("A", chessdto.EvInfo)
	if len(info) != 1 || info[0].Payload.(chessdto.Info).Text != "White moved e2 -> e4" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if turn := out.find("B", chessdto.EvTurn); len(turn) != 1 || !turn[0].Payload.(chessdto.Turn).IsYourTurn {
		t.Fatalf("B should be on move")
	}
}

func TestFinalMoveSkipsTurnNotice(t *testing.T) {
	p, out := newTestPresenter(t)
	mate := chess.AppliedMove{From: "d8", To: "h4", Side: chess.Black, Changes: []chess.SquareChange{{Square: "d8"}, {Square: "h4", Piece: "q"}}, Final: true}
	p.MoveApplied(seats, mate, chess.White)

	if deltas := out.find("A", chessdto.EvSquareDelta); len(deltas) != 1 {
		t.Fatalf("mating move delta missing: %+v", deltas)
	}
	for _, id := range []string{"A", "B"} {
		if turn := out.find(id, chessdto.EvTurn); len(turn) != 0 {
			t.Fatalf("%s got a turn notice after the deciding move: %+v", id, turn)
		}
	}
}

func TestGameEndedFlags(t *testing.T) {
	p, out := newTestPresenter(t)
	p.GameEnded(seats, pvpchess.Outcome{Winner: "B", Loser: "A", Reason: "checkmate"})

	a := out.find("A", chessdto.EvGameEnded)[0].Payload.(chessdto.GameEnded)
	b := out.find("B", chessdto.EvGameEnded)[0].Payload.(chessdto.GameEnded)
	if a.Won || !b.Won {
		t.Fatalf("won flags wrong: A=%+v B=%+v", a, b)
	}
	info := out.find("A", chessdto.EvInfo)
	if len(info) != 1 || info[0].Payload.(chessdto.Info).Text != "Black set CHECK MATE! Match has ended." {
		t.Fatalf("unexpected narration: %+v", info)
	}

	p.GameEnded(seats, pvpchess.Outcome{Draw: true, Reason: "stalemate"})
	ended := out.find("A", chessdto.EvGameEnded)
	if last := ended[len(ended)-1].Payload.(chessdto.GameEnded); !last.Draw || last.Won {
		t.Fatalf("draw flags wrong: %+v", last)
	}
}

func TestLobbyBroadcast(t *testing.T) {
	p, out := newTestPresenter(t)
	now := time.Now()
	p.AttachLobby(staticLobby{{SessionID: "S1", Owner: "A", OwnerName: "Alice", CreatedAt: now}})
	p.SessionCreated("S1", "A")

	if created := out.find("A", chessdto.EvSessionCreated); len(created) != 1 {
		t.Fatalf("owner not told about creation")
	}
	lists := out.find("*", chessdto.EvGameList)
	if len(lists) != 1 {
		t.Fatalf("expected one broadcast, got %d", len(lists))
	}
	games := lists[0].Payload.(chessdto.GameList).Games
	if len(games) != 1 || games[0].OwnerName != "Alice" {
		t.Fatalf("unexpected list: %+v", games)
	}
}

func TestDirectMessageFormat(t *testing.T) {
	p, out := newTestPresenter(t)
	p.Direct("B", "A", "hi")
	dm := out.find("B", chessdto.EvDirectMessage)
	if len(dm) != 1 || dm[0].Payload.(chessdto.DirectMessage).Text != "A: hi" {
		t.Fatalf("unexpected dm: %+v", dm)
	}
}
