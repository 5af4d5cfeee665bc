package pvpchess

import (
	"context"
	"sync"
	"time"

	"github.com/park285/cheese-chess-server/internal/chess"
)

type session struct {
	id        string
	owner     string
	createdAt time.Time

	mu    sync.Mutex
	state sessionState
	board chess.Board
	// finish is set by board events that end the game; it runs after mu is released.
	finish func(ctx context.Context)
}

// sessionState is one of waitingState, activeState or endedState.
type sessionState interface {
	status() Status
}

type waitingState struct{ owner string }

type activeState struct{ white, black string }

type endedState struct{}

func (waitingState) status() Status { return StatusWaiting }
func (activeState) status() Status  { return StatusActive }
func (endedState) status() Status   { return StatusEnded }

func (a activeState) identityOf(side chess.Side) string {
	if side == chess.Black {
		return a.black
	}
	return a.white
}

// participants must be called with mu held.
func (s *session) participants() Participants {
	p := Participants{SessionID: s.id}
	switch st := s.state.(type) {
	case waitingState:
		p.White = st.owner
	case activeState:
		p.White, p.Black = st.white, st.black
	}
	return p
}

// stateError maps a non-active state to the error a mover sees. mu must be held.
func (s *session) stateError() error {
	switch s.state.(type) {
	case waitingState:
		return ErrNotActive
	case endedState:
		return ErrNotFound
	}
	return nil
}

// boardEvents relays board notifications for one session. The board calls it
// from inside AttemptMove with the session lock held, so it only publishes
// and defers anything that needs the Manager's locks to s.finish.
type boardEvents struct {
	m *Manager
	s *session
}

func (e *boardEvents) CheckAsserted(by, against chess.Side) {
	e.m.notify.CheckAsserted(e.s.participants(), by, against)
}

func (e *boardEvents) MoveApplied(move chess.AppliedMove) {
	e.m.notify.MoveApplied(e.s.participants(), move, move.Side.Opponent())
}

func (e *boardEvents) CheckmateAsserted(mated chess.Side) {
	id := e.s.id
	e.s.finish = func(ctx context.Context) { e.m.endCheckmate(ctx, id, mated) }
}

func (e *boardEvents) DrawReached(reason string) {
	id := e.s.id
	e.s.finish = func(ctx context.Context) { e.m.endDraw(ctx, id, reason) }
}
