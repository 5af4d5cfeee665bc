package pvpchess

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/park285/cheese-chess-server/internal/chess"
	"github.com/park285/cheese-chess-server/internal/obslog"
	"go.uber.org/zap"
)

const sessionIDAttempts = 5

// Manager owns every in-flight PvP session. The session map has its own
// lock; each session carries a mutex so unrelated games never contend.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*session

	newBoard chess.Factory
	store    Store
	notify   Notifier
	newID    func() string
}

// Option configures a Manager.
type Option func(*Manager)

// WithBoardFactory replaces the rules engine used for new sessions.
func WithBoardFactory(f chess.Factory) Option {
	return func(m *Manager) {
		if f != nil {
			m.newBoard = f
		}
	}
}

// WithIDGenerator replaces the session id source.
func WithIDGenerator(f func() string) Option {
	return func(m *Manager) {
		if f != nil {
			m.newID = f
		}
	}
}

// NewManager returns an empty registry that persists results to store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]*session),
		newBoard: chess.NewBoard,
		store:    store,
		notify:   nopNotifier{},
		newID:    newSessionID,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AttachNotifier wires the outbound event publisher.
func (m *Manager) AttachNotifier(n Notifier) {
	if m != nil && n != nil {
		m.notify = n
	}
}

// CreateSession opens a waiting session owned by owner, who plays White.
func (m *Manager) CreateSession(ctx context.Context, owner string) (string, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return "", ErrInvalidArgs
	}
	s := &session{
		owner:     owner,
		createdAt: time.Now(),
		state:     waitingState{owner: owner},
		board:     m.newBoard(),
	}
	s.board.Subscribe(&boardEvents{m: m, s: s})

	m.mu.Lock()
	for i := 0; i < sessionIDAttempts; i++ {
		id := m.newID()
		if _, taken := m.sessions[id]; taken {
			continue
		}
		s.id = id
		m.sessions[id] = s
		break
	}
	m.mu.Unlock()
	if s.id == "" {
		return "", fmt.Errorf("failed to allocate session id")
	}

	obslog.L().Info("session_create", zap.String("session_id", s.id), zap.String("owner", owner))
	m.notify.SessionCreated(s.id, owner)
	return s.id, nil
}

// JoinSession seats joiner as Black and starts the game.
func (m *Manager) JoinSession(ctx context.Context, id, joiner string) (Participants, error) {
	return m.JoinAndStart(ctx, id, joiner, nil)
}

// JoinAndStart is JoinSession with a hook that receives the seats and the
// opening position before the session lock is released, so no move from the
// new game can be published ahead of it. started must not block or call back
// into the Manager.
func (m *Manager) JoinAndStart(ctx context.Context, id, joiner string, started func(Participants, chess.Snapshot)) (Participants, error) {
	joiner = strings.TrimSpace(joiner)
	if joiner == "" {
		return Participants{}, ErrInvalidArgs
	}
	s := m.lookup(id)
	if s == nil {
		return Participants{}, ErrNotFound
	}

	s.mu.Lock()
	switch st := s.state.(type) {
	case waitingState:
		if st.owner == joiner {
			s.mu.Unlock()
			return Participants{}, ErrSelfJoin
		}
		s.state = activeState{white: st.owner, black: joiner}
	case activeState:
		s.mu.Unlock()
		return Participants{}, ErrAlreadyActive
	default:
		s.mu.Unlock()
		return Participants{}, ErrNotFound
	}
	p := s.participants()
	if started != nil {
		started(p, s.board.Snapshot())
	}
	s.mu.Unlock()

	obslog.L().Info("session_join", zap.String("session_id", s.id), zap.String("white", p.White), zap.String("black", p.Black))
	m.notify.LobbyChanged()
	return p, nil
}

// AttemptMove applies from->to for mover. A nil error means the move was
// accepted; board events are published before it returns.
func (m *Manager) AttemptMove(ctx context.Context, id, mover string, from, to chess.Square) error {
	if turn, err := m.GetCurrentTurnIdentity(id); err != nil {
		return err
	} else if turn != mover {
		return ErrNotYourTurn
	}
	s := m.lookup(id)
	if s == nil {
		return ErrNotFound
	}

	s.mu.Lock()
	act, ok := s.state.(activeState)
	if !ok {
		err := s.stateError()
		s.mu.Unlock()
		return err
	}
	// the turn may have flipped while we waited for the lock
	if act.identityOf(s.board.Turn()) != mover {
		s.mu.Unlock()
		return ErrNotYourTurn
	}
	applied := s.board.AttemptMove(from, to)
	finish := s.finish
	s.finish = nil
	s.mu.Unlock()

	if !applied {
		return ErrIllegalMove
	}
	obslog.L().Info("session_move",
		zap.String("session_id", s.id),
		zap.String("mover", mover),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	if finish != nil {
		finish(ctx)
	}
	return nil
}

// QueryLegalDestinations lists the squares the piece on from may move to.
func (m *Manager) QueryLegalDestinations(id string, from chess.Square) ([]chess.Square, error) {
	s := m.lookup(id)
	if s == nil {
		return nil, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ended := s.state.(endedState); ended {
		return nil, ErrNotFound
	}
	return s.board.LegalDestinations(from), nil
}

// EndSession removes the session with loser as the losing identity. Only the
// first of concurrent callers acts; it reports whether this call ended it.
func (m *Manager) EndSession(ctx context.Context, id, loser string) bool {
	s := m.remove(id)
	if s == nil {
		return false
	}
	s.mu.Lock()
	p := s.participants()
	prev := s.state.status()
	s.state = endedState{}
	s.mu.Unlock()

	out := Outcome{Loser: loser, Reason: "forfeit"}
	switch loser {
	case p.White:
		out.Winner = p.Black
	case p.Black:
		out.Winner = p.White
	}
	m.finalize(ctx, p, prev, out)
	return true
}

// endCheckmate ends a session the board reported as mated.
func (m *Manager) endCheckmate(ctx context.Context, id string, mated chess.Side) {
	s := m.remove(id)
	if s == nil {
		return
	}
	s.mu.Lock()
	p := s.participants()
	prev := s.state.status()
	s.state = endedState{}
	s.mu.Unlock()

	m.finalize(ctx, p, prev, Outcome{
		Winner: p.IdentityOf(mated.Opponent()),
		Loser:  p.IdentityOf(mated),
		Reason: "checkmate",
	})
}

func (m *Manager) endDraw(ctx context.Context, id, reason string) {
	s := m.remove(id)
	if s == nil {
		return
	}
	s.mu.Lock()
	p := s.participants()
	prev := s.state.status()
	s.state = endedState{}
	s.mu.Unlock()

	m.finalize(ctx, p, prev, Outcome{Draw: true, Reason: reason})
}

func (m *Manager) finalize(ctx context.Context, p Participants, prev Status, out Outcome) {
	decided := !out.Draw && out.Winner != "" && out.Loser != "" && out.Winner != out.Loser
	if decided && m.store != nil {
		if _, err := m.store.SaveResult(ctx, out.Winner, out.Loser); err != nil {
			obslog.L().Error("result_persist_error",
				zap.String("session_id", p.SessionID),
				zap.String("winner", out.Winner),
				zap.String("loser", out.Loser),
				zap.Error(err),
			)
		}
	}
	obslog.L().Info("session_end",
		zap.String("session_id", p.SessionID),
		zap.String("previous_status", string(prev)),
		zap.String("winner", out.Winner),
		zap.String("loser", out.Loser),
		zap.String("reason", out.Reason),
	)
	m.notify.GameEnded(p, out)
	if prev == StatusWaiting {
		m.notify.LobbyChanged()
	}
}

// EndAllSessionsFor forfeits every session identity takes part in.
func (m *Manager) EndAllSessionsFor(ctx context.Context, identity string) int {
	if strings.TrimSpace(identity) == "" {
		return 0
	}
	var ids []string
	for _, s := range m.all() {
		s.mu.Lock()
		if s.participants().Has(identity) {
			ids = append(ids, s.id)
		}
		s.mu.Unlock()
	}
	ended := 0
	for _, id := range ids {
		if m.EndSession(ctx, id, identity) {
			ended++
		}
	}
	return ended
}

// ListWaitingSessions returns the sessions still looking for an opponent,
// oldest first, with the owner's display name.
func (m *Manager) ListWaitingSessions(ctx context.Context) ([]WaitingSession, error) {
	var out []WaitingSession
	for _, s := range m.all() {
		s.mu.Lock()
		st, ok := s.state.(waitingState)
		s.mu.Unlock()
		if !ok {
			continue
		}
		out = append(out, WaitingSession{SessionID: s.id, Owner: st.owner, OwnerName: st.owner, CreatedAt: s.createdAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].SessionID < out[j].SessionID
	})
	if m.store == nil {
		return out, nil
	}
	for i := range out {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := m.store.GetProfile(ctx, out[i].Owner)
		if err != nil || p == nil {
			obslog.L().Debug("owner_name_lookup_failed", zap.String("owner", out[i].Owner), zap.Error(err))
			continue
		}
		if strings.TrimSpace(p.Name) != "" {
			out[i].OwnerName = p.Name
		}
	}
	return out, nil
}

// GetParticipants returns the seats of a waiting or active session.
func (m *Manager) GetParticipants(id string) (Participants, error) {
	info, err := m.Describe(id)
	if err != nil {
		return Participants{}, err
	}
	return info.Participants, nil
}

// GetCurrentTurnIdentity returns who may move next in an active session.
func (m *Manager) GetCurrentTurnIdentity(id string) (string, error) {
	s := m.lookup(id)
	if s == nil {
		return "", ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	act, ok := s.state.(activeState)
	if !ok {
		return "", s.stateError()
	}
	return act.identityOf(s.board.Turn()), nil
}

// Describe returns the status and seats of a live session.
func (m *Manager) Describe(id string) (SessionInfo, error) {
	s := m.lookup(id)
	if s == nil {
		return SessionInfo{}, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ended := s.state.(endedState); ended {
		return SessionInfo{}, ErrNotFound
	}
	return SessionInfo{Participants: s.participants(), Status: s.state.status(), CreatedAt: s.createdAt}, nil
}

// Snapshot returns the full board of a live session.
func (m *Manager) Snapshot(id string) (chess.Snapshot, error) {
	s := m.lookup(id)
	if s == nil {
		return chess.Snapshot{}, ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ended := s.state.(endedState); ended {
		return chess.Snapshot{}, ErrNotFound
	}
	return s.board.Snapshot(), nil
}

func (m *Manager) lookup(id string) *session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[strings.TrimSpace(id)]
}

func (m *Manager) remove(id string) *session {
	id = strings.TrimSpace(id)
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil
	}
	delete(m.sessions, id)
	return s
}

func (m *Manager) all() []*session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// newSessionID returns an 8 character upper-case code drawn from a random UUID.
func newSessionID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:8])
}
