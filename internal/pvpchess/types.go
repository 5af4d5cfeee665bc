package pvpchess

import (
	"context"
	"errors"
	"time"

	"github.com/park285/cheese-chess-server/internal/chess"
	"github.com/park285/cheese-chess-server/internal/domain"
)

// Status represents a PvP session lifecycle state.
type Status string

const (
	StatusWaiting Status = "WAITING"
	StatusActive  Status = "ACTIVE"
	StatusEnded   Status = "ENDED"
)

var (
	ErrInvalidArgs   = errors.New("invalid arguments")
	ErrNotFound      = errors.New("session not found")
	ErrSelfJoin      = errors.New("cannot join your own session")
	ErrAlreadyActive = errors.New("session already has two players")
	ErrNotActive     = errors.New("session is waiting for an opponent")
	ErrNotYourTurn   = errors.New("not your turn")
	ErrIllegalMove   = errors.New("illegal move")
)

// Participants are the identities bound to a session. Black is empty while waiting.
type Participants struct {
	SessionID string
	White     string
	Black     string
}

// IdentityOf returns the identity playing side, or "" if the seat is empty.
func (p Participants) IdentityOf(side chess.Side) string {
	if side == chess.Black {
		return p.Black
	}
	return p.White
}

// Identities lists the seated identities, white first.
func (p Participants) Identities() []string {
	out := make([]string, 0, 2)
	if p.White != "" {
		out = append(out, p.White)
	}
	if p.Black != "" && p.Black != p.White {
		out = append(out, p.Black)
	}
	return out
}

func (p Participants) Has(identity string) bool {
	return identity != "" && (p.White == identity || p.Black == identity)
}

// SessionInfo is a point-in-time view of one session.
type SessionInfo struct {
	Participants
	Status    Status
	CreatedAt time.Time
}

// WaitingSession is one entry of the lobby list.
type WaitingSession struct {
	SessionID string
	Owner     string
	OwnerName string
	CreatedAt time.Time
}

// Outcome describes how a session ended. Winner is empty for draws and for
// sessions that never had an opponent.
type Outcome struct {
	Winner string
	Loser  string
	Draw   bool
	Reason string
}

// Notifier publishes session events to clients. Implementations must not
// block. CheckAsserted and MoveApplied run with the session lock held and
// must not call back into the Manager; the other methods run with no lock held.
type Notifier interface {
	SessionCreated(id, owner string)
	LobbyChanged()
	CheckAsserted(p Participants, by, against chess.Side)
	MoveApplied(p Participants, move chess.AppliedMove, next chess.Side)
	GameEnded(p Participants, outcome Outcome)
}

// Store is the persistence the Manager needs.
type Store interface {
	SaveResult(ctx context.Context, winner, loser string) (*domain.MatchResult, error)
	GetProfile(ctx context.Context, login string) (*domain.Profile, error)
}

type nopNotifier struct{}

func (nopNotifier) SessionCreated(string, string) {}
func (nopNotifier) LobbyChanged() {}
func (nopNotifier) CheckAsserted(Participants, chess.Side, chess.Side) {}
func (nopNotifier) MoveApplied(Participants, chess.AppliedMove, chess.Side) {}
func (nopNotifier) GameEnded(Participants, Outcome) {}
