package chesspresenter

import (
	"context"

	"github.com/park285/cheese-chess-server/internal/chess"
	"github.com/park285/cheese-chess-server/internal/domain"
	"github.com/park285/cheese-chess-server/internal/obslog"
	"github.com/park285/cheese-chess-server/internal/pvpchess"
	"github.com/park285/cheese-chess-server/pkg/chessdto"
	"go.uber.org/zap"
)

// Sender fans envelopes out to connected identities without blocking.
type Sender interface {
	SendTo(identity string, env chessdto.Envelope) int
	Broadcast(env chessdto.Envelope) int
}

// LobbyLister supplies the waiting list pushed on lobby changes.
type LobbyLister interface {
	ListWaitingSessions(ctx context.Context) ([]pvpchess.WaitingSession, error)
}

// Presenter turns session events into outbound envelopes. It implements
// pvpchess.Notifier.
type Presenter struct {
	out   Sender
	lines *Formatter
	lobby LobbyLister
}

var _ pvpchess.Notifier = (*Presenter)(nil)

func NewPresenter(out Sender, f *Formatter) *Presenter {
	return &Presenter{out: out, lines: f}
}

// AttachLobby wires the lister used for gameList broadcasts.
func (p *Presenter) AttachLobby(l LobbyLister) {
	p.lobby = l
}

func (p *Presenter) SessionCreated(id, owner string) {
	p.out.SendTo(owner, chessdto.NewEnvelope(chessdto.EvSessionCreated, chessdto.SessionCreated{SessionID: id, Owner: owner}))
	p.LobbyChanged()
}

func (p *Presenter) LobbyChanged() {
	env, err := p.LobbyEnvelope(context.Background())
	if err != nil {
		obslog.L().Warn("lobby_broadcast_error", zap.Error(err))
		return
	}
	p.out.Broadcast(env)
}

func (p *Presenter) CheckAsserted(parts pvpchess.Participants, by, against chess.Side) {
	p.toBoth(parts, chessdto.NewEnvelope(chessdto.EvInfo, chessdto.Info{SessionID: parts.SessionID, Text: p.lines.Check(by, against)}))
}

func (p *Presenter) MoveApplied(parts pvpchess.Participants, move chess.AppliedMove, next chess.Side) {
	p.toBoth(parts, chessdto.NewEnvelope(chessdto.EvSquareDelta, ToDTODelta(parts.SessionID, move)))
	p.toBoth(parts, chessdto.NewEnvelope(chessdto.EvInfo, chessdto.Info{SessionID: parts.SessionID, Text: p.lines.Move(move)}))
	if move.Final {
		// gameEnded follows; a turn notice would invite a move on a finished board
		return
	}
	p.turns(parts, parts.IdentityOf(next))
}

func (p *Presenter) GameEnded(parts pvpchess.Participants, out pvpchess.Outcome) {
	var line string
	switch {
	case out.Draw:
		line = p.lines.Draw(out.Reason)
	case out.Reason == "checkmate":
		winner := chess.White
		if out.Winner != "" && out.Winner == parts.Black {
			winner = chess.Black
		}
		line = p.lines.Checkmate(winner)
	case out.Loser != "" && parts.Black != "":
		line = p.lines.Forfeit(out.Loser)
	}
	for _, id := range parts.Identities() {
		if line != "" {
			p.out.SendTo(id, chessdto.NewEnvelope(chessdto.EvInfo, chessdto.Info{SessionID: parts.SessionID, Text: line}))
		}
		p.out.SendTo(id, chessdto.NewEnvelope(chessdto.EvGameEnded, chessdto.GameEnded{
			SessionID: parts.SessionID,
			Won:       !out.Draw && out.Winner == id,
			Draw:      out.Draw,
			Reason:    out.Reason,
			Winner:    out.Winner,
			Loser:     out.Loser,
		}))
	}
}

// GameStarted pushes the opening position and turn assignment to both seats.
// It is handed to JoinAndStart and runs under the session lock.
func (p *Presenter) GameStarted(parts pvpchess.Participants, snap chess.Snapshot) {
	for _, id := range parts.Identities() {
		p.out.SendTo(id, chessdto.NewEnvelope(chessdto.EvBoardSnapshot, ToDTOSnapshot(parts, snap, id)))
	}
	p.turns(parts, parts.IdentityOf(snap.Turn))
}

// Chat relays a chat line to both seats.
func (p *Presenter) Chat(parts pvpchess.Participants, from, text string) {
	p.toBoth(parts, chessdto.NewEnvelope(chessdto.EvChat, chessdto.Chat{SessionID: parts.SessionID, From: from, Text: text}))
}

// Direct delivers a private message to every connection of target.
func (p *Presenter) Direct(target, from, text string) int {
	return p.out.SendTo(target, chessdto.NewEnvelope(chessdto.EvDirectMessage, chessdto.DirectMessage{From: from, Text: p.lines.Direct(from, text)}))
}

// LobbyEnvelope builds the current gameList envelope.
func (p *Presenter) LobbyEnvelope(ctx context.Context) (chessdto.Envelope, error) {
	var list []pvpchess.WaitingSession
	if p.lobby != nil {
		var err error
		if list, err = p.lobby.ListWaitingSessions(ctx); err != nil {
			return chessdto.Envelope{}, err
		}
	}
	return chessdto.NewEnvelope(chessdto.EvGameList, ToDTOGameList(list)), nil
}

func (p *Presenter) LegalDestinationsEnvelope(id string, from chess.Square, squares []chess.Square) chessdto.Envelope {
	return chessdto.NewEnvelope(chessdto.EvLegalDestinations, chessdto.LegalDestinations{
		SessionID: id,
		From:      string(from),
		Squares:   squareStrings(squares),
	})
}

func (p *Presenter) FriendsEnvelope(friends []domain.Friend) chessdto.Envelope {
	return chessdto.NewEnvelope(chessdto.EvOnlineFriends, ToDTOFriends(friends))
}

func ErrorEnvelope(code, message string) chessdto.Envelope {
	return chessdto.NewEnvelope(chessdto.EvError, chessdto.DomainError{Code: code, Message: message})
}

func (p *Presenter) turns(parts pvpchess.Participants, mover string) {
	for _, id := range parts.Identities() {
		p.out.SendTo(id, chessdto.NewEnvelope(chessdto.EvTurn, chessdto.Turn{SessionID: parts.SessionID, IsYourTurn: id == mover}))
	}
}

func (p *Presenter) toBoth(parts pvpchess.Participants, env chessdto.Envelope) {
	for _, id := range parts.Identities() {
		p.out.SendTo(id, env)
	}
}
