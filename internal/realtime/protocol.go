package realtime

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/park285/cheese-chess-server/internal/adapter/chesspresenter"
	"github.com/park285/cheese-chess-server/internal/chess"
	"github.com/park285/cheese-chess-server/internal/domain"
	"github.com/park285/cheese-chess-server/internal/obslog"
	"github.com/park285/cheese-chess-server/internal/pvpchess"
	"github.com/park285/cheese-chess-server/pkg/chessdto"
	"go.uber.org/zap"
)

const maxTextRunes = 500

// Registry is the session surface the protocol drives.
type Registry interface {
	CreateSession(ctx context.Context, owner string) (string, error)
	JoinAndStart(ctx context.Context, id, joiner string, started func(pvpchess.Participants, chess.Snapshot)) (pvpchess.Participants, error)
	AttemptMove(ctx context.Context, id, mover string, from, to chess.Square) error
	QueryLegalDestinations(id string, from chess.Square) ([]chess.Square, error)
	GetCurrentTurnIdentity(id string) (string, error)
	GetParticipants(id string) (pvpchess.Participants, error)
	EndAllSessionsFor(ctx context.Context, identity string) int
}

// Presence is the online-set surface used by the server and protocol.
type Presence interface {
	MarkOnline(ctx context.Context, identity string) error
	MarkOffline(ctx context.Context, identity string) error
	OnlineFriendsOf(ctx context.Context, identity string) ([]domain.Friend, error)
	Ping(ctx context.Context) error
}

// Protocol executes client commands on behalf of the connection's identity.
type Protocol struct {
	reg      Registry
	presence Presence
	out      *chesspresenter.Presenter
}

func NewProtocol(reg Registry, presence Presence, out *chesspresenter.Presenter) *Protocol {
	return &Protocol{reg: reg, presence: presence, out: out}
}

// Connected pushes the waiting list to a fresh connection.
func (p *Protocol) Connected(ctx context.Context, peer Peer) {
	p.sendLobby(ctx, peer)
}

// Disconnected forfeits every session the identity is seated in.
func (p *Protocol) Disconnected(ctx context.Context, peer Peer) {
	if n := p.reg.EndAllSessionsFor(ctx, peer.Identity()); n > 0 {
		obslog.L().Info("ws_disconnect_forfeit", zap.String("identity", peer.Identity()), zap.Int("sessions", n))
	}
}

// Handle runs one inbound command for the identity bound to peer.
func (p *Protocol) Handle(ctx context.Context, peer Peer, cmd chessdto.Command) {
	me := peer.Identity()
	id := strings.TrimSpace(cmd.SessionID)
	switch cmd.Type {
	case chessdto.CmdCreateGame:
		if _, err := p.reg.CreateSession(ctx, me); err != nil {
			p.fail(peer, err)
		}

	case chessdto.CmdJoinGame:
		// the opening snapshot goes out under the session lock, ahead of any move
		if _, err := p.reg.JoinAndStart(ctx, id, me, p.out.GameStarted); err != nil {
			p.fail(peer, err)
		}

	case chessdto.CmdGetAvailableFields:
		from, err := chess.ParseSquare(cmd.From)
		if err != nil {
			return
		}
		if turn, err := p.reg.GetCurrentTurnIdentity(id); err != nil || turn != me {
			return
		}
		squares, err := p.reg.QueryLegalDestinations(id, from)
		if err != nil {
			return
		}
		peer.Send(p.out.LegalDestinationsEnvelope(id, from, squares))

	case chessdto.CmdMakeMove:
		from, ferr := chess.ParseSquare(cmd.From)
		to, terr := chess.ParseSquare(cmd.To)
		if ferr != nil || terr != nil {
			return
		}
		if err := p.reg.AttemptMove(ctx, id, me, from, to); err != nil {
			obslog.L().Debug("move_rejected",
				zap.String("session_id", id),
				zap.String("identity", me),
				zap.String("from", string(from)),
				zap.String("to", string(to)),
				zap.Error(err),
			)
		}

	case chessdto.CmdGetActiveGames:
		p.sendLobby(ctx, peer)

	case chessdto.CmdSendMessage:
		text, ok := cleanText(cmd.Text)
		if !ok {
			return
		}
		parts, err := p.reg.GetParticipants(id)
		if err != nil || !parts.Has(me) {
			return
		}
		p.out.Chat(parts, me, text)

	case chessdto.CmdGetOnlineFriends:
		friends, err := p.presence.OnlineFriendsOf(ctx, me)
		if err != nil {
			obslog.L().Warn("online_friends_error", zap.String("identity", me), zap.Error(err))
			peer.Send(chesspresenter.ErrorEnvelope(chessdto.CodeUnavailable, "friend list unavailable"))
			return
		}
		peer.Send(p.out.FriendsEnvelope(friends))

	case chessdto.CmdSendMessageToUser:
		target := strings.TrimSpace(cmd.Target)
		text, ok := cleanText(cmd.Text)
		if target == "" || !ok {
			return
		}
		p.out.Direct(target, me, text)

	default:
		peer.Send(chesspresenter.ErrorEnvelope(chessdto.CodeUnknownEvent, "unknown command "+cmd.Type))
	}
}

func (p *Protocol) sendLobby(ctx context.Context, peer Peer) {
	env, err := p.out.LobbyEnvelope(ctx)
	if err != nil {
		obslog.L().Warn("lobby_list_error", zap.String("identity", peer.Identity()), zap.Error(err))
		return
	}
	peer.Send(env)
}

// fail replies to the calling connection only.
func (p *Protocol) fail(peer Peer, err error) {
	peer.Send(chesspresenter.ErrorEnvelope(errorCode(err), err.Error()))
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, pvpchess.ErrNotFound):
		return chessdto.CodeNotFound
	case errors.Is(err, pvpchess.ErrSelfJoin):
		return chessdto.CodeSelfJoin
	case errors.Is(err, pvpchess.ErrAlreadyActive):
		return chessdto.CodeGameFull
	case errors.Is(err, pvpchess.ErrNotActive):
		return chessdto.CodeNotActive
	case errors.Is(err, pvpchess.ErrNotYourTurn):
		return chessdto.CodeNotYourTurn
	case errors.Is(err, pvpchess.ErrInvalidArgs):
		return chessdto.CodeBadRequest
	default:
		return chessdto.CodeUnavailable
	}
}

func cleanText(raw string) (string, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", false
	}
	if utf8.RuneCountInString(text) > maxTextRunes {
		text = string([]rune(text)[:maxTextRunes])
	}
	return text, true
}
