package realtime

import (
	"context"
	"sync"
	"testing"

	"github.com/park285/cheese-chess-server/internal/adapter/chesspresenter"
	"github.com/park285/cheese-chess-server/internal/domain"
	"github.com/park285/cheese-chess-server/internal/msgcat"
	"github.com/park285/cheese-chess-server/internal/pvpchess"
	"github.com/park285/cheese-chess-server/internal/storage"
	"github.com/park285/cheese-chess-server/pkg/chessdto"
)

type memPresence struct {
	mu     sync.Mutex
	online map[string]int
	repo   *storage.Memory
}

func (m *memPresence) MarkOnline(_ context.Context, id string) error {
	m.mu.Lock()
	m.online[id]++
	m.mu.Unlock()
	return nil
}

func (m *memPresence) MarkOffline(_ context.Context, id string) error {
	m.mu.Lock()
	if m.online[id] <= 1 {
		delete(m.online, id)
	} else {
		m.online[id]--
	}
	m.mu.Unlock()
	return nil
}

func (m *memPresence) OnlineFriendsOf(ctx context.Context, id string) ([]domain.Friend, error) {
	friends, err := m.repo.GetFriends(ctx, id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Friend
	for _, f := range friends {
		if m.online[f.Login] > 0 {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memPresence) Ping(context.Context) error { return nil }

type stack struct {
	proto    *Protocol
	hub      *Hub
	repo     *storage.Memory
	mgr      *pvpchess.Manager
	presence *memPresence
}

func newStack(t *testing.T) *stack {
	t.Helper()
	msgs, err := msgcat.New("")
	if err != nil {
		t.Fatalf("msgcat: %v", err)
	}
	hub := NewHub()
	repo := storage.NewMemoryRepository()
	mgr := pvpchess.NewManager(repo)
	pres := chesspresenter.NewPresenter(hub, chesspresenter.NewFormatter(msgs))
	pres.AttachLobby(mgr)
	mgr.AttachNotifier(pres)
	presence := &memPresence{online: make(map[string]int), repo: repo}
	return &stack{proto: NewProtocol(mgr, presence, pres), hub: hub, repo: repo, mgr: mgr, presence: presence}
}

func (s *stack) connect(ctx context.Context, id string) *fakePeer {
	p := &fakePeer{id: id}
	s.hub.Register(p)
	s.presence.MarkOnline(ctx, id)
	s.proto.Connected(ctx, p)
	return p
}

func (s *stack) disconnect(ctx context.Context, p *fakePeer) {
	s.hub.Unregister(p)
	s.proto.Disconnected(ctx, p)
	s.presence.MarkOffline(ctx, p.id)
}

func cmd(kind, session, from, to string) chessdto.Command {
	return chessdto.Command{Type: kind, SessionID: session, From: from, To: to}
}

func lastTurn(t *testing.T, p *fakePeer) bool {
	t.Helper()
	turns := p.of(chessdto.EvTurn)
	if len(turns) == 0 {
		t.Fatalf("%s has no turn notice", p.id)
	}
	return turns[len(turns)-1].Payload.(chessdto.Turn).IsYourTurn
}

func TestScenarioCreateJoinMoveDisconnect(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	a := s.connect(ctx, "A")
	if len(a.of(chessdto.EvGameList)) != 1 {
		t.Fatalf("waiting list not pushed on connect")
	}
	b := s.connect(ctx, "B")

	s.proto.Handle(ctx, a, cmd(chessdto.CmdCreateGame, "", "", ""))
	created := a.of(chessdto.EvSessionCreated)
	if len(created) != 1 {
		t.Fatalf("creator not told about the session")
	}
	id := created[0].Payload.(chessdto.SessionCreated).SessionID
	lists := b.of(chessdto.EvGameList)
	if games := lists[len(lists)-1].Payload.(chessdto.GameList).Games; len(games) != 1 || games[0].SessionID != id {
		t.Fatalf("B did not see the new session: %+v", games)
	}

	s.proto.Handle(ctx, b, cmd(chessdto.CmdJoinGame, id, "", ""))
	for _, p := range []*fakePeer{a, b} {
		if len(p.of(chessdto.EvBoardSnapshot)) != 1 {
			t.Fatalf("%s did not receive a snapshot", p.id)
		}
	}
	if !lastTurn(t, a) || lastTurn(t, b) {
		t.Fatalf("A should move first")
	}

	// out of turn: silent, no delta
	s.proto.Handle(ctx, b, cmd(chessdto.CmdMakeMove, id, "e7", "e5"))
	s.proto.Handle(ctx, b, cmd(chessdto.CmdGetAvailableFields, id, "e7", ""))
	if len(a.of(chessdto.EvSquareDelta)) != 0 || len(b.of(chessdto.EvLegalDestinations)) != 0 {
		t.Fatalf("out of turn command had an effect")
	}
	if len(b.of(chessdto.EvError)) != 0 {
		t.Fatalf("out of turn move surfaced an error")
	}

	s.proto.Handle(ctx, a, cmd(chessdto.CmdGetAvailableFields, id, "e2", ""))
	dests := a.of(chessdto.EvLegalDestinations)
	if len(dests) != 1 || len(dests[0].Payload.(chessdto.LegalDestinations).Squares) != 2 {
		t.Fatalf("unexpected destinations: %+v", dests)
	}

	s.proto.Handle(ctx, a, cmd(chessdto.CmdMakeMove, id, "e2", "e4"))
	for _, p := range []*fakePeer{a, b} {
		if len(p.of(chessdto.EvSquareDelta)) != 1 {
			t.Fatalf("%s missed the square delta", p.id)
		}
	}
	if lastTurn(t, a) || !lastTurn(t, b) {
		t.Fatalf("turn did not pass to B")
	}

	s.disconnect(ctx, b)
	ended := a.of(chessdto.EvGameEnded)
	if len(ended) != 1 {
		t.Fatalf("A not notified of the end")
	}
	if ge := ended[0].Payload.(chessdto.GameEnded); !ge.Won || ge.Winner != "A" || ge.Loser != "B" {
		t.Fatalf("unexpected end payload: %+v", ge)
	}
	results := s.repo.Results()
	if len(results) != 1 || results[0].Winner != "A" || results[0].Loser != "B" {
		t.Fatalf("unexpected results: %+v", results)
	}
	if _, err := s.mgr.Describe(id); err == nil {
		t.Fatalf("session survived the disconnect")
	}
}

func TestJoinErrorsGoToCallerOnly(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	a := s.connect(ctx, "A")
	b := s.connect(ctx, "B")
	c := s.connect(ctx, "C")

	s.proto.Handle(ctx, a, cmd(chessdto.CmdCreateGame, "", "", ""))
	id := a.of(chessdto.EvSessionCreated)[0].Payload.(chessdto.SessionCreated).SessionID

	s.proto.Handle(ctx, a, cmd(chessdto.CmdJoinGame, id, "", ""))
	errs := a.of(chessdto.EvError)
	if len(errs) != 1 || errs[0].Payload.(chessdto.DomainError).Code != chessdto.CodeSelfJoin {
		t.Fatalf("expected self join error: %+v", errs)
	}

	s.proto.Handle(ctx, b, cmd(chessdto.CmdJoinGame, "NOPE", "", ""))
	if errs := b.of(chessdto.EvError); len(errs) != 1 || errs[0].Payload.(chessdto.DomainError).Code != chessdto.CodeNotFound {
		t.Fatalf("expected not found error: %+v", errs)
	}

	s.proto.Handle(ctx, b, cmd(chessdto.CmdJoinGame, id, "", ""))
	c.reset()
	s.proto.Handle(ctx, c, cmd(chessdto.CmdJoinGame, id, "", ""))
	if errs := c.of(chessdto.EvError); len(errs) != 1 || errs[0].Payload.(chessdto.DomainError).Code != chessdto.CodeGameFull {
		t.Fatalf("expected game full error: %+v", errs)
	}
	if len(a.of(chessdto.EvError)) != 1 || len(b.of(chessdto.EvError)) != 1 {
		t.Fatalf("join failure leaked to other identities")
	}
}

func TestChatAndSocialCommands(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	s.repo.PutUser("B", "Bee")
	s.repo.AddFriend("A", "B")
	s.repo.AddFriend("A", "Z")
	a := s.connect(ctx, "A")
	b := s.connect(ctx, "B")
	c := s.connect(ctx, "C")

	s.proto.Handle(ctx, a, cmd(chessdto.CmdCreateGame, "", "", ""))
	id := a.of(chessdto.EvSessionCreated)[0].Payload.(chessdto.SessionCreated).SessionID
	s.proto.Handle(ctx, b, cmd(chessdto.CmdJoinGame, id, "", ""))

	s.proto.Handle(ctx, a, chessdto.Command{Type: chessdto.CmdSendMessage, SessionID: id, Text: " gl hf "})
	chat := b.of(chessdto.EvChat)
	if len(chat) != 1 || chat[0].Payload.(chessdto.Chat).Text != "gl hf" {
		t.Fatalf("unexpected chat: %+v", chat)
	}
	s.proto.Handle(ctx, c, chessdto.Command{Type: chessdto.CmdSendMessage, SessionID: id, Text: "spam"})
	if len(a.of(chessdto.EvChat)) != 1 {
		t.Fatalf("outsider chat delivered")
	}

	s.proto.Handle(ctx, a, chessdto.Command{Type: chessdto.CmdGetOnlineFriends})
	friends := a.of(chessdto.EvOnlineFriends)
	if len(friends) != 1 {
		t.Fatalf("expected onlineFriends reply")
	}
	if list := friends[0].Payload.(chessdto.OnlineFriends).Friends; len(list) != 1 || list[0].Login != "B" || list[0].Name != "Bee" {
		t.Fatalf("unexpected friends: %+v", list)
	}

	s.proto.Handle(ctx, c, chessdto.Command{Type: chessdto.CmdSendMessageToUser, Target: "A", Text: "hello"})
	dm := a.of(chessdto.EvDirectMessage)
	if len(dm) != 1 || dm[0].Payload.(chessdto.DirectMessage).Text != "C: hello" {
		t.Fatalf("unexpected dm: %+v", dm)
	}

	s.proto.Handle(ctx, c, chessdto.Command{Type: "dance"})
	if errs := c.of(chessdto.EvError); len(errs) != 1 || errs[0].Payload.(chessdto.DomainError).Code != chessdto.CodeUnknownEvent {
		t.Fatalf("unknown command not rejected: %+v", errs)
	}
}

func TestDisconnectWhileWaitingRefreshesLobby(t *testing.T) {
	ctx := context.Background()
	s := newStack(t)
	a := s.connect(ctx, "A")
	b := s.connect(ctx, "B")
	s.proto.Handle(ctx, a, cmd(chessdto.CmdCreateGame, "", "", ""))
	b.reset()

	s.disconnect(ctx, a)
	lists := b.of(chessdto.EvGameList)
	if len(lists) != 1 || len(lists[0].Payload.(chessdto.GameList).Games) != 0 {
		t.Fatalf("lobby not refreshed: %+v", lists)
	}
	if len(s.repo.Results()) != 0 {
		t.Fatalf("waiting session produced a result")
	}
}
