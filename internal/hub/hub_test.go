package hub

import (
	"context"
	"ctchen222/tictactoe-arena/internal/config"
	"ctchen222/tictactoe-arena/internal/events"
	"ctchen222/tictactoe-arena/internal/events/mocks"
	"ctchen222/tictactoe-arena/internal/game"
	"ctchen222/tictactoe-arena/internal/match"
	"ctchen222/tictactoe-arena/pkg/proto"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var errFull = errors.New("send buffer full")

// fakeClient records messages. It is only touched from the test goroutine.
type fakeClient struct {
	id     string
	limit  int
	msgs   []*proto.ServerToClientMessage
	closed bool
}

func (c *fakeClient) ID() string { return c.id }

func (c *fakeClient) Send(msg *proto.ServerToClientMessage) error {
	if c.limit > 0 && len(c.msgs) >= c.limit {
		return errFull
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *fakeClient) Close() { c.closed = true }

func (c *fakeClient) types() []string {
	out := make([]string, 0, len(c.msgs))
	for _, m := range c.msgs {
		out = append(out, m.Type)
	}
	return out
}

func (c *fakeClient) last() *proto.ServerToClientMessage {
	if len(c.msgs) == 0 {
		return nil
	}
	return c.msgs[len(c.msgs)-1]
}

func (c *fakeClient) reset() { c.msgs = nil }

func testConfig() config.HubConfig {
	return config.HubConfig{SweepInterval: time.Minute, StatsInterval: time.Minute, SendBuffer: 16}
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h, err := New(testConfig(), events.NopPublisher{})
	require.NoError(t, err)
	return h
}

func connect(h *Hub, id string) *fakeClient {
	c := &fakeClient{id: id}
	h.attach(context.Background(), c)
	return c
}

// deliver runs one inbound message through the hub the way Run does.
func deliver(h *Hub, id string, msg *proto.ClientToServerMessage) {
	ctx := context.Background()
	h.dispatch(ctx, inbound{ctx: ctx, clientID: id, msg: msg})
	h.flushDrops(ctx)
}

func disconnect(h *Hub, id string) {
	ctx := context.Background()
	h.handleDisconnect(ctx, id)
	h.flushDrops(ctx)
}

func joinMsg(name string) *proto.ClientToServerMessage {
	return &proto.ClientToServerMessage{Type: proto.TypeJoin, Name: name}
}

func moveMsg(cell int) *proto.ClientToServerMessage {
	return &proto.ClientToServerMessage{Type: proto.TypeMove, Cell: &cell}
}

func rematchMsg() *proto.ClientToServerMessage {
	return &proto.ClientToServerMessage{Type: proto.TypeRematch}
}

// drainEvents returns the types of every event queued for publishing.
func drainEvents(h *Hub) []string {
	var out []string
	for {
		select {
		case ev := <-h.outbox:
			out = append(out, ev.Type)
		default:
			return out
		}
	}
}

func pair(t *testing.T, h *Hub) (*fakeClient, *fakeClient) {
	t.Helper()
	ann, bo := connect(h, "ann"), connect(h, "bo")
	deliver(h, "ann", joinMsg("Ann"))
	deliver(h, "bo", joinMsg("Bo"))
	require.Equal(t, proto.TypeMatchStarted, ann.last().Type)
	ann.reset()
	bo.reset()
	drainEvents(h)
	return ann, bo
}

func TestJoin_PairsAndStarts(t *testing.T) {
	h := newTestHub(t)
	ann, bo := connect(h, "ann"), connect(h, "bo")

	deliver(h, "ann", joinMsg("Ann"))
	assert.Equal(t, []string{proto.TypeWaiting, proto.TypeRosterUpdated}, ann.types())
	assert.Equal(t, []string{events.TypeMatchCreated}, drainEvents(h))

	deliver(h, "bo", joinMsg("Bo"))
	assert.Equal(t, []string{proto.TypeWaiting, proto.TypeRosterUpdated, proto.TypeRosterUpdated, proto.TypeMatchStarted}, ann.types())
	assert.Equal(t, []string{proto.TypeRosterUpdated, proto.TypeMatchStarted}, bo.types())
	assert.Equal(t, []string{events.TypeMatchStarted}, drainEvents(h))

	for _, c := range []*fakeClient{ann, bo} {
		started := c.last()
		require.NotNil(t, started.Match)
		assert.Equal(t, match.StatePlaying, started.Match.State)
		require.NotNil(t, started.Match.CurrentTurn)
		assert.Equal(t, "Ann", started.Match.CurrentTurn.Name)
		assert.Len(t, started.Players, 2)
	}
}

func TestJoin_DuplicateRepliesToSenderOnly(t *testing.T) {
	h := newTestHub(t)
	ann, bo := pair(t, h)

	deliver(h, "bo", joinMsg("Bo"))
	assert.Empty(t, ann.msgs)
	assert.Equal(t, []string{proto.TypeMatchStarted}, bo.types())
	assert.Empty(t, drainEvents(h))
}

func TestScenario_AnnAndBo(t *testing.T) {
	h := newTestHub(t)
	ann, bo := pair(t, h)

	deliver(h, "ann", moveMsg(4))
	deliver(h, "bo", moveMsg(0))
	ann.reset()
	bo.reset()

	deliver(h, "ann", moveMsg(0))
	require.Equal(t, []string{proto.TypeActionRejected}, ann.types())
	assert.Equal(t, "CELL_OCCUPIED", ann.last().Reason)
	assert.Empty(t, bo.msgs, "a rejected move is never broadcast")
	ann.reset()

	deliver(h, "ann", moveMsg(2))
	deliver(h, "bo", moveMsg(1))
	ann.reset()
	bo.reset()

	deliver(h, "ann", moveMsg(6))
	for _, c := range []*fakeClient{ann, bo} {
		assert.Equal(t, []string{proto.TypeMatchUpdated, proto.TypeMatchOver}, c.types())
		over := c.last()
		require.NotNil(t, over.Winner)
		assert.Equal(t, "Ann", over.Winner.Name)
		assert.False(t, over.Draw)
		assert.Equal(t, match.StateFinished, over.Match.State)
	}
	assert.Equal(t, []string{events.TypeMatchFinished}, drainEvents(h))
}

func TestMove_Rejections(t *testing.T) {
	h := newTestHub(t)
	loner := connect(h, "loner")

	deliver(h, "loner", moveMsg(4))
	assert.Equal(t, "NOT_FOUND", loner.last().Reason)

	deliver(h, "loner", &proto.ClientToServerMessage{Type: proto.TypeMove})
	assert.Equal(t, "INVALID_INDEX", loner.last().Reason)

	deliver(h, "loner", &proto.ClientToServerMessage{Type: "dance"})
	assert.Equal(t, "INVALID_MESSAGE", loner.last().Reason)

	_, bo := pair(t, h)
	deliver(h, "bo", moveMsg(4))
	assert.Equal(t, []string{proto.TypeActionRejected}, bo.types())
	assert.Equal(t, "NOT_YOUR_TURN", bo.last().Reason)
}

func TestMessageFromDetachedClientIgnored(t *testing.T) {
	h := newTestHub(t)
	deliver(h, "ghost", joinMsg("Ghost"))
	assert.Equal(t, 0, h.registry.Stats().TotalMatches)
}

func TestRematch(t *testing.T) {
	h := newTestHub(t)
	ann, bo := pair(t, h)

	deliver(h, "bo", rematchMsg())
	assert.Equal(t, "NOT_FINISHED", bo.last().Reason)
	bo.reset()

	for i, cell := range []int{0, 3, 1, 4, 2} {
		deliver(h, []string{"ann", "bo"}[i%2], moveMsg(cell))
	}
	ann.reset()
	bo.reset()
	drainEvents(h)

	deliver(h, "bo", rematchMsg())
	for _, c := range []*fakeClient{ann, bo} {
		require.Equal(t, []string{proto.TypeRematchPending}, c.types())
		assert.Equal(t, []game.PlayerMark{game.PlayerO}, c.last().Match.ReadyForRematch)
	}
	ann.reset()
	bo.reset()

	deliver(h, "ann", rematchMsg())
	for _, c := range []*fakeClient{ann, bo} {
		require.Equal(t, []string{proto.TypeMatchStarted}, c.types())
		snap := c.last().Match
		assert.Equal(t, match.StatePlaying, snap.State)
		assert.Equal(t, game.Board{}, snap.Board)
		assert.Equal(t, 2, snap.Round)
		assert.Equal(t, 1, snap.Score[game.PlayerX])
	}
	assert.Equal(t, []string{events.TypeMatchStarted}, drainEvents(h))
}

func TestDisconnect_SurvivorJoinsWaitingPlayer(t *testing.T) {
	h := newTestHub(t)
	ann, bo := pair(t, h)
	cy := connect(h, "cy")
	deliver(h, "cy", joinMsg("Cy"))
	cy.reset()
	drainEvents(h)

	disconnect(h, "ann")

	assert.True(t, ann.closed)
	assert.Equal(t, []string{
		proto.TypeOpponentLeft,
		proto.TypeFindingNewOpponent,
		proto.TypeRosterUpdated,
		proto.TypeMatchStarted,
	}, bo.types())
	assert.Equal(t, []string{proto.TypeRosterUpdated, proto.TypeMatchStarted}, cy.types())

	started := bo.last().Match
	assert.Equal(t, game.Board{}, started.Board, "survivor never resumes the old board")
	assert.ElementsMatch(t, []string{"Cy", "Bo"}, []string{started.Players[0].Name, started.Players[1].Name})
	assert.Equal(t, []string{events.TypeMatchAborted, events.TypePlayerRepaired, events.TypeMatchStarted}, drainEvents(h))

	s := h.registry.Stats()
	assert.Equal(t, 1, s.TotalMatches)
	assert.Equal(t, 2, s.TotalPlayers)
}

func TestDisconnect_SurvivorWaitsAlone(t *testing.T) {
	h := newTestHub(t)
	_, bo := pair(t, h)

	disconnect(h, "ann")
	assert.Equal(t, []string{
		proto.TypeOpponentLeft,
		proto.TypeFindingNewOpponent,
		proto.TypeWaiting,
		proto.TypeRosterUpdated,
	}, bo.types())
	assert.Equal(t, []string{events.TypeMatchAborted, events.TypePlayerRepaired, events.TypeMatchCreated}, drainEvents(h))

	// a second disconnect for the same connection changes nothing
	bo.reset()
	disconnect(h, "ann")
	assert.Empty(t, bo.msgs)
}

func TestDisconnect_WaitingPlayer(t *testing.T) {
	h := newTestHub(t)
	ann := connect(h, "ann")
	deliver(h, "ann", joinMsg("Ann"))

	disconnect(h, "ann")
	assert.True(t, ann.closed)
	assert.Equal(t, 0, h.registry.Stats().TotalMatches)
}

func TestSlowClientDropped(t *testing.T) {
	h := newTestHub(t)
	ann := connect(h, "ann")
	bo := &fakeClient{id: "bo", limit: 2}
	h.attach(context.Background(), bo)

	deliver(h, "ann", joinMsg("Ann"))
	deliver(h, "bo", joinMsg("Bo"))
	require.Len(t, bo.msgs, 2)
	ann.reset()

	// bo's queue is full, so the broadcast after ann's move drops bo
	deliver(h, "ann", moveMsg(4))

	assert.True(t, bo.closed)
	assert.Equal(t, []string{
		proto.TypeMatchUpdated,
		proto.TypeOpponentLeft,
		proto.TypeFindingNewOpponent,
		proto.TypeWaiting,
		proto.TypeRosterUpdated,
	}, ann.types())
}

func TestSweep(t *testing.T) {
	h := newTestHub(t)
	connect(h, "ann")
	deliver(h, "ann", joinMsg("Ann"))

	h.sweep(context.Background())
	assert.Equal(t, 1, h.registry.Stats().WaitingMatches, "a live waiting player is never swept")
	h.logStats(context.Background())
}

// chanClient is safe to use across the hub and test goroutines.
type chanClient struct {
	id     string
	out    chan *proto.ServerToClientMessage
	closed chan struct{}
	once   sync.Once
}

func newChanClient(id string) *chanClient {
	return &chanClient{id: id, out: make(chan *proto.ServerToClientMessage, 32), closed: make(chan struct{})}
}

func (c *chanClient) ID() string { return c.id }

func (c *chanClient) Send(msg *proto.ServerToClientMessage) error {
	select {
	case c.out <- msg:
		return nil
	default:
		return errFull
	}
}

func (c *chanClient) Close() { c.once.Do(func() { close(c.closed) }) }

func (c *chanClient) next(t *testing.T) *proto.ServerToClientMessage {
	t.Helper()
	select {
	case msg := <-c.out:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("%s: no message within timeout", c.id)
		return nil
	}
}

func TestRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockPublisher(ctrl)

	published := make(chan string, 4)
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, ev events.Event) error {
		published <- ev.Type
		return nil
	}).Times(2)

	h, err := New(testConfig(), publisher)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	ann, bo := newChanClient("ann"), newChanClient("bo")
	require.NoError(t, h.Register(ctx, ann))
	require.NoError(t, h.Deliver(ctx, "ann", joinMsg("Ann")))
	require.NoError(t, h.Register(ctx, bo))
	require.NoError(t, h.Deliver(ctx, "bo", joinMsg("Bo")))

	for _, want := range []string{proto.TypeWaiting, proto.TypeRosterUpdated, proto.TypeRosterUpdated, proto.TypeMatchStarted} {
		assert.Equal(t, want, ann.next(t).Type)
	}
	assert.Equal(t, proto.TypeRosterUpdated, bo.next(t).Type)
	assert.Equal(t, proto.TypeMatchStarted, bo.next(t).Type)

	stats, err := h.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PlayingMatches)
	assert.Equal(t, 2, stats.TotalPlayers)

	for _, want := range []string{events.TypeMatchCreated, events.TypeMatchStarted} {
		select {
		case got := <-published:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("event %s not published", want)
		}
	}

	cancel()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
	select {
	case <-ann.closed:
	default:
		t.Error("clients should be closed when the hub stops")
	}

	assert.ErrorIs(t, h.Register(context.Background(), newChanClient("late")), ErrClosed)
	_, err = h.Stats(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPublishFailureDoesNotAffectPlay(t *testing.T) {
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockPublisher(ctrl)
	attempted := make(chan struct{}, 1)
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, events.Event) error {
		attempted <- struct{}{}
		return errors.New("redis down")
	})

	h, err := New(testConfig(), publisher)
	require.NoError(t, err)
	ann, bo := pair(t, h)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.runPublisher(ctx)
		close(stopped)
	}()

	for i, cell := range []int{0, 3, 1, 4, 2} {
		deliver(h, []string{"ann", "bo"}[i%2], moveMsg(cell))
	}
	select {
	case <-attempted:
	case <-time.After(2 * time.Second):
		t.Fatal("match_finished was never published")
	}
	cancel()
	<-stopped

	assert.Equal(t, proto.TypeMatchOver, ann.last().Type)
	assert.Equal(t, proto.TypeMatchOver, bo.last().Type)
	assert.False(t, ann.closed)
}
