package netcontrol

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	mocks "github.com/ThaumielSparrow/LodeRunner-sub004/mocks/github.com/ThaumielSparrow/LodeRunner-sub004/pkg/queue"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/authority"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/levels"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/lobby"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/lock"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/messages"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/network"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/queue"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/repositories/models"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var epoch = time.Unix(1700000000, 0)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

// cluster is a server and its clients connected over loopback links, ticked
// by hand against a fake clock.
type cluster struct {
	t         *testing.T
	clock     *fakeClock
	configure func(*NewControllerOptions)

	server    *Controller
	clients   []*Controller
	toClients []*network.LoopbackLink
	peerIDs   []uint32
}

func newCluster(t *testing.T, clients int, configure func(*NewControllerOptions)) *cluster {
	c := &cluster{t: t, clock: &fakeClock{now: epoch}, configure: configure}
	c.server = c.controller("host")
	require.NoError(t, c.server.Host())
	for i := 0; i < clients; i++ {
		c.join(fmt.Sprintf("player%d", i+1))
	}
	c.pump()
	return c
}

func (c *cluster) controller(nick string) *Controller {
	catalog, err := levels.LoadBuiltin()
	require.NoError(c.t, err)

	opts := NewControllerOptions{
		Catalog:      catalog,
		StartMap:     "level-1",
		Nick:         nick,
		Colors:       []string{"white", "gold"},
		PingInterval: time.Hour,
		PeerTimeout:  time.Hour,
		Clock:        c.clock.Now,
	}
	if c.configure != nil {
		c.configure(&opts)
	}
	controller, err := NewController(context.Background(), opts)
	require.NoError(c.t, err)
	c.t.Cleanup(controller.Peers().Framer().Close)
	return controller
}

func (c *cluster) join(nick string) {
	client := c.controller(nick)
	toClient, toServer, peerID, err := network.Loopback(c.server.Peers(), client.Peers())
	require.NoError(c.t, err)
	require.NoError(c.t, client.JoinLink(toServer))

	c.clients = append(c.clients, client)
	c.toClients = append(c.toClients, toClient)
	c.peerIDs = append(c.peerIDs, peerID)
}

func (c *cluster) all() []*Controller {
	return append([]*Controller{c.server}, c.clients...)
}

func (c *cluster) tickAll() {
	c.server.Tick()
	for _, client := range c.clients {
		client.Tick()
	}
}

// pump ticks every controller until in-flight traffic has settled.
func (c *cluster) pump() {
	for i := 0; i < 8; i++ {
		c.tickAll()
	}
}

func (c *cluster) advance(step time.Duration, rounds int) {
	for i := 0; i < rounds; i++ {
		c.clock.now = c.clock.now.Add(step)
		c.tickAll()
	}
}

// spy records every envelope the server sends over a link.
func spy(link *network.LoopbackLink) *[]*messages.Envelope {
	var seen []*messages.Envelope
	link.SetDrop(func(env *messages.Envelope) bool {
		seen = append(seen, env)
		return false
	})
	return &seen
}

func ofType(envs []*messages.Envelope, t messages.Type) []*messages.Envelope {
	var out []*messages.Envelope
	for _, env := range envs {
		if env.Category != messages.Receipt && env.Type == t {
			out = append(out, env)
		}
	}
	return out
}

func TestController_JoinFlow(t *testing.T) {
	c := newCluster(t, 2, nil)

	assert.Equal(t, Server, c.server.GetStatus())
	assert.Equal(t, 3, c.server.Session().Lobby.Joined())
	assert.Contains(t, c.server.GetNetConsole().Lines(), "* player1 joined seat 2")

	for i, client := range c.clients {
		assert.Equal(t, Client, client.GetStatus())
		role, ok := client.Session().Role.(*ClientRole)
		require.True(t, ok)
		assert.Equal(t, c.peerIDs[i], role.PlayerID())
		assert.NotEmpty(t, role.Token())

		assert.Equal(t, 3, client.Session().Lobby.Joined())
		seat, ok := client.Session().Lobby.Seat(c.peerIDs[i])
		assert.True(t, ok)
		assert.Equal(t, i+2, seat)

		assert.Equal(t, c.server.Session().World.PlayerStates(), client.Session().World.PlayerStates())
		assert.Equal(t, c.server.Session().World.GoldStates(), client.Session().World.GoldStates())
	}

	player, ok := c.clients[0].Session().World.PlayerOf(c.peerIDs[0])
	require.True(t, ok)
	assert.Equal(t, world.Point{X: 12, Y: 7}, c.clients[0].Session().World.TileOf(player))
}

func TestController_AcceptedDigIsReplicated(t *testing.T) {
	c := newCluster(t, 2, nil)
	digger := c.clients[0]

	require.NoError(t, digger.RequestDig(13, 8))
	assert.Equal(t, world.Hole, digger.Session().World.Tile(13, 8), "predicted before the server answers")
	assert.True(t, digger.Session().World.Speculating(13, 8))

	c.pump()

	assert.Equal(t, world.Hole, c.server.Session().World.Tile(13, 8))
	for _, client := range c.clients {
		assert.Equal(t, world.Hole, client.Session().World.Tile(13, 8))
	}
	assert.False(t, digger.Session().World.Speculating(13, 8))
}

func TestController_RejectedDigOnlyReachesRequester(t *testing.T) {
	c := newCluster(t, 2, nil)
	digger := c.clients[0]
	bystander := spy(c.toClients[1])
	requester := spy(c.toClients[0])

	// directly below the player
	require.NoError(t, digger.RequestDig(12, 8))
	assert.Equal(t, world.Hole, digger.Session().World.Tile(12, 8))

	c.pump()

	assert.Equal(t, world.Brick, digger.Session().World.Tile(12, 8), "prediction rolled back")
	assert.Equal(t, world.Brick, c.server.Session().World.Tile(12, 8))
	assert.Equal(t, world.Brick, c.clients[1].Session().World.Tile(12, 8))
	assert.Len(t, ofType(*requester, messages.TypeDigResponseInvalid), 1)
	assert.Empty(t, ofType(*bystander, messages.TypeDigResponseInvalid))
	assert.Empty(t, ofType(*bystander, messages.TypeDigResponseValid))
}

func TestController_BombRequest(t *testing.T) {
	c := newCluster(t, 1, nil)
	client := c.clients[0]

	require.NoError(t, client.RequestBomb(13, 7))
	c.pump()

	assert.True(t, c.server.Session().World.BombAt(13, 7))
	assert.True(t, client.Session().World.BombAt(13, 7))
	assert.Len(t, client.Session().World.Bombs(), 1)
	assert.Equal(t, c.peerIDs[0], client.Session().World.Bombs()[0].Owner)
}

func TestController_CountdownStartsGame(t *testing.T) {
	c := newCluster(t, 1, nil)
	client := c.clients[0]

	require.NoError(t, c.server.SetReady(true))
	c.pump()
	assert.Equal(t, lobby.Waiting, c.server.Session().Lobby.State())

	require.NoError(t, client.SetReady(true))
	c.pump()

	assert.Equal(t, lobby.Started, c.server.Session().Lobby.State())
	assert.Equal(t, lobby.Started, client.Session().Lobby.State())
	goal, ok := c.server.Session().World.Var("gold_goal")
	assert.True(t, ok, "onready ran on the server")
	assert.Equal(t, "3", goal)
	assert.Contains(t, client.GetNetConsole().Lines(), "* game started")
}

func TestController_DedicatedServer(t *testing.T) {
	c := newCluster(t, 2, func(opts *NewControllerOptions) {
		opts.Dedicated = true
	})

	assert.Equal(t, 2, c.server.Session().Lobby.Joined())
	_, ok := c.server.Session().World.PlayerOf(messages.ServerOrigin)
	assert.False(t, ok)
	assert.ErrorIs(t, c.server.SetReady(true), ErrNoPlayer)

	for _, client := range c.clients {
		require.NoError(t, client.SetReady(true))
	}
	c.pump()
	assert.Equal(t, lobby.Started, c.server.Session().Lobby.State())
}

func TestController_VoteToSkip(t *testing.T) {
	c := newCluster(t, 2, nil)
	seen := spy(c.toClients[0])

	require.NoError(t, c.clients[0].SendVoteToSkip())
	assert.ErrorIs(t, c.clients[0].SendVoteToSkip(), lobby.ErrAlreadyVoted)
	require.NoError(t, c.clients[1].SendVoteToSkip())
	c.pump()

	transitions := ofType(*seen, messages.TypeTransitionToMap)
	require.Len(t, transitions, 1)
	assert.Equal(t, &messages.TransitionToMap{Map: "level-2"}, transitions[0].Payload)

	assert.Equal(t, "level-2", c.server.Session().World.Map())
	assert.Equal(t, 0, c.server.Session().Lobby.Votes())
	assert.Len(t, c.server.Session().World.Players(), 3)
	assert.False(t, c.server.IsLocalLocked())
	for _, client := range c.clients {
		assert.Equal(t, "level-2", client.Session().World.Map())
		assert.Equal(t, c.server.Session().World.PlayerStates(), client.Session().World.PlayerStates())
		assert.False(t, client.IsLocalLocked(), "the transition lock is released")
	}
}

func TestController_ScriptRequestWhileLocked(t *testing.T) {
	c := newCluster(t, 1, nil)
	client := c.clients[0]

	require.NoError(t, c.server.LockAll(lock.Hard))
	c.pump()
	require.True(t, client.IsGloballyLocked())

	seen := spy(c.toClients[0])
	require.NoError(t, client.SendScriptRequest(levels.OnReadyScript))
	c.pump()

	_, ok := c.server.Session().World.Var("gold_goal")
	assert.False(t, ok, "the script did not run")
	assert.Empty(t, ofType(*seen, messages.TypeUnauthorized))
	assert.Empty(t, ofType(*seen, messages.TypeCallScript))
	assert.ErrorIs(t, client.RequestDig(13, 8), ErrLocked)

	require.NoError(t, c.server.UnlockAll())
	c.pump()
	require.False(t, client.IsLocalLocked())

	require.NoError(t, client.SendScriptRequest("open_exit"))
	c.pump()
	assert.Equal(t, world.Empty, c.server.Session().World.Tile(8, 2))
	assert.Equal(t, world.Empty, client.Session().World.Tile(8, 2))
	assert.Len(t, ofType(*seen, messages.TypeCallScript), 1)
}

func TestController_UnknownScriptRequest(t *testing.T) {
	c := newCluster(t, 1, nil)
	client := c.clients[0]

	require.NoError(t, client.SendScriptRequest("nope"))
	c.pump()

	assert.Contains(t, client.GetNetConsole().Lines(), "* script-request refused: unknown script")
}

func TestController_ClientDisconnect(t *testing.T) {
	c := newCluster(t, 1, nil)
	client := c.clients[0]

	require.NoError(t, client.Disconnect())
	c.pump()

	assert.Equal(t, Offline, client.GetStatus())
	assert.Equal(t, Server, c.server.GetStatus())
	assert.Equal(t, 1, c.server.Session().Lobby.Joined())
	_, ok := c.server.Session().World.PlayerOf(c.peerIDs[0])
	assert.False(t, ok)
	assert.Contains(t, c.server.GetNetConsole().Lines(), fmt.Sprintf("* player %d left", c.peerIDs[0]))

	// offline play keeps working after leaving
	_, ok = client.Session().World.PlayerOf(messages.ServerOrigin)
	assert.True(t, ok)
	assert.ErrorIs(t, client.Disconnect(), ErrNotConnected)
}

func TestController_ServerDisconnect(t *testing.T) {
	c := newCluster(t, 2, nil)

	require.NoError(t, c.server.Disconnect())
	c.pump()

	assert.Equal(t, Offline, c.server.GetStatus())
	for _, client := range c.clients {
		assert.Equal(t, Offline, client.GetStatus())
		assert.Contains(t, client.GetNetConsole().Lines(), "* server closed the session")
	}
}

func TestController_DeliveryFailureTearsDownPeer(t *testing.T) {
	c := newCluster(t, 1, func(opts *NewControllerOptions) {
		opts.RetryInterval = 10 * time.Millisecond
		opts.MaxRetries = 2
	})
	c.toClients[0].SetDrop(func(*messages.Envelope) bool { return true })

	require.NoError(t, c.server.SendChat("anyone there?"))
	c.advance(20*time.Millisecond, 6)

	assert.Equal(t, Server, c.server.GetStatus())
	assert.Equal(t, 1, c.server.Session().Lobby.Joined())
	assert.Contains(t, c.server.GetNetConsole().Lines(), fmt.Sprintf("* player %d disconnected", c.peerIDs[0]))
	_, ok := c.server.Session().Role.(*ServerRole).Session(c.peerIDs[0])
	assert.False(t, ok)
}

func TestController_ReplicatesPlayersAndChat(t *testing.T) {
	c := newCluster(t, 2, nil)
	mover := c.clients[0]

	player, err := mover.localPlayer()
	require.NoError(t, err)
	require.NoError(t, mover.Session().World.Move(player.ID, 400, 224))
	require.NoError(t, mover.SendSyncLocalPlayer())
	require.NoError(t, mover.SendChat("hello"))
	c.pump()

	for _, peer := range []*Controller{c.server, c.clients[1]} {
		e, ok := peer.Session().World.Entity(player.ID)
		require.True(t, ok)
		assert.Equal(t, 400.0, e.X())
		assert.Contains(t, peer.GetNetConsole().Lines(), "player1: hello")
	}
}

func TestController_ReplicatesMotionAndLife(t *testing.T) {
	c := newCluster(t, 2, nil)
	mover := c.clients[0]

	player, err := mover.localPlayer()
	require.NoError(t, err)
	require.NoError(t, mover.Session().World.Move(player.ID, 320, 224))
	require.NoError(t, mover.SendStartMotion(1, 0))
	c.pump()
	for _, peer := range []*Controller{c.server, c.clients[1]} {
		e, ok := peer.Session().World.Entity(player.ID)
		require.True(t, ok)
		assert.Equal(t, 320.0, e.X())
	}

	require.NoError(t, mover.Session().World.Move(player.ID, 336, 224))
	require.NoError(t, mover.SendStopMotion())
	require.NoError(t, mover.SendEntityDie(player.ID))
	assert.True(t, player.Alive, "applied when the server echoes it")
	c.pump()
	for _, peer := range c.all() {
		e, ok := peer.Session().World.Entity(player.ID)
		require.True(t, ok)
		assert.Equal(t, 336.0, e.X())
		assert.False(t, e.Alive)
	}

	require.NoError(t, mover.SendEntityRespawn(player.ID, 64, 224))
	assert.False(t, player.Alive)
	c.pump()
	for _, peer := range c.all() {
		e, ok := peer.Session().World.Entity(player.ID)
		require.True(t, ok)
		assert.Equal(t, 64.0, e.X())
		assert.True(t, e.Alive)
	}

	// clients cannot kill entities they do not own
	host, ok := c.server.Session().World.PlayerOf(messages.ServerOrigin)
	require.True(t, ok)
	require.NoError(t, mover.SendEntityDie(host.ID))
	c.pump()
	for _, peer := range c.all() {
		e, ok := peer.Session().World.Entity(host.ID)
		require.True(t, ok)
		assert.True(t, e.Alive)
	}
	assert.ErrorIs(t, mover.SendEntityDie(999), world.ErrUnknownEntity)
}

func TestController_ServerSyncs(t *testing.T) {
	c := newCluster(t, 1, nil)
	client := c.clients[0]
	w := c.server.Session().World

	var enemy *world.Entity
	for _, e := range w.Entities() {
		if e.Kind == world.KindEnemy {
			enemy = e
		}
	}
	require.NotNil(t, enemy)
	require.NoError(t, w.Move(enemy.ID, 96, 224))
	require.NoError(t, c.server.SendSyncEnemy(enemy.ID, 0))

	gold := w.AllGold()
	require.NotEmpty(t, gold)
	gold[0].Collected = true
	require.NoError(t, c.server.SendSyncGold(gold[0].ID))
	c.pump()

	mirrored, ok := client.Session().World.Entity(enemy.ID)
	require.True(t, ok)
	assert.Equal(t, 96.0, mirrored.X())
	assert.Equal(t, w.GoldRemaining(), client.Session().World.GoldRemaining())

	for _, g := range w.AllGold() {
		g.Collected = true
	}
	require.NoError(t, c.server.SendSyncAllGold())
	c.pump()
	assert.Equal(t, 0, client.Session().World.GoldRemaining())

	assert.ErrorIs(t, client.SendSyncEnemy(enemy.ID, 0), ErrNotServer)
	assert.ErrorIs(t, client.SendSyncAllGold(), ErrNotServer)
	assert.ErrorIs(t, c.server.SendSyncGold(999), world.ErrUnknownGold)
}

func TestController_CallScriptAndTransition(t *testing.T) {
	c := newCluster(t, 1, nil)
	client := c.clients[0]

	require.NoError(t, c.server.SendCallScript("open_exit"))
	c.pump()
	assert.Equal(t, world.Empty, c.server.Session().World.Tile(8, 2))
	assert.Equal(t, world.Empty, client.Session().World.Tile(8, 2))
	assert.ErrorIs(t, client.SendCallScript("open_exit"), ErrNotServer)

	assert.ErrorIs(t, client.SendTransitionToMap("level-2"), ErrNotServer)
	assert.ErrorIs(t, c.server.SendTransitionToMap("level-99"), levels.ErrUnknownLevel)
	require.NoError(t, c.server.SendTransitionToMap("level-2"))
	c.pump()

	assert.Equal(t, "level-2", c.server.Session().World.Map())
	assert.Equal(t, "level-2", client.Session().World.Map())
	assert.Equal(t, lobby.Waiting, client.Session().Lobby.State())
	assert.False(t, client.IsLocalLocked())
}

func TestController_ConfirmDigTile(t *testing.T) {
	c := newCluster(t, 1, nil)
	client := c.clients[0]
	seen := spy(c.toClients[0])

	require.NoError(t, client.RequestDig(13, 8))
	c.pump()
	require.NoError(t, client.ConfirmDigTile(13, 8))
	c.pump()
	assert.Len(t, ofType(*seen, messages.TypeDigResponseValid), 2)
	assert.Equal(t, world.Hole, client.Session().World.Tile(13, 8))

	// a hole the server never dug is refilled
	require.NoError(t, client.Session().World.Dig(14, 8))
	require.NoError(t, client.ConfirmDigTile(14, 8))
	c.pump()
	assert.Len(t, ofType(*seen, messages.TypeInvalidateDig), 1)
	assert.Equal(t, world.Brick, client.Session().World.Tile(14, 8))
}

func TestController_SetAvatar(t *testing.T) {
	saved := make(chan *models.Preferences, 4)
	c := newCluster(t, 1, func(opts *NewControllerOptions) {
		opts.SavePreferences = saved
	})
	client := c.clients[0]

	require.NoError(t, client.SetAvatar("dig~ger", []string{"red"}))
	c.pump()

	prefs := <-saved
	assert.Equal(t, "dig-ger", prefs.Nick)
	assert.Equal(t, []string{"red"}, prefs.Colors)

	slot, ok := c.server.slotOf(c.peerIDs[0])
	require.True(t, ok)
	assert.Equal(t, "dig-ger", slot.Nick)
	assert.Equal(t, []string{"red"}, slot.Colors)
}

func TestController_CompleteLevel(t *testing.T) {
	c := newCluster(t, 1, nil)

	assert.ErrorIs(t, c.server.CompleteLevel(), authority.ErrUnauthorized)

	for _, g := range c.server.Session().World.AllGold() {
		g.Collected = true
	}
	require.NoError(t, c.server.CompleteLevel())
	c.pump()

	assert.Equal(t, "level-2", c.server.Session().World.Map())
	assert.Equal(t, "level-2", c.clients[0].Session().World.Map())
	assert.Contains(t, c.clients[0].GetNetConsole().Lines(), "* level level-1 complete")
}

func TestController_FailLevelRestarts(t *testing.T) {
	c := newCluster(t, 1, nil)

	require.NoError(t, c.server.FailLevel())
	c.pump()

	assert.Equal(t, "level-1", c.server.Session().World.Map())
	assert.Equal(t, lobby.Started, c.server.Session().Lobby.State())
	assert.Equal(t, lobby.Started, c.clients[0].Session().Lobby.State())
}

func TestController_Offline(t *testing.T) {
	c := &cluster{t: t, clock: &fakeClock{now: epoch}}
	offline := c.controller("solo")

	assert.Equal(t, Offline, offline.GetStatus())
	require.NoError(t, offline.RequestDig(3, 8))
	assert.Equal(t, world.Hole, offline.Session().World.Tile(3, 8))
	assert.ErrorIs(t, offline.RequestDig(2, 8), authority.ErrUnauthorized)

	require.NoError(t, offline.SendBeginGame())
	assert.Equal(t, lobby.Started, offline.Session().Lobby.State())

	require.NoError(t, offline.SendVoteToSkip())
	assert.Equal(t, "level-2", offline.Session().World.Map())
	_, ok := offline.Session().World.PlayerOf(messages.ServerOrigin)
	assert.True(t, ok)

	assert.ErrorIs(t, offline.SetReady(true), ErrNotConnected)
}

func TestController_Do(t *testing.T) {
	c := &cluster{t: t, clock: &fakeClock{now: epoch}}
	controller := c.controller("solo")

	called := false
	require.NoError(t, controller.Do(func(*Controller) { called = true }))
	assert.False(t, called)
	controller.Tick()
	assert.True(t, called)
}

func TestController_QueueErrors(t *testing.T) {
	catalog, err := levels.LoadBuiltin()
	require.NoError(t, err)

	mockQueue := mocks.NewQueue(t)
	controller, err := NewController(context.Background(), NewControllerOptions{
		Catalog:  catalog,
		StartMap: "level-1",
		Queue:    mockQueue,
	})
	require.NoError(t, err)
	defer controller.Peers().Framer().Close()

	mockQueue.EXPECT().ReadAllMessages().Return(nil, errors.New("boom")).Once()
	controller.Tick()
	assert.Equal(t, Offline, controller.GetStatus())

	mockQueue.EXPECT().Enqueue(mock.Anything).Return(queue.ErrQueueFull).Once()
	assert.ErrorIs(t, controller.Do(func(*Controller) {}), queue.ErrQueueFull)
}

func TestController_UnknownStartMap(t *testing.T) {
	catalog, err := levels.LoadBuiltin()
	require.NoError(t, err)

	_, err = NewController(context.Background(), NewControllerOptions{Catalog: catalog, StartMap: "level-99"})
	assert.ErrorIs(t, err, levels.ErrUnknownLevel)
}

func TestRingConsole(t *testing.T) {
	console := NewRingConsole(3)
	assert.Empty(t, console.Lines())

	for i := 1; i <= 4; i++ {
		console.Push(fmt.Sprint(i))
	}
	assert.Equal(t, []string{"2", "3", "4"}, console.Lines())
}

func TestController_ForgedGoldIsRefused(t *testing.T) {
	c := newCluster(t, 1, nil)
	client := c.clients[0]
	role := client.Session().Role.(*ClientRole)
	seen := spy(c.toClients[0])

	gold := c.server.Session().World.AllGold()
	remaining := c.server.Session().World.GoldRemaining()
	for _, g := range gold {
		state := g.State()
		state.Collected = true
		require.NoError(t, client.send(role, &messages.SyncOneGold{Gold: state}, c.clock.Now()))
	}
	require.NoError(t, client.CompleteLevel())
	c.pump()

	assert.Equal(t, remaining, c.server.Session().World.GoldRemaining())
	assert.Equal(t, remaining, client.Session().World.GoldRemaining())
	assert.Equal(t, "level-1", c.server.Session().World.Map())
	assert.Equal(t, "level-1", client.Session().World.Map())
	assert.Len(t, ofType(*seen, messages.TypeUnauthorized), len(gold)+1)
	assert.Contains(t, client.GetNetConsole().Lines(), "* sync-one-gold refused: "+authority.ReasonNotOnGold)
}

func TestController_CollectGold(t *testing.T) {
	c := newCluster(t, 2, nil)
	collector := c.clients[0]
	w := c.server.Session().World

	var target *world.Gold
	for _, g := range w.AllGold() {
		if g.Tile == (world.Point{X: 15, Y: 7}) {
			target = g
		}
	}
	require.NotNil(t, target)

	require.NoError(t, collector.CollectGold(target.ID))
	c.pump()
	assert.False(t, target.Collected, "the player is three tiles away")

	player, err := collector.localPlayer()
	require.NoError(t, err)
	require.NoError(t, collector.Session().World.Move(player.ID, 480, 224))
	require.NoError(t, collector.SendSyncLocalPlayer())
	c.pump()

	require.NoError(t, collector.CollectGold(target.ID))
	mirrored, ok := collector.Session().World.Gold(target.ID)
	require.True(t, ok)
	assert.False(t, mirrored.Collected, "applied when the server accepts")
	c.pump()

	assert.True(t, target.Collected)
	for _, client := range c.clients {
		g, ok := client.Session().World.Gold(target.ID)
		require.True(t, ok)
		assert.True(t, g.Collected)
		assert.Equal(t, w.GoldRemaining(), client.Session().World.GoldRemaining())
	}

	assert.ErrorIs(t, collector.CollectGold(999), world.ErrUnknownGold)
	assert.ErrorIs(t, collector.SendSyncGold(target.ID), ErrNotServer)
}

func TestController_DetonateBomb(t *testing.T) {
	c := newCluster(t, 1, nil)
	client := c.clients[0]
	seen := spy(c.toClients[0])

	require.NoError(t, client.RequestBomb(13, 7))
	c.pump()
	bombs := c.server.Session().World.Bombs()
	require.Len(t, bombs, 1)

	require.NoError(t, client.RequestBomb(11, 7))
	c.pump()
	assert.False(t, c.server.Session().World.BombAt(11, 7), "capacity is exhausted")

	require.NoError(t, c.server.DetonateBomb(bombs[0].ID))
	c.pump()

	for _, peer := range c.all() {
		assert.Empty(t, peer.Session().World.Bombs())
		assert.Equal(t, world.Hole, peer.Session().World.Tile(13, 8), "the brick below is blasted")
	}
	created := ofType(*seen, messages.TypeCreateBomb)
	require.Len(t, created, 2)
	assert.True(t, created[1].Payload.(*messages.CreateBomb).Detonated)

	require.NoError(t, client.RequestBomb(11, 7))
	c.pump()
	assert.True(t, c.server.Session().World.BombAt(11, 7), "capacity is freed")
	assert.True(t, client.Session().World.BombAt(11, 7))

	assert.ErrorIs(t, c.server.DetonateBomb(999), world.ErrUnknownBomb)
	assert.ErrorIs(t, client.DetonateBomb(bombs[0].ID), ErrNotServer)
}

func TestController_RefillHole(t *testing.T) {
	c := newCluster(t, 1, nil)
	client := c.clients[0]
	seen := spy(c.toClients[0])

	require.NoError(t, client.RequestDig(13, 8))
	c.pump()

	player, err := client.localPlayer()
	require.NoError(t, err)
	require.NoError(t, client.Session().World.Move(player.ID, 416, 256))
	require.NoError(t, client.SendSyncLocalPlayer())
	c.pump()

	require.NoError(t, c.server.RefillHole(13, 8))
	c.pump()

	assert.Len(t, ofType(*seen, messages.TypeInvalidateDig), 1)
	for _, peer := range c.all() {
		assert.Equal(t, world.Brick, peer.Session().World.Tile(13, 8))
		e, ok := peer.Session().World.Entity(player.ID)
		require.True(t, ok)
		assert.False(t, e.Alive, "trapped in the refilled hole")
	}

	assert.ErrorIs(t, c.server.RefillHole(13, 8), ErrNotAHole)
	assert.ErrorIs(t, client.RefillHole(13, 8), ErrNotServer)
}

func TestController_HazardTimers(t *testing.T) {
	c := newCluster(t, 1, func(opts *NewControllerOptions) {
		opts.BombFuse = time.Second
		opts.HoleRefill = 2 * time.Second
	})
	client := c.clients[0]

	require.NoError(t, client.RequestBomb(13, 7))
	require.NoError(t, client.RequestDig(11, 8))
	c.pump()
	require.True(t, client.Session().World.BombAt(13, 7))
	require.Equal(t, world.Hole, client.Session().World.Tile(11, 8))

	c.advance(time.Second, 1)
	c.pump()
	assert.False(t, client.Session().World.BombAt(13, 7), "the fuse burned down")
	assert.Equal(t, world.Hole, client.Session().World.Tile(13, 8))

	c.advance(time.Second, 1)
	c.pump()
	assert.Equal(t, world.Brick, client.Session().World.Tile(11, 8), "the dug hole refilled")
	assert.Equal(t, world.Hole, client.Session().World.Tile(13, 8), "the blast hole is younger")

	c.advance(time.Second, 1)
	c.pump()
	for _, peer := range c.all() {
		assert.Equal(t, world.Brick, peer.Session().World.Tile(13, 8))
	}
}

func TestController_OfflineHazardTimers(t *testing.T) {
	c := &cluster{t: t, clock: &fakeClock{now: epoch}, configure: func(opts *NewControllerOptions) {
		opts.HoleRefill = time.Second
	}}
	offline := c.controller("solo")

	require.NoError(t, offline.RequestDig(3, 8))
	offline.Tick()
	assert.Equal(t, world.Hole, offline.Session().World.Tile(3, 8))

	c.clock.now = c.clock.now.Add(time.Second)
	offline.Tick()
	assert.Equal(t, world.Brick, offline.Session().World.Tile(3, 8))
}

func TestController_ShutdownAnnouncesDisconnect(t *testing.T) {
	c := newCluster(t, 2, func(opts *NewControllerOptions) {
		opts.ShutdownGrace = 50 * time.Millisecond
		opts.TickInterval = time.Millisecond
	})
	seen := spy(c.toClients[0])

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.server.Start(ctx)

	assert.Equal(t, Offline, c.server.GetStatus())
	assert.Len(t, ofType(*seen, messages.TypeServerDisconnecting), 1)

	c.pump()
	for _, client := range c.clients {
		assert.Equal(t, Offline, client.GetStatus())
		assert.Contains(t, client.GetNetConsole().Lines(), "* server closed the session")
	}
}
