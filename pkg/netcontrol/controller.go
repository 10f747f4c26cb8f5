package netcontrol

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/delivery"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/levels"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/lobby"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/lock"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/log"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/messages"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/network"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/queue"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/repositories"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/repositories/models"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/scripts"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/telemetry"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/world"
)

var (
	ErrNotServer    = errors.New("only the server can do this")
	ErrNotClient    = errors.New("only a client can do this")
	ErrNotOffline   = errors.New("already in a network session")
	ErrLocked       = errors.New("input is locked")
	ErrNoPlayer     = errors.New("no local player")
	ErrNotConnected = errors.New("not connected")
)

const (
	DefaultTickInterval  = 16 * time.Millisecond
	DefaultShutdownGrace = 2 * time.Second
)

// NetworkSession is the state shared by every part of the synchronization
// layer. It is owned by the tick goroutine.
type NetworkSession struct {
	Role    Role
	Locks   *lock.Coordinator
	Lobby   *lobby.Consensus
	World   *world.World
	Scripts *scripts.Runner
}

// command is work scheduled onto the tick goroutine with Do.
type command func(c *Controller)

// Controller is the facade gameplay code talks to. Its methods must be called
// from the tick goroutine; other goroutines use Do.
type Controller struct {
	session *NetworkSession
	status  atomic.Int32

	catalog  *levels.Catalog
	queue    queue.Queue
	peers    *network.PeerManager
	console  Console
	clock    func() time.Time
	ctx      context.Context
	interval time.Duration
	grace    time.Duration

	hazards    *hazards
	bombFuse   time.Duration
	holeRefill time.Duration

	sessionOpts sessionOptions
	dedicated   bool

	prefs     *models.Preferences
	savePrefs chan<- *models.Preferences

	logger *log.Logger
}

type sessionOptions struct {
	retryInterval time.Duration
	maxRetries    int
	peerTimeout   time.Duration
	pingInterval  time.Duration
}

type NewControllerOptions struct {
	Catalog  *levels.Catalog
	StartMap string
	// Queue receives peer events, inbound envelopes and scheduled commands.
	Queue    queue.Queue
	Compress bool
	Console  Console

	Seats     int
	Quorum    int
	Dedicated bool

	TickInterval  time.Duration
	RetryInterval time.Duration
	MaxRetries    int
	PeerTimeout   time.Duration
	PingInterval  time.Duration
	// ShutdownGrace bounds the disconnect handshake when Start returns.
	ShutdownGrace time.Duration
	BombFuse      time.Duration
	HoleRefill    time.Duration

	// Repository supplies the saved nick and colors. Nil uses Nick and Colors.
	Repository      repositories.Repository
	Profile         string
	Nick            string
	Colors          []string
	SavePreferences chan<- *models.Preferences

	Clock func() time.Time
}

// NewController creates an offline controller playing StartMap.
func NewController(ctx context.Context, opts NewControllerOptions) (*Controller, error) {
	if opts.Queue == nil {
		opts.Queue = queue.NewInMemoryQueue(0)
	}
	if opts.Console == nil {
		opts.Console = NewRingConsole(0)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = delivery.DefaultMaxRetries
	}
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = DefaultShutdownGrace
	}
	if opts.BombFuse <= 0 {
		opts.BombFuse = DefaultBombFuse
	}
	if opts.HoleRefill <= 0 {
		opts.HoleRefill = DefaultHoleRefill
	}

	framer, err := network.NewFramer(opts.Compress)
	if err != nil {
		return nil, fmt.Errorf("failed to create framer: %w", err)
	}

	c := &Controller{
		session: &NetworkSession{
			Role:  OfflineRole{},
			Locks: lock.NewCoordinator(),
			Lobby: lobby.NewConsensus(opts.Seats, opts.Quorum),
		},
		catalog:  opts.Catalog,
		queue:    opts.Queue,
		peers:    network.NewPeerManager(opts.Queue, framer),
		console:  opts.Console,
		clock:    opts.Clock,
		ctx:      ctx,
		interval: opts.TickInterval,
		grace:    opts.ShutdownGrace,

		bombFuse:   opts.BombFuse,
		holeRefill: opts.HoleRefill,

		sessionOpts: sessionOptions{
			retryInterval: opts.RetryInterval,
			maxRetries:    opts.MaxRetries,
			peerTimeout:   opts.PeerTimeout,
			pingInterval:  opts.PingInterval,
		},
		dedicated: opts.Dedicated,
		savePrefs: opts.SavePreferences,
		logger:    log.Named("netcontrol"),
	}

	c.prefs = c.loadPreferences(ctx, opts)

	if err := c.loadLevel(opts.StartMap); err != nil {
		return nil, err
	}
	c.session.World.AddPlayer(messages.ServerOrigin)

	return c, nil
}

func (c *Controller) loadPreferences(ctx context.Context, opts NewControllerOptions) *models.Preferences {
	defaults := &models.Preferences{Profile: opts.Profile, Nick: opts.Nick, Colors: opts.Colors}
	if opts.Repository == nil {
		return defaults
	}
	prefs, err := opts.Repository.LoadPreferences(ctx, opts.Profile)
	if err != nil {
		if !repositories.IsNotFound(err) {
			c.logger.Error("Failed to load preferences for profile %s: %v", opts.Profile, err)
		}
		return defaults
	}
	return prefs
}

// Session exposes the shared network session state.
func (c *Controller) Session() *NetworkSession {
	return c.session
}

// Peers returns the peer registry transports attach links to.
func (c *Controller) Peers() *network.PeerManager {
	return c.peers
}

// Preferences returns the local nick and colors.
func (c *Controller) Preferences() models.Preferences {
	return *c.prefs
}

// Start runs the tick loop until ctx is done.
func (c *Controller) Start(ctx context.Context) {
	c.ctx = ctx
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return
		case <-ticker.C:
			c.Tick()
		}
	}
}

// Do schedules fn on the tick goroutine.
func (c *Controller) Do(fn func(c *Controller)) error {
	return c.queue.Enqueue(command(fn))
}

// Tick drains the inbound queue, then drives retransmission, pings and
// liveness of every session.
func (c *Controller) Tick() {
	start := time.Now()
	now := c.clock()

	items, err := c.queue.ReadAllMessages()
	if err != nil {
		c.logger.Error("Failed to read inbound queue: %v", err)
	}
	for _, item := range items {
		switch item := item.(type) {
		case *network.PeerEvent:
			c.handlePeerEvent(item, now)
		case *network.Inbound:
			c.handleInbound(item, now)
		case command:
			item(c)
		default:
			c.logger.Error("Unknown queue item %T", item)
		}
	}

	switch role := c.session.Role.(type) {
	case *ServerRole:
		c.tickHazards(now)
		c.tickServer(role, now)
	case *ClientRole:
		c.tickClient(role, now)
	default:
		c.tickHazards(now)
	}

	telemetry.TickDuration.Observe(time.Since(start).Seconds())
}

func (c *Controller) handlePeerEvent(event *network.PeerEvent, now time.Time) {
	switch role := c.session.Role.(type) {
	case *ServerRole:
		c.serverPeerEvent(role, event, now)
	case *ClientRole:
		c.clientPeerEvent(role, event)
	default:
		if event.Type == network.PeerEventTypeConnect {
			c.logger.Debug("Refusing peer %d while offline", event.PeerID)
			c.peers.Disconnect(event.PeerID, ErrNotServer)
		}
	}
}

func (c *Controller) handleInbound(in *network.Inbound, now time.Time) {
	env := in.Envelope
	switch role := c.session.Role.(type) {
	case *ServerRole:
		c.serverInbound(role, in.PeerID, env, now)
	case *ClientRole:
		c.clientInbound(role, in.PeerID, env, now)
	default:
		c.logger.Trace("Dropping %s while offline", env)
	}
}

// shutdown announces the disconnect and keeps ticking until the other side
// confirms or the grace period runs out.
func (c *Controller) shutdown() {
	if c.GetStatus() != Offline {
		ctx, cancel := context.WithTimeout(context.Background(), c.grace)
		defer cancel()
		c.ctx = ctx

		if err := c.Disconnect(); err != nil {
			c.logger.Debug("Disconnect: %v", err)
		}
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for c.GetStatus() != Offline {
			c.Tick()
			if c.GetStatus() == Offline {
				break
			}
			select {
			case <-ctx.Done():
				c.logger.Warn("Disconnect handshake timed out")
				c.goOffline("")
			case <-ticker.C:
			}
		}
	}
	c.peers.Framer().Close()
}

// GetStatus reports the peer role. It is safe to call from any goroutine.
func (c *Controller) GetStatus() Status {
	return Status(c.status.Load())
}

func (c *Controller) setRole(role Role) {
	c.session.Role = role
	c.status.Store(int32(role.Status()))
}

// IsLocalLocked reports whether local player input must be withheld.
func (c *Controller) IsLocalLocked() bool {
	return c.session.Locks.IsLocked()
}

// IsGloballyLocked reports whether all gameplay simulation must halt.
func (c *Controller) IsGloballyLocked() bool {
	return c.session.Locks.IsGloballyLocked()
}

// GetNetConsole returns the console chat and notices are pushed into.
func (c *Controller) GetNetConsole() Console {
	return c.console
}

func (c *Controller) notice(format string, args ...interface{}) {
	c.console.Push("* " + fmt.Sprintf(format, args...))
}

// loadLevel replaces the world with a fresh copy of the named level.
func (c *Controller) loadLevel(name string) error {
	level, err := c.catalog.Get(name)
	if err != nil {
		return err
	}
	w := world.New(level)
	c.session.World = w
	c.hazards = newHazards()
	c.session.Scripts = scripts.NewRunner(w, func(text string) { c.notice("%s", text) })
	if role, ok := c.session.Role.(*ServerRole); ok {
		role.validator.SetWorld(w, c.session.Scripts)
	}
	return nil
}

// goOffline ends the network session and restarts the current level locally.
func (c *Controller) goOffline(reason string) {
	switch role := c.session.Role.(type) {
	case *ServerRole:
		for _, id := range role.PeerIDs() {
			role.sessions[id].Close()
		}
	case *ClientRole:
		role.server.Close()
	}
	c.peers.DisconnectAll(nil)

	c.setRole(OfflineRole{})
	c.session.Locks.Reset()
	c.session.Lobby.Reset()

	if err := c.loadLevel(c.session.World.Map()); err != nil {
		c.logger.Error("Failed to reload level: %v", err)
	}
	c.session.World.AddPlayer(messages.ServerOrigin)

	if reason != "" {
		c.notice("%s", reason)
	}
	c.logger.Info("Session is offline")
}

// localID is the peer id of this process: the server is always 0.
func (c *Controller) localID() uint32 {
	if role, ok := c.session.Role.(*ClientRole); ok {
		return role.playerID
	}
	return messages.ServerOrigin
}

// localPlayer returns the entity controlled from this process.
func (c *Controller) localPlayer() (*world.Entity, error) {
	if role, ok := c.session.Role.(*ClientRole); ok && role.playerID == 0 {
		return nil, ErrNoPlayer
	}
	e, ok := c.session.World.PlayerOf(c.localID())
	if !ok {
		return nil, ErrNoPlayer
	}
	return e, nil
}
