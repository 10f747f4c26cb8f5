package netcontrol

import (
	"errors"
	"time"

	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/authority"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/levels"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/lobby"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/messages"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/network"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/session"
	"github.com/google/uuid"
)

// Host turns an offline controller into the server of a new session. Unless
// the controller is dedicated, the host takes seat 1.
func (c *Controller) Host() error {
	if c.GetStatus() != Offline {
		return ErrNotOffline
	}

	role := &ServerRole{
		sessions:  make(map[uint32]*session.Session),
		validator: authority.NewValidator(c.session.World, c.session.Scripts, c.session.Locks),
	}
	c.setRole(role)
	c.session.Lobby.Reset()
	c.session.Locks.Reset()

	if c.dedicated {
		c.session.World.RemoveOwnedBy(messages.ServerOrigin)
	} else {
		if _, err := c.session.Lobby.Join(messages.ServerOrigin, c.prefs.Nick, c.prefs.Colors); err != nil {
			return err
		}
		if _, ok := c.session.World.PlayerOf(messages.ServerOrigin); !ok {
			c.session.World.AddPlayer(messages.ServerOrigin)
		}
	}

	c.logger.Info("Hosting %s", c.session.World.Map())
	c.notice("hosting %s", c.session.World.Map())
	return nil
}

func (c *Controller) newSession(peerID, localID uint32, link network.Link, now time.Time) *session.Session {
	return session.New(session.NewSessionOptions{
		PeerID:        peerID,
		LocalID:       localID,
		Link:          link,
		RetryInterval: c.sessionOpts.retryInterval,
		MaxRetries:    c.sessionOpts.maxRetries,
		PeerTimeout:   c.sessionOpts.peerTimeout,
		PingInterval:  c.sessionOpts.pingInterval,
	}, now)
}

func (c *Controller) serverPeerEvent(role *ServerRole, event *network.PeerEvent, now time.Time) {
	switch event.Type {
	case network.PeerEventTypeConnect:
		if role.closing {
			c.peers.Disconnect(event.PeerID, ErrNotServer)
			return
		}
		s := c.newSession(event.PeerID, messages.ServerOrigin, event.Link, now)
		role.sessions[event.PeerID] = s
		c.logger.Info("Peer %d connected from %s", event.PeerID, event.Link.RemoteAddr())

		c.sendTo(role, event.PeerID, &messages.PlayerID{PlayerID: event.PeerID, Session: uuid.NewString()}, now)
		c.sendTo(role, event.PeerID, &messages.RequestNick{}, now)
	case network.PeerEventTypeDisconnect:
		if _, ok := role.sessions[event.PeerID]; !ok {
			return
		}
		c.logger.Info("Peer %d dropped without disconnecting: %v", event.PeerID, event.Err)
		c.teardown(role, event.PeerID, now, true)
	}
}

// sendTo sends a payload to one client.
func (c *Controller) sendTo(role *ServerRole, peerID uint32, payload messages.Payload, now time.Time) {
	s, ok := role.sessions[peerID]
	if !ok {
		return
	}
	if err := s.Send(c.ctx, messages.NewEnvelope(messages.ServerOrigin, payload), now); err != nil {
		c.logger.Debug("Failed to send %s to %d: %v", payload.Type(), peerID, err)
	}
}

// broadcast sends a payload to every client except the listed ones.
func (c *Controller) broadcast(role *ServerRole, payload messages.Payload, now time.Time, except ...uint32) {
	env := messages.NewEnvelope(messages.ServerOrigin, payload)
	for _, id := range role.PeerIDs() {
		if contains(except, id) {
			continue
		}
		if err := role.sessions[id].Send(c.ctx, env, now); err != nil {
			c.logger.Debug("Failed to send %s to %d: %v", payload.Type(), id, err)
		}
	}
}

func contains(ids []uint32, id uint32) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (c *Controller) serverInbound(role *ServerRole, peerID uint32, env *messages.Envelope, now time.Time) {
	s, ok := role.sessions[peerID]
	if !ok {
		c.logger.Trace("Dropping %s from unknown peer %d", env, peerID)
		return
	}

	dispatch, err := s.OnReceive(c.ctx, env, now)
	if err != nil {
		if errors.Is(err, session.ErrDuplicateDelivery) {
			c.logger.Trace("Duplicate %s from %d", env, peerID)
		} else {
			c.logger.Debug("Receive from %d: %v", peerID, err)
		}
	}
	if !dispatch {
		return
	}

	// the origin field is not trusted, the link identifies the sender
	env.Origin = peerID

	if verdict, ok := role.validator.Handle(env); ok {
		c.deliverVerdict(role, peerID, verdict, now)
		return
	}

	switch payload := env.Payload.(type) {
	case *messages.AvatarData:
		c.serverAvatarData(role, peerID, payload, now)
	case *messages.VoteToSkip:
		seat, ok := c.session.Lobby.Seat(peerID)
		if !ok {
			return
		}
		c.recordVote(role, seat, now)
	case *messages.Chat:
		payload.Text = messages.SanitizeText(payload.Text)
		if slot, ok := c.slotOf(peerID); ok {
			payload.Nick = slot.Nick
		}
		c.console.Push(payload.Nick + ": " + payload.Text)
		c.broadcast(role, payload, now, peerID)
	case *messages.EntityStartMotion:
		if c.ownedBy(payload.EntityID, peerID) {
			c.moveEntity(payload.EntityID, payload.X, payload.Y)
			c.broadcast(role, payload, now, peerID)
		}
	case *messages.EntityStopMotion:
		if c.ownedBy(payload.EntityID, peerID) {
			c.moveEntity(payload.EntityID, payload.X, payload.Y)
			c.broadcast(role, payload, now, peerID)
		}
	case *messages.SyncPlayer:
		if c.ownedBy(payload.Player.EntityID, peerID) {
			c.moveEntity(payload.Player.EntityID, payload.Player.X, payload.Player.Y)
			c.broadcast(role, &messages.SyncPlayerByID{Player: payload.Player}, now, peerID)
		}
	// clients wait for the echo before applying their own deaths and respawns
	case *messages.EntityDie:
		if c.ownedBy(payload.EntityID, peerID) {
			_ = c.session.World.Kill(payload.EntityID)
			c.broadcast(role, payload, now)
		}
	case *messages.EntityRespawn:
		if c.ownedBy(payload.EntityID, peerID) {
			_ = c.session.World.Respawn(payload.EntityID, payload.X, payload.Y)
			c.broadcast(role, payload, now)
		}
	case *messages.LevelComplete:
		if c.session.World.GoldRemaining() > 0 {
			c.sendTo(role, peerID, &messages.Unauthorized{Request: messages.TypeLevelComplete, Reason: "gold remaining"}, now)
			return
		}
		c.completeLevel(role, now)
	case *messages.LevelFailed:
		if c.anyPlayerAlive() {
			c.logger.Debug("Ignoring level-failed from %d while players are alive", peerID)
			return
		}
		c.failLevel(role, now)
	case *messages.ClientDisconnecting:
		c.sendTo(role, peerID, &messages.ConfirmDisconnect{}, now)
		c.teardown(role, peerID, now, false)
		c.notice("player %d left", peerID)
	case *messages.ConfirmDisconnect:
		c.teardown(role, peerID, now, false)
	default:
		c.logger.Debug("Ignoring %s from client %d", env, peerID)
	}
}

func (c *Controller) ownedBy(entityID, peerID uint32) bool {
	e, ok := c.session.World.Entity(entityID)
	return ok && e.Owner == peerID
}

func (c *Controller) moveEntity(entityID uint32, x, y float64) {
	if err := c.session.World.Move(entityID, x, y); err != nil {
		c.logger.Trace("Move: %v", err)
	}
}

func (c *Controller) anyPlayerAlive() bool {
	for _, e := range c.session.World.Players() {
		if e.Alive {
			return true
		}
	}
	return false
}

func (c *Controller) slotOf(peerID uint32) (lobby.Slot, bool) {
	seat, ok := c.session.Lobby.Seat(peerID)
	if !ok {
		return lobby.Slot{}, false
	}
	slot, err := c.session.Lobby.Slot(seat)
	return slot, err == nil
}

// deliverVerdict routes the replies of an authority decision. Replies to the
// server's own requests are only reported locally.
func (c *Controller) deliverVerdict(role *ServerRole, requester uint32, verdict authority.Verdict, now time.Time) {
	c.arm(verdict, now)
	for _, reply := range verdict.Replies {
		switch {
		case reply.Broadcast:
			c.broadcast(role, reply.Payload, now)
		case reply.To == messages.ServerOrigin:
			if err := verdict.Err(); err != nil {
				c.logger.Debug("Local request rejected: %v", err)
			}
		default:
			c.sendTo(role, reply.To, reply.Payload, now)
		}
	}
	if verdict.Outcome == authority.Dropped {
		c.logger.Debug("Dropped request from %d: %s", requester, verdict.Reason)
	}
}

// serverAvatarData seats a new client or updates the slot of a seated one.
func (c *Controller) serverAvatarData(role *ServerRole, peerID uint32, avatar *messages.AvatarData, now time.Time) {
	_, seated := c.session.Lobby.Seat(peerID)

	nick := messages.SanitizeText(avatar.Nick)
	seat, err := c.session.Lobby.Join(peerID, nick, avatar.Colors)
	if err != nil {
		c.sendTo(role, peerID, &messages.Unauthorized{Request: messages.TypeAvatarData, Reason: err.Error()}, now)
		return
	}
	if err := c.session.Lobby.SetReady(seat, avatar.Ready); err != nil {
		c.logger.Error("Failed to set ready for seat %d: %v", seat, err)
	}

	if seated {
		c.broadcastSlot(role, seat, now)
		c.evaluateLobby(role, now)
		return
	}

	if _, ok := c.session.World.PlayerOf(peerID); !ok {
		c.session.World.AddPlayer(peerID)
	}
	c.notice("%s joined seat %d", nick, seat)

	c.sendTo(role, peerID, &messages.TransitionToMap{Map: c.session.World.Map()}, now)
	for _, slot := range c.session.Lobby.Slots() {
		if slot.Joined {
			c.broadcastSlot(role, slot.Seat, now)
		}
	}
	c.broadcast(role, &messages.SyncAllPlayers{Players: c.session.World.PlayerStates()}, now)
	c.sendTo(role, peerID, &messages.SyncAllGold{Gold: c.session.World.GoldStates()}, now)
	if c.session.Lobby.State() == lobby.Started {
		c.sendTo(role, peerID, &messages.BeginGame{Map: c.session.World.Map()}, now)
	}
}

func slotAvatar(slot lobby.Slot) *messages.AvatarData {
	return &messages.AvatarData{
		Seat:   slot.Seat,
		PeerID: slot.PeerID,
		Nick:   slot.Nick,
		Colors: slot.Colors,
		Ready:  slot.Ready,
		Joined: slot.Joined,
	}
}

func (c *Controller) broadcastSlot(role *ServerRole, seat int, now time.Time) {
	slot, err := c.session.Lobby.Slot(seat)
	if err != nil {
		return
	}
	c.broadcast(role, slotAvatar(slot), now)
}

// evaluateLobby starts the game once every joined seat is ready.
func (c *Controller) evaluateLobby(role *ServerRole, now time.Time) {
	if !c.session.Lobby.Evaluate() {
		return
	}
	c.logger.Info("Every player is ready, starting %s", c.session.World.Map())
	c.beginGame(role, now)
}

// beginGame runs the level's onready script on the server, then tells every
// client to start.
func (c *Controller) beginGame(role *ServerRole, now time.Time) {
	if c.session.Scripts.Has(levels.OnReadyScript) {
		if err := c.session.Scripts.Run(levels.OnReadyScript); err != nil {
			c.logger.Error("Failed to run onready: %v", err)
		}
	}
	c.session.Lobby.MarkStarted()
	c.broadcast(role, &messages.BeginGame{Map: c.session.World.Map()}, now)
}

func (c *Controller) recordVote(role *ServerRole, seat int, now time.Time) {
	reached, err := c.session.Lobby.RecordVote(seat)
	if err != nil {
		c.logger.Debug("Vote from seat %d: %v", seat, err)
		return
	}
	if !reached {
		return
	}
	next := c.session.World.Level().NextMap
	if next == "" {
		next = c.session.World.Map()
	}
	c.notice("vote passed, skipping to %s", next)
	if err := c.transition(next, ContinueInLobby, now); err != nil {
		c.logger.Error("Failed to skip to %s: %v", next, err)
	}
}

func (c *Controller) completeLevel(role *ServerRole, now time.Time) {
	level := c.session.World.Level()
	c.broadcast(role, &messages.LevelComplete{Map: level.Name, NextMap: level.NextMap}, now)
	c.notice("level %s complete", level.Name)
	next := level.NextMap
	if next == "" {
		next = level.Name
	}
	if err := c.transition(next, ContinueInLobby, now); err != nil {
		c.logger.Error("Failed to advance to %s: %v", next, err)
	}
}

func (c *Controller) failLevel(role *ServerRole, now time.Time) {
	level := c.session.World.Level()
	c.broadcast(role, &messages.LevelFailed{Map: level.Name}, now)
	c.notice("level %s failed", level.Name)
	if err := c.transition(level.Name, ContinueBeginGame, now); err != nil {
		c.logger.Error("Failed to restart %s: %v", level.Name, err)
	}
}

// teardown forgets a client: its session, seat and players.
func (c *Controller) teardown(role *ServerRole, peerID uint32, now time.Time, unexpected bool) {
	s, ok := role.sessions[peerID]
	if !ok {
		return
	}
	s.Close()
	delete(role.sessions, peerID)
	c.peers.Disconnect(peerID, nil)

	if unexpected {
		c.notice("player %d disconnected", peerID)
	}
	if role.closing {
		return
	}

	if seat, ok := c.session.Lobby.Leave(peerID); ok {
		c.broadcastSlot(role, seat, now)
	}
	if removed := c.session.World.RemoveOwnedBy(peerID); len(removed) > 0 {
		c.broadcast(role, &messages.SyncAllPlayers{Players: c.session.World.PlayerStates()}, now)
	}
	c.evaluateLobby(role, now)
}

func (c *Controller) tickServer(role *ServerRole, now time.Time) {
	for _, id := range role.PeerIDs() {
		s := role.sessions[id]
		s.Tick(c.ctx, now)
		if !s.IsAlive(now) {
			c.logger.Warn("Peer %d is unresponsive", id)
			c.teardown(role, id, now, true)
		}
	}
	if role.closing && len(role.sessions) == 0 {
		c.goOffline("session closed")
	}
}
