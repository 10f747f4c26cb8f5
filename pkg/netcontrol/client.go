package netcontrol

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/lobby"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/messages"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/network"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/session"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/world"
)

// Join dials a server by URL and becomes its client.
func (c *Controller) Join(ctx context.Context, url string) error {
	if c.GetStatus() != Offline {
		return ErrNotOffline
	}
	link, err := network.Dial(ctx, url, c.peers)
	if err != nil {
		return fmt.Errorf("failed to join %s: %w", url, err)
	}
	return c.JoinLink(link)
}

// JoinLink becomes the client of the server at the other end of an already
// attached link.
func (c *Controller) JoinLink(link network.Link) error {
	if c.GetStatus() != Offline {
		return ErrNotOffline
	}
	role := &ClientRole{
		server: c.newSession(messages.ServerOrigin, messages.ServerOrigin, link, c.clock()),
	}
	c.setRole(role)
	c.session.Locks.Reset()
	c.session.Lobby.Reset()

	c.logger.Info("Joining server at %s", link.RemoteAddr())
	return nil
}

func (c *Controller) clientPeerEvent(role *ClientRole, event *network.PeerEvent) {
	if event.PeerID != messages.ServerOrigin {
		c.peers.Disconnect(event.PeerID, ErrNotServer)
		return
	}
	if event.Type == network.PeerEventTypeDisconnect {
		if role.leaving {
			c.goOffline("disconnected")
			return
		}
		c.goOffline("server disconnected")
	}
}

// send sends a payload to the server.
func (c *Controller) send(role *ClientRole, payload messages.Payload, now time.Time) error {
	return role.server.Send(c.ctx, messages.NewEnvelope(role.playerID, payload), now)
}

func (c *Controller) clientInbound(role *ClientRole, peerID uint32, env *messages.Envelope, now time.Time) {
	if peerID != messages.ServerOrigin {
		c.logger.Trace("Dropping %s from non-server peer %d", env, peerID)
		return
	}

	dispatch, err := role.server.OnReceive(c.ctx, env, now)
	if err != nil {
		if errors.Is(err, session.ErrDuplicateDelivery) {
			c.logger.Trace("Duplicate %s", env)
		} else {
			c.logger.Debug("Receive: %v", err)
		}
	}
	if !dispatch {
		return
	}

	if c.session.Locks.Apply(env.Type) {
		return
	}

	w := c.session.World
	switch payload := env.Payload.(type) {
	case *messages.PlayerID:
		role.playerID = payload.PlayerID
		role.token = payload.Session
		role.server.SetLocalID(payload.PlayerID)
		c.logger.Info("Assigned player id %d", payload.PlayerID)
	case *messages.RequestNick:
		c.sendAvatar(role, false, now)
	case *messages.AvatarData:
		slot := lobby.Slot{
			Seat:   payload.Seat,
			Joined: payload.Joined,
			Ready:  payload.Ready,
			Nick:   payload.Nick,
			Colors: payload.Colors,
			PeerID: payload.PeerID,
		}
		if err := c.session.Lobby.Put(slot); err != nil {
			c.logger.Debug("Ignoring avatar data: %v", err)
		}
	case *messages.TransitionToMap:
		if err := c.loadLevel(payload.Map); err != nil {
			c.logger.Error("Failed to load %s: %v", payload.Map, err)
			c.notice("missing level %s", payload.Map)
			return
		}
		c.session.Lobby.Rebuild()
	case *messages.BeginGame:
		c.session.Lobby.MarkStarted()
		c.notice("game started")
	case *messages.DigResponseValid:
		w.Confirm(payload.TileX, payload.TileY)
		if err := w.Dig(payload.TileX, payload.TileY); err != nil {
			c.logger.Warn("Replicated dig: %v", err)
		}
	case *messages.DigResponseInvalid:
		w.Rollback(payload.TileX, payload.TileY)
	case *messages.InvalidateDig:
		if !w.Rollback(payload.TileX, payload.TileY) {
			_ = w.Refill(payload.TileX, payload.TileY)
		}
	case *messages.ValidateBombOK:
		c.placeBomb(payload.BombID, role.playerID, payload.TileX, payload.TileY)
	case *messages.CreateBomb:
		if payload.Detonated {
			w.RemoveBomb(payload.BombID)
			return
		}
		c.placeBomb(payload.BombID, payload.Owner, payload.TileX, payload.TileY)
	case *messages.ValidateBombUnauthorized:
		c.logger.Debug("Bomb at %d,%d refused", payload.TileX, payload.TileY)
	case *messages.Unauthorized:
		c.notice("%s refused: %s", payload.Request, payload.Reason)
	case *messages.OK:
		c.logger.Debug("%s accepted", payload.Request)
	case *messages.CallScript:
		if err := c.session.Scripts.Run(payload.Name); err != nil {
			c.logger.Error("Failed to run script %s: %v", payload.Name, err)
		}
	case *messages.SyncAllPlayers:
		c.replacePlayers(payload.Players)
	case *messages.SyncPlayerByID:
		if payload.Player.Owner != role.playerID {
			w.PutPlayer(payload.Player)
		}
	case *messages.EntityStartMotion:
		c.moveEntity(payload.EntityID, payload.X, payload.Y)
	case *messages.EntityStopMotion:
		c.moveEntity(payload.EntityID, payload.X, payload.Y)
	case *messages.SyncEnemyAI:
		c.moveEntity(payload.EntityID, payload.X, payload.Y)
	case *messages.EntityDie:
		_ = w.Kill(payload.EntityID)
	case *messages.EntityRespawn:
		_ = w.Respawn(payload.EntityID, payload.X, payload.Y)
	case *messages.SyncOneGold:
		w.PutGold(payload.Gold)
	case *messages.SyncAllGold:
		w.ReplaceGold(payload.Gold)
	case *messages.Chat:
		c.console.Push(payload.Nick + ": " + payload.Text)
	case *messages.LevelComplete:
		c.notice("level %s complete", payload.Map)
	case *messages.LevelFailed:
		c.notice("level %s failed", payload.Map)
	case *messages.ServerDisconnecting:
		if err := c.send(role, &messages.ConfirmDisconnect{}, now); err != nil {
			c.logger.Debug("Failed to confirm disconnect: %v", err)
		}
		c.goOffline("server closed the session")
	case *messages.ConfirmDisconnect:
		c.goOffline("disconnected")
	default:
		c.logger.Debug("Ignoring %s from server", env)
	}
}

func (c *Controller) sendAvatar(role *ClientRole, ready bool, now time.Time) {
	avatar := &messages.AvatarData{
		PeerID: role.playerID,
		Nick:   messages.SanitizeText(c.prefs.Nick),
		Colors: c.prefs.Colors,
		Ready:  ready,
		Joined: true,
	}
	if seat, ok := c.session.Lobby.Seat(role.playerID); ok {
		avatar.Seat = seat
	}
	if err := c.send(role, avatar, now); err != nil {
		c.logger.Error("Failed to send avatar data: %v", err)
	}
}

func (c *Controller) placeBomb(id, owner uint32, x, y int) {
	if _, err := c.session.World.PlaceBomb(id, owner, x, y); err != nil {
		c.logger.Warn("Replicated bomb: %v", err)
	}
}

// replacePlayers mirrors the server's player list.
func (c *Controller) replacePlayers(players []messages.PlayerState) {
	keep := make(map[uint32]bool, len(players))
	for _, p := range players {
		keep[p.EntityID] = true
	}
	for _, e := range c.session.World.Players() {
		if !keep[e.ID] {
			c.session.World.RemoveEntity(e.ID)
		}
	}
	for _, p := range players {
		e := c.session.World.PutPlayer(p)
		if e.Kind != world.KindPlayer {
			c.logger.Warn("Player %d collides with entity of kind %v", p.EntityID, e.Kind)
		}
	}
}

func (c *Controller) tickClient(role *ClientRole, now time.Time) {
	role.server.Tick(c.ctx, now)
	if role.server.IsAlive(now) {
		return
	}
	if role.leaving {
		c.goOffline("disconnected")
		return
	}
	c.logger.Warn("Server is unresponsive")
	c.goOffline("server disconnected")
}
