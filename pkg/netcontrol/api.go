package netcontrol

import (
	"fmt"

	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/authority"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/levels"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/lock"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/messages"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/world"
)

// emit sends a payload to the server from a client, or to every client from
// the server. Offline it does nothing.
func (c *Controller) emit(payload messages.Payload) error {
	switch role := c.session.Role.(type) {
	case *ServerRole:
		c.broadcast(role, payload, c.clock())
	case *ClientRole:
		return c.send(role, payload, c.clock())
	}
	return nil
}

// validator returns the authority for requests made by this process. Offline
// play has full authority over its own world.
func (c *Controller) validator() *authority.Validator {
	if role, ok := c.session.Role.(*ServerRole); ok {
		return role.validator
	}
	return authority.NewValidator(c.session.World, c.session.Scripts, c.session.Locks)
}

// decideLocally validates a request from this process and delivers the
// replies meant for other peers.
func (c *Controller) decideLocally(action authority.Action, payload messages.Payload) error {
	verdict := c.validator().Validate(authority.Request{
		Requester: messages.ServerOrigin,
		Action:    action,
		Payload:   payload,
	})
	if role, ok := c.session.Role.(*ServerRole); ok {
		c.deliverVerdict(role, messages.ServerOrigin, verdict, c.clock())
	} else {
		c.arm(verdict, c.clock())
	}
	if verdict.Outcome == authority.Dropped {
		return ErrLocked
	}
	return verdict.Err()
}

// SendCallScript runs a script on the server and on every client.
func (c *Controller) SendCallScript(name string) error {
	if c.GetStatus() == Client {
		return ErrNotServer
	}
	if err := c.session.Scripts.Run(name); err != nil {
		return err
	}
	return c.emit(&messages.CallScript{Name: name})
}

// SendScriptRequest asks the authority to run a script.
func (c *Controller) SendScriptRequest(name string) error {
	if role, ok := c.session.Role.(*ClientRole); ok {
		return c.send(role, &messages.ScriptRequest{Name: name}, c.clock())
	}
	return c.decideLocally(authority.ActionScript, &messages.ScriptRequest{Name: name})
}

// SendSyncLocalPlayer replicates the local player's position and liveness.
func (c *Controller) SendSyncLocalPlayer() error {
	e, err := c.localPlayer()
	if err != nil {
		return err
	}
	switch role := c.session.Role.(type) {
	case *ServerRole:
		c.broadcast(role, &messages.SyncPlayerByID{Player: e.State()}, c.clock())
	case *ClientRole:
		return c.send(role, &messages.SyncPlayer{Player: e.State()}, c.clock())
	}
	return nil
}

// SendBeginGame runs the onready script and starts the level everywhere.
func (c *Controller) SendBeginGame() error {
	switch role := c.session.Role.(type) {
	case *ServerRole:
		c.beginGame(role, c.clock())
	case *ClientRole:
		return ErrNotServer
	default:
		if c.session.Scripts.Has(levels.OnReadyScript) {
			if err := c.session.Scripts.Run(levels.OnReadyScript); err != nil {
				return err
			}
		}
		c.session.Lobby.MarkStarted()
	}
	return nil
}

// SendVoteToSkip votes to skip the current level. Each peer votes at most
// once per level.
func (c *Controller) SendVoteToSkip() error {
	switch role := c.session.Role.(type) {
	case *ServerRole:
		seat, ok := c.session.Lobby.Seat(messages.ServerOrigin)
		if !ok {
			return ErrNoPlayer
		}
		if err := c.session.Lobby.CastVote(); err != nil {
			return err
		}
		c.recordVote(role, seat, c.clock())
	case *ClientRole:
		if err := c.session.Lobby.CastVote(); err != nil {
			return err
		}
		return c.send(role, &messages.VoteToSkip{}, c.clock())
	default:
		next := c.session.World.Level().NextMap
		if next == "" {
			next = c.session.World.Map()
		}
		return c.transitionOffline(next, ContinueInLobby)
	}
	return nil
}

// SendTransitionToMap moves every peer to the named map.
func (c *Controller) SendTransitionToMap(name string) error {
	if c.GetStatus() == Client {
		return ErrNotServer
	}
	return c.transition(name, ContinueInLobby, c.clock())
}

// Disconnect starts the disconnect handshake. The controller goes offline
// once the other side confirms, or at once when no client is connected.
func (c *Controller) Disconnect() error {
	switch role := c.session.Role.(type) {
	case *ServerRole:
		if role.closing {
			return nil
		}
		c.broadcast(role, &messages.ServerDisconnecting{}, c.clock())
		role.closing = true
		if len(role.sessions) == 0 {
			c.goOffline("session closed")
		}
	case *ClientRole:
		if role.leaving {
			return nil
		}
		role.leaving = true
		if err := c.send(role, &messages.ClientDisconnecting{PlayerID: role.playerID}, c.clock()); err != nil {
			c.logger.Debug("Failed to announce disconnect: %v", err)
			c.goOffline("disconnected")
		}
	default:
		return ErrNotConnected
	}
	return nil
}

// SetReady toggles this peer's ready flag in the lobby.
func (c *Controller) SetReady(ready bool) error {
	switch role := c.session.Role.(type) {
	case *ServerRole:
		seat, ok := c.session.Lobby.Seat(messages.ServerOrigin)
		if !ok {
			return ErrNoPlayer
		}
		if err := c.session.Lobby.SetReady(seat, ready); err != nil {
			return err
		}
		c.broadcastSlot(role, seat, c.clock())
		c.evaluateLobby(role, c.clock())
	case *ClientRole:
		if role.playerID == 0 {
			return ErrNoPlayer
		}
		c.sendAvatar(role, ready, c.clock())
	default:
		return ErrNotConnected
	}
	return nil
}

// SetAvatar changes the nick and colors shown in the lobby and saves them as
// the profile's preferences.
func (c *Controller) SetAvatar(nick string, colors []string) error {
	c.prefs.Nick = messages.SanitizeText(nick)
	c.prefs.Colors = colors
	if c.savePrefs != nil {
		prefs := *c.prefs
		select {
		case c.savePrefs <- &prefs:
		default:
			c.logger.Warn("Preferences save queue is full, dropping update")
		}
	}

	switch role := c.session.Role.(type) {
	case *ServerRole:
		if _, ok := c.session.Lobby.Seat(messages.ServerOrigin); !ok {
			return nil
		}
		seat, err := c.session.Lobby.Join(messages.ServerOrigin, c.prefs.Nick, c.prefs.Colors)
		if err != nil {
			return err
		}
		c.broadcastSlot(role, seat, c.clock())
	case *ClientRole:
		if role.playerID == 0 {
			return nil
		}
		ready := false
		if slot, ok := c.slotOf(role.playerID); ok {
			ready = slot.Ready
		}
		c.sendAvatar(role, ready, c.clock())
	}
	return nil
}

// SendChat shows a chat line locally and relays it to the other peers.
func (c *Controller) SendChat(text string) error {
	chat := &messages.Chat{Nick: c.prefs.Nick, Text: messages.SanitizeText(text)}
	c.console.Push(chat.Nick + ": " + chat.Text)
	return c.emit(chat)
}

// RequestDig digs the tile beside the local player. Clients predict the hole
// until the server answers.
func (c *Controller) RequestDig(x, y int) error {
	if c.IsLocalLocked() {
		return ErrLocked
	}
	e, err := c.localPlayer()
	if err != nil {
		return err
	}
	dig := &messages.EntityDig{EntityID: e.ID, TileX: x, TileY: y}

	if role, ok := c.session.Role.(*ClientRole); ok {
		if c.session.World.Tile(x, y) == world.Brick {
			if err := c.session.World.Speculate(x, y, world.Hole); err != nil {
				return err
			}
		}
		return c.send(role, dig, c.clock())
	}
	return c.decideLocally(authority.ActionDig, dig)
}

// RequestBomb places a bomb beside the local player.
func (c *Controller) RequestBomb(x, y int) error {
	if c.IsLocalLocked() {
		return ErrLocked
	}
	e, err := c.localPlayer()
	if err != nil {
		return err
	}
	bomb := &messages.ValidateBombRequest{EntityID: e.ID, TileX: x, TileY: y}

	if role, ok := c.session.Role.(*ClientRole); ok {
		return c.send(role, bomb, c.clock())
	}
	return c.decideLocally(authority.ActionBomb, bomb)
}

// ConfirmDigTile asks the server whether a hole still exists. The authority
// already knows, so only clients send anything.
func (c *Controller) ConfirmDigTile(x, y int) error {
	role, ok := c.session.Role.(*ClientRole)
	if !ok {
		return nil
	}
	return c.send(role, &messages.ConfirmDigTileRequest{TileX: x, TileY: y}, c.clock())
}

func (c *Controller) SendStartMotion(dirX, dirY int) error {
	if c.IsLocalLocked() {
		return ErrLocked
	}
	e, err := c.localPlayer()
	if err != nil {
		return err
	}
	return c.emit(&messages.EntityStartMotion{EntityID: e.ID, X: e.X(), Y: e.Y(), DirX: dirX, DirY: dirY})
}

func (c *Controller) SendStopMotion() error {
	e, err := c.localPlayer()
	if err != nil {
		return err
	}
	return c.emit(&messages.EntityStopMotion{EntityID: e.ID, X: e.X(), Y: e.Y()})
}

// SendEntityDie kills an entity and replicates the death. A client only
// reports the death of its own entities and applies it when the server
// echoes it back.
func (c *Controller) SendEntityDie(entityID uint32) error {
	if role, ok := c.session.Role.(*ClientRole); ok {
		if _, ok := c.session.World.Entity(entityID); !ok {
			return fmt.Errorf("%w: %d", world.ErrUnknownEntity, entityID)
		}
		return c.send(role, &messages.EntityDie{EntityID: entityID}, c.clock())
	}
	if err := c.session.World.Kill(entityID); err != nil {
		return err
	}
	return c.emit(&messages.EntityDie{EntityID: entityID})
}

// SendEntityRespawn revives an entity and replicates it. Clients wait for the
// server's echo like SendEntityDie.
func (c *Controller) SendEntityRespawn(entityID uint32, x, y float64) error {
	if role, ok := c.session.Role.(*ClientRole); ok {
		if _, ok := c.session.World.Entity(entityID); !ok {
			return fmt.Errorf("%w: %d", world.ErrUnknownEntity, entityID)
		}
		return c.send(role, &messages.EntityRespawn{EntityID: entityID, X: x, Y: y}, c.clock())
	}
	if err := c.session.World.Respawn(entityID, x, y); err != nil {
		return err
	}
	return c.emit(&messages.EntityRespawn{EntityID: entityID, X: x, Y: y})
}

// CollectGold picks up a gold piece with the local player. The server checks
// that the player stands on it before anyone's mirror changes.
func (c *Controller) CollectGold(goldID uint32) error {
	g, ok := c.session.World.Gold(goldID)
	if !ok {
		return fmt.Errorf("%w: %d", world.ErrUnknownGold, goldID)
	}
	state := g.State()
	state.Collected = true
	state.Carrier = 0
	pickup := &messages.SyncOneGold{Gold: state}

	if role, ok := c.session.Role.(*ClientRole); ok {
		return c.send(role, pickup, c.clock())
	}
	return c.decideLocally(authority.ActionCollectGold, pickup)
}

// SendSyncGold replicates the server's state of one gold piece.
func (c *Controller) SendSyncGold(goldID uint32) error {
	if c.GetStatus() == Client {
		return ErrNotServer
	}
	g, ok := c.session.World.Gold(goldID)
	if !ok {
		return fmt.Errorf("%w: %d", world.ErrUnknownGold, goldID)
	}
	return c.emit(&messages.SyncOneGold{Gold: g.State()})
}

// SendSyncAllGold replaces every client's gold with the server's.
func (c *Controller) SendSyncAllGold() error {
	if c.GetStatus() == Client {
		return ErrNotServer
	}
	return c.emit(&messages.SyncAllGold{Gold: c.session.World.GoldStates()})
}

// SendSyncEnemy replicates an enemy simulated by the server.
func (c *Controller) SendSyncEnemy(entityID, target uint32) error {
	if c.GetStatus() == Client {
		return ErrNotServer
	}
	e, ok := c.session.World.Entity(entityID)
	if !ok {
		return fmt.Errorf("%w: %d", world.ErrUnknownEntity, entityID)
	}
	return c.emit(&messages.SyncEnemyAI{EntityID: e.ID, X: e.X(), Y: e.Y(), Target: target})
}

// CompleteLevel ends the level once every piece of gold is collected and
// moves everyone to the next map.
func (c *Controller) CompleteLevel() error {
	level := c.session.World.Level()
	switch role := c.session.Role.(type) {
	case *ServerRole:
		if c.session.World.GoldRemaining() > 0 {
			return fmt.Errorf("%w: gold remaining", authority.ErrUnauthorized)
		}
		c.completeLevel(role, c.clock())
	case *ClientRole:
		return c.send(role, &messages.LevelComplete{Map: level.Name, NextMap: level.NextMap}, c.clock())
	default:
		next := level.NextMap
		if next == "" {
			next = level.Name
		}
		return c.transitionOffline(next, ContinueInLobby)
	}
	return nil
}

// FailLevel restarts the current map for everyone.
func (c *Controller) FailLevel() error {
	level := c.session.World.Level()
	switch role := c.session.Role.(type) {
	case *ServerRole:
		c.failLevel(role, c.clock())
	case *ClientRole:
		return c.send(role, &messages.LevelFailed{Map: level.Name}, c.clock())
	default:
		return c.transitionOffline(level.Name, ContinueBeginGame)
	}
	return nil
}

// LockAll pushes a lock on this peer and every client.
func (c *Controller) LockAll(strength lock.Strength) error {
	if c.GetStatus() == Client {
		return ErrNotServer
	}
	if strength == lock.Hard {
		c.session.Locks.LockHard()
		return c.emit(&messages.LockHard{})
	}
	c.session.Locks.LockSoft()
	return c.emit(&messages.LockSoft{})
}

// UnlockAll releases the most recent lock on this peer and every client.
func (c *Controller) UnlockAll() error {
	if c.GetStatus() == Client {
		return ErrNotServer
	}
	if !c.session.Locks.Unlock() {
		return nil
	}
	return c.emit(&messages.Unlock{})
}
