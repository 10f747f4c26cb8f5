package netcontrol

import (
	"time"

	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/levels"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/messages"
)

// Continuation is what a peer does once a map transition has completed.
type Continuation int

const (
	// ContinueInLobby waits for every joined seat to be ready again.
	ContinueInLobby Continuation = iota
	// ContinueBeginGame starts the new map immediately, e.g. a restart after
	// a failed level.
	ContinueBeginGame
)

func (c Continuation) String() string {
	if c == ContinueBeginGame {
		return "begin-game"
	}
	return "lobby"
}

// transition moves every peer to the named map. The server holds a hard lock
// across the switch so no gameplay message is applied to a half-loaded level.
func (c *Controller) transition(name string, then Continuation, now time.Time) error {
	role, ok := c.session.Role.(*ServerRole)
	if !ok {
		return c.transitionOffline(name, then)
	}

	if _, err := c.catalog.Get(name); err != nil {
		return err
	}

	c.session.Locks.LockHard()
	c.broadcast(role, &messages.LockHard{}, now)
	c.broadcast(role, &messages.TransitionToMap{Map: name}, now)

	if err := c.loadLevel(name); err != nil {
		// the level was found above, so this only fails on a catalog change
		c.session.Locks.Unlock()
		c.broadcast(role, &messages.Unlock{}, now)
		return err
	}
	c.session.Lobby.Rebuild()

	if !c.dedicated {
		c.session.World.AddPlayer(messages.ServerOrigin)
	}
	for _, id := range role.PeerIDs() {
		if _, seated := c.session.Lobby.Seat(id); seated {
			c.session.World.AddPlayer(id)
		}
	}
	c.broadcast(role, &messages.SyncAllPlayers{Players: c.session.World.PlayerStates()}, now)
	c.broadcast(role, &messages.SyncAllGold{Gold: c.session.World.GoldStates()}, now)

	c.session.Locks.Unlock()
	c.broadcast(role, &messages.Unlock{}, now)

	c.logger.Info("Transitioned to %s, continuing in %s", name, then)
	if then == ContinueBeginGame {
		c.beginGame(role, now)
	}
	return nil
}

func (c *Controller) transitionOffline(name string, then Continuation) error {
	if err := c.loadLevel(name); err != nil {
		return err
	}
	c.session.Lobby.Rebuild()
	c.session.World.AddPlayer(c.localID())
	if then == ContinueBeginGame && c.session.Scripts.Has(levels.OnReadyScript) {
		if err := c.session.Scripts.Run(levels.OnReadyScript); err != nil {
			c.logger.Error("Failed to run onready: %v", err)
		}
	}
	return nil
}
