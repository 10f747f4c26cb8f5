package netcontrol

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/authority"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/messages"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/world"
)

const (
	DefaultBombFuse   = 3 * time.Second
	DefaultHoleRefill = 5 * time.Second
)

var ErrNotAHole = errors.New("tile is not a hole")

// hazards holds the deadlines of bombs and holes in the authoritative world.
// They are dropped with the world on every level load.
type hazards struct {
	fuses   map[uint32]time.Time
	refills map[world.Point]time.Time
}

func newHazards() *hazards {
	return &hazards{
		fuses:   make(map[uint32]time.Time),
		refills: make(map[world.Point]time.Time),
	}
}

// arm starts the timers for bombs and holes created by an accepted request.
func (c *Controller) arm(verdict authority.Verdict, now time.Time) {
	if verdict.Outcome != authority.Accepted {
		return
	}
	for _, reply := range verdict.Replies {
		if !reply.Broadcast {
			continue
		}
		switch payload := reply.Payload.(type) {
		case *messages.CreateBomb:
			c.hazards.fuses[payload.BombID] = now.Add(c.bombFuse)
		case *messages.DigResponseValid:
			c.hazards.refills[world.Point{X: payload.TileX, Y: payload.TileY}] = now.Add(c.holeRefill)
		}
	}
}

// tickHazards sets off due bombs, then refills due holes.
func (c *Controller) tickHazards(now time.Time) {
	var bombs []uint32
	for id, at := range c.hazards.fuses {
		if !now.Before(at) {
			bombs = append(bombs, id)
		}
	}
	sort.Slice(bombs, func(i, j int) bool { return bombs[i] < bombs[j] })
	for _, id := range bombs {
		if err := c.DetonateBomb(id); err != nil {
			c.logger.Debug("Bomb %d: %v", id, err)
		}
	}

	var holes []world.Point
	for p, at := range c.hazards.refills {
		if !now.Before(at) {
			holes = append(holes, p)
		}
	}
	sort.Slice(holes, func(i, j int) bool {
		if holes[i].Y != holes[j].Y {
			return holes[i].Y < holes[j].Y
		}
		return holes[i].X < holes[j].X
	})
	for _, p := range holes {
		if err := c.RefillHole(p.X, p.Y); err != nil {
			c.logger.Debug("Hole %d,%d: %v", p.X, p.Y, err)
		}
	}
}

// DetonateBomb removes a bomb and blasts the bricks beside and below it into
// holes. The blasted holes refill like dug ones.
func (c *Controller) DetonateBomb(id uint32) error {
	if c.GetStatus() == Client {
		return ErrNotServer
	}
	delete(c.hazards.fuses, id)

	w := c.session.World
	b, ok := w.Bomb(id)
	if !ok {
		return fmt.Errorf("%w: %d", world.ErrUnknownBomb, id)
	}
	w.RemoveBomb(id)
	if err := c.emit(&messages.CreateBomb{BombID: b.ID, Owner: b.Owner, TileX: b.Tile.X, TileY: b.Tile.Y, Detonated: true}); err != nil {
		return err
	}

	now := c.clock()
	blast := []world.Point{
		{X: b.Tile.X - 1, Y: b.Tile.Y},
		{X: b.Tile.X + 1, Y: b.Tile.Y},
		{X: b.Tile.X, Y: b.Tile.Y + 1},
	}
	for _, p := range blast {
		if w.Tile(p.X, p.Y) != world.Brick {
			continue
		}
		if err := w.Dig(p.X, p.Y); err != nil {
			return err
		}
		c.hazards.refills[p] = now.Add(c.holeRefill)
		if err := c.emit(&messages.DigResponseValid{TileX: p.X, TileY: p.Y}); err != nil {
			return err
		}
	}
	return nil
}

// RefillHole turns a hole back into brick on every peer. Anything standing
// in the hole dies.
func (c *Controller) RefillHole(x, y int) error {
	if c.GetStatus() == Client {
		return ErrNotServer
	}
	delete(c.hazards.refills, world.Point{X: x, Y: y})

	w := c.session.World
	if w.Tile(x, y) != world.Hole {
		return fmt.Errorf("%w: %d,%d", ErrNotAHole, x, y)
	}
	if err := w.Refill(x, y); err != nil {
		return err
	}
	if err := c.emit(&messages.InvalidateDig{TileX: x, TileY: y}); err != nil {
		return err
	}
	for _, e := range w.EntitiesAt(x, y) {
		if !e.Alive {
			continue
		}
		if err := c.SendEntityDie(e.ID); err != nil {
			return err
		}
	}
	return nil
}
