package world

import (
	"testing"

	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/levels"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/messages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorld(t *testing.T) *World {
	catalog, err := levels.LoadBuiltin()
	require.NoError(t, err)
	level, err := catalog.Get("level-1")
	require.NoError(t, err)
	return New(level)
}

func TestNew(t *testing.T) {
	w := newTestWorld(t)

	assert.Equal(t, "level-1", w.Map())
	assert.Equal(t, 18, w.Width())
	assert.Equal(t, 10, w.Height())
	assert.Equal(t, Empty, w.Tile(2, 7), "spawn markers become empty tiles")
	assert.Equal(t, Brick, w.Tile(2, 8))
	assert.Equal(t, Concrete, w.Tile(-1, 0))
	assert.Equal(t, Concrete, w.Tile(0, 100))
	assert.Equal(t, 4, w.GoldRemaining())

	enemies := w.Entities()
	require.Len(t, enemies, 1)
	assert.Equal(t, KindEnemy, enemies[0].Kind)
	assert.Equal(t, messages.ServerOrigin, enemies[0].Owner)
	assert.Empty(t, w.Players())
}

func TestAddPlayer(t *testing.T) {
	w := newTestWorld(t)

	first := w.AddPlayer(1)
	second := w.AddPlayer(2)
	third := w.AddPlayer(3)

	assert.Equal(t, Point{X: 2, Y: 7}, w.TileOf(first))
	assert.Equal(t, Point{X: 12, Y: 7}, w.TileOf(second))
	assert.Equal(t, Point{X: 2, Y: 7}, w.TileOf(third), "spawns are reused in order")

	player, ok := w.PlayerOf(2)
	require.True(t, ok)
	assert.Equal(t, second.ID, player.ID)
	assert.Len(t, w.EntitiesAt(2, 7), 2)

	assert.Equal(t, []uint32{first.ID}, w.RemoveOwnedBy(1))
	_, ok = w.PlayerOf(1)
	assert.False(t, ok)
	assert.Len(t, w.PlayerStates(), 2)
}

func TestDig(t *testing.T) {
	w := newTestWorld(t)

	require.NoError(t, w.Dig(3, 8))
	assert.Equal(t, Hole, w.Tile(3, 8))
	assert.NoError(t, w.Dig(3, 8), "digging a hole again is a no-op")
	assert.Error(t, w.Dig(0, 8), "concrete")
	assert.Error(t, w.Dig(3, 7), "empty")

	require.NoError(t, w.Refill(3, 8))
	assert.Equal(t, Brick, w.Tile(3, 8))
	assert.ErrorIs(t, w.SetTile(18, 0, Empty), ErrOutOfBounds)
}

func TestSpeculation(t *testing.T) {
	w := newTestWorld(t)

	require.NoError(t, w.Speculate(3, 8, Hole))
	require.NoError(t, w.Speculate(3, 8, Empty))
	assert.True(t, w.Speculating(3, 8))

	assert.True(t, w.Rollback(3, 8))
	assert.Equal(t, Brick, w.Tile(3, 8), "rollback restores the value before the first prediction")
	assert.False(t, w.Rollback(3, 8))

	require.NoError(t, w.Speculate(1, 8, Hole))
	w.Confirm(1, 8)
	assert.False(t, w.Speculating(1, 8))
	assert.False(t, w.Rollback(1, 8))
	assert.Equal(t, Hole, w.Tile(1, 8))
}

func TestBombs(t *testing.T) {
	w := newTestWorld(t)

	bomb, err := w.PlaceBomb(0, 1, 3, 7)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), bomb.ID)
	assert.True(t, w.BombAt(3, 7))
	assert.False(t, w.BombAt(4, 7))
	assert.False(t, w.BombAt(-1, -1))
	assert.Equal(t, 1, w.BombsOwnedBy(1))
	assert.Equal(t, 0, w.BombsOwnedBy(2))

	// mirrored bombs keep the server's id
	mirrored, err := w.PlaceBomb(7, 2, 5, 7)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), mirrored.ID)
	again, err := w.PlaceBomb(7, 2, 5, 7)
	require.NoError(t, err)
	assert.Same(t, mirrored, again)

	w.RemoveBomb(bomb.ID)
	assert.False(t, w.BombAt(3, 7))
	assert.Len(t, w.Bombs(), 1)
	_, ok := w.Bomb(bomb.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, w.BombsOwnedBy(1), "a removed bomb frees capacity")
}

func TestGold(t *testing.T) {
	w := newTestWorld(t)

	gold, err := w.AddGold(10, 7)
	require.NoError(t, err)
	assert.Equal(t, 5, w.GoldRemaining())

	w.PutGold(messages.GoldState{GoldID: gold.ID, TileX: 10, TileY: 7, Collected: true})
	assert.Equal(t, 4, w.GoldRemaining())

	w.ReplaceGold([]messages.GoldState{{GoldID: 3, TileX: 1, TileY: 1}})
	require.Len(t, w.AllGold(), 1)
	assert.Equal(t, []messages.GoldState{{GoldID: 3, TileX: 1, TileY: 1}}, w.GoldStates())

	_, err = w.AddGold(-1, 0)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	require.NoError(t, w.CollectGold(3))
	assert.Equal(t, 0, w.GoldRemaining())
	assert.ErrorIs(t, w.CollectGold(99), ErrUnknownGold)
}

func TestSnapshotRestore(t *testing.T) {
	w := newTestWorld(t)
	enemy := w.Entities()[0]
	snap := w.Snapshot()

	require.NoError(t, w.SetTile(2, 0, Empty))
	w.SetVar("k", "v")
	_, err := w.AddGold(10, 7)
	require.NoError(t, err)
	require.NoError(t, w.CollectGold(1))
	require.NoError(t, w.Kill(enemy.ID))

	w.Restore(snap)

	assert.Equal(t, Concrete, w.Tile(2, 0))
	_, ok := w.Var("k")
	assert.False(t, ok)
	assert.Equal(t, 4, w.GoldRemaining())
	assert.Len(t, w.AllGold(), 4)
	assert.True(t, enemy.Alive)

	added, err := w.AddGold(10, 7)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), added.ID, "gold ids are rolled back too")
}

func TestPutPlayer(t *testing.T) {
	w := newTestWorld(t)

	e := w.PutPlayer(messages.PlayerState{EntityID: 9, Owner: 4, X: 64, Y: 224, Alive: true})
	assert.Equal(t, Point{X: 2, Y: 7}, w.TileOf(e))

	w.PutPlayer(messages.PlayerState{EntityID: 9, Owner: 4, X: 96, Y: 224})
	assert.Equal(t, Point{X: 3, Y: 7}, w.TileOf(e))
	assert.False(t, e.Alive)

	next := w.AddPlayer(5)
	assert.Equal(t, uint32(10), next.ID)

	require.NoError(t, w.Kill(next.ID))
	w.RespawnPlayers()
	assert.True(t, next.Alive)
	assert.ErrorIs(t, w.Move(99, 0, 0), ErrUnknownEntity)
}

func TestParseTile(t *testing.T) {
	tile, ok := ParseTile("#")
	assert.True(t, ok)
	assert.Equal(t, Brick, tile)
	assert.True(t, tile.Solid())
	assert.False(t, Ladder.Solid())

	_, ok = ParseTile("P")
	assert.False(t, ok)
	_, ok = ParseTile("")
	assert.False(t, ok)
}
