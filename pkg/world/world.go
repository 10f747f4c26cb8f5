package world

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/levels"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/messages"
	"github.com/solarlune/resolv"
)

// TileSize is the width and height of a tile in world units. The collision
// space uses the same cell size, so a cell is a tile.
const TileSize = 32

// Collision space tags
const (
	TagPlayer = "player"
	TagEnemy  = "enemy"
	TagBomb   = "bomb"
)

var (
	ErrUnknownEntity = errors.New("unknown entity")
	ErrUnknownGold   = errors.New("unknown gold")
	ErrUnknownBomb   = errors.New("unknown bomb")
	ErrOutOfBounds   = errors.New("tile out of bounds")
)

// Tile is one cell of the map.
type Tile byte

const (
	Empty    Tile = levels.CharEmpty
	Brick    Tile = levels.CharBrick
	Concrete Tile = levels.CharConcrete
	Ladder   Tile = levels.CharLadder
	Rope     Tile = levels.CharRope
	// Hole is a dug brick. It only exists at runtime.
	Hole Tile = 'o'
)

// ParseTile converts a wire or script character to a Tile.
func ParseTile(s string) (Tile, bool) {
	if len(s) != 1 {
		return 0, false
	}
	switch t := Tile(s[0]); t {
	case Empty, Brick, Concrete, Ladder, Rope, Hole:
		return t, true
	}
	return 0, false
}

// Solid reports whether an entity can stand on or be blocked by the tile.
func (t Tile) Solid() bool {
	return t == Brick || t == Concrete
}

func (t Tile) String() string {
	return string(rune(t))
}

// Point is a tile coordinate.
type Point struct {
	X, Y int
}

type EntityKind int

const (
	KindPlayer EntityKind = iota
	KindEnemy
)

// Entity is a player or enemy. Owner is the peer id controlling it; enemies
// are owned by the server.
type Entity struct {
	ID     uint32
	Kind   EntityKind
	Owner  uint32
	Alive  bool
	Object *resolv.Object
}

func (e *Entity) X() float64 { return e.Object.Position.X }
func (e *Entity) Y() float64 { return e.Object.Position.Y }

// State converts the entity to its wire form.
func (e *Entity) State() messages.PlayerState {
	return messages.PlayerState{
		EntityID: e.ID,
		Owner:    e.Owner,
		X:        e.X(),
		Y:        e.Y(),
		Alive:    e.Alive,
	}
}

// Gold is a collectible. A carried piece moves with its carrier.
type Gold struct {
	ID        uint32
	Tile      Point
	Carrier   uint32
	Collected bool
}

func (g *Gold) State() messages.GoldState {
	return messages.GoldState{
		GoldID:    g.ID,
		TileX:     g.Tile.X,
		TileY:     g.Tile.Y,
		Carrier:   g.Carrier,
		Collected: g.Collected,
	}
}

// Bomb is a placed bomb occupying one tile.
type Bomb struct {
	ID     uint32
	Owner  uint32
	Tile   Point
	Object *resolv.Object
}

// World is the map, entities, gold, bombs and session variables of one level.
// The server holds the authoritative copy; clients hold a mirror.
type World struct {
	level        *levels.Level
	width        int
	height       int
	tiles        []Tile
	space        *resolv.Space
	playerSpawns []Point
	enemySpawns  []Point

	entities map[uint32]*Entity
	gold     map[uint32]*Gold
	bombs    map[uint32]*Bomb
	vars     map[string]string

	nextEntityID uint32
	nextGoldID   uint32
	nextBombID   uint32
	nextSpawn    int

	// speculated holds the tile value before a client-side prediction.
	speculated map[Point]Tile
}

// New builds a world from a level. Enemies are spawned at their markers and
// gold is placed; players are added as peers join.
func New(level *levels.Level) *World {
	w := &World{
		level:        level,
		width:        level.Width(),
		height:       level.Height(),
		tiles:        make([]Tile, level.Width()*level.Height()),
		space:        resolv.NewSpace(level.Width()*TileSize, level.Height()*TileSize, TileSize, TileSize),
		entities:     make(map[uint32]*Entity),
		gold:         make(map[uint32]*Gold),
		bombs:        make(map[uint32]*Bomb),
		vars:         make(map[string]string),
		nextEntityID: 1,
		nextGoldID:   1,
		nextBombID:   1,
		speculated:   make(map[Point]Tile),
	}

	for y, row := range level.Tiles {
		for x, c := range []byte(row) {
			p := Point{X: x, Y: y}
			tile := Tile(c)
			switch c {
			case levels.CharPlayerSpawn:
				w.playerSpawns = append(w.playerSpawns, p)
				tile = Empty
			case levels.CharEnemySpawn:
				w.enemySpawns = append(w.enemySpawns, p)
				tile = Empty
			case levels.CharGold:
				w.addGold(p)
				tile = Empty
			}
			w.tiles[y*w.width+x] = tile
		}
	}

	for _, p := range w.enemySpawns {
		w.addEntity(KindEnemy, messages.ServerOrigin, p)
	}

	return w
}

func (w *World) Level() *levels.Level {
	return w.level
}

func (w *World) Map() string {
	return w.level.Name
}

func (w *World) Width() int  { return w.width }
func (w *World) Height() int { return w.height }

func (w *World) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < w.width && y < w.height
}

// Tile returns the tile at x, y. Outside the map everything is Concrete.
func (w *World) Tile(x, y int) Tile {
	if !w.InBounds(x, y) {
		return Concrete
	}
	return w.tiles[y*w.width+x]
}

// SetTile overwrites a tile.
func (w *World) SetTile(x, y int, t Tile) error {
	if !w.InBounds(x, y) {
		return fmt.Errorf("%w: %d,%d", ErrOutOfBounds, x, y)
	}
	w.tiles[y*w.width+x] = t
	return nil
}

// Dig turns the brick at x, y into a hole. Digging a hole again is a no-op
// so a replicated result can be applied more than once.
func (w *World) Dig(x, y int) error {
	switch t := w.Tile(x, y); t {
	case Hole:
		return nil
	case Brick:
		return w.SetTile(x, y, Hole)
	default:
		return fmt.Errorf("tile %d,%d is %s, not diggable", x, y, t)
	}
}

// Refill restores a hole to brick.
func (w *World) Refill(x, y int) error {
	if w.Tile(x, y) != Hole {
		return nil
	}
	return w.SetTile(x, y, Brick)
}

// Speculate applies a predicted tile change that may later be confirmed or
// rolled back. Only the first prediction per tile remembers the original.
func (w *World) Speculate(x, y int, t Tile) error {
	p := Point{X: x, Y: y}
	if _, ok := w.speculated[p]; !ok {
		w.speculated[p] = w.Tile(x, y)
	}
	return w.SetTile(x, y, t)
}

// Confirm keeps a predicted tile change.
func (w *World) Confirm(x, y int) {
	delete(w.speculated, Point{X: x, Y: y})
}

// Rollback restores the tile value from before the prediction. It reports
// false when nothing was predicted at x, y.
func (w *World) Rollback(x, y int) bool {
	p := Point{X: x, Y: y}
	original, ok := w.speculated[p]
	if !ok {
		return false
	}
	delete(w.speculated, p)
	w.tiles[y*w.width+x] = original
	return true
}

// Speculating reports whether x, y has an unconfirmed prediction.
func (w *World) Speculating(x, y int) bool {
	_, ok := w.speculated[Point{X: x, Y: y}]
	return ok
}

func (w *World) addEntity(kind EntityKind, owner uint32, p Point) *Entity {
	tag := TagPlayer
	if kind == KindEnemy {
		tag = TagEnemy
	}
	e := &Entity{
		ID:     w.nextEntityID,
		Kind:   kind,
		Owner:  owner,
		Alive:  true,
		Object: resolv.NewObject(float64(p.X*TileSize), float64(p.Y*TileSize), TileSize, TileSize, tag),
	}
	e.Object.Data = e
	w.nextEntityID++
	w.entities[e.ID] = e
	w.space.Add(e.Object)
	return e
}

// AddPlayer spawns a player owned by the given peer, cycling through the
// level's spawn points.
func (w *World) AddPlayer(owner uint32) *Entity {
	spawn := w.playerSpawns[w.nextSpawn%len(w.playerSpawns)]
	w.nextSpawn++
	return w.addEntity(KindPlayer, owner, spawn)
}

// PutPlayer creates or moves a player with a server-assigned id, as mirrored
// from sync-all-players.
func (w *World) PutPlayer(state messages.PlayerState) *Entity {
	e, ok := w.entities[state.EntityID]
	if !ok {
		e = &Entity{
			ID:     state.EntityID,
			Kind:   KindPlayer,
			Object: resolv.NewObject(state.X, state.Y, TileSize, TileSize, TagPlayer),
		}
		e.Object.Data = e
		w.entities[e.ID] = e
		w.space.Add(e.Object)
		if e.ID >= w.nextEntityID {
			w.nextEntityID = e.ID + 1
		}
	}
	e.Owner = state.Owner
	e.Alive = state.Alive
	w.place(e, state.X, state.Y)
	return e
}

// RemoveOwnedBy removes every player owned by the peer.
func (w *World) RemoveOwnedBy(owner uint32) []uint32 {
	var removed []uint32
	for _, e := range w.Entities() {
		if e.Kind == KindPlayer && e.Owner == owner {
			w.space.Remove(e.Object)
			delete(w.entities, e.ID)
			removed = append(removed, e.ID)
		}
	}
	return removed
}

// RemoveEntity removes an entity. Unknown ids are ignored.
func (w *World) RemoveEntity(id uint32) {
	e, ok := w.entities[id]
	if !ok {
		return
	}
	w.space.Remove(e.Object)
	delete(w.entities, id)
}

func (w *World) Entity(id uint32) (*Entity, bool) {
	e, ok := w.entities[id]
	return e, ok
}

// Entities returns every entity ordered by id.
func (w *World) Entities() []*Entity {
	entities := make([]*Entity, 0, len(w.entities))
	for _, e := range w.entities {
		entities = append(entities, e)
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })
	return entities
}

// Players returns the players ordered by id.
func (w *World) Players() []*Entity {
	var players []*Entity
	for _, e := range w.Entities() {
		if e.Kind == KindPlayer {
			players = append(players, e)
		}
	}
	return players
}

// PlayerOf returns the first player owned by the peer.
func (w *World) PlayerOf(owner uint32) (*Entity, bool) {
	for _, e := range w.Players() {
		if e.Owner == owner {
			return e, true
		}
	}
	return nil, false
}

// Move places an entity at a world position.
func (w *World) Move(id uint32, x, y float64) error {
	e, ok := w.entities[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownEntity, id)
	}
	w.place(e, x, y)
	return nil
}

func (w *World) place(e *Entity, x, y float64) {
	e.Object.Position.X = x
	e.Object.Position.Y = y
	e.Object.Update()
}

// Kill marks an entity dead.
func (w *World) Kill(id uint32) error {
	e, ok := w.entities[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownEntity, id)
	}
	e.Alive = false
	return nil
}

// Respawn revives an entity at a world position.
func (w *World) Respawn(id uint32, x, y float64) error {
	e, ok := w.entities[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownEntity, id)
	}
	e.Alive = true
	w.place(e, x, y)
	return nil
}

// RespawnPlayers revives every player at a spawn point, in id order.
func (w *World) RespawnPlayers() {
	w.nextSpawn = 0
	for _, e := range w.Players() {
		spawn := w.playerSpawns[w.nextSpawn%len(w.playerSpawns)]
		w.nextSpawn++
		e.Alive = true
		w.place(e, float64(spawn.X*TileSize), float64(spawn.Y*TileSize))
	}
}

// TileOf returns the tile under the centre of an entity.
func (w *World) TileOf(e *Entity) Point {
	x, y := w.space.WorldToSpace(e.Object.Position.X+e.Object.Size.X/2, e.Object.Position.Y+e.Object.Size.Y/2)
	return Point{X: x, Y: y}
}

// EntitiesAt returns the entities standing on the tile.
func (w *World) EntitiesAt(x, y int) []*Entity {
	var found []*Entity
	for _, e := range w.Entities() {
		if w.TileOf(e) == (Point{X: x, Y: y}) {
			found = append(found, e)
		}
	}
	return found
}

func (w *World) addGold(p Point) *Gold {
	g := &Gold{ID: w.nextGoldID, Tile: p}
	w.nextGoldID++
	w.gold[g.ID] = g
	return g
}

// AddGold places a new gold piece, e.g. from a script.
func (w *World) AddGold(x, y int) (*Gold, error) {
	if !w.InBounds(x, y) {
		return nil, fmt.Errorf("%w: %d,%d", ErrOutOfBounds, x, y)
	}
	return w.addGold(Point{X: x, Y: y}), nil
}

// PutGold creates or overwrites a gold piece from its wire form.
func (w *World) PutGold(state messages.GoldState) {
	g, ok := w.gold[state.GoldID]
	if !ok {
		g = &Gold{ID: state.GoldID}
		w.gold[g.ID] = g
		if g.ID >= w.nextGoldID {
			w.nextGoldID = g.ID + 1
		}
	}
	g.Tile = Point{X: state.TileX, Y: state.TileY}
	g.Carrier = state.Carrier
	g.Collected = state.Collected
}

// ReplaceGold discards every gold piece and installs the given set.
func (w *World) ReplaceGold(states []messages.GoldState) {
	clear(w.gold)
	for _, state := range states {
		w.PutGold(state)
	}
}

func (w *World) Gold(id uint32) (*Gold, bool) {
	g, ok := w.gold[id]
	return g, ok
}

// AllGold returns the gold pieces ordered by id.
func (w *World) AllGold() []*Gold {
	gold := make([]*Gold, 0, len(w.gold))
	for _, g := range w.gold {
		gold = append(gold, g)
	}
	sort.Slice(gold, func(i, j int) bool { return gold[i].ID < gold[j].ID })
	return gold
}

// CollectGold marks a piece collected.
func (w *World) CollectGold(id uint32) error {
	g, ok := w.gold[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownGold, id)
	}
	g.Collected = true
	g.Carrier = 0
	return nil
}

// GoldRemaining counts the pieces not yet collected.
func (w *World) GoldRemaining() int {
	remaining := 0
	for _, g := range w.gold {
		if !g.Collected {
			remaining++
		}
	}
	return remaining
}

// BombCapacity is the number of bombs one owner may have placed at a time.
func (w *World) BombCapacity() int {
	return w.level.BombCapacity
}

// BombAt reports whether a bomb occupies the tile.
func (w *World) BombAt(x, y int) bool {
	cell := w.space.Cell(x, y)
	return cell != nil && cell.ContainsTags(TagBomb)
}

// BombsOwnedBy counts the bombs placed by an owner.
func (w *World) BombsOwnedBy(owner uint32) int {
	count := 0
	for _, b := range w.bombs {
		if b.Owner == owner {
			count++
		}
	}
	return count
}

// PlaceBomb puts a bomb on the tile. id 0 assigns the next free id.
func (w *World) PlaceBomb(id, owner uint32, x, y int) (*Bomb, error) {
	if !w.InBounds(x, y) {
		return nil, fmt.Errorf("%w: %d,%d", ErrOutOfBounds, x, y)
	}
	if id == 0 {
		id = w.nextBombID
	}
	if existing, ok := w.bombs[id]; ok {
		return existing, nil
	}
	if id >= w.nextBombID {
		w.nextBombID = id + 1
	}

	// inset by one unit so the object never spills into a neighbouring cell
	b := &Bomb{
		ID:     id,
		Owner:  owner,
		Tile:   Point{X: x, Y: y},
		Object: resolv.NewObject(float64(x*TileSize)+1, float64(y*TileSize)+1, TileSize-2, TileSize-2, TagBomb),
	}
	b.Object.Data = b
	w.bombs[id] = b
	w.space.Add(b.Object)
	return b, nil
}

func (w *World) Bomb(id uint32) (*Bomb, bool) {
	b, ok := w.bombs[id]
	return b, ok
}

// RemoveBomb removes a bomb after it went off.
func (w *World) RemoveBomb(id uint32) {
	b, ok := w.bombs[id]
	if !ok {
		return
	}
	w.space.Remove(b.Object)
	delete(w.bombs, id)
}

func (w *World) Bombs() []*Bomb {
	bombs := make([]*Bomb, 0, len(w.bombs))
	for _, b := range w.bombs {
		bombs = append(bombs, b)
	}
	sort.Slice(bombs, func(i, j int) bool { return bombs[i].ID < bombs[j].ID })
	return bombs
}

// Snapshot is a copy of the state a level script can change.
type Snapshot struct {
	tiles      []Tile
	vars       map[string]string
	gold       []Gold
	nextGoldID uint32
	alive      map[uint32]bool
}

// Snapshot captures tiles, vars, gold and entity liveness.
func (w *World) Snapshot() *Snapshot {
	snap := &Snapshot{
		tiles:      append([]Tile(nil), w.tiles...),
		vars:       make(map[string]string, len(w.vars)),
		gold:       make([]Gold, 0, len(w.gold)),
		nextGoldID: w.nextGoldID,
		alive:      make(map[uint32]bool, len(w.entities)),
	}
	for k, v := range w.vars {
		snap.vars[k] = v
	}
	for _, g := range w.gold {
		snap.gold = append(snap.gold, *g)
	}
	for id, e := range w.entities {
		snap.alive[id] = e.Alive
	}
	return snap
}

// Restore rolls the world back to a snapshot taken from it.
func (w *World) Restore(snap *Snapshot) {
	copy(w.tiles, snap.tiles)
	w.vars = make(map[string]string, len(snap.vars))
	for k, v := range snap.vars {
		w.vars[k] = v
	}
	clear(w.gold)
	for _, g := range snap.gold {
		g := g
		w.gold[g.ID] = &g
	}
	w.nextGoldID = snap.nextGoldID
	for id, alive := range snap.alive {
		if e, ok := w.entities[id]; ok {
			e.Alive = alive
		}
	}
}

// SetVar sets a session variable shared by the level's scripts.
func (w *World) SetVar(name, value string) {
	w.vars[name] = value
}

func (w *World) Var(name string) (string, bool) {
	value, ok := w.vars[name]
	return value, ok
}

// PlayerStates returns the wire form of every player.
func (w *World) PlayerStates() []messages.PlayerState {
	players := w.Players()
	states := make([]messages.PlayerState, 0, len(players))
	for _, e := range players {
		states = append(states, e.State())
	}
	return states
}

// GoldStates returns the wire form of every gold piece.
func (w *World) GoldStates() []messages.GoldState {
	gold := w.AllGold()
	states := make([]messages.GoldState, 0, len(gold))
	for _, g := range gold {
		states = append(states, g.State())
	}
	return states
}
