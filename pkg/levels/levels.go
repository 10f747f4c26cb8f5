package levels

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tile characters used in level files.
const (
	CharEmpty       = '.'
	CharBrick       = '#'
	CharConcrete    = '='
	CharLadder      = 'H'
	CharRope        = '-'
	CharPlayerSpawn = 'P'
	CharEnemySpawn  = 'E'
	CharGold        = 'G'
)

// OnReadyScript runs on the server before the game begins.
const OnReadyScript = "onready"

// DefaultBombCapacity applies when a level leaves bomb_capacity unset.
const DefaultBombCapacity = 1

var ErrUnknownLevel = errors.New("unknown level")

// Level is one map: its tile rows, successor and scripts.
type Level struct {
	Name         string            `yaml:"name"`
	NextMap      string            `yaml:"next_map"`
	BombCapacity int               `yaml:"bomb_capacity"`
	Tiles        []string          `yaml:"tiles"`
	Scripts      map[string]string `yaml:"scripts"`
}

// Width returns the number of columns.
func (l *Level) Width() int {
	if len(l.Tiles) == 0 {
		return 0
	}
	return len(l.Tiles[0])
}

// Height returns the number of rows.
func (l *Level) Height() int {
	return len(l.Tiles)
}

// Script returns the Lua source of a named script.
func (l *Level) Script(name string) (string, bool) {
	source, ok := l.Scripts[name]
	return source, ok
}

// Parse decodes and validates a level document.
func Parse(data []byte) (*Level, error) {
	level := &Level{}
	if err := yaml.Unmarshal(data, level); err != nil {
		return nil, fmt.Errorf("failed to decode level: %w", err)
	}
	if err := level.validate(); err != nil {
		return nil, err
	}
	return level, nil
}

func (l *Level) validate() error {
	l.Name = strings.TrimSpace(l.Name)
	if l.Name == "" {
		return fmt.Errorf("level name is required")
	}
	if len(l.Tiles) == 0 {
		return fmt.Errorf("level %s: tiles are required", l.Name)
	}
	if l.BombCapacity < 0 {
		return fmt.Errorf("level %s: bomb_capacity must not be negative", l.Name)
	}
	if l.BombCapacity == 0 {
		l.BombCapacity = DefaultBombCapacity
	}

	width := len(l.Tiles[0])
	spawns := 0
	for y, row := range l.Tiles {
		if len(row) != width {
			return fmt.Errorf("level %s: row %d has width %d, expected %d", l.Name, y, len(row), width)
		}
		for x, c := range []byte(row) {
			switch c {
			case CharEmpty, CharBrick, CharConcrete, CharLadder, CharRope, CharEnemySpawn, CharGold:
			case CharPlayerSpawn:
				spawns++
			default:
				return fmt.Errorf("level %s: unknown tile %q at %d,%d", l.Name, c, x, y)
			}
		}
	}
	if spawns == 0 {
		return fmt.Errorf("level %s: at least one player spawn is required", l.Name)
	}
	if l.Scripts == nil {
		l.Scripts = map[string]string{}
	}
	return nil
}

// Catalog holds the levels available to a session, keyed by name.
type Catalog struct {
	levels map[string]*Level
}

// NewCatalog builds a catalog from already parsed levels.
func NewCatalog(levels ...*Level) *Catalog {
	c := &Catalog{levels: make(map[string]*Level, len(levels))}
	for _, level := range levels {
		c.levels[level.Name] = level
	}
	return c
}

//go:embed builtin/*.yaml
var builtinFS embed.FS

// LoadBuiltin loads the levels shipped with the binary.
func LoadBuiltin() (*Catalog, error) {
	sub, err := fs.Sub(builtinFS, "builtin")
	if err != nil {
		return nil, err
	}
	return LoadFromFS(sub)
}

// Load reads the levels in dir, or the builtin levels when dir is empty or
// does not exist.
func Load(dir string) (*Catalog, error) {
	if dir == "" {
		return LoadBuiltin()
	}
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return LoadBuiltin()
	}
	if err != nil {
		return nil, fmt.Errorf("stat levels dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("levels path %s is not a directory", dir)
	}
	return LoadFromFS(os.DirFS(dir))
}

// LoadFromFS loads every *.yaml file at the root of levelsFS. The level name
// must match the file name.
func LoadFromFS(levelsFS fs.FS) (*Catalog, error) {
	paths, err := fs.Glob(levelsFS, "*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob levels: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no level files found")
	}
	sort.Strings(paths)

	c := &Catalog{levels: make(map[string]*Level, len(paths))}
	for _, p := range paths {
		data, err := fs.ReadFile(levelsFS, p)
		if err != nil {
			return nil, fmt.Errorf("read level %s: %w", p, err)
		}
		level, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse level %s: %w", p, err)
		}
		if stem := strings.TrimSuffix(path.Base(p), path.Ext(p)); level.Name != stem {
			return nil, fmt.Errorf("level %s: name %q must match file name %q", p, level.Name, stem)
		}
		c.levels[level.Name] = level
	}

	for _, level := range c.levels {
		if level.NextMap != "" {
			if _, ok := c.levels[level.NextMap]; !ok {
				return nil, fmt.Errorf("level %s: next_map %q is not in the catalog", level.Name, level.NextMap)
			}
		}
	}

	return c, nil
}

// Get returns the named level.
func (c *Catalog) Get(name string) (*Level, error) {
	level, ok := c.levels[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLevel, name)
	}
	return level, nil
}

// Names returns every level name in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.levels))
	for name := range c.levels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
