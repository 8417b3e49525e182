package tile

import (
	_ "embed"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog is the set of building types available to a game.
type Catalog struct {
	tiles map[Name]*Tile
}

type catalogFile struct {
	Tiles []*Tile `yaml:"tiles"`
}

// DefaultCatalog parses the catalog compiled into the binary.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a catalog file from disk.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return NewCatalog(f.Tiles...)
}

// NewCatalog validates tiles and indexes them by name.
func NewCatalog(tiles ...*Tile) (*Catalog, error) {
	c := &Catalog{tiles: make(map[Name]*Tile, len(tiles))}
	var errs []error
	for _, t := range tiles {
		t.expand()
		if err := t.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := c.tiles[t.Name]; dup {
			errs = append(errs, fmt.Errorf("tile %q defined twice", t.Name))
			continue
		}
		c.tiles[t.Name] = t
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return c, nil
}

// Lookup returns the tile called name.
func (c *Catalog) Lookup(name Name) (*Tile, bool) {
	t, ok := c.tiles[name]
	return t, ok
}

// Names returns every tile name in ascending order.
func (c *Catalog) Names() []Name {
	return slices.Sorted(maps.Keys(c.tiles))
}

// Tiles returns every tile ordered by name.
func (c *Catalog) Tiles() []*Tile {
	out := make([]*Tile, 0, len(c.tiles))
	for _, n := range c.Names() {
		out = append(out, c.tiles[n])
	}
	return out
}
