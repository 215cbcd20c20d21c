// Package stadiums holds the static venue table: coordinates for weather
// lookups and the locator of each venue's model artifact.
package stadiums

import (
	"fmt"
	"strings"

	"raincheck/internal/types"
)

// DefaultStadium is used when a request omits the stadium id.
const DefaultStadium = "jamsil"

// Definition describes one venue. Immutable once placed in a Catalog.
type Definition struct {
	ID           string  `koanf:"id" json:"id"`
	Name         string  `koanf:"name" json:"name"`
	Team         string  `koanf:"team" json:"team"`
	Lat          float64 `koanf:"lat" json:"lat"`
	Lon          float64 `koanf:"lon" json:"lon"`
	ModelLocator string  `koanf:"model" json:"model"`
	Capacity     int     `koanf:"capacity" json:"capacity,omitempty"`
	Dome         bool    `koanf:"dome" json:"dome,omitempty"`
}

// Catalog is an ordered, read-only set of venues.
type Catalog struct {
	defs []Definition
	byID map[string]int
}

// builtin is the table served when no catalog file is configured.
var builtin = []Definition{
	{ID: "jamsil", Name: "잠실야구장", Team: "LG/두산", Lat: 37.5122, Lon: 127.0719, ModelLocator: "kbo_jamsil_model.json", Capacity: 25553},
	{ID: "daegu", Name: "대구삼성라이온즈파크", Team: "삼성", Lat: 35.8411, Lon: 128.6815, ModelLocator: "kbo_daegu_model.json", Capacity: 24000},
	{ID: "suwon", Name: "수원KT위즈파크", Team: "KT", Lat: 37.2997, Lon: 127.0097, ModelLocator: "kbo_suwon_model.json", Capacity: 20000},
	{ID: "incheon", Name: "인천SSG랜더스필드", Team: "SSG", Lat: 37.4370, Lon: 126.6932, ModelLocator: "kbo_incheon_model.json", Capacity: 23000},
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(builtin)
	if err != nil {
		panic(fmt.Sprintf("stadiums: invalid built-in catalog: %v", err))
	}
	return c
}

// New validates defs and builds a Catalog preserving their order.
func New(defs []Definition) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("catalog must contain at least one stadium")
	}

	c := &Catalog{
		defs: make([]Definition, 0, len(defs)),
		byID: make(map[string]int, len(defs)),
	}
	for i, d := range defs {
		d.ID = strings.TrimSpace(d.ID)
		if d.ID == "" {
			return nil, fmt.Errorf("stadium #%d: id is required", i)
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("stadium %q: duplicate id", d.ID)
		}
		if d.Lat < -90 || d.Lat > 90 || d.Lon < -180 || d.Lon > 180 {
			return nil, fmt.Errorf("stadium %q: coordinates out of range (%v, %v)", d.ID, d.Lat, d.Lon)
		}
		if d.ModelLocator == "" {
			d.ModelLocator = fmt.Sprintf("kbo_%s_model.json", d.ID)
		}
		if d.Name == "" {
			d.Name = d.ID
		}
		c.byID[d.ID] = len(c.defs)
		c.defs = append(c.defs, d)
	}
	return c, nil
}

// Get returns the definition for id.
func (c *Catalog) Get(id string) (Definition, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Definition{}, false
	}
	return c.defs[i], true
}

// Lookup is Get with a not_found_stadium AppError for unknown ids.
func (c *Catalog) Lookup(id string) (Definition, error) {
	d, ok := c.Get(id)
	if !ok {
		return Definition{}, types.NewStadiumError(
			types.ErrCodeNotFoundStadium, id, "catalog",
			fmt.Sprintf("unknown stadium %q", id), nil,
		)
	}
	return d, nil
}

// All returns the definitions in catalog order.
func (c *Catalog) All() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// IDs returns the stadium ids in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.defs))
	for i, d := range c.defs {
		ids[i] = d.ID
	}
	return ids
}

// Len returns the number of stadiums.
func (c *Catalog) Len() int { return len(c.defs) }
