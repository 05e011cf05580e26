package catalogs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"structspawn.ai/internal/sim/geom"
)

type Catalogs struct {
	Blocks    BlockCatalog
	Templates TemplateCatalog
}

type BlockCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string
}

type BlockDef struct {
	ID    string `json:"id"`
	Solid bool   `json:"solid"`
}

type TemplateCatalog struct {
	ByID       map[string]TemplateDef
	ByCategory map[string][]string // category -> sorted template ids
	Digest     string
}

// TemplateDef is one concrete structure template. Positions are local to the
// template; SpawnAnchor and Front describe its incoming connection point.
type TemplateDef struct {
	ID          string         `json:"id"`
	Category    string         `json:"category"`
	SpawnAnchor [3]int         `json:"spawn_anchor"`
	Front       geom.Side      `json:"front"`
	Blocks      []BlockPlace   `json:"blocks"`
	Conditions  Conditions     `json:"conditions"`
	Placements  []PlacementDef `json:"placements,omitempty"`
}

type BlockPlace struct {
	Pos   [3]int `json:"pos"`
	Block string `json:"block"`
}

// Conditions are checked before a template may spawn.
type Conditions struct {
	RequireAir    bool `json:"require_air"`
	RequireGround bool `json:"require_ground"`
}

// PlacementDef is a follow-up structure scheduled when the template spawns,
// in template-local coordinates.
type PlacementDef struct {
	Pos      [3]int    `json:"pos"`
	Front    geom.Side `json:"front"`
	Category string    `json:"category"`
}

// Bounds returns the local region covered by the template blocks.
func (t TemplateDef) Bounds() geom.Region {
	if len(t.Blocks) == 0 {
		a := geom.FromArray(t.SpawnAnchor)
		return geom.Region{Min: a, Max: a}
	}
	r := geom.RegionFromPoints(geom.FromArray(t.Blocks[0].Pos), geom.FromArray(t.Blocks[0].Pos))
	for _, b := range t.Blocks[1:] {
		p := geom.FromArray(b.Pos)
		r = r.Union(geom.Region{Min: p, Max: p})
	}
	return r
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadBlocks(filepath.Join(configDir, "blocks.json"), &c.Blocks); err != nil {
		return nil, err
	}
	if err := loadTemplates(filepath.Join(configDir, "templates"), &c.Blocks, &c.Templates); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalogs) HasCategory(category string) bool {
	if c == nil {
		return false
	}
	return len(c.Templates.ByCategory[category]) > 0
}

func (c *Catalogs) Template(id string) (TemplateDef, bool) {
	if c == nil {
		return TemplateDef{}, false
	}
	t, ok := c.Templates.ByID[id]
	return t, ok
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadBlocks(path string, out *BlockCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	out.Defs = map[string]BlockDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("blocks.json: empty id")
		}
		out.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Ensure AIR exists and is palette id 0.
	if _, ok := out.Defs["AIR"]; !ok {
		return fmt.Errorf("blocks.json: missing AIR")
	}
	ids = append([]string{"AIR"}, filterOut(ids, "AIR")...)

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func loadTemplates(dir string, blocks *BlockCatalog, out *TemplateCatalog) error {
	out.ByID = map[string]TemplateDef{}
	out.ByCategory = map[string][]string{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		// A world without templates is valid; every category is then unknown.
		if os.IsNotExist(err) {
			out.Digest = sha256Hex(nil)
			return nil
		}
		return err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".json") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	var concat bytes.Buffer
	for _, p := range files {
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		concat.Write(b)
		concat.WriteByte('\n')

		var t TemplateDef
		if err := json.Unmarshal(b, &t); err != nil {
			return fmt.Errorf("template %s: %w", filepath.Base(p), err)
		}
		if err := validateTemplate(t, blocks); err != nil {
			return fmt.Errorf("template %s: %w", filepath.Base(p), err)
		}
		if _, dup := out.ByID[t.ID]; dup {
			return fmt.Errorf("template %s: duplicate id %s", filepath.Base(p), t.ID)
		}
		out.ByID[t.ID] = t
		out.ByCategory[t.Category] = append(out.ByCategory[t.Category], t.ID)
	}
	for cat := range out.ByCategory {
		sort.Strings(out.ByCategory[cat])
	}
	out.Digest = sha256Hex(concat.Bytes())
	return nil
}

func validateTemplate(t TemplateDef, blocks *BlockCatalog) error {
	if t.ID == "" {
		return fmt.Errorf("missing id")
	}
	if t.Category == "" {
		return fmt.Errorf("missing category")
	}
	if !t.Front.Horizontal() {
		return fmt.Errorf("front must be horizontal, got %s", t.Front)
	}
	for i, b := range t.Blocks {
		if _, ok := blocks.Index[b.Block]; !ok {
			return fmt.Errorf("block %d: unknown block id %q", i, b.Block)
		}
	}
	for i, pl := range t.Placements {
		if pl.Category == "" {
			return fmt.Errorf("placement %d: missing category", i)
		}
		if !pl.Front.Horizontal() {
			return fmt.Errorf("placement %d: front must be horizontal, got %s", i, pl.Front)
		}
	}
	return nil
}

func filterOut(in []string, remove string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == remove {
			continue
		}
		out = append(out, s)
	}
	return out
}
