package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	// Tick is the next tick the world will run. Every audit entry with a
	// smaller tick is already reflected in Chunks.
	Tick uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed       int64  `json:"seed"`
	TickRate   int    `json:"tick_rate_hz"`
	BoundaryR  int    `json:"boundary_r"`
	Policy     string `json:"policy"`
	MaxPending int    `json:"max_pending"`
	MaxDepth   int    `json:"max_depth"`

	// Palette ids in Chunks index into Palette. Import refuses a snapshot
	// whose palette differs from the loaded block catalog.
	Palette         []string `json:"palette"`
	TemplatesDigest string   `json:"templates_digest"`

	// NextID is the registry's last issued request id; SupplierDraws is the
	// candidate supplier's draw counter. Both keep ids and orders unique
	// across a resume.
	NextID        uint64 `json:"next_id"`
	SupplierDraws uint64 `json:"supplier_draws"`

	Chunks  []ChunkV1   `json:"chunks"`
	Pending []RequestV1 `json:"pending"`
}

type ChunkV1 struct {
	CX  int    `json:"cx"`
	CY  int    `json:"cy"`
	CZ  int    `json:"cz"`
	RLE string `json:"rle"`
}

// RequestV1 is a pending spawn request. A trial that was in progress is
// not recorded; the request restarts with a fresh candidate order.
type RequestV1 struct {
	ID       uint64 `json:"id"`
	Anchor   [3]int `json:"anchor"`
	Front    string `json:"front"`
	Category string `json:"category"`
	Source   string `json:"source,omitempty"`
	Tick     uint64 `json:"tick"`
	Depth    int    `json:"depth"`
}

// Path is where the snapshot for tick lives under a world directory.
func Path(worldDir string, tick uint64) string {
	return filepath.Join(worldDir, "snapshots", fmt.Sprintf("%d.snap.zst", tick))
}

// Latest returns the snapshot path with the highest tick, or "" when the
// world has none.
func Latest(worldDir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(worldDir, "snapshots", "*.snap.zst"))
	if err != nil {
		return "", err
	}
	type entry struct {
		tick uint64
		path string
	}
	var entries []entry
	for _, m := range matches {
		n, err := strconv.ParseUint(strings.TrimSuffix(filepath.Base(m), ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, entry{n, m})
	}
	if len(entries) == 0 {
		return "", nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].tick < entries[j].tick })
	return entries[len(entries)-1].path, nil
}

// WriteSnapshot writes a JSON header line followed by the gob-encoded
// snapshot, zstd-compressed. The file is written next to path and renamed
// into place.
func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := writeFile(tmp, snap); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeFile(path string, snap SnapshotV1) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Sync()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	hb, err := br.ReadBytes('\n')
	if err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(hb, &h); err != nil {
		return snap, fmt.Errorf("header: %w", err)
	}
	if h.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", h.Version)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}
