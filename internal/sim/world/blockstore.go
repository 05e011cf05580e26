package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"

	"structspawn.ai/internal/sim/geom"
	"structspawn.ai/internal/sim/mathx"
)

const chunkSize = 16

type ChunkKey struct {
	CX, CY, CZ int
}

type Chunk struct {
	Key    ChunkKey
	Blocks []uint16 // len = 16*16*16, x fastest, then z, then y

	dirty bool
	hash  [32]byte
}

func (c *Chunk) index(x, y, z int) int {
	return x + z*chunkSize + y*chunkSize*chunkSize
}

func (c *Chunk) Get(x, y, z int) uint16 {
	return c.Blocks[c.index(x, y, z)]
}

func (c *Chunk) Set(x, y, z int, b uint16) {
	i := c.index(x, y, z)
	if c.Blocks[i] == b {
		return
	}
	c.Blocks[i] = b
	c.dirty = true
}

func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		h := sha256.New()
		var tmp [2]byte
		for _, v := range c.Blocks {
			binary.LittleEndian.PutUint16(tmp[:], v)
			h.Write(tmp[:])
		}
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}

// BlockStore is sparse chunked voxel storage. Cells that were never written
// read as air. Accessed only from the world loop goroutine.
type BlockStore struct {
	air    uint16
	chunks map[ChunkKey]*Chunk
}

func NewBlockStore(air uint16) *BlockStore {
	return &BlockStore{air: air, chunks: map[ChunkKey]*Chunk{}}
}

func (s *BlockStore) Air() uint16 { return s.air }

func splitPos(p geom.Vec3i) (ChunkKey, int, int, int) {
	k := ChunkKey{
		CX: mathx.FloorDiv(p.X, chunkSize),
		CY: mathx.FloorDiv(p.Y, chunkSize),
		CZ: mathx.FloorDiv(p.Z, chunkSize),
	}
	return k, mathx.Mod(p.X, chunkSize), mathx.Mod(p.Y, chunkSize), mathx.Mod(p.Z, chunkSize)
}

func (s *BlockStore) Get(p geom.Vec3i) uint16 {
	k, x, y, z := splitPos(p)
	ch, ok := s.chunks[k]
	if !ok {
		return s.air
	}
	return ch.Get(x, y, z)
}

// Set writes b at p and returns the previous block.
func (s *BlockStore) Set(p geom.Vec3i, b uint16) uint16 {
	k, x, y, z := splitPos(p)
	ch, ok := s.chunks[k]
	if !ok {
		if b == s.air {
			return s.air
		}
		ch = s.newChunk(k)
	}
	prev := ch.Get(x, y, z)
	ch.Set(x, y, z, b)
	return prev
}

func (s *BlockStore) newChunk(k ChunkKey) *Chunk {
	ch := &Chunk{Key: k, Blocks: make([]uint16, chunkSize*chunkSize*chunkSize)}
	if s.air != 0 {
		for i := range ch.Blocks {
			ch.Blocks[i] = s.air
		}
	}
	ch.dirty = true
	s.chunks[k] = ch
	return ch
}

// LoadChunk installs a full chunk, replacing any chunk already at k.
func (s *BlockStore) LoadChunk(k ChunkKey, ids []uint16) error {
	if len(ids) != chunkSize*chunkSize*chunkSize {
		return fmt.Errorf("chunk (%d,%d,%d): %d cells", k.CX, k.CY, k.CZ, len(ids))
	}
	s.chunks[k] = &Chunk{Key: k, Blocks: ids, dirty: true}
	return nil
}

// ChunkBlocks returns the cells of a loaded chunk. The slice is shared.
func (s *BlockStore) ChunkBlocks(k ChunkKey) ([]uint16, bool) {
	ch, ok := s.chunks[k]
	if !ok {
		return nil, false
	}
	return ch.Blocks, true
}

func (s *BlockStore) LoadedChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(s.chunks))
	for k := range s.chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CY != keys[j].CY {
			return keys[i].CY < keys[j].CY
		}
		if keys[i].CZ != keys[j].CZ {
			return keys[i].CZ < keys[j].CZ
		}
		return keys[i].CX < keys[j].CX
	})
	return keys
}

// Digest hashes every loaded chunk in key order.
func (s *BlockStore) Digest() string {
	h := sha256.New()
	var tmp [8]byte
	for _, k := range s.LoadedChunkKeys() {
		for _, v := range []int{k.CX, k.CY, k.CZ} {
			binary.LittleEndian.PutUint64(tmp[:], uint64(int64(v)))
			h.Write(tmp[:])
		}
		d := s.chunks[k].Digest()
		h.Write(d[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
