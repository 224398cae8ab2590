// Package interner provides the bidirectional path/fingerprint <-> dense-id
// mapping used by the rest of the analysis pipeline. An Interner is an
// owned value, built once by the vector builder and handed around
// read-only afterward, rather than process-wide mutable state.
package interner

import "github.com/ivoronin/dedupescan/internal/types"

// blockKey is the composite lookup key for a block fingerprint: hash and
// range together, since two blocks with the same hash but different ranges
// (or vice versa) are distinct block ids.
type blockKey struct {
	hash  string
	rng   types.Range
}

type blockEntry struct {
	hash  string
	rng   types.Range
	count uint32
}

// Interner is the owned, single-writer-then-read-only mapping between
// textual paths/fingerprints and dense integer ids.
type Interner struct {
	files      []string
	blockIdx   map[blockKey]types.BlockId
	blocks     []blockEntry
}

// New returns an empty Interner.
func New() *Interner {
	return &Interner{
		blockIdx: make(map[blockKey]types.BlockId),
	}
}

// InternFile assigns a fresh FileId to path. Callers must not intern the
// same path twice if that would create a spurious second id; the vector
// builder enforces this by only interning on a file-boundary change.
func (in *Interner) InternFile(path string) types.FileId {
	id := types.FileId(len(in.files))
	in.files = append(in.files, path)
	return id
}

// InternBlock looks up (hash, rng) by composite key. On a hit it increments
// the block's count and returns the existing id; on a miss it assigns a new
// id with count 1.
func (in *Interner) InternBlock(hash string, rng types.Range) types.BlockId {
	key := blockKey{hash: hash, rng: rng}
	if id, ok := in.blockIdx[key]; ok {
		in.blocks[id].count++
		return id
	}
	id := types.BlockId(len(in.blocks))
	in.blockIdx[key] = id
	in.blocks = append(in.blocks, blockEntry{hash: hash, rng: rng, count: 1})
	return id
}

// Count returns the number of files a block id has been seen in.
func (in *Interner) Count(id types.BlockId) uint32 {
	return in.blocks[id].count
}

// HashOf returns the hash text for a block id.
func (in *Interner) HashOf(id types.BlockId) string {
	return in.blocks[id].hash
}

// RangeOf returns the range for a block id.
func (in *Interner) RangeOf(id types.BlockId) types.Range {
	return in.blocks[id].rng
}

// PathOf returns the path text for a file id.
func (in *Interner) PathOf(id types.FileId) string {
	return in.files[id]
}

// NumFiles returns the number of interned files.
func (in *Interner) NumFiles() int { return len(in.files) }

// NumBlocks returns the number of interned blocks.
func (in *Interner) NumBlocks() int { return len(in.blocks) }

// EncodeFile is a convenience wrapper around types.EncodeFile.
func (in *Interner) EncodeFile(id types.FileId) types.NodeId { return types.EncodeFile(id) }

// EncodeBlock is a convenience wrapper around types.EncodeBlock.
func (in *Interner) EncodeBlock(id types.BlockId) types.NodeId { return types.EncodeBlock(id) }
