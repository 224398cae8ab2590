// Package types provides the core value types shared across dedupescan's
// analysis pipeline: ids, ranges, vectors, and the small generic helpers
// used to keep emitted output deterministic.
package types

import (
	"cmp"
	"slices"
)

// FileId is a dense, non-negative id assigned to a file path on first sighting.
type FileId uint32

// BlockId is a dense, non-negative id assigned to a (hash, range) pair on
// first sighting.
type BlockId uint32

// Range is an opaque equality key derived from a block's (start, end)
// byte-offset pair. Only equality is ever required of it.
type Range struct {
	Start int64
	End   int64
}

// NodeKind tags a NodeId as referring to a file or a block.
type NodeKind uint8

const (
	KindFile NodeKind = iota
	KindBlock
)

// NodeId is a tagged id used in the bipartite graph: the low bit carries the
// kind discriminant, the remaining bits carry the underlying FileId/BlockId.
// File and block ids share one namespace, as required by the bipartite
// graph's node set, while the tag stays recoverable from the id alone.
type NodeId uint64

// EncodeFile produces the NodeId for a file id.
func EncodeFile(id FileId) NodeId {
	return NodeId(id)<<1 | NodeId(KindFile)
}

// EncodeBlock produces the NodeId for a block id.
func EncodeBlock(id BlockId) NodeId {
	return NodeId(id)<<1 | NodeId(KindBlock)
}

// Decode recovers the kind and underlying integer id from a NodeId.
func Decode(n NodeId) (NodeKind, uint32) {
	return NodeKind(n & 1), uint32(n >> 1)
}

// Kind reports whether n refers to a file or a block node.
func (n NodeId) Kind() NodeKind {
	k, _ := Decode(n)
	return k
}

// IsFile reports whether n is a file node.
func (n NodeId) IsFile() bool { return n.Kind() == KindFile }

// IsBlock reports whether n is a block node.
func (n NodeId) IsBlock() bool { return n.Kind() == KindBlock }

// FileId recovers the FileId backing n. Callers must check IsFile first.
func (n NodeId) FileId() FileId {
	_, id := Decode(n)
	return FileId(id)
}

// BlockId recovers the BlockId backing n. Callers must check IsBlock first.
func (n NodeId) BlockId() BlockId {
	_, id := Decode(n)
	return BlockId(id)
}

// Vector is a file's ordered list of interned block ids, as produced by the
// vector builder. The order reflects the order blocks were read for that
// file; downstream consumers (the graph builder) treat it as a set.
type Vector struct {
	File   FileId
	Blocks []BlockId
}

// Fingerprint is a resolved (hash, range) pair, used once ids have been
// translated back to human-readable text for output.
type Fingerprint struct {
	Hash  string
	Range Range
}

// Semaphore implements a counting semaphore using a buffered channel. It
// bounds concurrent access to a resource by blocking when the limit is
// reached.
type Semaphore chan struct{}

// NewSemaphore creates a semaphore that allows up to n concurrent acquisitions.
func NewSemaphore(n int) Semaphore { return make(chan struct{}, n) }

// Acquire blocks until a slot is available, then claims it.
func (s Semaphore) Acquire() { s <- struct{}{} }

// Release frees a slot, unblocking one waiting Acquire call.
func (s Semaphore) Release() { <-s }

// Sorted is an ordered collection that maintains sort order by a key
// function. The pipeline itself canonicalizes id sets (files, csums) with
// SortNodeIds rather than Sorted.
type Sorted[T any, K cmp.Ordered] struct {
	items   []T
	keyFunc func(T) K
}

// NewSorted creates a sorted collection from items using keyFunc for ordering.
// Items are copied and sorted at construction time.
func NewSorted[T any, K cmp.Ordered](items []T, keyFunc func(T) K) Sorted[T, K] {
	sorted := make([]T, len(items))
	copy(sorted, items)
	slices.SortFunc(sorted, func(a, b T) int {
		return cmp.Compare(keyFunc(a), keyFunc(b))
	})
	return Sorted[T, K]{items: sorted, keyFunc: keyFunc}
}

// Items returns the sorted items.
func (s Sorted[T, K]) Items() []T { return s.items }

// Len returns the number of items.
func (s Sorted[T, K]) Len() int { return len(s.items) }

// SortNodeIds returns a sorted copy of ids, ascending.
func SortNodeIds(ids []NodeId) []NodeId {
	out := make([]NodeId, len(ids))
	copy(out, ids)
	slices.Sort(out)
	return out
}
