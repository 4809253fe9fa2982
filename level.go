package pgalloc

import "github.com/griffone/pgalloc/internal/blockhdr"

// Exported level-arithmetic constants and functions, re-exported from
// internal/blockhdr so callers outside this module's own packages (and
// the bench/cmd collaborators) never need to import an internal path
// just to reason about block sizes.
const (
	// MinLevelShift is log2 of the smallest block size (32 bytes).
	MinLevelShift = blockhdr.MinLevelShift

	// MaxLevel is the level of a whole page (4096 bytes).
	MaxLevel = blockhdr.MaxLevel

	// PageSize is the fixed size of every OS-mapped page (4096 bytes).
	PageSize = blockhdr.PageSize

	// HeaderSize is the size, in bytes, of the prefix placed before
	// every block's payload.
	HeaderSize = blockhdr.Size
)

// SizeOf returns the byte size of a level-L block.
func SizeOf(level uint8) int { return blockhdr.SizeOf(level) }

// LevelFor returns the smallest level that can hold n bytes of payload
// plus one block header.
func LevelFor(n int) uint8 { return blockhdr.LevelFor(n) }
