package models

import (
	"time"
)

const BlocksTableName = "blocks"

// BlockColumns defines the schema for the blocks table.
// Codecs follow the usual split: DoubleDelta,LZ4 for monotonic values
// (height, slot, timestamps), ZSTD(1) for hashes and keys.
var BlockColumns = []ColumnDef{
	{Name: "height", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "hash", Type: "String", Codec: "ZSTD(1)"},
	{Name: "parent_hash", Type: "String", Codec: "ZSTD(1)"},
	{Name: "slot", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "author_key", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "synced_at", Type: "DateTime64(6)", Codec: "DoubleDelta, LZ4"},
}

// Block is one synced block row. AuthorKey is the sidechain key of the
// validator that produced the block, or nil when attribution was not
// possible (pruned state, undecodable digest, unregistered authority).
// The row itself always exists for every synced height; a nil author is the
// only partial state the table allows.
type Block struct {
	Height     uint64    `ch:"height" json:"height"`
	Hash       string    `ch:"hash" json:"hash"`
	ParentHash string    `ch:"parent_hash" json:"parent_hash"`
	Slot       uint64    `ch:"slot" json:"slot"`
	AuthorKey  *string   `ch:"author_key" json:"author_key"`
	SyncedAt   time.Time `ch:"synced_at" json:"synced_at"`
}
