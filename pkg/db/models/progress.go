package models

import (
	"time"
)

const SyncProgressTableName = "sync_progress"

// SyncProgressColumns defines the schema for the sync_progress table.
var SyncProgressColumns = []ColumnDef{
	{Name: "id", Type: "UInt8"},
	{Name: "last_synced_block", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "updated_at", Type: "DateTime64(6)", Codec: "DoubleDelta, LZ4"},
}

// SyncProgress is the durable sync cursor: a single logical row holding the
// highest height whose block row (and attribution outcome) is fully
// persisted. The daemon resumes from LastSyncedBlock+1 and never re-derives
// progress from block contents.
type SyncProgress struct {
	LastSyncedBlock uint64    `ch:"last_synced_block" json:"last_synced_block"`
	UpdatedAt       time.Time `ch:"updated_at" json:"updated_at"`
}
