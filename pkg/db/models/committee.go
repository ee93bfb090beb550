package models

import (
	"time"
)

const CommitteesTableName = "committees"

// CommitteeColumns defines the schema for the committees table.
var CommitteeColumns = []ColumnDef{
	{Name: "sidechain_epoch", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "authorities", Type: "Array(String)", Codec: "ZSTD(1)"},
	{Name: "captured_at", Type: "DateTime64(6)", Codec: "DoubleDelta, LZ4"},
}

// CommitteeSnapshot is the ordered authority set for exactly one sidechain
// epoch. Keyed by sidechain epoch, never by the enclosing mainchain epoch:
// the committee rotates every sidechain epoch, so the coarser key would hand
// most blocks of a mainchain epoch the wrong committee. Rows are immutable
// once captured.
type CommitteeSnapshot struct {
	SidechainEpoch uint64    `ch:"sidechain_epoch" json:"sidechain_epoch"`
	Authorities    []string  `ch:"authorities" json:"authorities"`
	CapturedAt     time.Time `ch:"captured_at" json:"captured_at"`
}
