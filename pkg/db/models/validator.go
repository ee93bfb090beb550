package models

import (
	"time"
)

const ValidatorsTableName = "validators"

// ValidatorColumns defines the schema for the validators table.
var ValidatorColumns = []ColumnDef{
	{Name: "sidechain_key", Type: "String", Codec: "ZSTD(1)"},
	{Name: "aura_key", Type: "String", Codec: "ZSTD(1)"},
	{Name: "mainchain_key", Type: "String", Codec: "ZSTD(1)"},
	{Name: "name", Type: "String", Codec: "ZSTD(1)"},
	{Name: "is_ours", Type: "UInt8 DEFAULT 0"},
	{Name: "updated_at", Type: "DateTime64(6)", Codec: "DoubleDelta, LZ4"},
}

// Validator is one registered validator identity. IsOurs marks keys that were
// verified against the operator's local keystore; the flag is monotonic under
// refresh — a registry refresh may raise it but never clear it. Clearing
// requires an explicit operator action, not a data refresh.
type Validator struct {
	SidechainKey string    `ch:"sidechain_key" json:"sidechain_key"`
	AuraKey      string    `ch:"aura_key" json:"aura_key"`
	MainchainKey string    `ch:"mainchain_key" json:"mainchain_key"`
	Name         string    `ch:"name" json:"name"`
	IsOurs       bool      `ch:"is_ours" json:"is_ours"`
	UpdatedAt    time.Time `ch:"updated_at" json:"updated_at"`
}
