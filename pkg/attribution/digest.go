package attribution

import (
	"encoding/binary"
	"fmt"

	"github.com/parsec-labs/sidewatch/pkg/rpc"
)

// Digest item layout: one type byte, then for pre-runtime items a 4-byte
// consensus engine id followed by a compact-length-prefixed payload. For the
// aura engine the payload is the slot number as a little-endian u64.
const (
	digestPreRuntime = 0x06
	auraEngineID     = "aura"
	slotPayloadLen   = 8
)

// ErrNoSlotDigest is returned when no decodable aura pre-runtime digest is
// present in the header. Callers treat it as "attribution unavailable", not
// as a sync failure: headers from other consensus engines or future digest
// versions must not stall the block history.
var ErrNoSlotDigest = fmt.Errorf("no aura pre-runtime digest")

// SlotFromDigest extracts the aura slot from a header's digest logs.
func SlotFromDigest(logs []string) (uint64, error) {
	for _, log := range logs {
		raw, err := rpc.DecodeHex(log)
		if err != nil || len(raw) == 0 {
			continue
		}
		if raw[0] != digestPreRuntime {
			continue
		}
		if len(raw) < 1+len(auraEngineID) || string(raw[1:5]) != auraEngineID {
			continue
		}
		payloadLen, n, err := rpc.DecodeCompact(raw[5:])
		if err != nil {
			continue
		}
		payload := raw[5+n:]
		if payloadLen < slotPayloadLen || len(payload) < slotPayloadLen {
			continue
		}
		return binary.LittleEndian.Uint64(payload[:slotPayloadLen]), nil
	}
	return 0, ErrNoSlotDigest
}
