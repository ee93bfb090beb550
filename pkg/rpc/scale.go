package rpc

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Minimal SCALE decoding for the two fixed-format payloads this client
// consumes: a compact-length-prefixed list of 32-byte session keys, and
// compact-prefixed byte strings inside digest items.

// DecodeHex strips an optional 0x prefix and decodes the hex payload.
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	return hex.DecodeString(s)
}

// ParseHexUint parses a 0x-prefixed hexadecimal number (block heights in
// chain_getHeader responses).
func ParseHexUint(s string) (uint64, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return 0, fmt.Errorf("empty hex number")
	}
	return strconv.ParseUint(s, 16, 64)
}

// DecodeCompact reads a SCALE compact-encoded unsigned integer and returns
// the value and the number of bytes consumed.
func DecodeCompact(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, fmt.Errorf("compact: empty input")
	}
	switch b[0] & 0b11 {
	case 0b00: // single byte
		return uint64(b[0] >> 2), 1, nil
	case 0b01: // two bytes
		if len(b) < 2 {
			return 0, 0, fmt.Errorf("compact: truncated two-byte value")
		}
		return (uint64(b[0]) | uint64(b[1])<<8) >> 2, 2, nil
	case 0b10: // four bytes
		if len(b) < 4 {
			return 0, 0, fmt.Errorf("compact: truncated four-byte value")
		}
		v := uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24
		return v >> 2, 4, nil
	default: // big-integer mode
		n := int(b[0]>>2) + 4
		if n > 8 {
			return 0, 0, fmt.Errorf("compact: value wider than u64")
		}
		if len(b) < 1+n {
			return 0, 0, fmt.Errorf("compact: truncated big-integer value")
		}
		var v uint64
		for i := 0; i < n; i++ {
			v |= uint64(b[1+i]) << (8 * i)
		}
		return v, 1 + n, nil
	}
}

// DecodeAuthorityList decodes a SCALE Vec of fixed-width public keys into
// 0x-prefixed hex strings, preserving order.
func DecodeAuthorityList(b []byte, keyLen int) ([]string, error) {
	count, off, err := DecodeCompact(b)
	if err != nil {
		return nil, fmt.Errorf("authority list length: %w", err)
	}
	// Bound the claimed count by the bytes actually present before any
	// allocation; a byzantine count would otherwise overflow the size
	// arithmetic and panic.
	if avail := uint64((len(b) - off) / keyLen); count > avail {
		return nil, fmt.Errorf("authority list: %d keys claimed, %d bytes available", count, len(b)-off)
	}
	keys := make([]string, 0, count)
	for i := 0; i < int(count); i++ {
		start := off + i*keyLen
		keys = append(keys, "0x"+hex.EncodeToString(b[start:start+keyLen]))
	}
	return keys, nil
}
