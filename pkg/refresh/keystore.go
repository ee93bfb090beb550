package refresh

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// Keystore filenames are hex(key type) followed by hex(public key); the aura
// key type prefix is hex("aura").
const auraFilePrefix = "61757261"

// Keystore matches validator aura keys against the node operator's local key
// files. A nil Keystore matches nothing.
type Keystore struct {
	auraKeys map[string]struct{}
}

// LoadKeystore scans dir for aura key files. A missing directory is not an
// error: monitors often run on hosts that hold no keys at all.
func LoadKeystore(dir string) (*Keystore, error) {
	ks := &Keystore{auraKeys: make(map[string]struct{})}
	if dir == "" {
		return ks, nil
	}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return ks, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read keystore dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.ToLower(entry.Name())
		if !strings.HasPrefix(name, auraFilePrefix) {
			continue
		}
		pubKey := strings.TrimPrefix(name, auraFilePrefix)
		if _, err := hex.DecodeString(pubKey); err != nil || pubKey == "" {
			continue
		}
		ks.auraKeys[pubKey] = struct{}{}
	}
	return ks, nil
}

// HasAuraKey reports whether the keystore holds the given aura public key.
// Keys compare without a 0x prefix, case-insensitively.
func (k *Keystore) HasAuraKey(pubKey string) bool {
	if k == nil {
		return false
	}
	normalized := strings.ToLower(strings.TrimPrefix(pubKey, "0x"))
	_, ok := k.auraKeys[normalized]
	return ok
}

// Size returns how many aura keys were loaded.
func (k *Keystore) Size() int {
	if k == nil {
		return 0
	}
	return len(k.auraKeys)
}
