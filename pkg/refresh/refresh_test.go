package refresh

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parsec-labs/sidewatch/pkg/attribution"
	"github.com/parsec-labs/sidewatch/pkg/db/memory"
	"github.com/parsec-labs/sidewatch/pkg/rpc"
	"github.com/parsec-labs/sidewatch/pkg/timing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type regNode struct {
	rpc.Node
	regs []rpc.Registration
}

func (r *regNode) Registrations(_ context.Context) ([]rpc.Registration, error) {
	return r.regs, nil
}

type nopResolver struct{}

func (nopResolver) CommitteeAt(_ context.Context, _ string) (attribution.CommitteeOutcome, error) {
	return attribution.CommitteeOutcome{}, nil
}

var testPreset = timing.Preset{
	Name:           "unit",
	MainchainEpoch: 12 * time.Minute,
	SidechainEpoch: time.Minute,
	BlockTime:      time.Second,
}

func writeKeyFile(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o600))
}

func TestLoadKeystore(t *testing.T) {
	dir := t.TempDir()
	writeKeyFile(t, dir, "61757261"+"aabbcc")             // aura key
	writeKeyFile(t, dir, "6772616e"+"ddeeff")             // grandpa key, ignored
	writeKeyFile(t, dir, "61757261"+"not-hex")            // malformed, ignored
	require.NoError(t, os.Mkdir(filepath.Join(dir, "61757261112233"), 0o700)) // dir, ignored

	ks, err := LoadKeystore(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, ks.Size())
	assert.True(t, ks.HasAuraKey("0xAABBCC"))
	assert.False(t, ks.HasAuraKey("0xddeeff"))
}

func TestLoadKeystoreMissingDir(t *testing.T) {
	ks, err := LoadKeystore("/nonexistent/keystore")
	require.NoError(t, err)
	assert.Equal(t, 0, ks.Size())
	assert.False(t, ks.HasAuraKey("0xaabbcc"))
}

func TestRefreshOnce(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeKeyFile(t, dir, "61757261"+"aa01")

	node := &regNode{regs: []rpc.Registration{
		{SidechainPubKey: "0x01", AuraPubKey: "0xaa01", MainchainPubKey: "0xmc1", IsValid: true},
		{SidechainPubKey: "0x02", AuraPubKey: "0xaa02", MainchainPubKey: "0xmc2", IsValid: true},
		{SidechainPubKey: "0x03", AuraPubKey: "0xaa03", MainchainPubKey: "0xmc3", IsValid: false},
	}}
	store := memory.New()
	engine := attribution.NewEngine(zap.NewNop(), testPreset, nopResolver{}, store)
	ks, err := LoadKeystore(dir)
	require.NoError(t, err)

	r := New(zap.NewNop(), node, store, engine, ks)
	require.NoError(t, r.RefreshOnce(ctx))

	got, err := store.ListValidators(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2, "invalid registrations are dropped")
	assert.True(t, got[0].IsOurs)
	assert.False(t, got[1].IsOurs)
}

func TestRefreshKeepsIsOursWhenKeystoreEmpties(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeKeyFile(t, dir, "61757261"+"aa01")

	node := &regNode{regs: []rpc.Registration{
		{SidechainPubKey: "0x01", AuraPubKey: "0xaa01", IsValid: true},
	}}
	store := memory.New()
	engine := attribution.NewEngine(zap.NewNop(), testPreset, nopResolver{}, store)

	ks, err := LoadKeystore(dir)
	require.NoError(t, err)
	require.NoError(t, New(zap.NewNop(), node, store, engine, ks).RefreshOnce(ctx))

	// A later refresh without the key file must not clear the flag.
	empty, err := LoadKeystore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, New(zap.NewNop(), node, store, engine, empty).RefreshOnce(ctx))

	got, err := store.ListValidators(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsOurs)
}
