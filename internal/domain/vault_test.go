package domain

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVaultFilename(t *testing.T) {
	v := Vault{Project: "morpho blue", Chain: "ethereum", Symbol: "USDC"}
	assert.Equal(t, "morpho_blue_ethereum_USDC.csv", v.Filename())
}

func TestLoadVaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vaults.json")
	data := `[
		{"project": "morpho", "chain": "ethereum", "symbol": "USDC", "pool_id": "abc-123"},
		{"project": "aave-v3", "chain": "base", "symbol": "USDT", "pool_id": "def-456"}
	]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	vaults, err := LoadVaults(path)
	require.NoError(t, err)
	require.Len(t, vaults, 2)
	assert.Equal(t, "abc-123", vaults[0].PoolID)
	assert.Equal(t, "aave-v3", vaults[1].Project)
}

func TestLoadVaultsMissingFile(t *testing.T) {
	_, err := LoadVaults(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestLoadVaultsRejectsEntryWithoutPoolID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vaults.json")
	data := `[{"project": "morpho", "chain": "ethereum", "symbol": "USDC"}]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	_, err := LoadVaults(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pool_id")
}

func TestLoadVaultsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vaults.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := LoadVaults(path)
	require.Error(t, err)
}
