package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultlens/vaultlens/internal/platform/defillama"
)

func TestFilterPools(t *testing.T) {
	pools := []defillama.Pool{
		{Project: "morpho-blue", Chain: "Ethereum", Symbol: "USDC", PoolID: "p1", TVLUsd: 5_000_000, Stablecoin: true},
		{Project: "morpho-blue", Chain: "Ethereum", Symbol: "WETH", PoolID: "p2", TVLUsd: 9_000_000, Stablecoin: false},
		{Project: "uniswap-v3", Chain: "Ethereum", Symbol: "USDC-WETH", PoolID: "p3", TVLUsd: 8_000_000, Stablecoin: true},
		{Project: "aave-v3", Chain: "Base", Symbol: "USDT", PoolID: "p4", TVLUsd: 500_000, Stablecoin: true},
		{Project: "aave-v3", Chain: "Solana", Symbol: "USDT", PoolID: "p5", TVLUsd: 2_000_000, Stablecoin: true},
	}

	cfg := DiscoverConfig{
		Protocols:    []string{"morpho", "aave-v3"},
		Assets:       []string{"usdc", "usdt"},
		Chains:       []string{"ethereum", "base"},
		TVLThreshold: 1_000_000,
	}

	matched := FilterPools(pools, cfg)
	require.Len(t, matched, 1)
	assert.Equal(t, "p1", matched[0].PoolID)
}

func TestFilterPoolsEmptyCriteriaMatchAll(t *testing.T) {
	pools := []defillama.Pool{
		{Project: "anything", Chain: "Anywhere", Symbol: "XYZ", TVLUsd: 2_000_000, Stablecoin: true},
	}
	matched := FilterPools(pools, DiscoverConfig{TVLThreshold: 1_000_000})
	assert.Len(t, matched, 1)
}

func TestFilterPoolsThresholdIsExclusive(t *testing.T) {
	pools := []defillama.Pool{
		{Project: "a", Chain: "c", Symbol: "s", TVLUsd: 1_000_000, Stablecoin: true},
	}
	matched := FilterPools(pools, DiscoverConfig{TVLThreshold: 1_000_000})
	assert.Empty(t, matched)
}

func TestContainsAny(t *testing.T) {
	assert.True(t, containsAny("Morpho-Blue", []string{"morpho"}))
	assert.False(t, containsAny("uniswap", []string{"morpho", "aave"}))
	assert.True(t, containsAny("anything", nil))
}

func TestSummaryFrame(t *testing.T) {
	byPool := map[string]map[string]float64{
		"pool_a": {"2024-01-01": 1.5, "2024-01-02": 2.5},
		"pool_b": {"2024-01-02": 3.5},
	}
	dates := map[string]bool{"2024-01-01": true, "2024-01-02": true}

	f := summaryFrame(byPool, []string{"pool_a", "pool_b"}, dates)
	require.Equal(t, []string{"date", "pool_a", "pool_b"}, f.Columns)
	require.Len(t, f.Rows, 2)
	assert.Equal(t, []string{"2024-01-01", "1.5", "0"}, f.Rows[0])
	assert.Equal(t, []string{"2024-01-02", "2.5", "3.5"}, f.Rows[1])
}

func TestManifestFrame(t *testing.T) {
	f := manifestFrame([]defillama.Pool{
		{
			Project: "morpho", Chain: "Ethereum", Symbol: "USDC", PoolID: "p1",
			Stablecoin: true, UnderlyingTokens: []string{"0xabc"},
		},
	})
	require.Equal(t, []string{"name", "pool_id", "market", "coin", "chain", "is_stablecoin", "address"}, f.Columns)
	require.Len(t, f.Rows, 1)
	assert.Equal(t, []string{"morpho_USDC_Ethereum", "p1", "morpho", "USDC", "Ethereum", "true", "0xabc"}, f.Rows[0])
}
