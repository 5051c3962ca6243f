package defillama

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Pool is one entry from the yields pool listing.
type Pool struct {
	Project          string   `json:"project"`
	Chain            string   `json:"chain"`
	Symbol           string   `json:"symbol"`
	PoolID           string   `json:"pool"`
	TVLUsd           float64  `json:"tvlUsd"`
	APY              float64  `json:"apy"`
	Stablecoin       bool     `json:"stablecoin"`
	UnderlyingTokens []string `json:"underlyingTokens"`
}

// Name returns the pool's output identifier, "{project}_{symbol}_{chain}"
// with spaces replaced by underscores.
func (p Pool) Name() string {
	name := fmt.Sprintf("%s_%s_%s", p.Project, p.Symbol, p.Chain)
	return strings.ReplaceAll(name, " ", "_")
}

// Address returns the first underlying token address, or "".
func (p Pool) Address() string {
	if len(p.UnderlyingTokens) > 0 {
		return p.UnderlyingTokens[0]
	}
	return ""
}

// ChartPoint is one sample of the historical chart for a pool. APY fields
// are pointers because the API reports null for pools without a breakdown.
type ChartPoint struct {
	Timestamp FlexTime `json:"timestamp"`
	TVLUsd    float64  `json:"tvlUsd"`
	APY       *float64 `json:"apy"`
	APYBase   *float64 `json:"apyBase"`
	APYReward *float64 `json:"apyReward"`
}

// APYValue returns the APY, treating null as 0.
func (p ChartPoint) APYValue() float64 { return deref(p.APY) }

// APYBaseValue returns the base APY, treating null as 0.
func (p ChartPoint) APYBaseValue() float64 { return deref(p.APYBase) }

// APYRewardValue returns the reward APY, treating null as 0.
func (p ChartPoint) APYRewardValue() float64 { return deref(p.APYReward) }

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// FlexTime decodes the chart timestamp field, which the API has served both
// as unix seconds and as ISO-8601 strings. Unparseable values leave the time
// zero; the caller drops those points.
type FlexTime struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *FlexTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		return nil
	}

	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		t.Time = time.Unix(secs, 0).UTC()
		return nil
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return nil
}

// chartResponse is the envelope of the chart endpoint.
type chartResponse struct {
	Status string       `json:"status"`
	Data   []ChartPoint `json:"data"`
}

// poolsResponse is the envelope of the pools endpoint.
type poolsResponse struct {
	Status string `json:"status"`
	Data   []Pool `json:"data"`
}

var _ json.Unmarshaler = (*FlexTime)(nil)
