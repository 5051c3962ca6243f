// Package domain defines the core data types shared by the vaultlens
// pipelines: vault descriptors and sentinel errors.
package domain

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Vault describes a tracked DeFi position. The descriptor is read-only for
// the process lifetime; it only drives fetch calls and output file naming.
type Vault struct {
	Project string `json:"project"`
	Chain   string `json:"chain"`
	Symbol  string `json:"symbol"`
	PoolID  string `json:"pool_id"`
}

// Filename returns the deterministic CSV filename for this vault,
// "{project}_{chain}_{symbol}.csv" with spaces replaced by underscores.
// The same name is produced by both source pipelines, which is what lets
// the validator pair files across directories.
func (v Vault) Filename() string {
	name := fmt.Sprintf("%s_%s_%s.csv", v.Project, v.Chain, v.Symbol)
	return strings.ReplaceAll(name, " ", "_")
}

// LoadVaults reads the static vault list from a JSON file. A missing or
// malformed file is a startup error; the pipelines never run without it.
func LoadVaults(path string) ([]Vault, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("domain: read vault list %s: %w", path, err)
	}

	var vaults []Vault
	if err := json.Unmarshal(data, &vaults); err != nil {
		return nil, fmt.Errorf("domain: parse vault list %s: %w", path, err)
	}

	for i, v := range vaults {
		if v.PoolID == "" {
			return nil, fmt.Errorf("domain: vault list %s: entry %d has no pool_id", path, i)
		}
	}
	return vaults, nil
}
