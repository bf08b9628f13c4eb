package assignment

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TerritoryMap routes leads to owners by country. Keys are matched
// case-insensitively.
type TerritoryMap struct {
	Territories map[string]string `yaml:"territories"`
}

// LoadTerritoryMap reads the YAML territory file. A missing path is not an
// error: territory assignment simply falls back to round-robin.
func LoadTerritoryMap(path string) (TerritoryMap, error) {
	if path == "" {
		return TerritoryMap{}, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return TerritoryMap{}, nil
		}
		return TerritoryMap{}, fmt.Errorf("reading territory map: %w", err)
	}

	var m TerritoryMap
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return TerritoryMap{}, fmt.Errorf("parsing territory map: %w", err)
	}

	normalized := make(map[string]string, len(m.Territories))
	for country, email := range m.Territories {
		normalized[normalizeCountry(country)] = strings.TrimSpace(email)
	}
	m.Territories = normalized
	return m, nil
}

// OwnerEmail returns the configured owner email for a country, or empty when
// no route exists.
func (m TerritoryMap) OwnerEmail(country string) string {
	if len(m.Territories) == 0 {
		return ""
	}
	return m.Territories[normalizeCountry(country)]
}

func normalizeCountry(country string) string {
	return strings.ToLower(strings.TrimSpace(country))
}
