package csvsource

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed aliases.yaml
var defaultAliases []byte

// Aliases maps alternative country names onto the names the case feed uses.
type Aliases map[string]string

type aliasFile struct {
	Aliases map[string]string `yaml:"aliases"`
}

// LoadAliases returns the built-in alias table, overlaid with the entries from
// path when path is non-empty.
func LoadAliases(path string) (Aliases, error) {
	out, err := parseAliases(defaultAliases)
	if err != nil {
		return nil, fmt.Errorf("parse built-in aliases: %w", err)
	}
	if path == "" {
		return out, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read aliases %s: %w", path, err)
	}
	extra, err := parseAliases(data)
	if err != nil {
		return nil, fmt.Errorf("parse aliases %s: %w", path, err)
	}
	for from, to := range extra {
		out[from] = to
	}
	return out, nil
}

func parseAliases(data []byte) (Aliases, error) {
	var f aliasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	out := make(Aliases, len(f.Aliases))
	for from, to := range f.Aliases {
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)
		if from == "" || to == "" {
			continue
		}
		out[from] = to
	}
	return out, nil
}

// Resolve returns the canonical name for country.
func (a Aliases) Resolve(country string) string {
	country = strings.TrimSpace(country)
	if to, ok := a[country]; ok {
		return to
	}
	return country
}
