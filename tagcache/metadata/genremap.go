package metadata

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GenreMap canonicalises genre strings: an exact, case-sensitive match
// against its keys is replaced by the mapped value; unmapped genres pass
// through untouched. A nil map is a no-op.
type GenreMap map[string]string

// Canonical returns the canonical form of g.
func (m GenreMap) Canonical(g string) string {
	if m == nil {
		return g
	}
	if mapped, ok := m[g]; ok {
		return mapped
	}
	return g
}

// LoadGenreMap reads a YAML mapping of genre to canonical genre, e.g.
//
//	Alt-Rock: Rock
//	Alternative Rock: Rock
func LoadGenreMap(path string) (GenreMap, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genre map %s: %w", path, err)
	}
	var m GenreMap
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse genre map %s: %w", path, err)
	}
	return m, nil
}
