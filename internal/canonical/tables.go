package canonical

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var tableFS embed.FS

type tableFile struct {
	Sport string              `yaml:"sport"`
	Teams map[string][]string `yaml:"teams"`
}

var (
	loadOnce sync.Once
	tables   map[Sport]map[string]string
)

func table(s Sport) map[string]string {
	loadOnce.Do(func() {
		loaded, err := loadTables()
		if err != nil {
			panic(fmt.Sprintf("canonical: %v", err))
		}
		tables = loaded
	})
	return tables[s]
}

func loadTables() (map[Sport]map[string]string, error) {
	out := make(map[Sport]map[string]string, len(Sports()))
	for _, s := range Sports() {
		raw, err := tableFS.ReadFile("data/" + string(s) + ".yaml")
		if err != nil {
			return nil, fmt.Errorf("read %s table: %w", s, err)
		}
		t, err := parseTable(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s table: %w", s, err)
		}
		out[s] = t
	}
	return out, nil
}

// parseTable builds the alias lookup. Every canonical name (and its
// space-free spelling) also maps to itself so canonical output is stable
// when fed back in. Explicit aliases take precedence.
func parseTable(raw []byte) (map[string]string, error) {
	var f tableFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	if len(f.Teams) == 0 {
		return nil, fmt.Errorf("no teams")
	}
	t := make(map[string]string)
	for name, aliases := range f.Teams {
		for _, alias := range aliases {
			if prev, ok := t[alias]; ok && prev != name {
				return nil, fmt.Errorf("alias %q maps to both %q and %q", alias, prev, name)
			}
			t[alias] = name
		}
	}
	for name := range f.Teams {
		for _, self := range []string{name, strings.ReplaceAll(name, " ", "")} {
			if _, ok := t[self]; !ok {
				t[self] = name
			}
		}
	}
	return t, nil
}
