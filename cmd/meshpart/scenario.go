package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/meshpart/meshpart/pkg/domain"
)

// Scenario describes an initial mesh distribution plus the ownership moves
// to execute. Entities and relations use the shorthand key syntax
// "kind/id", e.g. "cell/3".
type Scenario struct {
	Ranks        int              `yaml:"ranks"`
	Entities     []map[string]any `yaml:"entities"`
	Relations    []RelationDef    `yaml:"relations"`
	GhostDomains []GhostDomainDef `yaml:"ghost_domains"`
	Moves        []MoveDef        `yaml:"moves"`
}

// EntityDef is the typed form of one loosely-written entity block. The YAML
// side stays a plain map (human shorthand, optional fields, free-form
// payload); mapstructure lifts it into this struct.
type EntityDef struct {
	Key     string         `mapstructure:"key"`
	Owner   int            `mapstructure:"owner"`
	Holders []int          `mapstructure:"holders"`
	Parts   []string       `mapstructure:"parts"`
	Payload map[string]any `mapstructure:"payload"`
}

type RelationDef struct {
	From    string `yaml:"from"`
	To      string `yaml:"to"`
	Ordinal uint32 `yaml:"ordinal"`
}

type GhostDomainDef struct {
	Name    string      `yaml:"name"`
	Level   int         `yaml:"level"`
	Members []MemberDef `yaml:"members"`
}

type MemberDef struct {
	Key       string `yaml:"key"`
	Receivers []int  `yaml:"receivers"`
}

type MoveDef struct {
	Key      string `yaml:"key"`
	NewOwner int    `yaml:"new_owner"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, []EntityDef, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return nil, nil, fmt.Errorf("parse scenario: %w", err)
	}
	if sc.Ranks < 1 {
		return nil, nil, fmt.Errorf("scenario needs ranks >= 1, got %d", sc.Ranks)
	}

	entities := make([]EntityDef, 0, len(sc.Entities))
	for i, block := range sc.Entities {
		var def EntityDef
		if err := mapstructure.Decode(block, &def); err != nil {
			return nil, nil, fmt.Errorf("entity %d: %w", i, err)
		}
		if _, err := ParseKeyRef(def.Key); err != nil {
			return nil, nil, fmt.Errorf("entity %d: %w", i, err)
		}
		entities = append(entities, def)
	}
	return &sc, entities, nil
}

// ParseKeyRef parses the "kind/id" shorthand.
func ParseKeyRef(ref string) (domain.EntityKey, error) {
	name, idStr, found := strings.Cut(ref, "/")
	if !found {
		return domain.EntityKey{}, fmt.Errorf("entity ref %q: want kind/id", ref)
	}
	kind, err := domain.ParseKind(name)
	if err != nil {
		return domain.EntityKey{}, fmt.Errorf("entity ref %q: %w", ref, err)
	}
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return domain.EntityKey{}, fmt.Errorf("entity ref %q: bad id: %w", ref, err)
	}
	return domain.EntityKey{Kind: kind, ID: id}, nil
}
