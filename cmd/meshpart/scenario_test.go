package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/meshpart/meshpart/pkg/domain"
)

func TestParseKeyRef(t *testing.T) {
	key, err := ParseKeyRef("cell/3")
	if err != nil {
		t.Fatal(err)
	}
	if key != (domain.EntityKey{Kind: domain.KindCell, ID: 3}) {
		t.Errorf("ParseKeyRef = %v", key)
	}

	for _, bad := range []string{"cell", "hedron/1", "cell/x", ""} {
		if _, err := ParseKeyRef(bad); err == nil {
			t.Errorf("ParseKeyRef(%q): expected error", bad)
		}
	}
}

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	content := `
ranks: 2
entities:
  - key: cell/1
    owner: 0
    payload:
      material: steel
  - key: vertex/1
    owner: 0
    holders: [1]
relations:
  - from: cell/1
    to: vertex/1
ghost_domains:
  - name: halo
    level: 1
    members:
      - key: vertex/1
        receivers: [1]
moves:
  - key: cell/1
    new_owner: 1
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	sc, entities, err := LoadScenario(path)
	if err != nil {
		t.Fatal(err)
	}
	if sc.Ranks != 2 {
		t.Errorf("ranks = %d", sc.Ranks)
	}
	if len(entities) != 2 {
		t.Fatalf("entities = %d", len(entities))
	}
	if entities[0].Payload["material"] != "steel" {
		t.Errorf("payload lost in decode: %+v", entities[0])
	}
	if len(entities[1].Holders) != 1 || entities[1].Holders[0] != 1 {
		t.Errorf("holders = %v", entities[1].Holders)
	}
	if len(sc.Moves) != 1 || sc.Moves[0].NewOwner != 1 {
		t.Errorf("moves = %+v", sc.Moves)
	}
}

func TestLoadScenarioRejectsBadInput(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]string{
		"no_ranks.yaml": "entities: []\n",
		"bad_key.yaml":  "ranks: 1\nentities:\n  - key: nope\n",
		"not_yaml.yaml": "{{{\n",
	}
	for name, content := range cases {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, _, err := LoadScenario(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}

	if _, _, err := LoadScenario(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("missing file: expected error")
	}
}
