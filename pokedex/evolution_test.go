package pokedex

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jonwraymond/kantodex/upstream"
)

// node renders one chain node. details is the raw evolution_details array.
func node(id int, name, details string, children ...string) string {
	if details == "" {
		details = "[]"
	}
	return fmt.Sprintf(`{
		"species": {"name": %q, "url": "%s/pokemon-species/%d/"},
		"evolution_details": %s,
		"evolves_to": [%s]
	}`, name, upstream.DefaultBaseURL, id, details, strings.Join(children, ","))
}

func chainDoc(root string) upstream.Document {
	return upstream.Document(`{"id":1,"chain":` + root + `}`)
}

func ids(stages []EvolutionStage) []int {
	out := make([]int, len(stages))
	for i, s := range stages {
		out[i] = s.ID
	}
	return out
}

func TestParseEvolutionChain_PrunesAboveKanto(t *testing.T) {
	doc := chainDoc(node(1, "a", "",
		node(2, "b", "",
			node(151, "c", "",
				node(152, "d", "")))))

	stages, err := ParseEvolutionChain(doc, DefaultImages())
	if err != nil {
		t.Fatalf("ParseEvolutionChain() error = %v", err)
	}
	if diff := cmp.Diff([]int{1, 2, 151}, ids(stages)); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestParseEvolutionChain_DescendantsOfPrunedNodeKept(t *testing.T) {
	// pichu (172) -> pikachu (25) -> raichu (26)
	doc := chainDoc(node(172, "pichu", "",
		node(25, "pikachu", `[{"min_level":null,"trigger":{"name":"level-up"},"item":null}]`,
			node(26, "raichu", `[{"min_level":null,"trigger":{"name":"use-item"},"item":{"name":"thunder-stone"}}]`))))

	stages, err := ParseEvolutionChain(doc, DefaultImages())
	if err != nil {
		t.Fatalf("ParseEvolutionChain() error = %v", err)
	}
	if diff := cmp.Diff([]int{25, 26}, ids(stages)); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestParseEvolutionChain_Triggers(t *testing.T) {
	doc := chainDoc(node(1, "bulbasaur", "",
		node(2, "ivysaur", `[{"min_level":16,"trigger":{"name":"level-up"},"item":null},{"min_level":99,"trigger":{"name":"other"}}]`,
			node(3, "venusaur", `[{"min_level":32,"trigger":{"name":"level-up"}}]`))))

	stages, err := ParseEvolutionChain(doc, Images{Template: "img/{id}"})
	if err != nil {
		t.Fatalf("ParseEvolutionChain() error = %v", err)
	}
	want := []EvolutionStage{
		{ID: 1, Name: "Bulbasaur", Image: "img/1"},
		{ID: 2, Name: "Ivysaur", Image: "img/2", Trigger: "level-up", MinLevel: intPtr(16)},
		{ID: 3, Name: "Venusaur", Image: "img/3", Trigger: "level-up", MinLevel: intPtr(32)},
	}
	if diff := cmp.Diff(want, stages); diff != "" {
		t.Errorf("stages mismatch (-want +got):\n%s", diff)
	}
}

func TestParseEvolutionChain_BranchesInDocumentOrder(t *testing.T) {
	stone := func(item string) string {
		return fmt.Sprintf(`[{"min_level":null,"trigger":{"name":"use-item"},"item":{"name":%q}}]`, item)
	}
	doc := chainDoc(node(133, "eevee", "",
		node(134, "vaporeon", stone("water-stone")),
		node(135, "jolteon", stone("thunder-stone")),
		node(136, "flareon", stone("fire-stone")),
		node(196, "espeon", `[{"min_happiness":160,"trigger":{"name":"level-up"}}]`),
	))

	stages, err := ParseEvolutionChain(doc, DefaultImages())
	if err != nil {
		t.Fatalf("ParseEvolutionChain() error = %v", err)
	}
	if diff := cmp.Diff([]int{133, 134, 135, 136}, ids(stages)); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}

	wantItems := []*string{nil, strPtr("Water Stone"), strPtr("Thunder Stone"), strPtr("Fire Stone")}
	for i, s := range stages {
		if diff := cmp.Diff(wantItems[i], s.TriggerItem); diff != "" {
			t.Errorf("stage %d trigger item mismatch (-want +got):\n%s", s.ID, diff)
		}
		if s.MinLevel != nil {
			t.Errorf("stage %d MinLevel = %d, want nil", s.ID, *s.MinLevel)
		}
	}
}

func TestParseEvolutionChain_Malformed(t *testing.T) {
	tests := map[string]upstream.Document{
		"no chain":        upstream.Document(`{"id":1}`),
		"bad species url": chainDoc(`{"species":{"name":"x","url":"https://pokeapi.co/api/v2/pokemon-species/abc/"},"evolves_to":[]}`),
		"bad child url":   chainDoc(node(1, "a", "", `{"species":{"name":"x","url":""},"evolves_to":[]}`)),
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseEvolutionChain(doc, DefaultImages())
			if !errors.Is(err, ErrMalformedRecord) {
				t.Errorf("error = %v, want ErrMalformedRecord", err)
			}
		})
	}
}

func TestParseEvolutionChain_AllPruned(t *testing.T) {
	stages, err := ParseEvolutionChain(chainDoc(node(152, "chikorita", "")), DefaultImages())
	if err != nil {
		t.Fatalf("ParseEvolutionChain() error = %v", err)
	}
	if stages == nil || len(stages) != 0 {
		t.Errorf("stages = %#v, want empty non-nil", stages)
	}
}

func TestItemTitle(t *testing.T) {
	tests := map[string]string{
		"thunder-stone": "Thunder Stone",
		"moon-stone":    "Moon Stone",
		"kings-rock":    "Kings Rock",
		"up-grade":      "Up Grade",
	}
	for in, want := range tests {
		if got := itemTitle(in); got != want {
			t.Errorf("itemTitle(%q) = %q, want %q", in, got, want)
		}
	}
}
