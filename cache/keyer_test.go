package cache

import (
	"strings"
	"testing"
)

func TestPlainKeyer(t *testing.T) {
	k := NewPlainKeyer()

	tests := []struct {
		name  string
		kind  Kind
		input any
		want  string
	}{
		{"list limit", KindList, 151, "pokemon_list_151"},
		{"detail id", KindDetail, 25, "pokemon_detail_25"},
		{"evolution id", KindEvolution, 1, "evolution_chain_1"},
		{"no input", KindList, nil, "pokemon_list"},
		{"int slice", Kind("compare"), []int{1, 4, 7}, "compare_1_4_7"},
		{"string", Kind("name"), "pikachu", "name_pikachu"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := k.Key(tt.kind, tt.input)
			if err != nil {
				t.Fatalf("Key() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPlainKeyer_Rejects(t *testing.T) {
	k := NewPlainKeyer()

	if _, err := k.Key("", 1); err != ErrInvalidKey {
		t.Errorf("empty kind error = %v, want %v", err, ErrInvalidKey)
	}
	if _, err := k.Key(KindList, map[string]any{"a": 1}); err == nil {
		t.Error("map input should be rejected")
	}
	if _, err := k.Key(KindList, "bad\nvalue"); err != ErrInvalidKey {
		t.Errorf("newline input error = %v, want %v", err, ErrInvalidKey)
	}
}

func TestHashKeyer_Deterministic(t *testing.T) {
	k := NewHashKeyer()

	a, err := k.Key(KindList, map[string]any{"limit": 151, "offset": 0})
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	b, err := k.Key(KindList, map[string]any{"offset": 0, "limit": 151})
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	if a != b {
		t.Errorf("keys differ for equal maps: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "pokemon_list:") {
		t.Errorf("key %q missing kind prefix", a)
	}
	if len(a) != len("pokemon_list:")+16 {
		t.Errorf("key %q has unexpected hash length", a)
	}

	c, _ := k.Key(KindList, map[string]any{"limit": 20})
	if a == c {
		t.Error("different inputs should produce different keys")
	}
}
