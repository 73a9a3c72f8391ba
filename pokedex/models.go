package pokedex

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// KantoMaxID is the highest species id in the Kanto region.
const KantoMaxID = 151

// DefaultImageTemplate is the official artwork URL; {id} is replaced with
// the species id.
const DefaultImageTemplate = "https://raw.githubusercontent.com/PokeAPI/sprites/master/sprites/pokemon/other/official-artwork/{id}.png"

// DefaultLocale selects flavor text.
const DefaultLocale = "en"

// ListItem is the grid view of a creature.
type ListItem struct {
	ID    int      `json:"id"`
	Name  string   `json:"name"`
	Image string   `json:"image"`
	Types []string `json:"types"`
}

// Stats are base stats. A stat missing upstream is 0.
type Stats struct {
	HP             int `json:"hp"`
	Attack         int `json:"attack"`
	Defense        int `json:"defense"`
	SpecialAttack  int `json:"special_attack"`
	SpecialDefense int `json:"special_defense"`
	Speed          int `json:"speed"`
}

// Detail is the full view of a creature.
type Detail struct {
	ListItem
	Stats       Stats  `json:"stats"`
	Height      int    `json:"height"` // decimeters
	Weight      int    `json:"weight"` // hectograms
	Description string `json:"description"`
}

// EvolutionStage is one node of an evolution chain. Trigger fields describe
// how this stage is reached and are empty for the base form.
type EvolutionStage struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Image       string  `json:"image"`
	Trigger     string  `json:"trigger"`
	MinLevel    *int    `json:"min_level"`
	TriggerItem *string `json:"trigger_item"`
}

// EvolutionChain lists stages root-first in pre-order.
type EvolutionChain struct {
	Chain []EvolutionStage `json:"chain"`
}

// ListResult is the envelope returned by list and compare endpoints.
type ListResult struct {
	Count   int        `json:"count"`
	Pokemon []ListItem `json:"pokemon"`
}

// CompareResult is the envelope returned by the compare endpoint.
type CompareResult struct {
	Count   int      `json:"count"`
	Pokemon []Detail `json:"pokemon"`
}

// Images derives artwork URLs from a template.
type Images struct {
	Template string
}

// DefaultImages uses DefaultImageTemplate.
func DefaultImages() Images {
	return Images{Template: DefaultImageTemplate}
}

// URL returns the artwork URL for id.
func (i Images) URL(id int) string {
	tmpl := i.Template
	if tmpl == "" {
		tmpl = DefaultImageTemplate
	}
	return strings.ReplaceAll(tmpl, "{id}", strconv.Itoa(id))
}

// capitalize upper-cases the first rune and lower-cases the rest:
// "mr-mime" -> "Mr-mime".
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return cases.Upper(language.Und).String(string(r)) + cases.Lower(language.Und).String(s[size:])
}

// itemTitle renders an item slug for display: "thunder-stone" -> "Thunder Stone".
func itemTitle(slug string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(slug, "-", " "))
}
