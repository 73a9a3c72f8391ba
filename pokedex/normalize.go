package pokedex

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jonwraymond/kantodex/upstream"
)

var flavorCleaner = strings.NewReplacer("\n", " ", "\f", " ")

// NormalizeListItem builds a ListItem from a /pokemon/{id} document.
// A document without a positive numeric id or a name is malformed.
func NormalizeListItem(doc upstream.Document, images Images) (ListItem, error) {
	r := doc.Result()

	id := r.Get("id")
	if id.Type != gjson.Number || id.Int() <= 0 {
		return ListItem{}, fmt.Errorf("%w: missing id", ErrMalformedRecord)
	}
	name := r.Get("name")
	if name.Type != gjson.String || name.String() == "" {
		return ListItem{}, fmt.Errorf("%w: pokemon %d: missing name", ErrMalformedRecord, id.Int())
	}

	return ListItem{
		ID:    int(id.Int()),
		Name:  capitalize(name.String()),
		Image: images.URL(int(id.Int())),
		Types: typeNames(r),
	}, nil
}

func typeNames(r gjson.Result) []string {
	names := []string{}
	r.Get("types").ForEach(func(_, t gjson.Result) bool {
		if n := t.Get("type.name").String(); n != "" {
			names = append(names, n)
		}
		return true
	})
	return names
}

// NormalizeStats projects the stats list onto Stats.
func NormalizeStats(doc upstream.Document) Stats {
	values := make(map[string]int, 6)
	doc.Get("stats").ForEach(func(_, s gjson.Result) bool {
		values[s.Get("stat.name").String()] = int(s.Get("base_stat").Int())
		return true
	})

	return Stats{
		HP:             values["hp"],
		Attack:         values["attack"],
		Defense:        values["defense"],
		SpecialAttack:  values["special-attack"],
		SpecialDefense: values["special-defense"],
		Speed:          values["speed"],
	}
}

// ExtractDescription returns the first flavor text in locale with line
// breaks and form feeds replaced by spaces, or "".
func ExtractDescription(species upstream.Document, locale string) string {
	var text string
	species.Get("flavor_text_entries").ForEach(func(_, e gjson.Result) bool {
		if e.Get("language.name").String() != locale {
			return true
		}
		text = flavorCleaner.Replace(e.Get("flavor_text").String())
		return false
	})
	return text
}

// NormalizeDetail builds a Detail from the pokemon and species documents.
func NormalizeDetail(pokemon, species upstream.Document, locale string, images Images) (Detail, error) {
	item, err := NormalizeListItem(pokemon, images)
	if err != nil {
		return Detail{}, err
	}

	return Detail{
		ListItem:    item,
		Stats:       NormalizeStats(pokemon),
		Height:      int(pokemon.Get("height").Int()),
		Weight:      int(pokemon.Get("weight").Int()),
		Description: ExtractDescription(species, locale),
	}, nil
}
