package pokedex

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jonwraymond/kantodex/upstream"
)

// ParseEvolutionChain flattens an /evolution-chain document into stages in
// pre-order, document order.
//
// Species above KantoMaxID are left out, but their descendants are still
// visited, so a Kanto species that evolves from a later-generation one
// still appears.
func ParseEvolutionChain(chainDoc upstream.Document, images Images) ([]EvolutionStage, error) {
	root := chainDoc.Get("chain")
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: missing chain", ErrMalformedRecord)
	}

	stages, err := parseNode(root, images)
	if err != nil {
		return nil, err
	}
	if stages == nil {
		stages = []EvolutionStage{}
	}
	return stages, nil
}

func parseNode(node gjson.Result, images Images) ([]EvolutionStage, error) {
	id, err := speciesID(node.Get("species.url").String())
	if err != nil {
		return nil, err
	}

	var stages []EvolutionStage
	if id <= KantoMaxID {
		stages = append(stages, newStage(node, id, images))
	}

	for _, child := range node.Get("evolves_to").Array() {
		sub, err := parseNode(child, images)
		if err != nil {
			return nil, err
		}
		stages = append(stages, sub...)
	}
	return stages, nil
}

func newStage(node gjson.Result, id int, images Images) EvolutionStage {
	stage := EvolutionStage{
		ID:    id,
		Name:  capitalize(node.Get("species.name").String()),
		Image: images.URL(id),
	}

	details := node.Get("evolution_details.0")
	if !details.Exists() {
		return stage
	}

	stage.Trigger = details.Get("trigger.name").String()
	if lvl := details.Get("min_level"); lvl.Type == gjson.Number {
		v := int(lvl.Int())
		stage.MinLevel = &v
	}
	if item := details.Get("item.name"); item.Type == gjson.String && item.String() != "" {
		v := itemTitle(item.String())
		stage.TriggerItem = &v
	}
	return stage
}

// speciesID reads the trailing path segment of a species URL.
func speciesID(ref string) (int, error) {
	trimmed := strings.TrimRight(ref, "/")
	seg := trimmed[strings.LastIndex(trimmed, "/")+1:]
	id, err := strconv.Atoi(seg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad species url %q", ErrMalformedRecord, ref)
	}
	return id, nil
}
