package service

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/timmy/pokedex/internal/domain"
	"github.com/timmy/pokedex/internal/source"
)

// NormalizeCatalogEntry converts a catalog record into an index document keyed by its page URL.
func NormalizeCatalogEntry(entry source.CatalogEntry) domain.NormalizedDocument {
	number, _ := strconv.Atoi(strings.TrimLeft(strings.TrimSpace(entry.Number), "#"))

	stats := "{}"
	if len(entry.Stats) > 0 {
		if b, err := json.Marshal(entry.Stats); err == nil {
			stats = string(b)
		}
	}

	types := entry.Types
	if types == nil {
		types = []string{}
	}
	abilities := entry.Abilities
	if abilities == nil {
		abilities = []string{}
	}

	return domain.NormalizedDocument{
		DocumentID:    entry.URL,
		Title:         entry.Name,
		ClickableURI:  entry.URL,
		Body:          catalogBody(entry),
		FileExtension: domain.DefaultFileExtension,
		ImageURI:      entry.ImageURL,
		Number:        number,
		Types:         types,
		Species:       entry.Species,
		Generation:    entry.Generation,
		Category:      domain.CatalogCategory,
		Extra: map[string]interface{}{
			"pokemonabilities": abilities,
			"pokemonstats":     stats,
			"pokemonheight":    entry.Height,
			"pokemonweight":    entry.Weight,
		},
	}
}

// catalogBody renders the searchable prose for a catalog entry.
func catalogBody(e source.CatalogEntry) string {
	var lines []string

	lines = append(lines, fmt.Sprintf("%s is a %s (%s-type) from %s.", e.Name, e.Species, strings.Join(e.Types, "/"), e.Generation))
	if e.Description != "" {
		lines = append(lines, e.Description)
	}
	lines = append(lines, fmt.Sprintf("It is %s tall and weighs %s.", e.Height, e.Weight))

	if len(e.Abilities) > 0 {
		lines = append(lines, fmt.Sprintf("Abilities: %s.", strings.Join(e.Abilities, ", ")))
	}

	if len(e.Stats) > 0 {
		total := 0
		parts := make([]string, 0, len(e.Stats))
		for _, k := range sortedKeys(e.Stats) {
			total += e.Stats[k]
			parts = append(parts, fmt.Sprintf("%s %d", k, e.Stats[k]))
		}
		lines = append(lines, fmt.Sprintf("Base stats (total %d): %s.", total, strings.Join(parts, ", ")))
	}

	if len(e.EvolutionChain) > 0 {
		steps := make([]string, 0, len(e.EvolutionChain))
		for _, s := range e.EvolutionChain {
			if s.Condition != "" {
				steps = append(steps, s.Name+" "+s.Condition)
			} else {
				steps = append(steps, s.Name)
			}
		}
		lines = append(lines, fmt.Sprintf("Evolution chain: %s.", strings.Join(steps, " → ")))
	}

	if len(e.TypeDefenses) > 0 {
		var weak, resist, immune []string
		for _, k := range sortedKeys(e.TypeDefenses) {
			v := e.TypeDefenses[k]
			mult := strconv.FormatFloat(v, 'f', -1, 64)
			switch {
			case v > 1:
				weak = append(weak, fmt.Sprintf("%s (×%s)", k, mult))
			case v > 0 && v < 1:
				resist = append(resist, fmt.Sprintf("%s (×%s)", k, mult))
			case v == 0:
				immune = append(immune, k)
			}
		}
		if len(weak) > 0 {
			lines = append(lines, fmt.Sprintf("Weak to: %s.", strings.Join(weak, ", ")))
		}
		if len(resist) > 0 {
			lines = append(lines, fmt.Sprintf("Resists: %s.", strings.Join(resist, ", ")))
		}
		if len(immune) > 0 {
			lines = append(lines, fmt.Sprintf("Immune to: %s.", strings.Join(immune, ", ")))
		}
	}

	if len(e.EggGroups) > 0 {
		lines = append(lines, fmt.Sprintf("Egg groups: %s.", strings.Join(e.EggGroups, ", ")))
	}
	if e.GrowthRate != "" {
		lines = append(lines, fmt.Sprintf("Growth rate: %s.", e.GrowthRate))
	}
	if e.CatchRate != 0 {
		lines = append(lines, fmt.Sprintf("Catch rate: %d.", e.CatchRate))
	}
	if e.BaseExperience != 0 {
		lines = append(lines, fmt.Sprintf("Base experience: %d.", e.BaseExperience))
	}
	if e.EVYield != "" {
		lines = append(lines, fmt.Sprintf("EV yield: %s.", e.EVYield))
	}

	return strings.Join(lines, " ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
