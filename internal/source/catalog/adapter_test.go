package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestFetchBatchPagesJSONArray(t *testing.T) {
	path := writeFile(t, "pokemon.json", `[
		{"name":"Bulbasaur","number":"0001","types":["Grass","Poison"],"url":"https://pokemondb.net/pokedex/bulbasaur"},
		{"name":"Ivysaur","number":"0002","types":["Grass","Poison"],"url":"https://pokemondb.net/pokedex/ivysaur"},
		{"name":"","url":"https://pokemondb.net/pokedex/missing-name"},
		{"name":"Venusaur","number":"0003","types":["Grass","Poison"],"url":"https://pokemondb.net/pokedex/venusaur"}
	]`)

	a := NewAdapter(path)
	ctx := context.Background()

	first, next, err := a.FetchBatch(ctx, "", 2)
	if err != nil {
		t.Fatalf("FetchBatch: %v", err)
	}
	if len(first) != 2 || first[0].Name != "Bulbasaur" || next != "2" {
		t.Fatalf("unexpected first batch: %+v next=%q", first, next)
	}

	second, next, err := a.FetchBatch(ctx, next, 2)
	if err != nil {
		t.Fatalf("FetchBatch: %v", err)
	}
	if len(second) != 1 || second[0].Name != "Venusaur" || next != "" {
		t.Fatalf("unexpected second batch: %+v next=%q", second, next)
	}
}

func TestFetchBatchJSONLines(t *testing.T) {
	path := writeFile(t, "pokemon.jsonl", "{\"name\":\"Pikachu\",\"number\":\"0025\",\"url\":\"https://pokemondb.net/pokedex/pikachu\"}\nnot json\n\n{\"name\":\"Raichu\",\"number\":\"0026\",\"url\":\"https://pokemondb.net/pokedex/raichu\"}\n")

	items, next, err := NewAdapter(path).FetchBatch(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("FetchBatch: %v", err)
	}
	if len(items) != 2 || next != "" {
		t.Fatalf("got %d items next=%q", len(items), next)
	}
}

func TestFetchBatchErrors(t *testing.T) {
	if _, _, err := NewAdapter(filepath.Join(t.TempDir(), "missing.json")).FetchBatch(context.Background(), "", 1); err == nil {
		t.Fatal("expected error for missing file")
	}

	path := writeFile(t, "pokemon.json", `[{"name":"Mew","url":"https://pokemondb.net/pokedex/mew"}]`)
	if _, _, err := NewAdapter(path).FetchBatch(context.Background(), "abc", 1); err == nil {
		t.Fatal("expected error for invalid cursor")
	}
}
