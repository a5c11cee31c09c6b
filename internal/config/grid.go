package config

import (
	"fmt"
	"sort"
)

// ExpandSweep flattens sweep entries. An entry of the form
//
//	grid:
//	  temperature_K: [280, 300]
//	  pressure_atm: [1, 2]
//
// becomes one entry per combination, keys varying in sorted order with the
// last key fastest. Other keys of a grid entry are copied into every
// combination. Entries without grid pass through.
func ExpandSweep(entries []Map) ([]Map, error) {
	var out []Map
	for i, e := range entries {
		grid := e.Sub("grid")
		if !e.Has("grid") {
			out = append(out, e)
			continue
		}
		if len(grid) == 0 {
			return nil, Invalidf("sweep", "entry %d: grid must be a non-empty mapping", i+1)
		}
		base := Copy(e)
		delete(base, "grid")

		names := keys(grid)
		values := make([][]any, len(names))
		for j, name := range names {
			vals, ok := grid[name].([]any)
			if !ok || len(vals) == 0 {
				return nil, Invalidf("sweep", "entry %d: grid.%s must be a non-empty list", i+1, name)
			}
			values[j] = vals
		}
		out = append(out, combinations(base, names, values, 0)...)
	}
	return out, nil
}

func combinations(current Map, names []string, values [][]any, depth int) []Map {
	if depth == len(names) {
		return []Map{current}
	}
	var out []Map
	for _, v := range values[depth] {
		next := Copy(current)
		next[names[depth]] = copyValue(v)
		out = append(out, combinations(next, names, values, depth+1)...)
	}
	return out
}

// SweepLabel describes what a sweep entry changes, for logs.
func SweepLabel(entry Map) string {
	names := make([]string, 0, len(entry))
	for k := range entry {
		names = append(names, k)
	}
	sort.Strings(names)
	label := ""
	for i, k := range names {
		if i > 0 {
			label += " "
		}
		label += fmt.Sprintf("%s=%v", k, entry[k])
	}
	return label
}
