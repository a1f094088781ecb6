package resource

import "github.com/baseplate/tracker/internal/core/store"

// BuildIncludes resolves relation keys against relationMap. Keys without a
// mapping degrade to a plain include of the relation, so a newly added
// relation works before anyone writes a mapping for it.
func BuildIncludes(keys []string, relationMap map[string]store.Include) []store.Include {
	if len(keys) == 0 {
		return nil
	}
	out := make([]store.Include, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if inc, ok := relationMap[key]; ok {
			inc.Name = key
			out = append(out, inc)
			continue
		}
		out = append(out, store.Include{Name: key})
	}
	return out
}
