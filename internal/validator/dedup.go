package validator

import "github.com/proxycatalog/catalog/internal/catalog"

// Dedup reduces records to one per (ip, port, protocol) key. The first
// record seen for a key survives; if it has no Country and a later
// duplicate does, the duplicate's Country is copied onto the survivor.
// All other fields come from the first-seen record. Output order
// follows first appearance.
func Dedup(records []catalog.Record) []catalog.Record {
	seen := make(map[catalog.Key]int, len(records))
	out := make([]catalog.Record, 0, len(records))

	for _, r := range records {
		key := r.Key()
		if idx, ok := seen[key]; ok {
			if out[idx].Country == "" && r.Country != "" {
				out[idx].Country = r.Country
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, r)
	}

	return out
}
