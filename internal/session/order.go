package session

import (
	"sort"
	"strings"
)

// domainSelectionOrder sorts domains strictly longest-first by label count
// (most subdomains first), tie-broken by per-label length (longer labels
// first, compared label by label left to right). Domains with equal label
// count and equal per-label lengths keep their relative input order
// (sort.SliceStable).
func domainSelectionOrder(domains []string) []string {
	sorted := make([]string, len(domains))
	copy(sorted, domains)

	labelsOf := make(map[string][]string, len(sorted))
	for _, d := range sorted {
		labelsOf[d] = strings.Split(d, ".")
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := labelsOf[sorted[i]], labelsOf[sorted[j]]
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		for k := 0; k < len(a); k++ {
			if len(a[k]) != len(b[k]) {
				return len(a[k]) > len(b[k])
			}
		}
		return false
	})

	return sorted
}
