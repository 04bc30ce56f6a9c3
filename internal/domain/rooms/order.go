package rooms

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortByName orders rooms by name in Portuguese collation, then by id.
// Case and accents only break ties between otherwise equal names, so
// "gabinete 2" sorts between "Gabinete 1" and "Gabinete 3" whatever the
// database collation is.
func SortByName(rs []*Room) {
	// A Collator keeps scratch buffers and must not be shared.
	c := collate.New(language.Portuguese)
	sort.SliceStable(rs, func(i, j int) bool {
		if r := c.CompareString(rs[i].Name, rs[j].Name); r != 0 {
			return r < 0
		}
		return rs[i].ID.String() < rs[j].ID.String()
	})
}
