package chatlist

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Search returns the view entries matching query, best match first. Equal
// matches keep their view order. An empty query returns the whole view.
func (s *Synchronizer) Search(query string) []Entry {
	query = strings.TrimSpace(query)
	entries := s.view.Entries()
	if query == "" {
		return entries
	}

	targets := make([]string, len(entries))
	for i, e := range entries {
		targets[i] = e.Display
	}
	ranks := fuzzy.RankFindNormalizedFold(query, targets)
	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].Distance != ranks[j].Distance {
			return ranks[i].Distance < ranks[j].Distance
		}
		return ranks[i].OriginalIndex < ranks[j].OriginalIndex
	})

	res := make([]Entry, 0, len(ranks))
	for _, r := range ranks {
		res = append(res, entries[r.OriginalIndex])
	}

	return res
}
