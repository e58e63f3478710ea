package auth

import (
	"sort"
	"strings"
)

// MaxFavoriteTopics caps how many topics a user keeps
const MaxFavoriteTopics = 20

// DefaultHistoryTake is the history page size when none is requested
const DefaultHistoryTake = 50

const maxHistoryTake = 200

// NormalizeTopics trims, drops blanks, removes case-insensitive duplicates
// keeping the first spelling, and keeps at most MaxFavoriteTopics.
func NormalizeTopics(topics []string) []string {
	out := make([]string, 0, len(topics))
	seen := map[string]bool{}
	for _, t := range topics {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
		if len(out) == MaxFavoriteTopics {
			break
		}
	}
	return out
}

func sortTopics(topics []string) []string {
	sort.SliceStable(topics, func(i, j int) bool {
		return strings.ToLower(topics[i]) < strings.ToLower(topics[j])
	})
	return topics
}

// ClampHistoryTake bounds the history page size to 1..200
func ClampHistoryTake(take int) int {
	switch {
	case take < 1:
		return 1
	case take > maxHistoryTake:
		return maxHistoryTake
	default:
		return take
	}
}
