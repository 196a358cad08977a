package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownKeys maps each section ("" for the top level) to its valid keys.
var knownKeys = map[string][]string{
	"":        {"log_format", "log_level", "output", "store", "tracker", "watch"},
	"tracker": {"revoke", "scope_prefix"},
	"output":  {"format"},
	"store":   {"enabled", "path"},
	"watch":   {"debounce", "metrics_addr"},
}

func init() {
	// sorted for deterministic suggestions when two candidates tie
	for _, keys := range knownKeys {
		sort.Strings(keys)
	}
}

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	var errs []error

	seen := make(map[string]bool)

	for _, key := range undecoded {
		err := buildKeyError(key)

		// a key under an unknown table repeats the table's error
		if seen[err.Error()] {
			continue
		}

		seen[err.Error()] = true
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// buildKeyError creates a descriptive error for an unknown key, suggesting
// the closest known key of the same section when one is close enough.
func buildKeyError(key toml.Key) error {
	section := ""
	field := key[len(key)-1]

	if len(key) > 1 {
		section = strings.Join(key[:len(key)-1], ".")
	}

	candidates, sectionKnown := knownKeys[section]
	if !sectionKnown {
		// a key under an unknown table: report the table itself
		section = ""
		field = key[0]
		candidates = knownKeys[""]
	}

	name := field
	if section != "" {
		name = section + "." + field
	}

	if suggestion := closestMatch(field, candidates); suggestion != "" {
		if section != "" {
			suggestion = section + "." + suggestion
		}

		return fmt.Errorf("unknown config key %q, did you mean %q?", name, suggestion)
	}

	return fmt.Errorf("unknown config key %q", name)
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	// single-row optimization instead of a full matrix
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
