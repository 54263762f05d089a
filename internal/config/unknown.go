package config

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// suggestDistance bounds the edit distance of a "did you mean" hint.
const suggestDistance = 3

// knownKeys lists every toml tag reachable through Config's embedded
// sections, sorted so suggestions are deterministic.
var knownKeys = tomlKeys(reflect.TypeFor[Config]())

func tomlKeys(t reflect.Type) []string {
	var keys []string

	for i := range t.NumField() {
		f := t.Field(i)
		if f.Anonymous {
			keys = append(keys, tomlKeys(f.Type)...)

			continue
		}

		if tag, _, _ := strings.Cut(f.Tag.Get("toml"), ","); tag != "" && tag != "-" {
			keys = append(keys, tag)
		}
	}

	slices.Sort(keys)

	return keys
}

// checkUnknownKeys reports every key the decoder did not consume. Keys are
// flat, so anything inside a table is unknown too.
func checkUnknownKeys(md *toml.MetaData) error {
	var errs []error

	for _, key := range md.Undecoded() {
		name := key.String()
		if hint := suggestKey(key[len(key)-1]); hint != "" {
			errs = append(errs, fmt.Errorf("unknown config key %q (did you mean %q?)", name, hint))

			continue
		}

		errs = append(errs, fmt.Errorf("unknown config key %q", name))
	}

	return errors.Join(errs...)
}

// suggestKey returns the nearest known key, or "" when none is close.
func suggestKey(name string) string {
	best, bestDist := "", suggestDistance+1

	for _, k := range knownKeys {
		if d := editDistance(name, k); d < bestDist {
			best, bestDist = k, d
		}
	}

	return best
}

// editDistance is the Levenshtein distance between a and b, computed over
// bytes with two rolling rows.
func editDistance(a, b string) int {
	prev := make([]int, len(b)+1)
	next := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		next[0] = i

		for j := 1; j <= len(b); j++ {
			sub := prev[j-1]
			if a[i-1] != b[j-1] {
				sub++
			}

			next[j] = min(prev[j]+1, next[j-1]+1, sub)
		}

		prev, next = next, prev
	}

	return prev[len(b)]
}
