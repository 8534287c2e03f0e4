package costplan

import (
	"fmt"
	"regexp"
	"strconv"
)

var numberPatterns = func() map[VariationCategory]*regexp.Regexp {
	patterns := make(map[VariationCategory]*regexp.Regexp)
	for _, c := range VariationCategories() {
		patterns[c] = regexp.MustCompile(`^` + c.Prefix() + `-(\d+)$`)
	}
	return patterns
}()

// NextVariationNumber returns the next identifier for category, formatted as
// "PV-004". It scans existing numbers of that category for the highest
// numeric suffix and adds one, so gaps never cause reuse. Numbers that do not
// match the category pattern are ignored.
//
// The result is advisory: two callers can receive the same number. Storage
// must enforce uniqueness and the caller must retry on conflict.
func NextVariationNumber(existing []Variation, category VariationCategory) (string, error) {
	prefix := category.Prefix()
	if prefix == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	pattern := numberPatterns[category]

	highest := 0
	for _, v := range existing {
		if v.Category != category {
			continue
		}
		m := pattern.FindStringSubmatch(v.Number)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s-%03d", prefix, highest+1), nil
}
