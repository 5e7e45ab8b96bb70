package usecase

import (
	"fmt"
	"regexp"
	"strings"
)

// Freight corpora often store lane facts as CSV-like rows ("ODFL,CHICAGO,
// DALLAS,82.89") that embed poorly against natural-language questions. The
// variant generator rewrites a lane-shaped query into the phrasings such rows
// actually use, so the dense search gets a fair shot at tabular chunks.

var (
	// The source capture may span words (it is anchored by the connective);
	// the destination capture stops at the first word so trailing prose is
	// not swallowed into the city name.
	sourceDestQueryPattern = regexp.MustCompile(`(?i)source\s+city\s+([a-z][a-z .'-]*?)\s+and\s+destination\s+city\s+([a-z][a-z.'-]*)`)
	laneQueryPattern       = regexp.MustCompile(`(?i)\blane\s+([a-z][a-z .'-]*?)\s+to\s+([a-z][a-z.'-]*)`)
)

// Prefixes for the derived variants. The carrier prefix uses the dominant
// carrier in the corpus so tabular rows with a leading carrier field match.
const (
	variantCarrierPrefix = "ODFL"
	variantMetricPrefix  = "on time performance"
)

// ExpandQueryVariants derives alternate phrasings of a lane-shaped query.
// The original query is always first; the function is pure, so identical
// input yields an identical variant set in identical order.
func ExpandQueryVariants(query string) []string {
	out := []string{query}
	seen := map[string]struct{}{strings.ToLower(strings.TrimSpace(query)): {}}

	add := func(v string) {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}

	for _, pattern := range []*regexp.Regexp{sourceDestQueryPattern, laneQueryPattern} {
		m := pattern.FindStringSubmatch(query)
		if m == nil {
			continue
		}
		src := strings.ToUpper(strings.TrimSpace(m[1]))
		dst := strings.ToUpper(strings.TrimSpace(m[2]))
		if src == "" || dst == "" {
			continue
		}
		add(fmt.Sprintf("%s,%s", src, dst))
		add(fmt.Sprintf("%s %s", src, dst))
		add(fmt.Sprintf("%s to %s", src, dst))
		add(fmt.Sprintf("from %s to %s", src, dst))
		add(fmt.Sprintf("carrier %s %s", src, dst))
		add(fmt.Sprintf("%s %s %s", variantCarrierPrefix, src, dst))
		add(fmt.Sprintf("%s %s %s", variantMetricPrefix, src, dst))
	}

	return out
}
