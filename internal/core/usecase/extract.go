package usecase

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/lanewise/kbengine/internal/core/domain"
)

// MetricExtractor scans free text for carrier/lane/percentage facts. It is
// the only structured-data boundary in the engine; keeping it behind this
// type lets the regex layer be swapped for a real parser without touching
// ranking logic.
type MetricExtractor struct {
	indicators []string
	carriers   map[string]struct{}
}

func NewMetricExtractor(tuning domain.RetrievalTuning) *MetricExtractor {
	indicators := make([]string, 0, len(tuning.Indicators))
	for _, ind := range tuning.Indicators {
		ind = strings.ToLower(strings.TrimSpace(ind))
		if ind != "" {
			indicators = append(indicators, ind)
		}
	}
	carriers := make(map[string]struct{}, len(tuning.Carriers))
	for _, c := range tuning.Carriers {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c != "" {
			carriers[c] = struct{}{}
		}
	}
	return &MetricExtractor{indicators: indicators, carriers: carriers}
}

var (
	// CARRIER,SOURCE,DEST,VALUE rows from tabular freight exports.
	tabularRowPattern = regexp.MustCompile(`\b([A-Za-z][A-Za-z&]*)\s*,\s*([A-Za-z][A-Za-z ]*?)\s*,\s*([A-Za-z][A-Za-z ]*?)\s*,\s*(\d{1,3}(?:\.\d+)?)\b`)

	percentTokenPattern = regexp.MustCompile(`(\d{1,3}(?:\.\d+)?)\s*%`)
	windowNumberPattern = regexp.MustCompile(`\d{1,3}(?:\.\d+)?`)

	carrierLabelPattern = regexp.MustCompile(`(?i)\bcarrier\s*[:\-]?\s*([A-Za-z][A-Za-z&]+)`)

	// Prose lanes. The bare "X to Y" form only trusts all-caps city tokens;
	// anything looser drowns in false positives.
	upperLanePattern   = regexp.MustCompile(`\b([A-Z]{2,})\s+to\s+([A-Z]{2,})\b`)
	fromToLanePattern  = regexp.MustCompile(`(?i)\bfrom\s+([A-Za-z]{2,})\s+to\s+([A-Za-z]{2,})\b`)
	betweenLanePattern = regexp.MustCompile(`(?i)\bbetween\s+([A-Za-z]{2,})\s+and\s+([A-Za-z]{2,})\b`)
)

// indicatorWindow is how far past an indicator phrase a numeric value may
// sit and still be attributed to it.
const indicatorWindow = 60

// Extract returns every performance-metric record found in text. Records
// with values outside [0, 100] are discarded, never surfaced.
func (e *MetricExtractor) Extract(text, sourceFile string) []domain.PerformanceMetric {
	var records []domain.PerformanceMetric
	for _, line := range strings.Split(text, "\n") {
		records = append(records, e.extractLine(line, sourceFile)...)
	}
	return records
}

func (e *MetricExtractor) extractLine(line, sourceFile string) []domain.PerformanceMetric {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	var records []domain.PerformanceMetric

	for _, m := range tabularRowPattern.FindAllStringSubmatch(line, -1) {
		value, ok := parseMetricValue(m[4])
		if !ok {
			continue
		}
		records = append(records, domain.PerformanceMetric{
			Type:       e.indicatorIn(line),
			Value:      value,
			Carrier:    e.vocabCarrier(m[1]),
			Lane:       formatLane(m[2], m[3]),
			SourceFile: sourceFile,
		})
	}
	if len(records) > 0 {
		return records
	}

	// Offsets below index into lower, not line: lowercasing can change
	// byte lengths for some runes, and the window is only scanned for
	// digits, which lowercasing preserves.
	lower := strings.ToLower(line)
	for _, indicator := range e.indicators {
		idx := strings.Index(lower, indicator)
		if idx < 0 {
			continue
		}
		window := lower[idx+len(indicator):]
		if len(window) > indicatorWindow {
			window = window[:indicatorWindow]
		}
		num := windowNumberPattern.FindString(window)
		if num == "" {
			continue
		}
		value, ok := parseMetricValue(num)
		if !ok {
			continue
		}
		records = append(records, domain.PerformanceMetric{
			Type:       indicator,
			Value:      value,
			Carrier:    e.carrierIn(line),
			Lane:       laneIn(line),
			SourceFile: sourceFile,
		})
	}
	if len(records) > 0 {
		return records
	}

	// Fallback tier: bare percentage tokens become generic records.
	for _, m := range percentTokenPattern.FindAllStringSubmatch(line, -1) {
		value, ok := parseMetricValue(m[1])
		if !ok {
			continue
		}
		records = append(records, domain.PerformanceMetric{
			Type:       domain.MetricGeneric,
			Value:      value,
			Carrier:    e.carrierIn(line),
			Lane:       laneIn(line),
			SourceFile: sourceFile,
		})
	}
	return records
}

func (e *MetricExtractor) indicatorIn(line string) string {
	lower := strings.ToLower(line)
	for _, indicator := range e.indicators {
		if strings.Contains(lower, indicator) {
			return indicator
		}
	}
	return domain.MetricGeneric
}

// carrierIn tries the labelled "carrier: X" form first, then the known
// carrier vocabulary; empty when neither matches.
func (e *MetricExtractor) carrierIn(line string) string {
	if m := carrierLabelPattern.FindStringSubmatch(line); m != nil {
		return strings.ToUpper(m[1])
	}
	for _, token := range strings.FieldsFunc(line, func(r rune) bool {
		return !((r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || r == '&')
	}) {
		if carrier := e.vocabCarrier(token); carrier != "" {
			return carrier
		}
	}
	return ""
}

func (e *MetricExtractor) vocabCarrier(token string) string {
	upper := strings.ToUpper(strings.TrimSpace(token))
	if _, ok := e.carriers[upper]; ok {
		return upper
	}
	return ""
}

// laneIn resolves a lane with fixed priority: tabular row, "CITY to CITY"
// prose, "from X to Y", then "between X and Y". First match wins.
func laneIn(line string) string {
	if m := tabularRowPattern.FindStringSubmatch(line); m != nil {
		return formatLane(m[2], m[3])
	}
	if m := upperLanePattern.FindStringSubmatch(line); m != nil {
		return formatLane(m[1], m[2])
	}
	if m := fromToLanePattern.FindStringSubmatch(line); m != nil {
		return formatLane(m[1], m[2])
	}
	if m := betweenLanePattern.FindStringSubmatch(line); m != nil {
		return formatLane(m[1], m[2])
	}
	return ""
}

func formatLane(src, dst string) string {
	src = strings.ToUpper(strings.TrimSpace(src))
	dst = strings.ToUpper(strings.TrimSpace(dst))
	if src == "" || dst == "" {
		return ""
	}
	return src + " to " + dst
}

func parseMetricValue(raw string) (float64, bool) {
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 || value > 100 {
		return 0, false
	}
	return value, true
}

// SelectBestWorst picks the extreme records across one query's accumulated
// set. Named-indicator records outrank generic percentages; only when no
// named record exists does the generic tier decide. Ties keep the
// first-seen record.
func SelectBestWorst(records []domain.PerformanceMetric) (best, worst *domain.PerformanceMetric) {
	if len(records) == 0 {
		return nil, nil
	}

	pool := make([]domain.PerformanceMetric, 0, len(records))
	for _, r := range records {
		if r.Named() {
			pool = append(pool, r)
		}
	}
	if len(pool) == 0 {
		pool = records
	}

	b, w := pool[0], pool[0]
	for _, r := range pool[1:] {
		if r.Value > b.Value {
			b = r
		}
		if r.Value < w.Value {
			w = r
		}
	}
	return &b, &w
}
