package domain

// MetricGeneric marks a bare-percentage record extracted without a named
// performance indicator nearby. Generic records are noisy and only win the
// best/worst selection when no named record exists.
const MetricGeneric = "percentage"

// PerformanceMetric is a structured fact pulled out of candidate or answer
// text: a percentage tied to an optional carrier and lane.
type PerformanceMetric struct {
	Type       string  `json:"type"`
	Value      float64 `json:"value"`
	Carrier    string  `json:"carrier,omitempty"`
	Lane       string  `json:"lane,omitempty"`
	SourceFile string  `json:"source_file,omitempty"`
}

func (m PerformanceMetric) Named() bool {
	return m.Type != "" && m.Type != MetricGeneric
}

type SourceRef struct {
	File        string      `json:"file"`
	Preview     string      `json:"preview"`
	ContentType ContentType `json:"content_type"`
	ChunkIndex  int         `json:"chunk_index"`
}

// AnswerResponse is the final request-scoped result handed to the caller.
// Confidence is clamped to [0.1, 1.0]; it is never zero.
type AnswerResponse struct {
	Answer      string             `json:"answer"`
	Confidence  float64            `json:"confidence"`
	Sources     []SourceRef        `json:"sources"`
	BestMetric  *PerformanceMetric `json:"best_metric,omitempty"`
	WorstMetric *PerformanceMetric `json:"worst_metric,omitempty"`
	Notes       []string           `json:"notes,omitempty"`
}
