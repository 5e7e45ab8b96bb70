package chunking

import (
	"strings"

	"github.com/lanewise/kbengine/internal/core/domain"
)

type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 900
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

// Split chunks extracted text. Tabular content is split on line boundaries
// so a CSV row never straddles two chunks; everything else uses a sliding
// rune window with overlap.
func (s *Splitter) Split(text string, contentType domain.ContentType) []string {
	if contentType == domain.ContentTabular {
		return s.splitRows(text)
	}
	return s.splitRunes(text)
}

func (s *Splitter) splitRunes(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := s.ChunkSize - s.Overlap
	if step <= 0 {
		step = s.ChunkSize
	}

	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

func (s *Splitter) splitRows(text string) []string {
	lines := strings.Split(text, "\n")
	var out []string
	var b strings.Builder

	flush := func() {
		chunk := strings.TrimSpace(b.String())
		if chunk != "" {
			out = append(out, chunk)
		}
		b.Reset()
	}

	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		// An oversized single row still becomes its own chunk.
		if b.Len() > 0 && len([]rune(b.String()))+len([]rune(line))+1 > s.ChunkSize {
			flush()
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	flush()
	return out
}
