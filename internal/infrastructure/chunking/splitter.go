package chunking

import "strings"

// Batcher groups consecutive page texts into interpretation requests no
// longer than MaxChars runes. A single page longer than MaxChars is split.
type Batcher struct {
	MaxChars  int
	Separator string
}

func NewBatcher(maxChars int, separator string) *Batcher {
	if maxChars < 0 {
		maxChars = 0
	}
	return &Batcher{
		MaxChars:  maxChars,
		Separator: separator,
	}
}

// Batch returns the pages joined into as few requests as fit. With no limit
// every page goes into one request.
func (b *Batcher) Batch(pages []string) []string {
	kept := make([]string, 0, len(pages))
	for _, page := range pages {
		if page = strings.TrimSpace(page); page != "" {
			kept = append(kept, page)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	if b.MaxChars == 0 {
		return []string{strings.Join(kept, b.Separator)}
	}

	sepLen := len([]rune(b.Separator))
	out := make([]string, 0, len(kept))
	var current []string
	size := 0
	flush := func() {
		if len(current) > 0 {
			out = append(out, strings.Join(current, b.Separator))
			current = nil
			size = 0
		}
	}

	for _, page := range kept {
		for _, piece := range b.split(page) {
			n := len([]rune(piece))
			if len(current) > 0 && size+sepLen+n > b.MaxChars {
				flush()
			}
			if len(current) > 0 {
				size += sepLen
			}
			current = append(current, piece)
			size += n
		}
	}
	flush()
	return out
}

func (b *Batcher) split(text string) []string {
	runes := []rune(text)
	if len(runes) <= b.MaxChars {
		return []string{text}
	}

	out := make([]string, 0, len(runes)/b.MaxChars+1)
	for start := 0; start < len(runes); start += b.MaxChars {
		end := start + b.MaxChars
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
	}
	return out
}
