// Package chunker splits extracted document text into overlapping
// fixed-size segments tagged with the page range they span.
package chunker

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"intellidocs/internal/model"
)

// ErrInvalidChunkConfig rejects window parameters that would loop forever or
// produce duplicate chunks.
var ErrInvalidChunkConfig = errors.New("invalid chunk config")

const pageSeparator = "\n\n"

// Chunk concatenates the page texts of a document and slides a window of
// maxSize characters advancing by maxSize-overlap. The final partial window
// is kept; no text is dropped. Offsets and sizes are in runes so multi-byte
// text never splits mid-character. The output is fully determined by the
// input: same text and parameters, same chunk sequence.
func Chunk(doc *model.Document, maxSize, overlap int) ([]model.Chunk, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("%w: max size %d must be positive", ErrInvalidChunkConfig, maxSize)
	}
	if overlap < 0 || overlap >= maxSize {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidChunkConfig, overlap, maxSize)
	}

	text, bounds := flatten(doc.Pages)
	if len(text) == 0 {
		return nil, nil
	}

	step := maxSize - overlap
	var chunks []model.Chunk
	for start := 0; start < len(text); start += step {
		end := start + maxSize
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, model.Chunk{
			ID:           fmt.Sprintf("%s:%d", doc.ID, len(chunks)),
			DocumentID:   doc.ID,
			DocumentName: doc.Name,
			PageStart:    pageAt(bounds, start),
			PageEnd:      pageAt(bounds, end-1),
			CharOffset:   start,
			Text:         string(text[start:end]),
		})
		if end == len(text) {
			break
		}
	}
	return chunks, nil
}

// pageBound marks the rune offset at which a page begins in the flattened text.
type pageBound struct {
	start int
	page  int
}

func flatten(pages []model.Page) ([]rune, []pageBound) {
	var sb strings.Builder
	var bounds []pageBound
	offset := 0
	for i, p := range pages {
		if i > 0 {
			sb.WriteString(pageSeparator)
			offset += len([]rune(pageSeparator))
		}
		bounds = append(bounds, pageBound{start: offset, page: p.Number})
		sb.WriteString(p.Text)
		offset += len([]rune(p.Text))
	}
	return []rune(sb.String()), bounds
}

// pageAt returns the page number owning the given rune offset. Separator
// runes between pages belong to the preceding page.
func pageAt(bounds []pageBound, offset int) int {
	if len(bounds) == 0 {
		return 0
	}
	i := sort.Search(len(bounds), func(i int) bool { return bounds[i].start > offset })
	return bounds[i-1].page
}
