package model

import "fmt"

// Chunk is a bounded, overlapping slice of a document's extracted text, the
// unit of embedding and retrieval. Consecutive chunks from the same document
// overlap by the configured number of characters.
type Chunk struct {
	ID           string `json:"id"`
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"document_name"`
	PageStart    int    `json:"page_start"`
	PageEnd      int    `json:"page_end"`
	CharOffset   int    `json:"char_offset"`
	Text         string `json:"text"`
}

// PageRange renders the inclusive page span, e.g. "3" or "3-5".
func (c Chunk) PageRange() string {
	if c.PageStart == c.PageEnd {
		return fmt.Sprintf("%d", c.PageStart)
	}
	return fmt.Sprintf("%d-%d", c.PageStart, c.PageEnd)
}
