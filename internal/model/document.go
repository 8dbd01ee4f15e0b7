package model

import "time"

// Page is one page of extracted text. Number is 1-based.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Document is one ingested PDF: its identity plus the extracted page texts.
// Immutable once extracted; owned by the session that ingested it.
type Document struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	SizeBytes   int64     `json:"size_bytes"`
	ContentHash string    `json:"-"` // sha256 of the raw bytes, duplicate detection
	Pages       []Page    `json:"-"`
	PageCount   int       `json:"page_count"`
	ChunkCount  int       `json:"chunk_count"`
	// Pages that yielded no text or failed to extract and were skipped.
	SkippedPages int       `json:"skipped_pages,omitempty"`
	IngestedAt   time.Time `json:"ingested_at"`
}
