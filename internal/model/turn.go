package model

import "time"

// Citation points an answer back at the retrieved material it came from.
type Citation struct {
	ChunkID      string `json:"chunk_id"`
	DocumentName string `json:"document_name"`
	PageRange    string `json:"page_range"`
}

// ConversationTurn is one question/answer exchange. Turns form an append-only
// log owned by the session; TurnID is monotonic within it.
type ConversationTurn struct {
	TurnID    int        `json:"turn_id"`
	Question  string     `json:"question"`
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	CreatedAt time.Time  `json:"created_at"`
}

// IngestReport is the per-file outcome of a multi-file upload. One bad PDF
// must not abort ingestion of the others, so failures are reported per file.
type IngestReport struct {
	Name         string `json:"name"`
	DocumentID   string `json:"document_id,omitempty"`
	Pages        int    `json:"pages,omitempty"`
	Chunks       int    `json:"chunks,omitempty"`
	SizeBytes    int64  `json:"size_bytes,omitempty"`
	SkippedPages int    `json:"skipped_pages,omitempty"`
	Error        string `json:"error,omitempty"`
}
