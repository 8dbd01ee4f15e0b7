package app

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")

	// ErrSessionNotFound means the session id is unknown or already closed.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoDocumentsProcessed rejects questions asked before at least one
	// document has been ingested and indexed.
	ErrNoDocumentsProcessed = errors.New("no documents processed yet")

	// ErrEmptyQuestion rejects empty or whitespace-only questions.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrFileTooLarge rejects uploads above the configured size limit.
	ErrFileTooLarge = errors.New("file exceeds the maximum allowed size")

	// ErrDuplicateDocument rejects re-uploading bytes already ingested in
	// this session, detected by content hash.
	ErrDuplicateDocument = errors.New("document already ingested in this session")

	// ErrNotPDF rejects uploads whose filename is not a .pdf.
	ErrNotPDF = errors.New("only PDF files are supported")
)
