package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"intellidocs/internal/ai"
	"intellidocs/internal/chunker"
	"intellidocs/internal/index"
	"intellidocs/internal/model"
	"intellidocs/internal/pkg/pdfextract"
)

// Extractor pulls per-page text out of PDF bytes.
type Extractor interface {
	Extract(data []byte) (*pdfextract.Result, error)
}

// PDFExtractor is the production Extractor.
type PDFExtractor struct{}

func (PDFExtractor) Extract(data []byte) (*pdfextract.Result, error) {
	return pdfextract.Extract(data)
}

// IndexBuilder constructs a vector index for one session; the backend
// (memory or redis) is chosen at wiring time.
type IndexBuilder func(ctx context.Context, sessionID string, chunks []model.Chunk, vectors [][]float32) (index.Index, error)

// Options carries the validated pipeline settings.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	TopK         int
	MinScore     float64
	MaxFileSize  int64
	HistoryTurns int
}

// UploadedFile is one PDF handed over by the transport layer.
type UploadedFile struct {
	Name string
	Data []byte
}

// RAGService runs the retrieval-augmented answering pipeline over
// per-session document sets.
type RAGService struct {
	embedder    ai.Embedder
	synthesizer *Synthesizer
	retriever   Retriever
	extractor   Extractor
	buildIndex  IndexBuilder
	sessions    *SessionManager
	opts        Options
}

func NewRAGService(
	embedder ai.Embedder,
	generator ai.Generator,
	extractor Extractor,
	buildIndex IndexBuilder,
	sessions *SessionManager,
	opts Options,
) *RAGService {
	return &RAGService{
		embedder:    embedder,
		synthesizer: NewSynthesizer(generator, opts.HistoryTurns),
		retriever:   Retriever{TopK: opts.TopK, MinScore: opts.MinScore},
		extractor:   extractor,
		buildIndex:  buildIndex,
		sessions:    sessions,
		opts:        opts,
	}
}

func (s *RAGService) CreateSession() *Session {
	return s.sessions.Create()
}

func (s *RAGService) DeleteSession(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}

// extracted is the per-file outcome of the parallel extract+chunk phase.
type extracted struct {
	doc    model.Document
	chunks []model.Chunk
	err    error
}

// Ingest extracts, chunks, embeds and indexes the given files, rebuilding
// the session index over the union of everything ingested so far. Failures
// are isolated per file: one bad PDF never aborts the others. An embedding
// or index failure leaves the session exactly as it was.
func (s *RAGService) Ingest(ctx context.Context, sessionID string, files []UploadedFile) ([]model.IngestReport, error) {
	if len(files) == 0 {
		return nil, ErrInvalidInput
	}
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	// Extraction and chunking are independent pure transforms, so files are
	// processed in parallel; embedding is batched afterwards.
	results := make([]extracted, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			results[i] = s.processFile(f, session)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Same file uploaded twice in one batch: keep the first occurrence.
	batchSeen := make(map[string]bool)
	for i := range results {
		if results[i].err != nil {
			continue
		}
		h := results[i].doc.ContentHash
		if batchSeen[h] {
			results[i].err = fmt.Errorf("%w (duplicate of %s)", ErrDuplicateDocument, results[i].doc.Name)
		}
		batchSeen[h] = true
	}

	reports := make([]model.IngestReport, len(files))
	var newChunks []model.Chunk
	var accepted []int
	for i, res := range results {
		reports[i] = model.IngestReport{Name: files[i].Name}
		if res.err != nil {
			reports[i].Error = res.err.Error()
			continue
		}
		reports[i].DocumentID = res.doc.ID
		reports[i].Pages = res.doc.PageCount
		reports[i].Chunks = len(res.chunks)
		reports[i].SizeBytes = res.doc.SizeBytes
		reports[i].SkippedPages = res.doc.SkippedPages
		newChunks = append(newChunks, res.chunks...)
		accepted = append(accepted, i)
	}
	if len(accepted) == 0 {
		return reports, nil
	}

	texts := make([]string, len(newChunks))
	for i, c := range newChunks {
		texts[i] = c.Text
	}
	newVectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return reports, err
	}
	if len(newVectors) != len(newChunks) {
		return reports, fmt.Errorf("%w: got %d vectors for %d chunks",
			ai.ErrEmbeddingService, len(newVectors), len(newChunks))
	}

	allChunks := append(append([]model.Chunk{}, session.chunks...), newChunks...)
	allVectors := append(append([][]float32{}, session.vectors...), newVectors...)
	idx, err := s.buildIndex(ctx, session.ID, allChunks, allVectors)
	if err != nil {
		return reports, err
	}

	// Commit only after the rebuild succeeded.
	for _, i := range accepted {
		session.documents = append(session.documents, results[i].doc)
		session.ingested[results[i].doc.ContentHash] = results[i].doc.Name
	}
	session.chunks = allChunks
	session.vectors = allVectors
	session.idx = idx
	return reports, nil
}

func (s *RAGService) processFile(f UploadedFile, session *Session) extracted {
	if strings.ToLower(filepath.Ext(f.Name)) != ".pdf" {
		return extracted{err: ErrNotPDF}
	}
	if s.opts.MaxFileSize > 0 && int64(len(f.Data)) > s.opts.MaxFileSize {
		return extracted{err: fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, len(f.Data), s.opts.MaxFileSize)}
	}

	sum := sha256.Sum256(f.Data)
	hash := hex.EncodeToString(sum[:])
	if prev, ok := session.ingested[hash]; ok {
		return extracted{err: fmt.Errorf("%w (already ingested as %s)", ErrDuplicateDocument, prev)}
	}

	res, err := s.extractor.Extract(f.Data)
	if err != nil {
		return extracted{err: err}
	}

	doc := model.Document{
		ID:           uuid.NewString(),
		Name:         f.Name,
		SizeBytes:    int64(len(f.Data)),
		ContentHash:  hash,
		Pages:        res.Pages,
		PageCount:    len(res.Pages),
		SkippedPages: res.SkippedPages,
		IngestedAt:   time.Now(),
	}
	chunks, err := chunker.Chunk(&doc, s.opts.ChunkSize, s.opts.ChunkOverlap)
	if err != nil {
		return extracted{err: err}
	}
	doc.ChunkCount = len(chunks)
	return extracted{doc: doc, chunks: chunks}
}

// Ask retrieves grounding for the question, synthesizes an answer and
// appends the turn to the session log. A failed ask leaves the log and the
// index untouched; no partial turn is ever recorded.
func (s *RAGService) Ask(ctx context.Context, sessionID, question string) (*model.ConversationTurn, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if !session.ready() {
		return nil, ErrNoDocumentsProcessed
	}

	queryVectors, err := s.embedder.EmbedBatch(ctx, []string{question})
	if err != nil {
		return nil, err
	}
	if len(queryVectors) != 1 {
		return nil, fmt.Errorf("%w: got %d query vectors", ai.ErrEmbeddingService, len(queryVectors))
	}

	retrieved, err := s.retriever.Retrieve(ctx, session.idx, queryVectors[0])
	if err != nil {
		return nil, err
	}

	answer, cited, err := s.synthesizer.Answer(ctx, question, retrieved, session.turns)
	if err != nil {
		return nil, err
	}

	session.nextTurn++
	turn := model.ConversationTurn{
		TurnID:    session.nextTurn,
		Question:  question,
		Answer:    answer,
		Citations: cited,
		CreatedAt: time.Now(),
	}
	session.turns = append(session.turns, turn)
	return &turn, nil
}

func (s *RAGService) History(sessionID string) ([]model.ConversationTurn, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	out := make([]model.ConversationTurn, len(session.turns))
	copy(out, session.turns)
	return out, nil
}

func (s *RAGService) Documents(sessionID string) ([]model.Document, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	out := make([]model.Document, len(session.documents))
	copy(out, session.documents)
	return out, nil
}

// ChatExport is the structured, timestamped record of one session's
// conversation, suitable for serialization by the caller.
type ChatExport struct {
	SessionID  string                   `json:"session_id"`
	ExportedAt time.Time                `json:"exported_at"`
	Documents  []model.Document         `json:"documents"`
	Turns      []model.ConversationTurn `json:"turns"`
}

func (s *RAGService) Export(sessionID string) (*ChatExport, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	export := &ChatExport{
		SessionID:  session.ID,
		ExportedAt: time.Now(),
		Documents:  make([]model.Document, len(session.documents)),
		Turns:      make([]model.ConversationTurn, len(session.turns)),
	}
	copy(export.Documents, session.documents)
	copy(export.Turns, session.turns)
	return export, nil
}

// Reset clears the session's documents, index and history so a fresh
// document set can be ingested under the same session id.
func (s *RAGService) Reset(ctx context.Context, sessionID string) error {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	session.reset(ctx)
	return nil
}

// ClearHistory drops the conversation log but keeps the document set and
// index, mirroring the "clear chat" action.
func (s *RAGService) ClearHistory(sessionID string) error {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	session.turns = nil
	session.nextTurn = 0
	return nil
}

// SessionInfo is a small status snapshot for the transport layer.
type SessionInfo struct {
	ID        string    `json:"id"`
	State     string    `json:"state"` // "empty", "has_documents" or "ready"
	Documents int       `json:"documents"`
	Chunks    int       `json:"chunks"`
	Turns     int       `json:"turns"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *RAGService) Info(sessionID string) (*SessionInfo, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	state := "empty"
	switch {
	case session.ready():
		state = "ready"
	case len(session.documents) > 0:
		state = "has_documents"
	}
	return &SessionInfo{
		ID:        session.ID,
		State:     state,
		Documents: len(session.documents),
		Chunks:    len(session.chunks),
		Turns:     len(session.turns),
		CreatedAt: session.CreatedAt,
	}, nil
}
