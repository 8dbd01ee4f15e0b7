package app

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intellidocs/internal/ai"
	"intellidocs/internal/index"
	"intellidocs/internal/model"
	"intellidocs/internal/pkg/pdfextract"
)

// fakeEmbedder maps each text to a deterministic 2-d vector keyed on which
// topic words it mentions, so retrieval ranking is predictable.
type fakeEmbedder struct {
	calls [][]string
	err   error
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := []float32{0.1, 0.1}
		if strings.Contains(text, "revenue") {
			v = []float32{1, 0}
		} else if strings.Contains(text, "headcount") {
			v = []float32{0, 1}
		}
		out[i] = v
	}
	return out, nil
}

type fakeGenerator struct {
	prompts []ai.Prompt
	answer  string
	err     error
}

func (f *fakeGenerator) Generate(_ context.Context, prompt ai.Prompt) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

// fakeExtractor treats the upload bytes as page texts separated by "|".
type fakeExtractor struct{}

func (fakeExtractor) Extract(data []byte) (*pdfextract.Result, error) {
	text := string(data)
	if text == "unreadable" {
		return nil, pdfextract.ErrUnreadablePDF
	}
	res := &pdfextract.Result{}
	for i, pageText := range strings.Split(text, "|") {
		res.Pages = append(res.Pages, model.Page{Number: i + 1, Text: pageText})
	}
	return res, nil
}

func memoryBuilder(_ context.Context, _ string, chunks []model.Chunk, vectors [][]float32) (index.Index, error) {
	return index.Build(chunks, vectors)
}

func newTestService(embedder *fakeEmbedder, generator *fakeGenerator, opts Options) *RAGService {
	if opts.ChunkSize == 0 {
		opts.ChunkSize = 40
	}
	if opts.TopK == 0 {
		opts.TopK = 2
	}
	if opts.HistoryTurns == 0 {
		opts.HistoryTurns = 6
	}
	return NewRAGService(embedder, generator, fakeExtractor{}, memoryBuilder, NewSessionManager(), opts)
}

func TestAsk_BeforeAnyIngest(t *testing.T) {
	svc := newTestService(&fakeEmbedder{}, &fakeGenerator{answer: "x"}, Options{})
	session := svc.CreateSession()

	_, err := svc.Ask(context.Background(), session.ID, "anything?")
	assert.ErrorIs(t, err, ErrNoDocumentsProcessed)
}

func TestAsk_EmptyQuestion(t *testing.T) {
	svc := newTestService(&fakeEmbedder{}, &fakeGenerator{answer: "x"}, Options{})
	session := svc.CreateSession()

	_, err := svc.Ask(context.Background(), session.ID, "   \n\t ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestAsk_UnknownSession(t *testing.T) {
	svc := newTestService(&fakeEmbedder{}, &fakeGenerator{answer: "x"}, Options{})
	_, err := svc.Ask(context.Background(), "nope", "question?")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestIngestThenAsk_CitesTheRelevantPage(t *testing.T) {
	embedder := &fakeEmbedder{}
	generator := &fakeGenerator{answer: "Revenue grew 12% year over year."}
	// Window sized to page one, so the winning chunk cites exactly page 1.
	svc := newTestService(embedder, generator, Options{ChunkSize: 27})
	session := svc.CreateSession()

	reports, err := svc.Ingest(context.Background(), session.ID, []UploadedFile{
		{Name: "annual.pdf", Data: []byte("revenue grew twelve percent|headcount stayed flat")},
	})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Empty(t, reports[0].Error)
	assert.Equal(t, 2, reports[0].Pages)
	assert.Greater(t, reports[0].Chunks, 0)

	turn, err := svc.Ask(context.Background(), session.ID, "How did revenue develop?")
	require.NoError(t, err)
	assert.Equal(t, 1, turn.TurnID)
	assert.Equal(t, "Revenue grew 12% year over year.", turn.Answer)

	require.NotEmpty(t, turn.Citations)
	assert.Equal(t, "annual.pdf", turn.Citations[0].DocumentName)
	assert.Equal(t, "1", turn.Citations[0].PageRange)

	// The prompt carried the retrieved context and the question.
	require.Len(t, generator.prompts, 1)
	last := generator.prompts[0].Messages[len(generator.prompts[0].Messages)-1]
	assert.Contains(t, last.Content, "revenue grew twelve percent")
	assert.Contains(t, last.Content, "How did revenue develop?")
}

func TestIngest_PerFileFailureIsolation(t *testing.T) {
	svc := newTestService(&fakeEmbedder{}, &fakeGenerator{answer: "x"}, Options{})
	session := svc.CreateSession()

	reports, err := svc.Ingest(context.Background(), session.ID, []UploadedFile{
		{Name: "good.pdf", Data: []byte("revenue notes")},
		{Name: "broken.pdf", Data: []byte("unreadable")},
		{Name: "notes.txt", Data: []byte("plain text")},
	})
	require.NoError(t, err)
	require.Len(t, reports, 3)

	assert.Empty(t, reports[0].Error)
	assert.Contains(t, reports[1].Error, pdfextract.ErrUnreadablePDF.Error())
	assert.Contains(t, reports[2].Error, ErrNotPDF.Error())

	docs, err := svc.Documents(session.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "good.pdf", docs[0].Name)
}

func TestIngest_RejectsOversizedFile(t *testing.T) {
	svc := newTestService(&fakeEmbedder{}, &fakeGenerator{answer: "x"}, Options{MaxFileSize: 10})
	session := svc.CreateSession()

	reports, err := svc.Ingest(context.Background(), session.ID, []UploadedFile{
		{Name: "big.pdf", Data: []byte("this is longer than ten bytes")},
	})
	require.NoError(t, err)
	assert.Contains(t, reports[0].Error, ErrFileTooLarge.Error())
}

func TestIngest_RejectsDuplicateContent(t *testing.T) {
	svc := newTestService(&fakeEmbedder{}, &fakeGenerator{answer: "x"}, Options{})
	session := svc.CreateSession()

	_, err := svc.Ingest(context.Background(), session.ID, []UploadedFile{
		{Name: "report.pdf", Data: []byte("revenue figures")},
	})
	require.NoError(t, err)

	// Same bytes under a different name are still a duplicate.
	reports, err := svc.Ingest(context.Background(), session.ID, []UploadedFile{
		{Name: "renamed.pdf", Data: []byte("revenue figures")},
	})
	require.NoError(t, err)
	assert.Contains(t, reports[0].Error, ErrDuplicateDocument.Error())

	docs, err := svc.Documents(session.ID)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestIngest_EmbeddingFailureLeavesSessionUntouched(t *testing.T) {
	embedder := &fakeEmbedder{err: fmt.Errorf("%w: quota exhausted", ai.ErrEmbeddingService)}
	svc := newTestService(embedder, &fakeGenerator{answer: "x"}, Options{})
	session := svc.CreateSession()

	_, err := svc.Ingest(context.Background(), session.ID, []UploadedFile{
		{Name: "report.pdf", Data: []byte("revenue figures")},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ai.ErrEmbeddingService)

	docs, err := svc.Documents(session.ID)
	require.NoError(t, err)
	assert.Empty(t, docs)

	// The failed upload is not remembered as ingested; retrying works.
	embedder.err = nil
	reports, err := svc.Ingest(context.Background(), session.ID, []UploadedFile{
		{Name: "report.pdf", Data: []byte("revenue figures")},
	})
	require.NoError(t, err)
	assert.Empty(t, reports[0].Error)
}

func TestIngest_SecondDocumentExtendsIndex(t *testing.T) {
	embedder := &fakeEmbedder{}
	svc := newTestService(embedder, &fakeGenerator{answer: "x"}, Options{})
	session := svc.CreateSession()

	_, err := svc.Ingest(context.Background(), session.ID, []UploadedFile{
		{Name: "first.pdf", Data: []byte("revenue report")},
	})
	require.NoError(t, err)
	_, err = svc.Ingest(context.Background(), session.ID, []UploadedFile{
		{Name: "second.pdf", Data: []byte("headcount report")},
	})
	require.NoError(t, err)

	// The second ingest embeds only its own chunks.
	require.Len(t, embedder.calls, 2)
	assert.Len(t, embedder.calls[1], 1)

	turn, err := svc.Ask(context.Background(), session.ID, "what about headcount levels?")
	require.NoError(t, err)
	require.NotEmpty(t, turn.Citations)
	assert.Equal(t, "second.pdf", turn.Citations[0].DocumentName)
}

func TestAsk_GenerationFailureLeavesHistoryUnchanged(t *testing.T) {
	generator := &fakeGenerator{err: fmt.Errorf("%w: model offline", ai.ErrGenerationService)}
	svc := newTestService(&fakeEmbedder{}, generator, Options{})
	session := svc.CreateSession()

	_, err := svc.Ingest(context.Background(), session.ID, []UploadedFile{
		{Name: "report.pdf", Data: []byte("revenue figures")},
	})
	require.NoError(t, err)

	_, err = svc.Ask(context.Background(), session.ID, "how is revenue?")
	assert.ErrorIs(t, err, ai.ErrGenerationService)

	turns, err := svc.History(session.ID)
	require.NoError(t, err)
	assert.Empty(t, turns)

	// Recovery continues the turn numbering from scratch.
	generator.err = nil
	generator.answer = "fine"
	turn, err := svc.Ask(context.Background(), session.ID, "how is revenue?")
	require.NoError(t, err)
	assert.Equal(t, 1, turn.TurnID)
}

func TestAsk_MinScoreFiltersOutWeakMatches(t *testing.T) {
	generator := &fakeGenerator{answer: "The answer is not available in the provided documents."}
	svc := newTestService(&fakeEmbedder{}, generator, Options{MinScore: 0.99})
	session := svc.CreateSession()

	_, err := svc.Ingest(context.Background(), session.ID, []UploadedFile{
		{Name: "report.pdf", Data: []byte("headcount figures")},
	})
	require.NoError(t, err)

	// Query vector is orthogonal to the only chunk, so nothing clears 0.99.
	turn, err := svc.Ask(context.Background(), session.ID, "how did revenue develop?")
	require.NoError(t, err)
	assert.Empty(t, turn.Citations)

	require.Len(t, generator.prompts, 1)
	last := generator.prompts[0].Messages[len(generator.prompts[0].Messages)-1]
	assert.NotContains(t, last.Content, "headcount figures")
	assert.Contains(t, last.Content, "No relevant context")
}

func TestAsk_HistoryIsBoundedInPrompt(t *testing.T) {
	generator := &fakeGenerator{answer: "ok"}
	svc := newTestService(&fakeEmbedder{}, generator, Options{HistoryTurns: 2})
	session := svc.CreateSession()

	_, err := svc.Ingest(context.Background(), session.ID, []UploadedFile{
		{Name: "report.pdf", Data: []byte("revenue figures")},
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := svc.Ask(context.Background(), session.ID, fmt.Sprintf("question %d about revenue", i))
		require.NoError(t, err)
	}

	// 2 prior turns (4 messages) plus the current question.
	lastPrompt := generator.prompts[len(generator.prompts)-1]
	assert.Len(t, lastPrompt.Messages, 5)
	assert.Contains(t, lastPrompt.Messages[0].Content, "question 2")
}

func TestAsk_NegativeHistoryWindowSendsNoHistory(t *testing.T) {
	generator := &fakeGenerator{answer: "ok"}
	svc := newTestService(&fakeEmbedder{}, generator, Options{HistoryTurns: -1})
	session := svc.CreateSession()

	_, err := svc.Ingest(context.Background(), session.ID, []UploadedFile{
		{Name: "report.pdf", Data: []byte("revenue figures")},
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.Ask(context.Background(), session.ID, fmt.Sprintf("question %d about revenue", i))
		require.NoError(t, err)
	}

	// Only the current question, no prior turns.
	lastPrompt := generator.prompts[len(generator.prompts)-1]
	assert.Len(t, lastPrompt.Messages, 1)
}

func TestHistoryAndExport(t *testing.T) {
	svc := newTestService(&fakeEmbedder{}, &fakeGenerator{answer: "fine"}, Options{})
	session := svc.CreateSession()

	_, err := svc.Ingest(context.Background(), session.ID, []UploadedFile{
		{Name: "report.pdf", Data: []byte("revenue figures")},
	})
	require.NoError(t, err)

	_, err = svc.Ask(context.Background(), session.ID, "first question about revenue?")
	require.NoError(t, err)
	_, err = svc.Ask(context.Background(), session.ID, "second question about revenue?")
	require.NoError(t, err)

	turns, err := svc.History(session.ID)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, 1, turns[0].TurnID)
	assert.Equal(t, 2, turns[1].TurnID)

	export, err := svc.Export(session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, export.SessionID)
	assert.False(t, export.ExportedAt.IsZero())
	assert.Len(t, export.Turns, 2)
	assert.Len(t, export.Documents, 1)
}

func TestClearHistory_KeepsDocuments(t *testing.T) {
	svc := newTestService(&fakeEmbedder{}, &fakeGenerator{answer: "fine"}, Options{})
	session := svc.CreateSession()

	_, err := svc.Ingest(context.Background(), session.ID, []UploadedFile{
		{Name: "report.pdf", Data: []byte("revenue figures")},
	})
	require.NoError(t, err)
	_, err = svc.Ask(context.Background(), session.ID, "revenue?")
	require.NoError(t, err)

	require.NoError(t, svc.ClearHistory(session.ID))

	turns, err := svc.History(session.ID)
	require.NoError(t, err)
	assert.Empty(t, turns)

	// Still answerable: the index survived.
	turn, err := svc.Ask(context.Background(), session.ID, "revenue again?")
	require.NoError(t, err)
	assert.Equal(t, 1, turn.TurnID)
}

func TestReset_ReturnsSessionToEmpty(t *testing.T) {
	svc := newTestService(&fakeEmbedder{}, &fakeGenerator{answer: "fine"}, Options{})
	session := svc.CreateSession()

	_, err := svc.Ingest(context.Background(), session.ID, []UploadedFile{
		{Name: "report.pdf", Data: []byte("revenue figures")},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Reset(context.Background(), session.ID))

	_, err = svc.Ask(context.Background(), session.ID, "revenue?")
	assert.ErrorIs(t, err, ErrNoDocumentsProcessed)

	// The same bytes are ingestible again after a reset.
	reports, err := svc.Ingest(context.Background(), session.ID, []UploadedFile{
		{Name: "report.pdf", Data: []byte("revenue figures")},
	})
	require.NoError(t, err)
	assert.Empty(t, reports[0].Error)

	info, err := svc.Info(session.ID)
	require.NoError(t, err)
	assert.Equal(t, "ready", info.State)
}

func TestDeleteSession(t *testing.T) {
	svc := newTestService(&fakeEmbedder{}, &fakeGenerator{answer: "x"}, Options{})
	session := svc.CreateSession()

	require.NoError(t, svc.DeleteSession(context.Background(), session.ID))
	_, err := svc.History(session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	err = svc.DeleteSession(context.Background(), session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessions_AreIsolated(t *testing.T) {
	svc := newTestService(&fakeEmbedder{}, &fakeGenerator{answer: "x"}, Options{})
	a := svc.CreateSession()
	b := svc.CreateSession()

	_, err := svc.Ingest(context.Background(), a.ID, []UploadedFile{
		{Name: "report.pdf", Data: []byte("revenue figures")},
	})
	require.NoError(t, err)

	_, err = svc.Ask(context.Background(), b.ID, "revenue?")
	assert.ErrorIs(t, err, ErrNoDocumentsProcessed)

	infoA, err := svc.Info(a.ID)
	require.NoError(t, err)
	infoB, err := svc.Info(b.ID)
	require.NoError(t, err)
	assert.Equal(t, "ready", infoA.State)
	assert.Equal(t, "empty", infoB.State)
}

func TestIngest_EmptyBatch(t *testing.T) {
	svc := newTestService(&fakeEmbedder{}, &fakeGenerator{answer: "x"}, Options{})
	session := svc.CreateSession()

	_, err := svc.Ingest(context.Background(), session.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestIngest_DuplicateWithinOneBatch(t *testing.T) {
	svc := newTestService(&fakeEmbedder{}, &fakeGenerator{answer: "x"}, Options{})
	session := svc.CreateSession()

	reports, err := svc.Ingest(context.Background(), session.ID, []UploadedFile{
		{Name: "a.pdf", Data: []byte("revenue figures")},
		{Name: "b.pdf", Data: []byte("revenue figures")},
	})
	require.NoError(t, err)
	assert.Empty(t, reports[0].Error)
	assert.Contains(t, reports[1].Error, ErrDuplicateDocument.Error())

	docs, err := svc.Documents(session.ID)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}
