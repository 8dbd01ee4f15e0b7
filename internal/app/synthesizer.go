package app

import (
	"context"
	"fmt"
	"strings"

	"intellidocs/internal/ai"
	"intellidocs/internal/index"
	"intellidocs/internal/model"
)

const systemInstruction = `You are IntelliDocs AI, an intelligent document analysis assistant.
Answer the user's question using ONLY the information in the provided context.
If the answer is not in the context, say "The answer is not available in the provided documents."
Provide detailed, well-structured answers and quote relevant parts when helpful.
Do not make up facts.`

const noGroundingInstruction = `No relevant context was found in the user's documents for this question.
State that the answer is not available in the provided documents. Do not answer from general knowledge.`

// Synthesizer turns retrieved chunks plus conversation history into one
// generation call and derives citations. Citations come from the retrieved
// chunks themselves, never from the model output, so they cannot be
// fabricated.
type Synthesizer struct {
	generator    ai.Generator
	historyTurns int
}

func NewSynthesizer(generator ai.Generator, historyTurns int) *Synthesizer {
	return &Synthesizer{generator: generator, historyTurns: historyTurns}
}

func (s *Synthesizer) Answer(ctx context.Context, question string, retrieved []index.Result, history []model.ConversationTurn) (string, []model.Citation, error) {
	prompt := ai.Prompt{System: systemInstruction}

	// Prior turns, bounded to the most recent window to control prompt size.
	start := len(history) - s.historyTurns
	if start < 0 {
		start = 0
	}
	if start > len(history) {
		start = len(history)
	}
	for _, turn := range history[start:] {
		prompt.Messages = append(prompt.Messages,
			ai.ChatMessage{Role: "user", Content: turn.Question},
			ai.ChatMessage{Role: "assistant", Content: turn.Answer},
		)
	}

	prompt.Messages = append(prompt.Messages, ai.ChatMessage{
		Role:    "user",
		Content: buildUserMessage(question, retrieved),
	})

	answer, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return "", nil, err
	}
	return strings.TrimSpace(answer), citations(retrieved), nil
}

func buildUserMessage(question string, retrieved []index.Result) string {
	var sb strings.Builder
	if len(retrieved) == 0 {
		sb.WriteString(noGroundingInstruction)
	} else {
		sb.WriteString("Context:\n")
		for _, res := range retrieved {
			fmt.Fprintf(&sb, "\n[source: %s, pages %s]\n%s\n---\n",
				res.Chunk.DocumentName, res.Chunk.PageRange(), res.Chunk.Text)
		}
	}
	sb.WriteString("\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\n\nAnswer:")
	return sb.String()
}

// citations lists the source of every retrieved chunk in rank order,
// collapsing repeats of the same document/page range.
func citations(retrieved []index.Result) []model.Citation {
	out := make([]model.Citation, 0, len(retrieved))
	seen := make(map[string]struct{}, len(retrieved))
	for _, res := range retrieved {
		key := res.Chunk.DocumentName + "|" + res.Chunk.PageRange()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, model.Citation{
			ChunkID:      res.Chunk.ID,
			DocumentName: res.Chunk.DocumentName,
			PageRange:    res.Chunk.PageRange(),
		})
	}
	return out
}
