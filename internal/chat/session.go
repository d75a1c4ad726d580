package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"design-props-rag/internal/models"
	"design-props-rag/internal/table"
)

// ErrEmptyQuestion is returned when Ask is given a blank question
var ErrEmptyQuestion = errors.New("question is empty")

// Completer answers the next turn of a conversation given its full transcript.
// It is stateless: every call resends all prior turns.
type Completer interface {
	Complete(ctx context.Context, transcript []models.Message) (string, error)
}

// Session is a conversation about one design, seeded with its property table
type Session struct {
	ID        uuid.UUID
	DesignID  string
	CreatedAt time.Time
	// Table is the property table the grounding text was rendered from, if any.
	Table *table.Table

	completer Completer

	mu         sync.Mutex
	transcript []models.Message
}

// NewSession starts a conversation whose first turn is the grounding text
func NewSession(designID, grounding string, c Completer) *Session {
	return &Session{
		ID:        uuid.New(),
		DesignID:  designID,
		CreatedAt: time.Now(),
		completer: c,
		transcript: []models.Message{
			{Role: models.RoleSystem, Text: grounding},
		},
	}
}

// Ask appends the question, completes with the whole transcript and records
// the answer. Concurrent asks on one session run one at a time. When the
// completion fails the question is dropped again so the transcript never
// ends on an unanswered turn.
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", ErrEmptyQuestion
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.transcript = append(s.transcript, models.Message{Role: models.RoleUser, Text: question})
	answer, err := s.completer.Complete(ctx, s.snapshot())
	if err != nil {
		s.transcript = s.transcript[:len(s.transcript)-1]
		return "", fmt.Errorf("complete: %w", err)
	}
	s.transcript = append(s.transcript, models.Message{Role: models.RoleAssistant, Text: answer})

	return answer, nil
}

// Transcript returns a copy of the conversation so far
func (s *Session) Transcript() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Turns counts the answered questions
func (s *Session) Turns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (len(s.transcript) - 1) / 2
}

func (s *Session) snapshot() []models.Message {
	out := make([]models.Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}
