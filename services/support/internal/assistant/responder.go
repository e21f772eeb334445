package assistant

import (
	"context"
	"errors"
	"strings"
	"time"

	"supportdesk/internal/util"
	"supportdesk/pkg/ai"
)

// Reply sources.
const (
	SourceFAQ      = "faq"
	SourceProvider = "provider"
	SourceFallback = "fallback"
)

// ErrEmptyQuery is returned for a blank query.
var ErrEmptyQuery = errors.New("query is required")

// unavailableMessage is the error shown to callers when the provider fails.
// The provider's own error text stays in the logs.
const unavailableMessage = "AI service unavailable"

// Reply is the outcome of one chat turn.
type Reply struct {
	Text     string `json:"response"`
	Source   string `json:"source"`
	Degraded bool   `json:"degraded"`
	Error    string `json:"error,omitempty"`
}

// Responder answers support queries grounded in the knowledge base.
type Responder struct {
	knowledge *Knowledge
	generator ai.TextGenerator
	timeout   time.Duration
}

// NewResponder builds a Responder. A nil generator always degrades to the
// keyword fallback.
func NewResponder(knowledge *Knowledge, generator ai.TextGenerator, timeout time.Duration) *Responder {
	if generator == nil {
		generator = ai.DisabledGenerator{}
	}
	return &Responder{knowledge: knowledge, generator: generator, timeout: timeout}
}

// Answer responds to query. Only a blank query is an error; provider
// failures produce a degraded fallback reply.
func (r *Responder) Answer(ctx context.Context, query string) (Reply, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Reply{}, ErrEmptyQuery
	}
	logger := util.LoggerFromContext(ctx)

	faqs, err := r.knowledge.Entries(ctx)
	if err != nil {
		logger.Warn("support.chat.knowledge_unavailable", "error", err)
		faqs = nil
	}
	if faq, ok := matchFAQ(faqs, query); ok {
		return Reply{Text: faq.Answer, Source: SourceFAQ}, nil
	}

	callCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	text, err := r.generator.GenerateText(callCtx, buildSystemPrompt(faqs, query), query)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ai.ErrEmptyResponse
	}
	if err != nil {
		topic, fallback := keywordFallback(query)
		logger.Warn("support.chat.degraded", "topic", topic, "error", err)
		return Reply{Text: fallback, Source: SourceFallback, Degraded: true, Error: unavailableMessage}, nil
	}
	text = strings.TrimSpace(text)
	if isRefusal(text) {
		text = RefusalText
	}
	return Reply{Text: text, Source: SourceProvider}, nil
}
