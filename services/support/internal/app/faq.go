package app

import (
	"context"
	"strings"

	"supportdesk/pkg/domain"
)

// AddFAQ stores a knowledge base entry and invalidates the chat cache.
func (a *App) AddFAQ(ctx context.Context, p domain.Principal, question, answer string) (domain.FAQ, error) {
	if err := requireStaff(p); err != nil {
		return domain.FAQ{}, err
	}
	faq := domain.FAQ{
		Question: strings.TrimSpace(question),
		Answer:   strings.TrimSpace(answer),
	}
	if faq.Question == "" || faq.Answer == "" {
		return domain.FAQ{}, invalid("question and answer are required")
	}
	if err := a.store.CreateFAQ(ctx, &faq); err != nil {
		return domain.FAQ{}, err
	}
	a.invalidateKnowledge(ctx)
	return faq, nil
}

// ListFAQs returns the knowledge base.
func (a *App) ListFAQs(ctx context.Context) ([]domain.FAQ, error) {
	return a.store.ListFAQs(ctx)
}
