package app

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"supportdesk/pkg/domain"
	"supportdesk/pkg/store"
)

const dashboardConcurrency = 8

// ReviewInput is the payload of an agent review.
type ReviewInput struct {
	Rating   *int
	Feedback string
	UserID   *int64
	TicketID *int64
}

// SubmitReview records feedback on an agent.
func (a *App) SubmitReview(ctx context.Context, in ReviewInput) (domain.AgentReview, error) {
	if in.Rating == nil {
		return domain.AgentReview{}, invalid("rating is required")
	}
	if *in.Rating < 1 || *in.Rating > 5 {
		return domain.AgentReview{}, invalid("rating must be between 1 and 5")
	}
	review := domain.AgentReview{
		Rating:   *in.Rating,
		Feedback: strings.TrimSpace(in.Feedback),
		UserID:   in.UserID,
		TicketID: in.TicketID,
	}
	err := a.store.Tx(ctx, func(tx store.Store) error {
		if in.UserID != nil {
			if _, found, err := tx.GetUserByID(ctx, *in.UserID); err != nil {
				return err
			} else if !found {
				return ErrUserNotFound
			}
		}
		if in.TicketID != nil {
			if _, found, err := tx.GetTicket(ctx, *in.TicketID); err != nil {
				return err
			} else if !found {
				return ErrTicketNotFound
			}
		}
		return tx.CreateReview(ctx, &review)
	})
	if err != nil {
		return domain.AgentReview{}, err
	}
	return review, nil
}

// AgentSummary aggregates reviews and resolved tickets for one agent.
func (a *App) AgentSummary(ctx context.Context, agent domain.User) (domain.AgentDashboardRow, error) {
	reviews, err := a.store.ReviewSummary(ctx, agent.ID)
	if err != nil {
		return domain.AgentDashboardRow{}, err
	}
	resolved, err := a.store.ResolutionSummary(ctx, agent.ID)
	if err != nil {
		return domain.AgentDashboardRow{}, err
	}
	return domain.AgentDashboardRow{
		AgentID:         agent.ID,
		Name:            agent.Name,
		Specialization:  agent.Specialization,
		TicketsResolved: resolved.Resolved,
		AvgResolveHours: resolved.AverageResolveHours,
		Rating:          reviews.AverageRating,
		FeedbackCount:   reviews.Count,
		Status:          agent.Status,
	}, nil
}

// Dashboard returns one summary row per internal agent, in id order.
func (a *App) Dashboard(ctx context.Context, p domain.Principal) ([]domain.AgentDashboardRow, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	agents, err := a.store.ListUsersByRole(ctx, domain.RoleInternal)
	if err != nil {
		return nil, err
	}
	rows := make([]domain.AgentDashboardRow, len(agents))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dashboardConcurrency)
	for i, agent := range agents {
		g.Go(func() error {
			row, err := a.AgentSummary(gctx, agent)
			if err != nil {
				return err
			}
			rows[i] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

// Stats returns headline counts for the admin console.
func (a *App) Stats(ctx context.Context, p domain.Principal) (domain.Stats, error) {
	if err := requireAdmin(p); err != nil {
		return domain.Stats{}, err
	}
	var stats domain.Stats
	var err error
	if stats.TotalTickets, err = a.store.TicketCount(ctx, ""); err != nil {
		return domain.Stats{}, err
	}
	if stats.Resolved, err = a.store.TicketCount(ctx, domain.TicketClosed); err != nil {
		return domain.Stats{}, err
	}
	if stats.Products, err = a.store.ProductCount(ctx); err != nil {
		return domain.Stats{}, err
	}
	return stats, nil
}

// ListFeedback returns every review.
func (a *App) ListFeedback(ctx context.Context, p domain.Principal) ([]domain.AgentReview, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	return a.store.ListReviews(ctx)
}
