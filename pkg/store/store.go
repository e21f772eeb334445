package store

import (
	"context"
	"errors"
	"time"

	"supportdesk/pkg/domain"
)

// ErrDuplicate is returned when a write collides with a unique key.
var ErrDuplicate = errors.New("duplicate key")

// TicketFilter narrows ListTickets. Nil fields do not filter.
type TicketFilter struct {
	CustomerID *int64
	ProductID  *int64
}

// Store defines persistence operations for the support desk.
// Lookups return (value, found, error); a missing row is not an error.
type Store interface {
	// Tx runs fn inside one transaction. Any error returned by fn rolls
	// back every write made through the Store handed to fn.
	Tx(ctx context.Context, fn func(Store) error) error

	// users
	CreateUser(ctx context.Context, u *domain.User) error
	SaveUser(ctx context.Context, u domain.User) error
	GetUserByID(ctx context.Context, id int64) (domain.User, bool, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	ListUsersByRole(ctx context.Context, role domain.UserRole) ([]domain.User, error)
	UserCount(ctx context.Context) (int64, error)

	// products
	CreateProduct(ctx context.Context, p *domain.Product) error
	SaveProduct(ctx context.Context, p domain.Product) error
	GetProduct(ctx context.Context, id int64) (domain.Product, bool, error)
	FindProduct(ctx context.Context, name, category string) (domain.Product, bool, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	ProductCount(ctx context.Context) (int64, error)

	// tickets
	CreateTicket(ctx context.Context, t *domain.Ticket) error
	SaveTicket(ctx context.Context, t domain.Ticket) error
	GetTicket(ctx context.Context, id int64) (domain.Ticket, bool, error)
	ListTickets(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	TicketCount(ctx context.Context, status domain.TicketStatus) (int64, error)
	ResolutionSummary(ctx context.Context, agentID int64) (domain.ResolutionSummary, error)

	// component orders
	CreateOrder(ctx context.Context, o *domain.ComponentOrder) error
	SaveOrder(ctx context.Context, o domain.ComponentOrder) error
	GetOrder(ctx context.Context, id int64) (domain.ComponentOrder, bool, error)
	ListOrders(ctx context.Context, customerID *int64) ([]domain.ComponentOrder, error)
	HasOrderCode(ctx context.Context, code string) (bool, error)

	// reviews
	CreateReview(ctx context.Context, r *domain.AgentReview) error
	ListReviews(ctx context.Context) ([]domain.AgentReview, error)
	ReviewSummary(ctx context.Context, agentID int64) (domain.ReviewSummary, error)

	// faq
	CreateFAQ(ctx context.Context, f *domain.FAQ) error
	ListFAQs(ctx context.Context) ([]domain.FAQ, error)
}

// SessionStore issues and verifies bearer credentials.
type SessionStore interface {
	NewSession(p domain.Principal) (string, error)
	Verify(token string) (domain.Principal, error)
	DeleteSession(token string) error
}

func resolutionSummary(pairs [][2]time.Time) domain.ResolutionSummary {
	if len(pairs) == 0 {
		return domain.ResolutionSummary{}
	}
	var total float64
	for _, p := range pairs {
		total += p[1].Sub(p[0]).Seconds()
	}
	return domain.ResolutionSummary{
		Resolved:            len(pairs),
		AverageResolveHours: total / float64(len(pairs)) / 3600,
	}
}

var (
	_ Store        = (*GormStore)(nil)
	_ Store        = (*MemoryStore)(nil)
	_ SessionStore = (*JWTSessionStore)(nil)
)
