package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"supportdesk/pkg/domain"
)

// memoryData is the whole dataset of a MemoryStore. Tx works on a deep copy
// and swaps it in only when fn succeeds.
type memoryData struct {
	users    map[int64]domain.User
	products map[int64]domain.Product
	tickets  map[int64]domain.Ticket
	orders   map[int64]domain.ComponentOrder
	reviews  map[int64]domain.AgentReview
	faqs     map[int64]domain.FAQ
	nextID   map[string]int64
}

func newMemoryData() *memoryData {
	return &memoryData{
		users:    map[int64]domain.User{},
		products: map[int64]domain.Product{},
		tickets:  map[int64]domain.Ticket{},
		orders:   map[int64]domain.ComponentOrder{},
		reviews:  map[int64]domain.AgentReview{},
		faqs:     map[int64]domain.FAQ{},
		nextID:   map[string]int64{},
	}
}

func (d *memoryData) clone() *memoryData {
	return &memoryData{
		users:    cloneMap(d.users),
		products: cloneMap(d.products),
		tickets:  cloneMap(d.tickets),
		orders:   cloneMap(d.orders),
		reviews:  cloneMap(d.reviews),
		faqs:     cloneMap(d.faqs),
		nextID:   cloneMap(d.nextID),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d *memoryData) allocate(table string) int64 {
	d.nextID[table]++
	return d.nextID[table]
}

// MemoryStore is an in-process Store used by tests and the dev profile.
type MemoryStore struct {
	mu   *sync.RWMutex
	data *memoryData
	inTx bool
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{mu: &sync.RWMutex{}, data: newMemoryData()}
}

// Tx runs fn against a copy of the data and commits it only on success.
// Transactions are serialized.
func (s *MemoryStore) Tx(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &MemoryStore{mu: &sync.RWMutex{}, data: s.data.clone(), inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	s.data = tx.data
	return nil
}

func (s *MemoryStore) read() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *MemoryStore) write() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func sortedValues[V any](m map[int64]V, keep func(V) bool) []V {
	ids := make([]int64, 0, len(m))
	for id, v := range m {
		if keep == nil || keep(v) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	out := make([]V, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

// CreateUser inserts a user and assigns its ID.
func (s *MemoryStore) CreateUser(_ context.Context, u *domain.User) error {
	defer s.write()()
	for _, existing := range s.data.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicate
		}
	}
	if u.ID == 0 {
		u.ID = s.data.allocate("users")
	} else if u.ID > s.data.nextID["users"] {
		s.data.nextID["users"] = u.ID
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.data.users[u.ID] = *u
	return nil
}

// SaveUser overwrites an existing user.
func (s *MemoryStore) SaveUser(_ context.Context, u domain.User) error {
	defer s.write()()
	for id, existing := range s.data.users {
		if id != u.ID && strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicate
		}
	}
	s.data.users[u.ID] = u
	return nil
}

// GetUserByID returns a user by ID.
func (s *MemoryStore) GetUserByID(_ context.Context, id int64) (domain.User, bool, error) {
	defer s.read()()
	u, ok := s.data.users[id]
	return u, ok, nil
}

// GetUserByEmail looks up a user by email.
func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (domain.User, bool, error) {
	defer s.read()()
	for _, u := range s.data.users {
		if strings.EqualFold(u.Email, email) {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

// ListUsers returns all users ordered by id.
func (s *MemoryStore) ListUsers(_ context.Context) ([]domain.User, error) {
	defer s.read()()
	return sortedValues(s.data.users, nil), nil
}

// ListUsersByRole returns users holding role.
func (s *MemoryStore) ListUsersByRole(_ context.Context, role domain.UserRole) ([]domain.User, error) {
	defer s.read()()
	return sortedValues(s.data.users, func(u domain.User) bool { return u.Role == role }), nil
}

// UserCount returns number of users.
func (s *MemoryStore) UserCount(_ context.Context) (int64, error) {
	defer s.read()()
	return int64(len(s.data.users)), nil
}

// CreateProduct inserts a product under its caller-supplied ID.
func (s *MemoryStore) CreateProduct(_ context.Context, p *domain.Product) error {
	defer s.write()()
	if p.ID == 0 {
		p.ID = s.data.allocate("products")
	} else if _, exists := s.data.products[p.ID]; exists {
		return ErrDuplicate
	} else if p.ID > s.data.nextID["products"] {
		s.data.nextID["products"] = p.ID
	}
	s.data.products[p.ID] = *p
	return nil
}

// SaveProduct overwrites an existing product.
func (s *MemoryStore) SaveProduct(_ context.Context, p domain.Product) error {
	defer s.write()()
	s.data.products[p.ID] = p
	return nil
}

// GetProduct returns a product by ID.
func (s *MemoryStore) GetProduct(_ context.Context, id int64) (domain.Product, bool, error) {
	defer s.read()()
	p, ok := s.data.products[id]
	return p, ok, nil
}

// FindProduct returns the lowest-id product matching name and category.
func (s *MemoryStore) FindProduct(_ context.Context, name, category string) (domain.Product, bool, error) {
	defer s.read()()
	matches := sortedValues(s.data.products, func(p domain.Product) bool {
		if name != "" && !strings.EqualFold(p.Name, name) {
			return false
		}
		return category == "" || strings.EqualFold(p.Category, category)
	})
	if len(matches) == 0 {
		return domain.Product{}, false, nil
	}
	return matches[0], true, nil
}

// ListProducts returns the catalog ordered by id.
func (s *MemoryStore) ListProducts(_ context.Context) ([]domain.Product, error) {
	defer s.read()()
	return sortedValues(s.data.products, nil), nil
}

// DeleteProduct removes a product.
func (s *MemoryStore) DeleteProduct(_ context.Context, id int64) error {
	defer s.write()()
	delete(s.data.products, id)
	return nil
}

// ProductCount returns number of products.
func (s *MemoryStore) ProductCount(_ context.Context) (int64, error) {
	defer s.read()()
	return int64(len(s.data.products)), nil
}

// CreateTicket inserts a ticket and assigns its ID.
func (s *MemoryStore) CreateTicket(_ context.Context, t *domain.Ticket) error {
	defer s.write()()
	t.ID = s.data.allocate("tickets")
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	s.data.tickets[t.ID] = *t
	return nil
}

// SaveTicket overwrites an existing ticket.
func (s *MemoryStore) SaveTicket(_ context.Context, t domain.Ticket) error {
	defer s.write()()
	s.data.tickets[t.ID] = t
	return nil
}

// GetTicket returns a ticket by ID.
func (s *MemoryStore) GetTicket(_ context.Context, id int64) (domain.Ticket, bool, error) {
	defer s.read()()
	t, ok := s.data.tickets[id]
	return t, ok, nil
}

// ListTickets returns tickets matching filter ordered by id.
func (s *MemoryStore) ListTickets(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	defer s.read()()
	return sortedValues(s.data.tickets, func(t domain.Ticket) bool {
		if filter.CustomerID != nil && t.CustomerID != *filter.CustomerID {
			return false
		}
		if filter.ProductID != nil && (t.ProductID == nil || *t.ProductID != *filter.ProductID) {
			return false
		}
		return true
	}), nil
}

// TicketCount counts tickets, optionally only those in status.
func (s *MemoryStore) TicketCount(_ context.Context, status domain.TicketStatus) (int64, error) {
	defer s.read()()
	var n int64
	for _, t := range s.data.tickets {
		if status == "" || t.Status == status {
			n++
		}
	}
	return n, nil
}

// ResolutionSummary aggregates closed tickets assigned to agentID.
func (s *MemoryStore) ResolutionSummary(_ context.Context, agentID int64) (domain.ResolutionSummary, error) {
	defer s.read()()
	var pairs [][2]time.Time
	for _, t := range sortedValues(s.data.tickets, nil) {
		if t.AssignedTo == nil || *t.AssignedTo != agentID || t.ClosedAt == nil {
			continue
		}
		pairs = append(pairs, [2]time.Time{t.CreatedAt, *t.ClosedAt})
	}
	return resolutionSummary(pairs), nil
}

// CreateOrder inserts a component order and assigns its ID.
func (s *MemoryStore) CreateOrder(_ context.Context, o *domain.ComponentOrder) error {
	defer s.write()()
	for _, existing := range s.data.orders {
		if existing.OrderID == o.OrderID {
			return ErrDuplicate
		}
	}
	o.ID = s.data.allocate("orders")
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	o.Ticket = nil
	s.data.orders[o.ID] = *o
	*o = s.withTicketSummary(*o)
	return nil
}

// SaveOrder overwrites an existing component order.
func (s *MemoryStore) SaveOrder(_ context.Context, o domain.ComponentOrder) error {
	defer s.write()()
	for id, existing := range s.data.orders {
		if id != o.ID && existing.OrderID == o.OrderID {
			return ErrDuplicate
		}
	}
	o.Ticket = nil
	s.data.orders[o.ID] = o
	return nil
}

// GetOrder returns an order with its linked ticket summary.
func (s *MemoryStore) GetOrder(_ context.Context, id int64) (domain.ComponentOrder, bool, error) {
	defer s.read()()
	o, ok := s.data.orders[id]
	if !ok {
		return domain.ComponentOrder{}, false, nil
	}
	return s.withTicketSummary(o), true, nil
}

// ListOrders returns orders, optionally only those of one customer.
func (s *MemoryStore) ListOrders(_ context.Context, customerID *int64) ([]domain.ComponentOrder, error) {
	defer s.read()()
	orders := sortedValues(s.data.orders, func(o domain.ComponentOrder) bool {
		return customerID == nil || o.CustomerID == *customerID
	})
	for i := range orders {
		orders[i] = s.withTicketSummary(orders[i])
	}
	return orders, nil
}

func (s *MemoryStore) withTicketSummary(o domain.ComponentOrder) domain.ComponentOrder {
	if o.TicketID == nil {
		return o
	}
	if t, ok := s.data.tickets[*o.TicketID]; ok {
		o.Ticket = &domain.TicketSummary{ID: t.ID, Description: t.Description, Status: t.Status}
	}
	return o
}

// HasOrderCode reports whether a human-facing order code is taken.
func (s *MemoryStore) HasOrderCode(_ context.Context, code string) (bool, error) {
	defer s.read()()
	for _, o := range s.data.orders {
		if o.OrderID == code {
			return true, nil
		}
	}
	return false, nil
}

// CreateReview records an agent review.
func (s *MemoryStore) CreateReview(_ context.Context, r *domain.AgentReview) error {
	defer s.write()()
	r.ID = s.data.allocate("reviews")
	s.data.reviews[r.ID] = *r
	return nil
}

// ListReviews returns every review ordered by id.
func (s *MemoryStore) ListReviews(_ context.Context) ([]domain.AgentReview, error) {
	defer s.read()()
	return sortedValues(s.data.reviews, nil), nil
}

// ReviewSummary returns the average rating and review count for agentID.
func (s *MemoryStore) ReviewSummary(_ context.Context, agentID int64) (domain.ReviewSummary, error) {
	defer s.read()()
	var sum, count int
	for _, r := range s.data.reviews {
		if r.UserID != nil && *r.UserID == agentID {
			sum += r.Rating
			count++
		}
	}
	if count == 0 {
		return domain.ReviewSummary{}, nil
	}
	return domain.ReviewSummary{AverageRating: float64(sum) / float64(count), Count: count}, nil
}

// CreateFAQ records a knowledge base entry.
func (s *MemoryStore) CreateFAQ(_ context.Context, f *domain.FAQ) error {
	defer s.write()()
	f.ID = s.data.allocate("faqs")
	s.data.faqs[f.ID] = *f
	return nil
}

// ListFAQs returns the knowledge base ordered by id.
func (s *MemoryStore) ListFAQs(_ context.Context) ([]domain.FAQ, error) {
	defer s.read()()
	return sortedValues(s.data.faqs, nil), nil
}
