package domain

import "time"

type UserRole string

const (
	RoleCustomer UserRole = "customer"
	RoleInternal UserRole = "internal"
	RoleAdmin    UserRole = "admin"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleCustomer, RoleInternal, RoleAdmin:
		return true
	}
	return false
}

// Staff reports whether r sees every ticket and order.
func (r UserRole) Staff() bool {
	return r == RoleInternal || r == RoleAdmin
}

// User status is free-form; these are the values the system itself writes.
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

type User struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Name           string    `json:"name"`
	Role           UserRole  `json:"role"`
	Specialization string    `json:"specialization"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// Principal is the identity decoded from a verified bearer credential.
type Principal struct {
	UserID int64
	Role   UserRole
}

type Product struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Model       string  `json:"model"`
	Category    string  `json:"category"`
	Brand       string  `json:"brand"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
}

type Ticket struct {
	ID                int64        `json:"id"`
	Description       string       `json:"description"`
	Status            TicketStatus `json:"status"`
	CustomerID        int64        `json:"customer_id"`
	ProductID         *int64       `json:"product_id"`
	AssignedTo        *int64       `json:"assigned_to"`
	CreatedAt         time.Time    `json:"created_at"`
	ClosedAt          *time.Time   `json:"closed_at"`
	PickupDate        *time.Time   `json:"pickup_date"`
	PreferredTimeSlot string       `json:"preferred_time_slot"`
	Contact           string       `json:"contact"`
	PickupAddress     string       `json:"pickup_address"`
}

// TicketSummary is the slice of a ticket inlined into order payloads.
type TicketSummary struct {
	ID          int64        `json:"id"`
	Description string       `json:"description"`
	Status      TicketStatus `json:"status"`
}

type ComponentOrder struct {
	ID            int64          `json:"id"`
	OrderID       string         `json:"order_id"`
	CustomerID    int64          `json:"customer_id"`
	TicketID      *int64         `json:"ticket_id"`
	Ticket        *TicketSummary `json:"ticket"`
	DeviceType    string         `json:"device_type"`
	ComponentName string         `json:"component_name"`
	Quantity      int            `json:"quantity"`
	Price         float64        `json:"price"`
	Status        OrderStatus    `json:"status"`
	ServiceTier   string         `json:"service_tier"`
	Notes         string         `json:"notes"`
	CreatedAt     time.Time      `json:"created_at"`
	ShippedAt     *time.Time     `json:"shipped_at"`
	DeliveredAt   *time.Time     `json:"delivered_at"`
}

type AgentReview struct {
	ID       int64  `json:"id"`
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback"`
	UserID   *int64 `json:"user_id"`
	TicketID *int64 `json:"ticket_id"`
}

type FAQ struct {
	ID       int64  `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ReviewSummary aggregates the reviews left for one agent.
type ReviewSummary struct {
	AverageRating float64
	Count         int
}

// ResolutionSummary aggregates the closed tickets assigned to one agent.
type ResolutionSummary struct {
	Resolved            int
	AverageResolveHours float64
}

// AgentDashboardRow is one line of the admin dashboard.
type AgentDashboardRow struct {
	AgentID         int64   `json:"agent_id"`
	Name            string  `json:"name"`
	Specialization  string  `json:"specialization"`
	TicketsResolved int     `json:"ticket_resolved"`
	AvgResolveHours float64 `json:"avg_time"`
	Rating          float64 `json:"rating"`
	FeedbackCount   int     `json:"feedback"`
	Status          string  `json:"status"`
}

type Stats struct {
	TotalTickets int64 `json:"total_tickets"`
	Resolved     int64 `json:"resolved"`
	Products     int64 `json:"products"`
}
