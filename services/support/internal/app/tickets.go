package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"supportdesk/internal/util"
	"supportdesk/pkg/domain"
	"supportdesk/pkg/events"
	"supportdesk/pkg/store"
)

// TicketInput is the payload of ticket creation. A product can be given by
// id or looked up by name and category.
type TicketInput struct {
	Description       string
	CustomerID        *int64
	ProductID         *int64
	ProductName       string
	Category          string
	AssignedTo        *int64
	Status            string
	PickupDate        string
	PreferredTimeSlot string
	Contact           string
	PickupAddress     string
}

var pickupLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parsePickupDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range pickupLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, ErrInvalidPickupDate
}

// ListTickets returns every ticket to staff and only their own to customers.
func (a *App) ListTickets(ctx context.Context, p domain.Principal) ([]domain.Ticket, error) {
	filter := store.TicketFilter{}
	if !p.Role.Staff() {
		filter.CustomerID = &p.UserID
	}
	return a.store.ListTickets(ctx, filter)
}

// CreateTicket opens a repair ticket for customer_id. Customers may only file
// for themselves.
func (a *App) CreateTicket(ctx context.Context, p domain.Principal, in TicketInput) (domain.Ticket, error) {
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return domain.Ticket{}, invalid("description is required")
	}
	customerID, err := ticketOwner(p, in.CustomerID)
	if err != nil {
		return domain.Ticket{}, err
	}
	if in.AssignedTo != nil && !p.Role.Staff() {
		return domain.Ticket{}, forbidden("only staff can assign tickets")
	}
	pickup, err := parsePickupDate(in.PickupDate)
	if err != nil {
		return domain.Ticket{}, err
	}
	status, err := a.initialTicketStatus(in.Status)
	if err != nil {
		return domain.Ticket{}, err
	}

	ticket := domain.Ticket{
		Description:       description,
		CustomerID:        customerID,
		AssignedTo:        in.AssignedTo,
		CreatedAt:         a.now().UTC(),
		PickupDate:        pickup,
		PreferredTimeSlot: strings.TrimSpace(in.PreferredTimeSlot),
		Contact:           strings.TrimSpace(in.Contact),
		PickupAddress:     strings.TrimSpace(in.PickupAddress),
	}
	err = a.store.Tx(ctx, func(tx store.Store) error {
		if _, found, err := tx.GetUserByID(ctx, customerID); err != nil {
			return err
		} else if !found {
			return notFound("Customer not found")
		}
		lookedUp, err := resolveTicketProduct(ctx, tx, &ticket, in)
		if err != nil {
			return err
		}
		if in.AssignedTo != nil {
			agent, found, err := tx.GetUserByID(ctx, *in.AssignedTo)
			if err != nil {
				return err
			}
			if !found || !agent.Role.Staff() {
				return invalid("assigned_to must reference an agent")
			}
		}
		ticket.Status = status
		if ticket.Status == "" {
			ticket.Status = domain.TicketOpen
			if lookedUp {
				ticket.Status = domain.TicketNotPicked
			}
		}
		return tx.CreateTicket(ctx, &ticket)
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	a.publish(ctx, events.Event{
		Type:     events.TicketCreated,
		EntityID: ticket.ID,
		ActorID:  p.UserID,
		Status:   string(ticket.Status),
	})
	return ticket, nil
}

func ticketOwner(p domain.Principal, requested *int64) (int64, error) {
	if requested == nil || *requested <= 0 {
		return 0, invalid("customer_id is required")
	}
	if !p.Role.Staff() && *requested != p.UserID {
		return 0, ErrNotTicketOwner
	}
	return *requested, nil
}

// resolveTicketProduct sets t.ProductID and reports whether the product was
// matched by name instead of id.
func resolveTicketProduct(ctx context.Context, tx store.Store, t *domain.Ticket, in TicketInput) (bool, error) {
	if in.ProductID != nil {
		if _, found, err := tx.GetProduct(ctx, *in.ProductID); err != nil {
			return false, err
		} else if !found {
			return false, ErrProductNotFound
		}
		id := *in.ProductID
		t.ProductID = &id
		return false, nil
	}
	name := strings.TrimSpace(in.ProductName)
	if name == "" {
		return false, nil
	}
	product, found, err := tx.FindProduct(ctx, name, strings.TrimSpace(in.Category))
	if err != nil {
		return false, err
	}
	if !found {
		return false, ErrProductNotFound
	}
	t.ProductID = &product.ID
	return true, nil
}

// initialTicketStatus validates a caller-supplied status for a new ticket.
// An empty result means the default applies. With enforced transitions a
// ticket can only start as Open or Not Picked.
func (a *App) initialTicketStatus(raw string) (domain.TicketStatus, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	status := domain.TicketStatus(raw)
	if !a.legacy {
		parsed, ok := domain.ParseTicketStatus(raw)
		if !ok {
			return "", invalid(fmt.Sprintf("unknown ticket status %q", raw))
		}
		if parsed != domain.TicketOpen && parsed != domain.TicketNotPicked {
			return "", invalid(fmt.Sprintf("a new ticket must be %s or %s", domain.TicketOpen, domain.TicketNotPicked))
		}
		status = parsed
	}
	if strings.EqualFold(string(status), string(domain.TicketClosed)) {
		return "", invalid("a new ticket cannot be Closed")
	}
	return status, nil
}

// GetTicket returns one ticket.
func (a *App) GetTicket(ctx context.Context, id int64) (domain.Ticket, error) {
	t, found, err := a.store.GetTicket(ctx, id)
	if err != nil {
		return domain.Ticket{}, err
	}
	if !found {
		return domain.Ticket{}, ErrTicketNotFound
	}
	return t, nil
}

// UpdateTicketStatus moves a ticket to a new status. It never touches
// closed_at; only CloseTicket does.
func (a *App) UpdateTicketStatus(ctx context.Context, p domain.Principal, id int64, raw string) (domain.Ticket, error) {
	if err := requireStaff(p); err != nil {
		return domain.Ticket{}, err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.Ticket{}, invalid("status is required")
	}
	next := domain.TicketStatus(raw)
	if !a.legacy {
		parsed, ok := domain.ParseTicketStatus(raw)
		if !ok {
			return domain.Ticket{}, invalid(fmt.Sprintf("unknown ticket status %q", raw))
		}
		next = parsed
	}
	var ticket domain.Ticket
	err := a.store.Tx(ctx, func(tx store.Store) error {
		t, found, err := tx.GetTicket(ctx, id)
		if err != nil {
			return err
		}
		if !found {
			return ErrTicketNotFound
		}
		if !a.legacy && !t.Status.CanTransition(next) {
			return conflict(fmt.Sprintf("cannot move ticket from %q to %q", t.Status, next))
		}
		t.Status = next
		ticket = t
		return tx.SaveTicket(ctx, t)
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	a.publish(ctx, events.Event{
		Type:     events.TicketStatusChanged,
		EntityID: ticket.ID,
		ActorID:  p.UserID,
		Status:   string(ticket.Status),
	})
	return ticket, nil
}

// CloseTicket closes a ticket on behalf of its owner and stamps closed_at.
// Closing again refreshes the timestamp.
func (a *App) CloseTicket(ctx context.Context, p domain.Principal, id int64) (domain.Ticket, error) {
	var ticket domain.Ticket
	err := a.store.Tx(ctx, func(tx store.Store) error {
		t, found, err := tx.GetTicket(ctx, id)
		if err != nil {
			return err
		}
		if !found {
			return ErrTicketNotFound
		}
		if t.CustomerID != p.UserID {
			return ErrNotTicketOwner
		}
		now := a.now().UTC()
		t.Status = domain.TicketClosed
		t.ClosedAt = &now
		ticket = t
		return tx.SaveTicket(ctx, t)
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	a.publish(ctx, events.Event{
		Type:     events.TicketClosed,
		EntityID: ticket.ID,
		ActorID:  p.UserID,
		Status:   string(ticket.Status),
	})
	util.LoggerFromContext(ctx).Info("support.ticket.closed", "ticket_id", ticket.ID, "customer_id", p.UserID)
	return ticket, nil
}

// TicketHistory lists every ticket filed against productID.
func (a *App) TicketHistory(ctx context.Context, productID int64) ([]domain.Ticket, error) {
	return a.store.ListTickets(ctx, store.TicketFilter{ProductID: &productID})
}
