package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"supportdesk/pkg/domain"
	"supportdesk/pkg/events"
	"supportdesk/pkg/store"
)

// orderCodeAttempts bounds the search for an unused order code.
const orderCodeAttempts = 8

// OrderInput is the payload of component order creation.
type OrderInput struct {
	DeviceType    string
	ComponentName string
	TicketID      *int64
	CustomerID    *int64
	Quantity      *int
	Status        string
	ServiceTier   string
	Notes         string
}

// ListOrders returns every order to staff and only their own to customers.
func (a *App) ListOrders(ctx context.Context, p domain.Principal) ([]domain.ComponentOrder, error) {
	if p.Role.Staff() {
		return a.store.ListOrders(ctx, nil)
	}
	return a.store.ListOrders(ctx, &p.UserID)
}

// CreateOrder places a component order priced from the parts table.
func (a *App) CreateOrder(ctx context.Context, p domain.Principal, in OrderInput) (domain.ComponentOrder, error) {
	deviceType := strings.TrimSpace(in.DeviceType)
	if deviceType == "" {
		return domain.ComponentOrder{}, invalid("device_type is required")
	}
	component := strings.TrimSpace(in.ComponentName)
	if component == "" {
		return domain.ComponentOrder{}, invalid("component_name is required")
	}
	quantity := 1
	if in.Quantity != nil {
		if *in.Quantity < 1 {
			return domain.ComponentOrder{}, invalid("quantity must be at least 1")
		}
		quantity = *in.Quantity
	}
	customerID := p.UserID
	if in.CustomerID != nil && *in.CustomerID != p.UserID {
		if !p.Role.Staff() {
			return domain.ComponentOrder{}, forbidden("not allowed")
		}
		customerID = *in.CustomerID
	}
	status := domain.OrderOrdered
	if raw := strings.TrimSpace(in.Status); raw != "" {
		parsed, err := a.parseOrderStatus(raw)
		if err != nil {
			return domain.ComponentOrder{}, err
		}
		status = parsed
	}
	tier := strings.TrimSpace(in.ServiceTier)
	if tier == "" {
		tier = domain.DefaultServiceTier
	}

	now := a.now().UTC()
	order := domain.ComponentOrder{
		CustomerID:    customerID,
		TicketID:      in.TicketID,
		DeviceType:    deviceType,
		ComponentName: component,
		Quantity:      quantity,
		Price:         domain.ComponentPrice(deviceType, component),
		Status:        status,
		ServiceTier:   tier,
		Notes:         strings.TrimSpace(in.Notes),
		CreatedAt:     now,
	}
	stampOrder(&order, now)

	err := a.store.Tx(ctx, func(tx store.Store) error {
		if customerID != p.UserID {
			if _, found, err := tx.GetUserByID(ctx, customerID); err != nil {
				return err
			} else if !found {
				return notFound("Customer not found")
			}
		}
		if in.TicketID != nil {
			t, found, err := tx.GetTicket(ctx, *in.TicketID)
			if err != nil {
				return err
			}
			if !found {
				return ErrTicketNotFound
			}
			if !p.Role.Staff() && t.CustomerID != p.UserID {
				return ErrNotTicketOwner
			}
		}
		for range orderCodeAttempts {
			code := a.orderCode()
			taken, err := tx.HasOrderCode(ctx, code)
			if err != nil {
				return err
			}
			if taken {
				continue
			}
			order.OrderID = code
			err = tx.CreateOrder(ctx, &order)
			if errors.Is(err, store.ErrDuplicate) {
				// A concurrent insert took the code. The transaction may
				// already be aborted, so do not retry inside it.
				return ErrOrderCodeExhausted
			}
			return err
		}
		return ErrOrderCodeExhausted
	})
	if err != nil {
		return domain.ComponentOrder{}, err
	}
	a.publish(ctx, events.Event{
		Type:      events.OrderCreated,
		EntityID:  order.ID,
		Reference: order.OrderID,
		ActorID:   p.UserID,
		Status:    string(order.Status),
	})
	return order, nil
}

func (a *App) parseOrderStatus(raw string) (domain.OrderStatus, error) {
	if a.legacy {
		if parsed, ok := domain.ParseOrderStatus(raw); ok {
			return parsed, nil
		}
		return domain.OrderStatus(raw), nil
	}
	parsed, ok := domain.ParseOrderStatus(raw)
	if !ok {
		return "", invalid(fmt.Sprintf("unknown order status %q", raw))
	}
	return parsed, nil
}

// stampOrder sets shipped_at and delivered_at the first time the order
// reaches the matching status.
func stampOrder(o *domain.ComponentOrder, now time.Time) {
	switch o.Status {
	case domain.OrderShipped:
		if o.ShippedAt == nil {
			t := now
			o.ShippedAt = &t
		}
	case domain.OrderDelivered:
		if o.DeliveredAt == nil {
			t := now
			o.DeliveredAt = &t
		}
	}
}

// UpdateOrderStatus advances an order.
func (a *App) UpdateOrderStatus(ctx context.Context, p domain.Principal, id int64, raw string) (domain.ComponentOrder, error) {
	if err := requireStaff(p); err != nil {
		return domain.ComponentOrder{}, err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.ComponentOrder{}, invalid("status is required")
	}
	next, err := a.parseOrderStatus(raw)
	if err != nil {
		return domain.ComponentOrder{}, err
	}
	var order domain.ComponentOrder
	err = a.store.Tx(ctx, func(tx store.Store) error {
		o, found, err := tx.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		if !found {
			return ErrOrderNotFound
		}
		if !a.legacy && !o.Status.CanTransition(next) {
			return conflict(fmt.Sprintf("cannot move order from %q to %q", o.Status, next))
		}
		o.Status = next
		stampOrder(&o, a.now().UTC())
		order = o
		return tx.SaveOrder(ctx, o)
	})
	if err != nil {
		return domain.ComponentOrder{}, err
	}
	a.publish(ctx, events.Event{
		Type:      events.OrderStatusChanged,
		EntityID:  order.ID,
		Reference: order.OrderID,
		ActorID:   p.UserID,
		Status:    string(order.Status),
	})
	return order, nil
}
