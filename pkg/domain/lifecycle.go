package domain

import "strings"

type TicketStatus string

const (
	TicketOpen      TicketStatus = "Open"
	TicketNotPicked TicketStatus = "Not Picked"
	TicketPicked    TicketStatus = "Picked"
	TicketInService TicketStatus = "In Service"
	TicketRepaired  TicketStatus = "Repaired"
	TicketDelivered TicketStatus = "Delivered"
	TicketClosed    TicketStatus = "Closed"
)

// ticketTransitions lists the statuses an agent may move a ticket to.
// Closed is only reached through the customer-side close operation.
var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketOpen:      {TicketNotPicked, TicketPicked, TicketInService},
	TicketNotPicked: {TicketOpen, TicketPicked},
	TicketPicked:    {TicketInService},
	TicketInService: {TicketRepaired},
	TicketRepaired:  {TicketInService, TicketDelivered},
	TicketDelivered: {},
	TicketClosed:    {},
}

// ParseTicketStatus matches s case-insensitively against the known statuses.
func ParseTicketStatus(s string) (TicketStatus, bool) {
	s = strings.TrimSpace(s)
	for status := range ticketTransitions {
		if strings.EqualFold(string(status), s) {
			return status, true
		}
	}
	return "", false
}

// CanTransition reports whether an agent may move a ticket from s to next.
// Re-applying the current status is always allowed.
func (s TicketStatus) CanTransition(next TicketStatus) bool {
	if s == next {
		return s != TicketClosed
	}
	for _, candidate := range ticketTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

type OrderStatus string

const (
	OrderOrdered   OrderStatus = "Ordered"
	OrderActive    OrderStatus = "Active"
	OrderShipped   OrderStatus = "Shipped"
	OrderDelivered OrderStatus = "Delivered"
	OrderCancelled OrderStatus = "Cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderOrdered:   {OrderActive, OrderShipped, OrderCancelled},
	OrderActive:    {OrderShipped, OrderCancelled},
	OrderShipped:   {OrderDelivered},
	OrderDelivered: {},
	OrderCancelled: {},
}

// ParseOrderStatus matches s case-insensitively against the known statuses.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	s = strings.TrimSpace(s)
	for status := range orderTransitions {
		if strings.EqualFold(string(status), s) {
			return status, true
		}
	}
	return "", false
}

// CanTransition reports whether an order may move from s to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if s == next {
		return true
	}
	for _, candidate := range orderTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

const (
	DefaultServiceTier    = "Gold"
	DefaultComponentPrice = 50.0
)

var componentPrices = map[string]map[string]float64{
	"mobile": {
		"Battery":       49.99,
		"Screen":        129.99,
		"Charging Port": 29.99,
		"Speaker":       39.99,
		"Microphone":    24.99,
	},
	"tv": {
		"Power Supply":   89.99,
		"HDMI Port":      59.99,
		"Remote Control": 19.99,
		"Backlight":      149.99,
		"Main Board":     199.99,
	},
	"laptop": {
		"Hard Drive":    99.99,
		"RAM":           79.99,
		"Battery":       69.99,
		"Keyboard":      49.99,
		"Display Panel": 249.99,
	},
}

// ComponentPrice looks up the unit price of a replacement part, falling back
// to DefaultComponentPrice for unknown device/component pairs.
func ComponentPrice(deviceType, componentName string) float64 {
	if price, ok := componentPrices[deviceType][componentName]; ok {
		return price
	}
	return DefaultComponentPrice
}
