package domain

import "testing"

func TestTicketStatusTransitions(t *testing.T) {
	tests := []struct {
		from TicketStatus
		to   TicketStatus
		want bool
	}{
		{TicketOpen, TicketPicked, true},
		{TicketOpen, TicketOpen, true},
		{TicketPicked, TicketInService, true},
		{TicketInService, TicketRepaired, true},
		{TicketRepaired, TicketDelivered, true},
		{TicketOpen, TicketDelivered, false},
		{TicketDelivered, TicketOpen, false},
		{TicketOpen, TicketClosed, false},
		{TicketDelivered, TicketClosed, false},
		{TicketClosed, TicketClosed, false},
		{TicketClosed, TicketOpen, false},
	}
	for _, tc := range tests {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Fatalf("%q -> %q = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestParseTicketStatusIsCaseInsensitive(t *testing.T) {
	got, ok := ParseTicketStatus("  in service ")
	if !ok || got != TicketInService {
		t.Fatalf("parse = %q, %v", got, ok)
	}
	if _, ok := ParseTicketStatus("Lost"); ok {
		t.Fatalf("expected unknown status to fail")
	}
}

func TestOrderStatusTransitions(t *testing.T) {
	if !OrderOrdered.CanTransition(OrderShipped) {
		t.Fatalf("ordered -> shipped should be allowed")
	}
	if !OrderShipped.CanTransition(OrderShipped) {
		t.Fatalf("re-applying shipped should be allowed")
	}
	if OrderDelivered.CanTransition(OrderOrdered) {
		t.Fatalf("delivered -> ordered should be rejected")
	}
	if OrderOrdered.CanTransition(OrderDelivered) {
		t.Fatalf("ordered -> delivered should skip shipping and be rejected")
	}
}

func TestComponentPrice(t *testing.T) {
	tests := []struct {
		device, component string
		want              float64
	}{
		{"mobile", "Battery", 49.99},
		{"laptop", "Battery", 69.99},
		{"tv", "Main Board", 199.99},
		{"unknown", "X", DefaultComponentPrice},
		{"mobile", "Antenna", DefaultComponentPrice},
	}
	for _, tc := range tests {
		if got := ComponentPrice(tc.device, tc.component); got != tc.want {
			t.Fatalf("price(%q, %q) = %v, want %v", tc.device, tc.component, got, tc.want)
		}
	}
}

func TestUserRole(t *testing.T) {
	if !RoleInternal.Staff() || !RoleAdmin.Staff() || RoleCustomer.Staff() {
		t.Fatalf("unexpected staff classification")
	}
	if UserRole("root").Valid() {
		t.Fatalf("unknown role should be invalid")
	}
}
