package app

import (
	"context"

	"supportdesk/internal/util"
	"supportdesk/pkg/auth"
	"supportdesk/pkg/domain"
	"supportdesk/pkg/store"
)

type seedUser struct {
	email, password, name, specialization string
	role                                  domain.UserRole
}

var demoUsers = []seedUser{
	{email: "customer@test.com", password: "password123", name: "John Customer", role: domain.RoleCustomer},
	{email: "admin@test.com", password: "admin123", name: "Admin User", role: domain.RoleAdmin},
	{email: "agent@test.com", password: "agent1234", name: "Alex Agent", role: domain.RoleInternal, specialization: "laptop"},
}

var demoProducts = []domain.Product{
	{Name: "ThinkPad X1 Carbon", Category: "laptop", Brand: "Lenovo", Price: 1299.99},
	{Name: "Galaxy S24", Category: "mobile", Brand: "Samsung", Price: 899.99},
	{Name: "MacBook Pro 14", Category: "laptop", Brand: "Apple", Price: 1999.99},
	{Name: "iPhone 15 Pro", Category: "mobile", Brand: "Apple", Price: 1199.99},
	{Name: `OLED 65"`, Category: "tv", Brand: "LG", Price: 1499.99},
	{Name: "Side-by-side Refrigerator", Category: "refrigerator", Brand: "Whirlpool", Price: 1899.99},
	{Name: "Galaxy S23", Category: "mobile", Brand: "Samsung", Price: 799.99},
	{Name: "iPhone 14", Category: "mobile", Brand: "Apple", Price: 999.99},
	{Name: "Pixel 8 Pro", Category: "mobile", Brand: "Google", Price: 899.99},
	{Name: "OnePlus 12", Category: "mobile", Brand: "OnePlus", Price: 799.99},
	{Name: "Xiaomi 14", Category: "mobile", Brand: "Xiaomi", Price: 699.99},
	{Name: `QLED 55"`, Category: "tv", Brand: "Samsung", Price: 1299.99},
	{Name: `LED 43"`, Category: "tv", Brand: "Sony", Price: 599.99},
	{Name: `OLED 77"`, Category: "tv", Brand: "LG", Price: 2499.99},
	{Name: `QLED 65"`, Category: "tv", Brand: "Samsung", Price: 1599.99},
	{Name: `Smart TV 50"`, Category: "tv", Brand: "TCL", Price: 799.99},
	{Name: "Dell XPS 15", Category: "laptop", Brand: "Dell", Price: 1799.99},
	{Name: "HP Spectre x360", Category: "laptop", Brand: "HP", Price: 1499.99},
	{Name: "ASUS ROG Strix", Category: "laptop", Brand: "ASUS", Price: 2199.99},
	{Name: "Surface Laptop 5", Category: "laptop", Brand: "Microsoft", Price: 1299.99},
}

type seedTicket struct {
	description, slot, contact, address string
	status                              domain.TicketStatus
	product                             int
	pickupInDays                        int
}

var demoTickets = []seedTicket{
	{"Laptop screen flickering intermittently during video calls", "2:00 PM - 4:00 PM", "+1 (555) 123-4567", "123 Main Street, Apt 4B, New York, NY 10001", domain.TicketInService, 0, 2},
	{"Mobile charging port is loose and won't hold cable properly", "10:00 AM - 12:00 PM", "+1 (555) 987-6543", "456 Oak Avenue, Suite 200, Boston, MA 02101", domain.TicketPicked, 1, 1},
	{"MacBook Pro randomly shuts down when battery is above 50%", "9:00 AM - 11:00 AM", "+1 (555) 456-7890", "789 Pine Street, Floor 3, San Francisco, CA 94102", domain.TicketNotPicked, 2, 3},
	{"iPhone camera app crashes when trying to record 4K video", "1:00 PM - 3:00 PM", "+1 (555) 234-5678", "321 Cedar Lane, Unit 15B, Los Angeles, CA 90210", domain.TicketRepaired, 3, 1},
	{"TV display has vertical lines and color distortion on the right side", "3:00 PM - 5:00 PM", "+1 (555) 345-6789", "654 Maple Drive, House 12, Chicago, IL 60601", domain.TicketDelivered, 4, -1},
}

var demoFAQs = []domain.FAQ{
	{Question: "How do I track my repair status?", Answer: "You can track your repair status in real-time through the 'Track Tickets' section. Simply select your ticket number to view the current stage of your repair, estimated completion time, and any updates from our service team."},
	{Question: "What's included in my Gold service tier?", Answer: "Gold tier includes priority scheduling, free pickup and delivery, expedited repairs (24-48 hours), free diagnostics, and 24/7 customer support. You also get extended warranty coverage and priority access to replacement components."},
	{Question: "How do I schedule a pickup?", Answer: "Click on 'Schedule Pickup' from the dashboard. Select your device, preferred date and time, and provide your pickup address. You'll receive SMS and email confirmation with your pickup details."},
	{Question: "Can I order replacement components myself?", Answer: "Yes, you can order replacement components through the 'Order Components' option on the dashboard. Select your device type, choose the components you need, and we'll ship them to you. Installation guides are available in the Resources section."},
}

// SeedDemoData fills an empty database with demo accounts, catalog, tickets,
// orders and FAQs. It reports false when users already exist.
func (a *App) SeedDemoData(ctx context.Context) (bool, error) {
	seeded := false
	err := a.store.Tx(ctx, func(tx store.Store) error {
		count, err := tx.UserCount(ctx)
		if err != nil || count > 0 {
			return err
		}
		now := a.now().UTC()

		users := make(map[domain.UserRole]int64, len(demoUsers))
		for _, su := range demoUsers {
			hash, err := auth.HashPassword(su.password)
			if err != nil {
				return err
			}
			u := domain.User{
				Email:          su.email,
				PasswordHash:   hash,
				Name:           su.name,
				Role:           su.role,
				Specialization: su.specialization,
				Status:         domain.UserStatusActive,
				CreatedAt:      now,
			}
			if err := tx.CreateUser(ctx, &u); err != nil {
				return err
			}
			users[su.role] = u.ID
		}

		productIDs := make([]int64, len(demoProducts))
		for i, p := range demoProducts {
			p.ID = int64(i + 1)
			if err := tx.CreateProduct(ctx, &p); err != nil {
				return err
			}
			productIDs[i] = p.ID
		}

		ticketIDs := make([]int64, len(demoTickets))
		for i, st := range demoTickets {
			pickup := now.AddDate(0, 0, st.pickupInDays)
			productID := productIDs[st.product]
			agentID := users[domain.RoleInternal]
			t := domain.Ticket{
				Description:       st.description,
				Status:            st.status,
				CustomerID:        users[domain.RoleCustomer],
				ProductID:         &productID,
				AssignedTo:        &agentID,
				CreatedAt:         now,
				PickupDate:        &pickup,
				PreferredTimeSlot: st.slot,
				Contact:           st.contact,
				PickupAddress:     st.address,
			}
			if err := tx.CreateTicket(ctx, &t); err != nil {
				return err
			}
			ticketIDs[i] = t.ID
		}

		orders := []domain.ComponentOrder{
			{OrderID: "P-1001", TicketID: &ticketIDs[0], DeviceType: "laptop", ComponentName: "Battery", Notes: "Replacement battery for ThinkPad"},
			{OrderID: "P-1002", TicketID: &ticketIDs[1], DeviceType: "mobile", ComponentName: "Charging Port", Notes: "Charging port repair for Galaxy S24"},
		}
		for _, o := range orders {
			o.CustomerID = users[domain.RoleCustomer]
			o.Quantity = 1
			o.Price = domain.ComponentPrice(o.DeviceType, o.ComponentName)
			o.Status = domain.OrderActive
			o.ServiceTier = domain.DefaultServiceTier
			o.CreatedAt = now
			if err := tx.CreateOrder(ctx, &o); err != nil {
				return err
			}
		}

		for _, f := range demoFAQs {
			if err := tx.CreateFAQ(ctx, &f); err != nil {
				return err
			}
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if seeded {
		a.invalidateKnowledge(ctx)
		util.LoggerFromContext(ctx).Info("support.seed.completed",
			"users", len(demoUsers), "products", len(demoProducts), "tickets", len(demoTickets))
	}
	return seeded, nil
}
