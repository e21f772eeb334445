package store

import "time"

// GORM models used for persistence.
type UserModel struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	Email          string `gorm:"size:120;uniqueIndex;not null"`
	PasswordHash   string `gorm:"size:256"`
	Name           string `gorm:"size:120"`
	Role           string `gorm:"size:32;not null;default:customer;index"`
	Specialization string `gorm:"size:100"`
	Status         string `gorm:"size:50"`
	CreatedAt      time.Time
}

func (UserModel) TableName() string { return "users" }

type ProductModel struct {
	ID          int64  `gorm:"primaryKey;autoIncrement:false"`
	Name        string `gorm:"size:200;not null"`
	Model       string `gorm:"size:100"`
	Category    string `gorm:"size:100;index"`
	Brand       string `gorm:"size:100"`
	Price       float64
	Description string `gorm:"type:text"`
}

func (ProductModel) TableName() string { return "products" }

type TicketModel struct {
	ID                int64  `gorm:"primaryKey;autoIncrement"`
	Description       string `gorm:"type:text;not null"`
	Status            string `gorm:"size:50;not null;default:Open;index"`
	CustomerID        int64  `gorm:"not null;index"`
	ProductID         *int64 `gorm:"index"`
	AssignedTo        *int64 `gorm:"index"`
	CreatedAt         time.Time
	ClosedAt          *time.Time
	PickupDate        *time.Time
	PreferredTimeSlot string `gorm:"size:30"`
	Contact           string `gorm:"size:30"`
	PickupAddress     string `gorm:"type:text"`
}

func (TicketModel) TableName() string { return "tickets" }

type ComponentOrderModel struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	OrderID       string `gorm:"size:50;uniqueIndex;not null"`
	CustomerID    int64  `gorm:"not null;index"`
	TicketID      *int64 `gorm:"index"`
	DeviceType    string `gorm:"size:50;not null"`
	ComponentName string `gorm:"size:200;not null"`
	Quantity      int    `gorm:"not null;default:1"`
	Price         float64
	Status        string `gorm:"size:50;not null;default:Ordered"`
	ServiceTier   string `gorm:"size:50;not null;default:Gold"`
	Notes         string `gorm:"type:text"`
	CreatedAt     time.Time
	ShippedAt     *time.Time
	DeliveredAt   *time.Time

	Ticket *TicketModel `gorm:"foreignKey:TicketID"`
}

func (ComponentOrderModel) TableName() string { return "component_orders" }

type AgentReviewModel struct {
	ID       int64  `gorm:"primaryKey;autoIncrement"`
	Rating   int    `gorm:"not null"`
	Feedback string `gorm:"size:100"`
	UserID   *int64 `gorm:"index"`
	TicketID *int64 `gorm:"index"`
}

func (AgentReviewModel) TableName() string { return "agent_review" }

type FAQModel struct {
	ID       int64  `gorm:"primaryKey;autoIncrement"`
	Question string `gorm:"type:text"`
	Answer   string `gorm:"type:text"`
}

func (FAQModel) TableName() string { return "faq" }
