package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"supportdesk/pkg/domain"
)

const migrateLockID int64 = 51735173

const (
	dialectPostgres = "postgres"
	dialectMySQL    = "mysql"
)

// GormStore implements Store using GORM over Postgres or MySQL.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations. DSNs prefixed with
// "mysql://" or written in go-sql-driver form (user:pass@tcp(host)/db) use
// MySQL; everything else is handed to the Postgres driver.
func NewGormStore(dsn string) (*GormStore, error) {
	dialector, dialect := openDialector(dsn)
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	migrate := func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&UserModel{},
			&ProductModel{},
			&TicketModel{},
			&ComponentOrderModel{},
			&AgentReviewModel{},
			&FAQModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}
	if dialect == dialectPostgres {
		err = withMigrationLock(db, migrate)
	} else {
		err = migrate(db)
	}
	if err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// NewGormStoreFromDB wraps an already opened connection without migrating.
func NewGormStoreFromDB(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func openDialector(dsn string) (gorm.Dialector, string) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case strings.HasPrefix(dsn, "mysql://"):
		return mysql.Open(strings.TrimPrefix(dsn, "mysql://")), dialectMySQL
	case strings.Contains(dsn, "@tcp("):
		if strings.Contains(dsn, "tidbcloud.com") && !strings.Contains(dsn, "tls=") {
			if strings.Contains(dsn, "?") {
				dsn += "&tls=true"
			} else {
				dsn += "?tls=true"
			}
		}
		return mysql.Open(dsn), dialectMySQL
	default:
		return postgres.Open(dsn), dialectPostgres
	}
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// Tx runs fn inside a database transaction.
func (s *GormStore) Tx(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

// first loads one row into dest, reporting a missing row as found=false.
func (s *GormStore) first(ctx context.Context, dest any, conds ...any) (bool, error) {
	if err := s.db.WithContext(ctx).First(dest, conds...).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CreateUser inserts a user and assigns its ID.
func (s *GormStore) CreateUser(ctx context.Context, u *domain.User) error {
	model := userToModel(*u)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return translate(err)
	}
	*u = userFromModel(model)
	return nil
}

// SaveUser overwrites every column of an existing user.
func (s *GormStore) SaveUser(ctx context.Context, u domain.User) error {
	model := userToModel(u)
	return translate(s.db.WithContext(ctx).Save(&model).Error)
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(ctx context.Context, id int64) (domain.User, bool, error) {
	var model UserModel
	ok, err := s.first(ctx, &model, "id = ?", id)
	if err != nil || !ok {
		return domain.User{}, ok, err
	}
	return userFromModel(model), true, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error) {
	var model UserModel
	ok, err := s.first(ctx, &model, "email = ?", email)
	if err != nil || !ok {
		return domain.User{}, ok, err
	}
	return userFromModel(model), true, nil
}

// ListUsers returns all users ordered by id.
func (s *GormStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.listUsers(ctx)
}

// ListUsersByRole returns users holding role.
func (s *GormStore) ListUsersByRole(ctx context.Context, role domain.UserRole) ([]domain.User, error) {
	return s.listUsers(ctx, "role = ?", string(role))
}

func (s *GormStore) listUsers(ctx context.Context, conds ...any) ([]domain.User, error) {
	var models []UserModel
	tx := s.db.WithContext(ctx).Order("id ASC")
	if len(conds) > 0 {
		tx = tx.Where(conds[0], conds[1:]...)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// UserCount returns number of users.
func (s *GormStore) UserCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&UserModel{}).Count(&count).Error
	return count, err
}

// CreateProduct inserts a product under its caller-supplied ID.
func (s *GormStore) CreateProduct(ctx context.Context, p *domain.Product) error {
	model := productToModel(*p)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return translate(err)
	}
	*p = productFromModel(model)
	return nil
}

// SaveProduct overwrites an existing product.
func (s *GormStore) SaveProduct(ctx context.Context, p domain.Product) error {
	model := productToModel(p)
	return s.db.WithContext(ctx).Save(&model).Error
}

// GetProduct returns a product by ID.
func (s *GormStore) GetProduct(ctx context.Context, id int64) (domain.Product, bool, error) {
	var model ProductModel
	ok, err := s.first(ctx, &model, "id = ?", id)
	if err != nil || !ok {
		return domain.Product{}, ok, err
	}
	return productFromModel(model), true, nil
}

// FindProduct returns the first product matching name and, when given,
// category (both case-insensitive).
func (s *GormStore) FindProduct(ctx context.Context, name, category string) (domain.Product, bool, error) {
	var model ProductModel
	tx := s.db.WithContext(ctx).Order("id ASC")
	if name != "" {
		tx = tx.Where("LOWER(name) = ?", strings.ToLower(name))
	}
	if category != "" {
		tx = tx.Where("LOWER(category) = ?", strings.ToLower(category))
	}
	if err := tx.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Product{}, false, nil
		}
		return domain.Product{}, false, err
	}
	return productFromModel(model), true, nil
}

// ListProducts returns the catalog ordered by id.
func (s *GormStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var models []ProductModel
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Product, 0, len(models))
	for _, m := range models {
		res = append(res, productFromModel(m))
	}
	return res, nil
}

// DeleteProduct removes a product.
func (s *GormStore) DeleteProduct(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Delete(&ProductModel{}, "id = ?", id).Error
}

// ProductCount returns number of products.
func (s *GormStore) ProductCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&ProductModel{}).Count(&count).Error
	return count, err
}

// CreateTicket inserts a ticket and assigns its ID.
func (s *GormStore) CreateTicket(ctx context.Context, t *domain.Ticket) error {
	model := ticketToModel(*t)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return translate(err)
	}
	*t = ticketFromModel(model)
	return nil
}

// SaveTicket overwrites an existing ticket.
func (s *GormStore) SaveTicket(ctx context.Context, t domain.Ticket) error {
	model := ticketToModel(t)
	return s.db.WithContext(ctx).Save(&model).Error
}

// GetTicket returns a ticket by ID.
func (s *GormStore) GetTicket(ctx context.Context, id int64) (domain.Ticket, bool, error) {
	var model TicketModel
	ok, err := s.first(ctx, &model, "id = ?", id)
	if err != nil || !ok {
		return domain.Ticket{}, ok, err
	}
	return ticketFromModel(model), true, nil
}

// ListTickets returns tickets matching filter ordered by id.
func (s *GormStore) ListTickets(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	tx := s.db.WithContext(ctx).Order("id ASC")
	if filter.CustomerID != nil {
		tx = tx.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.ProductID != nil {
		tx = tx.Where("product_id = ?", *filter.ProductID)
	}
	var models []TicketModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Ticket, 0, len(models))
	for _, m := range models {
		res = append(res, ticketFromModel(m))
	}
	return res, nil
}

// TicketCount counts tickets, optionally only those in status.
func (s *GormStore) TicketCount(ctx context.Context, status domain.TicketStatus) (int64, error) {
	var count int64
	tx := s.db.WithContext(ctx).Model(&TicketModel{})
	if status != "" {
		tx = tx.Where("status = ?", string(status))
	}
	err := tx.Count(&count).Error
	return count, err
}

// ResolutionSummary aggregates closed tickets assigned to agentID. The
// duration arithmetic runs in Go so the query stays dialect neutral.
func (s *GormStore) ResolutionSummary(ctx context.Context, agentID int64) (domain.ResolutionSummary, error) {
	var rows []struct {
		CreatedAt time.Time
		ClosedAt  time.Time
	}
	if err := s.db.WithContext(ctx).Model(&TicketModel{}).
		Select("created_at, closed_at").
		Where("assigned_to = ? AND closed_at IS NOT NULL", agentID).
		Scan(&rows).Error; err != nil {
		return domain.ResolutionSummary{}, err
	}
	pairs := make([][2]time.Time, 0, len(rows))
	for _, r := range rows {
		pairs = append(pairs, [2]time.Time{r.CreatedAt, r.ClosedAt})
	}
	return resolutionSummary(pairs), nil
}

// CreateOrder inserts a component order and assigns its ID.
func (s *GormStore) CreateOrder(ctx context.Context, o *domain.ComponentOrder) error {
	model := orderToModel(*o)
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&model).Error; err != nil {
		return translate(err)
	}
	created, _, err := s.GetOrder(ctx, model.ID)
	if err != nil {
		return err
	}
	*o = created
	return nil
}

// SaveOrder overwrites an existing component order.
func (s *GormStore) SaveOrder(ctx context.Context, o domain.ComponentOrder) error {
	model := orderToModel(o)
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Save(&model).Error)
}

// GetOrder returns an order with its linked ticket summary.
func (s *GormStore) GetOrder(ctx context.Context, id int64) (domain.ComponentOrder, bool, error) {
	var model ComponentOrderModel
	if err := s.db.WithContext(ctx).Preload("Ticket").First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ComponentOrder{}, false, nil
		}
		return domain.ComponentOrder{}, false, err
	}
	return orderFromModel(model), true, nil
}

// ListOrders returns orders, optionally only those of one customer.
func (s *GormStore) ListOrders(ctx context.Context, customerID *int64) ([]domain.ComponentOrder, error) {
	tx := s.db.WithContext(ctx).Preload("Ticket").Order("id ASC")
	if customerID != nil {
		tx = tx.Where("customer_id = ?", *customerID)
	}
	var models []ComponentOrderModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.ComponentOrder, 0, len(models))
	for _, m := range models {
		res = append(res, orderFromModel(m))
	}
	return res, nil
}

// HasOrderCode reports whether a human-facing order code is taken.
func (s *GormStore) HasOrderCode(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&ComponentOrderModel{}).Where("order_id = ?", code).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateReview records an agent review.
func (s *GormStore) CreateReview(ctx context.Context, r *domain.AgentReview) error {
	model := AgentReviewModel{
		ID:       r.ID,
		Rating:   r.Rating,
		Feedback: r.Feedback,
		UserID:   r.UserID,
		TicketID: r.TicketID,
	}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return translate(err)
	}
	r.ID = model.ID
	return nil
}

// ListReviews returns every review ordered by id.
func (s *GormStore) ListReviews(ctx context.Context) ([]domain.AgentReview, error) {
	var models []AgentReviewModel
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.AgentReview, 0, len(models))
	for _, m := range models {
		res = append(res, domain.AgentReview{
			ID:       m.ID,
			Rating:   m.Rating,
			Feedback: m.Feedback,
			UserID:   m.UserID,
			TicketID: m.TicketID,
		})
	}
	return res, nil
}

// ReviewSummary returns the average rating and review count for agentID.
func (s *GormStore) ReviewSummary(ctx context.Context, agentID int64) (domain.ReviewSummary, error) {
	var row struct {
		Average float64
		Count   int
	}
	if err := s.db.WithContext(ctx).Model(&AgentReviewModel{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count").
		Where("user_id = ?", agentID).
		Scan(&row).Error; err != nil {
		return domain.ReviewSummary{}, err
	}
	return domain.ReviewSummary{AverageRating: row.Average, Count: row.Count}, nil
}

// CreateFAQ records a knowledge base entry.
func (s *GormStore) CreateFAQ(ctx context.Context, f *domain.FAQ) error {
	model := FAQModel{Question: f.Question, Answer: f.Answer}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return translate(err)
	}
	f.ID = model.ID
	return nil
}

// ListFAQs returns the knowledge base ordered by id.
func (s *GormStore) ListFAQs(ctx context.Context) ([]domain.FAQ, error) {
	var models []FAQModel
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.FAQ, 0, len(models))
	for _, m := range models {
		res = append(res, domain.FAQ{ID: m.ID, Question: m.Question, Answer: m.Answer})
	}
	return res, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:             u.ID,
		Email:          u.Email,
		PasswordHash:   u.PasswordHash,
		Name:           u.Name,
		Role:           string(u.Role),
		Specialization: u.Specialization,
		Status:         u.Status,
		CreatedAt:      u.CreatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:             m.ID,
		Email:          m.Email,
		PasswordHash:   m.PasswordHash,
		Name:           m.Name,
		Role:           domain.UserRole(m.Role),
		Specialization: m.Specialization,
		Status:         m.Status,
		CreatedAt:      m.CreatedAt,
	}
}

func productToModel(p domain.Product) ProductModel {
	return ProductModel{
		ID:          p.ID,
		Name:        p.Name,
		Model:       p.Model,
		Category:    p.Category,
		Brand:       p.Brand,
		Price:       p.Price,
		Description: p.Description,
	}
}

func productFromModel(m ProductModel) domain.Product {
	return domain.Product{
		ID:          m.ID,
		Name:        m.Name,
		Model:       m.Model,
		Category:    m.Category,
		Brand:       m.Brand,
		Price:       m.Price,
		Description: m.Description,
	}
}

func ticketToModel(t domain.Ticket) TicketModel {
	return TicketModel{
		ID:                t.ID,
		Description:       t.Description,
		Status:            string(t.Status),
		CustomerID:        t.CustomerID,
		ProductID:         t.ProductID,
		AssignedTo:        t.AssignedTo,
		CreatedAt:         t.CreatedAt,
		ClosedAt:          t.ClosedAt,
		PickupDate:        t.PickupDate,
		PreferredTimeSlot: t.PreferredTimeSlot,
		Contact:           t.Contact,
		PickupAddress:     t.PickupAddress,
	}
}

func ticketFromModel(m TicketModel) domain.Ticket {
	return domain.Ticket{
		ID:                m.ID,
		Description:       m.Description,
		Status:            domain.TicketStatus(m.Status),
		CustomerID:        m.CustomerID,
		ProductID:         m.ProductID,
		AssignedTo:        m.AssignedTo,
		CreatedAt:         m.CreatedAt,
		ClosedAt:          m.ClosedAt,
		PickupDate:        m.PickupDate,
		PreferredTimeSlot: m.PreferredTimeSlot,
		Contact:           m.Contact,
		PickupAddress:     m.PickupAddress,
	}
}

func orderToModel(o domain.ComponentOrder) ComponentOrderModel {
	return ComponentOrderModel{
		ID:            o.ID,
		OrderID:       o.OrderID,
		CustomerID:    o.CustomerID,
		TicketID:      o.TicketID,
		DeviceType:    o.DeviceType,
		ComponentName: o.ComponentName,
		Quantity:      o.Quantity,
		Price:         o.Price,
		Status:        string(o.Status),
		ServiceTier:   o.ServiceTier,
		Notes:         o.Notes,
		CreatedAt:     o.CreatedAt,
		ShippedAt:     o.ShippedAt,
		DeliveredAt:   o.DeliveredAt,
	}
}

func orderFromModel(m ComponentOrderModel) domain.ComponentOrder {
	order := domain.ComponentOrder{
		ID:            m.ID,
		OrderID:       m.OrderID,
		CustomerID:    m.CustomerID,
		TicketID:      m.TicketID,
		DeviceType:    m.DeviceType,
		ComponentName: m.ComponentName,
		Quantity:      m.Quantity,
		Price:         m.Price,
		Status:        domain.OrderStatus(m.Status),
		ServiceTier:   m.ServiceTier,
		Notes:         m.Notes,
		CreatedAt:     m.CreatedAt,
		ShippedAt:     m.ShippedAt,
		DeliveredAt:   m.DeliveredAt,
	}
	if m.Ticket != nil {
		order.Ticket = &domain.TicketSummary{
			ID:          m.Ticket.ID,
			Description: m.Ticket.Description,
			Status:      domain.TicketStatus(m.Ticket.Status),
		}
	}
	return order
}
