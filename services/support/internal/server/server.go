package server

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"supportdesk/internal/ratelimit"
	"supportdesk/internal/util"
	"supportdesk/pkg/domain"
	"supportdesk/services/support/internal/app"
	"supportdesk/services/support/internal/assistant"
	"supportdesk/services/support/internal/security"
)

// Chatter answers support chat queries.
type Chatter interface {
	Answer(ctx context.Context, query string) (assistant.Reply, error)
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App       *app.App
	Assistant Chatter

	// Limiters are optional; nil disables the limit.
	LoginLimiter    *ratelimit.FixedWindowLimiter
	RegisterLimiter *ratelimit.FixedWindowLimiter
	TrustedProxies  *util.TrustedProxies
	CORSOrigins     []string
	// Alerter escalates repeated audit failures; nil disables alerting.
	Alerter *security.AuditAlerter
}

// Server exposes the support desk REST API.
type Server struct {
	app             *app.App
	assistant       Chatter
	loginLimiter    *ratelimit.FixedWindowLimiter
	registerLimiter *ratelimit.FixedWindowLimiter
	trusted         *util.TrustedProxies
	corsOrigins     []string
	alerter         *security.AuditAlerter
	mux             *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app required")
	}
	if cfg.Assistant == nil {
		return nil, errors.New("assistant required")
	}
	s := &Server{
		app:             cfg.App,
		assistant:       cfg.Assistant,
		loginLimiter:    cfg.LoginLimiter,
		registerLimiter: cfg.RegisterLimiter,
		trusted:         cfg.TrustedProxies,
		corsOrigins:     cfg.CORSOrigins,
		alerter:         cfg.Alerter,
		mux:             http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(
		util.WithRequestLog("support",
			util.WithRecover(
				util.WithSecurityHeaders(
					util.WithCORS(s.corsOrigins, s.mux)))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	// auth
	s.mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.Handle("GET /api/auth/profile", s.gate(anyRole, s.handleProfile))
	s.mux.Handle("PUT /api/auth/update", s.gate(anyRole, s.handleUpdateProfile))
	s.mux.Handle("POST /api/auth/logout", s.gate(anyRole, s.handleLogout))

	// products
	s.mux.HandleFunc("GET /api/products/list_product", s.handleListProducts)
	s.mux.HandleFunc("GET /api/products/get/{id}", s.handleGetProduct)
	s.mux.Handle("POST /api/products/add", s.gate(adminRoles, s.handleAddProduct))
	s.mux.Handle("PUT /api/products/update/{id}", s.gate(adminRoles, s.handleUpdateProduct))
	s.mux.Handle("DELETE /api/products/delete/{id}", s.gate(adminRoles, s.handleDeleteProduct))

	// tickets
	s.mux.Handle("GET /api/tickets/get_all_ticket", s.gate(anyRole, s.handleListTickets))
	s.mux.Handle("POST /api/tickets/create", s.gate(anyRole, s.handleCreateTicket))
	s.mux.Handle("GET /api/tickets/get_ticket/{id}", s.gate(anyRole, s.handleGetTicket))
	s.mux.Handle("PUT /api/tickets/{id}/status", s.gate(staffRoles, s.handleTicketStatus))
	s.mux.Handle("PUT /api/tickets/{id}/close", s.gate(anyRole, s.handleCloseTicket))
	s.mux.Handle("GET /api/tickets/history/{productId}", s.gate(anyRole, s.handleTicketHistory))
	s.mux.Handle("POST /api/tickets/review", s.gate(anyRole, s.handleReview))
	s.mux.Handle("POST /api/tickets/add_faq", s.gate(staffRoles, s.handleAddFAQ))
	s.mux.Handle("GET /api/tickets/get_faq", s.gate(anyRole, s.handleListFAQs))

	// orders
	s.mux.Handle("GET /api/orders/get_all_orders", s.gate(anyRole, s.handleListOrders))
	s.mux.Handle("POST /api/orders/create", s.gate(anyRole, s.handleCreateOrder))
	s.mux.Handle("PUT /api/orders/{id}/status", s.gate(staffRoles, s.handleOrderStatus))

	// admin
	s.mux.Handle("GET /api/admin/get_all_users", s.gate(adminRoles, s.handleListUsers))
	s.mux.Handle("GET /api/admin/stats", s.gate(adminRoles, s.handleStats))
	s.mux.Handle("POST /api/admin/get_agent", s.gate(adminRoles, s.handleGetAgent))
	s.mux.Handle("POST /api/admin/add_agent", s.gate(adminRoles, s.handleAddAgent))
	s.mux.Handle("POST /api/admin/edit_agent", s.gate(adminRoles, s.handleEditAgent))
	s.mux.Handle("GET /api/admin/admin_dashbroad", s.gate(adminRoles, s.handleDashboard))
	s.mux.Handle("GET /api/admin/view_customer_feedback", s.gate(adminRoles, s.handleFeedback))

	// chat
	s.mux.Handle("POST /api/ai/chat", s.gate(anyRole, s.handleChat))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth handlers
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.registerLimiter, "too many registration attempts") {
		s.audit(r, "support.register", "rate_limited")
		return
	}
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := s.app.Register(r.Context(), app.RegisterInput{
		Email: req.Email, Password: req.Password, Name: req.Name, Role: req.Role,
	})
	if err != nil {
		s.audit(r, "support.register", "fail", "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "support.register", "success", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"message": "registered", "user": user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		s.audit(r, "support.login", "rate_limited")
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	token, user, err := s.app.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.audit(r, "support.login", "fail", "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "support.login", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]any{"access_token": token, "user": user})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	user, err := s.app.Profile(r.Context(), p)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	var req updateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := s.app.UpdateProfile(r.Context(), p, req.Name)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	token, _ := bearerToken(r)
	if err := s.app.Logout(r.Context(), token); err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "support.logout", "success", "user_id", p.UserID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logout successful"})
}

// product handlers
func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.app.ListProducts(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(products))
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	product, err := s.app.GetProduct(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (s *Server) handleAddProduct(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	product, err := s.app.AddProduct(r.Context(), p, app.ProductInput{
		ID:          req.ID.value,
		Name:        deref(req.Name),
		Model:       deref(req.Model),
		Category:    deref(req.Category),
		Brand:       deref(req.Brand),
		Price:       deref(req.Price),
		Description: deref(req.Description),
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"product": product})
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	product, err := s.app.UpdateProduct(r.Context(), p, id, app.ProductPatch{
		Name:        req.Name,
		Model:       req.Model,
		Category:    req.Category,
		Brand:       req.Brand,
		Price:       req.Price,
		Description: req.Description,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := s.app.DeleteProduct(r.Context(), p, id); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

// ticket handlers
func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	tickets, err := s.app.ListTickets(r.Context(), p)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(tickets))
}

func (s *Server) handleCreateTicket(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	var req ticketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ticket, err := s.app.CreateTicket(r.Context(), p, app.TicketInput{
		Description:       req.Description,
		CustomerID:        req.CustomerID.ptr(),
		ProductID:         req.ProductID.ptr(),
		ProductName:       req.ProductName,
		Category:          req.Category,
		AssignedTo:        req.AssignedTo.ptr(),
		Status:            req.Status,
		PickupDate:        req.PickupDate,
		PreferredTimeSlot: req.PreferredTimeSlot,
		Contact:           req.Contact,
		PickupAddress:     req.PickupAddress,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ticket": ticket})
}

func (s *Server) handleGetTicket(w http.ResponseWriter, r *http.Request, _ domain.Principal) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	ticket, err := s.app.GetTicket(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (s *Server) handleTicketStatus(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ticket, err := s.app.UpdateTicketStatus(r.Context(), p, id, req.Status)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ticket": ticket})
}

func (s *Server) handleCloseTicket(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	ticket, err := s.app.CloseTicket(r.Context(), p, id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ticket": ticket})
}

func (s *Server) handleTicketHistory(w http.ResponseWriter, r *http.Request, _ domain.Principal) {
	productID, ok := pathID(r, "productId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	tickets, err := s.app.TicketHistory(r.Context(), productID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(tickets))
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request, _ domain.Principal) {
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	_, err := s.app.SubmitReview(r.Context(), app.ReviewInput{
		Rating:   req.Rating,
		Feedback: req.Feedback,
		UserID:   req.UserID.ptr(),
		TicketID: req.TicketID.ptr(),
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "successfully added"})
}

func (s *Server) handleAddFAQ(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	var req faqRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.app.AddFAQ(r.Context(), p, req.Question, req.Answer); err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "successfully added"})
}

func (s *Server) handleListFAQs(w http.ResponseWriter, r *http.Request, _ domain.Principal) {
	faqs, err := s.app.ListFAQs(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(faqs))
}

// order handlers
func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	orders, err := s.app.ListOrders(r.Context(), p)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(orders))
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	var req orderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	order, err := s.app.CreateOrder(r.Context(), p, app.OrderInput{
		DeviceType:    req.DeviceType,
		ComponentName: req.ComponentName,
		TicketID:      req.TicketID.ptr(),
		CustomerID:    req.CustomerID.ptr(),
		Quantity:      req.Quantity,
		Status:        req.Status,
		ServiceTier:   req.ServiceTier,
		Notes:         req.Notes,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"order": order})
}

func (s *Server) handleOrderStatus(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	order, err := s.app.UpdateOrderStatus(r.Context(), p, id, req.Status)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

// admin handlers
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	users, err := s.app.ListUsers(r.Context(), p)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(users))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	stats, err := s.app.Stats(r.Context(), p)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	var req agentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	agent, err := s.app.GetAgent(r.Context(), p, req.UserID.value)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agent": agent})
}

func (s *Server) handleAddAgent(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	var req agentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	agent, err := s.app.AddAgent(r.Context(), p, agentInput(req))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "support.admin.add_agent", "success", "user_id", p.UserID, "agent_id", agent.ID)
	writeJSON(w, http.StatusOK, map[string]any{"message": "added successfully", "agent": agent})
}

func (s *Server) handleEditAgent(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	var req agentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	agent, err := s.app.EditAgent(r.Context(), p, req.UserID.value, agentInput(req))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "support.admin.edit_agent", "success", "user_id", p.UserID, "agent_id", agent.ID)
	writeJSON(w, http.StatusOK, map[string]any{"message": "updated successfully", "agent": agent})
}

func agentInput(req agentRequest) app.AgentInput {
	return app.AgentInput{
		Email:          req.Email,
		Password:       req.Password,
		Name:           req.Name,
		Role:           req.Role,
		Specialization: req.Specialization,
		Status:         req.Status,
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	rows, err := s.app.Dashboard(r.Context(), p)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(rows))
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request, p domain.Principal) {
	reviews, err := s.app.ListFeedback(r.Context(), p)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(reviews))
}

// chat handler
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, _ domain.Principal) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	reply, err := s.assistant.Answer(r.Context(), req.Query)
	if errors.Is(err, assistant.ErrEmptyQuery) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAppError maps application errors onto HTTP statuses. Anything that
// is not a classified error is logged and reported generically.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		util.LoggerFromContext(r.Context()).Error("support.request.failed", "error", err)
		writeError(w, status, "Something went wrong")
		return
	}
	msg := err.Error()
	var appErr *app.Error
	if errors.As(err, &appErr) {
		msg = appErr.Msg
	}
	writeError(w, status, msg)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, app.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, app.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, app.ErrUpstream):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	ip := util.ClientIP(r, s.trusted)
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", ip,
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)

	result, err := s.alerter.Observe(r.Context(), event, outcome, ip)
	if err != nil {
		logger.Warn("security_alert_observe_failed", "event", event, "error", err)
		return
	}
	if result.Triggered {
		logger.Error("security_alert",
			"event", event,
			"outcome", outcome,
			"ip", ip,
			"count", result.Count,
			"threshold", result.Threshold,
			"window", result.Window.String(),
		)
	}
}

// allowRate applies limiter per route and client address. A nil limiter
// admits everything.
func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	if limiter == nil {
		return true
	}
	key := r.URL.Path + "|" + util.ClientIP(r, s.trusted)
	allowed, retryAfter := limiter.Allow(r.Context(), key)
	if allowed {
		return true
	}
	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = int(time.Minute / time.Second)
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}
