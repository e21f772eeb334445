package app

import (
	"context"
	"errors"
	"strings"

	"supportdesk/internal/util"
	"supportdesk/pkg/auth"
	"supportdesk/pkg/domain"
	"supportdesk/pkg/store"
)

// RegisterInput is the payload of a self-service registration.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Role     string
}

// AgentInput is the payload of admin user provisioning and edits.
type AgentInput struct {
	Email          string
	Password       string
	Name           string
	Role           string
	Specialization string
	Status         string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func parseRole(raw string) (domain.UserRole, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return domain.RoleCustomer, nil
	}
	role := domain.UserRole(raw)
	if !role.Valid() {
		return "", invalid("role must be one of customer, internal, admin")
	}
	return role, nil
}

func hashNewPassword(password string) (string, error) {
	if err := auth.ValidatePassword(password); err != nil {
		return "", invalid(err.Error())
	}
	return auth.HashPassword(password)
}

// Register creates a user account. Only the very first account may claim an
// elevated role; afterwards staff accounts are provisioned by an admin.
func (a *App) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return domain.User{}, ErrEmailAndPasswordRequired
	}
	role, err := parseRole(in.Role)
	if err != nil {
		return domain.User{}, err
	}
	hash, err := hashNewPassword(in.Password)
	if err != nil {
		return domain.User{}, err
	}
	user := domain.User{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(in.Name),
		Role:         role,
		Status:       domain.UserStatusActive,
		CreatedAt:    a.now().UTC(),
	}
	err = a.store.Tx(ctx, func(tx store.Store) error {
		if _, found, err := tx.GetUserByEmail(ctx, email); err != nil {
			return err
		} else if found {
			return ErrUserExists
		}
		if role != domain.RoleCustomer {
			count, err := tx.UserCount(ctx)
			if err != nil {
				return err
			}
			if count > 0 {
				return forbidden("only an admin can create staff accounts")
			}
		}
		return createUser(ctx, tx, &user)
	})
	if err != nil {
		return domain.User{}, err
	}
	util.LoggerFromContext(ctx).Info("support.user.registered", "user_id", user.ID, "role", user.Role)
	return user, nil
}

func createUser(ctx context.Context, tx store.Store, u *domain.User) error {
	if err := tx.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return ErrUserExists
		}
		return err
	}
	return nil
}

// Login checks credentials and issues a bearer token.
func (a *App) Login(ctx context.Context, email, password string) (string, domain.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", domain.User{}, ErrEmailAndPasswordRequired
	}
	user, found, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		return "", domain.User{}, err
	}
	if !found || !auth.CheckPassword(password, user.PasswordHash) {
		return "", domain.User{}, ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(domain.Principal{UserID: user.ID, Role: user.Role})
	if err != nil {
		return "", domain.User{}, err
	}
	return token, user, nil
}

// Logout revokes the presented token.
func (a *App) Logout(ctx context.Context, token string) error {
	if err := a.sessions.DeleteSession(token); err != nil {
		util.LoggerFromContext(ctx).Warn("support.logout.revoke_failed", "error", err)
		return err
	}
	return nil
}

// Profile returns the caller's own account.
func (a *App) Profile(ctx context.Context, p domain.Principal) (domain.User, error) {
	user, found, err := a.store.GetUserByID(ctx, p.UserID)
	if err != nil {
		return domain.User{}, err
	}
	if !found {
		return domain.User{}, ErrUserNotFound
	}
	return user, nil
}

// UpdateProfile changes the caller's display name. A nil name leaves it as is.
func (a *App) UpdateProfile(ctx context.Context, p domain.Principal, name *string) (domain.User, error) {
	var user domain.User
	err := a.store.Tx(ctx, func(tx store.Store) error {
		u, found, err := tx.GetUserByID(ctx, p.UserID)
		if err != nil {
			return err
		}
		if !found {
			return ErrUserNotFound
		}
		if name != nil {
			u.Name = strings.TrimSpace(*name)
		}
		user = u
		return tx.SaveUser(ctx, u)
	})
	return user, err
}

// ListUsers returns every account.
func (a *App) ListUsers(ctx context.Context, p domain.Principal) ([]domain.User, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	return a.store.ListUsers(ctx)
}

// GetAgent returns one account by id.
func (a *App) GetAgent(ctx context.Context, p domain.Principal, userID int64) (domain.User, error) {
	if err := requireAdmin(p); err != nil {
		return domain.User{}, err
	}
	if userID <= 0 {
		return domain.User{}, invalid("user_id is required")
	}
	user, found, err := a.store.GetUserByID(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	if !found {
		return domain.User{}, ErrUserNotFound
	}
	return user, nil
}

// AddAgent provisions an account with any role.
func (a *App) AddAgent(ctx context.Context, p domain.Principal, in AgentInput) (domain.User, error) {
	if err := requireAdmin(p); err != nil {
		return domain.User{}, err
	}
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return domain.User{}, ErrEmailAndPasswordRequired
	}
	role, err := parseRole(in.Role)
	if err != nil {
		return domain.User{}, err
	}
	hash, err := hashNewPassword(in.Password)
	if err != nil {
		return domain.User{}, err
	}
	user := domain.User{
		Email:          email,
		PasswordHash:   hash,
		Name:           strings.TrimSpace(in.Name),
		Role:           role,
		Specialization: strings.TrimSpace(in.Specialization),
		Status:         strings.TrimSpace(in.Status),
		CreatedAt:      a.now().UTC(),
	}
	if user.Status == "" {
		user.Status = domain.UserStatusInactive
	}
	err = a.store.Tx(ctx, func(tx store.Store) error {
		if _, found, err := tx.GetUserByEmail(ctx, email); err != nil {
			return err
		} else if found {
			return ErrUserExists
		}
		return createUser(ctx, tx, &user)
	})
	if err != nil {
		return domain.User{}, err
	}
	util.LoggerFromContext(ctx).Info("support.user.provisioned", "user_id", user.ID, "role", user.Role, "actor_id", p.UserID)
	return user, nil
}

// EditAgent overwrites an account. Outstanding tokens of the edited user are
// revoked so the new role or status takes effect immediately.
func (a *App) EditAgent(ctx context.Context, p domain.Principal, userID int64, in AgentInput) (domain.User, error) {
	if err := requireAdmin(p); err != nil {
		return domain.User{}, err
	}
	if userID <= 0 {
		return domain.User{}, invalid("user_id is required")
	}
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return domain.User{}, ErrEmailAndPasswordRequired
	}
	role, err := parseRole(in.Role)
	if err != nil {
		return domain.User{}, err
	}
	hash, err := hashNewPassword(in.Password)
	if err != nil {
		return domain.User{}, err
	}
	var user domain.User
	err = a.store.Tx(ctx, func(tx store.Store) error {
		u, found, err := tx.GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		if !found {
			return ErrUserNotFound
		}
		u.Email = email
		u.PasswordHash = hash
		u.Name = strings.TrimSpace(in.Name)
		u.Role = role
		u.Specialization = strings.TrimSpace(in.Specialization)
		u.Status = strings.TrimSpace(in.Status)
		if err := tx.SaveUser(ctx, u); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrUserExists
			}
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}
	a.revokeUser(ctx, user.ID)
	util.LoggerFromContext(ctx).Info("support.user.edited", "user_id", user.ID, "role", user.Role, "actor_id", p.UserID)
	return user, nil
}

func (a *App) revokeUser(ctx context.Context, userID int64) {
	revoker, ok := a.sessions.(userSessionRevoker)
	if !ok {
		return
	}
	if err := revoker.RevokeUserSessions(userID, a.now()); err != nil {
		util.LoggerFromContext(ctx).Warn("support.user.revoke_failed", "user_id", userID, "error", err)
	}
}

// EnsureAdmin creates an active admin account for email unless one exists.
// An existing account with that email is promoted to admin.
func (a *App) EnsureAdmin(ctx context.Context, email, password string) (domain.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return domain.User{}, ErrEmailAndPasswordRequired
	}
	var user domain.User
	err := a.store.Tx(ctx, func(tx store.Store) error {
		existing, found, err := tx.GetUserByEmail(ctx, email)
		if err != nil {
			return err
		}
		if found {
			if existing.Role != domain.RoleAdmin {
				existing.Role = domain.RoleAdmin
				if err := tx.SaveUser(ctx, existing); err != nil {
					return err
				}
			}
			user = existing
			return nil
		}
		hash, err := hashNewPassword(password)
		if err != nil {
			return err
		}
		user = domain.User{
			Email:        email,
			PasswordHash: hash,
			Name:         "Administrator",
			Role:         domain.RoleAdmin,
			Status:       domain.UserStatusActive,
			CreatedAt:    a.now().UTC(),
		}
		return createUser(ctx, tx, &user)
	})
	return user, err
}
