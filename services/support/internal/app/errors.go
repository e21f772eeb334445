package app

import "errors"

// Error kinds. Every *Error unwraps to exactly one of these; anything else
// reaching the handler boundary is an unexpected failure.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUpstream        = errors.New("upstream failure")
)

// Error carries a user-facing message and its kind.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func invalid(msg string) error   { return &Error{Kind: ErrInvalidInput, Msg: msg} }
func forbidden(msg string) error { return &Error{Kind: ErrForbidden, Msg: msg} }
func notFound(msg string) error  { return &Error{Kind: ErrNotFound, Msg: msg} }
func conflict(msg string) error  { return &Error{Kind: ErrConflict, Msg: msg} }

var (
	// ErrInvalidCredentials is shown to end users and must not enable
	// account enumeration.
	ErrInvalidCredentials = &Error{Kind: ErrUnauthenticated, Msg: "Invalid credentials"}

	ErrEmailAndPasswordRequired = invalid("email and password required")
	ErrUserExists               = conflict("User already exists")
	ErrUserNotFound             = notFound("User not found")
	ErrProductNotFound          = notFound("Product not found")
	ErrTicketNotFound           = notFound("Ticket not found")
	ErrOrderNotFound            = notFound("Order not found")
	ErrNotTicketOwner           = forbidden("not allowed")
	ErrInvalidPickupDate        = invalid("Invalid pickup_date format, must be ISO format")
	ErrOrderCodeExhausted       = conflict("could not allocate a unique order id")
)
