package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

const maxBodyBytes = 1 << 20

var errInvalidBody = errors.New("invalid JSON body")

// decodeJSON reads a JSON object body. An empty body decodes to the zero value.
func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errInvalidBody
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errInvalidBody
	}
	return nil
}

// flexID accepts an id given either as a JSON number or a numeric string.
type flexID struct {
	set   bool
	value int64
}

func (f *flexID) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*f = flexID{}
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
		if raw == "" {
			*f = flexID{}
			return nil
		}
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %s", data)
	}
	*f = flexID{set: true, value: v}
	return nil
}

// ptr returns nil when the id was absent.
func (f flexID) ptr() *int64 {
	if !f.set {
		return nil
	}
	v := f.value
	return &v
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateProfileRequest struct {
	Name *string `json:"name"`
}

type productRequest struct {
	ID          flexID   `json:"id"`
	Name        *string  `json:"name"`
	Model       *string  `json:"model"`
	Category    *string  `json:"category"`
	Brand       *string  `json:"brand"`
	Price       *float64 `json:"price"`
	Description *string  `json:"description"`
}

type ticketRequest struct {
	Description       string `json:"description"`
	CustomerID        flexID `json:"customer_id"`
	ProductID         flexID `json:"product_id"`
	ProductName       string `json:"product_name"`
	Category          string `json:"category"`
	AssignedTo        flexID `json:"assigned_to"`
	Status            string `json:"status"`
	PickupDate        string `json:"pickup_date"`
	PreferredTimeSlot string `json:"preferred_time_slot"`
	Contact           string `json:"contact"`
	PickupAddress     string `json:"pickup_address"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type reviewRequest struct {
	Rating   *int   `json:"rating"`
	Feedback string `json:"feedback"`
	UserID   flexID `json:"user_id"`
	TicketID flexID `json:"ticket_id"`
}

type faqRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type orderRequest struct {
	DeviceType    string `json:"device_type"`
	ComponentName string `json:"component_name"`
	TicketID      flexID `json:"ticket_id"`
	CustomerID    flexID `json:"customer_id"`
	Quantity      *int   `json:"quantity"`
	Status        string `json:"status"`
	ServiceTier   string `json:"service_tier"`
	Notes         string `json:"notes"`
}

type agentRequest struct {
	UserID         flexID `json:"user_id"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	Name           string `json:"name"`
	Role           string `json:"role"`
	Specialization string `json:"specialization"`
	Status         string `json:"status"`
}

type chatRequest struct {
	Query string `json:"query"`
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
