package service

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// LineRequest selects one product and its pax counts.
type LineRequest struct {
	ProductID string `json:"productId"`
	Adults    int    `json:"adults"`
	Children  int    `json:"children"`
	Infants   int    `json:"infants"`
}

func (l LineRequest) Validate() error {
	if err := validation.ValidateStruct(&l,
		validation.Field(&l.ProductID, validation.Required),
		validation.Field(&l.Adults, validation.Min(0), validation.Max(99)),
		validation.Field(&l.Children, validation.Min(0), validation.Max(99)),
		validation.Field(&l.Infants, validation.Min(0), validation.Max(99)),
	); err != nil {
		return err
	}
	if l.Adults+l.Children+l.Infants == 0 {
		return validation.NewError("validation_pax_required", "at least one passenger is required")
	}
	return nil
}

// SimulationRequest is the body of POST /v1/simulations.
type SimulationRequest struct {
	Lines []LineRequest `json:"lines"`
}

func (r SimulationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Lines, validation.Required, validation.Length(1, 20)),
	)
}

// ReservationRequest is the body of POST /v1/reservations.
type ReservationRequest struct {
	Lines           []LineRequest `json:"lines"`
	Date            string        `json:"date"`
	ClientName      string        `json:"clientName"`
	OtherPassengers string        `json:"otherPassengers"`
}

func (r ReservationRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Lines, validation.Required, validation.Length(1, 20)),
		validation.Field(&r.Date, validation.Required, validation.Date("2006-01-02")),
		validation.Field(&r.ClientName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.OtherPassengers, validation.Length(0, 2000)),
	)
}

// AgencyRequest is the body of POST /v1/admin/agencies.
type AgencyRequest struct {
	Name           string   `json:"name"`
	Email          string   `json:"email"`
	CommissionRate float64  `json:"commissionRate"`
	IsAdmin        bool     `json:"isAdmin"`
	IsInternal     bool     `json:"isInternal"`
	CanReserve     bool     `json:"canReserve"`
	Skills         []string `json:"skills"`
}

// Validate accepts any commission rate the sheet itself would accept; only
// obviously broken values are refused.
func (r AgencyRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
		validation.Field(&r.CommissionRate, validation.Min(-1.0), validation.Max(10.0)),
	)
}

func validate(v validation.Validatable) error {
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}
