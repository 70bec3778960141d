package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/partner-portal/internal/model"
	"github.com/iliyamo/partner-portal/internal/recordstore"
)

// Reservation table columns.
const (
	colResProduct     = "Produto"
	colResDestination = "Destino"
	colResDate        = "Data"
	colResAdults      = "Adultos"
	colResChildren    = "Crianças"
	colResInfants     = "Bebês"
	colResPassengers  = "Passageiros"
	colResTotal       = "Valor Total"
	colResCommission  = "Comissão"
	colResAgency      = "Agência"
	colResEmail       = "Email"
)

// ReservationRepo writes pre-reservations.  There is no read or update
// path; the operator works the table directly.
type ReservationRepo struct {
	src   source
	table string
}

// NewReservationRepo returns a ReservationRepo over table.
func NewReservationRepo(reg *recordstore.Registry, baseID, table string) *ReservationRepo {
	return &ReservationRepo{src: source{reg: reg, baseID: baseID}, table: table}
}

// Create inserts one reservation and returns it with the assigned id and
// creation time.
func (r *ReservationRepo) Create(ctx context.Context, res model.Reservation) (model.Reservation, error) {
	base, err := r.src.base()
	if err != nil {
		return model.Reservation{}, err
	}
	fields := recordstore.Fields{
		colResProduct:     res.ProductName,
		colResDestination: res.Destination,
		colResDate:        res.Date,
		colResAdults:      res.Adults,
		colResChildren:    res.Children,
		colResInfants:     res.Infants,
		colResPassengers:  res.Passengers,
		colResTotal:       res.TotalAmount,
		colResCommission:  res.Commission,
		colResEmail:       res.RequesterEmail,
	}
	if res.AgencyID != "" {
		fields[colResAgency] = []string{res.AgencyID}
	}
	start := time.Now()
	recs, err := base.Table(r.table).Create(ctx, fields)
	observe(r.table, "create", start, err)
	if err != nil {
		return model.Reservation{}, fmt.Errorf("create reservation: %w", err)
	}
	if len(recs) == 0 {
		return model.Reservation{}, errors.New("create reservation: store returned no record")
	}
	res.ID = recs[0].ID
	res.CreatedAt = recs[0].CreatedTime
	return res, nil
}
