package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/partner-portal/internal/model"
	"github.com/iliyamo/partner-portal/internal/recordstore"
)

// Agency table columns.
const (
	colAgencyName  = "Agency"
	colAgencyAlt   = "Name"
	colAgencyMail  = "mail"
	colCommission  = "Comision_base"
	colAdmin       = "Admin"
	colInternal    = "Interno"
	colCanReserve  = "Pode Reservar"
	colAgencySkill = "Skills"
)

// AgencyRepo reads and creates partner agencies.
type AgencyRepo struct {
	src   source
	table string
}

// NewAgencyRepo returns an AgencyRepo over table (usually a table id).
func NewAgencyRepo(reg *recordstore.Registry, baseID, table string) *AgencyRepo {
	return &AgencyRepo{src: source{reg: reg, baseID: baseID}, table: table}
}

// GetByEmail returns the agency whose email matches exactly.  It returns
// nil, nil when there is no match.
func (r *AgencyRepo) GetByEmail(ctx context.Context, email string) (*model.Agency, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil
	}
	base, err := r.src.base()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	recs, err := base.Table(r.table).Select(ctx, recordstore.Query{
		Filter:     recordstore.Eq{Field: colAgencyMail, Value: email},
		MaxRecords: 1,
	})
	observe("agencies", "select", start, err)
	if err != nil {
		return nil, fmt.Errorf("agency by email: %w", err)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	a := agencyFromRecord(recs[0])
	return &a, nil
}

// GetByID returns ErrAgencyNotFound when the record does not exist.
func (r *AgencyRepo) GetByID(ctx context.Context, id string) (*model.Agency, error) {
	base, err := r.src.base()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rec, err := base.Table(r.table).Find(ctx, id)
	observe("agencies", "find", start, err)
	if errors.Is(err, recordstore.ErrNotFound) {
		return nil, ErrAgencyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("agency %s: %w", id, err)
	}
	a := agencyFromRecord(rec)
	return &a, nil
}

// Create inserts an agency.  A second agency with the same email is
// rejected with ErrConflict.
func (r *AgencyRepo) Create(ctx context.Context, a model.Agency) (*model.Agency, error) {
	existing, err := r.GetByEmail(ctx, a.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrConflict
	}
	base, err := r.src.base()
	if err != nil {
		return nil, err
	}
	fields := recordstore.Fields{
		colAgencyName: a.Name,
		colAgencyMail: strings.TrimSpace(a.Email),
		colCommission: a.CommissionRate,
		colAdmin:      a.IsAdmin,
		colInternal:   a.IsInternal,
		colCanReserve: a.CanReserve,
	}
	if len(a.Skills) > 0 {
		fields[colAgencySkill] = a.Skills
	}
	start := time.Now()
	recs, err := base.Table(r.table).Create(ctx, fields)
	observe("agencies", "create", start, err)
	if err != nil {
		return nil, fmt.Errorf("create agency: %w", err)
	}
	if len(recs) == 0 {
		return nil, errors.New("create agency: store returned no record")
	}
	out := agencyFromRecord(recs[0])
	return &out, nil
}

func agencyFromRecord(rec recordstore.Record) model.Agency {
	f := rec.Fields
	return model.Agency{
		ID:             rec.ID,
		Name:           f.FirstString(colAgencyName, colAgencyAlt),
		Email:          f.String(colAgencyMail),
		CommissionRate: f.Float(colCommission),
		IsAdmin:        f.Bool(colAdmin),
		IsInternal:     f.Bool(colInternal),
		CanReserve:     f.Bool(colCanReserve),
		Skills:         f.Strings(colAgencySkill),
	}
}
