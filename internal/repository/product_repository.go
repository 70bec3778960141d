package repository

import (
	"context"
	"time"

	"github.com/iliyamo/partner-portal/internal/logger"
	"github.com/iliyamo/partner-portal/internal/metrics"
	"github.com/iliyamo/partner-portal/internal/model"
	"github.com/iliyamo/partner-portal/internal/recordstore"
)

// Product sheet columns.
const (
	colDestination  = "Destino"
	colTourName     = "Atividade"
	colCategory     = "Categoria do Serviço"
	colSubCategory  = "Subcategoria"
	colNetAdult     = "INV26 ADU"
	colNetMinor     = "INV26 CHD"
	colNetInfant    = "INV26 INF"
	colPickup       = "Pickup"
	colReturn       = "Retorno"
	colSeason       = "Temporada"
	colEligibleDays = "Dias elegíveis"
	colDescription  = "Descrição"
	colInclusions   = "Inclui"
	colExclusions   = "Não inclui"
	colRequirements = "Requisitos"
	colExtraFees    = "Taxas Extras"
	colMedia        = "Mídia do Passeio"
)

// ProductRepo reads the tariff sheet.
type ProductRepo struct {
	src    source
	tables []string
	log    logger.Logger
}

// NewProductRepo returns a ProductRepo probing tables in order; the first
// one that answers wins.
func NewProductRepo(reg *recordstore.Registry, baseID string, tables []string, log logger.Logger) *ProductRepo {
	return &ProductRepo{src: source{reg: reg, baseID: baseID}, tables: tables, log: log}
}

// List returns every product of the first readable table.  When no table
// can be read the failure is logged and an empty sheet is returned; only a
// base that cannot be opened at all is reported as an error.
func (r *ProductRepo) List(ctx context.Context) ([]model.Product, error) {
	base, err := r.src.base()
	if err != nil {
		return nil, err
	}
	candidates := make([]recordstore.Candidate, len(r.tables))
	for i, t := range r.tables {
		candidates[i] = recordstore.Candidate{Table: t}
	}
	start := time.Now()
	recs, idx, err := recordstore.SelectFirst(ctx, base, candidates...)
	observe("products", "select", start, err)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.log.WithError(err).Error("product tables unavailable", map[string]interface{}{
			"tables":         r.tables,
			"base_id_prefix": recordstore.Redact(r.src.baseID),
		})
		return []model.Product{}, nil
	}
	if idx > 0 {
		metrics.TableFallbacks.WithLabelValues("products", r.tables[idx]).Inc()
		r.log.Info("product sheet served from fallback table", map[string]interface{}{"table": r.tables[idx]})
	}
	out := make([]model.Product, 0, len(recs))
	for _, rec := range recs {
		out = append(out, productFromRecord(rec))
	}
	return out, nil
}

func productFromRecord(rec recordstore.Record) model.Product {
	f := rec.Fields
	p := model.Product{
		ID:          rec.ID,
		Destination: orDefault(f.String(colDestination), "General"),
		TourName:    orDefault(f.String(colTourName), "Unnamed Tour"),
		Category:    orDefault(f.String(colCategory), "Other"),
		SubCategory: f.String(colSubCategory),
		Net: model.NetPrice{
			Adult:  f.Float(colNetAdult),
			Minor:  f.Float(colNetMinor),
			Infant: f.Float(colNetInfant),
		},
		Pickup:       f.String(colPickup),
		Return:       f.String(colReturn),
		Season:       f.String(colSeason),
		EligibleDays: f.Strings(colEligibleDays),
		Description:  f.String(colDescription),
		Inclusions:   f.String(colInclusions),
		Exclusions:   f.String(colExclusions),
		Requirements: f.String(colRequirements),
		ExtraFees:    f.String(colExtraFees),
	}
	if media := f.Attachments(colMedia); len(media) > 0 {
		p.ImageURL = media[0].URL
	}
	return p
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
