// Package service holds the portal's use cases.  Every operation starts
// from the caller's identity, resolves the caller's agency and then runs
// the pricing engine or the mural tracker in that agency's context.
package service

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/partner-portal/internal/logger"
	"github.com/iliyamo/partner-portal/internal/metrics"
	"github.com/iliyamo/partner-portal/internal/model"
	"github.com/iliyamo/partner-portal/internal/mural"
	"github.com/iliyamo/partner-portal/internal/pricing"
	"github.com/iliyamo/partner-portal/internal/queue"
)

// AgencyStore resolves and creates agencies.
type AgencyStore interface {
	GetByEmail(ctx context.Context, email string) (*model.Agency, error)
	GetByID(ctx context.Context, id string) (*model.Agency, error)
	Create(ctx context.Context, a model.Agency) (*model.Agency, error)
}

// ProductStore lists the tariff sheet.
type ProductStore interface {
	List(ctx context.Context) ([]model.Product, error)
}

// ReservationStore persists pre-reservations.
type ReservationStore interface {
	Create(ctx context.Context, r model.Reservation) (model.Reservation, error)
}

// Options configures a Portal.
type Options struct {
	Agencies     AgencyStore
	Products     ProductStore
	Reservations ReservationStore
	Tracker      *mural.Tracker
	Events       Publisher
	Log          logger.Logger
	// Brand heads the shareable simulation summary.
	Brand string
}

// Portal implements the partner portal use cases.
type Portal struct {
	agencies     AgencyStore
	products     ProductStore
	reservations ReservationStore
	tracker      *mural.Tracker
	events       Publisher
	log          logger.Logger
	brand        string
	now          func() time.Time
}

// New returns a Portal.  A nil Events publisher drops events.
func New(o Options) *Portal {
	p := &Portal{
		agencies:     o.Agencies,
		products:     o.Products,
		reservations: o.Reservations,
		tracker:      o.Tracker,
		events:       o.Events,
		log:          o.Log,
		brand:        o.Brand,
		now:          time.Now,
	}
	if p.events == nil {
		p.events = NopPublisher{}
	}
	if p.log == nil {
		p.log = logger.NewNoOpLogger()
	}
	if p.brand == "" {
		p.brand = "Portal do Parceiro"
	}
	return p
}

// ResolveAgency maps the identity to its agency.  It returns nil, nil when
// no agency matches or the agency table cannot be read; both mean "no
// commission, no capabilities".
func (p *Portal) ResolveAgency(ctx context.Context, id model.Identity) (*model.Agency, error) {
	email := strings.TrimSpace(id.Email)
	if email == "" {
		return nil, ErrUnauthorized
	}
	a, err := p.agencies.GetByEmail(ctx, email)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.log.WithError(err).Warn("agency lookup failed, continuing without agency", map[string]interface{}{"email": email})
		return nil, nil
	}
	return a, nil
}

// Profile is the response of GET /v1/me.
type Profile struct {
	Identity       model.Identity   `json:"identity"`
	Agency         model.AgencyInfo `json:"agency"`
	HasUnreadMural bool             `json:"hasUnreadMural"`
}

// Me returns the caller's agency context and whether the mural has unread
// notices that require confirmation.  A mural failure only clears the flag.
func (p *Portal) Me(ctx context.Context, id model.Identity) (Profile, error) {
	agency, err := p.ResolveAgency(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	out := Profile{Identity: id, Agency: agency.Info()}
	notices, err := p.tracker.ListNotices(ctx, id.Email, id.Name)
	if err != nil {
		p.log.WithError(err).Warn("mural unavailable for unread flag", nil)
		return out, nil
	}
	out.HasUnreadMural = mural.HasUnread(notices)
	return out, nil
}

// TariffSheet is the commission-adjusted product list.
type TariffSheet struct {
	Agency   model.AgencyInfo      `json:"agency"`
	Products []model.AgencyProduct `json:"products"`
}

// Tariffs fetches the agency and the product sheet concurrently and prices
// the sheet with the agency's rate (0 without an agency).
func (p *Portal) Tariffs(ctx context.Context, id model.Identity) (TariffSheet, error) {
	if strings.TrimSpace(id.Email) == "" {
		return TariffSheet{}, ErrUnauthorized
	}
	var (
		agency   *model.Agency
		products []model.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		agency, err = p.ResolveAgency(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		products, err = p.products.List(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return TariffSheet{}, err
	}
	return TariffSheet{
		Agency:   agency.Info(),
		Products: pricing.PriceAll(products, agency.Rate()),
	}, nil
}

// Simulation is a priced quote plus its shareable text.
type Simulation struct {
	Agency  model.AgencyInfo `json:"agency"`
	Quote   pricing.Quote    `json:"quote"`
	Summary string           `json:"summary"`
}

// Simulate prices the requested lines.  Prices always come from the sheet,
// never from the caller.
func (p *Portal) Simulate(ctx context.Context, id model.Identity, req SimulationRequest) (Simulation, error) {
	if err := validate(req); err != nil {
		return Simulation{}, err
	}
	sheet, err := p.Tariffs(ctx, id)
	if err != nil {
		return Simulation{}, err
	}
	lines, err := resolveLines(sheet.Products, req.Lines)
	if err != nil {
		return Simulation{}, err
	}
	q := pricing.Simulate(lines, sheet.Agency.CommissionRate)
	return Simulation{Agency: sheet.Agency, Quote: q, Summary: pricing.Summary(p.brand, q)}, nil
}

// CreateReservation stores a pre-reservation for an agency allowed to
// reserve and publishes reservation.created.
func (p *Portal) CreateReservation(ctx context.Context, id model.Identity, req ReservationRequest) (model.Reservation, error) {
	if err := validate(req); err != nil {
		return model.Reservation{}, err
	}
	agency, err := p.ResolveAgency(ctx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	if agency == nil {
		return model.Reservation{}, ErrNoAgency
	}
	if !agency.CanReserve {
		return model.Reservation{}, ErrForbidden
	}
	products, err := p.products.List(ctx)
	if err != nil {
		return model.Reservation{}, err
	}
	lines, err := resolveLines(pricing.PriceAll(products, agency.CommissionRate), req.Lines)
	if err != nil {
		return model.Reservation{}, err
	}
	q := pricing.Simulate(lines, agency.CommissionRate)
	adults, children, infants := q.Pax()

	passengers := strings.TrimSpace(req.ClientName)
	if others := strings.TrimSpace(req.OtherPassengers); others != "" {
		passengers += "\n\nOutros: " + others
	}
	res, err := p.reservations.Create(ctx, model.Reservation{
		ProductName:    flattenNames(q.Lines),
		Destination:    flattenDestinations(q.Lines),
		Date:           req.Date,
		Adults:         adults,
		Children:       children,
		Infants:        infants,
		Passengers:     passengers,
		TotalAmount:    q.Total,
		Commission:     pricing.Round2(q.Commission),
		AgencyID:       agency.ID,
		RequesterEmail: id.Email,
	})
	metrics.Reservations.WithLabelValues(metrics.Outcome(err)).Inc()
	if err != nil {
		return model.Reservation{}, err
	}

	ev := queue.ReservationCreatedEvent{
		EventID:        queue.NewEventID(),
		ReservationID:  res.ID,
		AgencyID:       agency.ID,
		AgencyName:     agency.Name,
		RequesterEmail: res.RequesterEmail,
		ProductName:    res.ProductName,
		Destination:    res.Destination,
		Date:           res.Date,
		Adults:         res.Adults,
		Children:       res.Children,
		Infants:        res.Infants,
		TotalAmount:    res.TotalAmount,
		Commission:     res.Commission,
		CreatedAt:      queue.Timestamp(p.createdAt(res)),
	}
	if err := p.events.Publish(ctx, queue.ReservationCreatedQueue, ev); err != nil {
		p.log.WithError(err).Warn("reservation.created not published", map[string]interface{}{"reservation_id": res.ID})
	}
	return res, nil
}

func (p *Portal) createdAt(r model.Reservation) time.Time {
	if r.CreatedAt.IsZero() {
		return p.now()
	}
	return r.CreatedAt
}

// MuralView is the bulletin board for one viewer.
type MuralView struct {
	Notices   []model.Notice `json:"notices"`
	HasUnread bool           `json:"hasUnread"`
}

// Mural lists notices with the caller's read state.
func (p *Portal) Mural(ctx context.Context, id model.Identity) (MuralView, error) {
	if strings.TrimSpace(id.Email) == "" {
		return MuralView{}, ErrUnauthorized
	}
	notices, err := p.tracker.ListNotices(ctx, id.Email, id.Name)
	if err != nil {
		return MuralView{}, err
	}
	return MuralView{Notices: notices, HasUnread: mural.HasUnread(notices)}, nil
}

// ConfirmRead records that the caller read a notice.  The caller must
// belong to an agency; write failures after that are reported in the result.
func (p *Portal) ConfirmRead(ctx context.Context, id model.Identity, noticeID string) (mural.ConfirmResult, error) {
	noticeID = strings.TrimSpace(noticeID)
	if noticeID == "" {
		return mural.ConfirmResult{}, ErrInvalidInput
	}
	agency, err := p.ResolveAgency(ctx, id)
	if err != nil {
		return mural.ConfirmResult{}, err
	}
	if agency == nil {
		return mural.ConfirmResult{}, ErrNoAgency
	}
	name := strings.TrimSpace(id.Name)
	if name == "" {
		name = id.Email
	}
	readAt := p.now().UTC()
	res, err := p.tracker.ConfirmRead(ctx, model.ReadReceipt{
		NoticeID:  noticeID,
		UserEmail: id.Email,
		UserName:  name,
		AgencyID:  agency.ID,
		Timestamp: readAt,
	})
	if err != nil {
		return res, err
	}
	ev := queue.NoticeReadEvent{
		EventID:       queue.NewEventID(),
		NoticeID:      noticeID,
		UserEmail:     id.Email,
		UserName:      name,
		AgencyID:      agency.ID,
		LogAppended:   res.LogAppended,
		ColumnUpdated: res.ColumnUpdated,
		ReadAt:        queue.Timestamp(readAt),
	}
	if err := p.events.Publish(ctx, queue.NoticeReadQueue, ev); err != nil {
		p.log.WithError(err).Warn("notice.read not published", map[string]interface{}{"notice_id": noticeID})
	}
	return res, nil
}

// Readers lists who read a notice.  Admins see every agency with agency
// names resolved; others see their own agency only, or nothing without one.
func (p *Portal) Readers(ctx context.Context, id model.Identity, noticeID string) ([]model.ReadReceipt, error) {
	noticeID = strings.TrimSpace(noticeID)
	if noticeID == "" {
		return nil, ErrInvalidInput
	}
	agency, err := p.ResolveAgency(ctx, id)
	if err != nil {
		return nil, err
	}
	info := agency.Info()
	readers := p.tracker.ListReaders(ctx, noticeID, info.ID, info.IsAdmin)
	if info.IsAdmin {
		p.resolveAgencyNames(ctx, readers)
	}
	return readers, nil
}

func (p *Portal) resolveAgencyNames(ctx context.Context, readers []model.ReadReceipt) {
	names := map[string]string{}
	for i := range readers {
		aid := readers[i].AgencyID
		if aid == "" {
			continue
		}
		name, ok := names[aid]
		if !ok {
			if a, err := p.agencies.GetByID(ctx, aid); err == nil && a != nil {
				name = a.Name
			} else if err != nil {
				p.log.WithError(err).Debug("agency name not resolved", map[string]interface{}{"agency_id": aid})
			}
			names[aid] = name
		}
		readers[i].AgencyName = name
	}
}

// CreateAgency registers a partner agency.  Only admins may call it.
func (p *Portal) CreateAgency(ctx context.Context, id model.Identity, req AgencyRequest) (*model.Agency, error) {
	caller, err := p.ResolveAgency(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.Info().IsAdmin {
		return nil, ErrForbidden
	}
	if err := validate(req); err != nil {
		return nil, err
	}
	return p.agencies.Create(ctx, model.Agency{
		Name:           strings.TrimSpace(req.Name),
		Email:          strings.TrimSpace(req.Email),
		CommissionRate: req.CommissionRate,
		IsAdmin:        req.IsAdmin,
		IsInternal:     req.IsInternal,
		CanReserve:     req.CanReserve,
		Skills:         req.Skills,
	})
}

func resolveLines(sheet []model.AgencyProduct, reqs []LineRequest) ([]pricing.Line, error) {
	byID := make(map[string]model.AgencyProduct, len(sheet))
	for _, ap := range sheet {
		byID[ap.ID] = ap
	}
	lines := make([]pricing.Line, 0, len(reqs))
	for _, r := range reqs {
		ap, ok := byID[r.ProductID]
		if !ok {
			return nil, &productError{id: r.ProductID}
		}
		lines = append(lines, pricing.Line{Product: ap, Adults: r.Adults, Children: r.Children, Infants: r.Infants})
	}
	return lines, nil
}

type productError struct{ id string }

func (e *productError) Error() string { return "product not found: " + e.id }
func (e *productError) Unwrap() error { return ErrProductNotFound }

// flattenNames joins tour names into one descriptive string.
func flattenNames(lines []pricing.QuoteLine) string {
	names := make([]string, 0, len(lines))
	for _, l := range lines {
		names = append(names, l.TourName)
	}
	return strings.Join(names, " + ")
}

func flattenDestinations(lines []pricing.QuoteLine) string {
	seen := map[string]bool{}
	var out []string
	for _, l := range lines {
		if l.Destination != "" && !seen[l.Destination] {
			seen[l.Destination] = true
			out = append(out, l.Destination)
		}
	}
	return strings.Join(out, ", ")
}
