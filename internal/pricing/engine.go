// Package pricing turns net tariffs and an agency commission rate into
// consumer prices and booking quotes.  Everything here is pure.
package pricing

import (
	"math"

	"github.com/iliyamo/partner-portal/internal/model"
)

// Round2 rounds half up at the cent: x*100 goes to the nearest integer and
// exact halves go towards +Inf (-0.005 becomes -0, 0.005 becomes 0.01).
func Round2(x float64) float64 {
	v := x * 100
	r := math.Floor(v)
	// v-r is exact; adding 0.5 to v first could round up in float64
	if v-r >= 0.5 {
		r++
	}
	return r / 100
}

// ConsumerPrice applies the commission markup to a net price.  A NaN or
// infinite base is treated as 0.  The rate is not range checked: a negative
// rate discounts and a rate above 1 more than doubles the price.
func ConsumerPrice(base, rate float64) float64 {
	if math.IsNaN(base) || math.IsInf(base, 0) {
		base = 0
	}
	return Round2(base + base*rate)
}

// PriceProduct prices all three passenger categories with the same rate.
func PriceProduct(p model.Product, rate float64) model.AgencyProduct {
	return model.AgencyProduct{
		Product: p,
		Price: model.ConsumerPrice{
			Adult:  ConsumerPrice(p.Net.Adult, rate),
			Minor:  ConsumerPrice(p.Net.Minor, rate),
			Infant: ConsumerPrice(p.Net.Infant, rate),
		},
	}
}

// PriceAll prices a tariff sheet.
func PriceAll(products []model.Product, rate float64) []model.AgencyProduct {
	out := make([]model.AgencyProduct, len(products))
	for i, p := range products {
		out[i] = PriceProduct(p, rate)
	}
	return out
}

// Line is one product of a simulation with its pax counts.
type Line struct {
	Product  model.AgencyProduct
	Adults   int
	Children int
	Infants  int
}

// QuoteLine is a priced simulation line.
type QuoteLine struct {
	ProductID   string  `json:"productId"`
	TourName    string  `json:"tourName"`
	Destination string  `json:"destination"`
	Adults      int     `json:"adults"`
	Children    int     `json:"children"`
	Infants     int     `json:"infants"`
	Subtotal    float64 `json:"subtotal"`
}

// Quote is the result of a simulation.  Commission is computed once on
// Total, never summed per line.
type Quote struct {
	Lines      []QuoteLine `json:"lines"`
	Total      float64     `json:"total"`
	Commission float64     `json:"commission"`
	Rate       float64     `json:"commissionRate"`
}

// Pax returns the summed passenger counts across all lines.
func (q Quote) Pax() (adults, children, infants int) {
	for _, l := range q.Lines {
		adults += l.Adults
		children += l.Children
		infants += l.Infants
	}
	return adults, children, infants
}

// Simulate totals the lines using their already rounded consumer prices and
// applies the commission rate to the consolidated total.
func Simulate(lines []Line, rate float64) Quote {
	q := Quote{Lines: make([]QuoteLine, 0, len(lines)), Rate: rate}
	var total float64
	for _, l := range lines {
		sub := float64(l.Adults)*l.Product.Price.Adult +
			float64(l.Children)*l.Product.Price.Minor +
			float64(l.Infants)*l.Product.Price.Infant
		// prices are whole cents; this only strips float drift
		sub = Round2(sub)
		total += sub
		q.Lines = append(q.Lines, QuoteLine{
			ProductID:   l.Product.ID,
			TourName:    l.Product.TourName,
			Destination: l.Product.Destination,
			Adults:      l.Adults,
			Children:    l.Children,
			Infants:     l.Infants,
			Subtotal:    sub,
		})
	}
	q.Total = Round2(total)
	q.Commission = q.Total * rate
	return q
}
