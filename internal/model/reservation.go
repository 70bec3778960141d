package model

import "time"

// Reservation is a pre-reservation submitted by an agent.  It is created
// once and never updated; the operator confirms it outside the portal.
//
// Fields:
//
//	ProductName    – "Produto"; multiple products are flattened into one
//	                 descriptive string.
//	Date           – "Data", the tour date as entered (YYYY-MM-DD).
//	Adults/Children/Infants – pax counts.
//	Passengers     – "Passageiros", free-text passenger names.
//	TotalAmount    – "Valor Total", consumer total for all lines.
//	Commission     – "Comissão", computed on TotalAmount.
//	AgencyID       – "Agência", linked agency record.
//	RequesterEmail – "Email", the agent who submitted it.
type Reservation struct {
	ID             string    `json:"id,omitempty"`
	ProductName    string    `json:"productName"`
	Destination    string    `json:"destination"`
	Date           string    `json:"date"`
	Adults         int       `json:"adults"`
	Children       int       `json:"children"`
	Infants        int       `json:"infants"`
	Passengers     string    `json:"passengers,omitempty"`
	TotalAmount    float64   `json:"totalAmount"`
	Commission     float64   `json:"commission"`
	AgencyID       string    `json:"agencyId"`
	RequesterEmail string    `json:"requesterEmail"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Identity is the authenticated caller as asserted by the identity provider.
type Identity struct {
	Subject string `json:"sub,omitempty"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
}
