package model

// Agency is a partner travel agency.  Email is the join key to the
// identity provider and is unique in the agency table.
type Agency struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`             // "Agency", falling back to "Name"
	Email          string   `json:"email"`            // "mail"
	CommissionRate float64  `json:"commissionRate"`   // "Comision_base", fractional
	IsAdmin        bool     `json:"isAdmin"`          // "Admin"
	IsInternal     bool     `json:"isInternal"`       // "Interno"
	CanReserve     bool     `json:"canReserve"`       // "Pode Reservar"
	Skills         []string `json:"skills,omitempty"` // "Skills"
}

// AgencyInfo is the agency context attached to a priced response.  A nil
// agency yields the zero value: no id, rate 0, no capabilities.
type AgencyInfo struct {
	ID             string  `json:"id,omitempty"`
	Name           string  `json:"name,omitempty"`
	CommissionRate float64 `json:"commissionRate"`
	IsAdmin        bool    `json:"isAdmin"`
	IsInternal     bool    `json:"isInternal"`
	CanReserve     bool    `json:"canReserve"`
}

// Info returns the agency context, tolerating a nil receiver.
func (a *Agency) Info() AgencyInfo {
	if a == nil {
		return AgencyInfo{}
	}
	return AgencyInfo{
		ID:             a.ID,
		Name:           a.Name,
		CommissionRate: a.CommissionRate,
		IsAdmin:        a.IsAdmin,
		IsInternal:     a.IsInternal,
		CanReserve:     a.CanReserve,
	}
}

// Rate returns the commission rate, 0 for a nil agency.
func (a *Agency) Rate() float64 {
	if a == nil {
		return 0
	}
	return a.CommissionRate
}
