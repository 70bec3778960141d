package model

// NetPrice holds the operator's base cost per passenger category.
type NetPrice struct {
	Adult  float64 `json:"adult"`
	Minor  float64 `json:"minor"`
	Infant float64 `json:"infant"`
}

// Product is one row of the tariff sheet as fetched for a single request.
// Values missing from the sheet have already been replaced by the mapper's
// defaults.
//
// Fields:
//
//	Destination  – "Destino", defaults to "General".
//	TourName     – "Atividade", defaults to "Unnamed Tour".
//	Category     – "Categoria do Serviço", defaults to "Other".
//	Net          – "INV26 ADU" / "INV26 CHD" / "INV26 INF".
//	Season       – "Temporada", multi-select joined with ", ".
//	EligibleDays – "Dias elegíveis".
//	ImageURL     – first file of "Mídia do Passeio".
type Product struct {
	ID           string   `json:"id"`
	Destination  string   `json:"destination"`
	TourName     string   `json:"tourName"`
	Category     string   `json:"category"`
	SubCategory  string   `json:"subCategory,omitempty"`
	Net          NetPrice `json:"netPrice"`
	Pickup       string   `json:"pickup,omitempty"`
	Return       string   `json:"return,omitempty"`
	Season       string   `json:"season,omitempty"`
	EligibleDays []string `json:"eligibleDays,omitempty"`
	Description  string   `json:"description,omitempty"`
	Inclusions   string   `json:"inclusions,omitempty"`
	Exclusions   string   `json:"exclusions,omitempty"`
	Requirements string   `json:"requirements,omitempty"`
	ExtraFees    string   `json:"extraFees,omitempty"`
	ImageURL     string   `json:"imageUrl,omitempty"`
}

// ConsumerPrice is the per-category price shown to the end customer.
type ConsumerPrice struct {
	Adult  float64 `json:"adult"`
	Minor  float64 `json:"minor"`
	Infant float64 `json:"infant"`
}

// AgencyProduct is a Product priced for one agency.
type AgencyProduct struct {
	Product
	Price ConsumerPrice `json:"consumerPrice"`
}
