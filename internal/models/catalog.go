package models

// ServiceTypes enumerates the catalog categories.
var ServiceTypes = []string{"cleaning", "laundry", "maintenance", "transport", "food", "other"}

// CatalogItem is a bookable service offered to residents.
type CatalogItem struct {
	Meta
	NameEn        string  `json:"nameEn"`
	NameAr        string  `json:"nameAr"`
	DescriptionEn string  `json:"descriptionEn"`
	DescriptionAr string  `json:"descriptionAr"`
	Type          string  `json:"type"`
	Price         float64 `json:"price"`
	Duration      int     `json:"duration"`
	IsAvailable   bool    `json:"isAvailable"`
	ImageID       string  `json:"imageId"`
	ImageURL      string  `json:"imageUrl"`
	ProviderName  string  `json:"providerName"`
	ProviderPhone string  `json:"providerPhone"`
	ProviderEmail string  `json:"providerEmail"`
	CreatedBy     string  `json:"createdBy,omitempty"`
	UpdatedBy     string  `json:"updatedBy,omitempty"`
}

type CatalogInput struct {
	NameEn        string  `json:"nameEn"`
	NameAr        string  `json:"nameAr"`
	DescriptionEn string  `json:"descriptionEn"`
	DescriptionAr string  `json:"descriptionAr"`
	Type          string  `json:"type"`
	Price         float64 `json:"price"`
	Duration      int     `json:"duration"`
	IsAvailable   *bool   `json:"isAvailable"`
	ProviderName  string  `json:"providerName"`
	ProviderPhone string  `json:"providerPhone"`
	ProviderEmail string  `json:"providerEmail"`
}

type CatalogFilter struct {
	Type      string
	Available *bool
	Search    string
	Limit     int
	Offset    int
}
