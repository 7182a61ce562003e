package model

import "time"

// Agency is one real-estate office discovered in a suburb.
type Agency struct {
	ID            int64     `json:"id"`
	DomainID      int64     `json:"domain_id"`
	Slug          string    `json:"slug"`
	Name          string    `json:"name"`
	BrandName     string    `json:"brand_name,omitempty"`
	LogoURL       string    `json:"logo_url,omitempty"`
	Website       string    `json:"website,omitempty"`
	Description   string    `json:"description,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Email         string    `json:"email,omitempty"`
	StreetAddress string    `json:"street_address,omitempty"`
	Suburb        string    `json:"suburb"`
	State         string    `json:"state"`
	Postcode      string    `json:"postcode"`
	PrincipalName string    `json:"principal_name,omitempty"`
	AgentCount    int       `json:"agent_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
