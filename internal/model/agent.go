package model

import "time"

// Award is a recognition listed on an agent's profile.
type Award struct {
	Name         string     `json:"name"`
	Year         *int       `json:"year"`
	Level        AwardLevel `json:"level,omitempty"`
	Organization string     `json:"organization,omitempty"`
}

// Agent is one person working at an agency.
type Agent struct {
	ID       int64  `json:"id"`
	DomainID int64  `json:"domain_id"`
	Slug     string `json:"slug"`
	AgencyID *int64 `json:"agency_id"`

	// Joined from agencies for display.
	AgencyName string `json:"agency_name,omitempty"`
	AgencySlug string `json:"agency_slug,omitempty"`

	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
	Mobile          string `json:"mobile,omitempty"`
	PhotoURL        string `json:"photo_url,omitempty"`
	ProfileText     string `json:"profile_text,omitempty"`
	PrimarySuburb   string `json:"primary_suburb,omitempty"`
	PrimaryState    string `json:"primary_state,omitempty"`
	PrimaryPostcode string `json:"primary_postcode,omitempty"`

	EnrichedBio           string                `json:"enriched_bio,omitempty"`
	YearsExperience       *int                  `json:"years_experience"`
	YearsExperienceSource YearsExperienceSource `json:"years_experience_source,omitempty"`
	CareerStartYear       *int                  `json:"career_start_year"`
	Languages             []string              `json:"languages"`
	Specializations       []string              `json:"specializations"`
	PropertyTypes         []string              `json:"property_types"`
	Awards                []Award               `json:"awards"`

	LinkedInURL        string `json:"linkedin_url,omitempty"`
	FacebookURL        string `json:"facebook_url,omitempty"`
	InstagramURL       string `json:"instagram_url,omitempty"`
	PersonalWebsiteURL string `json:"personal_website_url,omitempty"`
	DomainProfileURL   string `json:"domain_profile_url,omitempty"`

	EnrichmentStatus  EnrichmentStatus  `json:"enrichment_status"`
	EnrichmentQuality EnrichmentQuality `json:"enrichment_quality,omitempty"`
	EnrichmentSources []string          `json:"enrichment_sources"`
	EnrichmentError   string            `json:"enrichment_error,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	EnrichedAt *time.Time `json:"enriched_at,omitempty"`
}

// FullName joins first and last name.
func (a Agent) FullName() string {
	switch {
	case a.FirstName == "":
		return a.LastName
	case a.LastName == "":
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

// Enrichment is the set of researched fields written back to an agent once
// its enrichment finishes.
type Enrichment struct {
	Bio                   string
	YearsExperience       *int
	YearsExperienceSource YearsExperienceSource
	CareerStartYear       *int
	Languages             []string
	Specializations       []string
	PropertyTypes         []string
	Awards                []Award
	LinkedInURL           string
	FacebookURL           string
	InstagramURL          string
	PersonalWebsiteURL    string
	Sources               []string
	Error                 string
	Status                EnrichmentStatus
	Quality               EnrichmentQuality
	EnrichedAt            time.Time
}
