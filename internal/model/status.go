package model

// ScrapeStatus is the discovery lifecycle state of a suburb.
type ScrapeStatus string

const (
	ScrapeStatusPending    ScrapeStatus = "pending"
	ScrapeStatusInProgress ScrapeStatus = "in_progress"
	ScrapeStatusDiscovered ScrapeStatus = "discovered"
	ScrapeStatusComplete   ScrapeStatus = "complete"
	ScrapeStatusFailed     ScrapeStatus = "failed"
	ScrapeStatusAbandoned  ScrapeStatus = "abandoned"
)

// Valid reports whether s is a known scrape status.
func (s ScrapeStatus) Valid() bool {
	switch s {
	case ScrapeStatusPending, ScrapeStatusInProgress, ScrapeStatusDiscovered,
		ScrapeStatusComplete, ScrapeStatusFailed, ScrapeStatusAbandoned:
		return true
	}
	return false
}

// EnrichmentStatus is the enrichment lifecycle state of an agent.
type EnrichmentStatus string

const (
	EnrichmentPending    EnrichmentStatus = "pending"
	EnrichmentInProgress EnrichmentStatus = "in_progress"
	EnrichmentComplete   EnrichmentStatus = "complete"
	EnrichmentFailed     EnrichmentStatus = "failed"
	EnrichmentSkipped    EnrichmentStatus = "skipped"
)

// Valid reports whether s is a known enrichment status.
func (s EnrichmentStatus) Valid() bool {
	switch s {
	case EnrichmentPending, EnrichmentInProgress, EnrichmentComplete, EnrichmentFailed, EnrichmentSkipped:
		return true
	}
	return false
}

// EnrichmentQuality labels how well-sourced an enrichment result is.
type EnrichmentQuality string

const (
	QualityHigh    EnrichmentQuality = "high"
	QualityMedium  EnrichmentQuality = "medium"
	QualityLow     EnrichmentQuality = "low"
	QualityMinimal EnrichmentQuality = "minimal"
)

// ParseQuality maps free text onto a quality label. Unknown values are
// treated as minimal.
func ParseQuality(s string) EnrichmentQuality {
	switch q := EnrichmentQuality(s); q {
	case QualityHigh, QualityMedium, QualityLow, QualityMinimal:
		return q
	}
	return QualityMinimal
}

// YearsExperienceSource is where a years-of-experience figure came from.
type YearsExperienceSource string

const (
	SourceLinkedIn      YearsExperienceSource = "linkedin"
	SourceAgencyWebsite YearsExperienceSource = "agency_website"
	SourceGoogle        YearsExperienceSource = "google"
	SourceInferred      YearsExperienceSource = "inferred"
)

// ParseYearsSource returns the source for s, or "" when s is not recognised.
func ParseYearsSource(s string) YearsExperienceSource {
	switch src := YearsExperienceSource(s); src {
	case SourceLinkedIn, SourceAgencyWebsite, SourceGoogle, SourceInferred:
		return src
	}
	return ""
}

// AwardLevel is the scope at which an award was given.
type AwardLevel string

const (
	AwardAgency   AwardLevel = "agency"
	AwardRegional AwardLevel = "regional"
	AwardState    AwardLevel = "state"
	AwardNational AwardLevel = "national"
)

// ParseAwardLevel returns the level for s, or "" when s is not recognised.
func ParseAwardLevel(s string) AwardLevel {
	switch l := AwardLevel(s); l {
	case AwardAgency, AwardRegional, AwardState, AwardNational:
		return l
	}
	return ""
}
