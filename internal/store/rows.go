package store

import (
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/agent-research-cli/internal/model"
)

// Column lists shared by both backends. Scans go through pointer-to-pointer
// destinations, which database/sql and pgx both set to nil for NULL.

const suburbColumns = `id, suburb_id, suburb_name, state, postcode, slug, priority_tier, region,
	status, agencies_found, agents_found, started_at, completed_at, error_message, retry_count`

const agencyColumns = `id, domain_id, slug, name, brand_name, logo_url, website, description,
	phone, email, street_address, suburb, state, postcode, principal_name, agent_count,
	created_at, updated_at`

const agentColumns = `a.id, a.domain_id, a.slug, a.agency_id, ag.name, ag.slug,
	a.first_name, a.last_name, a.email, a.phone, a.mobile, a.photo_url, a.profile_text,
	a.primary_suburb, a.primary_state, a.primary_postcode,
	a.enriched_bio, a.years_experience, a.years_experience_source, a.career_start_year,
	a.languages, a.specializations, a.property_types, a.awards,
	a.linkedin_url, a.facebook_url, a.instagram_url, a.personal_website_url, a.domain_profile_url,
	a.enrichment_status, a.enrichment_quality, a.enrichment_sources, a.enrichment_error,
	a.created_at, a.updated_at, a.enriched_at`

const agentFrom = ` FROM agents a LEFT JOIN agencies ag ON ag.id = a.agency_id`

type scannable interface {
	Scan(dest ...any) error
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// nullable maps "" to NULL for optional text columns.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableID(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

type suburbRow struct {
	m            model.Suburb
	postcode     *string
	region       *string
	status       *string
	errorMessage *string
	tier         *int64
	agencies     *int64
	agents       *int64
	retries      *int64
}

func (r *suburbRow) dest() []any {
	return []any{
		&r.m.ID, &r.m.SuburbID, &r.m.Name, &r.m.State, &r.postcode, &r.m.Slug, &r.tier, &r.region,
		&r.status, &r.agencies, &r.agents, &r.m.StartedAt, &r.m.CompletedAt, &r.errorMessage, &r.retries,
	}
}

func (r *suburbRow) model() *model.Suburb {
	s := r.m
	s.Postcode = str(r.postcode)
	s.Region = str(r.region)
	s.ErrorMessage = str(r.errorMessage)
	s.Status = model.ScrapeStatusPending
	if r.status != nil && *r.status != "" {
		s.Status = model.ScrapeStatus(*r.status)
	}
	s.PriorityTier = 3
	if r.tier != nil {
		s.PriorityTier = int(*r.tier)
	}
	if r.agencies != nil {
		s.AgenciesFound = int(*r.agencies)
	}
	if r.agents != nil {
		s.AgentsFound = int(*r.agents)
	}
	if r.retries != nil {
		s.RetryCount = int(*r.retries)
	}
	return &s
}

func scanSuburb(row scannable) (*model.Suburb, error) {
	var r suburbRow
	if err := row.Scan(r.dest()...); err != nil {
		return nil, err
	}
	return r.model(), nil
}

type agencyRow struct {
	m                                                 model.Agency
	brand, logo, website, desc, phone, email, street *string
	principal                                         *string
	agentCount                                        *int64
	createdAt, updatedAt                              *time.Time
}

func (r *agencyRow) dest() []any {
	return []any{
		&r.m.ID, &r.m.DomainID, &r.m.Slug, &r.m.Name, &r.brand, &r.logo, &r.website, &r.desc,
		&r.phone, &r.email, &r.street, &r.m.Suburb, &r.m.State, &r.m.Postcode, &r.principal, &r.agentCount,
		&r.createdAt, &r.updatedAt,
	}
}

func (r *agencyRow) model() *model.Agency {
	a := r.m
	a.BrandName = str(r.brand)
	a.LogoURL = str(r.logo)
	a.Website = str(r.website)
	a.Description = str(r.desc)
	a.Phone = str(r.phone)
	a.Email = str(r.email)
	a.StreetAddress = str(r.street)
	a.PrincipalName = str(r.principal)
	if r.agentCount != nil {
		a.AgentCount = int(*r.agentCount)
	}
	if r.createdAt != nil {
		a.CreatedAt = *r.createdAt
	}
	if r.updatedAt != nil {
		a.UpdatedAt = *r.updatedAt
	}
	return &a
}

func scanAgency(row scannable) (*model.Agency, error) {
	var r agencyRow
	if err := row.Scan(r.dest()...); err != nil {
		return nil, err
	}
	return r.model(), nil
}

type agentRow struct {
	m                                   model.Agent
	agencyName, agencySlug              *string
	email, phone, mobile, photo, prof   *string
	suburb, state, postcode             *string
	bio, yearsSource                    *string
	years, careerStart                  *int64
	languages, specs, propTypes, awards *string
	linkedin, facebook, instagram       *string
	website, domainProfile              *string
	status, quality, sources, errMsg    *string
	createdAt, updatedAt                *time.Time
}

func (r *agentRow) dest() []any {
	return []any{
		&r.m.ID, &r.m.DomainID, &r.m.Slug, &r.m.AgencyID, &r.agencyName, &r.agencySlug,
		&r.m.FirstName, &r.m.LastName, &r.email, &r.phone, &r.mobile, &r.photo, &r.prof,
		&r.suburb, &r.state, &r.postcode,
		&r.bio, &r.years, &r.yearsSource, &r.careerStart,
		&r.languages, &r.specs, &r.propTypes, &r.awards,
		&r.linkedin, &r.facebook, &r.instagram, &r.website, &r.domainProfile,
		&r.status, &r.quality, &r.sources, &r.errMsg,
		&r.createdAt, &r.updatedAt, &r.m.EnrichedAt,
	}
}

func optInt(p *int64) *int {
	if p == nil {
		return nil
	}
	v := int(*p)
	return &v
}

func (r *agentRow) model() (*model.Agent, error) {
	a := r.m
	a.AgencyName = str(r.agencyName)
	a.AgencySlug = str(r.agencySlug)
	a.Email = str(r.email)
	a.Phone = str(r.phone)
	a.Mobile = str(r.mobile)
	a.PhotoURL = str(r.photo)
	a.ProfileText = str(r.prof)
	a.PrimarySuburb = str(r.suburb)
	a.PrimaryState = str(r.state)
	a.PrimaryPostcode = str(r.postcode)
	a.EnrichedBio = str(r.bio)
	a.YearsExperience = optInt(r.years)
	a.YearsExperienceSource = model.YearsExperienceSource(str(r.yearsSource))
	a.CareerStartYear = optInt(r.careerStart)
	a.LinkedInURL = str(r.linkedin)
	a.FacebookURL = str(r.facebook)
	a.InstagramURL = str(r.instagram)
	a.PersonalWebsiteURL = str(r.website)
	a.DomainProfileURL = str(r.domainProfile)
	a.EnrichmentStatus = model.EnrichmentPending
	if s := str(r.status); s != "" {
		a.EnrichmentStatus = model.EnrichmentStatus(s)
	}
	a.EnrichmentQuality = model.EnrichmentQuality(str(r.quality))
	a.EnrichmentError = str(r.errMsg)
	if r.createdAt != nil {
		a.CreatedAt = *r.createdAt
	}
	if r.updatedAt != nil {
		a.UpdatedAt = *r.updatedAt
	}

	var err error
	if a.Languages, err = model.DecodeList(str(r.languages)); err != nil {
		return nil, eris.Wrapf(err, "agent %d languages", a.ID)
	}
	if a.Specializations, err = model.DecodeList(str(r.specs)); err != nil {
		return nil, eris.Wrapf(err, "agent %d specializations", a.ID)
	}
	if a.PropertyTypes, err = model.DecodeList(str(r.propTypes)); err != nil {
		return nil, eris.Wrapf(err, "agent %d property_types", a.ID)
	}
	if a.EnrichmentSources, err = model.DecodeList(str(r.sources)); err != nil {
		return nil, eris.Wrapf(err, "agent %d enrichment_sources", a.ID)
	}
	if a.Awards, err = model.DecodeAwards(str(r.awards)); err != nil {
		return nil, eris.Wrapf(err, "agent %d awards", a.ID)
	}
	return &a, nil
}

func scanAgent(row scannable) (*model.Agent, error) {
	var r agentRow
	if err := row.Scan(r.dest()...); err != nil {
		return nil, err
	}
	return r.model()
}

// agentListArgs encodes the list-valued columns of an agent for insert.
func agentListArgs(a *model.Agent) (languages, specs, propTypes, awards, sources string, err error) {
	if languages, err = model.EncodeList(a.Languages); err != nil {
		return
	}
	if specs, err = model.EncodeList(a.Specializations); err != nil {
		return
	}
	if propTypes, err = model.EncodeList(a.PropertyTypes); err != nil {
		return
	}
	if awards, err = model.EncodeAwards(a.Awards); err != nil {
		return
	}
	sources, err = model.EncodeList(a.EnrichmentSources)
	return
}

// enrichmentArgs returns the values for an enrichment update in column order:
// bio, years, years source, career start, the four list columns, the four
// social URLs, sources, error, status, quality and enriched_at.
func enrichmentArgs(e model.Enrichment) ([]any, error) {
	languages, err := model.EncodeList(e.Languages)
	if err != nil {
		return nil, err
	}
	specs, err := model.EncodeList(e.Specializations)
	if err != nil {
		return nil, err
	}
	propTypes, err := model.EncodeList(e.PropertyTypes)
	if err != nil {
		return nil, err
	}
	awards, err := model.EncodeAwards(e.Awards)
	if err != nil {
		return nil, err
	}
	sources, err := model.EncodeList(e.Sources)
	if err != nil {
		return nil, err
	}
	enrichedAt := e.EnrichedAt
	if enrichedAt.IsZero() {
		enrichedAt = time.Now()
	}
	return []any{
		nullable(e.Bio), nullableInt(e.YearsExperience), nullable(string(e.YearsExperienceSource)), nullableInt(e.CareerStartYear),
		languages, specs, propTypes, awards,
		nullable(e.LinkedInURL), nullable(e.FacebookURL), nullable(e.InstagramURL), nullable(e.PersonalWebsiteURL),
		sources, nullable(e.Error), string(e.Status), nullable(string(e.Quality)),
		enrichedAt.UTC(),
	}, nil
}
