package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/agent-research-cli/internal/db"
	"github.com/sells-group/agent-research-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS scrape_progress (
	id             BIGSERIAL PRIMARY KEY,
	suburb_id      TEXT NOT NULL UNIQUE,
	suburb_name    TEXT NOT NULL,
	state          TEXT NOT NULL,
	postcode       TEXT,
	slug           TEXT NOT NULL UNIQUE,
	priority_tier  INTEGER DEFAULT 3,
	region         TEXT,
	status         TEXT DEFAULT 'pending',
	agencies_found INTEGER DEFAULT 0,
	agents_found   INTEGER DEFAULT 0,
	started_at     TIMESTAMPTZ,
	completed_at   TIMESTAMPTZ,
	error_message  TEXT,
	retry_count    INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS agencies (
	id             BIGSERIAL PRIMARY KEY,
	domain_id      BIGINT UNIQUE NOT NULL,
	slug           TEXT UNIQUE NOT NULL,
	name           TEXT NOT NULL,
	brand_name     TEXT,
	logo_url       TEXT,
	website        TEXT,
	description    TEXT,
	phone          TEXT,
	email          TEXT,
	street_address TEXT,
	suburb         TEXT NOT NULL,
	state          TEXT NOT NULL,
	postcode       TEXT NOT NULL,
	principal_name TEXT,
	agent_count    INTEGER DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS agents (
	id                      BIGSERIAL PRIMARY KEY,
	domain_id               BIGINT UNIQUE NOT NULL,
	slug                    TEXT UNIQUE NOT NULL,
	agency_id               BIGINT REFERENCES agencies(id),
	first_name              TEXT NOT NULL,
	last_name               TEXT NOT NULL,
	email                   TEXT,
	phone                   TEXT,
	mobile                  TEXT,
	photo_url               TEXT,
	profile_text            TEXT,
	primary_suburb          TEXT,
	primary_state           TEXT,
	primary_postcode        TEXT,
	enriched_bio            TEXT,
	years_experience        INTEGER,
	years_experience_source TEXT,
	career_start_year       INTEGER,
	languages               TEXT NOT NULL DEFAULT '[]',
	specializations         TEXT NOT NULL DEFAULT '[]',
	property_types          TEXT NOT NULL DEFAULT '[]',
	awards                  TEXT NOT NULL DEFAULT '[]',
	linkedin_url            TEXT,
	facebook_url            TEXT,
	instagram_url           TEXT,
	personal_website_url    TEXT,
	domain_profile_url      TEXT,
	enrichment_status       TEXT NOT NULL DEFAULT 'pending',
	enrichment_quality      TEXT,
	enrichment_sources      TEXT NOT NULL DEFAULT '[]',
	enrichment_error        TEXT,
	created_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
	enriched_at             TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_scrape_progress_status ON scrape_progress(status);
CREATE INDEX IF NOT EXISTS idx_agencies_suburb ON agencies(lower(suburb), lower(state));
CREATE INDEX IF NOT EXISTS idx_agents_agency ON agents(agency_id);
CREATE INDEX IF NOT EXISTS idx_agents_suburb ON agents(lower(primary_suburb), lower(primary_state));
CREATE INDEX IF NOT EXISTS idx_agents_enrichment ON agents(enrichment_status, created_at, id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- suburbs

// SeedSuburbs loads the catalog through COPY and a single merge. Progress
// columns are never part of the merge so re-seeding keeps run state.
func (s *PostgresStore) SeedSuburbs(ctx context.Context, suburbs []model.Suburb) (int, error) {
	rows := make([][]any, 0, len(suburbs))
	for _, sb := range suburbs {
		rows = append(rows, []any{sb.SuburbID, sb.Name, sb.State, nullable(sb.Postcode), sb.Slug, sb.PriorityTier, nullable(sb.Region)})
	}
	n, err := db.Merge(ctx, s.pool, db.MergeSpec{
		Table:   "scrape_progress",
		Columns: []string{"suburb_id", "suburb_name", "state", "postcode", "slug", "priority_tier", "region"},
		Keys:    []string{"suburb_id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: seed suburbs")
	}
	return int(n), nil
}

func (s *PostgresStore) GetSuburb(ctx context.Context, slug string) (*model.Suburb, error) {
	sb, err := scanSuburb(s.pool.QueryRow(ctx,
		`SELECT `+suburbColumns+` FROM scrape_progress WHERE slug = $1`, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return sb, eris.Wrapf(err, "postgres: get suburb %s", slug)
}

func (s *PostgresStore) FindSuburb(ctx context.Context, name, state string) (*model.Suburb, error) {
	sb, err := scanSuburb(s.pool.QueryRow(ctx,
		`SELECT `+suburbColumns+` FROM scrape_progress
		 WHERE lower(suburb_name) = lower($1) AND lower(state) = lower($2)
		 ORDER BY id LIMIT 1`, strings.TrimSpace(name), strings.TrimSpace(state)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return sb, eris.Wrapf(err, "postgres: find suburb %s %s", name, state)
}

func (s *PostgresStore) ListSuburbs(ctx context.Context, filter SuburbFilter) ([]model.Suburb, error) {
	query := `SELECT ` + suburbColumns + ` FROM scrape_progress WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND COALESCE(status, 'pending') = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.State != "" {
		query += fmt.Sprintf(` AND lower(state) = lower($%d)`, argIdx)
		args = append(args, filter.State)
		argIdx++
	}
	if filter.Tier > 0 {
		query += fmt.Sprintf(` AND priority_tier = $%d`, argIdx)
		args = append(args, filter.Tier)
		argIdx++
	}
	query += ` ORDER BY priority_tier, id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list suburbs")
	}
	defer rows.Close()

	var out []model.Suburb
	for rows.Next() {
		sb, err := scanSuburb(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan suburb")
		}
		out = append(out, *sb)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list suburbs iterate")
}

func (s *PostgresStore) UpdateSuburb(ctx context.Context, slug string, u model.SuburbUpdate) error {
	if u.Empty() {
		return nil
	}
	set, args := suburbSet(u, func(n int) string { return fmt.Sprintf("$%d", n) })
	args = append(args, slug)
	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE scrape_progress SET %s WHERE slug = $%d`, set, len(args)), args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update suburb %s", slug)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("suburb not found: %s", slug)
	}
	return nil
}

func (s *PostgresStore) CountSuburbsByStatus(ctx context.Context) (map[string]int, error) {
	return s.groupCounts(ctx, `SELECT COALESCE(status, 'pending'), COUNT(*) FROM scrape_progress GROUP BY 1`)
}

// --- agencies and agents

// resolvePgID locks and returns the row matching either key.
func resolvePgID(ctx context.Context, tx pgx.Tx, table string, domainID int64, slug string) (int64, bool, error) {
	rows, err := tx.Query(ctx,
		`SELECT id FROM `+table+` WHERE domain_id = $1 OR slug = $2 FOR UPDATE`, domainID, slug)
	if err != nil {
		return 0, false, eris.Wrapf(err, "postgres: lookup %s", table)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return 0, false, eris.Wrapf(err, "postgres: scan %s id", table)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, false, eris.Wrapf(err, "postgres: lookup %s iterate", table)
	}
	switch len(ids) {
	case 0:
		return 0, false, nil
	case 1:
		return ids[0], true, nil
	}
	return 0, false, eris.Wrapf(ErrIdentityConflict, "%s domain_id=%d slug=%s", table, domainID, slug)
}

func upsertAgencyPg(ctx context.Context, tx pgx.Tx, a *model.Agency, now time.Time) (int64, error) {
	id, found, err := resolvePgID(ctx, tx, "agencies", a.DomainID, a.Slug)
	if err != nil {
		return 0, err
	}
	if found {
		_, err := tx.Exec(ctx, `
			UPDATE agencies SET
				domain_id = $1, slug = $2, name = $3, brand_name = $4, logo_url = $5,
				website = COALESCE($6, website), description = $7, phone = $8, email = $9,
				street_address = $10, suburb = $11, state = $12, postcode = $13, agent_count = $14, updated_at = $15
			WHERE id = $16`,
			a.DomainID, a.Slug, a.Name, nullable(a.BrandName), nullable(a.LogoURL),
			nullable(a.Website), nullable(a.Description), nullable(a.Phone), nullable(a.Email),
			nullable(a.StreetAddress), a.Suburb, a.State, a.Postcode, a.AgentCount, now, id)
		return id, eris.Wrapf(err, "postgres: update agency %s", a.Slug)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO agencies (domain_id, slug, name, brand_name, logo_url, website, description,
			phone, email, street_address, suburb, state, postcode, principal_name, agent_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)
		RETURNING id`,
		a.DomainID, a.Slug, a.Name, nullable(a.BrandName), nullable(a.LogoURL), nullable(a.Website),
		nullable(a.Description), nullable(a.Phone), nullable(a.Email), nullable(a.StreetAddress),
		a.Suburb, a.State, a.Postcode, nullable(a.PrincipalName), a.AgentCount, now,
	).Scan(&id)
	return id, eris.Wrapf(err, "postgres: insert agency %s", a.Slug)
}

func upsertAgentPg(ctx context.Context, tx pgx.Tx, a *model.Agent, now time.Time) (int64, error) {
	id, found, err := resolvePgID(ctx, tx, "agents", a.DomainID, a.Slug)
	if err != nil {
		return 0, err
	}
	if found {
		_, err := tx.Exec(ctx, `
			UPDATE agents SET
				domain_id = $1, slug = $2, agency_id = $3, first_name = $4, last_name = $5,
				email = $6, phone = $7, mobile = $8, photo_url = $9, profile_text = $10,
				primary_suburb = $11, primary_state = $12, primary_postcode = $13, updated_at = $14
			WHERE id = $15`,
			a.DomainID, a.Slug, nullableID(a.AgencyID), a.FirstName, a.LastName,
			nullable(a.Email), nullable(a.Phone), nullable(a.Mobile), nullable(a.PhotoURL), nullable(a.ProfileText),
			nullable(a.PrimarySuburb), nullable(a.PrimaryState), nullable(a.PrimaryPostcode), now, id)
		return id, eris.Wrapf(err, "postgres: update agent %s", a.Slug)
	}

	languages, specs, propTypes, awards, sources, err := agentListArgs(a)
	if err != nil {
		return 0, err
	}
	status := a.EnrichmentStatus
	if status == "" {
		status = model.EnrichmentPending
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO agents (domain_id, slug, agency_id, first_name, last_name, email, phone, mobile,
			photo_url, profile_text, primary_suburb, primary_state, primary_postcode,
			languages, specializations, property_types, awards, enrichment_sources,
			enrichment_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $20)
		RETURNING id`,
		a.DomainID, a.Slug, nullableID(a.AgencyID), a.FirstName, a.LastName,
		nullable(a.Email), nullable(a.Phone), nullable(a.Mobile), nullable(a.PhotoURL), nullable(a.ProfileText),
		nullable(a.PrimarySuburb), nullable(a.PrimaryState), nullable(a.PrimaryPostcode),
		languages, specs, propTypes, awards, sources, string(status), now,
	).Scan(&id)
	return id, eris.Wrapf(err, "postgres: insert agent %s", a.Slug)
}

func (s *PostgresStore) UpsertAgencyGroup(ctx context.Context, agency *model.Agency, agents []model.Agent) (*GroupResult, error) {
	var res *GroupResult
	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		agencyID, err := upsertAgencyPg(ctx, tx, agency, now)
		if err != nil {
			return err
		}
		res = &GroupResult{AgencyID: agencyID}
		for i := range agents {
			agent := agents[i]
			agent.AgencyID = &agencyID
			id, err := upsertAgentPg(ctx, tx, &agent, now.Add(time.Duration(i)*time.Microsecond))
			if err != nil {
				return err
			}
			res.AgentIDs = append(res.AgentIDs, id)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert agency group %s", agency.Slug)
	}
	return res, nil
}

func (s *PostgresStore) GetAgency(ctx context.Context, slug string) (*model.Agency, error) {
	a, err := scanAgency(s.pool.QueryRow(ctx, `SELECT `+agencyColumns+` FROM agencies WHERE slug = $1`, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, eris.Wrapf(err, "postgres: get agency %s", slug)
}

func (s *PostgresStore) GetAgencyByID(ctx context.Context, id int64) (*model.Agency, error) {
	a, err := scanAgency(s.pool.QueryRow(ctx, `SELECT `+agencyColumns+` FROM agencies WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, eris.Wrapf(err, "postgres: get agency %d", id)
}

func (s *PostgresStore) ListAgencies(ctx context.Context, filter AgencyFilter) ([]model.Agency, error) {
	query := `SELECT ` + agencyColumns + ` FROM agencies WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Suburb != "" {
		query += fmt.Sprintf(` AND lower(suburb) = lower($%d)`, argIdx)
		args = append(args, filter.Suburb)
		argIdx++
	}
	if filter.State != "" {
		query += fmt.Sprintf(` AND lower(state) = lower($%d)`, argIdx)
		args = append(args, filter.State)
		argIdx++
	}
	if filter.Postcode != "" {
		query += fmt.Sprintf(` AND postcode = $%d`, argIdx)
		args = append(args, filter.Postcode)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY name, id LIMIT $%d`, argIdx)
	args = append(args, clampLimit(filter.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list agencies")
	}
	defer rows.Close()

	var out []model.Agency
	for rows.Next() {
		a, err := scanAgency(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan agency")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list agencies iterate")
}

func (s *PostgresStore) SetAgencyWebsite(ctx context.Context, id int64, website string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE agencies SET website = $1, updated_at = $2 WHERE id = $3`,
		website, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "postgres: set agency website %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("agency not found: %d", id)
	}
	return nil
}

func (s *PostgresStore) GetAgent(ctx context.Context, slug string) (*model.Agent, error) {
	a, err := scanAgent(s.pool.QueryRow(ctx, `SELECT `+agentColumns+agentFrom+` WHERE a.slug = $1`, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, eris.Wrapf(err, "postgres: get agent %s", slug)
}

func (s *PostgresStore) ListAgents(ctx context.Context, filter AgentFilter) ([]model.Agent, error) {
	query := `SELECT ` + agentColumns + agentFrom + ` WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Suburb != "" {
		query += fmt.Sprintf(` AND (lower(a.primary_suburb) = lower($%d) OR lower(ag.suburb) = lower($%d))`, argIdx, argIdx)
		args = append(args, filter.Suburb)
		argIdx++
	}
	if filter.State != "" {
		query += fmt.Sprintf(` AND (lower(a.primary_state) = lower($%d) OR lower(ag.state) = lower($%d))`, argIdx, argIdx)
		args = append(args, filter.State)
		argIdx++
	}
	if filter.AgencyID > 0 {
		query += fmt.Sprintf(` AND a.agency_id = $%d`, argIdx)
		args = append(args, filter.AgencyID)
		argIdx++
	}
	if filter.EnrichmentStatus != "" {
		query += fmt.Sprintf(` AND a.enrichment_status = $%d`, argIdx)
		args = append(args, string(filter.EnrichmentStatus))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY a.created_at, a.id LIMIT $%d`, argIdx)
	args = append(args, clampLimit(filter.Limit))

	return s.queryAgents(ctx, query, args...)
}

func (s *PostgresStore) queryAgents(ctx context.Context, query string, args ...any) ([]model.Agent, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list agents")
	}
	defer rows.Close()

	var out []model.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan agent")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list agents iterate")
}

func (s *PostgresStore) CountSuburbRows(ctx context.Context, suburb, state string) (int, int, error) {
	var agencies, agents int
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM agencies WHERE lower(suburb) = lower($1) AND lower(state) = lower($2)),
			(SELECT COUNT(*) FROM agents a LEFT JOIN agencies ag ON ag.id = a.agency_id
			 WHERE (lower(a.primary_suburb) = lower($1) AND lower(a.primary_state) = lower($2))
			    OR (lower(ag.suburb) = lower($1) AND lower(ag.state) = lower($2)))`,
		suburb, state).Scan(&agencies, &agents)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "postgres: count rows in %s", suburb)
	}
	return agencies, agents, nil
}

// ClaimPendingAgents flips up to limit of the oldest pending agents to
// in_progress. SKIP LOCKED lets concurrent claimers take disjoint rows.
func (s *PostgresStore) ClaimPendingAgents(ctx context.Context, limit int) ([]model.Agent, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		WITH claimed AS (
			UPDATE agents SET enrichment_status = 'in_progress', enrichment_error = NULL,
				enrichment_sources = '[]', updated_at = now()
			WHERE id IN (
				SELECT id FROM agents WHERE enrichment_status = 'pending'
				ORDER BY created_at, id LIMIT $1
				FOR UPDATE SKIP LOCKED
			)
			RETURNING *
		)
		SELECT `+strings.ReplaceAll(agentColumns, "a.", "claimed.")+`
		FROM claimed LEFT JOIN agencies ag ON ag.id = claimed.agency_id
		ORDER BY claimed.created_at, claimed.id`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: claim pending agents")
	}
	defer rows.Close()

	var out []model.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan claimed agent")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: claim iterate")
}

func (s *PostgresStore) UpdateAgentEnrichment(ctx context.Context, id int64, e model.Enrichment) error {
	args, err := enrichmentArgs(e)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE agents SET
			enriched_bio = $1, years_experience = $2, years_experience_source = $3, career_start_year = $4,
			languages = $5, specializations = $6, property_types = $7, awards = $8,
			linkedin_url = $9, facebook_url = $10, instagram_url = $11, personal_website_url = $12,
			enrichment_sources = $13, enrichment_error = $14, enrichment_status = $15, enrichment_quality = $16,
			enriched_at = $17, updated_at = $18
		WHERE id = $19`, append(args, time.Now().UTC(), id)...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update agent enrichment %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("agent not found: %d", id)
	}
	return nil
}

func (s *PostgresStore) FailAgents(ctx context.Context, ids []int64, message string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE agents SET enrichment_status = 'failed', enrichment_error = $1, updated_at = $2
		 WHERE id = ANY($3)`, nullable(message), time.Now().UTC(), ids)
	return eris.Wrap(err, "postgres: fail agents")
}

func (s *PostgresStore) CountAgentsByStatus(ctx context.Context) (map[string]int, error) {
	return s.groupCounts(ctx, `SELECT COALESCE(enrichment_status, 'pending'), COUNT(*) FROM agents GROUP BY 1`)
}

func (s *PostgresStore) CountAgentsByQuality(ctx context.Context) (map[string]int, error) {
	return s.groupCounts(ctx, `SELECT COALESCE(enrichment_quality, 'none'), COUNT(*) FROM agents GROUP BY 1`)
}

func (s *PostgresStore) Totals(ctx context.Context) (*Totals, error) {
	var t Totals
	err := s.pool.QueryRow(ctx, `SELECT
		(SELECT COUNT(*) FROM scrape_progress),
		(SELECT COUNT(*) FROM agencies),
		(SELECT COUNT(*) FROM agents)`).Scan(&t.Suburbs, &t.Agencies, &t.Agents)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: totals")
	}
	return &t, nil
}

func (s *PostgresStore) groupCounts(ctx context.Context, query string) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: group counts")
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan group count")
		}
		out[key] = n
	}
	return out, eris.Wrap(rows.Err(), "postgres: group counts iterate")
}
