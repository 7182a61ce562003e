package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/agent-research-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One connection serializes writers, so the pending-agent claim and the
	// per-agency transactions never interleave.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS scrape_progress (
	id             INTEGER PRIMARY KEY,
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
	started_at     DATETIME,
	completed_at   DATETIME,
	error_message  TEXT,
	retry_count    INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS agencies (
	id             INTEGER PRIMARY KEY,
	domain_id      INTEGER UNIQUE NOT NULL,
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
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS agents (
	id                      INTEGER PRIMARY KEY,
	domain_id               INTEGER UNIQUE NOT NULL,
	slug                    TEXT UNIQUE NOT NULL,
	agency_id               INTEGER REFERENCES agencies(id),
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
	created_at              DATETIME NOT NULL,
	updated_at              DATETIME NOT NULL,
	enriched_at             DATETIME
);

CREATE INDEX IF NOT EXISTS idx_scrape_progress_status ON scrape_progress(status);
CREATE INDEX IF NOT EXISTS idx_agencies_suburb ON agencies(suburb, state);
CREATE INDEX IF NOT EXISTS idx_agents_agency ON agents(agency_id);
CREATE INDEX IF NOT EXISTS idx_agents_suburb ON agents(primary_suburb, primary_state);
CREATE INDEX IF NOT EXISTS idx_agents_enrichment ON agents(enrichment_status, created_at);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- suburbs

func (s *SQLiteStore) SeedSuburbs(ctx context.Context, suburbs []model.Suburb) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: seed begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scrape_progress (suburb_id, suburb_name, state, postcode, slug, priority_tier, region, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, 'pending')
		ON CONFLICT (suburb_id) DO UPDATE SET
			suburb_name = excluded.suburb_name,
			state = excluded.state,
			postcode = excluded.postcode,
			slug = excluded.slug,
			priority_tier = excluded.priority_tier,
			region = excluded.region`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: seed prepare")
	}
	defer stmt.Close()

	for _, sb := range suburbs {
		if _, err := stmt.ExecContext(ctx, sb.SuburbID, sb.Name, sb.State, nullable(sb.Postcode),
			sb.Slug, sb.PriorityTier, nullable(sb.Region)); err != nil {
			return 0, eris.Wrapf(err, "sqlite: seed suburb %s", sb.Slug)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: seed commit")
	}
	return len(suburbs), nil
}

func (s *SQLiteStore) GetSuburb(ctx context.Context, slug string) (*model.Suburb, error) {
	sb, err := scanSuburb(s.db.QueryRowContext(ctx,
		`SELECT `+suburbColumns+` FROM scrape_progress WHERE slug = ?`, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sb, eris.Wrapf(err, "sqlite: get suburb %s", slug)
}

func (s *SQLiteStore) FindSuburb(ctx context.Context, name, state string) (*model.Suburb, error) {
	sb, err := scanSuburb(s.db.QueryRowContext(ctx,
		`SELECT `+suburbColumns+` FROM scrape_progress
		 WHERE lower(suburb_name) = lower(?) AND lower(state) = lower(?)
		 ORDER BY id LIMIT 1`, strings.TrimSpace(name), strings.TrimSpace(state)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sb, eris.Wrapf(err, "sqlite: find suburb %s %s", name, state)
}

func (s *SQLiteStore) ListSuburbs(ctx context.Context, filter SuburbFilter) ([]model.Suburb, error) {
	query := `SELECT ` + suburbColumns + ` FROM scrape_progress WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += ` AND COALESCE(status, 'pending') = ?`
		args = append(args, string(filter.Status))
	}
	if filter.State != "" {
		query += ` AND lower(state) = lower(?)`
		args = append(args, filter.State)
	}
	if filter.Tier > 0 {
		query += ` AND priority_tier = ?`
		args = append(args, filter.Tier)
	}
	query += ` ORDER BY priority_tier, id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list suburbs")
	}
	defer rows.Close()

	var out []model.Suburb
	for rows.Next() {
		sb, err := scanSuburb(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan suburb")
		}
		out = append(out, *sb)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list suburbs iterate")
}

// suburbSet renders the SET clause of a partial suburb update. ph returns
// the placeholder for the n-th argument.
func suburbSet(u model.SuburbUpdate, ph func(n int) string) (string, []any) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, col+" = "+ph(len(args)))
	}
	if u.Status != nil {
		add("status", string(*u.Status))
	}
	if u.StartedAt != nil {
		add("started_at", u.StartedAt.UTC())
	}
	if u.CompletedAt != nil {
		add("completed_at", u.CompletedAt.UTC())
	}
	if u.ErrorMessage != nil {
		add("error_message", nullable(*u.ErrorMessage))
	}
	if u.AgenciesFound != nil {
		add("agencies_found", *u.AgenciesFound)
	}
	if u.AgentsFound != nil {
		add("agents_found", *u.AgentsFound)
	}
	if u.IncrementRetry {
		sets = append(sets, "retry_count = COALESCE(retry_count, 0) + 1")
	}
	return strings.Join(sets, ", "), args
}

func (s *SQLiteStore) UpdateSuburb(ctx context.Context, slug string, u model.SuburbUpdate) error {
	if u.Empty() {
		return nil
	}
	set, args := suburbSet(u, func(int) string { return "?" })
	res, err := s.db.ExecContext(ctx, `UPDATE scrape_progress SET `+set+` WHERE slug = ?`, append(args, slug)...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update suburb %s", slug)
	}
	return checkRowsAffected(res, "suburb", slug)
}

func (s *SQLiteStore) CountSuburbsByStatus(ctx context.Context) (map[string]int, error) {
	return s.groupCounts(ctx, `SELECT COALESCE(status, 'pending'), COUNT(*) FROM scrape_progress GROUP BY 1`)
}

// --- agencies and agents

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// resolveID finds the row matching either key. Both keys matching
// different rows is an identity conflict.
func resolveID(ctx context.Context, q sqlExecer, table string, domainID int64, slug string) (int64, bool, error) {
	var byDomain, bySlug int64
	err := q.QueryRowContext(ctx, `SELECT id FROM `+table+` WHERE domain_id = ?`, domainID).Scan(&byDomain)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, false, eris.Wrapf(err, "sqlite: lookup %s by domain_id", table)
	}
	err = q.QueryRowContext(ctx, `SELECT id FROM `+table+` WHERE slug = ?`, slug).Scan(&bySlug)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, false, eris.Wrapf(err, "sqlite: lookup %s by slug", table)
	}
	switch {
	case byDomain != 0 && bySlug != 0 && byDomain != bySlug:
		return 0, false, eris.Wrapf(ErrIdentityConflict, "%s domain_id=%d slug=%s", table, domainID, slug)
	case byDomain != 0:
		return byDomain, true, nil
	case bySlug != 0:
		return bySlug, true, nil
	}
	return 0, false, nil
}

func upsertAgencySQLite(ctx context.Context, q sqlExecer, a *model.Agency, now time.Time) (int64, error) {
	id, found, err := resolveID(ctx, q, "agencies", a.DomainID, a.Slug)
	if err != nil {
		return 0, err
	}
	if found {
		_, err := q.ExecContext(ctx, `
			UPDATE agencies SET
				domain_id = ?, slug = ?, name = ?, brand_name = ?, logo_url = ?,
				website = COALESCE(?, website), description = ?, phone = ?, email = ?,
				street_address = ?, suburb = ?, state = ?, postcode = ?, agent_count = ?, updated_at = ?
			WHERE id = ?`,
			a.DomainID, a.Slug, a.Name, nullable(a.BrandName), nullable(a.LogoURL),
			nullable(a.Website), nullable(a.Description), nullable(a.Phone), nullable(a.Email),
			nullable(a.StreetAddress), a.Suburb, a.State, a.Postcode, a.AgentCount, now, id)
		return id, eris.Wrapf(err, "sqlite: update agency %s", a.Slug)
	}

	err = q.QueryRowContext(ctx, `
		INSERT INTO agencies (domain_id, slug, name, brand_name, logo_url, website, description,
			phone, email, street_address, suburb, state, postcode, principal_name, agent_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		a.DomainID, a.Slug, a.Name, nullable(a.BrandName), nullable(a.LogoURL), nullable(a.Website),
		nullable(a.Description), nullable(a.Phone), nullable(a.Email), nullable(a.StreetAddress),
		a.Suburb, a.State, a.Postcode, nullable(a.PrincipalName), a.AgentCount, now, now,
	).Scan(&id)
	return id, eris.Wrapf(err, "sqlite: insert agency %s", a.Slug)
}

// upsertAgentSQLite refreshes discovery fields on an existing agent and leaves
// its enrichment state alone; new agents start pending.
func upsertAgentSQLite(ctx context.Context, q sqlExecer, a *model.Agent, now time.Time) (int64, error) {
	id, found, err := resolveID(ctx, q, "agents", a.DomainID, a.Slug)
	if err != nil {
		return 0, err
	}
	if found {
		_, err := q.ExecContext(ctx, `
			UPDATE agents SET
				domain_id = ?, slug = ?, agency_id = ?, first_name = ?, last_name = ?,
				email = ?, phone = ?, mobile = ?, photo_url = ?, profile_text = ?,
				primary_suburb = ?, primary_state = ?, primary_postcode = ?, updated_at = ?
			WHERE id = ?`,
			a.DomainID, a.Slug, nullableID(a.AgencyID), a.FirstName, a.LastName,
			nullable(a.Email), nullable(a.Phone), nullable(a.Mobile), nullable(a.PhotoURL), nullable(a.ProfileText),
			nullable(a.PrimarySuburb), nullable(a.PrimaryState), nullable(a.PrimaryPostcode), now, id)
		return id, eris.Wrapf(err, "sqlite: update agent %s", a.Slug)
	}

	languages, specs, propTypes, awards, sources, err := agentListArgs(a)
	if err != nil {
		return 0, err
	}
	status := a.EnrichmentStatus
	if status == "" {
		status = model.EnrichmentPending
	}
	err = q.QueryRowContext(ctx, `
		INSERT INTO agents (domain_id, slug, agency_id, first_name, last_name, email, phone, mobile,
			photo_url, profile_text, primary_suburb, primary_state, primary_postcode,
			languages, specializations, property_types, awards, enrichment_sources,
			enrichment_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		a.DomainID, a.Slug, nullableID(a.AgencyID), a.FirstName, a.LastName,
		nullable(a.Email), nullable(a.Phone), nullable(a.Mobile), nullable(a.PhotoURL), nullable(a.ProfileText),
		nullable(a.PrimarySuburb), nullable(a.PrimaryState), nullable(a.PrimaryPostcode),
		languages, specs, propTypes, awards, sources, string(status), now, now,
	).Scan(&id)
	return id, eris.Wrapf(err, "sqlite: insert agent %s", a.Slug)
}

func (s *SQLiteStore) UpsertAgencyGroup(ctx context.Context, agency *model.Agency, agents []model.Agent) (*GroupResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin agency group")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	agencyID, err := upsertAgencySQLite(ctx, tx, agency, now)
	if err != nil {
		return nil, err
	}

	res := &GroupResult{AgencyID: agencyID}
	for i := range agents {
		agent := agents[i]
		agent.AgencyID = &agencyID
		// Spread created_at so FIFO order follows roster order.
		id, err := upsertAgentSQLite(ctx, tx, &agent, now.Add(time.Duration(i)*time.Microsecond))
		if err != nil {
			return nil, err
		}
		res.AgentIDs = append(res.AgentIDs, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit agency group")
	}
	return res, nil
}

func (s *SQLiteStore) GetAgency(ctx context.Context, slug string) (*model.Agency, error) {
	a, err := scanAgency(s.db.QueryRowContext(ctx, `SELECT `+agencyColumns+` FROM agencies WHERE slug = ?`, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, eris.Wrapf(err, "sqlite: get agency %s", slug)
}

func (s *SQLiteStore) GetAgencyByID(ctx context.Context, id int64) (*model.Agency, error) {
	a, err := scanAgency(s.db.QueryRowContext(ctx, `SELECT `+agencyColumns+` FROM agencies WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, eris.Wrapf(err, "sqlite: get agency %d", id)
}

func (s *SQLiteStore) ListAgencies(ctx context.Context, filter AgencyFilter) ([]model.Agency, error) {
	query := `SELECT ` + agencyColumns + ` FROM agencies WHERE 1=1`
	var args []any
	if filter.Suburb != "" {
		query += ` AND lower(suburb) = lower(?)`
		args = append(args, filter.Suburb)
	}
	if filter.State != "" {
		query += ` AND lower(state) = lower(?)`
		args = append(args, filter.State)
	}
	if filter.Postcode != "" {
		query += ` AND postcode = ?`
		args = append(args, filter.Postcode)
	}
	query += ` ORDER BY name, id LIMIT ?`
	args = append(args, clampLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list agencies")
	}
	defer rows.Close()

	var out []model.Agency
	for rows.Next() {
		a, err := scanAgency(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan agency")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list agencies iterate")
}

func (s *SQLiteStore) SetAgencyWebsite(ctx context.Context, id int64, website string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE agencies SET website = ?, updated_at = ? WHERE id = ?`,
		website, time.Now().UTC(), id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set agency website %d", id)
	}
	return checkRowsAffected(res, "agency", itoa(id))
}

func (s *SQLiteStore) GetAgent(ctx context.Context, slug string) (*model.Agent, error) {
	a, err := scanAgent(s.db.QueryRowContext(ctx, `SELECT `+agentColumns+agentFrom+` WHERE a.slug = ?`, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, eris.Wrapf(err, "sqlite: get agent %s", slug)
}

func (s *SQLiteStore) ListAgents(ctx context.Context, filter AgentFilter) ([]model.Agent, error) {
	query := `SELECT ` + agentColumns + agentFrom + ` WHERE 1=1`
	var args []any
	if filter.Suburb != "" {
		query += ` AND (lower(a.primary_suburb) = lower(?) OR lower(ag.suburb) = lower(?))`
		args = append(args, filter.Suburb, filter.Suburb)
	}
	if filter.State != "" {
		query += ` AND (lower(a.primary_state) = lower(?) OR lower(ag.state) = lower(?))`
		args = append(args, filter.State, filter.State)
	}
	if filter.AgencyID > 0 {
		query += ` AND a.agency_id = ?`
		args = append(args, filter.AgencyID)
	}
	if filter.EnrichmentStatus != "" {
		query += ` AND a.enrichment_status = ?`
		args = append(args, string(filter.EnrichmentStatus))
	}
	query += ` ORDER BY a.created_at, a.id LIMIT ?`
	args = append(args, clampLimit(filter.Limit))

	return s.queryAgents(ctx, s.db, query, args...)
}

type sqlQueryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLiteStore) queryAgents(ctx context.Context, q sqlQueryer, query string, args ...any) ([]model.Agent, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list agents")
	}
	defer rows.Close()

	var out []model.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan agent")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list agents iterate")
}

func (s *SQLiteStore) CountSuburbRows(ctx context.Context, suburb, state string) (int, int, error) {
	var agencies, agents int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM agencies WHERE lower(suburb) = lower(?) AND lower(state) = lower(?)`,
		suburb, state).Scan(&agencies)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "sqlite: count agencies in %s", suburb)
	}
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM agents a LEFT JOIN agencies ag ON ag.id = a.agency_id
		WHERE (lower(a.primary_suburb) = lower(?) AND lower(a.primary_state) = lower(?))
		   OR (lower(ag.suburb) = lower(?) AND lower(ag.state) = lower(?))`,
		suburb, state, suburb, state).Scan(&agents)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "sqlite: count agents in %s", suburb)
	}
	return agencies, agents, nil
}

// ClaimPendingAgents flips up to limit of the oldest pending agents to
// in_progress in one statement and returns them. The status guard in the
// outer WHERE keeps a row from being claimed twice.
func (s *SQLiteStore) ClaimPendingAgents(ctx context.Context, limit int) ([]model.Agent, error) {
	if limit <= 0 {
		return nil, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin claim")
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx, `
		UPDATE agents SET enrichment_status = 'in_progress', enrichment_error = NULL,
			enrichment_sources = '[]', updated_at = ?
		WHERE id IN (
			SELECT id FROM agents WHERE enrichment_status = 'pending'
			ORDER BY created_at, id LIMIT ?
		) AND enrichment_status = 'pending'
		RETURNING id`, time.Now().UTC(), limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: claim pending agents")
	}
	var ids []any
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "sqlite: scan claimed id")
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: claim iterate")
	}
	if len(ids) == 0 {
		return nil, eris.Wrap(tx.Commit(), "sqlite: commit empty claim")
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	agents, err := s.queryAgents(ctx, tx,
		`SELECT `+agentColumns+agentFrom+` WHERE a.id IN (`+placeholders+`) ORDER BY a.created_at, a.id`, ids...)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit claim")
	}
	return agents, nil
}

func (s *SQLiteStore) UpdateAgentEnrichment(ctx context.Context, id int64, e model.Enrichment) error {
	args, err := enrichmentArgs(e)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE agents SET
			enriched_bio = ?, years_experience = ?, years_experience_source = ?, career_start_year = ?,
			languages = ?, specializations = ?, property_types = ?, awards = ?,
			linkedin_url = ?, facebook_url = ?, instagram_url = ?, personal_website_url = ?,
			enrichment_sources = ?, enrichment_error = ?, enrichment_status = ?, enrichment_quality = ?,
			enriched_at = ?, updated_at = ?
		WHERE id = ?`, append(args, time.Now().UTC(), id)...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update agent enrichment %d", id)
	}
	return checkRowsAffected(res, "agent", itoa(id))
}

func (s *SQLiteStore) FailAgents(ctx context.Context, ids []int64, message string) error {
	if len(ids) == 0 {
		return nil
	}
	args := []any{nullable(message), time.Now().UTC()}
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	_, err := s.db.ExecContext(ctx,
		`UPDATE agents SET enrichment_status = 'failed', enrichment_error = ?, updated_at = ?
		 WHERE id IN (`+placeholders+`)`, args...)
	return eris.Wrap(err, "sqlite: fail agents")
}

func (s *SQLiteStore) CountAgentsByStatus(ctx context.Context) (map[string]int, error) {
	return s.groupCounts(ctx, `SELECT COALESCE(enrichment_status, 'pending'), COUNT(*) FROM agents GROUP BY 1`)
}

func (s *SQLiteStore) CountAgentsByQuality(ctx context.Context) (map[string]int, error) {
	return s.groupCounts(ctx, `SELECT COALESCE(enrichment_quality, 'none'), COUNT(*) FROM agents GROUP BY 1`)
}

func (s *SQLiteStore) Totals(ctx context.Context) (*Totals, error) {
	var t Totals
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM scrape_progress),
		(SELECT COUNT(*) FROM agencies),
		(SELECT COUNT(*) FROM agents)`).Scan(&t.Suburbs, &t.Agencies, &t.Agents)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: totals")
	}
	return &t, nil
}

func (s *SQLiteStore) groupCounts(ctx context.Context, query string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: group counts")
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan group count")
		}
		out[key] = n
	}
	return out, eris.Wrap(rows.Err(), "sqlite: group counts iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
