// Package export writes the pipeline's suburbs, agencies and agents to an
// Excel workbook for offline review.
package export

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/agent-research-cli/internal/model"
	"github.com/sells-group/agent-research-cli/internal/store"
)

// Sheet names, in workbook order.
const (
	SheetSuburbs  = "Suburbs"
	SheetAgencies = "Agencies"
	SheetAgents   = "Agents"
)

// ContentType is the MIME type of a written workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Source is the subset of store.Store the export reads.
type Source interface {
	ListSuburbs(ctx context.Context, filter store.SuburbFilter) ([]model.Suburb, error)
	ListAgencies(ctx context.Context, filter store.AgencyFilter) ([]model.Agency, error)
	ListAgents(ctx context.Context, filter store.AgentFilter) ([]model.Agent, error)
}

// Options narrows the export. Zero values export everything.
type Options struct {
	State  string
	Status model.ScrapeStatus
}

// listLimit is the largest page the store returns.
const listLimit = 500

var (
	suburbHeader = []string{
		"Slug", "Suburb", "State", "Postcode", "Region", "Tier", "Status",
		"Agencies", "Agents", "Retries", "Started", "Completed", "Error",
	}
	agencyHeader = []string{
		"ID", "Slug", "Name", "Brand", "Suburb", "State", "Postcode",
		"Phone", "Email", "Website", "Address", "Agents",
	}
	agentHeader = []string{
		"ID", "Slug", "First Name", "Last Name", "Agency", "Email", "Phone", "Mobile",
		"Suburb", "Enrichment", "Quality", "Years Experience", "Languages",
		"Specializations", "Property Types", "LinkedIn", "Enriched At", "Error",
	}
)

// Workbook builds the workbook. Agencies are read per suburb and agents per
// agency so no single listing hits the store's page cap.
func Workbook(ctx context.Context, src Source, opts Options) (*xlsx.File, error) {
	suburbs, err := src.ListSuburbs(ctx, store.SuburbFilter{State: opts.State, Status: opts.Status, Limit: listLimit})
	if err != nil {
		return nil, eris.Wrap(err, "export: list suburbs")
	}

	f := xlsx.NewFile()
	sheets := make(map[string]*xlsx.Sheet, 3)
	for _, spec := range []struct {
		name   string
		header []string
	}{
		{SheetSuburbs, suburbHeader},
		{SheetAgencies, agencyHeader},
		{SheetAgents, agentHeader},
	} {
		sheet, err := f.AddSheet(spec.name)
		if err != nil {
			return nil, eris.Wrapf(err, "export: add sheet %s", spec.name)
		}
		addRow(sheet, spec.header...)
		sheets[spec.name] = sheet
	}

	var agencies, agents int
	for _, sb := range suburbs {
		suburbRow(sheets[SheetSuburbs], sb)

		list, err := src.ListAgencies(ctx, store.AgencyFilter{Suburb: sb.Name, State: sb.State, Postcode: sb.Postcode, Limit: listLimit})
		if err != nil {
			return nil, eris.Wrapf(err, "export: list agencies for %s", sb.Slug)
		}
		for _, a := range list {
			agencyRow(sheets[SheetAgencies], a)
			agencies++

			staff, err := src.ListAgents(ctx, store.AgentFilter{AgencyID: a.ID, Limit: listLimit})
			if err != nil {
				return nil, eris.Wrapf(err, "export: list agents for %s", a.Slug)
			}
			for _, ag := range staff {
				agentRow(sheets[SheetAgents], ag)
			}
			agents += len(staff)
		}
	}

	zap.L().Info("export: workbook built",
		zap.Int("suburbs", len(suburbs)),
		zap.Int("agencies", agencies),
		zap.Int("agents", agents),
	)
	return f, nil
}

// Write builds the workbook and writes it to w.
func Write(ctx context.Context, src Source, opts Options, w io.Writer) error {
	f, err := Workbook(ctx, src, opts)
	if err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write workbook")
	}
	return nil
}

// WriteFile builds the workbook and saves it to path.
func WriteFile(ctx context.Context, src Source, opts Options, path string) error {
	f, err := Workbook(ctx, src, opts)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func suburbRow(sheet *xlsx.Sheet, sb model.Suburb) {
	addRow(sheet,
		sb.Slug, sb.Name, sb.State, sb.Postcode, sb.Region,
		strconv.Itoa(sb.PriorityTier), string(sb.Status),
		strconv.Itoa(sb.AgenciesFound), strconv.Itoa(sb.AgentsFound), strconv.Itoa(sb.RetryCount),
		timestamp(sb.StartedAt), timestamp(sb.CompletedAt), sb.ErrorMessage,
	)
}

func agencyRow(sheet *xlsx.Sheet, a model.Agency) {
	addRow(sheet,
		strconv.FormatInt(a.ID, 10), a.Slug, a.Name, a.BrandName, a.Suburb, a.State, a.Postcode,
		a.Phone, a.Email, a.Website, a.StreetAddress, strconv.Itoa(a.AgentCount),
	)
}

func agentRow(sheet *xlsx.Sheet, a model.Agent) {
	years := ""
	if a.YearsExperience != nil {
		years = strconv.Itoa(*a.YearsExperience)
	}
	addRow(sheet,
		strconv.FormatInt(a.ID, 10), a.Slug, a.FirstName, a.LastName, a.AgencyName,
		a.Email, a.Phone, a.Mobile, a.PrimarySuburb,
		string(a.EnrichmentStatus), string(a.EnrichmentQuality), years,
		strings.Join(a.Languages, ", "), strings.Join(a.Specializations, ", "), strings.Join(a.PropertyTypes, ", "),
		a.LinkedInURL, timestamp(a.EnrichedAt), a.EnrichmentError,
	)
}

func timestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
