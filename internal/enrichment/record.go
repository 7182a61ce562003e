package enrichment

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/agent-research-cli/internal/model"
)

// RecordStatus is the per-agent outcome claimed by research and possibly
// demoted by validation.
type RecordStatus string

const (
	RecordSuccess RecordStatus = "success"
	RecordPartial RecordStatus = "partial"
	RecordFailed  RecordStatus = "failed"
)

// Record is one agent's enrichment result, keyed by the agent's domain id.
// Bio is empty when absent. YearsExperienceInvalid marks a years_experience
// value that was present but not a whole number in range of int32.
type Record struct {
	AgentDomainID          int64
	Bio                    string
	YearsExperience        *int
	YearsExperienceInvalid bool
	YearsExperienceSource  model.YearsExperienceSource
	CareerStartYear        *int
	Languages              []string
	Specializations        []string
	PropertyTypes          []string
	Awards                 []model.Award
	LinkedInURL            string
	FacebookURL            string
	InstagramURL           string
	PersonalWebsiteURL     string
	SourcesFound           []string
	Confidence             model.EnrichmentQuality
	Status                 RecordStatus
	ErrorMessage           string
}

// DecodeBatch reads an untrusted enrichment payload. Field types are coerced
// where the intent is unambiguous (numeric strings, whole floats) and
// otherwise dropped. Entries without a usable agent_domain_id are skipped.
// Only a payload that is not a JSON object with an "agents" array is an
// error.
func DecodeBatch(payload []byte) ([]Record, error) {
	var raw struct {
		Agents []map[string]any `json:"agents"`
	}
	dec := json.NewDecoder(strings.NewReader(string(payload)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, eris.Wrap(err, "enrichment: decode payload")
	}
	if raw.Agents == nil {
		return nil, eris.New("enrichment: payload has no agents array")
	}

	out := make([]Record, 0, len(raw.Agents))
	for i, m := range raw.Agents {
		id := toInt64(m["agent_domain_id"])
		if id == nil {
			zap.L().Warn("enrichment: skipping record without agent_domain_id", zap.Int("index", i))
			continue
		}
		years, yearsOK := toYears(m["years_experience"])
		rec := Record{
			AgentDomainID:          *id,
			Bio:                    toString(m["enriched_bio"]),
			YearsExperience:        years,
			YearsExperienceInvalid: !yearsOK,
			YearsExperienceSource:  model.ParseYearsSource(toString(m["years_experience_source"])),
			CareerStartYear:        toInt(m["career_start_year"]),
			Languages:              toStrings(m["languages"]),
			Specializations:        toStrings(m["specializations"]),
			PropertyTypes:          toStrings(m["property_types"]),
			Awards:                 toAwards(m["awards"]),
			LinkedInURL:            toString(m["linkedin_url"]),
			FacebookURL:            toString(m["facebook_url"]),
			InstagramURL:           toString(m["instagram_url"]),
			PersonalWebsiteURL:     toString(m["personal_website_url"]),
			SourcesFound:           toStrings(m["sources_found"]),
			Confidence:             model.ParseQuality(toString(m["confidence"])),
			Status:                 parseStatus(toString(m["status"])),
			ErrorMessage:           toString(m["error_message"]),
		}
		out = append(out, rec)
	}
	return out, nil
}

// parseStatus keeps recognised statuses. Anything else counts as partial:
// the record is usable but unlabelled.
func parseStatus(s string) RecordStatus {
	switch st := RecordStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case RecordSuccess, RecordPartial, RecordFailed:
		return st
	}
	return RecordPartial
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func toStrings(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func toInt64(v any) *int64 {
	var f float64
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return &i
		}
		var err error
		if f, err = n.Float64(); err != nil {
			return nil
		}
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return nil
		}
		return &i
	case float64:
		f = n
	default:
		return nil
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	i := int64(f)
	return &i
}

func toInt(v any) *int {
	n := toInt64(v)
	if n == nil || *n > math.MaxInt32 || *n < math.MinInt32 {
		return nil
	}
	i := int(*n)
	return &i
}

// toYears reads years_experience. A missing, null or blank value is
// absent; anything else that is not a whole number fitting an int reports
// ok=false so validation can fail the record.
func toYears(v any) (years *int, ok bool) {
	if v == nil {
		return nil, true
	}
	if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
		return nil, true
	}
	if n := toInt(v); n != nil {
		return n, true
	}
	return nil, false
}

func toAwards(v any) []model.Award {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]model.Award, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		name := strings.TrimSpace(toString(m["name"]))
		if name == "" {
			continue
		}
		out = append(out, model.Award{
			Name:         name,
			Year:         toInt(m["year"]),
			Level:        model.ParseAwardLevel(toString(m["level"])),
			Organization: strings.TrimSpace(toString(m["organization"])),
		})
	}
	return out
}
