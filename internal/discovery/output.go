package discovery

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// OutputStatus is the completeness the research backend claims for its
// result. It is informational; rows are written either way.
type OutputStatus string

const (
	OutputSuccess OutputStatus = "success"
	OutputPartial OutputStatus = "partial"
	OutputFailed  OutputStatus = "failed"
)

// Output is a decoded discovery result.
type Output struct {
	Status   OutputStatus
	Agencies []AgencyResult
}

// AgencyResult is one discovered office and its roster. Empty strings mean
// the field was not found.
type AgencyResult struct {
	Name          string
	BrandName     string
	Website       string
	Phone         string
	Email         string
	StreetAddress string
	LogoURL       string
	Description   string
	Agents        []AgentResult
}

// AgentResult is one person on an agency roster.
type AgentResult struct {
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	Mobile      string
	PhotoURL    string
	ProfileText string
}

// DecodeOutput reads an untrusted discovery payload. Non-string values in
// string fields are treated as absent. Only a payload that is not a JSON
// object with an "agencies" array is an error.
func DecodeOutput(payload []byte) (*Output, error) {
	var raw struct {
		Status   any              `json:"status"`
		Agencies []map[string]any `json:"agencies"`
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	if err := dec.Decode(&raw); err != nil {
		return nil, eris.Wrap(err, "discovery: decode payload")
	}
	if raw.Agencies == nil {
		return nil, eris.New("discovery: payload has no agencies array")
	}

	out := &Output{Status: parseStatus(str(raw.Status)), Agencies: make([]AgencyResult, 0, len(raw.Agencies))}
	for _, m := range raw.Agencies {
		a := AgencyResult{
			Name:          str(m["name"]),
			BrandName:     str(m["brand_name"]),
			Website:       str(m["website"]),
			Phone:         str(m["phone"]),
			Email:         str(m["email"]),
			StreetAddress: str(m["street_address"]),
			LogoURL:       str(m["logo_url"]),
			Description:   str(m["description"]),
		}
		if agents, ok := m["agents"].([]any); ok {
			for _, it := range agents {
				am, ok := it.(map[string]any)
				if !ok {
					continue
				}
				a.Agents = append(a.Agents, AgentResult{
					FirstName:   str(am["first_name"]),
					LastName:    str(am["last_name"]),
					Email:       str(am["email"]),
					Phone:       str(am["phone"]),
					Mobile:      str(am["mobile"]),
					PhotoURL:    str(am["photo_url"]),
					ProfileText: str(am["profile_text"]),
				})
			}
		}
		out.Agencies = append(out.Agencies, a)
	}
	return out, nil
}

// Normalize drops agencies without a name and agents without both names,
// then keeps at most maxAgencies agencies. It returns a new Output.
func (o *Output) Normalize(maxAgencies int) *Output {
	out := &Output{Status: o.Status}
	for _, a := range o.Agencies {
		if a.Name == "" {
			continue
		}
		agents := make([]AgentResult, 0, len(a.Agents))
		for _, ag := range a.Agents {
			if ag.FirstName == "" || ag.LastName == "" {
				continue
			}
			if !absoluteURL(ag.PhotoURL) {
				ag.PhotoURL = ""
			}
			agents = append(agents, ag)
		}
		a.Agents = agents
		out.Agencies = append(out.Agencies, a)
		if maxAgencies > 0 && len(out.Agencies) == maxAgencies {
			break
		}
	}
	return out
}

// AgentCount is the number of agents across all agencies.
func (o *Output) AgentCount() int {
	n := 0
	for _, a := range o.Agencies {
		n += len(a.Agents)
	}
	return n
}

func parseStatus(s string) OutputStatus {
	switch st := OutputStatus(strings.ToLower(s)); st {
	case OutputSuccess, OutputPartial, OutputFailed:
		return st
	}
	return OutputPartial
}

func str(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func absoluteURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}
