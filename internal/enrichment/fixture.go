package enrichment

import (
	"fmt"

	"github.com/sells-group/agent-research-cli/internal/model"
)

// SyntheticBio is the placeholder bio written when research returns none.
func SyntheticBio(a model.Agent) string {
	agency := ""
	if a.AgencyName != "" {
		agency = " with " + a.AgencyName
	}
	suburb := a.PrimarySuburb
	if suburb == "" {
		suburb = "their local area"
	}
	state := ""
	if a.PrimaryState != "" {
		state = ", " + a.PrimaryState
	}
	return fmt.Sprintf("%s is a real estate agent%s serving %s%s. This profile is being expanded as more verified public information becomes available.",
		a.FullName(), agency, suburb, state)
}

// fixtureRecords returns one minimal-confidence partial record per agent
// with a synthetic bio and no researched facts.
func fixtureRecords(agents []model.Agent) []Record {
	out := make([]Record, len(agents))
	for i, a := range agents {
		out[i] = Record{
			AgentDomainID: a.DomainID,
			Bio:           SyntheticBio(a),
			Confidence:    model.QualityMinimal,
			Status:        RecordPartial,
		}
	}
	return out
}
