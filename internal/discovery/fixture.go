package discovery

import (
	"github.com/sells-group/agent-research-cli/internal/model"
)

const placeholderPhoto = "https://www.gravatar.com/avatar/00000000000000000000000000000000?d=mp&f=y"

type fixtureAgency struct {
	name        string
	path        string
	description bool
	agents      [4][2]string
}

var fixtureAgencies = []fixtureAgency{
	{
		name:        "Example Realty",
		path:        "example-realty",
		description: true,
		agents:      [4][2]string{{"Alex", "Taylor"}, {"Priya", "Singh"}, {"Jordan", "Nguyen"}, {"Sofia", "Martin"}},
	},
	{
		name:   "Harbour Homes",
		path:   "harbour-homes",
		agents: [4][2]string{{"Emily", "Chen"}, {"Noah", "Williams"}, {"Liam", "Patel"}, {"Grace", "Roberts"}},
	},
	{
		name:   "North Shore Property",
		path:   "north-shore-property",
		agents: [4][2]string{{"Mia", "Harris"}, {"Ethan", "Brown"}, {"Ava", "Jones"}, {"Oliver", "Davis"}},
	},
}

// fixtureOutput returns the same three agencies of four agents for every
// call with the same suburb. The first agent of each roster has a
// placeholder photo.
func fixtureOutput(sb *model.Suburb) *Output {
	out := &Output{Status: OutputPartial, Agencies: make([]AgencyResult, 0, len(fixtureAgencies))}
	for _, f := range fixtureAgencies {
		a := AgencyResult{
			Name:    f.name + " " + sb.Name,
			Website: "https://example.com/agency/" + f.path,
		}
		if f.description {
			a.Description = "Local real estate office serving " + sb.Name + "."
		}
		for i, n := range f.agents {
			ag := AgentResult{FirstName: n[0], LastName: n[1]}
			if i == 0 {
				ag.PhotoURL = placeholderPhoto
			}
			a.Agents = append(a.Agents, ag)
		}
		out.Agencies = append(out.Agencies, a)
	}
	return out
}
