package enrichment

import (
	"encoding/json"
	"fmt"

	"github.com/sells-group/agent-research-cli/internal/model"
)

const systemPrompt = `You are a real estate agent profile researcher for an Australian agent directory.

Allowed sources:
- Official agency websites and team pages
- LinkedIn
- Google search results that link to official profiles

Hard rules:
- NEVER assume languages from names. Only list a language when a source explicitly states it, and list that source in sources_found.
- NEVER invent years of experience; return null when unknown.
- If you infer years_experience, set years_experience_source to "inferred" and keep confidence low unless strongly supported.
- Do NOT use Rate My Agent or competitor directories (OpenAgent, Local Agent Finder).
- Do not modify agent_domain_id values.`

type promptAgent struct {
	AgentDomainID int64  `json:"agent_domain_id"`
	Name          string `json:"name"`
	Agency        string `json:"agency"`
	Suburb        string `json:"suburb"`
	State         string `json:"state"`
	Postcode      string `json:"postcode"`
}

// buildPrompt lists the batch's identities for the backend.
func buildPrompt(agents []model.Agent) string {
	rows := make([]promptAgent, len(agents))
	for i, a := range agents {
		rows[i] = promptAgent{
			AgentDomainID: a.DomainID,
			Name:          a.FullName(),
			Agency:        a.AgencyName,
			Suburb:        a.PrimarySuburb,
			State:         a.PrimaryState,
			Postcode:      a.PrimaryPostcode,
		}
	}
	list, _ := json.MarshalIndent(rows, "", "  ")

	return fmt.Sprintf(`Enrich each agent profile with only facts that you can verify from public sources.

Agents to enrich (do not modify identifiers):
%s

Per agent, return:
- years_experience (integer 0-50 or null) and years_experience_source ("linkedin" | "agency_website" | "google" | "inferred" | null)
- career_start_year (integer or null)
- languages (ONLY if explicitly stated), specializations, property_types
- awards (name, year, level, organization)
- linkedin_url, facebook_url, instagram_url, personal_website_url (absolute URLs or null)
- enriched_bio (50-1000 characters, professional, factual)
- sources_found (e.g. "linkedin", "agency_website", "google")
- confidence ("high" | "medium" | "low" | "minimal")
- status ("success" | "partial" | "failed") and error_message (string or null)`, list)
}
