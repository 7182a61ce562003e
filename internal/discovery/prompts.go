package discovery

import (
	"fmt"

	"github.com/sells-group/agent-research-cli/internal/model"
)

const systemPrompt = `You are a real estate market researcher building an Australian agent directory.

Web research rules:
- Prefer agency brand websites and their local office or team pages.
- Domain.com.au website pages are allowed (NOT the Domain API).
- LinkedIn is allowed.
- Do NOT scrape Rate My Agent or competitors (OpenAgent, Local Agent Finder).
- If a field is not found, return null. Do NOT guess.`

func buildPrompt(sb *model.Suburb) string {
	return fmt.Sprintf(`Goal: For the suburb "%s, %s %s", discover at least 3 real estate agencies and at least 10 agents total across those agencies.

Output requirements:
- Return structured JSON matching the provided schema.
- Each agency MUST include: name, suburb, state, postcode, agents[].
- Each agent MUST include: first_name, last_name. Other fields optional.
- photo_url must be a valid absolute URL if present; otherwise null.`, sb.Name, sb.State, sb.Postcode)
}
