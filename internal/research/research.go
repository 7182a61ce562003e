// Package research is the boundary to the generative research backend: it
// sends a prompt and a JSON schema and returns the untrusted payload the
// backend produced. Callers must validate the payload before use.
package research

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/agent-research-cli/internal/cost"
)

// Task names the kind of research being requested.
type Task string

const (
	TaskDiscovery  Task = "discovery"
	TaskEnrichment Task = "enrichment"
)

// Request is one structured research call.
type Request struct {
	Task   Task
	System string
	Prompt string
	// Schema is the JSON schema the payload is asked to satisfy. Backends
	// do not enforce it.
	Schema map[string]any
}

// Response carries the raw payload and the usage reported for the call.
type Response struct {
	Payload  json.RawMessage
	Usage    cost.Usage
	Model    string
	Provider string
}

// Backend performs research calls.
type Backend interface {
	Name() string
	Research(ctx context.Context, req Request) (*Response, error)
}

// ErrNoStructuredOutput is returned when the backend answered without a
// usable JSON payload.
var ErrNoStructuredOutput = eris.New("research: backend returned no structured output")

// Mode selects between the live backend and the built-in fixtures.
type Mode string

const (
	ModeLive    Mode = "live"
	ModeFixture Mode = "fixture"
)

// SelectMode resolves the strategy for an invocation. Fixture mode wins when
// forced or when no credential is configured; a configured credential never
// falls back to fixtures on failure.
func SelectMode(fixtureMode, hasCredential bool) Mode {
	if fixtureMode || !hasCredential {
		return ModeFixture
	}
	return ModeLive
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeLive || m == ModeFixture
}

// extractJSON trims whitespace and a surrounding markdown code fence and
// checks that what remains is a JSON object.
func extractJSON(s string) (json.RawMessage, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	b := []byte(s)
	if len(b) == 0 || b[0] != '{' || !json.Valid(b) {
		return nil, ErrNoStructuredOutput
	}
	return json.RawMessage(bytes.Clone(b)), nil
}
