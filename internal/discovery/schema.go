package discovery

func nullableString() map[string]any {
	return map[string]any{"type": []string{"string", "null"}}
}

var agentSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"required":             []string{"first_name", "last_name"},
	"properties": map[string]any{
		"first_name":   map[string]any{"type": "string"},
		"last_name":    map[string]any{"type": "string"},
		"email":        nullableString(),
		"phone":        nullableString(),
		"mobile":       nullableString(),
		"photo_url":    nullableString(),
		"profile_text": nullableString(),
	},
}

var agencySchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"required":             []string{"name", "suburb", "state", "postcode", "agents"},
	"properties": map[string]any{
		"name":           map[string]any{"type": "string"},
		"brand_name":     nullableString(),
		"website":        nullableString(),
		"phone":          nullableString(),
		"email":          nullableString(),
		"street_address": nullableString(),
		"suburb":         map[string]any{"type": "string"},
		"state":          map[string]any{"type": "string"},
		"postcode":       map[string]any{"type": "string"},
		"logo_url":       nullableString(),
		"description":    nullableString(),
		"agents":         map[string]any{"type": "array", "items": agentSchema},
	},
}

// outputSchema is sent with discovery requests; DecodeOutput does not rely
// on the backend honouring it.
var outputSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"required":             []string{"status", "agencies"},
	"properties": map[string]any{
		"status":   map[string]any{"type": "string", "enum": []string{"success", "partial", "failed"}},
		"agencies": map[string]any{"type": "array", "items": agencySchema},
	},
}
