package enrichment

func nullable(typ string) map[string]any {
	return map[string]any{"type": []string{typ, "null"}}
}

func stringArray() map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
}

// batchSchema is the output schema sent with enrichment requests. The
// backend is asked to honour it; DecodeBatch does not rely on it.
var batchSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"required":             []string{"agents"},
	"properties": map[string]any{
		"agents": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required": []string{
					"agent_domain_id", "languages", "specializations", "property_types",
					"awards", "sources_found", "confidence", "status",
				},
				"properties": map[string]any{
					"agent_domain_id":         map[string]any{"type": "integer"},
					"enriched_bio":            nullable("string"),
					"years_experience":        map[string]any{"type": []string{"integer", "null"}, "minimum": 0, "maximum": 50},
					"years_experience_source": map[string]any{"enum": []any{"linkedin", "agency_website", "google", "inferred", nil}},
					"career_start_year":       nullable("integer"),
					"languages":               stringArray(),
					"specializations":         stringArray(),
					"property_types":          stringArray(),
					"awards": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type":     "object",
							"required": []string{"name"},
							"properties": map[string]any{
								"name":         map[string]any{"type": "string"},
								"year":         nullable("integer"),
								"level":        map[string]any{"enum": []any{"agency", "regional", "state", "national", nil}},
								"organization": nullable("string"),
							},
						},
					},
					"linkedin_url":         nullable("string"),
					"facebook_url":         nullable("string"),
					"instagram_url":        nullable("string"),
					"personal_website_url": nullable("string"),
					"sources_found":        stringArray(),
					"confidence":           map[string]any{"type": "string", "enum": []string{"high", "medium", "low", "minimal"}},
					"status":               map[string]any{"type": "string", "enum": []string{"success", "partial", "failed"}},
					"error_message":        nullable("string"),
				},
			},
		},
	},
}
