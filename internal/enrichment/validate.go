package enrichment

import (
	"strings"
	"unicode/utf8"
)

// Bio and experience bounds applied by Validate.
const (
	MinBioLength       = 50
	MaxBioLength       = 1000
	MaxYearsExperience = 50
)

// Validation error messages.
const (
	MsgYearsOutOfBounds   = "years_experience out of bounds"
	MsgLanguagesNoSources = "languages set without sources_found"
)

// Summary counts validated records by status.
type Summary struct {
	Total      int `json:"total_processed"`
	Successful int `json:"successful"`
	Partial    int `json:"partial"`
	Failed     int `json:"failed"`
}

// ValidationResult is the corrected batch plus its summary.
type ValidationResult struct {
	Records []Record
	Summary Summary
}

// Validate normalizes each record and demotes the ones that fail content
// checks. It never mutates its input and never fails; a demoted record
// carries status failed and an error message.
//
// Per record, in order:
//   - list fields are trimmed, deduplicated and stripped of empty strings
//   - a bio shorter than MinBioLength is dropped; a longer one is cut to
//     MaxBioLength
//   - years_experience outside [0, MaxYearsExperience], or present but not
//     a whole number, fails the record
//   - languages without any sources_found fail the record
func Validate(records []Record) ValidationResult {
	out := make([]Record, len(records))
	var sum Summary
	for i, r := range records {
		r = normalize(r)

		switch {
		case r.YearsExperienceInvalid,
			r.YearsExperience != nil && (*r.YearsExperience < 0 || *r.YearsExperience > MaxYearsExperience):
			r.Status = RecordFailed
			r.ErrorMessage = MsgYearsOutOfBounds
		case len(r.Languages) > 0 && len(r.SourcesFound) == 0:
			r.Status = RecordFailed
			r.ErrorMessage = MsgLanguagesNoSources
		}

		switch r.Status {
		case RecordSuccess:
			sum.Successful++
		case RecordFailed:
			sum.Failed++
		default:
			sum.Partial++
		}
		out[i] = r
	}
	sum.Total = len(out)
	return ValidationResult{Records: out, Summary: sum}
}

func normalize(r Record) Record {
	r.Languages = normalizeList(r.Languages)
	r.Specializations = normalizeList(r.Specializations)
	r.PropertyTypes = normalizeList(r.PropertyTypes)
	r.SourcesFound = normalizeList(r.SourcesFound)
	r.Bio = normalizeBio(r.Bio)
	return r
}

// normalizeList returns a new slice; first occurrence order is kept.
func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func normalizeBio(bio string) string {
	bio = strings.TrimSpace(bio)
	n := utf8.RuneCountInString(bio)
	switch {
	case n < MinBioLength:
		return ""
	case n > MaxBioLength:
		return string([]rune(bio)[:MaxBioLength])
	}
	return bio
}
