// Package identity derives the deterministic slugs and numeric ids that let
// repeated discovery runs converge on the same rows.
package identity

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// IDBase is the smallest id StableID can return.
	IDBase = 1_000_000
	// IDSpan is the width of the id range above IDBase.
	IDSpan = 2_000_000_000
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// brandCodes maps well-known franchise names to their short codes. Order
// matters: the first substring match wins.
var brandCodes = []struct {
	match string
	code  string
}{
	{"ray white", "rw"},
	{"lj hooker", "ljh"},
	{"mcgrath", "mc"},
	{"belle property", "bp"},
	{"harcourts", "hc"},
	{"century 21", "c21"},
	{"raine & horne", "rh"},
	{"prd", "prd"},
	{"first national", "fn"},
}

// Slugify lowercases s, strips diacritics and folds every run of
// non-alphanumerics into a single hyphen.
func Slugify(s string) string {
	out := nonAlnum.ReplaceAllString(fold(s), "-")
	return strings.Trim(out, "-")
}

// fold lowercases s and strips combining marks.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// AgencySlug returns the agency's slug, suffixed with the suburb unless the
// name already carries it as whole words. A name with nothing to slugify
// gets a base derived from its hash so distinct names stay distinct.
func AgencySlug(name, suburb string) string {
	base := Slugify(name)
	if base == "" {
		if raw := strings.TrimSpace(name); raw != "" {
			base = "agency-" + ShortHash(StableID(raw))
		}
	}
	sub := Slugify(suburb)
	if sub == "" || hasSegments(base, sub) {
		return base
	}
	if base == "" {
		return sub
	}
	return base + "-" + sub
}

// hasSegments reports whether the hyphen-separated words of sub appear as a
// contiguous run of words in slug.
func hasSegments(slug, sub string) bool {
	return strings.Contains("-"+slug+"-", "-"+sub+"-")
}

// AgentSlugInput carries the fields an agent slug is built from.
type AgentSlugInput struct {
	DomainID   int64
	AgencyName string
	FirstName  string
	LastName   string
	Suburb     string
}

// AgentSlug builds first-last-suburb-abbr-hash. The hash suffix comes from
// the numeric id so same-named agents at one office stay distinct.
func AgentSlug(in AgentSlugInput) string {
	parts := []string{
		Slugify(in.FirstName),
		Slugify(in.LastName),
		Slugify(in.Suburb),
		AgencyAbbreviation(in.AgencyName),
		ShortHash(in.DomainID),
	}
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return Slugify(strings.Join(kept, "-"))
}

// AgencyAbbreviation resolves franchise names to fixed codes and otherwise
// returns up to three initials of the name's space-separated words. A
// word's initial is its first ASCII letter or digit.
func AgencyAbbreviation(name string) string {
	lower := strings.ToLower(name)
	for _, b := range brandCodes {
		if strings.Contains(lower, b.match) {
			return b.code
		}
	}

	var initials strings.Builder
	for _, word := range strings.Fields(fold(name)) {
		if initials.Len() >= 3 {
			break
		}
		for _, r := range word {
			if r < unicode.MaxASCII && (unicode.IsLower(r) || unicode.IsDigit(r)) {
				initials.WriteRune(r)
				break
			}
		}
	}
	return initials.String()
}

// StableID hashes seed into [IDBase, IDBase+IDSpan). The same seed always
// yields the same id.
func StableID(seed string) int64 {
	sum := sha256.Sum256([]byte(seed))
	v := binary.BigEndian.Uint32(sum[:4])
	return IDBase + int64(v%IDSpan)
}

// ShortHash renders id in base 36 and keeps the last five characters.
func ShortHash(id int64) string {
	s := strconv.FormatInt(id, 36)
	if len(s) > 5 {
		return s[len(s)-5:]
	}
	return s
}

// AgencySeed is the seed string for an agency's StableID.
func AgencySeed(suburbSlug, agencySlug string) string {
	return fmt.Sprintf("agency:%s:%s", suburbSlug, agencySlug)
}

// AgentSeed is the seed string for an agent's StableID. Contact fields are
// part of the seed so namesakes with different details get different ids.
func AgentSeed(suburbSlug, agencyName, first, last, email, phone string) string {
	return fmt.Sprintf("agent:%s:%s:%s:%s:%s:%s", suburbSlug, agencyName, first, last, email, phone)
}

// SuburbSlug is the unique slug of a catalog suburb.
func SuburbSlug(name, state, postcode string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{name, state, postcode} {
		if s := Slugify(p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "-")
}

// PriorityTier buckets a catalog rank into tiers 1-3.
func PriorityTier(rank int) int {
	switch {
	case rank <= 20:
		return 1
	case rank <= 35:
		return 2
	default:
		return 3
	}
}
