// Package catalog loads the ranked list of suburbs that discovery works
// through and converts it into scrape_progress seed rows.
package catalog

import (
	"bytes"
	_ "embed"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/agent-research-cli/internal/identity"
	"github.com/sells-group/agent-research-cli/internal/model"
)

//go:embed suburbs.yaml
var embedded []byte

// Entry is one catalog suburb. Rank orders discovery priority, 1 first.
type Entry struct {
	Rank     int    `yaml:"rank"`
	Name     string `yaml:"name"`
	State    string `yaml:"state"`
	Postcode string `yaml:"postcode"`
	Region   string `yaml:"region"`
}

type document struct {
	Suburbs []Entry `yaml:"suburbs"`
}

// Default returns the embedded Sydney catalog.
func Default() ([]Entry, error) {
	return parseYAML(embedded)
}

// Load reads a catalog file. The format follows the extension: .yaml/.yml,
// .csv or .xlsx. An empty path returns the embedded catalog.
func Load(path string) ([]Entry, error) {
	if path == "" {
		return Default()
	}

	var (
		entries []Entry
		err     error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		var data []byte
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "catalog: read %s", path)
		}
		entries, err = parseYAML(data)
	case ".csv":
		entries, err = readCSV(path)
	case ".xlsx":
		entries, err = readXLSX(path)
	default:
		return nil, eris.Errorf("catalog: unsupported file type %q", ext)
	}
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func parseYAML(data []byte) ([]Entry, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, eris.Wrap(err, "catalog: parse yaml")
	}
	return validate(doc.Suburbs)
}

// validate trims every entry and rejects unusable ones. Entries are returned
// in rank order.
func validate(entries []Entry) ([]Entry, error) {
	out := make([]Entry, 0, len(entries))
	seen := make(map[string]int, len(entries))
	for i, e := range entries {
		e.Name = strings.TrimSpace(e.Name)
		e.State = strings.ToUpper(strings.TrimSpace(e.State))
		e.Postcode = strings.TrimSpace(e.Postcode)
		e.Region = strings.TrimSpace(e.Region)

		switch {
		case e.Name == "" || e.State == "":
			return nil, eris.Errorf("catalog: entry %d needs a name and state", i+1)
		case e.Rank < 1:
			return nil, eris.Errorf("catalog: %s has rank %d; ranks start at 1", e.Name, e.Rank)
		}
		slug := identity.SuburbSlug(e.Name, e.State, e.Postcode)
		if prev, dup := seen[slug]; dup {
			return nil, eris.Errorf("catalog: %s is listed twice (entries %d and %d)", slug, prev, i+1)
		}
		seen[slug] = i + 1
		out = append(out, e)
	}
	if len(out) == 0 {
		return nil, eris.New("catalog: no suburbs")
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

// Seeds converts entries into scrape_progress rows. The suburb id is the
// slug, so reseeding the same catalog updates rows in place.
func Seeds(entries []Entry) []model.Suburb {
	out := make([]model.Suburb, len(entries))
	for i, e := range entries {
		slug := identity.SuburbSlug(e.Name, e.State, e.Postcode)
		out[i] = model.Suburb{
			SuburbID:     slug,
			Name:         e.Name,
			State:        e.State,
			Postcode:     e.Postcode,
			Slug:         slug,
			PriorityTier: identity.PriorityTier(e.Rank),
			Region:       e.Region,
			Status:       model.ScrapeStatusPending,
		}
	}
	return out
}
