package model

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// EncodeList serializes a list column. Nil encodes as an empty array so the
// column never holds JSON null.
func EncodeList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", eris.Wrap(err, "model: encode list")
	}
	return string(b), nil
}

// DecodeList parses a list column. Empty and null values decode to an empty
// non-nil slice.
func DecodeList(raw string) ([]string, error) {
	out := []string{}
	if raw == "" || raw == "null" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, eris.Wrap(err, "model: decode list")
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// EncodeAwards serializes the awards column.
func EncodeAwards(awards []Award) (string, error) {
	if awards == nil {
		awards = []Award{}
	}
	b, err := json.Marshal(awards)
	if err != nil {
		return "", eris.Wrap(err, "model: encode awards")
	}
	return string(b), nil
}

// DecodeAwards parses the awards column.
func DecodeAwards(raw string) ([]Award, error) {
	out := []Award{}
	if raw == "" || raw == "null" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, eris.Wrap(err, "model: decode awards")
	}
	if out == nil {
		out = []Award{}
	}
	return out, nil
}
