package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Format uint8

const (
	FormatPDF Format = 1 << iota
	FormatDWG
	FormatIFC
	FormatNWC
)

var allFormats = []Format{FormatPDF, FormatDWG, FormatIFC, FormatNWC}

// AllFormats returns every known format in processing order.
func AllFormats() []Format {
	return append([]Format(nil), allFormats...)
}

func (f Format) String() string {
	switch f {
	case FormatPDF:
		return "pdf"
	case FormatDWG:
		return "dwg"
	case FormatIFC:
		return "ifc"
	case FormatNWC:
		return "nwc"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}

// Extension is the file extension, with leading dot, the host writes for f.
func (f Format) Extension() string {
	switch f {
	case FormatPDF, FormatDWG, FormatIFC, FormatNWC:
		return "." + f.String()
	default:
		return ""
	}
}

func (f Format) Valid() bool {
	switch f {
	case FormatPDF, FormatDWG, FormatIFC, FormatNWC:
		return true
	default:
		return false
	}
}

// PerSheet reports whether the host exports this format one sheet per call.
// Model-level formats are exported once per batch.
func (f Format) PerSheet() bool {
	return f == FormatPDF || f == FormatDWG
}

func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), ".")) {
	case "pdf":
		return FormatPDF, nil
	case "dwg":
		return FormatDWG, nil
	case "ifc":
		return FormatIFC, nil
	case "nwc":
		return FormatNWC, nil
	default:
		return 0, fmt.Errorf("unknown format %q (expected pdf, dwg, ifc, or nwc)", strings.TrimSpace(raw))
	}
}

// FormatSet is a set of format tags.
type FormatSet uint8

func NewFormatSet(formats ...Format) FormatSet {
	var s FormatSet
	for _, f := range formats {
		s = s.Add(f)
	}
	return s
}

func ParseFormatSet(raw string) (FormatSet, error) {
	var s FormatSet
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		f, err := ParseFormat(part)
		if err != nil {
			return 0, err
		}
		s = s.Add(f)
	}
	return s, nil
}

func (s FormatSet) Has(f Format) bool {
	return f.Valid() && s&FormatSet(f) != 0
}

func (s FormatSet) Add(f Format) FormatSet {
	if !f.Valid() {
		return s
	}
	return s | FormatSet(f)
}

func (s FormatSet) Remove(f Format) FormatSet {
	return s &^ FormatSet(f)
}

func (s FormatSet) Intersect(o FormatSet) FormatSet {
	return s & o
}

func (s FormatSet) Empty() bool {
	return s.Len() == 0
}

func (s FormatSet) Len() int {
	return len(s.List())
}

// List returns the members in processing order.
func (s FormatSet) List() []Format {
	out := make([]Format, 0, len(allFormats))
	for _, f := range allFormats {
		if s.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

func (s FormatSet) Tags() []string {
	list := s.List()
	out := make([]string, 0, len(list))
	for _, f := range list {
		out = append(out, f.String())
	}
	return out
}

func (s FormatSet) String() string {
	if s.Empty() {
		return "(none)"
	}
	return strings.Join(s.Tags(), ",")
}

func (s FormatSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Tags())
}

func (s *FormatSet) UnmarshalJSON(data []byte) error {
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return fmt.Errorf("decode format list: %w", err)
	}
	return s.setTags(tags)
}

func (s FormatSet) MarshalYAML() (any, error) {
	return s.Tags(), nil
}

func (s *FormatSet) UnmarshalYAML(unmarshal func(any) error) error {
	var tags []string
	if err := unmarshal(&tags); err != nil {
		return fmt.Errorf("decode format list: %w", err)
	}
	return s.setTags(tags)
}

func (s *FormatSet) setTags(tags []string) error {
	var out FormatSet
	for _, tag := range tags {
		f, err := ParseFormat(tag)
		if err != nil {
			return err
		}
		out = out.Add(f)
	}
	*s = out
	return nil
}
