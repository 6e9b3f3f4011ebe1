// Package host defines the contracts of the modeling application the batch
// exporter drives, and an implementation backed by a sheet register and an
// external renderer command.
package host

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"sheetbatch/internal/model"
)

type ValueKind string

const (
	KindNone      ValueKind = "none"
	KindString    ValueKind = "string"
	KindInteger   ValueKind = "integer"
	KindDouble    ValueKind = "double"
	KindElementID ValueKind = "element_id"
)

// ParameterValue is a property value in whatever storage kind the host keeps it.
type ParameterValue struct {
	Kind    ValueKind
	String  string
	Integer int64
	Double  float64
}

func StringValue(s string) ParameterValue {
	return ParameterValue{Kind: KindString, String: s}
}

func IntegerValue(v int64) ParameterValue {
	return ParameterValue{Kind: KindInteger, Integer: v}
}

func DoubleValue(v float64) ParameterValue {
	return ParameterValue{Kind: KindDouble, Double: v}
}

func ElementIDValue(v int64) ParameterValue {
	return ParameterValue{Kind: KindElementID, Integer: v}
}

// Display coerces the value to the string the host would show for it.
func (v ParameterValue) Display() string {
	switch v.Kind {
	case KindString:
		return v.String
	case KindInteger, KindElementID:
		return strconv.FormatInt(v.Integer, 10)
	case KindDouble:
		return strconv.FormatFloat(v.Double, 'f', -1, 64)
	default:
		return ""
	}
}

// Document is read access to properties of live host elements.
type Document interface {
	BuiltinParameter(sheetID string, id int) (ParameterValue, bool)
	Parameter(sheetID, name string) (ParameterValue, bool)
}

// Transaction scopes document mutations. Nothing is visible to exports
// until Commit returns.
type Transaction interface {
	ApplyViewOptions(opts model.ViewOptions) error
	Commit() error
	Rollback() error
}

type Transactor interface {
	Begin(name string) (Transaction, error)
}

type OptionKey string

const (
	OptColorMode         OptionKey = "color_mode"
	OptRasterQuality     OptionKey = "raster_quality"
	OptPaperPlacement    OptionKey = "paper_placement"
	OptZoom              OptionKey = "zoom"
	OptHideCropBoundary  OptionKey = "hide_crop_boundaries"
	OptHideScopeBoxes    OptionKey = "hide_scope_boxes"
	OptHideUnrefTags     OptionKey = "hide_unreferenced_tags"
	OptHideRefPlanes     OptionKey = "hide_reference_planes"
	OptCombine           OptionKey = "combine"
	OptLayerPreset       OptionKey = "layer_preset"
	OptIFCVersion        OptionKey = "ifc_version"
	OptElementProperties OptionKey = "element_properties"
)

// OptionBag is the format-specific option set handed to the host.
type OptionBag map[OptionKey]string

// Pairs returns key=value pairs in key order.
func (b OptionBag) Pairs() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+b[OptionKey(k)])
	}
	return out
}

type ExportRequest struct {
	Format    model.Format
	OutputDir string
	SheetIDs  []string
	// NameHint is a base name the host may honor, rewrite or ignore.
	NameHint string
	Options  OptionBag
}

// Exporter is the single-shot render primitive. It writes one file into
// OutputDir under a name of its own choosing, or fails.
type Exporter interface {
	Export(ctx context.Context, req ExportRequest) error
}

// Capabilities describes the option keys a host version accepts for one format.
type Capabilities struct {
	Format    model.Format
	supported map[OptionKey]bool
}

func NewCapabilities(format model.Format, keys ...OptionKey) Capabilities {
	c := Capabilities{Format: format, supported: make(map[OptionKey]bool, len(keys))}
	for _, k := range keys {
		c.supported[k] = true
	}
	return c
}

func (c Capabilities) Supports(key OptionKey) bool {
	return c.supported[key]
}

func (c Capabilities) Keys() []OptionKey {
	out := make([]OptionKey, 0, len(c.supported))
	for k := range c.supported {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type CapabilityProvider interface {
	Capabilities(format model.Format) Capabilities
}

// Host bundles every capability the exporter consumes.
type Host interface {
	Document
	Transactor
	Exporter
	CapabilityProvider
}

// FormatBool renders a boolean option value the way the host expects it.
func FormatBool(v bool) string {
	return strconv.FormatBool(v)
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
