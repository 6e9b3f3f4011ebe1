package model

import "strings"

// Sheet is an immutable snapshot of one exportable sheet taken at batch start.
type Sheet struct {
	ID        string `json:"id" yaml:"id"`
	Number    string `json:"number" yaml:"number"`
	Name      string `json:"name" yaml:"name"`
	Revision  string `json:"revision,omitempty" yaml:"revision,omitempty"`
	PaperSize string `json:"paper_size,omitempty" yaml:"paper_size,omitempty"`
}

// Label is the human-readable identity used in progress output.
func (s Sheet) Label() string {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return s.Number
	}
	return s.Number + " - " + name
}

// ParameterModel is one slot of a naming template. ID is set for built-in
// properties. Separator, when non-empty, is the joiner emitted after this
// slot and overrides the template-wide separator.
type ParameterModel struct {
	Name      string `json:"name" yaml:"name"`
	ID        *int   `json:"id,omitempty" yaml:"id,omitempty"`
	Prefix    string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Suffix    string `json:"suffix,omitempty" yaml:"suffix,omitempty"`
	Separator string `json:"separator,omitempty" yaml:"separator,omitempty"`
}

type NamingTemplate struct {
	Parameters []ParameterModel `json:"parameters" yaml:"parameters"`
	Separator  string           `json:"separator" yaml:"separator"`
}

type ColorMode string

const (
	ColorModeColor      ColorMode = "color"
	ColorModeGrayscale  ColorMode = "grayscale"
	ColorModeBlackWhite ColorMode = "black_white"
)

type RasterQuality string

const (
	RasterQualityLow          RasterQuality = "low"
	RasterQualityMedium       RasterQuality = "medium"
	RasterQualityHigh         RasterQuality = "high"
	RasterQualityPresentation RasterQuality = "presentation"
)

type PaperPlacement string

const (
	PaperPlacementCenter PaperPlacement = "center"
	PaperPlacementOffset PaperPlacement = "offset"
)

type IFCVersion string

const (
	IFCVersion2x3 IFCVersion = "ifc2x3"
	IFCVersion4   IFCVersion = "ifc4"
)

// RenderOptions is the canonical per-format option bag. Adapters map the
// fields their format supports and report the rest as diagnostics.
type RenderOptions struct {
	ColorMode            ColorMode      `json:"color_mode" yaml:"color_mode"`
	RasterQuality        RasterQuality  `json:"raster_quality" yaml:"raster_quality"`
	PaperPlacement       PaperPlacement `json:"paper_placement" yaml:"paper_placement"`
	ZoomPercent          int            `json:"zoom_percent,omitempty" yaml:"zoom_percent,omitempty"`
	HideCropBoundaries   bool           `json:"hide_crop_boundaries" yaml:"hide_crop_boundaries"`
	HideScopeBoxes       bool           `json:"hide_scope_boxes" yaml:"hide_scope_boxes"`
	HideUnreferencedTags bool           `json:"hide_unreferenced_tags" yaml:"hide_unreferenced_tags"`
	HideReferencePlanes  bool           `json:"hide_reference_planes" yaml:"hide_reference_planes"`

	ExportLayerPreset        string     `json:"export_layer_preset,omitempty" yaml:"export_layer_preset,omitempty"`
	IFCVersion               IFCVersion `json:"ifc_version,omitempty" yaml:"ifc_version,omitempty"`
	ConvertElementProperties bool       `json:"convert_element_properties" yaml:"convert_element_properties"`
}

// ViewOptions are the document-wide view switches applied once per batch.
type ViewOptions struct {
	HideCropBoundaries   bool `json:"hide_crop_boundaries"`
	HideScopeBoxes       bool `json:"hide_scope_boxes"`
	HideUnreferencedTags bool `json:"hide_unreferenced_tags"`
	HideReferencePlanes  bool `json:"hide_reference_planes"`
}

func (v ViewOptions) Any() bool {
	return v.HideCropBoundaries || v.HideScopeBoxes || v.HideUnreferencedTags || v.HideReferencePlanes
}

func (o RenderOptions) ViewOptions() ViewOptions {
	return ViewOptions{
		HideCropBoundaries:   o.HideCropBoundaries,
		HideScopeBoxes:       o.HideScopeBoxes,
		HideUnreferencedTags: o.HideUnreferencedTags,
		HideReferencePlanes:  o.HideReferencePlanes,
	}
}

// SelectionFilter chooses which register sheets enter a batch. The zero
// value selects every sheet.
type SelectionFilter struct {
	Numbers      []string `json:"numbers,omitempty" yaml:"numbers,omitempty"`
	NumberPrefix string   `json:"number_prefix,omitempty" yaml:"number_prefix,omitempty"`
	Revision     string   `json:"revision,omitempty" yaml:"revision,omitempty"`
}

func (f SelectionFilter) Match(s Sheet) bool {
	if len(f.Numbers) > 0 {
		found := false
		for _, n := range f.Numbers {
			if strings.EqualFold(strings.TrimSpace(n), strings.TrimSpace(s.Number)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if p := strings.TrimSpace(f.NumberPrefix); p != "" && !strings.HasPrefix(strings.ToLower(s.Number), strings.ToLower(p)) {
		return false
	}
	if r := strings.TrimSpace(f.Revision); r != "" && !strings.EqualFold(r, strings.TrimSpace(s.Revision)) {
		return false
	}
	return true
}

// Select keeps the matching sheets in their given order.
func (f SelectionFilter) Select(sheets []Sheet) []Sheet {
	out := make([]Sheet, 0, len(sheets))
	for _, s := range sheets {
		if f.Match(s) {
			out = append(out, s)
		}
	}
	return out
}

// ExportSettings is the canonical profile.
type ExportSettings struct {
	Name             string          `json:"name" yaml:"name"`
	OutputFolder     string          `json:"output_folder" yaml:"output_folder"`
	Formats          FormatSet       `json:"formats" yaml:"formats"`
	CombineFiles     bool            `json:"combine_files" yaml:"combine_files"`
	CombinedName     string          `json:"combined_name,omitempty" yaml:"combined_name,omitempty"`
	CreateSubfolders bool            `json:"create_subfolders" yaml:"create_subfolders"`
	Naming           NamingTemplate  `json:"naming" yaml:"naming"`
	Options          RenderOptions   `json:"options" yaml:"options"`
	Selection        SelectionFilter `json:"selection" yaml:"selection"`
}

const (
	DefaultProfileName  = "Default"
	DefaultSeparator    = "-"
	DefaultCombinedName = "Combined"
)

func DefaultSettings() ExportSettings {
	return Normalize(ExportSettings{
		Name:         DefaultProfileName,
		OutputFolder: "exports",
		Formats:      NewFormatSet(FormatPDF),
		Naming: NamingTemplate{
			Parameters: []ParameterModel{
				{Name: ParamSheetNumber},
				{Name: ParamSheetName},
			},
			Separator: DefaultSeparator,
		},
		Options: RenderOptions{
			HideCropBoundaries: true,
			HideScopeBoxes:     true,
		},
	})
}

// Well-known naming aliases resolved from the sheet snapshot.
const (
	ParamSheetNumber     = "Sheet Number"
	ParamSheetName       = "Sheet Name"
	ParamCurrentRevision = "Current Revision"
)

// Normalize trims free text, fills enumerations with their defaults and
// collapses empty lists to nil.
func Normalize(s ExportSettings) ExportSettings {
	s.Name = strings.TrimSpace(s.Name)
	s.OutputFolder = strings.TrimSpace(s.OutputFolder)
	s.CombinedName = strings.TrimSpace(s.CombinedName)
	switch s.Options.ColorMode {
	case ColorModeColor, ColorModeGrayscale, ColorModeBlackWhite:
	default:
		s.Options.ColorMode = ColorModeColor
	}
	switch s.Options.RasterQuality {
	case RasterQualityLow, RasterQualityMedium, RasterQualityHigh, RasterQualityPresentation:
	default:
		s.Options.RasterQuality = RasterQualityHigh
	}
	switch s.Options.PaperPlacement {
	case PaperPlacementCenter, PaperPlacementOffset:
	default:
		s.Options.PaperPlacement = PaperPlacementCenter
	}
	switch s.Options.IFCVersion {
	case IFCVersion2x3, IFCVersion4:
	default:
		s.Options.IFCVersion = IFCVersion2x3
	}
	if s.Options.ZoomPercent < 0 {
		s.Options.ZoomPercent = 0
	}
	if len(s.Naming.Parameters) == 0 {
		s.Naming.Parameters = nil
	}
	if len(s.Selection.Numbers) == 0 {
		s.Selection.Numbers = nil
	}
	return s
}
