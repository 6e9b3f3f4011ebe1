// Package profile parses interchange documents into canonical export
// settings and persists those settings, one YAML file per profile.
package profile

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"sheetbatch/internal/model"
)

// FormatError reports a malformed interchange document or an unreadable
// profile file. Only the named source is skipped.
type FormatError struct {
	Source string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("profile format error in %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("profile format error in %s: %s", e.Source, e.Reason)
}

func (e *FormatError) Unwrap() error { return e.Err }

func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// Interchange is the external profile document:
// root, profile list, profile, template info.
type Interchange struct {
	XMLName  xml.Name             `xml:"ExportProfiles"`
	Profiles *InterchangeProfiles `xml:"Profiles"`
}

type InterchangeProfiles struct {
	Items []InterchangeProfile `xml:"Profile"`
}

type InterchangeProfile struct {
	Name     string        `xml:"Name,attr"`
	Template *TemplateInfo `xml:"TemplateInfo"`
}

type TemplateInfo struct {
	OutputFolder string             `xml:"OutputFolder"`
	Formats      *FormatFlags       `xml:"Formats"`
	PDF          *PDFSettings       `xml:"PDFSettings"`
	DWG          *DWGSettings       `xml:"DWGSettings"`
	IFC          *IFCSettings       `xml:"IFCSettings"`
	NWC          *NWCSettings       `xml:"NWCSettings"`
	Selection    *SelectionSettings `xml:"SelectionSettings"`
	Naming       *NamingParameters  `xml:"NamingParameters"`
}

type FormatFlags struct {
	PDF string `xml:"PDF,attr"`
	DWG string `xml:"DWG,attr"`
	IFC string `xml:"IFC,attr"`
	NWC string `xml:"NWC,attr"`
}

type PDFSettings struct {
	ColorMode            string `xml:"ColorMode,attr"`
	RasterQuality        string `xml:"RasterQuality,attr"`
	PaperPlacement       string `xml:"PaperPlacement,attr"`
	Zoom                 string `xml:"Zoom,attr"`
	HideCropBoundaries   string `xml:"HideCropBoundaries,attr"`
	HideScopeBoxes       string `xml:"HideScopeBoxes,attr"`
	HideUnreferencedTags string `xml:"HideUnreferencedTags,attr"`
	HideReferencePlanes  string `xml:"HideReferencePlanes,attr"`
	CombineFiles         string `xml:"CombineFiles,attr"`
	CombinedName         string `xml:"CombinedName,attr"`
	CreateSubfolders     string `xml:"CreateSubfolders,attr"`
}

type DWGSettings struct {
	LayerPreset string `xml:"LayerPreset,attr"`
}

type IFCSettings struct {
	Version string `xml:"Version,attr"`
}

type NWCSettings struct {
	ConvertElementProperties string `xml:"ConvertElementProperties,attr"`
}

type SelectionSettings struct {
	Numbers      string `xml:"Numbers,attr"`
	NumberPrefix string `xml:"NumberPrefix,attr"`
	Revision     string `xml:"Revision,attr"`
}

type NamingParameters struct {
	Items []NamingParameter `xml:"Parameter"`
}

// NamingParameter carries its own trailing separator.
type NamingParameter struct {
	Name      string `xml:"Name,attr"`
	ID        string `xml:"Id,attr"`
	Prefix    string `xml:"Prefix,attr"`
	Suffix    string `xml:"Suffix,attr"`
	Separator string `xml:"Separator,attr"`
}

// ParseInterchange decodes an interchange document. source names the
// document in errors.
func ParseInterchange(r io.Reader, source string) (Interchange, error) {
	var doc Interchange
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return Interchange{}, &FormatError{Source: source, Reason: "decode XML", Err: err}
	}
	if doc.Profiles == nil {
		return Interchange{}, &FormatError{Source: source, Reason: "missing Profiles section"}
	}
	return doc, nil
}

func ParseInterchangeFile(path string) (Interchange, error) {
	f, err := os.Open(path)
	if err != nil {
		return Interchange{}, fmt.Errorf("open interchange %s: %w", path, err)
	}
	defer f.Close()
	return ParseInterchange(f, path)
}

// Convert maps every profile in doc. A malformed profile yields a
// FormatError and is skipped; the others are still returned.
func Convert(doc Interchange, source string) ([]model.ExportSettings, []error) {
	if doc.Profiles == nil {
		return nil, []error{&FormatError{Source: source, Reason: "missing Profiles section"}}
	}
	out := make([]model.ExportSettings, 0, len(doc.Profiles.Items))
	var errs []error
	for _, p := range doc.Profiles.Items {
		settings, err := ConvertFromInterchange(p)
		if err != nil {
			var fe *FormatError
			if errors.As(err, &fe) {
				fe.Source = source + ": " + fe.Source
			}
			errs = append(errs, err)
			continue
		}
		out = append(out, settings)
	}
	return out, errs
}

// ConvertFromInterchange maps one external profile onto canonical settings.
// Per-slot separators are kept on each parameter and the template-wide
// separator is left empty.
func ConvertFromInterchange(p InterchangeProfile) (model.ExportSettings, error) {
	name := strings.TrimSpace(p.Name)
	label := name
	if label == "" {
		label = "(unnamed)"
	}
	fail := func(reason string, err error) (model.ExportSettings, error) {
		return model.ExportSettings{}, &FormatError{Source: label, Reason: reason, Err: err}
	}
	if name == "" {
		return fail("profile Name attribute is required", nil)
	}
	t := p.Template
	if t == nil {
		return fail("missing TemplateInfo section", nil)
	}
	if t.Formats == nil {
		return fail("missing Formats section", nil)
	}
	if t.Naming == nil {
		return fail("missing NamingParameters section", nil)
	}

	s := model.ExportSettings{
		Name:         name,
		OutputFolder: strings.TrimSpace(t.OutputFolder),
	}

	flags := []struct {
		raw    string
		format model.Format
	}{
		{t.Formats.PDF, model.FormatPDF},
		{t.Formats.DWG, model.FormatDWG},
		{t.Formats.IFC, model.FormatIFC},
		{t.Formats.NWC, model.FormatNWC},
	}
	for _, f := range flags {
		on, err := parseFlag(f.raw)
		if err != nil {
			return fail("Formats "+strings.ToUpper(f.format.String()), err)
		}
		if on {
			s.Formats = s.Formats.Add(f.format)
		}
	}

	if pdf := t.PDF; pdf != nil {
		var err error
		if s.Options.ColorMode, err = parseColorMode(pdf.ColorMode); err != nil {
			return fail("PDFSettings ColorMode", err)
		}
		if s.Options.RasterQuality, err = parseRasterQuality(pdf.RasterQuality); err != nil {
			return fail("PDFSettings RasterQuality", err)
		}
		if s.Options.PaperPlacement, err = parsePaperPlacement(pdf.PaperPlacement); err != nil {
			return fail("PDFSettings PaperPlacement", err)
		}
		if z := strings.TrimSpace(pdf.Zoom); z != "" {
			if s.Options.ZoomPercent, err = strconv.Atoi(z); err != nil {
				return fail("PDFSettings Zoom", err)
			}
		}
		bools := []struct {
			attr string
			raw  string
			dst  *bool
		}{
			{"HideCropBoundaries", pdf.HideCropBoundaries, &s.Options.HideCropBoundaries},
			{"HideScopeBoxes", pdf.HideScopeBoxes, &s.Options.HideScopeBoxes},
			{"HideUnreferencedTags", pdf.HideUnreferencedTags, &s.Options.HideUnreferencedTags},
			{"HideReferencePlanes", pdf.HideReferencePlanes, &s.Options.HideReferencePlanes},
			{"CombineFiles", pdf.CombineFiles, &s.CombineFiles},
			{"CreateSubfolders", pdf.CreateSubfolders, &s.CreateSubfolders},
		}
		for _, b := range bools {
			if *b.dst, err = parseFlag(b.raw); err != nil {
				return fail("PDFSettings "+b.attr, err)
			}
		}
		s.CombinedName = strings.TrimSpace(pdf.CombinedName)
	}
	if dwg := t.DWG; dwg != nil {
		s.Options.ExportLayerPreset = strings.TrimSpace(dwg.LayerPreset)
	}
	if ifc := t.IFC; ifc != nil {
		v, err := parseIFCVersion(ifc.Version)
		if err != nil {
			return fail("IFCSettings Version", err)
		}
		s.Options.IFCVersion = v
	}
	if nwc := t.NWC; nwc != nil {
		on, err := parseFlag(nwc.ConvertElementProperties)
		if err != nil {
			return fail("NWCSettings ConvertElementProperties", err)
		}
		s.Options.ConvertElementProperties = on
	}
	if sel := t.Selection; sel != nil {
		s.Selection = model.SelectionFilter{
			Numbers:      splitList(sel.Numbers),
			NumberPrefix: strings.TrimSpace(sel.NumberPrefix),
			Revision:     strings.TrimSpace(sel.Revision),
		}
	}

	for i, np := range t.Naming.Items {
		pm := model.ParameterModel{
			Name:      strings.TrimSpace(np.Name),
			Prefix:    np.Prefix,
			Suffix:    np.Suffix,
			Separator: np.Separator,
		}
		if pm.Name == "" {
			return fail(fmt.Sprintf("NamingParameters Parameter[%d] Name is required", i), nil)
		}
		if raw := strings.TrimSpace(np.ID); raw != "" {
			id, err := strconv.Atoi(raw)
			if err != nil {
				return fail(fmt.Sprintf("NamingParameters Parameter[%d] Id", i), err)
			}
			pm.ID = &id
		}
		s.Naming.Parameters = append(s.Naming.Parameters, pm)
	}

	return model.Normalize(s), nil
}

func parseFlag(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "false", "0", "no", "off":
		return false, nil
	case "true", "1", "yes", "on":
		return true, nil
	}
	return false, fmt.Errorf("invalid boolean %q", raw)
}

func enumKey(raw string) string {
	r := strings.NewReplacer(" ", "", "_", "", "-", "")
	return strings.ToLower(r.Replace(strings.TrimSpace(raw)))
}

func parseColorMode(raw string) (model.ColorMode, error) {
	switch enumKey(raw) {
	case "", "color", "colour":
		return model.ColorModeColor, nil
	case "grayscale", "greyscale", "gray", "grey":
		return model.ColorModeGrayscale, nil
	case "blackwhite", "blackandwhite", "blackline", "monochrome":
		return model.ColorModeBlackWhite, nil
	}
	return "", fmt.Errorf("unknown color mode %q", raw)
}

func parseRasterQuality(raw string) (model.RasterQuality, error) {
	switch enumKey(raw) {
	case "low":
		return model.RasterQualityLow, nil
	case "medium":
		return model.RasterQualityMedium, nil
	case "", "high":
		return model.RasterQualityHigh, nil
	case "presentation":
		return model.RasterQualityPresentation, nil
	}
	return "", fmt.Errorf("unknown raster quality %q", raw)
}

func parsePaperPlacement(raw string) (model.PaperPlacement, error) {
	switch enumKey(raw) {
	case "", "center", "centre":
		return model.PaperPlacementCenter, nil
	case "offset", "offsetfromcorner":
		return model.PaperPlacementOffset, nil
	}
	return "", fmt.Errorf("unknown paper placement %q", raw)
}

func parseIFCVersion(raw string) (model.IFCVersion, error) {
	switch enumKey(raw) {
	case "", "ifc2x3", "2x3":
		return model.IFCVersion2x3, nil
	case "ifc4", "4":
		return model.IFCVersion4, nil
	}
	return "", fmt.Errorf("unknown IFC version %q", raw)
}

func splitList(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ';' || r == ','
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
