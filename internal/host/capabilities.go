package host

import (
	"strconv"
	"strings"

	"sheetbatch/internal/model"
)

// CapabilityTable maps each format to the options one renderer version accepts.
type CapabilityTable map[model.Format]Capabilities

func (t CapabilityTable) Capabilities(format model.Format) Capabilities {
	if c, ok := t[format]; ok {
		return c
	}
	return NewCapabilities(format)
}

// BaselineCapabilities is what every renderer release supports.
func BaselineCapabilities() CapabilityTable {
	return CapabilityTable{
		model.FormatPDF: NewCapabilities(model.FormatPDF,
			OptColorMode, OptRasterQuality, OptPaperPlacement, OptZoom,
			OptHideCropBoundary, OptHideScopeBoxes, OptHideUnrefTags, OptCombine,
		),
		model.FormatDWG: NewCapabilities(model.FormatDWG,
			OptColorMode, OptLayerPreset, OptHideCropBoundary, OptHideScopeBoxes,
		),
		model.FormatIFC: NewCapabilities(model.FormatIFC, OptIFCVersion),
		model.FormatNWC: NewCapabilities(model.FormatNWC, OptElementProperties),
	}
}

// CapabilitiesForVersion returns the table for a renderer version string
// such as "2.3.1". Unparseable versions get the baseline.
func CapabilitiesForVersion(version string) CapabilityTable {
	t := BaselineCapabilities()
	major := majorVersion(version)
	if major >= 2 {
		t[model.FormatPDF] = NewCapabilities(model.FormatPDF, append(t[model.FormatPDF].Keys(), OptHideRefPlanes)...)
		t[model.FormatDWG] = NewCapabilities(model.FormatDWG, append(t[model.FormatDWG].Keys(), OptHideUnrefTags, OptHideRefPlanes)...)
	}
	if major >= 3 {
		t[model.FormatIFC] = NewCapabilities(model.FormatIFC, OptIFCVersion, OptHideCropBoundary)
	}
	return t
}

func majorVersion(version string) int {
	v := strings.TrimPrefix(strings.TrimSpace(version), "v")
	if cut := strings.IndexAny(v, ". "); cut >= 0 {
		v = v[:cut]
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
