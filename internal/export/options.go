package export

import (
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"sheetbatch/internal/host"
	"sheetbatch/internal/model"
)

const (
	minZoomPercent = 10
	maxZoomPercent = 400
)

// formatKeys are the canonical fields each format can carry, in mapping order.
var formatKeys = map[model.Format][]host.OptionKey{
	model.FormatPDF: {
		host.OptColorMode, host.OptRasterQuality, host.OptPaperPlacement, host.OptZoom,
		host.OptHideCropBoundary, host.OptHideScopeBoxes, host.OptHideUnrefTags, host.OptHideRefPlanes,
		host.OptCombine,
	},
	model.FormatDWG: {
		host.OptColorMode, host.OptLayerPreset,
		host.OptHideCropBoundary, host.OptHideScopeBoxes, host.OptHideUnrefTags, host.OptHideRefPlanes,
	},
	model.FormatIFC: {host.OptIFCVersion, host.OptHideCropBoundary},
	model.FormatNWC: {host.OptElementProperties},
}

// sharedKeys are the render and view fields every profile carries. A format
// whose bag has no slot for one reports it when it differs from neutral.
// Format-scoped fields (combine, layer preset, ifc version, element
// properties) only apply to their own format and are not reported elsewhere.
var sharedKeys = []host.OptionKey{
	host.OptColorMode, host.OptRasterQuality, host.OptPaperPlacement, host.OptZoom,
	host.OptHideCropBoundary, host.OptHideScopeBoxes, host.OptHideUnrefTags, host.OptHideRefPlanes,
}

// nonNeutral reports whether a shared field asks for something other than
// the value Normalize fills in.
func nonNeutral(key host.OptionKey, s model.ExportSettings) bool {
	o := s.Options
	switch key {
	case host.OptColorMode:
		return o.ColorMode != "" && o.ColorMode != model.ColorModeColor
	case host.OptRasterQuality:
		return o.RasterQuality != "" && o.RasterQuality != model.RasterQualityHigh
	case host.OptPaperPlacement:
		return o.PaperPlacement != "" && o.PaperPlacement != model.PaperPlacementCenter
	}
	_, set := canonicalValue(key, s)
	return set
}

// canonicalValue returns a field's value and whether it differs from the
// field's neutral setting. Neutral fields are omitted from the bag.
func canonicalValue(key host.OptionKey, s model.ExportSettings) (string, bool) {
	o := s.Options
	switch key {
	case host.OptColorMode:
		return string(o.ColorMode), o.ColorMode != ""
	case host.OptRasterQuality:
		return string(o.RasterQuality), o.RasterQuality != ""
	case host.OptPaperPlacement:
		return string(o.PaperPlacement), o.PaperPlacement != ""
	case host.OptZoom:
		return strconv.Itoa(o.ZoomPercent), o.ZoomPercent > 0
	case host.OptHideCropBoundary:
		return host.FormatBool(o.HideCropBoundaries), o.HideCropBoundaries
	case host.OptHideScopeBoxes:
		return host.FormatBool(o.HideScopeBoxes), o.HideScopeBoxes
	case host.OptHideUnrefTags:
		return host.FormatBool(o.HideUnreferencedTags), o.HideUnreferencedTags
	case host.OptHideRefPlanes:
		return host.FormatBool(o.HideReferencePlanes), o.HideReferencePlanes
	case host.OptCombine:
		return host.FormatBool(s.CombineFiles), s.CombineFiles
	case host.OptLayerPreset:
		return o.ExportLayerPreset, o.ExportLayerPreset != ""
	case host.OptIFCVersion:
		return string(o.IFCVersion), o.IFCVersion != ""
	case host.OptElementProperties:
		return host.FormatBool(o.ConvertElementProperties), o.ConvertElementProperties
	}
	return "", false
}

// BuildOptions maps canonical settings onto the option bag the renderer
// accepts for format. Fields the format has no slot for, and fields the
// renderer version cannot carry, are logged and returned as unsupported.
// An invalid value fails the whole format.
func BuildOptions(format model.Format, s model.ExportSettings, caps host.Capabilities, log logrus.FieldLogger) (host.OptionBag, []host.OptionKey, error) {
	keys, ok := formatKeys[format]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if z := s.Options.ZoomPercent; z != 0 && (z < minZoomPercent || z > maxZoomPercent) {
		return nil, nil, fmt.Errorf("invalid %s option bag: zoom %d%% outside %d-%d", format, z, minZoomPercent, maxZoomPercent)
	}

	bag := host.OptionBag{}
	var unsupported []host.OptionKey
	carried := make(map[host.OptionKey]bool, len(keys))
	for _, key := range keys {
		carried[key] = true
	}
	for _, key := range sharedKeys {
		if carried[key] || !nonNeutral(key, s) {
			continue
		}
		value, _ := canonicalValue(key, s)
		unsupported = append(unsupported, key)
		log.WithFields(logrus.Fields{
			"format": format.String(),
			"option": string(key),
			"value":  value,
		}).Warn("option not carried by format; ignored")
	}
	for _, key := range keys {
		value, set := canonicalValue(key, s)
		if !set {
			continue
		}
		if !caps.Supports(key) {
			unsupported = append(unsupported, key)
			log.WithFields(logrus.Fields{
				"format": format.String(),
				"option": string(key),
				"value":  value,
			}).Warn("option not supported by renderer; ignored")
			continue
		}
		bag[key] = value
	}
	return bag, unsupported, nil
}
