package naming

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"sheetbatch/internal/model"
)

const (
	// MaxBaseNameLength bounds a sanitized name, in runes.
	MaxBaseNameLength = 200
	// FallbackName replaces a name that sanitizes to nothing.
	FallbackName = "Unknown"
)

type Generator struct {
	resolver *Resolver
}

func NewGenerator(resolver *Resolver) *Generator {
	return &Generator{resolver: resolver}
}

// Build composes prefix+value+suffix for every parameter that resolves to a
// non-empty value. Consecutive parts are joined by the earlier part's own
// separator, or by separator when the part has none. An empty composition
// falls back to the sheet number. The result is always sanitized.
func (g *Generator) Build(sheet model.Sheet, params []model.ParameterModel, separator string) string {
	var b strings.Builder
	pendingSep := ""
	for _, p := range params {
		value := g.resolver.Resolve(sheet, p.Name, p.ID)
		if strings.TrimSpace(value) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(pendingSep)
		}
		b.WriteString(p.Prefix)
		b.WriteString(value)
		b.WriteString(p.Suffix)
		pendingSep = separator
		if p.Separator != "" {
			pendingSep = p.Separator
		}
	}
	name := b.String()
	if strings.TrimSpace(name) == "" {
		name = sheet.Number
	}
	return Sanitize(name)
}

// BuildTemplate is Build with the template's parameters and separator.
func (g *Generator) BuildTemplate(sheet model.Sheet, tpl model.NamingTemplate) string {
	return g.Build(sheet, tpl.Parameters, tpl.Separator)
}

// Sanitize maps s onto a safe base file name. Reserved and control
// characters, whitespace and . , ; : become "_", runs of "_" collapse, and
// leading/trailing "_" are trimmed. The result is at most
// MaxBaseNameLength runes and never empty. Sanitize is idempotent.
func Sanitize(s string) string {
	s = norm.NFC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range s {
		if replaced(r) {
			r = '_'
		}
		if r == '_' {
			if lastUnderscore {
				continue
			}
			lastUnderscore = true
		} else {
			lastUnderscore = false
		}
		b.WriteRune(r)
	}
	out := strings.Trim(b.String(), "_")
	if utf8.RuneCountInString(out) > MaxBaseNameLength {
		out = strings.TrimRight(string([]rune(out)[:MaxBaseNameLength]), "_")
	}
	if out == "" {
		return FallbackName
	}
	return out
}

func replaced(r rune) bool {
	switch r {
	case '<', '>', ':', '"', '/', '\\', '|', '?', '*', '.', ',', ';', utf8.RuneError:
		return true
	}
	return unicode.IsSpace(r) || unicode.IsControl(r)
}
