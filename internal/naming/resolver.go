// Package naming turns a sheet and a naming template into a deterministic,
// filesystem-safe base file name.
package naming

import (
	"strings"

	"sheetbatch/internal/host"
	"sheetbatch/internal/model"
)

type alias int

const (
	aliasNone alias = iota
	aliasNumber
	aliasName
	aliasRevision
)

var aliases = map[string]alias{
	"sheetnumber":     aliasNumber,
	"number":          aliasNumber,
	"sheetname":       aliasName,
	"name":            aliasName,
	"currentrevision": aliasRevision,
	"revision":        aliasRevision,
}

// Resolver reads property values for naming. Lookups never fail: missing
// or valueless properties resolve to "".
type Resolver struct {
	doc host.Document
}

// NewResolver returns a resolver over doc. A nil doc resolves only the
// snapshot aliases.
func NewResolver(doc host.Document) *Resolver {
	return &Resolver{doc: doc}
}

func (r *Resolver) Resolve(sheet model.Sheet, name string, id *int) string {
	switch lookupAlias(name) {
	case aliasNumber:
		return sheet.Number
	case aliasName:
		return sheet.Name
	case aliasRevision:
		return sheet.Revision
	}
	if r == nil || r.doc == nil {
		return ""
	}
	if id != nil {
		if v, ok := r.doc.BuiltinParameter(sheet.ID, *id); ok {
			return v.Display()
		}
		return ""
	}
	if strings.TrimSpace(name) == "" {
		return ""
	}
	if v, ok := r.doc.Parameter(sheet.ID, name); ok {
		return v.Display()
	}
	return ""
}

func lookupAlias(name string) alias {
	key := strings.ToLower(strings.Join(strings.Fields(name), ""))
	key = strings.ReplaceAll(key, "_", "")
	return aliases[key]
}
