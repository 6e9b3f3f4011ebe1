package host

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"sheetbatch/internal/model"
)

// Register is an in-memory document: the sheets of one model with their
// built-in and user-defined properties.
type Register struct {
	Title  string
	sheets []registerSheet
	byID   map[string]int

	mu        sync.Mutex
	view      model.ViewOptions
	committed int
}

type registerSheet struct {
	sheet    model.Sheet
	builtins map[int]ParameterValue
	params   map[string]ParameterValue
}

type registerFile struct {
	Title  string              `json:"title"`
	Sheets []registerFileSheet `json:"sheets"`
}

type registerFileSheet struct {
	ID         string                   `json:"id"`
	Number     string                   `json:"number"`
	Name       string                   `json:"name"`
	Revision   string                   `json:"revision,omitempty"`
	PaperSize  string                   `json:"paper_size,omitempty"`
	Builtins   map[string]registerValue `json:"builtins,omitempty"`
	Parameters map[string]registerValue `json:"parameters,omitempty"`
}

type registerValue struct {
	ParameterValue
}

func (v *registerValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		v.ParameterValue = ParameterValue{Kind: KindNone}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v.ParameterValue = StringValue(s)
		return nil
	}
	if len(data) > 0 && data[0] == '{' {
		var typed struct {
			Kind  ValueKind       `json:"kind"`
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(data, &typed); err != nil {
			return err
		}
		return v.decodeTyped(typed.Kind, typed.Value)
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return fmt.Errorf("unsupported parameter value %s", string(data))
	}
	if i, err := n.Int64(); err == nil {
		v.ParameterValue = IntegerValue(i)
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("unsupported parameter value %s", string(data))
	}
	v.ParameterValue = DoubleValue(f)
	return nil
}

func (v *registerValue) decodeTyped(kind ValueKind, raw json.RawMessage) error {
	switch kind {
	case KindString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		v.ParameterValue = StringValue(s)
	case KindInteger, KindElementID:
		var i int64
		if err := json.Unmarshal(raw, &i); err != nil {
			return err
		}
		v.ParameterValue = ParameterValue{Kind: kind, Integer: i}
	case KindDouble:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return err
		}
		v.ParameterValue = DoubleValue(f)
	case KindNone, "":
		v.ParameterValue = ParameterValue{Kind: KindNone}
	default:
		return fmt.Errorf("unknown parameter kind %q", kind)
	}
	return nil
}

func NewRegister(title string) *Register {
	return &Register{Title: title, byID: make(map[string]int)}
}

// AddSheet appends a sheet. Sheet numbers must be unique within a register.
func (r *Register) AddSheet(s model.Sheet, builtins map[int]ParameterValue, params map[string]ParameterValue) error {
	s.ID = strings.TrimSpace(s.ID)
	s.Number = strings.TrimSpace(s.Number)
	if s.Number == "" {
		return fmt.Errorf("sheet number is required (id=%s)", s.ID)
	}
	if s.ID == "" {
		s.ID = s.Number
	}
	if _, ok := r.byID[s.ID]; ok {
		return fmt.Errorf("duplicate sheet id %q", s.ID)
	}
	for _, existing := range r.sheets {
		if strings.EqualFold(existing.sheet.Number, s.Number) {
			return fmt.Errorf("duplicate sheet number %q", s.Number)
		}
	}
	if builtins == nil {
		builtins = map[int]ParameterValue{}
	}
	if params == nil {
		params = map[string]ParameterValue{}
	}
	r.byID[s.ID] = len(r.sheets)
	r.sheets = append(r.sheets, registerSheet{sheet: s, builtins: builtins, params: params})
	return nil
}

// Sheets returns snapshots of every sheet in register order.
func (r *Register) Sheets() []model.Sheet {
	out := make([]model.Sheet, 0, len(r.sheets))
	for _, s := range r.sheets {
		out = append(out, s.sheet)
	}
	return out
}

func (r *Register) BuiltinParameter(sheetID string, id int) (ParameterValue, bool) {
	i, ok := r.byID[sheetID]
	if !ok {
		return ParameterValue{}, false
	}
	v, ok := r.sheets[i].builtins[id]
	return v, ok
}

func (r *Register) Parameter(sheetID, name string) (ParameterValue, bool) {
	i, ok := r.byID[sheetID]
	if !ok {
		return ParameterValue{}, false
	}
	params := r.sheets[i].params
	if v, ok := params[name]; ok {
		return v, true
	}
	want := normalizeKey(name)
	for k, v := range params {
		if normalizeKey(k) == want {
			return v, true
		}
	}
	return ParameterValue{}, false
}

// ViewOptions returns the last committed view state.
func (r *Register) ViewOptions() model.ViewOptions {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view
}

// Commits counts committed transactions.
func (r *Register) Commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.committed
}

func (r *Register) Begin(name string) (Transaction, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("transaction name is required")
	}
	r.mu.Lock()
	pending := r.view
	r.mu.Unlock()
	return &registerTx{reg: r, pending: pending}, nil
}

type registerTx struct {
	reg     *Register
	pending model.ViewOptions
	done    bool
}

func (tx *registerTx) ApplyViewOptions(opts model.ViewOptions) error {
	if tx.done {
		return fmt.Errorf("transaction already closed")
	}
	tx.pending = opts
	return nil
}

func (tx *registerTx) Commit() error {
	if tx.done {
		return fmt.Errorf("transaction already closed")
	}
	tx.done = true
	tx.reg.mu.Lock()
	tx.reg.view = tx.pending
	tx.reg.committed++
	tx.reg.mu.Unlock()
	return nil
}

func (tx *registerTx) Rollback() error {
	tx.done = true
	return nil
}

// LoadRegister reads a register from a .json or .xlsx file.
func LoadRegister(path string) (*Register, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return LoadRegisterXLSX(path)
	default:
		return LoadRegisterJSON(path)
	}
}

func LoadRegisterJSON(path string) (*Register, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read register %s: %w", path, err)
	}
	var src registerFile
	if err := json.Unmarshal(data, &src); err != nil {
		return nil, fmt.Errorf("parse register %s: %w", path, err)
	}
	title := strings.TrimSpace(src.Title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	reg := NewRegister(title)
	for _, s := range src.Sheets {
		builtins := make(map[int]ParameterValue, len(s.Builtins))
		for k, v := range s.Builtins {
			id, err := strconv.Atoi(strings.TrimSpace(k))
			if err != nil {
				return nil, fmt.Errorf("register %s: sheet %s: built-in parameter id %q is not numeric", path, s.Number, k)
			}
			builtins[id] = v.ParameterValue
		}
		params := make(map[string]ParameterValue, len(s.Parameters))
		for k, v := range s.Parameters {
			params[k] = v.ParameterValue
		}
		sheet := model.Sheet{ID: s.ID, Number: s.Number, Name: s.Name, Revision: s.Revision, PaperSize: s.PaperSize}
		if err := reg.AddSheet(sheet, builtins, params); err != nil {
			return nil, fmt.Errorf("register %s: %w", path, err)
		}
	}
	return reg, nil
}
