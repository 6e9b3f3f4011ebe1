package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"sheetbatch/internal/model"
	"sheetbatch/internal/profile"
)

type manageMode int

const (
	manageModeBrowse manageMode = iota
	manageModeForm
	manageModeDeleteConfirm
)

type manageFieldKind int

const (
	manageFieldString manageFieldKind = iota
	manageFieldInt
	manageFieldBool
	manageFieldSelect
)

type manageFormField struct {
	Key      string
	Label    string
	Help     string
	Kind     manageFieldKind
	Value    string
	Options  []string
	Required bool
}

type manageForm struct {
	Title  string
	IsEdit bool
	// Base is the profile being edited; fields the form does not show are kept.
	Base   model.ExportSettings
	Fields []manageFormField
	Index  int
	Input  textinput.Model
	Error  string
	Saving bool
}

type manageModel struct {
	store    *profile.Store
	profiles []model.ExportSettings
	cursor   int
	width    int
	height   int
	mode     manageMode
	form     *manageForm

	confirmDeleteName string
	statusMessage     string
	fatalErr          error
}

type manageLoadedMsg struct {
	profiles []model.ExportSettings
	err      error
}

type manageSaveMsg struct {
	message string
	err     error
}

type manageDeleteMsg struct {
	message string
	err     error
}

var (
	manageTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	manageMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	manageErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	manageOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	managePanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	manageSelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true)
)

func newManageCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "manage",
		Short: "Interactive profile editor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !stdinIsTTY() {
				return errors.New("manage requires an interactive terminal (TTY)")
			}
			return withStore(g, func(s *session, store *profile.Store) error {
				return runManage(cmd.Context(), store)
			})
		},
	}
}

func runManage(ctx context.Context, store *profile.Store) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := manageModel{store: store, mode: manageModeBrowse}
	p := tea.NewProgram(m, tea.WithAltScreen())

	// Edits made outside the editor show up without a manual refresh.
	go func() {
		_ = store.Watch(ctx, 250*time.Millisecond, func(_ []error, err error) {
			p.Send(manageLoadedMsg{profiles: store.List(), err: err})
		})
	}()

	finalModel, err := p.Run()
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "tty") {
			return errors.New("manage requires an interactive terminal (TTY)")
		}
		return err
	}
	if fm, ok := finalModel.(manageModel); ok {
		return fm.fatalErr
	}
	return nil
}

func (m manageModel) Init() tea.Cmd {
	return loadProfilesCmd(m.store)
}

func (m manageModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.form != nil {
			m.form.Input.Width = clampInt(m.width-8, 20, 120)
		}
		return m, nil
	case manageLoadedMsg:
		if msg.err != nil {
			m.fatalErr = msg.err
			return m, tea.Quit
		}
		m.profiles = msg.profiles
		total := m.totalBrowseRows()
		if m.cursor > total-1 {
			m.cursor = total - 1
		}
		if m.cursor < 0 {
			m.cursor = 0
		}
		return m, nil
	case manageSaveMsg:
		if msg.err != nil {
			if m.form != nil {
				m.form.Error = msg.err.Error()
				m.form.Saving = false
			}
			return m, nil
		}
		m.mode = manageModeBrowse
		m.form = nil
		m.statusMessage = msg.message
		return m, loadProfilesCmd(m.store)
	case manageDeleteMsg:
		m.mode = manageModeBrowse
		m.confirmDeleteName = ""
		if msg.err != nil {
			m.statusMessage = "error: " + msg.err.Error()
			return m, nil
		}
		m.statusMessage = msg.message
		return m, loadProfilesCmd(m.store)
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch m.mode {
	case manageModeBrowse:
		return m.updateBrowse(keyMsg)
	case manageModeForm:
		return m.updateForm(keyMsg)
	case manageModeDeleteConfirm:
		return m.updateDeleteConfirm(keyMsg)
	default:
		return m, nil
	}
}

// totalBrowseRows counts the profiles plus the "new profile" row.
func (m manageModel) totalBrowseRows() int {
	return len(m.profiles) + 1
}

func (m manageModel) selected() (model.ExportSettings, bool) {
	if m.cursor < 0 || m.cursor >= len(m.profiles) {
		return model.ExportSettings{}, false
	}
	return m.profiles[m.cursor], true
}

func (m manageModel) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		if m.cursor < m.totalBrowseRows()-1 {
			m.cursor++
		}
		return m, nil
	case "n":
		m.mode = manageModeForm
		m.form = newManageForm(nil, m.width)
		m.statusMessage = ""
		return m, nil
	case "r":
		return m, loadProfilesCmd(m.store)
	case "enter", "e":
		p, ok := m.selected()
		m.mode = manageModeForm
		m.statusMessage = ""
		if !ok {
			m.form = newManageForm(nil, m.width)
			return m, nil
		}
		m.form = newManageForm(&p, m.width)
		return m, nil
	case "d":
		p, ok := m.selected()
		if !ok {
			m.statusMessage = "select a profile to delete"
			return m, nil
		}
		if m.store != nil && m.store.SourcePath(p.Name) == "" {
			m.statusMessage = "built-in profile cannot be deleted"
			return m, nil
		}
		m.mode = manageModeDeleteConfirm
		m.confirmDeleteName = p.Name
		return m, nil
	}
	return m, nil
}

func (m manageModel) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.form == nil {
		m.mode = manageModeBrowse
		return m, nil
	}
	if m.form.Saving {
		return m, nil
	}

	key := strings.ToLower(msg.String())
	kind := m.form.currentField().Kind
	switch key {
	case "ctrl+c", "esc":
		m.mode = manageModeBrowse
		m.form = nil
		m.statusMessage = "edit cancelled"
		return m, nil
	case "up", "shift+tab":
		m.form.commitInput()
		if m.form.Index > 0 {
			m.form.Index--
		}
		m.form.loadFieldIntoInput()
		return m, nil
	case "down", "tab":
		m.form.commitInput()
		if m.form.Index < len(m.form.Fields)-1 {
			m.form.Index++
		}
		m.form.loadFieldIntoInput()
		return m, nil
	case " ", "space", "right", "l":
		if kind == manageFieldBool {
			m.form.toggleBoolField()
			return m, nil
		}
		if kind == manageFieldSelect {
			m.form.stepSelectOption(1)
			return m, nil
		}
	case "left", "h":
		if kind == manageFieldBool {
			m.form.toggleBoolField()
			return m, nil
		}
		if kind == manageFieldSelect {
			m.form.stepSelectOption(-1)
			return m, nil
		}
	case "y", "n":
		if kind == manageFieldBool {
			m.form.setBoolField(key == "y")
			return m, nil
		}
	case "enter", "ctrl+s":
		m.form.commitInput()
		if m.form.Index < len(m.form.Fields)-1 && key != "ctrl+s" {
			m.form.Index++
			m.form.loadFieldIntoInput()
			return m, nil
		}
		settings, err := m.form.toSettings()
		if err != nil {
			m.form.Error = err.Error()
			return m, nil
		}
		m.form.Error = ""
		m.form.Saving = true
		return m, saveProfileCmd(m.store, settings, m.form.IsEdit)
	}

	if kind == manageFieldBool || kind == manageFieldSelect {
		return m, nil
	}
	var cmd tea.Cmd
	m.form.Input, cmd = m.form.Input.Update(msg)
	m.form.Fields[m.form.Index].Value = m.form.Input.Value()
	return m, cmd
}

func (m manageModel) updateDeleteConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc", "n":
		m.mode = manageModeBrowse
		m.confirmDeleteName = ""
		m.statusMessage = "delete cancelled"
		return m, nil
	case "y", "enter":
		name := strings.TrimSpace(m.confirmDeleteName)
		if name == "" {
			m.mode = manageModeBrowse
			m.statusMessage = "delete cancelled"
			return m, nil
		}
		return m, deleteProfileCmd(m.store, name)
	}
	return m, nil
}

func (m manageModel) View() string {
	if m.fatalErr != nil {
		return manageErrorStyle.Render("fatal: " + m.fatalErr.Error())
	}
	if m.width <= 0 {
		m.width = 100
	}
	if m.height <= 0 {
		m.height = 30
	}
	switch m.mode {
	case manageModeForm:
		return m.viewForm()
	case manageModeDeleteConfirm:
		return m.viewDeleteConfirm()
	default:
		return m.viewBrowse()
	}
}

func (m manageModel) viewBrowse() string {
	header := manageTitleStyle.Render("sheetbatch profiles") + "\n" +
		manageMutedStyle.Render("up/down: move | enter/e: edit | n: new | d: delete | r: reload | q: quit")

	if m.width < 90 {
		body := lipgloss.JoinVertical(lipgloss.Left, m.renderListPanel(m.width), m.renderDetailsPanel(m.width))
		return lipgloss.JoinVertical(lipgloss.Left, header, body, m.renderStatusLine(m.width))
	}
	leftW := clampInt(m.width/2, 34, 56)
	rightW := m.width - leftW - 1
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderListPanel(leftW), m.renderDetailsPanel(rightW))
	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.renderStatusLine(m.width))
}

func (m manageModel) renderListPanel(width int) string {
	total := m.totalBrowseRows()
	maxRows := clampInt(m.height-10, 4, 18)
	start, end := listWindow(total, m.cursor, maxRows)

	lines := make([]string, 0, maxRows+2)
	if start > 0 {
		lines = append(lines, manageMutedStyle.Render("..."))
	}
	for i := start; i < end; i++ {
		line := "[+] New Profile"
		if i < len(m.profiles) {
			p := m.profiles[i]
			line = fmt.Sprintf("%s  %s", p.Name, p.Formats.String())
		}
		line = truncateRunes(line, max(width-6, 10))
		if i == m.cursor {
			line = manageSelStyle.Width(max(width-4, 6)).Render(line)
		}
		lines = append(lines, line)
	}
	if end < total {
		lines = append(lines, manageMutedStyle.Render("..."))
	}
	return managePanelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m manageModel) renderDetailsPanel(width int) string {
	lines := []string{}
	if p, ok := m.selected(); ok {
		source := "(built-in)"
		if m.store != nil {
			source = defaultIfEmpty(m.store.SourcePath(p.Name), source)
		}
		lines = append(lines,
			"Profile Details",
			"",
			kv("name", p.Name),
			kv("source", source),
			kv("output_folder", defaultIfEmpty(p.OutputFolder, "(none)")),
			kv("formats", p.Formats.String()),
			kv("naming", namingSummary(p.Naming)),
			kv("combine_files", yesNo(p.CombineFiles)),
			kv("combined_name", defaultIfEmpty(p.CombinedName, "(profile name)")),
			kv("subfolders", yesNo(p.CreateSubfolders)),
			kv("color_mode", string(p.Options.ColorMode)),
			kv("raster_quality", string(p.Options.RasterQuality)),
			kv("zoom", formatIntDefault(p.Options.ZoomPercent)),
			kv("hide_crop_boundaries", yesNo(p.Options.HideCropBoundaries)),
			kv("hide_scope_boxes", yesNo(p.Options.HideScopeBoxes)),
		)
	} else {
		lines = append(lines, "New Profile", "", "Press Enter or n to create a profile.")
	}
	for i := range lines {
		lines[i] = wrapOrTrim(lines[i], max(width-6, 12))
	}
	return managePanelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m manageModel) renderStatusLine(width int) string {
	msg := strings.TrimSpace(m.statusMessage)
	if msg == "" {
		msg = "Tip: profiles are stored as YAML files; edits on disk reload automatically."
	}
	style := manageMutedStyle
	lower := strings.ToLower(msg)
	if strings.HasPrefix(lower, "error:") {
		style = manageErrorStyle
	} else if strings.HasPrefix(lower, "profile ") {
		style = manageOKStyle
	}
	return style.Width(width).Render(truncateRunes(msg, max(width-2, 10)))
}

func (m manageModel) viewForm() string {
	if m.form == nil {
		return ""
	}
	header := manageTitleStyle.Render(m.form.Title)
	hints := manageMutedStyle.Render("tab/shift+tab or up/down: move | left/right/space: toggle | y/n: set yes/no | enter: next/save | ctrl+s: save | esc: cancel")

	lines := make([]string, 0, len(m.form.Fields))
	for i, f := range m.form.Fields {
		prefix := "  "
		if i == m.form.Index {
			prefix = "> "
		}
		display := strings.TrimSpace(f.Value)
		if f.Kind == manageFieldBool {
			v, _ := parseBool(display)
			display = yesNo(v)
		}
		if display == "" {
			display = manageMutedStyle.Render("(empty)")
		}
		if f.Kind == manageFieldSelect {
			display = "[" + display + "]"
		}
		lines = append(lines, wrapOrTrim(fmt.Sprintf("%s%s: %s", prefix, f.Label, display), max(m.width-6, 20)))
	}

	curr := m.form.currentField()
	inputLabel := fmt.Sprintf("\n%s\n", curr.Label)
	inputHelp := ""
	if strings.TrimSpace(curr.Help) != "" {
		inputHelp = manageMutedStyle.Render(curr.Help) + "\n"
	}
	status := ""
	if m.form.Saving {
		status = manageMutedStyle.Render("\nSaving...")
	}
	if strings.TrimSpace(m.form.Error) != "" {
		status = "\n" + manageErrorStyle.Render(m.form.Error)
	}
	panel := managePanelStyle.Width(max(m.width, 40)).Render(strings.Join(lines, "\n") + inputLabel + inputHelp + m.form.Input.View() + status)
	return lipgloss.JoinVertical(lipgloss.Left, header, hints, panel)
}

func (m manageModel) viewDeleteConfirm() string {
	text := fmt.Sprintf(
		"Delete profile '%s'?\n\nThis removes its YAML file. A default profile\nwith the same name becomes visible again.\n\nPress y or Enter to confirm, n or Esc to cancel.",
		m.confirmDeleteName,
	)
	boxW := clampInt(m.width-8, 36, 80)
	boxH := clampInt(m.height-6, 9, 14)
	panel := managePanelStyle.Width(boxW).Height(boxH).Render(text)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, panel)
}

func loadProfilesCmd(store *profile.Store) tea.Cmd {
	return func() tea.Msg {
		if _, err := store.Load(); err != nil {
			return manageLoadedMsg{err: err}
		}
		return manageLoadedMsg{profiles: store.List()}
	}
}

func saveProfileCmd(store *profile.Store, settings model.ExportSettings, isEdit bool) tea.Cmd {
	return func() tea.Msg {
		if !isEdit {
			if _, err := store.Get(settings.Name); err == nil {
				return manageSaveMsg{err: fmt.Errorf("profile %q already exists", settings.Name)}
			}
		}
		if _, err := store.Save(settings); err != nil {
			return manageSaveMsg{err: err}
		}
		if isEdit {
			return manageSaveMsg{message: "profile updated: " + settings.Name}
		}
		return manageSaveMsg{message: "profile added: " + settings.Name}
	}
}

func deleteProfileCmd(store *profile.Store, name string) tea.Cmd {
	return func() tea.Msg {
		if err := store.Delete(name); err != nil {
			return manageDeleteMsg{err: err}
		}
		return manageDeleteMsg{message: "profile removed: " + name}
	}
}

var (
	colorModeOptions     = []string{string(model.ColorModeColor), string(model.ColorModeGrayscale), string(model.ColorModeBlackWhite)}
	rasterQualityOptions = []string{string(model.RasterQualityLow), string(model.RasterQualityMedium), string(model.RasterQualityHigh), string(model.RasterQualityPresentation)}
)

func newManageForm(existing *model.ExportSettings, width int) *manageForm {
	base := model.DefaultSettings()
	f := &manageForm{Title: "New Profile"}
	if existing != nil {
		base = *existing
		f.Title = "Edit Profile: " + existing.Name
		f.IsEdit = true
	} else {
		base.Name = ""
	}
	f.Base = base

	if !f.IsEdit {
		f.Fields = append(f.Fields, manageFormField{Key: "name", Label: "Profile Name", Help: "Unique, case-insensitive", Kind: manageFieldString, Required: true})
	}
	f.Fields = append(f.Fields,
		manageFormField{Key: "output", Label: "Output Folder", Help: "Directory the renderer writes into", Kind: manageFieldString, Required: true, Value: base.OutputFolder},
		manageFormField{Key: "formats", Label: "Formats", Help: "Comma-separated: pdf, dwg, ifc, nwc", Kind: manageFieldString, Required: true, Value: base.Formats.String()},
		manageFormField{Key: "naming", Label: "Naming Parameters", Help: "Semicolon-separated property names, e.g. Sheet Number;Sheet Name", Kind: manageFieldString, Value: namingSummary(base.Naming)},
		manageFormField{Key: "separator", Label: "Separator", Help: "Joiner between naming parts", Kind: manageFieldString, Value: base.Naming.Separator},
		manageFormField{Key: "combine", Label: "Combine PDF", Help: "One PDF for the whole batch", Kind: manageFieldBool, Value: boolToYN(base.CombineFiles)},
		manageFormField{Key: "combined_name", Label: "Combined Name", Help: "Optional; defaults to the profile name", Kind: manageFieldString, Value: base.CombinedName},
		manageFormField{Key: "subfolders", Label: "Format Subfolders", Help: "Write each format into <output>/<FORMAT>", Kind: manageFieldBool, Value: boolToYN(base.CreateSubfolders)},
		manageFormField{Key: "color", Label: "Color Mode", Kind: manageFieldSelect, Value: string(base.Options.ColorMode), Options: colorModeOptions},
		manageFormField{Key: "raster", Label: "Raster Quality", Kind: manageFieldSelect, Value: string(base.Options.RasterQuality), Options: rasterQualityOptions},
		manageFormField{Key: "zoom", Label: "Zoom %", Help: "10-400; 0 fits to page", Kind: manageFieldInt, Value: strconv.Itoa(base.Options.ZoomPercent)},
		manageFormField{Key: "hide_crop", Label: "Hide Crop Boundaries", Kind: manageFieldBool, Value: boolToYN(base.Options.HideCropBoundaries)},
		manageFormField{Key: "hide_scope", Label: "Hide Scope Boxes", Kind: manageFieldBool, Value: boolToYN(base.Options.HideScopeBoxes)},
	)

	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 1024
	input.Width = clampInt(width-8, 20, 120)
	f.Input = input
	f.loadFieldIntoInput()
	f.Input.Focus()
	return f
}

func (f *manageForm) currentField() manageFormField {
	if len(f.Fields) == 0 {
		return manageFormField{}
	}
	if f.Index < 0 {
		f.Index = 0
	}
	if f.Index >= len(f.Fields) {
		f.Index = len(f.Fields) - 1
	}
	return f.Fields[f.Index]
}

func (f *manageForm) commitInput() {
	if f == nil || len(f.Fields) == 0 {
		return
	}
	f.Fields[f.Index].Value = strings.TrimSpace(f.Input.Value())
}

func (f *manageForm) loadFieldIntoInput() {
	if f == nil || len(f.Fields) == 0 {
		return
	}
	f.Input.SetValue(f.Fields[f.Index].Value)
	f.Input.CursorEnd()
}

func (f *manageForm) toggleBoolField() {
	curr := f.currentField()
	if curr.Kind != manageFieldBool {
		return
	}
	v, _ := parseBool(curr.Value)
	f.setBoolField(!v)
}

func (f *manageForm) setBoolField(v bool) {
	if f == nil || len(f.Fields) == 0 || f.Fields[f.Index].Kind != manageFieldBool {
		return
	}
	f.Fields[f.Index].Value = boolToYN(v)
	f.loadFieldIntoInput()
}

func (f *manageForm) stepSelectOption(step int) {
	if f == nil || len(f.Fields) == 0 {
		return
	}
	curr := f.Fields[f.Index]
	if curr.Kind != manageFieldSelect || len(curr.Options) == 0 {
		return
	}
	pos := 0
	for i, opt := range curr.Options {
		if strings.EqualFold(opt, strings.TrimSpace(curr.Value)) {
			pos = i
			break
		}
	}
	n := len(curr.Options)
	pos = ((pos+step)%n + n) % n
	f.Fields[f.Index].Value = curr.Options[pos]
	f.loadFieldIntoInput()
}

func (f *manageForm) toSettings() (model.ExportSettings, error) {
	if f == nil {
		return model.ExportSettings{}, errors.New("internal form error")
	}
	vals := make(map[string]string, len(f.Fields))
	for _, field := range f.Fields {
		v := strings.TrimSpace(field.Value)
		if field.Required && v == "" {
			return model.ExportSettings{}, fmt.Errorf("%s is required", strings.ToLower(field.Label))
		}
		switch field.Kind {
		case manageFieldInt:
			n, err := strconv.Atoi(defaultIfEmpty(v, "0"))
			if err != nil || n < 0 {
				return model.ExportSettings{}, fmt.Errorf("%s must be an integer >= 0", strings.ToLower(field.Label))
			}
		case manageFieldBool:
			if _, ok := parseBool(v); !ok {
				return model.ExportSettings{}, fmt.Errorf("%s must be y or n", strings.ToLower(field.Label))
			}
		}
		vals[field.Key] = v
	}

	s := f.Base
	if !f.IsEdit {
		s.Name = vals["name"]
	}
	s.OutputFolder = vals["output"]
	formats, err := model.ParseFormatSet(vals["formats"])
	if err != nil {
		return model.ExportSettings{}, err
	}
	if formats.Empty() {
		return model.ExportSettings{}, errors.New("formats selects no format")
	}
	s.Formats = formats
	s.Naming.Parameters = mergeNamingParameters(f.Base.Naming.Parameters, vals["naming"])
	s.Naming.Separator = vals["separator"]
	s.CombineFiles, _ = parseBool(vals["combine"])
	s.CombinedName = vals["combined_name"]
	s.CreateSubfolders, _ = parseBool(vals["subfolders"])
	s.Options.ColorMode = model.ColorMode(vals["color"])
	s.Options.RasterQuality = model.RasterQuality(vals["raster"])
	s.Options.ZoomPercent, _ = strconv.Atoi(defaultIfEmpty(vals["zoom"], "0"))
	if z := s.Options.ZoomPercent; z != 0 && (z < 10 || z > 400) {
		return model.ExportSettings{}, fmt.Errorf("zoom must be between 10 and 400, got %d", z)
	}
	s.Options.HideCropBoundaries, _ = parseBool(vals["hide_crop"])
	s.Options.HideScopeBoxes, _ = parseBool(vals["hide_scope"])
	return model.Normalize(s), nil
}

// mergeNamingParameters rebuilds the parameter list from names, keeping
// the id, affixes and separator of parameters that were already present.
func mergeNamingParameters(existing []model.ParameterModel, raw string) []model.ParameterModel {
	byName := make(map[string]model.ParameterModel, len(existing))
	for _, p := range existing {
		byName[strings.ToLower(p.Name)] = p
	}
	var out []model.ParameterModel
	for _, part := range strings.Split(raw, ";") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if p, ok := byName[strings.ToLower(name)]; ok {
			out = append(out, p)
			continue
		}
		out = append(out, model.ParameterModel{Name: name})
	}
	return out
}

func namingSummary(t model.NamingTemplate) string {
	names := make([]string, 0, len(t.Parameters))
	for _, p := range t.Parameters {
		names = append(names, p.Name)
	}
	return strings.Join(names, ";")
}
