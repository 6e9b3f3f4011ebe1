package host

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"sheetbatch/internal/model"
)

const DefaultRendererCommand = "sheet-render"

type OutputStream string

const (
	StreamStdout OutputStream = "stdout"
	StreamStderr OutputStream = "stderr"
)

type CommandOptions struct {
	// Command is the renderer executable, looked up on PATH.
	Command string
	// Capabilities skips the version probe when set.
	Capabilities CapabilityTable
	Logger       logrus.FieldLogger
	// Output receives every renderer output line.
	Output func(stream OutputStream, line string)
}

// CommandHost serves document reads from a Register and renders through an
// external renderer process:
//
//	<command> export --format F --out DIR --name HINT --sheet ID... --option k=v... --view k=v...
type CommandHost struct {
	*Register
	command string
	caps    CapabilityTable
	version string
	log     logrus.FieldLogger
	output  func(stream OutputStream, line string)
}

type DependencyReport struct {
	RendererFound bool   `json:"renderer_found"`
	RendererPath  string `json:"renderer_path,omitempty"`
}

func DependencyStatus(command string) DependencyReport {
	report := DependencyReport{}
	if path, err := exec.LookPath(rendererCommand(command)); err == nil {
		report.RendererFound = true
		report.RendererPath = path
	}
	return report
}

func CheckDependencies(command string) error {
	if !DependencyStatus(command).RendererFound {
		return fmt.Errorf("missing dependency: renderer %q is not installed or not on PATH", rendererCommand(command))
	}
	return nil
}

func NewCommandHost(ctx context.Context, reg *Register, opts CommandOptions) *CommandHost {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	h := &CommandHost{
		Register: reg,
		command:  rendererCommand(opts.Command),
		caps:     opts.Capabilities,
		log:      log,
		output:   opts.Output,
	}
	if h.caps == nil {
		version, err := h.probeVersion(ctx)
		if err != nil {
			log.WithError(err).Warn("renderer version probe failed; assuming baseline capabilities")
		}
		h.version = version
		h.caps = CapabilitiesForVersion(version)
	}
	return h
}

func (h *CommandHost) Version() string {
	return h.version
}

func (h *CommandHost) Capabilities(format model.Format) Capabilities {
	return h.caps.Capabilities(format)
}

func (h *CommandHost) Export(ctx context.Context, req ExportRequest) error {
	if strings.TrimSpace(req.OutputDir) == "" {
		return fmt.Errorf("output directory is required")
	}
	if len(req.SheetIDs) == 0 {
		return fmt.Errorf("at least one sheet is required")
	}
	if !req.Format.Valid() {
		return fmt.Errorf("invalid export format %s", req.Format)
	}
	outDir, err := filepath.Abs(req.OutputDir)
	if err != nil {
		return fmt.Errorf("resolve output directory %s: %w", req.OutputDir, err)
	}

	args := []string{
		"export",
		"--format", req.Format.String(),
		"--out", outDir,
	}
	if strings.TrimSpace(req.NameHint) != "" {
		args = append(args, "--name", req.NameHint)
	}
	for _, id := range req.SheetIDs {
		args = append(args, "--sheet", id)
	}
	for _, kv := range req.Options.Pairs() {
		args = append(args, "--option", kv)
	}
	for _, kv := range viewArgs(h.ViewOptions()) {
		args = append(args, "--view", kv)
	}
	return h.run(ctx, args)
}

func (h *CommandHost) probeVersion(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, h.command, "version")
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s version failed: %w: %s", h.command, err, strings.TrimSpace(stderr.String()))
	}
	line, _, _ := strings.Cut(strings.TrimSpace(stdout.String()), "\n")
	return strings.TrimSpace(line), nil
}

func (h *CommandHost) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, h.command, args...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("setup stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("setup stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", h.command, err)
	}

	var outBuf strings.Builder
	var errBuf strings.Builder
	var mu sync.Mutex
	var wg sync.WaitGroup

	read := func(stream OutputStream, r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)
		scanner.Split(splitByNewlineOrCR)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			appendLimited(&outBuf, &errBuf, stream, line)
			mu.Unlock()
			h.log.WithField("stream", string(stream)).Debug(line)
			if h.output != nil {
				h.output(stream, line)
			}
		}
	}

	wg.Add(2)
	go read(StreamStdout, stdoutPipe)
	go read(StreamStderr, stderrPipe)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		mu.Lock()
		defer mu.Unlock()
		msg := strings.TrimSpace(errBuf.String())
		if msg == "" {
			msg = strings.TrimSpace(outBuf.String())
		}
		return fmt.Errorf("%s failed: %w: %s", h.command, err, msg)
	}
	return nil
}

func viewArgs(v model.ViewOptions) []string {
	if !v.Any() {
		return nil
	}
	return []string{
		string(OptHideCropBoundary) + "=" + FormatBool(v.HideCropBoundaries),
		string(OptHideScopeBoxes) + "=" + FormatBool(v.HideScopeBoxes),
		string(OptHideUnrefTags) + "=" + FormatBool(v.HideUnreferencedTags),
		string(OptHideRefPlanes) + "=" + FormatBool(v.HideReferencePlanes),
	}
}

func rendererCommand(raw string) string {
	if c := strings.TrimSpace(raw); c != "" {
		return c
	}
	return DefaultRendererCommand
}

func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func appendLimited(outBuf, errBuf *strings.Builder, stream OutputStream, line string) {
	const maxKeep = 8192
	b := outBuf
	if stream == StreamStderr {
		b = errBuf
	}
	if b.Len() >= maxKeep {
		return
	}
	toWrite := line + "\n"
	remain := maxKeep - b.Len()
	if len(toWrite) > remain {
		toWrite = toWrite[:remain]
	}
	b.WriteString(toWrite)
}
