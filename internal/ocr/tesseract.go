package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Runner lets tests stub the tesseract binary.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct {
	log zerolog.Logger
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	dur := time.Since(start)

	if err != nil {
		r.log.Error().
			Err(err).
			Str("cmd", name).
			Str("args", strings.Join(args, " ")).
			Int64("duration_ms", dur.Milliseconds()).
			Str("stderr", truncate(errb.String(), 8<<10)).
			Msg("exec failed")
	} else {
		r.log.Debug().
			Str("cmd", name).
			Int64("duration_ms", dur.Milliseconds()).
			Int("stdout_bytes", out.Len()).
			Msg("exec ok")
	}

	return out.Bytes(), errb.Bytes(), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

type TesseractConfig struct {
	Binary   string
	Language string
	PSM      int
}

type TesseractEngine struct {
	cfg    TesseractConfig
	runner Runner
}

// NewTesseractEngine checks that the binary runs and the language pack is
// installed. The returned error is the engine's initialization failure.
func NewTesseractEngine(ctx context.Context, cfg TesseractConfig, log zerolog.Logger) (*TesseractEngine, error) {
	return newTesseractEngine(ctx, cfg, execRunner{log: log})
}

func newTesseractEngine(ctx context.Context, cfg TesseractConfig, runner Runner) (*TesseractEngine, error) {
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}

	if _, ok := runner.(execRunner); ok {
		if _, err := exec.LookPath(cfg.Binary); err != nil {
			return nil, fmt.Errorf("tesseract binary: %w", err)
		}
	}

	out, errb, err := runner.Run(ctx, cfg.Binary, "--list-langs")
	if err != nil {
		return nil, fmt.Errorf("tesseract --list-langs: %w (%s)", err, strings.TrimSpace(string(errb)))
	}
	// Some builds print the list on stderr.
	langs := parseLangs(string(out) + "\n" + string(errb))
	if !langs[cfg.Language] {
		return nil, fmt.Errorf("tesseract language pack %q not installed", cfg.Language)
	}

	return &TesseractEngine{cfg: cfg, runner: runner}, nil
}

func (e *TesseractEngine) Name() string { return "tesseract" }

func (e *TesseractEngine) ReadText(ctx context.Context, imagePath string) ([]string, error) {
	// tesseract <file> stdout -l <lang> [--psm N]
	args := []string{imagePath, "stdout", "-l", e.cfg.Language}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}

	out, errb, err := e.runner.Run(ctx, e.cfg.Binary, args...)
	if err != nil {
		return nil, fmt.Errorf("run: %w (%s)", err, truncate(strings.TrimSpace(string(errb)), 512))
	}
	return splitLines(string(out)), nil
}

func splitLines(s string) []string {
	var lines []string
	for _, ln := range strings.Split(s, "\n") {
		ln = strings.TrimSpace(strings.Trim(ln, "\f"))
		if ln != "" {
			lines = append(lines, ln)
		}
	}
	return lines
}

func parseLangs(s string) map[string]bool {
	langs := make(map[string]bool)
	for _, ln := range strings.Split(s, "\n") {
		ln = strings.TrimSpace(ln)
		if ln == "" || strings.HasPrefix(ln, "List of available languages") {
			continue
		}
		langs[ln] = true
	}
	return langs
}
