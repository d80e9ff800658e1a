// Package report renders the run history as a consolidated HTML report.
package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hcqa/hcqa/internal/runner"
)

//go:embed report.html.tmpl
var pageTemplate string

var page = template.Must(template.New("report").Funcs(template.FuncMap{
	"upper": func(s runner.SuiteStatus) string { return strings.ToUpper(string(s)) },
	"dur":   func(d time.Duration) string { return d.Round(time.Millisecond).String() },
	"ts":    func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04:05 UTC") },
}).Parse(pageTemplate))

// Summary aggregates the runs shown in a report.
type Summary struct {
	Runs   int
	Passed int
	Failed int
}

func (s Summary) PassRate() string {
	if s.Runs == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.0f%%", float64(s.Passed)*100/float64(s.Runs))
}

type view struct {
	Title       string
	GeneratedAt time.Time
	Summary     Summary
	Runs        []runner.RunRecord
}

// Summarize counts passed and failed runs.
func Summarize(runs []runner.RunRecord) Summary {
	s := Summary{Runs: len(runs)}
	for _, r := range runs {
		if r.Passed {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	return s
}

// Render writes the HTML report for runs, newest first as given.
func Render(w io.Writer, runs []runner.RunRecord, generatedAt time.Time) error {
	v := view{
		Title:       "Consolidated Test Report",
		GeneratedAt: generatedAt,
		Summary:     Summarize(runs),
		Runs:        runs,
	}
	if err := page.Execute(w, v); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

// WriteFile renders the report to path, creating parent directories.
func WriteFile(path string, runs []runner.RunRecord, generatedAt time.Time) error {
	var buf bytes.Buffer
	if err := Render(&buf, runs, generatedAt); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
