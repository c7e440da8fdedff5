package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/devlink/pkg/domain/model"
	"github.com/secmon-lab/devlink/pkg/usecase"
)

var (
	titleColor   = color.New(color.FgHiWhite, color.Bold)
	subColor     = color.New(color.FgWhite)
	urlColor     = color.New(color.FgHiBlack)
	linkColor    = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	headerColor  = color.New(color.FgCyan)
	successColor = color.New(color.FgGreen, color.Bold)
)

type row struct {
	title    string
	subtitle string
	url      string
	note     string
}

func repositoryRows(views []model.RepositoryView) []row {
	rows := make([]row, 0, len(views))
	for _, v := range views {
		r := row{title: v.Title, subtitle: v.Subtitle, url: v.URL}
		if v.Linked {
			r.note = "📁 " + v.LocalPath
		}
		rows = append(rows, r)
	}
	return rows
}

func pullRequestRows(views []model.PullRequestView) []row {
	rows := make([]row, 0, len(views))
	for _, v := range views {
		rows = append(rows, row{title: v.Title, subtitle: v.Subtitle, url: v.URL})
	}
	return rows
}

func pipelineRows(views []model.PipelineView) []row {
	rows := make([]row, 0, len(views))
	for _, v := range views {
		r := row{title: v.Title, subtitle: v.Subtitle, url: v.URL}
		if v.LastRunURL != "" {
			r.note = "Last run: " + v.LastRunURL
		}
		rows = append(rows, r)
	}
	return rows
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return goerr.Wrap(err, "failed to encode output")
	}
	return nil
}

func renderRows(w io.Writer, rows []row, empty string) {
	if len(rows) == 0 {
		subColor.Fprintln(w, empty)
		return
	}
	for _, r := range rows {
		titleColor.Fprintln(w, r.title)
		subColor.Fprintf(w, "  %s\n", r.subtitle)
		if r.url != "" {
			urlColor.Fprintf(w, "  %s\n", r.url)
		}
		if r.note != "" {
			linkColor.Fprintf(w, "  %s\n", r.note)
		}
	}
}

// renderResult prints a cache result with its "Last updated" header and any
// partial fetch failures.
func renderResult[E, V any](w io.Writer, asJSON bool, result *model.CacheResult[E, V], rows []row, empty string) error {
	if asJSON {
		views := result.Views
		if views == nil {
			views = []V{}
		}
		return writeJSON(w, views)
	}

	headerColor.Fprintln(w, usecase.CacheInfo(result.FetchedAt, result.FromCache))
	renderRows(w, rows, empty)
	for _, f := range result.Failures {
		warnColor.Fprintf(w, "⚠ %s: %s\n", f.Target, f.Reason)
	}
	return nil
}

func renderLinkReport(w io.Writer, asJSON bool, report *model.LinkReport, cleared int) error {
	if asJSON {
		return writeJSON(w, struct {
			*model.LinkReport
			Cleared int `json:"cleared"`
		}{report, cleared})
	}

	successColor.Fprintf(w, "Scanned %d clones, linked %d, removed %d stale links\n",
		report.Scanned, len(report.Linked), cleared)
	for _, l := range report.Linked {
		fmt.Fprintf(w, "  %s -> %s\n", titleColor.Sprint(l.FullName), l.LocalPath)
	}
	for _, s := range report.Skipped {
		warnColor.Fprintf(w, "  skipped %s: %s\n", s.Path, s.Reason)
	}
	return nil
}
