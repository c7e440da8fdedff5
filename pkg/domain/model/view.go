package model

import (
	"fmt"
	"strings"
	"time"
)

// RepositoryView is a list-item projection of RemoteRepository.
type RepositoryView struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Subtitle  string `json:"subtitle"`
	URL       string `json:"url"`
	LocalPath string `json:"local_path,omitempty"`
	Linked    bool   `json:"linked"`
}

// PullRequestView is a list-item projection of PullRequest.
type PullRequestView struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	URL      string `json:"url"`
	Draft    bool   `json:"draft"`
}

// PipelineView is a list-item projection of Pipeline.
type PipelineView struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Subtitle      string `json:"subtitle"`
	URL           string `json:"url"`
	Path          string `json:"path,omitempty"`
	RepositoryURL string `json:"repository_url,omitempty"`
	LastRunURL    string `json:"last_run_url,omitempty"`
}

func NewRepositoryView(x RemoteRepository) RepositoryView {
	lang := x.Language
	if lang == "" {
		lang = "N/A"
	}

	return RepositoryView{
		ID:        int64(x.ID),
		Title:     x.FullName,
		Subtitle:  fmt.Sprintf("%s | ⭐ %d | Language: %s", x.Visibility(), x.Stars, lang),
		URL:       x.HTMLURL,
		LocalPath: x.LocalPath,
		Linked:    x.Linked(),
	}
}

// NewPullRequestView renders the relative update time against now so that
// the projection is deterministic for a given clock.
func NewPullRequestView(x PullRequest, now time.Time) PullRequestView {
	var title strings.Builder
	if x.Draft {
		title.WriteString("[DRAFT] ")
	}
	fmt.Fprintf(&title, "%s #%d", x.RepositoryFullName, x.Number)

	return PullRequestView{
		ID:       int64(x.ID),
		Title:    title.String(),
		Subtitle: fmt.Sprintf("%s | 👤 %s | Updated %s", x.Title, x.Author, TimeAgo(x.UpdatedAt, now)),
		URL:      x.HTMLURL,
		Draft:    x.Draft,
	}
}

func NewPipelineView(x Pipeline) PipelineView {
	return PipelineView{
		ID:            int64(x.ID),
		Title:         x.Name,
		Subtitle:      x.Summary(),
		URL:           x.WebURL(),
		Path:          x.Path,
		RepositoryURL: x.RepositoryURL,
		LastRunURL:    x.LastRunURL(),
	}
}

// Summary describes the latest build, falling back to the definition ID.
func (x *Pipeline) Summary() string {
	if x.LastBuildID == nil {
		return fmt.Sprintf("ID: %d", x.ID)
	}

	state := x.LastBuildStatus
	if strings.EqualFold(x.LastBuildStatus, "completed") && x.LastBuildResult != "" {
		state = x.LastBuildResult
	}
	if state == "" {
		state = "unknown"
	}
	return fmt.Sprintf("%s | Build #%s", state, x.LastBuildNumber)
}

// TimeAgo formats the elapsed time between t and now in a compact form.
func TimeAgo(t, now time.Time) string {
	d := now.Sub(t)
	days := d.Hours() / 24

	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case days < 7:
		return fmt.Sprintf("%dd ago", int(days))
	case days < 30:
		return fmt.Sprintf("%dw ago", int(days/7))
	case days < 365:
		return fmt.Sprintf("%dmo ago", int(days/30))
	default:
		return fmt.Sprintf("%dy ago", int(days/365))
	}
}
