package model_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/devlink/pkg/domain/model"
	"github.com/secmon-lab/devlink/pkg/domain/types"
)

func TestNewRepositoryView(t *testing.T) {
	t.Run("public with language", func(t *testing.T) {
		v := model.NewRepositoryView(model.RemoteRepository{
			ID:       1,
			FullName: "acme/api",
			HTMLURL:  "https://github.com/acme/api",
			Stars:    12,
			Language: "Go",
		})
		gt.V(t, v.Title).Equal("acme/api")
		gt.V(t, v.Subtitle).Equal("Public | ⭐ 12 | Language: Go")
		gt.False(t, v.Linked)
	})

	t.Run("private without language and linked", func(t *testing.T) {
		v := model.NewRepositoryView(model.RemoteRepository{
			ID:        2,
			FullName:  "acme/secret",
			Private:   true,
			LocalPath: "/work/secret",
		})
		gt.V(t, v.Subtitle).Equal("Private | ⭐ 0 | Language: N/A")
		gt.True(t, v.Linked)
		gt.V(t, v.LocalPath).Equal("/work/secret")
	})
}

func TestNewPullRequestView(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	v := model.NewPullRequestView(model.PullRequest{
		ID:                 100,
		Number:             42,
		Title:              "Fix login",
		RepositoryFullName: "acme/api",
		Author:             "alice",
		Draft:              true,
		UpdatedAt:          now.Add(-3 * time.Hour),
	}, now)

	gt.V(t, v.Title).Equal("[DRAFT] acme/api #42")
	gt.V(t, v.Subtitle).Equal("Fix login | 👤 alice | Updated 3h ago")
	gt.True(t, v.Draft)
}

func TestPipelineSummary(t *testing.T) {
	buildID := types.BuildID(900)

	testCases := []struct {
		name     string
		pipeline model.Pipeline
		want     string
	}{
		{
			name:     "no build",
			pipeline: model.Pipeline{ID: 7},
			want:     "ID: 7",
		},
		{
			name: "completed build shows result",
			pipeline: model.Pipeline{
				ID: 7, LastBuildID: &buildID, LastBuildNumber: "20260110.1",
				LastBuildStatus: "completed", LastBuildResult: "succeeded",
			},
			want: "succeeded | Build #20260110.1",
		},
		{
			name: "running build shows status",
			pipeline: model.Pipeline{
				ID: 7, LastBuildID: &buildID, LastBuildNumber: "20260110.2",
				LastBuildStatus: "inProgress",
			},
			want: "inProgress | Build #20260110.2",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gt.V(t, tc.pipeline.Summary()).Equal(tc.want)
		})
	}
}

func TestPipelineURLs(t *testing.T) {
	buildID := types.BuildID(55)
	p := model.Pipeline{ID: 7, Organization: "acme", Project: "Platform Team", LastBuildID: &buildID}

	gt.V(t, p.WebURL()).Equal("https://dev.azure.com/acme/Platform%20Team/_build?definitionId=7")
	gt.V(t, p.LastRunURL()).Equal("https://dev.azure.com/acme/Platform%20Team/_build/results?buildId=55")

	v := model.NewPipelineView(model.Pipeline{ID: 8, Name: "deploy"})
	gt.V(t, v.LastRunURL).Equal("")
	gt.V(t, v.Title).Equal("deploy")
}

func TestTimeAgo(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		elapsed time.Duration
		want    string
	}{
		{30 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{2 * 24 * time.Hour, "2d ago"},
		{14 * 24 * time.Hour, "2w ago"},
		{60 * 24 * time.Hour, "2mo ago"},
		{800 * 24 * time.Hour, "2y ago"},
	}

	for _, tc := range testCases {
		t.Run(tc.want, func(t *testing.T) {
			gt.V(t, model.TimeAgo(now.Add(-tc.elapsed), now)).Equal(tc.want)
		})
	}
}

func TestScopeValidate(t *testing.T) {
	gt.NoError(t, model.OwnerScope{Owner: "acme"}.Validate())
	gt.Error(t, model.OwnerScope{}.Validate())
	gt.NoError(t, model.ProjectScope{Organization: "acme", Project: "teamA"}.Validate())
	gt.Error(t, model.ProjectScope{Organization: "acme"}.Validate())
	gt.V(t, model.ProjectScope{Organization: "acme", Project: "teamA"}.Key()).Equal("acme/teamA")
}
