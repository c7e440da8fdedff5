package repository

import (
	"sort"
	"strings"

	"github.com/secmon-lab/devlink/pkg/domain/model"
)

// SortRepositories orders by name case-insensitively, then full name and owner.
func SortRepositories(repos []model.RemoteRepository) {
	sort.Slice(repos, func(i, j int) bool {
		a, b := strings.ToLower(repos[i].Name), strings.ToLower(repos[j].Name)
		if a != b {
			return a < b
		}
		if repos[i].FullName != repos[j].FullName {
			return repos[i].FullName < repos[j].FullName
		}
		return repos[i].Owner < repos[j].Owner
	})
}

// SortPullRequests orders by most recent update first.
func SortPullRequests(prs []model.PullRequest) {
	sort.Slice(prs, func(i, j int) bool {
		if !prs[i].UpdatedAt.Equal(prs[j].UpdatedAt) {
			return prs[i].UpdatedAt.After(prs[j].UpdatedAt)
		}
		if prs[i].ID != prs[j].ID {
			return prs[i].ID < prs[j].ID
		}
		return prs[i].Owner < prs[j].Owner
	})
}

// SortPipelines orders by name case-insensitively, then ID and project.
func SortPipelines(pipelines []model.Pipeline) {
	sort.Slice(pipelines, func(i, j int) bool {
		a, b := strings.ToLower(pipelines[i].Name), strings.ToLower(pipelines[j].Name)
		if a != b {
			return a < b
		}
		if pipelines[i].ID != pipelines[j].ID {
			return pipelines[i].ID < pipelines[j].ID
		}
		return pipelines[i].Organization+"/"+pipelines[i].Project < pipelines[j].Organization+"/"+pipelines[j].Project
	})
}
