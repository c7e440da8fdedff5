package usecase

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/devlink/pkg/domain/model"
	"github.com/secmon-lab/devlink/pkg/domain/types"
	"github.com/secmon-lab/devlink/pkg/domain/urlkey"
)

// PipelinesForRepository returns cached pipelines of any project whose source
// repository is repositoryURL, ordered by name. API and transport URL forms
// match their web form. No match is an empty result.
func (x *UseCase) PipelinesForRepository(ctx context.Context, repositoryURL string) ([]model.Pipeline, error) {
	key := urlkey.Key(repositoryURL)
	if key == "" {
		return nil, nil
	}

	store := x.clients.EntityStore()
	if store == nil {
		return nil, goerr.Wrap(types.ErrInvalidOption, "entity store is not configured")
	}

	pipelines, err := store.FindPipelinesByRepositoryKey(ctx, key)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to find pipelines by repository", goerr.V("url", repositoryURL))
	}
	return pipelines, nil
}

// PullRequestsForRepository returns cached pull requests of the repository
// whose full name equals fullName case-insensitively. An empty owner searches
// every cached owner.
func (x *UseCase) PullRequestsForRepository(ctx context.Context, owner, fullName string) ([]model.PullRequest, error) {
	if fullName == "" {
		return nil, nil
	}

	store := x.clients.EntityStore()
	if store == nil {
		return nil, goerr.Wrap(types.ErrInvalidOption, "entity store is not configured")
	}

	if owner == "" {
		prs, err := store.FindPullRequestsByRepository(ctx, fullName)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to find pull requests by repository", goerr.V("repo", fullName))
		}
		return prs, nil
	}

	all, err := store.ListPullRequests(ctx, model.OwnerScope{Owner: owner})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list pull requests", goerr.V("owner", owner))
	}

	var matched []model.PullRequest
	for _, pr := range all {
		if strings.EqualFold(pr.RepositoryFullName, fullName) {
			matched = append(matched, pr)
		}
	}
	return matched, nil
}
