// Package ghapp implements interfaces.RepositoryFetcher on the GitHub REST API,
// authenticated either with a personal access token or as a GitHub App
// installation.
package ghapp

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v53/github"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/devlink/pkg/domain/interfaces"
	"github.com/secmon-lab/devlink/pkg/domain/model"
	"github.com/secmon-lab/devlink/pkg/domain/types"
	"github.com/secmon-lab/devlink/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

const (
	perPage     = 100
	concurrency = 4
)

type Client struct {
	gh *github.Client

	organization string
	teams        []string
	topics       []string
	owner        string
}

var _ interfaces.RepositoryFetcher = (*Client)(nil)

type Option func(*Client)

// WithOrganization limits organization discovery to one organization login.
func WithOrganization(org string) Option {
	return func(x *Client) { x.organization = org }
}

// WithTeams limits team discovery to the named teams (case-insensitive).
func WithTeams(teams ...string) Option {
	return func(x *Client) { x.teams = teams }
}

// WithTopics keeps only repositories carrying one of the topics (case-insensitive).
func WithTopics(topics ...string) Option {
	return func(x *Client) { x.topics = topics }
}

// WithOwner fixes the login returned by CurrentUser. Required for App
// installations, which cannot call /user.
func WithOwner(owner string) Option {
	return func(x *Client) { x.owner = owner }
}

// WithBaseURL points the client at another API endpoint, e.g. GitHub Enterprise or a test server.
func WithBaseURL(baseURL string) Option {
	return func(x *Client) {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		if u, err := url.Parse(baseURL); err == nil {
			x.gh.BaseURL = u
		}
	}
}

type tokenTransport struct {
	token types.GitHubToken
	base  http.RoundTripper
}

func (x *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+string(x.token))
	return x.base.RoundTrip(r)
}

// NewWithToken creates a client authenticated with a personal access token.
func NewWithToken(token types.GitHubToken, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, goerr.Wrap(types.ErrInvalidOption, "GitHub token is empty")
	}

	httpClient := &http.Client{Transport: &tokenTransport{token: token, base: http.DefaultTransport}}
	return build(httpClient, opts...), nil
}

// New creates a client authenticated as a GitHub App installation.
func New(appID types.GitHubAppID, installID types.GitHubAppInstallID, pem types.GitHubAppPrivateKey, opts ...Option) (*Client, error) {
	if appID == 0 {
		return nil, goerr.Wrap(types.ErrInvalidOption, "appID is empty")
	}
	if installID == 0 {
		return nil, goerr.Wrap(types.ErrInvalidOption, "installID is empty")
	}
	if pem == "" {
		return nil, goerr.Wrap(types.ErrInvalidOption, "pem is empty")
	}

	itr, err := ghinstallation.New(http.DefaultTransport, int64(appID), int64(installID), []byte(pem))
	if err != nil {
		return nil, types.WrapAs(types.ErrInvalidOption, err, "failed to create github app transport",
			goerr.V("appID", appID))
	}

	return build(&http.Client{Transport: itr}, opts...), nil
}

func build(httpClient *http.Client, opts ...Option) *Client {
	client := &Client{gh: github.NewClient(httpClient)}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func remoteErr(err error, msg string, values ...goerr.Option) error {
	return types.WrapAs(types.ErrRemoteFetch, err, msg, values...)
}

func (x *Client) CurrentUser(ctx context.Context) (string, error) {
	if x.owner != "" {
		return x.owner, nil
	}

	user, _, err := x.gh.Users.Get(ctx, "")
	if err != nil {
		return "", remoteErr(err, "failed to get authenticated user")
	}
	return user.GetLogin(), nil
}

// ListRepositories discovers repositories through the user's organizations and
// teams. owner is the cache scope and is not used to filter.
func (x *Client) ListRepositories(ctx context.Context, owner string) (*model.FetchBatch[model.RemoteRepository], error) {
	repos, failures, err := x.discover(ctx)
	if err != nil {
		return nil, err
	}

	batch := &model.FetchBatch[model.RemoteRepository]{Failures: failures}
	for _, repo := range repos {
		batch.Items = append(batch.Items, toRemoteRepository(repo, owner))
	}

	logging.From(ctx).Info("Listed GitHub repositories",
		slog.String("owner", owner),
		slog.Int("count", len(batch.Items)),
		slog.Int("failures", len(batch.Failures)),
	)
	return batch, nil
}

// ListPullRequests lists open pull requests of every discovered repository,
// most recently updated first.
func (x *Client) ListPullRequests(ctx context.Context, owner string) (*model.FetchBatch[model.PullRequest], error) {
	repos, failures, err := x.discover(ctx)
	if err != nil {
		return nil, err
	}

	batch := &model.FetchBatch[model.PullRequest]{Failures: failures}
	var mu sync.Mutex

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)
	for _, repo := range repos {
		eg.Go(func() error {
			prs, err := x.listOpenPullRequests(egCtx, repo)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logging.From(ctx).Warn("Failed to list pull requests",
					slog.String("repo", repo.GetFullName()),
					slog.Any("error", err))
				batch.AddFailure("repository:"+repo.GetFullName(), err)
				return nil
			}
			for _, pr := range prs {
				batch.Items = append(batch.Items, toPullRequest(pr, repo, owner))
			}
			return nil
		})
	}
	_ = eg.Wait()

	if len(repos) > 0 && len(batch.Items) == 0 && len(batch.Failures) >= len(repos) {
		return nil, goerr.Wrap(types.ErrRemoteFetch, "failed to list pull requests of every repository",
			goerr.V("repositories", len(repos)))
	}

	sort.SliceStable(batch.Items, func(i, j int) bool {
		return batch.Items[i].UpdatedAt.After(batch.Items[j].UpdatedAt)
	})

	logging.From(ctx).Info("Listed GitHub pull requests",
		slog.String("owner", owner),
		slog.Int("count", len(batch.Items)),
		slog.Int("failures", len(batch.Failures)),
	)
	return batch, nil
}

func (x *Client) listOpenPullRequests(ctx context.Context, repo *github.Repository) ([]*github.PullRequest, error) {
	opts := &github.PullRequestListOptions{
		State:       "open",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	owner, name := repoPath(repo)

	var all []*github.PullRequest
	for {
		prs, resp, err := x.gh.PullRequests.List(ctx, owner, name, opts)
		if err != nil {
			return nil, remoteErr(err, "failed to list pull requests", goerr.V("repo", repo.GetFullName()))
		}
		all = append(all, prs...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// repoPath returns the owner login and name used in /repos/{owner}/{name}
// paths. Payloads without an owner object fall back to the full name.
func repoPath(repo *github.Repository) (string, string) {
	owner, name := repo.GetOwner().GetLogin(), repo.GetName()
	if full, rest, ok := strings.Cut(repo.GetFullName(), "/"); ok {
		if owner == "" {
			owner = full
		}
		if name == "" {
			name = rest
		}
	}
	return owner, name
}

// discover returns organization and team repositories, deduplicated by id,
// filtered by topics and ordered by full name.
func (x *Client) discover(ctx context.Context) ([]*github.Repository, []model.FetchFailure, error) {
	var (
		mu       sync.Mutex
		seen     = map[int64]*github.Repository{}
		failures []model.FetchFailure
	)

	collect := func(repos []*github.Repository) {
		mu.Lock()
		defer mu.Unlock()
		for _, repo := range repos {
			if _, ok := seen[repo.GetID()]; !ok {
				seen[repo.GetID()] = repo
			}
		}
	}
	fail := func(target string, err error) {
		mu.Lock()
		defer mu.Unlock()
		logging.From(ctx).Warn("Partial GitHub discovery failure",
			slog.String("target", target),
			slog.Any("error", err))
		failures = append(failures, model.FetchFailure{Target: target, Reason: err.Error()})
	}

	orgs, orgErr := x.listOrganizations(ctx)
	teams, teamErr := x.listTeams(ctx)
	if orgErr != nil && teamErr != nil {
		return nil, nil, goerr.Wrap(orgErr, "failed to list organizations and teams",
			goerr.V("teamError", teamErr.Error()))
	}
	if orgErr != nil {
		fail("organizations", orgErr)
	}
	if teamErr != nil {
		fail("teams", teamErr)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)

	for _, org := range orgs {
		eg.Go(func() error {
			repos, err := x.listOrganizationRepos(egCtx, org.GetLogin())
			if err != nil {
				fail("organization:"+org.GetLogin(), err)
				return nil
			}
			collect(repos)
			return nil
		})
	}

	for _, team := range teams {
		eg.Go(func() error {
			repos, err := x.listTeamRepos(egCtx, team)
			if err != nil {
				fail("team:"+team.GetName(), err)
				return nil
			}
			collect(repos)
			return nil
		})
	}
	_ = eg.Wait()

	var result []*github.Repository
	for _, repo := range seen {
		if x.matchTopics(repo) {
			result = append(result, repo)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].GetFullName() < result[j].GetFullName()
	})

	return result, failures, nil
}

func (x *Client) matchTopics(repo *github.Repository) bool {
	if len(x.topics) == 0 {
		return true
	}
	for _, want := range x.topics {
		for _, topic := range repo.Topics {
			if strings.EqualFold(want, topic) {
				return true
			}
		}
	}
	return false
}

func (x *Client) listOrganizations(ctx context.Context) ([]*github.Organization, error) {
	opts := &github.ListOptions{PerPage: perPage}

	var all []*github.Organization
	for {
		orgs, resp, err := x.gh.Organizations.List(ctx, "", opts)
		if err != nil {
			return nil, remoteErr(err, "failed to list organizations")
		}
		for _, org := range orgs {
			if x.organization == "" || strings.EqualFold(org.GetLogin(), x.organization) {
				all = append(all, org)
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

func (x *Client) listTeams(ctx context.Context) ([]*github.Team, error) {
	opts := &github.ListOptions{PerPage: perPage}

	var all []*github.Team
	for {
		teams, resp, err := x.gh.Teams.ListUserTeams(ctx, opts)
		if err != nil {
			return nil, remoteErr(err, "failed to list teams")
		}
		for _, team := range teams {
			if x.matchTeam(team) {
				all = append(all, team)
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

func (x *Client) matchTeam(team *github.Team) bool {
	if len(x.teams) == 0 {
		return true
	}
	for _, name := range x.teams {
		if strings.EqualFold(name, team.GetName()) || strings.EqualFold(name, team.GetSlug()) {
			return true
		}
	}
	return false
}

func (x *Client) listOrganizationRepos(ctx context.Context, org string) ([]*github.Repository, error) {
	opts := &github.RepositoryListByOrgOptions{ListOptions: github.ListOptions{PerPage: perPage}}

	var all []*github.Repository
	for {
		repos, resp, err := x.gh.Repositories.ListByOrg(ctx, org, opts)
		if err != nil {
			return nil, remoteErr(err, "failed to list organization repositories", goerr.V("org", org))
		}
		all = append(all, repos...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

func (x *Client) listTeamRepos(ctx context.Context, team *github.Team) ([]*github.Repository, error) {
	opts := &github.ListOptions{PerPage: perPage}

	var all []*github.Repository
	for {
		repos, resp, err := x.gh.Teams.ListTeamReposByID(ctx, team.GetOrganization().GetID(), team.GetID(), opts)
		if err != nil {
			return nil, remoteErr(err, "failed to list team repositories", goerr.V("team", team.GetName()))
		}
		all = append(all, repos...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

func toRemoteRepository(repo *github.Repository, owner string) model.RemoteRepository {
	return model.RemoteRepository{
		ID:          types.GitHubRepoID(repo.GetID()),
		Name:        repo.GetName(),
		FullName:    repo.GetFullName(),
		Description: repo.GetDescription(),
		HTMLURL:     repo.GetHTMLURL(),
		Private:     repo.GetPrivate(),
		Stars:       repo.GetStargazersCount(),
		Language:    repo.GetLanguage(),
		Owner:       owner,
		CreatedAt:   repo.GetCreatedAt().Time,
		UpdatedAt:   repo.GetUpdatedAt().Time,
	}
}

func toPullRequest(pr *github.PullRequest, repo *github.Repository, owner string) model.PullRequest {
	return model.PullRequest{
		ID:                 types.PullRequestID(pr.GetID()),
		Number:             pr.GetNumber(),
		Title:              pr.GetTitle(),
		HTMLURL:            pr.GetHTMLURL(),
		State:              pr.GetState(),
		RepositoryName:     repo.GetName(),
		RepositoryFullName: repo.GetFullName(),
		Author:             pr.GetUser().GetLogin(),
		Draft:              pr.GetDraft(),
		Owner:              owner,
		CreatedAt:          pr.GetCreatedAt().Time,
		UpdatedAt:          pr.GetUpdatedAt().Time,
	}
}
