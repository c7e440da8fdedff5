// Package azdo implements interfaces.PipelineFetcher on the Azure DevOps Build
// REST API (api-version 7.1).
package azdo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/devlink/pkg/domain/interfaces"
	"github.com/secmon-lab/devlink/pkg/domain/model"
	"github.com/secmon-lab/devlink/pkg/domain/types"
	"github.com/secmon-lab/devlink/pkg/domain/urlkey"
	"github.com/secmon-lab/devlink/pkg/utils/logging"
	"github.com/secmon-lab/devlink/pkg/utils/safe"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBaseURL = "https://dev.azure.com"
	apiVersion     = "7.1"
	concurrency    = 4
)

type Client struct {
	httpClient interfaces.HTTPClient
	baseURL    string
	token      types.AzureDevOpsToken
	paths      []string
}

var _ interfaces.PipelineFetcher = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(client interfaces.HTTPClient) Option {
	return func(x *Client) { x.httpClient = client }
}

func WithBaseURL(baseURL string) Option {
	return func(x *Client) { x.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithPaths keeps only definitions in one of the folders (or below it).
func WithPaths(paths ...string) Option {
	return func(x *Client) { x.paths = paths }
}

func New(token types.AzureDevOpsToken, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, goerr.Wrap(types.ErrInvalidOption, "Azure DevOps token is empty")
	}

	client := &Client{
		httpClient: http.DefaultClient,
		baseURL:    DefaultBaseURL,
		token:      token,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type definitionReference struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	QueueStatus string `json:"queueStatus"`
}

type definitionList struct {
	Count int                   `json:"count"`
	Value []definitionReference `json:"value"`
}

type definition struct {
	ID         int64 `json:"id"`
	Repository *struct {
		URL  string `json:"url"`
		Type string `json:"type"`
	} `json:"repository"`
}

type build struct {
	ID          int64  `json:"id"`
	BuildNumber string `json:"buildNumber"`
	Status      string `json:"status"`
	Result      string `json:"result"`
}

type buildList struct {
	Count int     `json:"count"`
	Value []build `json:"value"`
}

// ListPipelines lists build definitions of the project, each enriched with its
// source repository URL and latest build. Enrichment failures are partial.
func (x *Client) ListPipelines(ctx context.Context, organization, project string) (*model.FetchBatch[model.Pipeline], error) {
	var defs definitionList
	if err := x.get(ctx, x.projectURL(organization, project, "definitions", nil), &defs); err != nil {
		return nil, goerr.Wrap(err, "failed to list build definitions",
			goerr.V("organization", organization), goerr.V("project", project))
	}

	batch := &model.FetchBatch[model.Pipeline]{}
	var selected []definitionReference
	for _, def := range defs.Value {
		if MatchPath(def.Path, x.paths) {
			selected = append(selected, def)
		}
	}

	pipelines := make([]model.Pipeline, len(selected))
	var mu sync.Mutex

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)
	for i, def := range selected {
		eg.Go(func() error {
			p := model.Pipeline{
				ID:           types.PipelineID(def.ID),
				Name:         def.Name,
				Path:         def.Path,
				Organization: organization,
				Project:      project,
				QueueStatus:  def.QueueStatus,
			}
			if p.Name == "" {
				p.Name = "Unknown Pipeline"
			}
			if p.Path == "" {
				p.Path = `\`
			}

			if repoURL, err := x.repositoryURL(egCtx, organization, project, def.ID); err != nil {
				mu.Lock()
				batch.AddFailure(fmt.Sprintf("definition:%d", def.ID), err)
				mu.Unlock()
				logging.From(ctx).Warn("Failed to get pipeline definition",
					slog.Int64("definitionID", def.ID), slog.Any("error", err))
			} else {
				p.RepositoryURL = repoURL
			}

			if latest, err := x.latestBuild(egCtx, organization, project, def.ID); err != nil {
				mu.Lock()
				batch.AddFailure(fmt.Sprintf("builds:%d", def.ID), err)
				mu.Unlock()
				logging.From(ctx).Warn("Failed to get latest build",
					slog.Int64("definitionID", def.ID), slog.Any("error", err))
			} else if latest != nil {
				id := types.BuildID(latest.ID)
				p.LastBuildID = &id
				p.LastBuildNumber = latest.BuildNumber
				p.LastBuildStatus = latest.Status
				p.LastBuildResult = latest.Result
			}

			pipelines[i] = p
			return nil
		})
	}
	_ = eg.Wait()

	batch.Items = pipelines

	logging.From(ctx).Info("Listed Azure DevOps pipelines",
		slog.String("organization", organization),
		slog.String("project", project),
		slog.Int("definitions", len(defs.Value)),
		slog.Int("selected", len(batch.Items)),
		slog.Int("failures", len(batch.Failures)),
	)
	return batch, nil
}

func (x *Client) repositoryURL(ctx context.Context, organization, project string, id int64) (string, error) {
	var def definition
	if err := x.get(ctx, x.projectURL(organization, project, "definitions/"+strconv.FormatInt(id, 10), nil), &def); err != nil {
		return "", err
	}
	if def.Repository == nil || def.Repository.URL == "" {
		return "", nil
	}
	return urlkey.WebURL(def.Repository.URL), nil
}

func (x *Client) latestBuild(ctx context.Context, organization, project string, id int64) (*build, error) {
	query := url.Values{}
	query.Set("definitions", strconv.FormatInt(id, 10))
	query.Set("$top", "1")

	var builds buildList
	if err := x.get(ctx, x.projectURL(organization, project, "builds", query), &builds); err != nil {
		return nil, err
	}
	if len(builds.Value) == 0 {
		return nil, nil
	}
	return &builds.Value[0], nil
}

func (x *Client) projectURL(organization, project, resource string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api-version", apiVersion)
	return fmt.Sprintf("%s/%s/%s/_apis/build/%s?%s", x.baseURL,
		url.PathEscape(organization), url.PathEscape(project), resource, query.Encode())
}

func (x *Client) get(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return types.WrapAs(types.ErrRemoteFetch, err, "failed to create request",
			goerr.V("url", reqURL))
	}
	auth := base64.StdEncoding.EncodeToString([]byte(":" + string(x.token)))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Accept", "application/json")

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return types.WrapAs(types.ErrRemoteFetch, err, "failed to send request",
			goerr.V("url", reqURL))
	}
	defer safe.Close(resp.Body)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return goerr.Wrap(types.ErrRemoteFetch, "unexpected status code",
			goerr.V("url", reqURL), goerr.V("status", resp.StatusCode), goerr.V("body", string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.WrapAs(types.ErrRemoteFetch, err, "failed to decode response",
			goerr.V("url", reqURL))
	}
	return nil
}

// MatchPath reports whether a definition folder is one of the filters or below
// one of them. Separators are compared as backslashes, case-insensitively, and
// trailing separators are ignored. No filters matches everything.
func MatchPath(path string, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	normalized := strings.TrimRight(strings.ReplaceAll(path, "/", `\`), `\`)

	for _, filter := range filters {
		f := strings.TrimRight(strings.ReplaceAll(filter, "/", `\`), `\`)
		if f == "" {
			// root folder
			return true
		}
		if strings.EqualFold(normalized, f) {
			return true
		}
		prefix := f + `\`
		if len(normalized) >= len(prefix) && strings.EqualFold(normalized[:len(prefix)], prefix) {
			return true
		}
	}
	return false
}
