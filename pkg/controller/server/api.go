package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/devlink/pkg/domain/interfaces"
	"github.com/secmon-lab/devlink/pkg/domain/model"
	"github.com/secmon-lab/devlink/pkg/domain/types"
	"github.com/secmon-lab/devlink/pkg/usecase"
	"github.com/secmon-lab/devlink/pkg/utils/errutil"
	"github.com/secmon-lab/devlink/pkg/utils/logging"
)

type handler struct {
	uc  interfaces.UseCase
	cfg *config
}

type listResponse[V any] struct {
	Items     []V                  `json:"items"`
	CacheInfo string               `json:"cache_info"`
	FromCache bool                 `json:"from_cache"`
	FetchedAt *time.Time           `json:"fetched_at,omitempty"`
	Failures  []model.FetchFailure `json:"failures,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type statusResponse struct {
	Status string `json:"status"`
	Scope  string `json:"scope"`
}

func newListResponse[E, V any](result *model.CacheResult[E, V]) listResponse[V] {
	views := result.Views
	if views == nil {
		views = []V{}
	}
	return listResponse[V]{
		Items:     views,
		CacheInfo: usecase.CacheInfo(result.FetchedAt, result.FromCache),
		FromCache: result.FromCache,
		FetchedAt: result.FetchedAt,
		Failures:  result.Failures,
	}
}

var kindStatus = map[string]int{
	"invalid_input":       http.StatusBadRequest,
	"remote_fetch":        http.StatusBadGateway,
	"storage_unavailable": http.StatusServiceUnavailable,
	"clone_failed":        http.StatusInternalServerError,
	"internal":            http.StatusInternalServerError,
}

func writeError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	errutil.HandleError(r.Context(), msg, err)
	kind := errutil.Kind(err)
	writeJSON(w, kindStatus[kind], errorResponse{Error: err.Error(), Kind: kind})
}

func (x *handler) ownerScope(r *http.Request) (model.OwnerScope, error) {
	owner, err := x.uc.ResolveOwner(r.Context(), r.URL.Query().Get("owner"))
	if err != nil {
		return model.OwnerScope{}, err
	}
	return model.OwnerScope{Owner: owner}, nil
}

func (x *handler) projectScope(r *http.Request) model.ProjectScope {
	scope := model.ProjectScope{
		Organization: r.URL.Query().Get("organization"),
		Project:      r.URL.Query().Get("project"),
	}
	if scope.Organization == "" {
		scope.Organization = x.cfg.organization
	}
	if scope.Project == "" {
		scope.Project = x.cfg.project
	}
	return scope
}

func (x *handler) getRepositories(w http.ResponseWriter, r *http.Request) {
	scope, err := x.ownerScope(r)
	if err != nil {
		writeError(w, r, "fail to resolve owner", err)
		return
	}
	result, err := x.uc.GetRepositories(r.Context(), scope)
	if err != nil {
		writeError(w, r, "fail to get repositories", err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(result))
}

func (x *handler) getPullRequests(w http.ResponseWriter, r *http.Request) {
	scope, err := x.ownerScope(r)
	if err != nil {
		writeError(w, r, "fail to resolve owner", err)
		return
	}
	result, err := x.uc.GetPullRequests(r.Context(), scope)
	if err != nil {
		writeError(w, r, "fail to get pull requests", err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(result))
}

func (x *handler) getPipelines(w http.ResponseWriter, r *http.Request) {
	result, err := x.uc.GetPipelines(r.Context(), x.projectScope(r))
	if err != nil {
		writeError(w, r, "fail to get pipelines", err)
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(result))
}

// refresh clears the scope. With prefetch=true the scope is fetched again in
// the background and the response is 202.
func refresh(w http.ResponseWriter, r *http.Request, key string, clear func(ctx context.Context) error, fetch func(ctx context.Context) error) {
	if err := clear(r.Context()); err != nil {
		writeError(w, r, "fail to refresh scope", err)
		return
	}

	if r.URL.Query().Get("prefetch") != "true" {
		writeJSON(w, http.StatusOK, statusResponse{Status: "cleared", Scope: key})
		return
	}

	bgCtx := logging.Detach(r.Context())
	go func() {
		if err := fetch(bgCtx); err != nil {
			errutil.HandleError(bgCtx, "fail to prefetch scope", err)
			return
		}
		logging.From(bgCtx).Info("Prefetched scope", slog.String("scope", key))
	}()
	writeJSON(w, http.StatusAccepted, statusResponse{Status: "accepted", Scope: key})
}

func (x *handler) refreshRepositories(w http.ResponseWriter, r *http.Request) {
	scope, err := x.ownerScope(r)
	if err != nil {
		writeError(w, r, "fail to resolve owner", err)
		return
	}
	refresh(w, r, scope.Key(),
		func(ctx context.Context) error { return x.uc.RefreshRepositories(ctx, scope) },
		func(ctx context.Context) error {
			_, err := x.uc.GetRepositories(ctx, scope)
			return err
		})
}

func (x *handler) refreshPullRequests(w http.ResponseWriter, r *http.Request) {
	scope, err := x.ownerScope(r)
	if err != nil {
		writeError(w, r, "fail to resolve owner", err)
		return
	}
	refresh(w, r, scope.Key(),
		func(ctx context.Context) error { return x.uc.RefreshPullRequests(ctx, scope) },
		func(ctx context.Context) error {
			_, err := x.uc.GetPullRequests(ctx, scope)
			return err
		})
}

func (x *handler) refreshPipelines(w http.ResponseWriter, r *http.Request) {
	scope := x.projectScope(r)
	refresh(w, r, scope.Key(),
		func(ctx context.Context) error { return x.uc.RefreshPipelines(ctx, scope) },
		func(ctx context.Context) error {
			_, err := x.uc.GetPipelines(ctx, scope)
			return err
		})
}

func (x *handler) matchPipelines(w http.ResponseWriter, r *http.Request) {
	pipelines, err := x.uc.PipelinesForRepository(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		writeError(w, r, "fail to match pipelines", err)
		return
	}
	views := make([]model.PipelineView, 0, len(pipelines))
	for _, p := range pipelines {
		views = append(views, model.NewPipelineView(p))
	}
	writeJSON(w, http.StatusOK, views)
}

func (x *handler) matchPullRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	prs, err := x.uc.PullRequestsForRepository(r.Context(), q.Get("owner"), q.Get("repo"))
	if err != nil {
		writeError(w, r, "fail to match pull requests", err)
		return
	}
	now := logging.CtxTime(r.Context())
	views := make([]model.PullRequestView, 0, len(prs))
	for _, pr := range prs {
		views = append(views, model.NewPullRequestView(pr, now))
	}
	writeJSON(w, http.StatusOK, views)
}

func (x *handler) scanLocal(w http.ResponseWriter, r *http.Request) {
	scope, err := x.ownerScope(r)
	if err != nil {
		writeError(w, r, "fail to resolve owner", err)
		return
	}
	workFolder := r.URL.Query().Get("work_folder")
	if workFolder == "" {
		workFolder = x.cfg.workFolder
	}
	if workFolder == "" {
		writeError(w, r, "work folder is not set", goerr.Wrap(types.ErrInvalidOption, "work_folder is required"))
		return
	}

	report, err := x.uc.ScanAndLink(r.Context(), workFolder, scope.Owner)
	if err != nil {
		writeError(w, r, "fail to scan work folder", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (x *handler) cleanupLocal(w http.ResponseWriter, r *http.Request) {
	scope, err := x.ownerScope(r)
	if err != nil {
		writeError(w, r, "fail to resolve owner", err)
		return
	}
	cleared, err := x.uc.CleanupInvalidLinks(r.Context(), scope.Owner)
	if err != nil {
		writeError(w, r, "fail to clean up links", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cleared": cleared})
}
