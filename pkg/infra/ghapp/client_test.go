package ghapp_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/devlink/pkg/domain/types"
	"github.com/secmon-lab/devlink/pkg/infra/ghapp"
)

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	gt.NoError(t, json.NewEncoder(w).Encode(v))
}

type repoJSON struct {
	ID       int64          `json:"id"`
	Name     string         `json:"name"`
	FullName string         `json:"full_name"`
	HTMLURL  string         `json:"html_url"`
	Private  bool           `json:"private"`
	Stars    int            `json:"stargazers_count"`
	Language string         `json:"language"`
	Topics   []string       `json:"topics"`
	Owner    map[string]any `json:"owner"`
}

func repo(id int64, org, name string, topics ...string) repoJSON {
	return repoJSON{
		ID: id, Name: name, FullName: org + "/" + name,
		HTMLURL:  "https://github.com/" + org + "/" + name,
		Stars:    int(id),
		Language: "Go",
		Topics:   topics,
		Owner:    map[string]any{"login": org},
	}
}

func newServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var prCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		gt.V(t, r.Header.Get("Authorization")).Equal("Bearer test-token")
		writeJSON(t, w, map[string]any{"login": "alice"})
	})
	mux.HandleFunc("GET /user/orgs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]any{{"login": "acme", "id": 10}, {"login": "other", "id": 20}})
	})
	mux.HandleFunc("GET /orgs/acme/repos", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []repoJSON{repo(2, "acme", "web", "frontend"), repo(1, "acme", "api", "Backend")})
	})
	mux.HandleFunc("GET /orgs/other/repos", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
	})
	mux.HandleFunc("GET /user/teams", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]any{
			{"id": 100, "name": "Core", "slug": "core", "organization": map[string]any{"id": 10, "login": "acme"}},
			{"id": 200, "name": "Ops", "slug": "ops", "organization": map[string]any{"id": 10, "login": "acme"}},
		})
	})
	mux.HandleFunc("GET /organizations/10/team/100/repos", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []repoJSON{repo(1, "acme", "api", "backend"), repo(3, "acme", "tools", "backend")})
	})
	mux.HandleFunc("GET /organizations/10/team/200/repos", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []repoJSON{repo(4, "acme", "infra")})
	})
	mux.HandleFunc("GET /repos/acme/{name}/pulls", func(w http.ResponseWriter, r *http.Request) {
		prCalls.Add(1)
		gt.V(t, r.URL.Query().Get("state")).Equal("open")
		switch r.PathValue("name") {
		case "api":
			writeJSON(t, w, []map[string]any{
				{"id": 9001, "number": 1, "title": "older", "state": "open", "html_url": "https://github.com/acme/api/pull/1",
					"user": map[string]any{"login": "bob"}, "updated_at": "2026-01-01T00:00:00Z"},
			})
		case "web":
			writeJSON(t, w, []map[string]any{
				{"id": 9002, "number": 7, "title": "newer", "state": "open", "draft": true, "html_url": "https://github.com/acme/web/pull/7",
					"user": map[string]any{"login": "carol"}, "updated_at": "2026-01-05T00:00:00Z"},
			})
		default:
			http.Error(w, `{"message":"gone"}`, http.StatusNotFound)
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &prCalls
}

func TestNewWithToken(t *testing.T) {
	_, err := ghapp.NewWithToken("")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, types.ErrInvalidOption))
}

func TestNew(t *testing.T) {
	t.Run("zero app ID fails", func(t *testing.T) {
		client, err := ghapp.New(0, 1, "key")
		gt.Error(t, err)
		gt.True(t, client == nil)
	})

	t.Run("empty private key fails", func(t *testing.T) {
		client, err := ghapp.New(1, 1, "")
		gt.Error(t, err)
		gt.True(t, client == nil)
	})

	t.Run("invalid private key fails", func(t *testing.T) {
		client, err := ghapp.New(1, 1, "invalid-key")
		gt.Error(t, err)
		gt.True(t, client == nil)
	})
}

func TestCurrentUser(t *testing.T) {
	srv, _ := newServer(t)
	ctx := context.Background()

	client, err := ghapp.NewWithToken("test-token", ghapp.WithBaseURL(srv.URL))
	gt.NoError(t, err)
	login, err := client.CurrentUser(ctx)
	gt.NoError(t, err)
	gt.V(t, login).Equal("alice")

	fixed, err := ghapp.NewWithToken("test-token", ghapp.WithBaseURL(srv.URL), ghapp.WithOwner("acme-bot"))
	gt.NoError(t, err)
	login, err = fixed.CurrentUser(ctx)
	gt.NoError(t, err)
	gt.V(t, login).Equal("acme-bot")
}

func TestListRepositories(t *testing.T) {
	srv, _ := newServer(t)
	ctx := context.Background()

	t.Run("organizations and teams are merged and deduplicated", func(t *testing.T) {
		client, err := ghapp.NewWithToken("test-token", ghapp.WithBaseURL(srv.URL))
		gt.NoError(t, err)

		batch, err := client.ListRepositories(ctx, "alice")
		gt.NoError(t, err)
		gt.V(t, len(batch.Items)).Equal(4)
		gt.V(t, batch.Items[0].FullName).Equal("acme/api")
		gt.V(t, batch.Items[1].FullName).Equal("acme/infra")
		gt.V(t, batch.Items[2].FullName).Equal("acme/tools")
		gt.V(t, batch.Items[3].FullName).Equal("acme/web")
		gt.V(t, batch.Items[0].Owner).Equal("alice")
		gt.V(t, batch.Items[0].Language).Equal("Go")

		gt.V(t, len(batch.Failures)).Equal(1)
		gt.V(t, batch.Failures[0].Target).Equal("organization:other")
	})

	t.Run("organization and team filters", func(t *testing.T) {
		client, err := ghapp.NewWithToken("test-token", ghapp.WithBaseURL(srv.URL),
			ghapp.WithOrganization("ACME"), ghapp.WithTeams("ops"))
		gt.NoError(t, err)

		batch, err := client.ListRepositories(ctx, "alice")
		gt.NoError(t, err)
		gt.V(t, len(batch.Items)).Equal(3)
		gt.V(t, len(batch.Failures)).Equal(0)
	})

	t.Run("topic filter is case-insensitive", func(t *testing.T) {
		client, err := ghapp.NewWithToken("test-token", ghapp.WithBaseURL(srv.URL), ghapp.WithTopics("BACKEND"))
		gt.NoError(t, err)

		batch, err := client.ListRepositories(ctx, "alice")
		gt.NoError(t, err)
		gt.V(t, len(batch.Items)).Equal(2)
		gt.V(t, batch.Items[0].FullName).Equal("acme/api")
		gt.V(t, batch.Items[1].FullName).Equal("acme/tools")
	})
}

func TestListRepositoriesTotalFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"unauthorized"}`, http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	client, err := ghapp.NewWithToken("test-token", ghapp.WithBaseURL(srv.URL))
	gt.NoError(t, err)

	_, err = client.ListRepositories(context.Background(), "alice")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, types.ErrRemoteFetch))
}

func TestListPullRequests(t *testing.T) {
	srv, prCalls := newServer(t)

	client, err := ghapp.NewWithToken("test-token", ghapp.WithBaseURL(srv.URL), ghapp.WithTeams("core"))
	gt.NoError(t, err)

	batch, err := client.ListPullRequests(context.Background(), "alice")
	gt.NoError(t, err)
	gt.V(t, prCalls.Load()).Equal(int32(3))

	gt.V(t, len(batch.Items)).Equal(2)
	gt.V(t, batch.Items[0].Title).Equal("newer")
	gt.True(t, batch.Items[0].Draft)
	gt.V(t, batch.Items[0].RepositoryFullName).Equal("acme/web")
	gt.V(t, batch.Items[0].Author).Equal("carol")
	gt.V(t, batch.Items[1].Title).Equal("older")

	// acme/tools has no pulls endpoint, org "other" failed
	gt.V(t, len(batch.Failures)).Equal(2)
}

func TestListPullRequestsWithoutOwnerObject(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /user/orgs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]any{{"login": "acme", "id": 10}})
	})
	mux.HandleFunc("GET /user/teams", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]any{})
	})
	mux.HandleFunc("GET /orgs/acme/repos", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]any{
			{"id": 1, "name": "api", "full_name": "acme/api", "html_url": "https://github.com/acme/api"},
		})
	})
	mux.HandleFunc("GET /repos/acme/api/pulls", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]any{
			{"id": 9001, "number": 3, "title": "Add retry", "state": "open", "html_url": "https://github.com/acme/api/pull/3",
				"user": map[string]any{"login": "bob"}, "updated_at": "2026-01-01T00:00:00Z"},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := ghapp.NewWithToken("test-token", ghapp.WithBaseURL(srv.URL))
	gt.NoError(t, err)

	batch, err := client.ListPullRequests(context.Background(), "alice")
	gt.NoError(t, err)
	gt.V(t, len(batch.Failures)).Equal(0)
	gt.V(t, len(batch.Items)).Equal(1)
	gt.V(t, batch.Items[0].RepositoryFullName).Equal("acme/api")
	gt.V(t, batch.Items[0].Number).Equal(3)
}
