package cli_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/devlink/pkg/cli"
	"github.com/secmon-lab/devlink/pkg/utils/testutil"
)

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	gt.NoError(t, json.NewEncoder(w).Encode(v))
}

type remotes struct {
	github    *httptest.Server
	azure     *httptest.Server
	repoCalls atomic.Int32
	defCalls  atomic.Int32
}

func newRemotes(t *testing.T) *remotes {
	t.Helper()
	x := &remotes{}

	gh := http.NewServeMux()
	gh.HandleFunc("GET /user/orgs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]any{{"login": "acme", "id": 10}})
	})
	gh.HandleFunc("GET /user/teams", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, []map[string]any{})
	})
	gh.HandleFunc("GET /orgs/acme/repos", func(w http.ResponseWriter, r *http.Request) {
		x.repoCalls.Add(1)
		writeJSON(t, w, []map[string]any{
			{"id": 1, "name": "api", "full_name": "acme/api", "html_url": "https://github.com/acme/api", "language": "Go",
				"owner": map[string]any{"login": "acme"}},
			{"id": 2, "name": "web", "full_name": "acme/web", "html_url": "https://github.com/acme/web",
				"owner": map[string]any{"login": "acme"}},
		})
	})
	gh.HandleFunc("GET /repos/acme/{name}/pulls", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("name") != "api" {
			writeJSON(t, w, []map[string]any{})
			return
		}
		writeJSON(t, w, []map[string]any{
			{"id": 9001, "number": 3, "title": "Add retry", "state": "open", "html_url": "https://github.com/acme/api/pull/3",
				"user": map[string]any{"login": "bob"}, "updated_at": "2026-01-01T00:00:00Z"},
		})
	})
	x.github = httptest.NewServer(gh)
	t.Cleanup(x.github.Close)

	ado := http.NewServeMux()
	ado.HandleFunc("GET /acme/teamA/_apis/build/definitions", func(w http.ResponseWriter, r *http.Request) {
		x.defCalls.Add(1)
		writeJSON(t, w, map[string]any{"count": 1, "value": []map[string]any{
			{"id": 7, "name": "api-ci", "path": `\`},
		}})
	})
	ado.HandleFunc("GET /acme/teamA/_apis/build/definitions/7", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"id": 7, "repository": map[string]any{"url": "https://github.com/acme/api.git"}})
	})
	ado.HandleFunc("GET /acme/teamA/_apis/build/builds", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"count": 0, "value": []any{}})
	})
	x.azure = httptest.NewServer(ado)
	t.Cleanup(x.azure.Close)

	return x
}

func TestCommands(t *testing.T) {
	r := newRemotes(t)
	dbPath := filepath.Join(t.TempDir(), "devlink.db")
	workFolder := t.TempDir()
	testutil.InitClone(t, filepath.Join(workFolder, "api"), "git@github.com:acme/api.git")

	// positional arguments go last, after the flags
	run := func(t *testing.T, command []string, args ...string) []byte {
		t.Helper()
		var out bytes.Buffer
		argv := append([]string{"devlink"}, command...)
		argv = append(argv,
			"--json",
			"--store-path", dbPath,
			"--work-folder", workFolder,
			"--github-token", "test-token",
			"--github-owner", "alice",
			"--github-base-url", r.github.URL,
			"--azure-devops-token", "pat",
			"--azure-devops-base-url", r.azure.URL,
			"--azure-devops-organization", "acme",
			"--azure-devops-project", "teamA",
		)
		argv = append(argv, args...)
		gt.NoError(t, cli.New(cli.WithWriter(&out)).Run(argv))
		return out.Bytes()
	}

	var views []map[string]any

	t.Run("repos list fetches once across runs", func(t *testing.T) {
		gt.NoError(t, json.Unmarshal(run(t, []string{"repos", "list"}), &views))
		gt.V(t, len(views)).Equal(2)
		gt.V(t, views[0]["title"]).Equal("acme/api")

		gt.NoError(t, json.Unmarshal(run(t, []string{"repos", "list"}), &views))
		gt.V(t, len(views)).Equal(2)
		gt.V(t, r.repoCalls.Load()).Equal(int32(1))
	})

	t.Run("repos link", func(t *testing.T) {
		var report struct {
			Scanned int `json:"scanned"`
			Linked  []struct {
				FullName  string `json:"full_name"`
				LocalPath string `json:"local_path"`
			} `json:"linked"`
			Cleared int `json:"cleared"`
		}
		gt.NoError(t, json.Unmarshal(run(t, []string{"repos", "link"}), &report))
		gt.V(t, report.Scanned).Equal(1)
		gt.V(t, len(report.Linked)).Equal(1)
		gt.V(t, report.Linked[0].FullName).Equal("acme/api")

		gt.NoError(t, json.Unmarshal(run(t, []string{"repos", "list"}), &views))
		gt.V(t, views[0]["linked"]).Equal(true)
		gt.V(t, views[0]["local_path"]).Equal(filepath.Join(workFolder, "api"))
	})

	t.Run("pipelines", func(t *testing.T) {
		gt.NoError(t, json.Unmarshal(run(t, []string{"pipelines", "list"}), &views))
		gt.V(t, len(views)).Equal(1)
		gt.V(t, views[0]["subtitle"]).Equal("ID: 7")

		gt.NoError(t, json.Unmarshal(run(t, []string{"repos", "pipelines"}, "acme/api"), &views))
		gt.V(t, len(views)).Equal(1)
		gt.V(t, r.defCalls.Load()).Equal(int32(1))

		gt.NoError(t, json.Unmarshal(run(t, []string{"pipelines", "refresh"}), &views))
		gt.V(t, r.defCalls.Load()).Equal(int32(2))
	})

	t.Run("pull requests", func(t *testing.T) {
		gt.NoError(t, json.Unmarshal(run(t, []string{"repos", "prs"}, "https://github.com/acme/api"), &views))
		gt.V(t, len(views)).Equal(1)
		gt.V(t, views[0]["title"]).Equal("acme/api #3")

		gt.NoError(t, json.Unmarshal(run(t, []string{"prs", "list"}), &views))
		gt.V(t, len(views)).Equal(1)
	})
}

func TestTextOutput(t *testing.T) {
	r := newRemotes(t)
	var out bytes.Buffer
	err := cli.New(cli.WithWriter(&out)).Run([]string{"devlink", "pipelines", "list",
		"--store", "memory",
		"--azure-devops-token", "pat",
		"--azure-devops-base-url", r.azure.URL,
		"--azure-devops-organization", "acme",
		"--azure-devops-project", "teamA",
	})
	gt.NoError(t, err)
	gt.S(t, out.String()).Contains("Last updated: ")
	gt.S(t, out.String()).Contains("api-ci")
	gt.S(t, out.String()).Contains("https://dev.azure.com/acme/teamA/_build?definitionId=7")
}

func TestMissingConfiguration(t *testing.T) {
	var out bytes.Buffer
	err := cli.New(cli.WithWriter(&out)).Run([]string{"devlink", "pipelines", "list", "--store", "memory"})
	gt.Error(t, err)
}
