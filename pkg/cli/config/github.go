package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/devlink/pkg/domain/types"
	"github.com/secmon-lab/devlink/pkg/infra/ghapp"
	"github.com/urfave/cli/v3"
)

// GitHub selects token or App authentication and the discovery filters.
type GitHub struct {
	token        types.GitHubToken `masq:"secret"`
	appID        types.GitHubAppID
	installID    types.GitHubAppInstallID
	privateKey   types.GitHubAppPrivateKey `masq:"secret"`
	organization string
	teams        []string
	topics       []string
	owner        string
	baseURL      string
}

func (x *GitHub) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "github-token",
			Usage:       "GitHub personal access token",
			Category:    "GitHub",
			Destination: (*string)(&x.token),
			Sources:     cli.EnvVars("DEVLINK_GITHUB_TOKEN", "GITHUB_TOKEN"),
		},
		&cli.Int64Flag{
			Name:        "github-app-id",
			Usage:       "GitHub App ID, used when no token is given",
			Category:    "GitHub",
			Destination: (*int64)(&x.appID),
			Sources:     cli.EnvVars("DEVLINK_GITHUB_APP_ID"),
		},
		&cli.Int64Flag{
			Name:        "github-app-install-id",
			Usage:       "GitHub App installation ID",
			Category:    "GitHub",
			Destination: (*int64)(&x.installID),
			Sources:     cli.EnvVars("DEVLINK_GITHUB_APP_INSTALL_ID"),
		},
		&cli.StringFlag{
			Name:        "github-app-private-key",
			Usage:       "GitHub App private key (PEM)",
			Category:    "GitHub",
			Destination: (*string)(&x.privateKey),
			Sources:     cli.EnvVars("DEVLINK_GITHUB_APP_PRIVATE_KEY"),
		},
		&cli.StringFlag{
			Name:        "github-organization",
			Usage:       "Only discover repositories of this organization",
			Category:    "GitHub",
			Destination: &x.organization,
			Sources:     cli.EnvVars("DEVLINK_GITHUB_ORGANIZATION"),
		},
		&cli.StringSliceFlag{
			Name:        "github-team",
			Usage:       "Only discover repositories of these teams (name or slug)",
			Category:    "GitHub",
			Destination: &x.teams,
			Sources:     cli.EnvVars("DEVLINK_GITHUB_TEAMS"),
		},
		&cli.StringSliceFlag{
			Name:        "github-topic",
			Usage:       "Only keep repositories with one of these topics",
			Category:    "GitHub",
			Destination: &x.topics,
			Sources:     cli.EnvVars("DEVLINK_GITHUB_TOPICS"),
		},
		&cli.StringFlag{
			Name:        "github-owner",
			Usage:       "Cache owner login. Defaults to the authenticated user",
			Category:    "GitHub",
			Destination: &x.owner,
			Sources:     cli.EnvVars("DEVLINK_GITHUB_OWNER"),
		},
		&cli.StringFlag{
			Name:        "github-base-url",
			Usage:       "GitHub API base URL for GitHub Enterprise",
			Category:    "GitHub",
			Destination: &x.baseURL,
			Sources:     cli.EnvVars("DEVLINK_GITHUB_BASE_URL"),
		},
	}
}

// Configured reports whether any credential was given.
func (x *GitHub) Configured() bool {
	return x.token != "" || x.appID != 0
}

// Owner is the explicitly configured owner, possibly empty.
func (x *GitHub) Owner() string {
	return x.owner
}

// Token is used for authenticated https clones.
func (x *GitHub) Token() types.GitHubToken {
	return x.token
}

// New builds the GitHub client. It returns nil when GitHub is not configured.
func (x *GitHub) New() (*ghapp.Client, error) {
	if !x.Configured() {
		return nil, nil
	}

	var opts []ghapp.Option
	if x.organization != "" {
		opts = append(opts, ghapp.WithOrganization(x.organization))
	}
	if len(x.teams) > 0 {
		opts = append(opts, ghapp.WithTeams(x.teams...))
	}
	if len(x.topics) > 0 {
		opts = append(opts, ghapp.WithTopics(x.topics...))
	}
	if x.owner != "" {
		opts = append(opts, ghapp.WithOwner(x.owner))
	}
	if x.baseURL != "" {
		opts = append(opts, ghapp.WithBaseURL(x.baseURL))
	}

	if x.token != "" {
		return ghapp.NewWithToken(x.token, opts...)
	}
	if x.owner == "" {
		return nil, goerr.Wrap(types.ErrInvalidOption, "github-owner is required with GitHub App authentication")
	}
	return ghapp.New(x.appID, x.installID, x.privateKey, opts...)
}

func (x GitHub) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("token.len", len(x.token)),
		slog.Int64("appID", int64(x.appID)),
		slog.Int64("installID", int64(x.installID)),
		slog.Int("privateKey.len", len(x.privateKey)),
		slog.String("organization", x.organization),
		slog.Any("teams", x.teams),
		slog.Any("topics", x.topics),
		slog.String("owner", x.owner),
		slog.String("baseURL", x.baseURL),
	)
}
