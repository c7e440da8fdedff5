package config

import (
	"log/slog"

	"github.com/secmon-lab/devlink/pkg/domain/model"
	"github.com/secmon-lab/devlink/pkg/domain/types"
	"github.com/secmon-lab/devlink/pkg/infra/azdo"
	"github.com/urfave/cli/v3"
)

type AzureDevOps struct {
	token        types.AzureDevOpsToken `masq:"secret"`
	organization string
	project      string
	paths        []string
	baseURL      string
}

func (x *AzureDevOps) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "azure-devops-token",
			Usage:       "Azure DevOps personal access token",
			Category:    "Azure DevOps",
			Destination: (*string)(&x.token),
			Sources:     cli.EnvVars("DEVLINK_AZURE_DEVOPS_TOKEN", "AZURE_DEVOPS_EXT_PAT"),
		},
		&cli.StringFlag{
			Name:        "azure-devops-organization",
			Usage:       "Azure DevOps organization",
			Category:    "Azure DevOps",
			Destination: &x.organization,
			Sources:     cli.EnvVars("DEVLINK_AZURE_DEVOPS_ORGANIZATION"),
		},
		&cli.StringFlag{
			Name:        "azure-devops-project",
			Usage:       "Azure DevOps project",
			Category:    "Azure DevOps",
			Destination: &x.project,
			Sources:     cli.EnvVars("DEVLINK_AZURE_DEVOPS_PROJECT"),
		},
		&cli.StringSliceFlag{
			Name:        "azure-devops-path",
			Usage:       `Only keep pipelines in these folders, e.g. \Backend`,
			Category:    "Azure DevOps",
			Destination: &x.paths,
			Sources:     cli.EnvVars("DEVLINK_AZURE_DEVOPS_PATHS"),
		},
		&cli.StringFlag{
			Name:        "azure-devops-base-url",
			Usage:       "Azure DevOps base URL",
			Category:    "Azure DevOps",
			Value:       azdo.DefaultBaseURL,
			Destination: &x.baseURL,
			Sources:     cli.EnvVars("DEVLINK_AZURE_DEVOPS_BASE_URL"),
		},
	}
}

func (x *AzureDevOps) Scope() model.ProjectScope {
	return model.ProjectScope{Organization: x.organization, Project: x.project}
}

// New builds the Azure DevOps client. It returns nil when no token is set.
func (x *AzureDevOps) New() (*azdo.Client, error) {
	if x.token == "" {
		return nil, nil
	}
	opts := []azdo.Option{azdo.WithBaseURL(x.baseURL)}
	if len(x.paths) > 0 {
		opts = append(opts, azdo.WithPaths(x.paths...))
	}
	return azdo.New(x.token, opts...)
}

func (x AzureDevOps) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("token.len", len(x.token)),
		slog.String("organization", x.organization),
		slog.String("project", x.project),
		slog.Any("paths", x.paths),
		slog.String("baseURL", x.baseURL),
	)
}
