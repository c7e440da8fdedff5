package model

import (
	"fmt"
	"net/url"
	"time"

	"github.com/secmon-lab/devlink/pkg/domain/types"
)

// Pipeline is an Azure DevOps build definition. ID is unique only within
// Organization and Project.
type Pipeline struct {
	ID            types.PipelineID
	Name          string
	Path          string
	RepositoryURL string
	Organization  string
	Project       string
	QueueStatus   string

	LastBuildID     *types.BuildID
	LastBuildNumber string
	LastBuildStatus string
	LastBuildResult string

	LastFetchedAt time.Time
}

const azureDevOpsWebBase = "https://dev.azure.com"

// WebURL is the pipeline definition page.
func (x *Pipeline) WebURL() string {
	return fmt.Sprintf("%s/%s/%s/_build?definitionId=%d", azureDevOpsWebBase,
		url.PathEscape(x.Organization), url.PathEscape(x.Project), x.ID)
}

// LastRunURL is the results page of the latest build, or empty when no build is known.
func (x *Pipeline) LastRunURL() string {
	if x.LastBuildID == nil {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s/_build/results?buildId=%d", azureDevOpsWebBase,
		url.PathEscape(x.Organization), url.PathEscape(x.Project), *x.LastBuildID)
}

func (x *Pipeline) Validate() error {
	if x.ID == 0 {
		return goerrValidation("pipeline ID is empty", "name", x.Name)
	}
	return nil
}
