package model

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/devlink/pkg/domain/types"
)

type ScopeKind string

const (
	ScopeKindRepository  ScopeKind = "repository"
	ScopeKindPullRequest ScopeKind = "pull_request"
	ScopeKindPipeline    ScopeKind = "pipeline"
)

// Scope identifies a partition of cached entities.
type Scope interface {
	Key() string
	Validate() error
}

// OwnerScope partitions repositories and pull requests by GitHub login.
type OwnerScope struct {
	Owner string
}

func (x OwnerScope) Key() string { return x.Owner }

func (x OwnerScope) Validate() error {
	if x.Owner == "" {
		return goerr.Wrap(types.ErrInvalidOption, "owner is empty")
	}
	return nil
}

// ProjectScope partitions pipelines by Azure DevOps organization and project.
type ProjectScope struct {
	Organization string
	Project      string
}

func (x ProjectScope) Key() string { return x.Organization + "/" + x.Project }

func (x ProjectScope) Validate() error {
	if x.Organization == "" {
		return goerr.Wrap(types.ErrInvalidOption, "organization is empty")
	}
	if x.Project == "" {
		return goerr.Wrap(types.ErrInvalidOption, "project is empty",
			goerr.V("organization", x.Organization))
	}
	return nil
}

func goerrValidation(msg, key string, value any) error {
	return goerr.Wrap(types.ErrValidationFailed, msg, goerr.V(key, value))
}
