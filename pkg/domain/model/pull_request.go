package model

import (
	"time"

	"github.com/secmon-lab/devlink/pkg/domain/types"
)

// PullRequest is an open pull request of a repository visible to an owner scope.
type PullRequest struct {
	ID                 types.PullRequestID
	Number             int
	Title              string
	HTMLURL            string
	State              string
	RepositoryName     string
	RepositoryFullName string
	Author             string
	Draft              bool
	Owner              string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	LastFetchedAt      time.Time
}

func (x *PullRequest) Validate() error {
	if x.ID == 0 {
		return goerrValidation("pull request ID is empty", "number", x.Number)
	}
	if x.RepositoryFullName == "" {
		return goerrValidation("pull request repository is empty", "id", x.ID)
	}
	return nil
}
