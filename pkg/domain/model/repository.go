package model

import (
	"time"

	"github.com/secmon-lab/devlink/pkg/domain/types"
)

// RemoteRepository is a GitHub repository as cached for one owner scope.
type RemoteRepository struct {
	ID          types.GitHubRepoID
	Name        string
	FullName    string
	Description string
	HTMLURL     string
	Private     bool
	Stars       int
	Language    string
	Owner       string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// LastFetchedAt is assigned by the store on upsert.
	LastFetchedAt time.Time

	// LocalPath is owned by the linker. Empty means not linked.
	LocalPath string
}

func (x *RemoteRepository) Linked() bool {
	return x.LocalPath != ""
}

// Visibility returns "Private" or "Public".
func (x *RemoteRepository) Visibility() string {
	if x.Private {
		return "Private"
	}
	return "Public"
}

func (x *RemoteRepository) Validate() error {
	if x.ID == 0 {
		return goerrValidation("repository ID is empty", "fullName", x.FullName)
	}
	if x.FullName == "" {
		return goerrValidation("repository full name is empty", "id", x.ID)
	}
	return nil
}
