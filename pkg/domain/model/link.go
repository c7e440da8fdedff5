package model

// LinkReport summarizes one scan of a work folder.
type LinkReport struct {
	Scanned int            `json:"scanned"`
	Linked  []LinkedClone  `json:"linked"`
	Skipped []SkippedClone `json:"skipped,omitempty"`
}

type LinkedClone struct {
	RepositoryID int64  `json:"repository_id"`
	FullName     string `json:"full_name"`
	LocalPath    string `json:"local_path"`
}

// SkippedClone is a directory that could not be probed or matched.
type SkippedClone struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}
