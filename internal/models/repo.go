package models

// RepoEntry is one item of a remote repository's root listing, reduced to
// the fields trigger matching cares about.
type RepoEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"` // "file" or "dir"
	Size int64  `json:"size"`
}
