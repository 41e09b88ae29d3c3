package domain

// LocalRepository describes one on-disk clone
type LocalRepository struct {
	Name   string
	Path   string
	URL    string
	Branch string

	// Head is the checked out commit hash, empty when nothing is cloned yet
	Head string
	// Tags lists the tag names that point at Head
	Tags []string
}

// Exists reports whether the repository has a checked out commit
func (r LocalRepository) Exists() bool {
	return r.Head != ""
}
