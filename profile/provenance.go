package profile

import (
	"fmt"

	"github.com/go-git/go-git/v5"
)

// readHeadCommit returns the short hash of HEAD in the repository rooted at
// dir, for stamping profile cache files with the commit they were learned
// under. A non-repository dir or any git error is reported rather than
// panicking, since provenance is an optional enrichment, not a requirement
// for the store to function.
func readHeadCommit(dir string) (string, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return "", fmt.Errorf("profile: open repo at %s: %w", dir, err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("profile: read HEAD at %s: %w", dir, err)
	}
	hash := head.Hash().String()
	if len(hash) > 12 {
		hash = hash[:12]
	}
	return hash, nil
}

// HeadCommit is the exported form of readHeadCommit, used by
// Store.InsertOrUpdate to stamp a newly created entry with provenance. It
// returns ok=false rather than an error when none is available, since a
// missing or unreadable repository should never block profile operations.
func HeadCommit(dir string) (commit string, ok bool) {
	hash, err := readHeadCommit(dir)
	if err != nil {
		return "", false
	}
	return hash, true
}
