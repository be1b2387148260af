package scm

import (
	"context"
	"fmt"
	"time"

	"github.com/pders01/repour/internal/config"
)

// CommitMessage is the message of every capture commit
const CommitMessage = "Repour"

// FixedDate pins author and committer timestamps so identical trees produce
// identical commit ids
var FixedDate = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// setupCommitter applies the configured identity to the working tree
func setupCommitter(ctx context.Context, repo Repository, id config.Identity) error {
	if err := repo.SetIdentity(ctx, id.Name, id.Email); err != nil {
		return fmt.Errorf("failed to set up committer: %w", err)
	}
	return nil
}

// fixedDateCommit commits the staged tree at FixedDate
func fixedDateCommit(ctx context.Context, repo Repository, message string) (string, error) {
	date := FixedDate
	return repo.Commit(ctx, message, &date)
}

// normalDateCommit commits the staged tree at the current time
func normalDateCommit(ctx context.Context, repo Repository, message string) (string, error) {
	return repo.Commit(ctx, message, nil)
}
