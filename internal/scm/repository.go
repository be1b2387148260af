package scm

import (
	"context"
	"time"

	"github.com/pders01/repour/internal/git"
)

// Repository is the set of git primitives a capture needs, bound to one
// working tree. *git.Repo implements it.
type Repository interface {
	Dir() string

	SetIdentity(ctx context.Context, name, email string) error
	Commit(ctx context.Context, message string, date *time.Time) (string, error)
	HeadCommit(ctx context.Context) (string, error)
	CurrentBranch(ctx context.Context) (string, error)
	CreateBranchCheckout(ctx context.Context, branch string, orphan bool) error

	AddAll(ctx context.Context) error
	AddPath(ctx context.Context, path string) error
	Remove(ctx context.Context, path string, cached bool) error
	WriteTree(ctx context.Context) (string, error)

	TagFromTreeSHA(ctx context.Context, treeSHA string) (string, error)
	CommitFromTag(ctx context.Context, tag string) (string, error)
	IsTag(ctx context.Context, name string) (bool, error)
	TagAnnotated(ctx context.Context, name, message string, okIfExists bool) error
	PushWithTags(ctx context.Context, ref, user string) error

	SubmoduleUpdateInit(ctx context.Context) error
	RemoveVCSMarker(ctx context.Context, path string) error
}

var _ Repository = (*git.Repo)(nil)
