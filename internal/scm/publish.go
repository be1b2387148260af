package scm

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/pders01/repour/internal/config"
	"github.com/pders01/repour/internal/git"
	"github.com/pders01/repour/internal/models"
)

const (
	// TagPrefix starts every content-derived tag name
	TagPrefix = "repour-"
	// TempBranchPrefix starts the branch a capture is committed on
	TempBranchPrefix = "repour_commitid_search_temp_branch_"
	// shortIDLen is how much of a commit id goes into a tag suffix
	shortIDLen = 8
)

// Options describes one capture request
type Options struct {
	Operation   models.Operation
	Description string
	// Orphan commits on a branch without history so the commit id depends
	// on the tree alone
	Orphan bool
	// NoChangeOK accepts an unchanged tree instead of failing
	NoChangeOK bool
	// ForceContinueOnNoChanges tags the unchanged HEAD instead of returning
	// no result. Only meaningful with NoChangeOK.
	ForceContinueOnNoChanges bool
	// RealCommitTime commits at the current time and looks up previous
	// captures by tree hash instead of by commit id
	RealCommitTime bool
	// TagName replaces the content-derived tag name. Collision rules still apply.
	TagName string
	// Flatten turns submodules into ordinary files before capturing
	Flatten bool

	// flattened marks HEAD as the flatten commit, which is tagged when the
	// capture commit finds nothing new
	flattened bool
}

// Publisher commits, tags and pushes working trees
type Publisher struct {
	cfg      *config.Config
	logger   *log.Logger
	branchID func() (string, error)
}

// NewPublisher creates a Publisher using cfg for identity, tag policy and push credentials
func NewPublisher(cfg *config.Config, logger *log.Logger) *Publisher {
	return &Publisher{
		cfg:      cfg,
		logger:   logger,
		branchID: timeBasedID,
	}
}

// timeBasedID returns a version 1 UUID: time plus node, unique across
// concurrent captures against the same repository
func timeBasedID() (string, error) {
	id, err := uuid.NewUUID()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// PushNewDedupBranch captures the working tree on a fresh temporary branch and
// returns the tag that references it. A prior capture with the same content is
// reused when possible. A nil result with a nil error means nothing new was captured.
func (p *Publisher) PushNewDedupBranch(ctx context.Context, repo Repository, url models.RepositoryURL, opts Options) (*models.SnapshotResult, error) {
	logger := p.logger.With("dir", repo.Dir())
	if opts.Operation != "" {
		logger = logger.With("operation", opts.Operation)
	}

	if err := setupCommitter(ctx, repo, p.cfg.Identity); err != nil {
		return nil, err
	}

	id, err := p.branchID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate branch id: %w", err)
	}
	tempBranch := TempBranchPrefix + id

	if err := repo.CreateBranchCheckout(ctx, tempBranch, opts.Orphan); err != nil {
		return nil, err
	}
	if err := repo.AddAll(ctx); err != nil {
		return nil, err
	}

	branch, err := repo.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("Prepared capture branch", "branch", branch, "orphan", opts.Orphan)

	var tagName, commit string

	if opts.RealCommitTime {
		// The index holds everything after AddAll, so this is the tree a
		// commit would record
		tree, err := repo.WriteTree(ctx)
		if err != nil {
			return nil, err
		}

		tagName, err = repo.TagFromTreeSHA(ctx, tree)
		if err != nil {
			return nil, err
		}

		if tagName != "" {
			if !opts.NoChangeOK {
				return nil, newError(KindAlreadyCaptured, 0,
					fmt.Sprintf("tree %s is already captured by tag %s", tree, tagName), nil)
			}
			commit, err = repo.CommitFromTag(ctx, tagName)
			if err != nil {
				return nil, err
			}
		}
	}

	if tagName == "" {
		logger.Info("No existing capture of this content, creating commit and tag")
		tagName, commit, err = p.CommitPushTag(ctx, repo, opts)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Info("Reusing existing capture", "tag", tagName, "commit", commit)
		// The tag may exist locally but not yet upstream, for example when
		// the working tree was synced from another mirror
		if err := repo.PushWithTags(ctx, tagName, p.cfg.GitUsername); err != nil {
			return nil, newError(KindTransport, ExitCodeFailed, "failed to push existing tag "+tagName, err)
		}
	}

	if tagName == "" {
		logger.Info("Nothing new was captured")
		return nil, nil
	}

	return &models.SnapshotResult{
		Tag:    tagName,
		Commit: commit,
		URL:    url,
	}, nil
}

// CommitPushTag commits the staged tree, tags the commit and pushes all tags.
// It returns the tag name and commit id, or two empty strings when no tag
// was produced and the options allow that.
func (p *Publisher) CommitPushTag(ctx context.Context, repo Repository, opts Options) (string, string, error) {
	logger := p.logger.With("dir", repo.Dir())

	var commitID string
	var err error
	if opts.RealCommitTime {
		commitID, err = normalDateCommit(ctx, repo, CommitMessage)
	} else {
		commitID, err = fixedDateCommit(ctx, repo, CommitMessage)
	}

	noChangeOK := opts.NoChangeOK || opts.flattened
	forceContinue := opts.ForceContinueOnNoChanges || opts.flattened

	noChange := false
	if err != nil {
		if !errors.Is(err, git.ErrNoChanges) {
			return "", "", err
		}
		if !noChangeOK {
			return "", "", newError(KindNoChange, 0, "no changes to capture", err)
		}
		noChange = true
		commitID, err = repo.HeadCommit(ctx)
		if err != nil {
			return "", "", err
		}
		logger.Info("No changes to commit, using current HEAD", "commit", commitID)
	}

	tagName, reuse, err := p.resolveTagName(ctx, repo, opts.TagName, commitID)
	if err != nil {
		return "", "", err
	}

	if noChange && !reuse && !forceContinue {
		return "", "", nil
	}

	if !reuse {
		if err := repo.TagAnnotated(ctx, tagName, opts.Description, false); err != nil {
			if !errors.Is(err, git.ErrTagExists) {
				return "", "", err
			}
			if noChangeOK && forceContinue {
				logger.Info("Tag already exists, continuing without a new tag", "tag", tagName)
				return "", "", nil
			}
			return "", "", newError(KindTagConflict, 0, "tag "+tagName+" already exists", err)
		}
	}

	// Tag names derive from content, so pushing an existing tag and commit
	// again costs a round trip and uploads nothing
	if err := repo.PushWithTags(ctx, "", p.cfg.GitUsername); err != nil {
		return "", "", newError(KindTransport, ExitCodeFailed, "failed to push tag "+tagName, err)
	}

	logger.Info("Pushed to repo", "tag", tagName, "commit", commitID)
	return tagName, commitID, nil
}

// resolveTagName picks the tag name for commitID. reuse is true when a tag of
// that name already points at commitID.
func (p *Publisher) resolveTagName(ctx context.Context, repo Repository, requested, commitID string) (string, bool, error) {
	name := requested
	if name == "" {
		name = TagPrefix + commitID
	}
	suffixed := name + "-" + shortID(commitID)

	taken, sameCommit, err := tagTarget(ctx, repo, name, commitID)
	if err != nil {
		return "", false, err
	}

	switch {
	case sameCommit:
		return name, true, nil
	case taken:
		p.logger.Info("Tag already exists, adding commit suffix", "tag", name, "new", suffixed)
		name = suffixed
	case !p.cfg.IsProduction():
		// Keeps a test deployment from colliding with tags synced from production
		p.logger.Info("Devel mode, adding commit suffix", "tag", name, "new", suffixed)
		name = suffixed
	default:
		return name, false, nil
	}

	_, sameCommit, err = tagTarget(ctx, repo, name, commitID)
	if err != nil {
		return "", false, err
	}
	return name, sameCommit, nil
}

// tagTarget reports whether tag exists and whether it points at commitID
func tagTarget(ctx context.Context, repo Repository, tag, commitID string) (bool, bool, error) {
	exists, err := repo.IsTag(ctx, tag)
	if err != nil || !exists {
		return false, false, err
	}
	target, err := repo.CommitFromTag(ctx, tag)
	if err != nil {
		return true, false, err
	}
	return true, target == commitID, nil
}

func shortID(commitID string) string {
	if len(commitID) <= shortIDLen {
		return commitID
	}
	return commitID[:shortIDLen]
}
