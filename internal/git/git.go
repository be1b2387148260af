package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// VCSMarker is the entry that makes a directory a git repository (a directory) or
// a submodule checkout (a file pointing at the superproject's modules dir).
const VCSMarker = ".git"

// DefaultRemote is the remote every push goes to
const DefaultRemote = "origin"

// dateFormat is the layout git accepts in GIT_AUTHOR_DATE and GIT_COMMITTER_DATE
const dateFormat = "2006-01-02 15:04:05 -0700"

var (
	// ErrNoChanges is reported when a commit has nothing staged to record.
	ErrNoChanges = errors.New("no changes to commit")
	// ErrTagExists is reported when a tag name is already taken.
	ErrTagExists = errors.New("tag already exists")
)

// CommandError describes a failed git invocation.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s failed (exit code %d)", strings.Join(e.Args, " "), e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Repo runs git commands against a single working tree
type Repo struct {
	dir string
}

// Open returns a Repo for the working tree at dir
func Open(dir string) *Repo {
	return &Repo{dir: dir}
}

// Dir returns the working tree path
func (r *Repo) Dir() string {
	return r.dir
}

// run executes git with args in the working tree and returns trimmed stdout.
func (r *Repo) run(ctx context.Context, env []string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.dir
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		stderrText := strings.TrimSpace(stderr.String())
		if stderrText == "" {
			// git commit reports "nothing to commit" on stdout
			stderrText = strings.TrimSpace(stdout.String())
		}
		return "", &CommandError{
			Args:     args,
			ExitCode: exitCode,
			Stderr:   stderrText,
			Err:      err,
		}
	}

	return strings.TrimSpace(stdout.String()), nil
}

// IsRepo checks if the working tree is inside a git repository
func (r *Repo) IsRepo(ctx context.Context) bool {
	_, err := r.run(ctx, nil, "rev-parse", "--git-dir")
	return err == nil
}

// SetIdentity configures the committer name and email for this repository
func (r *Repo) SetIdentity(ctx context.Context, name, email string) error {
	if _, err := r.run(ctx, nil, "config", "user.name", name); err != nil {
		return fmt.Errorf("failed to configure git user.name to %q: %w", name, err)
	}
	if _, err := r.run(ctx, nil, "config", "user.email", email); err != nil {
		return fmt.Errorf("failed to configure git user.email to %q: %w", email, err)
	}
	return nil
}

// Commit records the staged tree and returns the new HEAD commit id.
// A non-nil date pins both author and committer timestamps.
func (r *Repo) Commit(ctx context.Context, message string, date *time.Time) (string, error) {
	var env []string
	if date != nil {
		stamp := date.Format(dateFormat)
		env = []string{
			"GIT_AUTHOR_DATE=" + stamp,
			"GIT_COMMITTER_DATE=" + stamp,
		}
	}

	if _, err := r.run(ctx, env, "commit", "--no-verify", "-m", message); err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) && cmdErr.ExitCode == 1 {
			cmdErr.Err = ErrNoChanges
		}
		return "", fmt.Errorf("failed to commit: %w", err)
	}

	return r.HeadCommit(ctx)
}

// RevParse resolves a revision to its full object id
func (r *Repo) RevParse(ctx context.Context, rev string) (string, error) {
	out, err := r.run(ctx, nil, "rev-parse", "--verify", rev)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", rev, err)
	}
	return out, nil
}

// HeadCommit returns the current commit hash
func (r *Repo) HeadCommit(ctx context.Context) (string, error) {
	return r.RevParse(ctx, "HEAD")
}

// CurrentBranch returns the current branch name
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	out, err := r.run(ctx, nil, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		// An orphan branch has no commit yet, ask symbolic-ref instead
		out, err = r.run(ctx, nil, "symbolic-ref", "--short", "HEAD")
		if err != nil {
			return "", fmt.Errorf("failed to get current branch: %w", err)
		}
	}
	return out, nil
}

// CreateBranchCheckout creates a branch and checks it out. An orphan branch starts
// with no history but keeps the working tree and index.
func (r *Repo) CreateBranchCheckout(ctx context.Context, branch string, orphan bool) error {
	flag := "-b"
	if orphan {
		flag = "--orphan"
	}
	if _, err := r.run(ctx, nil, "checkout", flag, branch); err != nil {
		return fmt.Errorf("failed to create and checkout branch %s: %w", branch, err)
	}
	return nil
}

// DeleteBranch force deletes a local branch
func (r *Repo) DeleteBranch(ctx context.Context, branch string) error {
	if _, err := r.run(ctx, nil, "branch", "-D", branch); err != nil {
		return fmt.Errorf("failed to delete branch %s: %w", branch, err)
	}
	return nil
}

// ListBranches lists local branches matching pattern, sorted by name
func (r *Repo) ListBranches(ctx context.Context, pattern string) ([]string, error) {
	out, err := r.run(ctx, nil, "for-each-ref", "--sort=refname", "--format=%(refname:short)", "refs/heads/"+pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}

	var branches []string
	for _, line := range strings.Split(out, "\n") {
		if line != "" {
			branches = append(branches, line)
		}
	}
	return branches, nil
}

// AddAll stages every change in the working tree, deletions included
func (r *Repo) AddAll(ctx context.Context) error {
	if _, err := r.run(ctx, nil, "add", "-A"); err != nil {
		return fmt.Errorf("failed to add files: %w", err)
	}
	return nil
}

// AddPath stages a single file or directory
func (r *Repo) AddPath(ctx context.Context, path string) error {
	if _, err := r.run(ctx, nil, "add", "--", path); err != nil {
		return fmt.Errorf("failed to add %s: %w", path, err)
	}
	return nil
}

// Remove removes a path from the index. With cached the files stay on disk.
func (r *Repo) Remove(ctx context.Context, path string, cached bool) error {
	args := []string{"rm", "-r", "-q"}
	if cached {
		args = append(args, "--cached")
	}
	args = append(args, "--", path)
	if _, err := r.run(ctx, nil, args...); err != nil {
		return fmt.Errorf("failed to remove %s from index: %w", path, err)
	}
	return nil
}

// WriteTree writes the index as a tree object and returns its hash
func (r *Repo) WriteTree(ctx context.Context) (string, error) {
	out, err := r.run(ctx, nil, "write-tree")
	if err != nil {
		return "", fmt.Errorf("failed to write tree: %w", err)
	}
	return out, nil
}

// TagFromTreeSHA returns the first tag whose commit has the given tree hash,
// or an empty string when no tag matches.
func (r *Repo) TagFromTreeSHA(ctx context.Context, treeSHA string) (string, error) {
	tags, err := r.ListTags(ctx, "")
	if err != nil {
		return "", err
	}
	for _, tag := range tags {
		if tag.Tree == treeSHA {
			return tag.Name, nil
		}
	}
	return "", nil
}

// Tag is a tag together with the commit and tree it resolves to
type Tag struct {
	Name    string `json:"name"`
	Commit  string `json:"commit"`
	Tree    string `json:"tree"`
	Subject string `json:"subject,omitempty"`
}

// ListTags returns tags sorted by name. A non-empty pattern narrows the
// listing to refs/tags/<pattern>.
func (r *Repo) ListTags(ctx context.Context, pattern string) ([]Tag, error) {
	ref := "refs/tags"
	if pattern != "" {
		ref = "refs/tags/" + pattern
	}

	// Annotated tags are dereferenced with *, lightweight tags are not
	format := "%(refname:short)%00%(*objectname)%00%(objectname)%00%(*tree)%00%(tree)%00%(contents:subject)"
	out, err := r.run(ctx, nil, "for-each-ref", "--sort=refname", "--format="+format, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}

	var tags []Tag
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\x00")
		if len(fields) < 6 {
			continue
		}
		tag := Tag{
			Name:    fields[0],
			Commit:  fields[1],
			Tree:    fields[3],
			Subject: fields[5],
		}
		if tag.Commit == "" {
			tag.Commit = fields[2]
		}
		if tag.Tree == "" {
			tag.Tree = fields[4]
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// CommitFromTag returns the commit a tag points to
func (r *Repo) CommitFromTag(ctx context.Context, tag string) (string, error) {
	out, err := r.run(ctx, nil, "rev-parse", "--verify", "refs/tags/"+tag+"^{commit}")
	if err != nil {
		return "", fmt.Errorf("failed to resolve tag %s: %w", tag, err)
	}
	return out, nil
}

// IsTag checks if a tag exists
func (r *Repo) IsTag(ctx context.Context, name string) (bool, error) {
	_, err := r.run(ctx, nil, "show-ref", "--verify", "--quiet", "refs/tags/"+name)
	if err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) && cmdErr.ExitCode == 1 {
			return false, nil
		}
		return false, fmt.Errorf("failed to check tag %s: %w", name, err)
	}
	return true, nil
}

// TagAnnotated creates an annotated tag on HEAD. With okIfExists an existing
// tag of the same name is left alone and no error is returned.
func (r *Repo) TagAnnotated(ctx context.Context, name, message string, okIfExists bool) error {
	_, err := r.run(ctx, nil, "tag", "-a", name, "-m", message)
	if err == nil {
		return nil
	}

	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && strings.Contains(cmdErr.Stderr, "already exists") {
		if okIfExists {
			return nil
		}
		cmdErr.Err = ErrTagExists
	}
	return fmt.Errorf("failed to create tag %s: %w", name, err)
}

// PushWithTags pushes all tags to origin, plus ref when given. A non-empty user
// selects the credential used for the remote.
func (r *Repo) PushWithTags(ctx context.Context, ref, user string) error {
	var args []string
	if user != "" {
		args = append(args, "-c", "credential.username="+user)
	}
	args = append(args, "push", "--tags", DefaultRemote)
	if ref != "" {
		args = append(args, ref)
	}
	if _, err := r.run(ctx, nil, args...); err != nil {
		return fmt.Errorf("failed to push to %s: %w", DefaultRemote, err)
	}
	return nil
}

// SubmoduleUpdateInit checks out every submodule, recursively
func (r *Repo) SubmoduleUpdateInit(ctx context.Context) error {
	if _, err := r.run(ctx, nil, "submodule", "update", "--init", "--recursive"); err != nil {
		return fmt.Errorf("failed to update submodules: %w", err)
	}
	return nil
}

// RemoveVCSMarker deletes the .git entry under path so the directory stops being
// a repository boundary
func (r *Repo) RemoveVCSMarker(ctx context.Context, path string) error {
	marker := filepath.Join(r.dir, path, VCSMarker)
	if _, err := os.Lstat(marker); err != nil {
		return fmt.Errorf("failed to find %s in %s: %w", VCSMarker, path, err)
	}
	if err := os.RemoveAll(marker); err != nil {
		return fmt.Errorf("failed to remove %s in %s: %w", VCSMarker, path, err)
	}
	return nil
}
