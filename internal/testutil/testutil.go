package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// TempGitRepo creates a temporary git repository for testing
type TempGitRepo struct {
	Path   string
	Remote string
	T      *testing.T
}

// NewTempGitRepo creates a new temporary git repository with one commit
func NewTempGitRepo(t *testing.T) *TempGitRepo {
	t.Helper()

	repo := NewEmptyGitRepo(t)

	repo.CreateFile("README.md", "# Test Repository\n")
	repo.Commit("Initial commit")

	return repo
}

// NewEmptyGitRepo creates a temporary git repository without any commit
func NewEmptyGitRepo(t *testing.T) *TempGitRepo {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "repour-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	repo := &TempGitRepo{
		Path: tmpDir,
		T:    t,
	}

	repo.Git("init", "-q", "-b", "main")

	// Configure git user (required for commits)
	repo.Git("config", "user.name", "Test User")
	repo.Git("config", "user.email", "test@example.com")
	repo.Git("config", "commit.gpgsign", "false")
	repo.Git("config", "tag.gpgsign", "false")

	return repo
}

// WithRemote creates a bare repository and registers it as origin
func (r *TempGitRepo) WithRemote() *TempGitRepo {
	r.T.Helper()

	remoteDir, err := os.MkdirTemp("", "repour-remote-*")
	if err != nil {
		r.T.Fatalf("failed to create remote dir: %v", err)
	}

	cmd := exec.Command("git", "init", "-q", "--bare")
	cmd.Dir = remoteDir
	if output, err := cmd.CombinedOutput(); err != nil {
		os.RemoveAll(remoteDir)
		r.T.Fatalf("failed to init bare remote: %v: %s", err, output)
	}

	r.Git("remote", "add", "origin", remoteDir)
	r.Remote = remoteDir
	return r
}

// Cleanup removes the temporary git repository and its remote
func (r *TempGitRepo) Cleanup() {
	r.T.Helper()
	if err := os.RemoveAll(r.Path); err != nil {
		r.T.Errorf("failed to cleanup temp repo: %v", err)
	}
	if r.Remote != "" {
		if err := os.RemoveAll(r.Remote); err != nil {
			r.T.Errorf("failed to cleanup remote: %v", err)
		}
	}
}

// Git runs a git command in the repository and returns trimmed stdout
func (r *TempGitRepo) Git(args ...string) string {
	r.T.Helper()
	return runGit(r.T, r.Path, args...)
}

// RemoteGit runs a git command in the bare remote
func (r *TempGitRepo) RemoteGit(args ...string) string {
	r.T.Helper()
	if r.Remote == "" {
		r.T.Fatalf("repository has no remote")
	}
	return runGit(r.T, r.Remote, args...)
}

// CreateFile creates a file in the repository
func (r *TempGitRepo) CreateFile(name, content string) {
	r.T.Helper()
	path := filepath.Join(r.Path, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		r.T.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		r.T.Fatalf("failed to create file: %v", err)
	}
}

// Commit stages and commits all changes
func (r *TempGitRepo) Commit(message string) {
	r.T.Helper()
	r.Git("add", "-A")
	r.Git("commit", "-q", "-m", message)
}

// Head returns the current commit id
func (r *TempGitRepo) Head() string {
	r.T.Helper()
	return r.Git("rev-parse", "HEAD")
}

// CommitCount returns the number of commits reachable from HEAD
func (r *TempGitRepo) CommitCount() string {
	r.T.Helper()
	return r.Git("rev-list", "--count", "HEAD")
}

// Tags returns all tag names in the repository
func (r *TempGitRepo) Tags() []string {
	r.T.Helper()
	return parseLines(r.Git("tag", "--list"))
}

// TrackedFiles returns every path in the index
func (r *TempGitRepo) TrackedFiles() []string {
	r.T.Helper()
	return parseLines(r.Git("ls-files"))
}

// FileExists checks if a file exists in a revision
func (r *TempGitRepo) FileExists(rev, file string) bool {
	r.T.Helper()

	cmd := exec.Command("git", "ls-tree", "-r", "--name-only", rev)
	cmd.Dir = r.Path
	output, err := cmd.Output()
	if err != nil {
		return false
	}

	for _, line := range parseLines(string(output)) {
		if line == file {
			return true
		}
	}

	return false
}

// AddSubmodule creates a standalone repository holding files and registers it
// as a submodule at path. The caller commits the superproject.
func (r *TempGitRepo) AddSubmodule(path string, files map[string]string) *TempGitRepo {
	r.T.Helper()

	sub := NewEmptyGitRepo(r.T)
	for name, content := range files {
		sub.CreateFile(name, content)
	}
	sub.Commit("submodule content")
	r.T.Cleanup(sub.Cleanup)

	return r.AddSubmoduleRepo(path, sub)
}

// AddSubmoduleRepo registers an existing repository as a submodule at path
func (r *TempGitRepo) AddSubmoduleRepo(path string, sub *TempGitRepo) *TempGitRepo {
	r.T.Helper()
	r.Git("-c", "protocol.file.allow=always", "submodule", "add", "-q", sub.Path, path)
	return sub
}

// AllowFileProtocol lets nested git processes clone local submodules
func AllowFileProtocol(t *testing.T) {
	t.Helper()
	t.Setenv("GIT_CONFIG_COUNT", "1")
	t.Setenv("GIT_CONFIG_KEY_0", "protocol.file.allow")
	t.Setenv("GIT_CONFIG_VALUE_0", "always")
}

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	output, err := cmd.Output()
	if err != nil {
		stderr := ""
		if exitErr, ok := err.(*exec.ExitError); ok {
			stderr = string(exitErr.Stderr)
		}
		t.Fatalf("git %s failed: %v: %s", strings.Join(args, " "), err, stderr)
	}
	return strings.TrimSpace(string(output))
}

// parseLines splits output into non-empty, trimmed lines
func parseLines(output string) []string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
