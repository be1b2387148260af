package scm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"

	"github.com/charmbracelet/log"
	gitconfig "github.com/go-git/go-git/v5/config"

	"github.com/pders01/repour/internal/config"
	"github.com/pders01/repour/internal/models"
)

// ManifestFile declares the submodules of a repository
const ManifestFile = ".gitmodules"

// FlattenCommitMessage is the message of the commit recording a flatten
const FlattenCommitMessage = "Removing submodules and transforming into fat repository"

// FlattenState is a step of the flatten pipeline. Steps run in declaration
// order and a step is only entered after the previous one succeeded.
type FlattenState int

const (
	StateDetect FlattenState = iota
	StateMaterialize
	StateParse
	StateDetach
	StateStrip
	StateRetrack
	StateRemoveManifest
	StateCommit
	StateDone
	StateNotApplicable
)

var stateNames = map[FlattenState]string{
	StateDetect:         "detect",
	StateMaterialize:    "materialize",
	StateParse:          "parse",
	StateDetach:         "detach",
	StateStrip:          "strip",
	StateRetrack:        "retrack",
	StateRemoveManifest: "remove-manifest",
	StateCommit:         "commit",
	StateDone:           "done",
	StateNotApplicable:  "not-applicable",
}

func (s FlattenState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// FlattenError reports the step a flatten stopped at. The working tree is left
// as that step found it.
type FlattenError struct {
	State FlattenState
	Err   error
}

func (e *FlattenError) Error() string {
	return fmt.Sprintf("flatten failed at %s: %v", e.State, e.Err)
}

func (e *FlattenError) Unwrap() error {
	return e.Err
}

// FlattenResult describes a finished flatten
type FlattenResult struct {
	State      FlattenState
	Submodules []models.SubmoduleEntry
	Commit     string
}

// Flattener turns a repository using submodules into a single fat repository
type Flattener struct {
	cfg    *config.Config
	logger *log.Logger
}

// NewFlattener creates a Flattener committing as the configured identity
func NewFlattener(cfg *config.Config, logger *log.Logger) *Flattener {
	return &Flattener{cfg: cfg, logger: logger}
}

// Flatten keeps the content of every submodule but tracks it as ordinary files
// of the parent repository, then records the result in one commit. A tree
// without a manifest is left untouched.
func (f *Flattener) Flatten(ctx context.Context, repo Repository) (*FlattenResult, error) {
	logger := f.logger.With("dir", repo.Dir())
	result := &FlattenResult{State: StateDetect}

	fail := func(err error) (*FlattenResult, error) {
		return result, &FlattenError{State: result.State, Err: err}
	}

	manifest := filepath.Join(repo.Dir(), ManifestFile)
	if _, err := os.Stat(manifest); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			result.State = StateNotApplicable
			return result, nil
		}
		return fail(err)
	}
	logger.Info("Repository is using git submodules, transforming it into a fat repository")

	result.State = StateMaterialize
	if err := repo.SubmoduleUpdateInit(ctx); err != nil {
		return fail(err)
	}

	result.State = StateParse
	entries, err := ReadManifest(manifest)
	if err != nil {
		return fail(err)
	}
	nested, err := nestedSubmodules(repo.Dir(), entries)
	if err != nil {
		return fail(err)
	}
	result.Submodules = append(slices.Clone(entries), nested...)

	result.State = StateDetach
	for _, entry := range entries {
		if err := detach(ctx, repo, entry, logger); err != nil {
			return fail(err)
		}
	}
	// Nested mount points live in the index of their parent submodule, which
	// disappears with its marker. They only need to exist on disk.
	for _, entry := range nested {
		if err := checkMountPoint(repo, entry, logger); err != nil {
			return fail(err)
		}
	}

	// Deepest first: a nested path is always longer than its parent's
	mounts := slices.Clone(result.Submodules)
	sort.SliceStable(mounts, func(i, j int) bool {
		return len(mounts[i].Path) > len(mounts[j].Path)
	})

	result.State = StateStrip
	for _, entry := range mounts {
		logger.Info("Removing .git inside the submodule", "path", entry.Path)
		if err := repo.RemoveVCSMarker(ctx, entry.Path); err != nil {
			return fail(err)
		}
		nestedManifest := filepath.Join(repo.Dir(), entry.Path, ManifestFile)
		if err := os.Remove(nestedManifest); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fail(fmt.Errorf("failed to remove %s: %w", nestedManifest, err))
		}
	}

	result.State = StateRetrack
	for _, entry := range entries {
		if err := repo.AddPath(ctx, entry.Path); err != nil {
			return fail(err)
		}
	}

	result.State = StateRemoveManifest
	if err := repo.Remove(ctx, ManifestFile, false); err != nil {
		return fail(err)
	}

	result.State = StateCommit
	if err := setupCommitter(ctx, repo, f.cfg.Identity); err != nil {
		return fail(err)
	}
	commit, err := normalDateCommit(ctx, repo, FlattenCommitMessage)
	if err != nil {
		return fail(err)
	}
	result.Commit = commit

	result.State = StateDone
	logger.Info("Transformed into fat repository", "submodules", len(result.Submodules), "commit", commit)
	return result, nil
}

// detach drops a submodule mount point from the index, keeping its files.
// A mount point missing on disk is a defect of the submitted content.
func detach(ctx context.Context, repo Repository, entry models.SubmoduleEntry, logger *log.Logger) error {
	if err := checkMountPoint(repo, entry, logger); err != nil {
		return err
	}
	if err := repo.Remove(ctx, entry.Path, true); err != nil {
		return missingSubmodule(entry, logger, err)
	}
	return nil
}

func checkMountPoint(repo Repository, entry models.SubmoduleEntry, logger *log.Logger) error {
	info, err := os.Stat(filepath.Join(repo.Dir(), entry.Path))
	if err == nil && !info.IsDir() {
		err = fmt.Errorf("%s is not a directory", entry.Path)
	}
	if err != nil {
		return missingSubmodule(entry, logger, err)
	}
	return nil
}

func missingSubmodule(entry models.SubmoduleEntry, logger *log.Logger, err error) error {
	logger.Error("Submodule directory is missing. Consider adding/removing this module or removing the entire .gitmodules if it was forgotten.",
		"path", entry.Path)
	return newError(KindIntegrity, ExitCodeFailed,
		fmt.Sprintf("submodule %s is declared in %s but missing", entry.Path, ManifestFile), err)
}

// nestedSubmodules walks the manifests found inside materialized submodules.
// Returned paths are relative to root.
func nestedSubmodules(root string, parents []models.SubmoduleEntry) ([]models.SubmoduleEntry, error) {
	var nested []models.SubmoduleEntry
	for _, parent := range parents {
		manifest := filepath.Join(root, parent.Path, ManifestFile)
		if _, err := os.Stat(manifest); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}

		children, err := ReadManifest(manifest)
		if err != nil {
			return nil, err
		}
		for i := range children {
			children[i].Path = path.Join(parent.Path, children[i].Path)
		}

		deeper, err := nestedSubmodules(root, children)
		if err != nil {
			return nil, err
		}
		nested = append(nested, children...)
		nested = append(nested, deeper...)
	}
	return nested, nil
}

// ReadManifest returns the submodules declared in a .gitmodules file, sorted
// by path. Sections without a path are skipped.
func ReadManifest(file string) ([]models.SubmoduleEntry, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}

	modules := gitconfig.NewModules()
	if err := modules.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", file, err)
	}

	var entries []models.SubmoduleEntry
	for _, sub := range modules.Submodules {
		if sub.Path == "" {
			continue
		}
		entries = append(entries, models.SubmoduleEntry{
			Name: sub.Name,
			Path: sub.Path,
			URL:  sub.URL,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})
	return entries, nil
}
