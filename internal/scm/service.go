package scm

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/pders01/repour/internal/config"
	"github.com/pders01/repour/internal/models"
)

// Service runs complete capture requests
type Service struct {
	Publisher *Publisher
	Flattener *Flattener
}

// NewService wires a Publisher and a Flattener sharing cfg and logger
func NewService(cfg *config.Config, logger *log.Logger) *Service {
	return &Service{
		Publisher: NewPublisher(cfg, logger),
		Flattener: NewFlattener(cfg, logger),
	}
}

// WithLogger returns a copy of s logging to logger
func (s *Service) WithLogger(logger *log.Logger) *Service {
	return &Service{
		Publisher: NewPublisher(s.Publisher.cfg, logger),
		Flattener: NewFlattener(s.Flattener.cfg, logger),
	}
}

// Capture flattens submodules when requested, then publishes the working tree
func (s *Service) Capture(ctx context.Context, repo Repository, url models.RepositoryURL, opts Options) (*models.SnapshotResult, error) {
	if opts.Operation != "" {
		if _, err := models.ParseOperation(string(opts.Operation)); err != nil {
			return nil, err
		}
	}

	if opts.Flatten {
		flattened, err := s.Flattener.Flatten(ctx, repo)
		if err != nil {
			return nil, err
		}
		// The flatten commit already holds the whole tree, so the capture
		// commit finds nothing new and tags that commit instead. Lookups of
		// earlier captures still follow the caller's NoChangeOK.
		opts.flattened = flattened.State == StateDone
	}

	result, err := s.Publisher.PushNewDedupBranch(ctx, repo, url, opts)
	if err != nil {
		return nil, fmt.Errorf("capture of %s failed: %w", repo.Dir(), err)
	}
	return result, nil
}
