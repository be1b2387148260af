// Package urltranslate maps public repository URLs onto the internal git
// server that holds their mirrors.
package urltranslate

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/pders01/repour/internal/config"
)

var (
	ErrInvalidURL   = errors.New("invalid url")
	ErrEmptyScheme  = errors.New("scheme in url is empty")
	ErrScheme       = errors.New("scheme not accepted")
	ErrNoRepository = errors.New("could not translate the url: no repository specified")
)

// AcceptedSchemes lists the URL schemes Translate understands
var AcceptedSchemes = []string{"https", "git", "git+ssh", "ssh"}

// ignoredOwner is an organization name that never appears in internal URLs
const ignoredOwner = "gerrit"

// Translation pairs an external URL with its internal mirror
type Translation struct {
	ExternalURL string `json:"external_url" required:"true" minLength:"1"`
	InternalURL string `json:"internal_url" required:"true"`
}

// Translator builds internal URLs from the configured template
type Translator struct {
	cfg *config.Config
}

// New creates a Translator. The template is only required once Translate is called.
func New(cfg *config.Config) *Translator {
	return &Translator{cfg: cfg}
}

// Translate returns the internal URL for externalURL: the template followed
// by organization/repository.git, where the organization is dropped when
// absent or named gerrit.
func (t *Translator) Translate(externalURL string) (*Translation, error) {
	base, err := t.cfg.RequireInternalURLTemplate()
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	name, err := RepositoryName(externalURL)
	if err != nil {
		return nil, err
	}

	return &Translation{
		ExternalURL: externalURL,
		InternalURL: base + name + ".git",
	}, nil
}

// RepositoryName extracts organization/repository (or just repository) from
// an external URL
func RepositoryName(externalURL string) (string, error) {
	u, err := url.Parse(externalURL)
	if err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrInvalidURL, externalURL, err)
	}

	if u.Scheme == "" {
		return "", ErrEmptyScheme
	}
	if !slices.Contains(AcceptedSchemes, u.Scheme) {
		return "", fmt.Errorf("%w: %q", ErrScheme, u.Scheme)
	}

	parts := strings.Split(u.Path, "/")

	repository := strings.TrimSuffix(parts[len(parts)-1], ".git")
	if repository == "" {
		return "", ErrNoRepository
	}

	if len(parts) > 1 {
		owner := parts[len(parts)-2]
		if owner != "" && owner != ignoredOwner {
			return owner + "/" + repository, nil
		}
	}
	return repository, nil
}
