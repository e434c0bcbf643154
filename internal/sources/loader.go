// Package sources loads and validates the source registry from a YAML file.
package sources

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/jonesrussell/goleads/internal/domain"
)

var (
	// ErrNoSources indicates no usable sources were found in the registry.
	ErrNoSources = errors.New("no sources found in registry")
	// ErrMissingRequiredField indicates a required field is missing.
	ErrMissingRequiredField = errors.New("missing required field")
)

// DefaultMaxItems caps items per visit when a source does not set its own cap.
const DefaultMaxItems = 20

// rawSource is the YAML shape of one registry entry.
type rawSource struct {
	Name          string            `mapstructure:"name"`
	URL           string            `mapstructure:"url"`
	ItemSelector  string            `mapstructure:"item_selector"`
	TextSelector  string            `mapstructure:"text_selector"`
	LinkSelector  string            `mapstructure:"link_selector"`
	MaxItems      int               `mapstructure:"max_items"`
	Scroll        bool              `mapstructure:"scroll"`
	RequiresLogin bool              `mapstructure:"requires_login"`
	UserAgent     string            `mapstructure:"user_agent"`
	Headers       map[string]string `mapstructure:"headers"`
}

// registryFile is the structure of the sources YAML file.
type registryFile struct {
	Sources []map[string]any `yaml:"sources"`
}

// Loader handles loading and validating source configurations.
type Loader struct {
	path string
}

// NewLoader creates a new Loader reading from path.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads the registry file and returns the valid sources in file order.
// Invalid entries are skipped; the per-entry problems are returned alongside
// so callers can report them.
func (l *Loader) Load() ([]domain.Source, []error, error) {
	raw, err := l.loadRaw()
	if err != nil {
		return nil, nil, err
	}

	var (
		configs  []domain.Source
		problems []error
	)
	for i, src := range raw {
		cfg, convertErr := convert(src)
		if convertErr != nil {
			problems = append(problems, fmt.Errorf("source %d: %w", i, convertErr))
			continue
		}
		if validateErr := validate(&cfg); validateErr != nil {
			problems = append(problems, fmt.Errorf("source %d (%s): %w", i, cfg.Name, validateErr))
			continue
		}
		configs = append(configs, cfg)
	}

	if len(configs) == 0 {
		return nil, problems, ErrNoSources
	}

	return configs, problems, nil
}

// loadRaw reads the raw source entries from the registry file.
func (l *Loader) loadRaw() ([]map[string]any, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s does not exist", ErrNoSources, l.path)
		}
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(file.Sources) == 0 {
		return nil, ErrNoSources
	}

	return file.Sources, nil
}

// convert decodes a raw registry entry into a Source.
func convert(src map[string]any) (domain.Source, error) {
	var raw rawSource
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &raw,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return domain.Source{}, fmt.Errorf("failed to create decoder: %w", err)
	}

	if decodeErr := decoder.Decode(src); decodeErr != nil {
		return domain.Source{}, fmt.Errorf("failed to decode source: %w", decodeErr)
	}

	return domain.Source{
		Name:          raw.Name,
		URL:           raw.URL,
		ItemSelector:  raw.ItemSelector,
		TextSelector:  raw.TextSelector,
		LinkSelector:  raw.LinkSelector,
		MaxItems:      raw.MaxItems,
		Scroll:        raw.Scroll,
		RequiresLogin: raw.RequiresLogin,
		UserAgent:     raw.UserAgent,
		Headers:       raw.Headers,
	}, nil
}

// validate checks a source and fills in defaults.
func validate(cfg *domain.Source) error {
	if cfg.Name == "" {
		return fmt.Errorf("%w: name", ErrMissingRequiredField)
	}

	if cfg.URL == "" {
		return fmt.Errorf("%w: url", ErrMissingRequiredField)
	}

	if err := validateURL(cfg.URL); err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if cfg.ItemSelector == "" {
		return fmt.Errorf("%w: item_selector", ErrMissingRequiredField)
	}

	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultMaxItems
	}

	return nil
}

// validateURL checks that the URL is a usable HTTP(S) URL.
func validateURL(urlStr string) error {
	u, err := url.Parse(urlStr)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("must be a valid HTTP(S) URL")
	}
	return nil
}
