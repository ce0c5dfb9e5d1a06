package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// envPattern matches ${VAR} and ${VAR:-default} expressions.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^}\\]|\\.)*))?\}`)

// ErrEmpty is returned for a file with no YAML document.
var ErrEmpty = errors.New("config: empty configuration")

// Load reads the file at path and hands it to Parse.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse expands environment variables, decodes the result and applies
// defaults. Unknown keys outside the free-form module sections are
// rejected, so a misspelled job setting fails loudly instead of being
// replaced by its default.
func Parse(raw []byte) (*Config, error) {
	expanded, err := expandEnv(raw)
	if err != nil {
		return nil, fmt.Errorf("expanding variables: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(expanded))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("parsing: %w", err)
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// expandEnv substitutes ${VAR} and ${VAR:-default}. Every variable with
// neither a value nor a default is reported in the returned error.
func expandEnv(raw []byte) ([]byte, error) {
	var missing []error

	out := envPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		subs := envPattern.FindSubmatch(match)
		if value, ok := os.LookupEnv(string(subs[1])); ok {
			return []byte(value)
		}
		if subs[2] != nil {
			return subs[2]
		}
		missing = append(missing, fmt.Errorf("unresolved variable: %s", subs[1]))
		return match
	})

	return out, errors.Join(missing...)
}
