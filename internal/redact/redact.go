// Package redact keeps configured secrets out of log output.
package redact

import (
	"regexp"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Placeholder replaces every redacted value.
const Placeholder = "***REDACTED***"

// secretKeyPattern matches config keys whose values are secrets.
var secretKeyPattern = regexp.MustCompile(`(?i)(secret|token|password|pass$|credential)`)

// authHeaderPattern matches credentials echoed from Authorization headers.
var authHeaderPattern = regexp.MustCompile(`(?i)\b(bearer|basic)\s+[A-Za-z0-9._~+/=-]{8,}`)

// Redactor replaces known secret values. Safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	literals []string
}

// New returns a redactor for the given literal secrets.
func New(secrets ...string) *Redactor {
	r := &Redactor{}
	for _, s := range secrets {
		r.Add(s)
	}
	return r
}

// Add registers a literal secret. Empty and duplicate values are ignored.
func (r *Redactor) Add(secret string) {
	if secret == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !slices.Contains(r.literals, secret) {
		r.literals = append(r.literals, secret)
	}
}

// Len returns the number of registered literals.
func (r *Redactor) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.literals)
}

// Redact masks authorization credentials and every registered literal in s.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}
	s = authHeaderPattern.ReplaceAllString(s, "$1 "+Placeholder)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, lit := range r.literals {
		if strings.Contains(s, lit) {
			s = strings.ReplaceAll(s, lit, Placeholder)
		}
	}
	return s
}

// CollectSecrets walks module configuration nodes and returns the scalar
// values stored under secret-named keys (bearer_token, secret, basic_pass).
func CollectSecrets(modules map[string]yaml.Node) []string {
	var out []string
	for _, node := range modules {
		collect(&node, &out)
	}
	return out
}

func collect(n *yaml.Node, out *[]string) {
	switch n.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, c := range n.Content {
			collect(c, out)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			if val.Kind == yaml.ScalarNode && secretKeyPattern.MatchString(key.Value) {
				if val.Value != "" {
					*out = append(*out, val.Value)
				}
				continue
			}
			collect(val, out)
		}
	}
}
