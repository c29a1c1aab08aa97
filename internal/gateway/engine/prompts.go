package engine

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Prompts holds the fixed text wrapped around every prompt context.
type Prompts struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

// LoadPrompts reads a prompt bundle. YAML files must contain only the system and
// user keys; any other file is taken as a plain user prompt. An optional
// systemPath overrides the bundle's system prompt.
func LoadPrompts(path, systemPath string) (Prompts, error) {
	var p Prompts
	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Prompts{}, fmt.Errorf("read prompt file failed: %w", err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			dec := yaml.NewDecoder(bytes.NewReader(raw))
			dec.KnownFields(true)
			if err := dec.Decode(&p); err != nil {
				return Prompts{}, fmt.Errorf("parse prompt bundle failed: %w", err)
			}
		default:
			p.User = string(raw)
		}
	}
	if systemPath = strings.TrimSpace(systemPath); systemPath != "" {
		raw, err := os.ReadFile(systemPath)
		if err != nil {
			return Prompts{}, fmt.Errorf("read system prompt failed: %w", err)
		}
		p.System = string(raw)
	}
	p.System = strings.TrimSpace(p.System)
	p.User = strings.TrimSpace(p.User)
	return p, nil
}

// UserMessage places the prompt context ahead of the user prompt.
func (p Prompts) UserMessage(promptContext string) string {
	parts := make([]string, 0, 2)
	if c := strings.TrimSpace(promptContext); c != "" {
		parts = append(parts, c)
	}
	if p.User != "" {
		parts = append(parts, p.User)
	}
	return strings.Join(parts, "\n\n")
}

// Compose renders the single stdin document fed to CLI engines.
func (p Prompts) Compose(promptContext string) string {
	user := p.UserMessage(promptContext)
	if p.System == "" {
		return user
	}
	return p.System + "\n\n" + user
}
