package prompts

import (
	"embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var catalogFS embed.FS

type catalog struct {
	Prompts []Spec `yaml:"prompts"`
}

var (
	registryOnce sync.Once
	registryErr  error
	registry     = map[PromptName]Template{}
)

// Load parses the embedded prompt catalog. Safe to call repeatedly; the
// first result is cached.
func Load() error {
	registryOnce.Do(func() {
		registryErr = loadCatalog()
	})
	return registryErr
}

func loadCatalog() error {
	raw, err := catalogFS.ReadFile("prompts.yaml")
	if err != nil {
		return fmt.Errorf("read prompt catalog: %w", err)
	}
	var c catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return fmt.Errorf("parse prompt catalog: %w", err)
	}
	for _, s := range c.Prompts {
		t, err := MakeTemplate(s)
		if err != nil {
			return err
		}
		if _, dup := registry[t.Name]; dup {
			return fmt.Errorf("duplicate prompt %s", t.Name)
		}
		registry[t.Name] = t
	}
	return nil
}

// Build returns a Prompt ready to pass to the LLM client.
func Build(name PromptName, in Input) (Prompt, error) {
	if err := Load(); err != nil {
		return Prompt{}, err
	}
	t, ok := registry[name]
	if !ok {
		return Prompt{}, fmt.Errorf("unknown prompt: %s", string(name))
	}
	for _, v := range t.Validators {
		if err := v(in); err != nil {
			return Prompt{}, fmt.Errorf("%s: %w", string(name), err)
		}
	}
	system, err := t.System(in)
	if err != nil {
		return Prompt{}, err
	}
	user, err := t.User(in)
	if err != nil {
		return Prompt{}, err
	}
	p := Prompt{
		Name:       string(t.Name),
		Version:    t.Version,
		SchemaName: t.SchemaName,
		System:     system,
		User:       user,
	}
	if t.Schema != nil {
		p.Schema = t.Schema()
	}
	return p, nil
}

func Schema(name PromptName) (schemaName string, schema map[string]any, ok bool) {
	if err := Load(); err != nil {
		return "", nil, false
	}
	t, ok := registry[name]
	if !ok || t.Schema == nil {
		return "", nil, false
	}
	return t.SchemaName, t.Schema(), true
}

// Names lists registered prompts, for diagnostics.
func Names() []string {
	if err := Load(); err != nil {
		return nil
	}
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, string(name))
	}
	return out
}
