package prompts

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Spec is the declaration format of one catalog entry.
type Spec struct {
	Name       PromptName `yaml:"name"`
	Version    int        `yaml:"version"`
	SchemaName string     `yaml:"schema_name"`
	// Plain strings or go templates using {{.Field}} from Input
	System string `yaml:"system"`
	User   string `yaml:"user"`
}

type Template struct {
	Name       PromptName
	Version    int
	SchemaName string
	Schema     func() map[string]any
	System     func(Input) (string, error)
	User       func(Input) (string, error)
	Validators []Validator
}

// MakeTemplate compiles a Spec into a Template.
func MakeTemplate(s Spec) (Template, error) {
	if strings.TrimSpace(string(s.Name)) == "" {
		return Template{}, fmt.Errorf("missing prompt name")
	}
	if s.Version <= 0 {
		return Template{}, fmt.Errorf("invalid version for %s", s.Name)
	}
	var schema func() map[string]any
	if name := strings.TrimSpace(s.SchemaName); name != "" {
		fn, ok := schemasByName[name]
		if !ok {
			return Template{}, fmt.Errorf("%s: unknown schema %q", s.Name, name)
		}
		schema = fn
	}
	sysT, err := template.New("system").Option("missingkey=zero").Parse(s.System)
	if err != nil {
		return Template{}, fmt.Errorf("%s system template parse: %w", s.Name, err)
	}
	userT, err := template.New("user").Option("missingkey=zero").Parse(s.User)
	if err != nil {
		return Template{}, fmt.Errorf("%s user template parse: %w", s.Name, err)
	}
	render := func(t *template.Template) func(Input) (string, error) {
		return func(in Input) (string, error) {
			var b bytes.Buffer
			if err := t.Execute(&b, in); err != nil {
				return "", fmt.Errorf("%s %s template: %w", s.Name, t.Name(), err)
			}
			return strings.TrimSpace(b.String()), nil
		}
	}
	return Template{
		Name:       s.Name,
		Version:    s.Version,
		SchemaName: strings.TrimSpace(s.SchemaName),
		Schema:     schema,
		System:     render(sysT),
		User:       render(userT),
		Validators: validatorsByPrompt[s.Name],
	}, nil
}
