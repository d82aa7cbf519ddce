package scheduler

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed templates/*.md
var templatesFS embed.FS

var templateNames = []string{"planning", "nudge", "execution"}

// promptMeta is the YAML frontmatter carried by every template file.
type promptMeta struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// PromptTemplates holds the rendered prompt set used by the controller.
// Workspace overrides replace the embedded defaults per template name.
type PromptTemplates struct {
	templates map[string]*template.Template
}

// planningData feeds the planning and nudge templates.
type planningData struct {
	Requirement string
	Pending     []PendingTask
	Completed   []CompletedTask
}

// executionData feeds the per-task execution template.
type executionData struct {
	Description string
	Completed   []CompletedTask
}

var templateFuncs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

// LoadTemplates loads the embedded prompt templates, replacing any whose
// override file <name>.md exists under overrideDir. An empty overrideDir
// loads defaults only.
func LoadTemplates(overrideDir string) (*PromptTemplates, error) {
	pt := &PromptTemplates{templates: make(map[string]*template.Template)}

	for _, name := range templateNames {
		raw, err := templatesFS.ReadFile("templates/" + name + ".md")
		if err != nil {
			return nil, fmt.Errorf("missing embedded template %s: %w", name, err)
		}

		if overrideDir != "" {
			override, err := os.ReadFile(filepath.Join(overrideDir, name+".md"))
			if err == nil {
				raw = override
			} else if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read template override %s: %w", name, err)
			}
		}

		body, err := parseTemplateFile(name, string(raw))
		if err != nil {
			return nil, err
		}

		tmpl, err := template.New(name).Funcs(templateFuncs).Parse(body)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pt.templates[name] = tmpl
	}

	return pt, nil
}

// parseTemplateFile strips and validates the YAML frontmatter, returning the
// template body.
func parseTemplateFile(name, content string) (string, error) {
	frontmatter, body, err := splitFrontmatter(content)
	if err != nil {
		return "", fmt.Errorf("template %s: %w", name, err)
	}

	var meta promptMeta
	if err := yaml.Unmarshal([]byte(frontmatter), &meta); err != nil {
		return "", fmt.Errorf("template %s: invalid frontmatter: %w", name, err)
	}
	if meta.Name != name {
		return "", fmt.Errorf("template %s: frontmatter name is %q", name, meta.Name)
	}

	return strings.TrimSpace(body), nil
}

func splitFrontmatter(content string) (frontmatter, body string, err error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(content, "\n")

	if len(lines) < 2 || strings.TrimSpace(lines[0]) != "---" {
		return "", "", fmt.Errorf("content must start with YAML frontmatter delimited by '---'")
	}

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return strings.Join(lines[1:i], "\n"), strings.Join(lines[i+1:], "\n"), nil
		}
	}
	return "", "", fmt.Errorf("YAML frontmatter must be closed with '---'")
}

// Planning renders the initial planning prompt.
func (pt *PromptTemplates) Planning(requirement string, pending []PendingTask, completed []CompletedTask) (string, error) {
	return pt.render("planning", planningData{
		Requirement: requirement,
		Pending:     pending,
		Completed:   completed,
	})
}

// Nudge renders the single re-prompt sent after an empty-operations reply.
func (pt *PromptTemplates) Nudge(requirement string, pending []PendingTask, completed []CompletedTask) (string, error) {
	return pt.render("nudge", planningData{
		Requirement: requirement,
		Pending:     pending,
		Completed:   completed,
	})
}

// Execution renders the per-task prompt handed to the resolved executor.
func (pt *PromptTemplates) Execution(description string, completed []CompletedTask) (string, error) {
	return pt.render("execution", executionData{
		Description: description,
		Completed:   completed,
	})
}

func (pt *PromptTemplates) render(name string, data any) (string, error) {
	tmpl, ok := pt.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown template: %s", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.String(), nil
}
