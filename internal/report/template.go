package report

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

var (
	varRe    = regexp.MustCompile(`\{\{([a-zA-Z_][a-zA-Z0-9_]*)\}\}`)
	ifOpenRe = regexp.MustCompile(`\{\{#if\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)
)

const (
	ifClose = "{{/if}}"
	elseTag = "{{else}}"
)

// Vars maps template variable names to their rendered values.
type Vars map[string]string

// Expand renders tmpl with vars.
//
// {{name}} is replaced by its value; a name missing from vars is an error.
// {{#if name}}...{{else}}...{{/if}} keeps the first branch when name is set
// and non-empty, otherwise the optional else branch. Blocks may nest.
func Expand(tmpl string, vars Vars) (string, error) {
	result, err := expandBlocks(tmpl, vars)
	if err != nil {
		return "", err
	}

	var missing []string
	expanded := varRe.ReplaceAllStringFunc(result, func(match string) string {
		name := varRe.FindStringSubmatch(match)[1]
		if val, ok := vars[name]; ok {
			return val
		}
		missing = append(missing, name)
		return match
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("missing template variables: %s", strings.Join(missing, ", "))
	}
	return expanded, nil
}

// expandBlocks resolves conditional blocks innermost first: each {{/if}}
// pairs with the last {{#if}} before it.
func expandBlocks(tmpl string, vars Vars) (string, error) {
	result := tmpl
	for {
		closeIdx := strings.Index(result, ifClose)
		if closeIdx == -1 {
			break
		}

		prefix := result[:closeIdx]
		opens := ifOpenRe.FindAllStringSubmatchIndex(prefix, -1)
		if opens == nil {
			return "", fmt.Errorf("dangling {{/if}} without matching {{#if}}")
		}
		open := opens[len(opens)-1]
		openStart, openEnd := open[0], open[1]
		name := prefix[open[2]:open[3]]

		body := result[openEnd:closeIdx]
		then, otherwise := body, ""
		if i := strings.Index(body, elseTag); i >= 0 {
			then, otherwise = body[:i], body[i+len(elseTag):]
		}

		keep := otherwise
		if vars[name] != "" {
			keep = then
		}
		result = result[:openStart] + keep + result[closeIdx+len(ifClose):]
	}

	if loc := ifOpenRe.FindString(result); loc != "" {
		return "", fmt.Errorf("unclosed conditional block: %s", loc)
	}
	if strings.Contains(result, elseTag) {
		return "", fmt.Errorf("{{else}} outside a conditional block")
	}
	return result, nil
}

// Loader resolves templates by name. A template found in the override
// directory wins over the built-in one of the same name.
type Loader struct {
	fs  afero.Fs
	dir string
}

// NewLoader creates a Loader reading overrides from dir on fs. An empty dir
// disables overrides.
func NewLoader(fs afero.Fs, dir string) *Loader {
	return &Loader{fs: fs, dir: dir}
}

// Load returns the template text for name.
func (l *Loader) Load(name string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	if l.dir != "" {
		data, err := afero.ReadFile(l.fs, filepath.Join(l.dir, name))
		if err == nil {
			return string(data), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("read template override %s: %w", name, err)
		}
	}
	if tmpl, ok := builtinTemplates[name]; ok {
		return tmpl, nil
	}
	return "", fmt.Errorf("template %q not found (built-in: %s)", name, strings.Join(TemplateNames(), ", "))
}

// Install writes the built-in templates into the override directory so they
// can be customized. Existing files are left untouched. It returns the names
// written.
func (l *Loader) Install() ([]string, error) {
	if l.dir == "" {
		return nil, fmt.Errorf("no template directory configured")
	}
	if err := l.fs.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create template dir: %w", err)
	}
	var written []string
	for _, name := range TemplateNames() {
		path := filepath.Join(l.dir, name)
		if _, err := l.fs.Stat(path); err == nil {
			continue
		}
		if err := afero.WriteFile(l.fs, path, []byte(builtinTemplates[name]), 0o644); err != nil {
			return written, fmt.Errorf("write template %q: %w", name, err)
		}
		written = append(written, name)
	}
	return written, nil
}

// TemplateNames lists the built-in template names in sorted order.
func TemplateNames() []string {
	names := make([]string, 0, len(builtinTemplates))
	for name := range builtinTemplates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// validName keeps lookups inside the template directory.
func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid template name %q", name)
	}
	return nil
}
