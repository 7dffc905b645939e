package report

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func TestExpand_SimpleVars(t *testing.T) {
	got, err := Expand("Run {{run_id}} planned {{planned_points}} points.", Vars{
		"run_id":         "abc",
		"planned_points": "39",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Run abc planned 39 points." {
		t.Errorf("got %q", got)
	}
}

func TestExpand_MissingVars(t *testing.T) {
	_, err := Expand("{{a}} and {{b}} and {{c}}", Vars{"b": "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "a") || !strings.Contains(err.Error(), "c") {
		t.Errorf("error should name every missing var, got: %v", err)
	}
}

func TestExpand_Conditional(t *testing.T) {
	tmpl := "Start.{{#if risks}}\nRisks: {{risks}}\n{{/if}}End."

	got, err := Expand(tmpl, Vars{"risks": "team"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "Risks: team") {
		t.Errorf("expected block to be kept, got %q", got)
	}

	got, err = Expand(tmpl, Vars{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Start.End." {
		t.Errorf("expected block to be dropped, got %q", got)
	}

	// an empty value counts as unset
	got, _ = Expand("{{#if risks}}has risks{{/if}}", Vars{"risks": ""})
	if got != "" {
		t.Errorf("expected empty output, got %q", got)
	}
}

func TestExpand_Else(t *testing.T) {
	tmpl := "{{#if items}}{{items}}{{else}}_None._{{/if}}"

	got, _ := Expand(tmpl, Vars{"items": "- B1"})
	if got != "- B1" {
		t.Errorf("then branch: got %q", got)
	}
	got, _ = Expand(tmpl, Vars{"items": ""})
	if got != "_None._" {
		t.Errorf("else branch: got %q", got)
	}
}

func TestExpand_Nested(t *testing.T) {
	tmpl := "{{#if outer}}O{{#if inner}}I{{else}}i{{/if}}{{else}}none{{/if}}"
	cases := []struct {
		vars Vars
		want string
	}{
		{Vars{"outer": "1", "inner": "1"}, "OI"},
		{Vars{"outer": "1"}, "Oi"},
		{Vars{"inner": "1"}, "none"},
		{Vars{}, "none"},
	}
	for _, c := range cases {
		got, err := Expand(tmpl, c.vars)
		if err != nil {
			t.Fatalf("%v: unexpected error: %v", c.vars, err)
		}
		if got != c.want {
			t.Errorf("%v: got %q, want %q", c.vars, got, c.want)
		}
	}
}

func TestExpand_ValueIsNotReexpanded(t *testing.T) {
	got, err := Expand("{{a}}", Vars{"a": "{{b}} {{#if b}}x{{/if}}"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "{{b}} {{#if b}}x{{/if}}" {
		t.Errorf("got %q", got)
	}
}

func TestExpand_Malformed(t *testing.T) {
	for _, tmpl := range []string{
		"{{#if a}}never closed",
		"closed {{/if}} too early",
		"stray {{else}}",
	} {
		if _, err := Expand(tmpl, Vars{"a": "1"}); err == nil {
			t.Errorf("%q: expected error", tmpl)
		}
	}
}

func TestLoader_Builtin(t *testing.T) {
	l := NewLoader(afero.NewMemMapFs(), "")
	for _, name := range TemplateNames() {
		got, err := l.Load(name)
		if err != nil {
			t.Fatalf("Load(%s): %v", name, err)
		}
		if got != builtinTemplates[name] {
			t.Errorf("Load(%s) should return the built-in template", name)
		}
	}
}

func TestLoader_Override(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/tmpl/planning.md", []byte("custom {{run_id}}"), 0o644); err != nil {
		t.Fatal(err)
	}
	l := NewLoader(fs, "/tmpl")

	got, err := l.Load("planning.md")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != "custom {{run_id}}" {
		t.Errorf("expected override, got %q", got)
	}
	// no override for this one
	got, _ = l.Load("kickoff.md")
	if got != builtinTemplates["kickoff.md"] {
		t.Error("expected the built-in kickoff template")
	}
}

func TestLoader_NotFound(t *testing.T) {
	_, err := NewLoader(afero.NewMemMapFs(), "/tmpl").Load("nope.md")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "planning.md") {
		t.Errorf("error should list the built-in names, got: %v", err)
	}
}

func TestLoader_RejectsPaths(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/secret.md", []byte("SECRET"), 0o644); err != nil {
		t.Fatal(err)
	}
	l := NewLoader(fs, "/tmpl")
	for _, name := range []string{"../secret.md", "/secret.md", `..\secret.md`, "..", ""} {
		if _, err := l.Load(name); err == nil {
			t.Errorf("Load(%q) should fail", name)
		}
	}
}

func TestLoader_Install(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/tmpl/kickoff.md", []byte("mine"), 0o644); err != nil {
		t.Fatal(err)
	}
	l := NewLoader(fs, "/tmpl")

	written, err := l.Install()
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if len(written) != 2 || written[0] != "planning.md" || written[1] != "worklog.md" {
		t.Errorf("written = %v", written)
	}
	data, _ := afero.ReadFile(fs, "/tmpl/kickoff.md")
	if string(data) != "mine" {
		t.Error("Install must not overwrite an existing template")
	}

	written, err = l.Install()
	if err != nil || len(written) != 0 {
		t.Errorf("second Install = %v, %v", written, err)
	}
}

func TestLoader_InstallWithoutDir(t *testing.T) {
	if _, err := NewLoader(afero.NewMemMapFs(), "").Install(); err == nil {
		t.Error("expected error without a template dir")
	}
}

func TestTemplateNames(t *testing.T) {
	names := TemplateNames()
	want := []string{"kickoff.md", "planning.md", "worklog.md"}
	if len(names) != len(want) {
		t.Fatalf("names = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}
