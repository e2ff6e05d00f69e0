package discovery

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flo-mic/pkgdeploy/internal/dependency"
)

const sampleCatalog = `
packages:
  - id: "1"
    object_type: Application
    type_name: Application
    name: Site
    dependency_type: shared
    id_mapping: true
    user_files: [media/logo.png]
    dependencies:
      - { id: "301", object_type: Template, type_name: Template, name: Home, dependency_type: local }
      - id: "302"
        object_type: Template
        name: Article
        dependency_type: shared
        included: true
        id_mapping: true
        ancestors:
          - { id: "f1", object_type: Folder, name: Templates, dependency_type: shared }
      - { id: "7", object_type: Field, name: title, dependency_type: local, parent_id: "302", parent_type: Template }
      - { id: "9", object_type: Server, name: Server, dependency_type: server }
      - { id: "2", object_type: Application, name: Blog, dependency_type: shared, package: true }
`

func TestParseCatalog(t *testing.T) {
	pkgs, err := ParseCatalog([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pkgs) != 1 {
		t.Fatalf("got %d packages, want 1", len(pkgs))
	}
	site := pkgs[0]
	if !site.IsDeployableElement() || !site.IsIncluded() || !site.SupportsIDMapping() {
		t.Errorf("package root flags wrong: %s", site)
	}
	if got := len(site.Dependencies()); got != 6 {
		t.Errorf("children = %d, want 6 (5 objects + 1 user file)", got)
	}

	article := site.Find("Template-302")
	if article == nil || !article.IsIncluded() || !article.SupportsIDMapping() {
		t.Fatalf("Template-302 = %v", article)
	}
	if anc := article.Ancestors(); len(anc) != 1 || anc[0].Key() != "Folder-f1" {
		t.Errorf("ancestors = %v", anc)
	}
	if site.Find("Field-7-Template-302") == nil {
		t.Error("scoped dependency not found by key")
	}
	if nested := site.Find("Application-2"); nested == nil || !nested.IsDeployableElement() {
		t.Error("nested package should be a deployable element")
	}
	if home := site.Find("Template-301"); home.ObjectTypeName() != "Template" || home.DependencyType() != dependency.TypeLocal {
		t.Errorf("Template-301 = %v", home)
	}
	users := site.UserDependencies()
	if len(users) != 1 || users[0].Path() != "media/logo.png" {
		t.Errorf("user dependencies = %v", users)
	}
}

func TestParseCatalog_Errors(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"empty", "packages: []\n", "no packages"},
		{"bad type", "packages:\n  - {id: \"1\", object_type: A, name: a, dependency_type: odd}\n", "packages[0]"},
		{"missing id", "packages:\n  - {object_type: A, name: a, dependency_type: shared}\n", "packages[0]"},
		{"bad child", "packages:\n  - id: \"1\"\n    object_type: A\n    name: a\n    dependency_type: shared\n    dependencies:\n      - {id: \"2\", object_type: B, dependency_type: shared}\n", "packages[0].dependencies[0]"},
		{"duplicate", "packages:\n  - {id: \"1\", object_type: A, name: a, dependency_type: shared}\n  - {id: \"1\", object_type: A, name: b, dependency_type: shared}\n", "duplicate"},
		{"local included toggle", "packages:\n  - id: \"1\"\n    object_type: A\n    name: a\n    dependency_type: shared\n    dependencies:\n      - {id: \"2\", object_type: B, name: b, dependency_type: server, included: true}\n", "dependencies[0]"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(c.content))
			if err == nil || !strings.Contains(err.Error(), c.want) {
				t.Errorf("err = %v, want containing %q", err, c.want)
			}
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(sampleCatalog), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCatalog(path); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
