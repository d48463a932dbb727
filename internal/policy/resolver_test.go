package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/sdlcguard/sdlcguard/pkg/models"
)

// writeDoc writes an ownership document with the given frontmatter owner
// value under dir.
func writeDoc(t *testing.T, dir, docName, ownerYAML string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatal(err)
	}
	content := "---\nowner: " + ownerYAML + "\n---\n\n# Docs\n"
	if err := os.WriteFile(filepath.Join(dir, docName), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestResolveNearestDocWins(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, filepath.Join(root, "internal"), "OWNERS.md", "platform-team")
	writeDoc(t, filepath.Join(root, "internal", "auth"), "OWNERS.md", "backend-developer")

	r := NewResolver(root, "", nil)

	rec, err := r.Resolve("internal/auth/login.go")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rec.Primary() != "backend-developer" {
		t.Errorf("Primary = %q, want backend-developer", rec.Primary())
	}
	if rec.Dir != "internal/auth" {
		t.Errorf("Dir = %q", rec.Dir)
	}

	rec, err = r.Resolve("internal/billing/invoice.go")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rec.Primary() != "platform-team" {
		t.Errorf("sibling dir should inherit from parent, got %q", rec.Primary())
	}
}

func TestResolveRootDocExcluded(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, root, "OWNERS.md", "root-owner")
	if err := os.MkdirAll(filepath.Join(root, "src"), 0o750); err != nil {
		t.Fatal(err)
	}

	r := NewResolver(root, "", nil)

	_, err := r.Resolve("src/main.go")
	if !IsNoOwner(err) {
		t.Errorf("repo root document must not participate in the walk, got %v", err)
	}
}

func TestResolveDirectoryPath(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, filepath.Join(root, "internal", "auth"), "OWNERS.md", "backend-developer")

	r := NewResolver(root, "", nil)

	rec, err := r.Resolve("internal/auth")
	if err != nil {
		t.Fatalf("Resolve on directory: %v", err)
	}
	if rec.Primary() != "backend-developer" {
		t.Errorf("Primary = %q", rec.Primary())
	}
}

func TestResolveEscapeRejected(t *testing.T) {
	root := t.TempDir()
	// An owner document outside the root must never be reachable.
	writeDoc(t, filepath.Dir(root), "OWNERS.md", "outsider")

	r := NewResolver(root, "", nil)

	for _, path := range []string{
		"../outside.txt",
		"a/../../outside.txt",
		filepath.Join(filepath.Dir(root), "outside.txt"),
	} {
		_, err := r.Resolve(path)
		if !IsNoOwner(err) {
			t.Errorf("Resolve(%q) = %v, want NoOwnerError", path, err)
		}
	}
}

func TestResolveMultiOwnerList(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, filepath.Join(root, "api"), "OWNERS.md", "[backend-developer, api-designer]")

	r := NewResolver(root, "", nil)

	rec, err := r.Resolve("api/routes.go")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(rec.Owners) != 2 || rec.Primary() != "backend-developer" {
		t.Errorf("Owners = %v", rec.Owners)
	}
	if !rec.Contains("api-designer") {
		t.Error("secondary owner not contained")
	}
}

func TestResolveMalformedBlockTreatedAsAbsent(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, filepath.Join(root, "pkg"), "OWNERS.md", "data-team")

	badDir := filepath.Join(root, "pkg", "parser")
	if err := os.MkdirAll(badDir, 0o750); err != nil {
		t.Fatal(err)
	}
	bad := "---\nowner: [unclosed\n---\n"
	if err := os.WriteFile(filepath.Join(badDir, "OWNERS.md"), []byte(bad), 0o600); err != nil {
		t.Fatal(err)
	}

	r := NewResolver(root, "", nil)

	rec, err := r.Resolve("pkg/parser/lex.go")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rec.Primary() != "data-team" {
		t.Errorf("malformed block should defer to parent, got %q", rec.Primary())
	}
}

func TestResolveDocWithoutBlock(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "docsonly")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "OWNERS.md"), []byte("# Just prose\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	r := NewResolver(root, "", nil)

	if _, err := r.Resolve("docsonly/file.go"); !IsNoOwner(err) {
		t.Errorf("document without a block must not own, got %v", err)
	}
}

func TestResolveCustomDocName(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, filepath.Join(root, "web"), "README.md", "frontend-developer")

	r := NewResolver(root, "README.md", nil)

	rec, err := r.Resolve("web/app.tsx")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rec.Primary() != "frontend-developer" {
		t.Errorf("Primary = %q", rec.Primary())
	}
}

func TestResolveTableFallback(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "ops"), 0o750); err != nil {
		t.Fatal(err)
	}

	table := []models.OwnershipRule{
		{Pattern: "ops/**", Owners: []string{"sre-team"}},
		{Pattern: "**/*.sql", Owners: []string{"data-team"}},
		{Pattern: "Makefile", Owners: []string{"build-team"}},
	}
	r := NewResolver(root, "", table)

	tests := []struct {
		path  string
		owner string
	}{
		{"ops/deploy.sh", "sre-team"},
		{"migrations/001.sql", "data-team"},
		{"Makefile", "build-team"},
	}
	for _, tt := range tests {
		rec, err := r.Resolve(tt.path)
		if err != nil {
			t.Errorf("Resolve(%q): %v", tt.path, err)
			continue
		}
		if rec.Primary() != tt.owner {
			t.Errorf("Resolve(%q) owner = %q, want %q", tt.path, rec.Primary(), tt.owner)
		}
		if !strings.HasPrefix(rec.Source, "table:") {
			t.Errorf("Resolve(%q) source = %q", tt.path, rec.Source)
		}
	}
}

func TestResolveDocBeatsTable(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, filepath.Join(root, "ops"), "OWNERS.md", "platform-team")

	table := []models.OwnershipRule{{Pattern: "ops/**", Owners: []string{"sre-team"}}}
	r := NewResolver(root, "", table)

	rec, err := r.Resolve("ops/deploy.sh")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rec.Primary() != "platform-team" {
		t.Errorf("walk must win over table, got %q", rec.Primary())
	}
}

func TestResolveNoOwnerErrorDetail(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "misc"), 0o750); err != nil {
		t.Fatal(err)
	}

	r := NewResolver(root, "", nil)

	_, err := r.Resolve("misc/orphan.go")
	if !IsNoOwner(err) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "misc/orphan.go") {
		t.Errorf("error should name the path: %v", err)
	}
}

// Resolution always terminates and either yields owners or a NoOwnerError,
// for arbitrarily nested paths.
func TestResolveTerminates(t *testing.T) {
	root := t.TempDir()
	writeDoc(t, filepath.Join(root, "a"), "OWNERS.md", "team-a")

	r := NewResolver(root, "", nil)

	rapid.Check(t, func(t *rapid.T) {
		depth := rapid.IntRange(0, 30).Draw(t, "depth")
		segs := make([]string, 0, depth+1)
		if rapid.Bool().Draw(t, "underOwned") {
			segs = append(segs, "a")
		}
		for i := 0; i < depth; i++ {
			segs = append(segs, fmt.Sprintf("d%d", rapid.IntRange(0, 5).Draw(t, fmt.Sprintf("seg%d", i))))
		}
		segs = append(segs, "file.go")
		path := strings.Join(segs, "/")

		rec, err := r.Resolve(path)
		switch {
		case err == nil:
			if len(rec.Owners) == 0 {
				t.Fatalf("Resolve(%q) returned empty owners", path)
			}
		case IsNoOwner(err):
		default:
			t.Fatalf("Resolve(%q) unexpected error: %v", path, err)
		}
	})
}
