// Package policy implements ownership resolution and the mutation policy
// gate. Resolution walks a path's ancestor directories looking for an
// ownership block in each directory's descriptive document, falling back to
// a static pattern table, and never escapes the repository root.
package policy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"gopkg.in/yaml.v3"

	"github.com/sdlcguard/sdlcguard/pkg/models"
)

// maxWalkDepth bounds the ancestor walk. Repository trees are nowhere near
// this deep; the bound guards against pathological symlink loops.
const maxWalkDepth = 200

// DefaultOwnershipDoc is the descriptive document consulted in each
// directory when the config names none.
const DefaultOwnershipDoc = "OWNERS.md"

// NoOwnerError reports that the ownership walk reached the repository root
// without a match and the fallback table had none either. It is always
// surfaced, never silently allowed: it exists to catch orphaned files.
type NoOwnerError struct {
	Path     string
	Boundary string
}

func (e *NoOwnerError) Error() string {
	return fmt.Sprintf("no owner declared for %s (searched up to %s)", e.Path, e.Boundary)
}

// IsNoOwner reports whether err is a NoOwnerError.
func IsNoOwner(err error) bool {
	var noe *NoOwnerError
	return errors.As(err, &noe)
}

// Resolver resolves a repository path to its owning actor(s).
type Resolver interface {
	Resolve(path string) (*models.OwnershipRecord, error)
}

type ownershipResolver struct {
	repoRoot string
	docName  string
	table    []tableRule
}

type tableRule struct {
	pattern string
	matcher gitignore.Matcher
	owners  []string
}

// NewResolver creates a Resolver rooted at repoRoot. docName is the
// ownership document file name (DefaultOwnershipDoc when empty); table is
// the ordered static fallback consulted only when the directory walk finds
// nothing.
func NewResolver(repoRoot, docName string, table []models.OwnershipRule) Resolver {
	if docName == "" {
		docName = DefaultOwnershipDoc
	}
	rules := make([]tableRule, 0, len(table))
	for _, rule := range table {
		if rule.Pattern == "" || len(rule.Owners) == 0 {
			continue
		}
		p := gitignore.ParsePattern(rule.Pattern, nil)
		rules = append(rules, tableRule{
			pattern: rule.Pattern,
			matcher: gitignore.NewMatcher([]gitignore.Pattern{p}),
			owners:  rule.Owners,
		})
	}
	return &ownershipResolver{
		repoRoot: filepath.Clean(repoRoot),
		docName:  docName,
		table:    rules,
	}
}

// Resolve maps path to its owning actor(s). The path may be absolute or
// repo-relative, a file or a directory. Paths resolving outside the
// repository root are rejected before any filesystem inspection.
func (r *ownershipResolver) Resolve(path string) (*models.OwnershipRecord, error) {
	rel, err := r.relativize(path)
	if err != nil {
		return nil, err
	}

	// Start from the containing directory, or the path itself when it is a
	// directory. A path that does not exist yet (a file about to be
	// created) is treated as a file.
	dir := filepath.Join(r.repoRoot, rel)
	if info, statErr := os.Stat(dir); statErr != nil || !info.IsDir() {
		dir = filepath.Dir(dir)
	}

	for depth := 0; depth < maxWalkDepth; depth++ {
		if dir == r.repoRoot || !strings.HasPrefix(dir, r.repoRoot) {
			break
		}
		if rec := r.readOwnershipBlock(filepath.Join(dir, r.docName)); rec != nil {
			relDir, _ := filepath.Rel(r.repoRoot, dir)
			rec.Dir = filepath.ToSlash(relDir)
			return rec, nil
		}
		dir = filepath.Dir(dir)
	}

	// Fallback: static table, first match wins.
	segments := strings.Split(filepath.ToSlash(rel), "/")
	for _, rule := range r.table {
		if rule.matcher.Match(segments, false) {
			return &models.OwnershipRecord{
				Owners: rule.owners,
				Source: "table:" + rule.pattern,
			}, nil
		}
	}

	return nil, &NoOwnerError{
		Path:     filepath.ToSlash(rel),
		Boundary: r.repoRoot,
	}
}

// relativize turns path into a clean repo-relative path, rejecting anything
// that escapes the repository root. The check happens before any walking so
// nothing about the parent filesystem is ever inspected or leaked.
func (r *ownershipResolver) relativize(path string) (string, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(r.repoRoot, path)
	}
	abs = filepath.Clean(abs)

	rel, err := filepath.Rel(r.repoRoot, abs)
	if err != nil {
		return "", &NoOwnerError{Path: path, Boundary: r.repoRoot}
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &NoOwnerError{Path: path, Boundary: r.repoRoot}
	}
	return rel, nil
}

// ownershipFrontmatter is the YAML shape of an ownership block. The owner
// key accepts a single identifier or an ordered list.
type ownershipFrontmatter struct {
	Owner any `yaml:"owner"`
}

// readOwnershipBlock parses the ownership block at the top of docPath.
// A missing document, missing block, or malformed block all return nil:
// malformed blocks are treated as absent so the walk continues upward.
func (r *ownershipResolver) readOwnershipBlock(docPath string) *models.OwnershipRecord {
	data, err := os.ReadFile(docPath) //nolint:gosec // G304: path constrained to repoRoot by the walk
	if err != nil {
		return nil
	}

	block, ok := extractFrontmatter(string(data))
	if !ok {
		return nil
	}

	var fm ownershipFrontmatter
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return nil // malformed block: treated as absent
	}

	owners := ownerList(fm.Owner)
	if len(owners) == 0 {
		return nil
	}
	return &models.OwnershipRecord{Owners: owners, Source: docPath}
}

// extractFrontmatter returns the YAML between a leading "---" delimiter
// pair. The block must start on the first line of the document.
func extractFrontmatter(content string) (string, bool) {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return "", false
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return strings.Join(lines[1:i], "\n"), true
		}
	}
	return "", false
}

// ownerList normalizes the owner value: a string becomes a one-element
// list, a YAML sequence keeps its order, anything else is malformed.
func ownerList(v any) []string {
	switch owner := v.(type) {
	case string:
		owner = strings.TrimSpace(owner)
		if owner == "" {
			return nil
		}
		return []string{owner}
	case []any:
		var owners []string
		for _, item := range owner {
			s, ok := item.(string)
			if !ok {
				return nil
			}
			s = strings.TrimSpace(s)
			if s == "" {
				return nil
			}
			owners = append(owners, s)
		}
		return owners
	default:
		return nil
	}
}
