package policy

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/sdlcguard/sdlcguard/pkg/models"
)

// Operation classifies what the caller wants to do with a path. Only
// mutations are gated; reads are always allowed.
type Operation string

const (
	OpRead   Operation = "read"
	OpMutate Operation = "mutate"
)

// Decision is the outcome of an authorization check. On deny,
// RequiredOwners carries the resolved owner(s) so the caller can
// self-correct; it is empty when no owner could be resolved.
type Decision struct {
	Allowed        bool
	Reason         string
	RequiredOwners []string
}

// Allow is the decision for permitted operations.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Gate decides whether an actor may mutate a path. It is a pure decision
// function: no side effects on allow or deny; recording happens in the
// post-mutation hook.
type Gate struct {
	repoRoot    string
	resolver    Resolver
	sharedZones gitignore.Matcher
	unowned     models.UnownedPathPolicy
}

// NewGate creates a Gate for the repository at repoRoot. sharedZones are
// gitignore-style patterns any actor may mutate unconditionally; unowned
// selects the fail-closed (block) or fail-open (allow) behavior for paths
// with no declared owner.
func NewGate(repoRoot string, resolver Resolver, sharedZones []string, unowned models.UnownedPathPolicy) *Gate {
	if len(sharedZones) == 0 {
		sharedZones = models.DefaultSharedZones()
	}
	patterns := make([]gitignore.Pattern, 0, len(sharedZones))
	for _, zone := range sharedZones {
		patterns = append(patterns, gitignore.ParsePattern(zone, nil))
	}
	if unowned == "" {
		unowned = models.UnownedBlock
	}
	return &Gate{
		repoRoot:    filepath.Clean(repoRoot),
		resolver:    resolver,
		sharedZones: gitignore.NewMatcher(patterns),
		unowned:     unowned,
	}
}

// Authorize decides whether actor may perform op on path.
func (g *Gate) Authorize(actor, path string, op Operation) Decision {
	if op != OpMutate {
		return Allow()
	}

	if g.inSharedZone(path) {
		return Allow()
	}

	record, err := g.resolver.Resolve(path)
	if err != nil {
		if IsNoOwner(err) && g.unowned == models.UnownedAllow {
			return Allow()
		}
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("no owner declared: %s", err),
		}
	}

	if record.Contains(actor) {
		return Allow()
	}
	return Decision{
		Allowed: false,
		Reason: fmt.Sprintf("%s is owned by %s, not %s",
			path, strings.Join(record.Owners, ", "), orAnonymous(actor)),
		RequiredOwners: record.Owners,
	}
}

// inSharedZone matches the repo-relative form of path against the shared
// zone patterns. Paths outside the repository are never shared.
func (g *Gate) inSharedZone(path string) bool {
	rel := filepath.Clean(path)
	if filepath.IsAbs(rel) {
		var err error
		rel, err = filepath.Rel(g.repoRoot, rel)
		if err != nil {
			return false
		}
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	segments := strings.Split(filepath.ToSlash(rel), "/")
	return g.sharedZones.Match(segments, false)
}

func orAnonymous(actor string) string {
	if actor == "" {
		return "an unidentified actor"
	}
	return actor
}
