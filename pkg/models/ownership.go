package models

// OwnershipRecord is the result of resolving a path to its owning actor(s).
// Owners is ordered; for shared ownership the first entry is the primary
// owner reported in deny hints.
type OwnershipRecord struct {
	Owners []string `yaml:"owner"`

	// Dir is the directory whose ownership block matched, relative to the
	// repository root, or empty when the record came from the fallback table.
	Dir string `yaml:"-"`

	// Source describes where the record came from: the path of the matched
	// ownership document, or "table:<pattern>" for fallback-table matches.
	Source string `yaml:"-"`
}

// Primary returns the first declared owner, or empty string when none.
func (r OwnershipRecord) Primary() string {
	if len(r.Owners) == 0 {
		return ""
	}
	return r.Owners[0]
}

// Contains reports whether actor is one of the declared owners.
func (r OwnershipRecord) Contains(actor string) bool {
	for _, o := range r.Owners {
		if o == actor {
			return true
		}
	}
	return false
}

// OwnershipRule is one entry of the static fallback table: a gitignore-style
// pattern mapped to its owning actor(s). Rules are evaluated in order; the
// first match wins.
type OwnershipRule struct {
	Pattern string   `yaml:"pattern" mapstructure:"pattern"`
	Owners  []string `yaml:"owners" mapstructure:"owners"`
}
