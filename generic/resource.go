/*
resource.go - Resource type registration, lookup and label normalization

PURPOSE:
  Provides a registry for domain packages to register their resource types
  together with the free-text labels different entry points use for them.
  "Personal Leave", "personal" and "CASUAL" must all land on the same
  canonical token before any balance maths runs; a mismatch silently
  yields a zero-impact balance, so lookup is the only way in.

HOW IT WORKS:
  1. Domain packages define their ResourceType implementations
  2. Domain packages register them with aliases from init()
  3. Parsers call LookupResource(label), which normalizes the label
     (case, separators, trailing "leave") before matching

USAGE:
  // In leave/types.go
  func init() {
      generic.RegisterResource(TypeCasual, "personal", "personal leave")
  }

  r := generic.LookupResource("Personal Leave") // returns leave.TypeCasual

SEE ALSO:
  - types.go: Identifiers
  - leave/types.go: Leave type implementation
*/
package generic

import (
	"strings"
	"sync"
)

// ResourceType identifies what kind of resource is being tracked.
// Domain packages define their own concrete types.
type ResourceType interface {
	// ResourceID returns the canonical token for this resource type.
	ResourceID() string

	// ResourceDomain returns which domain this resource belongs to.
	ResourceDomain() string
}

// =============================================================================
// RESOURCE REGISTRY
// =============================================================================

var (
	resourceRegistry = make(map[string]ResourceType)
	registryMu       sync.RWMutex
)

// RegisterResource adds a resource type and its aliases to the registry.
// Call this from domain package init() functions.
func RegisterResource(r ResourceType, aliases ...string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	resourceRegistry[NormalizeLabel(r.ResourceID())] = r
	for _, a := range aliases {
		resourceRegistry[NormalizeLabel(a)] = r
	}
}

// LookupResource finds a registered resource type by label.
// Returns nil if not found.
func LookupResource(label string) ResourceType {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return resourceRegistry[NormalizeLabel(label)]
}

// NormalizeLabel lower-cases a label, folds '_' and '-' into spaces,
// collapses whitespace and drops a trailing "leave".
func NormalizeLabel(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	if s != "leave" {
		s = strings.TrimSuffix(s, " leave")
	}
	return s
}
