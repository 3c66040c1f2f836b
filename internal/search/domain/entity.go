// Package domain holds the search engine's vocabulary: the closed set of
// searchable entity types, their table layout, request options, and the
// uniform result and state shapes.
package domain

import "fmt"

// EntityType identifies one searchable CRM record kind.
type EntityType string

const (
	EntityLead     EntityType = "lead"
	EntityCustomer EntityType = "customer"
	EntityDeal     EntityType = "deal"
	EntityTask     EntityType = "task"
	EntityProposal EntityType = "proposal"
	EntityWorkflow EntityType = "workflow"
)

var allEntityTypes = []EntityType{
	EntityLead,
	EntityCustomer,
	EntityDeal,
	EntityTask,
	EntityProposal,
	EntityWorkflow,
}

// AllEntityTypes returns every searchable type in a fixed order.
func AllEntityTypes() []EntityType {
	out := make([]EntityType, len(allEntityTypes))
	copy(out, allEntityTypes)
	return out
}

// EntityTypeNames returns the string form of AllEntityTypes.
func EntityTypeNames() []string {
	out := make([]string, len(allEntityTypes))
	for i, t := range allEntityTypes {
		out[i] = string(t)
	}
	return out
}

// Valid reports whether t is one of the known entity types.
func (t EntityType) Valid() bool {
	_, ok := registry[t]
	return ok
}

// ParseEntityType converts a name to an EntityType.
func ParseEntityType(name string) (EntityType, error) {
	t := EntityType(name)
	if !t.Valid() {
		return "", fmt.Errorf("unknown entity type %q", name)
	}
	return t, nil
}
