package query

import "fmt"

// NodeKind identifies which metadata node type a filter predicate runs
// against. It determines the base table, the persisted type-kind
// discriminant, and which relationship joins apply.
type NodeKind int

const (
	Artifact NodeKind = iota
	Execution
	Context
)

func (k NodeKind) String() string {
	switch k {
	case Artifact:
		return "Artifact"
	case Execution:
		return "Execution"
	case Context:
		return "Context"
	}
	return fmt.Sprintf("NodeKind(%d)", int(k))
}

// ParseNodeKind resolves a node kind from its lower- or upper-case name.
func ParseNodeKind(s string) (NodeKind, error) {
	switch s {
	case "artifact", "Artifact":
		return Artifact, nil
	case "execution", "Execution":
		return Execution, nil
	case "context", "Context":
		return Context, nil
	}
	return 0, fmt.Errorf("unknown node kind %q", s)
}

// Table returns the base table name of the node kind.
func (k NodeKind) Table() string { return k.traits().table }

// Persisted Type.type_kind discriminant values.
const (
	executionTypeKind = 0
	artifactTypeKind  = 1
	contextTypeKind   = 2
)

// nodeTraits is the single place node-kind-specific SQL knowledge lives.
// An empty contextLink or eventFK means the corresponding join does not
// apply to the node kind.
type nodeTraits struct {
	table         string
	typeKind      int
	propertyTable string
	propertyFK    string
	contextLink   string // linking table joining Context to the base node
	contextFK     string // linking table column holding the base node id
	eventFK       string // Event column holding the base node id
}

var traitsByKind = map[NodeKind]nodeTraits{
	Artifact: {
		table:         "Artifact",
		typeKind:      artifactTypeKind,
		propertyTable: "ArtifactProperty",
		propertyFK:    "artifact_id",
		contextLink:   "Attribution",
		contextFK:     "artifact_id",
		eventFK:       "artifact_id",
	},
	Execution: {
		table:         "Execution",
		typeKind:      executionTypeKind,
		propertyTable: "ExecutionProperty",
		propertyFK:    "execution_id",
		contextLink:   "Association",
		contextFK:     "execution_id",
		eventFK:       "execution_id",
	},
	Context: {
		table:         "Context",
		typeKind:      contextTypeKind,
		propertyTable: "ContextProperty",
		propertyFK:    "context_id",
	},
}

func (k NodeKind) traits() nodeTraits {
	t, ok := traitsByKind[k]
	if !ok {
		panic(fmt.Sprintf("query: unknown node kind %d", int(k)))
	}
	return t
}

// supports reports whether leaves of the given relationship category are
// legal in predicates over this node kind.
func (k NodeKind) supports(cat Category) bool {
	switch cat {
	case CategoryAttribute, CategoryProperty, CategoryCustomProperty:
		return true
	case CategoryContext:
		return k.traits().contextLink != ""
	case CategoryEvent:
		return k.traits().eventFK != ""
	case CategoryParentContext, CategoryChildContext:
		return k == Context
	}
	return false
}
