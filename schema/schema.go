// Package schema declares the metadata-store schema to the CEL type checker:
// the base-table columns of each node kind, and the neighbor object types a
// filter predicate can dereference (related contexts, properties, parent and
// child contexts, events).
package schema

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/mdstore/filtersql/query"
)

// FieldSchema is one column of a table or neighbor type.
type FieldSchema struct {
	Name string
	Type *cel.Type
}

// Schema is an ordered list of field schemas.
type Schema []FieldSchema

// Neighbor object type names, as seen by the CEL type checker.
const (
	ContextType       = "Context"
	PropertyType      = "Property"
	ParentContextType = "ParentContext"
	ChildContextType  = "ChildContext"
	EventType         = "Event"
)

// neighborSchemas lists, per neighbor type, the columns the corresponding
// join template exposes.
var neighborSchemas = map[string]Schema{
	ContextType: {
		{Name: "id", Type: cel.IntType},
		{Name: "name", Type: cel.StringType},
		{Name: "type", Type: cel.StringType},
		{Name: "create_time_since_epoch", Type: cel.IntType},
		{Name: "last_update_time_since_epoch", Type: cel.IntType},
	},
	PropertyType: {
		{Name: "int_value", Type: cel.IntType},
		{Name: "double_value", Type: cel.DoubleType},
		{Name: "string_value", Type: cel.StringType},
	},
	ParentContextType: {
		{Name: "name", Type: cel.StringType},
		{Name: "type", Type: cel.StringType},
	},
	ChildContextType: {
		{Name: "name", Type: cel.StringType},
		{Name: "type", Type: cel.StringType},
	},
	EventType: {
		{Name: "artifact_id", Type: cel.IntType},
		{Name: "execution_id", Type: cel.IntType},
		{Name: "type", Type: cel.StringType},
		{Name: "milliseconds_since_epoch", Type: cel.IntType},
	},
}

// BaseColumns returns the plain attribute columns of a node kind, including
// the `type` attribute resolved through the type join.
func BaseColumns(kind query.NodeKind) Schema {
	common := Schema{
		{Name: "id", Type: cel.IntType},
		{Name: "name", Type: cel.StringType},
		{Name: "type_id", Type: cel.IntType},
		{Name: "type", Type: cel.StringType},
		{Name: "external_id", Type: cel.StringType},
		{Name: "create_time_since_epoch", Type: cel.IntType},
		{Name: "last_update_time_since_epoch", Type: cel.IntType},
	}
	switch kind {
	case query.Artifact:
		return append(common,
			FieldSchema{Name: "uri", Type: cel.StringType},
			FieldSchema{Name: "state", Type: cel.StringType})
	case query.Execution:
		return append(common,
			FieldSchema{Name: "last_known_state", Type: cel.StringType})
	}
	return common
}

// NeighborTypeName returns the object type name declared for structured
// references of the given category. CategoryAttribute has no neighbor type.
func NeighborTypeName(cat query.Category) string {
	switch cat {
	case query.CategoryContext:
		return ContextType
	case query.CategoryProperty, query.CategoryCustomProperty:
		return PropertyType
	case query.CategoryParentContext:
		return ParentContextType
	case query.CategoryChildContext:
		return ChildContextType
	case query.CategoryEvent:
		return EventType
	}
	panic(fmt.Sprintf("schema: no neighbor type for category %d", cat))
}

// Env builds the CEL environment for compiling one filter predicate: every
// base column of the node kind becomes a plain variable, and every
// structured neighbor reference found in the predicate text is declared as a
// variable of its neighbor object type. References whose category the node
// kind does not support are still declared; the rewriter reports them, so
// the caller sees an unsupported-relationship error rather than an
// undeclared-identifier one.
func Env(kind query.NodeKind, neighborRefs []string) (*cel.Env, error) {
	opts := []cel.EnvOption{cel.CustomTypeProvider(NewTypeProvider())}
	for _, col := range BaseColumns(kind) {
		name := col.Name
		if name == "type" {
			// `type` is already an identifier in CEL's standard environment
			// and cannot be declared again. The compiler substitutes the
			// internal spelling for the bare token before parsing.
			name = query.TypeAttributeRef
		}
		opts = append(opts, cel.Variable(name, col.Type))
	}
	for _, name := range neighborRefs {
		cat, _, ok := query.ClassifyNeighbor(name)
		if !ok {
			continue
		}
		opts = append(opts, cel.Variable(name, cel.ObjectType(NeighborTypeName(cat))))
	}
	return cel.NewEnv(opts...)
}

// typeProvider exposes the neighbor schemas to the CEL type checker.
type typeProvider struct {
	schemas map[string]Schema
}

// NewTypeProvider returns a CEL type provider over the neighbor object
// types.
func NewTypeProvider() types.Provider {
	return &typeProvider{schemas: neighborSchemas}
}

func (p *typeProvider) EnumValue(enumName string) ref.Val {
	return types.NewErr("unknown enum name '%s'", enumName)
}

func (p *typeProvider) FindIdent(_ string) (ref.Val, bool) {
	return nil, false
}

func (p *typeProvider) FindStructType(structType string) (*types.Type, bool) {
	if _, found := p.schemas[structType]; !found {
		return nil, false
	}
	return types.NewObjectType(structType), true
}

func (p *typeProvider) FindStructFieldNames(structType string) ([]string, bool) {
	schema, found := p.schemas[structType]
	if !found {
		return nil, false
	}
	fieldNames := make([]string, len(schema))
	for i, field := range schema {
		fieldNames[i] = field.Name
	}
	return fieldNames, true
}

func (p *typeProvider) FindStructFieldType(structType, fieldName string) (*types.FieldType, bool) {
	schema, found := p.schemas[structType]
	if !found {
		return nil, false
	}
	for _, field := range schema {
		if field.Name == fieldName {
			return &types.FieldType{Type: field.Type}, true
		}
	}
	return nil, false
}

func (p *typeProvider) NewValue(structType string, _ map[string]ref.Val) ref.Val {
	return types.NewErr("unknown type '%s'", structType)
}

var _ types.Provider = new(typeProvider)
