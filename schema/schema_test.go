package schema_test

import (
	"testing"

	"github.com/google/cel-go/cel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdstore/filtersql/query"
	"github.com/mdstore/filtersql/schema"
)

func TestBaseColumns(t *testing.T) {
	names := func(s schema.Schema) []string {
		out := make([]string, len(s))
		for i, f := range s {
			out[i] = f.Name
		}
		return out
	}

	assert.Contains(t, names(schema.BaseColumns(query.Artifact)), "uri")
	assert.Contains(t, names(schema.BaseColumns(query.Artifact)), "state")
	assert.Contains(t, names(schema.BaseColumns(query.Execution)), "last_known_state")
	assert.NotContains(t, names(schema.BaseColumns(query.Execution)), "uri")
	assert.NotContains(t, names(schema.BaseColumns(query.Context)), "state")

	// Every kind exposes the type attribute resolved through the type join.
	for _, kind := range []query.NodeKind{query.Artifact, query.Execution, query.Context} {
		assert.Contains(t, names(schema.BaseColumns(kind)), "type")
	}
}

func TestTypeProvider_FindStructType(t *testing.T) {
	provider := schema.NewTypeProvider()

	celType, found := provider.FindStructType(schema.PropertyType)
	require.True(t, found)
	assert.Equal(t, schema.PropertyType, celType.TypeName())

	_, found = provider.FindStructType("Unknown")
	assert.False(t, found)
}

func TestTypeProvider_FindStructFieldNames(t *testing.T) {
	provider := schema.NewTypeProvider()

	fieldNames, found := provider.FindStructFieldNames(schema.PropertyType)
	require.True(t, found)
	assert.Equal(t, []string{"int_value", "double_value", "string_value"}, fieldNames)

	_, found = provider.FindStructFieldNames("Unknown")
	assert.False(t, found)
}

func TestTypeProvider_FindStructFieldType(t *testing.T) {
	provider := schema.NewTypeProvider()

	fieldType, found := provider.FindStructFieldType(schema.PropertyType, "double_value")
	require.True(t, found)
	assert.Equal(t, cel.DoubleType, fieldType.Type)

	fieldType, found = provider.FindStructFieldType(schema.EventType, "milliseconds_since_epoch")
	require.True(t, found)
	assert.Equal(t, cel.IntType, fieldType.Type)

	_, found = provider.FindStructFieldType(schema.PropertyType, "bytes_value")
	assert.False(t, found)
}

func TestEnv_CompilesPredicates(t *testing.T) {
	tests := []struct {
		name   string
		kind   query.NodeKind
		refs   []string
		filter string
	}{
		{"attributes", query.Artifact, nil, `uri == "s3://x" && state == "LIVE"`},
		{"type attribute", query.Execution, nil, query.TypeAttributeRef + ` == "Trainer"`},
		{"property", query.Artifact, []string{"properties_accuracy"},
			`properties_accuracy.double_value > 0.9`},
		{"context", query.Execution, []string{"contexts_0"},
			`contexts_0.name == "run1"`},
		{"parent context", query.Context, []string{"parent_contexts_0"},
			`parent_contexts_0.type == "Pipeline"`},
		{"event", query.Artifact, []string{"events_0"},
			`events_0.type == "OUTPUT"`},
		// Kind-illegal references still type-check; the query builder is
		// what rejects them, with a precise error.
		{"event on context", query.Context, []string{"events_0"},
			`events_0.type == "INPUT"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := schema.Env(tt.kind, tt.refs)
			require.NoError(t, err)
			_, issues := env.Compile(tt.filter)
			require.NoError(t, issues.Err())
		})
	}
}

func TestEnv_RejectsUnknownReferences(t *testing.T) {
	env, err := schema.Env(query.Artifact, []string{"properties_accuracy"})
	require.NoError(t, err)

	for _, filter := range []string{
		`no_such_column == 1`,
		`properties_accuracy.bytes_value == "x"`,
		`contexts_0.name == "run1"`, // never declared
		// The bare spelling hits CEL's own `type` identifier; the env only
		// accepts the internal name the compiler substitutes.
		`type == "DataSet"`,
	} {
		_, issues := env.Compile(filter)
		assert.Error(t, issues.Err(), filter)
	}
}
