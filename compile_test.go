package filtersql_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdstore/filtersql"
	"github.com/mdstore/filtersql/query"
)

func TestCompile_AttributesOnly(t *testing.T) {
	from, where, err := filtersql.Compile(query.Artifact,
		`uri == "s3://data/train.tfrecord" && state != "DELETED"`)
	require.NoError(t, err)
	assert.Equal(t, "Artifact ", from)
	assert.Equal(t, "Artifact.uri = 's3://data/train.tfrecord' AND Artifact.state != 'DELETED'", where)
}

func TestCompile_PropertyAndContextFilter(t *testing.T) {
	from, where, err := filtersql.Compile(query.Artifact,
		`properties_accuracy.double_value > 0.9 && contexts_0.name == "run1"`)
	require.NoError(t, err)

	assert.Equal(t, "table_1.double_value > 0.9 AND table_2.name = 'run1'", where)

	assert.True(t, strings.HasPrefix(from, "Artifact "))
	assert.Contains(t, from, "JOIN Attribution ON Context.id = Attribution.context_id")
	assert.Contains(t, from, ") AS table_2 ON Artifact.id = table_2.artifact_id")
	assert.Contains(t, from, "FROM ArtifactProperty WHERE name = 'accuracy' AND is_custom_property = FALSE")
	assert.Contains(t, from, ") AS table_1 ON Artifact.id = table_1.artifact_id")
	// Context joins come before property joins even though the property was
	// mentioned first.
	assert.Less(t, strings.Index(from, "AS table_2"), strings.Index(from, "AS table_1"))
}

func TestCompile_TypeAttribute(t *testing.T) {
	from, where, err := filtersql.Compile(query.Execution,
		`type == "Trainer" && last_known_state == "COMPLETE"`)
	require.NoError(t, err)

	assert.Equal(t, "table_1.type = 'Trainer' AND Execution.last_known_state = 'COMPLETE'", where)
	assert.Contains(t, from, "WHERE Type.type_kind = 0")
	assert.Contains(t, from, ") AS table_1 ON Execution.type_id = table_1.type_id")
}

// The type attribute's surface spelling collides with an identifier CEL
// pre-declares, so the compiler substitutes an internal name for the bare
// token. Only the bare token: string literals, field selections and longer
// identifiers must come through untouched.
func TestCompile_TypeTokenBoundaries(t *testing.T) {
	tests := []struct {
		name      string
		filter    string
		wantWhere string
	}{
		{"bare token", `type == "DataSet"`, `table_1.type = 'DataSet'`},
		{"string literal untouched", `name == "type"`, `Artifact.name = 'type'`},
		{"field selection untouched", `contexts_0.type == "Experiment"`, `table_1.type = 'Experiment'`},
		{"longer identifier untouched", `type_id == 1`, `Artifact.type_id = 1`},
		{"mixed", `type == "DataSet" && name == "type"`, `table_1.type = 'DataSet' AND Artifact.name = 'type'`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, where, err := filtersql.Compile(query.Artifact, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.wantWhere, where)
		})
	}
}

func TestCompile_CustomPropertyFilter(t *testing.T) {
	from, where, err := filtersql.Compile(query.Artifact,
		`custom_properties_framework.string_value == "tensorflow"`)
	require.NoError(t, err)

	assert.Equal(t, "table_1.string_value = 'tensorflow'", where)
	assert.Contains(t, from, "FROM ArtifactProperty WHERE name = 'framework' AND is_custom_property = TRUE")
}

func TestCompile_ParentContextFilter(t *testing.T) {
	from, where, err := filtersql.Compile(query.Context, `parent_contexts_0.name == "pipeline"`)
	require.NoError(t, err)

	assert.Equal(t, "table_1.name = 'pipeline'", where)
	assert.Contains(t, from, "ParentContext.context_id AS child_context_id")
	assert.Contains(t, from, ") AS table_1 ON Context.id = table_1.child_context_id")
	assert.NotContains(t, from, "Attribution")
	assert.NotContains(t, from, "Event")
}

func TestCompile_ChildContextFilter(t *testing.T) {
	from, where, err := filtersql.Compile(query.Context, `child_contexts_0.type == "Experiment"`)
	require.NoError(t, err)

	assert.Equal(t, "table_1.type = 'Experiment'", where)
	assert.Contains(t, from, "ParentContext.parent_context_id AS parent_context_id")
	assert.Contains(t, from, ") AS table_1 ON Context.id = table_1.parent_context_id")
}

func TestCompile_EventFilter(t *testing.T) {
	from, where, err := filtersql.Compile(query.Artifact,
		`events_0.type == "OUTPUT" && events_0.milliseconds_since_epoch > 100`)
	require.NoError(t, err)

	assert.Equal(t, "table_1.type = 'OUTPUT' AND table_1.milliseconds_since_epoch > 100", where)
	assert.Equal(t, "Artifact \nJOIN Event AS table_1 ON Artifact.id = table_1.artifact_id ", from)
}

func TestCompile_RepeatedMentionJoinsOnce(t *testing.T) {
	from, where, err := filtersql.Compile(query.Artifact,
		`properties_x.int_value > 0 && properties_x.int_value < 10`)
	require.NoError(t, err)

	assert.Equal(t, "table_1.int_value > 0 AND table_1.int_value < 10", where)
	assert.Equal(t, 1, strings.Count(from, "FROM ArtifactProperty"))
}

func TestCompile_StringValueEscaping(t *testing.T) {
	_, where, err := filtersql.Compile(query.Artifact,
		`properties_note.string_value == "it's"`)
	require.NoError(t, err)
	assert.Equal(t, "table_1.string_value = 'it''s'", where)
}

func TestCompile_CategoryOrderIsDeterministic(t *testing.T) {
	fromA, _, err := filtersql.Compile(query.Artifact,
		`contexts_0.name == "run1" && properties_p.int_value == 1`)
	require.NoError(t, err)
	fromB, _, err := filtersql.Compile(query.Artifact,
		`properties_p.int_value == 1 && contexts_0.name == "run1"`)
	require.NoError(t, err)

	for _, from := range []string{fromA, fromB} {
		assert.Less(t, strings.Index(from, "JOIN Attribution"), strings.Index(from, "FROM ArtifactProperty"))
	}
}

func TestCompile_UnsupportedRelationships(t *testing.T) {
	tests := []struct {
		name   string
		kind   query.NodeKind
		filter string
	}{
		{"context events", query.Context, `events_0.type == "INPUT"`},
		{"context contexts", query.Context, `contexts_0.name == "run1"`},
		{"artifact parent contexts", query.Artifact, `parent_contexts_0.name == "pipeline"`},
		{"execution child contexts", query.Execution, `child_contexts_0.name == "run1"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, where, err := filtersql.Compile(tt.kind, tt.filter)
			require.Error(t, err)
			assert.ErrorIs(t, err, query.ErrUnsupportedRelationship)
			assert.Empty(t, from)
			assert.Empty(t, where)
		})
	}
}

func TestCompile_InvalidFilters(t *testing.T) {
	tests := []struct {
		name   string
		kind   query.NodeKind
		filter string
	}{
		{"syntax error", query.Artifact, `uri == `},
		{"unknown column", query.Artifact, `no_such_column == 1`},
		{"unknown neighbor prefix", query.Artifact, `pipelines_0.name == "x"`},
		{"type mismatch", query.Artifact, `uri == 1`},
		{"unknown property field", query.Artifact, `properties_accuracy.bytes_value == "x"`},
		{"uri on execution", query.Execution, `uri == "s3://x"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := filtersql.Compile(tt.kind, tt.filter)
			assert.Error(t, err)
		})
	}
}
