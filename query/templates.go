package query

import (
	"fmt"
	"regexp"
	"strings"
)

// Join templates composing the FROM clause. Each template keeps a leading
// newline and a trailing space so consecutive joins concatenate cleanly
// after the base table.

const typeJoinTemplate = `
JOIN (
  SELECT Type.id AS type_id, Type.name AS type
  FROM Type
  WHERE Type.type_kind = %[1]d
) AS %[2]s ON %[3]s.type_id = %[2]s.type_id `

const contextJoinTemplate = `
JOIN (
  SELECT Context.id, Context.name,
         Type.name AS type,
         %[1]s.%[2]s,
         Context.create_time_since_epoch,
         Context.last_update_time_since_epoch
  FROM Context
       JOIN Type ON Context.type_id = Type.id
       JOIN %[1]s ON Context.id = %[1]s.context_id
) AS %[3]s ON %[4]s.id = %[3]s.%[2]s `

const parentContextJoinTemplate = `
JOIN (
  SELECT Context.name,
         Type.name AS type,
         ParentContext.context_id AS child_context_id
  FROM Context
       JOIN Type ON Context.type_id = Type.id
       JOIN ParentContext ON Context.id = ParentContext.parent_context_id
) AS %[1]s ON %[2]s.id = %[1]s.child_context_id `

const childContextJoinTemplate = `
JOIN (
  SELECT Context.name,
         Type.name AS type,
         ParentContext.parent_context_id AS parent_context_id
  FROM Context
       JOIN Type ON Context.type_id = Type.id
       JOIN ParentContext ON Context.id = ParentContext.context_id
) AS %[1]s ON %[2]s.id = %[1]s.parent_context_id `

const propertyJoinTemplate = `
JOIN (
  SELECT %[1]s, int_value, double_value, string_value
  FROM %[2]s WHERE name = %[3]s AND is_custom_property = %[4]s
) AS %[5]s ON %[6]s.id = %[5]s.%[1]s `

const eventJoinTemplate = `
JOIN Event AS %[1]s ON %[2]s.id = %[1]s.%[3]s `

// BaseNodeTable renders the leading FROM-clause entry for the base table.
// The AS clause is omitted when the pre-registered alias is the table name.
func (b *FilterQueryBuilder) BaseNodeTable() string {
	table := b.kind.Table()
	if alias := b.BaseAlias(); alias != table {
		return table + " AS " + alias + " "
	}
	return table + " "
}

// TypeJoinTable renders the join filtering the shared Type table down to the
// node kind's types.
func (b *FilterQueryBuilder) TypeJoinTable(baseAlias, typeAlias string) string {
	return fmt.Sprintf(typeJoinTemplate, b.kind.traits().typeKind, typeAlias, baseAlias)
}

// ContextJoinTable renders the join to contexts related to the base node,
// through Attribution for artifacts and Association for executions.
// Requesting it for Context predicates is a programming error.
func (b *FilterQueryBuilder) ContextJoinTable(baseAlias, contextAlias string) string {
	t := b.kind.traits()
	if t.contextLink == "" {
		panic(fmt.Sprintf("query: context join does not apply to %s", b.kind))
	}
	return fmt.Sprintf(contextJoinTemplate, t.contextLink, t.contextFK, contextAlias, baseAlias)
}

// ParentContextJoinTable renders the self-join of Context through
// ParentContext exposing the parent side. Only Context predicates have it.
func (b *FilterQueryBuilder) ParentContextJoinTable(baseAlias, parentAlias string) string {
	if b.kind != Context {
		panic(fmt.Sprintf("query: parent context join does not apply to %s", b.kind))
	}
	return fmt.Sprintf(parentContextJoinTemplate, parentAlias, baseAlias)
}

// ChildContextJoinTable renders the self-join of Context through
// ParentContext exposing the child side. Only Context predicates have it.
func (b *FilterQueryBuilder) ChildContextJoinTable(baseAlias, childAlias string) string {
	if b.kind != Context {
		panic(fmt.Sprintf("query: child context join does not apply to %s", b.kind))
	}
	return fmt.Sprintf(childContextJoinTemplate, childAlias, baseAlias)
}

// PropertyJoinTable renders the join to the node kind's property table,
// filtered down to one declared property name.
func (b *FilterQueryBuilder) PropertyJoinTable(baseAlias, propertyAlias, propertyName string) string {
	return b.propertyJoinTable(baseAlias, propertyAlias, propertyName, false)
}

// CustomPropertyJoinTable is PropertyJoinTable for custom properties.
func (b *FilterQueryBuilder) CustomPropertyJoinTable(baseAlias, propertyAlias, propertyName string) string {
	return b.propertyJoinTable(baseAlias, propertyAlias, propertyName, true)
}

func (b *FilterQueryBuilder) propertyJoinTable(baseAlias, propertyAlias, propertyName string, isCustom bool) string {
	t := b.kind.traits()
	return fmt.Sprintf(propertyJoinTemplate,
		t.propertyFK, t.propertyTable, sqlStringLiteral(propertyName), sqlBool(isCustom),
		propertyAlias, baseAlias)
}

// EventJoinTable renders the direct join of the Event table on the base
// node's id. Requesting it for Context predicates is a programming error.
func (b *FilterQueryBuilder) EventJoinTable(baseAlias, eventAlias string) string {
	t := b.kind.traits()
	if t.eventFK == "" {
		panic(fmt.Sprintf("query: event join does not apply to %s", b.kind))
	}
	return fmt.Sprintf(eventJoinTemplate, eventAlias, baseAlias, t.eventFK)
}

// sqlStringLiteral renders s as a single-quoted SQL string literal, doubling
// embedded quotes. Property names are user input and must pass through here
// before substitution into a template.
func sqlStringLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func sqlBool(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}

var identifierRegexp = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,127}$`)

// validateIdentifier rejects names that cannot be emitted verbatim as SQL
// identifiers.
func validateIdentifier(name string) error {
	if !identifierRegexp.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}
