// Package query compiles metadata filter predicates into SQL FROM and WHERE
// clause fragments over the metadata-store schema. A FilterQueryBuilder
// rewrites every relationship reference mentioned by a predicate into a
// qualified column against a generated table alias, and composes the FROM
// clause holding exactly the joins those references require.
package query

import (
	"errors"
	"fmt"
	"strings"
)

// Reference name prefixes of the filter mini-language. A structured neighbor
// reference carries one of these, followed by a suffix unique per distinct
// relationship slot in the query text.
const (
	PrefixContext        = "contexts_"
	PrefixProperty       = "properties_"
	PrefixCustomProperty = "custom_properties_"
	PrefixParentContext  = "parent_contexts_"
	PrefixChildContext   = "child_contexts_"
	PrefixEvent          = "events_"
)

// ErrUnsupportedRelationship reports a filtering predicate that mentions a
// relationship the compiler cannot resolve for the node kind. In particular,
// context-artifact and context-execution neighbor traversal is not supported.
var ErrUnsupportedRelationship = errors.New("filtering predicate uses an unsupported relationship")

// Category classifies what kind of related data a predicate leaf references.
type Category int

const (
	CategoryAttribute Category = iota
	CategoryContext
	CategoryProperty
	CategoryCustomProperty
	CategoryParentContext
	CategoryChildContext
	CategoryEvent
)

var neighborPrefixes = []struct {
	prefix   string
	category Category
}{
	{PrefixContext, CategoryContext},
	{PrefixProperty, CategoryProperty},
	{PrefixCustomProperty, CategoryCustomProperty},
	{PrefixParentContext, CategoryParentContext},
	{PrefixChildContext, CategoryChildContext},
	{PrefixEvent, CategoryEvent},
}

// ClassifyNeighbor reports the relationship category of a structured
// neighbor reference name, together with the concept identity that
// disambiguates distinct mentions of the category. Property references are
// identified by the property name itself; the other categories keep the full
// reference name.
func ClassifyNeighbor(name string) (Category, string, bool) {
	for _, p := range neighborPrefixes {
		if strings.HasPrefix(name, p.prefix) {
			concept := name
			if p.category == CategoryProperty || p.category == CategoryCustomProperty {
				concept = strings.TrimPrefix(name, p.prefix)
			}
			return p.category, concept, true
		}
	}
	return 0, "", false
}

const tableAliasPrefix = "table_"

// Concept keys of the two static attribute references.
const (
	baseRef = ""
	typeRef = "type"
)

// TypeAttributeRef is the identifier the `type` attribute is compiled under.
// The attribute's surface spelling collides with an identifier CEL's standard
// environment pre-declares, so Compile substitutes this name into the
// predicate text before parsing; RewriteLeaf maps either spelling to the
// type join.
const TypeAttributeRef = "node_type"

type conceptKey struct {
	category Category
	concept  string
}

// FilterQueryBuilder accumulates the relationship mentions of one filter
// predicate while its expression tree is rewritten, and composes the FROM
// clause afterwards. One instance serves exactly one compilation and is not
// safe for concurrent use.
type FilterQueryBuilder struct {
	kind       NodeKind
	aliases    map[conceptKey]string
	order      map[Category][]string // concepts in first-mention order
	aliasIndex int
}

// NewFilterQueryBuilder returns a builder for one predicate over the given
// node kind. The base-table reference is pre-registered under the base
// table's own name, so every compiled predicate has a stable root alias.
func NewFilterQueryBuilder(kind NodeKind) *FilterQueryBuilder {
	b := &FilterQueryBuilder{
		kind:    kind,
		aliases: make(map[conceptKey]string),
		order:   make(map[Category][]string),
	}
	b.bind(CategoryAttribute, baseRef, kind.Table())
	return b
}

func (b *FilterQueryBuilder) bind(cat Category, concept, alias string) {
	b.aliases[conceptKey{cat, concept}] = alias
	b.order[cat] = append(b.order[cat], concept)
}

// TableAlias returns the alias bound to (category, concept), assigning the
// next generated alias on first mention and the same alias ever after.
func (b *FilterQueryBuilder) TableAlias(cat Category, concept string) string {
	if alias, ok := b.aliases[conceptKey{cat, concept}]; ok {
		return alias
	}
	b.aliasIndex++
	alias := fmt.Sprintf("%s%d", tableAliasPrefix, b.aliasIndex)
	b.bind(cat, concept, alias)
	return alias
}

// BaseAlias returns the alias of the base-table reference.
func (b *FilterQueryBuilder) BaseAlias() string {
	return b.aliases[conceptKey{CategoryAttribute, baseRef}]
}

// RewriteLeaf implements the leaf-rewrite capability consumed by the
// expression printer. Plain references resolve against the base table, or
// against the type join for the special `type` attribute. Structured
// references are classified by prefix, registered for a join, and rewritten
// to <alias>.<field>; with an empty field only the alias is returned and the
// printer renders the field access itself.
func (b *FilterQueryBuilder) RewriteLeaf(name, field string, structured bool) (string, error) {
	if !structured {
		if name == typeRef || name == TypeAttributeRef {
			return b.TableAlias(CategoryAttribute, typeRef) + "." + typeRef, nil
		}
		if err := validateIdentifier(name); err != nil {
			return "", err
		}
		return b.TableAlias(CategoryAttribute, baseRef) + "." + name, nil
	}
	cat, concept, ok := ClassifyNeighbor(name)
	if !ok {
		return "", fmt.Errorf("%w: cannot resolve %q", ErrUnsupportedRelationship, name)
	}
	if !b.kind.supports(cat) {
		return "", fmt.Errorf("%w: %q does not apply to %s predicates", ErrUnsupportedRelationship, name, b.kind)
	}
	alias := b.TableAlias(cat, concept)
	if field == "" {
		return alias, nil
	}
	if err := validateIdentifier(field); err != nil {
		return "", err
	}
	return alias + "." + field, nil
}

// FromClause composes the base table followed by one join per registered
// concept, in fixed category order: type, context, property, custom
// property, parent context, child context, event. Within a category, joins
// follow the first-mention order of the compilation. The fixed order keeps
// the generated SQL independent of predicate-evaluation order.
func (b *FilterQueryBuilder) FromClause() string {
	base := b.BaseAlias()
	var sb strings.Builder
	sb.WriteString(b.BaseNodeTable())
	if _, ok := b.aliases[conceptKey{CategoryAttribute, typeRef}]; ok {
		sb.WriteString(b.TypeJoinTable(base, b.aliases[conceptKey{CategoryAttribute, typeRef}]))
	}
	for _, concept := range b.order[CategoryContext] {
		sb.WriteString(b.ContextJoinTable(base, b.aliases[conceptKey{CategoryContext, concept}]))
	}
	for _, name := range b.order[CategoryProperty] {
		sb.WriteString(b.PropertyJoinTable(base, b.aliases[conceptKey{CategoryProperty, name}], name))
	}
	for _, name := range b.order[CategoryCustomProperty] {
		sb.WriteString(b.CustomPropertyJoinTable(base, b.aliases[conceptKey{CategoryCustomProperty, name}], name))
	}
	for _, concept := range b.order[CategoryParentContext] {
		sb.WriteString(b.ParentContextJoinTable(base, b.aliases[conceptKey{CategoryParentContext, concept}]))
	}
	for _, concept := range b.order[CategoryChildContext] {
		sb.WriteString(b.ChildContextJoinTable(base, b.aliases[conceptKey{CategoryChildContext, concept}]))
	}
	for _, concept := range b.order[CategoryEvent] {
		sb.WriteString(b.EventJoinTable(base, b.aliases[conceptKey{CategoryEvent, concept}]))
	}
	return sb.String()
}
