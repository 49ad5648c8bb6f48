package filtersql

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mdstore/filtersql/query"
	"github.com/mdstore/filtersql/schema"
)

// neighborRefPattern finds structured neighbor references in a filter's
// text, so each distinct reference can be declared to the type checker
// before parsing. The suffix grammar is the contract with query authors.
var neighborRefPattern = regexp.MustCompile(
	`\b(?:contexts_|properties_|custom_properties_|parent_contexts_|child_contexts_|events_)[A-Za-z0-9_]*`)

// Compile compiles one filter predicate against the given node kind into a
// FROM clause enumerating exactly the joins the predicate needs, and a WHERE
// clause with every relationship reference rewritten into a qualified column
// reference. A fresh compilation is performed per call; nothing is shared
// between calls, so concurrent compilations are safe.
//
// Predicates mentioning relationships the node kind does not have fail with
// an error wrapping query.ErrUnsupportedRelationship and no partial clauses.
func Compile(kind query.NodeKind, filter string) (fromClause, whereClause string, err error) {
	rewritten := rewriteTypeAttribute(filter)
	env, err := schema.Env(kind, scanNeighborRefs(rewritten))
	if err != nil {
		return "", "", err
	}
	ast, issues := env.Compile(rewritten)
	if issues != nil && issues.Err() != nil {
		return "", "", fmt.Errorf("invalid filter %q: %w", filter, issues.Err())
	}
	builder := query.NewFilterQueryBuilder(kind)
	whereClause, err = ConvertWithRewriter(ast, builder)
	if err != nil {
		return "", "", err
	}
	return builder.FromClause(), whereClause, nil
}

// rewriteTypeAttribute substitutes query.TypeAttributeRef for every bare
// `type` token in the predicate text. CEL's standard environment already
// declares the identifier `type`, so the attribute cannot be declared under
// its surface spelling. Tokens inside string literals and field selections
// (preceded by '.') are left alone.
func rewriteTypeAttribute(filter string) string {
	var sb strings.Builder
	var prev byte // last significant byte, 0 at start
	for i := 0; i < len(filter); {
		c := filter[i]
		switch {
		case c == '\'' || c == '"':
			end := scanStringLiteral(filter, i)
			sb.WriteString(filter[i:end])
			prev = c
			i = end
		case isIdentByte(c):
			start := i
			for i < len(filter) && isIdentByte(filter[i]) {
				i++
			}
			word := filter[start:i]
			if word == "type" && prev != '.' {
				sb.WriteString(query.TypeAttributeRef)
			} else {
				sb.WriteString(word)
			}
			prev = word[len(word)-1]
		default:
			sb.WriteByte(c)
			if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
				prev = c
			}
			i++
		}
	}
	return sb.String()
}

// scanStringLiteral returns the index just past the string literal opening at
// s[start], honoring backslash escapes. Unterminated literals run to the end
// of the input; CEL reports those itself.
func scanStringLiteral(s string, start int) int {
	quote := s[start]
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case quote:
			return i + 1
		}
	}
	return len(s)
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// scanNeighborRefs returns the distinct structured neighbor reference names
// mentioned in the filter text, in order of first mention.
func scanNeighborRefs(filter string) []string {
	seen := make(map[string]bool)
	var refs []string
	for _, name := range neighborRefPattern.FindAllString(filter, -1) {
		if !seen[name] {
			seen[name] = true
			refs = append(refs, name)
		}
	}
	return refs
}
