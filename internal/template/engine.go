// Package template implements the placeholder engine used for notification
// emails: flat {{key}} variables and single-level {{#if key}}...{{/if}}
// blocks. Input is tokenized into literal, variable and conditional nodes
// and evaluated against a variable map, so replacement order can never
// affect the output.
package template

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	openMarker  = "{{"
	closeMarker = "}}"
	ifPrefix    = "{{#if "
	endIfMarker = "{{/if}}"
)

// Variables is the flat variable map a template is evaluated against.
type Variables map[string]any

type nodeKind int

const (
	nodeLiteral nodeKind = iota
	nodeVariable
	nodeConditional
)

type node struct {
	kind nodeKind
	text string // literal content
	key  string // variable or condition key
	body []node // conditional block content, never nested
}

// Render evaluates input against vars. Unknown {{key}} placeholders are kept
// verbatim; {{#if key}} blocks are kept iff vars[key] is truthy. A {{#if}}
// opening inside another block is treated as literal text.
func Render(input string, vars Variables) string {
	var b strings.Builder
	b.Grow(len(input))
	evaluate(&b, parse(input), vars)
	return b.String()
}

func evaluate(b *strings.Builder, nodes []node, vars Variables) {
	for _, n := range nodes {
		switch n.kind {
		case nodeLiteral:
			b.WriteString(n.text)
		case nodeVariable:
			if value, ok := vars[n.key]; ok {
				b.WriteString(stringify(value))
			} else {
				b.WriteString(openMarker + n.key + closeMarker)
			}
		case nodeConditional:
			if Truthy(vars[n.key]) {
				evaluate(b, n.body, vars)
			}
		}
	}
}

func parse(input string) []node {
	var nodes []node

	for len(input) > 0 {
		start := strings.Index(input, openMarker)
		if start < 0 {
			nodes = append(nodes, node{kind: nodeLiteral, text: input})
			break
		}
		if start > 0 {
			nodes = append(nodes, node{kind: nodeLiteral, text: input[:start]})
			input = input[start:]
		}

		if strings.HasPrefix(input, ifPrefix) {
			conditional, rest, ok := parseConditional(input)
			if !ok {
				// Unterminated block: the marker itself is literal text.
				nodes = append(nodes, node{kind: nodeLiteral, text: input[:len(ifPrefix)]})
				input = input[len(ifPrefix):]
				continue
			}
			nodes = append(nodes, conditional)
			input = rest
			continue
		}

		variable, rest, ok := parseVariable(input)
		if !ok {
			nodes = append(nodes, node{kind: nodeLiteral, text: openMarker})
			input = input[len(openMarker):]
			continue
		}
		nodes = append(nodes, variable)
		input = rest
	}

	return nodes
}

// parseConditional consumes "{{#if key}}...{{/if}}". The block content may
// span multiple lines and contains only literals and variables; a nested
// opening marker stays literal.
func parseConditional(input string) (node, string, bool) {
	headEnd := strings.Index(input, closeMarker)
	if headEnd < 0 {
		return node{}, "", false
	}

	key := strings.TrimSpace(input[len(ifPrefix):headEnd])
	if key == "" {
		return node{}, "", false
	}

	bodyStart := headEnd + len(closeMarker)
	end := strings.Index(input[bodyStart:], endIfMarker)
	if end < 0 {
		return node{}, "", false
	}

	body := parseBlockBody(input[bodyStart : bodyStart+end])
	rest := input[bodyStart+end+len(endIfMarker):]
	return node{kind: nodeConditional, key: key, body: body}, rest, true
}

// parseBlockBody parses block content without recognizing further
// conditionals. Nesting is unsupported; inner markers render verbatim.
func parseBlockBody(input string) []node {
	var nodes []node

	for len(input) > 0 {
		start := strings.Index(input, openMarker)
		if start < 0 {
			nodes = append(nodes, node{kind: nodeLiteral, text: input})
			break
		}
		if start > 0 {
			nodes = append(nodes, node{kind: nodeLiteral, text: input[:start]})
			input = input[start:]
		}

		if strings.HasPrefix(input, ifPrefix) {
			nodes = append(nodes, node{kind: nodeLiteral, text: input[:len(ifPrefix)]})
			input = input[len(ifPrefix):]
			continue
		}

		variable, rest, ok := parseVariable(input)
		if !ok {
			nodes = append(nodes, node{kind: nodeLiteral, text: openMarker})
			input = input[len(openMarker):]
			continue
		}
		nodes = append(nodes, variable)
		input = rest
	}

	return nodes
}

// parseVariable consumes "{{key}}". The key is taken verbatim so that
// substitution stays a literal, case-sensitive match on the placeholder.
func parseVariable(input string) (node, string, bool) {
	end := strings.Index(input, closeMarker)
	if end < 0 {
		return node{}, "", false
	}

	key := input[len(openMarker):end]
	if key == "" || strings.ContainsAny(key, "{}\n") {
		return node{}, "", false
	}

	return node{kind: nodeVariable, key: key}, input[end+len(closeMarker):], true
}

// Truthy decides whether a conditional block is kept. Absent and nil values
// are false; strings are true unless empty, "false" or "0"; numbers are true
// when non-zero; anything else is true.
func Truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		trimmed := strings.TrimSpace(v)
		return trimmed != "" && trimmed != "false" && trimmed != "0"
	case int:
		return v != 0
	case int32:
		return v != 0
	case int64:
		return v != 0
	case float32:
		return v != 0
	case float64:
		return v != 0
	default:
		return true
	}
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
