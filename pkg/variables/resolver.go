package variables

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Resolver interpolates ${...} references against a Context.
//
// Grammar: ${scope.path.to.value} with array indexing "field[n]", plus the
// reserved pseudo-scope node("id").path reading a prior node's output.
// Unresolvable paths yield nil; interpolation keeps the literal token in
// that case. No nested interpolation.
type Resolver struct {
	ctx *Context
}

// NewResolver creates a resolver bound to one variable context.
func NewResolver(ctx *Context) *Resolver {
	return &Resolver{ctx: ctx}
}

// Resolve evaluates a bare expression (no ${} wrapper) and returns the
// referenced value, or nil when any path segment is missing.
func (r *Resolver) Resolve(expression string) any {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil
	}

	root, rest, ok := splitRoot(expression)
	if !ok {
		return nil
	}

	var base any

	switch {
	case strings.HasPrefix(root, "node("):
		nodeID, ok := parseNodeRef(root)
		if !ok {
			return nil
		}

		output, ok := r.ctx.NodeOutput(nodeID)
		if !ok {
			return nil
		}

		base = output

	case root == "system":
		base = systemVariables(r.ctx.now())

	case root == "nodeOutputs":
		snapshot := r.ctx.Snapshot()
		base = snapshot["nodeOutputs"]

	case ValidScope(Scope(root)):
		// The first path segment after the scope is the stored key; deeper
		// segments traverse into the stored value.
		key, remainder, hasKey := splitRoot(rest)
		if !hasKey {
			return nil
		}

		name, indexes, ok := parseSegment(key)
		if !ok {
			return nil
		}

		value, found := r.ctx.Get(Scope(root), name)
		if !found {
			return nil
		}

		value, ok = applyIndexes(value, indexes)
		if !ok {
			return nil
		}

		return r.walk(value, remainder)

	default:
		return nil
	}

	return r.walk(base, rest)
}

// Interpolate replaces every ${...} occurrence in the template
// independently. Tokens that do not resolve are left as written.
func (r *Resolver) Interpolate(template string) string {
	var result strings.Builder

	result.Grow(len(template))

	i := 0
	for i < len(template) {
		idx := strings.Index(template[i:], "${")
		if idx == -1 {
			result.WriteString(template[i:])

			break
		}

		result.WriteString(template[i : i+idx])
		start := i + idx + 2

		end := strings.Index(template[start:], "}")
		if end == -1 {
			// Unclosed token, keep the rest literally.
			result.WriteString(template[i+idx:])

			break
		}

		end += start
		token := template[i+idx : end+1]

		value := r.Resolve(template[start:end])
		if value == nil {
			result.WriteString(token)
		} else {
			result.WriteString(stringify(value))
		}

		i = end + 1
	}

	return result.String()
}

// ResolveTemplate resolves a template that may be a single typed reference.
// When the whole template is exactly one ${...} token the referenced value
// is returned with its type preserved; otherwise the string interpolation
// result is returned.
func (r *Resolver) ResolveTemplate(template string) any {
	trimmed := strings.TrimSpace(template)
	if strings.HasPrefix(trimmed, "${") && strings.HasSuffix(trimmed, "}") {
		inner := trimmed[2 : len(trimmed)-1]
		if !strings.Contains(inner, "${") {
			if value := r.Resolve(inner); value != nil {
				return value
			}

			return template
		}
	}

	return r.Interpolate(template)
}

// InterpolateMap renders every string leaf of a config map. Non-string
// values pass through untouched.
func (r *Resolver) InterpolateMap(config map[string]any) map[string]any {
	out := make(map[string]any, len(config))

	for k, v := range config {
		out[k] = r.interpolateValue(v)
	}

	return out
}

func (r *Resolver) interpolateValue(v any) any {
	switch value := v.(type) {
	case string:
		return r.ResolveTemplate(value)
	case map[string]any:
		return r.InterpolateMap(value)
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = r.interpolateValue(item)
		}

		return out
	default:
		return v
	}
}

// walk traverses a dotted path (with optional [n] indexes per segment)
// into a value.
func (r *Resolver) walk(value any, path string) any {
	for path != "" {
		segment, rest, _ := splitRoot(path)

		name, indexes, ok := parseSegment(segment)
		if !ok {
			return nil
		}

		obj, ok := value.(map[string]any)
		if !ok {
			return nil
		}

		value, ok = obj[name]
		if !ok {
			return nil
		}

		value, ok = applyIndexes(value, indexes)
		if !ok {
			return nil
		}

		path = rest
	}

	return value
}

// splitRoot splits "a.b.c" into ("a", "b.c"). A node("...") root keeps its
// parenthesised ID intact even when the ID contains dots.
func splitRoot(expression string) (string, string, bool) {
	if expression == "" {
		return "", "", false
	}

	if strings.HasPrefix(expression, "node(") {
		close := strings.Index(expression, ")")
		if close == -1 {
			return "", "", false
		}

		root := expression[:close+1]
		rest := expression[close+1:]
		rest = strings.TrimPrefix(rest, ".")

		return root, rest, true
	}

	if dot := strings.Index(expression, "."); dot != -1 {
		return expression[:dot], expression[dot+1:], true
	}

	return expression, "", true
}

// parseNodeRef extracts the node ID from `node("id")` or `node('id')`.
func parseNodeRef(root string) (string, bool) {
	inner := strings.TrimSuffix(strings.TrimPrefix(root, "node("), ")")
	inner = strings.TrimSpace(inner)

	if len(inner) >= 2 && (inner[0] == '"' || inner[0] == '\'') && inner[len(inner)-1] == inner[0] {
		return inner[1 : len(inner)-1], true
	}

	return "", false
}

// parseSegment splits "field[0][1]" into ("field", [0 1]).
func parseSegment(segment string) (string, []int, bool) {
	bracket := strings.Index(segment, "[")
	if bracket == -1 {
		return segment, nil, segment != ""
	}

	name := segment[:bracket]

	var indexes []int

	rest := segment[bracket:]
	for rest != "" {
		if rest[0] != '[' {
			return "", nil, false
		}

		close := strings.Index(rest, "]")
		if close == -1 {
			return "", nil, false
		}

		n, err := strconv.Atoi(rest[1:close])
		if err != nil || n < 0 {
			return "", nil, false
		}

		indexes = append(indexes, n)
		rest = rest[close+1:]
	}

	return name, indexes, name != ""
}

func applyIndexes(value any, indexes []int) (any, bool) {
	for _, n := range indexes {
		list, ok := value.([]any)
		if !ok || n >= len(list) {
			return nil, false
		}

		value = list[n]
	}

	return value, true
}

// stringify renders a resolved value for text interpolation. Maps and
// slices are embedded as compact JSON.
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
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}

		return string(encoded)
	}
}
