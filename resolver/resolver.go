// Package resolver implements the variable resolver (C7): the ${...}
// expression language that pipes one step's output into a later step's
// parameters.
//
// No direct teacher analog exists in the retrieval pack — the closest
// cousins are the pack's small single-purpose template/parsing utilities
// (e.g. orchestration's prompt templating). Kept terse and comment-light to
// match the teacher's style for that class of file.
package resolver

import (
	"strconv"
	"strings"

	"github.com/intentgw/gateway/plan"
)

// Logger is the minimal logging surface the resolver needs to warn about
// unresolvable references without failing the whole substitution.
type Logger interface {
	Warn(msg string, fields map[string]any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, map[string]any) {}

// Resolver evaluates ${...} references against an ExecutionContext.
type Resolver struct {
	logger Logger
}

// New creates a Resolver. A nil logger is replaced with a no-op.
func New(logger Logger) *Resolver {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Resolver{logger: logger}
}

// ResolveParameters recursively resolves every ${...} reference in params
// against ec, returning a new parameter map. Unresolvable references are
// left verbatim in the text (never fabricated) and logged.
func (r *Resolver) ResolveParameters(params map[string]plan.Value, ec *plan.ExecutionContext) map[string]plan.Value {
	out := make(map[string]plan.Value, len(params))
	for k, v := range params {
		out[k] = r.resolveValue(v, ec)
	}
	return out
}

func (r *Resolver) resolveValue(v plan.Value, ec *plan.ExecutionContext) plan.Value {
	switch t := v.(type) {
	case string:
		return r.resolveString(t, ec)
	case map[string]plan.Value:
		out := make(map[string]plan.Value, len(t))
		for k, vv := range t {
			out[k] = r.resolveValue(vv, ec)
		}
		return out
	case []plan.Value:
		out := make([]plan.Value, len(t))
		for i, vv := range t {
			out[i] = r.resolveValue(vv, ec)
		}
		return out
	default:
		return v
	}
}

// ref describes one ${...} occurrence found in a string.
type ref struct {
	start, end int // byte offsets of the full "${...}" token
	expr       string
}

func findRefs(s string) []ref {
	var refs []ref
	i := 0
	for {
		start := strings.Index(s[i:], "${")
		if start == -1 {
			break
		}
		start += i
		end := strings.Index(s[start:], "}")
		if end == -1 {
			break
		}
		end += start
		refs = append(refs, ref{start: start, end: end + 1, expr: s[start+2 : end]})
		i = end + 1
	}
	return refs
}

// resolveString handles both the "entire string is one reference" rule
// (type-preserving) and the "splice into surrounding text" rule.
func (r *Resolver) resolveString(s string, ec *plan.ExecutionContext) plan.Value {
	refs := findRefs(s)
	if len(refs) == 0 {
		return s
	}

	if len(refs) == 1 && refs[0].start == 0 && refs[0].end == len(s) {
		val, ok := r.resolvePath(refs[0].expr, ec)
		if !ok {
			r.warnUnresolved(refs[0].expr)
			return s
		}
		return val
	}

	var b strings.Builder
	last := 0
	for _, rf := range refs {
		b.WriteString(s[last:rf.start])
		val, ok := r.resolvePath(rf.expr, ec)
		if !ok {
			r.warnUnresolved(rf.expr)
			b.WriteString(s[rf.start:rf.end])
		} else {
			b.WriteString(plan.ToDisplayString(val))
		}
		last = rf.end
	}
	b.WriteString(s[last:])
	return b.String()
}

func (r *Resolver) warnUnresolved(expr string) {
	r.logger.Warn("unresolved variable reference", map[string]any{"expr": expr})
}

// resolvePath evaluates one dot-separated path against ec, honoring I4:
// only step results with Order strictly less than the current step (i.e.
// the ones already appended to ec) are visible.
func (r *Resolver) resolvePath(path string, ec *plan.ExecutionContext) (plan.Value, bool) {
	segments := strings.Split(path, ".")
	if len(segments) == 0 {
		return nil, false
	}

	head := segments[0]
	var current plan.Value
	switch {
	case strings.EqualFold(head, "userId"):
		current = ec.UserID
	case strings.EqualFold(head, "intent"):
		current = ec.Intent
	case len(head) > 4 && strings.EqualFold(head[:4], "step"):
		n, err := strconv.Atoi(head[4:])
		if err != nil {
			return nil, false
		}
		res, ok := ec.ResultFor(n)
		if !ok || !res.Success {
			return nil, false
		}
		current = res.Value
	default:
		if v, ok := ec.Variables[head]; ok {
			current = v
		} else {
			return nil, false
		}
	}

	for _, seg := range segments[1:] {
		next, ok := navigate(current, seg)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

// navigate steps into current via an object property (case-insensitive), a
// dictionary key (case-sensitive), or a sequence index.
func navigate(current plan.Value, seg string) (plan.Value, bool) {
	if idx, err := strconv.Atoi(seg); err == nil && idx >= 0 {
		if s, ok := plan.AsSlice(current); ok {
			if idx < len(s) {
				return s[idx], true
			}
			return nil, false
		}
	}

	m, ok := plan.AsMap(current)
	if !ok {
		return nil, false
	}
	if v, ok := m[seg]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, seg) {
			return v, true
		}
	}
	return nil, false
}
