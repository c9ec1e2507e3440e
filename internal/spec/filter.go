package spec

import (
	"fmt"
	"regexp"
	"strings"
)

// Filter selects a subset of endpoints. Include filters are intersections;
// exclude filters are removals applied after includes.
type Filter struct {
	IncludeTags  []string
	ExcludeTags  []string
	IncludePaths []string
	ExcludePaths []string
	Methods      []string
}

// IsZero reports whether the filter selects everything.
func (f Filter) IsZero() bool {
	return len(f.IncludeTags) == 0 && len(f.ExcludeTags) == 0 &&
		len(f.IncludePaths) == 0 && len(f.ExcludePaths) == 0 && len(f.Methods) == 0
}

// Apply returns the endpoints retained by the filter, preserving order.
func (f Filter) Apply(endpoints []Endpoint) ([]Endpoint, error) {
	includePaths, err := compileGlobs(f.IncludePaths)
	if err != nil {
		return nil, err
	}
	excludePaths, err := compileGlobs(f.ExcludePaths)
	if err != nil {
		return nil, err
	}

	methods := make(map[string]bool, len(f.Methods))
	for _, m := range f.Methods {
		methods[strings.ToUpper(m)] = true
	}

	var out []Endpoint
	for _, ep := range endpoints {
		if len(methods) > 0 && !methods[ep.Method] {
			continue
		}
		if len(f.IncludeTags) > 0 && !anyTag(ep, f.IncludeTags) {
			continue
		}
		if len(includePaths) > 0 && !anyMatch(includePaths, ep.Path) {
			continue
		}
		if anyTag(ep, f.ExcludeTags) {
			continue
		}
		if anyMatch(excludePaths, ep.Path) {
			continue
		}
		out = append(out, ep)
	}
	return out, nil
}

func anyTag(ep Endpoint, tags []string) bool {
	for _, t := range tags {
		if ep.HasTag(t) {
			return true
		}
	}
	return false
}

func anyMatch(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

// compileGlobs converts glob-style patterns into anchored regular
// expressions. `*` matches any run of characters including separators,
// `?` matches a single character.
func compileGlobs(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := CompileGlob(pattern)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

// CompileGlob compiles a single glob pattern into an anchored regexp.
func CompileGlob(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return re, nil
}
