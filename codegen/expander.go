// Copyright 2025 go-highway Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package codegen

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// directiveFn implements one closed-set directive's text generation. It
// receives its parsed, top-level-comma-split arguments and the Expander
// that invoked it (for access to Config and the seeded variable map).
type directiveFn func(args []string, e *Expander) (string, error)

// Expander expands "%NAME(args)" directives and "%KEY" variable references
// in device kernel source. The zero value is not usable; use NewExpander.
type Expander struct {
	cfg   Config
	vars  map[string]string
	conds map[string]bool

	// sortedKeys holds every known key (plain vars ++ directive names),
	// longest first, implementing the "longest-prefix match on %KEY"
	// substitution rule.
	sortedKeys []string
}

// NewExpander builds an Expander for cfg, seeding its variable map per
// vars.go's seedVars.
func NewExpander(cfg Config) *Expander {
	e := &Expander{
		cfg:   cfg,
		vars:  seedVars(cfg),
		conds: make(map[string]bool),
	}
	e.rebuildKeyIndex()
	return e
}

func (e *Expander) rebuildKeyIndex() {
	seen := make(map[string]bool)
	var keys []string
	for k := range e.vars {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for k := range directiveTable {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	e.sortedKeys = keys
}

// SetVar overrides or adds a substitution key (e.g. a caller wiring
// %WGSIZE for a specific build), re-sorting the key index if it's new.
func (e *Expander) SetVar(key, value string) {
	_, existed := e.vars[key]
	e.vars[key] = value
	if !existed {
		e.rebuildKeyIndex()
	}
}

// SetCond sets the boolean %IF(key) guards this Expander's Expand consults
// ("%IF(key) evaluates key's stored value"). Keys not set
// default to false, dropping the guarded line.
func (e *Expander) SetCond(key string, val bool) {
	e.conds[key] = val
}

// Config returns the Expander's construction-time configuration.
func (e *Expander) Config() Config { return e.cfg }

// Expand runs the full directive pipeline over src: block directives
// (%VFOR/%VFOR_REAL) first, then line-level %IF guards, then the closed-set
// function-like directives and plain %KEY variable substitutions via
// longest-prefix match.
func (e *Expander) Expand(src string) (string, error) {
	src, err := e.expandForBlocks(src)
	if err != nil {
		return "", err
	}
	src = e.expandIfLines(src)
	return e.expandKeys(src)
}

// expandIfLines drops or unwraps %IF(key) line guards.
func (e *Expander) expandIfLines(src string) string {
	lines := strings.Split(src, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		idx := strings.Index(line, "%IF(")
		if idx < 0 {
			out = append(out, line)
			continue
		}
		close := strings.IndexByte(line[idx:], ')')
		if close < 0 {
			out = append(out, line)
			continue
		}
		close += idx
		key := strings.TrimSpace(line[idx+len("%IF(") : close])
		if !e.conds[key] {
			continue
		}
		out = append(out, line[:idx]+line[close+1:])
	}
	return strings.Join(out, "\n")
}

// expandForBlocks expands "%VFOR { body }" and "%VFOR_REAL { body }" blocks
// by unrolling body N times, substituting %VI with the 0-based iteration
// index on each copy. %VFOR unrolls over the full (internal-width-scaled)
// vector width; %VFOR_REAL unrolls over the logical element count
// (VectorWidth) only, not the doubled lane count of a complex type.
func (e *Expander) expandForBlocks(src string) (string, error) {
	for {
		name, bodyStart, bodyEnd, headerStart, ok := findNextForBlock(src)
		if !ok {
			return src, nil
		}
		body := src[bodyStart:bodyEnd]
		count := e.cfg.VectorWidth
		if name == "%VFOR" {
			count = newWidthLadder(e.cfg).full
		}
		if count < 1 {
			count = 1
		}
		var b strings.Builder
		for i := 0; i < count; i++ {
			b.WriteString(strings.ReplaceAll(body, "%VI", strconv.Itoa(i)))
		}
		src = src[:headerStart] + b.String() + src[bodyEnd+1:]
	}
}

// findNextForBlock locates the next %VFOR or %VFOR_REAL block's brace-
// delimited body, returning the directive name, the body's [start,end) byte
// range (exclusive of the braces), the directive header's start offset, and
// whether a block was found at all.
func findNextForBlock(src string) (name string, bodyStart, bodyEnd, headerStart int, ok bool) {
	bestIdx := -1
	bestName := ""
	for _, candidate := range []string{"%VFOR_REAL", "%VFOR"} {
		idx := strings.Index(src, candidate)
		if idx < 0 {
			continue
		}
		if bestIdx == -1 || idx < bestIdx || (idx == bestIdx && len(candidate) > len(bestName)) {
			bestIdx = idx
			bestName = candidate
		}
	}
	if bestIdx == -1 {
		return "", 0, 0, 0, false
	}
	rest := src[bestIdx+len(bestName):]
	braceOffset := strings.IndexByte(rest, '{')
	if braceOffset < 0 {
		return "", 0, 0, 0, false
	}
	openAbs := bestIdx + len(bestName) + braceOffset
	depth := 0
	for i := openAbs; i < len(src); i++ {
		switch src[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return bestName, openAbs + 1, i, bestIdx, true
			}
		}
	}
	return "", 0, 0, 0, false
}

// expandKeys scans src for "%KEY" tokens, dispatching "%KEY(args)" to a
// registered directive and bare "%KEY" to a plain variable substitution,
// always preferring the longest matching key at each position.
func (e *Expander) expandKeys(src string) (string, error) {
	var b strings.Builder
	i := 0
	for i < len(src) {
		if src[i] != '%' {
			b.WriteByte(src[i])
			i++
			continue
		}
		key := e.longestKeyAt(src[i:])
		if key == "" {
			b.WriteByte(src[i])
			i++
			continue
		}
		j := i + len(key)
		if fn, isDirective := directiveTable[key]; isDirective && j < len(src) && src[j] == '(' {
			closeIdx, ok := findMatchingParen(src, j)
			if !ok {
				return "", fmt.Errorf("codegen: unmatched '(' for %s", key)
			}
			args := splitArgs(src[j+1 : closeIdx])
			text, err := fn(args, e)
			if err != nil {
				return "", fmt.Errorf("codegen: %s: %w", key, err)
			}
			b.WriteString(text)
			i = closeIdx + 1
			continue
		}
		if val, ok := e.vars[key]; ok {
			b.WriteString(val)
			i = j
			continue
		}
		// A directive name with no trailing '(' and no plain-var entry:
		// emit literally rather than silently eating it.
		b.WriteString(key)
		i = j
	}
	return b.String(), nil
}

func (e *Expander) longestKeyAt(s string) string {
	for _, k := range e.sortedKeys {
		if strings.HasPrefix(s, k) {
			return k
		}
	}
	return ""
}

// findMatchingParen returns the index of the ')' matching the '(' at
// src[openIdx], accounting for nested '(' / '[' pairs.
func findMatchingParen(src string, openIdx int) (int, bool) {
	depth := 0
	for i := openIdx; i < len(src); i++ {
		switch src[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// splitArgs splits a directive's argument list on top-level commas (commas
// nested inside parens/brackets, e.g. an array index, don't split).
func splitArgs(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var args []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	args = append(args, strings.TrimSpace(s[start:]))
	return args
}
