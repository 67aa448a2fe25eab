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

import "strconv"

// widthLadder holds the element counts of every named width level relative
// to the expander's full vector width.
type widthLadder struct {
	full, half, quarter, eighth int
	dbl, quad, octa             int
}

func newWidthLadder(cfg Config) widthLadder {
	full := cfg.VectorWidth * cfg.BaseType.internalWidth()
	if full < 1 {
		full = 1
	}
	halve := func(n int) int {
		if n < 2 {
			return 1
		}
		return n / 2
	}
	return widthLadder{
		full:    full,
		half:    halve(full),
		quarter: halve(halve(full)),
		eighth:  halve(halve(halve(full))),
		dbl:     full * 2,
		quad:    full * 4,
		octa:    full * 8,
	}
}

// seedVars builds the base key->value substitution map every Expander starts
// with: %TYPE and its vector/reduced/super-type variants, the
// bare element-count keys, %VLOAD/%VSTORE_VALUE intrinsic names, and
// %BASEWIDTH.
func seedVars(cfg Config) map[string]string {
	scalar := cfg.BaseType.scalarName()
	w := newWidthLadder(cfg)

	vars := map[string]string{
		"%TYPE":         scalar,
		"%TYPE%V":       vectorTypeName(scalar, w.full),
		"%TYPE%HV":      vectorTypeName(scalar, w.half),
		"%TYPE%QV":      vectorTypeName(scalar, w.quarter),
		"%TYPE%OV":      vectorTypeName(scalar, w.eighth),
		"%TYPE%DV":      vectorTypeName(scalar, w.dbl),
		"%TYPE%QUADV":   vectorTypeName(scalar, w.quad),
		"%TYPE%OCTAV":   vectorTypeName(scalar, w.octa),
		"%V":            strconv.Itoa(w.full),
		"%HV":           strconv.Itoa(w.half),
		"%QV":           strconv.Itoa(w.quarter),
		"%OV":           strconv.Itoa(w.eighth),
		"%DV":           strconv.Itoa(w.dbl),
		"%QUADV":        strconv.Itoa(w.quad),
		"%OCTAV":        strconv.Itoa(w.octa),
		"%VSTORE_VALUE": vloadStoreName("vstore", w.full, cfg.EnableVectorStore),
	}
	vars["%VLOAD"] = vloadStoreName("vload", w.full, cfg.EnableVectorLoad)
	if cfg.BaseType.IsComplex() {
		vars["%BASEWIDTH"] = "2"
	} else {
		vars["%BASEWIDTH"] = "1"
	}
	return vars
}

// vloadStoreName names the vector-load/store intrinsic for width n, per the
// OpenCL vloadN/vstoreN convention. When the corresponding enable flag is
// false, or n <= 1, it returns the empty string, and the directive bodies in
// directives.go fall back to a direct dereference.
func vloadStoreName(prefix string, n int, enabled bool) string {
	if !enabled || n <= 1 {
		return ""
	}
	return prefix + strconv.Itoa(n)
}
