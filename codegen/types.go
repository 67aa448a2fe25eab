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

// Package codegen implements C5, the template-directive expander: it turns
// device kernel source containing "%NAME(args)"-style directives into
// concrete device source, parameterized by base scalar type, vector width,
// and vector-load/store enablement. Substitution is longest-prefix match
// on "%KEY", not a full macro/AST expander: the directive set is small and
// closed. This package's job is to produce text satisfying the algebraic
// identities of the complex directives, not to be a valid OpenCL compiler
// front end.
package codegen

import "fmt"

// BaseType is the scalar element type an Expander is configured for.
type BaseType int

const (
	Single BaseType = iota
	Double
	Complex
	DoubleComplex
)

func (b BaseType) String() string {
	switch b {
	case Single:
		return "single"
	case Double:
		return "double"
	case Complex:
		return "complex"
	case DoubleComplex:
		return "doublecomplex"
	default:
		return "unknown"
	}
}

// IsComplex reports whether b has real and imaginary parts, which selects
// the even/odd-subfield algebra for %MAD/%VMAD-family directives.
func (b BaseType) IsComplex() bool { return b == Complex || b == DoubleComplex }

// scalarName is the generated source's name for one real lane of b: "float"
// for single/complex, "double" for double/doublecomplex.
func (b BaseType) scalarName() string {
	if b == Double || b == DoubleComplex {
		return "double"
	}
	return "float"
}

// internalWidth is the number of real lanes one logical element of b occupies:
// 2 for complex types (packed re/im), 1 otherwise.
func (b BaseType) internalWidth() int {
	if b.IsComplex() {
		return 2
	}
	return 1
}

// Config parameterizes an Expander ("On construction the expander
// is parameterized by (baseType, vectorWidth, enableVectorLoad,
// enableVectorStore, workgroupSize)").
type Config struct {
	BaseType          BaseType
	VectorWidth       int // 1, 2, 4, 8, or 16
	EnableVectorLoad  bool
	EnableVectorStore bool
	WorkgroupSize     int
}

// vectorTypeName renders elem's N-wide vector type name. N==1 degenerates to
// the bare scalar name, matching the generated-source convention that a
// width-1 "vector" is just the scalar.
func vectorTypeName(elem string, n int) string {
	if n <= 1 {
		return elem
	}
	return fmt.Sprintf("%s%d", elem, n)
}
