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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestComplexVMAD: a complex-configured Expander
// must expand %VMAD(c, a, b) into the two assignments implementing
// c.even += a.even*b.even - a.odd*b.odd and c.odd += a.even*b.odd + a.odd*b.even.
func TestComplexVMAD(t *testing.T) {
	e := NewExpander(Config{BaseType: Complex, VectorWidth: 2, EnableVectorLoad: true})
	out, err := e.Expand("%VMAD(c, a, b);")
	require.NoError(t, err)
	require.Contains(t, out, "c.even += a.even * b.even - a.odd * b.odd;")
	require.Contains(t, out, "c.odd += a.even * b.odd + a.odd * b.even;")
}

func TestRealMAD(t *testing.T) {
	e := NewExpander(Config{BaseType: Single, VectorWidth: 4})
	out, err := e.Expand("%MAD(acc, x, y);")
	require.NoError(t, err)
	require.Equal(t, "acc += x * y;\n;", out)
}

func TestTypeSubstitution(t *testing.T) {
	e := NewExpander(Config{BaseType: Single, VectorWidth: 4})
	out, err := e.Expand("%TYPE%V a; %TYPE b;")
	require.NoError(t, err)
	require.Equal(t, "float4 a; float b;", out)
}

func TestDoubleComplexTypeSubstitution(t *testing.T) {
	e := NewExpander(Config{BaseType: DoubleComplex, VectorWidth: 2})
	out, err := e.Expand("%TYPE%V")
	require.NoError(t, err)
	require.Equal(t, "double4", out) // vectorWidth(2) * internalWidth(2)
}

func TestBasewidth(t *testing.T) {
	real := NewExpander(Config{BaseType: Single, VectorWidth: 1})
	out, err := real.Expand("%BASEWIDTH")
	require.NoError(t, err)
	require.Equal(t, "1", out)

	cplx := NewExpander(Config{BaseType: Complex, VectorWidth: 1})
	out, err = cplx.Expand("%BASEWIDTH")
	require.NoError(t, err)
	require.Equal(t, "2", out)
}

func TestVLoadDirectiveWithIntrinsic(t *testing.T) {
	e := NewExpander(Config{BaseType: Single, VectorWidth: 4, EnableVectorLoad: true})
	out, err := e.Expand("v = %VLOAD(ptr);")
	require.NoError(t, err)
	require.Equal(t, "v = vload4(0, ptr);", out)
}

func TestVLoadDirectiveWithoutIntrinsic(t *testing.T) {
	e := NewExpander(Config{BaseType: Single, VectorWidth: 4, EnableVectorLoad: false})
	out, err := e.Expand("v = %VLOAD(ptr);")
	require.NoError(t, err)
	require.Equal(t, "v = (*(ptr));", out)
}

func TestIfDirectiveDropsLine(t *testing.T) {
	e := NewExpander(Config{BaseType: Single, VectorWidth: 1})
	e.SetCond("TAILS_M", false)
	e.SetCond("ENABLE_MAD", true)
	src := "keep this\n%IF(TAILS_M) dropped line\n%IF(ENABLE_MAD) kept via guard\n"
	out, err := e.Expand(src)
	require.NoError(t, err)
	require.Contains(t, out, "keep this")
	require.Contains(t, out, " kept via guard")
	require.NotContains(t, out, "dropped line")
}

func TestVForUnrollsBody(t *testing.T) {
	e := NewExpander(Config{BaseType: Single, VectorWidth: 4})
	out, err := e.Expand("%VFOR { acc += v[%VI]; }")
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		require.Contains(t, out, strings.Replace("acc += v[%VI]; ", "%VI", itoaHelper(i), 1))
	}
}

func TestVForRealUnrollsLogicalElementCountForComplex(t *testing.T) {
	// width=2 logical complex elements -> 4 real lanes, but %VFOR_REAL only
	// unrolls over the 2 logical elements (VectorWidth), not the 4 lanes.
	e := NewExpander(Config{BaseType: Complex, VectorWidth: 2})
	out, err := e.Expand("%VFOR_REAL { f(%VI); }")
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(out, "f("))
}

func TestMakeVecBroadcast(t *testing.T) {
	e := NewExpander(Config{BaseType: Single, VectorWidth: 4})
	out, err := e.Expand("%VMAKEVEC(acc, 0.0f);")
	require.NoError(t, err)
	require.Equal(t, "acc = (float4)(0.0f);\n;", out)
}

func TestAbsComplexUsesHypot(t *testing.T) {
	e := NewExpander(Config{BaseType: Complex, VectorWidth: 1})
	out, err := e.Expand("%VABS(z)")
	require.NoError(t, err)
	require.Equal(t, "hypot(z.even, z.odd)", out)
}

func TestLongestPrefixMatchPrefersVMADOverV(t *testing.T) {
	e := NewExpander(Config{BaseType: Single, VectorWidth: 4})
	out, err := e.Expand("%VMAD(c, a, b);")
	require.NoError(t, err)
	require.Equal(t, "c += a * b;\n;", out)
}

func TestUnmatchedParenErrors(t *testing.T) {
	e := NewExpander(Config{BaseType: Single, VectorWidth: 1})
	_, err := e.Expand("%MUL(a, b, c")
	require.Error(t, err)
}

func itoaHelper(i int) string {
	digits := "0123456789"
	if i < 10 {
		return string(digits[i])
	}
	return ""
}
