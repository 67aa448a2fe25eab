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

package decompose

import "github.com/clblast-go/clblast/kflags"

// alignedSplit picks the TRMM/TRSM split point: the largest multiple of
// DivisionAlignment not exceeding total/2, so both triangular sub-blocks
// keep the alignment the rectangular GEMM sub-step wants.
func alignedSplit(total int) int {
	half := total / 2
	aligned := (half / DivisionAlignment) * DivisionAlignment
	if aligned == 0 {
		return half
	}
	return aligned
}

// Compound applies compound decomposition to a single,
// already-sharded Args, returning the Chain of Steps it expands into (a
// single-element Chain if the function has no compound form or the
// threshold isn't met).
func Compound(funcID kflags.FuncID, args Args, queueIndex int, counter *int) Chain {
	switch funcID {
	case kflags.FuncTRMM, kflags.FuncTRSM:
		return decomposeTRxM(funcID, args, queueIndex, counter)
	case kflags.FuncSYRK:
		return decomposeSYRK(args, queueIndex, counter)
	case kflags.FuncSYR2K:
		return decomposeSYR2K(args, queueIndex, counter)
	case kflags.FuncGEMM:
		return Chain{foldGEMMOffsets(args, queueIndex)}
	default:
		return Chain{{FuncID: funcID, Args: args, QueueIndex: queueIndex}}
	}
}

// decomposeTRxM implements the TRMM/TRSM split: side=Left with
// M >= DecompositionThreshold(dtype) (analogously N for side=Right) splits
// the triangular operand into A1 (top-left), A4 (bottom-right) and routes
// the cross term through a GEMM on A2 or A3, chosen by (uplo, transA).
func decomposeTRxM(funcID kflags.FuncID, args Args, queueIndex int, counter *int) Chain {
	dim := args.M
	if args.Side == kflags.SideRight {
		dim = args.N
	}
	if dim < DecompositionThreshold(args.Dtype) {
		return Chain{{FuncID: funcID, Args: args, QueueIndex: queueIndex}}
	}

	split := alignedSplit(dim)
	if split == 0 || split >= dim {
		return Chain{{FuncID: funcID, Args: args, QueueIndex: queueIndex}}
	}
	tail := dim - split

	top := args
	bottom := args
	if args.Side == kflags.SideLeft {
		top.M, bottom.M = split, tail
		bottom.OffsetM += split
	} else {
		top.N, bottom.N = split, tail
		bottom.OffsetN += split
	}

	first, second := top, bottom
	if swapTrxmOrder(args.Side, args.Uplo, funcID) {
		first, second = bottom, top
	}

	// The cross term reads A2 (above the diagonal split) or A3 (below it):
	// it spans the already-processed first block along K and folds it into
	// the second block's rows (side=Left) or columns (side=Right).
	gemm := args
	if args.Side == kflags.SideLeft {
		gemm.M, gemm.N, gemm.K = second.M, args.N, first.M
		gemm.OffsetM = second.OffsetM
	} else {
		gemm.M, gemm.N, gemm.K = args.M, second.N, first.N
		gemm.OffsetN = second.OffsetN
	}

	if funcID == kflags.FuncTRSM {
		gemm.Alpha = -complexReciprocal(args.Alpha, args.Dtype)
		gemm.Beta = 1
	} else {
		gemm.Alpha = args.Alpha
		gemm.Beta = 1
	}

	e1 := newEvent(counter)
	e2 := newEvent(counter)
	e3 := newEvent(counter)
	return Chain{
		{FuncID: funcID, Args: first, QueueIndex: queueIndex, Event: e1},
		{FuncID: kflags.FuncGEMM, Args: gemm, QueueIndex: queueIndex, WaitList: []*StepEvent{e1}, Event: e2},
		{FuncID: funcID, Args: second, QueueIndex: queueIndex, WaitList: []*StepEvent{e2}, Event: e3},
	}
}

// swapTrxmOrder decides which triangular block executes first in the
// (side, uplo, func) quadrant. TRSM substitution must start at the diagonal
// block with no off-diagonal dependency: the top block for left-lower
// forward substitution, the bottom block for left-upper back substitution
// (and mirrored for side=Right). In-place TRMM runs in the opposite order
// so the GEMM still reads the not-yet-overwritten half of B.
func swapTrxmOrder(side kflags.Side, uplo kflags.Uplo, funcID kflags.FuncID) bool {
	leftUpper := side == kflags.SideLeft && uplo == kflags.Upper
	rightLower := side == kflags.SideRight && uplo == kflags.Lower
	swap := leftUpper || rightLower
	if funcID == kflags.FuncTRMM {
		swap = !swap
	}
	return swap
}

// complexReciprocal computes 1/alpha, using the real reciprocal directly
// for non-complex dtypes (imaginary part is always zero there).
func complexReciprocal(alpha complex128, dtype kflags.DataType) complex128 {
	if !dtype.IsComplex() {
		return complex(1/real(alpha), 0)
	}
	return complex(1, 0) / alpha
}

// decomposeSYRK implements the SYRK split: when M >= threshold/2
// and neither M nor N is divisible by 8, split into an off-diagonal pass
// (SYRK_SEPARATE_DIAGONAL) followed by a diagonal pass
// (SYRK_EVALUATE_DIAGONAL), event-chained.
func decomposeSYRK(args Args, queueIndex int, counter *int) Chain {
	threshold := DecompositionThreshold(args.Dtype) / 2
	if args.M < threshold || args.M%8 == 0 || args.N%8 == 0 {
		return Chain{{FuncID: kflags.FuncSYRK, Args: args, QueueIndex: queueIndex}}
	}
	e1 := newEvent(counter)
	e2 := newEvent(counter)
	offDiag := args
	diag := args
	return Chain{
		{FuncID: kflags.FuncSYRK, Args: offDiag, Flags: kflags.SyrkSeparateDiagonal, QueueIndex: queueIndex, Event: e1},
		{FuncID: kflags.FuncSYRK, Args: diag, Flags: kflags.SyrkEvaluateDiagonal, QueueIndex: queueIndex, WaitList: []*StepEvent{e1}, Event: e2},
	}
}

// decomposeSYR2K implements the SYR2K decomposition: syrk1(A·Bᵀ,
// β=given) -> syrk2(B·Aᵀ, β=1), each further decomposed by SYRK's own rule.
func decomposeSYR2K(args Args, queueIndex int, counter *int) Chain {
	syrk2Args := args
	syrk2Args.Beta = 1

	chain1 := decomposeSYRK(args, queueIndex, counter)
	chain2 := decomposeSYRK(syrk2Args, queueIndex, counter)
	for _, st := range chain1 {
		st.Flags |= kflags.Syrk2KRank
	}
	for _, st := range chain2 {
		st.Flags |= kflags.Syrk2KRank
	}

	last1 := chain1[len(chain1)-1]
	if last1.Event == nil {
		last1.Event = newEvent(counter)
	}
	chain2[0].WaitList = append(chain2[0].WaitList, last1.Event)
	return append(chain1, chain2...)
}

// foldGEMMOffsets implements the GEMM offset fold: OffsetM/N/K are
// absorbed into offA/offBX/offCY respecting transA/transB/order/majority,
// then cleared.
func foldGEMMOffsets(args Args, queueIndex int) *Step {
	colMajor := args.Order == kflags.ColMajor
	a := args

	aRowStride, aColStride := args.LDA, 1
	if (args.TransA == kflags.NoTrans) != colMajor {
		aRowStride, aColStride = 1, args.LDA
	}
	a.OffA += args.OffsetM*aRowStride + args.OffsetK*aColStride

	bRowStride, bColStride := args.LDB, 1
	if (args.TransB == kflags.NoTrans) != colMajor {
		bRowStride, bColStride = 1, args.LDB
	}
	a.OffBX += args.OffsetK*bRowStride + args.OffsetN*bColStride

	cRowStride, cColStride := args.LDC, 1
	if !colMajor {
		cRowStride, cColStride = 1, args.LDC
	}
	a.OffCY += args.OffsetM*cRowStride + args.OffsetN*cColStride

	a.OffsetM, a.OffsetN, a.OffsetK = 0, 0, 0
	return &Step{FuncID: kflags.FuncGEMM, Args: a, QueueIndex: queueIndex}
}
