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

import (
	"math"

	"github.com/clblast-go/clblast/kflags"
)

// ceilDivBlocks returns how many whole alignment-sized blocks it takes to
// cover n elements.
func ceilDivBlocks(n, alignment int) int {
	return (n + alignment - 1) / alignment
}

// span is a half-open [Start, End) element range assigned to one queue.
type span struct{ Start, End int }

// stripeDivide splits [0, total) across len(shares) queues proportionally
// to shares, aligning every boundary but the last to alignment-sized
// blocks: total is first rounded up to a whole number of blocks, each
// non-final share's block count is the ceiling of its proportional share
// of that block count, and the final queue absorbs the remainder up to the
// true (unaligned) total. A queue whose computed span is empty gets a
// zero-length span.
func stripeDivide(total int, shares []int) []span {
	spans := make([]span, len(shares))
	if total <= 0 || len(shares) == 0 {
		return spans
	}
	sumShares := 0
	for _, s := range shares {
		sumShares += s
	}
	if sumShares == 0 {
		spans[0] = span{0, total}
		return spans
	}
	totalBlocks := ceilDivBlocks(total, DivisionAlignment)
	start := 0
	for i, share := range shares {
		if i == len(shares)-1 {
			end := total
			if start > end {
				start = end
			}
			spans[i] = span{start, end}
			break
		}
		blocks := (totalBlocks*share + sumShares - 1) / sumShares
		end := start + blocks*DivisionAlignment
		if end > total {
			end = total
		}
		spans[i] = span{start, end}
		start = end
	}
	return spans
}

// ShardQueues implements the queue-sharding step: given the summed
// compute-unit share of each queue, produce one Args per queue (sharing
// every field except the sharded dimension's slice), or a nil entry if the
// queue's share rounded to zero.
func ShardQueues(funcID kflags.FuncID, args Args, cuShares []int) []*Args {
	switch funcID {
	case kflags.FuncGEMM, kflags.FuncGEMM2:
		return shardRectangular(args, cuShares)
	case kflags.FuncSYRK, kflags.FuncSYR2K:
		return shardTriangularStripe(args, cuShares)
	default:
		return shardStripe(funcID, args, cuShares)
	}
}

// shardRectangular implements GEMM's rectangular division: the longer of M
// and N is split proportionally.
func shardRectangular(args Args, shares []int) []*Args {
	out := make([]*Args, len(shares))
	if args.M >= args.N {
		for i, sp := range stripeDivide(args.M, shares) {
			if sp.End <= sp.Start {
				continue
			}
			a := args
			a.M = sp.End - sp.Start
			a.OffsetM = args.OffsetM + sp.Start
			out[i] = &a
		}
		return out
	}
	for i, sp := range stripeDivide(args.N, shares) {
		if sp.End <= sp.Start {
			continue
		}
		a := args
		a.N = sp.End - sp.Start
		a.OffsetN = args.OffsetN + sp.Start
		out[i] = &a
	}
	return out
}

// shardStripe implements the plain stripe division used by GEMV (along M)
// and every other non-GEMM, non-SYRK function (along N).
func shardStripe(funcID kflags.FuncID, args Args, shares []int) []*Args {
	out := make([]*Args, len(shares))
	alongM := funcID == kflags.FuncGEMV
	axis := args.N
	if alongM {
		axis = args.M
	}
	for i, sp := range stripeDivide(axis, shares) {
		if sp.End <= sp.Start {
			continue
		}
		a := args
		if alongM {
			a.M = sp.End - sp.Start
			a.OffsetM = args.OffsetM + sp.Start
		} else {
			a.N = sp.End - sp.Start
			a.OffsetN = args.OffsetN + sp.Start
		}
		out[i] = &a
	}
	return out
}

// shardTriangularStripe implements SYRK/SYR2K's triangular stripe division:
// partition the N×N output's rows so each queue's stripe covers an equal
// share of the upper-triangular area, via
// stripeY = sqrt(top² + ratio·size.y·(top+size.x)) − top. When
// uplo=Upper the matrix is worked bottom-to-top, so the stripe heights are
// computed identically (the triangular area is symmetric) and then handed
// out to queues in reverse row order.
func shardTriangularStripe(args Args, shares []int) []*Args {
	out := make([]*Args, len(shares))
	n := args.N
	if n <= 0 || len(shares) == 0 {
		return out
	}
	sumShares := 0
	for _, s := range shares {
		sumShares += s
	}
	if sumShares == 0 {
		out[0] = &args
		return out
	}

	heights := make([]int, len(shares))
	top := 0.0
	assigned := 0
	for i, share := range shares {
		if i == len(shares)-1 {
			heights[i] = n - assigned
			break
		}
		ratio := float64(share) / float64(sumShares)
		sizeX, sizeY := float64(n), float64(n)
		stripeY := math.Sqrt(top*top+ratio*sizeY*(top+sizeX)) - top
		h := int(math.Round(stripeY))
		if h < 0 {
			h = 0
		}
		if assigned+h > n {
			h = n - assigned
		}
		heights[i] = h
		top += stripeY
		assigned += h
	}

	rowStart := 0
	order := make([]int, len(shares))
	for i := range order {
		order[i] = i
	}
	if args.Uplo == kflags.Upper {
		// Work bottom-to-top: queue 0 still gets the first logical stripe,
		// but that stripe is positioned at the bottom of the matrix.
		rowStart = n
		for i, h := range heights {
			rowStart -= h
			if h <= 0 {
				continue
			}
			a := args
			a.N = h
			a.OffsetN = args.OffsetN + rowStart
			out[i] = &a
		}
		return out
	}
	for i, h := range heights {
		if h <= 0 {
			rowStart += h
			continue
		}
		a := args
		a.N = h
		a.OffsetN = args.OffsetN + rowStart
		out[i] = &a
		rowStart += h
	}
	return out
}
