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

package autotune

import "fmt"

// skipAboveGlobalMinFactor prunes candidates whose lower bound sits this
// far above the running global minimum.
const skipAboveGlobalMinFactor = 5.0

// groupStats accumulates the running (count, minTime, summedTime) for one
// pinned-variable group.
type groupStats struct {
	count      int
	minTime    float64
	summedTime float64
}

// Estimator is the weighted-group search estimator: every
// candidate belongs to several groups (one per pinned variable), and the
// estimator uses each group's running minimum as a lower bound on untried
// candidates sharing that group.
type Estimator struct {
	groups     map[string]*groupStats
	globalMin  float64
	haveResult bool
}

// NewEstimator returns an empty estimator.
func NewEstimator() *Estimator {
	return &Estimator{groups: make(map[string]*groupStats)}
}

// groupKeys lists the pinned-variable groups a candidate belongs to: one
// group per one of its six grid variables held fixed.
func groupKeys(c Candidate) []string {
	return []string{
		fmt.Sprintf("ox=%d", c.Outer.X),
		fmt.Sprintf("oy=%d", c.Outer.Y),
		fmt.Sprintf("obw=%d", c.Outer.Bwidth),
		fmt.Sprintf("ix=%d", c.Inner.ItemX),
		fmt.Sprintf("iy=%d", c.Inner.ItemY),
		fmt.Sprintf("ibw=%d", c.Inner.Bwidth),
	}
}

// Record folds a completed timing into every group the candidate belongs
// to and updates the running global minimum.
func (e *Estimator) Record(c Candidate, seconds float64) {
	for _, k := range groupKeys(c) {
		g, ok := e.groups[k]
		if !ok {
			g = &groupStats{minTime: seconds}
			e.groups[k] = g
		}
		g.count++
		g.summedTime += seconds
		if seconds < g.minTime {
			g.minTime = seconds
		}
	}
	if !e.haveResult || seconds < e.globalMin {
		e.globalMin = seconds
		e.haveResult = true
	}
}

// LowerBound is a candidate's lower-bound time: the max of its groups'
// minTime, or 0 (no information yet) if none of its groups have a member.
func (e *Estimator) LowerBound(c Candidate) float64 {
	var bound float64
	for _, k := range groupKeys(c) {
		if g, ok := e.groups[k]; ok && g.minTime > bound {
			bound = g.minTime
		}
	}
	return bound
}

// SkipCandidate reports whether c's lower bound is far enough above the
// global minimum to prune without running it.
func (e *Estimator) SkipCandidate(c Candidate) bool {
	if !e.haveResult {
		return false
	}
	return e.LowerBound(c) > skipAboveGlobalMinFactor*e.globalMin
}

// Weight scores a candidate for "next to run": globalMinTime /
// lowerBoundTime, scaled down by a penalty factor for each of its groups
// that has zero members (no information yet means less confidence the
// lower bound is tight, so unexplored groups are deprioritized relative to
// ones already anchored by a real measurement).
func (e *Estimator) Weight(c Candidate) float64 {
	if !e.haveResult {
		return 1
	}
	bound := e.LowerBound(c)
	if bound <= 0 {
		return 1
	}
	weight := e.globalMin / bound

	emptyGroups := 0
	for _, k := range groupKeys(c) {
		if g, ok := e.groups[k]; !ok || g.count == 0 {
			emptyGroups++
		}
	}
	for i := 0; i < emptyGroups; i++ {
		weight *= 0.5
	}
	return weight
}

// NextCandidate picks the highest-weight remaining candidate, skipping any
// whose lower bound is already too far above the global minimum.
func (e *Estimator) NextCandidate(remaining []Candidate) (Candidate, int, bool) {
	bestIdx := -1
	var bestWeight float64
	for i, c := range remaining {
		if e.SkipCandidate(c) {
			continue
		}
		w := e.Weight(c)
		if bestIdx == -1 || w > bestWeight {
			bestIdx = i
			bestWeight = w
		}
	}
	if bestIdx == -1 {
		return Candidate{}, -1, false
	}
	return remaining[bestIdx], bestIdx, true
}
