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

package kernelcache

import (
	"fmt"
	"sync"
)

// Cache is the process-wide kernel cache. The zero value is not ready to
// use; call New.
type Cache struct {
	mu      sync.Mutex
	entries map[string][]*Entry
	enabled bool
}

// New returns a Cache with caching enabled.
func New() *Cache {
	return &Cache{entries: make(map[string][]*Entry), enabled: true}
}

// SetCacheEnabled is the global cacheability toggle used as a
// test hook: disabling it makes FindKernel always miss (AddKernelToCache
// still records the entry so existing holders keep their references valid).
func (c *Cache) SetCacheEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
}

func bucketKey(solverID string, k Key) string {
	return fmt.Sprintf("%s|%s|%s|%d|%v", solverID, k.Device, k.Context, k.NrDims, k.Subdims)
}

// FindKernel looks up a cached entry by (solverID, key), scanning the bucket
// with eq (or exact Extras equality if eq is nil) to find the one whose
// extras the pattern considers equivalent to want.
func (c *Cache) FindKernel(solverID string, key Key, want Extras, eq EqualFn) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return nil, false
	}
	for _, e := range c.entries[bucketKey(solverID, key)] {
		if eq != nil {
			if eq(e.Extras, want) {
				return e, true
			}
			continue
		}
		if e.Extras == want {
			return e, true
		}
	}
	return nil, false
}

// AddKernelToCache inserts a freshly built kernel with refcount 1.
func (c *Cache) AddKernelToCache(solverID string, key Key, extras Extras, program any) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := &Entry{Key: key, Extras: extras, Program: program, refcount: 1}
	bk := bucketKey(solverID, key)
	c.entries[bk] = append(c.entries[bk], e)
	return e
}

// GetKernel acquires a reference to e, bumping its refcount, and returns e.
func (c *Cache) GetKernel(e *Entry) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e.refcount++
	return e
}

// PutKernel releases the caller's reference to the entry registered under
// (solverID, e.Key), destroying it once the refcount reaches zero.
func (c *Cache) PutKernel(solverID string, e *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e.refcount--
	if e.refcount > 0 {
		return
	}
	bk := bucketKey(solverID, e.Key)
	entries := c.entries[bk]
	for i, cand := range entries {
		if cand == e {
			c.entries[bk] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
}

// GetOrBuild is the common find-or-compile sequence package solve drives:
// look up a cached kernel; on miss, call build, insert
// it, and in both cases return a reference the caller owns (balance with
// PutKernel).
func (c *Cache) GetOrBuild(solverID string, key Key, extras Extras, eq EqualFn, build func() (any, error)) (*Entry, error) {
	if e, ok := c.FindKernel(solverID, key, extras, eq); ok {
		return c.GetKernel(e), nil
	}
	program, err := build()
	if err != nil {
		return nil, err
	}
	e := c.AddKernelToCache(solverID, key, extras, program)
	return c.GetKernel(e), nil
}
