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

package solve

import "sync"

// scratchImagesPerDevice: two scratch images exist per (context, device).
const scratchImagesPerDevice = 2

// ScratchImage is a process-wide scratch buffer. Acquire only grows its
// width and height to the largest size requested so far; the height is not
// checked against the device's max-alloc. The actual device-side
// allocation belongs to the device runtime, so only the bookkeeping shape
// is modeled here.
type ScratchImage struct {
	Width, Height int
	inUse         bool
}

// ScratchPool is the process-wide, mutex-protected pool of ScratchImages.
type ScratchPool struct {
	mu     sync.Mutex
	images map[string][]*ScratchImage
}

// NewScratchPool returns an empty pool; images are created lazily on first
// Acquire for a given device identity.
func NewScratchPool() *ScratchPool {
	return &ScratchPool{images: make(map[string][]*ScratchImage)}
}

// MaxImages returns the image budget for pattern selection on a queue:
// zero for an out-of-order queue, otherwise the pool size.
func MaxImages(outOfOrder bool) int {
	if outOfOrder {
		return 0
	}
	return scratchImagesPerDevice
}

// Acquire returns a free scratch image for deviceIdentity sized at least
// (width, height), growing it in place if the cached image is too small,
// or false if both of the device's images are already checked out.
func (p *ScratchPool) Acquire(deviceIdentity string, width, height int) (*ScratchImage, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	imgs := p.images[deviceIdentity]
	for len(imgs) < scratchImagesPerDevice {
		imgs = append(imgs, &ScratchImage{})
	}
	p.images[deviceIdentity] = imgs
	for _, img := range imgs {
		if img.inUse {
			continue
		}
		if width > img.Width {
			img.Width = width
		}
		if height > img.Height {
			img.Height = height
		}
		img.inUse = true
		return img, true
	}
	return nil, false
}

// Release returns img to the pool for deviceIdentity.
func (p *ScratchPool) Release(deviceIdentity string, img *ScratchImage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, cand := range p.images[deviceIdentity] {
		if cand == img {
			cand.inUse = false
			return
		}
	}
}

// ReleaseAll returns every image acquired for deviceIdentity, used when
// pattern selection retries with a reduced image budget.
func (p *ScratchPool) ReleaseAll(deviceIdentity string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, img := range p.images[deviceIdentity] {
		img.inUse = false
	}
}
