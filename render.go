// Copyright 2025 Agentic World, LLC (Sherin Thomas)
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

package driftnet

import (
	"context"
	"time"
)

// Direction is a scroll direction
type Direction int

const (
	ScrollDown Direction = iota
	ScrollUp
)

func (d Direction) String() string {
	if d == ScrollUp {
		return "up"
	}
	return "down"
}

// Renderer is the headless-browser capability used by the rendered tier and by
// the LOAD_MORE and INFINITE_SCROLL traversal mechanisms.
//
// A Renderer holds one page. Render navigates it; Scroll, ClickControl and
// EnumerateVisibleItems act on whatever page was rendered last. Implementations
// need not be safe for concurrent use, callers serialize access through the
// Resolver's render lock.
type Renderer interface {
	// Render navigates to url, waits settle and returns the serialized DOM
	Render(ctx context.Context, url string, settle time.Duration) ([]byte, error)
	// Scroll moves the viewport one screen in the given direction
	Scroll(ctx context.Context, dir Direction) error
	// ClickControl clicks the first visible element matching selector.
	// It returns false when no such element exists.
	ClickControl(ctx context.Context, selector string) (bool, error)
	// EnumerateVisibleItems returns the absolute href of every link currently
	// in the DOM
	EnumerateVisibleItems(ctx context.Context) ([]string, error)
	// Close releases the browser session
	Close() error
}
