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
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRendererUnavailable is returned when the rendered tier is needed but no
	// Renderer was configured or the session has been closed
	ErrRendererUnavailable = errors.New("renderer unavailable")
	// ErrInvalidConfig wraps every configuration validation failure
	ErrInvalidConfig = errors.New("invalid config")
	// ErrNoPattern is the error thrown if no pattern is defined in a LimitRule
	ErrNoPattern = errors.New("no pattern defined in LimitRule")
	// ErrMissingURL is returned when a job is started without a seed URL
	ErrMissingURL = errors.New("missing URL")
	// ErrNilExtractor is returned when a job is started without an extractor
	ErrNilExtractor = errors.New("extractor is nil")
	// ErrCapReached is returned when a job's item cap leaves no room for more work
	ErrCapReached = errors.New("item cap reached")
	// ErrControlNotFound is returned by a Renderer when a click target does not exist
	ErrControlNotFound = errors.New("control not found")
)

// TransientFetchError is a timeout, connection failure or non-2xx status at
// the HTTP tier. It triggers escalation to the next tier and is never fatal for
// an item on its own.
type TransientFetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransientFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransientFetchError) Unwrap() error {
	return e.Err
}

// InvalidContentError means a body was fetched but failed the validity check,
// usually a soft block or an interstitial served with status 200.
type InvalidContentError struct {
	URL    string
	Tier   Tier
	Reason string
}

func (e *InvalidContentError) Error() string {
	return fmt.Sprintf("invalid content from %s tier for %s: %s", e.Tier, e.URL, e.Reason)
}

// ExtractionError is a failure of the caller's extractor on an otherwise valid body.
type ExtractionError struct {
	URL string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// ExhaustedTiersError is returned when every retrieval tier failed for one URL.
// Last holds the error of the final tier that was attempted.
type ExhaustedTiersError struct {
	URL  string
	Last error
}

func (e *ExhaustedTiersError) Error() string {
	if e.Last == nil {
		return fmt.Sprintf("all tiers exhausted for %s", e.URL)
	}
	return fmt.Sprintf("all tiers exhausted for %s: %v", e.URL, e.Last)
}

func (e *ExhaustedTiersError) Unwrap() error {
	return e.Last
}

// SeedUnreachableError aborts a job: the seed page could not be retrieved.
type SeedUnreachableError struct {
	URL string
	Err error
}

func (e *SeedUnreachableError) Error() string {
	return fmt.Sprintf("seed %s unreachable: %v", e.URL, e.Err)
}

func (e *SeedUnreachableError) Unwrap() error {
	return e.Err
}

// NoItemsDiscoveredError aborts a job whose traversal finished without a single
// candidate. It points at a classifier/site mismatch rather than a transient
// condition.
type NoItemsDiscoveredError struct {
	Seed string
	Mode Mode
}

func (e *NoItemsDiscoveredError) Error() string {
	return fmt.Sprintf("no items discovered from %s (pagination %s)", e.Seed, e.Mode)
}

// IsFatal reports whether err aborts a whole job rather than a single item.
func IsFatal(err error) bool {
	var seed *SeedUnreachableError
	var none *NoItemsDiscoveredError
	return errors.As(err, &seed) || errors.As(err, &none)
}
