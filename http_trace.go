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
	"crypto/tls"
	"log/slog"
	"net/http"
	"net/http/httptrace"
	"time"
)

// HTTPTrace holds the timings of one HTTP-tier request
type HTTPTrace struct {
	start, dns, connect, tls time.Time

	DNSDuration       time.Duration
	ConnectDuration   time.Duration
	TLSDuration       time.Duration
	FirstByteDuration time.Duration
	// Reused is true when the request went over a pooled connection
	Reused bool
}

// trace returns a httptrace.ClientTrace that fills in the HTTPTrace
func (ht *HTTPTrace) trace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GetConn: func(string) { ht.start = time.Now() },
		GotConn: func(info httptrace.GotConnInfo) { ht.Reused = info.Reused },

		DNSStart: func(httptrace.DNSStartInfo) { ht.dns = time.Now() },
		DNSDone:  func(httptrace.DNSDoneInfo) { ht.DNSDuration = time.Since(ht.dns) },

		ConnectStart: func(string, string) { ht.connect = time.Now() },
		ConnectDone: func(string, string, error) {
			ht.ConnectDuration = time.Since(ht.connect)
		},

		TLSHandshakeStart: func() { ht.tls = time.Now() },
		TLSHandshakeDone: func(tls.ConnectionState, error) {
			ht.TLSDuration = time.Since(ht.tls)
		},

		GotFirstResponseByte: func() {
			ht.FirstByteDuration = time.Since(ht.start)
		},
	}
}

// WithTrace returns the given HTTP Request with this HTTPTrace added to its
// context.
func (ht *HTTPTrace) WithTrace(req *http.Request) *http.Request {
	return req.WithContext(httptrace.WithClientTrace(req.Context(), ht.trace()))
}

// LogValue implements slog.LogValuer
func (ht *HTTPTrace) LogValue() slog.Value {
	if ht == nil {
		return slog.Value{}
	}
	return slog.GroupValue(
		slog.Duration("dns", ht.DNSDuration),
		slog.Duration("connect", ht.ConnectDuration),
		slog.Duration("tls", ht.TLSDuration),
		slog.Duration("first_byte", ht.FirstByteDuration),
		slog.Bool("reused", ht.Reused),
	)
}
