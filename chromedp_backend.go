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
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// ChromeSession is a Renderer backed by one headless Chrome tab. The session is
// opened explicitly and owned by whoever opened it; there is no process-wide
// browser.
type ChromeSession struct {
	cfg RenderingConfig

	mu          sync.Mutex
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	closed      bool
}

// OpenChromeSession starts a browser and a tab for it
func OpenChromeSession(ctx context.Context, cfg RenderingConfig, userAgent string) (*ChromeSession, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	if userAgent != "" {
		opts = append(opts, chromedp.UserAgent(userAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	// the browser outlives the ctx given here, Close ends it
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	// start the browser now so a missing binary fails here and not on first use
	startCtx, cancel := context.WithTimeout(tabCtx, cfg.Timeout.Duration)
	defer cancel()
	if err := chromedp.Run(startCtx, chromedp.Navigate("about:blank")); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: start chrome: %v", ErrRendererUnavailable, err)
	}

	return &ChromeSession{
		cfg:         cfg,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
	}, nil
}

// run executes actions on the tab bounded by the render timeout and ctx
func (s *ChromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrRendererUnavailable
	}
	tabCtx := s.tabCtx
	s.mu.Unlock()

	runCtx, cancel := context.WithTimeout(tabCtx, s.cfg.Timeout.Duration)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// Render implements Renderer
func (s *ChromeSession) Render(ctx context.Context, url string, settle time.Duration) ([]byte, error) {
	var htmlContent string
	err := s.run(ctx,
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		// let JavaScript hydrate the page
		chromedp.Sleep(settle),
		chromedp.OuterHTML("html", &htmlContent, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("chromedp rendering failed: %w", err)
	}
	return []byte(htmlContent), nil
}

// Scroll implements Renderer
func (s *ChromeSession) Scroll(ctx context.Context, dir Direction) error {
	script := `window.scrollTo({top: document.body.scrollHeight, behavior: 'instant'})`
	if dir == ScrollUp {
		script = `window.scrollBy({top: -window.innerHeight, behavior: 'instant'})`
	}
	return s.run(ctx,
		chromedp.Evaluate(script, nil),
		chromedp.Sleep(s.cfg.ScrollSettleDelay.Duration),
	)
}

// ClickControl implements Renderer
func (s *ChromeSession) ClickControl(ctx context.Context, selector string) (bool, error) {
	var clicked bool
	script := fmt.Sprintf(`(() => {
		const el = Array.from(document.querySelectorAll(%s))
			.find(e => e.offsetParent !== null && !e.disabled);
		if (!el) return false;
		el.scrollIntoView({block: 'center'});
		el.click();
		return true;
	})()`, strconv.Quote(selector))

	if err := s.run(ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return false, fmt.Errorf("click %q: %w", selector, err)
	}
	if !clicked {
		return false, nil
	}
	return true, s.run(ctx, chromedp.Sleep(s.cfg.ScrollSettleDelay.Duration))
}

// EnumerateVisibleItems implements Renderer
func (s *ChromeSession) EnumerateVisibleItems(ctx context.Context) ([]string, error) {
	var hrefs []string
	err := s.run(ctx, chromedp.Evaluate(
		`Array.from(document.querySelectorAll('a[href]')).map(a => a.href)`, &hrefs))
	if err != nil {
		return nil, fmt.Errorf("enumerate links: %w", err)
	}
	return hrefs, nil
}

// Close ends the tab and the browser. It is safe to call more than once.
func (s *ChromeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.tabCancel()
	s.allocCancel()
	return nil
}
