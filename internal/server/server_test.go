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

package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentberlin/driftnet"
	"github.com/agentberlin/driftnet/internal/store"
	"github.com/agentberlin/driftnet/internal/types"
	"github.com/agentberlin/driftnet/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, withStore bool) (*httptest.Server, *testutil.Site) {
	t.Helper()

	site := testutil.NewSite()
	t.Cleanup(site.Close)

	cfg := driftnet.NewDefaultConfig()
	cfg.Retry.InitialBackoff = driftnet.DurationFrom(time.Millisecond)
	cfg.Retry.MaxBackoff = driftnet.DurationFrom(time.Millisecond)
	scheduler, err := driftnet.NewScheduler(cfg, nil)
	require.NoError(t, err)

	var st *store.Store
	if withStore {
		st, err = store.Open(filepath.Join(t.TempDir(), "cache.db"))
		require.NoError(t, err)
		t.Cleanup(func() { st.Close() })
	}

	srv := NewServer(scheduler, st, nil)
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		srv.Shutdown()
	})
	return ts, site
}

func startCrawl(t *testing.T, ts *httptest.Server, req CrawlRequest) types.JobInfo {
	t.Helper()
	body, _ := json.Marshal(req)
	resp, err := http.Post(ts.URL+"/api/v1/crawl", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var out struct {
		Job types.JobInfo `json:"job"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out.Job
}

func getJob(t *testing.T, ts *httptest.Server, id string) types.JobInfo {
	t.Helper()
	resp, err := http.Get(ts.URL + "/api/v1/jobs/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var info types.JobInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	return info
}

func waitForJob(t *testing.T, ts *httptest.Server, id string) types.JobInfo {
	t.Helper()
	var info types.JobInfo
	require.Eventually(t, func() bool {
		info = getJob(t, ts, id)
		return info.State != types.JobRunning
	}, 10*time.Second, 20*time.Millisecond)
	return info
}

func TestHealthAndVersion(t *testing.T) {
	ts, _ := newTestServer(t, false)

	resp, err := http.Get(ts.URL + "/api/v1/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/v1/version", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestCrawlJobLifecycle(t *testing.T) {
	ts, site := newTestServer(t, true)

	job := startCrawl(t, ts, CrawlRequest{URL: site.URL + "/news", ItemCap: 6})
	assert.Equal(t, "1", job.ID)

	info := waitForJob(t, ts, job.ID)
	require.Equal(t, types.JobCompleted, info.State, info.Error)
	require.NotNil(t, info.Result)
	assert.Equal(t, "NUMBERED", info.Result.Mode)
	require.Len(t, info.Result.Items, 6)
	for i, item := range info.Result.Items {
		assert.Equal(t, site.URL+testutil.ArticlePath(i), item.URL)
		assert.NotEmpty(t, item.Title)
		assert.Empty(t, item.Text)
	}

	resp, err := http.Get(ts.URL + "/api/v1/runs")
	require.NoError(t, err)
	defer resp.Body.Close()
	var runs []types.RunSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&runs))
	require.Len(t, runs, 1)
	assert.Equal(t, 6, runs[0].Succeeded)
}

func TestCrawlRequestValidation(t *testing.T) {
	ts, _ := newTestServer(t, false)

	for _, body := range []string{`{}`, `{"url":"http://x.test","mode":"sideways"}`, `{"url":"http://x.test","itemCap":-1}`, `not json`} {
		resp, err := http.Post(ts.URL+"/api/v1/crawl", "application/json", bytes.NewReader([]byte(body)))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestUnknownJobAndDisabledStore(t *testing.T) {
	ts, _ := newTestServer(t, false)

	resp, err := http.Get(ts.URL + "/api/v1/jobs/42")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/v1/jobs/42/stop", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/v1/cache/stats")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFailedJob(t *testing.T) {
	ts, site := newTestServer(t, false)

	job := startCrawl(t, ts, CrawlRequest{URL: site.URL + "/missing"})
	info := waitForJob(t, ts, job.ID)
	assert.Equal(t, types.JobFailed, info.State)
	assert.Contains(t, info.Error, "unreachable")

	resp, err := http.Get(ts.URL + "/api/v1/jobs")
	require.NoError(t, err)
	defer resp.Body.Close()
	var jobs []types.JobInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)
}
