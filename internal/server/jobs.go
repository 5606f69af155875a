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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/agentberlin/driftnet"
	"github.com/agentberlin/driftnet/internal/store"
	"github.com/agentberlin/driftnet/internal/types"
)

// maxFinishedJobs is how many finished jobs are kept for polling
const maxFinishedJobs = 100

// CrawlRequest starts a background job
type CrawlRequest struct {
	URL          string `json:"url"`
	ItemCap      int    `json:"itemCap"`
	Concurrency  int    `json:"concurrency"`
	Mode         string `json:"mode"`
	IncludeText  bool   `json:"includeText"`
	MaxTextChars int    `json:"maxTextChars"`
}

// activeJob is one background crawl
type activeJob struct {
	id          string
	seed        string
	startedAt   time.Time
	includeText bool
	cancel      context.CancelFunc
	done        chan struct{}

	statusMutex sync.RWMutex
	state       types.JobState
	progress    driftnet.Progress
	report      *driftnet.Report
	err         error
	stopped     bool
}

func (j *activeJob) info() types.JobInfo {
	j.statusMutex.RLock()
	defer j.statusMutex.RUnlock()

	info := types.JobInfo{
		ID:        j.id,
		Seed:      j.seed,
		State:     j.state,
		StartedAt: j.startedAt.Unix(),
		Progress:  types.NewCrawlProgress(j.progress),
	}
	if j.err != nil {
		info.Error = j.err.Error()
	}
	if j.state != types.JobRunning && j.report != nil {
		result := types.NewCrawlResult(j.report, j.includeText)
		info.Result = &result
	}
	return info
}

// jobManager runs crawl jobs in the background and keeps their state for
// polling
type jobManager struct {
	scheduler *driftnet.Scheduler
	store     *store.Store
	logger    *slog.Logger

	jobsMutex sync.RWMutex
	jobs      map[string]*activeJob
	order     []string
	nextID    int
	wg        sync.WaitGroup
}

func newJobManager(scheduler *driftnet.Scheduler, st *store.Store, logger *slog.Logger) *jobManager {
	return &jobManager{
		scheduler: scheduler,
		store:     st,
		logger:    logger,
		jobs:      make(map[string]*activeJob),
	}
}

// start validates req and launches the job
func (m *jobManager) start(req CrawlRequest) (*activeJob, error) {
	if req.URL == "" {
		return nil, driftnet.ErrMissingURL
	}
	mode, ok := driftnet.ParseMode(req.Mode)
	if !ok {
		return nil, fmt.Errorf("unknown pagination mode %q", req.Mode)
	}
	if req.ItemCap < 0 {
		return nil, fmt.Errorf("%w: item cap must not be negative", driftnet.ErrInvalidConfig)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.jobsMutex.Lock()
	m.nextID++
	job := &activeJob{
		id:          strconv.Itoa(m.nextID),
		seed:        req.URL,
		startedAt:   time.Now(),
		includeText: req.IncludeText,
		cancel:      cancel,
		done:        make(chan struct{}),
		state:       types.JobRunning,
	}
	m.jobs[job.id] = job
	m.order = append(m.order, job.id)
	m.pruneLocked()
	m.jobsMutex.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(job.done)
		defer cancel()

		report, err := m.scheduler.RunJob(ctx, driftnet.JobOptions{
			Seed:        req.URL,
			ItemCap:     req.ItemCap,
			Concurrency: req.Concurrency,
			Extractor:   driftnet.DocumentExtractor{MaxTextChars: req.MaxTextChars},
			Mode:        mode,
			OnProgress: func(p driftnet.Progress) {
				job.statusMutex.Lock()
				job.progress = p
				job.statusMutex.Unlock()
			},
		})
		m.finish(job, report, err)
	}()

	m.logger.Info("job started", "job", job.id, "seed", req.URL)
	return job, nil
}

func (m *jobManager) finish(job *activeJob, report *driftnet.Report, err error) {
	job.statusMutex.Lock()
	job.report = report
	job.err = err
	job.progress.Succeeded = len(report.Items)
	job.progress.Failed = len(report.Errors)
	switch {
	case job.stopped:
		job.state = types.JobStopped
	case err != nil:
		job.state = types.JobFailed
	default:
		job.state = types.JobCompleted
	}
	state := job.state
	job.statusMutex.Unlock()

	if m.store != nil {
		if rerr := m.store.RecordRun(store.NewJobRun(report, err)); rerr != nil {
			m.logger.Warn("failed to record run", "job", job.id, "error", rerr)
		}
	}
	m.logger.Info("job finished", "job", job.id, "state", state, "items", len(report.Items))
}

func (m *jobManager) get(id string) (*activeJob, bool) {
	m.jobsMutex.RLock()
	defer m.jobsMutex.RUnlock()
	job, ok := m.jobs[id]
	return job, ok
}

var errJobNotFound = errors.New("job not found")

// stop cancels a running job. The job keeps the items extracted so far.
func (m *jobManager) stop(id string) error {
	job, ok := m.get(id)
	if !ok {
		return errJobNotFound
	}
	job.statusMutex.Lock()
	job.stopped = job.state == types.JobRunning
	job.statusMutex.Unlock()
	job.cancel()
	return nil
}

// list returns all known jobs, newest first
func (m *jobManager) list() []types.JobInfo {
	m.jobsMutex.RLock()
	jobs := make([]*activeJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	m.jobsMutex.RUnlock()

	infos := make([]types.JobInfo, len(jobs))
	for i, job := range jobs {
		infos[i] = job.info()
	}
	sort.Slice(infos, func(i, j int) bool {
		a, _ := strconv.Atoi(infos[i].ID)
		b, _ := strconv.Atoi(infos[j].ID)
		return a > b
	})
	return infos
}

// pruneLocked forgets the oldest finished jobs beyond maxFinishedJobs
func (m *jobManager) pruneLocked() {
	if len(m.order) <= maxFinishedJobs {
		return
	}
	kept := m.order[:0]
	excess := len(m.order) - maxFinishedJobs
	for _, id := range m.order {
		job := m.jobs[id]
		select {
		case <-job.done:
			if excess > 0 {
				delete(m.jobs, id)
				excess--
				continue
			}
		default:
		}
		kept = append(kept, id)
	}
	m.order = kept
}

// shutdown cancels every running job and waits for them to finish
func (m *jobManager) shutdown() {
	m.jobsMutex.RLock()
	for _, job := range m.jobs {
		job.cancel()
	}
	m.jobsMutex.RUnlock()
	m.wg.Wait()
}
