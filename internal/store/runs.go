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

package store

import (
	"fmt"

	"github.com/agentberlin/driftnet"
)

// RecordRun saves the summary of a finished job
func (s *Store) RecordRun(run *JobRun) error {
	db, release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()
	if err := db.Create(run).Error; err != nil {
		return fmt.Errorf("failed to record run: %v", err)
	}
	return nil
}

// ListRuns returns the latest runs, newest first. A non-empty seed filters
// by seed URL.
func (s *Store) ListRuns(seed string, limit int) ([]JobRun, error) {
	db, release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	var runs []JobRun
	q := db.Order("started_at DESC, id DESC")
	if seed != "" {
		q = q.Where("seed = ?", seed)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to get runs: %v", err)
	}
	return runs, nil
}

// DeleteRun deletes one run
func (s *Store) DeleteRun(id uint) error {
	db, release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()
	return db.Delete(&JobRun{}, id).Error
}

// NewJobRun summarizes a job report. jobErr is the fatal error of the job, if
// any.
func NewJobRun(report *driftnet.Report, jobErr error) *JobRun {
	run := &JobRun{
		Seed:       report.Seed,
		Mode:       report.Pagination.Mode.String(),
		StopReason: string(report.Pagination.StopReason),
		Iterations: report.Pagination.Iterations,
		Discovered: report.Discovered,
		Succeeded:  len(report.Items),
		Failed:     len(report.Errors),
		Duplicates: report.Duplicates,
		StartedAt:  report.Started.Unix(),
		DurationMs: report.Finished.Sub(report.Started).Milliseconds(),
	}
	if jobErr != nil {
		run.Error = jobErr.Error()
	}
	return run
}
