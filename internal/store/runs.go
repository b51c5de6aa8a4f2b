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

	"gorm.io/gorm"
)

// BeginRun records the start of a crawler invocation
func (s *Store) BeginRun(runID string, startedAt int64) (*CrawlRun, error) {
	run := CrawlRun{
		RunID:     runID,
		StartedAt: startedAt,
		State:     RunStateInProgress,
	}
	if err := s.db.Create(&run).Error; err != nil {
		return nil, fmt.Errorf("failed to create run: %v", err)
	}
	return &run, nil
}

// RunStats are the figures stored when a run finishes
type RunStats struct {
	// RunID replaces the recorded id when the run resumed an older checkpoint
	RunID        string
	FinishedAt   int64
	PagesCrawled int
	UniquePages  int64
	Pending      int
	State        string
	Error        string
}

// FinishRun updates a run with its final statistics
func (s *Store) FinishRun(id uint, stats RunStats) error {
	updates := map[string]interface{}{
		"finished_at":   stats.FinishedAt,
		"pages_crawled": stats.PagesCrawled,
		"unique_pages":  stats.UniquePages,
		"pending":       stats.Pending,
		"state":         stats.State,
		"error":         stats.Error,
	}
	if stats.RunID != "" {
		updates["run_id"] = stats.RunID
	}
	result := s.db.Model(&CrawlRun{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update run: %v", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("run %d not found", id)
	}
	return nil
}

// GetRuns returns all runs, most recent first
func (s *Store) GetRuns() ([]CrawlRun, error) {
	var runs []CrawlRun
	if err := s.db.Order("started_at DESC, id DESC").Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to get runs: %v", err)
	}
	return runs, nil
}

// GetLatestRun returns the most recent run, or nil when none was recorded
func (s *Store) GetLatestRun() (*CrawlRun, error) {
	var run CrawlRun
	result := s.db.Order("started_at DESC, id DESC").First(&run)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest run: %v", result.Error)
	}
	return &run, nil
}
