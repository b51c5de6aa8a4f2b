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
	"gorm.io/gorm"

	"github.com/agentberlin/scopecrawl/storage"
)

// SQLite has a limit on SQL variables (typically 999); every model here has
// at most five columns, so batches of 100 rows stay well below it.
const batchSize = 100

func insertBatches[T any](tx *gorm.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.CreateInBatches(rows, batchSize).Error
}

// queueRows converts pending frontier entries to rows, keeping their order
func queueRows(entries []storage.Entry) []QueueItem {
	rows := make([]QueueItem, len(entries))
	for i, e := range entries {
		rows[i] = QueueItem{
			Position:       i,
			URL:            e.URL,
			Depth:          e.Depth,
			DiscoveredFrom: e.DiscoveredFrom,
		}
	}
	return rows
}

// loadQueue returns the pending entries in queue order
func loadQueue(tx *gorm.DB) ([]storage.Entry, error) {
	var items []QueueItem
	if err := tx.Order("position ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	entries := make([]storage.Entry, len(items))
	for i, it := range items {
		entries[i] = storage.Entry{URL: it.URL, Depth: it.Depth, DiscoveredFrom: it.DiscoveredFrom}
	}
	return entries, nil
}

// loadSeen returns the seen-set
func loadSeen(tx *gorm.DB) ([]string, error) {
	var urls []string
	if err := tx.Model(&SeenURL{}).Order("id ASC").Pluck("url", &urls).Error; err != nil {
		return nil, err
	}
	return urls, nil
}

// PendingCount returns the number of pending entries in the stored checkpoint
func (s *Store) PendingCount() (int64, error) {
	var count int64
	if err := s.db.Model(&QueueItem{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// IsSeen reports whether url is in the stored seen-set
func (s *Store) IsSeen(url string) (bool, error) {
	var count int64
	if err := s.db.Model(&SeenURL{}).Where("url = ?", url).Limit(1).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
