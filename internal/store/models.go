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

// CheckpointMeta is the single row describing the stored checkpoint
type CheckpointMeta struct {
	ID              uint   `gorm:"primaryKey"`
	Version         int    `gorm:"not null"`
	RunID           string `gorm:"not null"`
	SavedAt         int64  `gorm:"not null"` // unix nanoseconds
	UniquePages     int64  `gorm:"not null;default:0"`
	LongestURL      string `gorm:"type:text"`
	LongestWords    int    `gorm:"default:0"`
	LongestSequence int64  `gorm:"default:0"`
	Sequence        int64  `gorm:"default:0"` // arrival counter of recorded pages
	CreatedAt       int64  `gorm:"autoCreateTime"`
	UpdatedAt       int64  `gorm:"autoUpdateTime"`
}

// SeenURL is one member of the frontier's seen-set
type SeenURL struct {
	ID  uint   `gorm:"primaryKey"`
	URL string `gorm:"not null;uniqueIndex"`
}

// QueueItem is a pending frontier entry. Position preserves queue order.
type QueueItem struct {
	ID             uint   `gorm:"primaryKey"`
	Position       int    `gorm:"not null;index"`
	URL            string `gorm:"not null"`
	Depth          int    `gorm:"not null;default:0"`
	DiscoveredFrom string `gorm:"type:text"`
}

// TableName returns the table name for QueueItem
func (QueueItem) TableName() string {
	return "crawl_queue_items"
}

// HostClock is the politeness state of one host
type HostClock struct {
	ID        uint   `gorm:"primaryKey"`
	Host      string `gorm:"not null;uniqueIndex"`
	LastFetch int64  `gorm:"not null;default:0"` // unix nanoseconds, 0 = never
}

// Fingerprint kinds
const (
	FingerprintExact = "exact"
	FingerprintSim   = "simhash"
)

// ContentFingerprint is a recorded page hash. Hashes are stored as int64
// because SQLite integers are signed.
type ContentFingerprint struct {
	ID       uint   `gorm:"primaryKey"`
	Kind     string `gorm:"not null;index"`
	Position int    `gorm:"not null"`
	Value    int64  `gorm:"not null"`
}

// WordTally is one row of the word frequency table
type WordTally struct {
	ID    uint   `gorm:"primaryKey"`
	Word  string `gorm:"not null;uniqueIndex"`
	Count int64  `gorm:"not null"`
}

// SubdomainTally is one row of the subdomain table
type SubdomainTally struct {
	ID    uint   `gorm:"primaryKey"`
	Host  string `gorm:"not null;uniqueIndex"`
	Count int64  `gorm:"not null"`
}

// HostCounter is the trap detector's per-host URL count
type HostCounter struct {
	ID    uint   `gorm:"primaryKey"`
	Host  string `gorm:"not null;uniqueIndex"`
	Count int64  `gorm:"not null"`
}

// QueryVariant is one distinct query string seen for a host and path
type QueryVariant struct {
	ID   uint   `gorm:"primaryKey"`
	Key  string `gorm:"not null;index"`
	Hash int64  `gorm:"not null"`
}

// DiagnosticCounter is one named error counter
type DiagnosticCounter struct {
	ID    uint   `gorm:"primaryKey"`
	Name  string `gorm:"not null;uniqueIndex"`
	Count int64  `gorm:"not null"`
}

// Run state constants
const (
	RunStateInProgress = "in_progress"
	RunStateStopped    = "stopped"   // budget, deadline or signal; pending work remains
	RunStateCompleted  = "completed" // frontier exhausted
	RunStateFailed     = "failed"
)

// CrawlRun records one invocation of the crawler against this database.
// Resumed invocations share the RunID of the checkpoint they continue.
type CrawlRun struct {
	ID           uint   `gorm:"primaryKey"`
	RunID        string `gorm:"not null;index"`
	StartedAt    int64  `gorm:"not null"`
	FinishedAt   int64  `gorm:"default:0"`
	PagesCrawled int    `gorm:"default:0"`
	UniquePages  int64  `gorm:"default:0"`
	Pending      int    `gorm:"default:0"`
	State        string `gorm:"not null;default:'in_progress'"`
	Error        string `gorm:"type:text"`
	CreatedAt    int64  `gorm:"autoCreateTime"`
	UpdatedAt    int64  `gorm:"autoUpdateTime"`
}

// checkpointTables lists every model holding checkpoint data, in the order
// they are cleared
var checkpointTables = []any{
	&SeenURL{},
	&QueueItem{},
	&HostClock{},
	&ContentFingerprint{},
	&WordTally{},
	&SubdomainTally{},
	&HostCounter{},
	&QueryVariant{},
	&DiagnosticCounter{},
	&CheckpointMeta{},
}
