package queue

import (
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"morph/internal/converter"
)

// Status is the lifecycle state of a queued conversion.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether s is Completed or Failed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Item is one conversion job. The identifying fields never change after
// NewItem; status and message are written only by the Processor and are
// safe to read from any goroutine.
type Item struct {
	ID              string
	SourcePath      string
	DestinationPath string
	Options         converter.Options

	mu      sync.RWMutex
	status  Status
	message string
}

// Snapshot is a point-in-time copy of an Item.
type Snapshot struct {
	ID              string            `json:"id"`
	SourcePath      string            `json:"source_path"`
	DestinationPath string            `json:"destination_path"`
	FileName        string            `json:"file_name"`
	Options         converter.Options `json:"options"`
	Status          Status            `json:"status"`
	Message         string            `json:"message,omitempty"`
}

// NewItem returns a Pending item holding its own copy of opts.
func NewItem(sourcePath, destinationPath string, opts converter.Options) *Item {
	return &Item{
		ID:              uuid.NewString(),
		SourcePath:      sourcePath,
		DestinationPath: destinationPath,
		Options:         opts,
		status:          StatusPending,
	}
}

func (i *Item) Status() Status {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.status
}

// Message holds the failure reason; it is empty unless the item Failed.
func (i *Item) Message() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.message
}

func (i *Item) Snapshot() Snapshot {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return Snapshot{
		ID:              i.ID,
		SourcePath:      i.SourcePath,
		DestinationPath: i.DestinationPath,
		FileName:        filepath.Base(i.SourcePath),
		Options:         i.Options,
		Status:          i.status,
		Message:         i.message,
	}
}

func (i *Item) setStatus(status Status, message string) {
	i.mu.Lock()
	i.status = status
	i.message = message
	i.mu.Unlock()
}
