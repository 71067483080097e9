package storage

import (
	"errors"

	"github.com/cuemby/etlconsole/pkg/types"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")

// Store defines the interface for local history storage
type Store interface {
	// Jobs
	CreateJob(job *types.JobRecord) error
	GetJob(id string) (*types.JobRecord, error)
	ListJobs() ([]*types.JobRecord, error)
	UpdateJob(job *types.JobRecord) error

	// Queries
	CreateQuery(query *types.QueryRecord) error
	ListQueries() ([]*types.QueryRecord, error)

	// Utility
	Close() error
}
