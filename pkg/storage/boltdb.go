package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cuemby/etlconsole/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketJobs    = []byte("jobs")
	bucketQueries = []byte("queries")
)

// DBFile is the database file name inside the data directory
const DBFile = "etlconsole.db"

// Another console holding the file lock makes Open fail after this long
const defaultOpenTimeout = time.Second

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

var _ Store = (*BoltStore)(nil)

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, DBFile)

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: defaultOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketJobs, bucketQueries} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Job operations
func (s *BoltStore) CreateJob(job *types.JobRecord) error {
	return s.put(bucketJobs, job.ID, job)
}

func (s *BoltStore) GetJob(id string) (*types.JobRecord, error) {
	var job types.JobRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketJobs).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("job %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &job)
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs returns jobs ordered by start time, oldest first
func (s *BoltStore) ListJobs() ([]*types.JobRecord, error) {
	var jobs []*types.JobRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketJobs).ForEach(func(k, v []byte) error {
			var job types.JobRecord
			if err := json.Unmarshal(v, &job); err != nil {
				return err
			}
			jobs = append(jobs, &job)
			return nil
		})
	})
	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].StartedAt.Before(jobs[j].StartedAt)
	})
	return jobs, err
}

func (s *BoltStore) UpdateJob(job *types.JobRecord) error {
	return s.CreateJob(job) // upsert
}

// Query operations
func (s *BoltStore) CreateQuery(query *types.QueryRecord) error {
	return s.put(bucketQueries, query.ID, query)
}

// ListQueries returns queries ordered by time asked, oldest first
func (s *BoltStore) ListQueries() ([]*types.QueryRecord, error) {
	var queries []*types.QueryRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketQueries).ForEach(func(k, v []byte) error {
			var query types.QueryRecord
			if err := json.Unmarshal(v, &query); err != nil {
				return err
			}
			queries = append(queries, &query)
			return nil
		})
	})
	sort.SliceStable(queries, func(i, j int) bool {
		return queries[i].AskedAt.Before(queries[j].AskedAt)
	})
	return queries, err
}

func (s *BoltStore) put(bucket []byte, key string, value interface{}) error {
	if key == "" {
		return fmt.Errorf("empty key for bucket %s", bucket)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}
