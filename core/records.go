package core

import (
	"context"
	"time"
)

type ExecutionRecordFilter struct {
	ExecutionID string
	Task        string
	Level       ExecutionLevel
	Domain      string
	Status      string
	From        *time.Time
	To          *time.Time
	Page        int
	PerPage     int
}

type ExecutionRecordPage struct {
	Items      []ExecutionRecord
	Page       int
	PerPage    int
	Total      int
	HasNext    bool
	NextCursor string
}

// RecordRetentionPolicy bounds stored execution records by age and by row count.
// Zero values disable the corresponding bound.
type RecordRetentionPolicy struct {
	TTL    time.Duration
	RowCap int
}

type ExecutionRecordReader interface {
	List(ctx context.Context, filter ExecutionRecordFilter) (ExecutionRecordPage, error)
}

type ExecutionRecordPruner interface {
	Prune(ctx context.Context, policy RecordRetentionPolicy) (int, error)
}

type ExecutionRecordStore interface {
	ExecutionRecordSink
	ExecutionRecordReader
	ExecutionRecordPruner
}
