package sqlstore

import "github.com/goliatone/go-entitlements/core"

var (
	_ core.ExecutionRecordSink   = (*ExecutionRecordStore)(nil)
	_ core.ExecutionRecordReader = (*ExecutionRecordStore)(nil)
	_ core.ExecutionRecordPruner = (*ExecutionRecordStore)(nil)
	_ core.ExecutionRecordStore  = (*ExecutionRecordStore)(nil)
)
