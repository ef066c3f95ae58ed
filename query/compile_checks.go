package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-entitlements/core"
)

var (
	_ gocmd.Querier[ListExecutionRecordsMessage, core.ExecutionRecordPage] = (*ListExecutionRecordsQuery)(nil)
	_ gocmd.Querier[ListArrangementIDsMessage, []string]                   = (*ListArrangementIDsQuery)(nil)
	_ gocmd.Querier[ListPermissionGroupsMessage, []core.PermissionGroup]   = (*ListPermissionGroupsQuery)(nil)

	_ ArrangementReader     = (*core.Engine)(nil)
	_ PermissionGroupReader = (*core.Engine)(nil)
)
