package query

import (
	"context"

	"github.com/goliatone/go-entitlements/core"
)

type ArrangementReader interface {
	ListArrangementIDs(ctx context.Context, agreementID string) ([]string, error)
}

type PermissionGroupReader interface {
	ListPermissionGroups(ctx context.Context, agreementID string) ([]core.PermissionGroup, error)
}

type ListExecutionRecordsQuery struct {
	reader core.ExecutionRecordReader
}

func NewListExecutionRecordsQuery(reader core.ExecutionRecordReader) *ListExecutionRecordsQuery {
	return &ListExecutionRecordsQuery{reader: reader}
}

func (q *ListExecutionRecordsQuery) Query(ctx context.Context, msg ListExecutionRecordsMessage) (core.ExecutionRecordPage, error) {
	if q == nil || q.reader == nil {
		return core.ExecutionRecordPage{}, queryDependencyError("query: execution record reader is required")
	}
	page, err := q.reader.List(ctx, msg.Filter)
	if err != nil {
		return core.ExecutionRecordPage{}, core.MapError(err)
	}
	return page, nil
}

type ListArrangementIDsQuery struct {
	reader ArrangementReader
}

func NewListArrangementIDsQuery(reader ArrangementReader) *ListArrangementIDsQuery {
	return &ListArrangementIDsQuery{reader: reader}
}

func (q *ListArrangementIDsQuery) Query(ctx context.Context, msg ListArrangementIDsMessage) ([]string, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: arrangement reader is required")
	}
	ids, err := q.reader.ListArrangementIDs(ctx, msg.AgreementID)
	if err != nil {
		return nil, core.MapError(err)
	}
	return ids, nil
}

type ListPermissionGroupsQuery struct {
	reader PermissionGroupReader
}

func NewListPermissionGroupsQuery(reader PermissionGroupReader) *ListPermissionGroupsQuery {
	return &ListPermissionGroupsQuery{reader: reader}
}

func (q *ListPermissionGroupsQuery) Query(ctx context.Context, msg ListPermissionGroupsMessage) ([]core.PermissionGroup, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: permission group reader is required")
	}
	groups, err := q.reader.ListPermissionGroups(ctx, msg.AgreementID)
	if err != nil {
		return nil, core.MapError(err)
	}
	return groups, nil
}
