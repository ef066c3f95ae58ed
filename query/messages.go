package query

import (
	"strings"

	"github.com/goliatone/go-entitlements/core"
)

const (
	TypeListExecutionRecords = "entitlements.query.execution_records.list"
	TypeListArrangementIDs   = "entitlements.query.arrangements.list"
	TypeListPermissionGroups = "entitlements.query.permission_groups.list"
)

type ListExecutionRecordsMessage struct {
	Filter core.ExecutionRecordFilter
}

func (ListExecutionRecordsMessage) Type() string { return TypeListExecutionRecords }

func (m ListExecutionRecordsMessage) Validate() error {
	if m.Filter.Page < 0 {
		return queryValidationError("page", "page must be >= 0")
	}
	if m.Filter.PerPage < 0 {
		return queryValidationError("per_page", "per_page must be >= 0")
	}
	if m.Filter.From != nil && m.Filter.To != nil && m.Filter.To.Before(*m.Filter.From) {
		return queryValidationError("to", "to must not be before from")
	}
	switch m.Filter.Level {
	case "", core.ExecutionLevelInfo, core.ExecutionLevelError:
	default:
		return queryValidationError("level", "level must be info or error")
	}
	return nil
}

type ListArrangementIDsMessage struct {
	AgreementID string
}

func (ListArrangementIDsMessage) Type() string { return TypeListArrangementIDs }

func (m ListArrangementIDsMessage) Validate() error {
	if strings.TrimSpace(m.AgreementID) == "" {
		return queryValidationError("agreement_id", "agreement id is required")
	}
	return nil
}

type ListPermissionGroupsMessage struct {
	AgreementID string
}

func (ListPermissionGroupsMessage) Type() string { return TypeListPermissionGroups }

func (m ListPermissionGroupsMessage) Validate() error {
	if strings.TrimSpace(m.AgreementID) == "" {
		return queryValidationError("agreement_id", "agreement id is required")
	}
	return nil
}
