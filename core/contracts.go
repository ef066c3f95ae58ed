package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

// RemoteAccessControlClient is the capability boundary to the remote
// access-control backend. Implementations classify failures as *RemoteError.
// ListResourceGroups with an empty type lists groups of every type.
type RemoteAccessControlClient interface {
	CreateResourceGroup(ctx context.Context, agreementID string, group ResourceGroup) (string, error)
	UpdateResourceGroupItems(ctx context.Context, deltas []ResourceGroupDelta) ([]BatchOutcome, error)
	ListResourceGroups(ctx context.Context, agreementID string, groupType ResourceGroupType) ([]ResourceGroup, error)

	CreatePermissionGroup(ctx context.Context, agreementID string, group PermissionGroup) (string, error)
	ListPermissionGroups(ctx context.Context, agreementID string) ([]PermissionGroup, error)
	DeletePermissionGroups(ctx context.Context, ids []string) ([]BatchOutcome, error)

	SubmitUserAssignments(ctx context.Context, assignments []UserAssignment, mode IngestionMode) ([]BatchOutcome, error)
	FetchUserAssignments(ctx context.Context, userID string, agreementID string) ([]PermissionAssignment, error)
	ReplaceUserPermissions(ctx context.Context, agreementID string, userID string, permissions []PermissionAssignment) error

	AddAdmins(ctx context.Context, agreementID string, userIDs []string) ([]BatchOutcome, error)
	RemoveAdmins(ctx context.Context, agreementID string, userIDs []string) ([]BatchOutcome, error)
	ListAdmins(ctx context.Context, agreementID string) ([]string, error)
}

// UserDirectory resolves a user reference returned by the access-control
// backend into the identifier admin mutations expect.
type UserDirectory interface {
	ResolveUserID(ctx context.Context, reference string) (string, error)
}

type ExecutionRecordSink interface {
	Record(ctx context.Context, record ExecutionRecord) error
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// passthroughUserDirectory is used when no directory is configured and admin
// references are already remote user ids.
type passthroughUserDirectory struct{}

func (passthroughUserDirectory) ResolveUserID(_ context.Context, reference string) (string, error) {
	return reference, nil
}
