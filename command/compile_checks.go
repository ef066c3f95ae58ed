package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-entitlements/core"
)

var (
	_ gocmd.Commander[ApplyDesiredStateMessage]       = (*ApplyDesiredStateCommand)(nil)
	_ gocmd.Commander[SetupResourceGroupMessage]      = (*SetupResourceGroupCommand)(nil)
	_ gocmd.Commander[ReconcileResourceGroupsMessage] = (*ReconcileResourceGroupsCommand)(nil)
	_ gocmd.Commander[SetupPermissionGroupsMessage]   = (*SetupPermissionGroupsCommand)(nil)
	_ gocmd.Commander[SetupRoleTemplateMessage]       = (*SetupRoleTemplateCommand)(nil)
	_ gocmd.Commander[AssignPermissionsMessage]       = (*AssignPermissionsCommand)(nil)
	_ gocmd.Commander[AssignPermissionsBatchMessage]  = (*AssignPermissionsBatchCommand)(nil)
	_ gocmd.Commander[SetAdministratorsMessage]       = (*SetAdministratorsCommand)(nil)
	_ gocmd.Commander[RemoveAdministratorsMessage]    = (*RemoveAdministratorsCommand)(nil)
	_ gocmd.Commander[DeletePermissionGroupsMessage]  = (*DeletePermissionGroupsCommand)(nil)
	_ gocmd.Commander[ClearUserPermissionsMessage]    = (*ClearUserPermissionsCommand)(nil)

	_ MutatingEngine = (*core.Engine)(nil)
)
