package command

import (
	"strings"

	"github.com/goliatone/go-entitlements/core"
)

const (
	TypeApplyDesiredState       = "entitlements.command.desired_state.apply"
	TypeSetupResourceGroup      = "entitlements.command.resource_group.setup"
	TypeReconcileResourceGroups = "entitlements.command.resource_group.reconcile"
	TypeSetupPermissionGroups   = "entitlements.command.permission_group.setup"
	TypeSetupRoleTemplate       = "entitlements.command.role_template.setup"
	TypeAssignPermissions       = "entitlements.command.permissions.assign"
	TypeAssignPermissionsBatch  = "entitlements.command.permissions.assign_batch"
	TypeSetAdministrators       = "entitlements.command.administrators.set"
	TypeRemoveAdministrators    = "entitlements.command.administrators.remove"
	TypeDeletePermissionGroups  = "entitlements.command.permission_group.delete_all"
	TypeClearUserPermissions    = "entitlements.command.permissions.clear"
)

// Task names stamped on every execution record a command produces.
const (
	TaskApplyDesiredState       = "apply-desired-state"
	TaskSetupResourceGroup      = "setup-resource-group"
	TaskReconcileResourceGroups = "reconcile-resource-groups"
	TaskSetupPermissionGroups   = "setup-permission-groups"
	TaskSetupRoleTemplate       = "setup-role-template"
	TaskAssignPermissions       = "assign-permissions"
	TaskAssignPermissionsBatch  = "assign-permissions-batch"
	TaskSetAdministrators       = "set-administrators"
	TaskRemoveAdministrators    = "remove-administrators"
	TaskDeletePermissionGroups  = "delete-permission-groups"
	TaskClearUserPermissions    = "clear-user-permissions"
)

type ApplyDesiredStateMessage struct {
	ExecutionID string
	State       core.DesiredState
}

func (ApplyDesiredStateMessage) Type() string { return TypeApplyDesiredState }

func (m ApplyDesiredStateMessage) Validate() error {
	return validateAgreement(m.State.Agreement)
}

type SetupResourceGroupMessage struct {
	ExecutionID string
	Agreement   core.Agreement
	Group       core.ResourceGroup
	Mode        core.IngestionMode
}

func (SetupResourceGroupMessage) Type() string { return TypeSetupResourceGroup }

func (m SetupResourceGroupMessage) Validate() error {
	if err := validateAgreement(m.Agreement); err != nil {
		return err
	}
	if strings.TrimSpace(m.Group.Name) == "" {
		return commandValidationError("group.name", "resource group name is required")
	}
	return nil
}

type ReconcileResourceGroupsMessage struct {
	ExecutionID string
	Agreement   core.Agreement
	GroupType   core.ResourceGroupType
	Groups      []core.ResourceGroup
	Mode        core.IngestionMode
}

func (ReconcileResourceGroupsMessage) Type() string { return TypeReconcileResourceGroups }

func (m ReconcileResourceGroupsMessage) Validate() error {
	if err := validateAgreement(m.Agreement); err != nil {
		return err
	}
	if strings.TrimSpace(string(m.GroupType)) == "" {
		return commandValidationError("group_type", "resource group type is required")
	}
	return nil
}

type SetupPermissionGroupsMessage struct {
	ExecutionID string
	Agreement   core.Agreement
	Groups      []core.PermissionGroup
}

func (SetupPermissionGroupsMessage) Type() string { return TypeSetupPermissionGroups }

func (m SetupPermissionGroupsMessage) Validate() error {
	return validateAgreement(m.Agreement)
}

type SetupRoleTemplateMessage struct {
	ExecutionID string
	Agreement   core.Agreement
	Template    core.RoleTemplate
}

func (SetupRoleTemplateMessage) Type() string { return TypeSetupRoleTemplate }

func (m SetupRoleTemplateMessage) Validate() error {
	if err := validateAgreement(m.Agreement); err != nil {
		return err
	}
	if strings.TrimSpace(m.Template.Name) == "" {
		return commandValidationError("template.name", "role template name is required")
	}
	return nil
}

type AssignPermissionsMessage struct {
	ExecutionID string
	Agreement   core.Agreement
	Permissions core.UserPermissions
}

func (AssignPermissionsMessage) Type() string { return TypeAssignPermissions }

func (m AssignPermissionsMessage) Validate() error {
	if err := validateAgreement(m.Agreement); err != nil {
		return err
	}
	return validateUser("permissions.user", m.Permissions.User)
}

type AssignPermissionsBatchMessage struct {
	ExecutionID string
	Agreement   core.Agreement
	Users       []core.UserPermissions
	Mode        core.IngestionMode
}

func (AssignPermissionsBatchMessage) Type() string { return TypeAssignPermissionsBatch }

func (m AssignPermissionsBatchMessage) Validate() error {
	if err := validateAgreement(m.Agreement); err != nil {
		return err
	}
	for _, user := range m.Users {
		if err := validateUser("users.user", user.User); err != nil {
			return err
		}
	}
	return nil
}

type SetAdministratorsMessage struct {
	ExecutionID string
	Agreement   core.Agreement
}

func (SetAdministratorsMessage) Type() string { return TypeSetAdministrators }

func (m SetAdministratorsMessage) Validate() error {
	return validateAgreement(m.Agreement)
}

type RemoveAdministratorsMessage struct {
	ExecutionID string
	Agreement   core.Agreement
}

func (RemoveAdministratorsMessage) Type() string { return TypeRemoveAdministrators }

func (m RemoveAdministratorsMessage) Validate() error {
	return validateAgreement(m.Agreement)
}

type DeletePermissionGroupsMessage struct {
	ExecutionID string
	Agreement   core.Agreement
}

func (DeletePermissionGroupsMessage) Type() string { return TypeDeletePermissionGroups }

func (m DeletePermissionGroupsMessage) Validate() error {
	return validateAgreement(m.Agreement)
}

type ClearUserPermissionsMessage struct {
	ExecutionID string
	Agreement   core.Agreement
	User        core.User
}

func (ClearUserPermissionsMessage) Type() string { return TypeClearUserPermissions }

func (m ClearUserPermissionsMessage) Validate() error {
	if err := validateAgreement(m.Agreement); err != nil {
		return err
	}
	return validateUser("user", m.User)
}

func validateAgreement(agreement core.Agreement) error {
	if strings.TrimSpace(agreement.ID) == "" {
		return commandValidationError("agreement.id", "agreement id is required")
	}
	return nil
}

func validateUser(field string, user core.User) error {
	if strings.TrimSpace(user.InternalID) == "" && strings.TrimSpace(user.ID) == "" {
		return commandValidationError(field, "user id is required")
	}
	return nil
}
