package transport

import (
	"strings"

	"github.com/goliatone/go-entitlements/core"
)

// Mapper holds the conversions between domain values and wire DTOs. Every
// field is a plain function so callers can swap a single conversion.
type Mapper struct {
	ResourceGroupToDTO     func(agreementID string, group core.ResourceGroup) ResourceGroupDTO
	ResourceGroupFromDTO   func(dto ResourceGroupDTO) core.ResourceGroup
	DeltaToDTOs            func(delta core.ResourceGroupDelta) []ResourceGroupItemsDTO
	PermissionGroupToDTO   func(agreementID string, group core.PermissionGroup) PermissionGroupDTO
	PermissionGroupFromDTO func(dto PermissionGroupDTO) core.PermissionGroup
	AssignmentToDTO        func(assignment core.UserAssignment) UserAssignmentDTO
	PermissionsToDTO       func(permissions []core.PermissionAssignment) []PermissionAssignmentDTO
	PermissionsFromDTO     func(items []PermissionAssignmentDTO) []core.PermissionAssignment
	OutcomeFromDTO         func(item BatchResponseItemDTO) core.BatchOutcome
}

func DefaultMapper() Mapper {
	return Mapper{
		ResourceGroupToDTO:     resourceGroupToDTO,
		ResourceGroupFromDTO:   resourceGroupFromDTO,
		DeltaToDTOs:            deltaToDTOs,
		PermissionGroupToDTO:   permissionGroupToDTO,
		PermissionGroupFromDTO: permissionGroupFromDTO,
		AssignmentToDTO:        assignmentToDTO,
		PermissionsToDTO:       permissionsToDTO,
		PermissionsFromDTO:     permissionsFromDTO,
		OutcomeFromDTO:         outcomeFromDTO,
	}
}

func (m Mapper) withDefaults() Mapper {
	defaults := DefaultMapper()
	if m.ResourceGroupToDTO == nil {
		m.ResourceGroupToDTO = defaults.ResourceGroupToDTO
	}
	if m.ResourceGroupFromDTO == nil {
		m.ResourceGroupFromDTO = defaults.ResourceGroupFromDTO
	}
	if m.DeltaToDTOs == nil {
		m.DeltaToDTOs = defaults.DeltaToDTOs
	}
	if m.PermissionGroupToDTO == nil {
		m.PermissionGroupToDTO = defaults.PermissionGroupToDTO
	}
	if m.PermissionGroupFromDTO == nil {
		m.PermissionGroupFromDTO = defaults.PermissionGroupFromDTO
	}
	if m.AssignmentToDTO == nil {
		m.AssignmentToDTO = defaults.AssignmentToDTO
	}
	if m.PermissionsToDTO == nil {
		m.PermissionsToDTO = defaults.PermissionsToDTO
	}
	if m.PermissionsFromDTO == nil {
		m.PermissionsFromDTO = defaults.PermissionsFromDTO
	}
	if m.OutcomeFromDTO == nil {
		m.OutcomeFromDTO = defaults.OutcomeFromDTO
	}
	return m
}

func resourceGroupToDTO(agreementID string, group core.ResourceGroup) ResourceGroupDTO {
	return ResourceGroupDTO{
		ID:                  group.ID,
		Name:                group.Name,
		Description:         group.Description,
		ServiceAgreementID:  agreementID,
		Type:                string(group.Type),
		Items:               nonNilStrings(group.Items),
		AreItemsInternalIDs: group.AreItemsInternal,
	}
}

func resourceGroupFromDTO(dto ResourceGroupDTO) core.ResourceGroup {
	return core.ResourceGroup{
		ID:               dto.ID,
		Name:             dto.Name,
		Description:      dto.Description,
		Type:             core.ResourceGroupType(strings.ToUpper(strings.TrimSpace(dto.Type))),
		Items:            append([]string(nil), dto.Items...),
		AreItemsInternal: dto.AreItemsInternalIDs,
	}
}

// deltaToDTOs emits at most one ADD and one REMOVE entry per group.
func deltaToDTOs(delta core.ResourceGroupDelta) []ResourceGroupItemsDTO {
	out := make([]ResourceGroupItemsDTO, 0, 2)
	appendAction := func(action core.ResourceGroupItemAction, items []string) {
		if len(items) == 0 {
			return
		}
		identifiers := make([]ItemIdentifier, 0, len(items))
		for _, item := range items {
			identifiers = append(identifiers, ItemIdentifier{InternalIDIdentifier: item})
		}
		out = append(out, ResourceGroupItemsDTO{
			Type:                    string(delta.Type),
			Action:                  string(action),
			ResourceGroupIdentifier: Identifier{IDIdentifier: delta.GroupID},
			Items:                   identifiers,
		})
	}
	appendAction(core.ResourceGroupItemAdd, delta.Add)
	appendAction(core.ResourceGroupItemRemove, delta.Remove)
	return out
}

func permissionGroupToDTO(agreementID string, group core.PermissionGroup) PermissionGroupDTO {
	permissions := make([]FunctionPermissionDTO, 0, len(group.Functions))
	for _, function := range group.Functions {
		privileges := make([]PrivilegeDTO, 0, len(function.Privileges))
		for _, privilege := range function.Privileges {
			privileges = append(privileges, PrivilegeDTO{Privilege: privilege})
		}
		permissions = append(permissions, FunctionPermissionDTO{
			FunctionID:         function.FunctionID,
			FunctionName:       function.Name,
			AssignedPrivileges: privileges,
		})
	}
	return PermissionGroupDTO{
		ID:                 group.ID,
		Name:               group.Name,
		Description:        group.Description,
		ServiceAgreementID: agreementID,
		Type:               string(group.Kind),
		Permissions:        permissions,
	}
}

func permissionGroupFromDTO(dto PermissionGroupDTO) core.PermissionGroup {
	functions := make([]core.BusinessFunction, 0, len(dto.Permissions))
	for _, permission := range dto.Permissions {
		privileges := make([]string, 0, len(permission.AssignedPrivileges))
		for _, privilege := range permission.AssignedPrivileges {
			privileges = append(privileges, privilege.Privilege)
		}
		functions = append(functions, core.BusinessFunction{
			FunctionID: permission.FunctionID,
			Name:       permission.FunctionName,
			Privileges: privileges,
		})
	}
	kind := core.PermissionGroupKind(strings.ToUpper(strings.TrimSpace(dto.Type)))
	if kind == "" {
		kind = core.PermissionGroupKindRegular
	}
	return core.PermissionGroup{
		ID:          dto.ID,
		Name:        dto.Name,
		Description: dto.Description,
		Kind:        kind,
		Functions:   functions,
	}
}

func assignmentToDTO(assignment core.UserAssignment) UserAssignmentDTO {
	return UserAssignmentDTO{
		UserID:             assignment.UserID,
		ServiceAgreementID: assignment.AgreementID,
		Items:              permissionsToDTO(assignment.Permissions),
	}
}

func permissionsToDTO(permissions []core.PermissionAssignment) []PermissionAssignmentDTO {
	out := make([]PermissionAssignmentDTO, 0, len(permissions))
	for _, permission := range permissions {
		out = append(out, PermissionAssignmentDTO{
			FunctionGroupID: permission.PermissionGroupID,
			DataGroupIDs:    nonNilStrings(permission.ResourceGroupIDs),
		})
	}
	return out
}

func permissionsFromDTO(items []PermissionAssignmentDTO) []core.PermissionAssignment {
	out := make([]core.PermissionAssignment, 0, len(items))
	for _, item := range items {
		out = append(out, core.PermissionAssignment{
			PermissionGroupID: item.FunctionGroupID,
			ResourceGroupIDs:  append([]string(nil), item.DataGroupIDs...),
		})
	}
	return out
}

func outcomeFromDTO(item BatchResponseItemDTO) core.BatchOutcome {
	return core.BatchOutcome{
		Status:      core.BatchStatus(strings.TrimSpace(item.Status)),
		ResourceID:  item.ResourceID,
		AgreementID: item.ServiceAgreementID,
		Action:      item.Action,
		Errors:      append([]string(nil), item.Errors...),
	}
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
