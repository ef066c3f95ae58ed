package core

import (
	"context"
	"fmt"
	"strings"
)

// Apply converges an agreement to the desired state in dependency order:
// resource groups per type, permission groups, role templates, user grants
// and finally administrators. The first failing stage stops the run.
func (e *Engine) Apply(ctx context.Context, exec *ExecutionContext, state DesiredState) (out ApplyResult, err error) {
	startedAt := e.timestamp()
	mode := state.Mode.Normalize()
	agreementID := strings.TrimSpace(state.Agreement.ID)
	exec = ensureExecution(exec, "apply-desired-state")
	defer func() {
		e.observeOperation(ctx, startedAt, "apply_desired_state", err, map[string]any{
			"agreement_id": agreementID,
			"mode":         string(mode),
		})
	}()

	if agreementID == "" {
		return ApplyResult{}, e.fail(exec, step{domain: DomainAgreement, action: ActionValidate},
			"", "desired state requires an agreement", ErrAgreementIDRequired)
	}
	result := ApplyResult{Agreement: state.Agreement}

	types, byType := groupResourceGroupsByType(state.ResourceGroups)
	for _, groupType := range types {
		groups, err := e.ReconcileResourceGroups(ctx, exec, state.Agreement, groupType, byType[groupType], mode)
		if err != nil {
			return result, err
		}
		result.ResourceGroups = append(result.ResourceGroups, groups...)
	}

	if len(state.PermissionGroups) > 0 {
		groups, err := e.SetupPermissionGroups(ctx, exec, state.Agreement, state.PermissionGroups)
		if err != nil {
			return result, err
		}
		result.PermissionGroups = groups
	}

	for _, template := range state.RoleTemplates {
		provisioned, err := e.SetupRoleTemplate(ctx, exec, state.Agreement, template)
		if err != nil {
			return result, err
		}
		result.RoleTemplates = append(result.RoleTemplates, provisioned)
	}

	if len(state.Users) > 0 {
		users, err := resolveUserGrants(state.Users, result)
		if err != nil {
			return result, e.fail(exec, step{domain: DomainUserAssignment, action: ActionValidate, agreementID: agreementID},
				agreementID, "user grants reference unknown groups", err)
		}
		assignments, err := e.AssignPermissionsBatch(ctx, exec, state.Agreement, users, mode)
		if err != nil {
			return result, err
		}
		result.Assignments = assignments
	}

	if state.SetAdmins {
		agreement, err := e.SetAdministrators(ctx, exec, state.Agreement)
		if err != nil {
			return result, err
		}
		result.Agreement = agreement
	}
	return result, nil
}

func groupResourceGroupsByType(groups []ResourceGroup) ([]ResourceGroupType, map[ResourceGroupType][]ResourceGroup) {
	var order []ResourceGroupType
	byType := map[ResourceGroupType][]ResourceGroup{}
	for _, group := range groups {
		groupType := group.Type
		if strings.TrimSpace(string(groupType)) == "" {
			groupType = ResourceGroupTypeArrangements
		}
		if _, ok := byType[groupType]; !ok {
			order = append(order, groupType)
		}
		byType[groupType] = append(byType[groupType], group)
	}
	return order, byType
}

// resolveUserGrants maps named grants to provisioned groups. Names resolve to
// the first provisioned group carrying them.
func resolveUserGrants(users []DesiredUserGrants, provisioned ApplyResult) ([]UserPermissions, error) {
	permissionGroups := map[string]PermissionGroup{}
	for _, group := range provisioned.PermissionGroups {
		if _, ok := permissionGroups[group.Name]; !ok {
			permissionGroups[group.Name] = group
		}
	}
	for _, template := range provisioned.RoleTemplates {
		if _, ok := permissionGroups[template.Name]; !ok {
			permissionGroups[template.Name] = template.PermissionGroup()
		}
	}
	resourceGroups := map[string]ResourceGroup{}
	for _, group := range provisioned.ResourceGroups {
		if _, ok := resourceGroups[group.Name]; !ok {
			resourceGroups[group.Name] = group
		}
	}

	out := make([]UserPermissions, 0, len(users))
	for _, user := range users {
		permissions := UserPermissions{User: user.User}
		for _, grant := range user.Grants {
			name := strings.TrimSpace(grant.PermissionGroup)
			group, ok := permissionGroups[name]
			if !ok {
				return nil, fmt.Errorf("%w: permission group %q", ErrUnknownGroupReference, name)
			}
			resolved := PermissionGrant{PermissionGroup: group}
			for _, resourceName := range grant.ResourceGroups {
				resourceName = strings.TrimSpace(resourceName)
				resource, ok := resourceGroups[resourceName]
				if !ok {
					return nil, fmt.Errorf("%w: resource group %q", ErrUnknownGroupReference, resourceName)
				}
				resolved.ResourceGroups = append(resolved.ResourceGroups, resource)
			}
			permissions.Grants = append(permissions.Grants, resolved)
		}
		out = append(out, permissions)
	}
	return out, nil
}
