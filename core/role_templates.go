package core

import (
	"context"
	"fmt"
	"strings"
)

// SetupRoleTemplate creates the template unless a permission group with the
// same name already exists, in which case its identifier is bound onto the
// returned template and no create call is issued.
func (e *Engine) SetupRoleTemplate(
	ctx context.Context,
	exec *ExecutionContext,
	agreement Agreement,
	template RoleTemplate,
) (out RoleTemplate, err error) {
	startedAt := e.timestamp()
	agreementID := strings.TrimSpace(agreement.ID)
	exec = ensureExecution(exec, "setup-role-template")
	defer func() {
		e.observeOperation(ctx, startedAt, "setup_role_template", err, map[string]any{
			"agreement_id": agreementID,
			"template":     template.Name,
		})
	}()

	validate := step{domain: DomainRoleTemplate, action: ActionValidate, agreementID: agreementID}
	if agreementID == "" {
		return RoleTemplate{}, e.fail(exec, validate, "", "role template setup requires an agreement", ErrAgreementIDRequired)
	}
	group := normalizePermissionGroup(template.PermissionGroup(), PermissionGroupKindTemplate)
	if group.Name == "" {
		return RoleTemplate{}, e.fail(exec, validate, "", "role template name is required",
			fmt.Errorf("%w: role template name is required", ErrInvalidDesiredState))
	}
	template.Name = group.Name
	template.Description = group.Description

	remote, err := e.listPermissionGroups(ctx, exec, agreementID, DomainRoleTemplate)
	if err != nil {
		return RoleTemplate{}, err
	}
	if match, ok := firstByName(remote, group.Name, func(g PermissionGroup) string { return g.Name }); ok {
		template.ID = strings.TrimSpace(match.ID)
		exec.Info(DomainRoleTemplate, ActionCreate, StatusExists, template.ID,
			fmt.Sprintf("role template %q already exists", template.Name))
		return template, nil
	}

	id, err := e.client.CreatePermissionGroup(ctx, agreementID, group)
	if err == nil {
		id, err = remoteID("create role template", id)
	}
	if err != nil {
		return RoleTemplate{}, e.fail(exec, step{domain: DomainRoleTemplate, action: ActionCreate, agreementID: agreementID},
			template.Name, fmt.Sprintf("failed to create role template %q", template.Name), err)
	}
	template.ID = id
	exec.Info(DomainRoleTemplate, ActionCreate, StatusCreated, template.ID,
		fmt.Sprintf("created role template %q", template.Name))
	return template, nil
}
