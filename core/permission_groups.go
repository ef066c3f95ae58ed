package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// SetupPermissionGroups lists the agreement's permission groups once, binds
// identifiers onto desired groups that already exist and creates the rest.
// Creations run concurrently and fail independently; the returned slice keeps
// the desired order and the error joins every failed creation.
func (e *Engine) SetupPermissionGroups(
	ctx context.Context,
	exec *ExecutionContext,
	agreement Agreement,
	groups []PermissionGroup,
) (out []PermissionGroup, err error) {
	startedAt := e.timestamp()
	agreementID := strings.TrimSpace(agreement.ID)
	exec = ensureExecution(exec, "setup-permission-groups")
	defer func() {
		e.observeOperation(ctx, startedAt, "setup_permission_groups", err, map[string]any{
			"agreement_id": agreementID,
			"groups":       len(groups),
		})
	}()

	validate := step{domain: DomainPermissionGroup, action: ActionValidate, agreementID: agreementID}
	if agreementID == "" {
		return nil, e.fail(exec, validate, "", "permission group setup requires an agreement", ErrAgreementIDRequired)
	}
	desired := make([]PermissionGroup, 0, len(groups))
	for _, group := range groups {
		group = normalizePermissionGroup(group, PermissionGroupKindRegular)
		if group.Name == "" {
			return nil, e.fail(exec, validate, "", "permission group name is required",
				fmt.Errorf("%w: permission group name is required", ErrInvalidDesiredState))
		}
		desired = append(desired, group)
	}
	if len(desired) == 0 {
		return []PermissionGroup{}, nil
	}

	remote, err := e.listPermissionGroups(ctx, exec, agreementID, DomainPermissionGroup)
	if err != nil {
		return nil, err
	}

	var pending []int
	for index, group := range desired {
		match, ok := firstByName(remote, group.Name, func(g PermissionGroup) string { return g.Name })
		if !ok {
			pending = append(pending, index)
			continue
		}
		desired[index].ID = strings.TrimSpace(match.ID)
		exec.Info(DomainPermissionGroup, ActionCreate, StatusExists, desired[index].ID,
			fmt.Sprintf("permission group %q already exists", group.Name))
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	create := step{domain: DomainPermissionGroup, action: ActionCreate, agreementID: agreementID}
	g := e.fanout()
	for _, index := range pending {
		g.Go(func() error {
			desiredGroup := desired[index]
			id, createErr := e.client.CreatePermissionGroup(ctx, agreementID, desiredGroup)
			if createErr == nil {
				id, createErr = remoteID("create permission group", id)
			}
			if createErr != nil {
				failure := e.fail(exec, create, desiredGroup.Name,
					fmt.Sprintf("failed to create permission group %q", desiredGroup.Name), createErr)
				mu.Lock()
				errs = append(errs, failure)
				mu.Unlock()
				return nil
			}
			// Each branch owns its own index.
			desired[index].ID = id
			exec.Info(DomainPermissionGroup, ActionCreate, StatusCreated, desired[index].ID,
				fmt.Sprintf("created permission group %q", desiredGroup.Name))
			return nil
		})
	}
	_ = g.Wait()

	return desired, errors.Join(errs...)
}

// ListPermissionGroups returns the permission groups currently held by the
// agreement.
func (e *Engine) ListPermissionGroups(ctx context.Context, agreementID string) (out []PermissionGroup, err error) {
	startedAt := e.timestamp()
	agreementID = strings.TrimSpace(agreementID)
	defer func() {
		e.observeOperation(ctx, startedAt, "list_permission_groups", err, map[string]any{
			"agreement_id": agreementID,
		})
	}()
	if agreementID == "" {
		return nil, ErrAgreementIDRequired
	}
	groups, err := e.client.ListPermissionGroups(ctx, agreementID)
	if err != nil {
		if isAbsent(err) {
			return []PermissionGroup{}, nil
		}
		return nil, err
	}
	return groups, nil
}

func (e *Engine) listPermissionGroups(
	ctx context.Context,
	exec *ExecutionContext,
	agreementID string,
	domain string,
) ([]PermissionGroup, error) {
	remote, err := e.client.ListPermissionGroups(ctx, agreementID)
	if err != nil && !isAbsent(err) {
		return nil, e.fail(exec, step{domain: domain, action: ActionList, agreementID: agreementID},
			agreementID, "failed to list permission groups", err)
	}
	return remote, nil
}

func normalizePermissionGroup(group PermissionGroup, kind PermissionGroupKind) PermissionGroup {
	group.Name = strings.TrimSpace(group.Name)
	if strings.TrimSpace(group.Description) == "" {
		group.Description = group.Name
	}
	if strings.TrimSpace(string(group.Kind)) == "" {
		group.Kind = kind
	}
	group.Functions = cloneFunctions(group.Functions)
	return group
}
