package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// SetAdministrators submits the agreement's administrators as one add-admins
// batch. A failed item fails the whole call and the full outcome list is
// logged.
func (e *Engine) SetAdministrators(
	ctx context.Context,
	exec *ExecutionContext,
	agreement Agreement,
) (out Agreement, err error) {
	startedAt := e.timestamp()
	agreementID := strings.TrimSpace(agreement.ID)
	exec = ensureExecution(exec, "set-administrators")
	defer func() {
		e.observeOperation(ctx, startedAt, "set_administrators", err, map[string]any{
			"agreement_id": agreementID,
			"admins":       len(agreement.Administrators),
		})
	}()

	if agreementID == "" {
		return Agreement{}, e.fail(exec, step{domain: DomainAdministrators, action: ActionValidate},
			"", "setting administrators requires an agreement", ErrAgreementIDRequired)
	}
	userIDs := make([]string, 0, len(agreement.Administrators))
	for _, admin := range agreement.Administrators {
		if id := userRemoteID(admin); id != "" {
			userIDs = append(userIDs, id)
		}
	}
	userIDs = uniqueItems(userIDs)
	if len(userIDs) == 0 {
		exec.Info(DomainAdministrators, ActionAdd, StatusSkipped, agreementID, "no administrators to set")
		return agreement, nil
	}

	add := step{domain: DomainAdministrators, action: ActionAdd, agreementID: agreementID}
	outcomes, err := e.client.AddAdmins(ctx, agreementID, userIDs)
	if err != nil {
		return Agreement{}, e.fail(exec, add, agreementID, "failed to set administrators", err)
	}
	AggregateBatch(exec, DomainAdministrators, ActionAdd, outcomes)
	if batchErr := CheckBatch("set administrators", outcomes); batchErr != nil {
		e.logError(ctx, "set administrators batch failed", map[string]any{
			"agreement_id": agreementID,
			"outcomes":     outcomes,
		})
		return Agreement{}, e.fail(exec, add, agreementID, "failed to set administrators", batchErr)
	}
	return agreement, nil
}

// RemoveAdministrators resolves every current administrator of the agreement
// and removes them in one batch. No call is issued when there are none.
func (e *Engine) RemoveAdministrators(ctx context.Context, exec *ExecutionContext, agreement Agreement) (err error) {
	startedAt := e.timestamp()
	agreementID := strings.TrimSpace(agreement.ID)
	exec = ensureExecution(exec, "remove-administrators")
	defer func() {
		e.observeOperation(ctx, startedAt, "remove_administrators", err, map[string]any{
			"agreement_id": agreementID,
		})
	}()

	if agreementID == "" {
		return e.fail(exec, step{domain: DomainAdministrators, action: ActionValidate},
			"", "removing administrators requires an agreement", ErrAgreementIDRequired)
	}
	references, err := e.client.ListAdmins(ctx, agreementID)
	if err != nil && !isAbsent(err) {
		return e.fail(exec, step{domain: DomainAdministrators, action: ActionList, agreementID: agreementID},
			agreementID, "failed to list administrators", err)
	}
	references = uniqueItems(trimAll(references))
	if len(references) == 0 {
		exec.Info(DomainAdministrators, ActionRemove, StatusSkipped, agreementID, "no administrators to remove")
		return nil
	}

	resolve := step{domain: DomainAdministrators, action: ActionResolve, agreementID: agreementID}
	userIDs := make([]string, len(references))
	g := e.fanout()
	for index, reference := range references {
		g.Go(func() error {
			id, resolveErr := e.users.ResolveUserID(ctx, reference)
			if resolveErr != nil {
				return e.fail(exec, resolve, reference,
					fmt.Sprintf("failed to resolve administrator %s", reference), resolveErr)
			}
			userIDs[index] = strings.TrimSpace(id)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	remove := step{domain: DomainAdministrators, action: ActionRemove, agreementID: agreementID}
	outcomes, err := e.client.RemoveAdmins(ctx, agreementID, userIDs)
	if err != nil {
		return e.fail(exec, remove, agreementID, "failed to remove administrators", err)
	}
	AggregateBatch(exec, DomainAdministrators, ActionRemove, outcomes)
	if err := CheckBatch("remove administrators", outcomes); err != nil {
		return e.fail(exec, remove, agreementID, "failed to remove administrators", err)
	}
	return nil
}

// DeletePermissionGroups deletes every permission group of the agreement in
// one batch.
func (e *Engine) DeletePermissionGroups(ctx context.Context, exec *ExecutionContext, agreement Agreement) (err error) {
	startedAt := e.timestamp()
	agreementID := strings.TrimSpace(agreement.ID)
	exec = ensureExecution(exec, "delete-permission-groups")
	defer func() {
		e.observeOperation(ctx, startedAt, "delete_permission_groups", err, map[string]any{
			"agreement_id": agreementID,
		})
	}()

	if agreementID == "" {
		return e.fail(exec, step{domain: DomainPermissionGroup, action: ActionValidate},
			"", "deleting permission groups requires an agreement", ErrAgreementIDRequired)
	}
	remote, err := e.listPermissionGroups(ctx, exec, agreementID, DomainPermissionGroup)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(remote))
	for _, group := range remote {
		if id := strings.TrimSpace(group.ID); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		exec.Info(DomainPermissionGroup, ActionDelete, StatusSkipped, agreementID, "no permission groups to delete")
		return nil
	}

	del := step{domain: DomainPermissionGroup, action: ActionDelete, agreementID: agreementID}
	outcomes, err := e.client.DeletePermissionGroups(ctx, ids)
	if err != nil {
		return e.fail(exec, del, agreementID, "failed to delete permission groups", err)
	}
	AggregateBatch(exec, DomainPermissionGroup, ActionDelete, outcomes)
	if err := CheckBatch("delete permission groups", outcomes); err != nil {
		return e.fail(exec, del, agreementID, "failed to delete permission groups", err)
	}
	return nil
}

// ClearUserPermissions replaces the user's permissions in the agreement with
// an empty set.
func (e *Engine) ClearUserPermissions(
	ctx context.Context,
	exec *ExecutionContext,
	agreement Agreement,
	user User,
) (err error) {
	startedAt := e.timestamp()
	agreementID := strings.TrimSpace(agreement.ID)
	userID := userRemoteID(user)
	exec = ensureExecution(exec, "clear-user-permissions")
	defer func() {
		e.observeOperation(ctx, startedAt, "clear_user_permissions", err, map[string]any{
			"agreement_id": agreementID,
			"user_id":      userID,
		})
	}()

	validate := step{domain: DomainUserAssignment, action: ActionValidate, agreementID: agreementID}
	if agreementID == "" {
		return e.fail(exec, validate, userID, "clearing permissions requires an agreement", ErrAgreementIDRequired)
	}
	if userID == "" {
		return e.fail(exec, validate, "", "clearing permissions requires a user",
			fmt.Errorf("%w: user id is required", ErrInvalidDesiredState))
	}
	if err := e.client.ReplaceUserPermissions(ctx, agreementID, userID, []PermissionAssignment{}); err != nil {
		return e.fail(exec, step{domain: DomainUserAssignment, action: ActionClear, agreementID: agreementID},
			userID, fmt.Sprintf("failed to clear permissions of user %s", userID), err)
	}
	exec.Info(DomainUserAssignment, ActionClear, StatusSucceeded, userID,
		fmt.Sprintf("cleared permissions of user %s", userID))
	return nil
}

// ListArrangementIDs returns the sorted union of items across every resource
// group of the agreement, whatever its type.
func (e *Engine) ListArrangementIDs(ctx context.Context, agreementID string) (out []string, err error) {
	startedAt := e.timestamp()
	agreementID = strings.TrimSpace(agreementID)
	defer func() {
		e.observeOperation(ctx, startedAt, "list_arrangement_ids", err, map[string]any{
			"agreement_id": agreementID,
		})
	}()
	if agreementID == "" {
		return nil, ErrAgreementIDRequired
	}
	groups, err := e.client.ListResourceGroups(ctx, agreementID, "")
	if err != nil {
		if isAbsent(err) {
			return []string{}, nil
		}
		return nil, err
	}
	var items []string
	for _, group := range groups {
		items = append(items, trimAll(group.Items)...)
	}
	items = uniqueItems(items)
	sort.Strings(items)
	return items, nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	return out
}
