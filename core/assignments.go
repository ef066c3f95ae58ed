package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// BuildUserAssignment flattens a user's grants into an assignment record.
// Grants sharing a permission group are folded into one entry. A grant whose
// permission group or resource groups carry no remote identifier is rejected.
func BuildUserAssignment(agreementID string, permissions UserPermissions) (UserAssignment, error) {
	assignment := UserAssignment{
		UserID:      userRemoteID(permissions.User),
		AgreementID: strings.TrimSpace(agreementID),
	}
	var errs []error
	positions := map[string]int{}
	for index, grant := range permissions.Grants {
		groupID := strings.TrimSpace(grant.PermissionGroup.ID)
		if groupID == "" {
			errs = append(errs, fmt.Errorf("%w: grant %d references permission group %q without an id",
				ErrInvalidDesiredState, index, grant.PermissionGroup.Name))
			continue
		}
		resourceIDs := make([]string, 0, len(grant.ResourceGroups))
		for _, resource := range grant.ResourceGroups {
			id := strings.TrimSpace(resource.ID)
			if id == "" {
				errs = append(errs, fmt.Errorf("%w: grant %d references resource group %q without an id",
					ErrInvalidDesiredState, index, resource.Name))
				continue
			}
			resourceIDs = append(resourceIDs, id)
		}
		if position, ok := positions[groupID]; ok {
			merged := append(assignment.Permissions[position].ResourceGroupIDs, resourceIDs...)
			assignment.Permissions[position].ResourceGroupIDs = uniqueItems(merged)
			continue
		}
		positions[groupID] = len(assignment.Permissions)
		assignment.Permissions = append(assignment.Permissions, PermissionAssignment{
			PermissionGroupID: groupID,
			ResourceGroupIDs:  uniqueItems(resourceIDs),
		})
	}
	if len(errs) > 0 {
		return UserAssignment{}, errors.Join(errs...)
	}
	return assignment, nil
}

// MergeUserAssignment extends desired with every existing entry whose
// permission group is not already present. Desired entries always win.
func MergeUserAssignment(desired UserAssignment, existing []PermissionAssignment) UserAssignment {
	merged := desired
	merged.Permissions = append([]PermissionAssignment(nil), desired.Permissions...)
	for _, entry := range existing {
		if strings.TrimSpace(entry.PermissionGroupID) == "" || merged.HasPermissionGroup(entry.PermissionGroupID) {
			continue
		}
		merged.Permissions = append(merged.Permissions, PermissionAssignment{
			PermissionGroupID: entry.PermissionGroupID,
			ResourceGroupIDs:  append([]string(nil), entry.ResourceGroupIDs...),
		})
	}
	return merged
}

// AssignPermissions submits one user's assignment as-is.
func (e *Engine) AssignPermissions(
	ctx context.Context,
	exec *ExecutionContext,
	agreement Agreement,
	permissions UserPermissions,
) (out UserAssignment, err error) {
	startedAt := e.timestamp()
	agreementID := strings.TrimSpace(agreement.ID)
	exec = ensureExecution(exec, "assign-permissions")
	defer func() {
		e.observeOperation(ctx, startedAt, "assign_permissions", err, map[string]any{
			"agreement_id": agreementID,
			"user_id":      userRemoteID(permissions.User),
		})
	}()

	userID := userRemoteID(permissions.User)
	validate := step{domain: DomainUserAssignment, action: ActionValidate, agreementID: agreementID}
	if agreementID == "" {
		return UserAssignment{}, e.fail(exec, validate, userID, "permission assignment requires an agreement", ErrAgreementIDRequired)
	}
	if userID == "" {
		return UserAssignment{}, e.fail(exec, validate, "", "permission assignment requires a user",
			fmt.Errorf("%w: user id is required", ErrInvalidDesiredState))
	}
	assignment, err := BuildUserAssignment(agreementID, permissions)
	if err != nil {
		return UserAssignment{}, e.fail(exec, validate, userID,
			fmt.Sprintf("permission grants of user %s are not provisioned", userID), err)
	}

	assign := step{domain: DomainUserAssignment, action: ActionAssign, agreementID: agreementID}
	outcomes, err := e.client.SubmitUserAssignments(ctx, []UserAssignment{assignment}, IngestionModeReplace)
	if err != nil {
		return UserAssignment{}, e.fail(exec, assign, assignment.UserID,
			fmt.Sprintf("failed to assign permissions to user %s", assignment.UserID), err)
	}
	AggregateBatch(exec, DomainUserAssignment, ActionAssign, outcomes)
	if err := CheckBatch("assign permissions", outcomes); err != nil {
		return UserAssignment{}, e.fail(exec, assign, assignment.UserID,
			fmt.Sprintf("permission assignment rejected for user %s", assignment.UserID), err)
	}
	return assignment, nil
}

// AssignPermissionsBatch builds one assignment per user and submits them in a
// single batch. In merge mode each user's existing remote entries are fetched
// first and preserved unless the desired record names the same permission
// group. A failed batch item fails the call; successful items are not undone.
func (e *Engine) AssignPermissionsBatch(
	ctx context.Context,
	exec *ExecutionContext,
	agreement Agreement,
	users []UserPermissions,
	mode IngestionMode,
) (out []UserAssignment, err error) {
	startedAt := e.timestamp()
	mode = mode.Normalize()
	agreementID := strings.TrimSpace(agreement.ID)
	exec = ensureExecution(exec, "assign-permissions-batch")
	defer func() {
		e.observeOperation(ctx, startedAt, "assign_permissions_batch", err, map[string]any{
			"agreement_id": agreementID,
			"mode":         string(mode),
			"users":        len(users),
		})
	}()

	validate := step{domain: DomainUserAssignment, action: ActionValidate, agreementID: agreementID}
	if agreementID == "" {
		return nil, e.fail(exec, validate, "", "permission assignment requires an agreement", ErrAgreementIDRequired)
	}
	assignments := make([]UserAssignment, 0, len(users))
	for _, permissions := range users {
		userID := userRemoteID(permissions.User)
		if userID == "" {
			return nil, e.fail(exec, validate, "", "permission assignment requires a user",
				fmt.Errorf("%w: user id is required", ErrInvalidDesiredState))
		}
		assignment, buildErr := BuildUserAssignment(agreementID, permissions)
		if buildErr != nil {
			return nil, e.fail(exec, validate, userID,
				fmt.Sprintf("permission grants of user %s are not provisioned", userID), buildErr)
		}
		assignments = append(assignments, assignment)
	}
	if len(assignments) == 0 {
		return []UserAssignment{}, nil
	}

	if mode == IngestionModeMerge {
		existing := make([][]PermissionAssignment, len(assignments))
		fetch := step{domain: DomainUserAssignment, action: ActionFetch, agreementID: agreementID}
		g := e.fanout()
		for index, assignment := range assignments {
			g.Go(func() error {
				current, fetchErr := e.client.FetchUserAssignments(ctx, assignment.UserID, agreementID)
				if fetchErr != nil {
					if isAbsent(fetchErr) {
						return nil
					}
					return e.fail(exec, fetch, assignment.UserID,
						fmt.Sprintf("failed to fetch permissions of user %s", assignment.UserID), fetchErr)
				}
				existing[index] = current
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		for index := range assignments {
			assignments[index] = MergeUserAssignment(assignments[index], existing[index])
		}
	}

	assign := step{domain: DomainUserAssignment, action: ActionAssign, agreementID: agreementID}
	outcomes, err := e.client.SubmitUserAssignments(ctx, assignments, mode)
	if err != nil {
		return nil, e.fail(exec, assign, agreementID, "failed to submit permission assignments", err)
	}
	AggregateBatch(exec, DomainUserAssignment, ActionAssign, outcomes)
	if err := CheckBatch("assign permissions", outcomes); err != nil {
		return nil, e.fail(exec, assign, agreementID,
			fmt.Sprintf("permission assignment batch failed for agreement %s", agreementID), err)
	}
	return assignments, nil
}

func userRemoteID(user User) string {
	if id := strings.TrimSpace(user.InternalID); id != "" {
		return id
	}
	return strings.TrimSpace(user.ID)
}
