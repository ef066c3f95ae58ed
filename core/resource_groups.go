package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// SetupResourceGroup converges a single desired resource group and returns it
// annotated with its remote identifier.
func (e *Engine) SetupResourceGroup(
	ctx context.Context,
	exec *ExecutionContext,
	agreement Agreement,
	group ResourceGroup,
	mode IngestionMode,
) (ResourceGroup, error) {
	groupType := group.Type
	if strings.TrimSpace(string(groupType)) == "" {
		groupType = ResourceGroupTypeArrangements
	}
	out, err := e.reconcileResourceGroups(ctx, exec, agreement, groupType, []ResourceGroup{group}, mode, true)
	if err != nil {
		return ResourceGroup{}, err
	}
	return out[0], nil
}

// ReconcileResourceGroups converges every resource group of one type with a
// single list call, a single batched item update and one create per desired
// group without a remote match. Remote groups of the type that no desired
// group names are reconciled too and lose the affected items they hold.
func (e *Engine) ReconcileResourceGroups(
	ctx context.Context,
	exec *ExecutionContext,
	agreement Agreement,
	groupType ResourceGroupType,
	groups []ResourceGroup,
	mode IngestionMode,
) ([]ResourceGroup, error) {
	return e.reconcileResourceGroups(ctx, exec, agreement, groupType, groups, mode, false)
}

// reconcileResourceGroups narrows the remote groups to those sharing a desired
// name when scoped is set.
func (e *Engine) reconcileResourceGroups(
	ctx context.Context,
	exec *ExecutionContext,
	agreement Agreement,
	groupType ResourceGroupType,
	groups []ResourceGroup,
	mode IngestionMode,
	scoped bool,
) (out []ResourceGroup, err error) {
	startedAt := e.timestamp()
	mode = mode.Normalize()
	agreementID := strings.TrimSpace(agreement.ID)
	exec = ensureExecution(exec, "reconcile-resource-groups")
	defer func() {
		e.observeOperation(ctx, startedAt, "reconcile_resource_groups", err, map[string]any{
			"agreement_id": agreementID,
			"mode":         string(mode),
			"type":         string(groupType),
			"groups":       len(groups),
		})
	}()

	validate := step{domain: DomainResourceGroup, action: ActionValidate, agreementID: agreementID}
	if agreementID == "" {
		return nil, e.fail(exec, validate, "", "resource group reconciliation requires an agreement", ErrAgreementIDRequired)
	}
	desired := make([]ResourceGroup, 0, len(groups))
	for _, group := range groups {
		group = normalizeResourceGroup(group, groupType)
		if group.Type != groupType {
			return nil, e.fail(exec, validate, group.Name,
				fmt.Sprintf("resource group %q has type %s, expected %s", group.Name, group.Type, groupType),
				ErrInvalidDesiredState)
		}
		if err := validateResourceGroup(group); err != nil {
			return nil, e.fail(exec, validate, group.Name,
				fmt.Sprintf("resource group %q is invalid", group.Name), err)
		}
		desired = append(desired, group)
	}
	if len(desired) == 0 {
		return []ResourceGroup{}, nil
	}

	remote, err := e.client.ListResourceGroups(ctx, agreementID, groupType)
	if err != nil && !isAbsent(err) {
		return nil, e.fail(exec, step{domain: DomainResourceGroup, action: ActionList, agreementID: agreementID},
			agreementID, fmt.Sprintf("failed to list %s resource groups", groupType), err)
	}

	if scoped {
		remote = namedResourceGroups(remote, desired)
	}
	plan := PlanResourceGroups(mode, desired, remote)
	for index, groupID := range plan.Matched {
		desired[index].ID = groupID
	}

	update := step{domain: DomainResourceGroup, action: ActionUpdate, agreementID: agreementID}
	if len(plan.Deltas) > 0 {
		outcomes, err := e.client.UpdateResourceGroupItems(ctx, plan.Deltas)
		if err != nil {
			return nil, e.fail(exec, update, agreementID, "failed to update resource group items", err)
		}
		AggregateBatch(exec, DomainResourceGroup, ActionUpdate, outcomes)
		if err := CheckBatch("update resource group items", outcomes); err != nil {
			return nil, e.fail(exec, update, agreementID, "resource group item update rejected", err)
		}
		for _, delta := range plan.Deltas {
			exec.Info(DomainResourceGroup, ActionUpdate, StatusUpdated, delta.GroupID,
				fmt.Sprintf("resource group %q: %d added, %d removed", delta.GroupName, len(delta.Add), len(delta.Remove)))
		}
	} else if len(plan.Matched) > 0 {
		exec.Info(DomainResourceGroup, ActionUpdate, StatusUnchanged, agreementID, "all resource groups are up to date")
	}

	create := step{domain: DomainResourceGroup, action: ActionCreate, agreementID: agreementID}
	for _, index := range plan.Create {
		group := desired[index]
		group.AreItemsInternal = true
		id, err := e.client.CreateResourceGroup(ctx, agreementID, group)
		if err == nil {
			id, err = remoteID("create resource group", id)
		}
		if err != nil {
			return nil, e.fail(exec, create, group.Name,
				fmt.Sprintf("failed to create resource group %q for agreement %s", group.Name, agreementID), err)
		}
		desired[index].ID = id
		desired[index].AreItemsInternal = true
		exec.Info(DomainResourceGroup, ActionCreate, StatusCreated, desired[index].ID,
			fmt.Sprintf("created resource group %q", group.Name))
	}
	return desired, nil
}

// ResourceGroupPlan is the set of remote changes needed to converge one type
// of resource groups.
type ResourceGroupPlan struct {
	// Matched maps a desired group index to the remote identifier it matched.
	Matched map[int]string
	Deltas  []ResourceGroupDelta
	Create  []int
}

// PlanResourceGroups computes the item deltas that converge the remote groups
// of one type and the list of desired groups that must be created. Each
// desired group binds to the first remote group with its name; every other
// remote group is treated as unwanted and only loses items. In replace mode
// every item held by any remote group of the type may be removed; in merge
// mode only items named by a desired group are touched.
func PlanResourceGroups(mode IngestionMode, desired []ResourceGroup, remote []ResourceGroup) ResourceGroupPlan {
	plan := ResourceGroupPlan{Matched: map[int]string{}}

	affected := map[string]struct{}{}
	for _, group := range desired {
		for _, item := range group.Items {
			affected[item] = struct{}{}
		}
	}
	if mode.Normalize() == IngestionModeReplace {
		for _, group := range remote {
			for _, item := range group.Items {
				affected[item] = struct{}{}
			}
		}
	}

	var fallbackType ResourceGroupType
	bound := map[int]int{}
	for index, group := range desired {
		if fallbackType == "" {
			fallbackType = group.Type
		}
		remoteIndex := firstIndexByName(remote, group.Name)
		if remoteIndex < 0 {
			plan.Create = append(plan.Create, index)
			continue
		}
		plan.Matched[index] = strings.TrimSpace(remote[remoteIndex].ID)
		if _, ok := bound[remoteIndex]; !ok {
			bound[remoteIndex] = index
		}
	}

	for remoteIndex, match := range remote {
		groupID := strings.TrimSpace(match.ID)
		if groupID == "" {
			continue
		}
		delta := ResourceGroupDelta{GroupID: groupID, GroupName: match.Name, Type: match.Type}
		if delta.Type == "" {
			delta.Type = fallbackType
		}
		have := itemSet(match.Items)
		want := map[string]struct{}{}
		if index, ok := bound[remoteIndex]; ok {
			want = itemSet(desired[index].Items)
			for _, item := range uniqueItems(desired[index].Items) {
				if _, ok := have[item]; !ok {
					delta.Add = append(delta.Add, item)
				}
			}
		}
		for _, item := range uniqueItems(match.Items) {
			if _, ok := affected[item]; !ok {
				continue
			}
			if _, ok := want[item]; !ok {
				delta.Remove = append(delta.Remove, item)
			}
		}
		if !delta.Empty() {
			plan.Deltas = append(plan.Deltas, delta)
		}
	}
	return plan
}

func firstIndexByName(groups []ResourceGroup, name string) int {
	for index, group := range groups {
		if group.Name == name {
			return index
		}
	}
	return -1
}

func namedResourceGroups(remote []ResourceGroup, desired []ResourceGroup) []ResourceGroup {
	names := make(map[string]struct{}, len(desired))
	for _, group := range desired {
		names[group.Name] = struct{}{}
	}
	out := make([]ResourceGroup, 0, len(remote))
	for _, group := range remote {
		if _, ok := names[group.Name]; ok {
			out = append(out, group)
		}
	}
	return out
}

func normalizeResourceGroup(group ResourceGroup, groupType ResourceGroupType) ResourceGroup {
	group.Name = strings.TrimSpace(group.Name)
	if strings.TrimSpace(group.Description) == "" {
		group.Description = group.Name
	}
	if strings.TrimSpace(string(group.Type)) == "" {
		group.Type = groupType
	}
	group.Items = append([]string(nil), group.Items...)
	return group
}

func validateResourceGroup(group ResourceGroup) error {
	var errs []error
	if group.Name == "" {
		errs = append(errs, fmt.Errorf("%w: resource group name is required", ErrInvalidDesiredState))
	}
	for index, item := range group.Items {
		if strings.TrimSpace(item) == "" {
			errs = append(errs, fmt.Errorf("%w: item %d of %q", ErrBlankResourceGroupItem, index, group.Name))
		}
	}
	return errors.Join(errs...)
}

func firstByName[T any](items []T, name string, nameOf func(T) string) (T, bool) {
	for _, item := range items {
		if nameOf(item) == name {
			return item, true
		}
	}
	var zero T
	return zero, false
}

func itemSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

func uniqueItems(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
