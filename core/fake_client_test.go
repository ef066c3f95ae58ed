package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
)

// fakeAccessControlClient keeps remote state in memory and counts calls.
type fakeAccessControlClient struct {
	mu sync.Mutex

	nextID           int
	blankIDs         bool
	resourceGroups   map[string][]ResourceGroup
	permissionGroups map[string][]PermissionGroup
	assignments      map[string][]PermissionAssignment
	admins           map[string][]string

	calls           map[string]int
	updates         [][]ResourceGroupDelta
	submitted       [][]UserAssignment
	submittedModes  []IngestionMode
	replaced        map[string][]PermissionAssignment
	deleted         [][]string
	addedAdmins     [][]string
	removedAdmins   [][]string
	createdGroups   []PermissionGroup
	createdResource []ResourceGroup

	errs            map[string]error
	createGroupErrs map[string]error
	fetchErrs       map[string]error
	batchStatus     map[string]BatchStatus
}

func newFakeAccessControlClient() *fakeAccessControlClient {
	return &fakeAccessControlClient{
		resourceGroups:   map[string][]ResourceGroup{},
		permissionGroups: map[string][]PermissionGroup{},
		assignments:      map[string][]PermissionAssignment{},
		admins:           map[string][]string{},
		calls:            map[string]int{},
		replaced:         map[string][]PermissionAssignment{},
		errs:             map[string]error{},
		createGroupErrs:  map[string]error{},
		fetchErrs:        map[string]error{},
		batchStatus:      map[string]BatchStatus{},
	}
}

func rgKey(agreementID string, groupType ResourceGroupType) string {
	return agreementID + "/" + string(groupType)
}

func userKey(agreementID string, userID string) string {
	return agreementID + "/" + userID
}

func (f *fakeAccessControlClient) seedResourceGroup(agreementID string, group ResourceGroup) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := rgKey(agreementID, group.Type)
	f.resourceGroups[key] = append(f.resourceGroups[key], group)
}

func (f *fakeAccessControlClient) seedPermissionGroup(agreementID string, group PermissionGroup) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.permissionGroups[agreementID] = append(f.permissionGroups[agreementID], group)
}

func (f *fakeAccessControlClient) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAccessControlClient) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, count := range f.calls {
		total += count
	}
	return total
}

func (f *fakeAccessControlClient) begin(name string) error {
	f.calls[name]++
	return f.errs[name]
}

func (f *fakeAccessControlClient) outcome(resourceID string, agreementID string, action string) BatchOutcome {
	status := BatchStatusOK
	if override, ok := f.batchStatus[resourceID]; ok {
		status = override
	}
	outcome := BatchOutcome{Status: status, ResourceID: resourceID, AgreementID: agreementID, Action: action}
	if status != BatchStatusOK {
		outcome.Errors = []string{"rejected " + resourceID}
	}
	return outcome
}

func (f *fakeAccessControlClient) newID(prefix string) string {
	f.nextID++
	if f.blankIDs {
		return ""
	}
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeAccessControlClient) CreateResourceGroup(_ context.Context, agreementID string, group ResourceGroup) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("CreateResourceGroup"); err != nil {
		return "", err
	}
	group.ID = f.newID("rg")
	group.Items = append([]string(nil), group.Items...)
	key := rgKey(agreementID, group.Type)
	f.resourceGroups[key] = append(f.resourceGroups[key], group)
	f.createdResource = append(f.createdResource, group)
	return group.ID, nil
}

func (f *fakeAccessControlClient) UpdateResourceGroupItems(_ context.Context, deltas []ResourceGroupDelta) ([]BatchOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("UpdateResourceGroupItems"); err != nil {
		return nil, err
	}
	f.updates = append(f.updates, append([]ResourceGroupDelta(nil), deltas...))
	outcomes := make([]BatchOutcome, 0, len(deltas))
	for _, delta := range deltas {
		outcome := f.outcome(delta.GroupID, "", "UPDATE")
		outcomes = append(outcomes, outcome)
		if outcome.Failed() {
			continue
		}
		for key, groups := range f.resourceGroups {
			for index, group := range groups {
				if group.ID != delta.GroupID {
					continue
				}
				remove := itemSet(delta.Remove)
				items := make([]string, 0, len(group.Items)+len(delta.Add))
				for _, item := range group.Items {
					if _, ok := remove[item]; !ok {
						items = append(items, item)
					}
				}
				items = append(items, delta.Add...)
				f.resourceGroups[key][index].Items = items
			}
		}
	}
	return outcomes, nil
}

func (f *fakeAccessControlClient) ListResourceGroups(_ context.Context, agreementID string, groupType ResourceGroupType) ([]ResourceGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("ListResourceGroups"); err != nil {
		return nil, err
	}
	var groups []ResourceGroup
	if groupType == "" {
		keys := make([]string, 0, len(f.resourceGroups))
		for key := range f.resourceGroups {
			if strings.HasPrefix(key, agreementID+"/") {
				keys = append(keys, key)
			}
		}
		sort.Strings(keys)
		for _, key := range keys {
			groups = append(groups, f.resourceGroups[key]...)
		}
	} else {
		groups = f.resourceGroups[rgKey(agreementID, groupType)]
	}
	out := make([]ResourceGroup, 0, len(groups))
	for _, group := range groups {
		group.Items = append([]string(nil), group.Items...)
		out = append(out, group)
	}
	return out, nil
}

func (f *fakeAccessControlClient) CreatePermissionGroup(_ context.Context, agreementID string, group PermissionGroup) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("CreatePermissionGroup"); err != nil {
		return "", err
	}
	if err := f.createGroupErrs[group.Name]; err != nil {
		return "", err
	}
	group.ID = f.newID("pg")
	f.permissionGroups[agreementID] = append(f.permissionGroups[agreementID], group)
	f.createdGroups = append(f.createdGroups, group)
	return group.ID, nil
}

func (f *fakeAccessControlClient) ListPermissionGroups(_ context.Context, agreementID string) ([]PermissionGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("ListPermissionGroups"); err != nil {
		return nil, err
	}
	return append([]PermissionGroup(nil), f.permissionGroups[agreementID]...), nil
}

func (f *fakeAccessControlClient) DeletePermissionGroups(_ context.Context, ids []string) ([]BatchOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DeletePermissionGroups"); err != nil {
		return nil, err
	}
	f.deleted = append(f.deleted, append([]string(nil), ids...))
	outcomes := make([]BatchOutcome, 0, len(ids))
	for _, id := range ids {
		outcomes = append(outcomes, f.outcome(id, "", "DELETE"))
	}
	return outcomes, nil
}

func (f *fakeAccessControlClient) SubmitUserAssignments(_ context.Context, assignments []UserAssignment, mode IngestionMode) ([]BatchOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("SubmitUserAssignments"); err != nil {
		return nil, err
	}
	f.submitted = append(f.submitted, append([]UserAssignment(nil), assignments...))
	f.submittedModes = append(f.submittedModes, mode)
	outcomes := make([]BatchOutcome, 0, len(assignments))
	for _, assignment := range assignments {
		outcome := f.outcome(assignment.UserID, assignment.AgreementID, "ASSIGN")
		outcomes = append(outcomes, outcome)
		if !outcome.Failed() {
			f.assignments[userKey(assignment.AgreementID, assignment.UserID)] = assignment.Permissions
		}
	}
	return outcomes, nil
}

func (f *fakeAccessControlClient) FetchUserAssignments(_ context.Context, userID string, agreementID string) ([]PermissionAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("FetchUserAssignments"); err != nil {
		return nil, err
	}
	if err := f.fetchErrs[userID]; err != nil {
		return nil, err
	}
	return append([]PermissionAssignment(nil), f.assignments[userKey(agreementID, userID)]...), nil
}

func (f *fakeAccessControlClient) ReplaceUserPermissions(_ context.Context, agreementID string, userID string, permissions []PermissionAssignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("ReplaceUserPermissions"); err != nil {
		return err
	}
	f.replaced[userKey(agreementID, userID)] = permissions
	f.assignments[userKey(agreementID, userID)] = permissions
	return nil
}

func (f *fakeAccessControlClient) AddAdmins(_ context.Context, agreementID string, userIDs []string) ([]BatchOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("AddAdmins"); err != nil {
		return nil, err
	}
	f.addedAdmins = append(f.addedAdmins, append([]string(nil), userIDs...))
	outcomes := make([]BatchOutcome, 0, len(userIDs))
	for _, id := range userIDs {
		outcomes = append(outcomes, f.outcome(id, agreementID, "ADD"))
	}
	return outcomes, nil
}

func (f *fakeAccessControlClient) RemoveAdmins(_ context.Context, agreementID string, userIDs []string) ([]BatchOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("RemoveAdmins"); err != nil {
		return nil, err
	}
	f.removedAdmins = append(f.removedAdmins, append([]string(nil), userIDs...))
	outcomes := make([]BatchOutcome, 0, len(userIDs))
	for _, id := range userIDs {
		outcomes = append(outcomes, f.outcome(id, agreementID, "REMOVE"))
	}
	return outcomes, nil
}

func (f *fakeAccessControlClient) ListAdmins(_ context.Context, agreementID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("ListAdmins"); err != nil {
		return nil, err
	}
	return append([]string(nil), f.admins[agreementID]...), nil
}

var _ RemoteAccessControlClient = (*fakeAccessControlClient)(nil)

type mapUserDirectory map[string]string

func (d mapUserDirectory) ResolveUserID(_ context.Context, reference string) (string, error) {
	id, ok := d[reference]
	if !ok {
		return "", &RemoteError{Kind: RemoteErrorNotFound, Operation: "resolve user", StatusCode: 404}
	}
	return id, nil
}

func newTestEngine(t *testing.T, client RemoteAccessControlClient, opts ...Option) *Engine {
	t.Helper()
	engine, err := NewEngine(client, Config{}, opts...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func remoteRejected(body string) error {
	return &RemoteError{Kind: RemoteErrorRejected, Operation: "test", StatusCode: 400, Body: body}
}

func remoteNotFound() error {
	return &RemoteError{Kind: RemoteErrorNotFound, Operation: "test", StatusCode: 404}
}
