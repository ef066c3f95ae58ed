package core

import "strings"

type IngestionMode string

const (
	IngestionModeReplace IngestionMode = "replace"
	IngestionModeMerge   IngestionMode = "merge"
)

func (m IngestionMode) Normalize() IngestionMode {
	switch IngestionMode(strings.TrimSpace(strings.ToLower(string(m)))) {
	case IngestionModeMerge, "update":
		return IngestionModeMerge
	default:
		return IngestionModeReplace
	}
}

type ResourceGroupType string

const (
	ResourceGroupTypeArrangements ResourceGroupType = "ARRANGEMENTS"
	ResourceGroupTypeRepositories ResourceGroupType = "REPOSITORIES"
	ResourceGroupTypeCustomers    ResourceGroupType = "CUSTOMERS"
)

type PermissionGroupKind string

const (
	PermissionGroupKindRegular  PermissionGroupKind = "REGULAR"
	PermissionGroupKindTemplate PermissionGroupKind = "TEMPLATE"
)

type User struct {
	ID         string
	InternalID string
	FullName   string
}

// Agreement scopes every group and assignment. It is created by the legal
// entity flow before the engine runs.
type Agreement struct {
	ID             string
	Name           string
	IsMaster       bool
	Administrators []User
}

type ResourceGroup struct {
	ID               string
	Name             string
	Description      string
	Type             ResourceGroupType
	Items            []string
	AreItemsInternal bool
}

type BusinessFunction struct {
	FunctionID string
	Name       string
	Privileges []string
}

type PermissionGroup struct {
	ID          string
	Name        string
	Description string
	Kind        PermissionGroupKind
	Functions   []BusinessFunction
}

type RoleTemplate struct {
	ID          string
	Name        string
	Description string
	Functions   []BusinessFunction
}

func (t RoleTemplate) PermissionGroup() PermissionGroup {
	return PermissionGroup{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Kind:        PermissionGroupKindTemplate,
		Functions:   cloneFunctions(t.Functions),
	}
}

type PermissionAssignment struct {
	PermissionGroupID string
	ResourceGroupIDs  []string
}

type UserAssignment struct {
	UserID      string
	AgreementID string
	Permissions []PermissionAssignment
}

func (a UserAssignment) HasPermissionGroup(permissionGroupID string) bool {
	for _, permission := range a.Permissions {
		if strings.EqualFold(permission.PermissionGroupID, permissionGroupID) {
			return true
		}
	}
	return false
}

// PermissionGrant binds one permission group to the resource groups it may
// act on for a user.
type PermissionGrant struct {
	PermissionGroup PermissionGroup
	ResourceGroups  []ResourceGroup
}

type UserPermissions struct {
	User   User
	Grants []PermissionGrant
}

type ResourceGroupItemAction string

const (
	ResourceGroupItemAdd    ResourceGroupItemAction = "ADD"
	ResourceGroupItemRemove ResourceGroupItemAction = "REMOVE"
)

// ResourceGroupDelta carries the item changes for one existing remote group.
type ResourceGroupDelta struct {
	GroupID   string
	GroupName string
	Type      ResourceGroupType
	Add       []string
	Remove    []string
}

func (d ResourceGroupDelta) Empty() bool {
	return len(d.Add) == 0 && len(d.Remove) == 0
}

type BatchStatus string

const (
	BatchStatusOK            BatchStatus = "200"
	BatchStatusBadRequest    BatchStatus = "400"
	BatchStatusNotFound      BatchStatus = "404"
	BatchStatusInternalError BatchStatus = "500"
)

type BatchOutcome struct {
	Status      BatchStatus
	ResourceID  string
	AgreementID string
	Action      string
	Errors      []string
}

func (o BatchOutcome) Failed() bool {
	return strings.TrimSpace(string(o.Status)) != string(BatchStatusOK)
}

// DesiredState is the full entitlement state a caller wants to converge one
// agreement to.
type DesiredState struct {
	Agreement        Agreement
	Mode             IngestionMode
	ResourceGroups   []ResourceGroup
	PermissionGroups []PermissionGroup
	RoleTemplates    []RoleTemplate
	Users            []DesiredUserGrants
	SetAdmins        bool
}

type DesiredUserGrants struct {
	User   User
	Grants []NamedGrant
}

// NamedGrant references groups by name; Apply resolves names to remote ids.
type NamedGrant struct {
	PermissionGroup string
	ResourceGroups  []string
}

type ApplyResult struct {
	Agreement        Agreement
	ResourceGroups   []ResourceGroup
	PermissionGroups []PermissionGroup
	RoleTemplates    []RoleTemplate
	Assignments      []UserAssignment
}

func cloneFunctions(functions []BusinessFunction) []BusinessFunction {
	if len(functions) == 0 {
		return nil
	}
	out := make([]BusinessFunction, 0, len(functions))
	for _, function := range functions {
		function.Privileges = append([]string(nil), function.Privileges...)
		out = append(out, function)
	}
	return out
}
