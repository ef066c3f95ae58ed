package declarative

// SupportedAPIVersion is the current API version for desired state documents.
const SupportedAPIVersion = "entitlements/v1"

const KindDesiredState = "DesiredState"

// Document is one desired state file.
type Document struct {
	APIVersion string    `yaml:"apiVersion"`
	Kind       string    `yaml:"kind"`
	Metadata   Metadata  `yaml:"metadata"`
	Spec       StateSpec `yaml:"spec"`
}

type Metadata struct {
	Name   string            `yaml:"name"`
	Labels map[string]string `yaml:"labels,omitempty"`
}

type StateSpec struct {
	Agreement         AgreementSpec         `yaml:"agreement"`
	Mode              string                `yaml:"mode,omitempty"`
	ResourceGroups    []ResourceGroupSpec   `yaml:"resourceGroups,omitempty"`
	PermissionGroups  []PermissionGroupSpec `yaml:"permissionGroups,omitempty"`
	RoleTemplates     []PermissionGroupSpec `yaml:"roleTemplates,omitempty"`
	Users             []UserGrantsSpec      `yaml:"users,omitempty"`
	SetAdministrators bool                  `yaml:"setAdministrators,omitempty"`
}

type AgreementSpec struct {
	ID             string     `yaml:"id"`
	Name           string     `yaml:"name,omitempty"`
	Master         bool       `yaml:"master,omitempty"`
	Administrators []UserSpec `yaml:"administrators,omitempty"`
}

type UserSpec struct {
	ID         string `yaml:"id,omitempty"`
	InternalID string `yaml:"internalId,omitempty"`
	FullName   string `yaml:"fullName,omitempty"`
}

type ResourceGroupSpec struct {
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description,omitempty"`
	Type          string   `yaml:"type,omitempty"`
	Items         []string `yaml:"items,omitempty"`
	InternalItems bool     `yaml:"internalItems,omitempty"`
}

// PermissionGroupSpec also describes role templates; the kind is implied by
// the section it appears in.
type PermissionGroupSpec struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Functions   []FunctionSpec `yaml:"functions,omitempty"`
}

type FunctionSpec struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name,omitempty"`
	Privileges []string `yaml:"privileges,omitempty"`
}

type UserGrantsSpec struct {
	UserSpec `yaml:",inline"`
	Grants   []GrantSpec `yaml:"grants,omitempty"`
}

type GrantSpec struct {
	PermissionGroup string   `yaml:"permissionGroup"`
	ResourceGroups  []string `yaml:"resourceGroups,omitempty"`
}
