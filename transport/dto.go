package transport

// Wire shapes of the access-control and user-manager service APIs.

type IDResponse struct {
	ID string `json:"id"`
}

type ResourceGroupDTO struct {
	ID                  string   `json:"id,omitempty"`
	Name                string   `json:"name"`
	Description         string   `json:"description"`
	ServiceAgreementID  string   `json:"serviceAgreementId"`
	Type                string   `json:"type"`
	Items               []string `json:"items"`
	AreItemsInternalIDs bool     `json:"areItemsInternalIds"`
}

type Identifier struct {
	IDIdentifier string `json:"idIdentifier,omitempty"`
}

type ItemIdentifier struct {
	InternalIDIdentifier string `json:"internalIdIdentifier,omitempty"`
}

type ResourceGroupItemsDTO struct {
	Type                    string           `json:"type"`
	Action                  string           `json:"action"`
	ResourceGroupIdentifier Identifier       `json:"dataGroupIdentifier"`
	Items                   []ItemIdentifier `json:"dataItems"`
}

type PrivilegeDTO struct {
	Privilege string `json:"privilege"`
}

type FunctionPermissionDTO struct {
	FunctionID         string         `json:"functionId"`
	FunctionName       string         `json:"functionName,omitempty"`
	AssignedPrivileges []PrivilegeDTO `json:"assignedPrivileges"`
}

type PermissionGroupDTO struct {
	ID                 string                  `json:"id,omitempty"`
	Name               string                  `json:"name"`
	Description        string                  `json:"description"`
	ServiceAgreementID string                  `json:"serviceAgreementId"`
	Type               string                  `json:"type"`
	Permissions        []FunctionPermissionDTO `json:"permissions"`
}

type PermissionAssignmentDTO struct {
	FunctionGroupID string   `json:"functionGroupId"`
	DataGroupIDs    []string `json:"dataGroupIds"`
}

type UserAssignmentDTO struct {
	UserID             string                    `json:"userId"`
	ServiceAgreementID string                    `json:"serviceAgreementId"`
	Items              []PermissionAssignmentDTO `json:"items"`
}

type UserPermissionsDTO struct {
	Items []PermissionAssignmentDTO `json:"items"`
}

type AdminDTO struct {
	UserID             string `json:"userId"`
	ServiceAgreementID string `json:"serviceAgreementId"`
}

type AdminsResponseDTO struct {
	Admins []string `json:"admins"`
}

type BatchResponseItemDTO struct {
	ResourceID         string   `json:"resourceId"`
	ServiceAgreementID string   `json:"serviceAgreementId,omitempty"`
	Action             string   `json:"action,omitempty"`
	Status             string   `json:"status"`
	Errors             []string `json:"errors,omitempty"`
}

type UserDTO struct {
	ID         string `json:"id"`
	ExternalID string `json:"externalId"`
	FullName   string `json:"fullName,omitempty"`
}
