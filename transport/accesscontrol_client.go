package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-entitlements/core"
	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/time/rate"
)

const accessGroupsPath = "/access-control/service-api/v2/accessgroups"

// AccessControlClient talks to the access-control service over REST and
// classifies every non-2xx answer as *core.RemoteError.
type AccessControlClient struct {
	baseURL string
	adapter *RESTAdapter
	mapper  Mapper
	timeout time.Duration
}

type ClientOption func(*clientBuilder)

type clientBuilder struct {
	doer    HTTPDoer
	headers map[string]string
	limiter *rate.Limiter
	mapper  Mapper
	timeout time.Duration
}

func WithHTTPDoer(doer HTTPDoer) ClientOption {
	return func(b *clientBuilder) {
		if doer != nil {
			b.doer = doer
		}
	}
}

func WithHeader(key string, value string) ClientOption {
	return func(b *clientBuilder) {
		if strings.TrimSpace(key) != "" {
			b.headers[key] = value
		}
	}
}

// WithRateLimit bounds outgoing calls. A non-positive rate disables limiting.
func WithRateLimit(requestsPerSecond float64, burst int) ClientOption {
	return func(b *clientBuilder) {
		if requestsPerSecond <= 0 {
			b.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		b.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

func WithMapper(mapper Mapper) ClientOption {
	return func(b *clientBuilder) {
		b.mapper = mapper
	}
}

func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(b *clientBuilder) {
		if timeout > 0 {
			b.timeout = timeout
		}
	}
}

func newClientBuilder(opts []ClientOption) clientBuilder {
	builder := clientBuilder{
		headers: map[string]string{
			"Accept":       "application/json",
			"Content-Type": "application/json",
		},
		mapper:  DefaultMapper(),
		timeout: defaultRESTClientTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&builder)
		}
	}
	return builder
}

func (b clientBuilder) adapter() *RESTAdapter {
	adapter := NewRESTAdapter(b.doer)
	for key, value := range b.headers {
		adapter.DefaultHeaders[key] = value
	}
	adapter.Limiter = b.limiter
	return adapter
}

func NewAccessControlClient(baseURL string, opts ...ClientOption) (*AccessControlClient, error) {
	base, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	builder := newClientBuilder(opts)
	return &AccessControlClient{
		baseURL: base,
		adapter: builder.adapter(),
		mapper:  builder.mapper.withDefaults(),
		timeout: builder.timeout,
	}, nil
}

// NewAccessControlClientFromConfig applies the access_control config section
// before any explicit options.
func NewAccessControlClientFromConfig(cfg core.AccessControlConfig, opts ...ClientOption) (*AccessControlClient, error) {
	base := []ClientOption{
		WithRequestTimeout(cfg.Timeout()),
		WithRateLimit(cfg.RequestsPerSecond, cfg.Burst),
	}
	return NewAccessControlClient(cfg.BaseURL, append(base, opts...)...)
}

func (c *AccessControlClient) CreateResourceGroup(ctx context.Context, agreementID string, group core.ResourceGroup) (string, error) {
	var out IDResponse
	err := c.call(ctx, "create resource group", http.MethodPost, accessGroupsPath+"/data-groups", nil,
		c.mapper.ResourceGroupToDTO(agreementID, group), &out)
	return out.ID, err
}

func (c *AccessControlClient) UpdateResourceGroupItems(ctx context.Context, deltas []core.ResourceGroupDelta) ([]core.BatchOutcome, error) {
	payload := make([]ResourceGroupItemsDTO, 0, len(deltas))
	for _, delta := range deltas {
		payload = append(payload, c.mapper.DeltaToDTOs(delta)...)
	}
	return c.batch(ctx, "update resource group items", http.MethodPut, accessGroupsPath+"/data-groups/batch/update/data-items", nil, payload)
}

func (c *AccessControlClient) ListResourceGroups(ctx context.Context, agreementID string, groupType core.ResourceGroupType) ([]core.ResourceGroup, error) {
	var out []ResourceGroupDTO
	query := map[string]string{"serviceAgreementId": agreementID}
	if groupType != "" {
		query["type"] = string(groupType)
	}
	if err := c.call(ctx, "list resource groups", http.MethodGet, accessGroupsPath+"/data-groups", query, nil, &out); err != nil {
		return nil, err
	}
	groups := make([]core.ResourceGroup, 0, len(out))
	for _, dto := range out {
		groups = append(groups, c.mapper.ResourceGroupFromDTO(dto))
	}
	return groups, nil
}

func (c *AccessControlClient) CreatePermissionGroup(ctx context.Context, agreementID string, group core.PermissionGroup) (string, error) {
	var out IDResponse
	err := c.call(ctx, "create permission group", http.MethodPost, accessGroupsPath+"/function-groups", nil,
		c.mapper.PermissionGroupToDTO(agreementID, group), &out)
	return out.ID, err
}

func (c *AccessControlClient) ListPermissionGroups(ctx context.Context, agreementID string) ([]core.PermissionGroup, error) {
	var out []PermissionGroupDTO
	query := map[string]string{"serviceAgreementId": agreementID}
	if err := c.call(ctx, "list permission groups", http.MethodGet, accessGroupsPath+"/function-groups", query, nil, &out); err != nil {
		return nil, err
	}
	groups := make([]core.PermissionGroup, 0, len(out))
	for _, dto := range out {
		groups = append(groups, c.mapper.PermissionGroupFromDTO(dto))
	}
	return groups, nil
}

func (c *AccessControlClient) DeletePermissionGroups(ctx context.Context, ids []string) ([]core.BatchOutcome, error) {
	payload := make([]Identifier, 0, len(ids))
	for _, id := range ids {
		payload = append(payload, Identifier{IDIdentifier: id})
	}
	return c.batch(ctx, "delete permission groups", http.MethodPost, accessGroupsPath+"/function-groups/batch/delete", nil, payload)
}

func (c *AccessControlClient) SubmitUserAssignments(ctx context.Context, assignments []core.UserAssignment, mode core.IngestionMode) ([]core.BatchOutcome, error) {
	payload := make([]UserAssignmentDTO, 0, len(assignments))
	for _, assignment := range assignments {
		payload = append(payload, c.mapper.AssignmentToDTO(assignment))
	}
	query := map[string]string{"mode": string(mode.Normalize())}
	return c.batch(ctx, "submit user assignments", http.MethodPut, accessGroupsPath+"/users/permissions", query, payload)
}

func (c *AccessControlClient) FetchUserAssignments(ctx context.Context, userID string, agreementID string) ([]core.PermissionAssignment, error) {
	var out UserPermissionsDTO
	if err := c.call(ctx, "fetch user assignments", http.MethodGet, userPermissionsPath(userID, agreementID), nil, nil, &out); err != nil {
		return nil, err
	}
	return c.mapper.PermissionsFromDTO(out.Items), nil
}

func (c *AccessControlClient) ReplaceUserPermissions(ctx context.Context, agreementID string, userID string, permissions []core.PermissionAssignment) error {
	payload := UserPermissionsDTO{Items: c.mapper.PermissionsToDTO(permissions)}
	return c.call(ctx, "replace user permissions", http.MethodPut, userPermissionsPath(userID, agreementID), nil, payload, nil)
}

func (c *AccessControlClient) AddAdmins(ctx context.Context, agreementID string, userIDs []string) ([]core.BatchOutcome, error) {
	return c.batch(ctx, "add admins", http.MethodPost, accessGroupsPath+"/serviceagreements/admins/add", nil, adminsPayload(agreementID, userIDs))
}

func (c *AccessControlClient) RemoveAdmins(ctx context.Context, agreementID string, userIDs []string) ([]core.BatchOutcome, error) {
	return c.batch(ctx, "remove admins", http.MethodPost, accessGroupsPath+"/serviceagreements/admins/remove", nil, adminsPayload(agreementID, userIDs))
}

func (c *AccessControlClient) ListAdmins(ctx context.Context, agreementID string) ([]string, error) {
	var out AdminsResponseDTO
	path := accessGroupsPath + "/serviceagreements/" + url.PathEscape(agreementID) + "/admins"
	if err := c.call(ctx, "list admins", http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Admins, nil
}

func (c *AccessControlClient) batch(
	ctx context.Context,
	operation string,
	method string,
	path string,
	query map[string]string,
	payload any,
) ([]core.BatchOutcome, error) {
	var out []BatchResponseItemDTO
	if err := c.call(ctx, operation, method, path, query, payload, &out); err != nil {
		return nil, err
	}
	outcomes := make([]core.BatchOutcome, 0, len(out))
	for _, item := range out {
		outcomes = append(outcomes, c.mapper.OutcomeFromDTO(item))
	}
	return outcomes, nil
}

func (c *AccessControlClient) call(
	ctx context.Context,
	operation string,
	method string,
	path string,
	query map[string]string,
	payload any,
	out any,
) error {
	if c == nil || c.adapter == nil {
		return transportError(
			"transport: access control client is not initialized",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			map[string]any{"operation": operation},
		)
	}
	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return transportWrapError(err, goerrors.CategoryBadInput, "transport: encode request body",
				http.StatusBadRequest, map[string]any{"operation": operation})
		}
		body = encoded
	}

	res, err := c.adapter.Do(ctx, Request{
		Method:  method,
		URL:     c.baseURL + path,
		Query:   query,
		Body:    body,
		Timeout: c.timeout,
	})
	if err != nil {
		return callError(operation, err)
	}
	// 207 falls in range; per-item status lives in the body.
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return statusError(operation, res)
	}
	if out == nil || len(strings.TrimSpace(string(res.Body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.Body, out); err != nil {
		return &core.RemoteError{
			Kind:       core.RemoteErrorUnknown,
			Operation:  operation,
			StatusCode: res.StatusCode,
			Body:       string(res.Body),
			Cause:      fmt.Errorf("transport: decode response: %w", err),
		}
	}
	return nil
}

func userPermissionsPath(userID string, agreementID string) string {
	return fmt.Sprintf("%s/users/%s/service-agreements/%s/permissions",
		accessGroupsPath, url.PathEscape(userID), url.PathEscape(agreementID))
}

func adminsPayload(agreementID string, userIDs []string) []AdminDTO {
	payload := make([]AdminDTO, 0, len(userIDs))
	for _, userID := range userIDs {
		payload = append(payload, AdminDTO{UserID: userID, ServiceAgreementID: agreementID})
	}
	return payload
}

func normalizeBaseURL(raw string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return "", fmt.Errorf("transport: base url is required")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("transport: invalid base url %q", raw)
	}
	return trimmed, nil
}
