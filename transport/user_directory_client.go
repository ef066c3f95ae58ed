package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-entitlements/core"
	goerrors "github.com/goliatone/go-errors"
)

const userManagerPath = "/user-manager/service-api/v2/users"

// UserDirectoryClient resolves external user references through the
// user-manager service.
type UserDirectoryClient struct {
	baseURL string
	adapter *RESTAdapter
	timeout time.Duration
}

func NewUserDirectoryClient(baseURL string, opts ...ClientOption) (*UserDirectoryClient, error) {
	base, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	builder := newClientBuilder(opts)
	return &UserDirectoryClient{
		baseURL: base,
		adapter: builder.adapter(),
		timeout: builder.timeout,
	}, nil
}

func (c *UserDirectoryClient) ResolveUserID(ctx context.Context, reference string) (string, error) {
	user, err := c.GetUser(ctx, reference)
	if err != nil {
		return "", err
	}
	return user.InternalID, nil
}

func (c *UserDirectoryClient) GetUser(ctx context.Context, externalID string) (core.User, error) {
	const operation = "get user"
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return core.User{}, transportError("transport: user reference is required",
			goerrors.CategoryBadInput, http.StatusBadRequest, map[string]any{"operation": operation})
	}
	if c == nil || c.adapter == nil {
		return core.User{}, transportError("transport: user directory client is not initialized",
			goerrors.CategoryInternal, http.StatusInternalServerError, map[string]any{"operation": operation})
	}
	res, err := c.adapter.Do(ctx, Request{
		Method:  http.MethodGet,
		URL:     c.baseURL + userManagerPath + "/externalids/" + url.PathEscape(externalID),
		Timeout: c.timeout,
	})
	if err != nil {
		return core.User{}, callError(operation, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return core.User{}, statusError(operation, res)
	}
	var dto UserDTO
	if err := json.Unmarshal(res.Body, &dto); err != nil || strings.TrimSpace(dto.ID) == "" {
		return core.User{}, &core.RemoteError{
			Kind:       core.RemoteErrorUnknown,
			Operation:  operation,
			StatusCode: res.StatusCode,
			Body:       string(res.Body),
			Cause:      err,
		}
	}
	return core.User{ID: dto.ExternalID, InternalID: dto.ID, FullName: dto.FullName}, nil
}
