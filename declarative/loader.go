package declarative

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/goliatone/go-entitlements/core"
	"gopkg.in/yaml.v3"
)

type LoadOptions struct {
	AllowUnknownFields bool
}

// LoadFile reads a desired state document and converts it to the engine's
// representation.
func LoadFile(path string) (core.DesiredState, error) {
	return LoadFileWithOptions(path, LoadOptions{})
}

func LoadFileWithOptions(path string, opts LoadOptions) (core.DesiredState, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-provided state file
	if err != nil {
		return core.DesiredState{}, fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := Parse(data, opts)
	if err != nil {
		return core.DesiredState{}, fmt.Errorf("parse %s: %w", path, err)
	}
	state, err := doc.DesiredState()
	if err != nil {
		return core.DesiredState{}, fmt.Errorf("%s: %w", path, err)
	}
	return state, nil
}

// Load matches the loader signature used by queued apply jobs.
func Load(ctx context.Context, path string) (core.DesiredState, error) {
	if err := ctx.Err(); err != nil {
		return core.DesiredState{}, err
	}
	return LoadFile(path)
}

func Parse(data []byte, opts LoadOptions) (Document, error) {
	var doc Document
	if opts.AllowUnknownFields {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return Document{}, err
		}
	} else {
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&doc); err != nil {
			return Document{}, err
		}
	}
	if doc.APIVersion != SupportedAPIVersion {
		return Document{}, fmt.Errorf("unsupported apiVersion %q (expected %q)", doc.APIVersion, SupportedAPIVersion)
	}
	if doc.Kind != KindDesiredState {
		return Document{}, fmt.Errorf("unexpected kind %q (expected %q)", doc.Kind, KindDesiredState)
	}
	return doc, nil
}

// DesiredState validates the document and returns the engine state. All
// validation problems are reported together.
func (d Document) DesiredState() (core.DesiredState, error) {
	spec := d.Spec
	var errs []error

	agreementID := strings.TrimSpace(spec.Agreement.ID)
	if agreementID == "" {
		errs = append(errs, errors.New("spec.agreement.id is required"))
	}
	mode, err := parseMode(spec.Mode)
	if err != nil {
		errs = append(errs, err)
	}

	state := core.DesiredState{
		Agreement: core.Agreement{
			ID:             agreementID,
			Name:           strings.TrimSpace(spec.Agreement.Name),
			IsMaster:       spec.Agreement.Master,
			Administrators: make([]core.User, 0, len(spec.Agreement.Administrators)),
		},
		Mode:      mode,
		SetAdmins: spec.SetAdministrators,
	}
	for index, admin := range spec.Agreement.Administrators {
		user := toUser(admin)
		if user.ID == "" && user.InternalID == "" {
			errs = append(errs, fmt.Errorf("spec.agreement.administrators[%d]: id or internalId is required", index))
		}
		state.Agreement.Administrators = append(state.Agreement.Administrators, user)
	}

	resourceNames := make(map[string]struct{}, len(spec.ResourceGroups))
	for index, group := range spec.ResourceGroups {
		name := strings.TrimSpace(group.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("spec.resourceGroups[%d].name is required", index))
			continue
		}
		groupType, err := parseResourceGroupType(group.Type)
		if err != nil {
			errs = append(errs, fmt.Errorf("spec.resourceGroups[%d]: %w", index, err))
		}
		if _, dup := resourceNames[name]; dup {
			errs = append(errs, fmt.Errorf("spec.resourceGroups[%d]: duplicate name %q", index, name))
		}
		resourceNames[name] = struct{}{}
		state.ResourceGroups = append(state.ResourceGroups, core.ResourceGroup{
			Name:             name,
			Description:      strings.TrimSpace(group.Description),
			Type:             groupType,
			Items:            append([]string(nil), group.Items...),
			AreItemsInternal: group.InternalItems,
		})
	}

	permissionNames := make(map[string]struct{}, len(spec.PermissionGroups)+len(spec.RoleTemplates))
	for index, group := range spec.PermissionGroups {
		name := strings.TrimSpace(group.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("spec.permissionGroups[%d].name is required", index))
			continue
		}
		if _, dup := permissionNames[name]; dup {
			errs = append(errs, fmt.Errorf("spec.permissionGroups[%d]: duplicate name %q", index, name))
		}
		permissionNames[name] = struct{}{}
		state.PermissionGroups = append(state.PermissionGroups, core.PermissionGroup{
			Name:        name,
			Description: strings.TrimSpace(group.Description),
			Kind:        core.PermissionGroupKindRegular,
			Functions:   toFunctions(group.Functions),
		})
	}
	for index, template := range spec.RoleTemplates {
		name := strings.TrimSpace(template.Name)
		if name == "" {
			errs = append(errs, fmt.Errorf("spec.roleTemplates[%d].name is required", index))
			continue
		}
		if _, dup := permissionNames[name]; dup {
			errs = append(errs, fmt.Errorf("spec.roleTemplates[%d]: duplicate name %q", index, name))
		}
		permissionNames[name] = struct{}{}
		state.RoleTemplates = append(state.RoleTemplates, core.RoleTemplate{
			Name:        name,
			Description: strings.TrimSpace(template.Description),
			Functions:   toFunctions(template.Functions),
		})
	}

	for index, userSpec := range spec.Users {
		user := toUser(userSpec.UserSpec)
		if user.ID == "" && user.InternalID == "" {
			errs = append(errs, fmt.Errorf("spec.users[%d]: id or internalId is required", index))
		}
		desired := core.DesiredUserGrants{User: user}
		for grantIndex, grant := range userSpec.Grants {
			groupName := strings.TrimSpace(grant.PermissionGroup)
			if _, ok := permissionNames[groupName]; !ok {
				errs = append(errs, fmt.Errorf("spec.users[%d].grants[%d]: unknown permission group %q", index, grantIndex, groupName))
			}
			named := core.NamedGrant{PermissionGroup: groupName}
			for _, resourceName := range grant.ResourceGroups {
				resourceName = strings.TrimSpace(resourceName)
				if _, ok := resourceNames[resourceName]; !ok {
					errs = append(errs, fmt.Errorf("spec.users[%d].grants[%d]: unknown resource group %q", index, grantIndex, resourceName))
				}
				named.ResourceGroups = append(named.ResourceGroups, resourceName)
			}
			desired.Grants = append(desired.Grants, named)
		}
		state.Users = append(state.Users, desired)
	}

	if len(errs) > 0 {
		return core.DesiredState{}, errors.Join(errs...)
	}
	return state, nil
}

func parseMode(raw string) (core.IngestionMode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(core.IngestionModeReplace):
		return core.IngestionModeReplace, nil
	case string(core.IngestionModeMerge):
		return core.IngestionModeMerge, nil
	default:
		return "", fmt.Errorf("spec.mode: unsupported value %q", raw)
	}
}

func parseResourceGroupType(raw string) (core.ResourceGroupType, error) {
	switch groupType := core.ResourceGroupType(strings.ToUpper(strings.TrimSpace(raw))); groupType {
	case "", core.ResourceGroupTypeArrangements:
		return core.ResourceGroupTypeArrangements, nil
	case core.ResourceGroupTypeRepositories, core.ResourceGroupTypeCustomers:
		return groupType, nil
	default:
		return "", fmt.Errorf("unsupported type %q", raw)
	}
}

func toUser(spec UserSpec) core.User {
	return core.User{
		ID:         strings.TrimSpace(spec.ID),
		InternalID: strings.TrimSpace(spec.InternalID),
		FullName:   strings.TrimSpace(spec.FullName),
	}
}

func toFunctions(specs []FunctionSpec) []core.BusinessFunction {
	if len(specs) == 0 {
		return nil
	}
	out := make([]core.BusinessFunction, 0, len(specs))
	for _, spec := range specs {
		out = append(out, core.BusinessFunction{
			FunctionID: strings.TrimSpace(spec.ID),
			Name:       strings.TrimSpace(spec.Name),
			Privileges: append([]string(nil), spec.Privileges...),
		})
	}
	return out
}
