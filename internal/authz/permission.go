package authz

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Wildcard grants every resource/action pair when held as a string permission.
const Wildcard = "*"

// PermissionKind tags which representation a Permission was decoded from.
type PermissionKind int

const (
	// KindString is the "resource.action" (or "*") form carried in tokens.
	KindString PermissionKind = iota
	// KindStructured is the {resource, actions} object form.
	KindStructured
)

// Permission is a single grant held by a user. Tokens and API payloads may
// carry either bare strings or {resource, actions} objects in the same list;
// both are normalized into this type when decoded so evaluation never has to
// inspect raw JSON.
type Permission struct {
	Kind PermissionKind

	// Name is set for KindString.
	Name string

	// Resource and Actions are set for KindStructured.
	Resource string
	Actions  []string
}

// StringPermission builds a string-form permission such as "users.read".
func StringPermission(name string) Permission {
	return Permission{Kind: KindString, Name: name}
}

// StructuredPermission builds an object-form permission.
func StructuredPermission(resource string, actions ...string) Permission {
	return Permission{Kind: KindStructured, Resource: resource, Actions: actions}
}

// Grants reports whether this single entry allows action on resource.
func (p Permission) Grants(resource, action string) bool {
	switch p.Kind {
	case KindString:
		return p.Name == Wildcard || p.Name == resource+"."+action
	case KindStructured:
		return p.Resource == resource && slices.Contains(p.Actions, action)
	}
	return false
}

// String renders the permission the way it appears in tokens.
func (p Permission) String() string {
	if p.Kind == KindStructured {
		return fmt.Sprintf("%s:[%s]", p.Resource, strings.Join(p.Actions, ","))
	}
	return p.Name
}

// MarshalJSON writes the permission back in the form it was decoded from.
func (p Permission) MarshalJSON() ([]byte, error) {
	if p.Kind == KindStructured {
		return json.Marshal(struct {
			Resource string   `json:"resource"`
			Actions  []string `json:"actions"`
		}{p.Resource, p.Actions})
	}
	return json.Marshal(p.Name)
}

// UnmarshalJSON accepts either a JSON string or a {resource, actions} object.
func (p *Permission) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty permission")
	}

	switch data[0] {
	case '"':
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*p = StringPermission(name)
		return nil
	case '{':
		var obj struct {
			Resource string   `json:"resource"`
			Actions  []string `json:"actions"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		if obj.Resource == "" {
			return fmt.Errorf("structured permission without resource: %s", data)
		}
		*p = StructuredPermission(obj.Resource, obj.Actions...)
		return nil
	}
	return fmt.Errorf("permission must be a string or object, got %s", data)
}

// ParsePermissions normalizes a decoded claim value ([]any from a JWT map)
// into permissions. Empty strings, objects without a resource and any other
// shape (null, numbers, nested lists) are skipped.
func ParsePermissions(raw any) []Permission {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}

	perms := make([]Permission, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if v != "" {
				perms = append(perms, StringPermission(v))
			}
		case map[string]any:
			resource, _ := v["resource"].(string)
			if resource == "" {
				continue
			}
			var actions []string
			if list, ok := v["actions"].([]any); ok {
				for _, a := range list {
					if s, ok := a.(string); ok {
						actions = append(actions, s)
					}
				}
			}
			perms = append(perms, StructuredPermission(resource, actions...))
		}
	}
	return perms
}

// Requirement is a (resource, action) pair a route or command demands.
type Requirement struct {
	Resource string `json:"resource" yaml:"resource"`
	Action   string `json:"action" yaml:"action"`
}

// ParseRequirement splits "resource.action". The resource may itself not
// contain a dot; everything after the first dot is the action.
func ParseRequirement(s string) (Requirement, error) {
	resource, action, ok := strings.Cut(s, ".")
	if !ok || resource == "" || action == "" {
		return Requirement{}, fmt.Errorf("permission %q must look like resource.action", s)
	}
	return Requirement{Resource: resource, Action: action}, nil
}

// String renders the requirement the way denial panels list it.
func (r Requirement) String() string {
	return r.Resource + ": " + r.Action
}
