package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Default role slugs seeded on init.
const (
	RoleAdministrator = "administrator"
	RoleEditor        = "editor"
	RoleAuthor        = "author"
	RoleContributor   = "contributor"
	RoleSubscriber    = "subscriber"
)

// Role is a named bundle of capabilities. A capability present in the set is
// granted; absence means denied.
type Role struct {
	Name         string
	Capabilities map[string]struct{}
}

// NewRole builds a role granting the given capabilities.
func NewRole(name string, caps ...string) Role {
	r := Role{Name: name, Capabilities: make(map[string]struct{}, len(caps))}
	for _, c := range caps {
		r.Capabilities[c] = struct{}{}
	}
	return r
}

// Has reports whether the role grants capability.
func (r Role) Has(capability string) bool {
	_, ok := r.Capabilities[capability]
	return ok
}

// CapabilityMap returns the granted capabilities as a name -> true map.
func (r Role) CapabilityMap() map[string]bool {
	m := make(map[string]bool, len(r.Capabilities))
	for c := range r.Capabilities {
		m[c] = true
	}
	return m
}

// CapabilityList returns the granted capability names sorted.
func (r Role) CapabilityList() []string {
	list := make([]string, 0, len(r.Capabilities))
	for c := range r.Capabilities {
		list = append(list, c)
	}
	sort.Strings(list)
	return list
}

type roleWire struct {
	Name         string          `json:"name" yaml:"name"`
	Capabilities map[string]bool `json:"capabilities" yaml:"capabilities"`
}

// MarshalJSON writes the role in its stored form: capabilities as an object of booleans.
func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(roleWire{Name: r.Name, Capabilities: r.CapabilityMap()})
}

// roleJSON keeps capabilities raw so older documents decode leniently.
type roleJSON struct {
	Name         string          `json:"name"`
	Capabilities json.RawMessage `json:"capabilities"`
}

// UnmarshalJSON reads the stored form. A null or empty-list capability set is
// empty; in an object any value other than false, 0, "", "0", null or an
// empty container grants the capability.
func (r *Role) UnmarshalJSON(data []byte) error {
	var w roleJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	caps, err := decodeCapabilities(w.Capabilities)
	if err != nil {
		return err
	}
	r.Name = w.Name
	r.Capabilities = caps
	return nil
}

func decodeCapabilities(raw json.RawMessage) (map[string]struct{}, error) {
	caps := map[string]struct{}{}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return caps, nil
	}
	if raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		if len(list) > 0 {
			return nil, fmt.Errorf("capabilities: expected an object, got a list of %d", len(list))
		}
		return caps, nil
	}

	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, err
	}
	for c, v := range values {
		if truthy(v) {
			caps[c] = struct{}{}
		}
	}
	return caps, nil
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != "" && x != "0"
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	return false
}

// UnmarshalYAML reads a role from a seed file using the same shape as the JSON form.
func (r *Role) UnmarshalYAML(unmarshal func(any) error) error {
	var w roleWire
	if err := unmarshal(&w); err != nil {
		return err
	}
	r.fromWire(w)
	return nil
}

func (r *Role) fromWire(w roleWire) {
	r.Name = w.Name
	r.Capabilities = make(map[string]struct{}, len(w.Capabilities))
	for c, granted := range w.Capabilities {
		if granted {
			r.Capabilities[c] = struct{}{}
		}
	}
}

// RoleRegistry maps role slugs to role definitions. It is stored as one
// JSON document: {"<slug>": {"name": "...", "capabilities": {"<cap>": true}}}.
type RoleRegistry map[string]Role

// Slugs returns the registered role slugs sorted.
func (rr RoleRegistry) Slugs() []string {
	slugs := make([]string, 0, len(rr))
	for s := range rr {
		slugs = append(slugs, s)
	}
	sort.Strings(slugs)
	return slugs
}
