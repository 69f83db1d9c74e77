package cache

import (
	"sort"
	"sync"
)

// Resource is a protected route granted to a role.
type Resource struct {
	Code   string
	Path   string
	Method string
	Role   string
}

// RbacRolesCache stores role to resources map.
type RbacRolesCache struct {
	mu        sync.RWMutex
	resources map[string][]Resource
	codes     map[string]struct{}
}

func NewRbacRolesCache() *RbacRolesCache {
	return &RbacRolesCache{
		resources: make(map[string][]Resource),
		codes:     make(map[string]struct{}),
	}
}

func (c *RbacRolesCache) Add(role string, r Resource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resources[role] = append(c.resources[role], r)
	c.codes[r.Code] = struct{}{}
}

// ResourcesForRole returns a copy of the resources granted to role.
func (c *RbacRolesCache) ResourcesForRole(role string) []Resource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Resource(nil), c.resources[role]...)
}

// Codes lists every registered resource code, sorted.
func (c *RbacRolesCache) Codes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.codes))
	for name := range c.codes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AllResources returns every registered resource across roles.
func (c *RbacRolesCache) AllResources() []Resource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Resource, 0)
	for _, list := range c.resources {
		out = append(out, list...)
	}
	return out
}
