package rbac

import (
	"strings"

	"stockoverflow/infrastructure/cache"
)

const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleSupervisor = "supervisor"
	RoleWorker     = "worker"
	RoleTemp       = "temp"
)

// Roles lists every assignable role.
var Roles = []string{RoleAdmin, RoleManager, RoleSupervisor, RoleWorker, RoleTemp}

func ValidRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// BadgeRole is the role a badge sign-in acts with. Badges carry no secret, so
// elevated roles drop to worker until the user signs in with a password.
func BadgeRole(role string) string {
	switch role {
	case RoleAdmin, RoleManager, RoleSupervisor:
		return RoleWorker
	}
	return role
}

// CanGrant reports whether actorRole may assign or modify an account holding role.
func CanGrant(actorRole, role string) bool {
	if role == RoleAdmin {
		return actorRole == RoleAdmin
	}
	return true
}

// Rbac registers protected routes per role.
type Rbac struct {
	cache *cache.RbacRolesCache
}

func New(c *cache.RbacRolesCache) *Rbac {
	return &Rbac{cache: c}
}

func (r *Rbac) Add(role, code, method, path string) {
	if r == nil || r.cache == nil {
		return
	}
	r.cache.Add(role, cache.Resource{
		Role:   role,
		Code:   code,
		Method: strings.ToUpper(method),
		Path:   path,
	})
}

// Allowed reports whether role was granted method on urlPath.
func (r *Rbac) Allowed(role, urlPath, method string) bool {
	if r == nil || r.cache == nil || role == "" {
		return false
	}
	return ValidateResourceAccess(r.cache.ResourcesForRole(role), urlPath, method)
}

// Protected reports whether any role registered method on urlPath. Unregistered routes are open.
func (r *Rbac) Protected(urlPath, method string) bool {
	if r == nil || r.cache == nil {
		return false
	}
	return ValidateResourceAccess(r.cache.AllResources(), urlPath, method)
}

func ValidateResourceAccess(resources []cache.Resource, urlPath, method string) bool {
	method = strings.ToUpper(method)
	for _, res := range resources {
		if res.Method == method && matchPath(res.Path, urlPath) {
			return true
		}
	}
	return false
}

func matchPath(pattern, path string) bool {
	pattern = strings.Trim(pattern, "/")
	path = strings.Trim(path, "/")
	if pattern == path {
		return true
	}

	patternSeg := strings.Split(pattern, "/")
	pathSeg := strings.Split(path, "/")

	// Segment wildcard matching: /users/*.
	if len(patternSeg) == len(pathSeg) {
		for i := range patternSeg {
			if patternSeg[i] != "*" && patternSeg[i] != pathSeg[i] {
				return false
			}
		}
		return true
	}

	// Trailing wildcard matches any deeper suffix.
	if last := len(patternSeg) - 1; patternSeg[last] == "*" {
		prefix := strings.Join(patternSeg[:last], "/")
		return strings.HasPrefix(path, prefix+"/") || path == prefix
	}
	return false
}
