package valueobject

import (
	"fmt"
	"path"
	"strings"
)

// RouteClass is the access class of a navigable path.
type RouteClass int

const (
	RouteUnclassified RouteClass = iota
	RoutePublic
	RouteProtected
	RouteAdmin
)

func (c RouteClass) String() string {
	switch c {
	case RoutePublic:
		return "public"
	case RouteProtected:
		return "protected"
	case RouteAdmin:
		return "admin"
	}
	return "unclassified"
}

// Well-known application paths.
const (
	PathHome         = "/"
	PathLogin        = "/auth/login"
	PathRegister     = "/auth/register"
	PathLogout       = "/auth/logout"
	PathDashboard    = "/dashboard"
	PathProfile      = "/profile"
	PathProducts     = "/products"
	PathOrders       = "/orders"
	PathAdmin        = "/admin"
	PathUnauthorized = "/unauthorized"
	PathNotFound     = "/404"
)

// RouteTable classifies request paths. The three classes are disjoint;
// Excluded prefixes are never classified because the guard does not run
// for them (API, static assets, health checks).
type RouteTable struct {
	public    []string
	protected []string
	admin     []string
	excluded  []string
}

// NewRouteTable builds a table and rejects any path listed in more than
// one class.
func NewRouteTable(public, protected, admin, excluded []string) (*RouteTable, error) {
	seen := make(map[string]RouteClass)
	add := func(paths []string, class RouteClass) ([]string, error) {
		out := make([]string, 0, len(paths))
		for _, p := range paths {
			p = normalize(p)
			if prev, ok := seen[p]; ok && prev != class {
				return nil, fmt.Errorf("route %q is both %s and %s", p, prev, class)
			}
			seen[p] = class
			out = append(out, p)
		}
		return out, nil
	}

	t := &RouteTable{excluded: excluded}
	var err error
	if t.public, err = add(public, RoutePublic); err != nil {
		return nil, err
	}
	if t.protected, err = add(protected, RouteProtected); err != nil {
		return nil, err
	}
	if t.admin, err = add(admin, RouteAdmin); err != nil {
		return nil, err
	}
	return t, nil
}

// DefaultRouteTable is the application's route surface.
func DefaultRouteTable() *RouteTable {
	t, err := NewRouteTable(
		[]string{PathHome, PathLogin, PathRegister, PathLogout, PathUnauthorized, PathNotFound},
		[]string{PathDashboard, PathProfile, PathProducts, PathOrders},
		[]string{PathAdmin},
		[]string{"/api/", "/demo-api/", "/static/", "/health"},
	)
	if err != nil {
		panic(err)
	}
	return t
}

// Classify returns the class of p. Nested paths inherit the class of their
// closest listed ancestor; "/" only matches itself.
func (t *RouteTable) Classify(p string) RouteClass {
	p = normalize(p)
	best, class := -1, RouteUnclassified
	try := func(entries []string, c RouteClass) {
		for _, e := range entries {
			if matches(p, e) && len(e) > best {
				best, class = len(e), c
			}
		}
	}
	try(t.public, RoutePublic)
	try(t.protected, RouteProtected)
	try(t.admin, RouteAdmin)
	return class
}

// Excluded reports whether the guard should skip p entirely.
func (t *RouteTable) Excluded(p string) bool {
	for _, prefix := range t.excluded {
		if p == strings.TrimSuffix(prefix, "/") || strings.HasPrefix(p, prefix) {
			return true
		}
	}
	// root files such as /favicon.ico or /robots.txt
	return strings.Contains(path.Base(p), ".")
}

// IsAuthPage reports whether p is the login or registration view.
func IsAuthPage(p string) bool {
	p = normalize(p)
	return p == PathLogin || p == PathRegister
}

func matches(p, entry string) bool {
	if entry == "/" {
		return p == "/"
	}
	return p == entry || strings.HasPrefix(p, entry+"/")
}

func normalize(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}
