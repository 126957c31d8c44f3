package usecase

import (
	"net/url"
	"strings"

	"github.com/hiprotech/portal/application/port/outbound"
	"github.com/hiprotech/portal/domain/entity"
	"github.com/hiprotech/portal/domain/valueobject"
)

// GuardAction is what the caller must do with a navigation.
type GuardAction int

const (
	ActionAllow GuardAction = iota
	ActionRedirect
	ActionNotFound
)

func (a GuardAction) String() string {
	switch a {
	case ActionAllow:
		return "allow"
	case ActionRedirect:
		return "redirect"
	}
	return "not_found"
}

// Decision reasons, used in logs and tests.
const (
	ReasonPublic          = "public"
	ReasonAlreadySignedIn = "already_signed_in"
	ReasonNoToken         = "no_token"
	ReasonExpiredToken    = "expired_token"
	ReasonForbiddenRole   = "forbidden_role"
	ReasonAuthorized      = "authorized"
	ReasonUnknownRoute    = "unknown_route"
)

type Decision struct {
	Action   GuardAction
	Location string
	Reason   string
}

// RouteGuard decides navigations from the route table and the access
// token's claims. Claims are only used to pick a page; the backend still
// authorizes every API call.
type RouteGuard struct {
	routes  *valueobject.RouteTable
	decoder outbound.TokenDecoder
}

func NewRouteGuard(routes *valueobject.RouteTable, decoder outbound.TokenDecoder) *RouteGuard {
	if routes == nil {
		routes = valueobject.DefaultRouteTable()
	}
	return &RouteGuard{routes: routes, decoder: decoder}
}

func (g *RouteGuard) Routes() *valueobject.RouteTable {
	return g.routes
}

// Decide evaluates a navigation to path holding accessToken ("" for none).
// Expiry is checked without a buffer: a token inside the refresh window
// still opens the page and the gateway refreshes it on the first API call.
func (g *RouteGuard) Decide(path, accessToken string) Decision {
	class := g.routes.Classify(path)

	switch class {
	case valueobject.RoutePublic:
		if valueobject.IsAuthPage(path) && accessToken != "" && !g.decoder.IsExpiredWithin(accessToken, 0) {
			return redirect(valueobject.PathDashboard, ReasonAlreadySignedIn)
		}
		return Decision{Action: ActionAllow, Reason: ReasonPublic}

	case valueobject.RouteProtected, valueobject.RouteAdmin:
		if accessToken == "" {
			return redirect(LoginLocation(path), ReasonNoToken)
		}
		claims, ok := g.decoder.Decode(accessToken)
		if !ok || g.decoder.IsExpiredWithin(accessToken, 0) {
			return redirect(LoginLocation(path), ReasonExpiredToken)
		}
		if class == valueobject.RouteAdmin && entity.Role(claims.Role) != entity.RoleAdmin {
			return redirect(valueobject.PathUnauthorized, ReasonForbiddenRole)
		}
		return Decision{Action: ActionAllow, Reason: ReasonAuthorized}
	}

	return Decision{Action: ActionNotFound, Reason: ReasonUnknownRoute}
}

// Authorize is the render-time check against an already hydrated session.
func (g *RouteGuard) Authorize(path string, session entity.Session) Decision {
	token := ""
	if session.Authenticated {
		token = session.AccessToken()
	}
	return g.Decide(path, token)
}

// LoginLocation is the login URL that returns to path afterwards. Slashes
// in the return path are kept readable.
func LoginLocation(path string) string {
	escaped := strings.ReplaceAll(url.QueryEscape(path), "%2F", "/")
	return valueobject.PathLogin + "?returnUrl=" + escaped
}

// SafeReturnURL returns target when it is a local absolute path, else the
// dashboard.
func SafeReturnURL(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return valueobject.PathDashboard
	}
	if u, err := url.Parse(target); err != nil || u.Host != "" || u.Scheme != "" {
		return valueobject.PathDashboard
	}
	return target
}

func redirect(location, reason string) Decision {
	return Decision{Action: ActionRedirect, Location: location, Reason: reason}
}
