package auth

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

type contextKey string

const identityKey contextKey = "identity"

// Claim names read from Cognito-issued tokens.
const (
	ClaimSubject  = "sub"
	ClaimEmail    = "email"
	ClaimUsername = "cognito:username"
	ClaimGroups   = "cognito:groups"
)

// Identity is the caller as described by the token claims of one request.
// It is derived per request and never persisted.
type Identity struct {
	Subject  string
	Email    string
	Username string
	Roles    RoleSet
	Claims   map[string]any
}

// Authenticated reports whether any identifying claim is present.
func (i Identity) Authenticated() bool {
	return i.Subject != "" || i.Email != "" || i.Username != ""
}

// Claim returns the named claim as a trimmed string, or "" when absent.
func (i Identity) Claim(name string) string {
	switch name {
	case ClaimSubject:
		return i.Subject
	case ClaimEmail:
		return i.Email
	case ClaimUsername:
		return i.Username
	}
	return stringClaim(i.Claims, name)
}

// ExtractIdentity builds an Identity from a claims map. A nil or empty map
// yields the zero Identity, which downstream middleware treats as
// unauthenticated.
func ExtractIdentity(claims map[string]any) Identity {
	if len(claims) == 0 {
		return Identity{Roles: RoleSet{}}
	}

	groups, ok := claims[ClaimGroups]
	if !ok || groups == nil {
		groups = claims["groups"]
	}

	username := stringClaim(claims, ClaimUsername)
	if username == "" {
		username = stringClaim(claims, "username")
	}

	return Identity{
		Subject:  stringClaim(claims, ClaimSubject),
		Email:    stringClaim(claims, ClaimEmail),
		Username: username,
		Roles:    ParseRoles(groups),
		Claims:   claims,
	}
}

func stringClaim(claims map[string]any, name string) string {
	v, ok := claims[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// RoleSet is the normalized set of group names carried by a caller.
type RoleSet map[string]struct{}

// NewRoleSet returns a set holding the given names.
func NewRoleSet(names ...string) RoleSet {
	rs := make(RoleSet, len(names))
	for _, n := range names {
		rs.add(n)
	}
	return rs
}

func (rs RoleSet) add(name string) {
	name = trimRole(name)
	if name != "" {
		rs[name] = struct{}{}
	}
}

func (rs RoleSet) Has(name string) bool {
	_, ok := rs[name]
	return ok
}

// HasAny reports whether the set shares at least one name with allow.
func (rs RoleSet) HasAny(allow []string) bool {
	for _, a := range allow {
		if rs.Has(strings.TrimSpace(a)) {
			return true
		}
	}
	return false
}

// Names returns the set members in sorted order.
func (rs RoleSet) Names() []string {
	names := make([]string, 0, len(rs))
	for n := range rs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ParseRoles normalizes a groups claim into a RoleSet. The claim arrives in
// several shapes depending on the token path:
//
//	["Admin","Doctors"]   JSON-encoded string
//	Admin, Doctors        comma-joined string
//	[Admin Doctors]       API Gateway rendering of a list claim
//	[]any{"Admin", ...}   native list
//
// All of them produce the same set. A missing claim yields an empty set.
func ParseRoles(raw any) RoleSet {
	rs := RoleSet{}
	switch v := raw.(type) {
	case nil:
	case string:
		for _, name := range splitRoleString(v) {
			rs.add(name)
		}
	case []string:
		for _, el := range v {
			for _, name := range splitRoleString(el) {
				rs.add(name)
			}
		}
	case []any:
		for _, el := range v {
			if s, ok := el.(string); ok {
				for _, name := range splitRoleString(s) {
					rs.add(name)
				}
			} else if el != nil {
				rs.add(fmt.Sprint(el))
			}
		}
	default:
		for _, name := range splitRoleString(fmt.Sprint(v)) {
			rs.add(name)
		}
	}
	return rs
}

func splitRoleString(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	bracketed := strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]")
	if bracketed {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	// Only the unquoted gateway rendering separates names with spaces.
	if bracketed && !strings.Contains(s, ",") && !strings.ContainsAny(s, `"'`) {
		return strings.Fields(s)
	}
	return strings.Split(s, ",")
}

func trimRole(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"' `)
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the caller identity stored on ctx. The second
// result is false when no authentication middleware ran.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

func UserIDFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.Subject
}

func RolesFromContext(ctx context.Context) []string {
	id, _ := IdentityFromContext(ctx)
	return id.Roles.Names()
}
