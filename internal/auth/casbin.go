package auth

import (
	"log"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"
	libmodel "libraryhub.com/internal/model"
)

// rbacModel matches the caller's role against route patterns (keyMatch2
// understands :params) and method regexes. ADMIN inherits MEMBER.
const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && regexMatch(r.act, p.act)
`

const anyMethod = "^(GET|POST|PUT|PATCH|DELETE)$"

// DefaultPolicies are the route permissions of a fresh install. Public
// catalog reads and auth endpoints never reach the enforcer.
var DefaultPolicies = [][]string{
	{string(libmodel.RoleMember), "/api/auth/me", "^GET$"},
	{string(libmodel.RoleMember), "/api/auth/logout", "^POST$"},
	{string(libmodel.RoleMember), "/api/users/me", "^GET$"},
	{string(libmodel.RoleMember), "/api/users/me/borrowing-stats", "^GET$"},
	{string(libmodel.RoleMember), "/api/borrow", "^POST$"},
	{string(libmodel.RoleMember), "/api/borrow/return", "^POST$"},
	{string(libmodel.RoleMember), "/api/borrow/history", "^GET$"},
	{string(libmodel.RoleMember), "/api/payments", "^POST$"},
	{string(libmodel.RoleMember), "/api/payments/history", "^GET$"},
	{string(libmodel.RoleMember), "/api/payments/stats/:userId", "^GET$"},
	{string(libmodel.RoleMember), "/api/payments/:id/invoice", "^GET$"},
	{string(libmodel.RoleAdmin), "/api/*", anyMethod},
}

// DefaultGroupings makes every admin a member as well.
var DefaultGroupings = [][]string{
	{string(libmodel.RoleAdmin), string(libmodel.RoleMember)},
}

// InitCasbin builds the enforcer on top of the casbin_rule table and makes
// sure the default policies exist.
func InitCasbin(db *gorm.DB) (*casbin.Enforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}

	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, err
	}

	enforcer, err := casbin.NewEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}

	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}

	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}

	log.Println("Casbin initialized successfully")
	return enforcer, nil
}

func seedPolicies(enforcer *casbin.Enforcer) error {
	added := 0
	for _, p := range DefaultPolicies {
		ok, err := enforcer.HasPolicy(p[0], p[1], p[2])
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if _, err := enforcer.AddPolicy(p[0], p[1], p[2]); err != nil {
			return err
		}
		added++
	}

	for _, g := range DefaultGroupings {
		ok, err := enforcer.HasGroupingPolicy(g[0], g[1])
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if _, err := enforcer.AddGroupingPolicy(g[0], g[1]); err != nil {
			return err
		}
		added++
	}

	if added > 0 {
		log.Printf("Casbin: added %d default rules", added)
	}
	return nil
}
