package workspace

import "slices"

type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
	RoleGuest  Role = "GUEST"
)

// Permission constants
const (
	PermWorkspaceManage = "workspace:manage"
	PermMemberManage    = "member:manage"
	PermResourceRead    = "resource:read"
	PermResourceWrite   = "resource:write"
	PermResourceDelete  = "resource:delete"
)

var AdminPermissions = []string{
	PermWorkspaceManage,
	PermMemberManage,
	PermResourceRead, PermResourceWrite, PermResourceDelete,
}

var MemberPermissions = []string{
	PermResourceRead, PermResourceWrite, PermResourceDelete,
}

var GuestPermissions = []string{
	PermResourceRead,
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMember, RoleGuest:
		return true
	}
	return false
}

func (r Role) Permissions() []string {
	switch r {
	case RoleAdmin:
		return AdminPermissions
	case RoleMember:
		return MemberPermissions
	case RoleGuest:
		return GuestPermissions
	}
	return nil
}

type Workspace struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// Context is the resolved, authorized scope of one request. It is built
// only by Resolver and lives for the duration of that request.
type Context struct {
	CallerID  string
	Role      Role
	Workspace Workspace
	// ItemID is the path item, if any. It has not been checked against the
	// workspace; the resource handler does that under its visibility filter.
	ItemID string
}

func (c *Context) Can(permission string) bool {
	return slices.Contains(c.Role.Permissions(), permission)
}

func (c *Context) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// WithItem returns a copy of c scoped to itemID.
func (c *Context) WithItem(itemID string) *Context {
	out := *c
	out.ItemID = itemID
	return &out
}
