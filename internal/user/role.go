package user

import "fmt"

type Role string

const (
	RoleEmployee Role = "Employee"
	RoleManager  Role = "Manager"
	RoleAdmin    Role = "Admin"
	RoleFinance  Role = "Finance"
)

// ReportScope is the slice of the organisation a role sees in reports.
type ReportScope int

const (
	ScopeSelf ReportScope = iota
	ScopeTeam
	ScopeOrganisation
)

func Roles() []Role {
	return []Role{RoleEmployee, RoleManager, RoleAdmin, RoleFinance}
}

func RoleNames() []string {
	roles := Roles()
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleEmployee, RoleManager, RoleAdmin, RoleFinance:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// HasBudget reports whether the role carries a reimbursement allocation.
func (r Role) HasBudget() bool {
	switch r {
	case RoleEmployee, RoleManager:
		return true
	case RoleAdmin, RoleFinance:
		return false
	}
	return false
}

// RequiresManager reports whether users of this role need an approver.
func (r Role) RequiresManager() bool {
	switch r {
	case RoleEmployee, RoleManager:
		return true
	case RoleAdmin, RoleFinance:
		return false
	}
	return true
}

// CanApprove reports whether the role may act as an approver.
func (r Role) CanApprove() bool {
	switch r {
	case RoleManager, RoleAdmin:
		return true
	case RoleEmployee, RoleFinance:
		return false
	}
	return false
}

// CanManageUsers reports whether the role may run admin user operations.
func (r Role) CanManageUsers() bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleEmployee, RoleManager, RoleFinance:
		return false
	}
	return false
}

func (r Role) ReportScope() ReportScope {
	switch r {
	case RoleAdmin, RoleFinance:
		return ScopeOrganisation
	case RoleManager:
		return ScopeTeam
	case RoleEmployee:
		return ScopeSelf
	}
	return ScopeSelf
}
