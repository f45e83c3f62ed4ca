package auth

// Permission is an opaque capability tag drawn from a closed catalog.
type Permission string

const (
	PermEmployeesView   Permission = "employees:view"
	PermEmployeesCreate Permission = "employees:create"
	PermEmployeesUpdate Permission = "employees:update"
	PermEmployeesDelete Permission = "employees:delete"

	PermPayrollView   Permission = "payroll:view"
	PermPayrollCreate Permission = "payroll:create"
	PermPayrollUpdate Permission = "payroll:update"
	PermPayrollDelete Permission = "payroll:delete"

	PermTimeView   Permission = "time:view"
	PermTimeCreate Permission = "time:create"
	PermTimeUpdate Permission = "time:update"
	PermTimeDelete Permission = "time:delete"

	PermLeaveView    Permission = "leave:view"
	PermLeaveCreate  Permission = "leave:create"
	PermLeaveUpdate  Permission = "leave:update"
	PermLeaveApprove Permission = "leave:approve"
	PermLeaveDelete  Permission = "leave:delete"

	PermRecruitingView   Permission = "recruiting:view"
	PermRecruitingCreate Permission = "recruiting:create"
	PermRecruitingUpdate Permission = "recruiting:update"
	PermRecruitingDelete Permission = "recruiting:delete"

	PermPerformanceView   Permission = "performance:view"
	PermPerformanceCreate Permission = "performance:create"
	PermPerformanceUpdate Permission = "performance:update"
	PermPerformanceDelete Permission = "performance:delete"

	PermBenefitsView   Permission = "benefits:view"
	PermBenefitsCreate Permission = "benefits:create"
	PermBenefitsUpdate Permission = "benefits:update"
	PermBenefitsDelete Permission = "benefits:delete"

	PermBonusesView    Permission = "bonuses:view"
	PermBonusesCreate  Permission = "bonuses:create"
	PermBonusesUpdate  Permission = "bonuses:update"
	PermBonusesApprove Permission = "bonuses:approve"
	PermBonusesDelete  Permission = "bonuses:delete"

	PermComplianceView   Permission = "compliance:view"
	PermComplianceCreate Permission = "compliance:create"
	PermComplianceUpdate Permission = "compliance:update"
	PermComplianceDelete Permission = "compliance:delete"

	PermAnalyticsView Permission = "analytics:view"
	PermReportsView   Permission = "reports:view"
	PermReportsExport Permission = "reports:export"

	PermSystemAdmin    Permission = "system:admin"
	PermUserManagement Permission = "users:manage"
	PermRoleManagement Permission = "roles:manage"
)

// catalog lists every permission once, in catalog order.
var catalog = []Permission{
	PermEmployeesView, PermEmployeesCreate, PermEmployeesUpdate, PermEmployeesDelete,
	PermPayrollView, PermPayrollCreate, PermPayrollUpdate, PermPayrollDelete,
	PermTimeView, PermTimeCreate, PermTimeUpdate, PermTimeDelete,
	PermLeaveView, PermLeaveCreate, PermLeaveUpdate, PermLeaveApprove, PermLeaveDelete,
	PermRecruitingView, PermRecruitingCreate, PermRecruitingUpdate, PermRecruitingDelete,
	PermPerformanceView, PermPerformanceCreate, PermPerformanceUpdate, PermPerformanceDelete,
	PermBenefitsView, PermBenefitsCreate, PermBenefitsUpdate, PermBenefitsDelete,
	PermBonusesView, PermBonusesCreate, PermBonusesUpdate, PermBonusesApprove, PermBonusesDelete,
	PermComplianceView, PermComplianceCreate, PermComplianceUpdate, PermComplianceDelete,
	PermAnalyticsView, PermReportsView, PermReportsExport,
	PermSystemAdmin, PermUserManagement, PermRoleManagement,
}

// restrictedGrants is the fixed subset granted to the restricted role.
var restrictedGrants = []Permission{
	PermEmployeesView,
	PermTimeView, PermTimeCreate, PermTimeUpdate,
	PermLeaveView, PermLeaveCreate,
	PermPerformanceView,
	PermBenefitsView,
	PermBonusesView,
}

// PermissionsFor returns the permission set granted to a role. The switch is
// exhaustive over the closed role set; both privileged roles carry the full
// catalog.
func PermissionsFor(role Role) map[Permission]struct{} {
	switch role {
	case RoleAdmin, RoleManager:
		return permissionSet(catalog)
	case RoleUser:
		return permissionSet(restrictedGrants)
	default:
		return permissionSet(restrictedGrants)
	}
}

// HasPermission reports whether the role's grant set contains p.
func HasPermission(role Role, p Permission) bool {
	_, ok := PermissionsFor(role)[p]
	return ok
}

func permissionSet(perms []Permission) map[Permission]struct{} {
	set := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}
