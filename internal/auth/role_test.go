package auth

import "testing"

func TestPermissionsForIsStable(t *testing.T) {
	for _, role := range []Role{RoleAdmin, RoleManager, RoleUser} {
		first := PermissionsFor(role)
		for i := 0; i < 3; i++ {
			again := PermissionsFor(role)
			if len(again) != len(first) {
				t.Fatalf("role %s: permission set size changed between calls", role)
			}
			for p := range first {
				if _, ok := again[p]; !ok {
					t.Fatalf("role %s: permission %s disappeared between calls", role, p)
				}
			}
		}
	}
}

func TestPrivilegedRolesCarryFullCatalog(t *testing.T) {
	adminPerms := PermissionsFor(RoleAdmin)
	managerPerms := PermissionsFor(RoleManager)
	if len(adminPerms) != len(catalog) {
		t.Fatalf("admin has %d permissions, want %d", len(adminPerms), len(catalog))
	}
	if len(managerPerms) != len(catalog) {
		t.Fatalf("manager has %d permissions, want %d", len(managerPerms), len(catalog))
	}
	for _, p := range catalog {
		if !HasPermission(RoleAdmin, p) || !HasPermission(RoleManager, p) {
			t.Fatalf("privileged role missing catalog permission %s", p)
		}
	}
}

func TestRestrictedRoleSubset(t *testing.T) {
	if HasPermission(RoleUser, PermLeaveApprove) {
		t.Fatal("restricted role must not approve leave")
	}
	if HasPermission(RoleUser, PermPayrollView) {
		t.Fatal("restricted role must not view payroll")
	}
	if HasPermission(RoleUser, PermUserManagement) {
		t.Fatal("restricted role must not manage users")
	}
	for _, p := range restrictedGrants {
		if !HasPermission(RoleUser, p) {
			t.Fatalf("restricted role missing granted permission %s", p)
		}
	}
}

func TestParseRoleFailsClosed(t *testing.T) {
	cases := map[string]Role{
		"admin":     RoleAdmin,
		" Manager ": RoleManager,
		"user":      RoleUser,
		"hr_admin":  RoleUser,
		"":          RoleUser,
		"root":      RoleUser,
	}
	for raw, want := range cases {
		if got := ParseRole(raw); got != want {
			t.Fatalf("ParseRole(%q)=%s, want %s", raw, got, want)
		}
	}
}

func TestSalesAccess(t *testing.T) {
	if !SalesRoleAgent.SalesAccess() || !SalesRoleManager.SalesAccess() {
		t.Fatal("agent and manager sales roles must grant sales access")
	}
	if SalesRoleNone.SalesAccess() {
		t.Fatal("empty sales role must not grant sales access")
	}
	if ParseSalesRole("director").SalesAccess() {
		t.Fatal("unknown sales role must not grant sales access")
	}
}

func TestScopeFor(t *testing.T) {
	if ScopeFor(RoleAdmin) != ScopeAll || ScopeFor(RoleManager) != ScopeAll {
		t.Fatal("privileged roles must have all-scope")
	}
	if ScopeFor(RoleUser) != ScopeOwn {
		t.Fatal("restricted role must have own-scope")
	}
}
