package httpapi

import (
	"net/http"

	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/payroll"
)

// handleCommissions serves compensation lines. Scope narrowing happens
// before the sales gate: a restricted caller's query is pinned to their own
// employee record regardless of any employee_id parameter.
func (a *API) handleCommissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := auth.PrincipalFromContext(r.Context()); !ok {
		writeJSON(w, http.StatusUnauthorized, guardDenial{Error: "authentication required"})
		return
	}

	ac, _ := a.scopeContext(r)
	if !a.ensureSalesAccess(w, r, ac) {
		return
	}

	employeeID := r.URL.Query().Get("employee_id")
	if ac.Scope == auth.ScopeOwn {
		// No linked employee record means no rows, not an unfiltered query.
		if ac.OwnerID == "" {
			writeJSON(w, http.StatusOK, map[string]any{"commissions": []payroll.Commission{}})
			return
		}
		employeeID = ac.OwnerID
	}
	items, err := a.commissions.ListCommissions(r.Context(), employeeID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"commissions": items})
}
