package pg

import (
	"context"
	"errors"

	"peopledesk.org/internal/payroll"
)

var _ payroll.Store = (*Store)(nil)

func (s *Store) ListCommissions(ctx context.Context, employeeID string) ([]payroll.Commission, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	query := `
		select id, employee_id, period, amount_cent, currency, status, created_at
		from commissions
		order by period desc, created_at desc
	`
	args := []any{}
	if employeeID != "" {
		query = `
			select id, employee_id, period, amount_cent, currency, status, created_at
			from commissions
			where employee_id = $1
			order by period desc, created_at desc
		`
		args = append(args, employeeID)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []payroll.Commission
	for rows.Next() {
		var c payroll.Commission
		if err := rows.Scan(&c.ID, &c.EmployeeID, &c.Period, &c.AmountCent, &c.Currency, &c.Status, &c.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
