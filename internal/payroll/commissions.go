// Package payroll exposes the sales compensation read model.
package payroll

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("payroll: not found")

// Commission is one sales commission line for an employee and period.
type Commission struct {
	ID         string    `json:"id"`
	EmployeeID string    `json:"employee_id"`
	Period     string    `json:"period"`
	AmountCent int64     `json:"amount_cent"`
	Currency   string    `json:"currency"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store reads commission lines. An empty employeeID lists every employee's
// lines; callers narrow it according to their scope.
type Store interface {
	ListCommissions(ctx context.Context, employeeID string) ([]Commission, error)
}
