// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package library

import (
	"context"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/penny-vault/pvmetrics/data"
)

// Input returns the quarterly input a company reported for one period, or
// nil when the period has not been reported
func (myLibrary *Library) Input(ctx context.Context, companyID uuid.UUID, year, quarter int) (*data.QuarterlyInput, error) {
	conn, err := myLibrary.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	input := &data.QuarterlyInput{}

	rows, err := conn.Query(ctx, `SELECT id, company_id, currency, total_revenue,
	recurring_revenue, gross_profit, sales_marketing_expense, total_operating_expense,
	ebitda, net_income, cash_burn, cash_balance, debt_outstanding, employees, customers,
	fiscal_reporting_date, fiscal_reporting_quarter, reporting_year, reporting_quarter,
	created_date, created_by, last_update_date, last_updated_by FROM metrics_input
	WHERE company_id = $1 AND reporting_year = $2 AND reporting_quarter = $3`,
		companyID, year, quarter)
	if err != nil {
		return nil, err
	}

	if err := pgxscan.ScanOne(input, rows); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}

		return nil, err
	}

	return input, nil
}

// TrailingInputs returns up to count reported quarters at and before the
// given period, most recent first
func (myLibrary *Library) TrailingInputs(ctx context.Context, companyID uuid.UUID, year, quarter, count int) ([]*data.QuarterlyInput, error) {
	var inputs []*data.QuarterlyInput
	err := pgxscan.Select(ctx, myLibrary.Pool, &inputs, `SELECT id, company_id, currency,
	total_revenue, recurring_revenue, gross_profit, sales_marketing_expense,
	total_operating_expense, ebitda, net_income, cash_burn, cash_balance, debt_outstanding,
	employees, customers, fiscal_reporting_date, fiscal_reporting_quarter, reporting_year,
	reporting_quarter, created_date, created_by, last_update_date, last_updated_by
	FROM metrics_input
	WHERE company_id = $1
	  AND (reporting_year < $2 OR (reporting_year = $2 AND reporting_quarter <= $3))
	ORDER BY reporting_year DESC, reporting_quarter DESC
	LIMIT $4`, companyID, year, quarter, count)
	return inputs, err
}

// InputsForCompany returns every quarter a company has reported, most recent
// first
func (myLibrary *Library) InputsForCompany(ctx context.Context, companyID uuid.UUID) ([]*data.QuarterlyInput, error) {
	var inputs []*data.QuarterlyInput
	err := pgxscan.Select(ctx, myLibrary.Pool, &inputs, `SELECT id, company_id, currency,
	total_revenue, recurring_revenue, gross_profit, sales_marketing_expense,
	total_operating_expense, ebitda, net_income, cash_burn, cash_balance, debt_outstanding,
	employees, customers, fiscal_reporting_date, fiscal_reporting_quarter, reporting_year,
	reporting_quarter, created_date, created_by, last_update_date, last_updated_by
	FROM metrics_input
	WHERE company_id = $1
	ORDER BY reporting_year DESC, reporting_quarter DESC`, companyID)
	return inputs, err
}
