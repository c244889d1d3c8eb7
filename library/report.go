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
	"errors"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/penny-vault/pvmetrics/data"
	"github.com/rs/zerolog/log"
)

// SaveReport persists the restated financials and their derived metrics in a
// single transaction so a reporting period is never half written
func (myLibrary *Library) SaveReport(ctx context.Context, financials []*data.ReportingFinancials, derived *data.DerivedMetrics) error {
	conn, err := myLibrary.Pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if err := tx.Rollback(ctx); err != nil {
			if !errors.Is(err, pgx.ErrTxClosed) {
				log.Error().Err(err).Msg("error rollingback tx")
			}
		}
	}()

	for _, record := range financials {
		if err := record.SaveTx(ctx, tx); err != nil {
			return err
		}
	}

	if derived != nil {
		if err := derived.SaveTx(ctx, tx); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// FinancialsForPeriod returns restated financials for one reporting period;
// a year of 0 returns every period
func (myLibrary *Library) FinancialsForPeriod(ctx context.Context, year, quarter int) ([]*data.ReportingFinancials, error) {
	query := `SELECT id, company_id, currency, exchange_rate_used, total_revenue,
	recurring_revenue, gross_profit, sales_marketing_expense, total_operating_expense,
	ebitda, net_income, cash_burn, cash_balance, debt_outstanding, fiscal_reporting_date,
	fiscal_reporting_quarter, reporting_year, reporting_quarter, created_date, created_by,
	last_update_date, last_updated_by FROM reporting_financials`

	args := []any{}
	if year != 0 {
		query += ` WHERE reporting_year = $1 AND reporting_quarter = $2`
		args = append(args, year, quarter)
	}

	query += ` ORDER BY reporting_year, reporting_quarter, company_id, currency`

	var financials []*data.ReportingFinancials
	err := pgxscan.Select(ctx, myLibrary.Pool, &financials, query, args...)
	return financials, err
}

// MetricsForPeriod returns derived metrics for one reporting period; a year
// of 0 returns every period
func (myLibrary *Library) MetricsForPeriod(ctx context.Context, year, quarter int) ([]*data.DerivedMetrics, error) {
	query := `SELECT id, company_id, currency, arr, recurring_percentage_revenue,
	revenue_per_fte, gross_profit_per_fte, gross_profit_margin,
	sales_marketing_percentage_revenue, total_operating_percentage_revenue,
	monthly_cash_burn, runway_months, revenue_growth, employee_growth_rate, change_in_cash,
	ltm_total_revenue, ltm_gross_profit, ltm_sales_marketing_expense, ltm_operating_expense,
	ltm_ebitda, ltm_net_income, ltm_gross_margin, ltm_ebitda_margin, ltm_net_income_margin,
	fiscal_reporting_date, fiscal_reporting_quarter, reporting_year, reporting_quarter,
	created_date, created_by, last_update_date, last_updated_by FROM quarterly_reporting_metrics`

	args := []any{}
	if year != 0 {
		query += ` WHERE reporting_year = $1 AND reporting_quarter = $2`
		args = append(args, year, quarter)
	}

	query += ` ORDER BY reporting_year, reporting_quarter, company_id`

	var metrics []*data.DerivedMetrics
	err := pgxscan.Select(ctx, myLibrary.Pool, &metrics, query, args...)
	return metrics, err
}
