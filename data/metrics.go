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
package data

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// DerivedMetrics holds the ratios and trailing aggregates computed from one
// quarterly input. Amounts are denominated in the company's reporting
// currency. Fields that depend on history the company may not have yet
// (quarter-over-quarter growth, the LTM block) are null until enough
// quarters exist.
type DerivedMetrics struct {
	ID        uuid.UUID
	CompanyID uuid.UUID

	Currency string

	ARR                             decimal.Decimal
	RecurringPercentageRevenue      decimal.Decimal
	RevenuePerFTE                   decimal.Decimal
	GrossProfitPerFTE               decimal.Decimal
	GrossProfitMargin               decimal.Decimal
	SalesMarketingPercentageRevenue decimal.Decimal
	TotalOperatingPercentageRevenue decimal.Decimal
	MonthlyCashBurn                 decimal.Decimal
	RunwayMonths                    decimal.Decimal

	// Quarter-over-quarter measures; null when the immediately preceding
	// quarter has not been reported.
	RevenueGrowth      decimal.NullDecimal
	EmployeeGrowthRate decimal.NullDecimal
	ChangeInCash       decimal.NullDecimal

	// Last-twelve-month aggregates; null unless the four consecutive
	// quarters ending at this period have all been reported.
	LtmTotalRevenue          decimal.NullDecimal
	LtmGrossProfit           decimal.NullDecimal
	LtmSalesMarketingExpense decimal.NullDecimal
	LtmOperatingExpense      decimal.NullDecimal
	LtmEBITDA                decimal.NullDecimal
	LtmNetIncome             decimal.NullDecimal
	LtmGrossMargin           decimal.NullDecimal
	LtmEBITDAMargin          decimal.NullDecimal
	LtmNetIncomeMargin       decimal.NullDecimal

	FiscalReportingDate    time.Time
	FiscalReportingQuarter int

	ReportingYear    int
	ReportingQuarter int

	CreatedDate    time.Time
	CreatedBy      string
	LastUpdateDate time.Time
	LastUpdatedBy  string
}

// Period returns the reporting period the metrics cover.
func (metrics *DerivedMetrics) Period() Period {
	return Period{Year: metrics.ReportingYear, Quarter: metrics.ReportingQuarter}
}

// SaveTx upserts the derived metrics using the provided transaction. Metrics
// are unique per (company, year, quarter); re-running a transform overwrites
// the previous values and stamps the update author and time.
func (metrics *DerivedMetrics) SaveTx(ctx context.Context, tx pgx.Tx) error {
	if metrics.ID == uuid.Nil {
		metrics.ID = uuid.New()
	}

	_, err := tx.Exec(ctx, `INSERT INTO quarterly_reporting_metrics (
		"id",
		"company_id",
		"currency",
		"arr",
		"recurring_percentage_revenue",
		"revenue_per_fte",
		"gross_profit_per_fte",
		"gross_profit_margin",
		"sales_marketing_percentage_revenue",
		"total_operating_percentage_revenue",
		"monthly_cash_burn",
		"runway_months",
		"revenue_growth",
		"employee_growth_rate",
		"change_in_cash",
		"ltm_total_revenue",
		"ltm_gross_profit",
		"ltm_sales_marketing_expense",
		"ltm_operating_expense",
		"ltm_ebitda",
		"ltm_net_income",
		"ltm_gross_margin",
		"ltm_ebitda_margin",
		"ltm_net_income_margin",
		"fiscal_reporting_date",
		"fiscal_reporting_quarter",
		"reporting_year",
		"reporting_quarter",
		"created_date",
		"created_by",
		"last_update_date",
		"last_updated_by"
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, now(),
		$29, now(), $29
	) ON CONFLICT ON CONSTRAINT quarterly_reporting_metrics_period_key DO UPDATE SET
		currency = EXCLUDED.currency,
		arr = EXCLUDED.arr,
		recurring_percentage_revenue = EXCLUDED.recurring_percentage_revenue,
		revenue_per_fte = EXCLUDED.revenue_per_fte,
		gross_profit_per_fte = EXCLUDED.gross_profit_per_fte,
		gross_profit_margin = EXCLUDED.gross_profit_margin,
		sales_marketing_percentage_revenue = EXCLUDED.sales_marketing_percentage_revenue,
		total_operating_percentage_revenue = EXCLUDED.total_operating_percentage_revenue,
		monthly_cash_burn = EXCLUDED.monthly_cash_burn,
		runway_months = EXCLUDED.runway_months,
		revenue_growth = EXCLUDED.revenue_growth,
		employee_growth_rate = EXCLUDED.employee_growth_rate,
		change_in_cash = EXCLUDED.change_in_cash,
		ltm_total_revenue = EXCLUDED.ltm_total_revenue,
		ltm_gross_profit = EXCLUDED.ltm_gross_profit,
		ltm_sales_marketing_expense = EXCLUDED.ltm_sales_marketing_expense,
		ltm_operating_expense = EXCLUDED.ltm_operating_expense,
		ltm_ebitda = EXCLUDED.ltm_ebitda,
		ltm_net_income = EXCLUDED.ltm_net_income,
		ltm_gross_margin = EXCLUDED.ltm_gross_margin,
		ltm_ebitda_margin = EXCLUDED.ltm_ebitda_margin,
		ltm_net_income_margin = EXCLUDED.ltm_net_income_margin,
		fiscal_reporting_date = EXCLUDED.fiscal_reporting_date,
		fiscal_reporting_quarter = EXCLUDED.fiscal_reporting_quarter,
		last_update_date = now(),
		last_updated_by = EXCLUDED.last_updated_by`,
		metrics.ID,
		metrics.CompanyID,
		metrics.Currency,
		metrics.ARR,
		metrics.RecurringPercentageRevenue,
		metrics.RevenuePerFTE,
		metrics.GrossProfitPerFTE,
		metrics.GrossProfitMargin,
		metrics.SalesMarketingPercentageRevenue,
		metrics.TotalOperatingPercentageRevenue,
		metrics.MonthlyCashBurn,
		metrics.RunwayMonths,
		metrics.RevenueGrowth,
		metrics.EmployeeGrowthRate,
		metrics.ChangeInCash,
		metrics.LtmTotalRevenue,
		metrics.LtmGrossProfit,
		metrics.LtmSalesMarketingExpense,
		metrics.LtmOperatingExpense,
		metrics.LtmEBITDA,
		metrics.LtmNetIncome,
		metrics.LtmGrossMargin,
		metrics.LtmEBITDAMargin,
		metrics.LtmNetIncomeMargin,
		metrics.FiscalReportingDate,
		metrics.FiscalReportingQuarter,
		metrics.ReportingYear,
		metrics.ReportingQuarter,
		metrics.CreatedBy,
	)

	if err != nil {
		log.Error().Err(err).Object("DerivedMetrics", metrics).Msg("save derived metrics to DB failed")
	}

	return err
}

// SaveDB upserts the derived metrics in its own transaction.
func (metrics *DerivedMetrics) SaveDB(ctx context.Context, dbConn *pgxpool.Conn) error {
	tx, err := dbConn.Begin(ctx)
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

	if err := metrics.SaveTx(ctx, tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (metrics *DerivedMetrics) MarshalZerologObject(e *zerolog.Event) {
	e.Str("CompanyID", metrics.CompanyID.String())
	e.Str("Currency", metrics.Currency)
	e.Str("Period", metrics.Period().String())
	e.Str("ARR", metrics.ARR.String())
}
