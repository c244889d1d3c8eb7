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

// QuarterlyInput holds the financials a portfolio company self-reports for
// one fiscal quarter, denominated in the company's reporting currency. All
// monetary amounts are for the quarter; nothing here is annualized.
type QuarterlyInput struct {
	ID        uuid.UUID
	CompanyID uuid.UUID

	// Currency is the ISO-4217 code the amounts below are denominated in.
	Currency string

	TotalRevenue          decimal.Decimal
	RecurringRevenue      decimal.Decimal
	GrossProfit           decimal.Decimal
	SalesMarketingExpense decimal.Decimal
	TotalOperatingExpense decimal.Decimal
	EBITDA                decimal.Decimal
	NetIncome             decimal.Decimal

	// CashBurn is the net cash consumed during the quarter.
	CashBurn    decimal.Decimal
	CashBalance decimal.Decimal

	// DebtOutstanding is optional; companies with no debt report nothing.
	DebtOutstanding decimal.NullDecimal

	Employees int
	Customers *int

	// FiscalReportingDate is the last day of the fiscal quarter and the
	// as-of date used when converting amounts to other currencies.
	FiscalReportingDate    time.Time
	FiscalReportingQuarter int

	ReportingYear    int
	ReportingQuarter int

	CreatedDate    time.Time
	CreatedBy      string
	LastUpdateDate time.Time
	LastUpdatedBy  string
}

// Period returns the reporting period the input covers.
func (input *QuarterlyInput) Period() Period {
	return Period{Year: input.ReportingYear, Quarter: input.ReportingQuarter}
}

// SaveTx upserts the quarterly input using the provided transaction. Inputs
// are unique per (company, year, quarter); re-importing a period overwrites
// the previous figures and stamps the update author and time.
func (input *QuarterlyInput) SaveTx(ctx context.Context, tx pgx.Tx) error {
	if input.ID == uuid.Nil {
		input.ID = uuid.New()
	}

	_, err := tx.Exec(ctx, `INSERT INTO metrics_input (
		"id",
		"company_id",
		"currency",
		"total_revenue",
		"recurring_revenue",
		"gross_profit",
		"sales_marketing_expense",
		"total_operating_expense",
		"ebitda",
		"net_income",
		"cash_burn",
		"cash_balance",
		"debt_outstanding",
		"employees",
		"customers",
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
		$17, $18, $19, now(), $20, now(), $20
	) ON CONFLICT ON CONSTRAINT metrics_input_period_key DO UPDATE SET
		currency = EXCLUDED.currency,
		total_revenue = EXCLUDED.total_revenue,
		recurring_revenue = EXCLUDED.recurring_revenue,
		gross_profit = EXCLUDED.gross_profit,
		sales_marketing_expense = EXCLUDED.sales_marketing_expense,
		total_operating_expense = EXCLUDED.total_operating_expense,
		ebitda = EXCLUDED.ebitda,
		net_income = EXCLUDED.net_income,
		cash_burn = EXCLUDED.cash_burn,
		cash_balance = EXCLUDED.cash_balance,
		debt_outstanding = EXCLUDED.debt_outstanding,
		employees = EXCLUDED.employees,
		customers = EXCLUDED.customers,
		fiscal_reporting_date = EXCLUDED.fiscal_reporting_date,
		fiscal_reporting_quarter = EXCLUDED.fiscal_reporting_quarter,
		last_update_date = now(),
		last_updated_by = EXCLUDED.last_updated_by`,
		input.ID,
		input.CompanyID,
		input.Currency,
		input.TotalRevenue,
		input.RecurringRevenue,
		input.GrossProfit,
		input.SalesMarketingExpense,
		input.TotalOperatingExpense,
		input.EBITDA,
		input.NetIncome,
		input.CashBurn,
		input.CashBalance,
		input.DebtOutstanding,
		input.Employees,
		input.Customers,
		input.FiscalReportingDate,
		input.FiscalReportingQuarter,
		input.ReportingYear,
		input.ReportingQuarter,
		input.CreatedBy,
	)

	if err != nil {
		log.Error().Err(err).Object("QuarterlyInput", input).Msg("save quarterly input to DB failed")
	}

	return err
}

// SaveDB upserts the quarterly input in its own transaction.
func (input *QuarterlyInput) SaveDB(ctx context.Context, dbConn *pgxpool.Conn) error {
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

	if err := input.SaveTx(ctx, tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (input *QuarterlyInput) MarshalZerologObject(e *zerolog.Event) {
	e.Str("CompanyID", input.CompanyID.String())
	e.Str("Currency", input.Currency)
	e.Str("Period", input.Period().String())
	e.Time("FiscalReportingDate", input.FiscalReportingDate)
}
