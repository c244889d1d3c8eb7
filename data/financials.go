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

// ReportingFinancials is one quarterly input restated in a single currency.
// Every monetary amount on the record was produced with the same exchange
// rate, recorded in ExchangeRateUsed. The record in the company's own
// reporting currency carries a rate of 1.
type ReportingFinancials struct {
	ID        uuid.UUID
	CompanyID uuid.UUID

	Currency string

	// ExchangeRateUsed is the rate applied to every amount on this record.
	ExchangeRateUsed decimal.Decimal

	TotalRevenue          decimal.Decimal
	RecurringRevenue      decimal.Decimal
	GrossProfit           decimal.Decimal
	SalesMarketingExpense decimal.Decimal
	TotalOperatingExpense decimal.Decimal
	EBITDA                decimal.Decimal
	NetIncome             decimal.Decimal
	CashBurn              decimal.Decimal
	CashBalance           decimal.Decimal
	DebtOutstanding       decimal.NullDecimal

	FiscalReportingDate    time.Time
	FiscalReportingQuarter int

	ReportingYear    int
	ReportingQuarter int

	CreatedDate    time.Time
	CreatedBy      string
	LastUpdateDate time.Time
	LastUpdatedBy  string
}

// Period returns the reporting period the record covers.
func (financials *ReportingFinancials) Period() Period {
	return Period{Year: financials.ReportingYear, Quarter: financials.ReportingQuarter}
}

// SaveTx upserts the converted financials using the provided transaction.
// Records are unique per (company, currency, year, quarter); re-running a
// transform overwrites the previous conversion and stamps the update author
// and time.
func (financials *ReportingFinancials) SaveTx(ctx context.Context, tx pgx.Tx) error {
	if financials.ID == uuid.Nil {
		financials.ID = uuid.New()
	}

	_, err := tx.Exec(ctx, `INSERT INTO reporting_financials (
		"id",
		"company_id",
		"currency",
		"exchange_rate_used",
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
		$17, $18, now(), $19, now(), $19
	) ON CONFLICT ON CONSTRAINT reporting_financials_period_key DO UPDATE SET
		exchange_rate_used = EXCLUDED.exchange_rate_used,
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
		fiscal_reporting_date = EXCLUDED.fiscal_reporting_date,
		fiscal_reporting_quarter = EXCLUDED.fiscal_reporting_quarter,
		last_update_date = now(),
		last_updated_by = EXCLUDED.last_updated_by`,
		financials.ID,
		financials.CompanyID,
		financials.Currency,
		financials.ExchangeRateUsed,
		financials.TotalRevenue,
		financials.RecurringRevenue,
		financials.GrossProfit,
		financials.SalesMarketingExpense,
		financials.TotalOperatingExpense,
		financials.EBITDA,
		financials.NetIncome,
		financials.CashBurn,
		financials.CashBalance,
		financials.DebtOutstanding,
		financials.FiscalReportingDate,
		financials.FiscalReportingQuarter,
		financials.ReportingYear,
		financials.ReportingQuarter,
		financials.CreatedBy,
	)

	if err != nil {
		log.Error().Err(err).Object("ReportingFinancials", financials).Msg("save reporting financials to DB failed")
	}

	return err
}

// SaveDB upserts the converted financials in its own transaction.
func (financials *ReportingFinancials) SaveDB(ctx context.Context, dbConn *pgxpool.Conn) error {
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

	if err := financials.SaveTx(ctx, tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (financials *ReportingFinancials) MarshalZerologObject(e *zerolog.Event) {
	e.Str("CompanyID", financials.CompanyID.String())
	e.Str("Currency", financials.Currency)
	e.Str("Period", financials.Period().String())
	e.Str("ExchangeRateUsed", financials.ExchangeRateUsed.String())
}
