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

type Company struct {
	ID   uuid.UUID
	Name string

	// ReportingStatus indicates whether the company still reports quarterly
	// financials. Only ACTIVE companies are picked up by batch transforms.
	ReportingStatus ReportingStatus

	// ReportingCurrency is the ISO-4217 code the company reports its
	// financials in.
	ReportingCurrency string

	Fund            string
	LocationCountry string
	CustomerType    CustomerType
	RevenueType     RevenueType

	EquityRaised       decimal.NullDecimal
	PostMoneyValuation decimal.NullDecimal

	// YearEndDate is the last day of the company's fiscal year; used to
	// align fiscal quarters with calendar quarters.
	YearEndDate time.Time

	CreatedDate    time.Time
	CreatedBy      string
	LastUpdateDate time.Time
	LastUpdatedBy  string
}

// SaveTx upserts the company using the provided transaction. Companies are
// unique by name; saving an existing name overwrites its profile and stamps
// the update author and time.
func (company *Company) SaveTx(ctx context.Context, tx pgx.Tx) error {
	if company.ID == uuid.Nil {
		company.ID = uuid.New()
	}

	_, err := tx.Exec(ctx, `INSERT INTO companies (
		"id",
		"name",
		"reporting_status",
		"reporting_currency",
		"fund",
		"location_country",
		"customer_type",
		"revenue_type",
		"equity_raised",
		"post_money_valuation",
		"year_end_date",
		"created_date",
		"created_by",
		"last_update_date",
		"last_updated_by"
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), $12, now(), $12
	) ON CONFLICT ON CONSTRAINT companies_name_key DO UPDATE SET
		reporting_status = EXCLUDED.reporting_status,
		reporting_currency = EXCLUDED.reporting_currency,
		fund = EXCLUDED.fund,
		location_country = EXCLUDED.location_country,
		customer_type = EXCLUDED.customer_type,
		revenue_type = EXCLUDED.revenue_type,
		equity_raised = EXCLUDED.equity_raised,
		post_money_valuation = EXCLUDED.post_money_valuation,
		year_end_date = EXCLUDED.year_end_date,
		last_update_date = now(),
		last_updated_by = EXCLUDED.last_updated_by`,
		company.ID,
		company.Name,
		company.ReportingStatus,
		company.ReportingCurrency,
		company.Fund,
		company.LocationCountry,
		company.CustomerType,
		company.RevenueType,
		company.EquityRaised,
		company.PostMoneyValuation,
		company.YearEndDate,
		company.CreatedBy,
	)

	if err != nil {
		log.Error().Err(err).Object("Company", company).Msg("save company to DB failed")
	}

	return err
}

// SaveDB upserts the company in its own transaction.
func (company *Company) SaveDB(ctx context.Context, dbConn *pgxpool.Conn) error {
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

	if err := company.SaveTx(ctx, tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (company *Company) MarshalZerologObject(e *zerolog.Event) {
	e.Str("ID", company.ID.String())
	e.Str("Name", company.Name)
	e.Str("ReportingCurrency", company.ReportingCurrency)
	e.Str("ReportingStatus", string(company.ReportingStatus))
}
