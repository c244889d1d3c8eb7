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
	"github.com/penny-vault/pvmetrics/data"
)

// Companies returns every portfolio company in the library sorted by name
func (myLibrary *Library) Companies(ctx context.Context) ([]*data.Company, error) {
	var companies []*data.Company
	err := pgxscan.Select(ctx, myLibrary.Pool, &companies,
		`SELECT id, name, reporting_status, reporting_currency, fund, location_country,
customer_type, revenue_type, equity_raised, post_money_valuation, year_end_date,
created_date, created_by, last_update_date, last_updated_by FROM companies ORDER BY name`)
	return companies, err
}

// ActiveCompanies returns the companies that still report quarterly
// financials sorted by name
func (myLibrary *Library) ActiveCompanies(ctx context.Context) ([]*data.Company, error) {
	var companies []*data.Company
	err := pgxscan.Select(ctx, myLibrary.Pool, &companies,
		`SELECT id, name, reporting_status, reporting_currency, fund, location_country,
customer_type, revenue_type, equity_raised, post_money_valuation, year_end_date,
created_date, created_by, last_update_date, last_updated_by FROM companies
WHERE reporting_status = 'ACTIVE' ORDER BY name`)
	return companies, err
}

// CompanyFromID fetches the company whose id begins with key or whose name
// matches key exactly
func (myLibrary *Library) CompanyFromID(ctx context.Context, key string) (*data.Company, error) {
	conn, err := myLibrary.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	company := &data.Company{}

	rows, err := conn.Query(ctx, `SELECT id, name, reporting_status, reporting_currency, fund,
	location_country, customer_type, revenue_type, equity_raised, post_money_valuation,
	year_end_date, created_date, created_by, last_update_date, last_updated_by FROM companies
	WHERE id::text LIKE $1 || '%' OR name = $2 LIMIT 1`, key, key)
	if err != nil {
		return nil, err
	}

	if err := pgxscan.ScanOne(company, rows); err != nil {
		return nil, err
	}

	return company, nil
}

// ReportingCurrencies returns the distinct currencies portfolio companies
// report their financials in
func (myLibrary *Library) ReportingCurrencies(ctx context.Context) ([]string, error) {
	var currencies []string
	err := pgxscan.Select(ctx, myLibrary.Pool, &currencies,
		`SELECT DISTINCT reporting_currency FROM companies ORDER BY reporting_currency`)
	return currencies, err
}
