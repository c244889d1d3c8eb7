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
	"sync"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/penny-vault/pvmetrics/data"
	"github.com/rs/zerolog/log"
)

type Library struct {
	DBUrl string
	Name  string
	Owner string

	Pool *pgxpool.Pool
}

// newPool opens a connection pool whose connections scan numeric columns
// into decimals instead of floats.
func newPool(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, err
	}

	config.AfterConnect = func(_ context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	return pgxpool.NewWithConfig(ctx, config)
}

// Connect to the database configured for the library
func (myLibrary *Library) Connect(ctx context.Context) error {
	if myLibrary.Pool != nil {
		return nil
	}

	pool, err := newPool(ctx, myLibrary.DBUrl)
	if err != nil {
		return err
	}
	myLibrary.Pool = pool

	return nil
}

// Close the database pool
func (myLibrary *Library) Close() {
	myLibrary.Pool.Close()
}

// NewFromDB creates a new library object with values from the database
func NewFromDB(ctx context.Context, dbURL string) (*Library, error) {
	pool, err := newPool(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	myLibrary := Library{
		DBUrl: dbURL,
		Pool:  pool,
	}

	if err := conn.QueryRow(ctx, "SELECT name, owner FROM library").Scan(&myLibrary.Name, &myLibrary.Owner); err != nil {
		return nil, err
	}

	return &myLibrary, nil
}

// SaveDB creates a new record in the library table for this library
func (myLibrary *Library) SaveDB(ctx context.Context) error {
	conn, err := myLibrary.Pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `INSERT INTO library ("name", "owner") VALUES ($1, $2)`, myLibrary.Name, myLibrary.Owner)
	return err
}

// NumCompanies returns the total count of portfolio companies in the library
func (myLibrary *Library) NumCompanies(ctx context.Context) (int, error) {
	conn, err := myLibrary.Pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	count := 0
	err = conn.QueryRow(ctx, "SELECT count(*) FROM companies").Scan(&count)
	return count, err
}

// NumActiveCompanies returns the count of companies that still report
// quarterly financials
func (myLibrary *Library) NumActiveCompanies(ctx context.Context) (int, error) {
	conn, err := myLibrary.Pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	count := 0
	err = conn.QueryRow(ctx, "SELECT count(*) FROM companies WHERE reporting_status='ACTIVE'").Scan(&count)
	return count, err
}

// NumInputs returns the total count of reported quarters across all companies
func (myLibrary *Library) NumInputs(ctx context.Context) (int, error) {
	conn, err := myLibrary.Pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	count := 0
	err = conn.QueryRow(ctx, "SELECT count(*) FROM metrics_input").Scan(&count)
	return count, err
}

// NumReports returns the total count of restated financials records
func (myLibrary *Library) NumReports(ctx context.Context) (int, error) {
	conn, err := myLibrary.Pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	count := 0
	err = conn.QueryRow(ctx, "SELECT count(*) FROM reporting_financials").Scan(&count)
	return count, err
}

// NumMetrics returns the total count of derived metrics records
func (myLibrary *Library) NumMetrics(ctx context.Context) (int, error) {
	conn, err := myLibrary.Pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	count := 0
	err = conn.QueryRow(ctx, "SELECT count(*) FROM quarterly_reporting_metrics").Scan(&count)
	return count, err
}

// LastTransformed returns the time the most recent transformation ran
func (myLibrary *Library) LastTransformed(ctx context.Context) (time.Time, error) {
	conn, err := myLibrary.Pool.Acquire(ctx)
	if err != nil {
		return time.Time{}, err
	}
	defer conn.Release()

	var lastTransformed time.Time
	err = conn.QueryRow(ctx, "SELECT coalesce(max(last_update_date), '0001-01-01'::timestamp) FROM quarterly_reporting_metrics").Scan(&lastTransformed)
	if err != nil {
		return time.Time{}, err
	}

	return lastTransformed, nil
}

// SaveInputs continuously reads quarterly inputs from the queue and persists
// them until the queue closes
func (myLibrary *Library) SaveInputs(queue <-chan *data.QuarterlyInput, wg *sync.WaitGroup) {
	ctx := context.Background()
	defer wg.Done()

	conn, err := myLibrary.Pool.Acquire(ctx)
	if err != nil {
		log.Panic().Err(err).Msg("cannot acquire database connection")
		return
	}
	defer conn.Release()

	for input := range queue {
		if err := input.SaveDB(ctx, conn); err != nil {
			log.Error().Err(err).Object("QuarterlyInput", input).Msg("cannot save quarterly input to database")
		}
	}
}
