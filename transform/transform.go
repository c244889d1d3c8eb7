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
package transform

import (
	"context"
	"errors"
	"fmt"
	"os/user"
	"time"

	"github.com/google/uuid"
	"github.com/penny-vault/pvmetrics/data"
	"github.com/penny-vault/pvmetrics/metrics"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var ErrInputNotFound = errors.New("no quarterly input for the requested reporting period")

// Store is the persistence surface the transformation pipeline needs.
// *library.Library satisfies it.
type Store interface {
	// Input returns the quarterly input for one company and reporting
	// period, or nil when the period has not been reported.
	Input(ctx context.Context, companyID uuid.UUID, year, quarter int) (*data.QuarterlyInput, error)

	// TrailingInputs returns up to count reported quarters at and before
	// the given period, most recent first.
	TrailingInputs(ctx context.Context, companyID uuid.UUID, year, quarter, count int) ([]*data.QuarterlyInput, error)

	// SaveReport persists the restated financials and derived metrics in a
	// single transaction.
	SaveReport(ctx context.Context, financials []*data.ReportingFinancials, derived *data.DerivedMetrics) error
}

// RateSource provides historical exchange rates. *fx.Client satisfies it.
type RateSource interface {
	Rate(ctx context.Context, from, to string, date time.Time) (decimal.Decimal, error)
}

// Pipeline restates quarterly inputs in the settlement currencies and
// derives reporting metrics from them.
type Pipeline struct {
	store Store
	rates RateSource
}

func New(store Store, rates RateSource) *Pipeline {
	return &Pipeline{
		store: store,
		rates: rates,
	}
}

// Transform runs the full transformation for one company and reporting
// period: the quarterly input is restated in the company's reporting
// currency and each settlement currency, derived metrics are calculated,
// and everything is persisted in one transaction. Rerunning a period
// overwrites the previous results. A missing input or a failed rate lookup
// aborts the run before anything is written; missing trailing history does
// not, the history dependent metrics are simply left null. The financials
// in the company's reporting currency and the derived metrics are returned.
func (pipeline *Pipeline) Transform(ctx context.Context, companyID uuid.UUID, year, quarter int) (*data.ReportingFinancials, *data.DerivedMetrics, error) {
	logger := zerolog.Ctx(ctx)
	period := data.Period{Year: year, Quarter: quarter}

	logger.Info().Str("CompanyID", companyID.String()).Str("Period", period.String()).
		Msg("starting transformation")

	input, err := pipeline.store.Input(ctx, companyID, year, quarter)
	if err != nil {
		return nil, nil, err
	}

	if input == nil {
		logger.Error().Str("CompanyID", companyID.String()).Str("Period", period.String()).
			Msg("no quarterly input reported for period")
		return nil, nil, fmt.Errorf("%w: company %s period %s", ErrInputNotFound, companyID, period)
	}

	converted, err := pipeline.convertFinancials(ctx, input)
	if err != nil {
		return nil, nil, err
	}

	trailing, err := pipeline.store.TrailingInputs(ctx, companyID, year, quarter, metrics.LTMQuarters)
	if err != nil {
		return nil, nil, err
	}

	derived := metrics.Derive(input, trailing)
	if !derived.LtmTotalRevenue.Valid {
		logger.Info().Str("CompanyID", companyID.String()).Str("Period", period.String()).
			Int("NumTrailingQuarters", len(trailing)).
			Msg("not enough consecutive history for ltm metrics; leaving them null")
	}

	// make sure current user is stamped on everything we persist
	if user, err := user.Current(); err != nil {
		return nil, nil, err
	} else {
		for _, financials := range converted {
			financials.CreatedBy = user.Username
		}

		derived.CreatedBy = user.Username
	}

	if err := pipeline.store.SaveReport(ctx, converted, derived); err != nil {
		return nil, nil, err
	}

	logger.Info().Str("CompanyID", companyID.String()).Str("Period", period.String()).
		Msg("transformation complete")

	return converted[0], derived, nil
}
