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

	"github.com/penny-vault/pvmetrics/data"
	"github.com/penny-vault/pvmetrics/fx"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// monetaryField binds one monetary amount on the quarterly input to its slot
// on the restated financials. The converter and the record constructor both
// iterate this table, so a new monetary field is added in exactly one place.
type monetaryField struct {
	Get func(input *data.QuarterlyInput) decimal.NullDecimal
	Set func(financials *data.ReportingFinancials, value decimal.NullDecimal)
}

var monetaryFields = []monetaryField{
	{
		Get: func(input *data.QuarterlyInput) decimal.NullDecimal { return required(input.TotalRevenue) },
		Set: func(financials *data.ReportingFinancials, value decimal.NullDecimal) {
			financials.TotalRevenue = value.Decimal
		},
	},
	{
		Get: func(input *data.QuarterlyInput) decimal.NullDecimal { return required(input.RecurringRevenue) },
		Set: func(financials *data.ReportingFinancials, value decimal.NullDecimal) {
			financials.RecurringRevenue = value.Decimal
		},
	},
	{
		Get: func(input *data.QuarterlyInput) decimal.NullDecimal { return required(input.GrossProfit) },
		Set: func(financials *data.ReportingFinancials, value decimal.NullDecimal) {
			financials.GrossProfit = value.Decimal
		},
	},
	{
		Get: func(input *data.QuarterlyInput) decimal.NullDecimal { return required(input.SalesMarketingExpense) },
		Set: func(financials *data.ReportingFinancials, value decimal.NullDecimal) {
			financials.SalesMarketingExpense = value.Decimal
		},
	},
	{
		Get: func(input *data.QuarterlyInput) decimal.NullDecimal { return required(input.TotalOperatingExpense) },
		Set: func(financials *data.ReportingFinancials, value decimal.NullDecimal) {
			financials.TotalOperatingExpense = value.Decimal
		},
	},
	{
		Get: func(input *data.QuarterlyInput) decimal.NullDecimal { return required(input.EBITDA) },
		Set: func(financials *data.ReportingFinancials, value decimal.NullDecimal) {
			financials.EBITDA = value.Decimal
		},
	},
	{
		Get: func(input *data.QuarterlyInput) decimal.NullDecimal { return required(input.NetIncome) },
		Set: func(financials *data.ReportingFinancials, value decimal.NullDecimal) {
			financials.NetIncome = value.Decimal
		},
	},
	{
		Get: func(input *data.QuarterlyInput) decimal.NullDecimal { return required(input.CashBurn) },
		Set: func(financials *data.ReportingFinancials, value decimal.NullDecimal) {
			financials.CashBurn = value.Decimal
		},
	},
	{
		Get: func(input *data.QuarterlyInput) decimal.NullDecimal { return required(input.CashBalance) },
		Set: func(financials *data.ReportingFinancials, value decimal.NullDecimal) {
			financials.CashBalance = value.Decimal
		},
	},
	{
		Get: func(input *data.QuarterlyInput) decimal.NullDecimal { return input.DebtOutstanding },
		Set: func(financials *data.ReportingFinancials, value decimal.NullDecimal) {
			financials.DebtOutstanding = value
		},
	},
}

// convertFinancials restates the quarterly input in its own reporting
// currency plus every settlement currency. One rate per target currency is
// fetched as of the input's fiscal reporting date and applied to every
// monetary field, so a restated record never mixes rates. The record in the
// input's own currency always comes first and carries the amounts verbatim
// with a rate of 1. Any rate lookup failure aborts the conversion.
func (pipeline *Pipeline) convertFinancials(ctx context.Context, input *data.QuarterlyInput) ([]*data.ReportingFinancials, error) {
	logger := zerolog.Ctx(ctx)

	converted := make([]*data.ReportingFinancials, 0, len(fx.SettlementCurrencies)+1)
	converted = append(converted, restate(input, input.Currency, decimal.NewFromInt(1), identity))

	for _, target := range fx.SettlementCurrencies {
		if target == input.Currency {
			continue
		}

		rate, err := pipeline.rates.Rate(ctx, input.Currency, target, input.FiscalReportingDate)
		if err != nil {
			logger.Error().Err(err).Str("FromCurrency", input.Currency).Str("ToCurrency", target).
				Time("Date", input.FiscalReportingDate).Msg("exchange rate lookup failed")
			return nil, err
		}

		converted = append(converted, restate(input, target, rate, convertAt(rate)))
	}

	return converted, nil
}

// restate builds the financials record for one currency, running every
// monetary field on the input through apply. Null fields stay null.
func restate(input *data.QuarterlyInput, currency string, rate decimal.Decimal, apply func(decimal.Decimal) decimal.Decimal) *data.ReportingFinancials {
	financials := &data.ReportingFinancials{
		CompanyID:              input.CompanyID,
		Currency:               currency,
		ExchangeRateUsed:       rate,
		FiscalReportingDate:    input.FiscalReportingDate,
		FiscalReportingQuarter: input.FiscalReportingQuarter,
		ReportingYear:          input.ReportingYear,
		ReportingQuarter:       input.ReportingQuarter,
	}

	for _, field := range monetaryFields {
		value := field.Get(input)
		if value.Valid {
			value.Decimal = apply(value.Decimal)
		}

		field.Set(financials, value)
	}

	return financials
}

func identity(amount decimal.Decimal) decimal.Decimal {
	return amount
}

// convertAt returns an apply func that restates an amount at the given rate,
// rounded to 2 decimal places.
func convertAt(rate decimal.Decimal) func(decimal.Decimal) decimal.Decimal {
	return func(amount decimal.Decimal) decimal.Decimal {
		return amount.Mul(rate).Round(2)
	}
}

func required(value decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: value, Valid: true}
}
