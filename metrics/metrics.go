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
package metrics

import (
	"errors"
	"fmt"

	"github.com/penny-vault/pvmetrics/data"
	"github.com/shopspring/decimal"
)

// LTMQuarters is the number of fiscal quarters in a last-twelve-month
// window.
const LTMQuarters = 4

var ErrInsufficientHistory = errors.New("ltm aggregates require four consecutive quarters")

var (
	three   = decimal.NewFromInt(3)
	four    = decimal.NewFromInt(4)
	hundred = decimal.NewFromInt(100)
)

// LTM holds last-twelve-month aggregates over four consecutive fiscal
// quarters. The monetary totals are plain sums; the margins are percentages
// of LTM total revenue.
type LTM struct {
	TotalRevenue          decimal.Decimal
	GrossProfit           decimal.Decimal
	SalesMarketingExpense decimal.Decimal
	OperatingExpense      decimal.Decimal
	EBITDA                decimal.Decimal
	NetIncome             decimal.Decimal
	GrossMargin           decimal.Decimal
	EBITDAMargin          decimal.Decimal
	NetIncomeMargin       decimal.Decimal
}

// ARR annualizes quarterly recurring revenue.
func ARR(recurringRevenue decimal.Decimal) decimal.Decimal {
	return recurringRevenue.Mul(four)
}

// PercentageOfRevenue returns value as a percentage of totalRevenue, rounded
// to 2 decimal places. Zero revenue yields zero rather than an error so a
// pre-revenue company still gets a metrics row.
func PercentageOfRevenue(value, totalRevenue decimal.Decimal) decimal.Decimal {
	if totalRevenue.IsZero() {
		return decimal.Zero
	}

	return value.Div(totalRevenue).Mul(hundred).Round(2)
}

// PerFTE returns value per full-time-equivalent employee, rounded to 2
// decimal places. Zero employees yields zero.
func PerFTE(value decimal.Decimal, employees int) decimal.Decimal {
	if employees == 0 {
		return decimal.Zero
	}

	return value.Div(decimal.NewFromInt(int64(employees))).Round(2)
}

// GrowthRate returns the percentage change from previous to current, rounded
// to 2 decimal places. A zero previous value yields zero.
func GrowthRate(current, previous decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		return decimal.Zero
	}

	return current.Sub(previous).Div(previous).Mul(hundred).Round(2)
}

// MonthlyCashBurn converts a quarterly burn figure to a monthly one, rounded
// to 2 decimal places.
func MonthlyCashBurn(quarterlyBurn decimal.Decimal) decimal.Decimal {
	return quarterlyBurn.Div(three).Round(2)
}

// RunwayMonths returns how many months of operation the cash balance funds
// at the given monthly burn, rounded to 1 decimal place. Zero burn yields
// zero.
func RunwayMonths(cashBalance, monthlyBurn decimal.Decimal) decimal.Decimal {
	if monthlyBurn.IsZero() {
		return decimal.Zero
	}

	return cashBalance.Div(monthlyBurn).Round(1)
}

// AggregateLTM sums four consecutive quarters of inputs, ordered most recent
// first, into last-twelve-month totals and margins. Any other number of
// quarters, or a gap in the window, returns ErrInsufficientHistory.
func AggregateLTM(quarters []*data.QuarterlyInput) (*LTM, error) {
	if len(quarters) != LTMQuarters {
		return nil, fmt.Errorf("%w: got %d", ErrInsufficientHistory, len(quarters))
	}

	for idx := 1; idx < len(quarters); idx++ {
		if quarters[idx].Period() != quarters[idx-1].Period().Prev() {
			return nil, fmt.Errorf("%w: %s does not follow %s", ErrInsufficientHistory,
				quarters[idx-1].Period(), quarters[idx].Period())
		}
	}

	ltm := &LTM{}
	for _, quarter := range quarters {
		ltm.TotalRevenue = ltm.TotalRevenue.Add(quarter.TotalRevenue)
		ltm.GrossProfit = ltm.GrossProfit.Add(quarter.GrossProfit)
		ltm.SalesMarketingExpense = ltm.SalesMarketingExpense.Add(quarter.SalesMarketingExpense)
		ltm.OperatingExpense = ltm.OperatingExpense.Add(quarter.TotalOperatingExpense)
		ltm.EBITDA = ltm.EBITDA.Add(quarter.EBITDA)
		ltm.NetIncome = ltm.NetIncome.Add(quarter.NetIncome)
	}

	ltm.GrossMargin = PercentageOfRevenue(ltm.GrossProfit, ltm.TotalRevenue)
	ltm.EBITDAMargin = PercentageOfRevenue(ltm.EBITDA, ltm.TotalRevenue)
	ltm.NetIncomeMargin = PercentageOfRevenue(ltm.NetIncome, ltm.TotalRevenue)

	return ltm, nil
}

// Derive computes the full set of derived metrics for one quarterly input.
// trailing holds the company's reported quarters at and before the input's
// period, most recent first; it feeds the quarter-over-quarter and LTM
// measures. Measures that need history the company has not reported yet are
// left null rather than failing the calculation.
func Derive(input *data.QuarterlyInput, trailing []*data.QuarterlyInput) *data.DerivedMetrics {
	monthlyBurn := MonthlyCashBurn(input.CashBurn)

	derived := &data.DerivedMetrics{
		CompanyID:                       input.CompanyID,
		Currency:                        input.Currency,
		ARR:                             ARR(input.RecurringRevenue),
		RecurringPercentageRevenue:      PercentageOfRevenue(input.RecurringRevenue, input.TotalRevenue),
		RevenuePerFTE:                   PerFTE(input.TotalRevenue, input.Employees),
		GrossProfitPerFTE:               PerFTE(input.GrossProfit, input.Employees),
		GrossProfitMargin:               PercentageOfRevenue(input.GrossProfit, input.TotalRevenue),
		SalesMarketingPercentageRevenue: PercentageOfRevenue(input.SalesMarketingExpense, input.TotalRevenue),
		TotalOperatingPercentageRevenue: PercentageOfRevenue(input.TotalOperatingExpense, input.TotalRevenue),
		MonthlyCashBurn:                 monthlyBurn,
		RunwayMonths:                    RunwayMonths(input.CashBalance, monthlyBurn),
		FiscalReportingDate:             input.FiscalReportingDate,
		FiscalReportingQuarter:          input.FiscalReportingQuarter,
		ReportingYear:                   input.ReportingYear,
		ReportingQuarter:                input.ReportingQuarter,
	}

	if prev := findPeriod(input.Period().Prev(), trailing); prev != nil {
		derived.RevenueGrowth = validDecimal(GrowthRate(input.TotalRevenue, prev.TotalRevenue))
		derived.EmployeeGrowthRate = validDecimal(GrowthRate(
			decimal.NewFromInt(int64(input.Employees)), decimal.NewFromInt(int64(prev.Employees))))
		derived.ChangeInCash = validDecimal(input.CashBalance.Sub(prev.CashBalance))
	}

	if window := ltmWindow(input, trailing); window != nil {
		if ltm, err := AggregateLTM(window); err == nil {
			derived.LtmTotalRevenue = validDecimal(ltm.TotalRevenue)
			derived.LtmGrossProfit = validDecimal(ltm.GrossProfit)
			derived.LtmSalesMarketingExpense = validDecimal(ltm.SalesMarketingExpense)
			derived.LtmOperatingExpense = validDecimal(ltm.OperatingExpense)
			derived.LtmEBITDA = validDecimal(ltm.EBITDA)
			derived.LtmNetIncome = validDecimal(ltm.NetIncome)
			derived.LtmGrossMargin = validDecimal(ltm.GrossMargin)
			derived.LtmEBITDAMargin = validDecimal(ltm.EBITDAMargin)
			derived.LtmNetIncomeMargin = validDecimal(ltm.NetIncomeMargin)
		}
	}

	return derived
}

// ltmWindow assembles the four consecutive quarters ending at target's
// period, most recent first. It returns nil if any quarter in the window has
// not been reported.
func ltmWindow(target *data.QuarterlyInput, trailing []*data.QuarterlyInput) []*data.QuarterlyInput {
	window := []*data.QuarterlyInput{target}
	period := target.Period()

	for range LTMQuarters - 1 {
		period = period.Prev()

		quarter := findPeriod(period, trailing)
		if quarter == nil {
			return nil
		}

		window = append(window, quarter)
	}

	return window
}

func findPeriod(period data.Period, trailing []*data.QuarterlyInput) *data.QuarterlyInput {
	for _, quarter := range trailing {
		if quarter.Period() == period {
			return quarter
		}
	}

	return nil
}

func validDecimal(value decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: value, Valid: true}
}
