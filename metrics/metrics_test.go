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
package metrics_test

import (
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pvmetrics/data"
	"github.com/penny-vault/pvmetrics/metrics"
)

var companyID = uuid.MustParse("b9e0c38f-4b88-4e2b-8a1f-0d6f5de08c10")

// reportedQuarter builds a quarterly input whose cost lines scale with the
// revenue figure so LTM margins come out to round percentages.
func reportedQuarter(year, quarter int, revenue string) *data.QuarterlyInput {
	total := dec(revenue)

	return &data.QuarterlyInput{
		CompanyID:              companyID,
		Currency:               "USD",
		TotalRevenue:           total,
		RecurringRevenue:       total.Mul(dec("0.8")),
		GrossProfit:            total.Mul(dec("0.6")),
		SalesMarketingExpense:  dec("230000.00"),
		TotalOperatingExpense:  dec("920000.00"),
		EBITDA:                 dec("230000.00"),
		NetIncome:              dec("172500.00"),
		CashBurn:               dec("200000.00"),
		CashBalance:            dec("1000000.00"),
		Employees:              50,
		FiscalReportingDate:    time.Date(year, time.Month(quarter*3), 30, 0, 0, 0, 0, time.UTC),
		FiscalReportingQuarter: quarter,
		ReportingYear:          year,
		ReportingQuarter:       quarter,
	}
}

var _ = Describe("ARR", func() {
	It("annualizes quarterly recurring revenue", func() {
		expectDecimal(metrics.ARR(dec("800000.00")), "3200000.00")
	})
})

var _ = Describe("PercentageOfRevenue", func() {
	It("returns the share of revenue rounded to two places", func() {
		expectDecimal(metrics.PercentageOfRevenue(dec("800000.00"), dec("1000000.00")), "80.00")
		expectDecimal(metrics.PercentageOfRevenue(dec("100000.00"), dec("300000.00")), "33.33")
	})

	It("returns zero when total revenue is zero", func() {
		expectDecimal(metrics.PercentageOfRevenue(dec("800000.00"), dec("0")), "0")
	})
})

var _ = Describe("PerFTE", func() {
	It("divides the figure across the employee count", func() {
		expectDecimal(metrics.PerFTE(dec("1000000.00"), 50), "20000.00")
		expectDecimal(metrics.PerFTE(dec("600000.00"), 50), "12000.00")
	})

	It("returns zero when the company reported no employees", func() {
		expectDecimal(metrics.PerFTE(dec("1000000.00"), 0), "0")
	})
})

var _ = Describe("GrowthRate", func() {
	It("returns the percentage change from the previous value", func() {
		expectDecimal(metrics.GrowthRate(dec("1100000.00"), dec("1000000.00")), "10.00")
		expectDecimal(metrics.GrowthRate(dec("55"), dec("50")), "10.00")
	})

	It("handles shrinking values", func() {
		expectDecimal(metrics.GrowthRate(dec("900000.00"), dec("1000000.00")), "-10.00")
	})

	It("returns zero when the previous value is zero", func() {
		expectDecimal(metrics.GrowthRate(dec("1100000.00"), dec("0")), "0")
	})
})

var _ = Describe("MonthlyCashBurn", func() {
	It("returns a third of the quarterly burn rounded to cents", func() {
		expectDecimal(metrics.MonthlyCashBurn(dec("200000.00")), "66666.67")
		expectDecimal(metrics.MonthlyCashBurn(dec("300000.00")), "100000.00")
	})
})

var _ = Describe("RunwayMonths", func() {
	It("returns the months of cash left at the monthly burn", func() {
		expectDecimal(metrics.RunwayMonths(dec("1000000.00"), dec("66666.67")), "15.0")
		expectDecimal(metrics.RunwayMonths(dec("1000000.00"), dec("100000.00")), "10.0")
	})

	It("returns zero when there is no burn", func() {
		expectDecimal(metrics.RunwayMonths(dec("1000000.00"), dec("0")), "0")
	})
})

var _ = Describe("AggregateLTM", func() {
	var quarters []*data.QuarterlyInput

	BeforeEach(func() {
		quarters = []*data.QuarterlyInput{
			reportedQuarter(2023, 2, "1300000.00"),
			reportedQuarter(2023, 1, "1200000.00"),
			reportedQuarter(2022, 4, "1100000.00"),
			reportedQuarter(2022, 3, "1000000.00"),
		}
	})

	It("sums the window into twelve month totals", func() {
		ltm, err := metrics.AggregateLTM(quarters)
		Expect(err).NotTo(HaveOccurred())
		expectDecimal(ltm.TotalRevenue, "4600000.00")
		expectDecimal(ltm.GrossProfit, "2760000.00")
		expectDecimal(ltm.SalesMarketingExpense, "920000.00")
		expectDecimal(ltm.OperatingExpense, "3680000.00")
		expectDecimal(ltm.EBITDA, "920000.00")
		expectDecimal(ltm.NetIncome, "690000.00")
	})

	It("computes margins against twelve month revenue", func() {
		ltm, err := metrics.AggregateLTM(quarters)
		Expect(err).NotTo(HaveOccurred())
		expectDecimal(ltm.GrossMargin, "60.00")
		expectDecimal(ltm.EBITDAMargin, "20.00")
		expectDecimal(ltm.NetIncomeMargin, "15.00")
	})

	It("rejects windows that are not four quarters", func() {
		_, err := metrics.AggregateLTM(quarters[:3])
		Expect(err).To(MatchError(metrics.ErrInsufficientHistory))

		_, err = metrics.AggregateLTM(append(quarters, reportedQuarter(2022, 2, "900000.00")))
		Expect(err).To(MatchError(metrics.ErrInsufficientHistory))
	})

	It("rejects windows with a gap", func() {
		quarters[2] = reportedQuarter(2022, 3, "1100000.00")
		quarters[3] = reportedQuarter(2022, 2, "1000000.00")

		_, err := metrics.AggregateLTM(quarters)
		Expect(err).To(MatchError(metrics.ErrInsufficientHistory))
	})
})

var _ = Describe("Derive", func() {
	Context("with no trailing history", func() {
		It("computes the single quarter measures", func() {
			input := reportedQuarter(2023, 2, "1000000.00")
			derived := metrics.Derive(input, []*data.QuarterlyInput{input})

			Expect(derived.CompanyID).To(Equal(companyID))
			Expect(derived.Currency).To(Equal("USD"))
			expectDecimal(derived.ARR, "3200000.00")
			expectDecimal(derived.RecurringPercentageRevenue, "80.00")
			expectDecimal(derived.RevenuePerFTE, "20000.00")
			expectDecimal(derived.GrossProfitPerFTE, "12000.00")
			expectDecimal(derived.GrossProfitMargin, "60.00")
			expectDecimal(derived.SalesMarketingPercentageRevenue, "23.00")
			expectDecimal(derived.TotalOperatingPercentageRevenue, "92.00")
			expectDecimal(derived.MonthlyCashBurn, "66666.67")
			expectDecimal(derived.RunwayMonths, "15.0")
			Expect(derived.ReportingYear).To(Equal(2023))
			Expect(derived.ReportingQuarter).To(Equal(2))
		})

		It("leaves the history dependent measures null", func() {
			input := reportedQuarter(2023, 2, "1000000.00")
			derived := metrics.Derive(input, []*data.QuarterlyInput{input})

			Expect(derived.RevenueGrowth.Valid).To(BeFalse())
			Expect(derived.EmployeeGrowthRate.Valid).To(BeFalse())
			Expect(derived.ChangeInCash.Valid).To(BeFalse())
			Expect(derived.LtmTotalRevenue.Valid).To(BeFalse())
			Expect(derived.LtmGrossMargin.Valid).To(BeFalse())
		})
	})

	Context("with only the previous quarter reported", func() {
		It("computes growth but not the LTM block", func() {
			input := reportedQuarter(2023, 2, "1100000.00")
			input.Employees = 55
			input.CashBalance = dec("1200000.00")

			prev := reportedQuarter(2023, 1, "1000000.00")

			derived := metrics.Derive(input, []*data.QuarterlyInput{input, prev})

			expectNullDecimal(derived.RevenueGrowth, "10.00")
			expectNullDecimal(derived.EmployeeGrowthRate, "10.00")
			expectNullDecimal(derived.ChangeInCash, "200000.00")
			Expect(derived.LtmTotalRevenue.Valid).To(BeFalse())
			Expect(derived.LtmEBITDAMargin.Valid).To(BeFalse())
		})
	})

	Context("with four consecutive quarters reported", func() {
		var derived *data.DerivedMetrics

		BeforeEach(func() {
			input := reportedQuarter(2023, 2, "1300000.00")
			trailing := []*data.QuarterlyInput{
				input,
				reportedQuarter(2023, 1, "1200000.00"),
				reportedQuarter(2022, 4, "1100000.00"),
				reportedQuarter(2022, 3, "1000000.00"),
			}

			derived = metrics.Derive(input, trailing)
		})

		It("fills in the LTM block", func() {
			expectNullDecimal(derived.LtmTotalRevenue, "4600000.00")
			expectNullDecimal(derived.LtmGrossProfit, "2760000.00")
			expectNullDecimal(derived.LtmSalesMarketingExpense, "920000.00")
			expectNullDecimal(derived.LtmOperatingExpense, "3680000.00")
			expectNullDecimal(derived.LtmEBITDA, "920000.00")
			expectNullDecimal(derived.LtmNetIncome, "690000.00")
			expectNullDecimal(derived.LtmGrossMargin, "60.00")
			expectNullDecimal(derived.LtmEBITDAMargin, "20.00")
			expectNullDecimal(derived.LtmNetIncomeMargin, "15.00")
		})

		It("computes the quarter over quarter measures", func() {
			expectNullDecimal(derived.RevenueGrowth, "8.33")
			expectNullDecimal(derived.EmployeeGrowthRate, "0")
			expectNullDecimal(derived.ChangeInCash, "0.00")
		})
	})

	Context("with a gap inside the trailing window", func() {
		It("skips the LTM block but keeps growth", func() {
			input := reportedQuarter(2023, 2, "1300000.00")
			trailing := []*data.QuarterlyInput{
				input,
				reportedQuarter(2023, 1, "1200000.00"),
				// 2022Q4 was never reported
				reportedQuarter(2022, 3, "1000000.00"),
			}

			derived := metrics.Derive(input, trailing)

			expectNullDecimal(derived.RevenueGrowth, "8.33")
			Expect(derived.LtmTotalRevenue.Valid).To(BeFalse())
		})

		It("skips growth when only older quarters exist", func() {
			input := reportedQuarter(2023, 2, "1300000.00")
			trailing := []*data.QuarterlyInput{
				input,
				// 2023Q1 was never reported
				reportedQuarter(2022, 4, "1100000.00"),
			}

			derived := metrics.Derive(input, trailing)

			Expect(derived.RevenueGrowth.Valid).To(BeFalse())
			Expect(derived.EmployeeGrowthRate.Valid).To(BeFalse())
			Expect(derived.ChangeInCash.Valid).To(BeFalse())
			Expect(derived.LtmTotalRevenue.Valid).To(BeFalse())
		})
	})
})
