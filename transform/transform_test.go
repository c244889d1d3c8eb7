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
package transform_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pvmetrics/data"
	"github.com/penny-vault/pvmetrics/fx"
	"github.com/penny-vault/pvmetrics/transform"
	"github.com/shopspring/decimal"
)

var companyID = uuid.MustParse("4fb1b514-72b6-4d2e-9f2c-0a1dca6bb2f5")

// fakeStore keeps quarterly inputs in memory and records what the pipeline
// asks it to persist.
type fakeStore struct {
	inputs      []*data.QuarterlyInput
	inputErr    error
	trailingErr error
	saveErr     error

	saveCalls  int
	financials []*data.ReportingFinancials
	derived    *data.DerivedMetrics
}

func (store *fakeStore) Input(_ context.Context, companyID uuid.UUID, year, quarter int) (*data.QuarterlyInput, error) {
	if store.inputErr != nil {
		return nil, store.inputErr
	}

	for _, input := range store.inputs {
		if input.CompanyID == companyID && input.ReportingYear == year && input.ReportingQuarter == quarter {
			return input, nil
		}
	}

	return nil, nil
}

func (store *fakeStore) TrailingInputs(_ context.Context, companyID uuid.UUID, year, quarter, count int) ([]*data.QuarterlyInput, error) {
	if store.trailingErr != nil {
		return nil, store.trailingErr
	}

	trailing := make([]*data.QuarterlyInput, 0, count)
	for _, input := range store.inputs {
		if input.CompanyID != companyID {
			continue
		}

		if input.ReportingYear > year ||
			(input.ReportingYear == year && input.ReportingQuarter > quarter) {
			continue
		}

		trailing = append(trailing, input)
	}

	sort.Slice(trailing, func(i, j int) bool {
		if trailing[i].ReportingYear != trailing[j].ReportingYear {
			return trailing[i].ReportingYear > trailing[j].ReportingYear
		}

		return trailing[i].ReportingQuarter > trailing[j].ReportingQuarter
	})

	if len(trailing) > count {
		trailing = trailing[:count]
	}

	return trailing, nil
}

func (store *fakeStore) SaveReport(_ context.Context, financials []*data.ReportingFinancials, derived *data.DerivedMetrics) error {
	if store.saveErr != nil {
		return store.saveErr
	}

	store.saveCalls++
	store.financials = financials
	store.derived = derived

	return nil
}

// reportedQuarter builds a quarterly input with the same proportions used
// across the metric fixtures.
func reportedQuarter(currency string, year, quarter int, revenue string) *data.QuarterlyInput {
	total := dec(revenue)

	return &data.QuarterlyInput{
		ID:                     uuid.New(),
		CompanyID:              companyID,
		Currency:               currency,
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

var _ = Describe("Pipeline", func() {
	var (
		callCount int32
		ctx       context.Context
		pipeline  *transform.Pipeline
		server    *httptest.Server
		store     *fakeStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		atomic.StoreInt32(&callCount, 0)
		store = &fakeStore{}

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&callCount, 1)
			w.Header().Set("Content-Type", "application/json")

			switch r.URL.Query().Get("base") {
			case "USD":
				fmt.Fprint(w, `{"base":"USD","date":"2023-06-30","rates":{"CAD":1.25}}`)
			case "EUR":
				fmt.Fprint(w, `{"base":"EUR","date":"2023-06-30","rates":{"USD":1.08,"CAD":1.47}}`)
			default:
				fmt.Fprint(w, `{"base":"???","date":"2023-06-30","rates":{}}`)
			}
		}))

		pipeline = transform.New(store, fx.NewWithBaseURL(server.URL, "test-key", 6000))
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("Transform", func() {
		Context("for a company reporting in USD", func() {
			BeforeEach(func() {
				store.inputs = []*data.QuarterlyInput{reportedQuarter("USD", 2023, 2, "1000000.00")}
			})

			It("restates the input in every settlement currency", func() {
				native, _, err := pipeline.Transform(ctx, companyID, 2023, 2)
				Expect(err).NotTo(HaveOccurred())

				Expect(store.financials).To(HaveLen(2))
				Expect(store.financials[0]).To(BeIdenticalTo(native))

				Expect(native.Currency).To(Equal("USD"))
				expectDecimal(native.ExchangeRateUsed, "1")
				expectDecimal(native.TotalRevenue, "1000000.00")
				expectDecimal(native.CashBalance, "1000000.00")

				restated := store.financials[1]
				Expect(restated.Currency).To(Equal("CAD"))
				expectDecimal(restated.ExchangeRateUsed, "1.25")
				expectDecimal(restated.TotalRevenue, "1250000.00")
				expectDecimal(restated.RecurringRevenue, "1000000.00")
				expectDecimal(restated.GrossProfit, "750000.00")
				expectDecimal(restated.SalesMarketingExpense, "287500.00")
				expectDecimal(restated.TotalOperatingExpense, "1150000.00")
				expectDecimal(restated.EBITDA, "287500.00")
				expectDecimal(restated.NetIncome, "215625.00")
				expectDecimal(restated.CashBurn, "250000.00")
				expectDecimal(restated.CashBalance, "1250000.00")
			})

			It("fetches a single rate for the whole fan out", func() {
				_, _, err := pipeline.Transform(ctx, companyID, 2023, 2)
				Expect(err).NotTo(HaveOccurred())
				Expect(atomic.LoadInt32(&callCount)).To(Equal(int32(1)))
			})

			It("persists the financials and metrics together", func() {
				_, derived, err := pipeline.Transform(ctx, companyID, 2023, 2)
				Expect(err).NotTo(HaveOccurred())

				Expect(store.saveCalls).To(Equal(1))
				Expect(store.derived).To(BeIdenticalTo(derived))
				Expect(derived.Currency).To(Equal("USD"))
				expectDecimal(derived.ARR, "3200000.00")
				expectDecimal(derived.MonthlyCashBurn, "66666.67")
				expectDecimal(derived.RunwayMonths, "15.0")
				Expect(derived.CreatedBy).NotTo(BeEmpty())
				Expect(store.financials[0].CreatedBy).To(Equal(derived.CreatedBy))
			})

			It("leaves the ltm block null without enough history", func() {
				_, derived, err := pipeline.Transform(ctx, companyID, 2023, 2)
				Expect(err).NotTo(HaveOccurred())
				Expect(derived.LtmTotalRevenue.Valid).To(BeFalse())
			})

			It("reuses the cached rate when rerun", func() {
				_, _, err := pipeline.Transform(ctx, companyID, 2023, 2)
				Expect(err).NotTo(HaveOccurred())

				first := store.financials[1].TotalRevenue

				_, _, err = pipeline.Transform(ctx, companyID, 2023, 2)
				Expect(err).NotTo(HaveOccurred())

				Expect(store.saveCalls).To(Equal(2))
				Expect(store.financials).To(HaveLen(2))
				expectDecimal(store.financials[1].TotalRevenue, first.String())
				Expect(atomic.LoadInt32(&callCount)).To(Equal(int32(1)))
			})
		})

		Context("for a company reporting in EUR", func() {
			BeforeEach(func() {
				store.inputs = []*data.QuarterlyInput{reportedQuarter("EUR", 2023, 2, "1000000.00")}
			})

			It("produces records for the reporting currency and both settlement currencies", func() {
				native, _, err := pipeline.Transform(ctx, companyID, 2023, 2)
				Expect(err).NotTo(HaveOccurred())

				Expect(native.Currency).To(Equal("EUR"))
				Expect(store.financials).To(HaveLen(3))

				currencies := []string{}
				for _, financials := range store.financials {
					currencies = append(currencies, financials.Currency)
				}

				Expect(currencies).To(Equal([]string{"EUR", "USD", "CAD"}))
				expectDecimal(store.financials[1].TotalRevenue, "1080000.00")
				expectDecimal(store.financials[2].TotalRevenue, "1470000.00")
				Expect(atomic.LoadInt32(&callCount)).To(Equal(int32(2)))
			})
		})

		Context("with four consecutive quarters reported", func() {
			BeforeEach(func() {
				store.inputs = []*data.QuarterlyInput{
					reportedQuarter("USD", 2023, 2, "1300000.00"),
					reportedQuarter("USD", 2023, 1, "1200000.00"),
					reportedQuarter("USD", 2022, 4, "1100000.00"),
					reportedQuarter("USD", 2022, 3, "1000000.00"),
				}
			})

			It("fills in the ltm block", func() {
				_, derived, err := pipeline.Transform(ctx, companyID, 2023, 2)
				Expect(err).NotTo(HaveOccurred())

				expectNullDecimal(derived.LtmTotalRevenue, "4600000.00")
				expectNullDecimal(derived.LtmGrossMargin, "60.00")
				expectNullDecimal(derived.RevenueGrowth, "8.33")
			})
		})

		Context("with optional debt reported", func() {
			It("restates debt alongside the other amounts", func() {
				input := reportedQuarter("USD", 2023, 2, "1000000.00")
				input.DebtOutstanding = decimal.NullDecimal{Decimal: dec("500000.00"), Valid: true}
				store.inputs = []*data.QuarterlyInput{input}

				_, _, err := pipeline.Transform(ctx, companyID, 2023, 2)
				Expect(err).NotTo(HaveOccurred())
				expectNullDecimal(store.financials[1].DebtOutstanding, "625000.00")
			})

			It("keeps missing debt null in every currency", func() {
				store.inputs = []*data.QuarterlyInput{reportedQuarter("USD", 2023, 2, "1000000.00")}

				_, _, err := pipeline.Transform(ctx, companyID, 2023, 2)
				Expect(err).NotTo(HaveOccurred())
				Expect(store.financials[0].DebtOutstanding.Valid).To(BeFalse())
				Expect(store.financials[1].DebtOutstanding.Valid).To(BeFalse())
			})
		})

		Context("when the period was never reported", func() {
			It("returns ErrInputNotFound without writing anything", func() {
				_, _, err := pipeline.Transform(ctx, companyID, 2023, 2)
				Expect(err).To(MatchError(transform.ErrInputNotFound))
				Expect(store.saveCalls).To(BeZero())
				Expect(atomic.LoadInt32(&callCount)).To(BeZero())
			})
		})

		Context("when a rate is unavailable", func() {
			It("aborts before anything is persisted", func() {
				input := reportedQuarter("GBP", 2023, 2, "1000000.00")
				store.inputs = []*data.QuarterlyInput{input}

				_, _, err := pipeline.Transform(ctx, companyID, 2023, 2)
				Expect(err).To(MatchError(fx.ErrRateUnavailable))
				Expect(store.saveCalls).To(BeZero())
			})
		})

		Context("when the store fails", func() {
			It("propagates input lookup failures", func() {
				store.inputErr = errors.New("connection refused")

				_, _, err := pipeline.Transform(ctx, companyID, 2023, 2)
				Expect(err).To(MatchError(store.inputErr))
			})

			It("propagates history lookup failures", func() {
				store.inputs = []*data.QuarterlyInput{reportedQuarter("USD", 2023, 2, "1000000.00")}
				store.trailingErr = errors.New("connection refused")

				_, _, err := pipeline.Transform(ctx, companyID, 2023, 2)
				Expect(err).To(MatchError(store.trailingErr))
			})

			It("propagates save failures", func() {
				store.inputs = []*data.QuarterlyInput{reportedQuarter("USD", 2023, 2, "1000000.00")}
				store.saveErr = errors.New("deadlock detected")

				_, _, err := pipeline.Transform(ctx, companyID, 2023, 2)
				Expect(err).To(MatchError(store.saveErr))
			})
		})
	})
})
