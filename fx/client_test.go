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
package fx_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/pvmetrics/fx"
	"github.com/shopspring/decimal"
)

var _ = Describe("Client", func() {
	var (
		asOf      time.Time
		callCount int32
		client    *fx.Client
		ctx       context.Context
		handler   func(w http.ResponseWriter, r *http.Request)
		server    *httptest.Server
	)

	BeforeEach(func() {
		ctx = context.Background()
		asOf = time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC)
		atomic.StoreInt32(&callCount, 0)

		handler = func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"base":%q,"date":%q,"rates":{"USD":1.08,"CAD":1.47}}`,
				r.URL.Query().Get("base"), r.URL.Query().Get("date"))
		}

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&callCount, 1)
			handler(w, r)
		}))

		client = fx.NewWithBaseURL(server.URL, "test-key", 6000)
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("Rate", func() {
		It("fetches the rate from the provider", func() {
			quote, err := client.Rate(ctx, "EUR", "USD", asOf)
			Expect(err).NotTo(HaveOccurred())
			expectDecimal(quote, "1.08")
			Expect(atomic.LoadInt32(&callCount)).To(Equal(int32(1)))
		})

		It("sends the api key, base, symbols and date", func() {
			var query url.Values
			handler = func(w http.ResponseWriter, r *http.Request) {
				query = r.URL.Query()
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"base":"EUR","date":"2023-06-30","rates":{"USD":1.08}}`)
			}

			_, err := client.Rate(ctx, "EUR", "USD", asOf)
			Expect(err).NotTo(HaveOccurred())
			Expect(query.Get("api_key")).To(Equal("test-key"))
			Expect(query.Get("base")).To(Equal("EUR"))
			Expect(query.Get("symbols")).To(Equal("USD"))
			Expect(query.Get("date")).To(Equal("2023-06-30"))
		})

		It("serves repeat lookups from cache", func() {
			for range 4 {
				quote, err := client.Rate(ctx, "EUR", "USD", asOf)
				Expect(err).NotTo(HaveOccurred())
				expectDecimal(quote, "1.08")
			}

			Expect(atomic.LoadInt32(&callCount)).To(Equal(int32(1)))
		})

		It("fetches each date separately", func() {
			_, err := client.Rate(ctx, "EUR", "USD", asOf)
			Expect(err).NotTo(HaveOccurred())

			_, err = client.Rate(ctx, "EUR", "USD", time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC))
			Expect(err).NotTo(HaveOccurred())

			Expect(atomic.LoadInt32(&callCount)).To(Equal(int32(2)))
		})

		It("caches currency pairs independently", func() {
			_, err := client.Rate(ctx, "EUR", "USD", asOf)
			Expect(err).NotTo(HaveOccurred())

			_, err = client.Rate(ctx, "EUR", "CAD", asOf)
			Expect(err).NotTo(HaveOccurred())

			_, err = client.Rate(ctx, "EUR", "USD", asOf)
			Expect(err).NotTo(HaveOccurred())

			Expect(atomic.LoadInt32(&callCount)).To(Equal(int32(2)))
		})

		It("rejects malformed currency codes", func() {
			_, err := client.Rate(ctx, "usd", "CAD", asOf)
			Expect(err).To(MatchError(fx.ErrInvalidCurrency))

			_, err = client.Rate(ctx, "USD", "CA", asOf)
			Expect(err).To(MatchError(fx.ErrInvalidCurrency))

			Expect(atomic.LoadInt32(&callCount)).To(BeZero())
		})

		It("rejects dates in the future", func() {
			_, err := client.Rate(ctx, "USD", "CAD", time.Now().AddDate(0, 0, 2))
			Expect(err).To(MatchError(fx.ErrFutureDate))
			Expect(atomic.LoadInt32(&callCount)).To(BeZero())
		})

		It("returns ErrRateUnavailable when the response does not quote the currency", func() {
			_, err := client.Rate(ctx, "EUR", "JPY", asOf)
			Expect(err).To(MatchError(fx.ErrRateUnavailable))
		})

		It("returns ErrRateUnavailable when the provider errors", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "upstream offline", http.StatusBadGateway)
			}

			_, err := client.Rate(ctx, "EUR", "USD", asOf)
			Expect(err).To(MatchError(fx.ErrRateUnavailable))
		})

		It("does not cache failed lookups", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "upstream offline", http.StatusBadGateway)
			}

			_, err := client.Rate(ctx, "EUR", "USD", asOf)
			Expect(err).To(MatchError(fx.ErrRateUnavailable))

			handler = func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"base":"EUR","date":"2023-06-30","rates":{"USD":1.08}}`)
			}

			quote, err := client.Rate(ctx, "EUR", "USD", asOf)
			Expect(err).NotTo(HaveOccurred())
			expectDecimal(quote, "1.08")
			Expect(atomic.LoadInt32(&callCount)).To(Equal(int32(2)))
		})
	})

	Describe("Convert", func() {
		It("applies the provider rate and rounds to cents", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"base":"USD","date":"2023-06-30","rates":{"CAD":1.25}}`)
			}

			converted, err := client.Convert(ctx, decimal.RequireFromString("100.00"), "USD", "CAD", asOf)
			Expect(err).NotTo(HaveOccurred())
			expectDecimal(converted, "125.00")
		})

		It("converts a currency to itself without contacting the provider", func() {
			amount := decimal.RequireFromString("1234567.8912")
			converted, err := client.Convert(ctx, amount, "USD", "USD", asOf)
			Expect(err).NotTo(HaveOccurred())
			Expect(converted.Equal(amount)).To(BeTrue())
			Expect(atomic.LoadInt32(&callCount)).To(BeZero())
		})

		It("rounds half away from zero", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"base":"USD","date":"2023-06-30","rates":{"CAD":1.5}}`)
			}

			converted, err := client.Convert(ctx, decimal.RequireFromString("100.57"), "USD", "CAD", asOf)
			Expect(err).NotTo(HaveOccurred())
			expectDecimal(converted, "150.86")

			converted, err = client.Convert(ctx, decimal.RequireFromString("-100.57"), "USD", "CAD", asOf)
			Expect(err).NotTo(HaveOccurred())
			expectDecimal(converted, "-150.86")
		})

		It("propagates rate failures", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "upstream offline", http.StatusBadGateway)
			}

			_, err := client.Convert(ctx, decimal.RequireFromString("100.00"), "USD", "CAD", asOf)
			Expect(err).To(MatchError(fx.ErrRateUnavailable))
		})
	})

	Describe("UpdateRates", func() {
		It("fetches settlement rates for every reporting currency", func() {
			quotes, err := client.UpdateRates(ctx, []string{"EUR", "USD"})
			Expect(err).NotTo(HaveOccurred())
			Expect(quotes).To(HaveLen(3))
			Expect(atomic.LoadInt32(&callCount)).To(Equal(int32(3)))

			pairs := make([]string, 0, len(quotes))
			for _, quote := range quotes {
				pairs = append(pairs, fmt.Sprintf("%s/%s", quote.FromCurrency, quote.ToCurrency))
			}

			Expect(pairs).To(ConsistOf("EUR/USD", "EUR/CAD", "USD/CAD"))
		})

		It("skips identity pairs and duplicate currencies", func() {
			quotes, err := client.UpdateRates(ctx, []string{"USD", "USD", "CAD"})
			Expect(err).NotTo(HaveOccurred())

			pairs := make([]string, 0, len(quotes))
			for _, quote := range quotes {
				pairs = append(pairs, fmt.Sprintf("%s/%s", quote.FromCurrency, quote.ToCurrency))
			}

			Expect(pairs).To(ConsistOf("USD/CAD", "CAD/USD"))
		})

		It("aborts on the first failed fetch", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprintf(w, `{"base":%q,"date":%q,"rates":{"USD":1.08}}`,
					r.URL.Query().Get("base"), r.URL.Query().Get("date"))
			}

			quotes, err := client.UpdateRates(ctx, []string{"EUR"})
			Expect(err).To(MatchError(fx.ErrRateUnavailable))
			Expect(quotes).To(BeNil())
		})
	})
})
