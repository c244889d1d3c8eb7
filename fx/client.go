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
package fx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/go-resty/resty/v2"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"
)

// DateFormat is the wire format for rate dates.
const DateFormat = "2006-01-02"

var (
	ErrRateUnavailable = errors.New("exchange rate unavailable")
	ErrInvalidCurrency = errors.New("invalid currency code")
	ErrFutureDate      = errors.New("exchange rates are only published for past dates")
)

// SettlementCurrencies are the currencies every portfolio company's
// financials are restated in, regardless of the company's own reporting
// currency.
var SettlementCurrencies = []string{"USD", "CAD"}

// Client fetches historical exchange rates from the configured provider.
// Fetched quotes are cached for the life of the client so a given
// (from, to, date) triple hits the provider at most once.
type Client struct {
	baseURL string
	client  *resty.Client
	limiter *rate.Limiter
	quotes  *haxmap.Map[string, decimal.Decimal]
}

// Quote is a single exchange rate fetched from the provider.
type Quote struct {
	FromCurrency string
	ToCurrency   string
	Date         time.Time
	Rate         decimal.Decimal
}

// New returns a client configured from the exchangerate section of the
// application configuration.
func New() *Client {
	return NewWithBaseURL(
		viper.GetString("exchangerate.url"),
		viper.GetString("exchangerate.apikey"),
		viper.GetInt("exchangerate.rate_limit"))
}

// NewWithBaseURL returns a client that queries the provider at baseURL.
// rateLimit is the maximum number of requests per minute; values less than
// 1 fall back to 60.
func NewWithBaseURL(baseURL, apiKey string, rateLimit int) *Client {
	if rateLimit < 1 {
		rateLimit = 60
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  resty.New().SetTimeout(10 * time.Second).SetQueryParam("api_key", apiKey),
		limiter: rate.NewLimiter(rate.Limit(float64(rateLimit)/float64(61)), 1),
		quotes:  haxmap.New[string, decimal.Decimal](),
	}
}

// Rate returns the exchange rate from one ISO-4217 currency to another as of
// the requested date. The first lookup of a (from, to, date) triple queries
// the provider's historical endpoint; every later lookup is served from
// cache. There is no fallback source: any provider failure or a response
// that does not quote the requested currency returns ErrRateUnavailable.
func (client *Client) Rate(ctx context.Context, from, to string, date time.Time) (decimal.Decimal, error) {
	logger := zerolog.Ctx(ctx)

	if !validCurrencyCode(from) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidCurrency, from)
	}

	if !validCurrencyCode(to) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidCurrency, to)
	}

	if date.After(time.Now()) {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrFutureDate, date.Format(DateFormat))
	}

	cacheKey := fmt.Sprintf("%s:%s:%s", from, to, date.Format(DateFormat))
	if quote, ok := client.quotes.Get(cacheKey); ok {
		return quote, nil
	}

	if err := client.limiter.Wait(ctx); err != nil {
		return decimal.Zero, err
	}

	respContent := &historicalResponse{}
	resp, err := client.client.R().
		SetQueryParam("base", from).
		SetQueryParam("symbols", to).
		SetQueryParam("date", date.Format(DateFormat)).
		SetResult(respContent).
		Get(fmt.Sprintf("%s/historical", client.baseURL))
	if err != nil {
		logger.Error().Err(err).Str("FromCurrency", from).Str("ToCurrency", to).
			Msg("resty returned an error when querying historical rates")
		return decimal.Zero, fmt.Errorf("%w: %s", ErrRateUnavailable, err.Error())
	}

	if resp.StatusCode() >= 300 {
		logger.Error().Int("StatusCode", resp.StatusCode()).Str("ResponseBody", string(resp.Body())).
			Msg("exchange rate provider returned an invalid HTTP response")
		return decimal.Zero, fmt.Errorf("%w (%d): %s", ErrRateUnavailable, resp.StatusCode(), string(resp.Body()))
	}

	if respContent.Rates == nil {
		return decimal.Zero, fmt.Errorf("%w: response carried no rates", ErrRateUnavailable)
	}

	rates := make(map[string]decimal.Decimal)
	if err := json.Unmarshal(*respContent.Rates, &rates); err != nil {
		logger.Error().Err(err).Msg("could not unmarshal rates from provider response")
		return decimal.Zero, fmt.Errorf("%w: %s", ErrRateUnavailable, err.Error())
	}

	quote, ok := rates[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s/%s on %s", ErrRateUnavailable, from, to, date.Format(DateFormat))
	}

	client.quotes.Set(cacheKey, quote)
	return quote, nil
}

// Convert restates an amount from one currency to another using the rate as
// of the given date. Converted amounts are rounded to 2 decimal places.
// Converting a currency to itself returns the amount unchanged and never
// contacts the provider.
func (client *Client) Convert(ctx context.Context, amount decimal.Decimal, from, to string, date time.Time) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}

	quote, err := client.Rate(ctx, from, to, date)
	if err != nil {
		return decimal.Zero, err
	}

	return amount.Mul(quote).Round(2), nil
}

// UpdateRates warms the cache with today's rate from every given reporting
// currency to each settlement currency, plus the cross-rate between the
// settlement currencies, and returns the fetched quotes. The first failed
// fetch aborts the update.
func (client *Client) UpdateRates(ctx context.Context, currencies []string) ([]*Quote, error) {
	logger := zerolog.Ctx(ctx)
	today := time.Now()

	pairs := make([][2]string, 0, 2*len(currencies)+1)
	seen := make(map[[2]string]bool)

	addPair := func(from, to string) {
		pair := [2]string{from, to}
		if from == to || seen[pair] {
			return
		}

		seen[pair] = true
		pairs = append(pairs, pair)
	}

	for _, currency := range currencies {
		for _, settlement := range SettlementCurrencies {
			addPair(currency, settlement)
		}
	}

	addPair("USD", "CAD")

	quotes := make([]*Quote, 0, len(pairs))
	for _, pair := range pairs {
		rate, err := client.Rate(ctx, pair[0], pair[1], today)
		if err != nil {
			return nil, err
		}

		quote := &Quote{
			FromCurrency: pair[0],
			ToCurrency:   pair[1],
			Date:         today,
			Rate:         rate,
		}

		quotes = append(quotes, quote)
		logger.Info().Object("Quote", quote).Msg("fetched exchange rate")
	}

	return quotes, nil
}

// validCurrencyCode reports whether code looks like an ISO-4217 currency
// code, e.g. USD.
func validCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}

	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}

	return true
}

func (quote *Quote) MarshalZerologObject(e *zerolog.Event) {
	e.Str("FromCurrency", quote.FromCurrency)
	e.Str("ToCurrency", quote.ToCurrency)
	e.Time("Date", quote.Date)
	e.Str("Rate", quote.Rate.String())
}

type historicalResponse struct {
	Base  string           `json:"base"`
	Date  string           `json:"date"`
	Rates *json.RawMessage `json:"rates"`
}
