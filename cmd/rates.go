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
package cmd

import (
	"context"
	"fmt"

	"github.com/penny-vault/pvmetrics/fx"
	"github.com/penny-vault/pvmetrics/library"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ratesCmd represents the rates command
var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Fetch today's exchange rates for every reporting currency",
	Long: `The rates sub-command fetches today's exchange rate from each
currency the portfolio reports in to each settlement currency and prints the
quotes. It is a connectivity check for the exchange rate service; transforms
fetch the point-in-time rates they need on their own.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := log.Logger.WithContext(context.Background())

		myLibrary, err := library.NewFromDB(ctx, viper.GetString("db.url"))
		if err != nil {
			log.Fatal().Err(err).Msg("could not connect to library")
		}
		defer myLibrary.Close()

		currencies, err := myLibrary.ReportingCurrencies(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("could not load reporting currencies")
		}

		quotes, err := fx.New().UpdateRates(ctx, currencies)
		if err != nil {
			log.Fatal().Err(err).Msg("could not fetch exchange rates")
		}

		for _, quote := range quotes {
			fmt.Printf("%s/%s %s (%s)\n", quote.FromCurrency, quote.ToCurrency,
				quote.Rate, quote.Date.Format("2006-01-02"))
		}
	},
}

func init() {
	rootCmd.AddCommand(ratesCmd)
}
