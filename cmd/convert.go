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
	"strings"
	"time"

	"github.com/penny-vault/pvmetrics/fx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var convertDate string

// convertCmd represents the convert command
var convertCmd = &cobra.Command{
	Use:   "convert <amount> <from> <to>",
	Short: "Convert an amount between currencies",
	Long: `The convert sub-command restates an amount from one currency to
another using the exchange rate on the given date (today when no date is
provided). The same conversion and rounding rules are applied as when
financials are restated.`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := log.Logger.WithContext(context.Background())

		amount, err := decimal.NewFromString(args[0])
		if err != nil {
			log.Fatal().Err(err).Str("Amount", args[0]).Msg("could not parse amount")
		}

		from := strings.ToUpper(args[1])
		to := strings.ToUpper(args[2])

		date := time.Now()
		if convertDate != "" {
			date, err = time.Parse(fx.DateFormat, convertDate)
			if err != nil {
				log.Fatal().Err(err).Str("Date", convertDate).Msg("could not parse date")
			}
		}

		converted, err := fx.New().Convert(ctx, amount, from, to, date)
		if err != nil {
			log.Fatal().Err(err).Msg("conversion failed")
		}

		fmt.Printf("%s %s = %s %s (%s)\n", amount, from, converted, to, date.Format(fx.DateFormat))
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringVar(&convertDate, "date", "", "rate date in YYYY-MM-DD format (default today)")
}
