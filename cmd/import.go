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
	"os"
	"os/user"
	"strconv"
	"sync"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/penny-vault/pvmetrics/data"
	"github.com/penny-vault/pvmetrics/library"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// quarterRow is one reported quarter in the intake CSV. Amounts are in the
// currency named by the currency column.
type quarterRow struct {
	Company                string          `csv:"company"`
	Currency               string          `csv:"currency"`
	TotalRevenue           decimal.Decimal `csv:"total_revenue"`
	RecurringRevenue       decimal.Decimal `csv:"recurring_revenue"`
	GrossProfit            decimal.Decimal `csv:"gross_profit"`
	SalesMarketingExpense  decimal.Decimal `csv:"sales_marketing_expense"`
	TotalOperatingExpense  decimal.Decimal `csv:"total_operating_expense"`
	EBITDA                 decimal.Decimal `csv:"ebitda"`
	NetIncome              decimal.Decimal `csv:"net_income"`
	CashBurn               decimal.Decimal `csv:"cash_burn"`
	CashBalance            decimal.Decimal `csv:"cash_balance"`
	DebtOutstanding        string          `csv:"debt_outstanding"`
	Employees              int             `csv:"employees"`
	Customers              string          `csv:"customers"`
	FiscalReportingDate    string          `csv:"fiscal_reporting_date"`
	FiscalReportingQuarter int             `csv:"fiscal_reporting_quarter"`
	ReportingYear          int             `csv:"reporting_year"`
	ReportingQuarter       int             `csv:"reporting_quarter"`
}

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <csv-file>",
	Short: "Import quarterly financials reported by portfolio companies",
	Long: `The import sub-command loads a CSV of quarterly financials into the
library. Each row names the reporting company, the currency the amounts are
denominated in, and the reporting period. Re-importing a period the company
already reported overwrites the stored values.

Rows that fail validation are skipped and logged; the remaining rows are
still imported.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		fileData, err := os.ReadFile(args[0])
		if err != nil {
			log.Fatal().Err(err).Str("FileName", args[0]).Msg("could not read input file")
		}

		rows := []*quarterRow{}
		if err := gocsv.UnmarshalBytes(fileData, &rows); err != nil {
			log.Fatal().Err(err).Msg("failed to unmarshal csv data")
		}

		myLibrary, err := library.NewFromDB(ctx, viper.GetString("db.url"))
		if err != nil {
			log.Fatal().Err(err).Msg("could not connect to library")
		}
		defer myLibrary.Close()

		companyList, err := myLibrary.Companies(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("could not load companies")
		}

		companies := make(map[string]*data.Company, len(companyList))
		for _, company := range companyList {
			companies[company.Name] = company
		}

		var importedBy string
		if user, err := user.Current(); err != nil {
			log.Fatal().Err(err).Msg("could not determine current user")
		} else {
			importedBy = user.Username
		}

		queue := make(chan *data.QuarterlyInput, 100)
		var wg sync.WaitGroup
		wg.Add(1)
		go myLibrary.SaveInputs(queue, &wg)

		imported := 0
		skipped := 0

		for idx, row := range rows {
			rowLogger := log.With().Int("Row", idx+1).Str("Company", row.Company).Logger()

			company, ok := companies[row.Company]
			if !ok {
				rowLogger.Warn().Msg("company not found; skipping row")
				skipped++
				continue
			}

			if row.ReportingQuarter < 1 || row.ReportingQuarter > 4 {
				rowLogger.Warn().Int("ReportingQuarter", row.ReportingQuarter).Msg("reporting quarter must be 1-4; skipping row")
				skipped++
				continue
			}

			if len(row.Currency) != 3 {
				rowLogger.Warn().Str("Currency", row.Currency).Msg("currency must be a 3-letter ISO-4217 code; skipping row")
				skipped++
				continue
			}

			fiscalDate, err := time.Parse("2006-01-02", row.FiscalReportingDate)
			if err != nil {
				rowLogger.Warn().Err(err).Str("FiscalReportingDate", row.FiscalReportingDate).Msg("could not parse fiscal reporting date; skipping row")
				skipped++
				continue
			}

			if row.Employees < 0 {
				rowLogger.Warn().Int("Employees", row.Employees).Msg("employee count cannot be negative; skipping row")
				skipped++
				continue
			}

			input := &data.QuarterlyInput{
				CompanyID:              company.ID,
				Currency:               row.Currency,
				TotalRevenue:           row.TotalRevenue,
				RecurringRevenue:       row.RecurringRevenue,
				GrossProfit:            row.GrossProfit,
				SalesMarketingExpense:  row.SalesMarketingExpense,
				TotalOperatingExpense:  row.TotalOperatingExpense,
				EBITDA:                 row.EBITDA,
				NetIncome:              row.NetIncome,
				CashBurn:               row.CashBurn,
				CashBalance:            row.CashBalance,
				Employees:              row.Employees,
				FiscalReportingDate:    fiscalDate,
				FiscalReportingQuarter: row.FiscalReportingQuarter,
				ReportingYear:          row.ReportingYear,
				ReportingQuarter:       row.ReportingQuarter,
				CreatedBy:              importedBy,
				LastUpdatedBy:          importedBy,
			}

			if row.DebtOutstanding != "" {
				debt, err := decimal.NewFromString(row.DebtOutstanding)
				if err != nil {
					rowLogger.Warn().Err(err).Str("DebtOutstanding", row.DebtOutstanding).Msg("could not parse debt outstanding; skipping row")
					skipped++
					continue
				}
				input.DebtOutstanding = decimal.NewNullDecimal(debt)
			}

			if row.Customers != "" {
				customers, err := strconv.Atoi(row.Customers)
				if err != nil {
					rowLogger.Warn().Err(err).Str("Customers", row.Customers).Msg("could not parse customer count; skipping row")
					skipped++
					continue
				}
				input.Customers = &customers
			}

			queue <- input
			imported++
		}

		close(queue)
		wg.Wait()

		log.Info().Int("Imported", imported).Int("Skipped", skipped).Msg("import complete")
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
