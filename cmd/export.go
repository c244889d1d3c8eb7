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
	"os"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/penny-vault/pvmetrics/backblaze"
	"github.com/penny-vault/pvmetrics/data"
	"github.com/penny-vault/pvmetrics/library"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

var (
	exportYear    int
	exportQuarter int
	exportUpload  bool
)

// financialsRow is the parquet layout for restated financials. Amounts are
// written as exact decimal strings so no precision is lost in the export.
type financialsRow struct {
	Company                string `parquet:"name=company, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Currency               string `parquet:"name=currency, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	ExchangeRateUsed       string `parquet:"name=exchange_rate_used, type=BYTE_ARRAY, convertedtype=UTF8"`
	TotalRevenue           string `parquet:"name=total_revenue, type=BYTE_ARRAY, convertedtype=UTF8"`
	RecurringRevenue       string `parquet:"name=recurring_revenue, type=BYTE_ARRAY, convertedtype=UTF8"`
	GrossProfit            string `parquet:"name=gross_profit, type=BYTE_ARRAY, convertedtype=UTF8"`
	SalesMarketingExpense  string `parquet:"name=sales_marketing_expense, type=BYTE_ARRAY, convertedtype=UTF8"`
	TotalOperatingExpense  string `parquet:"name=total_operating_expense, type=BYTE_ARRAY, convertedtype=UTF8"`
	EBITDA                 string `parquet:"name=ebitda, type=BYTE_ARRAY, convertedtype=UTF8"`
	NetIncome              string `parquet:"name=net_income, type=BYTE_ARRAY, convertedtype=UTF8"`
	CashBurn               string `parquet:"name=cash_burn, type=BYTE_ARRAY, convertedtype=UTF8"`
	CashBalance            string `parquet:"name=cash_balance, type=BYTE_ARRAY, convertedtype=UTF8"`
	DebtOutstanding        string `parquet:"name=debt_outstanding, type=BYTE_ARRAY, convertedtype=UTF8"`
	FiscalReportingDate    string `parquet:"name=fiscal_reporting_date, type=BYTE_ARRAY, convertedtype=UTF8"`
	FiscalReportingQuarter int32  `parquet:"name=fiscal_reporting_quarter, type=INT32"`
	ReportingYear          int32  `parquet:"name=reporting_year, type=INT32"`
	ReportingQuarter       int32  `parquet:"name=reporting_quarter, type=INT32"`
}

// metricsRow is the parquet layout for derived metrics. Nullable metrics are
// written as empty strings when they could not be derived.
type metricsRow struct {
	Company                         string `parquet:"name=company, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Currency                        string `parquet:"name=currency, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	ARR                             string `parquet:"name=arr, type=BYTE_ARRAY, convertedtype=UTF8"`
	RecurringPercentageRevenue      string `parquet:"name=recurring_percentage_revenue, type=BYTE_ARRAY, convertedtype=UTF8"`
	RevenuePerFTE                   string `parquet:"name=revenue_per_fte, type=BYTE_ARRAY, convertedtype=UTF8"`
	GrossProfitPerFTE               string `parquet:"name=gross_profit_per_fte, type=BYTE_ARRAY, convertedtype=UTF8"`
	GrossProfitMargin               string `parquet:"name=gross_profit_margin, type=BYTE_ARRAY, convertedtype=UTF8"`
	SalesMarketingPercentageRevenue string `parquet:"name=sales_marketing_percentage_revenue, type=BYTE_ARRAY, convertedtype=UTF8"`
	TotalOperatingPercentageRevenue string `parquet:"name=total_operating_percentage_revenue, type=BYTE_ARRAY, convertedtype=UTF8"`
	MonthlyCashBurn                 string `parquet:"name=monthly_cash_burn, type=BYTE_ARRAY, convertedtype=UTF8"`
	RunwayMonths                    string `parquet:"name=runway_months, type=BYTE_ARRAY, convertedtype=UTF8"`
	RevenueGrowth                   string `parquet:"name=revenue_growth, type=BYTE_ARRAY, convertedtype=UTF8"`
	EmployeeGrowthRate              string `parquet:"name=employee_growth_rate, type=BYTE_ARRAY, convertedtype=UTF8"`
	ChangeInCash                    string `parquet:"name=change_in_cash, type=BYTE_ARRAY, convertedtype=UTF8"`
	LtmTotalRevenue                 string `parquet:"name=ltm_total_revenue, type=BYTE_ARRAY, convertedtype=UTF8"`
	LtmGrossProfit                  string `parquet:"name=ltm_gross_profit, type=BYTE_ARRAY, convertedtype=UTF8"`
	LtmSalesMarketingExpense        string `parquet:"name=ltm_sales_marketing_expense, type=BYTE_ARRAY, convertedtype=UTF8"`
	LtmOperatingExpense             string `parquet:"name=ltm_operating_expense, type=BYTE_ARRAY, convertedtype=UTF8"`
	LtmEBITDA                       string `parquet:"name=ltm_ebitda, type=BYTE_ARRAY, convertedtype=UTF8"`
	LtmNetIncome                    string `parquet:"name=ltm_net_income, type=BYTE_ARRAY, convertedtype=UTF8"`
	LtmGrossMargin                  string `parquet:"name=ltm_gross_margin, type=BYTE_ARRAY, convertedtype=UTF8"`
	LtmEBITDAMargin                 string `parquet:"name=ltm_ebitda_margin, type=BYTE_ARRAY, convertedtype=UTF8"`
	LtmNetIncomeMargin              string `parquet:"name=ltm_net_income_margin, type=BYTE_ARRAY, convertedtype=UTF8"`
	FiscalReportingDate             string `parquet:"name=fiscal_reporting_date, type=BYTE_ARRAY, convertedtype=UTF8"`
	FiscalReportingQuarter          int32  `parquet:"name=fiscal_reporting_quarter, type=INT32"`
	ReportingYear                   int32  `parquet:"name=reporting_year, type=INT32"`
	ReportingQuarter                int32  `parquet:"name=reporting_quarter, type=INT32"`
}

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export restated financials and derived metrics to parquet",
	Long: `The export sub-command writes the restated financials and derived
metrics to parquet files suitable for loading into analysis tools. When
--year and --quarter are given only that reporting period is exported;
otherwise the whole library is exported. With --upload the files are also
copied to the configured Backblaze bucket.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myLibrary, err := library.NewFromDB(ctx, viper.GetString("db.url"))
		if err != nil {
			log.Fatal().Err(err).Msg("could not connect to library")
		}
		defer myLibrary.Close()

		financials, err := myLibrary.FinancialsForPeriod(ctx, exportYear, exportQuarter)
		if err != nil {
			log.Fatal().Err(err).Msg("could not load restated financials")
		}

		metrics, err := myLibrary.MetricsForPeriod(ctx, exportYear, exportQuarter)
		if err != nil {
			log.Fatal().Err(err).Msg("could not load derived metrics")
		}

		companyList, err := myLibrary.Companies(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("could not load companies")
		}

		names := make(map[uuid.UUID]string, len(companyList))
		for _, company := range companyList {
			names[company.ID] = company.Name
		}

		periodLabel := "all"
		if exportYear != 0 {
			periodLabel = data.Period{Year: exportYear, Quarter: exportQuarter}.String()
		}

		tmpdir, err := os.MkdirTemp(os.TempDir(), "pvmetrics-export")
		if err != nil {
			log.Fatal().Err(err).Msg("could not create tempdir")
		}

		financialsFn := fmt.Sprintf("%s/%s.parquet", tmpdir, slug.Make(fmt.Sprintf("reporting financials %s", periodLabel)))
		log.Info().Str("FileName", financialsFn).Msg("writing restated financials to parquet")
		if err := financialsToParquet(financials, names, financialsFn); err != nil {
			log.Fatal().Err(err).Msg("failed writing financials parquet file")
		}

		metricsFn := fmt.Sprintf("%s/%s.parquet", tmpdir, slug.Make(fmt.Sprintf("reporting metrics %s", periodLabel)))
		log.Info().Str("FileName", metricsFn).Msg("writing derived metrics to parquet")
		if err := metricsToParquet(metrics, names, metricsFn); err != nil {
			log.Fatal().Err(err).Msg("failed writing metrics parquet file")
		}

		if exportUpload {
			if viper.GetString("backblaze.application_id") != "" {
				for _, fn := range []string{financialsFn, metricsFn} {
					if err := backblaze.Upload(fn, periodLabel); err != nil {
						log.Error().Err(err).Str("FileName", fn).Msg("failed uploading parquet file to Backblaze")
					}
				}
			} else {
				log.Info().Msg("skipping upload to backblaze because backblaze credentials are missing")
			}
		}
	},
}

func financialsToParquet(records []*data.ReportingFinancials, names map[uuid.UUID]string, fn string) error {
	fh, err := local.NewLocalFileWriter(fn)
	if err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("cannot create local file")
		return err
	}
	defer fh.Close()

	pw, err := writer.NewParquetWriter(fh, new(financialsRow), 4)
	if err != nil {
		log.Error().
			Str("OriginalError", err.Error()).
			Msg("Parquet write failed")
		return err
	}

	pw.RowGroupSize = 128 * 1024 * 1024 // 128M
	pw.PageSize = 8 * 1024              // 8k
	pw.CompressionType = parquet.CompressionCodec_ZSTD

	for _, record := range records {
		row := &financialsRow{
			Company:                names[record.CompanyID],
			Currency:               record.Currency,
			ExchangeRateUsed:       record.ExchangeRateUsed.String(),
			TotalRevenue:           record.TotalRevenue.String(),
			RecurringRevenue:       record.RecurringRevenue.String(),
			GrossProfit:            record.GrossProfit.String(),
			SalesMarketingExpense:  record.SalesMarketingExpense.String(),
			TotalOperatingExpense:  record.TotalOperatingExpense.String(),
			EBITDA:                 record.EBITDA.String(),
			NetIncome:              record.NetIncome.String(),
			CashBurn:               record.CashBurn.String(),
			CashBalance:            record.CashBalance.String(),
			DebtOutstanding:        exportAmount(record.DebtOutstanding),
			FiscalReportingDate:    record.FiscalReportingDate.Format("2006-01-02"),
			FiscalReportingQuarter: int32(record.FiscalReportingQuarter),
			ReportingYear:          int32(record.ReportingYear),
			ReportingQuarter:       int32(record.ReportingQuarter),
		}

		if err = pw.Write(row); err != nil {
			log.Error().
				Str("OriginalError", err.Error()).
				Str("Company", row.Company).Str("Currency", row.Currency).
				Msg("Parquet write failed for record")
		}
	}

	if err = pw.WriteStop(); err != nil {
		log.Error().Err(err).Msg("Parquet write failed")
		return err
	}

	log.Info().Int("NumRecords", len(records)).Msg("Parquet write finished")
	return nil
}

func metricsToParquet(records []*data.DerivedMetrics, names map[uuid.UUID]string, fn string) error {
	fh, err := local.NewLocalFileWriter(fn)
	if err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("cannot create local file")
		return err
	}
	defer fh.Close()

	pw, err := writer.NewParquetWriter(fh, new(metricsRow), 4)
	if err != nil {
		log.Error().
			Str("OriginalError", err.Error()).
			Msg("Parquet write failed")
		return err
	}

	pw.RowGroupSize = 128 * 1024 * 1024 // 128M
	pw.PageSize = 8 * 1024              // 8k
	pw.CompressionType = parquet.CompressionCodec_ZSTD

	for _, record := range records {
		row := &metricsRow{
			Company:                         names[record.CompanyID],
			Currency:                        record.Currency,
			ARR:                             record.ARR.String(),
			RecurringPercentageRevenue:      record.RecurringPercentageRevenue.String(),
			RevenuePerFTE:                   record.RevenuePerFTE.String(),
			GrossProfitPerFTE:               record.GrossProfitPerFTE.String(),
			GrossProfitMargin:               record.GrossProfitMargin.String(),
			SalesMarketingPercentageRevenue: record.SalesMarketingPercentageRevenue.String(),
			TotalOperatingPercentageRevenue: record.TotalOperatingPercentageRevenue.String(),
			MonthlyCashBurn:                 record.MonthlyCashBurn.String(),
			RunwayMonths:                    record.RunwayMonths.String(),
			RevenueGrowth:                   exportAmount(record.RevenueGrowth),
			EmployeeGrowthRate:              exportAmount(record.EmployeeGrowthRate),
			ChangeInCash:                    exportAmount(record.ChangeInCash),
			LtmTotalRevenue:                 exportAmount(record.LtmTotalRevenue),
			LtmGrossProfit:                  exportAmount(record.LtmGrossProfit),
			LtmSalesMarketingExpense:        exportAmount(record.LtmSalesMarketingExpense),
			LtmOperatingExpense:             exportAmount(record.LtmOperatingExpense),
			LtmEBITDA:                       exportAmount(record.LtmEBITDA),
			LtmNetIncome:                    exportAmount(record.LtmNetIncome),
			LtmGrossMargin:                  exportAmount(record.LtmGrossMargin),
			LtmEBITDAMargin:                 exportAmount(record.LtmEBITDAMargin),
			LtmNetIncomeMargin:              exportAmount(record.LtmNetIncomeMargin),
			FiscalReportingDate:             record.FiscalReportingDate.Format("2006-01-02"),
			FiscalReportingQuarter:          int32(record.FiscalReportingQuarter),
			ReportingYear:                   int32(record.ReportingYear),
			ReportingQuarter:                int32(record.ReportingQuarter),
		}

		if err = pw.Write(row); err != nil {
			log.Error().
				Str("OriginalError", err.Error()).
				Str("Company", row.Company).
				Msg("Parquet write failed for record")
		}
	}

	if err = pw.WriteStop(); err != nil {
		log.Error().Err(err).Msg("Parquet write failed")
		return err
	}

	log.Info().Int("NumRecords", len(records)).Msg("Parquet write finished")
	return nil
}

// exportAmount renders a nullable amount as an exact decimal string; null
// values become the empty string
func exportAmount(value decimal.NullDecimal) string {
	if !value.Valid {
		return ""
	}

	return value.Decimal.String()
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().IntVar(&exportYear, "year", 0, "limit the export to this reporting year")
	exportCmd.Flags().IntVar(&exportQuarter, "quarter", 0, "limit the export to this reporting quarter (1-4)")
	exportCmd.Flags().BoolVar(&exportUpload, "upload", false, "upload the exported files to Backblaze")
}
