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

	"github.com/charmbracelet/glamour"
	"github.com/penny-vault/pvmetrics/data"
	"github.com/penny-vault/pvmetrics/fx"
	"github.com/penny-vault/pvmetrics/library"
	"github.com/penny-vault/pvmetrics/transform"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	transformYear    int
	transformQuarter int
)

// transformCmd represents the transform command
var transformCmd = &cobra.Command{
	Use:   "transform <company>",
	Short: "Restate a company's reported quarter and derive its metrics",
	Long: `The transform sub-command takes the financials a company reported
for one quarter, restates them into each settlement currency using the
exchange rate on the fiscal reporting date, and derives the quarterly
metrics used in portfolio reviews. The company may be referenced by name or
by a unique prefix of its ID.

Re-running a transform overwrites the previously stored records for the
period.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := log.Logger.WithContext(context.Background())

		if transformYear == 0 || transformQuarter == 0 {
			log.Fatal().Msg("both --year and --quarter must be provided")
		}

		myLibrary, err := library.NewFromDB(ctx, viper.GetString("db.url"))
		if err != nil {
			log.Fatal().Err(err).Msg("could not connect to library")
		}
		defer myLibrary.Close()

		company, err := myLibrary.CompanyFromID(ctx, args[0])
		if err != nil {
			log.Fatal().Err(err).Str("Company", args[0]).Msg("could not find company")
		}

		pipeline := transform.New(myLibrary, fx.New())

		financials, derived, err := pipeline.Transform(ctx, company.ID, transformYear, transformQuarter)
		if err != nil {
			log.Fatal().Err(err).Msg("transform failed")
		}

		report := buildMetricsReport(company, financials, derived)

		r, _ := glamour.NewTermRenderer(
			// detect background color and pick either the default dark or light theme
			glamour.WithAutoStyle(),
			// wrap output at specific width (default is 80)
			glamour.WithWordWrap(80),
		)

		out, err := r.Render(report)
		if err != nil {
			log.Fatal().Err(err).Msg("could not render metrics report")
		}

		fmt.Print(out)
	},
}

// buildMetricsReport renders the reported financials and derived metrics for
// one company quarter as markdown
func buildMetricsReport(company *data.Company, financials *data.ReportingFinancials, derived *data.DerivedMetrics) string {
	builder := strings.Builder{}

	builder.WriteString(fmt.Sprintf("# %s %s\n\n", company.Name, financials.Period()))
	builder.WriteString(fmt.Sprintf("Reported in %s for the fiscal quarter ending %s\n\n",
		financials.Currency, financials.FiscalReportingDate.Format("2006-01-02")))

	builder.WriteString(fmt.Sprintf("## Financials (%s)\n\n", financials.Currency))
	builder.WriteString("| Measure | Value |\n")
	builder.WriteString("| --- | --- |\n")
	builder.WriteString(fmt.Sprintf("| Total Revenue | %s |\n", financials.TotalRevenue))
	builder.WriteString(fmt.Sprintf("| Recurring Revenue | %s |\n", financials.RecurringRevenue))
	builder.WriteString(fmt.Sprintf("| Gross Profit | %s |\n", financials.GrossProfit))
	builder.WriteString(fmt.Sprintf("| Sales & Marketing | %s |\n", financials.SalesMarketingExpense))
	builder.WriteString(fmt.Sprintf("| Operating Expense | %s |\n", financials.TotalOperatingExpense))
	builder.WriteString(fmt.Sprintf("| EBITDA | %s |\n", financials.EBITDA))
	builder.WriteString(fmt.Sprintf("| Net Income | %s |\n", financials.NetIncome))
	builder.WriteString(fmt.Sprintf("| Cash Burn | %s |\n", financials.CashBurn))
	builder.WriteString(fmt.Sprintf("| Cash Balance | %s |\n", financials.CashBalance))
	builder.WriteString(fmt.Sprintf("| Debt Outstanding | %s |\n", nullAmount(financials.DebtOutstanding)))

	builder.WriteString("\n## Derived Metrics\n\n")
	builder.WriteString("| Metric | Value |\n")
	builder.WriteString("| --- | --- |\n")
	builder.WriteString(fmt.Sprintf("| ARR | %s |\n", derived.ARR))
	builder.WriteString(fmt.Sprintf("| Recurring Revenue %% | %s |\n", derived.RecurringPercentageRevenue))
	builder.WriteString(fmt.Sprintf("| Revenue per FTE | %s |\n", derived.RevenuePerFTE))
	builder.WriteString(fmt.Sprintf("| Gross Profit per FTE | %s |\n", derived.GrossProfitPerFTE))
	builder.WriteString(fmt.Sprintf("| Gross Profit Margin | %s |\n", derived.GrossProfitMargin))
	builder.WriteString(fmt.Sprintf("| Sales & Marketing %% of Revenue | %s |\n", derived.SalesMarketingPercentageRevenue))
	builder.WriteString(fmt.Sprintf("| Operating Expense %% of Revenue | %s |\n", derived.TotalOperatingPercentageRevenue))
	builder.WriteString(fmt.Sprintf("| Monthly Cash Burn | %s |\n", derived.MonthlyCashBurn))
	builder.WriteString(fmt.Sprintf("| Runway (months) | %s |\n", derived.RunwayMonths))
	builder.WriteString(fmt.Sprintf("| Revenue Growth (QoQ) | %s |\n", nullAmount(derived.RevenueGrowth)))
	builder.WriteString(fmt.Sprintf("| Employee Growth (QoQ) | %s |\n", nullAmount(derived.EmployeeGrowthRate)))
	builder.WriteString(fmt.Sprintf("| Change in Cash | %s |\n", nullAmount(derived.ChangeInCash)))

	builder.WriteString("\n## Last Twelve Months\n\n")
	builder.WriteString("| Metric | Value |\n")
	builder.WriteString("| --- | --- |\n")
	builder.WriteString(fmt.Sprintf("| LTM Revenue | %s |\n", nullAmount(derived.LtmTotalRevenue)))
	builder.WriteString(fmt.Sprintf("| LTM Gross Profit | %s |\n", nullAmount(derived.LtmGrossProfit)))
	builder.WriteString(fmt.Sprintf("| LTM Sales & Marketing | %s |\n", nullAmount(derived.LtmSalesMarketingExpense)))
	builder.WriteString(fmt.Sprintf("| LTM Operating Expense | %s |\n", nullAmount(derived.LtmOperatingExpense)))
	builder.WriteString(fmt.Sprintf("| LTM EBITDA | %s |\n", nullAmount(derived.LtmEBITDA)))
	builder.WriteString(fmt.Sprintf("| LTM Net Income | %s |\n", nullAmount(derived.LtmNetIncome)))
	builder.WriteString(fmt.Sprintf("| LTM Gross Margin | %s |\n", nullAmount(derived.LtmGrossMargin)))
	builder.WriteString(fmt.Sprintf("| LTM EBITDA Margin | %s |\n", nullAmount(derived.LtmEBITDAMargin)))
	builder.WriteString(fmt.Sprintf("| LTM Net Income Margin | %s |\n", nullAmount(derived.LtmNetIncomeMargin)))

	return builder.String()
}

// nullAmount formats a nullable amount for display
func nullAmount(value decimal.NullDecimal) string {
	if !value.Valid {
		return "n/a"
	}

	return value.Decimal.String()
}

func init() {
	rootCmd.AddCommand(transformCmd)

	transformCmd.Flags().IntVar(&transformYear, "year", 0, "reporting year to transform")
	transformCmd.Flags().IntVar(&transformQuarter, "quarter", 0, "reporting quarter to transform (1-4)")
}
