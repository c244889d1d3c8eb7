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
	"errors"
	"fmt"
	"os/user"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/penny-vault/pvmetrics/data"
	"github.com/penny-vault/pvmetrics/library"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// companyCmd represents the company command
var companyCmd = &cobra.Command{
	Use:   "company",
	Short: "Manage the portfolio companies tracked by the library",
}

// companyAddCmd represents the company add command
var companyAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Onboard a new portfolio company",
	Long: `Companies are the reporting entities pvmetrics tracks. The wizard
gathers the company profile: which currency it reports in, which fund holds
it, and how its revenue is classified. Quarterly financials are loaded
separately with the import command.

Also see: company list, import`,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			confirmed bool

			equityRaised string
			postMoney    string
			yearEnd      string
			customerType string
			revenueType  string
		)

		ctx := context.Background()

		myLibrary, err := library.NewFromDB(ctx, viper.GetString("db.url"))
		if err != nil {
			log.Fatal().Err(err).Msg("could not connect to library")
		}
		defer myLibrary.Close()

		company := &data.Company{
			ReportingStatus:   data.Active,
			ReportingCurrency: "USD",
		}

		// walk user through the company profile
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("What is the company named?").
					Value(&company.Name),
				huh.NewInput().
					Title("Which currency does the company report in? (ISO-4217)").
					Value(&company.ReportingCurrency).
					Validate(func(code string) error {
						if len(code) != 3 || strings.ToUpper(code) != code {
							return errors.New("currency must be a 3-letter upper-case ISO-4217 code")
						}
						return nil
					}),
				huh.NewInput().
					Title("Which fund holds the investment?").
					Value(&company.Fund),
				huh.NewInput().
					Title("Which country is the company located in?").
					Value(&company.LocationCountry),
			),

			huh.NewGroup(
				huh.NewSelect[string]().
					Title("Who are the company's customers?").
					Options(
						huh.NewOption("Small and medium business", string(data.SMB)),
						huh.NewOption("Enterprise", string(data.Enterprise)),
						huh.NewOption("Consumer", string(data.Consumer)),
					).
					Value(&customerType),
				huh.NewSelect[string]().
					Title("How does the company earn revenue?").
					Options(
						huh.NewOption("SaaS subscriptions", string(data.SaaS)),
						huh.NewOption("Transactional", string(data.Transactional)),
						huh.NewOption("Marketplace", string(data.Marketplace)),
					).
					Value(&revenueType),
			),

			huh.NewGroup(
				huh.NewInput().
					Title("Total equity raised (blank if unknown):").
					Value(&equityRaised).
					Validate(validOptionalAmount),
				huh.NewInput().
					Title("Post-money valuation (blank if unknown):").
					Value(&postMoney).
					Validate(validOptionalAmount),
				huh.NewInput().
					Title("Fiscal year end date (YYYY-MM-DD):").
					Value(&yearEnd).
					Validate(func(val string) error {
						_, err := time.Parse("2006-01-02", val)
						return err
					}),
			),
		)

		err = form.Run()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create wizard")
		}

		company.CustomerType = data.CustomerType(customerType)
		company.RevenueType = data.RevenueType(revenueType)

		if equityRaised != "" {
			amount, err := decimal.NewFromString(equityRaised)
			if err != nil {
				log.Fatal().Err(err).Msg("invalid equity raised amount")
			}
			company.EquityRaised = decimal.NewNullDecimal(amount)
		}

		if postMoney != "" {
			amount, err := decimal.NewFromString(postMoney)
			if err != nil {
				log.Fatal().Err(err).Msg("invalid post-money valuation")
			}
			company.PostMoneyValuation = decimal.NewNullDecimal(amount)
		}

		company.YearEndDate, err = time.Parse("2006-01-02", yearEnd)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid fiscal year end date")
		}

		// Print company summary
		{
			var sb strings.Builder
			keyword := func(s string) string {
				return lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Render(s)
			}

			fmt.Fprintf(&sb,
				"%s\n\nName: %s\nCurrency: %s\nFund: %s\nCountry: %s\nCustomers: %s\nRevenue: %s\nYear End: %s\n",
				lipgloss.NewStyle().Bold(true).Render("NEW COMPANY"),
				keyword(company.Name),
				keyword(company.ReportingCurrency),
				keyword(company.Fund),
				keyword(company.LocationCountry),
				keyword(string(company.CustomerType)),
				keyword(string(company.RevenueType)),
				keyword(company.YearEndDate.Format("2006-01-02")),
			)

			if company.EquityRaised.Valid {
				fmt.Fprintf(&sb, "Equity Raised: %s\n", keyword(company.EquityRaised.Decimal.String()))
			}
			if company.PostMoneyValuation.Valid {
				fmt.Fprintf(&sb, "Post-Money Valuation: %s\n", keyword(company.PostMoneyValuation.Decimal.String()))
			}

			fmt.Println(
				lipgloss.NewStyle().
					Width(60).
					BorderStyle(lipgloss.RoundedBorder()).
					BorderForeground(lipgloss.Color("63")).
					Padding(1, 2).
					Render(sb.String()),
			)
		}

		confirmForm := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Add company?").
					Value(&confirmed),
			),
		)

		err = confirmForm.Run()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create wizard")
		}

		if confirmed {
			if user, err := user.Current(); err != nil {
				log.Fatal().Err(err).Msg("could not determine current user")
			} else {
				company.CreatedBy = user.Username
				company.LastUpdatedBy = user.Username
			}

			conn, err := myLibrary.Pool.Acquire(ctx)
			if err != nil {
				log.Fatal().Err(err).Msg("could not acquire database connection")
			}
			defer conn.Release()

			if err := company.SaveDB(ctx, conn); err != nil {
				log.Fatal().Err(err).Msg("failed saving company")
			}

			log.Info().Str("CompanyID", company.ID.String()).Msg("company added")
		} else {
			log.Info().Msg("Not saving company")
		}
	},
}

// companyListCmd represents the company list command
var companyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the portfolio companies in the library",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myLibrary, err := library.NewFromDB(ctx, viper.GetString("db.url"))
		if err != nil {
			log.Fatal().Err(err).Msg("could not connect to library")
		}
		defer myLibrary.Close()

		companies, err := myLibrary.Companies(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("could not list companies")
		}

		builder := strings.Builder{}
		builder.WriteString("# Portfolio Companies\n\n")
		builder.WriteString("| ID | Name | Currency | Status | Fund | Country |\n")
		builder.WriteString("| --- | --- | --- | --- | --- | --- |\n")

		for _, company := range companies {
			builder.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s |\n",
				company.ID.String()[:6], company.Name, company.ReportingCurrency,
				company.ReportingStatus, company.Fund, company.LocationCountry))
		}

		r, _ := glamour.NewTermRenderer(
			// detect background color and pick either the default dark or light theme
			glamour.WithAutoStyle(),
			// wrap output at specific width (default is 80)
			glamour.WithWordWrap(120),
		)

		out, err := r.Render(builder.String())
		if err != nil {
			log.Fatal().Err(err).Msg("could not render company table")
		}

		fmt.Print(out)
	},
}

// validOptionalAmount accepts a blank value or a parseable decimal amount
func validOptionalAmount(val string) error {
	if val == "" {
		return nil
	}

	_, err := decimal.NewFromString(val)
	return err
}

func init() {
	rootCmd.AddCommand(companyCmd)
	companyCmd.AddCommand(companyAddCmd)
	companyCmd.AddCommand(companyListCmd)
}
