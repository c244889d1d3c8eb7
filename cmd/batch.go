/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/hako/durafmt"
	"github.com/penny-vault/pvmetrics/fx"
	"github.com/penny-vault/pvmetrics/healthcheck"
	"github.com/penny-vault/pvmetrics/library"
	"github.com/penny-vault/pvmetrics/transform"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	batchYear    int
	batchQuarter int
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Transform the reporting period for every active company",
	Long: `The batch sub-command runs the transform for every ACTIVE portfolio
company for the given reporting period. Companies that have not reported the
period, and companies whose transform fails, are logged and skipped; the
remaining companies are still processed.

When a healthchecks.io check is configured the batch reports its outcome so
missed or failing runs raise an alert.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := log.Logger.WithContext(context.Background())

		if batchYear == 0 || batchQuarter == 0 {
			log.Fatal().Msg("both --year and --quarter must be provided")
		}

		myLibrary, err := library.NewFromDB(ctx, viper.GetString("db.url"))
		if err != nil {
			log.Fatal().Err(err).Msg("could not connect to library")
		}
		defer myLibrary.Close()

		companies, err := myLibrary.ActiveCompanies(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("could not load active companies")
		}

		pipeline := transform.New(myLibrary, fx.New())

		var (
			transformed int
			unreported  int
			failed      int
		)

		startTime := time.Now()

		for _, company := range companies {
			companyLogger := log.With().Str("Company", company.Name).Int("Year", batchYear).Int("Quarter", batchQuarter).Logger()

			if _, _, err := pipeline.Transform(ctx, company.ID, batchYear, batchQuarter); err != nil {
				if errors.Is(err, transform.ErrInputNotFound) {
					companyLogger.Warn().Msg("no financials reported for period; skipping")
					unreported++
					continue
				}

				companyLogger.Error().Err(err).Msg("transform failed; skipping")
				failed++
				continue
			}

			transformed++
		}

		runTime := time.Since(startTime)

		log.Info().Str("RunTime", durafmt.Parse(runTime).String()).
			Int("Transformed", transformed).Int("Unreported", unreported).Int("Failed", failed).
			Msg("batch transform complete")

		// report batch outcome to healthchecks.io when configured
		if checkID := viper.GetString("healthchecks.checkid"); checkID != "" {
			if failed > 0 {
				if err := healthcheck.Fail(checkID); err != nil {
					log.Error().Err(err).Msg("could not report failure to healthchecks.io")
				}
			} else {
				if err := healthcheck.Ping(checkID); err != nil {
					log.Error().Err(err).Msg("could not ping healthchecks.io")
				}
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&batchYear, "year", 0, "reporting year to transform")
	batchCmd.Flags().IntVar(&batchQuarter, "quarter", 0, "reporting quarter to transform (1-4)")
}
