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
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/gosimple/slug"
	"github.com/jackc/pgx/v5"
	"github.com/pelletier/go-toml/v2"
	"github.com/penny-vault/pvmetrics/db"
	"github.com/penny-vault/pvmetrics/healthcheck"
	"github.com/penny-vault/pvmetrics/library"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// configFile mirrors the layout of ~/.pvmetrics.toml; section and key names
// must line up with the viper keys the commands read
type configFile struct {
	DB struct {
		URL string `toml:"url"`
	} `toml:"db"`

	ExchangeRate struct {
		URL       string `toml:"url"`
		APIKey    string `toml:"apikey"`
		RateLimit int    `toml:"rate_limit"`
	} `toml:"exchangerate"`

	Healthchecks struct {
		APIKey  string `toml:"apikey"`
		CheckID string `toml:"checkid"`
	} `toml:"healthchecks"`
}

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Gather database and exchange rate configuration and setup schema",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		myLibrary := &library.Library{}
		config := configFile{}

		fxURL := "https://openexchangerates.org/api"
		fxRateLimit := "60"

		form := huh.NewForm(
			// Gather details about the library and who owns it
			huh.NewGroup(
				huh.NewInput().
					Title("Give the library a name:").
					Value(&myLibrary.Name),

				huh.NewInput().
					Title("Who owns the library?").
					Value(&myLibrary.Owner),
			),

			// Get details about the database
			huh.NewGroup(
				huh.NewInput().
					Title("Provide the DSN for connecting to your PostgreSQL database (postgres://[user[:password]@][netloc][:port][/dbname][?param1=value1&...])").
					Value(&myLibrary.DBUrl).
					Validate(func(dsn string) error {
						_, err := pgx.ParseConfig(dsn)
						return err
					}),
			),

			// Exchange rate service used to restate financials
			huh.NewGroup(
				huh.NewInput().
					Title("Exchange rate service URL:").
					Value(&fxURL),

				huh.NewInput().
					Title("Exchange rate service API key:").
					Value(&config.ExchangeRate.APIKey),

				huh.NewInput().
					Title("Exchange rate requests per minute:").
					Value(&fxRateLimit).
					Validate(func(limit string) error {
						_, err := strconv.Atoi(limit)
						return err
					}),
			),

			// Optional healthchecks.io monitoring for batch transforms
			huh.NewGroup(
				huh.NewInput().
					Title("healthchecks.io API key (leave blank to skip monitoring):").
					Value(&config.Healthchecks.APIKey),
			),
		)

		err := form.Run()
		if err != nil {
			log.Fatal().Err(err).Msg("error gathering database settings")
		}

		log.Info().Msg("creating database tables")

		// run migration
		dbURL := strings.Replace(myLibrary.DBUrl, "postgres://", "pgx5://", -1)
		err = db.Migrate(dbURL)
		if err != nil {
			log.Fatal().Err(err).Msg("error running database migration")
		}

		log.Info().Msg("database tables created")
		log.Info().Msg("Saving library name and owner to database")

		// save library name and owner to database
		if err := myLibrary.Connect(ctx); err != nil {
			log.Fatal().Err(err).Msg("could not connect to database")
		}
		defer myLibrary.Close()

		err = myLibrary.SaveDB(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("error saving library settings to database")
		}

		// create a healthchecks.io check for batch transforms when
		// monitoring was requested
		if config.Healthchecks.APIKey != "" {
			viper.Set("healthchecks.apikey", config.Healthchecks.APIKey)

			checkName := fmt.Sprintf("%s batch transform", myLibrary.Name)
			checkID, err := healthcheck.Create(checkName, slug.Make(checkName),
				[]string{"pvmetrics", "batch"}, "0 6 15 1,4,7,10 *")
			if err != nil {
				log.Fatal().Err(err).Msg("creating healthcheck failed")
			}

			config.Healthchecks.CheckID = checkID
			log.Info().Str("CheckID", checkID).Msg("created healthchecks.io check for batch transforms")
		}

		// save settings to config file
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatal().Err(err).Msg("could not determine user home directory")
		}

		config.DB.URL = myLibrary.DBUrl
		config.ExchangeRate.URL = strings.TrimSuffix(fxURL, "/")
		config.ExchangeRate.RateLimit, err = strconv.Atoi(fxRateLimit)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid rate limit")
		}

		configFN := filepath.Join(home, ".pvmetrics.toml")
		log.Info().Str("ConfigFile", configFN).Msg("Saving database connection info to config file")
		configData, err := toml.Marshal(config)
		if err != nil {
			log.Fatal().Err(err).Msg("could not marshal configuration data")
		}

		err = os.WriteFile(configFN, configData, 0644)
		if err != nil {
			log.Fatal().Err(err).Str("FileName", configFN).Msg("could not save configuration to file")
		}

		log.Info().Msg("Your metrics library has been initialized")
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
