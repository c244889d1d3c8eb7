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
package library

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/penny-vault/pvmetrics/data"
	"github.com/xeonx/timeago"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Summary returns a description of the library in markdown
func (myLibrary *Library) Summary(ctx context.Context) (string, error) {
	p := message.NewPrinter(language.English)
	builder := strings.Builder{}

	if _, err := builder.WriteString(fmt.Sprintf("# %s\n", myLibrary.Name)); err != nil {
		return "", err
	}

	if _, err := builder.WriteString("## Details\n\n"); err != nil {
		return "", err
	}

	// Database connection string
	if _, err := builder.WriteString(fmt.Sprintf("Database: %s\n\n", myLibrary.DBUrl)); err != nil {
		return "", err
	}

	// Number of portfolio companies
	numCompanies, err := myLibrary.NumCompanies(ctx)
	if err != nil {
		return "", err
	}

	numActive, err := myLibrary.NumActiveCompanies(ctx)
	if err != nil {
		return "", err
	}

	if _, err := builder.WriteString(p.Sprintf("  * Num Companies: %d (%d active)\n", numCompanies, numActive)); err != nil {
		return "", err
	}

	// Reported quarters awaiting or already through transformation
	numInputs, err := myLibrary.NumInputs(ctx)
	if err != nil {
		return "", err
	}

	if _, err := builder.WriteString(p.Sprintf("  * Reported Quarters: %d\n", numInputs)); err != nil {
		return "", err
	}

	// Restated financial records across settlement currencies
	numReports, err := myLibrary.NumReports(ctx)
	if err != nil {
		return "", err
	}

	if _, err := builder.WriteString(p.Sprintf("  * Restated Financials: %d\n", numReports)); err != nil {
		return "", err
	}

	// Derived metric rows
	numMetrics, err := myLibrary.NumMetrics(ctx)
	if err != nil {
		return "", err
	}

	if _, err := builder.WriteString(p.Sprintf("  * Derived Metrics: %d\n\n", numMetrics)); err != nil {
		return "", err
	}

	// Last transformation time
	lastTransformed, err := myLibrary.LastTransformed(ctx)
	if err != nil {
		return "", err
	}

	age := timeago.English.Format(lastTransformed)

	if lastTransformed.Equal(time.Time{}) {
		if _, err := builder.WriteString("Last Transformed: Never\n\n"); err != nil {
			return "", err
		}
	} else {
		if _, err := builder.WriteString(fmt.Sprintf("Last Transformed: %s (%s)\n\n", age, lastTransformed.Local().Format("01/02/2006"))); err != nil {
			return "", err
		}
	}

	// Companies
	if _, err := builder.WriteString("## Companies\n\n"); err != nil {
		return "", err
	}

	companies, err := myLibrary.Companies(ctx)
	if err != nil {
		return "", err
	}

	for _, company := range companies {
		if company.ReportingStatus != data.Active {
			continue
		}

		inputs, err := myLibrary.InputsForCompany(ctx, company.ID)
		if err != nil {
			return "", err
		}

		coverage := "no quarters reported"
		if len(inputs) > 0 {
			first := inputs[len(inputs)-1].Period()
			last := inputs[0].Period()
			coverage = p.Sprintf("%d quarters (%s - %s)", len(inputs), first, last)
		}

		if _, err := builder.WriteString(p.Sprintf("  * %s %s %s [%s]\n", company.Name,
			company.ReportingCurrency, coverage, company.ID.String()[:6])); err != nil {
			return "", err
		}
	}

	if _, err := builder.WriteString("## Inactive companies\n\n"); err != nil {
		return "", err
	}

	for _, company := range companies {
		if company.ReportingStatus == data.Active {
			continue
		}

		if _, err := builder.WriteString(p.Sprintf("  * %s %s (%s) [%s]\n", company.Name,
			company.ReportingCurrency, company.ReportingStatus, company.ID.String()[:6])); err != nil {
			return "", err
		}
	}

	return builder.String(), nil
}
