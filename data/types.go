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
package data

import "fmt"

type ReportingStatus string

const (
	Active   ReportingStatus = "ACTIVE"
	Inactive ReportingStatus = "INACTIVE"
	Exited   ReportingStatus = "EXITED"
)

type CustomerType string

const (
	SMB        CustomerType = "SMB"
	Enterprise CustomerType = "ENTERPRISE"
	Consumer   CustomerType = "CONSUMER"
)

type RevenueType string

const (
	SaaS          RevenueType = "SAAS"
	Transactional RevenueType = "TRANSACTIONAL"
	Marketplace   RevenueType = "MARKETPLACE"
)

// Period identifies a fiscal reporting quarter.
type Period struct {
	Year    int
	Quarter int
}

// Prev returns the reporting period immediately before the period.
func (period Period) Prev() Period {
	if period.Quarter == 1 {
		return Period{Year: period.Year - 1, Quarter: 4}
	}
	return Period{Year: period.Year, Quarter: period.Quarter - 1}
}

func (period Period) String() string {
	return fmt.Sprintf("%dQ%d", period.Year, period.Quarter)
}
