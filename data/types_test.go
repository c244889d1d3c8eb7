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
package data_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pvmetrics/data"
)

var _ = Describe("Period", func() {
	Describe("Prev", func() {
		It("returns the prior quarter within the same year", func() {
			period := data.Period{Year: 2023, Quarter: 3}
			Expect(period.Prev()).To(Equal(data.Period{Year: 2023, Quarter: 2}))
		})

		It("wraps to the fourth quarter of the prior year", func() {
			period := data.Period{Year: 2023, Quarter: 1}
			Expect(period.Prev()).To(Equal(data.Period{Year: 2022, Quarter: 4}))
		})

		It("walks back a full year in four steps", func() {
			period := data.Period{Year: 2023, Quarter: 2}
			for range 4 {
				period = period.Prev()
			}
			Expect(period).To(Equal(data.Period{Year: 2022, Quarter: 2}))
		})
	})

	Describe("String", func() {
		It("formats as year and quarter", func() {
			Expect(data.Period{Year: 2023, Quarter: 2}.String()).To(Equal("2023Q2"))
		})
	})
})
