/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package dbpool_test

import (
	. "github.com/nabbar/reactord/dbpool"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("[TC-CF] Config", func() {
	Describe("Config Validation", func() {
		It("[TC-CF-001] should fail validation without host", func() {
			cfg := Config{Port: 3306, User: "root", DBName: "webserver", PoolSize: 4}
			Expect(cfg.Validate()).To(HaveOccurred())
		})

		It("[TC-CF-002] should fail validation without pool size", func() {
			cfg := Config{Host: "127.0.0.1", Port: 3306, User: "root", DBName: "webserver"}
			Expect(cfg.Validate()).To(HaveOccurred())
		})

		It("[TC-CF-003] should fail validation with an out-of-range port", func() {
			cfg := Config{Host: "127.0.0.1", Port: 99999, User: "root", DBName: "webserver", PoolSize: 4}
			Expect(cfg.Validate()).To(HaveOccurred())
		})

		It("[TC-CF-004] should pass validation with all required fields set", func() {
			cfg := Config{Host: "127.0.0.1", Port: 3306, User: "root", Password: "secret", DBName: "webserver", PoolSize: 4}
			Expect(cfg.Validate()).NotTo(HaveOccurred())
		})

		It("[TC-CF-005] should build a DSN from a valid config", func() {
			cfg := Config{Host: "127.0.0.1", Port: 3306, User: "root", Password: "secret", DBName: "webserver", PoolSize: 4}
			Expect(cfg.DSN()).To(Equal("root:secret@tcp(127.0.0.1:3306)/webserver?charset=utf8mb4&parseTime=True&loc=Local"))
		})
	})
})
