// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of iac-rules

//go:build e2e

package test

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"
	"github.com/onsi/gomega/gexec"
	"gopkg.in/yaml.v3"
)

var _ = Describe("Cache Commands", func() {
	Context("when no bundle was pulled", func() {
		BeforeEach(func() {
			session := ExecuteIacRules("clean", "--force")
			Eventually(session, 10*time.Second).Should(gexec.Exit(0))
		})

		It("path should fail", func() {
			session := ExecuteIacRules("path")
			Eventually(session, 10*time.Second).Should(gexec.Exit(1))
			Expect(session.Err).To(gbytes.Say("no custom rules bundle found"))
		})

		It("status should report the bundle as absent", func() {
			session := ExecuteIacRules("status", "-o", "json")
			Eventually(session, 10*time.Second).Should(gexec.Exit(0))

			var status map[string]interface{}
			Expect(json.Unmarshal(session.Out.Contents(), &status)).To(Succeed())
			Expect(status["present"]).To(BeFalse())
		})

		It("clean should warn", func() {
			session := ExecuteIacRules("clean", "--force")
			Eventually(session, 10*time.Second).Should(gexec.Exit(0))
			Expect(session.Err).To(gbytes.Say("warning: no custom rules bundle found"))
		})
	})

	Context("when a bundle was pulled", func() {
		BeforeEach(func() {
			bundlePath := testFixtures.CreateBundle("cache.tar.gz", testFixtures.GetSimpleBundle())
			testTag := CreateUniqueTag("cache-test")

			session := ExecuteIacRules("push", testTag, "-f", bundlePath)
			Eventually(session, 30*time.Second).Should(gexec.Exit(0))
			session = ExecuteIacRules("pull", testTag)
			Eventually(session, 30*time.Second).Should(gexec.Exit(0))
		})

		AfterEach(func() {
			session := ExecuteIacRules("clean", "--force")
			Eventually(session, 10*time.Second).Should(gexec.Exit(0))
		})

		It("path should print the bundle path", func() {
			session := ExecuteIacRules("path")
			Eventually(session, 10*time.Second).Should(gexec.Exit(0))

			output := strings.TrimSpace(string(session.Out.Contents()))
			Expect(output).To(Equal(filepath.Join(testCacheDir, "custom-bundle.tar.gz")))
			Expect(output).To(BeAnExistingFile())
		})

		It("path --rules should print the extracted rules directory", func() {
			session := ExecuteIacRules("path", "--rules")
			Eventually(session, 10*time.Second).Should(gexec.Exit(0))

			output := strings.TrimSpace(string(session.Out.Contents()))
			Expect(output).To(BeADirectory())
		})

		It("status should show the bundle in table format", func() {
			session := ExecuteIacRules("status")
			Eventually(session, 10*time.Second).Should(gexec.Exit(0))
			Expect(session.Out).To(gbytes.Say("BUNDLE"))
			Expect(session.Out).To(gbytes.Say("custom-bundle.tar.gz"))
		})

		It("status should show the bundle in yaml format", func() {
			session := ExecuteIacRules("status", "-o", "yaml")
			Eventually(session, 10*time.Second).Should(gexec.Exit(0))

			var status map[string]interface{}
			Expect(yaml.Unmarshal(session.Out.Contents(), &status)).To(Succeed())
			Expect(status["present"]).To(BeTrue())
			Expect(status["ruleFiles"]).To(Equal(2))
		})

		It("status should reject unknown formats", func() {
			session := ExecuteIacRules("status", "-o", "xml")
			Eventually(session, 10*time.Second).Should(gexec.Exit(1))
			Expect(session.Err).To(gbytes.Say("unsupported output format"))
		})

		It("clean should remove the bundle and the rules", func() {
			session := ExecuteIacRules("clean", "--force")
			Eventually(session, 10*time.Second).Should(gexec.Exit(0))
			Expect(session.Out).To(gbytes.Say("Removed custom rules"))

			Expect(filepath.Join(testCacheDir, "custom-bundle.tar.gz")).NotTo(BeAnExistingFile())
			Expect(filepath.Join(testCacheDir, "custom-rules")).NotTo(BeADirectory())
		})
	})
})
