// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of iac-rules

//go:build e2e

package test

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"
	"github.com/onsi/gomega/gexec"
)

var _ = Describe("Pull Command", func() {
	var bundlePath string

	BeforeEach(func() {
		bundlePath = testFixtures.CreateBundle("rules.tar.gz", testFixtures.GetSimpleBundle())
	})

	AfterEach(func() {
		session := ExecuteIacRules("clean", "--force")
		Eventually(session, 10*time.Second).Should(gexec.Exit(0))
	})

	Context("when the bundle was pushed", func() {
		var testTag string

		BeforeEach(func() {
			testTag = CreateUniqueTag("pull-test")
			session := ExecuteIacRules("push", testTag, "-f", bundlePath)
			Eventually(session, 30*time.Second).Should(gexec.Exit(0))
			Expect(session.Out).To(gbytes.Say("Pushed"))
		})

		It("should install the bundle into the cache", func() {
			session := ExecuteIacRules("pull", testTag)
			Eventually(session, 30*time.Second).Should(gexec.Exit(0))
			Expect(session.Out).To(gbytes.Say(`\(2 rule files\)`))

			By("Comparing the cached bundle with the pushed one")
			want, err := os.ReadFile(bundlePath)
			Expect(err).NotTo(HaveOccurred())
			got, err := os.ReadFile(filepath.Join(testCacheDir, "custom-bundle.tar.gz"))
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))

			By("Checking the extracted rules")
			Expect(filepath.Join(testCacheDir, "custom-rules", "policies", "require_tags.rego")).To(BeAnExistingFile())
		})

		It("should accept a URL with a scheme", func() {
			session := ExecuteIacRules("pull", "http://"+testTag)
			Eventually(session, 30*time.Second).Should(gexec.Exit(0))
		})

		It("should use the registry URL from the environment", func() {
			session := ExecuteIacRulesWithEnv([]string{"IAC_RULES_REGISTRY_URL=" + testTag}, "pull")
			Eventually(session, 30*time.Second).Should(gexec.Exit(0))
			Expect(session.Out).To(gbytes.Say("Pulled"))
		})
	})

	Context("when the tag is omitted", func() {
		var repo string

		BeforeEach(func() {
			repo = fmt.Sprintf("%s/pull-latest-%d", testRegistry.GetRegistryURL(), time.Now().UnixNano())
			session := ExecuteIacRules("push", repo, "-f", bundlePath)
			Eventually(session, 30*time.Second).Should(gexec.Exit(0))
		})

		It("should pull the latest tag", func() {
			session := ExecuteIacRules("pull", repo)
			Eventually(session, 30*time.Second).Should(gexec.Exit(0))
			Expect(filepath.Join(testCacheDir, "custom-bundle.tar.gz")).To(BeAnExistingFile())
		})
	})

	Context("when pulling fails", func() {
		It("should report an invalid URL", func() {
			session := ExecuteIacRules("pull", "no-repository")
			Eventually(session, 10*time.Second).Should(gexec.Exit(1))
			Expect(session.Err).To(gbytes.Say("INVALID_REMOTE_REGISTRY_URL"))
		})

		It("should report a missing tag", func() {
			session := ExecuteIacRules("pull", CreateUniqueTag("absent"))
			Eventually(session, 30*time.Second).Should(gexec.Exit(1))
			Expect(session.Err).To(gbytes.Say("not found"))
			Expect(filepath.Join(testCacheDir, "custom-bundle.tar.gz")).NotTo(BeAnExistingFile())
		})

		It("should require a URL", func() {
			session := ExecuteIacRules("pull")
			Eventually(session, 10*time.Second).Should(gexec.Exit(1))
			Expect(session.Err).To(gbytes.Say("no registry URL given"))
		})

		It("should refuse pulls without the entitlement", func() {
			session := ExecuteIacRulesWithEnv([]string{"IAC_RULES_ENTITLEMENTS=somethingElse"}, "pull", CreateUniqueTag("gated"))
			Eventually(session, 10*time.Second).Should(gexec.Exit(1))
			Expect(session.Err).To(gbytes.Say("UNSUPPORTED_ENTITLEMENT_PULL"))
		})

		It("should report a bundle that is not a tar.gz", func() {
			testTag := CreateUniqueTag("pull-invalid")
			invalid := testFixtures.CreateFile("invalid.tar.gz", "not a bundle")
			session := ExecuteIacRules("push", testTag, "-f", invalid)
			Eventually(session, 30*time.Second).Should(gexec.Exit(0))

			session = ExecuteIacRules("pull", testTag)
			Eventually(session, 30*time.Second).Should(gexec.Exit(1))
			Expect(session.Err).To(gbytes.Say("FAILED_TO_BUILD_OCI_ARTIFACT"))
		})
	})
})
