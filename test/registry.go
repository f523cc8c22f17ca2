// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of iac-rules

//go:build e2e

package test

import (
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"syscall"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gexec"
)

const registryImage = "registry:2"

// Registry runs a distribution registry in Docker for pushing and pulling bundles
type Registry struct {
	port      string
	container string
	session   *gexec.Session
}

// NewRegistry creates a new Registry instance
func NewRegistry() *Registry {
	return &Registry{
		port:      findFreePort(),
		container: fmt.Sprintf("iac-rules-test-registry-%d", time.Now().UnixNano()),
	}
}

// Start starts the registry container and waits until it serves the API
func (r *Registry) Start() {
	cmd := exec.Command("docker", "run", "--rm",
		"--name", r.container,
		"-p", fmt.Sprintf("%s:5000", r.port),
		registryImage)

	var err error
	r.session, err = gexec.Start(cmd, GinkgoWriter, GinkgoWriter)
	Expect(err).NotTo(HaveOccurred())

	r.waitForReady()
}

// Stop stops the registry container
func (r *Registry) Stop() {
	if r.session != nil {
		r.session.Signal(syscall.SIGTERM)
		Eventually(r.session, 10*time.Second).Should(gexec.Exit())
	}

	_ = exec.Command("docker", "rm", "-f", r.container).Run()
}

// GetRegistryURL returns the registry host and port
func (r *Registry) GetRegistryURL() string {
	return fmt.Sprintf("localhost:%s", r.port)
}

// waitForReady polls the /v2/ endpoint until the registry answers
func (r *Registry) waitForReady() {
	client := &http.Client{Timeout: time.Second}
	Eventually(func() int {
		resp, err := client.Get(fmt.Sprintf("http://%s/v2/", r.GetRegistryURL()))
		if err != nil {
			return 0
		}
		resp.Body.Close()
		return resp.StatusCode
	}, 30*time.Second, 500*time.Millisecond).Should(Equal(http.StatusOK))
}

// findFreePort finds an available port for the registry
func findFreePort() string {
	listener, err := net.Listen("tcp", ":0")
	Expect(err).NotTo(HaveOccurred())
	defer listener.Close()

	port := listener.Addr().(*net.TCPAddr).Port
	return fmt.Sprintf("%d", port)
}
