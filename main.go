// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of iac-rules

package main

import "github.com/chez-shanpu/iac-rules/cmd"

func main() {
	cmd.Execute()
}
