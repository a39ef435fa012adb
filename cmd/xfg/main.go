// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

// Command xfg synchronizes declaratively specified configuration files
// across many repositories hosted on GitHub, Azure DevOps, and GitLab.
package main

import (
	"os"

	"github.com/archmagece/xfg/cmd/xfg/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
