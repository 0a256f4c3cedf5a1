// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

// Command cubectl inspects a Qlik Sense engine with the same configuration
// and extraction path as the Cubegate server.
//
//	cubectl docs
//	cubectl bookmarks sales
//	cubectl inspect sales aBcDe
//	cubectl extract sales orders --page-size 20 --sort-field Sales --sort-order desc
//	cubectl hash-key s3cret
package main

import (
	"fmt"
	"os"
)

// Version is set at build time.
var Version = "dev"

func main() {
	root := newRootCmd(&cli{connect: connectEngine})
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
