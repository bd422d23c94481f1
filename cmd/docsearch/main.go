// Command docsearch searches a document corpus from the terminal and manages
// the shared corpus of running searchers.
//
// Usage:
//
//	docsearch search "reset my password" --dir ./docs
//	docsearch explain password-reset "reset my password" --dir ./docs
//	docsearch describe --config configs/development.yaml
//	docsearch invalidate --reason "docs deployed"
//	docsearch import ./docs --create-table
package main

import (
	"os"

	"github.com/Adithya-Monish-Kumar-K/docrank/cmd/docsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
