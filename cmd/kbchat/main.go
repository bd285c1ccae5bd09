// Command kbchat answers questions from a corpus of documents.
package main

import (
	"os"

	"github.com/custodia-labs/kbchat/internal/adapters/driving/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
