package main

import (
	"os"

	"github.com/fyerfyer/pdf-rag/internal/cli"
)

func main() {
	if err := cli.NewQueryCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
