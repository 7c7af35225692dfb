package main

import (
	"os"

	"github.com/soundprediction/metaexp/cmd/metaexp"
)

func main() {
	if err := metaexp.Execute(); err != nil {
		os.Exit(1)
	}
}
