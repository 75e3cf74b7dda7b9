package main

import (
	"os"

	"github.com/shopspring/decimal"
)

var version = "dev"

func main() {
	// Amounts travel as JSON numbers, matching what API clients send.
	decimal.MarshalJSONWithoutQuotes = true
	if err := Execute(version); err != nil {
		os.Exit(1)
	}
}
