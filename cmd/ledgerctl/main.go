package main

import (
	"os"

	"github.com/school-fee-ledger/internal/ledgerctl"
)

func main() {
	os.Exit(ledgerctl.Execute(ledgerctl.DefaultOptions(), os.Args[1:]))
}
