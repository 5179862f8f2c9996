package main

import (
	"os"

	"tarediiran-industries.com/ticketing-services/internal/ingest/status_rt"
)

func main() {
	os.Exit(status_rt.Main(os.Args[0], os.Args[1:], os.Stdout, os.Stderr))
}
