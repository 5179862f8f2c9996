package main

import (
	"os"

	"tarediiran-industries.com/ticketing-services/internal/web/ticketing_api"
)

func main() {
	os.Exit(ticketing_api.Main(os.Args[0], os.Args[1:], os.Stdout, os.Stderr))
}
