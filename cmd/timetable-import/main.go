package main

import (
	"os"

	"tarediiran-industries.com/ticketing-services/internal/ingest/timetable"
)

func main() {
	os.Exit(timetable.Main(os.Args[0], os.Args[1:], os.Stdout, os.Stderr))
}
