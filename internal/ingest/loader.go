package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tarediiran-industries.com/ticketing-services/internal/common"
	"tarediiran-industries.com/ticketing-services/internal/db"
	"tarediiran-industries.com/ticketing-services/internal/model"
	"tarediiran-industries.com/ticketing-services/internal/store"
)

const utf8BOM = "\ufeff"

type FileTableEntry struct {
	FileName  string
	TableName string
	Required  bool
	Columns   []string
}

// FileTableMapping lists the timetable files in load order.
var FileTableMapping = []FileTableEntry{
	{FileName: "stations.csv", TableName: "stations", Required: true, Columns: []string{"code", "name", "city"}},
	{FileName: "trains.csv", TableName: "trains", Required: true, Columns: []string{"number", "name", "type"}},
	{FileName: "coaches.csv", TableName: "coaches", Required: false, Columns: []string{"train_number", "label", "type", "capacity", "price"}},
	{FileName: "schedules.csv", TableName: "schedules", Required: false, Columns: []string{"trip_id", "train_number", "status"}},
	{FileName: "journeys.csv", TableName: "journeys", Required: false, Columns: []string{"trip_id", "station_code", "stop_order", "arrival_time", "departure_time"}},
}

var TimetableRequiredFiles = func() []string {
	var required []string
	for _, entry := range FileTableMapping {
		if entry.Required {
			required = append(required, entry.FileName)
		}
	}
	return required
}()

func IsTimetableFile(name string) bool {
	return slices.ContainsFunc(FileTableMapping, func(entry FileTableEntry) bool {
		return entry.FileName == name
	})
}

// ReadCSVAsMapSlice reads a CSV file with a header row. The header must hold
// every expected column; extra columns are ignored.
func ReadCSVAsMapSlice(filePath string, expected []string) ([]map[string]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", filepath.Base(filePath), err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(headers[i], utf8BOM))
	}
	for _, column := range expected {
		if !slices.Contains(headers, column) {
			return nil, fmt.Errorf("%s: missing column %q", filepath.Base(filePath), column)
		}
	}

	var records []map[string]string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(filePath), err)
		}

		record := make(map[string]string, len(headers))
		for i, header := range headers {
			record[header] = strings.TrimSpace(row[i])
		}
		records = append(records, record)
	}
	return records, nil
}

func ValidateTimetableDirectory(dirPath string) error {
	for _, entry := range FileTableMapping {
		if entry.Required {
			filePath := filepath.Join(dirPath, entry.FileName)
			if _, err := os.Stat(filePath); os.IsNotExist(err) {
				return fmt.Errorf("required file %s is missing", entry.FileName)
			}
		}
	}

	return nil
}

type CoachRow struct {
	TrainNumber string
	Coach       model.Coach
}

// Trip is one schedule assembled from schedules.csv and its journeys.csv stops.
type Trip struct {
	TripID      string
	TrainNumber string
	Status      model.ScheduleStatus
	Stops       []StopRow
}

type StopRow struct {
	StationCode   string
	StopOrder     int
	ArrivalTime   *time.Time
	DepartureTime *time.Time
}

type Timetable struct {
	Stations []model.Station
	Trains   []model.Train
	Coaches  []CoachRow
	Trips    []Trip
}

type Summary struct {
	Stations  int64
	Trains    int64
	Coaches   int64
	Schedules int64
	Journeys  int64
}

func (timetable Timetable) Summary() Summary {
	summary := Summary{
		Stations:  int64(len(timetable.Stations)),
		Trains:    int64(len(timetable.Trains)),
		Coaches:   int64(len(timetable.Coaches)),
		Schedules: int64(len(timetable.Trips)),
	}
	for _, trip := range timetable.Trips {
		summary.Journeys += int64(len(trip.Stops))
	}
	return summary
}

func parseTime(file string, line int, column, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%s row %d: %s %q is not RFC 3339", file, line, column, raw)
	}
	parsed = parsed.UTC()
	return &parsed, nil
}

// ReadTimetable parses every timetable file present in dirPath and checks
// references between them.
func ReadTimetable(dirPath string) (Timetable, error) {
	if err := ValidateTimetableDirectory(dirPath); err != nil {
		return Timetable{}, err
	}

	var timetable Timetable
	trips := map[string]*Trip{}
	for _, entry := range FileTableMapping {
		filePath := filepath.Join(dirPath, entry.FileName)
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			continue
		}
		records, err := ReadCSVAsMapSlice(filePath, entry.Columns)
		if err != nil {
			return Timetable{}, err
		}

		for i, record := range records {
			line := i + 2
			switch entry.TableName {
			case "stations":
				timetable.Stations = append(timetable.Stations, model.Station{Code: record["code"], Name: record["name"], City: record["city"]})
			case "trains":
				timetable.Trains = append(timetable.Trains, model.Train{Number: record["number"], Name: record["name"], Type: record["type"]})
			case "coaches":
				row, err := parseCoach(entry.FileName, line, record)
				if err != nil {
					return Timetable{}, err
				}
				timetable.Coaches = append(timetable.Coaches, row)
			case "schedules":
				if _, ok := trips[record["trip_id"]]; ok {
					return Timetable{}, fmt.Errorf("%s row %d: duplicate trip_id %q", entry.FileName, line, record["trip_id"])
				}
				status := model.ScheduleStatus(record["status"])
				if status == "" {
					status = model.StatusOnTime
				}
				trips[record["trip_id"]] = &Trip{TripID: record["trip_id"], TrainNumber: record["train_number"], Status: status}
			case "journeys":
				trip, ok := trips[record["trip_id"]]
				if !ok {
					return Timetable{}, fmt.Errorf("%s row %d: unknown trip_id %q", entry.FileName, line, record["trip_id"])
				}
				stop, err := parseStop(entry.FileName, line, record)
				if err != nil {
					return Timetable{}, err
				}
				trip.Stops = append(trip.Stops, stop)
			}
		}
	}

	for _, trip := range trips {
		sort.Slice(trip.Stops, func(i, j int) bool { return trip.Stops[i].StopOrder < trip.Stops[j].StopOrder })
		timetable.Trips = append(timetable.Trips, *trip)
	}
	sort.Slice(timetable.Trips, func(i, j int) bool { return timetable.Trips[i].TripID < timetable.Trips[j].TripID })

	return timetable, timetable.Validate()
}

func parseCoach(file string, line int, record map[string]string) (CoachRow, error) {
	capacity, err := strconv.Atoi(record["capacity"])
	if err != nil || capacity <= 0 {
		return CoachRow{}, fmt.Errorf("%s row %d: capacity %q", file, line, record["capacity"])
	}
	price, err := decimal.NewFromString(record["price"])
	if err != nil || price.IsNegative() {
		return CoachRow{}, fmt.Errorf("%s row %d: price %q", file, line, record["price"])
	}
	coachType := model.CoachType(record["type"])
	if coachType != model.CoachSeat && coachType != model.CoachBed {
		return CoachRow{}, fmt.Errorf("%s row %d: coach type %q", file, line, record["type"])
	}
	return CoachRow{
		TrainNumber: record["train_number"],
		Coach:       model.Coach{Label: record["label"], Type: coachType, Capacity: capacity, Price: price},
	}, nil
}

func parseStop(file string, line int, record map[string]string) (StopRow, error) {
	order, err := strconv.Atoi(record["stop_order"])
	if err != nil || order < 0 {
		return StopRow{}, fmt.Errorf("%s row %d: stop_order %q", file, line, record["stop_order"])
	}
	arrival, err := parseTime(file, line, "arrival_time", record["arrival_time"])
	if err != nil {
		return StopRow{}, err
	}
	departure, err := parseTime(file, line, "departure_time", record["departure_time"])
	if err != nil {
		return StopRow{}, err
	}
	return StopRow{StationCode: record["station_code"], StopOrder: order, ArrivalTime: arrival, DepartureTime: departure}, nil
}

// Validate checks uniqueness and cross-file references. Rows that refer to
// stations or trains missing from the files are rejected even if the
// database already holds them.
func (timetable Timetable) Validate() error {
	stations := map[string]bool{}
	for _, station := range timetable.Stations {
		if station.Code == "" || station.Name == "" {
			return fmt.Errorf("station %q: code and name are required", station.Code)
		}
		if stations[station.Code] {
			return fmt.Errorf("duplicate station code %q", station.Code)
		}
		stations[station.Code] = true
	}

	trains := map[string]bool{}
	for _, train := range timetable.Trains {
		if train.Number == "" || train.Name == "" {
			return fmt.Errorf("train %q: number and name are required", train.Number)
		}
		if trains[train.Number] {
			return fmt.Errorf("duplicate train number %q", train.Number)
		}
		trains[train.Number] = true
	}

	for _, coach := range timetable.Coaches {
		if !trains[coach.TrainNumber] {
			return fmt.Errorf("coach %s: unknown train %q", coach.Coach.Label, coach.TrainNumber)
		}
	}

	for _, trip := range timetable.Trips {
		if !trains[trip.TrainNumber] {
			return fmt.Errorf("trip %s: unknown train %q", trip.TripID, trip.TrainNumber)
		}
		if len(trip.Stops) < 2 {
			return fmt.Errorf("trip %s: needs at least two stops", trip.TripID)
		}
		for _, stop := range trip.Stops {
			if !stations[stop.StationCode] {
				return fmt.Errorf("trip %s: unknown station %q", trip.TripID, stop.StationCode)
			}
		}
		if trip.Stops[0].DepartureTime == nil || trip.Stops[len(trip.Stops)-1].ArrivalTime == nil {
			return fmt.Errorf("trip %s: first stop needs a departure and last stop an arrival", trip.TripID)
		}
	}
	return nil
}

type Importer struct {
	db     *db.Database
	store  *store.Store
	logger *slog.Logger
}

func NewImporter(database *db.Database, logger *slog.Logger) *Importer {
	return &Importer{db: database, store: store.New(database), logger: logger}
}

// Import loads a timetable directory. Stations and trains are streamed with
// COPY; rows that reference them are resolved to IDs first.
func (importer *Importer) Import(ctx context.Context, dirPath string) (Summary, error) {
	timetable, err := common.RuntimeBenchmark(importer.logger, "parse timetable", func() (Timetable, error) {
		return ReadTimetable(dirPath)
	})
	if err != nil {
		return Summary{}, err
	}

	var summary Summary
	for _, entry := range FileTableMapping[:2] {
		filePath := filepath.Join(dirPath, entry.FileName)
		columns, err := ReadCSVForColumnNames(filePath)
		if err != nil {
			return summary, err
		}
		if !sameColumns(columns, entry.Columns) {
			// Column order or extra columns differ from the table; go row by row.
			columns = entry.Columns
			filePath = ""
		}

		benchmarker := common.NewBenchmarker(importer.logger, "load "+entry.TableName)
		var copied int64
		if filePath != "" {
			copied, err = importer.db.CopyFromCSVFile(ctx, entry.TableName, columns, filepath.Join(dirPath, entry.FileName))
		} else {
			copied, err = importer.copyRows(ctx, entry.TableName, timetable)
		}
		benchmarker.Close()
		if err != nil {
			return summary, fmt.Errorf("load %s: %w", entry.FileName, err)
		}
		if entry.TableName == "stations" {
			summary.Stations = copied
		} else {
			summary.Trains = copied
		}
	}

	trainIDs, err := importer.trainIDs(ctx, timetable.Trains)
	if err != nil {
		return summary, err
	}
	stationIDs, err := importer.stationIDs(ctx, timetable.Stations)
	if err != nil {
		return summary, err
	}

	benchmarker := common.NewBenchmarker(importer.logger, "load coaches")
	summary.Coaches, err = importer.db.CopyFromSlice(ctx, "coaches", []string{"train_id", "label", "type", "capacity", "price"}, len(timetable.Coaches),
		func(i int) ([]any, error) {
			row := timetable.Coaches[i]
			return []any{trainIDs[row.TrainNumber], row.Coach.Label, string(row.Coach.Type), row.Coach.Capacity, row.Coach.Price}, nil
		},
	)
	benchmarker.Close()
	if err != nil {
		return summary, fmt.Errorf("load coaches.csv: %w", err)
	}

	benchmarker = common.NewBenchmarker(importer.logger, "load schedules")
	defer benchmarker.Close()
	for _, trip := range timetable.Trips {
		schedule, stops := trip.resolve(trainIDs, stationIDs)
		_, created, err := importer.store.CreateSchedule(ctx, schedule, stops)
		if err != nil {
			return summary, fmt.Errorf("trip %s: %w", trip.TripID, err)
		}
		summary.Schedules++
		summary.Journeys += int64(len(created))
	}
	return summary, nil
}

func sameColumns(got, want []string) bool {
	return slices.Equal(got, want)
}

func (importer *Importer) copyRows(ctx context.Context, table string, timetable Timetable) (int64, error) {
	if table == "stations" {
		return importer.db.CopyFromSlice(ctx, table, []string{"code", "name", "city"}, len(timetable.Stations), func(i int) ([]any, error) {
			station := timetable.Stations[i]
			return []any{station.Code, station.Name, station.City}, nil
		})
	}
	return importer.db.CopyFromSlice(ctx, table, []string{"number", "name", "type"}, len(timetable.Trains), func(i int) ([]any, error) {
		train := timetable.Trains[i]
		return []any{train.Number, train.Name, train.Type}, nil
	})
}

func (importer *Importer) trainIDs(ctx context.Context, trains []model.Train) (map[string]int64, error) {
	ids := make(map[string]int64, len(trains))
	for _, train := range trains {
		stored, err := importer.store.GetTrainByNumber(ctx, train.Number)
		if err != nil {
			return nil, fmt.Errorf("resolve train %s: %w", train.Number, err)
		}
		ids[train.Number] = stored.ID
	}
	return ids, nil
}

func (importer *Importer) stationIDs(ctx context.Context, stations []model.Station) (map[string]int64, error) {
	ids := make(map[string]int64, len(stations))
	for _, station := range stations {
		stored, err := importer.store.GetStationByCode(ctx, station.Code)
		if err != nil {
			return nil, fmt.Errorf("resolve station %s: %w", station.Code, err)
		}
		ids[station.Code] = stored.ID
	}
	return ids, nil
}

func (trip Trip) resolve(trainIDs, stationIDs map[string]int64) (model.Schedule, []model.Journey) {
	first, last := trip.Stops[0], trip.Stops[len(trip.Stops)-1]
	tripID := trip.TripID
	schedule := model.Schedule{
		TrainID:        trainIDs[trip.TrainNumber],
		StartStationID: stationIDs[first.StationCode],
		EndStationID:   stationIDs[last.StationCode],
		DepartureTime:  *first.DepartureTime,
		ArrivalTime:    *last.ArrivalTime,
		Status:         trip.Status,
		ExternalTripID: &tripID,
	}

	stops := make([]model.Journey, 0, len(trip.Stops))
	for _, stop := range trip.Stops {
		stops = append(stops, model.Journey{
			StationID:     stationIDs[stop.StationCode],
			StopOrder:     stop.StopOrder,
			ArrivalTime:   stop.ArrivalTime,
			DepartureTime: stop.DepartureTime,
		})
	}
	return schedule, stops
}

func ReadCSVForColumnNames(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Gets just the first row, which contains the headers
	headers, err := reader.Read()
	if err != nil {
		return nil, err
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(headers[i], utf8BOM))
	}

	return headers, nil
}
