package ticketing_api

type ReceiptVM struct {
	Reference      string
	Status         string
	BookedAt       string
	Train          string
	From           string
	To             string
	Departure      string
	Arrival        string
	Duration       string
	Delay          string
	Passenger      string
	PassengerEmail string
	Tickets        []ReceiptTicketVM
	Total          string
}

type ReceiptTicketVM struct {
	Coach  string
	Class  string
	Seat   int
	From   string
	To     string
	Status string
	Price  string
}

type BoardPageVM struct {
	Code        string
	Station     string
	City        string
	PollSeconds int
	Table       BoardTableVM
}

type BoardTableVM struct {
	Code      string
	UpdatedAt string
	Rows      []BoardRowVM
}

type BoardRowVM struct {
	Scheduled   string
	Expected    string
	Train       string
	Destination string
	Status      string
	Leaves      string
}
