package domain

import "time"

// RawRecord is one datasheet row as delivered by the upstream API.
type RawRecord struct {
	RecordID string `json:"recordId"`
	Fields   Fields `json:"fields"`
}

// NormalizedTicket is a RawRecord with its canonical concepts resolved.
type NormalizedTicket struct {
	RecordID        string
	Fields          Fields
	ReceivedAt      time.Time
	HasReceivedDate bool
	ReceivedDateRaw string
	ProductLine     string
	Platform        string
	TicketLink      string
	IssueText       string
}

// ReceivedDay returns the received date as a yyyymmdd integer, which orders
// the same way as the calendar dates it encodes.
func (t NormalizedTicket) ReceivedDay() (int, bool) {
	if !t.HasReceivedDate {
		return 0, false
	}
	return DayKey(t.ReceivedAt), true
}

func DayKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}
