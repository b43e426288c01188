package models

import (
	"fmt"
	"strings"
	"time"
)

// TrainStatus enumerates the lifecycle states of a scheduled train.
type TrainStatus string

const (
	TrainStatusScheduled TrainStatus = "scheduled"
	TrainStatusDelayed   TrainStatus = "delayed"
	TrainStatusCancelled TrainStatus = "cancelled"
	TrainStatusArrived   TrainStatus = "arrived"
	TrainStatusDeparted  TrainStatus = "departed"
)

// Valid reports whether the status is a known value.
func (s TrainStatus) Valid() bool {
	switch s {
	case TrainStatusScheduled, TrainStatusDelayed, TrainStatusCancelled, TrainStatusArrived, TrainStatusDeparted:
		return true
	}
	return false
}

// TrainType enumerates the service categories of a train.
type TrainType string

const (
	TrainTypePassenger TrainType = "passenger"
	TrainTypeFreight   TrainType = "freight"
	TrainTypeExpress   TrainType = "express"
)

// Valid reports whether the type is a known value.
func (t TrainType) Valid() bool {
	switch t {
	case TrainTypePassenger, TrainTypeFreight, TrainTypeExpress:
		return true
	}
	return false
}

// Train represents a schedule record stored in the trains table.
type Train struct {
	ID               string      `db:"id" json:"id"`
	TrainNumber      string      `db:"train_number" json:"train_number"`
	DepartureStation string      `db:"departure_station" json:"departure_station"`
	ArrivalStation   string      `db:"arrival_station" json:"arrival_station"`
	DepartureTime    time.Time   `db:"departure_time" json:"departure_time"`
	ArrivalTime      time.Time   `db:"arrival_time" json:"arrival_time"`
	Platform         string      `db:"platform" json:"platform"`
	Status           TrainStatus `db:"status" json:"status"`
	Type             TrainType   `db:"type" json:"type"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updated_at"`
}

// Listing defaults applied by TrainFilter.Normalize.
const (
	DefaultPage      = 1
	DefaultLimit     = 10
	DefaultSortBy    = "departure_time"
	DefaultSortOrder = "asc"
)

// trainSortFields is the closed set of fields a caller may sort by.
var trainSortFields = map[string]struct{}{
	"train_number":      {},
	"departure_station": {},
	"arrival_station":   {},
	"departure_time":    {},
	"arrival_time":      {},
	"platform":          {},
	"status":            {},
	"type":              {},
}

// TrainFilter captures listing parameters for trains. Zero values mean the
// criterion is absent; Normalize applies defaults and validates the rest.
type TrainFilter struct {
	Search           string
	TrainNumber      string
	DepartureStation string
	ArrivalStation   string
	Platform         string
	Status           TrainStatus
	Type             TrainType
	DepartureDate    string
	ArrivalDate      string
	Page             int
	Limit            int
	SortBy           string
	SortOrder        string
}

// Normalize applies listing defaults and rejects out-of-range or unknown
// values before the filter reaches the query layer. The returned error names
// the offending field.
func (f *TrainFilter) Normalize() error {
	if f.Page == 0 {
		f.Page = DefaultPage
	}
	if f.Page < 1 {
		return fmt.Errorf("page must be at least 1")
	}
	if f.Limit == 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit < 1 {
		return fmt.Errorf("limit must be at least 1")
	}

	if f.SortBy == "" {
		f.SortBy = DefaultSortBy
	}
	if _, ok := trainSortFields[f.SortBy]; !ok {
		return fmt.Errorf("unknown sort_by field %q", f.SortBy)
	}

	switch strings.ToLower(f.SortOrder) {
	case "":
		f.SortOrder = DefaultSortOrder
	case "asc":
		f.SortOrder = "asc"
	case "desc":
		f.SortOrder = "desc"
	default:
		return fmt.Errorf("sort_order must be asc or desc")
	}

	if f.Status != "" && !f.Status.Valid() {
		return fmt.Errorf("unknown status %q", f.Status)
	}
	if f.Type != "" && !f.Type.Valid() {
		return fmt.Errorf("unknown type %q", f.Type)
	}

	if f.DepartureDate != "" {
		if _, _, err := DayRange(f.DepartureDate); err != nil {
			return fmt.Errorf("departure_time: %w", err)
		}
	}
	if f.ArrivalDate != "" {
		if _, _, err := DayRange(f.ArrivalDate); err != nil {
			return fmt.Errorf("arrival_time: %w", err)
		}
	}

	return nil
}

// Offset returns the row offset for the current page.
func (f TrainFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// DayRange expands a date string into the inclusive range covering that
// calendar day in the system local zone, from midnight to one millisecond
// before the next midnight. The end is derived from the next calendar
// midnight rather than a fixed 24h offset, so DST-shortened or -lengthened
// days still end at 23:59:59.999 local time.
func DayRange(raw string) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", raw, time.Local)
	if err != nil {
		parsed, rfcErr := time.Parse(time.RFC3339, raw)
		if rfcErr != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q", raw)
		}
		local := parsed.In(time.Local)
		day = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.Local)
	}
	start := day
	end := time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, time.Local).Add(-time.Millisecond)
	return start, end, nil
}

// Pagination contains listing metadata returned alongside a page of records.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// TrainPage is the bounded result of a listing query: one page of records
// plus the total count of rows matching the same predicate.
type TrainPage struct {
	Data  []Train `json:"data"`
	Total int     `json:"total"`
	Page  int     `json:"page"`
	Limit int     `json:"limit"`
}
