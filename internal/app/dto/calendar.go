package dto

import (
	"ecostay/internal/domain/availability"
)

type BookedRange struct {
	BookingID string `json:"booking_id"`
	CheckIn   string `json:"check_in"`
	CheckOut  string `json:"check_out,omitempty"`
	Status    string `json:"status"`
}

// Calendar is the public view of a listing's availability document.
type Calendar struct {
	ListingID    string        `json:"listing_id"`
	HostID       string        `json:"host_id"`
	BlockedDates []string      `json:"blocked_dates"`
	BookedRanges []BookedRange `json:"booked_ranges"`
	Version      int64         `json:"version"`
}

func MapCalendar(doc *availability.ListingAvailability) Calendar {
	if doc == nil {
		return Calendar{}
	}
	blocked := doc.SortedBlockedDates()
	dates := make([]string, 0, len(blocked))
	for _, d := range blocked {
		dates = append(dates, d.String())
	}
	booked := doc.BookedRanges()
	ranges := make([]BookedRange, 0, len(booked))
	for _, r := range booked {
		ranges = append(ranges, BookedRange{
			BookingID: r.BookingID,
			CheckIn:   r.CheckIn.String(),
			CheckOut:  r.CheckOut.String(),
			Status:    string(r.Status),
		})
	}
	return Calendar{ListingID: doc.ListingID, HostID: doc.HostID, BlockedDates: dates, BookedRanges: ranges, Version: doc.Version}
}
