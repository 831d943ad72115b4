package service

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/saimali7/Tour-CRM-sub003/internal/models"
)

// 2026-06-05 is a Friday (weekday 5).
const testDate = "2026-06-05"

func testParams() Params {
	return Params{
		OrgID:                "org_test",
		Loc:                  time.UTC,
		MaxVehicleCapacity:   16,
		DefaultPickupMinutes: 5,
		PickupWindowMinutes:  90,
		DriveBufferMinutes:   30,
	}
}

// newFixture seeds a store with one tour, three pickup addresses, and
// two guides working Fridays: g-alex (capacity 6) and g-maria
// (capacity 8).
func newFixture() *memStore {
	s := newMemStore()
	s.data.tours["sunset"] = models.Tour{
		ID: "sunset", Name: "Sunset Cruise", DurationMinutes: 120,
		MeetingLat: 36.4341, MeetingLon: 28.2176,
	}
	s.data.addrs["addr-a"] = models.PickupAddress{
		ID: "addr-a", Name: "Lindos Square", Zone: "lindos",
		Lat: 36.0913, Lon: 28.0880, AvgPickupMinutes: 5,
	}
	s.data.addrs["addr-b"] = models.PickupAddress{
		ID: "addr-b", Name: "Lindos Beach Hotel", Zone: "lindos",
		Lat: 36.1000, Lon: 28.0950, AvgPickupMinutes: 5,
	}
	s.data.addrs["addr-c"] = models.PickupAddress{
		ID: "addr-c", Name: "Old Town Gate", Zone: "town",
		Lat: 36.4449, Lon: 28.2225, AvgPickupMinutes: 5,
	}
	s.data.guides["g-alex"] = models.Guide{
		ID: "g-alex", Name: "Alex", VehicleCapacity: 6,
		WeeklyDays: []int16{5}, Kind: models.GuideKindSystem, Active: true,
	}
	s.data.guides["g-maria"] = models.Guide{
		ID: "g-maria", Name: "Maria", VehicleCapacity: 8,
		WeeklyDays: []int16{5}, Kind: models.GuideKindSystem, Active: true,
	}
	return s
}

func seedBooking(s *memStore, id string, adults int, addrID string, private bool) {
	s.data.bookings[id] = models.Booking{
		ID: id, TourID: "sunset", Date: testDate, Time: "17:00",
		Adults: adults, PickupAddressID: addrID, IsPrivate: private,
		CustomerName: "Party " + id,
	}
}

func testCenter(s *memStore) *CommandCenter {
	return &CommandCenter{Store: s, Logger: zerolog.Nop(), Params: testParams()}
}

func testLedger(s *memStore) *Ledger {
	return &Ledger{Store: s, Params: testParams(), Logger: zerolog.Nop()}
}
