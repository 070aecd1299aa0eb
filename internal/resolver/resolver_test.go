package resolver

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/example/pickup-dispatch/internal/apperrors"
	"github.com/example/pickup-dispatch/internal/feed"
	"github.com/example/pickup-dispatch/internal/models"
	"github.com/example/pickup-dispatch/internal/storage"
)

type fakeFeed struct {
	locations []models.DriverLocation
	err       error
}

func (f *fakeFeed) Locations(ctx context.Context) ([]models.DriverLocation, error) {
	return f.locations, f.err
}

var _ feed.Client = (*fakeFeed)(nil)

func loc(id, lat, lng int, lastUpdate string) models.DriverLocation {
	return models.DriverLocation{ID: id, Lat: models.FlexInt(lat), Lng: models.FlexInt(lng), LastUpdate: lastUpdate}
}

func tod(t *testing.T, s string) models.TimeOfDay {
	t.Helper()
	v, err := models.ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v
}

func newService(f feed.Client, m *storage.MemoryStore) *Service {
	return &Service{Feed: f, Orders: m, Drivers: m}
}

func TestBusyDriverIsSkippedForTheNextNearest(t *testing.T) {
	// Driver 1 is closer but mid-order at the queried hour; driver 2 wins.
	m := storage.NewMemoryStore()
	d1 := m.AddDriver(models.Driver{FirstName: "Ana", LastName: "Solis"})
	d2 := m.AddDriver(models.Driver{FirstName: "Beto", LastName: "Rios"})
	m.AddOrder(models.NewOrder("night run", "2021-12-10", tod(t, "00:00:00"), nil, d1.ID, models.Coordinate{}, models.Coordinate{}))

	f := &fakeFeed{locations: []models.DriverLocation{
		loc(d1.ID, 5, 9, "2021-12-10 00:00:00"),
		loc(d2.ID, 2, 6, "2021-12-10 00:00:00"),
	}}

	got, err := newService(f, m).FindNearestAvailableDriver(context.Background(), 1, 7, "2021-12-10", "00:00:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != d2.ID {
		t.Fatalf("got %+v, want driver %d", got, d2.ID)
	}
}

func TestAvailabilityWindowBoundaries(t *testing.T) {
	m := storage.NewMemoryStore()
	d := m.AddDriver(models.Driver{FirstName: "Ana"})
	m.AddOrder(models.NewOrder("shift", "2021-12-10", tod(t, "10:00:00"), nil, d.ID, models.Coordinate{}, models.Coordinate{}))

	cases := []struct {
		day, hour string
		free      bool
	}{
		{"2021-12-10", "10:00:00", false}, // window start, inclusive
		{"2021-12-10", "10:30:00", false},
		{"2021-12-10", "11:00:00", false}, // window end, inclusive
		{"2021-12-10", "11:00:01", true},
		{"2021-12-10", "09:59:59", true},
		{"2021-12-11", "10:30:00", true}, // other day
	}
	for _, c := range cases {
		f := &fakeFeed{locations: []models.DriverLocation{loc(d.ID, 3, 4, c.day+" "+c.hour)}}
		got, err := newService(f, m).FindNearestAvailableDriver(context.Background(), 0, 0, c.day, c.hour)
		if err != nil {
			t.Fatalf("%s %s: unexpected error: %v", c.day, c.hour, err)
		}
		if c.free && got == nil {
			t.Errorf("%s %s: driver should be available", c.day, c.hour)
		}
		if !c.free && got != nil {
			t.Errorf("%s %s: driver should be busy", c.day, c.hour)
		}
	}
}

func TestEqualDistanceKeepsFeedOrder(t *testing.T) {
	m := storage.NewMemoryStore()
	d1 := m.AddDriver(models.Driver{FirstName: "First"})
	d2 := m.AddDriver(models.Driver{FirstName: "Second"})

	// Both are at distance 5 from (0, 0); the earlier feed entry must win.
	f := &fakeFeed{locations: []models.DriverLocation{
		loc(d2.ID, 3, 4, "2021-12-10 12:00:00"),
		loc(d1.ID, 4, 3, "2021-12-10 12:00:00"),
	}}

	got, err := newService(f, m).FindNearestAvailableDriver(context.Background(), 0, 0, "2021-12-10", "12:00:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != d2.ID {
		t.Fatalf("got %+v, want first feed entry (driver %d)", got, d2.ID)
	}
}

func TestNegativeCoordinatesRejectedBeforeIO(t *testing.T) {
	feedCalled := false
	f := feedFunc(func(ctx context.Context) ([]models.DriverLocation, error) {
		feedCalled = true
		return nil, nil
	})
	s := &Service{Feed: f, Orders: storage.NewMemoryStore(), Drivers: storage.NewMemoryStore()}

	for _, q := range [][2]int{{-1, 7}, {1, -7}, {-1, -7}} {
		_, err := s.FindNearestAvailableDriver(context.Background(), q[0], q[1], "2021-12-10", "00:00:00")
		if !errors.Is(err, apperrors.ErrInvalidCoordinate) {
			t.Errorf("(%d,%d): expected ErrInvalidCoordinate, got %v", q[0], q[1], err)
		}
	}
	if feedCalled {
		t.Fatal("feed must not be touched on invalid coordinates")
	}
}

type feedFunc func(ctx context.Context) ([]models.DriverLocation, error)

func (f feedFunc) Locations(ctx context.Context) ([]models.DriverLocation, error) { return f(ctx) }

func TestEmptyFeedMeansNoDriverFound(t *testing.T) {
	got, err := newService(&fakeFeed{}, storage.NewMemoryStore()).
		FindNearestAvailableDriver(context.Background(), 1, 1, "2021-12-10", "09:00:00")
	if err != nil {
		t.Fatalf("no driver must not be an error, got %v", err)
	}
	if got != nil {
		t.Fatalf("got %+v, want nil", got)
	}
}

func TestFeedErrorPropagates(t *testing.T) {
	f := &fakeFeed{err: fmt.Errorf("%w: connect refused", apperrors.ErrUpstreamUnavailable)}
	_, err := newService(f, storage.NewMemoryStore()).
		FindNearestAvailableDriver(context.Background(), 1, 1, "2021-12-10", "09:00:00")
	if !errors.Is(err, apperrors.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestInvalidHourFormat(t *testing.T) {
	m := storage.NewMemoryStore()
	d := m.AddDriver(models.Driver{FirstName: "Ana"})
	f := &fakeFeed{locations: []models.DriverLocation{loc(d.ID, 1, 1, "2021-12-10 late")}}

	_, err := newService(f, m).FindNearestAvailableDriver(context.Background(), 1, 1, "2021-12-10", "late")
	if !errors.Is(err, apperrors.ErrInvalidTimeFormat) {
		t.Fatalf("expected ErrInvalidTimeFormat, got %v", err)
	}
}

func TestDriverUnknownToDirectoryIsNeverAvailable(t *testing.T) {
	m := storage.NewMemoryStore()
	f := &fakeFeed{locations: []models.DriverLocation{loc(99, 1, 1, "2021-12-10 09:00:00")}}

	got, err := newService(f, m).FindNearestAvailableDriver(context.Background(), 1, 1, "2021-12-10", "09:00:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("driver absent from directory must not be selected, got %+v", got)
	}
}

func TestWinnerDeletedBetweenStepsDegradesToNoDriver(t *testing.T) {
	m := storage.NewMemoryStore()
	d := m.AddDriver(models.Driver{FirstName: "Ana"})
	f := &fakeFeed{locations: []models.DriverLocation{loc(d.ID, 1, 1, "2021-12-10 09:00:00")}}

	s := &Service{Feed: f, Orders: m, Drivers: &vanishingDirectory{MemoryStore: m, dropOnLookup: d.ID}}
	got, err := s.FindNearestAvailableDriver(context.Background(), 1, 1, "2021-12-10", "09:00:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("deleted winner must degrade to no-driver-found, got %+v", got)
	}
}

// vanishingDirectory deletes a driver right before the final by-id lookup,
// simulating a deletion racing the pipeline.
type vanishingDirectory struct {
	*storage.MemoryStore
	dropOnLookup int
}

func (v *vanishingDirectory) DriverByID(ctx context.Context, id int) (*models.Driver, error) {
	if id == v.dropOnLookup {
		v.MemoryStore.RemoveDriver(id)
	}
	return v.MemoryStore.DriverByID(ctx, id)
}

// The freshness filter's day argument only decides whether the filter runs;
// the timestamp is matched against the hour substring alone. This pins down
// the inherited behavior rather than endorsing it.
func TestFilterFresh_DayOnlyGatesHourMatch(t *testing.T) {
	locations := []models.DriverLocation{
		loc(1, 0, 0, "2020-01-01 09:00:00"), // different day, matching hour
		loc(2, 0, 0, "2021-12-10 10:00:00"), // same day, different hour
	}

	got := filterFresh(locations, "2021-12-10", "09:00:00")
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("hour substring should be the only criterion, got %+v", got)
	}

	// Empty day skips the filter entirely.
	got = filterFresh(locations, "", "09:00:00")
	if len(got) != 2 {
		t.Fatalf("empty day must skip the filter, got %d entries", len(got))
	}

	// Empty hour matches everything.
	got = filterFresh(locations, "2021-12-10", "")
	if len(got) != 2 {
		t.Fatalf("empty hour must pass everything, got %d entries", len(got))
	}
}

func TestDistanceProperties(t *testing.T) {
	l := loc(1, 5, 9, "")
	if d := distance(5, 9, l); d != 0 {
		t.Fatalf("distance to own point = %f, want 0", d)
	}
	if d := distance(1, 7, l); d < 0 {
		t.Fatalf("distance must be non-negative, got %f", d)
	}
	// 3-4-5 triangle
	if d := distance(2, 5, l); d != 5 {
		t.Fatalf("distance = %f, want 5", d)
	}
}

func TestManyDriversAvailabilityMergeIsDeterministic(t *testing.T) {
	// A pile of drivers with interleaved busy windows; the winner must be the
	// same on every run regardless of lookup scheduling.
	m := storage.NewMemoryStore()
	locations := make([]models.DriverLocation, 0, 20)
	for i := 0; i < 20; i++ {
		d := m.AddDriver(models.Driver{FirstName: fmt.Sprintf("d%02d", i)})
		if i%2 == 0 {
			m.AddOrder(models.NewOrder("busy", "2021-12-10", tod(t, "09:00:00"), nil, d.ID, models.Coordinate{}, models.Coordinate{}))
		}
		// Even ids sit closer to the origin than odd ones.
		locations = append(locations, loc(d.ID, i, i, "2021-12-10 09:30:00"))
	}
	f := &fakeFeed{locations: locations}
	s := newService(f, m)

	want := 0
	for run := 0; run < 25; run++ {
		got, err := s.FindNearestAvailableDriver(context.Background(), 0, 0, "2021-12-10", "09:30:00")
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if got == nil {
			t.Fatalf("run %d: expected a driver", run)
		}
		if run == 0 {
			want = got.ID
			continue
		}
		if got.ID != want {
			t.Fatalf("run %d: got driver %d, previous runs got %d", run, got.ID, want)
		}
	}
}
