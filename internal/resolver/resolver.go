// Package resolver answers one question: which available driver is closest
// to a point at a given day and hour. It runs a single-pass pipeline per
// request: fetch the live snapshot, narrow it to fresh entries, drop busy
// drivers, pick the nearest survivor.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/example/pickup-dispatch/internal/apperrors"
	"github.com/example/pickup-dispatch/internal/feed"
	"github.com/example/pickup-dispatch/internal/models"
	"github.com/example/pickup-dispatch/internal/storage"
)

type Service struct {
	Feed    feed.Client
	Orders  storage.OrderStore
	Drivers storage.DriverDirectory
	Logger  *slog.Logger
}

// candidate is the transient distance record for one driver; it never leaves
// a resolution call.
type candidate struct {
	driverID int
	distance float64
}

// FindNearestAvailableDriver resolves the closest driver that is free at the
// given hour on the given day. A (nil, nil) return means no driver was found,
// which is a valid empty outcome, not an error. The pipeline runs once, reads
// only, and returns nothing partial.
func (s *Service) FindNearestAvailableDriver(ctx context.Context, latitude, longitude int, day, hour string) (*models.Driver, error) {
	if latitude < 0 || longitude < 0 {
		return nil, fmt.Errorf("%w: latitude=%d longitude=%d", apperrors.ErrInvalidCoordinate, latitude, longitude)
	}

	locations, err := s.Feed.Locations(ctx)
	if err != nil {
		return nil, err
	}

	fresh := filterFresh(locations, day, hour)

	available, err := s.availableDriverIDs(ctx, fresh, day, hour)
	if err != nil {
		return nil, err
	}

	candidates := lo.Filter(fresh, func(l models.DriverLocation, _ int) bool {
		return available[l.ID]
	})

	return s.nearest(ctx, latitude, longitude, candidates)
}

// filterFresh keeps locations whose lastUpdate text contains the hour
// substring. The day argument only gates whether the filter runs at all; its
// content is never compared against the timestamp. That asymmetry is the
// documented upstream contract, so it stays. With an empty day (or hour) the
// snapshot passes through untouched.
func filterFresh(locations []models.DriverLocation, day, hour string) []models.DriverLocation {
	if day == "" || hour == "" {
		return locations
	}
	out := make([]models.DriverLocation, 0, len(locations))
	for _, l := range locations {
		if strings.Contains(l.LastUpdate, hour) {
			out = append(out, l)
		}
	}
	return out
}

// availableDriverIDs returns the set of drivers with no order covering the
// hour on the given day. Drivers the directory does not know are never marked
// available. Per-driver order lookups fan out concurrently; results merge by
// input index so the outcome does not depend on scheduling.
func (s *Service) availableDriverIDs(ctx context.Context, locations []models.DriverLocation, day, hour string) (map[int]bool, error) {
	at, err := models.ParseTimeOfDay(hour)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not HH:MM:SS", apperrors.ErrInvalidTimeFormat, hour)
	}

	ids := lo.Map(locations, func(l models.DriverLocation, _ int) int { return l.ID })
	drivers, err := s.Drivers.DriversByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	busy := make([]bool, len(drivers))
	errs := make([]error, len(drivers))
	var wg sync.WaitGroup
	for i, d := range drivers {
		wg.Add(1)
		go func(i int, d models.Driver) {
			defer wg.Done()
			orders, err := s.Orders.OrdersForDriverOnDay(ctx, d.ID, day)
			if err != nil {
				errs[i] = err
				return
			}
			for _, o := range orders {
				if o.Covers(at) {
					busy[i] = true
					return
				}
			}
		}(i, d)
	}
	wg.Wait()
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	available := make(map[int]bool, len(drivers))
	for i, d := range drivers {
		if !busy[i] {
			available[d.ID] = true
		}
	}
	return available, nil
}

// nearest picks the closest candidate by straight-line distance and loads its
// full record. The sort is stable, so equal distances fall back to feed
// order. A winner deleted between steps degrades to no-driver-found.
func (s *Service) nearest(ctx context.Context, latitude, longitude int, locations []models.DriverLocation) (*models.Driver, error) {
	if len(locations) == 0 {
		return nil, nil
	}

	candidates := make([]candidate, 0, len(locations))
	for _, l := range locations {
		candidates = append(candidates, candidate{
			driverID: l.ID,
			distance: distance(latitude, longitude, l),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})

	winner, err := s.Drivers.DriverByID(ctx, candidates[0].driverID)
	if err != nil {
		return nil, err
	}
	if winner == nil && s.Logger != nil {
		s.Logger.Warn("nearest driver vanished from directory", "driver_id", candidates[0].driverID)
	}
	return winner, nil
}

// distance is the Euclidean distance from the query point to a driver's
// truncated integer coordinates.
func distance(latitude, longitude int, loc models.DriverLocation) float64 {
	dx := float64(loc.Lat.Int() - latitude)
	dy := float64(loc.Lng.Int() - longitude)
	return math.Sqrt(dx*dx + dy*dy)
}
