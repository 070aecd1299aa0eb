package feed

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/example/pickup-dispatch/internal/models"
)

const driverIDSetKey = "feed:drivers"

// SnapshotStore keeps the latest known location per driver in Redis. The
// location daemon writes into it from the ingest stream and serves the feed
// endpoint out of it.
type SnapshotStore struct {
	client *redis.Client
}

func NewSnapshotStore(addr, password string) *SnapshotStore {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &SnapshotStore{client: c}
}

func NewSnapshotStoreWithClient(c *redis.Client) *SnapshotStore {
	return &SnapshotStore{client: c}
}

func (s *SnapshotStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *SnapshotStore) Close() error { return s.client.Close() }

// Upsert records the latest location for one driver.
func (s *SnapshotStore) Upsert(ctx context.Context, loc models.DriverLocation) error {
	if err := s.client.HSet(ctx, locationKey(loc.ID), map[string]interface{}{
		"lat":        strconv.Itoa(loc.Lat.Int()),
		"lng":        strconv.Itoa(loc.Lng.Int()),
		"lastUpdate": loc.LastUpdate,
	}).Err(); err != nil {
		return err
	}
	return s.client.SAdd(ctx, driverIDSetKey, loc.ID).Err()
}

// Snapshot returns every known driver location, ordered by driver id so the
// feed output is deterministic.
func (s *SnapshotStore) Snapshot(ctx context.Context) ([]models.DriverLocation, error) {
	members, err := s.client.SMembers(ctx, driverIDSetKey).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(members))
	for _, m := range members {
		id, err := strconv.Atoi(m)
		if err != nil {
			return nil, fmt.Errorf("corrupt driver id %q in snapshot set", m)
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]models.DriverLocation, 0, len(ids))
	for _, id := range ids {
		fields, err := s.client.HGetAll(ctx, locationKey(id)).Result()
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			continue
		}
		loc := models.DriverLocation{ID: id, LastUpdate: fields["lastUpdate"]}
		if v, err := strconv.Atoi(fields["lat"]); err == nil {
			loc.Lat = models.FlexInt(v)
		}
		if v, err := strconv.Atoi(fields["lng"]); err == nil {
			loc.Lng = models.FlexInt(v)
		}
		out = append(out, loc)
	}
	return out, nil
}

func locationKey(id int) string { return "feed:driver:" + strconv.Itoa(id) }
