package geo

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// LocationIndex mirrors driver positions into a Redis GEO set so fleet
// tooling can query "drivers near X" without scanning Postgres. The store
// row stays the source of truth; this index is best effort.
type LocationIndex struct {
	client *redis.Client
	key    string
}

func NewLocationIndex(addr, password, key string) *LocationIndex {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &LocationIndex{client: c, key: key}
}

func (l *LocationIndex) Upsert(ctx context.Context, driverID string, lat, lng float64) error {
	err := l.client.GeoAdd(ctx, l.key, &redis.GeoLocation{
		Name:      driverID,
		Latitude:  lat,
		Longitude: lng,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to index driver location: %w", err)
	}
	return nil
}

// Nearby returns ids of drivers within radiusMeters of a point, closest first.
func (l *LocationIndex) Nearby(ctx context.Context, lat, lng float64, radiusMeters float64, limit int) ([]string, error) {
	res, err := l.client.GeoRadius(ctx, l.key, lng, lat, &redis.GeoRadiusQuery{
		Radius: radiusMeters,
		Unit:   "m",
		Count:  limit,
		Sort:   "ASC",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query nearby drivers: %w", err)
	}

	ids := make([]string, 0, len(res))
	for _, g := range res {
		ids = append(ids, g.Name)
	}
	return ids, nil
}

func (l *LocationIndex) Close() error {
	return l.client.Close()
}
