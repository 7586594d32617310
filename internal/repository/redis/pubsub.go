package redisrepo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// TripEvents fans out "trip changed" notices so every server instance sharing
// the cache can drop its stale entries.
type TripEvents struct {
	rdb     *redis.Client
	channel string
}

func NewTripEvents(rdb *redis.Client) *TripEvents {
	if rdb == nil {
		return nil
	}
	return &TripEvents{
		rdb:     rdb,
		channel: ChannelTripsChanged(),
	}
}

// TripChange is the payload published on ChannelTripsChanged.
type TripChange struct {
	Type       string `json:"type"`
	TripID     string `json:"trip_id"`
	SeatNumber int    `json:"seat_number,omitempty"`
	TsUnix     int64  `json:"ts_unix"`
}

const (
	ChangeSeatBooked  = "seat_booked"
	ChangeTripCreated = "trip_created"
)

func (p *TripEvents) Publish(ctx context.Context, change TripChange) error {
	if p == nil {
		return nil
	}

	if change.TsUnix == 0 {
		change.TsUnix = time.Now().Unix()
	}

	b, err := json.Marshal(change)
	if err != nil {
		return err
	}

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

// Subscribe calls handler for each well-formed change until ctx is done.
func (p *TripEvents) Subscribe(ctx context.Context, handler func(ctx context.Context, change TripChange)) error {
	if p == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			if change, ok := decodeChange(m.Payload); ok {
				handler(ctx, change)
			}
		}
	}
}

func decodeChange(payload string) (TripChange, bool) {
	var change TripChange
	if err := json.Unmarshal([]byte(payload), &change); err != nil || change.TripID == "" {
		return TripChange{}, false
	}
	return change, true
}
