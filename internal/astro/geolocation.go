package astro

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const DefaultGeolocationTimeout = 5 * time.Second

// StaticGeolocator reports a position that was already captured elsewhere,
// typically coordinates posted by the browser.
type StaticGeolocator struct {
	Position Position
	Err      error
}

func (g StaticGeolocator) Locate(ctx context.Context) (Position, error) {
	if err := ctx.Err(); err != nil {
		return Position{}, err
	}
	if g.Err != nil {
		return Position{}, g.Err
	}
	if g.Position.Latitude < -90 || g.Position.Latitude > 90 ||
		g.Position.Longitude < -180 || g.Position.Longitude > 180 {
		return Position{}, fmt.Errorf("position out of range: %+v", g.Position)
	}
	return g.Position, nil
}

// LocateWithin runs one position lookup bounded by timeout. There is no
// retry; a deadline hit is reported as ErrPositionTimeout.
func LocateWithin(ctx context.Context, g Geolocator, timeout time.Duration) (Position, error) {
	if timeout <= 0 {
		timeout = DefaultGeolocationTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		pos Position
		err error
	}
	done := make(chan result, 1)
	go func() {
		pos, err := g.Locate(ctx)
		done <- result{pos, err}
	}()

	select {
	case r := <-done:
		if errors.Is(r.err, context.DeadlineExceeded) {
			return Position{}, ErrPositionTimeout
		}
		return r.pos, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Position{}, ErrPositionTimeout
		}
		return Position{}, ctx.Err()
	}
}
