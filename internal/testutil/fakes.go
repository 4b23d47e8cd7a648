package testutil

import (
	"context"
	"sync"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/pkg/geocoder"
)

// Tx runs units of work directly and counts them.
type Tx struct {
	mu    sync.Mutex
	Calls int
}

func (t *Tx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	t.Calls++
	t.mu.Unlock()
	return fn(ctx)
}

// Notifier records every notification it is handed.
type Notifier struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (n *Notifier) Notify(_ context.Context, note *models.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, *note)
}

// Sent returns the recorded notifications.
func (n *Notifier) Sent() []models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Notification{}, n.sent...)
}

// Geocoder resolves only the addresses it was given; Err, when set, is
// returned for every lookup.
type Geocoder struct {
	Places map[string]*geocoder.Result
	Err    error
}

func (g *Geocoder) Geocode(_ context.Context, address string) (*geocoder.Result, error) {
	if g.Err != nil {
		return nil, g.Err
	}
	if r, ok := g.Places[address]; ok {
		out := *r
		return &out, nil
	}
	return nil, geocoder.ErrNoResult
}

// Boston and Cambridge are about three miles apart; New York is ~190 miles away.
var (
	Boston    = &geocoder.Result{Lat: 42.3601, Lng: -71.0589, City: "Boston", State: "MA", Country: "US", FormattedAddress: "Boston, MA, USA"}
	Cambridge = &geocoder.Result{Lat: 42.3736, Lng: -71.1097, City: "Cambridge", State: "MA", Country: "US", FormattedAddress: "Cambridge, MA, USA"}
	NewYork   = &geocoder.Result{Lat: 40.7128, Lng: -74.0060, City: "New York", State: "NY", Country: "US", FormattedAddress: "New York, NY, USA"}
)

// NewGeocoder knows Boston, Cambridge and New York.
func NewGeocoder() *Geocoder {
	return &Geocoder{Places: map[string]*geocoder.Result{
		"Boston":    Boston,
		"Cambridge": Cambridge,
		"New York":  NewYork,
	}}
}
