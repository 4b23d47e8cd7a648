// Package geocoder resolves free-form addresses to coordinates and address parts.
package geocoder

import (
	"context"
	"errors"
	"fmt"

	geo "github.com/codingsince1985/geo-golang"
	"github.com/codingsince1985/geo-golang/google"
	"github.com/codingsince1985/geo-golang/mapquest/open"
	"github.com/codingsince1985/geo-golang/openstreetmap"
)

// ErrNoResult is returned when the provider knows nothing about an address.
var ErrNoResult = errors.New("address not found")

// Result is a geocoded address.
type Result struct {
	Lat              float64
	Lng              float64
	FormattedAddress string
	Street           string
	City             string
	State            string
	Zipcode          string
	Country          string
}

// Geocoder resolves addresses.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*Result, error)
}

// Client implements Geocoder on top of a geo-golang provider.
type Client struct {
	provider geo.Geocoder
}

// New returns a Client for the named provider: openstreetmap (default, no
// key needed), google or mapquest.
func New(provider, apiKey string) (*Client, error) {
	switch provider {
	case "", "openstreetmap":
		return &Client{provider: openstreetmap.Geocoder()}, nil
	case "google":
		return &Client{provider: google.Geocoder(apiKey)}, nil
	case "mapquest":
		return &Client{provider: open.Geocoder(apiKey)}, nil
	default:
		return nil, fmt.Errorf("unknown geocoder provider %q", provider)
	}
}

type lookup struct {
	loc  *geo.Location
	addr *geo.Address
	err  error
}

// Geocode resolves address. The provider call is abandoned when ctx ends.
func (c *Client) Geocode(ctx context.Context, address string) (*Result, error) {
	done := make(chan lookup, 1)
	go func() {
		loc, err := c.provider.Geocode(address)
		if err != nil || loc == nil {
			done <- lookup{loc: loc, err: err}
			return
		}
		// reverse lookup only enriches the result; its failure is not fatal
		addr, _ := c.provider.ReverseGeocode(loc.Lat, loc.Lng)
		done <- lookup{loc: loc, addr: addr}
	}()

	var res lookup
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-done:
	}

	if res.err != nil {
		return nil, fmt.Errorf("geocode %q: %w", address, res.err)
	}
	if res.loc == nil {
		return nil, ErrNoResult
	}

	out := &Result{Lat: res.loc.Lat, Lng: res.loc.Lng, FormattedAddress: address}
	if a := res.addr; a != nil {
		if a.FormattedAddress != "" {
			out.FormattedAddress = a.FormattedAddress
		}
		out.Street = a.Street
		out.City = a.City
		out.State = a.StateCode
		if out.State == "" {
			out.State = a.State
		}
		out.Zipcode = a.Postcode
		out.Country = a.CountryCode
	}
	return out, nil
}
