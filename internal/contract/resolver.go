// Package contract runs the decode-and-cache pipeline: cache lookup,
// conditional upstream fetch, barcode decode, validity-window math and
// cache population.
package contract

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/mobilekkm/contractproxy/barcode"
	"github.com/mobilekkm/contractproxy/internal/cache"
	"github.com/mobilekkm/contractproxy/mkkm"
)

// Store is the slice of the cache layer the resolver needs.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Fetcher fetches the contract envelope from the upstream API.
type Fetcher interface {
	FetchContract(ctx context.Context, ticketID, credential string) (*mkkm.Envelope, error)
}

// Decoder turns a base64 image into its embedded barcode text.
type Decoder func(b64 string) (string, error)

type Resolver struct {
	store    Store
	upstream Fetcher
	decode   Decoder
	now      func() time.Time
	group    *singleflight.Group // nil unless dedup is enabled
	log      zerolog.Logger
}

type Option func(*Resolver)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithDecoder overrides the barcode decoder.
func WithDecoder(d Decoder) Option {
	return func(r *Resolver) { r.decode = d }
}

// WithSingleFlight collapses concurrent misses for the same ticket into
// one upstream fetch. Off by default; without it two concurrent misses
// both fetch and the last cache write wins.
func WithSingleFlight() Option {
	return func(r *Resolver) { r.group = &singleflight.Group{} }
}

func WithLogger(log zerolog.Logger) Option {
	return func(r *Resolver) { r.log = log }
}

func NewResolver(store Store, upstream Fetcher, opts ...Option) *Resolver {
	r := &Resolver{
		store:    store,
		upstream: upstream,
		decode:   barcode.DecodeAztec,
		now:      time.Now,
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve serves the ticket's decoded contract, from cache when a fresh
// entry exists, otherwise live: fetch, decode, compute the validity
// window, populate the cache and return the fresh result.
func (r *Resolver) Resolve(ctx context.Context, ticketID, credential string) (*Contract, error) {
	key := cache.Key(ticketID)

	ok, err := r.store.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("contract: cache lookup: %w", err)
	}
	if ok {
		if c := r.fromCache(ctx, ticketID, key); c != nil {
			return c, nil
		}
		// entry vanished or would not parse; fall through to a live fetch
	}

	if r.group != nil {
		v, err, _ := r.group.Do(ticketID, func() (any, error) {
			return r.resolveLive(ctx, ticketID, credential, key)
		})
		if err != nil {
			return nil, err
		}
		return v.(*Contract), nil
	}
	return r.resolveLive(ctx, ticketID, credential, key)
}

func (r *Resolver) fromCache(ctx context.Context, ticketID, key string) *Contract {
	raw, err := r.store.Get(ctx, key)
	if err != nil {
		r.log.Warn().Err(err).Str("ticket", ticketID).Msg("cached entry unreadable")
		return nil
	}
	var ent cacheEntry
	if err := json.Unmarshal(raw, &ent); err != nil {
		r.log.Warn().Err(err).Str("ticket", ticketID).Msg("cached entry malformed")
		return nil
	}
	c, err := ent.contract()
	if err != nil {
		r.log.Warn().Err(err).Str("ticket", ticketID).Msg("cached entry malformed")
		return nil
	}
	return c
}

func (r *Resolver) resolveLive(ctx context.Context, ticketID, credential, key string) (*Contract, error) {
	env, err := r.upstream.FetchContract(ctx, ticketID, credential)
	if err != nil {
		return nil, err
	}

	text, err := r.decode(env.Aztec)
	if err != nil {
		return nil, err
	}

	// The window starts on the minute boundary, so every request for the
	// same ticket within one minute agrees on the same expiry. The TTL is
	// measured from the write moment and is therefore always under the
	// full window.
	validFrom := r.now().UTC().Truncate(time.Minute)
	c := &Contract{Aztec: text, ValidFrom: validFrom}

	payload, err := json.Marshal(newCacheEntry(c))
	if err != nil {
		return nil, fmt.Errorf("contract: marshal cache entry: %w", err)
	}
	ttl := validFrom.Add(Window).Sub(r.now())
	if err := r.store.Set(ctx, key, payload, ttl); err != nil {
		// the decoded result is already in hand; serve it and let the
		// next request repopulate
		r.log.Warn().Err(err).Str("ticket", ticketID).Msg("cache write failed")
	}

	return c, nil
}
