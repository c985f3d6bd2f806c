package rooms

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/roombook/roombook/internal/domain"
	log "github.com/sirupsen/logrus"
)

type Room struct {
	Address     string `json:"address"`
	DisplayName string `json:"displayName"`
}

// Source supplies rooms beyond the configured ones, e.g. a provider's resource directory.
type Source interface {
	ListRooms(ctx context.Context) ([]Room, error)
}

const cacheKey = "rooms"

// Directory is the table of known rooms: the configured rooms plus whatever
// the optional Source reports, cached for the configured TTL.
type Directory struct {
	configured []Room
	source     Source
	cache      *cache.Cache
}

func NewDirectory(configured []Room, source Source, ttl time.Duration) *Directory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Directory{
		configured: slices.Clone(configured),
		source:     source,
		cache:      cache.New(ttl, 2*ttl),
	}
}

// List returns all known rooms ordered by display name. A failing source is
// logged and only the configured rooms are returned; that result is not cached.
func (d *Directory) List(ctx context.Context) ([]Room, error) {
	if cached, found := d.cache.Get(cacheKey); found {
		return slices.Clone(cached.([]Room)), nil
	}

	merged := make([]Room, 0, len(d.configured))
	seen := make(map[string]bool)
	add := func(r Room) {
		key := strings.ToLower(r.Address)
		if r.Address == "" || seen[key] {
			return
		}
		seen[key] = true
		if r.DisplayName == "" {
			r.DisplayName = r.Address
		}
		merged = append(merged, r)
	}
	for _, r := range d.configured {
		add(r)
	}

	cacheable := true
	if d.source != nil {
		discovered, err := d.source.ListRooms(ctx)
		if err != nil {
			if domain.IsType(err, domain.ErrorTypeProviderAuth) {
				return nil, err
			}
			log.Warnf("room directory source failed, using configured rooms only: %v", err)
			cacheable = false
		}
		for _, r := range discovered {
			add(r)
		}
	}

	slices.SortFunc(merged, func(a, b Room) int {
		if c := strings.Compare(strings.ToLower(a.DisplayName), strings.ToLower(b.DisplayName)); c != 0 {
			return c
		}
		return strings.Compare(strings.ToLower(a.Address), strings.ToLower(b.Address))
	})
	if cacheable {
		d.cache.SetDefault(cacheKey, merged)
	}
	return slices.Clone(merged), nil
}

// ResolveByName finds a room by display name, ignoring case.
func (d *Directory) ResolveByName(ctx context.Context, name string) (Room, error) {
	return d.find(ctx, func(r Room) bool { return strings.EqualFold(r.DisplayName, strings.TrimSpace(name)) },
		fmt.Sprintf("no room named %q", name))
}

// ResolveByAddress finds a room by mailbox address, ignoring case.
func (d *Directory) ResolveByAddress(ctx context.Context, address string) (Room, error) {
	return d.find(ctx, func(r Room) bool { return strings.EqualFold(r.Address, strings.TrimSpace(address)) },
		fmt.Sprintf("no room with address %q", address))
}

// Resolve accepts either an address or a display name.
func (d *Directory) Resolve(ctx context.Context, nameOrAddress string) (Room, error) {
	if strings.Contains(nameOrAddress, "@") {
		return d.ResolveByAddress(ctx, nameOrAddress)
	}
	return d.ResolveByName(ctx, nameOrAddress)
}

// Invalidate drops the cached listing.
func (d *Directory) Invalidate() {
	d.cache.Delete(cacheKey)
}

func (d *Directory) find(ctx context.Context, match func(Room) bool, notFound string) (Room, error) {
	all, err := d.List(ctx)
	if err != nil {
		return Room{}, err
	}
	for _, r := range all {
		if match(r) {
			return r, nil
		}
	}
	return Room{}, domain.NewNotFoundError(notFound)
}
