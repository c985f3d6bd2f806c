package aggregator

import (
	"fmt"
	"strings"
	"time"

	"github.com/akamensky/base58"
	"github.com/roombook/roombook/internal/domain"
	"github.com/roombook/roombook/pkg/interval"
	"github.com/vmihailenco/msgpack/v5"
)

type KeyKind string

const (
	// KeySeries keys are built from the provider's cross-mailbox series id.
	KeySeries KeyKind = "series"
	// KeyFallback keys are built from subject, window and organizer. Distinct
	// meetings sharing those merge, and copies whose subject differs per
	// mailbox split. Kept as is since changing it changes grouping.
	KeyFallback KeyKind = "fallback"
)

// IdentityKey identifies one logical meeting across mailboxes. It is
// comparable and used directly as the grouping key.
type IdentityKey struct {
	Kind      KeyKind `msgpack:"k"`
	SeriesID  string  `msgpack:"s,omitempty"`
	Subject   string  `msgpack:"t,omitempty"`
	Start     string  `msgpack:"b,omitempty"`
	End       string  `msgpack:"e,omitempty"`
	Organizer string  `msgpack:"o,omitempty"`
}

func SeriesKey(seriesID string) IdentityKey {
	return IdentityKey{Kind: KeySeries, SeriesID: seriesID}
}

// FallbackKey builds a composite key. start and end are local timestamps in
// interval.LocalLayout.
func FallbackKey(subject, start, end, organizerEmail string) IdentityKey {
	return IdentityKey{
		Kind:      KeyFallback,
		Subject:   subject,
		Start:     start,
		End:       end,
		Organizer: strings.ToLower(strings.TrimSpace(organizerEmail)),
	}
}

// Encode renders the key as an opaque URL-safe token.
func (k IdentityKey) Encode() (string, error) {
	data, err := msgpack.Marshal(k)
	if err != nil {
		return "", domain.NewInternalError("failed to encode identity key", err)
	}
	return base58.Encode(data), nil
}

// Window returns the window a fallback key names.
func (k IdentityKey) Window(loc *time.Location) (interval.Window, error) {
	if k.Kind != KeyFallback {
		return interval.Window{}, domain.NewValidationError("only fallback identity keys carry a window")
	}
	start, err := interval.ParseLocal(k.Start, loc)
	if err != nil {
		return interval.Window{}, domain.NewValidationError("identity key has an invalid start", err)
	}
	end, err := interval.ParseLocal(k.End, loc)
	if err != nil {
		return interval.Window{}, domain.NewValidationError("identity key has an invalid end", err)
	}
	return interval.New(start, end)
}

// ParseIdentityKey decodes a token produced by Encode.
func ParseIdentityKey(token string) (IdentityKey, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return IdentityKey{}, domain.NewValidationError("identity key is required")
	}
	data, err := base58.Decode(token)
	if err != nil {
		return IdentityKey{}, domain.NewValidationError("malformed identity key", err)
	}
	var k IdentityKey
	if err := msgpack.Unmarshal(data, &k); err != nil {
		return IdentityKey{}, domain.NewValidationError("malformed identity key", err)
	}
	switch k.Kind {
	case KeySeries:
		if k.SeriesID == "" {
			return IdentityKey{}, domain.NewValidationError("series identity key without series id")
		}
	case KeyFallback:
		if k.Start == "" || k.End == "" {
			return IdentityKey{}, domain.NewValidationError("fallback identity key without window")
		}
	default:
		return IdentityKey{}, domain.NewValidationError(fmt.Sprintf("unknown identity key kind %q", k.Kind))
	}
	return k, nil
}
