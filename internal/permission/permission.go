// Package permission models the device capability grants the shell asks for
// at startup. Brokers are injected into the shell so tests can substitute
// their own decisions.
package permission

import (
	"context"
	"fmt"
	"strings"
)

// Kind identifies a device capability.
type Kind string

const (
	Camera     Kind = "camera"
	Microphone Kind = "microphone"
	Location   Kind = "location"
)

// AllKinds returns every known capability kind.
func AllKinds() []Kind {
	return []Kind{Camera, Microphone, Location}
}

// ParseKind normalizes a capability name.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case Camera:
		return Camera, nil
	case Microphone:
		return Microphone, nil
	case Location:
		return Location, nil
	default:
		return "", fmt.Errorf("unknown permission kind: %q", s)
	}
}

// Outcome is the result of a grant request.
type Outcome string

const (
	Granted     Outcome = "granted"
	Denied      Outcome = "denied"
	Unavailable Outcome = "unavailable"
)

// Result pairs a requested kind with its outcome.
type Result struct {
	Kind    Kind
	Outcome Outcome
	Err     error
}

// Broker resolves capability grant requests.
type Broker interface {
	Request(ctx context.Context, kind Kind) (Outcome, error)
}

// StaticBroker answers from a fixed grant table. Kinds absent from the table
// are granted; the shell proceeds regardless of outcome unless strict mode is
// enabled, so an optimistic default matches the lenient path.
type StaticBroker struct {
	grants map[Kind]Outcome
}

// NewStaticBroker builds a broker from per-kind outcomes.
func NewStaticBroker(grants map[Kind]Outcome) *StaticBroker {
	copied := make(map[Kind]Outcome, len(grants))
	for k, v := range grants {
		copied[k] = v
	}
	return &StaticBroker{grants: copied}
}

// Request implements Broker.
func (b *StaticBroker) Request(ctx context.Context, kind Kind) (Outcome, error) {
	select {
	case <-ctx.Done():
		return Unavailable, ctx.Err()
	default:
	}
	if outcome, ok := b.grants[kind]; ok {
		return outcome, nil
	}
	return Granted, nil
}

// RequestAll resolves each kind once, in order, and reports per-kind results.
// A broker error records the kind as unavailable; the caller decides whether
// that matters.
func RequestAll(ctx context.Context, b Broker, kinds []Kind) []Result {
	results := make([]Result, 0, len(kinds))
	for _, kind := range kinds {
		outcome, err := b.Request(ctx, kind)
		if err != nil {
			outcome = Unavailable
		}
		results = append(results, Result{Kind: kind, Outcome: outcome, Err: err})
	}
	return results
}

// DeniedKinds filters results down to the kinds that were refused.
func DeniedKinds(results []Result) []Kind {
	var denied []Kind
	for _, r := range results {
		if r.Outcome == Denied {
			denied = append(denied, r.Kind)
		}
	}
	return denied
}
