package event

import (
	"slices"
	"strings"

	"github.com/rbaliyan/safe-event/transport"
)

const (
	spanKeyEventID             = "event.id"
	spanKeyEventName           = "event.name"
	spanKeyEventSource         = "event.source"
	spanKeyEventBus            = "event.bus"
	spanKeyCorrelationID       = "event.correlation_id"
	spanKeyEventSubscriptionID = "subscription.id"
	spanKeyReplyEvent          = "event.reply"
)

// NewID returns a new random identifier, used for envelopes, subscriptions
// and request correlation IDs.
func NewID() string {
	return transport.NewID()
}

// joinKeyEscaper escapes the separator inside names so distinct sets never
// share a key
var joinKeyEscaper = strings.NewReplacer(`\`, `\\`, JoinKeySeparator, `\`+JoinKeySeparator)

// JoinKey returns the key identifying a join over names: the distinct names
// sorted and joined with JoinKeySeparator. Backslashes and separators inside
// a name are escaped with a backslash.
func JoinKey(names []string) string {
	set := canonicalNames(names)
	escaped := make([]string, len(set))
	for i, n := range set {
		escaped[i] = joinKeyEscaper.Replace(n)
	}
	return strings.Join(escaped, JoinKeySeparator)
}

// canonicalNames sorts names and drops duplicates
func canonicalNames(names []string) []string {
	set := slices.Clone(names)
	slices.Sort(set)
	return slices.Compact(set)
}
