package message

import (
	"strings"
)

// Namer maps routing keys onto transport topics.
//
// A routing key is "{domain}.{verb}" or "{domain}.{verb}-failed"; the topic
// is the routing key under an optional prefix, e.g. "bank.account.create".
type Namer struct {
	prefix      string
	serviceName string
}

// NewNamer creates a namer. An empty prefix leaves routing keys untouched.
func NewNamer(prefix, serviceName string) *Namer {
	return &Namer{
		prefix:      normalizeSegment(prefix),
		serviceName: normalizeSegment(serviceName),
	}
}

// ServiceName returns configured service identifier.
func (n *Namer) ServiceName() string {
	if n == nil {
		return ""
	}

	return n.serviceName
}

// Topic resolves the topic of a routing key.
func (n *Namer) Topic(routingKey string) string {
	routingKey = strings.TrimSpace(routingKey)
	if n == nil || n.prefix == "" {
		return routingKey
	}

	return n.prefix + "." + routingKey
}

// RoutingKey is the inverse of Topic.
func (n *Namer) RoutingKey(topic string) string {
	if n == nil || n.prefix == "" {
		return topic
	}

	return strings.TrimPrefix(topic, n.prefix+".")
}

// FailureKey returns the failure routing key paired with a command,
// e.g. "account.create" -> "account.create-failed".
func FailureKey(command string) string {
	return command + "-failed"
}

// IsFailure reports whether routingKey names a failure event.
func IsFailure(routingKey string) bool {
	return strings.HasSuffix(routingKey, "-failed")
}

// Domain returns the leading segment of a routing key.
func Domain(routingKey string) string {
	domain, _, _ := strings.Cut(routingKey, ".")

	return domain
}

func normalizeSegment(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.ReplaceAll(s, " ", "_")

	return strings.Trim(s, ".")
}
