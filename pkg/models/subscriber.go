package models

import (
	"bytes"
	"encoding/json"
)

// Subscription statuses derived from boolean provider fields.
const (
	SubscriptionSubscribed   = "subscribed"
	SubscriptionUnsubscribed = "unsubscribed"
)

// Subscriber is one registered user record as listed by the provider.
// Raw keeps the full provider record; only ID and SubscriptionStatus are
// interpreted.
type Subscriber struct {
	ID                 string          `json:"id"`
	SubscriptionStatus string          `json:"subscriptionStatus"`
	Raw                json.RawMessage `json:"-"`
}

// UnmarshalJSON keeps the raw record and reads ID and SubscriptionStatus
// loosely: scalars of any type are stringified, and records in the
// identity/subscriptions shape fall back to identity.onesignal_id and the
// first subscription. A record it cannot interpret leaves both fields
// empty rather than failing the surrounding list.
func (s *Subscriber) UnmarshalJSON(b []byte) error {
	s.Raw = append(json.RawMessage(nil), b...)
	s.ID, s.SubscriptionStatus = "", ""

	var rec map[string]json.RawMessage
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil
	}

	s.ID = scalarString(rec["id"])
	s.SubscriptionStatus = statusString(rec["subscriptionStatus"])

	first := firstSubscription(rec["subscriptions"])
	if s.ID == "" {
		var identity map[string]json.RawMessage
		if json.Unmarshal(rec["identity"], &identity) == nil {
			s.ID = scalarString(identity["onesignal_id"])
		}
	}
	if s.ID == "" {
		s.ID = scalarString(first["id"])
	}
	if s.SubscriptionStatus == "" {
		s.SubscriptionStatus = statusString(first["enabled"])
	}
	return nil
}

func firstSubscription(raw json.RawMessage) map[string]json.RawMessage {
	var subs []map[string]json.RawMessage
	if json.Unmarshal(raw, &subs) != nil || len(subs) == 0 {
		return nil
	}
	return subs[0]
}

// scalarString renders a JSON string, number or bool as text. Objects,
// arrays, null and malformed input yield "".
func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	}
	return ""
}

// statusString is scalarString with booleans mapped to subscription states.
func statusString(raw json.RawMessage) string {
	switch string(bytes.TrimSpace(raw)) {
	case "true":
		return SubscriptionSubscribed
	case "false":
		return SubscriptionUnsubscribed
	}
	return scalarString(raw)
}
