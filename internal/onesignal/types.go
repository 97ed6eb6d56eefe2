package onesignal

import "encoding/json"

// TagKey is the device tag that binds a browser to a website.
const TagKey = "website"

// DefaultLocale is the only locale key used for headings and contents.
const DefaultLocale = "en"

// Segment is the body of POST /apps/{app_id}/segments.
type Segment struct {
	Name    string   `json:"name"`
	Filters []Filter `json:"filters"`
}

// Filter is one segment filter clause.
type Filter struct {
	Field    string `json:"field"`
	Key      string `json:"key"`
	Relation string `json:"relation"`
	Value    string `json:"value"`
}

// WebsiteSegment returns a segment named after the website, matching
// devices tagged website = name.
func WebsiteSegment(name string) Segment {
	return Segment{
		Name: name,
		Filters: []Filter{
			{Field: "tag", Key: TagKey, Relation: "=", Value: name},
		},
	}
}

// Notification is the body of POST /notifications.
type Notification struct {
	AppID            string            `json:"app_id"`
	IncludedSegments []string          `json:"included_segments"`
	Headings         map[string]string `json:"headings"`
	Contents         map[string]string `json:"contents"`
	TargetChannel    string            `json:"target_channel"`
}

// SegmentPush builds a push notification addressed to a single segment.
func SegmentPush(appID, segment, title, message string) Notification {
	return Notification{
		AppID:            appID,
		IncludedSegments: []string{segment},
		Headings:         map[string]string{DefaultLocale: title},
		Contents:         map[string]string{DefaultLocale: message},
		TargetChannel:    "push",
	}
}

// --- OneSignal response types ---

type usersResponse struct {
	Users []json.RawMessage `json:"users"`
}
