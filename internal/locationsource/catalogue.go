// Package locationsource describes the location-tracking apps a GeoPulse
// account can receive points from.
package locationsource

import "fmt"

// Type identifies a location source integration.
type Type string

const (
	OwnTracks     Type = "OWNTRACKS"
	GPSLogger     Type = "GPSLOGGER"
	Overland      Type = "OVERLAND"
	Dawarich      Type = "DAWARICH"
	HomeAssistant Type = "HOME_ASSISTANT"
)

// Meta is the display metadata for one source type.
type Meta struct {
	Type        Type   `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

var catalogue = []Meta{
	{OwnTracks, "OwnTracks", "Open-source location tracking with HTTP or MQTT connections", "pi pi-mobile"},
	{GPSLogger, "GPSLogger", "Android GPSLogger app via HTTP + Basic Auth (OwnTracks-compatible payload)", "pi pi-compass"},
	{Overland, "Overland", "Simple HTTP endpoint with token-based authentication", "pi pi-map"},
	{Dawarich, "Dawarich", "Privacy-focused location tracking with API key authentication", "pi pi-key"},
	{HomeAssistant, "Home Assistant", "Integrate with Home Assistant automation for automatic location tracking", "pi pi-home"},
}

// All returns the known source types in display order.
func All() []Meta {
	return append([]Meta(nil), catalogue...)
}

// Lookup returns the metadata for t. Unknown types get a generic entry
// labelled with the type itself.
func Lookup(t Type) Meta {
	for _, m := range catalogue {
		if m.Type == t {
			return m
		}
	}
	return Meta{Type: t, Label: string(t), Icon: "pi pi-question"}
}

// Source is a configured location source as the API reports it.
type Source struct {
	Type     Type   `json:"type"`
	Username string `json:"username,omitempty"`
	Token    string `json:"token,omitempty"`
}

// tokenPrefix is how much of a secret is shown.
const tokenPrefix = 8

// Identifier returns a short, safe description of a source's credentials:
// the username for basic-auth sources, otherwise the first characters of the
// token.
func Identifier(s Source) string {
	switch s.Type {
	case OwnTracks, GPSLogger:
		if s.Username == "" {
			return "No username"
		}
		return s.Username
	case Overland, HomeAssistant:
		if s.Token == "" {
			return "No token"
		}
		return "Token: " + mask(s.Token)
	case Dawarich:
		if s.Token == "" {
			return "No API key"
		}
		return "API Key: " + mask(s.Token)
	default:
		return fmt.Sprintf("Unknown type: %s", s.Type)
	}
}

func mask(token string) string {
	r := []rune(token)
	if len(r) > tokenPrefix {
		r = r[:tokenPrefix]
	}
	return string(r) + "..."
}
