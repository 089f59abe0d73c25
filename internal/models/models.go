package models

import "time"

// MoodCode is the mood a user has tapped for the day. Empty means not set yet.
type MoodCode string

const (
	MoodGood  MoodCode = "good"
	MoodOK    MoodCode = "ok"
	MoodTired MoodCode = "tired"
	MoodBad   MoodCode = "bad"
)

// Valid reports whether m is one of the four selectable moods.
func (m MoodCode) Valid() bool {
	switch m {
	case MoodGood, MoodOK, MoodTired, MoodBad:
		return true
	}
	return false
}

// PairStatus is the lifecycle state of a pair.
type PairStatus string

const (
	PairWaiting PairStatus = "waiting"
	PairActive  PairStatus = "active"
)

// WeatherCondition is the closed condition vocabulary stored on a user record.
type WeatherCondition string

const (
	WeatherClear   WeatherCondition = "clear"
	WeatherCloudy  WeatherCondition = "cloudy"
	WeatherRain    WeatherCondition = "rain"
	WeatherStorm   WeatherCondition = "storm"
	WeatherSnow    WeatherCondition = "snow"
	WeatherUnknown WeatherCondition = "unknown"
)

// Location is a user's last shared position.
type Location struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WeatherSnapshot is derived from the weather lookup; never user-edited.
type WeatherSnapshot struct {
	Condition    WeatherCondition `json:"condition"`
	IsDaytime    *bool            `json:"is_daytime"`
	TemperatureC *float64         `json:"temperature_c"`
	IconCode     *string          `json:"icon_code,omitempty"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// User represents a user in the system
type User struct {
	ID                 string           `json:"id"`
	DisplayName        string           `json:"display_name"`
	Mood               MoodCode         `json:"mood,omitempty"`
	LastOpenedAt       *time.Time       `json:"last_opened_at,omitempty"`
	Location           *Location        `json:"location,omitempty"`
	Weather            *WeatherSnapshot `json:"weather,omitempty"`
	PairID             *string          `json:"pair_id,omitempty"`
	NotificationTokens []string         `json:"-"`
	Token              string           `json:"token,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
}

// Clone returns a deep copy, used for before/after change snapshots.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.LastOpenedAt != nil {
		t := *u.LastOpenedAt
		c.LastOpenedAt = &t
	}
	if u.Location != nil {
		l := *u.Location
		c.Location = &l
	}
	if u.Weather != nil {
		w := *u.Weather
		c.Weather = &w
	}
	if u.PairID != nil {
		p := *u.PairID
		c.PairID = &p
	}
	if u.NotificationTokens != nil {
		c.NotificationTokens = append([]string(nil), u.NotificationTokens...)
	}
	return &c
}

// Pair represents a two-party relationship keyed by its 6-digit invite code.
type Pair struct {
	Code       string     `json:"code"`
	OwnerUID   string     `json:"owner_uid"`
	PartnerUID *string    `json:"partner_uid,omitempty"`
	Status     PairStatus `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Clone returns a deep copy of the pair.
func (p *Pair) Clone() *Pair {
	if p == nil {
		return nil
	}
	c := *p
	if p.PartnerUID != nil {
		u := *p.PartnerUID
		c.PartnerUID = &u
	}
	return &c
}

// ProximityState is the UI-ready distance/direction to the partner.
// It is recomputed per session and never persisted.
type ProximityState struct {
	DistanceKm   *float64 `json:"distance_km"`
	BearingDeg   *float64 `json:"bearing_deg"`
	CompassLabel string   `json:"compass_label"`
}
