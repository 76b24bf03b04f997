package types

import (
	"time"

	"psychro-dash/internal/psychro"
)

// SourceKind says where a reading came from.
type SourceKind string

const (
	SourceSerial SourceKind = "serial"
	SourceMQTT   SourceKind = "mqtt"
	SourceManual SourceKind = "manual"
)

func (k SourceKind) Valid() bool {
	switch k {
	case SourceSerial, SourceMQTT, SourceManual:
		return true
	}
	return false
}

// Persisted reports whether states from this kind of source are stored.
// Manual entries are computed for display only.
func (k SourceKind) Persisted() bool { return k == SourceSerial || k == SourceMQTT }

type Source struct {
	Kind SourceKind `json:"kind"`
	ID   string     `json:"id,omitempty"`
}

// Measurement is a computed state plus where it came from. ID is zero until stored.
type Measurement struct {
	ID     int64  `json:"id,omitempty"`
	Source Source `json:"source"`
	psychro.State
}

// Rejection is a sensor reading the engine refused. Non-finite temperatures
// are kept as nil.
type Rejection struct {
	ID         string       `json:"id"`
	Source     Source       `json:"source"`
	DryBulb    *float64     `json:"dryBulb"`
	WetBulb    *float64     `json:"wetBulb"`
	Code       psychro.Code `json:"code"`
	Reason     string       `json:"reason"`
	ReceivedAt time.Time    `json:"receivedAt"`
}

type Stats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Summary aggregates the stored measurements of a time window.
type Summary struct {
	From             time.Time `json:"from"`
	To               time.Time `json:"to"`
	Count            int       `json:"count"`
	DryBulb          Stats     `json:"dryBulb"`
	RelativeHumidity Stats     `json:"relativeHumidity"`
	DewPoint         Stats     `json:"dewPoint"`
	Enthalpy         Stats     `json:"enthalpy"`
}
