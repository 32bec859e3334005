package models

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// Meta carries the attributes every stored document has.
type Meta struct {
	ID        string     `json:"$id,omitempty"`
	CreatedAt *time.Time `json:"$createdAt,omitempty"`
	UpdatedAt *time.Time `json:"$updatedAt,omitempty"`
}

// Created returns the creation timestamp or the zero time.
func (m Meta) Created() time.Time {
	if m.CreatedAt == nil {
		return time.Time{}
	}
	return *m.CreatedAt
}

// Actor identifies who performed a write.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SystemActor is recorded for writes made by background jobs.
var SystemActor = Actor{ID: "system", Name: "System"}

// Amount is a money value that tolerates string input. Anything that does
// not parse as a number decodes to 0.
type Amount float64

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*a = 0
			return nil
		}
		*a = ParseAmount(s)
		return nil
	}
	*a = ParseAmount(string(data))
	return nil
}

// ParseAmount converts free-form numeric input, treating anything non-numeric
// as 0. NaN and the infinities count as non-numeric.
func ParseAmount(s string) Amount {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return Amount(f)
}

const dateLayout = "2006-01-02"

// Date accepts either a calendar date ("2025-01-10") or an RFC 3339 timestamp.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(d.UTC().Format(time.RFC3339Nano))
}

// Ptr returns a pointer to the timestamp, or nil when unset.
func (d *Date) Ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.UTC()
	return &t
}

func TimePtr(t time.Time) *time.Time {
	return &t
}

// Upload is a file received from a client, not yet stored.
type Upload struct {
	Name        string
	ContentType string
	Body        io.Reader
}
