// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlrepo

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// Entity can be embedded in models to supply the identifier column and the
// DomainEvents bookkeeping field, which is never treated as a column.
type Entity struct {
	ID           int64 `db:"Id"`
	DomainEvents []any
}

// AddDomainEvent records an event on the entity.
func (e *Entity) AddDomainEvent(event any) {
	e.DomainEvents = append(e.DomainEvents, event)
}

// TimeOfDay is a time of day column value, stored as "hh:mm:ss[.fffffff]"
// text. It implements driver.Valuer and sql.Scanner, so no converter needs
// to be registered with the driver.
type TimeOfDay time.Duration

// NewTimeOfDay returns the time of day h:m:s.
func NewTimeOfDay(h, m, s int) TimeOfDay {
	return TimeOfDay(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second)
}

// String returns the time of day as hh:mm:ss, followed by the fractional
// seconds when there are any.
func (t TimeOfDay) String() string {
	d := time.Duration(t)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	str := fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	if d > 0 {
		str += strings.TrimRight(fmt.Sprintf(".%09d", d), "0")
	}
	return str
}

// Value implements driver.Valuer.
func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String(), nil
}

// Scan implements sql.Scanner. It accepts text, and time.Time values of
// which only the clock is kept.
func (t *TimeOfDay) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = 0
		return nil
	case time.Time:
		h, m, s := v.Clock()
		*t = NewTimeOfDay(h, m, s) + TimeOfDay(v.Nanosecond())
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	}
	return fmt.Errorf("cannot scan %T into TimeOfDay", src)
}

func (t *TimeOfDay) parse(s string) error {
	parsed, err := time.Parse("15:04:05.999999999", s)
	if err != nil {
		return fmt.Errorf("cannot parse time of day %q: %w", s, err)
	}
	h, m, sec := parsed.Clock()
	*t = NewTimeOfDay(h, m, sec) + TimeOfDay(parsed.Nanosecond())
	return nil
}
