package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type (
	// Date wraps time.Time so that operations can be decoded from the
	// several timestamp shapes the backend emits.
	Date struct {
		time.Time
	}

	// CreditType is read-only reference data served by the backend.
	CreditType struct {
		Code string `json:"codigo"`
		Name string `json:"nombre"`
	}

	// Operation is a loan operation as exchanged with the REST API.
	// On reads CreditType carries the display label, on writes the code.
	Operation struct {
		ID             int64   `json:"operacionID"`
		Identification string  `json:"identificacion"`
		Name           string  `json:"nombre"`
		CreditType     string  `json:"tipoCredito"`
		Amount         float64 `json:"monto"`
		StartDate      Date    `json:"fechaInicio"`
		TermMonths     int     `json:"plazoMeses"`
		Approved       bool    `json:"aprobado"`
		EndDate        Date    `json:"fechaFin,omitzero"`
		RegisteredAt   Date    `json:"fechaRegistro,omitzero"`
	}
)

// FormLayout is the layout used by date inputs.
const FormLayout = "2006-01-02"

// wireLayout mirrors JavaScript's Date.toISOString.
const wireLayout = "2006-01-02T15:04:05.000Z07:00"

var ErrInvalidDate = errors.New("invalid date")

var parseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	FormLayout,
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts ISO-8601 timestamps, with or without zone, and plain
// calendar dates. Zone-less values are read as UTC.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	for _, layout := range parseLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return Date{Time: t}, nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// FormValue renders the date for an <input type="date">.
func (d Date) FormValue() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(FormLayout)
}

// Display renders the date for tables.
func (d Date) Display() string {
	if d.IsZero() {
		return "-"
	}
	return d.Format("02/01/2006")
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.UTC().Format(wireLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	if strings.TrimSpace(s) == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// FindCreditTypeByName returns the first credit type whose display name matches.
func FindCreditTypeByName(types []CreditType, name string) (CreditType, bool) {
	for _, ct := range types {
		if ct.Name == name {
			return ct, true
		}
	}
	return CreditType{}, false
}

// FindCreditTypeByCode returns the credit type with the given code.
func FindCreditTypeByCode(types []CreditType, code string) (CreditType, bool) {
	for _, ct := range types {
		if ct.Code == code {
			return ct, true
		}
	}
	return CreditType{}, false
}
