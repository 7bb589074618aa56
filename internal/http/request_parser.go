package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"operaciones/internal/core"
)

const maxFormBytes = 64 << 10

var errInvalidID = errors.New("invalid operation id")

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxFormBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.isJSONBody() {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

func (p *RequestBodyParser) isJSONBody() bool {
	if strings.Contains(strings.ToLower(p.contentType), "application/json") {
		return true
	}
	return bytes.HasPrefix(bytes.TrimSpace(p.body), []byte("{"))
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// Draft builds a form draft from the parsed body. Values are kept as typed
// so validation can report them; only the id and checkbox are interpreted.
func (p *RequestBodyParser) Draft() (core.Draft, error) {
	d := core.Draft{
		Identification: p.Get(core.FieldIdentification),
		Name:           p.Get(core.FieldName),
		CreditType:     p.Get(core.FieldCreditType),
		Amount:         p.Get(core.FieldAmount),
		StartDate:      p.Get(core.FieldStartDate),
		TermMonths:     p.Get(core.FieldTermMonths),
		Approved:       parseCheckbox(p.Get(core.FieldApproved)),
	}
	if v := p.Get(core.FieldID); v != "" && v != "0" {
		id, err := parseOperationID(v)
		if err != nil {
			return d, err
		}
		d.ID = id
	}
	return d, nil
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

func parseCheckbox(v string) bool {
	switch strings.ToLower(v) {
	case "true", "on", "1", "yes":
		return true
	}
	return false
}

func parseOperationID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}
