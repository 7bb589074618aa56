package core

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Form field names. They match the wire names so that the same keys are
// used by HTML forms, JSON payloads and error maps.
const (
	FieldID             = "operacionID"
	FieldIdentification = "identificacion"
	FieldName           = "nombre"
	FieldCreditType     = "tipoCredito"
	FieldAmount         = "monto"
	FieldStartDate      = "fechaInicio"
	FieldTermMonths     = "plazoMeses"
	FieldApproved       = "aprobado"
)

const (
	MsgRequired      = "Required"
	MsgAmountNumeric = "Amount must be numeric"
	MsgTermNumeric   = "Term must be numeric"
	MsgInvalidDate   = "Invalid date"
)

// DefaultTermMonths is the term proposed for new operations.
const DefaultTermMonths = 12

var ErrDuplicate = errors.New("an operation with this identification already exists")

// Draft is the editable state of an operation form. User-typed values are
// kept verbatim so that validation can report what was actually entered.
type Draft struct {
	ID             int64
	Identification string
	Name           string
	CreditType     string
	Amount         string
	StartDate      string
	TermMonths     string
	Approved       bool
}

// ValidationResult collects every field error found in a draft.
type ValidationResult struct {
	FieldErrors map[string]string
}

func (r ValidationResult) IsValid() bool {
	return len(r.FieldErrors) == 0
}

// ValidationError carries field errors across error returns.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// NewDraft returns the defaults of a new operation form.
func NewDraft(today time.Time) Draft {
	return Draft{
		StartDate:  today.Format(FormLayout),
		TermMonths: strconv.Itoa(DefaultTermMonths),
	}
}

// DraftFromOperation pre-populates a draft from a stored record. The credit
// type is copied as-is; resolving a display label to a code is the form's job.
func DraftFromOperation(op Operation) Draft {
	d := Draft{
		ID:             op.ID,
		Identification: op.Identification,
		Name:           op.Name,
		CreditType:     op.CreditType,
		StartDate:      op.StartDate.FormValue(),
		TermMonths:     strconv.Itoa(DefaultTermMonths),
		Approved:       op.Approved,
	}
	if op.Amount != 0 {
		d.Amount = strconv.FormatFloat(op.Amount, 'f', -1, 64)
	}
	if op.TermMonths != 0 {
		d.TermMonths = strconv.Itoa(op.TermMonths)
	}
	return d
}

// Validate checks every rule independently and reports all violations.
func Validate(d Draft) ValidationResult {
	errs := make(map[string]string)
	if strings.TrimSpace(d.Identification) == "" {
		errs[FieldIdentification] = MsgRequired
	}
	if strings.TrimSpace(d.Name) == "" {
		errs[FieldName] = MsgRequired
	}
	if _, err := ParseAmount(d.Amount); err != nil {
		errs[FieldAmount] = MsgAmountNumeric
	}
	if strings.TrimSpace(d.StartDate) == "" {
		errs[FieldStartDate] = MsgRequired
	} else if _, err := ParseDate(d.StartDate); err != nil {
		errs[FieldStartDate] = MsgInvalidDate
	}
	if _, err := ParseTerm(d.TermMonths); err != nil {
		errs[FieldTermMonths] = MsgTermNumeric
	}
	return ValidationResult{FieldErrors: errs}
}

// CheckDuplicate rejects a draft whose identification is already used by a
// different record. The record being edited may keep its own identification.
func CheckDuplicate(d Draft, existing []Operation) error {
	ident := strings.TrimSpace(d.Identification)
	for _, op := range existing {
		if op.Identification == ident && op.ID != d.ID {
			return ErrDuplicate
		}
	}
	return nil
}

// ValidateForSubmit runs field validation and, only when it passes, the
// duplicate check. It returns a *ValidationError, ErrDuplicate or nil.
func ValidateForSubmit(d Draft, existing []Operation) error {
	if res := Validate(d); !res.IsValid() {
		return &ValidationError{Fields: res.FieldErrors}
	}
	return CheckDuplicate(d, existing)
}

// EndDate previews the derived end date. ok is false while the start date or
// the term cannot be parsed.
func (d Draft) EndDate() (Date, bool) {
	start, err := ParseDate(d.StartDate)
	if err != nil {
		return Date{}, false
	}
	term, err := ParseTerm(d.TermMonths)
	if err != nil {
		return Date{}, false
	}
	return Date{Time: ComputeEndDate(start.Time, term)}, true
}

// Payload coerces a validated draft into the record sent to the backend:
// numeric amount and term, start date as a full timestamp.
func (d Draft) Payload() (Operation, error) {
	if res := Validate(d); !res.IsValid() {
		return Operation{}, &ValidationError{Fields: res.FieldErrors}
	}
	amount, _ := ParseAmount(d.Amount)
	term, _ := ParseTerm(d.TermMonths)
	start, _ := ParseDate(d.StartDate)
	return Operation{
		ID:             d.ID,
		Identification: strings.TrimSpace(d.Identification),
		Name:           strings.TrimSpace(d.Name),
		CreditType:     d.CreditType,
		Amount:         amount,
		StartDate:      start,
		TermMonths:     term,
		Approved:       d.Approved,
		EndDate:        Date{Time: ComputeEndDate(start.Time, term)},
	}, nil
}
