package core

import (
	"errors"
	"testing"
	"time"
)

func validDraft() Draft {
	return Draft{
		Identification: "0102030405",
		Name:           "Ana Pérez",
		CreditType:     "CONS",
		Amount:         "1500.50",
		StartDate:      "2024-01-15",
		TermMonths:     "12",
	}
}

func TestValidateCollectsEveryError(t *testing.T) {
	res := Validate(Draft{Identification: "", Name: "", Amount: "x", StartDate: "", TermMonths: "y"})
	if res.IsValid() {
		t.Fatal("expected invalid result")
	}
	want := map[string]string{
		FieldIdentification: MsgRequired,
		FieldName:           MsgRequired,
		FieldAmount:         MsgAmountNumeric,
		FieldStartDate:      MsgRequired,
		FieldTermMonths:     MsgTermNumeric,
	}
	if len(res.FieldErrors) != len(want) {
		t.Fatalf("expected %d errors, got %v", len(want), res.FieldErrors)
	}
	for k, v := range want {
		if res.FieldErrors[k] != v {
			t.Errorf("field %s: got %q want %q", k, res.FieldErrors[k], v)
		}
	}
}

func TestValidateSingleRules(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(*Draft)
		field string
		msg   string
	}{
		{"blank identification", func(d *Draft) { d.Identification = "   " }, FieldIdentification, MsgRequired},
		{"empty name", func(d *Draft) { d.Name = "" }, FieldName, MsgRequired},
		{"empty amount", func(d *Draft) { d.Amount = "" }, FieldAmount, MsgAmountNumeric},
		{"text amount", func(d *Draft) { d.Amount = "12abc" }, FieldAmount, MsgAmountNumeric},
		{"empty start", func(d *Draft) { d.StartDate = "" }, FieldStartDate, MsgRequired},
		{"garbage start", func(d *Draft) { d.StartDate = "31/31/2024" }, FieldStartDate, MsgInvalidDate},
		{"empty term", func(d *Draft) { d.TermMonths = "" }, FieldTermMonths, MsgTermNumeric},
		{"text term", func(d *Draft) { d.TermMonths = "doce" }, FieldTermMonths, MsgTermNumeric},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := validDraft()
			tc.edit(&d)
			res := Validate(d)
			if len(res.FieldErrors) != 1 {
				t.Fatalf("expected exactly one error, got %v", res.FieldErrors)
			}
			if res.FieldErrors[tc.field] != tc.msg {
				t.Fatalf("got %v", res.FieldErrors)
			}
		})
	}
	if res := Validate(validDraft()); !res.IsValid() {
		t.Fatalf("valid draft rejected: %v", res.FieldErrors)
	}
}

func TestCheckDuplicate(t *testing.T) {
	existing := []Operation{{ID: 1, Identification: "A"}}

	if err := CheckDuplicate(Draft{ID: 2, Identification: "A"}, existing); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if err := CheckDuplicate(Draft{ID: 1, Identification: "A"}, existing); err != nil {
		t.Fatalf("self match must be allowed, got %v", err)
	}
	if err := CheckDuplicate(Draft{ID: 0, Identification: "B"}, existing); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if err := CheckDuplicate(Draft{ID: 0, Identification: "A"}, existing); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("new record reusing identification must be rejected, got %v", err)
	}
}

func TestValidateForSubmitOrder(t *testing.T) {
	existing := []Operation{{ID: 1, Identification: "0102030405"}}

	bad := validDraft()
	bad.Name = ""
	err := ValidateForSubmit(bad, existing)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("field errors must win over duplicates, got %v", err)
	}
	if verr.Fields[FieldName] != MsgRequired {
		t.Fatalf("unexpected fields %v", verr.Fields)
	}

	if err := ValidateForSubmit(validDraft(), existing); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}

	self := validDraft()
	self.ID = 1
	if err := ValidateForSubmit(self, existing); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestDraftPayloadCoercion(t *testing.T) {
	d := validDraft()
	d.Amount = "1500,5"
	d.TermMonths = "6"
	d.Approved = true

	op, err := d.Payload()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if op.Amount != 1500.5 || op.TermMonths != 6 || !op.Approved {
		t.Fatalf("unexpected coercion: %+v", op)
	}
	if !op.StartDate.Equal(date(2024, 1, 15)) {
		t.Fatalf("start date %v", op.StartDate)
	}
	if !op.EndDate.Equal(date(2024, 7, 15)) {
		t.Fatalf("end date %v", op.EndDate)
	}

	d.Amount = "nope"
	if _, err := d.Payload(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestNewDraftDefaults(t *testing.T) {
	d := NewDraft(time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC))
	if d.StartDate != "2025-03-04" || d.TermMonths != "12" || d.Approved || d.ID != 0 {
		t.Fatalf("unexpected defaults %+v", d)
	}
	end, ok := d.EndDate()
	if !ok || end.FormValue() != "2026-03-04" {
		t.Fatalf("end date preview %v %v", end, ok)
	}
}

func TestDraftFromOperation(t *testing.T) {
	op := Operation{
		ID:             7,
		Identification: "X1",
		Name:           "Luis",
		CreditType:     "Consumo",
		Amount:         2500.75,
		StartDate:      NewDate(2024, 5, 20),
		TermMonths:     24,
		Approved:       true,
	}
	d := DraftFromOperation(op)
	if d.ID != 7 || d.Amount != "2500.75" || d.StartDate != "2024-05-20" || d.TermMonths != "24" || !d.Approved {
		t.Fatalf("unexpected draft %+v", d)
	}

	empty := DraftFromOperation(Operation{ID: 3})
	if empty.TermMonths != "12" || empty.Amount != "" {
		t.Fatalf("missing values should fall back to defaults: %+v", empty)
	}
}
