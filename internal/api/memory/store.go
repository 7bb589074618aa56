package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"operaciones/internal/api"
	"operaciones/internal/core"
)

// Store is an in-process implementation of api.Repository. It behaves like
// the REST backend: reads carry the credit type display name, writes accept
// the code, and identifications are unique.
type Store struct {
	mu     sync.Mutex
	types  []core.CreditType
	items  []core.Operation
	nextID int64
	now    func() time.Time
}

// Ensure interface conformance
var _ api.Repository = (*Store)(nil)

// DefaultCreditTypes is used when no seed file is present.
var DefaultCreditTypes = []core.CreditType{
	{Code: "CONS", Name: "Consumo"},
	{Code: "HIPO", Name: "Hipotecario"},
	{Code: "MICRO", Name: "Microcrédito"},
	{Code: "VEH", Name: "Vehicular"},
}

func New(types []core.CreditType) *Store {
	return &Store{types: dedupe(types), nextID: 1, now: time.Now}
}

// NewFromFiles seeds credit types from base/seed_credit_types.txt, one
// "CODE;Name" pair per line.
func NewFromFiles(base string) *Store {
	var types []core.CreditType
	for _, line := range readLines(filepath.Join(base, "seed_credit_types.txt")) {
		code, name, ok := strings.Cut(line, ";")
		if !ok {
			continue
		}
		types = append(types, core.CreditType{Code: strings.TrimSpace(code), Name: strings.TrimSpace(name)})
	}
	if len(types) == 0 {
		types = DefaultCreditTypes
	}
	return New(types)
}

// SetClock overrides the registration timestamp source.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) List(_ context.Context, search string) ([]core.Operation, error) {
	q := strings.ToLower(strings.TrimSpace(search))
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Operation, 0, len(s.items))
	for _, op := range s.items {
		if q != "" &&
			!strings.Contains(strings.ToLower(op.Name), q) &&
			!strings.Contains(strings.ToLower(op.Identification), q) {
			continue
		}
		out = append(out, s.present(op))
	}
	return out, nil
}

func (s *Store) Get(_ context.Context, id int64) (core.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return core.Operation{}, fmt.Errorf("get operation %d: %w", id, api.ErrNotFound)
	}
	return s.present(s.items[i]), nil
}

func (s *Store) Create(_ context.Context, op core.Operation) (core.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, err := s.normalize(op, 0)
	if err != nil {
		return core.Operation{}, fmt.Errorf("create operation: %w", err)
	}
	stored.ID = s.nextID
	stored.RegisteredAt = core.Date{Time: s.now().UTC()}
	s.nextID++
	s.items = append(s.items, stored)
	return s.present(stored), nil
}

func (s *Store) Update(_ context.Context, id int64, op core.Operation) (core.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return core.Operation{}, fmt.Errorf("update operation %d: %w", id, api.ErrNotFound)
	}
	stored, err := s.normalize(op, id)
	if err != nil {
		return core.Operation{}, fmt.Errorf("update operation %d: %w", id, err)
	}
	stored.ID = id
	stored.RegisteredAt = s.items[i].RegisteredAt
	s.items[i] = stored
	return s.present(stored), nil
}

func (s *Store) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return fmt.Errorf("delete operation %d: %w", id, api.ErrNotFound)
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return nil
}

func (s *Store) ListCreditTypes(_ context.Context) ([]core.CreditType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.CreditType(nil), s.types...), nil
}

func (s *Store) index(id int64) int {
	for i, op := range s.items {
		if op.ID == id {
			return i
		}
	}
	return -1
}

// normalize resolves the credit type to its code and enforces unique
// identifications. self is the id allowed to keep its identification.
func (s *Store) normalize(op core.Operation, self int64) (core.Operation, error) {
	op.Identification = strings.TrimSpace(op.Identification)
	op.Name = strings.TrimSpace(op.Name)
	ct, ok := core.FindCreditTypeByCode(s.types, op.CreditType)
	if !ok {
		ct, ok = core.FindCreditTypeByName(s.types, op.CreditType)
	}
	if !ok {
		return core.Operation{}, fmt.Errorf("unknown credit type %q: %w", op.CreditType, api.ErrInvalid)
	}
	op.CreditType = ct.Code
	for _, other := range s.items {
		if other.ID != self && other.Identification == op.Identification {
			return core.Operation{}, fmt.Errorf("identification %q: %w", op.Identification, api.ErrConflict)
		}
	}
	op.EndDate = core.Date{Time: core.ComputeEndDate(op.StartDate.Time, op.TermMonths)}
	return op, nil
}

// present swaps the stored code for the display name, as the backend does.
func (s *Store) present(op core.Operation) core.Operation {
	if ct, ok := core.FindCreditTypeByCode(s.types, op.CreditType); ok {
		op.CreditType = ct.Name
	}
	return op
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// dedupe drops blank and repeated codes, then orders by display name.
func dedupe(in []core.CreditType) []core.CreditType {
	seen := map[string]struct{}{}
	out := make([]core.CreditType, 0, len(in))
	for _, ct := range in {
		ct.Code = strings.TrimSpace(ct.Code)
		ct.Name = strings.TrimSpace(ct.Name)
		if ct.Code == "" {
			continue
		}
		if _, ok := seen[ct.Code]; ok {
			continue
		}
		if ct.Name == "" {
			ct.Name = ct.Code
		}
		seen[ct.Code] = struct{}{}
		out = append(out, ct)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
