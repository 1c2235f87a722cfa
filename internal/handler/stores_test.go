package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/stall-dashboard/internal/middleware"
	"github.com/iliyamo/stall-dashboard/internal/model"
	"github.com/iliyamo/stall-dashboard/internal/queue"
	"github.com/iliyamo/stall-dashboard/internal/rbac"
	"github.com/iliyamo/stall-dashboard/internal/repository"
)

// memStore is an in-memory implementation of the dashboard stores with the
// same state rules as the MySQL repositories.
type memStore struct {
	mu       sync.Mutex
	nextID   uint64
	stalls   map[uint64]*model.Stall
	rentals  map[uint64]*model.Rental
	payments map[uint64]*model.Payment
	expenses map[uint64]*model.Expense
	failWith error
}

func newMemStore() *memStore {
	return &memStore{
		stalls:   map[uint64]*model.Stall{},
		rentals:  map[uint64]*model.Rental{},
		payments: map[uint64]*model.Payment{},
		expenses: map[uint64]*model.Expense{},
	}
}

func (m *memStore) id() uint64 { m.nextID++; return m.nextID }

type stallStore struct{ *memStore }
type rentalStore struct{ *memStore }
type paymentStore struct{ *memStore }
type expenseStore struct{ *memStore }

func (s stallStore) Create(_ context.Context, st *model.Stall) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	for _, o := range s.stalls {
		if o.Code == st.Code {
			return repository.ErrDuplicate
		}
	}
	st.ID = s.id()
	if st.Status == "" {
		st.Status = model.StallAvailable
	}
	cp := *st
	s.stalls[st.ID] = &cp
	return nil
}

func (s stallStore) GetByID(_ context.Context, id uint64) (*model.Stall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	st, ok := s.stalls[id]
	if !ok {
		return nil, repository.ErrStallNotFound
	}
	cp := *st
	return &cp, nil
}

func (s stallStore) List(_ context.Context, f model.StallFilter) ([]*model.Stall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	out := []*model.Stall{}
	for _, st := range s.stalls {
		if f.Status != "" && st.Status != f.Status {
			continue
		}
		if f.Search != "" && !strings.Contains(st.Code+st.Name, f.Search) {
			continue
		}
		cp := *st
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s stallStore) Update(_ context.Context, st *model.Stall) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.stalls[st.ID]
	if !ok {
		return repository.ErrStallNotFound
	}
	next := cur.Status
	if st.Status != "" && st.Status != cur.Status {
		if cur.Status == model.StallRented || st.Status == model.StallRented {
			return repository.ErrConflict
		}
		next = st.Status
	}
	st.Status = next
	cp := *st
	s.stalls[st.ID] = &cp
	return nil
}

func (s stallStore) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stalls[id]; !ok {
		return repository.ErrStallNotFound
	}
	for _, rt := range s.rentals {
		if rt.StallID == id && rt.Status == model.RentalActive {
			return repository.ErrConflict
		}
	}
	delete(s.stalls, id)
	return nil
}

func (s stallStore) CountByStatus(context.Context) (map[model.StallStatus]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[model.StallStatus]int64{}
	for _, st := range s.stalls {
		out[st.Status]++
	}
	return out, nil
}

func (s rentalStore) Create(_ context.Context, rt *model.Rental) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stalls[rt.StallID]
	if !ok {
		return repository.ErrStallNotFound
	}
	if st.Status != model.StallAvailable {
		return repository.ErrConflict
	}
	if rt.MonthlyRentCents == 0 {
		rt.MonthlyRentCents = st.MonthlyRentCents
	}
	rt.ID = s.id()
	rt.Status = model.RentalActive
	st.Status = model.StallRented
	cp := *rt
	s.rentals[rt.ID] = &cp
	return nil
}

func (s rentalStore) GetByID(_ context.Context, id uint64) (*model.Rental, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.rentals[id]
	if !ok {
		return nil, repository.ErrRentalNotFound
	}
	cp := *rt
	return &cp, nil
}

func (s rentalStore) List(_ context.Context, f model.RentalFilter) ([]*model.Rental, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*model.Rental{}
	for _, rt := range s.rentals {
		if f.StallID != 0 && rt.StallID != f.StallID {
			continue
		}
		if f.Status != "" && rt.Status != f.Status {
			continue
		}
		if f.TenantUserID != 0 && (rt.TenantUserID == nil || *rt.TenantUserID != f.TenantUserID) {
			continue
		}
		cp := *rt
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s rentalStore) UpdateTerms(_ context.Context, rt *model.Rental) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rentals[rt.ID]; !ok {
		return repository.ErrRentalNotFound
	}
	cp := *rt
	s.rentals[rt.ID] = &cp
	return nil
}

func (s rentalStore) End(_ context.Context, id uint64, endsOn time.Time) (*model.Rental, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.rentals[id]
	if !ok {
		return nil, repository.ErrRentalNotFound
	}
	if rt.Status != model.RentalActive {
		return nil, repository.ErrConflict
	}
	rt.Status = model.RentalEnded
	rt.EndsOn = &endsOn
	if st, ok := s.stalls[rt.StallID]; ok && st.Status == model.StallRented {
		st.Status = model.StallAvailable
	}
	cp := *rt
	return &cp, nil
}

func (s rentalStore) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rt, ok := s.rentals[id]
	if !ok {
		return repository.ErrRentalNotFound
	}
	for _, p := range s.payments {
		if p.RentalID == id {
			return repository.ErrConflict
		}
	}
	if st, ok := s.stalls[rt.StallID]; ok && rt.Status == model.RentalActive {
		st.Status = model.StallAvailable
	}
	delete(s.rentals, id)
	return nil
}

func (s rentalStore) CountActive(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, rt := range s.rentals {
		if rt.Status == model.RentalActive {
			n++
		}
	}
	return n, nil
}

func (s paymentStore) Create(_ context.Context, p *model.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rentals[p.RentalID]; !ok {
		return repository.ErrRentalNotFound
	}
	for _, o := range s.payments {
		if o.Reference == p.Reference {
			return repository.ErrDuplicate
		}
	}
	p.ID = s.id()
	cp := *p
	s.payments[p.ID] = &cp
	return nil
}

func (s paymentStore) GetByID(_ context.Context, id uint64) (*model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return nil, repository.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (s paymentStore) List(_ context.Context, f model.PaymentFilter) ([]*model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*model.Payment{}
	for _, p := range s.payments {
		if f.RentalID != 0 && p.RentalID != f.RentalID {
			continue
		}
		if f.From != nil && p.PaidOn.Before(*f.From) || f.To != nil && p.PaidOn.After(*f.To) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s paymentStore) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments[id]; !ok {
		return repository.ErrPaymentNotFound
	}
	delete(s.payments, id)
	return nil
}

func (s paymentStore) Totals(_ context.Context, from, to time.Time) (count, cents int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if !p.PaidOn.Before(from) && !p.PaidOn.After(to) {
			count++
			cents += p.AmountCents
		}
	}
	return count, cents, nil
}

func (s expenseStore) Create(_ context.Context, e *model.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.StallID != nil {
		if _, ok := s.stalls[*e.StallID]; !ok {
			return repository.ErrStallNotFound
		}
	}
	e.ID = s.id()
	cp := *e
	s.expenses[e.ID] = &cp
	return nil
}

func (s expenseStore) CreateMany(_ context.Context, es []*model.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	for _, e := range es {
		if e.StallID != nil {
			if _, ok := s.stalls[*e.StallID]; !ok {
				return repository.ErrStallNotFound
			}
		}
	}
	for _, e := range es {
		e.ID = s.id()
		cp := *e
		s.expenses[e.ID] = &cp
	}
	return nil
}

func (s expenseStore) GetByID(_ context.Context, id uint64) (*model.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[id]
	if !ok {
		return nil, repository.ErrExpenseNotFound
	}
	cp := *e
	return &cp, nil
}

func (s expenseStore) List(_ context.Context, f model.ExpenseFilter) ([]*model.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*model.Expense{}
	for _, e := range s.expenses {
		if f.Category != "" && e.Category != f.Category {
			continue
		}
		if f.StallID != 0 && (e.StallID == nil || *e.StallID != f.StallID) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s expenseStore) Update(_ context.Context, e *model.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expenses[e.ID]; !ok {
		return repository.ErrExpenseNotFound
	}
	cp := *e
	s.expenses[e.ID] = &cp
	return nil
}

func (s expenseStore) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.expenses[id]; !ok {
		return repository.ErrExpenseNotFound
	}
	delete(s.expenses, id)
	return nil
}

func (s expenseStore) Totals(_ context.Context, from, to time.Time) (count, cents int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.expenses {
		if !e.SpentOn.Before(from) && !e.SpentOn.After(to) {
			count++
			cents += e.AmountCents
		}
	}
	return count, cents, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.PaymentRecordedEvent
	err    error
}

func (p *recordingPublisher) PublishPaymentRecorded(_ context.Context, ev queue.PaymentRecordedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

var errDB = errors.New("connection refused")

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

type fixture struct {
	store  *memStore
	events *recordingPublisher
	h      *DashboardHandler
}

// identity stands in for JWTAuth.
func identity(uid uint64, role rbac.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(middleware.KeyUserID, uid)
			c.Set(middleware.KeyRole, role)
			return next(c)
		}
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m := newMemStore()
	pub := &recordingPublisher{}
	h := NewDashboardHandler(stallStore{m}, rentalStore{m}, paymentStore{m}, expenseStore{m}, pub,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	h.Now = func() time.Time { return fixedNow }
	return &fixture{store: m, events: pub, h: h}
}

// do runs handler fn for method/path (with route pattern route) as the
// given caller.
func (f *fixture) do(t *testing.T, uid uint64, role rbac.Role, method, route, path, body string, fn echo.HandlerFunc) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	e := echo.New()
	e.Validator = NewValidator()
	e.Add(method, route, fn, identity(uid, role))

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var resp Response
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	}
	return rec, resp
}

func (f *fixture) seedStall(code string, rent int64) *model.Stall {
	st := &model.Stall{Code: code, Name: "Stall " + code, MonthlyRentCents: rent}
	_ = stallStore{f.store}.Create(context.Background(), st)
	return st
}

func (f *fixture) seedRental(stallID uint64, tenant *uint64) *model.Rental {
	rt := &model.Rental{StallID: stallID, TenantUserID: tenant, TenantName: "Ana", StartsOn: fixedNow.AddDate(0, -1, 0).Truncate(24 * time.Hour)}
	_ = rentalStore{f.store}.Create(context.Background(), rt)
	return rt
}

// decode re-marshals resp.Data into dst.
func decode(t *testing.T, resp Response, dst any) {
	t.Helper()
	b, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, dst))
}

func itoa(id uint64) string { return strconv.FormatUint(id, 10) }

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}
