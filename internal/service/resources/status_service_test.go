package resources

import (
	"context"
	"testing"
	"time"

	"github.com/Domenick1991/travelbook/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// Mock структуры

type MockResourceRepository struct {
	mock.Mock
}

func (m *MockResourceRepository) List(ctx context.Context, kind domain.ResourceKind) ([]domain.Resource, error) {
	args := m.Called(ctx, kind)
	return args.Get(0).([]domain.Resource), args.Error(1)
}

func (m *MockResourceRepository) GetByID(ctx context.Context, ref domain.ResourceRef) (*domain.Resource, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Resource), args.Error(1)
}

func (m *MockResourceRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, ref domain.ResourceRef) (*domain.Resource, error) {
	args := m.Called(ctx, tx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Resource), args.Error(1)
}

func (m *MockResourceRepository) ReserveCapacity(ctx context.Context, tx pgx.Tx, ref domain.ResourceRef, units int) error {
	args := m.Called(ctx, tx, ref, units)
	return args.Error(0)
}

func (m *MockResourceRepository) ReleaseCapacity(ctx context.Context, tx pgx.Tx, ref domain.ResourceRef, units int) error {
	args := m.Called(ctx, tx, ref, units)
	return args.Error(0)
}

func (m *MockResourceRepository) ResetCapacity(ctx context.Context, tx pgx.Tx, ref domain.ResourceRef) error {
	args := m.Called(ctx, tx, ref)
	return args.Error(0)
}

func (m *MockResourceRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, ref domain.ResourceRef, status domain.ResourceStatus, revised *domain.Window) error {
	args := m.Called(ctx, tx, ref, status, revised)
	return args.Error(0)
}

func (m *MockResourceRepository) NonTerminal(ctx context.Context, kind domain.ResourceKind) ([]domain.Resource, error) {
	args := m.Called(ctx, kind)
	return args.Get(0).([]domain.Resource), args.Error(1)
}

func (m *MockResourceRepository) Delete(ctx context.Context, tx pgx.Tx, ref domain.ResourceRef) error {
	args := m.Called(ctx, tx, ref)
	return args.Error(0)
}

type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) Create(ctx context.Context, tx pgx.Tx, booking *domain.Booking) error {
	args := m.Called(ctx, tx, booking)
	return args.Error(0)
}

func (m *MockBookingRepository) GetByToken(ctx context.Context, token string) (*domain.Booking, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) GetByTokenForUpdate(ctx context.Context, tx pgx.Tx, token string) (*domain.Booking, error) {
	args := m.Called(ctx, tx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id int64, from []domain.BookingStatus, to domain.BookingStatus) (bool, error) {
	args := m.Called(ctx, tx, id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookingRepository) UpdateResource(ctx context.Context, tx pgx.Tx, id int64, ref domain.ResourceRef, priceCents int64) error {
	args := m.Called(ctx, tx, id, ref, priceCents)
	return args.Error(0)
}

func (m *MockBookingRepository) ActiveByResource(ctx context.Context, tx pgx.Tx, ref domain.ResourceRef) ([]domain.Booking, error) {
	args := m.Called(ctx, tx, ref)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) HasCompletedPayment(ctx context.Context, tx pgx.Tx, ref domain.ResourceRef) (bool, error) {
	args := m.Called(ctx, tx, ref)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookingRepository) ExpiredPending(ctx context.Context, deadline time.Time, limit int) ([]domain.Booking, error) {
	args := m.Called(ctx, deadline, limit)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) SetPaymentStatus(ctx context.Context, tx pgx.Tx, bookingID int64, status domain.PaymentStatus, amountCents int64) error {
	args := m.Called(ctx, tx, bookingID, status, amountCents)
	return args.Error(0)
}

func (m *MockBookingRepository) Delete(ctx context.Context, tx pgx.Tx, id int64) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

func (m *MockBookingRepository) DeleteByResource(ctx context.Context, tx pgx.Tx, ref domain.ResourceRef) (int64, error) {
	args := m.Called(ctx, tx, ref)
	return args.Get(0).(int64), args.Error(1)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetResources(ctx context.Context, kind domain.ResourceKind) ([]domain.Resource, error) {
	args := m.Called(ctx, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Resource), args.Error(1)
}

func (m *MockCache) SetResources(ctx context.Context, kind domain.ResourceKind, resources []domain.Resource) error {
	args := m.Called(ctx, kind, resources)
	return args.Error(0)
}

func (m *MockCache) InvalidateResources(ctx context.Context, kind domain.ResourceKind) error {
	args := m.Called(ctx, kind)
	return args.Error(0)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

type mockPool struct {
	lastTx  *mockTx
	txCount int
}

func (p *mockPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("unexpected direct QueryRow")
}

func (p *mockPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("unexpected direct Query")
}

func (p *mockPool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	panic("unexpected direct Exec")
}

func (p *mockPool) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	p.txCount++
	tx := &mockTx{}
	p.lastTx = tx
	return tx, nil
}

type mockTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (tx *mockTx) Commit(ctx context.Context) error {
	tx.committed = true
	return nil
}

func (tx *mockTx) Rollback(ctx context.Context) error {
	if !tx.committed {
		tx.rolledBack = true
	}
	return nil
}

var statusNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type statusFixture struct {
	pool      *mockPool
	resources *MockResourceRepository
	bookings  *MockBookingRepository
	cache     *MockCache
	producer  *MockProducer
	service   *StatusService
}

func newStatusFixture() *statusFixture {
	f := &statusFixture{
		pool:      &mockPool{},
		resources: &MockResourceRepository{},
		bookings:  &MockBookingRepository{},
		cache:     &MockCache{},
		producer:  &MockProducer{},
	}
	f.service = NewStatusService(
		f.pool, f.resources, f.bookings, f.cache, f.producer, "resource_events",
		WithStatusClock(func() time.Time { return statusNow }),
		WithStatusRetry(1, time.Millisecond),
	)
	return f
}

func (f *statusFixture) assertExpectations(t *testing.T) {
	f.resources.AssertExpectations(t)
	f.bookings.AssertExpectations(t)
	f.cache.AssertExpectations(t)
	f.producer.AssertExpectations(t)
}

func upcomingTour(id int64) *domain.Resource {
	return &domain.Resource{
		ID:                id,
		Kind:              domain.KindTour,
		Name:              "Tour",
		Status:            domain.TourUpcoming,
		CapacityTotal:     20,
		CapacityAvailable: 17,
		PriceCents:        50000,
		WindowStart:       statusNow.Add(48 * time.Hour),
		WindowEnd:         statusNow.Add(52 * time.Hour),
	}
}

func TestStatusService_Advance_CancelCascades(t *testing.T) {
	f := newStatusFixture()
	ctx := context.Background()
	ref := domain.ResourceRef{Kind: domain.KindTour, ID: 9}

	active := []domain.Booking{
		{ID: 1, Token: "t1", Resource: ref, Units: 1, Status: domain.BookingStatusPending, Email: "a@example.com"},
		{ID: 2, Token: "t2", Resource: ref, Units: 2, Status: domain.BookingStatusConfirmed, Email: "b@example.com"},
		{ID: 3, Token: "t3", Resource: ref, Units: 1, Status: domain.BookingStatusPending, Email: "c@example.com"},
	}

	f.resources.On("GetForUpdate", ctx, mock.Anything, ref).Return(upcomingTour(9), nil).Once()
	f.bookings.On("HasCompletedPayment", ctx, mock.Anything, ref).Return(false, nil).Once()
	f.bookings.On("ActiveByResource", ctx, mock.Anything, ref).Return(active, nil).Once()
	for _, b := range active {
		f.bookings.On("UpdateStatus", ctx, mock.Anything, b.ID, []domain.BookingStatus{domain.BookingStatusPending, domain.BookingStatusConfirmed}, domain.BookingStatusCancelled).Return(true, nil).Once()
	}
	f.resources.On("ResetCapacity", ctx, mock.Anything, ref).Return(nil).Once()
	f.resources.On("UpdateStatus", ctx, mock.Anything, ref, domain.TourCancelled, (*domain.Window)(nil)).Return(nil).Once()
	f.cache.On("InvalidateResources", ctx, domain.KindTour).Return(nil).Once()
	// One resource event plus a cancellation event per booking.
	f.producer.On("Publish", ctx, "resource_events", mock.Anything, mock.Anything).Return(nil).Times(4)

	updated, err := f.service.Advance(ctx, ref, domain.TourCancelled, nil)

	assert.NoError(t, err)
	assert.Equal(t, domain.TourCancelled, updated.Status)
	assert.Equal(t, updated.CapacityTotal, updated.CapacityAvailable)
	assert.True(t, f.pool.lastTx.committed)
	f.assertExpectations(t)
}

func TestStatusService_Advance_CancelBlockedByPaidBooking(t *testing.T) {
	f := newStatusFixture()
	ctx := context.Background()
	ref := domain.ResourceRef{Kind: domain.KindTour, ID: 9}

	f.resources.On("GetForUpdate", ctx, mock.Anything, ref).Return(upcomingTour(9), nil).Once()
	f.bookings.On("HasCompletedPayment", ctx, mock.Anything, ref).Return(true, nil).Once()

	updated, err := f.service.Advance(ctx, ref, domain.TourCancelled, nil)

	assert.Nil(t, updated)
	assert.Equal(t, "resource has paid bookings, refund required first", domain.ConflictReason(err))
	assert.True(t, f.pool.lastTx.rolledBack)
	f.resources.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestStatusService_Advance_PrematureDeparture(t *testing.T) {
	f := newStatusFixture()
	ctx := context.Background()
	ref := domain.ResourceRef{Kind: domain.KindFlight, ID: 4}

	flight := &domain.Resource{
		ID:          4,
		Kind:        domain.KindFlight,
		Status:      domain.FlightScheduled,
		WindowStart: statusNow.Add(3 * time.Hour),
		WindowEnd:   statusNow.Add(5 * time.Hour),
	}
	f.resources.On("GetForUpdate", ctx, mock.Anything, ref).Return(flight, nil).Once()

	updated, err := f.service.Advance(ctx, ref, domain.FlightDeparted, nil)

	assert.Nil(t, updated)
	assert.Equal(t, "departure time has not been reached", domain.ConflictReason(err))
	f.assertExpectations(t)
}

func TestStatusService_Advance_DelayWithRevisedWindow(t *testing.T) {
	f := newStatusFixture()
	ctx := context.Background()
	ref := domain.ResourceRef{Kind: domain.KindFlight, ID: 4}

	flight := &domain.Resource{
		ID:          4,
		Kind:        domain.KindFlight,
		Status:      domain.FlightScheduled,
		WindowStart: statusNow.Add(3 * time.Hour),
		WindowEnd:   statusNow.Add(5 * time.Hour),
	}
	revised := &domain.Window{Start: statusNow.Add(6 * time.Hour), End: statusNow.Add(8 * time.Hour)}

	f.resources.On("GetForUpdate", ctx, mock.Anything, ref).Return(flight, nil).Once()
	f.resources.On("UpdateStatus", ctx, mock.Anything, ref, domain.FlightDelayed, revised).Return(nil).Once()
	f.cache.On("InvalidateResources", ctx, domain.KindFlight).Return(nil).Once()
	f.producer.On("Publish", ctx, "resource_events", mock.Anything, mock.Anything).Return(nil).Once()

	updated, err := f.service.Advance(ctx, ref, domain.FlightDelayed, revised)

	assert.NoError(t, err)
	assert.Equal(t, domain.FlightDelayed, updated.Status)
	assert.Equal(t, revised.Start, updated.WindowStart)
	assert.Equal(t, revised.End, updated.WindowEnd)
	f.assertExpectations(t)
}

func TestStatusService_AdvanceDue(t *testing.T) {
	ref := domain.ResourceRef{Kind: domain.KindFlight, ID: 4}

	t.Run("due departure is applied", func(t *testing.T) {
		f := newStatusFixture()
		ctx := context.Background()

		flight := &domain.Resource{
			ID:          4,
			Kind:        domain.KindFlight,
			Status:      domain.FlightScheduled,
			WindowStart: statusNow.Add(-time.Minute),
			WindowEnd:   statusNow.Add(2 * time.Hour),
		}
		f.resources.On("GetForUpdate", ctx, mock.Anything, ref).Return(flight, nil).Once()
		f.resources.On("UpdateStatus", ctx, mock.Anything, ref, domain.FlightDeparted, (*domain.Window)(nil)).Return(nil).Once()
		f.cache.On("InvalidateResources", ctx, domain.KindFlight).Return(nil).Once()

		applied, err := f.service.AdvanceDue(ctx, ref)

		assert.NoError(t, err)
		assert.True(t, applied)
		f.assertExpectations(t)
	})

	t.Run("nothing due after operator change", func(t *testing.T) {
		f := newStatusFixture()
		ctx := context.Background()

		// The sweep re-reads under lock; a cancellation that won the race
		// leaves no transition to apply.
		flight := &domain.Resource{
			ID:          4,
			Kind:        domain.KindFlight,
			Status:      domain.FlightCancelled,
			WindowStart: statusNow.Add(-time.Minute),
			WindowEnd:   statusNow.Add(2 * time.Hour),
		}
		f.resources.On("GetForUpdate", ctx, mock.Anything, ref).Return(flight, nil).Once()

		applied, err := f.service.AdvanceDue(ctx, ref)

		assert.NoError(t, err)
		assert.False(t, applied)
		f.resources.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})
}

func TestStatusService_DueCandidates(t *testing.T) {
	f := newStatusFixture()
	ctx := context.Background()

	rows := []domain.Resource{
		{ID: 1, Kind: domain.KindFlight, Status: domain.FlightScheduled, WindowStart: statusNow.Add(-time.Hour), WindowEnd: statusNow.Add(time.Hour)},
		{ID: 2, Kind: domain.KindFlight, Status: domain.FlightScheduled, WindowStart: statusNow.Add(time.Hour), WindowEnd: statusNow.Add(3 * time.Hour)},
		{ID: 3, Kind: domain.KindFlight, Status: domain.FlightDeparted, WindowStart: statusNow.Add(-3 * time.Hour), WindowEnd: statusNow.Add(-time.Hour)},
	}
	f.resources.On("NonTerminal", ctx, domain.KindFlight).Return(rows, nil).Once()

	due, err := f.service.DueCandidates(ctx, domain.KindFlight)

	assert.NoError(t, err)
	assert.Equal(t, []domain.ResourceRef{
		{Kind: domain.KindFlight, ID: 1},
		{Kind: domain.KindFlight, ID: 3},
	}, due)
	f.assertExpectations(t)
}
