package gateway_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"scout/internal/gateway"
	"scout/internal/gateway/mocks"
	"scout/pkg/platform/circuit"
)

type ResilientSuite struct {
	suite.Suite
	next    *mocks.MockGateway
	sleeps  []time.Duration
	now     time.Time
	breaker *circuit.Breaker
	gw      *gateway.Resilient
}

func TestResilientSuite(t *testing.T) {
	suite.Run(t, new(ResilientSuite))
}

func (s *ResilientSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.next = mocks.NewMockGateway(ctrl)
	s.sleeps = nil
	s.now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.breaker = circuit.New("test",
		circuit.WithFailureThreshold(3),
		circuit.WithCooldown(time.Minute),
		circuit.WithClock(func() time.Time { return s.now }),
	)
	s.gw = gateway.NewResilient(s.next,
		gateway.WithMaxAttempts(3),
		gateway.WithBackoff(100*time.Millisecond, 150*time.Millisecond),
		gateway.WithBreaker(s.breaker),
		gateway.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		gateway.WithSleep(func(_ context.Context, d time.Duration) error {
			s.sleeps = append(s.sleeps, d)
			return nil
		}),
	)
}

func unavailable() error {
	return gateway.NewError(gateway.CategoryUnavailable, "fetch", "503", nil)
}

func (s *ResilientSuite) TestRetriesTransientErrors() {
	ctx := context.Background()
	want := &gateway.FetchResult{Status: gateway.StatusSearching}
	gomock.InOrder(
		s.next.EXPECT().Fetch(gomock.Any(), gateway.JobRef("job")).Return(nil, unavailable()),
		s.next.EXPECT().Fetch(gomock.Any(), gateway.JobRef("job")).Return(nil, gateway.NewError(gateway.CategoryRateLimited, "fetch", "429", nil)),
		s.next.EXPECT().Fetch(gomock.Any(), gateway.JobRef("job")).Return(want, nil),
	)

	got, err := s.gw.Fetch(ctx, "job")
	s.Require().NoError(err)
	s.Same(want, got)
	s.Equal([]time.Duration{100 * time.Millisecond, 150 * time.Millisecond}, s.sleeps, "backoff doubles and is capped")
	s.Equal(circuit.StateClosed, s.breaker.State())
}

func (s *ResilientSuite) TestExhaustionSurfacesUnavailable() {
	s.next.EXPECT().Submit(gomock.Any(), gomock.Any()).
		Return(gateway.JobRef(""), gateway.NewError(gateway.CategoryRateLimited, "submit", "429", nil)).Times(3)

	_, err := s.gw.Submit(context.Background(), gateway.JobSpec{SearchID: "s1"})
	s.Require().Error(err)
	s.Equal(gateway.CategoryUnavailable, gateway.CategoryOf(err))
	s.Len(s.sleeps, 2)
}

func (s *ResilientSuite) TestPermanentErrorsAreNotRetried() {
	rejected := gateway.NewError(gateway.CategoryRejected, "submit", "401", nil)
	s.next.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(gateway.JobRef(""), rejected).Times(1)

	_, err := s.gw.Submit(context.Background(), gateway.JobSpec{})
	s.ErrorIs(err, rejected)
	s.Equal(gateway.CategoryRejected, gateway.CategoryOf(err))
	s.Empty(s.sleeps)
	s.Equal(circuit.StateClosed, s.breaker.State())
}

func (s *ResilientSuite) TestBreakerShortCircuits() {
	ctx := context.Background()
	// three failed attempts open the breaker
	s.next.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(nil, unavailable()).Times(3)
	_, err := s.gw.Fetch(ctx, "job")
	s.Require().Error(err)
	s.Equal(circuit.StateOpen, s.breaker.State())

	// no further calls reach the provider while open
	_, err = s.gw.Fetch(ctx, "job")
	s.ErrorIs(err, gateway.ErrCircuitOpen)
	s.Equal(gateway.CategoryUnavailable, gateway.CategoryOf(err))

	// after the cooldown a trial call goes through and closes the circuit
	s.now = s.now.Add(2 * time.Minute)
	s.next.EXPECT().Cancel(gomock.Any(), gateway.JobRef("job")).Return(nil)
	s.Require().NoError(s.gw.Cancel(ctx, "job"))
	s.Equal(circuit.StateClosed, s.breaker.State())
}

func (s *ResilientSuite) TestCallerCancellationStopsRetries() {
	ctx, cancel := context.WithCancel(context.Background())
	s.next.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, gateway.JobRef) (*gateway.FetchResult, error) {
			cancel()
			return nil, gateway.NewError(gateway.CategoryUnavailable, "fetch", "request failed", context.Canceled)
		}).Times(1)

	_, err := s.gw.Fetch(ctx, "job")
	s.True(errors.Is(err, context.Canceled))
	s.Empty(s.sleeps)
	s.Equal(circuit.StateClosed, s.breaker.State())
}

func (s *ResilientSuite) TestInterruptedBackoff() {
	gw := gateway.NewResilient(s.next,
		gateway.WithBreaker(s.breaker),
		gateway.WithSleep(func(context.Context, time.Duration) error { return context.DeadlineExceeded }),
	)
	s.next.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(nil, unavailable()).Times(1)

	_, err := gw.Fetch(context.Background(), "job")
	s.ErrorIs(err, context.DeadlineExceeded)
	s.Equal(gateway.CategoryUnavailable, gateway.CategoryOf(err))
}

func (s *ResilientSuite) TestSlowAttemptTimesOutAndIsRetried() {
	gw := gateway.NewResilient(s.next,
		gateway.WithMaxAttempts(3),
		gateway.WithAttemptTimeout(20*time.Millisecond),
		gateway.WithBreaker(s.breaker),
		gateway.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		gateway.WithSleep(func(_ context.Context, d time.Duration) error {
			s.sleeps = append(s.sleeps, d)
			return nil
		}),
	)
	want := &gateway.FetchResult{Status: gateway.StatusDone}
	gomock.InOrder(
		s.next.EXPECT().Fetch(gomock.Any(), gateway.JobRef("job")).DoAndReturn(
			func(ctx context.Context, _ gateway.JobRef) (*gateway.FetchResult, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			}),
		s.next.EXPECT().Fetch(gomock.Any(), gateway.JobRef("job")).DoAndReturn(
			func(ctx context.Context, _ gateway.JobRef) (*gateway.FetchResult, error) {
				s.Require().NoError(ctx.Err(), "second attempt gets a fresh deadline")
				return want, nil
			}),
	)

	got, err := gw.Fetch(context.Background(), "job")
	s.Require().NoError(err)
	s.Same(want, got)
	s.Len(s.sleeps, 1)
}

func (s *ResilientSuite) TestEveryAttemptTimingOutExhaustsRetries() {
	gw := gateway.NewResilient(s.next,
		gateway.WithMaxAttempts(2),
		gateway.WithAttemptTimeout(10*time.Millisecond),
		gateway.WithBreaker(s.breaker),
		gateway.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		gateway.WithSleep(func(context.Context, time.Duration) error { return nil }),
	)
	s.next.EXPECT().Fetch(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ gateway.JobRef) (*gateway.FetchResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}).Times(2)

	_, err := gw.Fetch(context.Background(), "job")
	s.Require().Error(err)
	s.Equal(gateway.CategoryUnavailable, gateway.CategoryOf(err))
	s.Contains(err.Error(), "retries exhausted")
	s.ErrorIs(err, context.DeadlineExceeded)
}

func (s *ResilientSuite) TestBudgetCoversAttemptsAndBackoff() {
	gw := gateway.NewResilient(s.next,
		gateway.WithMaxAttempts(3),
		gateway.WithAttemptTimeout(time.Second),
		gateway.WithBackoff(100*time.Millisecond, 150*time.Millisecond),
	)
	s.Equal(3*time.Second+250*time.Millisecond, gw.Budget())

	s.Zero(s.gw.Budget(), "no attempt timeout means no budget")
}
