package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inErrors "github.com/Alturino/storefront/internal/errors"
)

type stubSource struct {
	calls    atomic.Int32
	release  chan struct{}
	err      error
	snapshot *Snapshot
}

func (s *stubSource) Fetch(c context.Context) (*Snapshot, error) {
	s.calls.Add(1)
	if s.release != nil {
		select {
		case <-s.release:
		case <-c.Done():
			return nil, c.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return NewSnapshot(s.snapshot.Base, s.snapshot.Rates, time.Now()), nil
}

func seedSnapshot(fetchedAt time.Time) *Snapshot {
	return NewSnapshot("INR", map[string]decimal.Decimal{
		"USD": decimal.RequireFromString("0.012"),
		"EUR": decimal.RequireFromString("0.011"),
	}, fetchedAt)
}

func TestConversion(t *testing.T) {
	converter := NewConverter(seedSnapshot(time.Now()), &stubSource{}, time.Second)

	tests := []struct {
		name     string
		amount   string
		currency string
		expected string
	}{
		{name: "given canonical currency should return amount unchanged", amount: "1234.56", currency: "INR", expected: "1234.56"},
		{name: "given lower case code should still convert", amount: "1000", currency: "usd", expected: "12"},
		{name: "given unknown currency should treat rate as one", amount: "99.99", currency: "XYZ", expected: "99.99"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := converter.ToDisplay(decimal.RequireFromString(test.amount), test.currency)
			assert.True(t, decimal.RequireFromString(test.expected).Equal(got), "got=%s", got)
		})
	}
}

func TestRoundTripWithinOneMinorUnit(t *testing.T) {
	converter := NewConverter(seedSnapshot(time.Now()), &stubSource{}, time.Second)
	tolerance := decimal.RequireFromString("0.01")

	for _, amount := range []string{"0.01", "1", "19.99", "1234.56", "987654.32"} {
		for _, currency := range []string{"INR", "USD", "EUR", "XYZ"} {
			x := decimal.RequireFromString(amount)
			back := converter.ToCanonical(converter.ToDisplay(x, currency), currency)
			assert.True(t, back.Sub(x).Abs().LessThanOrEqual(tolerance), "amount=%s currency=%s back=%s", amount, currency, back)
		}
	}
}

func TestRefreshIfStale(t *testing.T) {
	t.Run("given fresh snapshot should not fetch", func(t *testing.T) {
		source := &stubSource{snapshot: seedSnapshot(time.Now())}
		converter := NewConverter(seedSnapshot(time.Now()), source, time.Second)

		refreshed, err := converter.RefreshIfStale(context.Background(), time.Hour)
		require.NoError(t, err)
		assert.False(t, refreshed)
		assert.Equal(t, int32(0), source.calls.Load())
	})

	t.Run("given stale snapshot should swap in fetched snapshot", func(t *testing.T) {
		fresh := NewSnapshot("INR", map[string]decimal.Decimal{"USD": decimal.RequireFromString("0.0125")}, time.Now())
		source := &stubSource{snapshot: fresh}
		old := seedSnapshot(time.Now().Add(-2 * time.Hour))
		converter := NewConverter(old, source, time.Second)

		refreshed, err := converter.RefreshIfStale(context.Background(), time.Hour)
		require.NoError(t, err)
		assert.True(t, refreshed)
		assert.NotSame(t, old, converter.Snapshot())
		assert.True(t, decimal.RequireFromString("0.0125").Equal(converter.Snapshot().Rate("USD")))
		assert.True(t, decimal.RequireFromString("0.011").Equal(old.Rate("EUR")), "old snapshot must stay untouched")
	})

	t.Run("given failing source should keep stale snapshot", func(t *testing.T) {
		source := &stubSource{err: errors.New("connection refused")}
		old := seedSnapshot(time.Now().Add(-2 * time.Hour))
		converter := NewConverter(old, source, time.Second)

		refreshed, err := converter.RefreshIfStale(context.Background(), time.Hour)
		assert.ErrorIs(t, err, inErrors.ErrExternalService)
		assert.False(t, refreshed)
		assert.Same(t, old, converter.Snapshot())
		assert.True(t, decimal.RequireFromString("12").Equal(converter.ToDisplay(decimal.NewFromInt(1000), "USD")))
	})

	t.Run("given hanging source should give up after fetch timeout", func(t *testing.T) {
		source := &stubSource{release: make(chan struct{}), snapshot: seedSnapshot(time.Now())}
		old := seedSnapshot(time.Now().Add(-2 * time.Hour))
		converter := NewConverter(old, source, 50*time.Millisecond)

		start := time.Now()
		_, err := converter.RefreshIfStale(context.Background(), time.Hour)
		assert.ErrorIs(t, err, inErrors.ErrExternalService)
		assert.Less(t, time.Since(start), 2*time.Second)
		assert.Same(t, old, converter.Snapshot())
	})

	t.Run("given cancelled caller should still finish the fetch", func(t *testing.T) {
		source := &stubSource{snapshot: seedSnapshot(time.Now())}
		converter := NewConverter(seedSnapshot(time.Now().Add(-2*time.Hour)), source, time.Second)

		c, cancel := context.WithCancel(context.Background())
		cancel()
		refreshed, err := converter.RefreshIfStale(c, time.Hour)
		require.NoError(t, err)
		assert.True(t, refreshed)
	})

	t.Run("given base mismatch should reject snapshot", func(t *testing.T) {
		source := &stubSource{snapshot: NewSnapshot("USD", nil, time.Now())}
		old := seedSnapshot(time.Now().Add(-2 * time.Hour))
		converter := NewConverter(old, source, time.Second)

		_, err := converter.RefreshIfStale(context.Background(), time.Hour)
		assert.ErrorIs(t, err, inErrors.ErrExternalService)
		assert.Same(t, old, converter.Snapshot())
	})
}

func TestConcurrentRefreshFetchesOnce(t *testing.T) {
	source := &stubSource{release: make(chan struct{}), snapshot: seedSnapshot(time.Now())}
	converter := NewConverter(seedSnapshot(time.Now().Add(-2*time.Hour)), source, 5*time.Second)

	wg := sync.WaitGroup{}
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := converter.RefreshIfStale(context.Background(), time.Hour)
			assert.NoError(t, err)
		}()
	}
	// readers never block or observe a partial table while the fetch is in flight
	for range 100 {
		assert.True(t, decimal.RequireFromString("12").Equal(converter.ToDisplay(decimal.NewFromInt(1000), "USD")))
	}
	time.Sleep(50 * time.Millisecond)
	close(source.release)
	wg.Wait()

	assert.Equal(t, int32(1), source.calls.Load())
	assert.False(t, converter.Snapshot().IsStale(time.Now(), time.Hour))
}

func TestRunStopsWithContext(t *testing.T) {
	source := &stubSource{snapshot: seedSnapshot(time.Now())}
	converter := NewConverter(seedSnapshot(time.Now().Add(-2*time.Hour)), source, time.Second)

	c, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		converter.Run(c, 10*time.Millisecond, time.Hour)
		close(done)
	}()

	assert.Eventually(t, func() bool { return source.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		contains []string
	}{
		{name: "given usd should group thousands and keep two decimals", amount: "1234.5", currency: "USD", contains: []string{"$", "1,234.50"}},
		{name: "given inr should use rupee symbol", amount: "50", currency: "INR", contains: []string{"₹", "50.00"}},
		{name: "given unknown currency should prefix code", amount: "7", currency: "xyz", contains: []string{"XYZ", "7.00"}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := Format(decimal.RequireFromString(test.amount), test.currency)
			for _, s := range test.contains {
				assert.Contains(t, got, s)
			}
		})
	}

	converter := NewConverter(seedSnapshot(time.Now()), &stubSource{}, time.Second)
	assert.Contains(t, converter.Format(decimal.NewFromInt(100000), "USD"), "1,200.00")
}
