package otp_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gomate-auth/internal/clock"
	"gomate-auth/internal/otp"
)

const recipient = "a@example.com"

var profile = otp.Profile{FirstName: "Ada", LastName: "Lovelace"}

// scripted hands out the given codes in order and then repeats the last one.
func scripted(codes ...string) otp.Generator {
	var i int
	var mu sync.Mutex
	return otp.GeneratorFunc(func(int) string {
		mu.Lock()
		defer mu.Unlock()
		c := codes[min(i, len(codes)-1)]
		i++
		return c
	})
}

type recordingNotifier struct {
	mu         sync.Mutex
	deliveries []otp.Delivery
	err        error
}

func (n *recordingNotifier) Send(_ context.Context, d otp.Delivery) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deliveries = append(n.deliveries, d)
	return n.err
}

type recordingSink struct {
	mu     sync.Mutex
	events []otp.Event
}

func (s *recordingSink) Record(_ context.Context, e otp.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) types() []otp.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]otp.EventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	ledger   *otp.Ledger
	clock    *clock.Manual
	notifier *recordingNotifier
	sink     *recordingSink
	store    *otp.MemoryStore
}

func newFixture(t *testing.T, gen otp.Generator, opts ...otp.Option) *fixture {
	t.Helper()
	f := &fixture{
		clock:    clock.NewManual(time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)),
		notifier: &recordingNotifier{},
		sink:     &recordingSink{},
		store:    otp.NewMemoryStore(4),
	}
	base := []otp.Option{
		otp.WithClock(f.clock),
		otp.WithGenerator(gen),
		otp.WithEventSink(f.sink),
		otp.WithExposeCode(true),
	}
	f.ledger = otp.NewLedger(f.store, f.notifier, append(base, opts...)...)
	return f
}

func TestLedger_ExampleScenario(t *testing.T) {
	f := newFixture(t, scripted("123456"))
	ctx := context.Background()

	issued := f.ledger.Issue(ctx, recipient, profile)
	require.True(t, issued.Success)
	assert.Equal(t, "123456", issued.Code)
	assert.Equal(t, "OTP sent successfully to a@example.com", issued.Message)

	res := f.ledger.Verify(ctx, recipient, "000000")
	assert.False(t, res.Success)
	assert.True(t, res.Is(otp.ErrMismatch))
	assert.Contains(t, res.Message, "2 attempts remaining")

	res = f.ledger.Verify(ctx, recipient, "123456")
	assert.True(t, res.Success)
	assert.Equal(t, "Email verified successfully!", res.Message)

	res = f.ledger.Verify(ctx, recipient, "123456")
	assert.False(t, res.Success)
	assert.True(t, res.Is(otp.ErrNotFound))
	assert.Equal(t, "No OTP found. Please request a new code.", res.Message)
}

func TestLedger_IssueDeliversCode(t *testing.T) {
	f := newFixture(t, scripted("654321"))

	res := f.ledger.Issue(context.Background(), recipient, profile)
	require.True(t, res.Success)

	require.Len(t, f.notifier.deliveries, 1)
	d := f.notifier.deliveries[0]
	assert.Equal(t, recipient, d.Recipient)
	assert.Equal(t, "654321", d.Code)
	assert.Equal(t, profile, d.Profile)
	assert.Equal(t, f.clock.Now().Add(5*time.Minute), d.ExpiresAt)
	assert.Equal(t, 5*time.Minute, d.TTL)
}

func TestLedger_IssueHidesCodeUnlessExposed(t *testing.T) {
	f := newFixture(t, scripted("111111"), otp.WithExposeCode(false))

	res := f.ledger.Issue(context.Background(), recipient, profile)
	require.True(t, res.Success)
	assert.Empty(t, res.Code)
}

func TestLedger_IssueRequiresRecipient(t *testing.T) {
	f := newFixture(t, scripted("111111"))

	res := f.ledger.Issue(context.Background(), "", profile)
	assert.False(t, res.Success)
	assert.True(t, res.Is(otp.ErrInvalidRecipient))
	assert.Empty(t, f.notifier.deliveries)
}

func TestLedger_SecondIssueReplacesFirst(t *testing.T) {
	f := newFixture(t, scripted("111111", "222222"))
	ctx := context.Background()

	first := f.ledger.Issue(ctx, recipient, profile)
	second := f.ledger.Issue(ctx, recipient, profile)
	require.True(t, first.Success)
	require.True(t, second.Success)

	res := f.ledger.Verify(ctx, recipient, first.Code)
	assert.False(t, res.Success)
	assert.True(t, res.Is(otp.ErrMismatch) || res.Is(otp.ErrNotFound))

	res = f.ledger.Verify(ctx, recipient, second.Code)
	assert.True(t, res.Success)
	assert.Equal(t, 0, f.store.Len())
}

func TestLedger_IssueResetsAttempts(t *testing.T) {
	f := newFixture(t, scripted("111111", "222222"))
	ctx := context.Background()

	f.ledger.Issue(ctx, recipient, profile)
	f.ledger.Verify(ctx, recipient, "000000")
	f.ledger.Verify(ctx, recipient, "000000")
	assert.Equal(t, 1, f.ledger.RemainingAttempts(ctx, recipient))

	f.ledger.Issue(ctx, recipient, profile)
	assert.Equal(t, 3, f.ledger.RemainingAttempts(ctx, recipient))
}

func TestLedger_ExpiryEnforced(t *testing.T) {
	testCases := []struct {
		name    string
		advance time.Duration
	}{
		{"exactly at expiry", 5 * time.Minute},
		{"after expiry", 5*time.Minute + time.Second},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, scripted("123456"))
			ctx := context.Background()

			f.ledger.Issue(ctx, recipient, profile)
			f.clock.Advance(tc.advance)

			res := f.ledger.Verify(ctx, recipient, "123456")
			assert.False(t, res.Success)
			assert.True(t, res.Is(otp.ErrExpired))
			assert.Equal(t, "OTP has expired. Please request a new code.", res.Message)

			res = f.ledger.Verify(ctx, recipient, "123456")
			assert.True(t, res.Is(otp.ErrNotFound), "expired record is deleted on detection")
		})
	}
}

func TestLedger_VerifyJustBeforeExpiry(t *testing.T) {
	f := newFixture(t, scripted("123456"))
	ctx := context.Background()

	f.ledger.Issue(ctx, recipient, profile)
	f.clock.Advance(5*time.Minute - time.Millisecond)

	assert.True(t, f.ledger.Verify(ctx, recipient, "123456").Success)
}

func TestLedger_AttemptCap(t *testing.T) {
	f := newFixture(t, scripted("123456"))
	ctx := context.Background()
	f.ledger.Issue(ctx, recipient, profile)

	res := f.ledger.Verify(ctx, recipient, "000001")
	assert.True(t, res.Is(otp.ErrMismatch))
	assert.Equal(t, "Incorrect code. 2 attempts remaining.", res.Message)

	res = f.ledger.Verify(ctx, recipient, "000002")
	assert.True(t, res.Is(otp.ErrMismatch))
	assert.Equal(t, "Incorrect code. 1 attempt remaining.", res.Message)

	res = f.ledger.Verify(ctx, recipient, "000003")
	assert.False(t, res.Success)
	assert.True(t, res.Is(otp.ErrMismatch))
	assert.Equal(t, "Incorrect code. Maximum attempts reached.", res.Message)
	assert.Equal(t, 0, f.ledger.RemainingAttempts(ctx, recipient))
	assert.Equal(t, 1, f.store.Len(), "record survives until the next verify")

	res = f.ledger.Verify(ctx, recipient, "000004")
	assert.True(t, res.Is(otp.ErrAttemptsExhausted))
	assert.Equal(t, "Too many incorrect attempts. Please request a new code.", res.Message)

	res = f.ledger.Verify(ctx, recipient, "123456")
	assert.False(t, res.Success, "correct code no longer works after the cap")
}

func TestLedger_CorrectCodeRejectedOnceCapReached(t *testing.T) {
	f := newFixture(t, scripted("123456"))
	ctx := context.Background()
	f.ledger.Issue(ctx, recipient, profile)

	for i := 0; i < 3; i++ {
		f.ledger.Verify(ctx, recipient, "999999")
	}

	res := f.ledger.Verify(ctx, recipient, "123456")
	assert.True(t, res.Is(otp.ErrAttemptsExhausted))
	assert.Equal(t, 0, f.store.Len())
}

func TestLedger_CustomMaxAttempts(t *testing.T) {
	f := newFixture(t, scripted("123456"), otp.WithMaxAttempts(5))
	ctx := context.Background()
	f.ledger.Issue(ctx, recipient, profile)

	res := f.ledger.Verify(ctx, recipient, "000000")
	assert.Equal(t, "Incorrect code. 4 attempts remaining.", res.Message)
	assert.Equal(t, 5, f.ledger.MaxAttempts())
}

func TestLedger_ResendInvalidatesPriorCode(t *testing.T) {
	f := newFixture(t, scripted("111111", "222222"))
	ctx := context.Background()

	a := f.ledger.Issue(ctx, recipient, profile)
	b := f.ledger.Resend(ctx, recipient, profile)
	require.True(t, b.Success)
	require.NotEqual(t, a.Code, b.Code)

	assert.False(t, f.ledger.Verify(ctx, recipient, a.Code).Success)
	assert.True(t, f.ledger.Verify(ctx, recipient, b.Code).Success)
	assert.Len(t, f.notifier.deliveries, 2)
}

func TestLedger_ResendWithoutPriorRecord(t *testing.T) {
	f := newFixture(t, scripted("333333"))

	res := f.ledger.Resend(context.Background(), recipient, profile)
	assert.True(t, res.Success)
	assert.Equal(t, "333333", res.Code)
}

func TestLedger_NotifierFailureKeepsRecord(t *testing.T) {
	f := newFixture(t, scripted("123456"))
	f.notifier.err = errors.New("smtp down")
	ctx := context.Background()

	res := f.ledger.Issue(ctx, recipient, profile)
	assert.False(t, res.Success)
	assert.True(t, res.Is(otp.ErrDelivery))
	assert.Equal(t, "Failed to send OTP. Please try again.", res.Message)
	assert.Empty(t, res.Code)

	assert.True(t, f.ledger.IsValid(ctx, recipient), "record is committed before delivery")
	assert.Contains(t, f.sink.types(), otp.EventDeliveryFailed)
}

func TestLedger_QueriesArePure(t *testing.T) {
	f := newFixture(t, scripted("123456"))
	ctx := context.Background()
	f.ledger.Issue(ctx, recipient, profile)
	f.ledger.Verify(ctx, recipient, "000000")
	f.clock.Advance(90*time.Second + 500*time.Millisecond)

	for i := 0; i < 10; i++ {
		assert.True(t, f.ledger.IsValid(ctx, recipient))
		assert.Equal(t, 209, f.ledger.RemainingSeconds(ctx, recipient))
		assert.Equal(t, 2, f.ledger.RemainingAttempts(ctx, recipient))
	}

	assert.Equal(t, otp.Status{Valid: true, RemainingSeconds: 209, RemainingAttempts: 2},
		f.ledger.Status(ctx, recipient))
	assert.Contains(t, f.ledger.Verify(ctx, recipient, "000000").Message, "1 attempt remaining")
}

func TestLedger_QueriesAfterExpiry(t *testing.T) {
	f := newFixture(t, scripted("123456"))
	ctx := context.Background()
	f.ledger.Issue(ctx, recipient, profile)
	f.clock.Advance(6 * time.Minute)

	assert.False(t, f.ledger.IsValid(ctx, recipient))
	assert.Equal(t, 0, f.ledger.RemainingSeconds(ctx, recipient))
	assert.Equal(t, 3, f.ledger.RemainingAttempts(ctx, recipient))
	assert.Equal(t, 1, f.store.Len(), "queries never delete")
}

func TestLedger_QueriesWithoutRecord(t *testing.T) {
	f := newFixture(t, scripted("123456"))
	ctx := context.Background()

	assert.False(t, f.ledger.IsValid(ctx, "nobody@example.com"))
	assert.Equal(t, 0, f.ledger.RemainingSeconds(ctx, "nobody@example.com"))
	assert.Equal(t, 0, f.ledger.RemainingAttempts(ctx, "nobody@example.com"))
}

func TestLedger_Invalidate(t *testing.T) {
	f := newFixture(t, scripted("123456"))
	ctx := context.Background()
	f.ledger.Issue(ctx, recipient, profile)

	require.NoError(t, f.ledger.Invalidate(ctx, recipient))

	assert.True(t, f.ledger.Verify(ctx, recipient, "123456").Is(otp.ErrNotFound))
	assert.Equal(t, []otp.EventType{otp.EventIssued, otp.EventInvalidated}, f.sink.types())

	require.NoError(t, f.ledger.Invalidate(ctx, recipient))
	require.NoError(t, f.ledger.Invalidate(ctx, "nobody@example.com"))
	assert.Len(t, f.sink.events, 2, "nothing removed, nothing recorded")
}

func TestLedger_EmitsEvents(t *testing.T) {
	f := newFixture(t, scripted("123456"))
	ctx := context.Background()

	f.ledger.Issue(ctx, recipient, profile)
	f.ledger.Verify(ctx, recipient, "000000")
	f.ledger.Verify(ctx, recipient, "123456")

	assert.Equal(t, []otp.EventType{otp.EventIssued, otp.EventMismatch, otp.EventVerified}, f.sink.types())
	assert.Equal(t, 2, f.sink.events[2].Attempts)
}

type failingStore struct {
	otp.Store
	err error
}

func (s failingStore) Get(context.Context, string) (*otp.Record, error) { return nil, s.err }
func (s failingStore) Put(context.Context, otp.Record) error           { return s.err }
func (s failingStore) Update(context.Context, string, otp.UpdateFunc) error {
	return s.err
}

func TestLedger_StoreFailuresBecomeResults(t *testing.T) {
	store := failingStore{err: errors.New("connection refused")}
	ledger := otp.NewLedger(store, &recordingNotifier{})
	ctx := context.Background()

	res := ledger.Issue(ctx, recipient, profile)
	assert.False(t, res.Success)
	assert.True(t, res.Is(otp.ErrStore))

	res = ledger.Verify(ctx, recipient, "123456")
	assert.False(t, res.Success)
	assert.True(t, res.Is(otp.ErrStore))
	assert.Equal(t, "Verification failed. Please try again.", res.Message)

	assert.Equal(t, otp.Status{}, ledger.Status(ctx, recipient))
	assert.ErrorIs(t, ledger.Invalidate(ctx, recipient), otp.ErrStore)
}

func TestLedger_ConcurrentVerifyNeverExceedsCap(t *testing.T) {
	f := newFixture(t, scripted("123456"))
	ctx := context.Background()
	f.ledger.Issue(ctx, recipient, profile)

	var mismatches, exhausted, notFound atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := f.ledger.Verify(ctx, recipient, "000000")
			switch {
			case res.Is(otp.ErrMismatch):
				mismatches.Add(1)
			case res.Is(otp.ErrAttemptsExhausted):
				exhausted.Add(1)
			case res.Is(otp.ErrNotFound):
				notFound.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), mismatches.Load())
	assert.Equal(t, int32(1), exhausted.Load())
	assert.Equal(t, int32(46), notFound.Load())
}

func TestLedger_ConcurrentCorrectVerifySucceedsOnce(t *testing.T) {
	f := newFixture(t, scripted("123456"))
	ctx := context.Background()
	f.ledger.Issue(ctx, recipient, profile)

	var successes atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.ledger.Verify(ctx, recipient, "123456").Success {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
}
