package subscription

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"subgate-bot/config"
	"subgate-bot/model"
	"subgate-bot/store"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const day = 24 * time.Hour

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeTransport records every outbound call so tests can assert on them.
type fakeTransport struct {
	mu        sync.Mutex
	texts     map[int64][]string
	invites   []time.Time
	removed   []int64
	restored  []int64
	inviteErr error
	removeErr error
	sendErr   error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{texts: make(map[int64][]string)}
}

func (f *fakeTransport) SendText(userID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.texts[userID] = append(f.texts[userID], text)
	return nil
}

func (f *fakeTransport) CreateInvite(expireAt time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inviteErr != nil {
		return "", f.inviteErr
	}
	f.invites = append(f.invites, expireAt)
	return fmt.Sprintf("https://t.me/+invite%d", len(f.invites)), nil
}

func (f *fakeTransport) RemoveMember(userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removed = append(f.removed, userID)
	return nil
}

func (f *fakeTransport) RestoreMember(userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restored = append(f.restored, userID)
	return nil
}

func newTestService(t *testing.T) (*Service, store.Ledger, *fakeTransport) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}))

	tr := newFakeTransport()
	svc := New(store.New(db), tr, &config.Config{
		AdminID:        500,
		BaseDays:       30,
		ReferralDays:   5,
		InviteTTL:      24 * time.Hour,
		FallbackInvite: "https://t.me/+fallback",
	})
	svc.now = func() time.Time { return testNow }
	return svc, svc.ledger, tr
}

func setExpiry(t *testing.T, ledger store.Ledger, userID int64, at time.Time) {
	t.Helper()
	require.NoError(t, ledger.Update(userID, func(u *model.User) error {
		u.ExpiresAt = &at
		return nil
	}))
}

// --- Grant ---

func TestGrantFreshUser(t *testing.T) {
	svc, ledger, _ := newTestService(t)

	expires, err := svc.Grant(1)
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(30*day), expires)

	u, err := ledger.Get(1)
	require.NoError(t, err)
	require.NotNil(t, u.ExpiresAt)
	assert.Equal(t, testNow.Add(30*day).Unix(), u.ExpiresAt.Unix())
	assert.Equal(t, 0, u.BonusDays)
	assert.Equal(t, 1, u.TotalPaidCycles)
}

func TestGrantStacksOnActiveSubscription(t *testing.T) {
	svc, ledger, _ := newTestService(t)

	current := testNow.Add(10 * day)
	require.NoError(t, ledger.Update(1, func(u *model.User) error {
		u.ExpiresAt = &current
		u.BonusDays = 4
		u.TotalPaidCycles = 2
		return nil
	}))

	expires, err := svc.Grant(1)
	require.NoError(t, err)
	assert.Equal(t, current.Add(34*day), expires)

	u, err := ledger.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 0, u.BonusDays, "bonus days are consumed by the grant")
	assert.Equal(t, 3, u.TotalPaidCycles)
}

func TestGrantResetsFromNowAfterExpiry(t *testing.T) {
	svc, ledger, _ := newTestService(t)

	setExpiry(t, ledger, 1, testNow.Add(-3*day))

	expires, err := svc.Grant(1)
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(30*day), expires)
}

// --- Referrals ---

func TestLinkReferralNotifiesReferrer(t *testing.T) {
	svc, ledger, tr := newTestService(t)

	linked, err := svc.LinkReferral(2, 1)
	require.NoError(t, err)
	assert.True(t, linked)

	u, err := ledger.Get(2)
	require.NoError(t, err)
	require.NotNil(t, u.ReferredBy)
	assert.EqualValues(t, 1, *u.ReferredBy)
	assert.Len(t, tr.texts[1], 1)
}

func TestLinkReferralIgnoresSelf(t *testing.T) {
	svc, ledger, tr := newTestService(t)

	linked, err := svc.LinkReferral(1, 1)
	require.NoError(t, err)
	assert.False(t, linked)

	u, err := ledger.Get(1)
	require.NoError(t, err)
	assert.Nil(t, u.ReferredBy)
	assert.Empty(t, tr.texts)
}

func TestLinkReferralIsWriteOnce(t *testing.T) {
	svc, ledger, _ := newTestService(t)

	_, err := svc.LinkReferral(2, 1)
	require.NoError(t, err)

	linked, err := svc.LinkReferral(2, 3)
	require.NoError(t, err)
	assert.False(t, linked)

	u, err := ledger.Get(2)
	require.NoError(t, err)
	require.NotNil(t, u.ReferredBy)
	assert.EqualValues(t, 1, *u.ReferredBy)
}

func TestCreditFirstPaymentFiresOnce(t *testing.T) {
	svc, ledger, tr := newTestService(t)

	_, err := svc.LinkReferral(2, 1)
	require.NoError(t, err)
	signupNotes := len(tr.texts[1])

	require.NoError(t, svc.CreditFirstPayment(2))
	require.NoError(t, svc.CreditFirstPayment(2))

	referrer, err := ledger.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 1, referrer.ReferralsCount)
	require.NotNil(t, referrer.ExpiresAt)
	assert.Equal(t, testNow.Add(5*day).Unix(), referrer.ExpiresAt.Unix())

	referee, err := ledger.Get(2)
	require.NoError(t, err)
	assert.True(t, referee.FirstPaymentDone)

	assert.Len(t, tr.texts[1], signupNotes+1, "exactly one credit notification")
}

func TestCreditFirstPaymentStacksOnActiveReferrer(t *testing.T) {
	svc, ledger, _ := newTestService(t)

	current := testNow.Add(7 * day)
	setExpiry(t, ledger, 1, current)
	_, err := svc.LinkReferral(2, 1)
	require.NoError(t, err)

	require.NoError(t, svc.CreditFirstPayment(2))

	referrer, err := ledger.Get(1)
	require.NoError(t, err)
	assert.Equal(t, current.Add(5*day).Unix(), referrer.ExpiresAt.Unix())
}

func TestCreditFirstPaymentWithoutReferrer(t *testing.T) {
	svc, ledger, tr := newTestService(t)

	require.NoError(t, svc.CreditFirstPayment(2))

	u, err := ledger.Get(2)
	require.NoError(t, err)
	assert.True(t, u.FirstPaymentDone)
	assert.Empty(t, tr.texts)
}

// --- Sweep ---

func TestSweepRevokesLapsedAndIsIdempotent(t *testing.T) {
	svc, ledger, tr := newTestService(t)

	setExpiry(t, ledger, 1, testNow.Add(-time.Hour))
	setExpiry(t, ledger, 2, testNow.Add(time.Hour)) // still active

	svc.Sweep()

	assert.Equal(t, []int64{1}, tr.removed)
	assert.Equal(t, []int64{1}, tr.restored)
	assert.Len(t, tr.texts[1], 1)
	assert.Empty(t, tr.texts[2])

	u, err := ledger.Get(1)
	require.NoError(t, err)
	assert.Nil(t, u.ExpiresAt)

	active, err := ledger.Get(2)
	require.NoError(t, err)
	require.NotNil(t, active.ExpiresAt)

	// Second run with nothing newly lapsed must be a no-op.
	svc.Sweep()
	assert.Equal(t, []int64{1}, tr.removed)
	assert.Len(t, tr.texts[1], 1)
}

func TestSweepIsolatesPerUserFailures(t *testing.T) {
	svc, ledger, tr := newTestService(t)

	setExpiry(t, ledger, 1, testNow.Add(-time.Hour))
	setExpiry(t, ledger, 2, testNow.Add(-time.Hour))
	tr.removeErr = errors.New("member gone")

	svc.Sweep()

	// Revocation failed for both, but both records were still cleared.
	for _, id := range []int64{1, 2} {
		u, err := ledger.Get(id)
		require.NoError(t, err)
		assert.Nil(t, u.ExpiresAt, "user %d", id)
	}
}

// --- Invite issuance ---

func TestInviteCappedByTTL(t *testing.T) {
	svc, _, tr := newTestService(t)

	link := svc.issueInvite(testNow.Add(48 * time.Hour))
	assert.Equal(t, "https://t.me/+invite1", link)
	require.Len(t, tr.invites, 1)
	assert.Equal(t, testNow.Add(24*time.Hour), tr.invites[0])
}

func TestInviteCappedBySubscriptionEnd(t *testing.T) {
	svc, _, tr := newTestService(t)

	svc.issueInvite(testNow.Add(6 * time.Hour))
	require.Len(t, tr.invites, 1)
	assert.Equal(t, testNow.Add(6*time.Hour), tr.invites[0])
}

func TestInviteFallsBackToStaticLink(t *testing.T) {
	svc, _, tr := newTestService(t)
	tr.inviteErr = errors.New("bot is not admin")

	link := svc.issueInvite(testNow.Add(48 * time.Hour))
	assert.Equal(t, "https://t.me/+fallback", link)
}
