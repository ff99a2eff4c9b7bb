package core

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	memorystore "github.com/PaulFidika/dialogkit/storage/memory"
	"github.com/stretchr/testify/require"
)

const testEmail = "testuser@testuser.com"

type fakeRecorder struct {
	mu     sync.Mutex
	emails []string
	err    error
}

func (f *fakeRecorder) RecordUsedAddressAsPrimary(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emails = append(f.emails, email)
	return f.err
}

func (f *fakeRecorder) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.emails...)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("store down")
}
func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("store down")
}
func (failingStore) Del(context.Context, string) error { return errors.New("store down") }

type recordingPublisher struct {
	names []EventName
}

func (p *recordingPublisher) Publish(_ context.Context, name EventName, _ any) error {
	p.names = append(p.names, name)
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeRecorder) {
	t.Helper()
	svc, err := NewService(Config{})
	require.NoError(t, err)
	rec := &fakeRecorder{}
	svc.WithEphemeralStore(memorystore.NewKV(), EphemeralMemory).WithPrimaryAddressRecorder(rec)
	return svc, rec
}

func boolPtr(b bool) *bool { return &b }

func TestGet_SuccessEmitsStartOnly(t *testing.T) {
	svc, _ := newTestService(t)
	d := svc.Open("#1234", Session{})
	require.NotEmpty(t, d.SessionID())
	require.Equal(t, MarkerChannel, d.Marker())

	out, err := d.Get(context.Background(), httpsOrigin, Params{
		"termsOfService":  "/tos.html",
		"privacyPolicy":   "/privacy.html",
		"backgroundColor": "#123",
	})
	require.NoError(t, err)
	require.Len(t, out.Events, 1)

	info, ok := out.Start()
	require.True(t, ok)
	require.Equal(t, StartInfo{
		TermsOfService:  httpsOrigin + "/tos.html",
		PrivacyPolicy:   httpsOrigin + "/privacy.html",
		BackgroundColor: "112233",
	}, info)
	_, failed := out.ErrorScreen()
	require.False(t, failed)
	require.NoError(t, out.Err())
}

func TestGet_FailureEmitsErrorScreenOnly(t *testing.T) {
	svc, _ := newTestService(t)
	d := svc.Open("", Session{})

	out, err := d.Get(context.Background(), httpsOrigin, Params{
		"rp_api":         "get",
		"start_time":     "123",
		"returnTo":       "/path",
		"termsOfService": "relative.html",
	})
	require.EqualError(t, err, "relative urls not allowed: (relative.html)")
	require.Len(t, out.Events, 1)

	screen, ok := out.ErrorScreen()
	require.True(t, ok)
	require.Equal(t, ErrorScreen{Field: ParamTermsOfService, Message: err.Error()}, screen)
	require.Equal(t, err, out.Err())
	_, started := out.Start()
	require.False(t, started)
	_, hasKPI := out.KPI()
	require.False(t, hasKPI)

	_, found, err := d.ReturnTo(context.Background())
	require.NoError(t, err)
	require.False(t, found)
}

func TestGet_KPIAndStartTimeBeforeStart(t *testing.T) {
	svc, _ := newTestService(t)
	d := svc.Open("", Session{})

	now := time.Now().UnixMilli()
	out, err := d.Get(context.Background(), httpsOrigin, Params{
		"rp_api":     "get",
		"start_time": strconv.FormatInt(now, 10),
	})
	require.NoError(t, err)

	pub := &recordingPublisher{}
	require.NoError(t, out.Dispatch(context.Background(), pub))
	require.Equal(t, []EventName{EventKPIData, EventStartTime, EventStart}, pub.names)

	kpi, ok := out.KPI()
	require.True(t, ok)
	require.Equal(t, KPIData{RPAPI: "get", Orphaned: true}, kpi)

	ms, ok := out.StartTime()
	require.True(t, ok)
	require.Equal(t, now, ms)
}

func TestGet_ReturnToPersisted(t *testing.T) {
	svc, _ := newTestService(t)
	for path, want := range map[string]string{"/path": httpsOrigin + "/path", "/": httpsOrigin + "/"} {
		d := svc.Open("", Session{})
		out, err := d.Get(context.Background(), httpsOrigin, Params{"returnTo": path})
		require.NoError(t, err)

		info, ok := out.Start()
		require.True(t, ok)
		require.Equal(t, StartInfo{}, info)

		got, found, err := d.ReturnTo(context.Background())
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, want, got)
	}
}

func TestGet_ReturnToStoreFailureDoesNotFail(t *testing.T) {
	svc, err := NewService(Config{})
	require.NoError(t, err)
	svc.WithEphemeralStore(failingStore{}, EphemeralMemory)

	out, err := svc.Open("", Session{}).Get(context.Background(), httpsOrigin, Params{"returnTo": "/path"})
	require.NoError(t, err)
	_, ok := out.Start()
	require.True(t, ok)
}

func TestResume_Cancelled(t *testing.T) {
	svc, rec := newTestService(t)
	first := svc.Open("", Session{ID: "sess-1"})
	require.NoError(t, first.SaveIdPVerification(context.Background(), IdPVerification{Email: testEmail}))

	d := svc.Open("#AUTH_RETURN_CANCEL", Session{ID: "sess-1"})
	out, err := d.Get(context.Background(), httpsOrigin, Params{"termsOfService": "ignored.html"})
	require.NoError(t, err)

	info, ok := out.Start()
	require.True(t, ok)
	require.Equal(t, "primary", info.Type)
	require.Equal(t, testEmail, info.Email)
	require.Equal(t, boolPtr(true), info.Cancelled)

	require.Never(t, func() bool { return len(rec.calls()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestResume_CancelledAuthenticatedRecordsUsedAddress(t *testing.T) {
	svc, rec := newTestService(t)
	require.NoError(t, svc.Open("", Session{ID: "s"}).SaveIdPVerification(context.Background(), IdPVerification{Email: "a@b.c"}))

	d := svc.Open("#AUTH_RETURN_CANCEL", Session{ID: "s", Authenticated: true, AuthLevel: AuthLevelAssertion})
	out, err := d.Get(context.Background(), httpsOrigin, nil)
	require.NoError(t, err)
	info, ok := out.Start()
	require.True(t, ok)
	require.Equal(t, boolPtr(true), info.Cancelled)

	require.Eventually(t, func() bool {
		calls := rec.calls()
		return len(calls) == 1 && calls[0] == "a@b.c"
	}, time.Second, 5*time.Millisecond)
}

func TestResume_ReturnWithAddFlag(t *testing.T) {
	for _, add := range []bool{false, true} {
		svc, _ := newTestService(t)
		require.NoError(t, svc.Open("", Session{ID: "s"}).SaveIdPVerification(context.Background(), IdPVerification{Email: testEmail, Add: add}))

		out, err := svc.Open("#AUTH_RETURN", Session{ID: "s"}).Get(context.Background(), httpsOrigin, Params{})
		require.NoError(t, err)

		info, ok := out.Start()
		require.True(t, ok)
		require.Equal(t, StartInfo{
			Type:      "primary",
			Email:     testEmail,
			Add:       boolPtr(add),
			Cancelled: boolPtr(false),
		}, info)
	}
}

func TestResume_AuthenticatedRecordsUsedAddress(t *testing.T) {
	svc, rec := newTestService(t)
	rec.err = errors.New("network down")
	require.NoError(t, svc.Open("", Session{ID: "s"}).SaveIdPVerification(context.Background(), IdPVerification{Email: testEmail}))

	d := svc.Open("#AUTH_RETURN", Session{ID: "s", Authenticated: true, AuthLevel: AuthLevelAssertion})
	out, err := d.Get(context.Background(), httpsOrigin, nil)
	require.NoError(t, err)
	_, ok := out.Start()
	require.True(t, ok)

	require.Eventually(t, func() bool {
		calls := rec.calls()
		return len(calls) == 1 && calls[0] == testEmail
	}, time.Second, 5*time.Millisecond)
}

func TestResume_AddSkipsUsedAddress(t *testing.T) {
	svc, rec := newTestService(t)
	require.NoError(t, svc.Open("", Session{ID: "s"}).SaveIdPVerification(context.Background(), IdPVerification{Email: testEmail, Add: true}))

	d := svc.Open("#AUTH_RETURN", Session{ID: "s", Authenticated: true, AuthLevel: AuthLevelAssertion})
	_, err := d.Get(context.Background(), httpsOrigin, nil)
	require.NoError(t, err)

	require.Never(t, func() bool { return len(rec.calls()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestResume_PasswordLevelSkipsUsedAddress(t *testing.T) {
	svc, rec := newTestService(t)
	require.NoError(t, svc.Open("", Session{ID: "s"}).SaveIdPVerification(context.Background(), IdPVerification{Email: testEmail}))

	d := svc.Open("#AUTH_RETURN", Session{ID: "s", Authenticated: true, AuthLevel: "password"})
	_, err := d.Get(context.Background(), httpsOrigin, nil)
	require.NoError(t, err)

	require.Never(t, func() bool { return len(rec.calls()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestResume_NoRecorderRegistered(t *testing.T) {
	svc, err := NewService(Config{})
	require.NoError(t, err)
	svc.WithEphemeralStore(memorystore.NewKV(), EphemeralMemory)
	require.False(t, svc.HasPrimaryAddressRecorder())
	require.NoError(t, svc.Open("", Session{ID: "s"}).SaveIdPVerification(context.Background(), IdPVerification{Email: testEmail}))

	out, err := svc.Open("#AUTH_RETURN", Session{ID: "s", Authenticated: true, AuthLevel: AuthLevelAssertion}).Get(context.Background(), httpsOrigin, nil)
	require.NoError(t, err)
	info, ok := out.Start()
	require.True(t, ok)
	require.Equal(t, testEmail, info.Email)
}

func TestResume_StoreFailureStillStarts(t *testing.T) {
	svc, err := NewService(Config{})
	require.NoError(t, err)
	svc.WithEphemeralStore(failingStore{}, EphemeralMemory)

	out, err := svc.Open("#AUTH_RETURN", Session{}).Get(context.Background(), httpsOrigin, nil)
	require.NoError(t, err)
	info, ok := out.Start()
	require.True(t, ok)
	require.Equal(t, "primary", info.Type)
	require.Empty(t, info.Email)
}

func TestNativeAndInternalFragmentsBehaveFresh(t *testing.T) {
	svc, _ := newTestService(t)
	for _, frag := range []string{"#NATIVE", "#INTERNAL"} {
		out, err := svc.Open(frag, Session{}).Get(context.Background(), httpsOrigin, Params{"experimental_forceAuthentication": true})
		require.NoError(t, err)
		info, ok := out.Start()
		require.True(t, ok)
		require.True(t, info.ForceAuthentication)
	}
}

func TestSaveIdPVerification_RequiresEmail(t *testing.T) {
	svc, _ := newTestService(t)
	require.Error(t, svc.Open("", Session{}).SaveIdPVerification(context.Background(), IdPVerification{}))
}

func TestNewService_RejectsBadConfig(t *testing.T) {
	_, err := NewService(Config{PathMaxLength: 4096, URLMaxLength: 100})
	require.Error(t, err)
}
