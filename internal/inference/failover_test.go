package inference

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bhardwajharsh207/imageforge/backend/internal/config"
)

// keyedUpstream responds per credential, for exercising the backup cycle.
type keyedUpstream struct {
	mu       sync.Mutex
	byKey    map[string]step
	keysSeen []string
}

func (u *keyedUpstream) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		defer u.mu.Unlock()

		key := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		u.keysSeen = append(u.keysSeen, key)

		st, ok := u.byKey[key]
		if !ok {
			st = step{status: http.StatusUnauthorized, body: `{"error":"invalid token"}`}
		}
		w.WriteHeader(st.status)
		if st.status == http.StatusOK && st.body == "" {
			w.Write(imageBytes)
			return
		}
		io.WriteString(w, st.body)
	}
}

func newFailoverClient(t *testing.T, url string) *Client {
	t.Helper()

	c := New(config.InferenceConfig{
		APIKey:       "primary-key",
		BackupAPIKey: "backup-key",
		BaseURL:      url,
		MaxRetries:   3,
		RetryDelay:   2 * time.Second,
	}, log.New(io.Discard, "", 0))
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func countKeys(keys []string) map[string]int {
	counts := make(map[string]int)
	for _, k := range keys {
		counts[k]++
	}
	return counts
}

func TestGenerateBackupSucceedsAfterPrimaryFailure(t *testing.T) {
	up := &keyedUpstream{byKey: map[string]step{
		"primary-key": {500, "primary credential is broken"},
		"backup-key":  {200, ""},
	}}
	srv := httptest.NewServer(up.handler())
	defer srv.Close()

	c := newFailoverClient(t, srv.URL)
	img, err := c.Generate(context.Background(), testParams())

	require.NoError(t, err)
	assert.Equal(t, imageBytes, img)

	counts := countKeys(up.keysSeen)
	assert.Equal(t, 4, counts["primary-key"], "primary gets one full retry cycle")
	assert.Equal(t, 1, counts["backup-key"])
}

func TestGenerateBackupFailureSurfacesPrimaryError(t *testing.T) {
	up := &keyedUpstream{byKey: map[string]step{
		"primary-key": {500, "primary credential is broken"},
		"backup-key":  {502, "backup is also broken"},
	}}
	srv := httptest.NewServer(up.handler())
	defer srv.Close()

	c := newFailoverClient(t, srv.URL)
	_, err := c.Generate(context.Background(), testParams())

	var ierr *Error
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, 500, ierr.StatusCode, "the primary's failure is the one surfaced")
	assert.Contains(t, string(ierr.Body), "primary credential is broken")

	counts := countKeys(up.keysSeen)
	assert.Equal(t, 4, counts["primary-key"])
	assert.Equal(t, 4, counts["backup-key"], "exactly one full retry cycle on the backup")
}

func TestGenerateNoFailoverWhileModelLoads(t *testing.T) {
	up := &keyedUpstream{byKey: map[string]step{
		"primary-key": {503, `{"error":"Model is currently loading","estimated_time":20.0}`},
		"backup-key":  {200, ""},
	}}
	srv := httptest.NewServer(up.handler())
	defer srv.Close()

	c := newFailoverClient(t, srv.URL)
	_, err := c.Generate(context.Background(), testParams())

	var ierr *Error
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, KindModelLoading, ierr.Kind, "a warming model affects every credential equally")

	counts := countKeys(up.keysSeen)
	assert.Equal(t, 4, counts["primary-key"])
	assert.Zero(t, counts["backup-key"])
}

func TestGenerateNoFailoverWithoutBackupKey(t *testing.T) {
	up := &keyedUpstream{byKey: map[string]step{
		"primary-key": {500, "boom"},
	}}
	srv := httptest.NewServer(up.handler())
	defer srv.Close()

	c := newFailoverClient(t, srv.URL)
	c.backupAPIKey = ""

	_, err := c.Generate(context.Background(), testParams())
	var ierr *Error
	require.ErrorAs(t, err, &ierr)
	assert.Len(t, up.keysSeen, 4)
}
