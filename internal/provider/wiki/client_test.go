package wiki_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"osrsprices/internal/provider/ratelimit"
	"osrsprices/internal/provider/wiki"
)

// recordingSleeper records requested backoff delays without waiting.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func jsonResponse(t *testing.T, status int, v any) *http.Response {
	t.Helper()

	buffer := &bytes.Buffer{}
	require.NoError(t, json.NewEncoder(buffer).Encode(v))
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(buffer),
	}
}

func rawResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func quietLogger() logrus.FieldLogger {
	log, _ := logtest.NewNullLogger()
	return log
}

// newTestClient builds a client with its own fast gate and a sleeper that
// never waits, so tests neither share the process gate nor sleep for real.
func newTestClient(t *testing.T, httpClient wiki.HTTPClient, opts ...wiki.ClientOption) (*wiki.Client, *recordingSleeper) {
	t.Helper()

	sleeper := &recordingSleeper{}
	base := []wiki.ClientOption{
		wiki.WithHTTPClient(httpClient),
		wiki.WithGate(ratelimit.NewGate(1000)),
		wiki.WithSleeper(sleeper.Sleep),
		wiki.WithLogger(quietLogger()),
	}
	client, err := wiki.NewClient(append(base, opts...)...)
	require.NoError(t, err)
	require.NotNil(t, client)
	return client, sleeper
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	// Assert: defaults produce a usable client.
	client, err := wiki.NewClient()
	require.NoErrorf(t, err, "unexpected error: %v", err)
	require.NotNilf(t, client, "unexpected nil client")
}

func TestNewClient_RejectsRelativeBaseURL(t *testing.T) {
	t.Parallel()

	client, err := wiki.NewClient(wiki.WithBaseURL("prices.runescape.wiki/api"))
	require.Error(t, err)
	require.Nil(t, client)

	client, err = wiki.NewClient(wiki.WithBaseURL(string([]rune{0x7f})))
	require.Error(t, err)
	require.Nil(t, client)
}

func TestWithBaseURL(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock http client
	httpClient := NewMockHTTPClient(ctrl)

	// Arrange: define a base url
	baseURL := "http://localhost:8080/api/v1/osrs"

	// Assert: stub the Do method
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, baseURL+"/latest", req.URL.String())
			require.Equal(t, http.MethodGet, req.Method)
			return jsonResponse(t, http.StatusOK, map[string]any{"data": map[string]any{}}), nil
		}).
		Times(1)

	// Arrange: create a new client, with a trailing slash to trim.
	client, _ := newTestClient(t, httpClient, wiki.WithBaseURL(baseURL+"/"))

	// Act: call GetLatest against the overridden base URL.
	client.GetLatest(t.Context())
}

func TestDefaultUserAgent(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, wiki.DefaultUserAgent, req.Header.Get("User-Agent"))
			require.Equal(t, "application/json", req.Header.Get("Accept"))
			return jsonResponse(t, http.StatusOK, map[string]any{"data": map[string]any{}}), nil
		}).
		Times(1)

	client, _ := newTestClient(t, httpClient)
	client.GetLatest(t.Context())
}

func TestWithUserAgent(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock http client
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: the configured agent is sent, not the default
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "TEST-AGENT", req.Header.Get("User-Agent"))
			return jsonResponse(t, http.StatusOK, map[string]any{"data": map[string]any{}}), nil
		}).
		Times(1)

	// Arrange: create a new client with a custom agent.
	client, _ := newTestClient(t, httpClient, wiki.WithUserAgent("TEST-AGENT"))

	// Act
	client.GetLatest(t.Context())
}

func TestWithUserAgent_EmptyKeepsDefault(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, wiki.DefaultUserAgent, req.Header.Get("User-Agent"))
			return jsonResponse(t, http.StatusOK, map[string]any{"data": map[string]any{}}), nil
		}).
		Times(1)

	client, _ := newTestClient(t, httpClient, wiki.WithUserAgent(""))
	client.GetLatest(t.Context())
}

func TestWithHeader(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock http client
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: stub the Do method
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "bar", req.Header.Get("foo"))
			return jsonResponse(t, http.StatusOK, []any{}), nil
		}).
		Times(1)

	// Arrange: create a new client with a custom header.
	client, _ := newTestClient(t, httpClient, wiki.WithHeader(http.Header{
		"foo": []string{"bar"},
	}))

	// Act: call GetMapping with the custom header.
	client.GetMapping(t.Context())
}
