package wiki_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"osrsprices/internal/provider"
)

const latestPayload = `{"data":{
	"1":{"high":100,"highTime":1704067185,"low":90,"lowTime":1704067190},
	"3":{"high":300,"highTime":null,"low":null,"lowTime":1704067000}
}}`

func ptr[T any](v T) *T { return &v }

func TestGetLatest(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock HTTP client
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: stub the Do method
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "/api/v1/osrs/latest", req.URL.Path)
			require.Empty(t, req.URL.RawQuery)
			return rawResponse(http.StatusOK, latestPayload), nil
		}).
		Times(1)

	client, _ := newTestClient(t, httpClient)

	// Act
	snapshot := client.GetLatest(t.Context())

	// Assert: unfiltered, nulls preserved
	require.Equal(t, provider.Snapshot{
		"1": {High: ptr[int64](100), Low: ptr[int64](90), HighTime: ptr[int64](1704067185), LowTime: ptr[int64](1704067190)},
		"3": {High: ptr[int64](300), LowTime: ptr[int64](1704067000)},
	}, snapshot)
}

func TestGetLatest_FiltersByID(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(rawResponse(http.StatusOK, latestPayload), nil).
		Times(1)

	client, _ := newTestClient(t, httpClient)

	// Act: ask for one present and one absent id
	snapshot := client.GetLatest(t.Context(), 1, 2)

	// Assert
	require.Len(t, snapshot, 1)
	require.Contains(t, snapshot, "1")
	require.NotContains(t, snapshot, "2")
	require.NotContains(t, snapshot, "3")
}

func TestGetLatest_EmptyIDListMatchesNothing(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(rawResponse(http.StatusOK, latestPayload), nil).
		Times(1)

	client, _ := newTestClient(t, httpClient)

	snapshot := client.GetLatest(t.Context(), []int{}...)

	require.NotNil(t, snapshot)
	require.Empty(t, snapshot)
}

func TestGetLatest_MalformedPayloads(t *testing.T) {
	t.Parallel()

	for name, body := range map[string]string{
		"missing data":       `{"items":{}}`,
		"data is a list":     `{"data":[{"high":1}]}`,
		"top level is array": `[{"high":1}]`,
		"data is null":       `{"data":null}`,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			httpClient := NewMockHTTPClient(ctrl)
			httpClient.EXPECT().
				Do(gomock.Any()).
				Return(rawResponse(http.StatusOK, body), nil).
				Times(1)

			client, _ := newTestClient(t, httpClient)

			snapshot := client.GetLatest(t.Context())

			require.NotNil(t, snapshot)
			require.Empty(t, snapshot)
		})
	}
}

func TestGetLatest_DropsNonObjectEntries(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(rawResponse(http.StatusOK, `{"data":{"1":{"high":5},"2":7,"3":null}}`), nil).
		Times(1)

	client, _ := newTestClient(t, httpClient)

	snapshot := client.GetLatest(t.Context())

	require.Equal(t, provider.Snapshot{"1": {High: ptr[int64](5)}}, snapshot)
}

func TestGetLatest_FailureIsEmpty(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(rawResponse(http.StatusBadRequest, ""), nil).
		Times(1)

	client, _ := newTestClient(t, httpClient)

	snapshot := client.GetLatest(t.Context(), 1)

	require.NotNil(t, snapshot)
	require.Empty(t, snapshot)
}
