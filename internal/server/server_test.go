package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/flowbaker/runreel/internal/controllers"
	"github.com/flowbaker/runreel/internal/metrics"
	"github.com/flowbaker/runreel/pkg/domain"
	"github.com/flowbaker/runreel/pkg/domain/reel"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReelService struct {
	statusResult reel.GifStatusResult
	createResult reel.CreateGifResult
	statusCalls  []reel.GifParams
	createCalls  []reel.GifParams
}

func (s *fakeReelService) GetGifStatus(ctx context.Context, params reel.GifParams) reel.GifStatusResult {
	s.statusCalls = append(s.statusCalls, params)

	return s.statusResult
}

func (s *fakeReelService) CreateGif(ctx context.Context, params reel.GifParams) reel.CreateGifResult {
	s.createCalls = append(s.createCalls, params)

	return s.createResult
}

func (s *fakeReelService) HandleCreateGifTask(ctx context.Context, envelope domain.TaskEnvelope) ([]byte, error) {
	return nil, nil
}

func newTestServer(service reel.ReelService, m *metrics.Metrics) *fiber.App {
	return NewHTTPServer(HTTPServerDependencies{
		ReelController:    controllers.NewReelController(controllers.ReelControllerDependencies{ReelService: service}),
		Metrics:           m,
		DisableRequestLog: true,
	})
}

func doRequest(t *testing.T, app *fiber.App, method, target, accountID string) (int, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	if accountID != "" {
		req.Header.Set("X-Account-ID", accountID)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	decoded := map[string]any{}
	if len(body) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(body, &decoded))
	}

	return resp.StatusCode, decoded
}

func TestGifStatusRoute(t *testing.T) {
	service := &fakeReelService{
		statusResult: reel.GifStatusResult{
			Success: true,
			Data:    &reel.GifStatusData{Status: reel.GifStatusCompleted, URL: "https://cdn/a.gif"},
		},
	}

	app := newTestServer(service, nil)

	status, body := doRequest(t, app, http.MethodGet, "/v1/flows/flow-1/gif/status?runId=run-1", "acc-1")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]any{"status": "completed", "url": "https://cdn/a.gif"}, body["data"])
	assert.Equal(t, []reel.GifParams{{FlowID: "flow-1", RunID: "run-1", AccountID: "acc-1"}}, service.statusCalls)

	service.statusResult = reel.GifStatusResult{Success: false, Error: "No runs found for this flow"}

	status, body = doRequest(t, app, http.MethodGet, "/v1/flows/flow-2/gif/status", "acc-1")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "No runs found for this flow", body["error"])
	assert.NotContains(t, body, "data")
	assert.Equal(t, "", service.statusCalls[1].RunID)
}

func TestCreateGifRoute(t *testing.T) {
	service := &fakeReelService{
		createResult: reel.CreateGifResult{
			Success:       true,
			GifURL:        "https://cdn/a.gif",
			PrivateGifURL: "http://minio/a.gif",
			RunID:         "run-1",
		},
	}

	app := newTestServer(service, nil)

	status, body := doRequest(t, app, http.MethodPost, "/v1/flows/flow-1/gif", "acc-1")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "https://cdn/a.gif", body["gifUrl"])
	assert.Equal(t, "http://minio/a.gif", body["privateGifUrl"])
	assert.Equal(t, "run-1", body["runId"])

	service.createResult = reel.CreateGifResult{Success: false, RunID: "run-1", Error: "Failed to upload GIF"}

	status, body = doRequest(t, app, http.MethodGet, "/test-utils/gif/flow-1/run-1", "acc-1")

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Failed to upload GIF", body["error"])

	require.Len(t, service.createCalls, 2)
	assert.Equal(t, reel.GifParams{FlowID: "flow-1", RunID: "run-1", AccountID: "acc-1"}, service.createCalls[1])
}

func TestAccountScope(t *testing.T) {
	service := &fakeReelService{}
	app := newTestServer(service, nil)

	status, body := doRequest(t, app, http.MethodGet, "/v1/flows/flow-1/gif/status", "")

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])
	assert.Empty(t, service.statusCalls)
}

func TestHealthAndMetrics(t *testing.T) {
	m := metrics.New()
	app := newTestServer(&fakeReelService{statusResult: reel.GifStatusResult{Success: true}}, m)

	status, body := doRequest(t, app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])

	doRequest(t, app, http.MethodGet, "/v1/flows/flow-1/gif/status", "acc-1")

	assert.GreaterOrEqual(t, testutil.CollectAndCount(m.HTTPRequestsTotal), 1)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(payload), `runreel_http_requests_total{method="GET"`)
}
