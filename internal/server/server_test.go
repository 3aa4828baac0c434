package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiolibrelab/soundrecorder/internal/audio"
	"github.com/audiolibrelab/soundrecorder/internal/config"
	"github.com/audiolibrelab/soundrecorder/internal/display"
	"github.com/audiolibrelab/soundrecorder/internal/prompt"
	"github.com/audiolibrelab/soundrecorder/internal/service"
	"github.com/audiolibrelab/soundrecorder/internal/session"
)

type fakeService struct {
	cfg        *config.Config
	recordErr  error
	playErr    error
	names      []string
	recordings []service.RecordingInfo
	devices    []audio.Device
	devicesErr error
	snapshots  chan display.Snapshot
}

func newFakeService(t *testing.T) *fakeService {
	cfg := config.Default()
	cfg.Output.Directory = t.TempDir()
	return &fakeService{cfg: cfg, snapshots: make(chan display.Snapshot, 4)}
}

func (f *fakeService) Run(ctx context.Context) error { <-ctx.Done(); return nil }

func (f *fakeService) ToggleRecord(ctx context.Context) error {
	f.names = append(f.names, prompt.NameFrom(ctx))
	return f.recordErr
}

func (f *fakeService) TogglePlay(ctx context.Context) error { return f.playErr }
func (f *fakeService) StartRecording(ctx context.Context) error { return f.recordErr }
func (f *fakeService) StopRecording(ctx context.Context) error  { return f.recordErr }

func (f *fakeService) GetStatus() service.Status {
	return service.Status{State: session.StateIdle, TimeText: "Record Time: 00:00:00", LastMessage: "ok"}
}

func (f *fakeService) Subscribe() (<-chan display.Snapshot, func()) {
	return f.snapshots, func() {}
}

func (f *fakeService) GetConfig() *config.Config { return f.cfg }
func (f *fakeService) GetLastError() string      { return "" }
func (f *fakeService) GetLastMessage() string    { return "ok" }

func (f *fakeService) ListRecordings() ([]service.RecordingInfo, error) {
	return f.recordings, nil
}

func (f *fakeService) RecordingPath(name string) (string, error) {
	path := filepath.Join(f.cfg.Output.Directory, name)
	if name != filepath.Base(name) {
		return "", service.ErrNotFound
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s", service.ErrNotFound, name)
	}
	return path, nil
}

func (f *fakeService) ListDevices() ([]audio.Device, error) { return f.devices, f.devicesErr }

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRecord_PassesName(t *testing.T) {
	svc := newFakeService(t)
	h := New(svc, "0").Handler()

	form := url.Values{"name": {"take one"}}
	req := httptest.NewRequest(http.MethodPost, "/record", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["success"])
	assert.Equal(t, []string{"take one"}, svc.names)
}

func TestRecord_InvalidTransitionIsConflict(t *testing.T) {
	svc := newFakeService(t)
	svc.recordErr = fmt.Errorf("%w: playing", session.ErrInvalidTransition)
	h := New(svc, "0").Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/record", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Contains(t, body["error"], "invalid transition")
}

func TestRecord_ImmediateCaptureFailureIsUnavailable(t *testing.T) {
	svc := newFakeService(t)
	svc.recordErr = fmt.Errorf("%w: no microphone", audio.ErrDeviceUnavailable)

	rec := httptest.NewRecorder()
	New(svc, "0").Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/record", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "no microphone")
}

func TestPlay_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"nothing to play", session.ErrNothingToPlay, http.StatusConflict},
		{"closed", session.ErrClosed, http.StatusServiceUnavailable},
		{"device", audio.ErrDeviceUnavailable, http.StatusServiceUnavailable},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError},
		{"ok", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeService(t)
			svc.playErr = tt.err
			rec := httptest.NewRecorder()
			New(svc, "0").Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/play", nil))
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	New(newFakeService(t), "0").Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/record", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	New(newFakeService(t), "0").Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "idle", body["state"])
	assert.Equal(t, "Record Time: 00:00:00", body["time_text"])
}

func TestIndex_ServesBuiltinPage(t *testing.T) {
	rec := httptest.NewRecorder()
	New(newFakeService(t), "0").Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<title>Sound Recorder</title>")
}

func TestRecordings(t *testing.T) {
	svc := newFakeService(t)
	svc.recordings = []service.RecordingInfo{{Name: "a.wav"}, {Name: "b.wav"}}

	rec := httptest.NewRecorder()
	New(svc, "0").Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/recordings", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp RecordingsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.TotalCount)
	assert.Equal(t, "a.wav", resp.Recordings[0].Name)
	assert.Equal(t, svc.cfg.Output.Directory, resp.Directory)
}

func TestRecordingStream(t *testing.T) {
	svc := newFakeService(t)
	require.NoError(t, os.WriteFile(filepath.Join(svc.cfg.Output.Directory, "take.wav"), []byte("RIFFdata"), 0644))
	h := New(svc, "0").Handler()

	t.Run("whole file", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/recordings/stream/take.wav", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "audio/wav", rec.Header().Get("Content-Type"))
		assert.Equal(t, "RIFFdata", rec.Body.String())
	})

	t.Run("range", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/recordings/stream/take.wav", nil)
		req.Header.Set("Range", "bytes=4-")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusPartialContent, rec.Code)
		assert.Equal(t, "data", rec.Body.String())
	})

	t.Run("missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/recordings/stream/nope.wav", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestDevices(t *testing.T) {
	svc := newFakeService(t)
	svc.devices = []audio.Device{{Name: "hw:0,0", Description: "Card: Mic", Backend: audio.BackendALSA}}

	rec := httptest.NewRecorder()
	New(svc, "0").Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/devices", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp DevicesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "auto", resp.Backend)
	require.Len(t, resp.Devices, 1)
	assert.Equal(t, "hw:0,0", resp.Devices[0].Name)
}

func TestDevices_Unavailable(t *testing.T) {
	svc := newFakeService(t)
	svc.devicesErr = fmt.Errorf("%w: no capture tool found", audio.ErrDeviceUnavailable)

	rec := httptest.NewRecorder()
	New(svc, "0").Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/devices", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEvents_StreamsSnapshots(t *testing.T) {
	svc := newFakeService(t)
	ts := httptest.NewServer(New(svc, "0").Handler())
	defer ts.Close()

	svc.snapshots <- display.Snapshot{
		TimeText: "Record Time: 00:00:01",
		Record:   display.Presentation{Enabled: true, Label: display.LabelStop},
	}

	resp, err := http.Get(ts.URL + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, "data: "))

	var snap display.Snapshot
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &snap))
	assert.Equal(t, "Record Time: 00:00:01", snap.TimeText)
	assert.Equal(t, display.LabelStop, snap.Record.Label)

	close(svc.snapshots)
}
