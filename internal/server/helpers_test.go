package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/MarcoPoloResearchLab/nodeflow/internal/analysis"
	"github.com/MarcoPoloResearchLab/nodeflow/internal/coding"
	"github.com/MarcoPoloResearchLab/nodeflow/internal/database"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type testAPI struct {
	handler http.Handler
	service *coding.Service
	feed    *ChangeFeed
}

func newTestAPI(t *testing.T, configure func(*Dependencies)) testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	handles, err := database.OpenSQLite(filepath.Join(t.TempDir(), "nodeflow.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = handles.Close()
	})

	feed := NewChangeFeed()
	service, err := coding.NewService(coding.ServiceConfig{
		Database:   handles.Gorm,
		Reader:     handles.Reader,
		IDProvider: coding.NewUUIDProvider(),
		Notifier:   feed,
	})
	if err != nil {
		t.Fatalf("failed to construct coding service: %v", err)
	}
	runner, err := analysis.NewRunner(analysis.RunnerConfig{Source: service})
	if err != nil {
		t.Fatalf("failed to construct analysis runner: %v", err)
	}

	deps := Dependencies{
		CodingService: service,
		Analysis:      runner,
		Feed:          feed,
		Logger:        zap.NewNop(),
	}
	if configure != nil {
		configure(&deps)
	}
	handler, err := NewHTTPHandler(deps)
	if err != nil {
		t.Fatalf("failed to construct http handler: %v", err)
	}
	return testAPI{handler: handler, service: service, feed: feed}
}

func (a testAPI) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, path, reader)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	for index := 0; index+1 < len(headers); index += 2 {
		request.Header.Set(headers[index], headers[index+1])
	}
	recorder := httptest.NewRecorder()
	a.handler.ServeHTTP(recorder, request)
	return recorder
}

func expectStatus(t *testing.T, recorder *httptest.ResponseRecorder, status int) {
	t.Helper()
	if recorder.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, recorder.Code, recorder.Body.String())
	}
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func expectError(t *testing.T, recorder *httptest.ResponseRecorder, status int, message, code string) {
	t.Helper()
	expectStatus(t, recorder, status)
	var body errorBody
	decodeBody(t, recorder, &body)
	if body.Error != message {
		t.Fatalf("expected error %q, got %q", message, body.Error)
	}
	if code != "" && body.Code != code {
		t.Fatalf("expected code %q, got %q", code, body.Code)
	}
}

func (a testAPI) createProject(t *testing.T, name string) projectPayload {
	t.Helper()
	recorder := a.do(t, http.MethodPost, "/projects", projectRequestPayload{Name: name})
	expectStatus(t, recorder, http.StatusCreated)
	var project projectPayload
	decodeBody(t, recorder, &project)
	return project
}

func (a testAPI) createNode(t *testing.T, projectID string, parentID *string, name string) nodePayload {
	t.Helper()
	recorder := a.do(t, http.MethodPost, "/projects/"+projectID+"/nodes", createNodePayload{ParentID: parentID, Name: name})
	expectStatus(t, recorder, http.StatusCreated)
	var node nodePayload
	decodeBody(t, recorder, &node)
	return node
}

func (a testAPI) createDocument(t *testing.T, projectID string, participantID *string, title, content string) documentPayload {
	t.Helper()
	recorder := a.do(t, http.MethodPost, "/projects/"+projectID+"/documents", createDocumentPayload{
		ParticipantID: participantID,
		Title:         title,
		Content:       content,
	})
	expectStatus(t, recorder, http.StatusCreated)
	var document documentPayload
	decodeBody(t, recorder, &document)
	return document
}
