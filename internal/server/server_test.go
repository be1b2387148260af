package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/repour/internal/config"
	"github.com/pders01/repour/internal/logging"
	"github.com/pders01/repour/internal/models"
	"github.com/pders01/repour/internal/scm"
	"github.com/pders01/repour/internal/testutil"
)

func testServer(t *testing.T, mutate func(*config.Config)) (*Server, *httptest.Server) {
	t.Helper()

	cfg := config.Default()
	cfg.Identity = config.Identity{Name: "Repour", Email: "repour@localhost"}
	if mutate != nil {
		mutate(cfg)
	}

	s := New(cfg, logging.Discard(), io.Discard)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func post(t *testing.T, url string, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func captureRequest(dir string) models.CaptureRequest {
	return models.CaptureRequest{
		Dir:         dir,
		Operation:   models.OperationPull,
		Description: "import",
		URL: models.RepositoryURL{
			ReadWrite: "git+ssh://internal.example.com/org/project.git",
			ReadOnly:  "https://internal.example.com/org/project.git",
		},
	}
}

func TestCaptureEndpoint(t *testing.T) {
	repo := testutil.NewTempGitRepo(t).WithRemote()
	defer repo.Cleanup()
	repo.CreateFile("README.md", "v2")

	_, ts := testServer(t, nil)

	resp := post(t, ts.URL+"/capture", captureRequest(repo.Path))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(CallbackHeader))

	body := decodeBody[models.CaptureResponse](t, resp)
	require.True(t, body.Captured)
	require.NotNil(t, body.Result)
	assert.Equal(t, scm.TagPrefix+body.Result.Commit, body.Result.Tag)
	assert.Equal(t, "https://internal.example.com/org/project.git", body.Result.URL.ReadOnly)
	assert.Equal(t, body.Result.Tag, repo.RemoteGit("tag", "--list", body.Result.Tag))
}

func TestCaptureNothingNew(t *testing.T) {
	repo := testutil.NewTempGitRepo(t).WithRemote()
	defer repo.Cleanup()

	_, ts := testServer(t, nil)

	req := captureRequest(repo.Path)
	req.NoChangeOK = true
	resp := post(t, ts.URL+"/capture", req)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[models.CaptureResponse](t, resp)
	assert.False(t, body.Captured)
	assert.Nil(t, body.Result)
}

func TestCaptureNoChangeError(t *testing.T) {
	repo := testutil.NewTempGitRepo(t).WithRemote()
	defer repo.Cleanup()

	_, ts := testServer(t, nil)

	resp := post(t, ts.URL+"/capture", captureRequest(repo.Path))
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	body := decodeBody[models.ErrorResponse](t, resp)
	assert.Equal(t, string(scm.KindNoChange), body.ErrorType)
	assert.NotEmpty(t, body.ErrorMessage)
}

func TestCaptureValidation(t *testing.T) {
	_, ts := testServer(t, nil)

	req := captureRequest("")
	req.Operation = "build"
	req.URL.ReadOnly = "not a url"
	req.TagName = "release.git"

	resp := post(t, ts.URL+"/capture", req)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	errs := decodeBody[[]models.ValidationError](t, resp)
	var paths []string
	for _, e := range errs {
		paths = append(paths, strings.Join(e.Path, "."))
		assert.NotEmpty(t, e.ErrorMessage)
		assert.NotEmpty(t, e.ErrorType)
	}
	assert.ElementsMatch(t, []string{"dir", "operation", "url.readonly", "tag_name"}, paths)
}

func TestCaptureRejectsUnknownFields(t *testing.T) {
	_, ts := testServer(t, nil)

	resp, err := http.Post(ts.URL+"/capture", "application/json", strings.NewReader(`{"dir": "/tmp", "branch": "main"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	errs := decodeBody[[]models.ValidationError](t, resp)
	require.Len(t, errs, 1)
	assert.Equal(t, errTypeJSON, errs[0].ErrorType)
}

func TestCaptureOutsideRepository(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GIT_CEILING_DIRECTORIES", filepath.Dir(dir))

	_, ts := testServer(t, nil)

	resp := post(t, ts.URL+"/capture", captureRequest(dir))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	errs := decodeBody[[]models.ValidationError](t, resp)
	require.Len(t, errs, 1)
	assert.Equal(t, []string{"dir"}, errs[0].Path)
}

func TestWorkspaceRootConfinesDirs(t *testing.T) {
	repo := testutil.NewTempGitRepo(t).WithRemote()
	defer repo.Cleanup()
	repo.CreateFile("README.md", "v2")

	_, ts := testServer(t, func(cfg *config.Config) {
		cfg.WorkspaceRoot = t.TempDir()
	})

	for _, endpoint := range []string{"/capture", "/flatten"} {
		var body any = captureRequest(repo.Path)
		if endpoint == "/flatten" {
			body = models.FlattenRequest{Dir: repo.Path}
		}

		resp := post(t, ts.URL+endpoint, body)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, endpoint)

		errs := decodeBody[[]models.ValidationError](t, resp)
		require.Len(t, errs, 1)
		assert.Equal(t, []string{"dir"}, errs[0].Path)
		assert.Contains(t, errs[0].ErrorMessage, "workspace root")
	}
	assert.Empty(t, repo.Tags(), "nothing may run outside the workspace")
}

func TestWorkspaceRootAllowsNestedDirs(t *testing.T) {
	repo := testutil.NewTempGitRepo(t).WithRemote()
	defer repo.Cleanup()
	repo.CreateFile("README.md", "v2")

	_, ts := testServer(t, func(cfg *config.Config) {
		cfg.WorkspaceRoot = filepath.Dir(repo.Path)
	})

	resp := post(t, ts.URL+"/capture", captureRequest(repo.Path))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decodeBody[models.CaptureResponse](t, resp).Captured)
}

func TestFlattenEndpointMissingSubmodule(t *testing.T) {
	repo := testutil.NewTempGitRepo(t)
	defer repo.Cleanup()
	repo.CreateFile(scm.ManifestFile, "[submodule \"ghost\"]\n\tpath = ghost\n\turl = https://example.com/ghost.git\n")
	repo.Commit("Declare ghost")

	_, ts := testServer(t, nil)

	resp := post(t, ts.URL+"/flatten", models.FlattenRequest{Dir: repo.Path})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	body := decodeBody[models.ErrorResponse](t, resp)
	assert.Equal(t, string(scm.KindIntegrity), body.ErrorType)
	assert.Equal(t, scm.ExitCodeFailed, body.ExitCode)
}

func TestFlattenEndpointNoManifest(t *testing.T) {
	repo := testutil.NewTempGitRepo(t)
	defer repo.Cleanup()

	_, ts := testServer(t, nil)

	resp := post(t, ts.URL+"/flatten", models.FlattenRequest{Dir: repo.Path})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[models.FlattenResponse](t, resp)
	assert.Equal(t, scm.StateNotApplicable.String(), body.State)
}

func TestTranslateEndpoint(t *testing.T) {
	_, ts := testServer(t, func(cfg *config.Config) {
		cfg.InternalURLTemplate = "git+ssh://internal.example.com"
	})

	resp := post(t, ts.URL+"/git-external-to-internal", models.TranslateRequest{ExternalURL: "https://github.com/org/repo.git"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[map[string]string](t, resp)
	assert.Equal(t, "https://github.com/org/repo.git", body["external_url"])
	assert.Equal(t, "git+ssh://internal.example.com/org/repo.git", body["internal_url"])
}

func TestTranslateEndpointErrors(t *testing.T) {
	t.Run("missing template", func(t *testing.T) {
		_, ts := testServer(t, nil)

		resp := post(t, ts.URL+"/git-external-to-internal", models.TranslateRequest{ExternalURL: "https://github.com/org/repo.git"})
		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, "config", decodeBody[models.ErrorResponse](t, resp).ErrorType)
	})

	t.Run("bad scheme", func(t *testing.T) {
		_, ts := testServer(t, func(cfg *config.Config) {
			cfg.InternalURLTemplate = "git+ssh://internal.example.com"
		})

		resp := post(t, ts.URL+"/git-external-to-internal", models.TranslateRequest{ExternalURL: "ftp://example.com/org/repo"})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "translation", decodeBody[models.ErrorResponse](t, resp).ErrorType)
	})
}

func TestSchemaEndpoint(t *testing.T) {
	_, ts := testServer(t, nil)

	resp, err := http.Get(ts.URL + "/schema/capture-request")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "object", decodeBody[map[string]any](t, resp)["type"])

	missing, err := http.Get(ts.URL + "/schema/pull")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	list, err := http.Get(ts.URL + "/schema")
	require.NoError(t, err)
	defer list.Body.Close()
	assert.Contains(t, decodeBody[[]string](t, list), "capture-request")
}

func TestLiveLogs(t *testing.T) {
	repo := testutil.NewTempGitRepo(t).WithRemote()
	defer repo.Cleanup()
	repo.CreateFile("README.md", "v2")

	_, ts := testServer(t, nil)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/build-42"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	_, first, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "build-42", string(first))

	req := captureRequest(repo.Path)
	req.CallbackID = "build-42"
	resp := post(t, ts.URL+"/capture", req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "build-42", resp.Header.Get(CallbackHeader))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err, "capture log never arrived")
		if strings.Contains(string(msg), "Pushed to repo") {
			assert.Contains(t, string(msg), "callback_id=build-42")
			return
		}
	}
}
