package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stash/internal/server/auth"
	"stash/internal/server/config"
	"stash/internal/server/database"
	"stash/internal/server/service"
	"stash/internal/server/storage"
	"stash/internal/server/thumbnail"
)

type testServer struct {
	e     *echo.Echo
	blobs *storage.FileSystemStore
	db    *database.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{
		SessionTTL:     24 * time.Hour,
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
	}

	db := database.NewMemoryStore()
	sessions := auth.NewMemorySessions()
	blobs := storage.NewFileSystemStore(t.TempDir())
	require.NoError(t, blobs.EnsureDir())

	pipeline := thumbnail.NewPipeline(db, blobs)
	queue := thumbnail.NewQueue(pipeline.Process, 1, 16, 3)

	ctx, cancel := context.WithCancel(context.Background())
	queue.Start(ctx)
	t.Cleanup(func() {
		cancel()
		queue.Wait()
	})

	gateway := auth.NewGateway(sessions, db, cfg.SessionTTL)
	fileSvc := service.NewFileService(db, blobs, queue)
	userSvc := service.NewUserService(db)
	handler := NewHandler(fileSvc, userSvc, gateway, db, sessions)

	return &testServer{
		e:     SetupRouter(ctx, handler, gateway, cfg),
		blobs: blobs,
		db:    db,
	}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(TokenHeader, token)
	}

	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	return rec
}

func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// register + connect, returning a live session token.
func (ts *testServer) login(t *testing.T, email, password string) string {
	t.Helper()

	rec := ts.do(t, http.MethodPost, "/users", "", echo.Map{"email": email, "password": password})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/connect", nil)
	req.SetBasicAuth(email, password)
	connRec := httptest.NewRecorder()
	ts.e.ServeHTTP(connRec, req)
	require.Equal(t, http.StatusOK, connRec.Code, connRec.Body.String())

	token, ok := decodeJSON(t, connRec)["token"].(string)
	require.True(t, ok)
	require.NotEmpty(t, token)
	return token
}

func TestStatusAndStats(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, true, body["redis"])
	assert.Equal(t, true, body["db"])

	ts.login(t, "bob@dylan.com", "toto1234!")

	rec = ts.do(t, http.MethodGet, "/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeJSON(t, rec)
	assert.Equal(t, float64(1), body["users"])
	assert.Equal(t, float64(0), body["files"])
}

func TestRegisterErrors(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/users", "", echo.Map{"password": "pw"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing email", decodeJSON(t, rec)["error"])

	rec = ts.do(t, http.MethodPost, "/users", "", echo.Map{"email": "a@b.c"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing password", decodeJSON(t, rec)["error"])

	rec = ts.do(t, http.MethodPost, "/users", "", echo.Map{"email": "a@b.c", "password": "pw"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = ts.do(t, http.MethodPost, "/users", "", echo.Map{"email": "a@b.c", "password": "pw"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "already exist", decodeJSON(t, rec)["error"])
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, "bob@dylan.com", "toto1234!")

	t.Run("me returns the account", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/users/me", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "bob@dylan.com", decodeJSON(t, rec)["email"])
	})

	t.Run("unknown token is rejected without side effects", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/users/me", "abc", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "unauthorized", decodeJSON(t, rec)["error"])
	})

	t.Run("missing token", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/files", "", echo.Map{"name": "x", "type": "folder"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong credentials", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/connect", nil)
		req.SetBasicAuth("bob@dylan.com", "wrong")
		rec := httptest.NewRecorder()
		ts.e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("disconnect invalidates the token", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/disconnect", token, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = ts.do(t, http.MethodGet, "/users/me", token, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestFileEndpoints(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, "bob@dylan.com", "toto1234!")

	var folderID string

	t.Run("create folder", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/files", token, echo.Map{"name": "photos", "type": "folder"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		body := decodeJSON(t, rec)
		folderID = body["id"].(string)
		assert.Equal(t, "folder", body["type"])
		assert.Equal(t, "0", body["parentId"])
		assert.Equal(t, false, body["isPublic"])
		assert.NotContains(t, body, "localPath")
	})

	var fileID string

	t.Run("create file inside folder", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/files", token, echo.Map{
			"name":     "hello.txt",
			"type":     "file",
			"parentId": folderID,
			"data":     base64.StdEncoding.EncodeToString([]byte("Hello stash!\n")),
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		body := decodeJSON(t, rec)
		fileID = body["id"].(string)
		assert.Equal(t, folderID, body["parentId"])
		assert.NotContains(t, body, "localPath")
	})

	t.Run("validation errors", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/files", token, echo.Map{"type": "folder"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "missing name", decodeJSON(t, rec)["error"])

		rec = ts.do(t, http.MethodPost, "/files", token, echo.Map{"name": "x", "type": "file", "parentId": fileID, "data": "aGk="})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "parent is not a folder", decodeJSON(t, rec)["error"])
	})

	t.Run("show and list", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/files/"+fileID, token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "hello.txt", decodeJSON(t, rec)["name"])

		rec = ts.do(t, http.MethodGet, "/files?parentId="+folderID, token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var list []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		require.Len(t, list, 1)
		assert.Equal(t, fileID, list[0]["id"])
	})

	t.Run("content is owner-only while private", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/files/"+fileID+"/data", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Hello stash!\n", rec.Body.String())
		assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/plain")

		rec = ts.do(t, http.MethodGet, "/files/"+fileID+"/data", "", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("publish opens anonymous access", func(t *testing.T) {
		rec := ts.do(t, http.MethodPut, "/files/"+fileID+"/publish", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, decodeJSON(t, rec)["isPublic"])

		rec = ts.do(t, http.MethodGet, "/files/"+fileID+"/data", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = ts.do(t, http.MethodPut, "/files/"+fileID+"/unpublish", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, false, decodeJSON(t, rec)["isPublic"])

		rec = ts.do(t, http.MethodGet, "/files/"+fileID+"/data", "", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("invalid size parameter", func(t *testing.T) {
		for _, size := range []string{"300", "0", "abc"} {
			rec := ts.do(t, http.MethodGet, "/files/"+fileID+"/data?size="+size, token, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, "size=%s", size)
			assert.Equal(t, "invalid size", decodeJSON(t, rec)["error"])
		}
	})

	t.Run("folder content", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/files/"+folderID+"/data", token, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "a folder doesn't have content", decodeJSON(t, rec)["error"])
	})

	t.Run("records of other users are invisible", func(t *testing.T) {
		other := ts.login(t, "intruder@example.com", "pw")
		rec := ts.do(t, http.MethodGet, "/files/"+fileID, other, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = ts.do(t, http.MethodPut, "/files/"+fileID+"/publish", other, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestImageUploadGeneratesThumbnails(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, "bob@dylan.com", "toto1234!")

	rec := ts.do(t, http.MethodPost, "/files", token, echo.Map{
		"name": "cat.png",
		"type": "image",
		"data": base64.StdEncoding.EncodeToString(testPNG(t, 640, 320)),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	fileID := decodeJSON(t, rec)["id"].(string)

	// The pipeline runs in the background; poll until the smallest
	// thumbnail shows up.
	file, err := ts.db.FileByID(context.Background(), fileID)
	require.NoError(t, err)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if ts.blobs.Exists(fmt.Sprintf("%s_100", file.LocalPath)) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	original := ts.do(t, http.MethodGet, "/files/"+fileID+"/data", token, nil)
	require.Equal(t, http.StatusOK, original.Code)

	thumb := ts.do(t, http.MethodGet, "/files/"+fileID+"/data?size=100", token, nil)
	require.Equal(t, http.StatusOK, thumb.Code)
	assert.NotEqual(t, original.Body.Bytes(), thumb.Body.Bytes())
	assert.Contains(t, original.Header().Get(echo.HeaderContentType), "image/png")
}
