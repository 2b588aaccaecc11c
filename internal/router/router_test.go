package router

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/petri/petri-go/internal/client"
	"github.com/petri/petri-go/internal/handler"
	"github.com/petri/petri-go/internal/knowledgestore"
	"github.com/petri/petri-go/internal/model"
	"github.com/petri/petri-go/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type countingModel struct {
	mu    sync.Mutex
	reply string
	calls int
}

func (m *countingModel) Chat(ctx context.Context, messages []client.Message, temperature float64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.reply, nil
}

type memoryBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (b *memoryBlobs) Put(ctx context.Context, path string, body []byte, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[path] = body
	return nil
}

func (b *memoryBlobs) SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	return "https://storage.example/" + path + "?token=t", nil
}

// fixedStore 不论查询条件都返回同一组记录
type fixedStore struct {
	records []model.KnowledgeRecord
}

func (s fixedStore) Search(ctx context.Context, q knowledgestore.Query) ([]model.KnowledgeRecord, error) {
	return s.records, nil
}

type testApp struct {
	engine *gin.Engine
	vision *countingModel
	text   *countingModel
	blobs  *memoryBlobs
}

var limpingRecord = model.KnowledgeRecord{ID: 7, Question: "dog limping", Answer: "rest and check paw", Species: "dog"}

func newTestApp(t *testing.T, reply string) *testApp {
	t.Helper()
	store := knowledgestore.NewMemoryStore(zap.NewNop())
	require.NoError(t, store.Add(limpingRecord))
	return newTestAppWithStore(t, reply, store)
}

func newTestAppWithStore(t *testing.T, reply string, store knowledgestore.Store) *testApp {
	t.Helper()
	logger := zap.NewNop()

	app := &testApp{
		vision: &countingModel{reply: "A swollen front paw."},
		text:   &countingModel{reply: reply},
		blobs:  &memoryBlobs{objects: map[string][]byte{}},
	}

	chat := service.NewChatService(
		service.NewVisionService(app.vision, logger),
		service.NewKnowledgeService(store, "dog", 3, logger),
		service.NewAnswerService(app.text, logger),
		service.ChatOptions{CallTimeout: 5 * time.Second},
		logger,
	)
	sessions := service.NewSessionService(logger)
	uploads := service.NewUploadService(app.blobs, 10*time.Minute, 5*time.Second, logger)

	app.engine = NewRouter(Handlers{
		Chat:      handler.NewChatHandler(chat, logger),
		Upload:    handler.NewUploadHandler(uploads, 20<<20, logger),
		WebSocket: handler.NewWebSocketHandler(sessions, chat, logger),
		API:       handler.NewAPIHandler("petri", sessions, logger),
	})
	return app
}

func (a *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func TestChat_UsesKnowledgeBase(t *testing.T) {
	app := newTestAppWithStore(t, "Let them rest and check the paw.", fixedStore{records: []model.KnowledgeRecord{limpingRecord}})

	w := app.do(httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"my dog is limping","species":"dog"}`)))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"answer":"Let them rest and check the paw.","usedKb":true,"kbIds":[7],"sources":[]}`, w.Body.String())
	assert.Equal(t, 0, app.vision.calls)
	assert.Equal(t, 1, app.text.calls)
}

func TestChat_NoSubstringMatch(t *testing.T) {
	app := newTestApp(t, "Keep an eye on it.")

	w := app.do(httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"my dog is limping","species":"dog"}`)))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"answer":"Keep an eye on it.","usedKb":false,"kbIds":[],"sources":[]}`, w.Body.String())
}

func TestChat_MatchingMessageReturnsRecordIDs(t *testing.T) {
	app := newTestApp(t, "Let them rest and check the paw.")

	w := app.do(httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"limping","species":"dog"}`)))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"answer":"Let them rest and check the paw.","usedKb":true,"kbIds":[7],"sources":[]}`, w.Body.String())
}

func TestChat_WithImageCallsObserver(t *testing.T) {
	app := newTestApp(t, "Looks sore.")

	w := app.do(httptest.NewRequest(http.MethodPost, "/chat",
		strings.NewReader(`{"message":"limping","imageUrl":"https://storage.example/uploads/1-a.jpg"}`)))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, app.vision.calls)
}

func TestChat_EmptyReplyFallsBack(t *testing.T) {
	app := newTestApp(t, "")

	w := app.do(httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hello"}`)))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), service.FallbackAnswer)
}

func TestChat_Preflight(t *testing.T) {
	app := newTestApp(t, "unused")

	w := app.do(httptest.NewRequest(http.MethodOptions, "/chat", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type, Authorization", w.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, 0, app.text.calls)
}

func TestMethodNotAllowed(t *testing.T) {
	app := newTestApp(t, "unused")

	for _, path := range []string{"/chat", "/upload"} {
		w := app.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, path)
		assert.JSONEq(t, `{"error":"Method not allowed","method":"GET"}`, w.Body.String(), path)
	}
	assert.Equal(t, 0, app.text.calls)
}

func TestUpload_ReturnsSignedURL(t *testing.T) {
	app := newTestApp(t, "unused")

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	part, err := mw.CreateFormFile("file", "photo.HEIC")
	require.NoError(t, err)
	_, err = part.Write([]byte("heic-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := app.do(req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok":true`)
	require.Len(t, app.blobs.objects, 1)
	for path := range app.blobs.objects {
		assert.True(t, strings.HasPrefix(path, "uploads/"))
		assert.True(t, strings.HasSuffix(path, ".heic"))
		assert.Contains(t, w.Body.String(), path)
	}
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, "unused")

	w := app.do(httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"UP","service":"petri","online_sessions":0}`, w.Body.String())
}
