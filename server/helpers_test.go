package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"audiovault/core/audio"
	"audiovault/core/auth"
	"audiovault/model"
	"audiovault/storage"
)

const testMaxUpload = 8 << 10

type testEnv struct {
	router http.Handler
	audios *memAudioRepo
	users  *memUserRepo
	blobs  *storage.LocalStore
	faults *faultyBlobs
	tokens *auth.TokenManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	blobs, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	tokens, err := auth.NewTokenManager("test-secret", "audiovault-test", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	env := &testEnv{
		audios: newMemAudioRepo(),
		users:  newMemUserRepo(),
		blobs:  blobs,
		faults: newFaultyBlobs(blobs),
		tokens: tokens,
	}
	h := NewAPIHandler(
		env.users,
		audio.NewLibrary(env.audios, env.faults),
		audio.NewUploader(env.audios, env.faults, []string{"audio/mpeg", "audio/ogg"}, testMaxUpload),
		tokens,
		auth.NewVerifier(tokens, &memRevocations{}),
	)
	env.router = NewRouter(h)
	return env
}

func (e *testEnv) token(t *testing.T, id model.Identity) string {
	t.Helper()
	tok, _, err := e.tokens.GenerateToken(id.UserID, id.Username)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return tok
}

func (e *testEnv) do(t *testing.T, req *http.Request, tok string) *httptest.ResponseRecorder {
	t.Helper()
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target string, body interface{}) *http.Request {
	var r io.Reader = http.NoBody
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	return req
}

type uploadForm struct {
	filename    string
	contentType string
	data        []byte
	description string
	category    string
	omitFile    bool
}

func uploadRequest(t *testing.T, f uploadForm) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if !f.omitFile {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename="%s"`, f.filename))
		h.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart: %v", err)
		}
		part.Write(f.data)
	}
	mw.WriteField("description", f.description)
	mw.WriteField("category", f.category)
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/audio/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// upload 上传一个文件并返回创建的记录
func (e *testEnv) upload(t *testing.T, tok string, data []byte) model.Audio {
	t.Helper()
	rec := e.do(t, uploadRequest(t, uploadForm{
		filename:    "track.mp3",
		contentType: "audio/mpeg",
		data:        data,
		description: "demo",
		category:    "music",
	}), tok)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var a model.Audio
	if err := json.Unmarshal(rec.Body.Bytes(), &a); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	return a
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorDetail {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Error
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeError(t, rec).Code
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeError(t, rec).Message
}

// seedUser 写入一个已注册用户，返回其令牌
func (e *testEnv) seedUser(t *testing.T, username, email, password string) (*model.User, string) {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	u := &model.User{Username: username, Email: email, PasswordHash: hash}
	if err := e.users.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u, e.token(t, model.Identity{UserID: u.ID, Username: u.Username})
}

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}
