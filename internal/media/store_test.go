package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
)

// fakeS3 answers path-style object requests from memory.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]fakeObject
	gets    int
}

type fakeObject struct {
	body        []byte
	contentType string
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}

	switch req.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		f.objects[key] = fakeObject{body: body, contentType: req.Header.Get("Content-Type")}
		return respond(http.StatusOK, nil, http.Header{"Etag": {`"etag"`}}), nil
	case http.MethodGet:
		f.gets++
		obj, ok := f.objects[key]
		if !ok {
			body := []byte(`<?xml version="1.0"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return respond(http.StatusNotFound, body, http.Header{"Content-Type": {"application/xml"}}), nil
		}
		return respond(http.StatusOK, obj.body, http.Header{"Content-Type": {obj.contentType}}), nil
	case http.MethodDelete:
		delete(f.objects, key)
		return respond(http.StatusNoContent, nil, http.Header{}), nil
	}
	return respond(http.StatusNotImplemented, nil, http.Header{}), nil
}

func respond(status int, body []byte, header http.Header) *http.Response {
	return &http.Response{
		StatusCode:    status,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
	}
}

func newFakeStore(t *testing.T) (*Store, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: map[string]fakeObject{}}
	store, err := New(context.Background(), Config{
		Bucket:          "streetlab-test",
		Region:          "us-east-1",
		Endpoint:        "https://s3.test.local",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		PathStyle:       true,
	}, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: fake}
	})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store, fake
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store, _ := newFakeStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "drugs/weed/a.png", "image/png", strings.NewReader("png-bytes")); err != nil {
		t.Fatalf("put: %v", err)
	}

	body, contentType, err := store.Get(ctx, "drugs/weed/a.png")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(body)
	body.Close()
	if string(data) != "png-bytes" || contentType != "image/png" {
		t.Fatalf("unexpected object %q %q", data, contentType)
	}

	if err := store.Delete(ctx, "drugs/weed/a.png"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := store.Get(ctx, "drugs/weed/a.png"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestPresignGet(t *testing.T) {
	store, _ := newFakeStore(t)

	url, err := store.PresignGet(context.Background(), "drugs/meth/b.jpg", 5*time.Minute)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.Contains(url, "/streetlab-test/drugs/meth/b.jpg") || !strings.Contains(url, "X-Amz-Signature=") {
		t.Fatalf("unexpected presigned url %s", url)
	}
}

func TestServiceCachesReads(t *testing.T) {
	store, fake := newFakeStore(t)
	svc := NewService(store)
	ctx := context.Background()

	if err := svc.Put(ctx, "drugs/lsd/c.webp", "image/webp", strings.NewReader("webp")); err != nil {
		t.Fatalf("put: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, _, err := svc.Image(ctx, "drugs/lsd/c.webp"); err != nil {
			t.Fatalf("image: %v", err)
		}
	}
	if fake.gets != 1 {
		t.Fatalf("expected one backend read, got %d", fake.gets)
	}

	now := time.Now().Add(time.Hour)
	svc.now = func() time.Time { return now }
	svc.CleanupCache()
	if len(svc.cache) != 0 {
		t.Fatalf("expected expired entry to be dropped")
	}
}

func TestHandlerGetImage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store, _ := newFakeStore(t)
	svc := NewService(store)
	if err := svc.Put(context.Background(), "drugs/weed/d.png", "image/png", strings.NewReader("img")); err != nil {
		t.Fatalf("put: %v", err)
	}

	r := gin.New()
	r.GET("/media/*key", NewHandler(svc, "drugs").GetImage)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/media/drugs/weed/d.png", nil))
	if w.Code != http.StatusOK || w.Body.String() != "img" {
		t.Fatalf("unexpected response %d %q", w.Code, w.Body.String())
	}
	if w.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected content type %s", w.Header().Get("Content-Type"))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/media/drugs/none.png", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	if err := svc.Put(context.Background(), "backups/players.sql", "text/plain", strings.NewReader("secret")); err != nil {
		t.Fatalf("put: %v", err)
	}
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/media/backups/players.sql", nil))
	if w.Code != http.StatusNotFound || strings.Contains(w.Body.String(), "secret") {
		t.Fatalf("keys outside the image folder must not be served, got %d %q", w.Code, w.Body.String())
	}
}
