package web

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jbaxter/correspond/internal/db"
	"github.com/jbaxter/correspond/internal/models"
	"github.com/jbaxter/correspond/internal/outbox"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

type testEnv struct {
	db     *gorm.DB
	queue  *outbox.MemoryQueue
	router *gin.Engine
	org    models.Organization
	user   models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gdb := openTestDB(t)
	queue := outbox.NewMemoryQueue(nil)
	srv := &Server{
		DB:             gdb,
		Queue:          queue,
		DefaultCountry: "FR",
		Log:            slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	org := models.Organization{Name: "Acme", Slug: "acme", Country: "FR"}
	if err := gdb.Create(&org).Error; err != nil {
		t.Fatalf("create org: %v", err)
	}
	number := models.PhoneNumber{Number: "+33700000001", Country: "FR", Active: true, OrganizationID: org.ID}
	if err := gdb.Create(&number).Error; err != nil {
		t.Fatalf("create number: %v", err)
	}
	phone := "+33612345678"
	orgID := org.ID
	user := models.User{PhoneNumber: &phone, Country: "FR", OrganizationID: &orgID}
	if err := gdb.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	return &testEnv{db: gdb, queue: queue, router: NewRouter(srv), org: org, user: user}
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) patchJSON(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPatch, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) postForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}
