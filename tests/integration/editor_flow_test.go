package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/linkinbio/internal/auth"
	"github.com/MarcoPoloResearchLab/linkinbio/internal/database"
	"github.com/MarcoPoloResearchLab/linkinbio/internal/metrics"
	"github.com/MarcoPoloResearchLab/linkinbio/internal/pagecache"
	"github.com/MarcoPoloResearchLab/linkinbio/internal/profile"
	"github.com/MarcoPoloResearchLab/linkinbio/internal/render"
	"github.com/MarcoPoloResearchLab/linkinbio/internal/server"
	"github.com/MarcoPoloResearchLab/linkinbio/internal/settings"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	signingSecret   = "integration-secret"
	cookieName      = "linkinbio_session"
	adminUsername   = "admin"
	adminPassword   = "correct horse battery staple"
	pageSlug        = "links"
	jsonContentType = "application/json"
)

type editorClient struct {
	testContext *testing.T
	baseURL     string
	http        *http.Client
}

func TestEditorPreviewSaveAndPublishFlow(testContext *testing.T) {
	gin.SetMode(gin.TestMode)

	db, err := database.OpenSQLite(filepath.Join(testContext.TempDir(), "linkinbio.db"), zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}
	store, err := settings.NewGormStore(settings.GormStoreConfig{Database: db, OptionName: profile.OptionName})
	if err != nil {
		testContext.Fatalf("failed to build store: %v", err)
	}
	registry := metrics.NewRegistry()
	settingsService, err := settings.NewService(settings.ServiceConfig{
		Store:    store,
		Renderer: render.NewRenderer(render.Config{}),
		Cache:    pagecache.New(pagecache.Config{}),
		Metrics:  registry,
		Page:     settings.PageConfig{Title: "My Links", Content: "<p>Welcome</p>" + render.Shortcode},
		Logger:   zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build settings service: %v", err)
	}

	passwordHash, err := auth.HashPassword(adminPassword)
	if err != nil {
		testContext.Fatalf("failed to hash password: %v", err)
	}
	credentials, err := auth.NewCredentials(auth.CredentialsConfig{Username: adminUsername, PasswordHash: passwordHash})
	if err != nil {
		testContext.Fatalf("failed to build credentials: %v", err)
	}
	tokenIssuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{SigningSecret: []byte(signingSecret)})
	if err != nil {
		testContext.Fatalf("failed to build token issuer: %v", err)
	}
	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(signingSecret),
		CookieName:    cookieName,
	})
	if err != nil {
		testContext.Fatalf("failed to build session validator: %v", err)
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Options:         settingsService,
		Credentials:     credentials,
		Tokens:          tokenIssuer,
		Sessions:        sessionValidator,
		Realtime:        server.NewRealtimeDispatcher(),
		Metrics:         registry.Handler(),
		PageSlug:        pageSlug,
		HeartbeatPeriod: time.Hour,
		Logger:          zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build handler: %v", err)
	}

	testServer := httptest.NewServer(handler)
	defer testServer.Close()

	jar, err := cookiejar.New(nil)
	if err != nil {
		testContext.Fatalf("failed to build cookie jar: %v", err)
	}
	client := &editorClient{
		testContext: testContext,
		baseURL:     testServer.URL,
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}

	initialPage := client.get("/" + pageSlug)
	if !strings.Contains(initialPage, "<p>Welcome</p>") || !strings.Contains(initialPage, ">"+profile.DefaultProfileTitle+"</h1>") {
		testContext.Fatalf("expected default page inside host content:\n%s", initialPage)
	}

	loginResponse, err := client.http.PostForm(testServer.URL+"/admin/login", url.Values{
		"username": {adminUsername},
		"password": {adminPassword},
	})
	if err != nil {
		testContext.Fatalf("login failed: %v", err)
	}
	_ = loginResponse.Body.Close()
	if loginResponse.StatusCode != http.StatusSeeOther {
		testContext.Fatalf("unexpected login status %d", loginResponse.StatusCode)
	}

	var optionsPayload struct {
		Options map[string]any    `json:"options"`
		Nonces  map[string]string `json:"nonces"`
	}
	if err := json.Unmarshal([]byte(client.get("/admin/api/options")), &optionsPayload); err != nil {
		testContext.Fatalf("failed to decode options: %v", err)
	}
	if optionsPayload.Options["profile_title"] != profile.DefaultProfileTitle {
		testContext.Fatalf("expected default options, got %#v", optionsPayload.Options)
	}

	previewBody, previewStatus := client.postJSON("/admin/api/preview", map[string]any{
		"nonce": optionsPayload.Nonces["preview"],
		"seq":   4,
		"options": map[string]any{
			"profile_title": "Draft <i>title</i>",
			"links":         []any{map[string]any{"title": "Draft link", "url": "javascript:alert(1)"}},
		},
	})
	if previewStatus != http.StatusOK {
		testContext.Fatalf("unexpected preview status %d: %s", previewStatus, previewBody)
	}
	var previewPayload struct {
		HTML string `json:"html"`
		Seq  int64  `json:"seq"`
	}
	if err := json.Unmarshal([]byte(previewBody), &previewPayload); err != nil {
		testContext.Fatalf("failed to decode preview: %v", err)
	}
	if previewPayload.Seq != 4 || !strings.Contains(previewPayload.HTML, ">Draft title</h1>") {
		testContext.Fatalf("unexpected preview payload %#v", previewPayload)
	}
	if strings.Contains(previewPayload.HTML, "javascript:") {
		testContext.Fatalf("expected unsafe url to be dropped:\n%s", previewPayload.HTML)
	}

	revision, err := store.Revision(context.Background())
	if err != nil || revision != "" {
		testContext.Fatalf("expected preview to leave the store empty, revision=%q err=%v", revision, err)
	}
	if strings.Contains(client.get("/"+pageSlug), "Draft") {
		testContext.Fatalf("expected public page to ignore the preview")
	}

	saveBody, saveStatus := client.postJSON("/admin/api/options", map[string]any{
		"nonce": optionsPayload.Nonces["save"],
		"options": map[string]any{
			"profile_title": "Jane",
			"links": []any{
				map[string]any{"title": "Blog", "url": "https://blog.example"},
				map[string]any{"title": "Shop", "url": "https://shop.example"},
			},
		},
	})
	if saveStatus != http.StatusOK {
		testContext.Fatalf("unexpected save status %d: %s", saveStatus, saveBody)
	}

	publishedPage := client.get("/" + pageSlug)
	if !strings.Contains(publishedPage, ">Jane</h1>") {
		testContext.Fatalf("expected saved title on public page:\n%s", publishedPage)
	}
	blog := strings.Index(publishedPage, ">Blog</a>")
	shop := strings.Index(publishedPage, ">Shop</a>")
	if blog < 0 || shop < 0 || blog > shop {
		testContext.Fatalf("expected saved links in order:\n%s", publishedPage)
	}

	metricsOutput := client.get("/metrics")
	if !strings.Contains(metricsOutput, `linkinbio_saves_total{outcome="ok"} 1`) {
		testContext.Fatalf("expected save to be counted:\n%s", metricsOutput)
	}
}

func (c *editorClient) get(path string) string {
	c.testContext.Helper()
	response, err := c.http.Get(c.baseURL + path)
	if err != nil {
		c.testContext.Fatalf("GET %s failed: %v", path, err)
	}
	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	if err != nil {
		c.testContext.Fatalf("failed to read %s: %v", path, err)
	}
	if response.StatusCode != http.StatusOK {
		c.testContext.Fatalf("GET %s returned %d: %s", path, response.StatusCode, body)
	}
	return string(body)
}

func (c *editorClient) postJSON(path string, payload map[string]any) (string, int) {
	c.testContext.Helper()
	encoded, err := json.Marshal(payload)
	if err != nil {
		c.testContext.Fatalf("failed to encode payload: %v", err)
	}
	response, err := c.http.Post(c.baseURL+path, jsonContentType, strings.NewReader(string(encoded)))
	if err != nil {
		c.testContext.Fatalf("POST %s failed: %v", path, err)
	}
	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	if err != nil {
		c.testContext.Fatalf("failed to read %s: %v", path, err)
	}
	return string(body), response.StatusCode
}
