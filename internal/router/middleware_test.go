package router

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bazaar-next/internal/config"
	"github.com/bazaar-next/internal/constants"
	"github.com/bazaar-next/internal/http/response"
	"github.com/bazaar-next/internal/models"
	"github.com/bazaar-next/internal/repository"
	"github.com/bazaar-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const testJWTSecret = "unit-test-secret-key-0123456789abcdef"

func setupMiddlewareTest(t *testing.T) (repository.UserRepository, *models.User) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:middleware_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	user := &models.User{Email: "jwt@example.com", DisplayName: "JWT", Status: constants.UserStatusActive}
	if err := user.SetPassword("test-password"); err != nil {
		t.Fatalf("set password failed: %v", err)
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	return repository.NewUserRepository(db), user
}

func authEngine(userRepo repository.UserRepository, optional bool) *gin.Engine {
	engine := gin.New()
	var mw gin.HandlerFunc
	if optional {
		mw = OptionalUserJWTMiddleware(testJWTSecret, userRepo)
	} else {
		mw = UserJWTAuthMiddleware(testJWTSecret, userRepo)
	}
	engine.GET("/probe", mw, func(c *gin.Context) {
		userID, _ := c.Get("user_id")
		if userID == nil {
			userID = uint(0)
		}
		c.JSON(http.StatusOK, gin.H{"user_id": userID})
	})
	return engine
}

func probe(engine *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)
	return recorder
}

// probeRejected 判断请求是否被中间件挡下。
// 响应统一走 HTTP 200 信封，业务码在 status_code 字段里。
func probeRejected(t *testing.T, engine *gin.Engine, token string) bool {
	t.Helper()
	recorder := probe(engine, token)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected http 200 envelope, got %d", recorder.Code)
	}
	var envelope struct {
		StatusCode int `json:"status_code"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope failed: %v", err)
	}
	switch envelope.StatusCode {
	case 0:
		return false
	case response.CodeUnauthorized:
		return true
	default:
		t.Fatalf("unexpected status_code %d", envelope.StatusCode)
		return true
	}
}

func TestUserJWTAuthMiddleware(t *testing.T) {
	userRepo, user := setupMiddlewareTest(t)
	engine := authEngine(userRepo, false)

	token, err := service.GenerateUserToken(testJWTSecret, user, 1)
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}

	if probeRejected(t, engine, token) {
		t.Fatalf("valid token rejected")
	}
	if !probeRejected(t, engine, "") {
		t.Fatalf("missing token accepted")
	}
	if !probeRejected(t, engine, "garbage.token.value") {
		t.Fatalf("garbage token accepted")
	}

	// 签名密钥不匹配
	otherToken, err := service.GenerateUserToken("another-secret-key-0123456789abcdef00", user, 1)
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}
	if !probeRejected(t, engine, otherToken) {
		t.Fatalf("token signed with other secret accepted")
	}

	// 被禁用的用户令牌失效
	models.DB.Model(&models.User{}).Where("id = ?", user.ID).Update("status", constants.UserStatusDisabled)
	if !probeRejected(t, engine, token) {
		t.Fatalf("disabled user token accepted")
	}
}

func TestOptionalUserJWTMiddleware(t *testing.T) {
	userRepo, user := setupMiddlewareTest(t)
	engine := authEngine(userRepo, true)

	// 游客放行
	if probeRejected(t, engine, "") {
		t.Fatalf("guest rejected")
	}
	// 坏令牌也放行（按游客处理）
	if probeRejected(t, engine, "garbage") {
		t.Fatalf("bad token rejected")
	}

	token, err := service.GenerateUserToken(testJWTSecret, user, 1)
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}
	if probeRejected(t, engine, token) {
		t.Fatalf("valid token rejected")
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(RequestIDMiddleware())
	engine.GET("/probe", func(c *gin.Context) {
		c.String(http.StatusOK, getRequestID(c))
	})

	// 自动生成
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)
	if recorder.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id header")
	}

	// 透传调用方的请求 ID
	req = httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set(requestIDHeader, "req-fixed-1")
	recorder = httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)
	if recorder.Header().Get(requestIDHeader) != "req-fixed-1" {
		t.Fatalf("expected request id passthrough, got %s", recorder.Header().Get(requestIDHeader))
	}
	if recorder.Body.String() != "req-fixed-1" {
		t.Fatalf("expected request id in context, got %s", recorder.Body.String())
	}
}

func TestCORSMiddlewareAllowedOrigins(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(CORSMiddleware(config.CORSConfig{
		AllowedOrigins: []string{"https://shop.example.com"},
	}))
	engine.GET("/probe", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)
	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "https://shop.example.com" {
		t.Fatalf("expected origin echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	recorder = httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)
	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no CORS header for unknown origin, got %q", got)
	}

	// 预检直接 204
	req = httptest.NewRequest(http.MethodOptions, "/probe", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	recorder = httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", recorder.Code)
	}
}
