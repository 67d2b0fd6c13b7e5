package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/SscSPs/money_sync_app/internal/handlers"
	"github.com/SscSPs/money_sync_app/internal/middleware"
	"github.com/SscSPs/money_sync_app/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
)

const testJWTSecret = "test-secret-key-that-is-long-enough"

// handlerSuite wires a gin router behind the real auth middleware.
type handlerSuite struct {
	suite.Suite
	router *gin.Engine
	v1     *gin.RouterGroup
	token  string
}

func (s *handlerSuite) setupRouter() {
	gin.SetMode(gin.TestMode)
	s.router = gin.New()
	s.v1 = s.router.Group("/api/v1", middleware.AuthMiddleware(testJWTSecret))

	token, err := utils.GenerateJWT("owner", testJWTSecret, time.Hour, "mss-test")
	s.Require().NoError(err)
	s.token = token
}

// do serves a request carrying the owner token. body is JSON-encoded unless it is nil.
func (s *handlerSuite) do(method, url string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+s.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *handlerSuite) decode(w *httptest.ResponseRecorder, into any) {
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), into), w.Body.String())
}

func (s *handlerSuite) errorMessage(w *httptest.ResponseRecorder) string {
	var resp handlers.ErrorResponse
	s.decode(w, &resp)
	return resp.Error
}
