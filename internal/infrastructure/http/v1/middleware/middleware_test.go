package middleware

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"posledger/internal/core/apperror"
	appctx "posledger/internal/core/context"
	"posledger/pkg/logger"
)

type stubValidator map[string]*appctx.Actor

func (s stubValidator) ValidateToken(token string) (*appctx.Actor, error) {
	if a, ok := s[token]; ok {
		return a, nil
	}
	return nil, errors.New("bad token")
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

func newEngine(routes func(r *gin.Engine)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	UseJSONFieldNames()

	r := gin.New()
	r.Use(Recovery(), Trace(), Logger(logger.NewNop()), ErrorHandler())
	routes(r)
	return r
}

func do(t *testing.T, r http.Handler, method, path, token, body string) (*httptest.ResponseRecorder, errorBody) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var eb errorBody
	if w.Code >= 400 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &eb))
	}
	return w, eb
}

func TestAuth(t *testing.T) {
	validator := stubValidator{
		"cashier": {UserID: "u-1", Roles: []string{appctx.RoleCashier}},
		"manager": {UserID: "u-2", Roles: []string{appctx.RoleManager}},
	}
	r := newEngine(func(r *gin.Engine) {
		api := r.Group("/api", Auth(validator))
		api.GET("/me", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"user": appctx.GetActorID(c.Request.Context())})
		})
		api.POST("/cancel", RequireManager(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	})

	t.Run("missing header", func(t *testing.T) {
		w, body := do(t, r, http.MethodGet, "/api/me", "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, apperror.CodeUnauthorized, body.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		w, body := do(t, r, http.MethodGet, "/api/me", "forged", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "invalid token", body.Message)
	})

	t.Run("actor in context", func(t *testing.T) {
		w, _ := do(t, r, http.MethodGet, "/api/me", "cashier", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"user":"u-1"}`, w.Body.String())
	})

	t.Run("cashier cannot cancel", func(t *testing.T) {
		w, body := do(t, r, http.MethodPost, "/api/cancel", "cashier", "")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, apperror.CodeForbidden, body.Code)
	})

	t.Run("manager can cancel", func(t *testing.T) {
		w, _ := do(t, r, http.MethodPost, "/api/cancel", "manager", "")
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestErrorHandler_AppError(t *testing.T) {
	r := newEngine(func(r *gin.Engine) {
		r.GET("/stock", func(c *gin.Context) {
			_ = c.Error(apperror.NewInsufficientStock("p-1", "Coffee", 2, 5))
			c.Abort()
		})
	})

	w, body := do(t, r, http.MethodGet, "/stock", "", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, apperror.CodeInsufficientStock, body.Code)
	assert.EqualValues(t, 2, body.Details["available"])
	assert.EqualValues(t, 5, body.Details["requested"])
}

func TestErrorHandler_HidesInternalErrors(t *testing.T) {
	r := newEngine(func(r *gin.Engine) {
		r.GET("/boom", func(c *gin.Context) {
			_ = c.Error(errors.New("connection refused to 10.0.0.5"))
		})
	})

	w, body := do(t, r, http.MethodGet, "/boom", "", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperror.CodeInternal, body.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.5")
	assert.NotEmpty(t, body.Details["request_id"])
}

func TestErrorHandler_ValidationDetails(t *testing.T) {
	type request struct {
		Name     string `json:"name" binding:"required"`
		Quantity int64  `json:"quantity" binding:"gt=0"`
	}
	r := newEngine(func(r *gin.Engine) {
		r.POST("/items", func(c *gin.Context) {
			var req request
			if err := c.ShouldBindJSON(&req); err != nil {
				_ = c.Error(err).SetType(gin.ErrorTypeBind)
				c.Abort()
				return
			}
			c.Status(http.StatusCreated)
		})
	})

	w, body := do(t, r, http.MethodPost, "/items", "", `{"quantity":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeValidation, body.Code)
	assert.Equal(t, "name", body.Details["field"])

	fields, ok := body.Details["fields"].([]any)
	require.True(t, ok)
	assert.Len(t, fields, 2)

	w, body = do(t, r, http.MethodPost, "/items", "", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid request body", body.Message)
}

func TestRecovery(t *testing.T) {
	r := newEngine(func(r *gin.Engine) {
		r.GET("/panic", func(c *gin.Context) { panic("nil map") })
	})

	w, body := do(t, r, http.MethodGet, "/panic", "", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperror.CodeInternal, body.Code)
	assert.NotContains(t, w.Body.String(), "nil map")
	assert.Equal(t, w.Header().Get(HeaderRequestID), body.Details["request_id"])
}

func TestRecovery_ClientGoneWritesNothing(t *testing.T) {
	r := newEngine(func(r *gin.Engine) {
		r.GET("/receipt", func(c *gin.Context) {
			panic(&net.OpError{Op: "write", Err: os.NewSyscallError("write", syscall.EPIPE)})
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/receipt", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Empty(t, w.Body.String())
}

func TestRecovery_AbortHandlerPropagates(t *testing.T) {
	r := newEngine(func(r *gin.Engine) {
		r.GET("/abort", func(c *gin.Context) { panic(http.ErrAbortHandler) })
	})

	req := httptest.NewRequest(http.MethodGet, "/abort", nil)
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		r.ServeHTTP(httptest.NewRecorder(), req)
	})
}

func TestTrace_EchoesRequestID(t *testing.T) {
	r := newEngine(func(r *gin.Engine) {
		r.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, appctx.GetRequestID(c.Request.Context()))
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get(HeaderRequestID))
	assert.Equal(t, "req-42", w.Body.String())
	assert.NotEmpty(t, w.Header().Get(HeaderTraceID))
}

func TestTrace_AdoptsSpanTraceID(t *testing.T) {
	r := newEngine(func(r *gin.Engine) {
		r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	})

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req = req.WithContext(trace.ContextWithSpanContext(req.Context(), sc))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", w.Header().Get(HeaderTraceID))
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
}

func TestTrace_DropsOversizedRequestID(t *testing.T) {
	r := newEngine(func(r *gin.Engine) {
		r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	})

	long := strings.Repeat("x", 500)
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, long)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	got := w.Header().Get(HeaderRequestID)
	assert.NotEmpty(t, got)
	assert.NotEqual(t, long, got)
}
