// Package middleware provides HTTP middleware components.
package middleware

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"syscall"

	"github.com/gin-gonic/gin"

	"posledger/internal/core/apperror"
	"posledger/pkg/logger"
)

// Recovery turns a handler panic into a 500 carrying the request id.
// The panic value and stack are logged, never returned to the client.
// http.ErrAbortHandler is re-raised so net/http can drop the connection,
// and a client that hung up gets no response at all.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			ctx := c.Request.Context()
			if clientGone(rec) {
				logger.Warn(ctx, "client connection lost",
					"method", c.Request.Method,
					"route", c.FullPath(),
					"error", rec,
				)
				c.Abort()
				return
			}

			logger.Error(ctx, "handler panicked",
				"method", c.Request.Method,
				"route", c.FullPath(),
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			_ = c.Error(apperror.NewInternal(fmt.Errorf("handler panic: %v", rec)))
			c.Abort()
			writeError(c)
		}()
		c.Next()
	}
}

// clientGone reports a write to a connection the client already closed.
func clientGone(rec any) bool {
	err, ok := rec.(error)
	if !ok {
		return false
	}
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return false
	}
	var sysErr *os.SyscallError
	if errors.As(opErr, &sysErr) {
		return errors.Is(sysErr.Err, syscall.EPIPE) || errors.Is(sysErr.Err, syscall.ECONNRESET)
	}
	return false
}
