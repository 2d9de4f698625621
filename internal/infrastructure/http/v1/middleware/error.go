package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"posledger/internal/core/apperror"
	"posledger/pkg/logger"
)

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		writeError(c)
	}
}

// writeError renders the last registered error unless a response is already written.
func writeError(c *gin.Context) {
	if len(c.Errors) == 0 || c.Writer.Written() {
		return
	}

	last := c.Errors.Last()
	appErr := toAppError(last)

	if appErr.HTTPStatus >= http.StatusInternalServerError {
		logger.Error(c.Request.Context(), "request failed",
			"code", appErr.Code,
			"error", last.Err,
		)
		if appErr.Details == nil {
			appErr.WithDetail("request_id", c.GetString("request_id"))
		}
	} else if appErr.Err != nil {
		logger.Warn(c.Request.Context(), "request error",
			"code", appErr.Code,
			"cause", appErr.Err,
		)
	}

	c.JSON(appErr.HTTPStatus, gin.H{
		"code":    appErr.Code,
		"message": appErr.Message,
		"details": appErr.Details,
	})
}

func toAppError(ginErr *gin.Error) *apperror.AppError {
	err := ginErr.Err

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return validationError(verrs)
	}
	if ginErr.IsType(gin.ErrorTypeBind) {
		return apperror.NewValidation("invalid request body").WithDetail("error", err.Error())
	}
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr
	}
	return apperror.NewInternal(err)
}

// validationError lists every failed field with the rule it broke.
func validationError(verrs validator.ValidationErrors) *apperror.AppError {
	fields := make([]map[string]string, 0, len(verrs))
	for _, fe := range verrs {
		f := map[string]string{
			"field": jsonPath(fe.Namespace()),
			"rule":  fe.Tag(),
		}
		if fe.Param() != "" {
			f["param"] = fe.Param()
		}
		fields = append(fields, f)
	}

	appErr := apperror.NewValidation("request validation failed").WithDetail("fields", fields)
	if len(fields) > 0 {
		appErr.WithDetail("field", fields[0]["field"])
	}
	return appErr
}

// jsonPath drops the struct name from a validator namespace: "CreateInvoice.items[0].quantity" -> "items[0].quantity".
func jsonPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

// UseJSONFieldNames makes validation errors report json field names.
func UseJSONFieldNames() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
}
