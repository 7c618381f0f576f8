package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"strconv"

	"github.com/Fi44er/tradecycle/internal/apperr"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func errorBody(e *apperr.Error) gin.H {
	return gin.H{"detail": e.Message, "kind": e.Kind}
}

// fail writes err as {"detail", "kind"}. Unclassified errors are logged and
// reported without their text.
func (s *Server) fail(c *gin.Context, err error) {
	e := apperr.From(err)
	if e.Kind == apperr.KindInternal {
		s.logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(e.Status, errorBody(e))
}

func (s *Server) abort(c *gin.Context, err error) {
	s.fail(c, err)
	c.Abort()
}

// bind decodes a JSON or form body into dst. An empty body is not an error.
func bind(c *gin.Context, dst any) error {
	if err := c.ShouldBind(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Validation("invalid request body: %v", err)
	}
	return nil
}

func parseAmount(field string, raw json.Number) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, apperr.Validation("%s is required", field)
	}
	amount, err := decimal.NewFromString(string(raw))
	if err != nil {
		return decimal.Zero, apperr.Validation("%s must be a number", field)
	}
	return amount, nil
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("%s must be an integer", key)
	}
	return n, nil
}
