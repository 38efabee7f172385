package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rafaelCarinha/tao-dividends/dividends/internal/domain"
	"github.com/rafaelCarinha/tao-dividends/dividends/internal/ledger"
)

type DividendQuerier interface {
	GetDividends(ctx context.Context, q domain.Query) (*domain.Result, error)
}

type DividendController struct {
	service DividendQuerier
	timeout time.Duration
	logger  *zap.Logger
}

func NewDividendController(service DividendQuerier, timeout time.Duration, logger *zap.Logger) *DividendController {
	return &DividendController{service: service, timeout: timeout, logger: logger}
}

func (c *DividendController) RegisterDividendRoutes(rg *gin.RouterGroup) {
	rg.GET("/tao_dividends", c.handleGetDividends)
}

func (c *DividendController) handleGetDividends(ctx *gin.Context) {
	q, err := parseQuery(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), c.timeout)
	defer cancel()
	result, err := c.service.GetDividends(reqCtx, q)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			c.logger.Error("dividends request failed", zap.Int("status", status), zap.Error(err))
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// parseQuery treats empty parameters as absent.
func parseQuery(ctx *gin.Context) (domain.Query, error) {
	var q domain.Query
	if raw := ctx.Query("netuid"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 16)
		if err != nil {
			return q, fmt.Errorf("%w: netuid must be an integer in [0, 65535]", domain.ErrInvalidQuery)
		}
		netuid := uint16(n)
		q.Netuid = &netuid
	}
	if raw := ctx.Query("hotkey"); raw != "" {
		q.Hotkey = &raw
	}
	if raw := ctx.Query("trade"); raw != "" {
		trade, err := strconv.ParseBool(raw)
		if err != nil {
			return q, fmt.Errorf("%w: trade must be a boolean", domain.ErrInvalidQuery)
		}
		q.Trade = trade
	}
	return q, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrLedgerUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrDispatchFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
