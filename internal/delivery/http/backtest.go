package http

import (
	"errors"
	"net/http"

	"backtest-api/internal/dto"
	"backtest-api/internal/model"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

func (h *HttpAPIHandler) SetupBacktest(base *echo.Group) {
	backtestGroup := base.Group("/backtest")
	backtestGroup.GET("/parameters", h.getParameters)
	backtestGroup.POST("/run", h.runBacktest)
	backtestGroup.GET("/:id", h.getBacktest)
	backtestGroup.GET("/:id/equity-curve", h.getEquityCurve)
}

func (h *HttpAPIHandler) getParameters(c echo.Context) error {
	return c.JSON(http.StatusOK, dto.ParametersResponse{
		StrategyParams: h.service.BacktestService.DefaultParameters(),
	})
}

// runBacktest persists a queued job and hands it to the worker pool; the
// response never waits for execution.
func (h *HttpAPIHandler) runBacktest(c echo.Context) error {
	ctx := c.Request().Context()

	req := new(dto.BacktestRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid request body"))
	}

	if err := h.validator.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}

	job, err := h.service.BacktestService.CreateJob(ctx, req)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, dto.NewBaseResponse(http.StatusInternalServerError, "failed to create backtest job", nil))
	}

	h.service.BacktestService.Schedule(job.ID, req)

	return c.JSON(http.StatusOK, jobResponse(job))
}

func (h *HttpAPIHandler) getBacktest(c echo.Context) error {
	ctx := c.Request().Context()

	job, err := h.service.BacktestService.GetJob(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, dto.NewNotFoundResponse("backtest not found"))
		}
		return c.JSON(http.StatusInternalServerError, dto.NewBaseResponse(http.StatusInternalServerError, "failed to get backtest job", nil))
	}

	return c.JSON(http.StatusOK, jobResponse(job))
}

func (h *HttpAPIHandler) getEquityCurve(c echo.Context) error {
	ctx := c.Request().Context()

	curve, err := h.service.BacktestService.GetEquityCurve(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, dto.NewNotFoundResponse("backtest not found"))
		}
		return c.JSON(http.StatusInternalServerError, dto.NewBaseResponse(http.StatusInternalServerError, "failed to get equity curve", nil))
	}

	return c.JSON(http.StatusOK, curve)
}

func jobResponse(job *model.BacktestJob) dto.BacktestResponse {
	resp := dto.BacktestResponse{
		ID:        job.ID,
		Status:    string(job.Status),
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
	if job.Error.Valid {
		errMsg := job.Error.String
		resp.Error = &errMsg
	}
	if len(job.Result) > 0 {
		resp.Result = []byte(job.Result)
	}
	return resp
}
