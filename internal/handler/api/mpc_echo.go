package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"ShadowTrade/internal/domain/models"
	"ShadowTrade/internal/domain/service"
	"ShadowTrade/internal/services/mpc"
	xhttp "ShadowTrade/pkg/http"
	xlogger "ShadowTrade/pkg/logger"
)

// MPCGatewayHandler exposes a ComputationNetwork over the submit/poll HTTP
// contract HTTPNetwork speaks. Bodies are ciphertext only and are written
// without the API envelope.
type MPCGatewayHandler struct {
	logger  *xlogger.Logger
	network service.ComputationNetwork
}

func NewMPCGatewayHandler(logger *xlogger.Logger, network service.ComputationNetwork) *MPCGatewayHandler {
	return &MPCGatewayHandler{logger: logger, network: network}
}

func (h *MPCGatewayHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/mpc")
	g.POST("/computations", h.Submit)
	g.GET("/computations/:id", h.Poll)
}

func (h *MPCGatewayHandler) Submit(c echo.Context) error {
	var payload models.EncryptedPayload
	if err := c.Bind(&payload); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("malformed payload"))
	}
	if payload.Schema == "" || len(payload.Ciphertext) == 0 {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("schema and ciphertext are required"))
	}
	id, err := h.network.Submit(c.Request().Context(), payload)
	if err != nil {
		h.logger.Warn("mpc submit error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("submit failed"))
	}
	return c.JSON(http.StatusAccepted, mpc.SubmitResponse{ID: id})
}

func (h *MPCGatewayHandler) Poll(c echo.Context) error {
	res, err := h.network.Poll(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundError("unknown computation"))
		}
		h.logger.Warn("mpc poll error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("poll failed"))
	}
	return c.JSON(http.StatusOK, res)
}
