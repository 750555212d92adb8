package app

import (
	"net/http"

	"github.com/abhissng/relay/adapters/gin/handler"
	"github.com/abhissng/relay/adapters/gin/middleware"
	"github.com/abhissng/relay/adapters/gin/request"
	"github.com/abhissng/relay/adapters/gin/server"
	"github.com/abhissng/relay/envelope"
	"github.com/abhissng/relay/restaurant"
	"github.com/abhissng/relay/result"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Routes served by the intake.
const (
	OrdersPath = "/orders"
	HealthPath = "/healthz"
)

// Receipt acknowledges a placed order.
type Receipt struct {
	Order         int    `json:"order"`
	CorrelationID string `json:"correlation_id"`
	MessageID     string `json:"message_id"`
}

// Health reports broker connectivity.
type Health struct {
	Status string `json:"status"`
	Broker string `json:"broker"`
}

type closable interface {
	IsClosed() bool
}

func (a *App) newServer() *server.Server {
	cfg := a.cfg.HTTP
	global := []gin.HandlerFunc{
		middleware.RequestIDMiddleware(a.Logger),
		middleware.GinRequestLogger(a.Logger, cfg.LogResponseBody),
	}
	if a.Metrics != nil {
		global = append(global, middleware.GinMiddleware(a.Metrics))
	}
	global = append(global, middleware.CompressionMiddleware())
	if cfg.RateLimit > 0 {
		a.limiter = middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst, cfg.RateTTL, a.Logger)
		global = append(global, a.limiter.Middleware())
	}

	srv := server.NewServer(
		server.WithPort(cfg.Port),
		server.WithLogger(a.Logger),
		server.WithGracefulTimeOut(cfg.GracefulTimeout),
		server.WithGlobalMiddleware(global...),
		server.WithRoutes(
			server.NewRouteConfig(http.MethodPost, OrdersPath,
				handler.ExecuteControllerHandler(a.Logger, http.StatusAccepted, a.placeOrder)),
			server.NewRouteConfig(http.MethodGet, HealthPath, a.health),
		),
	)
	if a.Metrics != nil {
		middleware.RegisterMetricsEndpoint(srv.Router(), a.Metrics)
	}
	return srv
}

func (a *App) placeOrder(c *gin.Context) result.Result[Receipt] {
	req := request.ExtractDataFromRequestBody[restaurant.PlaceOrderRequest](c)
	if !req.IsSuccess() {
		return result.NewFailure[Receipt](req.Error())
	}
	placed := a.Restaurant.Tables.PlaceOrder(c.Request.Context(), *req.ToValue())
	return result.Map(placed, func(env *envelope.Envelope) *Receipt {
		receipt := &Receipt{CorrelationID: env.CorrelationID(), MessageID: env.MessageID()}
		if body, err := envelope.BodyAs[restaurant.OrderPlaced](*env); err == nil {
			receipt.Order = body.Order
		}
		return receipt
	})
}

func (a *App) health(c *gin.Context) {
	h := Health{Status: "ok", Broker: a.cfg.Broker.Kind}
	if b, ok := a.Broker.(closable); ok && b.IsClosed() {
		h.Status = "unavailable"
		c.JSON(http.StatusServiceUnavailable, h)
		return
	}
	c.JSON(http.StatusOK, h)
}
