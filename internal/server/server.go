// Package server exposes the billing engine's HTTP surface: invoice
// lifecycle operations, gateway callbacks, store billing-info management,
// and merchant accounts.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	billinginfodomain "github.com/tradecove/billing/internal/billinginfo/domain"
	"github.com/tradecove/billing/internal/config"
	invoicedomain "github.com/tradecove/billing/internal/invoice/domain"
	merchantdomain "github.com/tradecove/billing/internal/merchant/domain"
	"github.com/tradecove/billing/internal/stores"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log.Named("http")))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	invoiceSvc  invoicedomain.Service
	billingSvc  billinginfodomain.Service
	merchantSvc merchantdomain.Repository
	storesSvc   stores.Client
}

type ServerParams struct {
	fx.In

	Engine      *gin.Engine
	Config      config.Config
	InvoiceSvc  invoicedomain.Service
	BillingSvc  billinginfodomain.Service
	MerchantSvc merchantdomain.Repository
	StoresSvc   stores.Client
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:      p.Engine,
		cfg:         p.Config,
		invoiceSvc:  p.InvoiceSvc,
		billingSvc:  p.BillingSvc,
		merchantSvc: p.MerchantSvc,
		storesSvc:   p.StoresSvc,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/invoices", s.createInvoice)
	v1.GET("/invoices/:id", s.getInvoice)
	v1.GET("/invoices/:id/orders", s.getInvoiceOrders)
	v1.GET("/orders/:order_id/invoice", s.getInvoiceByOrder)
	v1.GET("/orders/:order_id/fees", s.getOrderFees)
	v1.POST("/invoices/:id/pay", s.payInvoice)
	v1.POST("/invoices/:id/settle", s.settleInvoice)
	v1.POST("/invoices/:id/decline", s.declineInvoice)

	v1.POST("/callbacks/gateway", s.gatewayCallback)

	v1.GET("/stores/:store_id/billing", s.getStoreBilling)
	v1.PUT("/stores/:store_id/billing/russia", s.putRussiaBillingInfo)
	v1.PUT("/stores/:store_id/billing/international", s.putInternationalBillingInfo)

	v1.POST("/merchants", s.createMerchant)

	v1.GET("/rates/:currency", s.getExchangeRates)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
