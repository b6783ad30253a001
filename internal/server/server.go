package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/backoffice/internal/commission"
	commissiondomain "github.com/smallbiznis/backoffice/internal/commission/domain"
	"github.com/smallbiznis/backoffice/internal/config"
	"github.com/smallbiznis/backoffice/internal/contract"
	contractdomain "github.com/smallbiznis/backoffice/internal/contract/domain"
	"github.com/smallbiznis/backoffice/internal/currency"
	currencydomain "github.com/smallbiznis/backoffice/internal/currency/domain"
	"github.com/smallbiznis/backoffice/internal/directory"
	directorydomain "github.com/smallbiznis/backoffice/internal/directory/domain"
	"github.com/smallbiznis/backoffice/internal/observability"
	obsmiddleware "github.com/smallbiznis/backoffice/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/backoffice/internal/observability/metrics"
	obstracing "github.com/smallbiznis/backoffice/internal/observability/tracing"
	"github.com/smallbiznis/backoffice/internal/prepay"
	prepaydomain "github.com/smallbiznis/backoffice/internal/prepay/domain"
	"github.com/smallbiznis/backoffice/internal/providers"
	"github.com/smallbiznis/backoffice/internal/providers/pdf"
	"github.com/smallbiznis/backoffice/internal/salary"
	salarydomain "github.com/smallbiznis/backoffice/internal/salary/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	currency.Module,
	contract.Module,
	prepay.Module,
	commission.Module,
	salary.Module,
	directory.Module,
	providers.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug: obsCfg.Debug(),
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
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

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	genID         *snowflake.Node
	currencySvc   currencydomain.Service
	contractSvc   contractdomain.Service
	prepaySvc     prepaydomain.Service
	commissionSvc commissiondomain.Service
	salarySvc     salarydomain.Service
	directorySvc  directorydomain.Service
	pdfProvider   pdf.Provider
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	GenID         *snowflake.Node
	CurrencySvc   currencydomain.Service
	ContractSvc   contractdomain.Service
	PrepaySvc     prepaydomain.Service
	CommissionSvc commissiondomain.Service
	SalarySvc     salarydomain.Service
	DirectorySvc  directorydomain.Service
	PDFProvider   pdf.Provider
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		genID:         p.GenID,
		currencySvc:   p.CurrencySvc,
		contractSvc:   p.ContractSvc,
		prepaySvc:     p.PrepaySvc,
		commissionSvc: p.CommissionSvc,
		salarySvc:     p.SalarySvc,
		directorySvc:  p.DirectorySvc,
		pdfProvider:   p.PDFProvider,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")

	// -------- Currencies --------
	api.GET("/currencies", s.ListCurrencies)
	api.PUT("/currencies/:code", s.UpsertCurrency)
	api.POST("/currencies/rates/sync", s.SyncFloatingRates)
	api.GET("/currencies/convert", s.ConvertCurrency)

	// -------- Commission rules --------
	api.GET("/commission/rules", s.ListCommissionRules)
	api.POST("/commission/rules", s.CreateCommissionRule)
	api.GET("/commission/rules/:id", s.GetCommissionRule)
	api.PUT("/commission/rules/:id", s.UpdateCommissionRule)
	api.POST("/commission/rules/:id/disable", s.DisableCommissionRule)

	// -------- Commission calculation --------
	api.GET("/commission/calculate", s.CalculateCommission)
	api.POST("/commission/calculate", s.CalculateCommissionBatch)
	api.GET("/commission/payouts/:user/:period", s.GetCommissionPayout)
	api.POST("/commission/adjustments", s.AddCommissionAdjustment)

	// -------- Prepay ledger --------
	api.GET("/customers/:id/prepay", s.GetPrepayHistory)
	api.POST("/customers/:id/prepay/adjust", s.AdjustPrepay)
	api.POST("/customers/:id/prepay/apply", s.ApplyPrepay)

	// -------- Salary --------
	api.PUT("/salary/monthly", s.SaveSalaryMonthly)
	api.GET("/salary/slips/:user/:period", s.GetSalarySlip)
	api.POST("/salary/slips/export", s.ExportSalarySlips)

	// -------- Contracts --------
	api.GET("/contracts", s.ListContracts)
	api.GET("/contracts/:id", s.GetContract)
	api.GET("/contracts/:id/installments", s.ListContractInstallments)
	api.GET("/receipts", s.ListReceipts)
	api.POST("/receipts", s.RecordReceipt)
}
