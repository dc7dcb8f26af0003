package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/agencydesk/internal/billing"
	billingdomain "github.com/smallbiznis/agencydesk/internal/billing/domain"
	"github.com/smallbiznis/agencydesk/internal/client"
	clientdomain "github.com/smallbiznis/agencydesk/internal/client/domain"
	"github.com/smallbiznis/agencydesk/internal/config"
	"github.com/smallbiznis/agencydesk/internal/expense"
	expensedomain "github.com/smallbiznis/agencydesk/internal/expense/domain"
	"github.com/smallbiznis/agencydesk/internal/observability"
	obsmiddleware "github.com/smallbiznis/agencydesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/agencydesk/internal/observability/metrics"
	obstracing "github.com/smallbiznis/agencydesk/internal/observability/tracing"
	"github.com/smallbiznis/agencydesk/internal/payment"
	paymentdomain "github.com/smallbiznis/agencydesk/internal/payment/domain"
	"github.com/smallbiznis/agencydesk/internal/postledger"
	postledgerdomain "github.com/smallbiznis/agencydesk/internal/postledger/domain"
	"github.com/smallbiznis/agencydesk/internal/ratelimit"
	"github.com/smallbiznis/agencydesk/internal/scheduler"
	"github.com/smallbiznis/agencydesk/internal/team"
	teamdomain "github.com/smallbiznis/agencydesk/internal/team/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	client.Module,
	billing.Module,
	payment.Module,
	postledger.Module,
	team.Module,
	expense.Module,
	ratelimit.Module,
	scheduler.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
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

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
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
	engine *gin.Engine
	cfg    config.Config
	db     *gorm.DB

	clientSvc     clientdomain.Service
	billingSvc    billingdomain.Service
	paymentSvc    paymentdomain.Service
	postledgerSvc postledgerdomain.Service
	teamSvc       teamdomain.Service
	expenseSvc    expensedomain.Service
}

type ServerParams struct {
	fx.In

	Gin *gin.Engine
	Cfg config.Config
	DB  *gorm.DB

	ClientSvc     clientdomain.Service
	BillingSvc    billingdomain.Service
	PaymentSvc    paymentdomain.Service
	PostledgerSvc postledgerdomain.Service
	TeamSvc       teamdomain.Service
	ExpenseSvc    expensedomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine: p.Gin,
		cfg:    p.Cfg,
		db:     p.DB,

		clientSvc:     p.ClientSvc,
		billingSvc:    p.BillingSvc,
		paymentSvc:    p.PaymentSvc,
		postledgerSvc: p.PostledgerSvc,
		teamSvc:       p.TeamSvc,
		expenseSvc:    p.ExpenseSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Clients --------
	api.GET("/clients", s.ListClients)
	api.POST("/clients", s.CreateClient)
	api.GET("/clients/upcoming", s.UpcomingClients)
	api.GET("/clients/:id", s.GetClientByID)
	api.PATCH("/clients/:id", s.UpdateClient)
	api.POST("/clients/:id/archive", s.ArchiveClient)
	api.POST("/clients/:id/unarchive", s.UnarchiveClient)
	api.GET("/clients/:id/tier", s.GetClientTier)
	api.POST("/clients/:id/reconcile", s.ReconcileClient)

	// -------- Payments --------
	api.GET("/payments", s.ListPayments)
	api.POST("/payments", s.MarkPaid)

	// -------- Post counts --------
	api.GET("/clients/:id/posts", s.ListPostCounts)
	api.POST("/clients/:id/posts/increment", s.IncrementPostCount)
	api.POST("/clients/:id/posts/decrement", s.DecrementPostCount)
	api.PUT("/clients/:id/posts", s.SetPostCount)
	api.GET("/clients/:id/posts/amount", s.PostAmountDue)
	api.POST("/clients/:id/posts/settle", s.SettlePostMonth)

	// -------- Team --------
	api.GET("/team", s.ListTeamMembers)
	api.POST("/team", s.CreateTeamMember)
	api.GET("/team/payroll", s.UpcomingPayroll)
	api.GET("/team/:id", s.GetTeamMemberByID)
	api.PATCH("/team/:id", s.UpdateTeamMember)
	api.DELETE("/team/:id", s.DeleteTeamMember)

	// -------- Expenses --------
	api.GET("/expenses", s.ListExpenses)
	api.POST("/expenses", s.CreateExpense)
	api.DELETE("/expenses/:id", s.DeleteExpense)

	// -------- Dashboard --------
	api.GET("/summary", s.DashboardSummary)
}
