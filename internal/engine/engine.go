package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/casbin/casbin/v2"
	"github.com/redis/go-redis/v9"
	"libraryhub.com/internal/auth"
	"libraryhub.com/internal/config"
	"libraryhub.com/internal/domain"
	"libraryhub.com/internal/event"
	"libraryhub.com/internal/infra"
	"libraryhub.com/internal/service"
)

// Engine 持有基础设施与全部业务服务，供 API 层和 CLI 共享：
// 1. 数据库、Redis（可选）、Casbin
// 2. 事件总线（日志 + Redis 发布）
// 3. 各业务服务
type Engine struct {
	cfg *config.Config

	// 基础设施
	db       *infra.Database
	rdb      *redis.Client
	tokens   *auth.TokenManager
	revoker  domain.TokenRevoker
	enforcer *casbin.Enforcer
	bus      *event.Bus

	// 业务服务
	authService      *service.AuthServiceImpl
	userService      *service.UserServiceImpl
	bookService      *service.BookServiceImpl
	authorService    *service.AuthorServiceImpl
	categoryService  *service.CategoryServiceImpl
	borrowService    *service.BorrowServiceImpl
	paymentService   *service.PaymentServiceImpl
	analyticsService *service.AnalyticsServiceImpl
}

// NewEngine 组装所有组件。rdb 为 nil 时关闭 Token 吊销和 Redis 事件发布。
func NewEngine(cfg *config.Config, db *infra.Database, rdb *redis.Client) (*Engine, error) {
	enforcer, err := auth.InitCasbin(db.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize casbin: %w", err)
	}

	bus := event.NewBus()
	bus.Subscribe(event.All, event.LogHandler)

	var revoker domain.TokenRevoker
	if rdb != nil {
		revoker = infra.NewRedisTokenStore(rdb)
		publisher := infra.NewRedisEventPublisher(rdb)
		bus.Subscribe(event.All, func(ctx context.Context, e event.Event) error {
			publisher.Publish(ctx, e.Type, e.Payload)
			return nil
		})
	} else {
		log.Println("Engine: Redis disabled, token revocation and event fan-out are off")
	}

	analyticsService, err := service.NewAnalyticsService(db.DB)
	if err != nil {
		return nil, err
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL())

	e := &Engine{
		cfg:      cfg,
		db:       db,
		rdb:      rdb,
		tokens:   tokens,
		revoker:  revoker,
		enforcer: enforcer,
		bus:      bus,

		authService:      service.NewAuthService(db.DB, tokens, cfg.Auth, bus),
		userService:      service.NewUserService(db.DB, bus),
		bookService:      service.NewBookService(db.DB),
		authorService:    service.NewAuthorService(db.DB),
		categoryService:  service.NewCategoryService(db.DB),
		borrowService:    service.NewBorrowService(db.DB, cfg.Library, bus),
		paymentService:   service.NewPaymentService(db.DB, bus),
		analyticsService: analyticsService,
	}

	log.Println("Engine: Initialized")
	return e, nil
}

// Stop 释放连接
func (e *Engine) Stop() {
	log.Println("Engine: Stopping...")
	if e.rdb != nil {
		if err := e.rdb.Close(); err != nil {
			log.Printf("Engine: Failed to close redis: %v", err)
		}
	}
	if err := e.db.Close(); err != nil {
		log.Printf("Engine: Failed to close database: %v", err)
	}
}

func (e *Engine) GetConfig() *config.Config            { return e.cfg }
func (e *Engine) GetDatabase() *infra.Database         { return e.db }
func (e *Engine) GetRedisClient() *redis.Client        { return e.rdb }
func (e *Engine) GetTokenManager() *auth.TokenManager  { return e.tokens }
func (e *Engine) GetEnforcer() *casbin.Enforcer        { return e.enforcer }
func (e *Engine) GetEventBus() *event.Bus              { return e.bus }
func (e *Engine) GetTokenRevoker() domain.TokenRevoker { return e.revoker }

func (e *Engine) GetAuthService() domain.AuthService           { return e.authService }
func (e *Engine) GetUserService() domain.UserService           { return e.userService }
func (e *Engine) GetBookService() domain.BookService           { return e.bookService }
func (e *Engine) GetAuthorService() domain.AuthorService       { return e.authorService }
func (e *Engine) GetCategoryService() domain.CategoryService   { return e.categoryService }
func (e *Engine) GetBorrowService() domain.BorrowService       { return e.borrowService }
func (e *Engine) GetPaymentService() domain.PaymentService     { return e.paymentService }
func (e *Engine) GetAnalyticsService() domain.AnalyticsService { return e.analyticsService }
