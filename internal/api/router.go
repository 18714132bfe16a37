package api

import (
	"github.com/gofiber/fiber/v2"
	"libraryhub.com/internal/api/middleware"
	"libraryhub.com/internal/engine"
)

// Router 负责注册所有路由
type Router struct {
	app    *fiber.App
	eng    *engine.Engine
	router fiber.Router // protected /api group
}

func NewRouter(app *fiber.App, eng *engine.Engine) *Router {
	return &Router{
		app: app,
		eng: eng,
	}
}

// RegisterRoutes 注册所有业务路由
func (r *Router) RegisterRoutes() {
	rules := r.eng.GetConfig().Library

	// 1. 初始化各个 Handler
	authHandler := NewAuthHandler(r.eng.GetAuthService(), r.eng.GetUserService(), r.eng.GetTokenRevoker())
	userHandler := NewUserHandler(r.eng.GetUserService(), rules)
	bookHandler := NewBookHandler(r.eng.GetBookService(), rules)
	authorHandler := NewAuthorHandler(r.eng.GetAuthorService(), rules)
	categoryHandler := NewCategoryHandler(r.eng.GetCategoryService(), rules)
	borrowHandler := NewBorrowHandler(r.eng.GetBorrowService(), rules)
	paymentHandler := NewPaymentHandler(r.eng.GetPaymentService(), rules)
	analyticsHandler := NewAnalyticsHandler(r.eng.GetAnalyticsService())

	// 2. 注册公开路由 (Public)，必须先于受保护分组注册
	r.app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "ok",
			"message": "Service is healthy",
		})
	})

	r.app.Post("/api/auth/register", authHandler.Register)
	r.app.Post("/api/auth/register-admin", authHandler.RegisterAdmin)
	r.app.Post("/api/auth/login", authHandler.Login)

	r.app.Get("/api/books", bookHandler.GetBooks)
	r.app.Get("/api/books/:id", bookHandler.GetBook)
	r.app.Get("/api/authors", authorHandler.GetAuthors)
	r.app.Get("/api/authors/:id", authorHandler.GetAuthor)
	r.app.Get("/api/categories", categoryHandler.GetCategories)
	r.app.Get("/api/categories/:id", categoryHandler.GetCategory)

	// 3. 注册受保护的 API 路由 (JWT + Casbin)
	r.router = r.app.Group("/api",
		middleware.Authenticate(r.eng.GetTokenManager(), r.eng.GetTokenRevoker(), r.eng.GetAuthService()),
		middleware.Authorize(r.eng.GetEnforcer()),
	)

	r.registerAuthRoutes(authHandler)
	r.registerUserRoutes(userHandler)
	r.registerCatalogRoutes(bookHandler, authorHandler, categoryHandler)
	r.registerBorrowRoutes(borrowHandler)
	r.registerPaymentRoutes(paymentHandler)
	r.registerAnalyticsRoutes(analyticsHandler)
}

func (r *Router) registerAuthRoutes(h *AuthHandler) {
	r.router.Get("/auth/me", h.GetMe)
	r.router.Post("/auth/logout", h.Logout)
}

func (r *Router) registerUserRoutes(h *UserHandler) {
	users := r.router.Group("/users")
	users.Get("/me", h.GetMe)
	users.Get("/me/borrowing-stats", h.GetMyBorrowingStats)

	users.Get("/", h.GetUsers)
	users.Get("/:id", h.GetUser)
	users.Patch("/:id", h.UpdateUser)
	users.Delete("/:id", h.DeleteUser)
	users.Get("/:id/borrowing-stats", h.GetBorrowingStats)
	users.Post("/:id/toggle-status", h.ToggleStatus)
	users.Post("/:id/verify", h.VerifyUser)
}

func (r *Router) registerCatalogRoutes(books *BookHandler, authors *AuthorHandler, categories *CategoryHandler) {
	r.router.Post("/books", books.CreateBook)
	r.router.Put("/books/:id", books.UpdateBook)
	r.router.Delete("/books/:id", books.DeleteBook)

	r.router.Post("/authors", authors.CreateAuthor)
	r.router.Put("/authors/:id", authors.UpdateAuthor)
	r.router.Delete("/authors/:id", authors.DeleteAuthor)

	r.router.Post("/categories", categories.CreateCategory)
	r.router.Put("/categories/:id", categories.UpdateCategory)
	r.router.Delete("/categories/:id", categories.DeleteCategory)
}

func (r *Router) registerBorrowRoutes(h *BorrowHandler) {
	borrow := r.router.Group("/borrow")
	borrow.Post("/", h.BorrowBook)
	borrow.Post("/return", h.ReturnBook)
	borrow.Get("/history", h.GetHistory)
}

func (r *Router) registerPaymentRoutes(h *PaymentHandler) {
	payments := r.router.Group("/payments")
	payments.Post("/", h.CreatePayment)
	payments.Get("/history", h.GetPaymentHistory)
	payments.Get("/stats", h.GetPaymentStats)
	payments.Get("/stats/:userId", h.GetUserPaymentStats)
	payments.Get("/export", h.ExportPaymentHistory)
	payments.Get("/:id/invoice", h.GenerateInvoice)
	payments.Patch("/:id/status", h.UpdatePaymentStatus)
}

func (r *Router) registerAnalyticsRoutes(h *AnalyticsHandler) {
	analytics := r.router.Group("/analytics")
	analytics.Get("/books/most-borrowed", h.GetMostBorrowedBooks)
	analytics.Get("/reports/monthly/:year/:month", h.GetMonthlyReport)
	analytics.Get("/users/activity", h.GetUserActivity)
	analytics.Get("/revenue", h.GetRevenueStats)
}
