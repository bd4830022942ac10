package main

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"solestore/internal/auth"
	"solestore/internal/chatbot"
	"solestore/internal/domain/storage"
	"solestore/internal/images"
	"solestore/internal/mailer"
	"solestore/internal/ratelimiter"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type application struct {
	config        config
	store         *storage.Container
	logger        *zap.SugaredLogger
	mailer        mailer.Client
	authenticator auth.Authenticator
	images        images.Uploader // nil when Cloudinary is not configured
	chatbot       *chatbot.Bot
	rateLimiter   ratelimiter.Limiter
	wg            sync.WaitGroup
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   app.allowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	//Set a timeout value on the request context (ctx), that will signal through ctx.Done() that the request has timed out and further processing should be stopped
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", app.healthCheckHandler)
		r.With(app.BasicAuthMiddleware()).Get("/debug/vars", expvar.Handler().ServeHTTP)

		// Public routes
		r.Route("/authentication", func(r chi.Router) {
			r.Use(app.RateLimiterMiddleware)
			r.Post("/user", app.registerUserHandler)
			r.Post("/token", app.createTokenHandler)
			r.Post("/refresh", app.refreshTokenHandler)
		})

		r.With(app.RateLimiterMiddleware).Post("/chat", app.chatHandler)

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", app.listCategoriesHandler)
			r.Get("/tree", app.categoryTreeHandler)
			r.Get("/{ref}", app.getCategoryHandler)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", app.listProductsHandler)
			r.Get("/facets", app.productFacetsHandler)
			r.Get("/{ref}", app.getProductHandler)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)
			r.Get("/me", app.getMeHandler)
			r.Patch("/me", app.updateMeHandler)
			r.Post("/logout", app.logoutHandler)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)
			r.Get("/", app.getCartHandler)
			r.Delete("/", app.clearCartHandler)
			r.Post("/items", app.addCartItemHandler)
			r.Patch("/items/{itemID}", app.updateCartItemHandler)
			r.Delete("/items/{itemID}", app.removeCartItemHandler)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)
			r.Post("/", app.checkoutHandler)
			r.Get("/", app.listMyOrdersHandler)
			r.Get("/{orderID}", app.getMyOrderHandler)
			r.Post("/{orderID}/cancel", app.cancelMyOrderHandler)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)
			r.Use(app.RequireAdmin)

			r.Get("/dashboard", app.adminOverviewHandler)

			r.Route("/products", func(r chi.Router) {
				r.Get("/", app.adminListProductsHandler)
				r.Post("/", app.adminCreateProductHandler)
				r.Patch("/{productID}", app.adminUpdateProductHandler)
				r.Delete("/{productID}", app.adminDeleteProductHandler)
				r.Post("/{productID}/images", app.adminUploadProductImageHandler)
			})

			r.Route("/categories", func(r chi.Router) {
				r.Get("/", app.adminListCategoriesHandler)
				r.Post("/", app.adminCreateCategoryHandler)
				r.Patch("/{categoryID}", app.adminUpdateCategoryHandler)
				r.Delete("/{categoryID}", app.adminDeleteCategoryHandler)
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/", app.adminListUsersHandler)
				r.Get("/{userID}", app.adminGetUserHandler)
				r.Patch("/{userID}", app.adminUpdateUserHandler)
				r.Delete("/{userID}", app.adminDeleteUserHandler)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", app.adminListOrdersHandler)
				r.Get("/{orderID}", app.adminGetOrderHandler)
				r.Patch("/{orderID}/status", app.adminUpdateOrderStatusHandler)
			})
		})
	})
	return r
}

func (app *application) allowedOrigins() []string {
	if app.config.isDevelopment() || app.config.frontendURL == "" {
		return []string{"https://*", "http://*"}
	}
	return []string{app.config.frontendURL}
}

func (app *application) run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	// Implementing graceful shutdown
	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		err := srv.Shutdown(ctx)

		// let queued emails finish
		app.wg.Wait()
		shutdown <- err
	}()

	app.logger.Infow("server has started", "addr", app.config.addr, "env", app.config.env, "store", app.config.store.driver)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.addr, "env", app.config.env)

	return nil
}
