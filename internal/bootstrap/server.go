package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Domenick1991/travelbook/api"
	"github.com/Domenick1991/travelbook/config"
	"github.com/Domenick1991/travelbook/internal/service/reservation"
	"github.com/Domenick1991/travelbook/internal/service/resources"
	"github.com/gin-gonic/gin"
)

// Run starts the HTTP server and blocks until the context is cancelled
// or the server fails.
func Run(
	ctx context.Context,
	cfg *config.Config,
	coordinator reservation.Coordinator,
	resourceSvc resources.ResourceUseCase,
	statusSvc resources.StatusUseCase,
	reconciler resources.ReconcileUseCase,
) error {
	router := gin.Default()

	bookings := api.NewBookingHandler(coordinator)
	bookings.Register(router.Group("/bookings"))

	res := api.NewResourceHandler(resourceSvc, statusSvc, reconciler)
	res.Register(router.Group("/resources"))

	httpSrv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}
