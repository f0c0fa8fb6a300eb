// Copyright The Parkwise Authors.
// SPDX-License-Identifier: Apache-2.0

// Package status serves a read-only HTTP view of a running car park.
package status

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	log "github.com/sirupsen/logrus"

	"go.parkwise.io/carpark/manager"
	"go.parkwise.io/carpark/simulator"
)

// Provider reports the state of the car park.
type Provider interface {
	Status() manager.Status
}

// SimulatorProvider reports the state of the simulated vehicles.
type SimulatorProvider interface {
	Stats() simulator.Stats
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	ErrorType    string `json:"errorType"`
	ErrorMessage string `json:"errorMessage"`
}

// NewRouter returns the status API:
//
//	GET /ping              liveness
//	GET /status            occupancy, revenue and level readings
//	GET /levels/{level}    one level, numbered from 1
//	GET /simulation        vehicle counters, when a simulator runs in process
func NewRouter(p Provider, sim SimulatorProvider) http.Handler {
	router := chi.NewRouter()
	router.Use(accessLog)

	router.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("pong")); err != nil {
			log.WithError(err).Warn("Failed to write 'pong' response")
		}
	})

	router.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, p.Status())
	})

	router.Get("/levels/{level}", func(w http.ResponseWriter, r *http.Request) {
		st := p.Status()
		n, err := strconv.Atoi(chi.URLParam(r, "level"))
		if err != nil || n < 1 || n > len(st.Levels) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, &ErrorResponse{
				ErrorType:    "Level.NotFound",
				ErrorMessage: "no level " + chi.URLParam(r, "level"),
			})
			return
		}
		render.JSON(w, r, st.Levels[n-1])
	})

	if sim != nil {
		router.Get("/simulation", func(w http.ResponseWriter, r *http.Request) {
			render.JSON(w, r, sim.Stats())
		})
	}
	return router
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.WithFields(log.Fields{"method": r.Method, "path": r.URL.Path}).Debug("Status request")
		next.ServeHTTP(w, r)
	})
}

// Serve listens on addr until ctx ends.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.WithField("addr", ln.Addr().String()).Info("Serving status")
	return serve(ctx, ln, handler)
}

func serve(ctx context.Context, ln net.Listener, handler http.Handler) error {
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Status server shutdown")
		}
	})
	defer stop()

	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
