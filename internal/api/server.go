/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package api exposes the debt ledger over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cobranza-ledger-go/internal/ledger"
	"cobranza-ledger-go/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const operatorHeader = "X-Operator"

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the ledger HTTP adapter.
type Server struct {
	ledger         *ledger.Service
	db             Pinger
	metricsEnabled bool
}

func NewServer(ledgerService *ledger.Service, db Pinger) *Server {
	return &Server{
		ledger: ledgerService,
		db:     db,
	}
}

// EnableMetrics mounts the Prometheus /metrics endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

func (s *Server) HealthCheck(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(operatorMiddleware)
	r.Use(accessLog)

	r.Get("/health", s.handleHealth)

	r.Route("/alliances", func(r chi.Router) {
		r.Get("/", s.handleListAlliances)
		r.Get("/{id}/balance", s.handleAllianceBalance)
		r.Get("/{id}/ledger", s.handleLedgerEntries)
		r.Get("/{id}/payments/unallocated", s.handleUnallocatedPayments)
	})

	r.Post("/smelting-records", s.handleRecordSmelting)

	r.Route("/receivables", func(r chi.Router) {
		r.Post("/", s.handleCreateReceivable)
		r.Get("/{id}", s.handleGetReceivable)
		r.Post("/{id}/settle", s.handleSettleReceivable)
		r.Get("/{id}/payments", s.handleReceivablePayments)
	})

	r.Route("/payments", func(r chi.Router) {
		r.Post("/", s.handleAllocatePayment)
		r.Post("/preview", s.handlePreviewAllocation)
	})

	r.Route("/credits", func(r chi.Router) {
		r.Get("/{id}", s.handleGetCredit)
		r.Post("/{id}/apply", s.handleApplyCredit)
	})

	r.Post("/reconcile", s.handleReconcile)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// operatorMiddleware attaches the request id and the X-Operator header to the
// request context so ledger logs and entry descriptions can name the operator.
func operatorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		oc := &models.OperatorContext{
			RequestId: middleware.GetReqID(r.Context()),
			Operator:  strings.TrimSpace(r.Header.Get(operatorHeader)),
			Source:    "http",
		}
		next.ServeHTTP(w, r.WithContext(models.WithOperatorContext(r.Context(), oc)))
	})
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("Failed to encode response", zap.Error(err))
	}
}

// decodeJSON reads a request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", errBadRequest, err)
	}
	return nil
}
