package main

import (
	"context"
	"net/http"
	"path"

	"github.com/bioepi/snapdb/internal/util"
	"github.com/bioepi/snapdb/logger"
	"github.com/bioepi/snapdb/pkg/config"
	mydb "github.com/bioepi/snapdb/pkg/db"
	"github.com/bioepi/snapdb/pkg/handler"
	"github.com/bioepi/snapdb/pkg/middle"
	"github.com/bioepi/snapdb/pkg/model"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

func main() {

	VERSION := "0.1.0"

	cfg, dotenvFound, err := config.Load()
	if err != nil {
		panic(err)
	}

	if err := logger.InitLogger(logger.ParseLevel(cfg.LogLevel)); err != nil {
		panic(err)
	}
	defer logger.Sync() // Make sure that the buffered is flushed.

	if !dotenvFound {
		logger.Warn("No .env found, using local environment")
	}

	if err := util.EnsureDir(path.Join(cfg.DataDir, "db")); err != nil {
		logger.Fatal("Cannot create data directory", zap.Error(err))
	}

	snapdbSqlite := path.Join(cfg.DataDir, "db/snapdb.db")

	db, err := mydb.Open(snapdbSqlite)
	if err != nil {
		logger.Fatal("Cannot open database", zap.Error(err))
	}
	if err := mydb.InitSchema(context.Background(), db); err != nil {
		logger.Fatal("Cannot initialise schema", zap.Error(err))
	}

	dbctx := &handler.DBContext{
		DB:        db,
		Clusterer: model.NewClusterer(db, cfg.ZScoreCutoff),
	}

	logger.Info("Start:", zap.String("Version", VERSION))
	logger.Info("Open database on", zap.String("DB_LOC", snapdbSqlite))

	mux := NewRouter(dbctx)

	// Apply middleware
	wrapped := middle.RequestIDMiddleware()(middle.LoggingMiddleware(logger.Base())(mux))

	logger.Info("Server starting", zap.String("addr", cfg.ListenAddr))
	if httpErr := http.ListenAndServe(cfg.ListenAddr, wrapped); httpErr != nil {
		logger.Error("Error starting server:", zap.String("error message", httpErr.Error()))
	}
}

func NewRouter(dbctx *handler.DBContext) *http.ServeMux {
	mux := http.NewServeMux()

	// Write path
	mux.HandleFunc("POST /api/v1/reference", dbctx.AddReferenceHandler)
	mux.HandleFunc("POST /api/v1/sample", dbctx.AddSampleHandler)
	mux.HandleFunc("POST /api/v1/sample/{name}/cluster", dbctx.ClusterSampleHandler)
	mux.HandleFunc("DELETE /api/v1/sample/{name}", dbctx.RemoveSampleHandler)

	// Read path
	mux.HandleFunc("GET /api/v1/sample/{name}/address", dbctx.GetSNPAddressHandler)
	mux.HandleFunc("GET /api/v1/sample/{name}/closest", dbctx.GetClosestHandler)
	mux.HandleFunc("GET /api/v1/sample/{name}/nearest", dbctx.GetNearestHandler)
	mux.HandleFunc("GET /api/v1/sample/{name}/below", dbctx.GetBelowThresholdHandler)
	mux.HandleFunc("GET /api/v1/sample/{name}/history", dbctx.GetHistoryHandler)

	mux.HandleFunc("GET /api/v1/health", handler.HealthCheck)

	return mux
}
