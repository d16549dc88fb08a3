package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hydro-monitor/internal/alert"
	"hydro-monitor/internal/api"
	"hydro-monitor/internal/auth"
	"hydro-monitor/internal/config"
	"hydro-monitor/internal/logging"
	"hydro-monitor/internal/store"
)

func main() {
	var cfgDir string
	flag.StringVar(&cfgDir, "config", "config", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.Load(cfgDir)
	if err != nil {
		logging.Init(logging.ParseLevel("info"), false)
		logging.Component("server").Error("load config", "error", err)
		os.Exit(1)
	}
	logging.Init(logging.ParseLevel(cfg.Log.Level), cfg.Log.JSON)
	log := logging.Component("server")

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		log.Error("open store", "path", cfg.Database.Path, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	var rules []alert.Rule
	if cfg.Alert.RulesFile != "" {
		rules, err = alert.LoadRules(cfg.Alert.RulesFile)
		if err != nil {
			log.Error("load alert rules", "path", cfg.Alert.RulesFile, "error", err)
			os.Exit(1)
		}
		log.Info("loaded standing alert rules", "count", len(rules))
	}

	am := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiration, st)
	handler := api.NewHandler(st, am, rules, logging.Component("api"))

	srv := &http.Server{
		Addr:    cfg.Server.ListenAddress,
		Handler: api.NewRouter(handler, am),
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	log.Info("listening", "addr", cfg.Server.ListenAddress, "db", cfg.Database.Path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}
