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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	pbal "github.com/RobotResearchRepos/mcubelab-pbal"
	"github.com/RobotResearchRepos/mcubelab-pbal/internal/config"
	"github.com/RobotResearchRepos/mcubelab-pbal/internal/contactmode"
	"github.com/RobotResearchRepos/mcubelab-pbal/internal/estimate"
	"github.com/RobotResearchRepos/mcubelab-pbal/internal/transport"

	"go.viam.com/rdk/logging"
)

func main() {
	configPath := flag.String("config", "", "path to node YAML config file")
	flag.Parse()

	logger := logging.NewLogger("pbal")

	if *configPath == "" {
		logger.Fatal("-config flag is required")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal(err)
	}
	if len(cfg.ShapePrior) == 0 {
		logger.Fatal("config: shape_prior is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var trans pbal.Transport
	if cfg.ReplayMode() {
		bag, err := transport.OpenBag(logger, cfg)
		if err != nil {
			logger.Fatal(err)
		}
		defer bag.Close()
		trans = bag
		logger.Infof("replaying bag %s", cfg.Replay.DB)
	} else {
		live, err := transport.NewMQTT(logger, cfg.MQTT, cfg.RateHz)
		if err != nil {
			logger.Fatal(err)
		}
		defer live.Close()
		trans = live
		logger.Infof("connected to broker %s", cfg.MQTT.Broker)
	}

	est, err := estimate.New(estimate.DefaultConfig(), cfg.ShapePrior)
	if err != nil {
		logger.Fatal(err)
	}
	reasoner := contactmode.New(contactmode.DefaultConfig())
	reasoner.UpdatePreviousEstimate(est.InitialEstimate())

	if _, err := pbal.WaitForNecessaryData(ctx, trans, logger); err != nil {
		if errors.Is(err, pbal.ErrWarmupAborted) {
			return
		}
		logger.Fatal(err)
	}
	logger.Info("necessary data received, starting estimation loop")

	node := pbal.NewNode(logger, pbal.DefaultConfig(), trans, est, reasoner)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return node.Run(gctx)
	})
	if cfg.Metrics.Addr != "" {
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: promhttp.Handler()}
		group.Go(func() error {
			logger.Infof("serving metrics on %s", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		group.Go(func() error {
			<-gctx.Done()
			shutCtx, shutCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer shutCancel()
			return srv.Shutdown(shutCtx)
		})
	}
	if err := group.Wait(); err != nil {
		logger.Fatal(err)
	}
}
