package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	classic "github.com/balookrd/mcclassic"
	"github.com/balookrd/mcclassic/config"
	"github.com/balookrd/mcclassic/metrics"
	"github.com/balookrd/mcclassic/registry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type worldHandler struct {
	cs        *classic.ClientSession
	reg       *registry.Registry
	collector *metrics.Collector
}

func (h *worldHandler) ChangeBlock(x, y, z uint16, placed bool, holding uint8) {
	block := uint8(0)
	if placed {
		block = holding
	}
	h.reg.Each(func(_ uuid.UUID, e *registry.Entry) {
		e.Session.SetBlock(x, y, z, block)
	})
}

func (h *worldHandler) ChangeHeld(block uint8)                                             {}
func (h *worldHandler) ChangeLocation(loc classic.Location)                                {}
func (h *worldHandler) Click(uint8, uint8, uint16, uint16, uint8, classic.Position, uint8) {}
func (h *worldHandler) SubmitMessage(message string) {
	h.reg.SendAll(message)
}
func (h *worldHandler) Disconnect() {
	h.collector.SessionClosed()
}

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "c", "config.yaml", "config path")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reg := registry.New()
	collector := metrics.New(reg)

	if cfg.Metrics.Enable {
		metricsServer := metrics.NewServer(cfg.Metrics.Addr, collector)
		go func() {
			if err := metricsServer.Run(ctx); err != nil {
				sugar.Errorw("metrics server stopped", "error", err)
			}
		}()
		sugar.Infow("metrics listening", "addr", cfg.Metrics.Addr)
	}

	ln, err := net.Listen("tcp", cfg.Listen.Addr)
	if err != nil {
		log.Fatalf("listen %s: %v", cfg.Listen.Addr, err)
	}
	sugar.Infow("classic server listening", "addr", cfg.Listen.Addr)

	factory := func(cs *classic.ClientSession) classic.ClientSessionHandler {
		collector.SessionOpened()
		h := &worldHandler{cs: cs, reg: reg, collector: collector}
		cs.WorldInfo(cfg.World.Name, cfg.World.MOTD, false)
		return h
	}

	opts := []classic.ServeOption{classic.WithLogger(sugar), classic.WithRegistry(reg), classic.WithMetrics(collector)}
	if err := classic.Serve(ctx, ln, factory, opts...); err != nil {
		sugar.Errorw("serve stopped", "error", err)
	}
}
