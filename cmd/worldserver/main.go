// Command worldserver runs the World protocol v7.1 component
// (spec.md §4.8) plus the game engine underneath it: the persistent
// per-connection session that handles movement, items, containers,
// and chat once a player has logged in.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/opentile/server/internal/accountstore"
	"github.com/opentile/server/internal/characterstore"
	"github.com/opentile/server/internal/config"
	"github.com/opentile/server/internal/container"
	"github.com/opentile/server/internal/engine"
	"github.com/opentile/server/internal/itemtable"
	"github.com/opentile/server/internal/logging"
	"github.com/opentile/server/internal/mapfile"
	"github.com/opentile/server/internal/motd"
	netacceptor "github.com/opentile/server/internal/net"
	"github.com/opentile/server/internal/worldproto"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", "data/worldserver.cfg", "path to the world server config file")
	flag.Parse()

	cfg, err := config.LoadWorld(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New("worldserver", cfg.Logger.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	itemTypes, err := itemtable.Load(cfg.World.ItemsFile)
	if err != nil {
		return fmt.Errorf("load item table: %w", err)
	}
	log.Info("item table loaded", zap.Int("count", len(itemTypes)))

	world, err := mapfile.Load(cfg.World.WorldFile, itemTypes)
	if err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	log.Info("map loaded", zap.String("file", cfg.World.WorldFile))

	accounts, err := accountstore.Load(cfg.World.DataFile)
	if err != nil {
		return fmt.Errorf("load characters: %w", err)
	}
	chars := characterstore.New(accounts)

	motdProvider, err := motd.Load(cfg.World.MOTD)
	if err != nil {
		return fmt.Errorf("load motd: %w", err)
	}

	containers := container.NewManager()
	queue := engine.NewQueue()
	eng := engine.New(world, containers, queue, chars, log)

	handler := worldproto.New(world, itemTypes, eng, accounts, motdProvider, log)
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	acceptor, err := netacceptor.NewAcceptor(addr, handler.Callbacks(), log)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	handler.BindAcceptor(acceptor)

	stop := make(chan struct{})
	engineDone := make(chan struct{})
	go func() {
		eng.Run(stop)
		close(engineDone)
	}()

	serveErr := make(chan error, 1)
	go func() { serveErr <- acceptor.Serve() }()
	log.Info("world server ready", zap.String("addr", acceptor.Addr().String()))

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		log.Info("shutting down", zap.String("signal", sig.String()))
		acceptor.Shutdown()
		close(stop)
		<-engineDone
		return nil
	case err := <-serveErr:
		close(stop)
		<-engineDone
		return fmt.Errorf("serve: %w", err)
	}
}
