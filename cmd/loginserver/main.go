// Command loginserver runs the Login protocol component (spec.md
// §4.7) standalone: it authenticates an account/password pair and
// hands back the character list, then closes the connection — no
// state survives past one request.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/opentile/server/internal/accountstore"
	"github.com/opentile/server/internal/config"
	"github.com/opentile/server/internal/loginproto"
	"github.com/opentile/server/internal/logging"
	"github.com/opentile/server/internal/motd"
	netacceptor "github.com/opentile/server/internal/net"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", "data/loginserver.cfg", "path to the login server config file")
	flag.Parse()

	cfg, err := config.LoadLogin(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New("loginserver", cfg.Logger.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	accounts, err := accountstore.Load(cfg.Login.AccountsFile)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	log.Info("accounts loaded", zap.String("file", cfg.Login.AccountsFile))

	motdProvider, err := motd.Load(cfg.Login.MOTD)
	if err != nil {
		return fmt.Errorf("load motd: %w", err)
	}

	handler := loginproto.New(accounts, motdProvider, log)
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	acceptor, err := netacceptor.NewAcceptor(addr, handler.Callbacks(), log)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	handler.BindAcceptor(acceptor)

	serveErr := make(chan error, 1)
	go func() { serveErr <- acceptor.Serve() }()
	log.Info("login server ready", zap.String("addr", acceptor.Addr().String()))

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		log.Info("shutting down", zap.String("signal", sig.String()))
		acceptor.Shutdown()
		return nil
	case err := <-serveErr:
		return fmt.Errorf("serve: %w", err)
	}
}
