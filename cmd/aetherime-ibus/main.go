//go:build linux

// aetherime-ibus is the Linux IBus front-end: grey inline completions and
// pinyin candidates backed by the aetherime prediction daemon.
//
// Installation:
//  1. Copy the binary to /usr/local/bin/aetherime-ibus
//  2. Install an IBus component file for engine "aetherime" (bus name
//     com.aetherime.IBus) in ~/.local/share/ibus/component/; this
//     repository does not ship one
//  3. Restart IBus: ibus restart
//  4. Enable via ibus-setup or the desktop keyboard settings
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/godbus/dbus/v5"

	"aetherime/internal/config"
	"aetherime/internal/frontend/ibus"
	"aetherime/internal/ghost"
	"aetherime/internal/lexicon"
	"aetherime/internal/logging"
	"aetherime/internal/transport"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "config file path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "aetherime-ibus: %v\n", err)
		os.Exit(1)
	}

	log, err := setupLogging(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "aetherime-ibus: logging: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	if err := run(cfg, log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func setupLogging(cfg *config.Config) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = level
	logCfg.Format = format
	logCfg.Component = "aetherime-ibus"
	if cfg.Logging.Output != "" {
		logCfg.Output = cfg.Logging.Output
	}
	if cfg.Logging.FilePath != "" {
		logCfg.FilePath = cfg.Logging.FilePath
	}

	log, err := logging.New(logCfg)
	if err != nil {
		return nil, err
	}
	logging.SetDefault(log)
	return log, nil
}

func run(cfg *config.Config, log *logging.Logger) error {
	endpoint := endpointFromConfig(cfg)
	client := transport.NewClient(endpoint)
	log.Info("daemon endpoint", "endpoint", endpoint.String(), "reachable", client.Ping())

	pinyin := lexicon.NewPinyin(cfg.Lexicon.DictPath, cfg.Lexicon.ModelPath)
	log.Info("pinyin backend", "status", pinyin.Status())

	if cfg.Lexicon.Watch {
		watcher, err := lexicon.NewWatcher(pinyin)
		if err != nil {
			log.Warn("dictionary watcher unavailable", "error", err)
		} else {
			defer watcher.Close()
		}
	}

	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("session bus: %w", err)
	}
	defer conn.Close()

	reply, err := conn.RequestName(ibus.BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken", ibus.BusName)
	}

	factory := ibus.NewFactory(conn, func() *ibus.Engine {
		session := ghost.NewSession(client)
		return ibus.NewEngine(conn, "", session, pinyin)
	})
	if err := factory.Export(); err != nil {
		return fmt.Errorf("export factory: %w", err)
	}

	log.Info("aetherime IBus engine started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
	return nil
}

func endpointFromConfig(cfg *config.Config) transport.Endpoint {
	if cfg.Daemon.Socket != "" {
		return transport.UnixEndpoint(cfg.Daemon.Socket)
	}
	return transport.TCPEndpoint(cfg.Daemon.Host, cfg.Daemon.Port)
}
