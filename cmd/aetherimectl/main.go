// aetherimectl is a diagnostic CLI for the aetherime prediction daemon.
//
// Usage:
//
//	aetherimectl ping
//	aetherimectl predict -prefix 今天 [-suffix ...] [-lang zh|en] [-mode fim|next]
//	aetherimectl status
package main

import (
	"flag"
	"fmt"
	"os"

	"aetherime/internal/config"
	"aetherime/internal/lexicon"
	"aetherime/internal/logging"
	"aetherime/internal/transport"
	"aetherime/internal/wire"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "config file path")
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "aetherimectl: %v\n", err)
		os.Exit(1)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Output = "discard"
	if log, err := logging.New(logCfg); err == nil {
		logging.SetDefault(log)
	}

	client := transport.NewClient(endpointFromConfig(cfg))

	switch flag.Arg(0) {
	case "ping":
		runPing(client)
	case "predict":
		runPredict(client, flag.Args()[1:])
	case "status":
		runStatus(cfg, client)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: aetherimectl [-config path] ping|predict|status")
}

func endpointFromConfig(cfg *config.Config) transport.Endpoint {
	if cfg.Daemon.Socket != "" {
		return transport.UnixEndpoint(cfg.Daemon.Socket)
	}
	return transport.TCPEndpoint(cfg.Daemon.Host, cfg.Daemon.Port)
}

func runPing(client *transport.Client) {
	if !client.Ping() {
		fmt.Printf("daemon at %s: unreachable\n", client.Endpoint())
		os.Exit(1)
	}
	fmt.Printf("daemon at %s: ok\n", client.Endpoint())
}

func runPredict(client *transport.Client, args []string) {
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	prefix := fs.String("prefix", "", "text before the caret")
	suffix := fs.String("suffix", "", "text after the caret")
	lang := fs.String("lang", "zh", "language: zh or en")
	mode := fs.String("mode", "fim", "mode: fim or next")
	maxTokens := fs.Int("max-tokens", 8, "maximum tokens to predict")
	fs.Parse(args)

	if *prefix == "" && *suffix == "" {
		fmt.Fprintln(os.Stderr, "predict: -prefix or -suffix required")
		os.Exit(2)
	}

	rsp, err := client.Predict(wire.PredictRequest{
		ID:              "ctl",
		Prefix:          *prefix,
		Suffix:          *suffix,
		Language:        wire.Language(*lang),
		Mode:            wire.Mode(*mode),
		MaxTokens:       *maxTokens,
		LatencyBudgetMs: 5000,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "predict: %v\n", err)
		os.Exit(1)
	}
	if rsp == nil {
		fmt.Println("no result")
		os.Exit(1)
	}

	fmt.Printf("ghost_text: %q\n", rsp.GhostText)
	fmt.Printf("confidence: %.2f\n", rsp.Confidence)
	fmt.Printf("source:     %s\n", rsp.Source)
	fmt.Printf("elapsed_ms: %d\n", rsp.ElapsedMs)
	for i, c := range rsp.Candidates {
		fmt.Printf("candidate[%d]: %s\n", i, c)
	}
}

func runStatus(cfg *config.Config, client *transport.Client) {
	fmt.Printf("endpoint:  %s\n", client.Endpoint())
	if client.Ping() {
		fmt.Println("daemon:    reachable")
	} else {
		fmt.Println("daemon:    unreachable")
	}

	pinyin := lexicon.NewPinyin(cfg.Lexicon.DictPath, cfg.Lexicon.ModelPath)
	if pinyin.Available() {
		fmt.Println("pinyin:    PY:libime")
	} else {
		fmt.Println("pinyin:    PY:fallback")
	}
	fmt.Printf("status:    %s\n", pinyin.Status())
}
