package main

import (
	"flag"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/matheus3301/relay/internal/daemon"
)

func main() {
	configFlag := flag.String("config", "", "config file path (default: $RELAY_HOME/config.toml)")
	dataDirFlag := flag.String("data-dir", "", "data directory (overrides config)")
	httpFlag := flag.String("http", "", "HTTP listen address (overrides config)")
	socketFlag := flag.String("socket", "", "control socket path (overrides config)")
	flag.Parse()

	app := fx.New(
		daemon.Module(daemon.Params{
			ConfigPath: *configFlag,
			DataDir:    *dataDirFlag,
			HTTPAddr:   *httpFlag,
			SocketPath: *socketFlag,
		}),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
	)

	app.Run()
}
