// Command jshandler serves JavaScript request handlers configured in a TOML
// file (JSHANDLER_CONFIG, default jshandler.toml).
package main

import (
	"context"

	"github.com/cryguy/jshandler/internal/host"
	"github.com/cryguy/jshandler/internal/logging"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	// Builtin extensions, referenced from config as builtin:<name>.
	_ "github.com/cryguy/jshandler/extensions/sqlite"
	_ "github.com/cryguy/jshandler/extensions/useragent"
)

func main() {
	fx.New(
		fx.Provide(provideConfig),
		fx.Provide(provideLogger),
		fx.Provide(fx.Annotate(provideAccessLogger, fx.ResultTags(`name:"access"`))),
		fx.Provide(fx.Annotate(provideServer, fx.ParamTags(``, ``, `name:"access"`))),
		fx.Invoke(registerHooks),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	).Run()
}

func provideConfig() (host.Config, error) {
	return host.LoadConfig(host.EnvOr(host.EnvConfig, host.DefaultConfigPath))
}

func provideLogger(cfg host.Config) (*zap.Logger, error) {
	return logging.New("system.log", logging.Options{
		Dir:   cfg.LogDir,
		Level: logging.ParseLevel(cfg.LogLevel),
	})
}

func provideAccessLogger(cfg host.Config) (*zap.Logger, error) {
	return logging.New("http-access.log", logging.Options{Dir: cfg.LogDir})
}

func provideServer(cfg host.Config, log *zap.Logger, access *zap.Logger) (*host.Server, error) {
	return host.NewServer(cfg, log, []host.ServerOption{host.WithAccessLogger(access)})
}

func registerHooks(lc fx.Lifecycle, s *host.Server, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return s.Start()
		},
		OnStop: func(ctx context.Context) error {
			err := s.Shutdown(ctx)
			_ = log.Sync()
			return err
		},
	})
}
