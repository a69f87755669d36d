// Package agent assembles the HoG agent: logging, the peer state store, the
// config watcher, the GATT transport and the HoG service.
package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blehid/hog-agent/internal/configsvc"
	"github.com/blehid/hog-agent/internal/hogsvc"
	"github.com/blehid/hog-agent/internal/hogsvc/loopback"
	"github.com/dgraph-io/badger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

type Agent struct {
	config Config

	db        *badger.DB
	configSvc *configsvc.Service
	hogSvc    *hogsvc.Service
}

func NewAgent(config Config) (*Agent, error) {
	loggerConfig := zap.NewDevelopmentConfig()
	loggerConfig.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000000")
	loggerConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(config.HogConfig), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	dbOptions := badger.DefaultOptions(filepath.Join(config.DataDir, "db"))
	dbOptions.Logger = &badgerLogger{l: logger.Named("badger")}

	db, err := badger.Open(dbOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	configSvc := configsvc.New(logger.Named("config"))
	// TODO: replace the loopback transport once a BlueZ-backed transport
	// lands; the service boundary is already shaped for it.
	transport := loopback.New(logger.Named("transport"))
	hogSvc := hogsvc.New(logger.Named("hog"), db, hogsvc.DefaultConfig,
		hogsvc.WithTransport(transport),
		hogsvc.WithConfigWatch(configSvc, config.HogConfig),
	)

	return &Agent{
		config:    config,
		db:        db,
		configSvc: configSvc,
		hogSvc:    hogSvc,
	}, nil
}

func (a *Agent) Close() error {
	return a.db.Close()
}

type badgerLogger struct {
	l *zap.Logger
}

func (l badgerLogger) Errorf(msg string, args ...any) {
	l.l.Error(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Warningf(msg string, args ...any) {
	l.l.Warn(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Infof(msg string, args ...any) {
	l.l.Info(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Debugf(msg string, args ...any) {
	l.l.Debug(fmt.Sprintf(msg, args...))
}

// Run starts the agent and blocks until the context is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return a.configSvc.Start(groupCtx)
	})
	group.Go(func() error {
		return a.hogSvc.Start(groupCtx)
	})

	err := group.Wait()
	if err != nil {
		return fmt.Errorf("agent failed: %w", err)
	}
	return nil
}

func (a *Agent) HoG() *hogsvc.Service {
	return a.hogSvc
}
