// Package app assembles the long-lived components of the ID scanner from settings.
package app

import (
	"context"

	"github.com/AMEND09/ID-Scanner/internal/auth"
	"github.com/AMEND09/ID-Scanner/internal/conf"
	"github.com/AMEND09/ID-Scanner/internal/decoder"
	"github.com/AMEND09/ID-Scanner/internal/errors"
	"github.com/AMEND09/ID-Scanner/internal/httpclient"
	"github.com/AMEND09/ID-Scanner/internal/kvstore"
	"github.com/AMEND09/ID-Scanner/internal/logger"
	"github.com/AMEND09/ID-Scanner/internal/mqtt"
	"github.com/AMEND09/ID-Scanner/internal/notification"
	"github.com/AMEND09/ID-Scanner/internal/observability"
	"github.com/AMEND09/ID-Scanner/internal/records"
	"github.com/AMEND09/ID-Scanner/internal/scanner"
	"github.com/AMEND09/ID-Scanner/internal/session"
	"github.com/AMEND09/ID-Scanner/internal/sheets"
)

// App holds the shared components used by the CLI commands and the HTTP API.
type App struct {
	Settings      *conf.Settings
	KV            kvstore.Store
	Records       *records.Store
	Notifications *notification.Service
	Metrics       *observability.Metrics
	Frames        *decoder.FrameBuffer
	Sessions      *session.Manager

	http       *httpclient.Client
	mqttClient mqtt.Client
	publisher  *mqtt.Publisher
	log        logger.Logger
}

// Option configures New.
type Option func(*options)

type options struct {
	kv         kvstore.Store
	http       *httpclient.Client
	newService session.ServiceFactory
	mqttClient mqtt.Client
}

// WithKVStore uses kv instead of opening the configured storage backend.
func WithKVStore(kv kvstore.Store) Option {
	return func(o *options) { o.kv = kv }
}

// WithHTTPClient replaces the shared HTTP client used for token probes and revocation.
func WithHTTPClient(c *httpclient.Client) Option {
	return func(o *options) { o.http = c }
}

// WithServiceFactory replaces the Google spreadsheet service.
func WithServiceFactory(f session.ServiceFactory) Option {
	return func(o *options) { o.newService = f }
}

// WithMQTTClient uses c instead of dialing the configured broker.
func WithMQTTClient(c mqtt.Client) Option {
	return func(o *options) { o.mqttClient = c }
}

// GetLogger returns the app module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("app")
}

// New opens storage, loads the record history and wires the session manager. MQTT
// connection failures are logged and do not fail New.
func New(ctx context.Context, settings *conf.Settings, opts ...Option) (*App, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Settings: settings, log: GetLogger()}

	var err error
	a.KV = o.kv
	if a.KV == nil {
		if a.KV, err = kvstore.Open(&settings.Storage); err != nil {
			return nil, err
		}
	}

	a.Records = records.New(a.KV, records.WithCapacity(settings.Records.Capacity))
	if err := a.Records.Load(ctx); err != nil {
		a.log.Warn("record history could not be loaded, starting empty", logger.Error(err))
	}

	if a.Notifications, err = notification.NewFromSettings(&settings.Notification); err != nil {
		_ = a.KV.Close()
		return nil, err
	}

	if a.Metrics, err = observability.NewMetrics(); err != nil {
		_ = a.KV.Close()
		return nil, errors.New(err).
			Component("app").
			Category(errors.CategorySystem).
			Build()
	}

	a.http = o.http
	if a.http == nil {
		cfg := httpclient.DefaultConfig()
		a.http = httpclient.New(&cfg)
	}

	a.Frames = decoder.NewFrameBuffer()

	newService := o.newService
	if newService == nil {
		newService = func(ctx context.Context, cred *auth.Credential) (sheets.Service, error) {
			return sheets.NewGoogleService(ctx, cred.HTTPClient(), &settings.Sheets)
		}
	}

	a.Sessions = session.NewManager(session.Config{
		KV:          a.KV,
		Auth:        auth.NewProvider(a.http, &settings.Auth, settings.Sheets.Endpoint),
		NewService:  newService,
		Records:     a.Records,
		NewPipeline: a.newPipeline,
		Notifier:    a.Notifications,
		DefaultTab:  settings.Sheets.DefaultTab,
		WriterOptions: []sheets.WriterOption{
			sheets.WithObserver(a.Metrics.Sheets),
			sheets.WithRateLimit(settings.Sheets.WriteRate, settings.Sheets.WriteBurst),
			sheets.WithRowFormat(sheets.RowFormat{
				DateLayout: settings.Sheets.DateLayout,
				TimeLayout: settings.Sheets.TimeLayout,
				Location:   settings.Location(),
			}),
		},
	})

	if settings.MQTT.Enabled || o.mqttClient != nil {
		a.startMQTT(ctx, o.mqttClient)
	}

	return a, nil
}

// Resume restores a stored session. A missing or rejected token is not an error.
func (a *App) Resume(ctx context.Context) {
	s, err := a.Sessions.Resume(ctx)
	switch {
	case err == nil:
		a.log.Info("session restored", logger.String("session_id", s.ID))
	case errors.Is(err, session.ErrNotSignedIn), errors.Is(err, auth.ErrTokenInvalid):
		a.log.Debug("no usable stored session")
	default:
		a.log.Warn("session could not be restored", logger.Error(err))
	}
}

// Run opens the app, restores a stored session, calls fn and closes the app again.
func Run(ctx context.Context, settings *conf.Settings, fn func(*App) error, opts ...Option) error {
	a, err := New(ctx, settings, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.log.Warn("failed to close storage", logger.Error(err))
		}
	}()
	a.Resume(ctx)
	return fn(a)
}

// Close stops the scanner and releases every component.
func (a *App) Close() error {
	a.Sessions.StopScanner()
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.mqttClient != nil {
		a.mqttClient.Disconnect()
	}
	a.Notifications.Close()
	return a.KV.Close()
}

func (a *App) newPipeline(w scanner.Writer) *scanner.Pipeline {
	opts := []scanner.Option{scanner.WithObserver(a.Metrics.Scanner)}
	if a.Settings.Scanner.Matrix {
		opts = append(opts,
			scanner.WithMatrix(a.Frames, decoder.NewQRDecoder(), decoder.WithDecodeObserver(a.Metrics.Scanner)),
			scanner.WithCamera(a.Frames),
		)
	}
	return scanner.New(scanner.ConfigFrom(&a.Settings.Scanner), w, opts...)
}

func (a *App) startMQTT(ctx context.Context, client mqtt.Client) {
	cfg := mqtt.ConfigFrom(a.Settings)
	if client == nil {
		var err error
		if client, err = mqtt.NewClient(cfg); err != nil {
			a.log.Warn("mqtt disabled", logger.Error(err))
			return
		}
		if err := client.Connect(ctx); err != nil {
			a.log.Warn("mqtt connect failed, events will be dropped until paho reconnects",
				logger.Error(err))
		}
	}
	a.mqttClient = client
	a.publisher = mqtt.NewPublisher(client, cfg.Topic)
	a.publisher.Attach(a.Records)
}
