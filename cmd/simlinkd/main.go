package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/skobkin/simlink/internal/app"
	"github.com/skobkin/simlink/internal/bus"
	"github.com/skobkin/simlink/internal/config"
	"github.com/skobkin/simlink/internal/connectors"
	"github.com/skobkin/simlink/internal/domain"
	"github.com/skobkin/simlink/internal/platform"
)

type cliOptions struct {
	configPath   string
	connector    string
	host         string
	port         int
	serialPort   string
	record       string
	replay       string
	speed        float64
	rate         time.Duration
	radius       int
	verbose      bool
	weather      string
	listenFor    time.Duration
	checkUpdates bool
	showVersion  bool

	set map[string]bool
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("run simlinkd", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Println(app.Name, app.BuildVersionWithDate())

		return nil
	}
	weatherReq, err := parseWeatherRequest(opts.weather)
	if err != nil {
		return err
	}

	paths, err := app.ResolvePaths()
	if err != nil {
		return fmt.Errorf("resolve paths: %w", err)
	}
	paths = paths.WithConfigFile(opts.configPath)

	lock, err := platform.AcquireInstanceLock(app.Name, paths.ConfigFile)
	switch {
	case errors.Is(err, platform.ErrInstanceAlreadyRunning):
		return fmt.Errorf("another simlinkd is already running with %s: %w", paths.ConfigFile, err)
	case errors.Is(err, platform.ErrInstanceLockUnsupported):
		slog.Warn("single instance lock unavailable", "error", err)
	case err != nil:
		return fmt.Errorf("acquire instance lock: %w", err)
	default:
		defer func() {
			if relErr := lock.Release(); relErr != nil {
				slog.Warn("release instance lock", "error", relErr)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Initialize(ctx, app.Options{
		Paths:    paths,
		Override: opts.apply,
	})
	if err != nil {
		return fmt.Errorf("initialize runtime: %w", err)
	}
	defer func() {
		_ = rt.Close()
	}()

	logger := rt.LogManager.Logger("cli")
	cfg := rt.CurrentConfig()
	logger.Info(
		"simlinkd configured",
		"config", rt.Paths.ConfigFile,
		"connector", cfg.Connection.Connector,
		"target", app.ConnectionTarget(cfg.Connection),
		"sim_support", app.SimSupportAvailable(cfg.Connection),
		"record", cfg.Acquisition.RecordPath,
		"replay", cfg.Acquisition.ReplayPath,
	)

	watch(ctx, rt.Bus, logger)
	if err := rt.StartMaintenance(opts.checkUpdates); err != nil {
		logger.Warn("start maintenance", "error", err)
	}

	rt.StartAcquisition()
	if weatherReq.Valid() {
		logger.Info("requesting weather", "query", weatherReq.Query())
		rt.SubmitWeatherRequest(weatherReq)
	}

	if opts.listenFor > 0 {
		logger.Info("listen mode", "duration", opts.listenFor)
		select {
		case <-ctx.Done():
		case <-time.After(opts.listenFor):
		}
	} else {
		logger.Info("listening until interrupt")
		<-ctx.Done()
	}

	rt.StopAcquisition()
	logger.Info("simlinkd stopped", "status", rt.CurrentConnStatus().State)

	return nil
}

func parseFlags(args []string, output io.Writer) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("simlinkd", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.configPath, "config", "", "config file path (default: user config dir)")
	fs.StringVar(&opts.connector, "connector", "", "connector type: ip, serial or dummy")
	fs.StringVar(&opts.host, "host", "", "simulator bridge ip/hostname")
	fs.IntVar(&opts.port, "port", 0, "simulator bridge tcp port")
	fs.StringVar(&opts.serialPort, "serial", "", "simulator bridge serial port")
	fs.StringVar(&opts.record, "record", "", "record frames to this replay file")
	fs.StringVar(&opts.replay, "replay", "", "play frames from this replay file instead of the simulator")
	fs.Float64Var(&opts.speed, "speed", 0, "replay speed multiplier")
	fs.DurationVar(&opts.rate, "rate", 0, "update rate, e.g. 250ms")
	fs.IntVar(&opts.radius, "radius", 0, "search radius in km")
	fs.BoolVar(&opts.verbose, "verbose", false, "verbose acquisition logging")
	fs.StringVar(&opts.weather, "weather", "", "request weather once: ICAO station or nearest:LAT,LON")
	fs.DurationVar(&opts.listenFor, "listen-for", 0, "listen duration, e.g. 30s")
	fs.BoolVar(&opts.checkUpdates, "check-updates", false, "periodically check for a newer release")
	fs.BoolVar(&opts.showVersion, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}
	if fs.NArg() > 0 {
		return cliOptions{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	opts.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		opts.set[f.Name] = true
	})

	return opts, nil
}

// apply copies explicitly set flags over the file and environment config.
func (o cliOptions) apply(cfg *config.AppConfig) {
	if o.set["connector"] {
		cfg.Connection.Connector = config.ConnectorType(strings.ToLower(strings.TrimSpace(o.connector)))
	}
	if o.set["host"] {
		cfg.Connection.Host = strings.TrimSpace(o.host)
	}
	if o.set["port"] {
		cfg.Connection.Port = o.port
	}
	if o.set["serial"] {
		cfg.Connection.SerialPort = strings.TrimSpace(o.serialPort)
	}
	if o.set["record"] {
		cfg.Acquisition.RecordPath = o.record
	}
	if o.set["replay"] {
		cfg.Acquisition.ReplayPath = o.replay
	}
	if o.set["speed"] {
		cfg.Acquisition.ReplaySpeed = o.speed
	}
	if o.set["rate"] {
		cfg.Acquisition.UpdateRateMs = int(o.rate / time.Millisecond)
	}
	if o.set["radius"] {
		cfg.Acquisition.SearchRadiusKm = o.radius
	}
	if o.set["verbose"] {
		cfg.Acquisition.Verbose = o.verbose
	}
}

func parseWeatherRequest(raw string) (domain.WeatherRequest, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.WeatherRequest{}, nil
	}
	coords, ok := strings.CutPrefix(strings.ToLower(raw), "nearest:")
	if !ok {
		return domain.NewStationWeatherRequest(raw), nil
	}

	latRaw, lonRaw, ok := strings.Cut(coords, ",")
	if !ok {
		return domain.WeatherRequest{}, fmt.Errorf("weather: expected nearest:LAT,LON, got %q", raw)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latRaw), 64)
	if err != nil || lat < -90 || lat > 90 {
		return domain.WeatherRequest{}, fmt.Errorf("weather: invalid latitude %q", latRaw)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonRaw), 64)
	if err != nil || lon < -180 || lon > 180 {
		return domain.WeatherRequest{}, fmt.Errorf("weather: invalid longitude %q", lonRaw)
	}

	return domain.NewNearestWeatherRequest(lat, lon), nil
}

func watch(ctx context.Context, b bus.MessageBus, logger *slog.Logger) {
	frameSub := b.Subscribe(connectors.TopicFrame)
	connSub := b.Subscribe(connectors.TopicConnStatus)
	statusSub := b.Subscribe(connectors.TopicStatusMessage)
	sessionSub := b.Subscribe(connectors.TopicReplaySession)

	go bus.Dispatch(ctx, b, frameSub, func(raw any) {
		if frame, ok := raw.(domain.Frame); ok {
			logFrame(logger, frame)
		}
	})
	go bus.Dispatch(ctx, b, connSub, func(raw any) {
		if status, ok := raw.(connectors.ConnectionStatus); ok {
			logger.Info("conn", "state", status.State, "source", status.Source, "target", status.Target, "error", status.Err)
		}
	})
	go bus.Dispatch(ctx, b, statusSub, func(raw any) {
		msg, ok := raw.(connectors.StatusMessage)
		if !ok {
			return
		}
		if msg.IsError {
			logger.Error(msg.Text)

			return
		}
		logger.Info(msg.Text)
	})
	go bus.Dispatch(ctx, b, sessionSub, func(raw any) {
		if event, ok := raw.(connectors.ReplaySessionEvent); ok {
			logger.Info("replay session", "id", event.Session.ID, "mode", event.Session.Mode, "path", event.Session.Path, "closed", event.Closed, "frames", event.Session.Frames)
		}
	})
}

func logFrame(logger *slog.Logger, frame domain.Frame) {
	if frame.IsWeatherOnly() {
		logger.Info("weather", "reports", len(frame.Weather), "status", frame.Status)
		for _, report := range frame.Weather {
			logger.Info("weather report", "station", report.Station, "raw", report.Raw)
		}

		return
	}
	logger.Debug("frame", "seq", frame.SequenceID, "status", frame.Status, "bytes", len(frame.Payload), "at", frame.Timestamp.Format(time.RFC3339))
}
