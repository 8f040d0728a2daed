package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/JustinTDCT/AnimeVault/internal/config"
	"github.com/JustinTDCT/AnimeVault/internal/db"
	"github.com/JustinTDCT/AnimeVault/internal/events"
	"github.com/JustinTDCT/AnimeVault/internal/ffmpeg"
	"github.com/JustinTDCT/AnimeVault/internal/logging"
	"github.com/JustinTDCT/AnimeVault/internal/metadata"
	"github.com/JustinTDCT/AnimeVault/internal/recyclebin"
	"github.com/JustinTDCT/AnimeVault/internal/releases"
	"github.com/JustinTDCT/AnimeVault/internal/renamer"
	"github.com/JustinTDCT/AnimeVault/internal/repository"
	"github.com/JustinTDCT/AnimeVault/internal/scanner"
)

// commandContext opens the shared stack once per invocation.
type commandContext struct {
	logLevel    string
	relayEvents bool

	cfg     *config.Config
	logs    io.Closer
	db      *db.DB
	closers []io.Closer
}

// services is the library stack every subcommand draws on.
type services struct {
	anime    *repository.AnimeRepository
	episodes *repository.EpisodeRepository
	profiles *repository.ProfileRepository
	settings *repository.SettingsRepository

	search    *metadata.AniListClient
	seadex    *metadata.SeadexClient
	metadata  *metadata.Service
	bin       *recyclebin.Bin
	importer  *scanner.Importer
	files     *scanner.FileScanner
	reader    *scanner.EpisodeReader
	discovery *scanner.Discovery
	renamer   *renamer.Service
	decider   *releases.Decider
}

func (c *commandContext) setup(ctx context.Context, console bool) (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg := config.Load()
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	c.logs = logging.Setup(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Console: console})

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	c.db = database
	if err := db.Migrate(database); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	settings := repository.NewSettingsRepository(database.DB)
	cfg.MergeFromDB(ctx, settings)

	if cfg.ProfilesFile != "" {
		file, err := config.LoadProfiles(cfg.ProfilesFile)
		if err != nil {
			return nil, err
		}
		if err := file.Seed(ctx, repository.NewProfileRepository(database.DB)); err != nil {
			return nil, err
		}
		if cfg.NamingPattern == "" {
			cfg.NamingPattern = file.NamingPattern
		}
	}
	c.cfg = cfg
	return cfg, nil
}

func (c *commandContext) services(cfg *config.Config, pub events.Publisher) *services {
	sqlDB := c.db.DB
	s := &services{
		anime:    repository.NewAnimeRepository(sqlDB),
		episodes: repository.NewEpisodeRepository(sqlDB),
		profiles: repository.NewProfileRepository(sqlDB),
		settings: repository.NewSettingsRepository(sqlDB),
		search:   metadata.NewAniListClient(cfg.AniListURL),
		seadex:   metadata.NewSeadexClient(cfg.SeadexURL),
	}

	chain := metadata.NewEpisodeChain(
		s.search,
		metadata.NewKitsuClient(cfg.KitsuURL),
		metadata.NewJikanClient(cfg.JikanURL),
	)
	s.metadata = metadata.NewService(s.anime, s.episodes, chain, metadata.NewFetchThrottle(metadata.DefaultFetchWindow))
	s.bin = recyclebin.New(cfg.RecycleBinPath, cfg.RecycleRetentionDays, repository.NewRecycleBinRepository(sqlDB))
	s.importer = scanner.NewImporter(s.episodes, ffmpeg.NewFFprobe(cfg.FFprobePath), s.seadex)
	s.files = scanner.NewFileScanner(s.anime, s.episodes, s.importer, pub)
	s.reader = scanner.NewEpisodeReader(s.episodes, pub)
	s.discovery = scanner.NewDiscovery(cfg.LibraryRoot, s.anime, s.search, cfg.DiscoveryDelay, scanner.NewDiscoveryState(), pub)
	s.renamer = renamer.NewService(s.anime, s.episodes, s.bin, cfg.LibraryRoot, cfg.NamingPattern, pub)
	s.decider = releases.NewDecider(s.anime, s.profiles, s.episodes, s.seadex)
	return s
}

func (c *commandContext) onClose(cl io.Closer) {
	c.closers = append(c.closers, cl)
}

func (c *commandContext) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i].Close()
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			log.Warn().Err(err).Msg("closing database")
		}
	}
	if c.logs != nil {
		c.logs.Close()
	}
}

// stdoutIsTerminal picks console logging for interactive runs.
func stdoutIsTerminal() bool {
	fi, err := os.Stdout.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

// publisher logs events from one-shot commands and, with --relay-events,
// forwards them to the subscribers of a running server.
func (c *commandContext) publisher(cfg *config.Config) events.Publisher {
	pub := events.Fanout{eventLog{}}
	if c.relayEvents {
		sink := events.NewRedisSink(cfg.RedisAddr, events.DefaultChannel)
		c.onClose(sink)
		pub = append(pub, sink)
	}
	return pub
}

type eventLog struct{}

func (eventLog) Publish(event string, data interface{}) {
	log.Debug().Str("component", "cli").Str("event", event).Interface("data", data).Msg("event")
}
