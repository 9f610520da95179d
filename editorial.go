package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/klauspost/compress/gzhttp"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/pflag"
	"github.com/wansing/editorial/api"
	"github.com/wansing/editorial/config"
	"github.com/wansing/editorial/core"
	"github.com/wansing/editorial/logging"
	"github.com/wansing/editorial/memdb"
	"github.com/wansing/editorial/notify"
	"github.com/wansing/editorial/sqldb"
	"github.com/wansing/editorial/sqldb/mysql"
	"github.com/wansing/editorial/sqldb/sqlite3"
	"github.com/wansing/editorial/util"
	"github.com/xo/dburl"
	"golang.org/x/sync/errgroup"
)

// memoryDB keeps articles and references in memory and everything else in an in-memory SQLite database.
const memoryDB = "memory"

func init() {
	log.SetFlags(0) // no log prefixes, on most systems systemd-journald adds them
}

// app holds the wired components.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	sqlDB    *sql.DB
	auth     *core.AuthDB
	engine   *core.Engine
	outbox   *sqldb.OutboxDB
	queue    *notify.Queue
	sessions *scs.SessionManager
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Println(err) // log.Fatalln would not run deferred functions
		os.Exit(1)
	}
}

func run(args []string) error {

	var isInit = len(args) > 0 && args[0] == "init"
	if isInit {
		args = args[1:]
	}

	var flags = pflag.NewFlagSet("editorial", pflag.ContinueOnError)
	var configPath = flags.String("config", config.DefaultPath, "ini configuration `file`, ignored if it does not exist")
	var dbArg = flags.String("db", "", "sql database url, see github.com/xo/dburl, or \"memory\"")
	var logLevel = flags.String("log-level", "", "debug, info, warn or error")

	// serve
	var listenAddr = flags.String("listen", "", "serve HTTP at this `ip:port`")
	var base = flags.String("base", "", "strip off this `prefix` from every HTTP request")
	var minReferences = flags.Int("min-references", -1, "required number of references for leaving research and for publishing")

	// init
	var initFlags initOptions
	if isInit {
		initFlags.register(flags)
	}

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *dbArg != "" {
		cfg.Database.URL = *dbArg
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *listenAddr != "" {
		cfg.HTTP.Listen = *listenAddr
	}
	if flags.Changed("base") {
		cfg.HTTP.Base = *base
	}
	if *minReferences >= 0 {
		cfg.Engine.MinReferences = *minReferences
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var logger = logging.New(cfg.Log.Level, os.Stderr)

	a, err := wire(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		logger.Info("closing database")
		a.sqlDB.Close()
	}()

	if isInit {
		return initFlags.run(a)
	}

	return a.serve()
}

func openDB(url string) (*sql.DB, string, error) {

	if url == memoryDB {
		sqlDB, err := sql.Open("sqlite3", "file::memory:?cache=shared&_busy_timeout=10000")
		if err != nil {
			return nil, "", err
		}
		sqlDB.SetMaxOpenConns(1) // every connection would get its own database
		return sqlDB, "sqlite3", nil
	}

	dbURL, err := dburl.Parse(url)
	if err != nil {
		return nil, "", fmt.Errorf("could not parse database url: %w", err)
	}

	sqlDB, err := sql.Open(dbURL.Driver, dbURL.DSN)
	if err != nil {
		return nil, "", fmt.Errorf("could not open sql database: %w", err)
	}

	return sqlDB, dbURL.Driver, nil
}

func wire(cfg config.Config, logger *slog.Logger) (*app, error) {

	sqlDB, driver, err := openDB(cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	if err = sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("could not ping sql database: %w", err)
	}

	logger.Info("using database", "driver", driver)

	var a = &app{
		cfg:    cfg,
		logger: logger,
		sqlDB:  sqlDB,
		auth: &core.AuthDB{
			GroupDB: sqldb.NewGroupDB(sqlDB),
			UserDB:  sqldb.NewUserDB(sqlDB),
		},
	}

	var sessionStore scs.Store
	switch driver {
	case "mysql":
		sessionStore, err = mysql.NewSessionStore(sqlDB, 5*time.Minute)
	case "sqlite3":
		sessionStore, err = sqlite3.NewSessionStore(sqlDB, 5*time.Minute)
	default:
		err = fmt.Errorf("unknown database backend: %s", driver)
	}
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	var base = strings.Trim(cfg.HTTP.Base, "/")
	if base != "" {
		base = "/" + base
	}
	a.cfg.HTTP.Base = base
	a.sessions = api.NewSessionManager(sessionStore, base)

	// notifications

	var senders = notify.Fanout{
		notify.LogSender{Logger: logger},
	}
	if cfg.Notify.Outbox {
		format, err := notify.ParseFormat(cfg.Notify.OutboxFormat)
		if err != nil {
			sqlDB.Close()
			return nil, err
		}
		a.outbox = sqldb.NewOutboxDB(sqlDB)
		senders = append(senders, notify.OutboxSender{Outbox: a.outbox, Format: format})
	}
	if cfg.Notify.WebhookURL != "" {
		senders = append(senders, notify.NewWebhookSender(cfg.Notify.WebhookURL, cfg.Notify.WebhookTimeout, cfg.Notify.WebhookRate))
	}

	a.queue = notify.NewQueue(
		notify.EmailLookup{
			Directory: a.auth,
			Next:      senders,
		},
		notify.WithLogger(logger),
		notify.WithSize(cfg.Notify.QueueSize),
	)

	// engine

	var articles core.ArticleDB
	var references core.ReferenceDB
	if cfg.Database.URL == memoryDB {
		articles = memdb.NewArticleDB()
		references = memdb.NewReferenceDB()
	} else {
		articles = sqldb.NewArticleDB(sqlDB)
		references = sqldb.NewReferenceDB(sqlDB)
	}

	a.engine = core.NewEngine(articles, references, a.queue, logger)
	a.engine.MinReferences = cfg.Engine.MinReferences
	a.engine.Timeout = cfg.Engine.RepositoryTimeout

	return a, nil
}

// handler serves the API below base + "/api". Responses are compressed if the client accepts it.
func (a *app) handler() http.Handler {
	var mux = http.NewServeMux()
	util.HandlePrefix(mux, a.cfg.HTTP.Base+"/api", api.NewRouter(&api.Server{
		Engine:   a.engine,
		Auth:     a.auth,
		Sessions: a.sessions,
		Logger:   a.logger,
	}))
	return gzhttp.GzipHandler(mux)
}

func (a *app) serve() error {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM) // SIGINT (Interrupt) or SIGTERM
	defer stop()

	listener, err := net.Listen("tcp", a.cfg.HTTP.Listen)
	if err != nil {
		return err
	}

	a.logger.Info("listening", "addr", a.cfg.HTTP.Listen, "base", a.cfg.HTTP.Base)

	httpSrv := &http.Server{
		Handler:      a.handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	var queueCtx, cancelQueue = context.WithCancel(context.Background())
	defer cancelQueue()

	var group, groupCtx = errgroup.WithContext(ctx)

	group.Go(func() error {
		a.queue.Run(queueCtx)
		return nil
	})

	group.Go(func() error {
		if err := httpSrv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error listening: %w", err)
		}
		return nil
	})

	// graceful shutdown

	group.Go(func() error {
		<-groupCtx.Done()
		a.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := httpSrv.Shutdown(shutdownCtx) // waits for running handlers, so no more events are dispatched afterwards
		if qerr := a.queue.Close(shutdownCtx); qerr != nil {
			a.logger.Warn("notification queue not drained", "err", qerr)
			cancelQueue()
		}
		return err
	})

	return group.Wait()
}
