package store

import (
	"embed"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver for sqlx and goose
	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"github.com/kalutskii/etil-sterahstib/pkg/log"
)

//go:embed migrations/*/*.sql
var embedMigrations embed.FS

// DatabaseConfig selects the history database.
//
// To connect to Postgresql you need to fill out all the connection fields.
// To use sqlite, set the "sqlite" driver. Without BTS_DATABASE_NAME the
// database lives in memory.
type DatabaseConfig struct {
	URL      string `env:"BTS_DATABASE_URL" env-default:""`
	Name     string `env:"BTS_DATABASE_NAME" env-default:""`
	Schema   string `env:"BTS_DATABASE_SCHEMA" env-default:""`
	Driver   string `env:"BTS_DATABASE_DRIVER" env-default:"sqlite"`
	Username string `env:"BTS_DATABASE_USERNAME" env-default:"postgres"`
	Password string `env:"BTS_DATABASE_PASSWORD" env-default:""`
	Host     string `env:"BTS_DATABASE_HOST" env-default:"localhost"`
	Port     string `env:"BTS_DATABASE_PORT" env-default:"5432"`
}

// ParseConnectionString turns a "file:" sqlite path or a postgres URI into a
// DatabaseConfig.
func ParseConnectionString(connStr string) (DatabaseConfig, error) {
	if strings.HasPrefix(connStr, "file:") {
		parts := strings.SplitN(connStr[5:], "?", 2)
		return DatabaseConfig{
			Name:   parts[0],
			Driver: "sqlite",
		}, nil
	}

	parsedURL, err := url.Parse(connStr)
	if err != nil {
		return DatabaseConfig{}, fmt.Errorf("invalid connection string: %w", err)
	}

	if parsedURL.Scheme != "postgres" && parsedURL.Scheme != "postgresql" {
		return DatabaseConfig{}, fmt.Errorf("unsupported scheme: %s", parsedURL.Scheme)
	}

	var username, password string
	if user := parsedURL.User; user != nil {
		username = user.Username()
		password, _ = user.Password()
	}

	port := parsedURL.Port()
	if port == "" {
		port = "5432"
	}

	return DatabaseConfig{
		Name:     strings.TrimPrefix(parsedURL.Path, "/"),
		Schema:   parsedURL.Query().Get("search_path"),
		Driver:   "postgres",
		Username: username,
		Password: password,
		Host:     parsedURL.Hostname(),
		Port:     port,
	}, nil
}

// ConnectToDB opens the configured database and brings its schema up to date.
func ConnectToDB(cnf DatabaseConfig, lg log.Logger) (*gorm.DB, error) {
	lg = lg.WithName("store")

	if cnf.URL != "" {
		parsed, err := ParseConnectionString(cnf.URL)
		if err != nil {
			return nil, err
		}
		cnf = parsed
	}

	switch cnf.Driver {
	case "postgres":
		return connectToPostgresql(cnf, lg)
	case "sqlite", "":
		return connectToSqlite(cnf, lg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cnf.Driver)
	}
}

func gormConfig(cnf DatabaseConfig) *gorm.Config {
	conf := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	if cnf.Schema != "" {
		conf.NamingStrategy = schema.NamingStrategy{TablePrefix: cnf.Schema + "."}
	}
	return conf
}

func connectToPostgresql(cnf DatabaseConfig, lg log.Logger) (*gorm.DB, error) {
	lg.Info("connecting to postgresql", "host", cnf.Host, "database", cnf.Name)
	if err := ensurePostgresqlSchema(cnf, lg); err != nil {
		return nil, fmt.Errorf("failed to ensure postgresql schema: %w", err)
	}

	if err := migratePostgres(cnf, lg); err != nil {
		return nil, fmt.Errorf("failed to apply postgresql migrations: %w", err)
	}

	dsn, err := postgresqlDbUrl(cnf)
	if err != nil {
		return nil, err
	}

	return gorm.Open(postgres.Open(dsn), gormConfig(cnf))
}

func connectToSqlite(cnf DatabaseConfig, lg log.Logger) (*gorm.DB, error) {
	var dsn string
	if cnf.Name != "" {
		lg.Info("connecting to sqlite", "path", cnf.Name)
		dsn = fmt.Sprintf("file:%s?cache=shared", cnf.Name)
	} else {
		lg.Info("connecting to in-memory sqlite")
		dsn = "file::memory:?cache=shared"
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(cnf))
	if err != nil {
		return nil, err
	}

	if err := migrateSqlite(db); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite: %w", err)
	}
	lg.Debug("auto-migrated sqlite")

	return db, nil
}

func postgresqlDbUrl(cnf DatabaseConfig) (string, error) {
	if cnf.Driver != "postgres" {
		return "", fmt.Errorf("unsupported driver: %s", cnf.Driver)
	}

	dsn := fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=disable",
		cnf.Username, cnf.Password, cnf.Host, cnf.Port, cnf.Name,
	)
	if cnf.Schema != "" {
		dsn = fmt.Sprintf("%s search_path=%s", dsn, cnf.Schema)
	}

	return dsn, nil
}

func ensurePostgresqlSchema(cnf DatabaseConfig, lg log.Logger) error {
	if cnf.Schema == "" {
		return nil
	}

	dbConf := cnf
	dbConf.Schema = ""
	dsn, err := postgresqlDbUrl(dbConf)
	if err != nil {
		return err
	}

	db, err := sqlx.Connect(dbConf.Driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	var exists bool
	if err := db.Get(&exists, "SELECT EXISTS(SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)", cnf.Schema); err != nil {
		return fmt.Errorf("error while checking schema existence: %w", err)
	}
	if exists {
		lg.Debug("schema already exists", "schema", cnf.Schema)
		return nil
	}

	if _, err := db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", cnf.Schema)); err != nil {
		return fmt.Errorf("error while creating schema: %w", err)
	}

	lg.Info("schema created", "schema", cnf.Schema)
	return nil
}

func migratePostgres(cnf DatabaseConfig, lg log.Logger) error {
	dsn, err := postgresqlDbUrl(cnf)
	if err != nil {
		return err
	}

	db, err := goose.OpenDBWithDriver(cnf.Driver, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	if cnf.Schema != "" {
		if _, err := db.Exec(fmt.Sprintf("SET search_path TO %s", cnf.Schema)); err != nil {
			return fmt.Errorf("failed to set search path: %w", err)
		}
	}

	lg.Info("applying database migrations")
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.Up(db, "migrations/"+cnf.Driver); err != nil && !errors.Is(err, goose.ErrNoNextVersion) {
		return err
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		return err
	}
	lg.Info("applied migrations", "version", strconv.FormatInt(version, 10))
	return nil
}

func migrateSqlite(db *gorm.DB) error {
	return db.AutoMigrate(&HistoryRecord{})
}
