package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nichind/fastapi/internal/config"
	"github.com/nichind/fastapi/internal/models"
)

// Domains are the declared storage domains. Every entity type is bound to
// exactly one; all current types live on "main".
var Domains = []string{"main"}

// Client holds one shared GORM handle per storage domain, created once at
// process start. Each store operation acquires its own scoped transaction
// on the relevant handle.
type Client struct {
	dbs map[string]*gorm.DB
}

func New(cfg *config.Config) *Client {
	dbs := make(map[string]*gorm.DB, len(Domains))
	for _, name := range Domains {
		db, err := open(cfg, name)
		if err != nil {
			log.Fatalf("❌ Failed to connect to %s database: %v", name, err)
		}

		// Connection Pool Settings
		sqlDB, _ := db.DB()
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)

		dbs[name] = db
	}

	log.Println("✅ Database Connected")
	return &Client{dbs: dbs}
}

func open(cfg *config.Config, domain string) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true, // unique-index violations become gorm.ErrDuplicatedKey
	}

	if cfg.Database.Driver == "postgres" || cfg.Database.Host != "" {
		name := cfg.Database.Name
		if domain != "main" {
			name = domain + "_" + name
		}
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			cfg.Database.Host,
			cfg.Database.User,
			cfg.Database.Password,
			name,
			cfg.Database.Port,
		)
		return gorm.Open(postgres.Open(dsn), gormCfg)
	}

	if err := os.MkdirAll(cfg.Database.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	prefix := ""
	if domain != "main" {
		prefix = domain + "_"
	}
	path := filepath.Join(cfg.Database.Dir, prefix+"server.sqlite")
	return gorm.Open(sqlite.Open(path), gormCfg)
}

// NewWithDB wraps an existing handle as the "main" domain, mainly for
// tests running against an in-memory database.
func NewWithDB(db *gorm.DB) *Client {
	return &Client{dbs: map[string]*gorm.DB{"main": db}}
}

// Domain returns the shared handle for a storage domain.
func (c *Client) Domain(name string) *gorm.DB {
	db, ok := c.dbs[name]
	if !ok {
		log.Fatalf("❌ Unknown database domain %q", name)
	}
	return db
}

// Main is shorthand for the primary domain.
func (c *Client) Main() *gorm.DB { return c.Domain("main") }

// AutoMigrate creates/updates tables based on struct definitions
func (c *Client) AutoMigrate() {
	log.Println("Running Database Migrations...")
	err := c.Main().AutoMigrate(
		&models.AuditEntry{},
		&models.ServerSetting{},
		&models.Session{},
		&models.User{},
	)
	if err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("✅ Migrations Complete")
}

// ScheduledBackup is a placeholder for backup tooling, which lives outside
// this layer.
func ScheduledBackup() {}
