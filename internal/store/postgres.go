package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Postgres persists appointments and tickets to PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects to the database at connStr and runs pending
// migrations.
func OpenPostgres(connStr string) (*Postgres, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("store open: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store ping: %w", err)
	}
	if err = migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store migrate: %w", err)
	}
	return &Postgres{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`)
	if err != nil {
		return err
	}

	var current int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), -1) FROM schema_version`)
	if err = row.Scan(&current); err != nil {
		return err
	}

	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	for i := current + 1; i < len(entries); i++ {
		data, readErr := migrationFS.ReadFile("migrations/" + entries[i].Name())
		if readErr != nil {
			return fmt.Errorf("read migration %d: %w", i, readErr)
		}
		if _, execErr := db.Exec(string(data)); execErr != nil {
			return fmt.Errorf("migration %d: %w", i, execErr)
		}
		if _, execErr := db.Exec(`INSERT INTO schema_version (version) VALUES ($1)`, i); execErr != nil {
			return fmt.Errorf("migration %d record: %w", i, execErr)
		}
	}
	return nil
}

// Close closes the database.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// CreateAppointment inserts an appointment row.
func (p *Postgres) CreateAppointment(ctx context.Context, a Appointment) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO appointments (id, customer_name, date, time, purpose, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.CustomerName, a.Date, a.Time, a.Purpose, time.Now().UTC(),
	)
	return err
}

// CreateTicket inserts a ticket row.
func (p *Postgres) CreateTicket(ctx context.Context, t Ticket) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO tickets (id, customer_name, issue, priority, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.CustomerName, t.Issue, t.Priority, time.Now().UTC(),
	)
	return err
}
