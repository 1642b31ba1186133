package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"tgforward/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS telegram_session (
	slot INTEGER PRIMARY KEY CHECK (slot = 1),
	session_string TEXT NOT NULL,
	phone_number TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Database holds the single durable session slot. There is no multi-session
// history; saving overwrites the previous record.
type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	encryptor, err := NewEncryptor()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize encryptor: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Database{db: db, encryptor: encryptor}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// SaveSession overwrites the single session slot.
func (d *Database) SaveSession(ctx context.Context, session *models.Session) error {
	encryptedSession, err := d.encryptor.EncryptIfEnabled(session.SessionString)
	if err != nil {
		return fmt.Errorf("failed to encrypt session string: %w", err)
	}

	encryptedPhone, err := d.encryptor.EncryptIfEnabled(session.PhoneNumber)
	if err != nil {
		return fmt.Errorf("failed to encrypt phone number: %w", err)
	}

	query := `
		INSERT INTO telegram_session (slot, session_string, phone_number, created_at, updated_at)
		VALUES (1, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(slot) DO UPDATE SET
			session_string = excluded.session_string,
			phone_number = excluded.phone_number,
			created_at = excluded.created_at,
			updated_at = CURRENT_TIMESTAMP
	`

	if _, err := d.db.ExecContext(ctx, query, encryptedSession, encryptedPhone, session.CreatedAt); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// GetSession returns the stored session or nil when the slot is empty.
func (d *Database) GetSession(ctx context.Context) (*models.Session, error) {
	query := `
		SELECT session_string, phone_number, created_at
		FROM telegram_session
		WHERE slot = 1
	`

	var encryptedSession, encryptedPhone string
	var createdAt time.Time

	err := d.db.QueryRowContext(ctx, query).Scan(&encryptedSession, &encryptedPhone, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	session := &models.Session{CreatedAt: createdAt}

	session.SessionString, err = d.encryptor.DecryptIfEnabled(encryptedSession)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt session string: %w", err)
	}

	session.PhoneNumber, err = d.encryptor.DecryptIfEnabled(encryptedPhone)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt phone number: %w", err)
	}

	return session, nil
}

// DeleteSession clears the session slot. Deleting an empty slot is a no-op.
func (d *Database) DeleteSession(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM telegram_session WHERE slot = 1`); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
