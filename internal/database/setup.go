package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"chatserver-backend/internal/models"
	"chatserver-backend/internal/store"

	"go.uber.org/zap"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

func setPragmaValues(db *sql.DB) error {
	// WAL plus normal synchronous speeds sqlite up considerably
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return err
	}
	if _, err := db.Exec("PRAGMA synchronous = normal"); err != nil {
		return err
	}
	return nil
}

// Setup opens the durable store: sqlite in self-contained mode, mysql
// otherwise, and creates the two record tables. List-shaped fields live in
// JSON columns; the row key is the entity's identity key (username or
// channel id).
func Setup(cfg *models.ConfigFile) (*sql.DB, error) {
	var db *sql.DB
	var err error

	if cfg.SelfContained {
		db, err = sql.Open("sqlite", "./database.db")
		if err != nil {
			return nil, err
		}
		if err := setPragmaValues(db); err != nil {
			return nil, err
		}
	} else {
		connString := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&timeout=10s",
			cfg.DbUser, cfg.DbPassword, cfg.DbAddress, cfg.DbPort, cfg.DbDatabase)
		db, err = sql.Open("mysql", connString)
		if err != nil {
			return nil, err
		}
	}

	if err := CreateTables(db); err != nil {
		return nil, err
	}
	return db, nil
}

// CreateTables creates the two record tables if they are missing.
func CreateTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			username VARCHAR(32) PRIMARY KEY,
			password BINARY(60) NOT NULL,
			picture TEXT NOT NULL,
			channels TEXT NOT NULL
		);
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS channels (
			id BIGINT PRIMARY KEY,
			name VARCHAR(64) NOT NULL,
			admins TEXT NOT NULL,
			members TEXT NOT NULL,
			messages TEXT NOT NULL
		);
	`)
	return err
}

// LoadAll reads every durable user and channel record into the store before
// the listener starts. Channel member snapshots are re-linked to the
// canonical users loaded first, so the in-memory graph shares one User per
// username. Everyone starts offline regardless of the state they were
// persisted with.
func LoadAll(db *sql.DB, st *store.Store, sugar *zap.SugaredLogger) error {
	rows, err := db.Query("SELECT username, password, picture, channels FROM users")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var user models.User
		var channelsJSON []byte

		if err := rows.Scan(&user.Username, &user.Password, &user.Picture, &channelsJSON); err != nil {
			return err
		}
		if err := json.Unmarshal(channelsJSON, &user.Channels); err != nil {
			sugar.Errorf("User record [%s] has a corrupt channels column: %v", user.Username, err)
			continue
		}
		user.Status = models.StatusOffline
		st.PutUser(&user)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	channelRows, err := db.Query("SELECT id, name, admins, members, messages FROM channels")
	if err != nil {
		return err
	}
	defer channelRows.Close()

	for channelRows.Next() {
		var channel models.Channel
		var adminsJSON, membersJSON, messagesJSON []byte

		if err := channelRows.Scan(&channel.ID, &channel.Name, &adminsJSON, &membersJSON, &messagesJSON); err != nil {
			return err
		}
		if err := json.Unmarshal(adminsJSON, &channel.Admins); err != nil {
			sugar.Errorf("Channel record [%d] has a corrupt admins column: %v", channel.ID, err)
			continue
		}
		if err := json.Unmarshal(messagesJSON, &channel.Messages); err != nil {
			sugar.Errorf("Channel record [%d] has a corrupt messages column: %v", channel.ID, err)
			continue
		}

		var memberSnapshots []*models.User
		if err := json.Unmarshal(membersJSON, &memberSnapshots); err != nil {
			sugar.Errorf("Channel record [%d] has a corrupt members column: %v", channel.ID, err)
			continue
		}
		for _, snapshot := range memberSnapshots {
			canonical, ok := st.User(snapshot.Username)
			if !ok {
				sugar.Warnf("Channel [%d] lists member [%s] with no user record, dropping the membership", channel.ID, snapshot.Username)
				continue
			}
			channel.Members = append(channel.Members, canonical)
		}

		st.PutChannel(&channel)
	}
	return channelRows.Err()
}
