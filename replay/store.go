package replay

import (
	"crypto/sha256"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jalmeida85/tls13srv/internal/alertlog"
)

// SQLiteCache is the default Cache: a sqlite3 table of (identity, age)
// fingerprints already seen, grounded on the teacher's pinningStore
// "insert or replace" ticket table — here the row's mere existence before
// an insert, not its contents, is the signal.
type SQLiteCache struct {
	db  *sql.DB
	ttl time.Duration
}

// Open creates (or reuses) the sqlite3 database at path for replay
// tracking. Rows older than ttl are pruned lazily on Check.
func Open(path string, ttl time.Duration) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`create table if not exists seen_identities (
		fingerprint blob not null primary key,
		seen_at datetime not null
	)`); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteCache{db: db, ttl: ttl}, nil
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

func fingerprint(identity []byte, obfuscatedAge uint32) []byte {
	h := sha256.New()
	h.Write(identity)
	h.Write([]byte{byte(obfuscatedAge >> 24), byte(obfuscatedAge >> 16), byte(obfuscatedAge >> 8), byte(obfuscatedAge)})
	return h.Sum(nil)
}

// Check reports Replay if this exact (identity, age) pair was already
// seen within ttl, else records it as seen and reports NotReplay. A
// database error is reported as MaybeReplay, which the server core
// treats like Replay: early data is rejected.
func (c *SQLiteCache) Check(pskIdentity []byte, obfuscatedAge uint32) Result {
	fp := fingerprint(pskIdentity, obfuscatedAge)
	now := time.Now()

	if _, err := c.db.Exec(`delete from seen_identities where seen_at < ?`, now.Add(-c.ttl)); err != nil {
		alertlog.Logf(alertlog.Crypto, "replay cache prune failed: %s", err)
	}

	var existing time.Time
	err := c.db.QueryRow(`select seen_at from seen_identities where fingerprint = ?`, fp).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
		if _, err := c.db.Exec(`insert or replace into seen_identities (fingerprint, seen_at) values (?, ?)`, fp, now); err != nil {
			alertlog.Logf(alertlog.Crypto, "replay cache insert failed: %s", err)
			return MaybeReplay
		}
		return NotReplay
	case err != nil:
		alertlog.Logf(alertlog.Crypto, "replay cache lookup failed: %s", err)
		return MaybeReplay
	default:
		return Replay
	}
}
