package ticket

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jalmeida85/tls13srv"
	"github.com/jalmeida85/tls13srv/internal/alertlog"
)

// SQLiteStore is the default Cipher: AES-256-GCM sealing of a gob-encoded
// State, keyed by a rotating protection key persisted in a sqlite3
// database. The protection_keys table and the keyID-prefixed sealed-blob
// wire format are grounded on the teacher's pinningStore/pinningTicket
// pair, generalized from a client-pinning secret to a full resumption
// State payload.
type SQLiteStore struct {
	db *sql.DB

	mu          sync.RWMutex
	activeKeyID int64
	keys        map[int64][]byte

	keyLifetime time.Duration
}

// Open creates (or reuses) the sqlite3 database at path and ensures at
// least one active protection key exists.
func Open(path string, keyLifetime time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`create table if not exists protection_keys (
		key_id integer not null primary key autoincrement,
		key blob not null,
		valid_from datetime not null,
		valid_until datetime not null
	)`); err != nil {
		db.Close()
		return nil, err
	}
	s := &SQLiteStore{db: db, keys: make(map[int64][]byte), keyLifetime: keyLifetime}
	if err := s.loadOrCreateActiveKey(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) loadOrCreateActiveKey() error {
	row := s.db.QueryRow(`select key_id, key from protection_keys where valid_until > ? order by key_id desc limit 1`, time.Now())
	var id int64
	var key []byte
	if err := row.Scan(&id, &key); err == nil {
		s.mu.Lock()
		s.activeKeyID, s.keys[id] = id, key
		s.mu.Unlock()
		return nil
	}
	return s.rotateKey()
}

// rotateKey mints a fresh AES-256 key and makes it the active one;
// existing tickets sealed under older keys remain decryptable as long as
// their rows exist. Nothing deletes old rows, and keyByID does not check
// valid_until.
func (s *SQLiteStore) rotateKey() error {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return err
	}
	now := time.Now()
	res, err := s.db.Exec(`insert into protection_keys (key, valid_from, valid_until) values (?, ?, ?)`,
		key, now, now.Add(s.keyLifetime))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.activeKeyID, s.keys[id] = id, key
	s.mu.Unlock()
	alertlog.Logf(alertlog.Crypto, "ticket protection key rotated: key_id=%d", id)
	return nil
}

// RotateKeys mints a new active key if the current one has passed its
// lifetime. Callers run this on a timer; it is not invoked implicitly by
// Encrypt/Decrypt so key rotation cadence stays a deployment decision.
func (s *SQLiteStore) RotateKeys() error {
	s.mu.RLock()
	id := s.activeKeyID
	s.mu.RUnlock()
	var validUntil time.Time
	if err := s.db.QueryRow(`select valid_until from protection_keys where key_id = ?`, id).Scan(&validUntil); err != nil {
		return err
	}
	if time.Now().Before(validUntil) {
		return nil
	}
	return s.rotateKey()
}

func (s *SQLiteStore) keyByID(id int64) ([]byte, bool) {
	s.mu.RLock()
	key, ok := s.keys[id]
	s.mu.RUnlock()
	if ok {
		return key, true
	}
	var key2 []byte
	if err := s.db.QueryRow(`select key from protection_keys where key_id = ?`, id).Scan(&key2); err != nil {
		return nil, false
	}
	s.mu.Lock()
	s.keys[id] = key2
	s.mu.Unlock()
	return key2, true
}

// Encrypt gob-encodes state and AES-GCM-seals it under the active
// protection key, with the 8-byte key_id as additional authenticated
// data; the key_id and the nonce are prepended to the wire blob.
func (s *SQLiteStore) Encrypt(state *State) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return nil, err
	}

	s.mu.RLock()
	keyID, key := s.activeKeyID, s.keys[s.activeKeyID]
	s.mu.RUnlock()

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	var header [8]byte
	binary.BigEndian.PutUint64(header[:], uint64(keyID))
	sealed := aead.Seal(nil, nonce, buf.Bytes(), header[:])

	out := make([]byte, 0, len(header)+len(nonce)+len(sealed))
	out = append(out, header[:]...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

// Decrypt reverses Encrypt, looking up the protection key named by the
// blob's key_id header (falling back to the database if it is not in
// the in-memory cache).
func (s *SQLiteStore) Decrypt(opaqueTicket []byte) (*State, error) {
	if len(opaqueTicket) < 8 {
		return nil, tls13srv.NewError(tls13srv.KindDecryptError, "ticket too short")
	}
	keyID := int64(binary.BigEndian.Uint64(opaqueTicket[:8]))
	key, ok := s.keyByID(keyID)
	if !ok {
		return nil, tls13srv.NewError(tls13srv.KindDecryptError, fmt.Sprintf("unknown protection key_id=%d", keyID))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	rest := opaqueTicket[8:]
	if len(rest) < aead.NonceSize() {
		return nil, tls13srv.NewError(tls13srv.KindDecryptError, "ticket truncated")
	}
	nonce, sealed := rest[:aead.NonceSize()], rest[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, opaqueTicket[:8])
	if err != nil {
		return nil, tls13srv.NewError(tls13srv.KindDecryptError, "ticket AEAD open failed")
	}
	var state State
	if err := gob.NewDecoder(bytes.NewReader(plain)).Decode(&state); err != nil {
		return nil, tls13srv.NewError(tls13srv.KindDecryptError, "ticket payload decode failed")
	}
	return &state, nil
}
