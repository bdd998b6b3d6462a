package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"
)

// ErrUsernameTaken is returned by CreateUser when the username already has a
// row. The check and the append happen under one lock acquisition, so two
// concurrent signups cannot both pass it.
var ErrUsernameTaken = errors.New("username already exists")

// IntegrityError signals a persisted row that does not conform to the table
// schema. It is fatal for the current operation and is never skipped.
type IntegrityError struct {
	Table string
	Line  int
	Err   error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("corrupt record in %s at line %d: %v", e.Table, e.Line, e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type ChatMessage struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"-"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

const timeLayout = time.RFC3339Nano

var (
	userHeader = []string{"id", "username", "password_hash", "created_at"}
	chatHeader = []string{"id", "user_id", "role", "content", "created_at"}
)

// Store keeps the user and chat tables as append-only CSV files. Every
// public operation acquires mu for its whole duration, which totally orders
// reads and writes across both tables and keeps next-id assignment safe
// under concurrent callers.
type Store struct {
	mu        sync.Mutex
	usersPath string
	chatPath  string
}

func New(dir string) *Store {
	return &Store{
		usersPath: filepath.Join(dir, "users.csv"),
		chatPath:  filepath.Join(dir, "chat_history.csv"),
	}
}

// Init creates the data directory and both tables with a header row when
// they do not exist yet. Existing tables are left untouched, so it is safe
// to call on every process start.
func (s *Store) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.usersPath), 0o755); err != nil {
		return fmt.Errorf("ensure data dir: %w", err)
	}
	if err := ensureTable(s.usersPath, userHeader); err != nil {
		return err
	}
	return ensureTable(s.chatPath, chatHeader)
}

func ensureTable(path string, header []string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return fmt.Errorf("write header %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush header %s: %w", path, err)
	}
	return f.Close()
}

// FindUserByUsername scans the user table for an exact, case-sensitive
// match. A miss is a normal outcome and returns (nil, nil).
func (s *Store) FindUserByUsername(username string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.readUsers()
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Username == username {
			u := users[i]
			return &u, nil
		}
	}
	return nil, nil
}

// CreateUser assigns the next id (max existing id + 1, starting at 1),
// stamps the current time and appends one row. It re-checks username
// uniqueness under the same lock acquisition and returns ErrUsernameTaken
// on a duplicate.
func (s *Store) CreateUser(username, passwordHash string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.readUsers()
	if err != nil {
		return nil, err
	}
	var maxID int64
	for i := range users {
		if users[i].Username == username {
			return nil, ErrUsernameTaken
		}
		if users[i].ID > maxID {
			maxID = users[i].ID
		}
	}

	u := User{
		ID:           maxID + 1,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	row := []string{
		strconv.FormatInt(u.ID, 10),
		u.Username,
		u.PasswordHash,
		u.CreatedAt.Format(timeLayout),
	}
	if err := appendRow(s.usersPath, row); err != nil {
		return nil, err
	}
	return &u, nil
}

// AppendChatMessage appends one row to the chat table. Ids are monotonic
// across the whole table, not per user. The store does not verify that
// userID references an existing user; that is the caller's job.
func (s *Store) AppendChatMessage(userID int64, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, err := s.readChatMessages()
	if err != nil {
		return err
	}
	var maxID int64
	for i := range msgs {
		if msgs[i].ID > maxID {
			maxID = msgs[i].ID
		}
	}

	row := []string{
		strconv.FormatInt(maxID+1, 10),
		strconv.FormatInt(userID, 10),
		role,
		content,
		time.Now().UTC().Format(timeLayout),
	}
	return appendRow(s.chatPath, row)
}

// ListChatHistory returns the user's messages sorted ascending by
// (created_at, id), truncated to the first limit entries. With more rows
// than limit this yields the oldest ones; that matches the historical
// behavior callers depend on.
func (s *Store) ListChatHistory(userID int64, limit int) ([]ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readChatMessages()
	if err != nil {
		return nil, err
	}
	out := make([]ChatMessage, 0, len(all))
	for i := range all {
		if all[i].UserID == userID {
			out = append(out, all[i])
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// readUsers loads the whole user table. The caller must hold mu.
func (s *Store) readUsers() ([]User, error) {
	rows, err := readTable(s.usersPath, userHeader)
	if err != nil {
		return nil, err
	}
	users := make([]User, 0, len(rows))
	for _, r := range rows {
		id, err := strconv.ParseInt(r.fields[0], 10, 64)
		if err != nil {
			return nil, &IntegrityError{Table: s.usersPath, Line: r.line, Err: fmt.Errorf("bad id %q", r.fields[0])}
		}
		createdAt, err := time.Parse(timeLayout, r.fields[3])
		if err != nil {
			return nil, &IntegrityError{Table: s.usersPath, Line: r.line, Err: fmt.Errorf("bad created_at %q", r.fields[3])}
		}
		users = append(users, User{
			ID:           id,
			Username:     r.fields[1],
			PasswordHash: r.fields[2],
			CreatedAt:    createdAt,
		})
	}
	return users, nil
}

// readChatMessages loads the whole chat table. The caller must hold mu.
func (s *Store) readChatMessages() ([]ChatMessage, error) {
	rows, err := readTable(s.chatPath, chatHeader)
	if err != nil {
		return nil, err
	}
	msgs := make([]ChatMessage, 0, len(rows))
	for _, r := range rows {
		id, err := strconv.ParseInt(r.fields[0], 10, 64)
		if err != nil {
			return nil, &IntegrityError{Table: s.chatPath, Line: r.line, Err: fmt.Errorf("bad id %q", r.fields[0])}
		}
		userID, err := strconv.ParseInt(r.fields[1], 10, 64)
		if err != nil {
			return nil, &IntegrityError{Table: s.chatPath, Line: r.line, Err: fmt.Errorf("bad user_id %q", r.fields[1])}
		}
		createdAt, err := time.Parse(timeLayout, r.fields[4])
		if err != nil {
			return nil, &IntegrityError{Table: s.chatPath, Line: r.line, Err: fmt.Errorf("bad created_at %q", r.fields[4])}
		}
		msgs = append(msgs, ChatMessage{
			ID:        id,
			UserID:    userID,
			Role:      r.fields[2],
			Content:   r.fields[3],
			CreatedAt: createdAt,
		})
	}
	return msgs, nil
}

type rawRow struct {
	line   int
	fields []string
}

func readTable(path string, header []string) ([]rawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)

	got, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, &IntegrityError{Table: path, Line: 1, Err: errors.New("missing header row")}
	}
	if err != nil {
		return nil, &IntegrityError{Table: path, Line: 1, Err: err}
	}
	for i := range header {
		if got[i] != header[i] {
			return nil, &IntegrityError{Table: path, Line: 1, Err: fmt.Errorf("unexpected header %v", got)}
		}
	}

	var rows []rawRow
	line := 1
	for {
		line++
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &IntegrityError{Table: path, Line: line, Err: err}
		}
		rows = append(rows, rawRow{line: line, fields: rec})
	}
	return rows, nil
}

func appendRow(path string, record []string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open append %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(record); err != nil {
		_ = f.Close()
		return fmt.Errorf("append %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
