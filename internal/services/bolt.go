package services

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

var waitlistBucket = []byte("waitlist")

// ErrInvalidEmail is returned when a waitlist entry does not carry a usable email address.
var ErrInvalidEmail = errors.New("invalid email address")

// WaitlistEntry is a person who asked to be notified when the next model version opens up.
type WaitlistEntry struct {
	Seq      uint64    `json:"seq"`
	Email    string    `json:"email"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Waitlist stores waitlist entries in a BoltDB file, keyed by normalised email address so joining
// twice keeps the original entry.
type Waitlist struct {
	db *bolt.DB
}

// NewWaitlist opens or creates the BoltDB file at path. The file is created with 0600 permissions.
func NewWaitlist(path string) (Waitlist, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return Waitlist{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(waitlistBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return Waitlist{}, fmt.Errorf("failed to create waitlist bucket: %w", err)
	}

	return Waitlist{db: db}, nil
}

// NormalizeEmail validates email and returns its canonical lower-case address.
func NormalizeEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidEmail, err)
	}
	return strings.ToLower(addr.Address), nil
}

// Join adds email to the waitlist. It returns the stored entry and whether it was newly added.
func (w Waitlist) Join(_ context.Context, email string, now time.Time) (WaitlistEntry, bool, error) {
	addr, err := NormalizeEmail(email)
	if err != nil {
		return WaitlistEntry{}, false, err
	}

	var entry WaitlistEntry
	var added bool
	err = w.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(waitlistBucket)
		if b == nil {
			return errors.New("waitlist bucket is missing")
		}

		if v := b.Get([]byte(addr)); v != nil {
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("failed to unmarshal entry: %w", err)
			}
			return nil
		}

		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}
		entry = WaitlistEntry{Seq: seq, Email: addr, JoinedAt: now.UTC()}

		v, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal entry: %w", err)
		}
		added = true
		return b.Put([]byte(addr), v)
	})
	if err != nil {
		return WaitlistEntry{}, false, err
	}

	return entry, added, nil
}

// Entries returns every waitlist entry in joining order.
func (w Waitlist) Entries(context.Context) ([]WaitlistEntry, error) {
	var entries []WaitlistEntry
	err := w.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(waitlistBucket)
		if b == nil {
			return nil
		}

		return b.ForEach(func(_, v []byte) error {
			var entry WaitlistEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("failed to unmarshal entry: %w", err)
			}
			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(entries, func(a, b WaitlistEntry) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return entries, nil
}

// Close releases the database file.
func (w Waitlist) Close() error {
	return w.db.Close()
}
