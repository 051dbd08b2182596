package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/bitmitra/realtime/internal/model/chat"
)

// ErrEmptyBody rejects messages whose body is empty after trimming whitespace.
var ErrEmptyBody = errors.New("message body is empty")

// MessageRepository persists direct messages in BadgerDB.
//
// The key is formatted as "msg:{pair}:{timestamp_padded}:{uuid}" where pair is
// the canonical (lexicographically sorted) sender/receiver pair, so that:
//  1. A conversation is a single prefix, regardless of who sent what.
//  2. The 19-digit zero-padded nanosecond timestamp makes lexicographic
//     iteration chronological.
//  3. The trailing UUID disambiguates two messages written in the same
//     nanosecond.
type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

// NewMessageRepository wires the repository to an open Badger handle.
// limitMessages, when non-nil, caps History results to the newest N entries.
func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) *MessageRepository {
	return &MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// Append validates and persists a new message, returning the stored record
// with its server-assigned identifier and timestamp. Persistence completes
// before any live delivery is attempted by callers.
func (r *MessageRepository) Append(_ context.Context, senderID, receiverID, body string) (chat.Message, error) {
	if strings.TrimSpace(body) == "" {
		return chat.Message{}, ErrEmptyBody
	}

	msg := chat.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Body:       body,
		CreatedAt:  time.Now().UTC(),
	}

	key := messageKey(pairKey(senderID, receiverID), msg.CreatedAt, msg.ID)
	value, err := json.Marshal(msg)
	if err != nil {
		return chat.Message{}, fmt.Errorf("encode message: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return chat.Message{}, fmt.Errorf("store message: %w", err)
	}
	return msg, nil
}

// History returns messages exchanged between the two users, ascending by
// creation time. The pair is unordered: History(a, b) and History(b, a) scan
// the same prefix. limit, when non-nil, keeps only the newest N entries; the
// operator-configured cap still applies and wins when smaller.
func (r *MessageRepository) History(_ context.Context, userA, userB string, limit *int) ([]chat.Message, error) {
	newest := r.limitMessages
	if limit != nil && (newest == nil || *limit < *newest) {
		newest = limit
	}

	prefix := []byte(fmt.Sprintf("msg:%s:", pairKey(userA, userB)))

	var raw [][]byte
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible timestamp, then walk backwards so a
		// configured cap keeps the most recent messages.
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if newest != nil && len(raw) == *newest {
				r.log.Debug("history capped", "limit", *newest)
				break
			}
			err := it.Item().Value(func(value []byte) error {
				raw = append(raw, append([]byte{}, value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}

	messages := make([]chat.Message, 0, len(raw))
	for _, value := range raw {
		var msg chat.Message
		if err := json.Unmarshal(value, &msg); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		messages = append(messages, msg)
	}
	// Reverse iteration yielded newest-first; callers expect ascending.
	return lo.Reverse(messages), nil
}

// pairKey canonicalizes an unordered user pair into a stable key fragment.
func pairKey(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return userA + ":" + userB
}

func messageKey(pair string, at time.Time, id string) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", pair, at.UnixNano(), id))
}
