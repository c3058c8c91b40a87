package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"

	"chat-gateway/internal/contract"
	"chat-gateway/internal/models"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Key layout:
//
//	user:id:{id}                  -> models.User
//	user:name:{username}          -> id
//	conv:{id}                     -> models.Conversation
//	part:{conversation}:{user}    -> empty
//	msg:{conversation}:{ts}:{id}  -> models.Message
//
// Numbers are zero padded to 19 digits so lexicographic order is numeric order.
const (
	seqBandwidth = 100
	padWidth     = 19
)

// BadgerStore is an embedded single-node implementation of every collaborator the
// gateway consumes.
type BadgerStore struct {
	db      *badger.DB
	log     *zap.Logger
	userSeq *badger.Sequence
	convSeq *badger.Sequence
	msgSeq  *badger.Sequence
	now     func() time.Time
}

// OpenBadger opens the store at path; an empty path keeps everything in memory.
func OpenBadger(path string, log *zap.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(badgerLogger{log.Named("badger").Sugar()})
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "open badger")
	}

	s := &BadgerStore{db: db, log: log.Named("repo"), now: time.Now}
	for key, dst := range map[string]**badger.Sequence{
		"seq:user":         &s.userSeq,
		"seq:conversation": &s.convSeq,
		"seq:message":      &s.msgSeq,
	} {
		seq, err := db.GetSequence([]byte(key), seqBandwidth)
		if err != nil {
			_ = s.Close()
			return nil, errors.Wrapf(err, "sequence %s", key)
		}
		*dst = seq
	}
	return s, nil
}

func (s *BadgerStore) Close() error {
	for _, seq := range []*badger.Sequence{s.userSeq, s.convSeq, s.msgSeq} {
		if seq != nil {
			_ = seq.Release()
		}
	}
	return s.db.Close()
}

func pad(n int64) string {
	return fmt.Sprintf("%0*d", padWidth, n)
}

func userIDKey(id int64) []byte { return []byte("user:id:" + pad(id)) }
func userNameKey(name string) []byte { return []byte("user:name:" + name) }
func conversationKey(id int64) []byte { return []byte("conv:" + pad(id)) }
func participantKey(c, u int64) []byte { return []byte("part:" + pad(c) + ":" + pad(u)) }
func messagePrefix(c int64) []byte { return []byte("msg:" + pad(c) + ":") }
func participantPrefix(c int64) []byte { return []byte("part:" + pad(c) + ":") }
func messageKey(m models.Message) []byte {
	return historyKey(m.ConversationID, m.CreatedAt, m.ID)
}
func historyKey(c int64, at time.Time, id int64) []byte {
	return []byte(fmt.Sprintf("msg:%s:%s:%s", pad(c), pad(at.UnixNano()), pad(id)))
}

func nextID(seq *badger.Sequence) (int64, error) {
	n, err := seq.Next()
	if err != nil {
		return 0, err
	}
	return int64(n) + 1, nil
}

func getJSON(txn *badger.Txn, key []byte, dst any) error {
	item, err := txn.Get(key)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dst)
	})
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, raw)
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *BadgerStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return wrap(err, "insert user")
	}
	id, err := nextID(s.userSeq)
	if err != nil {
		return wrap(err, "user id")
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		taken, err := exists(txn, userNameKey(user.Username))
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicate
		}
		user.ID = id
		user.CreatedAt = s.now().UTC()
		if err := setJSON(txn, userIDKey(id), user); err != nil {
			return err
		}
		return txn.Set(userNameKey(user.Username), []byte(strconv.FormatInt(id, 10)))
	})
	return wrap(err, "insert user")
}

func (s *BadgerStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap(err, "find user by username")
	}
	user := &models.User{}
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userNameKey(username))
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		id, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return err
		}
		return getJSON(txn, userIDKey(id), user)
	})
	if err != nil {
		return nil, wrap(err, "find user by username")
	}
	return user, nil
}

func (s *BadgerStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap(err, "find user by id")
	}
	user := &models.User{}
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userIDKey(id), user)
	})
	if err != nil {
		return nil, wrap(err, "find user by id")
	}
	return user, nil
}

func (s *BadgerStore) CreateConversation(ctx context.Context, title string) (*models.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap(err, "create conversation")
	}
	id, err := nextID(s.convSeq)
	if err != nil {
		return nil, wrap(err, "conversation id")
	}
	c := &models.Conversation{ID: id, Title: title, CreatedAt: s.now().UTC()}
	err = s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, conversationKey(id), c)
	})
	if err != nil {
		return nil, wrap(err, "create conversation")
	}
	return c, nil
}

func (s *BadgerStore) AddParticipant(ctx context.Context, conversationID, userID int64) error {
	if err := ctx.Err(); err != nil {
		return wrap(err, "add participant")
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		ok, err := exists(txn, conversationKey(conversationID))
		if err != nil {
			return err
		}
		if !ok {
			return badger.ErrKeyNotFound
		}
		return txn.Set(participantKey(conversationID, userID), nil)
	})
	return wrap(err, "add participant")
}

func (s *BadgerStore) FindDirectConversation(ctx context.Context, userA, userB int64) (*models.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap(err, "find direct conversation")
	}
	var found *models.Conversation
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte("part:")
		suffix := ":" + pad(userA)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			if len(key) != len("part:")+2*padWidth+1 || key[len(key)-len(suffix):] != suffix {
				continue
			}
			convID, err := strconv.ParseInt(key[len("part:"):len("part:")+padWidth], 10, 64)
			if err != nil {
				return err
			}
			both, err := exists(txn, participantKey(convID, userB))
			if err != nil {
				return err
			}
			if both {
				found = &models.Conversation{}
				return getJSON(txn, conversationKey(convID), found)
			}
		}
		return badger.ErrKeyNotFound
	})
	if err != nil {
		return nil, wrap(err, "find direct conversation")
	}
	return found, nil
}

func (s *BadgerStore) ConversationExists(ctx context.Context, conversationID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, wrap(err, "conversation exists")
	}
	var ok bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		ok, err = exists(txn, conversationKey(conversationID))
		return err
	})
	return ok, wrap(err, "conversation exists")
}

func (s *BadgerStore) IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, wrap(err, "is participant")
	}
	var ok bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		ok, err = exists(txn, participantKey(conversationID, userID))
		return err
	})
	return ok, wrap(err, "is participant")
}

// Participants lists the user ids of a conversation.
func (s *BadgerStore) Participants(ctx context.Context, conversationID int64) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap(err, "participants")
	}
	var ids []int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := participantPrefix(conversationID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id, err := strconv.ParseInt(string(it.Item().Key()[len(prefix):]), 10, 64)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	return ids, wrap(err, "participants")
}

// Append stores a message under its conversation; the store assigns id and created_at.
// Badger transactions take no context, so an expired ctx is only honoured
// before the write starts.
func (s *BadgerStore) Append(ctx context.Context, conversationID, senderID int64, content string) (models.Message, error) {
	if err := ctx.Err(); err != nil {
		return models.Message{}, wrap(err, "append message")
	}
	id, err := nextID(s.msgSeq)
	if err != nil {
		return models.Message{}, wrap(err, "message id")
	}
	m := models.Message{
		ID:             id,
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, messageKey(m), m)
	}); err != nil {
		s.log.Error("failed to save message",
			zap.Int64("conversation_id", conversationID),
			zap.Int64("sender_id", senderID),
			zap.Error(err))
		return models.Message{}, wrap(err, "append message")
	}
	return m, nil
}

// History scans the conversation prefix backwards from the cursor and returns
// the page oldest first, with sender names resolved. Keys sort by (created_at,
// id), so the cursor key itself is the exclusive upper bound.
func (s *BadgerStore) History(ctx context.Context, conversationID int64, limit int, cursor contract.Cursor) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap(err, "fetch history")
	}
	limit = clampLimit(limit)
	before := cursor.Before
	if before.IsZero() {
		before = s.now()
	}
	upper := historyKey(conversationID, before, cursor.BeforeID)

	var messages []models.Message
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := messagePrefix(conversationID)
		names := map[int64]string{}
		for it.Seek(upper); it.ValidForPrefix(prefix) && len(messages) < limit; it.Next() {
			if bytes.Compare(it.Item().Key(), upper) >= 0 {
				continue
			}
			var m models.Message
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				return err
			}
			name, ok := names[m.SenderID]
			if !ok {
				var u models.User
				if err := getJSON(txn, userIDKey(m.SenderID), &u); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
					return err
				}
				name = u.Username
				names[m.SenderID] = name
			}
			m.SenderName = name
			messages = append(messages, m)
		}
		return nil
	})
	if err != nil {
		return nil, wrap(err, "fetch history")
	}
	slices.Reverse(messages)
	return messages, nil
}

var _ contract.MessageStore = (*BadgerStore)(nil)
var _ contract.ParticipationOracle = (*BadgerStore)(nil)
var _ contract.UserDirectory = (*BadgerStore)(nil)

type badgerLogger struct {
	*zap.SugaredLogger
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.Warnf(format, args...)
}
