package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// ErrEmailTaken is returned by CreateUser when the email already has a row.
var ErrEmailTaken = errors.New("email already registered")

// Store is the persistence gateway. It is constructed once at startup, closed
// at shutdown, and injected into the services that need it.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

// Open connects to the database named by dsn and migrates the schema.
// A postgres DSN ("postgres://..." or key=value form) selects the postgres
// driver; anything else is treated as a sqlite file path.
func Open(dsn string, log zerolog.Logger) (*Store, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.Contains(dsn, "host=") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&User{}, &Chat{}, &Message{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateUser inserts a new user. The password must already be hashed.
func (s *Store) CreateUser(email, passwordHash string) (*User, error) {
	user := &User{
		ID:       uuid.New(),
		Email:    email,
		Password: passwordHash,
	}
	if err := s.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

// GetUserByEmail returns (nil, nil) when no user has the email.
func (s *Store) GetUserByEmail(email string) (*User, error) {
	var user User
	err := s.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// GetUserByID returns (nil, nil) when the user does not exist.
func (s *Store) GetUserByID(id uuid.UUID) (*User, error) {
	var user User
	err := s.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// SaveChat inserts a chat record. The id is caller-supplied; a duplicate id is
// treated as success and the existing row is left untouched, which is what
// lets two racing first-message requests for the same chat both proceed.
func (s *Store) SaveChat(chat *Chat) error {
	err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(chat).Error
	if err != nil {
		return fmt.Errorf("failed to insert chat: %w", err)
	}
	return nil
}

// GetChatByID returns (nil, nil) when the chat does not exist.
func (s *Store) GetChatByID(id uuid.UUID) (*Chat, error) {
	var chat Chat
	err := s.db.Where("id = ?", id).First(&chat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query chat: %w", err)
	}
	return &chat, nil
}

func (s *Store) GetChatsByUserID(userID uuid.UUID) ([]Chat, error) {
	var chats []Chat
	err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&chats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	return chats, nil
}

// DeleteChat removes a chat and all of its messages in one transaction.
func (s *Store) DeleteChat(id uuid.UUID) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ?", id).Delete(&Message{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&Chat{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}
	return nil
}

func (s *Store) UpdateChatVisibility(id uuid.UUID, visibility string) error {
	err := s.db.Model(&Chat{}).Where("id = ?", id).
		Update("visibility", visibility).Error
	if err != nil {
		return fmt.Errorf("failed to update chat visibility: %w", err)
	}
	return nil
}

// SaveMessages inserts the batch atomically; either every row lands or none.
func (s *Store) SaveMessages(messages []Message) error {
	if len(messages) == 0 {
		return nil
	}
	if err := s.db.Create(&messages).Error; err != nil {
		return fmt.Errorf("failed to insert messages: %w", err)
	}
	return nil
}

// GetMessageByID returns (nil, nil) when the message does not exist.
func (s *Store) GetMessageByID(id uuid.UUID) (*Message, error) {
	var msg Message
	err := s.db.Where("id = ?", id).First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query message: %w", err)
	}
	return &msg, nil
}

func (s *Store) GetMessagesByChatID(chatID uuid.UUID) ([]Message, error) {
	var messages []Message
	err := s.db.Where("chat_id = ?", chatID).Order("created_at ASC").Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	return messages, nil
}

// DeleteMessagesAfter removes every message in the chat created strictly
// after ts. Used to discard a conversation branch before regeneration.
func (s *Store) DeleteMessagesAfter(chatID uuid.UUID, ts time.Time) error {
	err := s.db.Where("chat_id = ? AND created_at > ?", chatID, ts).
		Delete(&Message{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete trailing messages: %w", err)
	}
	return nil
}
