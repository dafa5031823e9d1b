package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustCreateUser(t *testing.T, s *Store, email string) *User {
	t.Helper()
	user, err := s.CreateUser(email, "$2a$10$fakehash")
	require.NoError(t, err)
	return user
}

func TestCreateUser(t *testing.T) {
	s := openTestStore(t)

	user := mustCreateUser(t, s, "first@example.com")
	assert.NotEqual(t, uuid.Nil, user.ID)

	got, err := s.GetUserByEmail("first@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, user.ID, got.ID)

	byID, err := s.GetUserByID(user.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "first@example.com", byID.Email)
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	s := openTestStore(t)
	mustCreateUser(t, s, "dup@example.com")

	_, err := s.CreateUser("dup@example.com", "$2a$10$otherhash")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestGetUser_Absent(t *testing.T) {
	s := openTestStore(t)

	user, err := s.GetUserByEmail("nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, user)

	user, err = s.GetUserByID(uuid.New())
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestSaveChat_DuplicateIDIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	user := mustCreateUser(t, s, "owner@example.com")

	chatID := uuid.New()
	first := &Chat{ID: chatID, UserID: user.ID, Title: "original title", Visibility: VisibilityPrivate}
	require.NoError(t, s.SaveChat(first))

	// A second insert with the same id succeeds and leaves the row untouched.
	second := &Chat{ID: chatID, UserID: user.ID, Title: "competing title", Visibility: VisibilityPrivate}
	require.NoError(t, s.SaveChat(second))

	got, err := s.GetChatByID(chatID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "original title", got.Title)
}

func TestGetChatsByUserID_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	user := mustCreateUser(t, s, "owner@example.com")

	base := time.Now().Truncate(time.Second)
	older := &Chat{ID: uuid.New(), UserID: user.ID, Title: "older", Visibility: VisibilityPrivate, CreatedAt: base}
	newer := &Chat{ID: uuid.New(), UserID: user.ID, Title: "newer", Visibility: VisibilityPrivate, CreatedAt: base.Add(time.Minute)}
	require.NoError(t, s.SaveChat(older))
	require.NoError(t, s.SaveChat(newer))

	// Another user's chat must not appear in the listing.
	other := mustCreateUser(t, s, "other@example.com")
	require.NoError(t, s.SaveChat(&Chat{ID: uuid.New(), UserID: other.ID, Title: "theirs", Visibility: VisibilityPrivate}))

	chats, err := s.GetChatsByUserID(user.ID)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "newer", chats[0].Title)
	assert.Equal(t, "older", chats[1].Title)
}

func TestDeleteChat_RemovesMessages(t *testing.T) {
	s := openTestStore(t)
	user := mustCreateUser(t, s, "owner@example.com")

	chatID := uuid.New()
	require.NoError(t, s.SaveChat(&Chat{ID: chatID, UserID: user.ID, Title: "doomed", Visibility: VisibilityPrivate}))
	require.NoError(t, s.SaveMessages([]Message{
		{ID: uuid.New(), ChatID: chatID, Role: RoleUser, Content: "hi", CreatedAt: time.Now()},
		{ID: uuid.New(), ChatID: chatID, Role: RoleAssistant, Content: "hello", CreatedAt: time.Now()},
	}))

	require.NoError(t, s.DeleteChat(chatID))

	chat, err := s.GetChatByID(chatID)
	require.NoError(t, err)
	assert.Nil(t, chat)

	msgs, err := s.GetMessagesByChatID(chatID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestUpdateChatVisibility(t *testing.T) {
	s := openTestStore(t)
	user := mustCreateUser(t, s, "owner@example.com")

	chatID := uuid.New()
	require.NoError(t, s.SaveChat(&Chat{ID: chatID, UserID: user.ID, Title: "shared", Visibility: VisibilityPrivate}))

	require.NoError(t, s.UpdateChatVisibility(chatID, VisibilityPublic))

	got, err := s.GetChatByID(chatID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, VisibilityPublic, got.Visibility)
}

func TestMessages_OrderedByCreation(t *testing.T) {
	s := openTestStore(t)
	user := mustCreateUser(t, s, "owner@example.com")

	chatID := uuid.New()
	require.NoError(t, s.SaveChat(&Chat{ID: chatID, UserID: user.ID, Title: "ordered", Visibility: VisibilityPrivate}))

	base := time.Now().Truncate(time.Second)
	require.NoError(t, s.SaveMessages([]Message{
		{ID: uuid.New(), ChatID: chatID, Role: RoleAssistant, Content: "second", CreatedAt: base.Add(time.Second)},
		{ID: uuid.New(), ChatID: chatID, Role: RoleUser, Content: "first", CreatedAt: base},
	}))

	msgs, err := s.GetMessagesByChatID(chatID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
}

func TestGetMessageByID_Absent(t *testing.T) {
	s := openTestStore(t)

	msg, err := s.GetMessageByID(uuid.New())
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestDeleteMessagesAfter_StrictlyAfter(t *testing.T) {
	s := openTestStore(t)
	user := mustCreateUser(t, s, "owner@example.com")

	chatID := uuid.New()
	require.NoError(t, s.SaveChat(&Chat{ID: chatID, UserID: user.ID, Title: "branch", Visibility: VisibilityPrivate}))

	base := time.Now().Truncate(time.Second)
	pivot := Message{ID: uuid.New(), ChatID: chatID, Role: RoleAssistant, Content: "pivot", CreatedAt: base.Add(time.Second)}
	require.NoError(t, s.SaveMessages([]Message{
		{ID: uuid.New(), ChatID: chatID, Role: RoleUser, Content: "before", CreatedAt: base},
		pivot,
		{ID: uuid.New(), ChatID: chatID, Role: RoleUser, Content: "after", CreatedAt: base.Add(2 * time.Second)},
	}))

	// Messages in another chat with later timestamps must survive.
	otherChat := uuid.New()
	require.NoError(t, s.SaveChat(&Chat{ID: otherChat, UserID: user.ID, Title: "other", Visibility: VisibilityPrivate}))
	require.NoError(t, s.SaveMessages([]Message{
		{ID: uuid.New(), ChatID: otherChat, Role: RoleUser, Content: "untouched", CreatedAt: base.Add(time.Hour)},
	}))

	require.NoError(t, s.DeleteMessagesAfter(chatID, pivot.CreatedAt))

	msgs, err := s.GetMessagesByChatID(chatID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "before", msgs[0].Content)
	assert.Equal(t, "pivot", msgs[1].Content)

	otherMsgs, err := s.GetMessagesByChatID(otherChat)
	require.NoError(t, err)
	assert.Len(t, otherMsgs, 1)
}
