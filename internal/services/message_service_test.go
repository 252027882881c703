package services

import (
	"context"
	"encoding/json"
	"testing"

	"alumnet/internal/apptypes"
	"alumnet/internal/config"
	"alumnet/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMessageFixture(t *testing.T) (*fakeUserRepo, *fakeProducer, ConnectionService, MessageService) {
	t.Helper()
	userRepo := newFakeUserRepo()
	connRepo := newFakeConnectionRepo()
	messageRepo := newFakeMessageRepo()
	producer := &fakeProducer{}
	kafkaCfg := config.KafkaConfig{
		NotificationsTopic: "test-notifications",
		MessagesTopic:      "test-messages",
	}
	connSvc := NewConnectionService(connRepo, userRepo, nil, kafkaCfg)
	msgSvc := NewMessageService(messageRepo, userRepo, connSvc, producer, kafkaCfg)
	return userRepo, producer, connSvc, msgSvc
}

func connect(t *testing.T, svc ConnectionService, a, b uint) {
	t.Helper()
	ctx := context.Background()
	conn, err := svc.RequestConnection(ctx, a, b, "")
	require.NoError(t, err)
	require.NoError(t, svc.RespondToConnection(ctx, b, conn.ID, true))
}

func TestSendMessageRequiresConnection(t *testing.T) {
	ctx := context.Background()
	userRepo, _, connSvc, msgSvc := newMessageFixture(t)
	alice := userRepo.addUser("alice", models.RoleAlumni, true)
	bob := userRepo.addUser("bob", models.RoleStudent, true)

	// 未建立连接
	message, err := msgSvc.SendMessage(ctx, alice.ID, bob.ID, "你好")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Nil(t, message)

	// 待处理的请求也不够
	conn, err := connSvc.RequestConnection(ctx, alice.ID, bob.ID, "")
	require.NoError(t, err)
	_, err = msgSvc.SendMessage(ctx, alice.ID, bob.ID, "你好")
	assert.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, connSvc.RespondToConnection(ctx, bob.ID, conn.ID, true))

	message, err = msgSvc.SendMessage(ctx, alice.ID, bob.ID, "你好")
	require.NoError(t, err)
	require.NotNil(t, message)
	assert.NotZero(t, message.ID)
	assert.Equal(t, alice.ID, message.SenderID)
	assert.Equal(t, bob.ID, message.RecipientID)
}

func TestSendMessageValidation(t *testing.T) {
	ctx := context.Background()
	userRepo, _, connSvc, msgSvc := newMessageFixture(t)
	alice := userRepo.addUser("alice", models.RoleAlumni, true)
	bob := userRepo.addUser("bob", models.RoleStudent, true)
	connect(t, connSvc, alice.ID, bob.ID)

	_, err := msgSvc.SendMessage(ctx, alice.ID, alice.ID, "自言自语")
	assert.ErrorIs(t, err, ErrSelfConnection)

	_, err = msgSvc.SendMessage(ctx, alice.ID, bob.ID, "   ")
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestSendMessagePublishesDeliveryEvent(t *testing.T) {
	ctx := context.Background()
	userRepo, producer, connSvc, msgSvc := newMessageFixture(t)
	alice := userRepo.addUser("alice", models.RoleAlumni, true)
	bob := userRepo.addUser("bob", models.RoleStudent, true)
	connect(t, connSvc, alice.ID, bob.ID)

	message, err := msgSvc.SendMessage(ctx, alice.ID, bob.ID, "晚上聚餐吗?")
	require.NoError(t, err)

	events := producer.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, "test-messages", events[0].Topic)

	var n apptypes.Notification
	require.NoError(t, json.Unmarshal(events[0].Payload, &n))
	assert.Equal(t, apptypes.NotificationDirectMessage, n.Type)
	assert.Equal(t, bob.ID, n.RecipientID)
	assert.Equal(t, alice.ID, n.SenderID)
	assert.Equal(t, message.ID, n.MessageID)
	assert.Equal(t, "晚上聚餐吗?", n.Preview)
}

func TestConversationFlow(t *testing.T) {
	ctx := context.Background()
	userRepo, _, connSvc, msgSvc := newMessageFixture(t)
	alice := userRepo.addUser("alice", models.RoleAlumni, true)
	bob := userRepo.addUser("bob", models.RoleStudent, true)
	carol := userRepo.addUser("carol", models.RoleAlumni, true)
	connect(t, connSvc, alice.ID, bob.ID)

	_, err := msgSvc.SendMessage(ctx, alice.ID, bob.ID, "第一条")
	require.NoError(t, err)
	_, err = msgSvc.SendMessage(ctx, bob.ID, alice.ID, "第二条")
	require.NoError(t, err)

	messages, err := msgSvc.ListConversation(ctx, alice.ID, bob.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "第二条", messages[0].Content)

	// 非连接方不能读取会话
	_, err = msgSvc.ListConversation(ctx, carol.ID, alice.ID, 10, 0)
	assert.ErrorIs(t, err, ErrNotConnected)

	unread, err := msgSvc.CountUnread(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	marked, err := msgSvc.MarkConversationRead(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)

	unread, err = msgSvc.CountUnread(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, unread)
}
