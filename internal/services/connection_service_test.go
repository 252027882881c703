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

func newConnectionFixture(t *testing.T) (*fakeUserRepo, *fakeConnectionRepo, *fakeProducer, ConnectionService) {
	t.Helper()
	userRepo := newFakeUserRepo()
	connRepo := newFakeConnectionRepo()
	producer := &fakeProducer{}
	svc := NewConnectionService(connRepo, userRepo, producer, config.KafkaConfig{
		NotificationsTopic: "test-notifications",
		MessagesTopic:      "test-messages",
	})
	return userRepo, connRepo, producer, svc
}

func TestRequestConnection(t *testing.T) {
	ctx := context.Background()
	userRepo, _, producer, svc := newConnectionFixture(t)
	alice := userRepo.addUser("alice", models.RoleAlumni, true)
	bob := userRepo.addUser("bob", models.RoleStudent, true)

	conn, err := svc.RequestConnection(ctx, alice.ID, bob.ID, "同班同学,加个好友")
	require.NoError(t, err)
	require.NotNil(t, conn)
	assert.NotZero(t, conn.ID)
	assert.Equal(t, alice.ID, conn.RequesterID)
	assert.Equal(t, bob.ID, conn.ReceiverID)
	assert.Equal(t, models.ConnectionStatusPending, conn.Status)
	assert.Equal(t, "同班同学,加个好友", conn.Message)

	// 接收方应收到一条连接请求通知
	events := producer.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, "test-notifications", events[0].Topic)
	var n apptypes.Notification
	require.NoError(t, json.Unmarshal(events[0].Payload, &n))
	assert.Equal(t, apptypes.NotificationConnectionRequest, n.Type)
	assert.Equal(t, bob.ID, n.RecipientID)
	assert.Equal(t, alice.ID, n.SenderID)
	assert.Equal(t, conn.ID, n.ConnectionID)
}

func TestRequestConnectionToSelf(t *testing.T) {
	ctx := context.Background()
	userRepo, _, _, svc := newConnectionFixture(t)
	alice := userRepo.addUser("alice", models.RoleAlumni, true)

	conn, err := svc.RequestConnection(ctx, alice.ID, alice.ID, "")
	assert.ErrorIs(t, err, ErrSelfConnection)
	assert.Nil(t, conn)
}

func TestRequestConnectionTargetMissingOrUnapproved(t *testing.T) {
	ctx := context.Background()
	userRepo, _, _, svc := newConnectionFixture(t)
	alice := userRepo.addUser("alice", models.RoleAlumni, true)
	pending := userRepo.addUser("pending", models.RoleStudent, false)

	// 目标不存在
	conn, err := svc.RequestConnection(ctx, alice.ID, 9999, "")
	assert.ErrorIs(t, err, ErrTargetNotFound)
	assert.Nil(t, conn)

	// 目标尚未通过审核,返回的错误与不存在无法区分
	conn, err = svc.RequestConnection(ctx, alice.ID, pending.ID, "")
	assert.ErrorIs(t, err, ErrTargetNotFound)
	assert.Nil(t, conn)
}

func TestRequestConnectionDuplicate(t *testing.T) {
	ctx := context.Background()
	userRepo, _, _, svc := newConnectionFixture(t)
	alice := userRepo.addUser("alice", models.RoleAlumni, true)
	bob := userRepo.addUser("bob", models.RoleStudent, true)

	first, err := svc.RequestConnection(ctx, alice.ID, bob.ID, "")
	require.NoError(t, err)

	// 同方向重复
	dup, err := svc.RequestConnection(ctx, alice.ID, bob.ID, "")
	assert.ErrorIs(t, err, ErrConnectionExists)
	require.NotNil(t, dup)
	assert.Equal(t, first.ID, dup.ID)

	// 反方向同样视为重复
	dup, err = svc.RequestConnection(ctx, bob.ID, alice.ID, "")
	assert.ErrorIs(t, err, ErrConnectionExists)
	require.NotNil(t, dup)
	assert.Equal(t, first.ID, dup.ID)
}

func TestRequestConnectionDuplicateAfterAccept(t *testing.T) {
	ctx := context.Background()
	userRepo, _, _, svc := newConnectionFixture(t)
	alice := userRepo.addUser("alice", models.RoleAlumni, true)
	bob := userRepo.addUser("bob", models.RoleStudent, true)

	first, err := svc.RequestConnection(ctx, alice.ID, bob.ID, "")
	require.NoError(t, err)
	require.NoError(t, svc.RespondToConnection(ctx, bob.ID, first.ID, true))

	dup, err := svc.RequestConnection(ctx, bob.ID, alice.ID, "")
	assert.ErrorIs(t, err, ErrConnectionExists)
	require.NotNil(t, dup)
	assert.Equal(t, models.ConnectionStatusAccepted, dup.Status)
}

func TestRequestConnectionLostRace(t *testing.T) {
	ctx := context.Background()
	userRepo, connRepo, _, svc := newConnectionFixture(t)
	alice := userRepo.addUser("alice", models.RoleAlumni, true)
	bob := userRepo.addUser("bob", models.RoleStudent, true)

	// 竞争者在预检与插入之间抢先写入反方向的请求
	connRepo.onCreate = func() {
		connRepo.insertLocked(&models.Connection{
			RequesterID: bob.ID,
			ReceiverID:  alice.ID,
			Status:      models.ConnectionStatusPending,
		})
	}

	survivor, err := svc.RequestConnection(ctx, alice.ID, bob.ID, "")
	assert.ErrorIs(t, err, ErrConnectionExists)
	require.NotNil(t, survivor)
	assert.Equal(t, bob.ID, survivor.RequesterID)
	assert.Equal(t, alice.ID, survivor.ReceiverID)
}

func TestAcceptConnection(t *testing.T) {
	ctx := context.Background()
	userRepo, connRepo, producer, svc := newConnectionFixture(t)
	alice := userRepo.addUser("alice", models.RoleAlumni, true)
	bob := userRepo.addUser("bob", models.RoleStudent, true)

	conn, err := svc.RequestConnection(ctx, alice.ID, bob.ID, "")
	require.NoError(t, err)

	require.NoError(t, svc.RespondToConnection(ctx, bob.ID, conn.ID, true))

	stored, err := connRepo.GetByID(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionStatusAccepted, stored.Status)

	// 第二条事件应是发给请求方的接受通知
	events := producer.recorded()
	require.Len(t, events, 2)
	var n apptypes.Notification
	require.NoError(t, json.Unmarshal(events[1].Payload, &n))
	assert.Equal(t, apptypes.NotificationConnectionAccepted, n.Type)
	assert.Equal(t, alice.ID, n.RecipientID)
	assert.Equal(t, bob.ID, n.SenderID)
}

func TestRespondAuthorization(t *testing.T) {
	ctx := context.Background()
	userRepo, _, _, svc := newConnectionFixture(t)
	alice := userRepo.addUser("alice", models.RoleAlumni, true)
	bob := userRepo.addUser("bob", models.RoleStudent, true)
	carol := userRepo.addUser("carol", models.RoleAlumni, true)

	conn, err := svc.RequestConnection(ctx, alice.ID, bob.ID, "")
	require.NoError(t, err)

	// 请求方不能接受自己发出的请求
	assert.ErrorIs(t, svc.RespondToConnection(ctx, alice.ID, conn.ID, true), ErrConnectionNotFound)
	// 第三方同样拿到 not found,无法探测请求是否存在
	assert.ErrorIs(t, svc.RespondToConnection(ctx, carol.ID, conn.ID, true), ErrConnectionNotFound)
	// 不存在的 ID
	assert.ErrorIs(t, svc.RespondToConnection(ctx, bob.ID, 9999, true), ErrConnectionNotFound)

	// 已接受的请求不能再次处理
	require.NoError(t, svc.RespondToConnection(ctx, bob.ID, conn.ID, true))
	assert.ErrorIs(t, svc.RespondToConnection(ctx, bob.ID, conn.ID, true), ErrConnectionNotFound)
	assert.ErrorIs(t, svc.RespondToConnection(ctx, bob.ID, conn.ID, false), ErrConnectionNotFound)
}

func TestRejectConnectionLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	userRepo, connRepo, _, svc := newConnectionFixture(t)
	alice := userRepo.addUser("alice", models.RoleAlumni, true)
	bob := userRepo.addUser("bob", models.RoleStudent, true)

	conn, err := svc.RequestConnection(ctx, alice.ID, bob.ID, "")
	require.NoError(t, err)

	require.NoError(t, svc.RespondToConnection(ctx, bob.ID, conn.ID, false))

	// 记录被删除
	_, err = connRepo.GetByID(ctx, conn.ID)
	assert.Error(t, err)

	// 拒绝之后可以重新发起请求
	again, err := svc.RequestConnection(ctx, alice.ID, bob.ID, "再试一次")
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionStatusPending, again.Status)
	assert.NotEqual(t, conn.ID, again.ID)
}

func TestRemoveConnection(t *testing.T) {
	ctx := context.Background()
	userRepo, connRepo, _, svc := newConnectionFixture(t)
	alice := userRepo.addUser("alice", models.RoleAlumni, true)
	bob := userRepo.addUser("bob", models.RoleStudent, true)
	carol := userRepo.addUser("carol", models.RoleAlumni, true)

	conn, err := svc.RequestConnection(ctx, alice.ID, bob.ID, "")
	require.NoError(t, err)

	// 待处理的请求不能用 remove 解除
	assert.ErrorIs(t, svc.RemoveConnection(ctx, alice.ID, conn.ID), ErrConnectionNotFound)

	require.NoError(t, svc.RespondToConnection(ctx, bob.ID, conn.ID, true))

	// 非参与方不能解除
	assert.ErrorIs(t, svc.RemoveConnection(ctx, carol.ID, conn.ID), ErrConnectionNotFound)

	// 任一参与方都可以解除,这里用请求方
	require.NoError(t, svc.RemoveConnection(ctx, alice.ID, conn.ID))
	_, err = connRepo.GetByID(ctx, conn.ID)
	assert.Error(t, err)

	// 解除之后双方可以重新连接
	again, err := svc.RequestConnection(ctx, bob.ID, alice.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionStatusPending, again.Status)
}

func TestRemoveConnectionByReceiver(t *testing.T) {
	ctx := context.Background()
	userRepo, connRepo, _, svc := newConnectionFixture(t)
	alice := userRepo.addUser("alice", models.RoleAlumni, true)
	bob := userRepo.addUser("bob", models.RoleStudent, true)

	conn, err := svc.RequestConnection(ctx, alice.ID, bob.ID, "")
	require.NoError(t, err)
	require.NoError(t, svc.RespondToConnection(ctx, bob.ID, conn.ID, true))

	require.NoError(t, svc.RemoveConnection(ctx, bob.ID, conn.ID))
	_, err = connRepo.GetByID(ctx, conn.ID)
	assert.Error(t, err)
}

func TestListConnections(t *testing.T) {
	ctx := context.Background()
	userRepo, _, _, svc := newConnectionFixture(t)
	alice := userRepo.addUser("alice", models.RoleAlumni, true)
	bob := userRepo.addUser("bob", models.RoleStudent, true)
	carol := userRepo.addUser("carol", models.RoleAlumni, true)
	dave := userRepo.addUser("dave", models.RoleStudent, true)

	// alice -> bob 已接受; alice -> carol 待处理; dave -> alice 待处理
	toBob, err := svc.RequestConnection(ctx, alice.ID, bob.ID, "")
	require.NoError(t, err)
	require.NoError(t, svc.RespondToConnection(ctx, bob.ID, toBob.ID, true))
	_, err = svc.RequestConnection(ctx, alice.ID, carol.ID, "")
	require.NoError(t, err)
	_, err = svc.RequestConnection(ctx, dave.ID, alice.ID, "")
	require.NoError(t, err)

	all, err := svc.ListConnections(ctx, alice.ID, ConnectionFilterAll)
	require.NoError(t, err)
	require.Len(t, all, 3)

	// 按创建时间倒序
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i-1].CreatedAt.Before(all[i].CreatedAt))
	}

	rolesByPeer := make(map[uint]models.ConnectionRole)
	for _, c := range all {
		require.NotNil(t, c.Peer)
		rolesByPeer[c.Peer.ID] = c.Role
	}
	assert.Equal(t, models.ConnectionRoleConnected, rolesByPeer[bob.ID])
	assert.Equal(t, models.ConnectionRoleSent, rolesByPeer[carol.ID])
	assert.Equal(t, models.ConnectionRoleReceived, rolesByPeer[dave.ID])

	pending, err := svc.ListConnections(ctx, alice.ID, ConnectionFilterPending)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	accepted, err := svc.ListConnections(ctx, alice.ID, ConnectionFilterAccepted)
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	assert.Equal(t, bob.ID, accepted[0].Peer.ID)

	// 空 filter 等价于 all
	defaulted, err := svc.ListConnections(ctx, alice.ID, "")
	require.NoError(t, err)
	assert.Len(t, defaulted, 3)

	// 旁观者看不到任何记录
	empty, err := svc.ListConnections(ctx, 9999, ConnectionFilterAll)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = svc.ListConnections(ctx, alice.ID, "bogus")
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestAreConnected(t *testing.T) {
	ctx := context.Background()
	userRepo, _, _, svc := newConnectionFixture(t)
	alice := userRepo.addUser("alice", models.RoleAlumni, true)
	bob := userRepo.addUser("bob", models.RoleStudent, true)

	connected, err := svc.AreConnected(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, connected)

	conn, err := svc.RequestConnection(ctx, alice.ID, bob.ID, "")
	require.NoError(t, err)

	// pending 不算已连接
	connected, err = svc.AreConnected(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, connected)

	require.NoError(t, svc.RespondToConnection(ctx, bob.ID, conn.ID, true))

	connected, err = svc.AreConnected(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, connected)

	// 参数顺序无关
	connected, err = svc.AreConnected(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, connected)
}
