package apiserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"alumnet/internal/middleware"
	"alumnet/internal/models"
	"alumnet/internal/services"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStorage = errors.New("storage unavailable")

// stubConnectionService returns canned results for handler tests.
type stubConnectionService struct {
	requestConn *models.Connection
	requestErr  error
	respondErr  error
	removeErr   error
	list        []*models.ConnectionWithPeer
	listErr     error
}

func (s *stubConnectionService) RequestConnection(context.Context, uint, uint, string) (*models.Connection, error) {
	return s.requestConn, s.requestErr
}

func (s *stubConnectionService) RespondToConnection(context.Context, uint, uint, bool) error {
	return s.respondErr
}

func (s *stubConnectionService) RemoveConnection(context.Context, uint, uint) error {
	return s.removeErr
}

func (s *stubConnectionService) ListConnections(context.Context, uint, string) ([]*models.ConnectionWithPeer, error) {
	return s.list, s.listErr
}

func (s *stubConnectionService) AreConnected(context.Context, uint, uint) (bool, error) {
	return false, nil
}

// newConnectionRouter wires the handler the way the API server does,
// with the caller identity pre-injected instead of a real JWT.
func newConnectionRouter(svc services.ConnectionService, callerID uint) *mux.Router {
	handler := NewConnectionHandler(svc)
	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := context.WithValue(req.Context(), middleware.UserIDKey, callerID)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.HandleFunc("/connections", handler.RequestConnectionHandler).Methods(http.MethodPost)
	r.HandleFunc("/connections", handler.ListConnectionsHandler).Methods(http.MethodGet)
	r.HandleFunc("/connections/{id:[0-9]+}/accept", handler.AcceptConnectionHandler).Methods(http.MethodPost)
	r.HandleFunc("/connections/{id:[0-9]+}/reject", handler.RejectConnectionHandler).Methods(http.MethodPost)
	r.HandleFunc("/connections/{id:[0-9]+}", handler.RemoveConnectionHandler).Methods(http.MethodDelete)
	return r
}

func TestRequestConnectionHandlerCreated(t *testing.T) {
	stub := &stubConnectionService{
		requestConn: &models.Connection{ID: 5, RequesterID: 1, ReceiverID: 2, Status: models.ConnectionStatusPending},
	}
	router := newConnectionRouter(stub, 1)

	body, _ := json.Marshal(requestConnectionRequest{TargetID: 2, Message: "hi"})
	req := httptest.NewRequest(http.MethodPost, "/connections", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var conn models.Connection
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&conn))
	assert.Equal(t, uint(5), conn.ID)
	assert.Equal(t, models.ConnectionStatusPending, conn.Status)
}

func TestRequestConnectionHandlerIdempotentDuplicate(t *testing.T) {
	existing := &models.Connection{ID: 5, RequesterID: 1, ReceiverID: 2, Status: models.ConnectionStatusAccepted}
	stub := &stubConnectionService{requestConn: existing, requestErr: services.ErrConnectionExists}
	router := newConnectionRouter(stub, 1)

	body, _ := json.Marshal(requestConnectionRequest{TargetID: 2})
	req := httptest.NewRequest(http.MethodPost, "/connections", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// 重复请求不是错误,返回 200 与现存记录
	require.Equal(t, http.StatusOK, rec.Code)
	var conn models.Connection
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&conn))
	assert.Equal(t, uint(5), conn.ID)
}

func TestRequestConnectionHandlerErrors(t *testing.T) {
	cases := []struct {
		name       string
		stub       *stubConnectionService
		wantStatus int
	}{
		{"self", &stubConnectionService{requestErr: services.ErrSelfConnection}, http.StatusBadRequest},
		{"target missing", &stubConnectionService{requestErr: services.ErrTargetNotFound}, http.StatusNotFound},
		{"storage failure", &stubConnectionService{requestErr: errStorage}, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newConnectionRouter(tc.stub, 1)
			body, _ := json.Marshal(requestConnectionRequest{TargetID: 2})
			req := httptest.NewRequest(http.MethodPost, "/connections", bytes.NewReader(body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}

func TestRequestConnectionHandlerBadBody(t *testing.T) {
	router := newConnectionRouter(&stubConnectionService{}, 1)

	req := httptest.NewRequest(http.MethodPost, "/connections", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 缺少 targetId
	req = httptest.NewRequest(http.MethodPost, "/connections", bytes.NewReader([]byte(`{}`)))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRespondHandlers(t *testing.T) {
	router := newConnectionRouter(&stubConnectionService{}, 2)

	req := httptest.NewRequest(http.MethodPost, "/connections/5/accept", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/connections/5/reject", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// 无权处理或不存在的请求统一表现为 404
	notFound := newConnectionRouter(&stubConnectionService{respondErr: services.ErrConnectionNotFound}, 2)
	req = httptest.NewRequest(http.MethodPost, "/connections/5/accept", nil)
	rec = httptest.NewRecorder()
	notFound.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRemoveConnectionHandler(t *testing.T) {
	router := newConnectionRouter(&stubConnectionService{}, 1)

	req := httptest.NewRequest(http.MethodDelete, "/connections/5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	notFound := newConnectionRouter(&stubConnectionService{removeErr: services.ErrConnectionNotFound}, 1)
	req = httptest.NewRequest(http.MethodDelete, "/connections/5", nil)
	rec = httptest.NewRecorder()
	notFound.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListConnectionsHandler(t *testing.T) {
	list := []*models.ConnectionWithPeer{
		{
			Connection: models.Connection{ID: 5, RequesterID: 1, ReceiverID: 2, Status: models.ConnectionStatusAccepted},
			Role:       models.ConnectionRoleConnected,
			Peer:       &models.UserBasicInfo{ID: 2, Username: "bob"},
		},
	}
	router := newConnectionRouter(&stubConnectionService{list: list}, 1)

	req := httptest.NewRequest(http.MethodGet, "/connections?filter=accepted", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []*models.ConnectionWithPeer
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, models.ConnectionRoleConnected, got[0].Role)
	require.NotNil(t, got[0].Peer)
	assert.Equal(t, "bob", got[0].Peer.Username)

	badFilter := newConnectionRouter(&stubConnectionService{listErr: services.ErrInvalidFilter}, 1)
	req = httptest.NewRequest(http.MethodGet, "/connections?filter=bogus", nil)
	rec = httptest.NewRecorder()
	badFilter.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConnectionHandlersRequireIdentity(t *testing.T) {
	// 未经过认证中间件注入身份的请求一律 401
	handler := NewConnectionHandler(&stubConnectionService{})
	r := mux.NewRouter()
	r.HandleFunc("/connections", handler.ListConnectionsHandler).Methods(http.MethodGet)

	req := httptest.NewRequest(http.MethodGet, "/connections", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
