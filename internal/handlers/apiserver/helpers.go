package apiserver

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"alumnet/internal/middleware"
	"alumnet/internal/storage"

	"github.com/gorilla/mux"
)

// writeJSONResponse 将数据序列化为 JSON 并写入响应。
func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error writing JSON response: %v", err)
	}
}

// writeJSONError 写入统一格式的错误响应。
func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	writeJSONResponse(w, statusCode, map[string]string{"error": message})
}

// callerID extracts the authenticated user's ID injected by the auth
// middleware. A missing value means the route was wired without the
// middleware, which is a programming error.
func callerID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "未认证的请求")
		return 0, false
	}
	return userID, true
}

// pathID parses a numeric path variable such as {id}.
func pathID(r *http.Request, name string) (uint, error) {
	return storage.StrToUint(mux.Vars(r)[name])
}

// queryInt parses an optional integer query parameter, falling back to
// def when absent or malformed.
func queryInt(values url.Values, name string, def int) int {
	raw := values.Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
