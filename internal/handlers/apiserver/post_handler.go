package apiserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"alumnet/internal/middleware"
	"alumnet/internal/services"
)

// PostHandler 处理动态、点赞与评论。
type PostHandler struct {
	postService services.PostService
}

// NewPostHandler creates a new PostHandler instance.
func NewPostHandler(postService services.PostService) *PostHandler {
	return &PostHandler{postService: postService}
}

type createPostRequest struct {
	Content  string `json:"content"`
	ImageURL string `json:"imageUrl"`
}

// CreatePostHandler 发布一条动态。
func (h *PostHandler) CreatePostHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "无效的请求体")
		return
	}

	post, err := h.postService.CreatePost(r.Context(), userID, req.Content, req.ImageURL)
	if err != nil {
		if errors.Is(err, services.ErrEmptyContent) {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("Error creating post for user %d: %v", userID, err)
		writeJSONError(w, http.StatusInternalServerError, "发布动态失败")
		return
	}
	writeJSONResponse(w, http.StatusCreated, post)
}

// GetPostHandler 返回单条动态及其统计信息。
func (h *PostHandler) GetPostHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	postID, err := pathID(r, "id")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "无效的动态 ID")
		return
	}

	post, err := h.postService.GetPost(r.Context(), postID, userID)
	if err != nil {
		if errors.Is(err, services.ErrPostNotFound) {
			writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("Error fetching post %d: %v", postID, err)
		writeJSONError(w, http.StatusInternalServerError, "获取动态失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, post)
}

// DeletePostHandler 删除动态,作者或管理员可操作。
func (h *PostHandler) DeletePostHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	claims, _ := middleware.GetClaimsFromContext(r.Context())
	postID, err := pathID(r, "id")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "无效的动态 ID")
		return
	}

	if err := h.postService.DeletePost(r.Context(), userID, claims.Role, postID); err != nil {
		switch {
		case errors.Is(err, services.ErrPostNotFound):
			writeJSONError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, services.ErrNotAuthor):
			writeJSONError(w, http.StatusForbidden, err.Error())
		default:
			log.Printf("Error deleting post %d: %v", postID, err)
			writeJSONError(w, http.StatusInternalServerError, "删除动态失败")
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "动态已删除"})
}

// ListFeedHandler 返回按时间倒序的信息流。
func (h *PostHandler) ListFeedHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	limit := queryInt(r.URL.Query(), "limit", 20)
	offset := queryInt(r.URL.Query(), "offset", 0)

	feed, err := h.postService.ListFeed(r.Context(), userID, limit, offset)
	if err != nil {
		log.Printf("Error listing feed for user %d: %v", userID, err)
		writeJSONError(w, http.StatusInternalServerError, "获取信息流失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, feed)
}

// LikePostHandler 点赞,重复点赞为幂等操作。
func (h *PostHandler) LikePostHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	postID, err := pathID(r, "id")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "无效的动态 ID")
		return
	}

	if err := h.postService.LikePost(r.Context(), userID, postID); err != nil {
		if errors.Is(err, services.ErrPostNotFound) {
			writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("Error liking post %d by user %d: %v", postID, userID, err)
		writeJSONError(w, http.StatusInternalServerError, "点赞失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "已点赞"})
}

// UnlikePostHandler 取消点赞。
func (h *PostHandler) UnlikePostHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	postID, err := pathID(r, "id")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "无效的动态 ID")
		return
	}

	if err := h.postService.UnlikePost(r.Context(), userID, postID); err != nil {
		log.Printf("Error unliking post %d by user %d: %v", postID, userID, err)
		writeJSONError(w, http.StatusInternalServerError, "取消点赞失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "已取消点赞"})
}

type addCommentRequest struct {
	Content string `json:"content"`
}

// AddCommentHandler 在动态下发表评论。
func (h *PostHandler) AddCommentHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	postID, err := pathID(r, "id")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "无效的动态 ID")
		return
	}

	var req addCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "无效的请求体")
		return
	}

	comment, err := h.postService.AddComment(r.Context(), userID, postID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyContent):
			writeJSONError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrPostNotFound):
			writeJSONError(w, http.StatusNotFound, err.Error())
		default:
			log.Printf("Error commenting on post %d: %v", postID, err)
			writeJSONError(w, http.StatusInternalServerError, "发表评论失败")
		}
		return
	}
	writeJSONResponse(w, http.StatusCreated, comment)
}

// DeleteCommentHandler 删除评论,作者或管理员可操作。
func (h *PostHandler) DeleteCommentHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	claims, _ := middleware.GetClaimsFromContext(r.Context())
	commentID, err := pathID(r, "commentId")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "无效的评论 ID")
		return
	}

	if err := h.postService.DeleteComment(r.Context(), userID, claims.Role, commentID); err != nil {
		switch {
		case errors.Is(err, services.ErrCommentNotFound):
			writeJSONError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, services.ErrNotAuthor):
			writeJSONError(w, http.StatusForbidden, err.Error())
		default:
			log.Printf("Error deleting comment %d: %v", commentID, err)
			writeJSONError(w, http.StatusInternalServerError, "删除评论失败")
		}
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "评论已删除"})
}

// ListCommentsHandler 按时间顺序返回动态下的评论。
func (h *PostHandler) ListCommentsHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r); !ok {
		return
	}
	postID, err := pathID(r, "id")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "无效的动态 ID")
		return
	}

	comments, err := h.postService.ListComments(r.Context(), postID)
	if err != nil {
		log.Printf("Error listing comments for post %d: %v", postID, err)
		writeJSONError(w, http.StatusInternalServerError, "获取评论失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, comments)
}
