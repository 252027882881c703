package apiserver

import (
	"log"
	"net/http"

	"alumnet/internal/services"
)

// AnnouncementHandler 提供公告的读取接口,对所有已审核用户开放。
type AnnouncementHandler struct {
	announcementService services.AnnouncementService
}

// NewAnnouncementHandler creates a new AnnouncementHandler instance.
func NewAnnouncementHandler(announcementService services.AnnouncementService) *AnnouncementHandler {
	return &AnnouncementHandler{announcementService: announcementService}
}

// ListAnnouncementsHandler 按发布时间倒序返回公告。
func (h *AnnouncementHandler) ListAnnouncementsHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r); !ok {
		return
	}
	limit := queryInt(r.URL.Query(), "limit", 20)
	offset := queryInt(r.URL.Query(), "offset", 0)

	announcements, err := h.announcementService.ListAnnouncements(r.Context(), limit, offset)
	if err != nil {
		log.Printf("Error listing announcements: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "获取公告列表失败")
		return
	}
	writeJSONResponse(w, http.StatusOK, announcements)
}
