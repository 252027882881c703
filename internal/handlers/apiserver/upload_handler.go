package apiserver

import (
	"fmt"
	"log"
	"net/http"

	"alumnet/internal/apptypes"
	"alumnet/internal/config"
)

// UploadHandler 处理头像与动态图片上传。
type UploadHandler struct {
	storageService apptypes.StorageService
	storageConfig  config.StorageConfig
}

// NewUploadHandler creates a new UploadHandler instance.
func NewUploadHandler(storageService apptypes.StorageService, storageConfig config.StorageConfig) *UploadHandler {
	return &UploadHandler{
		storageService: storageService,
		storageConfig:  storageConfig,
	}
}

// UploadFileHandler 接收 multipart 表单中名为 file 的文件并保存。
func (h *UploadHandler) UploadFileHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r); !ok {
		return
	}

	maxBytes := h.storageConfig.MaxFileSizeMB * 1024 * 1024
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		writeJSONError(w, http.StatusBadRequest, "解析上传表单失败")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "缺少上传文件")
		return
	}
	defer file.Close()

	if header.Size > maxBytes {
		writeJSONError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("文件大小超过限制 (%d MB)", h.storageConfig.MaxFileSizeMB))
		return
	}

	mimeType := header.Header.Get("Content-Type")
	fileInfo, err := h.storageService.UploadFile(r.Context(), file, header.Size, header.Filename, mimeType)
	if err != nil {
		log.Printf("Error uploading file %s: %v", header.Filename, err)
		writeJSONError(w, http.StatusInternalServerError, "文件上传失败")
		return
	}

	writeJSONResponse(w, http.StatusCreated, fileInfo)
}
