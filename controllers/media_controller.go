package controllers

import (
	"encoding/json"
	"net/http"

	"mingle_server/services"
	"mingle_server/utils"
)

// MediaController issues presigned URLs for chat image uploads.
type MediaController struct {
	S3Service *services.S3Service
}

func NewMediaController(service *services.S3Service) *MediaController {
	return &MediaController{S3Service: service}
}

// HandleUploadURL - returns a presigned PUT URL and the object key
func (c *MediaController) HandleUploadURL(w http.ResponseWriter, r *http.Request) {
	if _, ok := requestUserID(w, r); !ok {
		return
	}

	var request struct {
		FileName string `json:"fileName"`
		FileType string `json:"fileType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondError(w, utils.Validationf("invalid request body"))
		return
	}
	if request.FileName == "" || request.FileType == "" {
		respondError(w, utils.Validationf("fileName and fileType are required"))
		return
	}

	url, key, err := c.S3Service.GenerateUploadURL(r.Context(), request.FileName, request.FileType)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"uploadUrl": url, "key": key})
}

// HandleReadURL - returns a presigned GET URL for a stored object
func (c *MediaController) HandleReadURL(w http.ResponseWriter, r *http.Request) {
	if _, ok := requestUserID(w, r); !ok {
		return
	}

	key := r.URL.Query().Get("key")
	if key == "" {
		respondError(w, utils.Validationf("key is required"))
		return
	}
	url, err := c.S3Service.GenerateReadURL(r.Context(), key)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}
