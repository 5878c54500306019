package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"ClipDeck/config"
	"ClipDeck/core/timeline"
	"ClipDeck/logger"
	"ClipDeck/media"
	"ClipDeck/model"

	"github.com/gorilla/mux"
)

// APIHandler 处理所有API请求
type APIHandler struct {
	session *Session
	library *media.Library
	cfg     *config.Config
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(session *Session, library *media.Library, cfg *config.Config) *APIHandler {
	return &APIHandler{
		session: session,
		library: library,
		cfg:     cfg,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response failed", logger.ErrorField(err))
	}
}

// writeModelError 时间轴校验失败走 422，带结构化原因，界面端据此做内联提示；
// 其余错误一律 500
func writeModelError(w http.ResponseWriter, err error) {
	var pe *timeline.PlacementError
	if errors.As(err, &pe) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  pe.Error(),
			"reason": pe.Reason,
			"clipId": pe.ClipID,
		})
		return
	}
	if errors.Is(err, model.ErrMediaNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

// GetSessionHandler 返回当前会话的完整快照
func (h *APIHandler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.BuildSnapshot())
}

// ========== 片段操作 ==========

type addClipRequest struct {
	MediaRef  string  `json:"mediaRef"`
	TrackID   string  `json:"trackId"`
	StartTime float64 `json:"startTime"`
	TrimStart float64 `json:"trimStart"`
	TrimEnd   float64 `json:"trimEnd"`
}

// AddClipHandler 往轨道放置一个片段
func (h *APIHandler) AddClipHandler(w http.ResponseWriter, r *http.Request) {
	var req addClipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.MediaRef == "" || req.TrackID == "" {
		http.Error(w, "mediaRef and trackId are required", http.StatusBadRequest)
		return
	}

	clip, err := h.session.AddClip(r.Context(), req.MediaRef, req.TrackID, req.StartTime, req.TrimStart, req.TrimEnd)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, clip)
}

// RemoveClipHandler 删除片段
func (h *APIHandler) RemoveClipHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.session.Model.RemoveClip(id); err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type moveClipRequest struct {
	StartTime float64 `json:"startTime"`
	TrackID   string  `json:"trackId"`
}

// MoveClipHandler 程序化移动片段（非拖拽路径，不做碰撞检查）
func (h *APIHandler) MoveClipHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req moveClipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.session.Model.MoveClip(id, req.StartTime, req.TrackID); err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type trimClipRequest struct {
	TrimStart float64 `json:"trimStart"`
	TrimEnd   float64 `json:"trimEnd"`
}

// TrimClipHandler 调整片段的素材裁剪窗口
func (h *APIHandler) TrimClipHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req trimClipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.session.Model.TrimClip(id, req.TrimStart, req.TrimEnd); err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// SelectClipHandler 选中片段
func (h *APIHandler) SelectClipHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.session.Model.SelectClip(id); err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ClearSelectionHandler 清空选中状态
func (h *APIHandler) ClearSelectionHandler(w http.ResponseWriter, r *http.Request) {
	h.session.Model.ClearSelection()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ========== 轨道操作 ==========

type createTrackRequest struct {
	Name string `json:"name"`
}

// CreateTrackHandler 新建轨道
func (h *APIHandler) CreateTrackHandler(w http.ResponseWriter, r *http.Request) {
	var req createTrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	track := h.session.Model.CreateTrack(req.Name)
	writeJSON(w, http.StatusCreated, track)
}

// UpdateTrackHandler 更新轨道属性（改名/静音/音量），缺省字段不动
func (h *APIHandler) UpdateTrackHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var update model.TrackUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.session.Model.UpdateTrack(id, update); err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// DeleteTrackHandler 删除轨道及其全部片段
func (h *APIHandler) DeleteTrackHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.session.Model.DeleteTrack(id); err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ========== 走带与播放头 ==========

// SetPlayheadHandler 直接设置播放头位置
func (h *APIHandler) SetPlayheadHandler(w http.ResponseWriter, r *http.Request) {
	var req playheadData
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	h.session.Clock.SetPlayhead(req.Time)
	writeJSON(w, http.StatusOK, map[string]float64{"playhead": h.session.Clock.Playhead()})
}

// TransportHandler 走带命令：播放/暂停/跳进/跳退/回首/到尾
func (h *APIHandler) TransportHandler(w http.ResponseWriter, r *http.Request) {
	var req transportData
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	h.session.handleTransport(req)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"playhead": h.session.Clock.Playhead(),
		"running":  h.session.Clock.Running(),
	})
}

// ========== 吸附设置 ==========

type snapRequest struct {
	Enabled  *bool    `json:"enabled,omitempty"`
	Interval *float64 `json:"interval,omitempty"`
}

// UpdateSnapHandler 更新吸附开关和网格间隔
func (h *APIHandler) UpdateSnapHandler(w http.ResponseWriter, r *http.Request) {
	var req snapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Enabled != nil {
		h.session.Placement.SetSnapEnabled(*req.Enabled)
	}
	if req.Interval != nil {
		h.session.Placement.SetSnapInterval(*req.Interval)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"snapEnabled":  h.session.Placement.SnapEnabled(),
		"snapInterval": h.session.Placement.SnapInterval(),
	})
}

// ========== 错误恢复 ==========

// RetryPlaybackHandler 用户点了错误提示上的"重试"
func (h *APIHandler) RetryPlaybackHandler(w http.ResponseWriter, r *http.Request) {
	attempted := h.session.Recovery.Retry()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"attempted": attempted,
		"state":     h.session.Recovery.State(),
	})
}

// ClearPlaybackErrorHandler 清掉错误横幅，不触发重载
func (h *APIHandler) ClearPlaybackErrorHandler(w http.ResponseWriter, r *http.Request) {
	h.session.Recovery.ClearError()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ========== 媒体库 ==========

// ListMediaHandler 列出就绪素材
func (h *APIHandler) ListMediaHandler(w http.ResponseWriter, r *http.Request) {
	assets, err := h.library.List()
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

type importMediaRequest struct {
	Path string `json:"path"`
}

// ImportMediaHandler 导入本地视频文件到素材库
func (h *APIHandler) ImportMediaHandler(w http.ResponseWriter, r *http.Request) {
	var req importMediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Path == "" {
		http.Error(w, "path is required", http.StatusBadRequest)
		return
	}

	asset, err := h.library.Import(r.Context(), req.Path)
	if err != nil {
		logger.Error("media import failed",
			logger.String("path", req.Path),
			logger.ErrorField(err))
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, asset)
}

// RemoveMediaHandler 从素材库软删除
func (h *APIHandler) RemoveMediaHandler(w http.ResponseWriter, r *http.Request) {
	ref := mux.Vars(r)["ref"]
	if err := h.library.Remove(ref); err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ResolveMediaHandler 把 mediaRef 解析成可播放的媒体源（调试用）
func (h *APIHandler) ResolveMediaHandler(w http.ResponseWriter, r *http.Request) {
	ref := mux.Vars(r)["ref"]
	src, err := h.library.Resolve(r.Context(), ref)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, src)
}
