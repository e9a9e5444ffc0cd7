package server

import (
	"net/http"
	"strconv"
	"time"

	"MeetScope/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// statusMessage 推送给客户端的状态帧
type statusMessage struct {
	MeetingID int64  `json:"meetingId"`
	Status    string `json:"status"`
	UpdatedAt string `json:"updatedAt"`
}

// MeetingStatusWSHandler pushes a meeting's status over a websocket until it
// reaches a terminal state, replacing client-side polling.
func (h *APIHandler) MeetingStatusWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}
	defer conn.Close()

	vars := mux.Vars(r)
	idStr := vars["id"]
	meetingID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		logger.Warn("invalid meeting id", logger.String("id", idStr))
		return
	}

	logger.Info("状态订阅已建立", logger.Int64("meetingId", meetingID))

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	lastStatus := ""
	for {
		meeting, err := h.meetingRepo.GetByID(meetingID)
		if err != nil {
			logger.Error("查询会议状态失败", logger.Int64("meetingId", meetingID), logger.ErrorField(err))
			return
		}
		if meeting == nil {
			// 记录被删除，关闭订阅
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "meeting not found"),
				time.Now().Add(time.Second))
			return
		}

		// 只在状态变化时推送
		if meeting.Status != lastStatus {
			lastStatus = meeting.Status
			msg := statusMessage{
				MeetingID: meeting.ID,
				Status:    meeting.Status,
				UpdatedAt: meeting.UpdatedAt.Format(time.RFC3339),
			}
			if err := conn.WriteJSON(msg); err != nil {
				logger.Warn("推送状态失败", logger.Int64("meetingId", meetingID), logger.ErrorField(err))
				return
			}
		}

		if meeting.Terminal() {
			logger.Info("会议到达终态，关闭订阅",
				logger.Int64("meetingId", meetingID),
				logger.String("status", meeting.Status))
			return
		}

		select {
		case <-ticker.C:
		case <-r.Context().Done():
			return
		}
	}
}
