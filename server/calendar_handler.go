package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"MeetScope/cache"
	"MeetScope/logger"
)

// UpcomingMeetingsHandler serves upcoming events from the hosted calendar
// provider. The result is cached briefly in Redis; the calendar path never
// touches the meeting store.
func (h *APIHandler) UpcomingMeetingsHandler(w http.ResponseWriter, r *http.Request) {
	maxResults := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 50 {
			maxResults = n
		}
	}

	calendarID := h.calendar.CalendarID()
	if cached, err := cache.GetCachedUpcomingEvents(r.Context(), calendarID); err == nil && cached != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(cached)
		return
	} else if err != nil {
		logger.Warn("读取日历缓存失败", logger.ErrorField(err))
	}

	events, err := h.calendar.UpcomingEvents(r.Context(), maxResults)
	if err != nil {
		logger.Error("获取日历事件失败", logger.ErrorField(err))
		respondError(w, http.StatusBadGateway, "Failed to fetch upcoming meetings")
		return
	}

	payload, err := json.Marshal(events)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to encode upcoming meetings")
		return
	}
	if err := cache.CacheUpcomingEvents(r.Context(), calendarID, payload); err != nil {
		logger.Warn("写入日历缓存失败", logger.ErrorField(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}
