// Package api — клиент бэкенд-прокси. Нормализует формы ответов,
// классифицирует ошибки и подменяется фикстурами в демо-режиме.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lavka-enjoyer/lavka-attendance/internal/ctxutil"
	"github.com/lavka-enjoyer/lavka-attendance/internal/metrics"
	"github.com/lavka-enjoyer/lavka-attendance/internal/models"
	"github.com/lavka-enjoyer/lavka-attendance/internal/observability"
	"go.uber.org/zap"
)

// Client — операции бэкенда. Живая реализация — HTTPClient,
// демо-режим — DemoClient.
type Client interface {
	AuthCheck(ctx context.Context) (*models.User, error)
	Login(ctx context.Context, login, password, userAgent string) (*LoginResult, error)
	SubmitEmailCode(ctx context.Context, code string) (*EmailCodeResult, error)
	UpdateAllowConfirm(ctx context.Context, allow bool) error
	DeleteAccount(ctx context.Context) error
	GroupUsers(ctx context.Context) ([]models.GroupMember, error)
	OtherGroupUsers(ctx context.Context, groupName string) ([]models.GroupMember, error)
	AvailableGroups(ctx context.Context) ([]string, error)
	SendApprove(ctx context.Context, qrURL string) (*ApproveResult, error)
	StartMassMarking(ctx context.Context, selected []int64, qrURL string) (string, error)
	MarkingStatus(ctx context.Context, sessionID string) (*MarkingSession, error)
	ContinueMarking(ctx context.Context, sessionID, qrURL string) error
	Schedule(ctx context.Context, year, month, day int) ([]models.Lesson, error)
	LessonAttendance(ctx context.Context, req LessonAttendanceRequest) (*LessonAttendance, error)
	LessonsCalendar(ctx context.Context, startTs, endTs int64) (Calendar, error)
	LessonsCost(ctx context.Context) (map[string]int, bool, error)
	UniversityStatus(ctx context.Context) (*models.UniversityStatus, error)
	GroupUniversityStatus(ctx context.Context) (*models.GroupStatusReport, error)
}

type HTTPClient struct {
	base     string // .../api
	initData func() string
	http     *http.Client
	log      *zap.Logger
}

func NewHTTPClient(base string, initData func() string, log *zap.Logger) *HTTPClient {
	return &HTTPClient{
		base:     strings.TrimRight(base, "/"),
		initData: initData,
		// таймаут держим на контексте, клиент без собственного
		http: &http.Client{},
		log:  log,
	}
}

// do выполняет запрос с 8-секундным бюджетом. initData уходит
// query-параметром на GET и полем тела на POST/PATCH/DELETE.
func (c *HTTPClient) do(ctx context.Context, op, method, path string, query url.Values, body map[string]any) ([]byte, error) {
	ctx, cancel := ctxutil.WithRequestTimeout(ctx)
	defer cancel()
	ctx = ctxutil.WithOp(ctx, op)

	u := c.base + "/" + strings.TrimLeft(path, "/")
	if method == http.MethodGet {
		if query == nil {
			query = url.Values{}
		}
		query.Set("initData", c.initData())
	} else {
		if body == nil {
			body = map[string]any{}
		}
		body["initData"] = c.initData()
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Kind: KindUnknown, Message: err.Error()}
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Message: err.Error()}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		// таймаут и обрыв сети — один класс для пользователя
		metrics.ObserveAPI(op, string(KindNetworkError), time.Since(start))
		c.log.Warn("запрос не прошёл", zap.String("op", op), zap.Error(err))
		return nil, netErr(err)
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveAPI(op, string(KindNetworkError), time.Since(start))
		return nil, netErr(err)
	}

	if apiErr := classify(resp.StatusCode, raw); apiErr != nil {
		metrics.ObserveAPI(op, string(apiErr.Kind), time.Since(start))
		c.log.Debug("ошибка бэкенда",
			zap.String("op", op), zap.Int("status", resp.StatusCode), zap.String("kind", string(apiErr.Kind)))
		if apiErr.Kind == KindUnknown {
			// неожиданный ответ бэкенда — материал для Sentry
			observability.CaptureErr(ctx, apiErr)
		}
		return nil, apiErr
	}
	metrics.ObserveAPI(op, "ok", time.Since(start))
	return raw, nil
}

func decode(raw []byte, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		// битое тело при успешном статусе — сетевой класс
		return &Error{Kind: KindNetworkError, Message: "malformed response: " + err.Error()}
	}
	return nil
}

func (c *HTTPClient) AuthCheck(ctx context.Context) (*models.User, error) {
	raw, err := c.do(ctx, "authCheck", http.MethodGet, "checker", nil, nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		FIO          string `json:"FIO"`
		Group        string `json:"group"`
		AllowConfirm *bool  `json:"allowConfirm"`
		AdminLvl     int    `json:"admin_lvl"`
		Needs2FA     bool   `json:"needs_2fa"`
		Info         *struct {
			RequiresEmailCode bool   `json:"requires_email_code"`
			Message           string `json:"message"`
		} `json:"info"`
	}
	if err := decode(raw, &resp); err != nil {
		return nil, err
	}
	if resp.Needs2FA || (resp.Info != nil && resp.Info.RequiresEmailCode) {
		msg := ""
		if resp.Info != nil {
			msg = resp.Info.Message
		}
		return nil, &Error{Kind: KindEmailCodeRequired, Message: msg}
	}
	if resp.FIO == "" {
		return nil, &Error{Kind: KindUnknown, Message: messageFrom(raw)}
	}
	return &models.User{
		FullName:     resp.FIO,
		Group:        resp.Group,
		AllowConfirm: resp.AllowConfirm == nil || *resp.AllowConfirm,
		AdminLevel:   resp.AdminLvl,
	}, nil
}

func (c *HTTPClient) Login(ctx context.Context, login, password, userAgent string) (*LoginResult, error) {
	raw, err := c.do(ctx, "login", http.MethodPatch, "update_user", nil, map[string]any{
		"login":      login,
		"password":   password,
		"user_agent": userAgent,
	})
	if err != nil {
		return nil, err
	}
	var resp struct {
		Info *struct {
			RequiresEmailCode bool   `json:"requires_email_code"`
			Message           string `json:"message"`
		} `json:"info"`
	}
	if err := decode(raw, &resp); err != nil {
		return nil, err
	}
	if resp.Info != nil && resp.Info.RequiresEmailCode {
		return &LoginResult{RequiresEmailCode: true, Message: resp.Info.Message}, nil
	}
	return &LoginResult{}, nil
}

func (c *HTTPClient) SubmitEmailCode(ctx context.Context, code string) (*EmailCodeResult, error) {
	raw, err := c.do(ctx, "submitEmailCode", http.MethodPost, "submit_email_code", nil, map[string]any{
		"email_code": code,
	})
	if err != nil {
		return nil, err
	}
	var resp struct {
		Success           bool   `json:"success"`
		RequiresEmailCode bool   `json:"requires_email_code"`
		Message           string `json:"message"`
	}
	if err := decode(raw, &resp); err != nil {
		return nil, err
	}
	if resp.RequiresEmailCode {
		return &EmailCodeResult{Reprompt: resp.Message}, nil
	}
	return &EmailCodeResult{Success: resp.Success}, nil
}

func (c *HTTPClient) UpdateAllowConfirm(ctx context.Context, allow bool) error {
	raw, err := c.do(ctx, "updateAllowConfirm", http.MethodPatch, "edit_allow_confirm", nil, map[string]any{
		"allowConfirm": allow,
	})
	if err != nil {
		return err
	}
	var resp struct {
		Status string `json:"status"`
	}
	if err := decode(raw, &resp); err != nil {
		return err
	}
	if resp.Status != "Успешно" {
		return &Error{Kind: KindUnknown, Message: messageFrom(raw)}
	}
	return nil
}

func (c *HTTPClient) DeleteAccount(ctx context.Context) error {
	_, err := c.do(ctx, "deleteAccount", http.MethodDelete, "delete", nil, map[string]any{})
	return err
}

type rosterResp struct {
	Users []struct {
		TgID         int64  `json:"tg_id"`
		FullName     string `json:"fullName"`
		AllowConfirm *bool  `json:"allowConfirm"`
	} `json:"users"`
}

func (r rosterResp) members(group string) []models.GroupMember {
	out := make([]models.GroupMember, 0, len(r.Users))
	for _, u := range r.Users {
		m := models.GroupMember{
			TgID:         u.TgID,
			FIO:          u.FullName,
			AllowConfirm: u.AllowConfirm == nil || *u.AllowConfirm,
			Group:        group,
		}
		if m.Valid() {
			out = append(out, m)
		}
	}
	return out
}

func (c *HTTPClient) GroupUsers(ctx context.Context) ([]models.GroupMember, error) {
	raw, err := c.do(ctx, "getGroupUsers", http.MethodGet, "get_group_users", nil, nil)
	if err != nil {
		return nil, err
	}
	var resp rosterResp
	if err := decode(raw, &resp); err != nil {
		return nil, err
	}
	return resp.members(""), nil
}

func (c *HTTPClient) OtherGroupUsers(ctx context.Context, groupName string) ([]models.GroupMember, error) {
	q := url.Values{"group_name": {groupName}}
	raw, err := c.do(ctx, "getOtherGroupUsers", http.MethodGet, "get_other_group_users", q, nil)
	if err != nil {
		return nil, err
	}
	var resp rosterResp
	if err := decode(raw, &resp); err != nil {
		return nil, err
	}
	return resp.members(groupName), nil
}

func (c *HTTPClient) AvailableGroups(ctx context.Context) ([]string, error) {
	raw, err := c.do(ctx, "getAvailableGroups", http.MethodGet, "get_available_groups", nil, nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Groups []string `json:"groups"`
	}
	if err := decode(raw, &resp); err != nil {
		return nil, err
	}
	return resp.Groups, nil
}

func (c *HTTPClient) SendApprove(ctx context.Context, qrURL string) (*ApproveResult, error) {
	raw, err := c.do(ctx, "sendApprove", http.MethodPost, "send_approve", nil, map[string]any{
		"url": qrURL,
	})
	if err != nil {
		return nil, err
	}
	var resp struct {
		Result struct {
			Group string `json:"group"`
			Strok string `json:"strok"`
		} `json:"result"`
	}
	if err := decode(raw, &resp); err != nil {
		return nil, err
	}
	// сигнальная пара none/none — QR протух
	if resp.Result.Group == "none" && resp.Result.Strok == "none" {
		return nil, ErrQRExpired
	}
	return &ApproveResult{Group: resp.Result.Group, Strok: resp.Result.Strok}, nil
}

func (c *HTTPClient) StartMassMarking(ctx context.Context, selected []int64, qrURL string) (string, error) {
	raw, err := c.do(ctx, "startMassMarking", http.MethodPost, "start_mass_marking", nil, map[string]any{
		"selectedUsers": selected,
		"url":           qrURL,
	})
	if err != nil {
		return "", err
	}
	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := decode(raw, &resp); err != nil {
		return "", err
	}
	if resp.SessionID == "" {
		return "", &Error{Kind: KindUnknown, Message: messageFrom(raw)}
	}
	return resp.SessionID, nil
}

func (c *HTTPClient) MarkingStatus(ctx context.Context, sessionID string) (*MarkingSession, error) {
	raw, err := c.do(ctx, "getMarkingStatus", http.MethodGet, "get_marking_status/"+url.PathEscape(sessionID), nil, nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		SessionID string `json:"session_id"`
		Status    string `json:"status"`
		Message   string `json:"message"`
		Marked    int    `json:"marked"`
		Total     int    `json:"total"`
	}
	if err := decode(raw, &resp); err != nil {
		return nil, err
	}
	if resp.SessionID == "" {
		resp.SessionID = sessionID
	}
	return &MarkingSession{
		SessionID: resp.SessionID,
		Status:    resp.Status,
		Message:   resp.Message,
		Marked:    resp.Marked,
		Total:     resp.Total,
	}, nil
}

func (c *HTTPClient) ContinueMarking(ctx context.Context, sessionID, qrURL string) error {
	_, err := c.do(ctx, "continueMarking", http.MethodPost, "continue_marking", nil, map[string]any{
		"session_id": sessionID,
		"url":        qrURL,
	})
	return err
}

func (c *HTTPClient) Schedule(ctx context.Context, year, month, day int) ([]models.Lesson, error) {
	raw, err := c.do(ctx, "getSchedule", http.MethodPost, "schedule/", nil, map[string]any{
		"year":  year,
		"month": month,
		"day":   day,
	})
	if err != nil {
		return nil, err
	}
	var resp struct {
		Lessons []struct {
			UUID     string `json:"uuid"`
			Date     string `json:"date"`
			Time     string `json:"time"`
			Subject  string `json:"subject"`
			Type     string `json:"type"`
			Teacher  string `json:"teacher"`
			Room     string `json:"room"`
			Building string `json:"building"`
			Status   string `json:"status"`
		} `json:"lessons"`
	}
	if err := decode(raw, &resp); err != nil {
		return nil, err
	}
	out := make([]models.Lesson, 0, len(resp.Lessons))
	for _, l := range resp.Lessons {
		lesson := models.Lesson{
			UUID:     l.UUID,
			Date:     l.Date,
			Time:     l.Time,
			Subject:  l.Subject,
			Type:     models.LessonType(l.Type),
			Teacher:  l.Teacher,
			Room:     l.Room,
			Building: l.Building,
		}
		if st, ok := models.NormalizeAttendance(l.Status); ok {
			lesson.Status = st
		}
		out = append(out, lesson)
	}
	return out, nil
}

func (c *HTTPClient) LessonAttendance(ctx context.Context, req LessonAttendanceRequest) (*LessonAttendance, error) {
	raw, err := c.do(ctx, "getLessonAttendance", http.MethodPost, "schedule/attendance", nil, map[string]any{
		"date":                req.Date,
		"time":                req.StartTime,
		"type":                req.Type,
		"subject":             req.Subject,
		"lesson_index_in_day": req.IndexInDay,
	})
	if err != nil {
		return nil, err
	}
	var resp struct {
		Students []struct {
			FIO    string `json:"fio"`
			Status string `json:"status"`
		} `json:"students"`
		TotalLessons int `json:"total_lessons"`
	}
	if err := decode(raw, &resp); err != nil {
		return nil, err
	}
	out := &LessonAttendance{TotalLessons: resp.TotalLessons}
	for _, s := range resp.Students {
		st, ok := models.NormalizeAttendance(s.Status)
		if !ok {
			continue
		}
		out.Students = append(out.Students, AttendanceEntry{FIO: s.FIO, Status: st})
	}
	return out, nil
}

// LessonsCalendar отдаёт ошибку как есть: кэш расписания глотает её
// сам и не расширяет загруженный диапазон, пока запрос не пройдёт.
func (c *HTTPClient) LessonsCalendar(ctx context.Context, startTs, endTs int64) (Calendar, error) {
	q := url.Values{}
	if startTs > 0 {
		q.Set("start_ts", strconv.FormatInt(startTs, 10))
	}
	if endTs > 0 {
		q.Set("end_ts", strconv.FormatInt(endTs, 10))
	}
	raw, err := c.do(ctx, "getLessonsCalendar", http.MethodGet, "schedule/lessons-calendar", q, nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Calendar Calendar `json:"calendar"`
	}
	if err := decode(raw, &resp); err != nil {
		return nil, err
	}
	if resp.Calendar == nil {
		return Calendar{}, nil
	}
	return resp.Calendar, nil
}

// LessonsCost деградирует в пустую карту (cached=false).
func (c *HTTPClient) LessonsCost(ctx context.Context) (map[string]int, bool, error) {
	raw, err := c.do(ctx, "getLessonsCost", http.MethodGet, "schedule/lessons-cost", nil, nil)
	if err != nil {
		c.log.Warn("стоимость пар недоступна", zap.Error(err))
		return map[string]int{}, false, nil
	}
	var resp struct {
		LessonsCost map[string]int `json:"lessons_cost"`
		Cached      bool           `json:"cached"`
	}
	if err := decode(raw, &resp); err != nil {
		return map[string]int{}, false, nil
	}
	if resp.LessonsCost == nil {
		resp.LessonsCost = map[string]int{}
	}
	return resp.LessonsCost, resp.Cached, nil
}

// UniversityStatus деградирует в «вне здания» без журнала.
func (c *HTTPClient) UniversityStatus(ctx context.Context) (*models.UniversityStatus, error) {
	raw, err := c.do(ctx, "getUniversityStatus", http.MethodGet, "university_status", nil, nil)
	if err != nil {
		c.log.Warn("статус недоступен", zap.Error(err))
		return &models.UniversityStatus{}, nil
	}
	var resp struct {
		InsideBuilding bool   `json:"insideBuilding"`
		LastEventTime  string `json:"lastEventTime"`
		Events         []struct {
			EventUUID       string `json:"eventUuid"`
			Time            string `json:"time"`
			AccessPointFrom string `json:"accessPointFrom"`
			AccessPointTo   string `json:"accessPointTo"`
		} `json:"events"`
	}
	if err := decode(raw, &resp); err != nil {
		return &models.UniversityStatus{}, nil
	}
	st := &models.UniversityStatus{
		InsideBuilding: resp.InsideBuilding,
		LastEventTime:  resp.LastEventTime,
	}
	for _, e := range resp.Events {
		st.Events = append(st.Events, models.PassEvent{
			EventUUID:       e.EventUUID,
			Time:            e.Time,
			AccessPointFrom: e.AccessPointFrom,
			AccessPointTo:   e.AccessPointTo,
		})
	}
	return st, nil
}

// GroupUniversityStatus деградирует в пустой отчёт.
func (c *HTTPClient) GroupUniversityStatus(ctx context.Context) (*models.GroupStatusReport, error) {
	raw, err := c.do(ctx, "getGroupUniversityStatus", http.MethodGet, "group_university_status", nil, nil)
	if err != nil {
		c.log.Warn("статус группы недоступен", zap.Error(err))
		return &models.GroupStatusReport{}, nil
	}
	var resp struct {
		Students []struct {
			FIO            string `json:"fio"`
			InsideBuilding bool   `json:"insideBuilding"`
			LastEventTime  string `json:"lastEventTime"`
			NotActivated   bool   `json:"notActivated"`
			Needs2FA       bool   `json:"needs2fa"`
		} `json:"students"`
	}
	if err := decode(raw, &resp); err != nil {
		return &models.GroupStatusReport{}, nil
	}
	report := &models.GroupStatusReport{}
	for _, s := range resp.Students {
		report.Students = append(report.Students, models.MemberStatus{
			FIO:            s.FIO,
			InsideBuilding: s.InsideBuilding,
			LastEventTime:  s.LastEventTime,
			NotActivated:   s.NotActivated,
			Needs2FA:       s.Needs2FA,
		})
	}
	report.Recount()
	return report, nil
}

var _ Client = (*HTTPClient)(nil)

// Probe — быстрая проверка доступности бэкенда для /healthz.
func (c *HTTPClient) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/checker", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("backend: http %d", resp.StatusCode)
	}
	return nil
}
