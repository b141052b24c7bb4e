package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/adminsvc/dataset"
	"github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/adminsvc/models"
	"github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/adminsvc/records"
	"github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/adminsvc/service"
	syncer "github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/adminsvc/sync"
	"github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/adminsvc/ws"
)

type Handler struct {
	tokenAuth *jwtauth.JWTAuth
	upgrader  websocket.Upgrader

	data     *dataset.Dataset
	records  *records.Store
	worktime *service.Worktime
	sync     *syncer.Synchronizer
	ws       *ws.Ws
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

func NewHandler(data *dataset.Dataset, rec *records.Store, wt *service.Worktime,
	s *syncer.Synchronizer, sockets *ws.Ws) *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		data:     data,
		records:  rec,
		worktime: wt,
		sync:     s,
		ws:       sockets,
	}
}

func (rs *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	json.NewEncoder(w).Encode(rsp)
}

func (h *Handler) ok(w http.ResponseWriter, msg string, data interface{}) {
	h.CreateResponse(w, Response{Message: msg, Code: http.StatusOK, Data: data})
}

func (h *Handler) fail(w http.ResponseWriter, code int, err error) {
	h.CreateResponse(w, Response{Code: code, Error: err.Error()})
}

// mutationCode maps dataset validation errors onto HTTP statuses.
func mutationCode(err error) int {
	switch {
	case errors.Is(err, dataset.ErrEmployeeNotFound), errors.Is(err, dataset.ErrGroupNotFound):
		return http.StatusNotFound
	case errors.Is(err, dataset.ErrDuplicateCardID), errors.Is(err, dataset.ErrDuplicateGroupName):
		return http.StatusConflict
	case errors.Is(err, dataset.ErrInvalidCardID), errors.Is(err, dataset.ErrInvalidDailyHours):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	rsp := Response{
		Message: "admin service is running at port " + os.Getenv("ADMIN_SERVICE_PORT"),
		Code:    200,
		Data:    map[string]int64{"version": h.data.Version()},
	}
	json.NewEncoder(w).Encode(rsp)
}

// HandleWebSocket attaches an admin UI to the notice stream.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("Failed to upgrade to WebSocket: %v", err)
		return
	}
	socketId := uuid.New().String()
	h.ws.StoreConnection(socketId, conn)
	log.Infof("New WebSocket connection established: %s", socketId)

	go func() {
		defer func() {
			conn.Close()
			h.ws.HandleDisconnect(socketId)
		}()
		// notices flow out only; drain the socket to see the close
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// publish pushes the mutated dataset to the share and refreshes the
// terminal roster. A failed publish keeps the in-memory change and tells
// the caller to retry once the share is back.
func (h *Handler) publish(w http.ResponseWriter, r *http.Request, msg string, data interface{}) {
	if err := h.sync.Publish(r.Context()); err != nil {
		log.Errorf("publish after mutation: %s", err)
		h.CreateResponse(w, Response{
			Message: "change applied locally but not yet synchronized",
			Code:    http.StatusAccepted,
			Data:    data,
			Error:   err.Error(),
		})
		return
	}
	if err := h.sync.ExportRoster(r.Context()); err != nil {
		log.Warnf("roster export: %s", err)
	}
	h.ok(w, msg, data)
}

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	h.ok(w, "employees", h.data.Employees())
}

func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string     `json:"name"`
		CardID     string     `json:"card_id"`
		DailyHours float64    `json:"daily_hours"`
		GroupID    *uuid.UUID `json:"group_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	emp, err := h.data.AddEmployee(req.Name, req.CardID, req.DailyHours, req.GroupID)
	if err != nil {
		h.fail(w, mutationCode(err), err)
		return
	}
	h.publish(w, r, "employee created", emp)
}

func (h *Handler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	if err := h.data.RemoveEmployee(id); err != nil {
		h.fail(w, mutationCode(err), err)
		return
	}
	h.publish(w, r, "employee removed", nil)
}

func (h *Handler) SetEmployeeHours(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		DailyHours float64 `json:"daily_hours"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	if err := h.data.SetDailyHours(id, req.DailyHours); err != nil {
		h.fail(w, mutationCode(err), err)
		return
	}
	h.publish(w, r, "daily hours updated", nil)
}

func (h *Handler) SetEmployeeGroup(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		GroupID *uuid.UUID `json:"group_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	if err := h.data.SetGroup(id, req.GroupID); err != nil {
		h.fail(w, mutationCode(err), err)
		return
	}
	h.publish(w, r, "group assignment updated", nil)
}

// ChangeEmployeeCard rebinds the employee to a new card and rewrites the
// historical day files so the old records follow the new id. The file
// rewrite is best effort; the dataset change is what gets synchronized.
func (h *Handler) ChangeEmployeeCard(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	emp, ok := h.data.EmployeeByID(id)
	if !ok {
		h.fail(w, http.StatusNotFound, dataset.ErrEmployeeNotFound)
		return
	}
	var req struct {
		CardID string `json:"card_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	newCard, err := dataset.NormalizeCardID(req.CardID)
	if err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	if err := h.data.ChangeCardID(emp.CardID, newCard); err != nil {
		h.fail(w, mutationCode(err), err)
		return
	}
	updated, err := h.records.ReplaceCardID(r.Context(), emp.CardID, newCard)
	if err != nil {
		log.Errorf("card change history rewrite: %s", err)
	}
	h.publish(w, r, "card id changed", map[string]int{"files_updated": updated})
}

func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	h.ok(w, "groups", h.data.Groups())
}

func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	group, err := h.data.AddGroup(req.Name)
	if err != nil {
		h.fail(w, mutationCode(err), err)
		return
	}
	h.publish(w, r, "group created", group)
}

func (h *Handler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	if err := h.data.RemoveGroup(id); err != nil {
		h.fail(w, mutationCode(err), err)
		return
	}
	h.publish(w, r, "group removed", nil)
}

func (h *Handler) ListSpecialDays(w http.ResponseWriter, r *http.Request) {
	h.ok(w, "special days", h.data.SpecialDays())
}

type specialDaysRequest struct {
	CardID string                `json:"card_id"`
	Dates  []models.Date         `json:"dates"`
	Type   models.SpecialDayType `json:"type"`
}

func (h *Handler) SetSpecialDays(w http.ResponseWriter, r *http.Request) {
	var req specialDaysRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	if req.Type != models.SickLeave && req.Type != models.Vacation {
		h.fail(w, http.StatusBadRequest, errors.New("type must be sick_leave or vacation"))
		return
	}
	if err := h.data.SetSpecialDays(req.CardID, req.Dates, req.Type); err != nil {
		h.fail(w, mutationCode(err), err)
		return
	}
	h.publish(w, r, "special days marked", nil)
}

func (h *Handler) ClearSpecialDays(w http.ResponseWriter, r *http.Request) {
	var req specialDaysRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	if err := h.data.ClearSpecialDays(req.CardID, req.Dates); err != nil {
		h.fail(w, mutationCode(err), err)
		return
	}
	h.publish(w, r, "special days cleared", nil)
}

func (h *Handler) EmployeeHours(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	from, to, err := dateRange(r)
	if err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	report, err := h.worktime.EmployeeSummaries(r.Context(), id, from, to)
	if err != nil {
		h.fail(w, mutationCode(err), err)
		return
	}
	h.ok(w, "employee hours", report)
}

func (h *Handler) GroupHours(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	from, to, err := dateRange(r)
	if err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	reports, err := h.worktime.GroupSummaries(r.Context(), id, from, to)
	if err != nil {
		h.fail(w, mutationCode(err), err)
		return
	}
	h.ok(w, "group hours", reports)
}

type recordRequest struct {
	CardID    string `json:"card_id"`
	Timestamp string `json:"timestamp"` // "2006-01-02 15:04:05"
	Kind      string `json:"kind"`
}

func (h *Handler) parseRecord(req recordRequest) (models.Event, error) {
	card, err := dataset.NormalizeCardID(req.CardID)
	if err != nil {
		return models.Event{}, err
	}
	ts, err := records.ParseTimestamp(req.Timestamp)
	if err != nil {
		return models.Event{}, err
	}
	kind := models.EventKind(req.Kind)
	if kind != models.Arrival && kind != models.Departure {
		return models.Event{}, errors.New("kind must be a known status label")
	}
	return models.Event{CardID: card, Timestamp: ts, Kind: kind}, nil
}

// AppendRecord adds a manual correction row to the day file.
func (h *Handler) AppendRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	event, err := h.parseRecord(req)
	if err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	if err := h.records.Append(r.Context(), event); err != nil {
		h.recordWriteError(w, err)
		return
	}
	h.ok(w, "record appended", nil)
}

// DeleteRecord removes the rows matching the given identity triple.
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	event, err := h.parseRecord(req)
	if err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	if err := h.records.DeleteEvent(r.Context(), models.DateOf(event.Timestamp), event); err != nil {
		h.recordWriteError(w, err)
		return
	}
	h.ok(w, "record deleted", nil)
}

// recordWriteError distinguishes a permission dead end, where the data
// survived in a local backup, from an unreachable share.
func (h *Handler) recordWriteError(w http.ResponseWriter, err error) {
	var perm *records.PermissionError
	if errors.As(err, &perm) {
		h.CreateResponse(w, Response{
			Message: "share refused the write, data preserved locally",
			Code:    http.StatusForbidden,
			Data:    map[string]string{"backup": perm.Backup},
			Error:   err.Error(),
		})
		return
	}
	h.fail(w, http.StatusBadGateway, err)
}

// ArchiveEmployee streams the range as a CSV attachment.
func (h *Handler) ArchiveEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	from, to, err := dateRange(r)
	if err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	data, err := h.worktime.ArchiveWorker(r.Context(), id, from, to)
	if err != nil {
		h.fail(w, mutationCode(err), err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=archive_"+id.String()+".csv")
	w.Write(data)
}

// PurgeEmployeeRecords strips the employee's events from the range.
func (h *Handler) PurgeEmployeeRecords(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	from, to, err := dateRange(r)
	if err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}
	removed, err := h.worktime.PurgeWorker(r.Context(), id, from, to)
	if err != nil {
		h.CreateResponse(w, Response{
			Message: "purge incomplete, some day files could not be rewritten",
			Code:    http.StatusBadGateway,
			Data:    map[string]int{"removed": removed},
			Error:   err.Error(),
		})
		return
	}
	h.ok(w, "records purged", map[string]int{"removed": removed})
}

// Refresh forces an immediate poll instead of waiting for the ticker.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.sync.Poll(r.Context())
	h.ok(w, "refreshed", map[string]int64{"version": h.data.Version()})
}

func dateRange(r *http.Request) (models.Date, models.Date, error) {
	from, err := models.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		return models.Date{}, models.Date{}, errors.New("from must be a YYYY-MM-DD date")
	}
	to, err := models.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		return models.Date{}, models.Date{}, errors.New("to must be a YYYY-MM-DD date")
	}
	if to.Before(from.Time) {
		return models.Date{}, models.Date{}, errors.New("to must not precede from")
	}
	return from, to, nil
}
