package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"hw-inventory/internal/database"
	"hw-inventory/internal/logging"
	"hw-inventory/internal/models"
	"hw-inventory/internal/telemetry"
)

var (
	ErrHardwareNotFound = errors.New("hardware not found")
	ErrDuplicateSerial  = errors.New("serial number already exists")
	ErrFinalStatus      = errors.New("device is already completed and cannot be cycled further")
)

const (
	defaultPerPage = 20
	maxPerPage     = 200
)

// sortColumns whitelists the columns the list can be ordered by.
var sortColumns = map[string]string{
	"id":            "id",
	"hostname":      "hostname",
	"serial_number": "serial_number",
	"model":         "model",
	"status":        "status",
	"center":        "center",
	"enduser":       "enduser",
	"admin":         "admin",
	"created_at":    "created_at",
	"updated_at":    "updated_at",
	"shipped_at":    "shipped_at",
}

var searchColumns = []string{
	"hostname", "ip", "mac", "serial_number", "uuid", "enduser",
	"ticket", "po_ticket", "center", "comment", "admin",
}

// HardwareInput is the editable part of a device, shared by the HTML form,
// the JSON import and the seeder.
type HardwareInput struct {
	Hostname     string `json:"hostname" form:"hostname" validate:"required,max=255"`
	SerialNumber string `json:"serial_number" form:"serial_number" validate:"required,max=255"`
	Model        string `json:"model" form:"model" validate:"required,hardware_model"`
	Status       string `json:"status" form:"status" validate:"required,hardware_status"`
	IP           string `json:"ip" form:"ip" validate:"max=255"`
	MAC          string `json:"mac" form:"mac" validate:"max=255"`
	UUID         string `json:"uuid" form:"uuid" validate:"max=255"`
	Center       string `json:"center" form:"center" validate:"max=255"`
	Enduser      string `json:"enduser" form:"enduser" validate:"max=255"`
	Ticket       string `json:"ticket" form:"ticket" validate:"max=255"`
	POTicket     string `json:"po_ticket" form:"po_ticket" validate:"max=255"`
	Comment      string `json:"comment" form:"comment" validate:"max=1000"`
	Missing      bool   `json:"missing" form:"missing"`
}

func (in *HardwareInput) normalize() {
	for _, f := range []*string{
		&in.Hostname, &in.SerialNumber, &in.Model, &in.Status, &in.IP, &in.MAC,
		&in.UUID, &in.Center, &in.Enduser, &in.Ticket, &in.POTicket, &in.Comment,
	} {
		*f = strings.TrimSpace(*f)
	}
}

// Validate trims the input and checks it.
func (in *HardwareInput) Validate() error {
	in.normalize()
	return validateStruct(in)
}

// InputFromHardware prefills an edit form.
func InputFromHardware(hw *models.Hardware) HardwareInput {
	return HardwareInput{
		Hostname:     hw.Hostname,
		SerialNumber: hw.SerialNumber,
		Model:        string(hw.Model),
		Status:       string(hw.Status),
		IP:           hw.IP,
		MAC:          hw.MAC,
		UUID:         hw.UUID,
		Center:       hw.Center,
		Enduser:      hw.Enduser,
		Ticket:       hw.Ticket,
		POTicket:     hw.POTicket,
		Comment:      hw.Comment,
		Missing:      hw.Missing,
	}
}

type HardwareFilter struct {
	Search    string
	Statuses  []string
	Model     string
	Center    string
	Page      int
	PerPage   int
	SortBy    string
	SortOrder string
}

type HardwareList struct {
	Items        []models.Hardware
	Total        int64
	Page         int
	PerPage      int
	TotalPages   int
	StatusCounts map[models.HardwareStatus]int64
	StatusFilter []models.HardwareStatus
	SortBy       string
	SortOrder    string
}

type HardwareService struct {
	store *database.Store
	now   func() time.Time
}

func NewHardwareService(store *database.Store) *HardwareService {
	return &HardwareService{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// List applies filters, sorting and paging. Without an explicit status
// filter completed devices are hidden.
func (s *HardwareService) List(ctx context.Context, f HardwareFilter) (*HardwareList, error) {
	page := f.Page
	if page < 1 {
		page = 1
	}
	perPage := f.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	q := s.store.DB().WithContext(ctx).Model(&models.Hardware{})

	if search := strings.TrimSpace(f.Search); search != "" {
		term := "%" + strings.ToLower(search) + "%"
		clauses := make([]string, len(searchColumns))
		args := make([]any, len(searchColumns))
		for i, col := range searchColumns {
			clauses[i] = "LOWER(" + col + ") LIKE ?"
			args[i] = term
		}
		q = q.Where(strings.Join(clauses, " OR "), args...)
	}

	var statuses []models.HardwareStatus
	for _, raw := range f.Statuses {
		if st := models.HardwareStatus(strings.TrimSpace(raw)); st.Valid() {
			statuses = append(statuses, st)
		}
	}
	if len(statuses) == 0 {
		for _, st := range models.HardwareStatuses {
			if st != models.StatusCompleted {
				statuses = append(statuses, st)
			}
		}
	}
	q = q.Where("status IN ?", statusStrings(statuses))

	if m := models.HardwareModel(strings.TrimSpace(f.Model)); m.Valid() {
		q = q.Where("model = ?", string(m))
	}
	if center := strings.TrimSpace(f.Center); center != "" {
		q = q.Where("LOWER(center) LIKE ?", "%"+strings.ToLower(center)+"%")
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count hardware: %w", err)
	}

	sortBy, ok := sortColumns[f.SortBy]
	if !ok {
		sortBy = "updated_at"
	}
	sortOrder := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		sortOrder = "ASC"
	}

	var items []models.Hardware
	if err := q.Session(&gorm.Session{}).
		Order(sortBy + " " + sortOrder).Order("id " + sortOrder).
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list hardware: %w", err)
	}

	counts, err := s.StatusCounts(ctx)
	if err != nil {
		return nil, err
	}

	return &HardwareList{
		Items:        items,
		Total:        total,
		Page:         page,
		PerPage:      perPage,
		TotalPages:   int((total + int64(perPage) - 1) / int64(perPage)),
		StatusCounts: counts,
		StatusFilter: statuses,
		SortBy:       sortBy,
		SortOrder:    strings.ToLower(sortOrder),
	}, nil
}

// StatusCounts counts every device per status, ignoring filters.
func (s *HardwareService) StatusCounts(ctx context.Context) (map[models.HardwareStatus]int64, error) {
	var rows []struct {
		Status string
		Hits   int64
	}
	if err := s.store.DB().WithContext(ctx).Model(&models.Hardware{}).
		Select("status, COUNT(*) AS hits").Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count hardware by status: %w", err)
	}

	counts := make(map[models.HardwareStatus]int64, len(models.HardwareStatuses))
	for _, st := range models.HardwareStatuses {
		counts[st] = 0
	}
	for _, r := range rows {
		counts[models.HardwareStatus(r.Status)] = r.Hits
	}
	return counts, nil
}

// Recent returns the most recently updated devices.
func (s *HardwareService) Recent(ctx context.Context, limit int) ([]models.Hardware, error) {
	var items []models.Hardware
	if err := s.store.DB().WithContext(ctx).
		Order("updated_at DESC").Order("id DESC").
		Limit(limit).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("recent hardware: %w", err)
	}
	return items, nil
}

func (s *HardwareService) Get(ctx context.Context, id uint) (*models.Hardware, error) {
	var hw models.Hardware
	if err := s.store.DB().WithContext(ctx).First(&hw, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHardwareNotFound
		}
		return nil, fmt.Errorf("get hardware %d: %w", id, err)
	}
	return &hw, nil
}

func (s *HardwareService) GetBySerial(ctx context.Context, serial string) (*models.Hardware, error) {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return nil, ErrHardwareNotFound
	}
	var hw models.Hardware
	if err := s.store.DB().WithContext(ctx).Where("serial_number = ?", serial).First(&hw).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHardwareNotFound
		}
		return nil, fmt.Errorf("get hardware by serial: %w", err)
	}
	return &hw, nil
}

// Create inserts a device edited by actor.
func (s *HardwareService) Create(ctx context.Context, in HardwareInput, actor string) (*models.Hardware, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	hw := &models.Hardware{}
	changed := false
	err := s.store.Transaction(ctx, func(sess *database.Session) error {
		if err := ensureSerialFree(sess, in.SerialNumber, 0); err != nil {
			return err
		}
		changed = s.apply(hw, in, actor)
		sess.Add(hw)
		return nil
	})
	if err != nil {
		return nil, err
	}
	countTransition(changed, hw.Status)

	logging.Ctx(ctx).Info().Uint("hardware_id", hw.ID).Str("serial_number", hw.SerialNumber).
		Str("admin", actor).Msg("hardware created")
	return hw, nil
}

// Update replaces the editable fields of a device.
func (s *HardwareService) Update(ctx context.Context, id uint, in HardwareInput, actor string) (*models.Hardware, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var hw models.Hardware
	changed := false
	err := s.store.Transaction(ctx, func(sess *database.Session) error {
		if err := getHardware(sess, &hw, id); err != nil {
			return err
		}
		if err := ensureSerialFree(sess, in.SerialNumber, hw.ID); err != nil {
			return err
		}
		changed = s.apply(&hw, in, actor)
		return nil
	})
	if err != nil {
		return nil, err
	}
	countTransition(changed, hw.Status)
	return &hw, nil
}

func (s *HardwareService) Delete(ctx context.Context, id uint) error {
	return s.store.Transaction(ctx, func(sess *database.Session) error {
		var hw models.Hardware
		if err := getHardware(sess, &hw, id); err != nil {
			return err
		}
		sess.Delete(&hw)
		logging.Ctx(ctx).Info().Uint("hardware_id", id).Str("serial_number", hw.SerialNumber).Msg("hardware deleted")
		return nil
	})
}

// ChangeStatus moves a device to status.
func (s *HardwareService) ChangeStatus(ctx context.Context, id uint, status models.HardwareStatus, actor string) (*models.Hardware, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: invalid status %q", ErrInvalidInput, status)
	}

	var hw models.Hardware
	changed := false
	err := s.store.Transaction(ctx, func(sess *database.Session) error {
		if err := getHardware(sess, &hw, id); err != nil {
			return err
		}
		changed = s.setStatus(&hw, status)
		hw.Admin = actor
		return nil
	})
	if err != nil {
		return nil, err
	}
	countTransition(changed, hw.Status)
	return &hw, nil
}

// CycleStatus advances a device one step through the lifecycle. Completed
// devices stay completed; an unknown status restarts at IN_STOCK.
func (s *HardwareService) CycleStatus(ctx context.Context, id uint, actor string) (*models.Hardware, error) {
	var hw models.Hardware
	changed := false
	err := s.store.Transaction(ctx, func(sess *database.Session) error {
		if err := getHardware(sess, &hw, id); err != nil {
			return err
		}
		next, err := NextStatus(hw.Status)
		if err != nil {
			return err
		}
		changed = s.setStatus(&hw, next)
		hw.Admin = actor
		return nil
	})
	if err != nil {
		return nil, err
	}
	countTransition(changed, hw.Status)
	return &hw, nil
}

// NextStatus is the lifecycle successor of current.
func NextStatus(current models.HardwareStatus) (models.HardwareStatus, error) {
	last := len(models.HardwareStatuses) - 1
	for i, st := range models.HardwareStatuses {
		if st != current {
			continue
		}
		if i == last {
			return "", ErrFinalStatus
		}
		return models.HardwareStatuses[i+1], nil
	}
	return models.HardwareStatuses[0], nil
}

// apply copies in onto hw and reports whether the status moved.
func (s *HardwareService) apply(hw *models.Hardware, in HardwareInput, actor string) bool {
	hw.Hostname = in.Hostname
	hw.SerialNumber = in.SerialNumber
	hw.Model = models.HardwareModel(in.Model)
	hw.IP = in.IP
	hw.MAC = in.MAC
	hw.UUID = in.UUID
	hw.Center = in.Center
	hw.Enduser = in.Enduser
	hw.Ticket = in.Ticket
	hw.POTicket = in.POTicket
	hw.Comment = in.Comment
	hw.Missing = in.Missing
	hw.Admin = actor
	return s.setStatus(hw, models.HardwareStatus(in.Status))
}

// setStatus stamps shipped_at when a device enters SHIPPED.
func (s *HardwareService) setStatus(hw *models.Hardware, status models.HardwareStatus) bool {
	if status == hw.Status {
		return false
	}
	if status == models.StatusShipped {
		now := s.now()
		hw.ShippedAt = &now
	}
	hw.Status = status
	return true
}

// countTransition records a status change once its transaction committed.
func countTransition(changed bool, status models.HardwareStatus) {
	if changed {
		telemetry.HardwareStatusChangesTotal.WithLabelValues(string(status)).Inc()
	}
}

func getHardware(sess *database.Session, hw *models.Hardware, id uint) error {
	if err := sess.Get(hw, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrHardwareNotFound
		}
		return err
	}
	return nil
}

func ensureSerialFree(sess *database.Session, serial string, exceptID uint) error {
	var count int64
	q := sess.DB().Model(&models.Hardware{}).Where("serial_number = ?", serial)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return fmt.Errorf("check serial number: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateSerial, serial)
	}
	return nil
}

func statusStrings(statuses []models.HardwareStatus) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}

type ImportError struct {
	SerialNumber string `json:"serial_number,omitempty"`
	Error        string `json:"error"`
}

type ImportResult struct {
	Created int           `json:"created"`
	Updated int           `json:"updated"`
	Failed  int           `json:"failed"`
	Errors  []ImportError `json:"errors"`
}

// Import upserts each item by serial number in its own transaction, so one
// bad row does not undo the others.
func (s *HardwareService) Import(ctx context.Context, items []HardwareInput, actor string) ImportResult {
	res := ImportResult{Errors: []ImportError{}}

	for _, item := range items {
		created, err := s.upsert(ctx, item, actor)
		switch {
		case err != nil:
			res.Errors = append(res.Errors, ImportError{SerialNumber: strings.TrimSpace(item.SerialNumber), Error: err.Error()})
		case created:
			res.Created++
		default:
			res.Updated++
		}
	}
	res.Failed = len(res.Errors)

	logging.Ctx(ctx).Info().Int("created", res.Created).Int("updated", res.Updated).
		Int("failed", res.Failed).Str("admin", actor).Msg("hardware import finished")
	return res
}

func (s *HardwareService) upsert(ctx context.Context, in HardwareInput, actor string) (bool, error) {
	if err := in.Validate(); err != nil {
		return false, err
	}

	created, changed := false, false
	err := s.store.Transaction(ctx, func(sess *database.Session) error {
		var hw models.Hardware
		err := sess.DB().Where("serial_number = ?", in.SerialNumber).First(&hw).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			fresh := &models.Hardware{}
			changed = s.apply(fresh, in, actor)
			sess.Add(fresh)
			created = true
			return nil
		case err != nil:
			return fmt.Errorf("look up serial number: %w", err)
		}
		sess.Attach(&hw)
		changed = s.apply(&hw, in, actor)
		return nil
	})
	if err != nil {
		return false, err
	}
	countTransition(changed, models.HardwareStatus(in.Status))
	return created, nil
}

// ParseImportPayload accepts {"items": [...]} or a single inventory-agent
// record keyed by SerialNumber.
func ParseImportPayload(body []byte) ([]HardwareInput, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if _, ok := probe["items"]; ok {
		var payload struct {
			Items []HardwareInput `json:"items"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return payload.Items, nil
	}

	if _, ok := probe["SerialNumber"]; ok {
		var agent agentRecord
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		if err := dec.Decode(&agent); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return []HardwareInput{agent.input()}, nil
	}

	return nil, fmt.Errorf("%w: invalid payload format", ErrInvalidInput)
}

// agentRecord is the flat document posted by inventory agents.
type agentRecord struct {
	SerialNumber any    `json:"SerialNumber"`
	Hostname     string `json:"Hostname"`
	Model        string `json:"Model"`
	Status       string `json:"Status"`
	ActiveIP     string `json:"ActiveIP"`
	LANMAC       string `json:"LANMAC"`
	UUID         string `json:"UUID"`
	Center       string `json:"Center"`
	LoggedOnUser string `json:"LoggedOnUser"`
	TicketNumber string `json:"TicketNumber"`
	POTicket     string `json:"POTicket"`
	Comment      string `json:"Comment"`
	Heartbeat    string `json:"Heartbeat"`
}

func (a agentRecord) input() HardwareInput {
	serial := ""
	switch v := a.SerialNumber.(type) {
	case nil:
	case json.Number:
		serial = v.String()
	default:
		serial = strings.TrimSpace(models.FormatValue(v))
	}
	in := HardwareInput{
		SerialNumber: serial,
		Hostname:     strings.TrimSpace(a.Hostname),
		Model:        strings.TrimSpace(a.Model),
		Status:       strings.TrimSpace(a.Status),
		IP:           a.ActiveIP,
		MAC:          a.LANMAC,
		UUID:         a.UUID,
		Center:       a.Center,
		Enduser:      a.LoggedOnUser,
		Ticket:       a.TicketNumber,
		POTicket:     a.POTicket,
		Comment:      a.Comment,
	}
	if in.Hostname == "" {
		in.Hostname = "device-" + serial
	}
	if in.Model == "" {
		in.Model = string(models.ModelNotebook)
	}
	if in.Status == "" {
		in.Status = string(models.StatusInStock)
	}
	if in.Comment == "" {
		in.Comment = a.Heartbeat
	}
	return in
}
