package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
)

const (
	syncOperationUpdate = "update"

	// maxClockSkew is how far ahead of the server a device clock may run.
	maxClockSkew = 2 * time.Minute
)

// syncWriters lists the roles that may push changes per entity type. It
// mirrors the role gates of the matching REST endpoints.
var syncWriters = map[string][]string{
	models.EntityTable: {models.RoleOwner, models.RoleAdmin, models.RoleManager, models.RoleCashier, models.RoleWaiter},
	models.EntityDish:  {models.RoleOwner, models.RoleAdmin, models.RoleManager},
	models.EntityOrder: {models.RoleOwner, models.RoleAdmin, models.RoleManager, models.RoleCashier, models.RoleWaiter},
}

// syncableFields lists what a device may change per entity type.
var syncableFields = map[string]map[string]bool{
	models.EntityTable: {"status": true, "capacity": true},
	models.EntityDish:  {"name": true, "price": true, "stock": true, "is_available": true},
	models.EntityOrder: {"notes": true},
}

type SyncPushRecord struct {
	EntityType      string                 `json:"entity_type" binding:"required"`
	EntityID        uint                   `json:"entity_id" binding:"required"`
	Operation       string                 `json:"operation"`
	Payload         map[string]interface{} `json:"payload" binding:"required"`
	Base            map[string]interface{} `json:"base"`
	ClientUpdatedAt time.Time              `json:"client_updated_at" binding:"required"`
}

type SyncRecordFilter struct {
	Status   string
	DeviceID string
	Conflict *bool
}

type PullResult struct {
	ServerTime time.Time      `json:"server_time"`
	Tables     []models.Table `json:"tables"`
	Dishes     []models.Dish  `json:"dishes"`
	Orders     []models.Order `json:"orders"`
}

// syncFailure marks a record as failed without aborting the batch.
type syncFailure struct {
	msg string
}

func (e *syncFailure) Error() string { return e.msg }

func failf(format string, args ...interface{}) error {
	return &syncFailure{msg: fmt.Sprintf(format, args...)}
}

type SyncQueueService struct {
	DB *gorm.DB
}

func NewSyncQueueService(db *gorm.DB) *SyncQueueService {
	return &SyncQueueService{DB: db}
}

// Push queues the device's changes and processes them in order. A record
// whose entity changed on the server after the device's edit is parked as a
// conflict together with the server snapshot.
func (s *SyncQueueService) Push(ctx context.Context, outletID uint, deviceID, role string, records []SyncPushRecord) ([]models.SyncRecord, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, utils.NewValidationError("device_id is required")
	}
	if len(records) == 0 {
		return nil, utils.NewValidationError("records must not be empty")
	}
	for _, in := range records {
		if err := checkSyncWriter(role, in.EntityType); err != nil {
			return nil, err
		}
	}

	out := make([]models.SyncRecord, 0, len(records))
	for _, in := range records {
		if in.Operation == "" {
			in.Operation = syncOperationUpdate
		}
		clientAt := in.ClientUpdatedAt
		rec := models.SyncRecord{
			OutletID:        outletID,
			DeviceID:        deviceID,
			Direction:       models.SyncPush,
			EntityType:      in.EntityType,
			EntityID:        in.EntityID,
			Operation:       in.Operation,
			Payload:         mustJSON(in.Payload),
			Base:            mustJSON(in.Base),
			ClientUpdatedAt: &clientAt,
			Status:          models.SyncPending,
		}
		if err := s.DB.WithContext(ctx).Create(&rec).Error; err != nil {
			return nil, err
		}
		if err := s.process(ctx, &rec, in); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"outlet_id": outletID,
		"device_id": deviceID,
		"records":   len(out),
	}).Info("device push processed")
	return out, nil
}

func (s *SyncQueueService) process(ctx context.Context, rec *models.SyncRecord, in SyncPushRecord) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.Operation != syncOperationUpdate {
			return failf("unsupported operation %q", in.Operation)
		}
		if in.ClientUpdatedAt.After(rec.CreatedAt.Add(maxClockSkew)) {
			return failf("client_updated_at %s is ahead of the server clock", in.ClientUpdatedAt.UTC().Format(time.RFC3339))
		}
		updates, err := buildUpdates(in.EntityType, in.Payload)
		if err != nil {
			return err
		}

		current, updatedAt, err := loadEntity(tx, rec.OutletID, in.EntityType, in.EntityID)
		if err != nil {
			return err
		}
		if updatedAt.After(in.ClientUpdatedAt) {
			rec.Conflict = true
			rec.ServerSnapshot = mustJSON(snapshotOf(in.EntityType, current, updatedAt))
			return failf("server copy changed at %s, after the device edit", updatedAt.UTC().Format(time.RFC3339))
		}
		return applyUpdates(tx, rec.OutletID, in.EntityType, in.EntityID, current, updates)
	})

	now := time.Now()
	rec.ProcessedAt = &now
	var failure *syncFailure
	switch {
	case err == nil:
		rec.Status = models.SyncCompleted
	case errors.As(err, &failure):
		rec.Status = models.SyncFailed
		rec.Error = failure.msg
	default:
		return err
	}
	return s.DB.WithContext(ctx).Save(rec).Error
}

// checkSyncWriter rejects a push the role could not make through the REST API.
// Unknown entity types pass here and fail per record.
func checkSyncWriter(role, entityType string) error {
	roles, ok := syncWriters[entityType]
	if !ok {
		return nil
	}
	for _, r := range roles {
		if r == role {
			return nil
		}
	}
	return utils.NewForbiddenError(fmt.Sprintf("role %s cannot sync %s changes", role, entityType))
}

// Resolve settles a conflicted record with the chosen strategy.
func (s *SyncQueueService) Resolve(ctx context.Context, outletID, recordID uint, strategy string, userID uint) (*models.SyncRecord, error) {
	if !models.IsValidStrategy(strategy) {
		return nil, utils.NewValidationError("strategy must be one of server-wins, client-wins, merge")
	}

	var rec models.SyncRecord
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND outlet_id = ?", recordID, outletID).First(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFoundError("sync record")
			}
			return err
		}
		if !rec.Conflict || rec.Status != models.SyncFailed {
			return utils.NewConflictError("sync record %d has no open conflict", rec.ID)
		}

		var payload, base map[string]interface{}
		if err := decodeJSON(rec.Payload, &payload); err != nil {
			return err
		}
		if err := decodeJSON(rec.Base, &base); err != nil {
			return err
		}

		if strategy != models.StrategyServerWins {
			current, updatedAt, err := loadEntity(tx, outletID, rec.EntityType, rec.EntityID)
			if err != nil {
				return asAppError(err)
			}
			fields := payload
			if strategy == models.StrategyMerge {
				fields = mergeFields(payload, base, snapshotOf(rec.EntityType, current, updatedAt))
			}
			updates, err := buildUpdates(rec.EntityType, fields)
			if err != nil {
				return asAppError(err)
			}
			if err := applyUpdates(tx, outletID, rec.EntityType, rec.EntityID, current, updates); err != nil {
				return asAppError(err)
			}
		}

		now := time.Now()
		rec.Status = models.SyncCompleted
		rec.Strategy = strategy
		rec.ResolvedBy = &userID
		rec.ProcessedAt = &now
		rec.Error = ""
		return tx.Save(&rec).Error
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"record_id": rec.ID,
		"device_id": rec.DeviceID,
		"strategy":  strategy,
	}).Info("sync conflict resolved")
	return &rec, nil
}

// mergeFields keeps a client value unless the server moved away from the
// value the device started from. Without a base value the server wins.
func mergeFields(payload, base, server map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(payload))
	for field, value := range payload {
		baseValue, ok := base[field]
		if !ok {
			continue
		}
		if jsonEqual(server[field], baseValue) {
			merged[field] = value
		}
	}
	return merged
}

// Pull returns everything of the outlet that changed after since and logs the pull.
func (s *SyncQueueService) Pull(ctx context.Context, outletID uint, deviceID string, since time.Time) (*PullResult, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, utils.NewValidationError("device_id is required")
	}

	db := s.DB.WithContext(ctx)
	res := &PullResult{ServerTime: time.Now().UTC()}
	if err := db.Where("outlet_id = ? AND updated_at > ?", outletID, since).Order("id").Find(&res.Tables).Error; err != nil {
		return nil, err
	}
	if err := db.Where("outlet_id = ? AND updated_at > ?", outletID, since).Order("id").Find(&res.Dishes).Error; err != nil {
		return nil, err
	}
	if err := db.Preload("Items").Where("outlet_id = ? AND updated_at > ?", outletID, since).Order("id").Find(&res.Orders).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	rec := models.SyncRecord{
		OutletID:        outletID,
		DeviceID:        deviceID,
		Direction:       models.SyncPull,
		Status:          models.SyncCompleted,
		ClientUpdatedAt: &since,
		ProcessedAt:     &now,
		Payload: mustJSON(map[string]int{
			"tables": len(res.Tables),
			"dishes": len(res.Dishes),
			"orders": len(res.Orders),
		}),
	}
	if err := db.Create(&rec).Error; err != nil {
		return nil, err
	}
	return res, nil
}

func (s *SyncQueueService) List(ctx context.Context, outletID uint, f SyncRecordFilter, p utils.Pagination) ([]models.SyncRecord, int64, error) {
	q := s.DB.WithContext(ctx).Model(&models.SyncRecord{}).Where("outlet_id = ?", outletID)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.DeviceID != "" {
		q = q.Where("device_id = ?", f.DeviceID)
	}
	if f.Conflict != nil {
		q = q.Where("conflict = ?", *f.Conflict)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var records []models.SyncRecord
	err := q.Order("id DESC").Offset(p.Offset()).Limit(p.Limit).Find(&records).Error
	return records, total, err
}

func loadEntity(tx *gorm.DB, outletID uint, entityType string, id uint) (interface{}, time.Time, error) {
	var (
		entity    interface{}
		updatedAt func() time.Time
	)
	switch entityType {
	case models.EntityTable:
		t := &models.Table{}
		entity, updatedAt = t, func() time.Time { return t.UpdatedAt }
	case models.EntityDish:
		d := &models.Dish{}
		entity, updatedAt = d, func() time.Time { return d.UpdatedAt }
	case models.EntityOrder:
		o := &models.Order{}
		entity, updatedAt = o, func() time.Time { return o.UpdatedAt }
	default:
		return nil, time.Time{}, failf("unsupported entity type %q", entityType)
	}

	if err := tx.Where("id = ? AND outlet_id = ?", id, outletID).First(entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, time.Time{}, failf("%s %d not found", entityType, id)
		}
		return nil, time.Time{}, err
	}
	return entity, updatedAt(), nil
}

// buildUpdates checks every field against the allow list and coerces JSON
// values into column values.
func buildUpdates(entityType string, fields map[string]interface{}) (map[string]interface{}, error) {
	allowed, ok := syncableFields[entityType]
	if !ok {
		return nil, failf("unsupported entity type %q", entityType)
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	updates := make(map[string]interface{}, len(fields))
	for _, name := range names {
		if !allowed[name] {
			return nil, failf("field %q cannot be synced for %s", name, entityType)
		}
		value := fields[name]
		var (
			v   interface{}
			err error
		)
		switch name {
		case "capacity", "stock":
			v, err = asInt(value)
			if err == nil && v.(int) < 0 {
				err = fmt.Errorf("must not be negative")
			}
		case "price":
			v, err = asDecimal(value)
		case "is_available":
			v, err = asBool(value)
		case "status":
			var st string
			st, err = asString(value)
			if err == nil && !models.IsValidTableStatus(st) {
				err = fmt.Errorf("unknown table status %q", st)
			}
			v = st
		default:
			v, err = asString(value)
		}
		if err != nil {
			return nil, failf("field %q: %v", name, err)
		}
		updates[name] = v
	}
	return updates, nil
}

func applyUpdates(tx *gorm.DB, outletID uint, entityType string, id uint, current interface{}, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	if t, ok := current.(*models.Table); ok {
		if st, ok := updates["status"].(string); ok && t.CurrentOrderID != nil &&
			(st == models.TableAvailable || st == models.TableCleaning) {
			return failf("table %s has an open order", t.Number)
		}
	}
	return tx.Model(current).Where("outlet_id = ?", outletID).Updates(updates).Error
}

// snapshotOf renders the syncable fields of an entity as the client sees them.
func snapshotOf(entityType string, entity interface{}, updatedAt time.Time) map[string]interface{} {
	var all map[string]interface{}
	_ = decodeJSON(mustJSON(entity), &all)

	snap := map[string]interface{}{"updated_at": updatedAt.UTC().Format(time.RFC3339Nano)}
	for field := range syncableFields[entityType] {
		snap[field] = all[field]
	}
	return snap
}

func jsonEqual(a, b interface{}) bool {
	var na, nb interface{}
	if err := decodeJSON(mustJSON(a), &na); err != nil {
		return false
	}
	if err := decodeJSON(mustJSON(b), &nb); err != nil {
		return false
	}
	return reflect.DeepEqual(na, nb)
}

func mustJSON(v interface{}) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(data)
}

func decodeJSON(raw datatypes.JSON, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// asAppError turns a record-level sync failure into a request error.
func asAppError(err error) error {
	var failure *syncFailure
	if errors.As(err, &failure) {
		return utils.NewConflictError("%s", failure.msg)
	}
	return err
}

func asInt(v interface{}) (int, error) {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, fmt.Errorf("must be an integer")
	}
	return int(f), nil
}

func asDecimal(v interface{}) (decimal.Decimal, error) {
	var d decimal.Decimal
	switch x := v.(type) {
	case float64:
		d = decimal.NewFromFloat(x)
	case string:
		parsed, err := decimal.NewFromString(x)
		if err != nil {
			return decimal.Zero, fmt.Errorf("must be a number")
		}
		d = parsed
	default:
		return decimal.Zero, fmt.Errorf("must be a number")
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("must not be negative")
	}
	return d.Round(2), nil
}

func asBool(v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("must be a boolean")
	}
	return b, nil
}

func asString(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("must be a string")
	}
	return s, nil
}
