package cloudsync

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"rotinas/internal/model"
)

var errMissingField = errors.New("missing required field")

func docID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func reminderDocument(r model.Reminder, deviceID string) Document {
	return Document{
		ID: docID(r.ID),
		Data: map[string]any{
			"id":                    int64(r.ID),
			"userId":                r.UserID,
			"title":                 r.Title,
			"notes":                 r.Notes,
			"dueAt":                 r.DueAt.UnixMilli(),
			"snoozedUntil":          optionalMillis(r.SnoozedUntil),
			"startTime":             optionalMillis(r.StartTime),
			"type":                  string(r.Type),
			"customRecurrenceDays":  r.CustomRecurrenceDays,
			"isRoutine":             r.IsRoutine,
			"isTask":                r.IsTask,
			"parentReminderId":      optionalID(r.ParentReminderID),
			"checkupFrequencyHours": int64(r.CheckupFrequencyHours),
			"status":                string(r.Status),
			"isActive":              r.IsActive(),
			"categoryId":            optionalID(r.CategoryID),
			"priority":              string(r.Priority),
			"createdAt":             r.CreatedAt.UnixMilli(),
			"updatedAt":             r.UpdatedAt.UnixMilli(),
			"deviceId":              deviceID,
		},
	}
}

func categoryDocument(c model.Category, deviceID string) Document {
	return Document{
		ID: docID(c.ID),
		Data: map[string]any{
			"id":        int64(c.ID),
			"userId":    c.UserID,
			"name":      c.Name,
			"color":     c.Color,
			"createdAt": c.CreatedAt.UnixMilli(),
			"updatedAt": c.UpdatedAt.UnixMilli(),
			"deviceId":  deviceID,
		},
	}
}

func checklistDocument(item model.ChecklistItem, deviceID string) Document {
	return Document{
		ID: docID(item.ID),
		Data: map[string]any{
			"id":         int64(item.ID),
			"reminderId": int64(item.ReminderID),
			"userId":     item.UserID,
			"text":       item.Text,
			"isChecked":  item.IsChecked,
			"position":   int64(item.Position),
			"createdAt":  item.CreatedAt.UnixMilli(),
			"updatedAt":  item.UpdatedAt.UnixMilli(),
			"deviceId":   deviceID,
		},
	}
}

// decodeReminder requires id, title and dueAt; other fields fall back to defaults.
func decodeReminder(doc Document) (model.Reminder, error) {
	d := doc.Data
	id, ok := documentID(doc)
	if !ok {
		return model.Reminder{}, fmt.Errorf("reminder %q: %w: id", doc.ID, errMissingField)
	}
	title, ok := stringField(d, "title")
	if !ok || strings.TrimSpace(title) == "" {
		return model.Reminder{}, fmt.Errorf("reminder %q: %w: title", doc.ID, errMissingField)
	}
	due, ok := timeField(d, "dueAt")
	if !ok {
		return model.Reminder{}, fmt.Errorf("reminder %q: %w: dueAt", doc.ID, errMissingField)
	}

	r := model.Reminder{
		ID:    id,
		Title: title,
		DueAt: due,
	}
	r.UserID, _ = stringField(d, "userId")
	r.Notes, _ = stringField(d, "notes")
	r.SnoozedUntil = optionalTimeField(d, "snoozedUntil")
	r.StartTime = optionalTimeField(d, "startTime")
	r.CustomRecurrenceDays, _ = stringField(d, "customRecurrenceDays")
	r.IsRoutine, _ = boolField(d, "isRoutine")
	r.IsTask, _ = boolField(d, "isTask")
	r.ParentReminderID = optionalIDField(d, "parentReminderId")
	r.CategoryID = optionalIDField(d, "categoryId")
	if hours, ok := intField(d, "checkupFrequencyHours"); ok && hours > 0 {
		r.CheckupFrequencyHours = int(hours)
	}

	raw, _ := stringField(d, "type")
	r.Type, _ = model.ParseRecurrenceType(raw)
	raw, _ = stringField(d, "priority")
	r.Priority, _ = model.ParsePriority(raw)

	raw, _ = stringField(d, "status")
	status, ok := model.ParseStatus(raw)
	if !ok {
		// Older documents only carry the isActive flag.
		if active, present := boolField(d, "isActive"); present && !active {
			status = model.StatusCompleted
		}
	}
	r.Status = status

	r.UpdatedAt, _ = timeField(d, "updatedAt")
	if created, ok := timeField(d, "createdAt"); ok {
		r.CreatedAt = created
	} else {
		r.CreatedAt = r.UpdatedAt
	}
	return r, nil
}

func decodeCategory(doc Document) (model.Category, error) {
	d := doc.Data
	id, ok := documentID(doc)
	if !ok {
		return model.Category{}, fmt.Errorf("category %q: %w: id", doc.ID, errMissingField)
	}
	name, ok := stringField(d, "name")
	if !ok || strings.TrimSpace(name) == "" {
		return model.Category{}, fmt.Errorf("category %q: %w: name", doc.ID, errMissingField)
	}

	c := model.Category{ID: id, Name: name}
	c.UserID, _ = stringField(d, "userId")
	c.Color, _ = stringField(d, "color")
	c.UpdatedAt, _ = timeField(d, "updatedAt")
	if created, ok := timeField(d, "createdAt"); ok {
		c.CreatedAt = created
	} else {
		c.CreatedAt = c.UpdatedAt
	}
	return c, nil
}

func decodeChecklistItem(doc Document) (model.ChecklistItem, error) {
	d := doc.Data
	id, ok := documentID(doc)
	if !ok {
		return model.ChecklistItem{}, fmt.Errorf("checklist item %q: %w: id", doc.ID, errMissingField)
	}
	reminderID := optionalIDField(d, "reminderId")
	if reminderID == nil {
		return model.ChecklistItem{}, fmt.Errorf("checklist item %q: %w: reminderId", doc.ID, errMissingField)
	}
	text, ok := stringField(d, "text")
	if !ok {
		return model.ChecklistItem{}, fmt.Errorf("checklist item %q: %w: text", doc.ID, errMissingField)
	}

	item := model.ChecklistItem{ID: id, ReminderID: *reminderID, Text: text}
	item.UserID, _ = stringField(d, "userId")
	item.IsChecked, _ = boolField(d, "isChecked")
	if pos, ok := intField(d, "position"); ok {
		item.Position = int(pos)
	}
	item.UpdatedAt, _ = timeField(d, "updatedAt")
	if created, ok := timeField(d, "createdAt"); ok {
		item.CreatedAt = created
	} else {
		item.CreatedAt = item.UpdatedAt
	}
	return item, nil
}

// documentID prefers the "id" field and falls back to the document key.
func documentID(doc Document) (uint, bool) {
	if id := optionalIDField(doc.Data, "id"); id != nil {
		return *id, true
	}
	n, err := strconv.ParseUint(doc.ID, 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

func optionalMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func optionalID(id *uint) any {
	if id == nil {
		return nil
	}
	return int64(*id)
}

func stringField(d map[string]any, key string) (string, bool) {
	s, ok := d[key].(string)
	return s, ok
}

func boolField(d map[string]any, key string) (bool, bool) {
	b, ok := d[key].(bool)
	return b, ok
}

// intField accepts the numeric types produced by Firestore and JSON decoders.
func intField(d map[string]any, key string) (int64, bool) {
	switch v := d[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

func timeField(d map[string]any, key string) (time.Time, bool) {
	if t, ok := d[key].(time.Time); ok {
		return model.Millis(t), true
	}
	ms, ok := intField(d, key)
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func optionalTimeField(d map[string]any, key string) *time.Time {
	t, ok := timeField(d, key)
	if !ok {
		return nil
	}
	return &t
}

func optionalIDField(d map[string]any, key string) *uint {
	n, ok := intField(d, key)
	if !ok || n <= 0 {
		return nil
	}
	id := uint(n)
	return &id
}
