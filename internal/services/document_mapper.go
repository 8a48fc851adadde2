package services

import (
	"time"

	"guidedesk/internal/models"
	"guidedesk/internal/repositories/interfaces"
)

// Raw documents are written by other apps, so every field is read leniently:
// a missing or mistyped value maps to its zero value rather than an error.

func requestFromDocument(doc interfaces.Document, now time.Time) *models.TouristRequest {
	d := doc.Data
	return &models.TouristRequest{
		ID:          doc.ID,
		TouristID:   stringField(d, "touristId"),
		TouristName: stringField(d, "touristName"),
		Location:    stringField(d, "location"),
		Destination: stringField(d, "destination"),
		RequestDate: dateString(d, "requestDate"),
		Status:      models.RequestStatus(stringField(d, "status")),
		GuideID:     optionalString(d, "guideId"),
		Notes:       optionalString(d, "notes"),
		CreatedAt:   timeOrNow(d, "createdAt", now),
		AcceptedAt:  optionalTime(d, "acceptedAt"),
		RejectedAt:  optionalTime(d, "rejectedAt"),
	}
}

func sosAlertFromDocument(doc interfaces.Document, now time.Time) *models.SOSAlert {
	d := doc.Data
	return &models.SOSAlert{
		ID:                doc.ID,
		TouristID:         stringField(d, "touristId"),
		TouristName:       stringField(d, "touristName"),
		Location:          stringField(d, "location"),
		Coordinates:       coordinatesField(d, "coordinates"),
		Message:           stringField(d, "message"),
		Status:            models.SOSStatus(stringField(d, "status")),
		RespondingGuideID: optionalString(d, "respondingGuideId"),
		CreatedAt:         timeOrNow(d, "createdAt", now),
		ResponseTime:      optionalTime(d, "responseTime"),
		ResolvedAt:        optionalTime(d, "resolvedAt"),
	}
}

func stringField(data map[string]interface{}, key string) string {
	s, _ := data[key].(string)
	return s
}

func optionalString(data map[string]interface{}, key string) *string {
	s, ok := data[key].(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}

// dateString accepts either the string the tourist app writes or a stored
// timestamp.
func dateString(data map[string]interface{}, key string) string {
	switch v := data[key].(type) {
	case string:
		return v
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	}
	return ""
}

func timeOrNow(data map[string]interface{}, key string, now time.Time) time.Time {
	if t, ok := data[key].(time.Time); ok && !t.IsZero() {
		return t
	}
	return now
}

func optionalTime(data map[string]interface{}, key string) *time.Time {
	t, ok := data[key].(time.Time)
	if !ok || t.IsZero() {
		return nil
	}
	return &t
}

func coordinatesField(data map[string]interface{}, key string) *models.Coordinates {
	m, ok := data[key].(map[string]interface{})
	if !ok {
		return nil
	}
	lat, latOK := number(m["latitude"])
	lng, lngOK := number(m["longitude"])
	if !latOK || !lngOK {
		return nil
	}
	return &models.Coordinates{Latitude: lat, Longitude: lng}
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
