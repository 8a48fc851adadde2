package mongodb

import (
	"testing"
	"time"

	"guidedesk/internal/repositories/interfaces"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestToDocumentNormalizesDriverTypes(t *testing.T) {
	oid := primitive.NewObjectID()
	created := time.Date(2024, 7, 2, 9, 0, 0, 0, time.UTC)

	doc := toDocument(bson.M{
		"_id":       oid,
		"status":    "active",
		"createdAt": primitive.NewDateTimeFromTime(created),
		"count":     int32(3),
		"coordinates": bson.D{
			{Key: "latitude", Value: 41.9},
			{Key: "longitude", Value: 12.5},
		},
		"tags": bson.A{"a", int32(1)},
	})

	assert.Equal(t, oid.Hex(), doc.ID)
	assert.NotContains(t, doc.Data, "_id")
	assert.Equal(t, "active", doc.Data["status"])
	assert.Equal(t, created, doc.Data["createdAt"])
	assert.Equal(t, int64(3), doc.Data["count"])
	assert.Equal(t, map[string]interface{}{"latitude": 41.9, "longitude": 12.5}, doc.Data["coordinates"])
	assert.Equal(t, []interface{}{"a", int64(1)}, doc.Data["tags"])
}

func TestToDocumentStringID(t *testing.T) {
	doc := toDocument(bson.M{"_id": "req-42", "status": "pending"})
	assert.Equal(t, "req-42", doc.ID)
}

func TestQueryFilter(t *testing.T) {
	eq := queryFilter(interfaces.Query{Field: "status", In: []string{"pending"}})
	assert.Equal(t, bson.M{"status": "pending"}, eq)

	in := queryFilter(interfaces.Query{Field: "status", In: []string{"active", "responding"}})
	assert.Equal(t, bson.M{"status": bson.M{"$in": []string{"active", "responding"}}}, in)

	ordered := queryFilter(interfaces.Query{Field: "status", In: []string{"pending"}, OrderBy: "createdAt"})
	assert.Equal(t, bson.M{"status": "pending", "createdAt": bson.M{"$exists": true}}, ordered)
}

func TestIDFilter(t *testing.T) {
	assert.Equal(t, "plain-id", idFilter("plain-id"))

	oid := primitive.NewObjectID()
	assert.Equal(t, bson.M{"$in": bson.A{oid.Hex(), oid}}, idFilter(oid.Hex()))
}
