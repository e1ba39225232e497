package validators

import "go.mongodb.org/mongo-driver/bson"

// ReservationLockValidator checks the per-tutor claim arena documents.
var ReservationLockValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "claims"},
		"properties": bson.M{
			"_id": bson.M{"bsonType": "string"},
			"claims": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"tutor_id", "slot_key", "holder_id", "start", "end", "expires_at"},
					"properties": bson.M{
						"tutor_id":   bson.M{"bsonType": "string"},
						"slot_key":   bson.M{"bsonType": "string"},
						"holder_id":  bson.M{"bsonType": "string"},
						"start":      bson.M{"bsonType": "date"},
						"end":        bson.M{"bsonType": "date"},
						"expires_at": bson.M{"bsonType": "date"},
						"created_at": bson.M{"bsonType": "date"},
					},
				},
			},
		},
	},
}
