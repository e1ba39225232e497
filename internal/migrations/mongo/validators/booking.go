package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"tutor_id",
			"student_id",
			"subject_id",
			"scheduled_start",
			"scheduled_end",
			"status",
			"created_at",
			"updated_at",
			"version",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 36,
				"maxLength": 36,
			},

			"tutor_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"student_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"subject_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"scheduled_start": bson.M{"bsonType": "date"},
			"scheduled_end":   bson.M{"bsonType": "date"},

			"status": bson.M{
				"enum": []string{"REQUESTED", "CONFIRMED", "IN_PROGRESS", "COMPLETED", "REJECTED", "CANCELLED"},
			},

			"note": bson.M{
				"bsonType":  "string",
				"maxLength": 2000,
			},

			"created_at": bson.M{"bsonType": "date"},
			"updated_at": bson.M{"bsonType": "date"},

			"version": bson.M{
				"bsonType": []string{"long", "int"},
				"minimum":  1,
			},
		},
	},
}
