package validators

import "go.mongodb.org/mongo-driver/bson"

// clockPattern is HH:MM on a 24h clock; 24:00 marks the end of a day.
const clockPattern = `^(([01]\d|2[0-3]):[0-5]\d|24:00)$`

var AvailabilityWindowValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"tutor_id",
			"recurrence",
			"start_time",
			"end_time",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"tutor_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"recurrence": bson.M{
				"enum": []string{"NONE", "WEEKLY"},
			},

			"day_of_week": bson.M{
				"enum": []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"},
			},

			"date": bson.M{
				"bsonType": "string",
				"pattern":  `^\d{4}-\d{2}-\d{2}$`,
			},

			"start_time": bson.M{
				"bsonType": "string",
				"pattern":  clockPattern,
			},
			"end_time": bson.M{
				"bsonType": "string",
				"pattern":  clockPattern,
			},

			"time_zone":   bson.M{"bsonType": "string"},
			"valid_from":  bson.M{"bsonType": "date"},
			"valid_until": bson.M{"bsonType": "date"},
			"created_at":  bson.M{"bsonType": "date"},
		},
	},
}

// AvailabilityGuardValidator checks the per-tutor write guards.
var AvailabilityGuardValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "seq"},
		"properties": bson.M{
			"_id":        bson.M{"bsonType": "string"},
			"seq":        bson.M{"bsonType": []string{"int", "long"}},
			"updated_at": bson.M{"bsonType": "date"},
		},
	},
}
