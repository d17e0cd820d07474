package validators

import "go.mongodb.org/mongo-driver/bson"

var AvailabilityRuleValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"resource_id",
			"day_of_week",
			"start_time",
			"end_time",
			"slot_duration",
			"max_concurrent",
			"is_active",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 36,
				"maxLength": 36,
			},
			"resource_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 100,
			},
			"day_of_week": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
				"maximum":  6,
			},
			"start_time": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
				"maximum":  1439,
			},
			"end_time": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
				"maximum":  1440,
			},
			"slot_duration": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  5,
				"maximum":  1440,
			},
			"buffer_time": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
				"maximum":  480,
			},
			"max_concurrent": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
				"maximum":  200,
			},
			"is_active": bson.M{"bsonType": "bool"},
			"exceptions": bson.M{
				"bsonType": []string{"array", "null"},
				"items": bson.M{
					"bsonType": "string",
					"pattern":  `^\d{4}-\d{2}-\d{2}$`,
				},
			},
		},
	},
}

var ValidationConfigValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id"},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 100,
			},
			"allow_overlapping":   bson.M{"bsonType": "bool"},
			"require_buffer_time": bson.M{"bsonType": "bool"},
			"buffer_time_minutes": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
				"maximum":  480,
			},
			"max_bookings_per_day": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},
			"max_bookings_per_slot": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},
			"prevent_last_minute_bookings": bson.M{"bsonType": "bool"},
			"last_minute_threshold_hours": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},
			"timezone": bson.M{"bsonType": "string"},
		},
	},
}

var AdmissionLockValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "owner", "expires_at"},
		"properties": bson.M{
			"_id":        bson.M{"bsonType": "string"},
			"owner":      bson.M{"bsonType": "string"},
			"expires_at": bson.M{"bsonType": "date"},
			"created_at": bson.M{"bsonType": "date"},
		},
	},
}
