package store

import (
	"fmt"
)

// Collection names the top-level document collections in Redis keys.
type Collection string

const (
	CollectionSchedules Collection = "schedules"
	CollectionLogs      Collection = "logs"
	CollectionSystem    Collection = "system"
)

// DocKey constructs a fully qualified Redis key for a document.
// Format: campuscast:{collection}:{id}
func DocKey(collection Collection, id string) string {
	return fmt.Sprintf("campuscast:%s:%s", collection, id)
}

// IndexKey constructs the Redis key of a collection's ordering index.
// Format: campuscast:{collection}:index
func IndexKey(collection Collection) string {
	return fmt.Sprintf("campuscast:%s:index", collection)
}
