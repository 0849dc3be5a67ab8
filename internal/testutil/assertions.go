package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/runixer/grabber/internal/storage"
)

// AssertDeliveryRecorded asserts that the user's latest delivery has the given status
// and returns it.
func AssertDeliveryRecorded(t *testing.T, store *storage.SQLiteStore, userID int64, status string) storage.Delivery {
	t.Helper()
	deliveries, err := store.GetRecentDeliveries(userID, 1)
	if err != nil {
		t.Fatalf("failed to get deliveries: %v", err)
	}
	if len(deliveries) == 0 {
		t.Fatalf("no delivery recorded for user %d", userID)
	}
	if deliveries[0].Status != status {
		t.Fatalf("latest delivery of user %d has status %q, want %q (failure kind %q)",
			userID, deliveries[0].Status, status, deliveries[0].FailureKind)
	}
	return deliveries[0]
}

// AssertDeliveryCount asserts the number of recorded deliveries for a user.
func AssertDeliveryCount(t *testing.T, store *storage.SQLiteStore, userID int64, expected int) {
	t.Helper()
	deliveries, err := store.GetRecentDeliveries(userID, expected+10)
	if err != nil {
		t.Fatalf("failed to get deliveries: %v", err)
	}
	if len(deliveries) != expected {
		t.Errorf("expected %d deliveries for user %d, got %d", expected, userID, len(deliveries))
	}
}

// AssertUserExists asserts that the user row exists and returns it.
func AssertUserExists(t *testing.T, store *storage.SQLiteStore, userID int64) *storage.User {
	t.Helper()
	user, err := store.GetUser(userID)
	if err != nil {
		t.Fatalf("failed to get user %d: %v", userID, err)
	}
	if user == nil {
		t.Fatalf("user %d not found", userID)
	}
	return user
}

// AssertLogContains asserts that the log contains an entry with the given level and message.
func AssertLogContains(t *testing.T, logs []LogEntry, level string, msg string) {
	t.Helper()
	for _, entry := range logs {
		if (level == "" || strings.EqualFold(entry.Level, level)) &&
			strings.Contains(entry.Message, msg) {
			return
		}
	}
	t.Fatalf("no log entry found with level=%q msg containing %q. Entries: %d", level, msg, len(logs))
}

// AssertLogHasField asserts that a log entry exists with the given field value.
func AssertLogHasField(t *testing.T, logs []LogEntry, key string, value interface{}) {
	t.Helper()
	for _, entry := range logs {
		if v, ok := entry.Fields[key]; ok && fmt.Sprint(v) == fmt.Sprint(value) {
			return
		}
	}
	t.Fatalf("no log entry found with field %q=%v. Entries: %d", key, value, len(logs))
}

// AssertNoErrorLogs asserts that no ERROR level logs were captured.
func AssertNoErrorLogs(t *testing.T, logs []LogEntry) {
	t.Helper()
	for _, entry := range logs {
		if strings.EqualFold(entry.Level, "error") {
			t.Errorf("found error log: %s (fields: %v)", entry.Message, entry.Fields)
		}
	}
}
