package testutil

import (
	"time"

	"github.com/runixer/grabber/internal/storage"
	"github.com/runixer/grabber/internal/telegram"
)

// Identifiers shared by fixtures.
const (
	TestUserID int64 = 123
	TestChatID int64 = 123
)

// TestUser returns a standard test user.
func TestUser() storage.User {
	return storage.User{
		ID:           TestUserID,
		Username:     "testuser",
		FirstName:    "Test",
		LastName:     "User",
		LanguageCode: "en",
		LastSeen:     time.Now(),
	}
}

// TestTelegramUser returns the Telegram side of TestUser.
func TestTelegramUser() *telegram.User {
	return &telegram.User{ID: TestUserID, FirstName: "Test", LastName: "User", Username: "testuser", LanguageCode: "en"}
}

// TestPrivateMessage returns a text message from TestUser in a private chat.
func TestPrivateMessage(id int, text string) *telegram.Message {
	return &telegram.Message{
		MessageID: id,
		From:      TestTelegramUser(),
		Chat:      &telegram.Chat{ID: TestChatID, Type: "private"},
		Date:      int(time.Now().Unix()),
		Text:      text,
	}
}

// TestCallback returns a button press on menuID, whose menu replies to linkID.
func TestCallback(menuID, linkID int, data string) *telegram.CallbackQuery {
	menu := TestPrivateMessage(menuID, "")
	if linkID != 0 {
		menu.ReplyToMessage = TestPrivateMessage(linkID, "https://example.com/watch?v=1")
	}
	return &telegram.CallbackQuery{
		ID:      "cb-1",
		From:    TestTelegramUser(),
		Message: menu,
		Data:    data,
	}
}

// TestDelivery returns a successful delivery for TestUser.
func TestDelivery() storage.Delivery {
	return storage.Delivery{
		JobID:           "01JTEST0000000000000000000",
		UserID:          TestUserID,
		ChatID:          TestChatID,
		URL:             "https://example.com/watch?v=1",
		Title:           "Example",
		FormatID:        "22",
		Container:       "mp4",
		Shape:           "video",
		Status:          storage.DeliveryDelivered,
		SizeBytes:       1 << 20,
		DownloadSeconds: 3,
		UploadSeconds:   2,
		CreatedAt:       time.Now(),
	}
}
