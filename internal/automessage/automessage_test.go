package automessage

import (
	"errors"
	"testing"

	"github.com/jbaxter/correspond/internal/db"
	"github.com/jbaxter/correspond/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func seedAutoMessage(t *testing.T, gdb *gorm.DB) *models.AutoMessage {
	t.Helper()
	org := models.Organization{Name: "Acme", Slug: "acme", Country: "FR"}
	if err := gdb.Create(&org).Error; err != nil {
		t.Fatalf("create org: %v", err)
	}
	orgID := org.ID
	staff := models.User{Country: "FR", IsStaff: true, OrganizationID: &orgID}
	if err := gdb.Create(&staff).Error; err != nil {
		t.Fatalf("create staff: %v", err)
	}
	am := models.AutoMessage{Body: "Welcome aboard", SenderID: staff.ID, OrganizationID: org.ID}
	if err := gdb.Create(&am).Error; err != nil {
		t.Fatalf("create automessage: %v", err)
	}
	return &am
}

func TestSendCreatesUserAndMessage(t *testing.T) {
	gdb := openTestDB(t)
	am := seedAutoMessage(t, gdb)

	first := "Jane"
	msg, err := Send(gdb, am, "+33612345678", Defaults{FirstName: &first, Country: "FR"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Body != "Welcome aboard" {
		t.Errorf("body = %q, want %q", msg.Body, "Welcome aboard")
	}
	if msg.AutoMessageID == nil || *msg.AutoMessageID != am.ID {
		t.Errorf("auto message id = %v, want %d", msg.AutoMessageID, am.ID)
	}

	var user models.User
	if err := gdb.Where("phone_number = ?", "+33612345678").First(&user).Error; err != nil {
		t.Fatalf("find created user: %v", err)
	}
	if user.FirstName == nil || *user.FirstName != "Jane" {
		t.Errorf("first name = %v, want Jane", user.FirstName)
	}
	if user.ManagerID == nil || *user.ManagerID != am.SenderID {
		t.Errorf("manager id = %v, want %d", user.ManagerID, am.SenderID)
	}
	if user.OrganizationID == nil || *user.OrganizationID != am.OrganizationID {
		t.Errorf("organization id = %v, want %d", user.OrganizationID, am.OrganizationID)
	}

	var conv models.Conversation
	if err := gdb.Where("receiver_id = ?", user.ID).First(&conv).Error; err != nil {
		t.Fatalf("find conversation: %v", err)
	}
	if conv.MessagesCount != 1 {
		t.Errorf("messages count = %d, want 1", conv.MessagesCount)
	}
	if conv.Unread {
		t.Error("conversation unread after staff message, want read")
	}
}

func TestSendReusesExistingUser(t *testing.T) {
	gdb := openTestDB(t)
	am := seedAutoMessage(t, gdb)

	phone := "+33612345678"
	orgID := am.OrganizationID
	existing := models.User{PhoneNumber: &phone, Country: "FR", OrganizationID: &orgID}
	if err := gdb.Create(&existing).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	msg, err := Send(gdb, am, phone, Defaults{Country: "FR"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Conversation == nil {
		var conv models.Conversation
		if err := gdb.First(&conv, msg.ConversationID).Error; err != nil {
			t.Fatalf("find conversation: %v", err)
		}
		if conv.ReceiverID != existing.ID {
			t.Errorf("receiver = %d, want existing user %d", conv.ReceiverID, existing.ID)
		}
	}

	var count int64
	gdb.Model(&models.User{}).Where("phone_number = ?", phone).Count(&count)
	if count != 1 {
		t.Errorf("user count = %d, want 1", count)
	}
}

func TestSendIsIdempotent(t *testing.T) {
	gdb := openTestDB(t)
	am := seedAutoMessage(t, gdb)

	if _, err := Send(gdb, am, "+33612345678", Defaults{Country: "FR"}); err != nil {
		t.Fatalf("first send: %v", err)
	}
	_, err := Send(gdb, am, "+33612345678", Defaults{Country: "FR"})
	if !errors.Is(err, ErrAlreadySent) {
		t.Fatalf("second send err = %v, want ErrAlreadySent", err)
	}

	var count int64
	gdb.Model(&models.Message{}).Where("auto_message_id = ?", am.ID).Count(&count)
	if count != 1 {
		t.Errorf("message count = %d, want 1", count)
	}
}

func TestSendDifferentAutoMessagesSameUser(t *testing.T) {
	gdb := openTestDB(t)
	am := seedAutoMessage(t, gdb)

	other := models.AutoMessage{Body: "Second nudge", SenderID: am.SenderID, OrganizationID: am.OrganizationID}
	if err := gdb.Create(&other).Error; err != nil {
		t.Fatalf("create automessage: %v", err)
	}

	if _, err := Send(gdb, am, "+33612345678", Defaults{Country: "FR"}); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if _, err := Send(gdb, &other, "+33612345678", Defaults{Country: "FR"}); err != nil {
		t.Fatalf("second automessage send: %v", err)
	}

	var conv models.Conversation
	if err := gdb.First(&conv).Error; err != nil {
		t.Fatalf("find conversation: %v", err)
	}
	if conv.MessagesCount != 2 {
		t.Errorf("messages count = %d, want 2", conv.MessagesCount)
	}
}
