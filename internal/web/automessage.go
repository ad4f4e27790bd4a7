package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jbaxter/correspond/internal/automessage"
	"github.com/jbaxter/correspond/internal/models"
	"github.com/jbaxter/correspond/internal/outbox"
	"github.com/jbaxter/correspond/internal/phone"
	"gorm.io/gorm"
)

// handleAutoMessage triggers the first-contact flow from an
// ActiveCampaign form submission. Replays for a contact already
// messaged answer 200 instead of 201, nothing is re-sent.
func (s *Server) handleAutoMessage(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown automessage"})
		return
	}

	var am models.AutoMessage
	err = s.DB.First(&am, uint(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown automessage"})
		return
	}
	if err != nil {
		s.Log.Error("automessage lookup", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	var org models.Organization
	if err := s.DB.First(&org, am.OrganizationID).Error; err != nil {
		s.Log.Error("automessage org lookup", "org_id", am.OrganizationID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	rawPhone := c.PostForm("contact[phone]")
	defaultCountry := org.Country
	if defaultCountry == "" {
		defaultCountry = s.DefaultCountry
	}
	num, err := phone.Parse(rawPhone, defaultCountry)
	if err != nil || !phone.IsValid(num) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid phone number"})
		return
	}

	defaults := automessage.Defaults{
		FirstName:        formPtr(c, "contact[first_name]"),
		LastName:         formPtr(c, "contact[last_name]"),
		Email:            formPtr(c, "contact[email]"),
		ActiveCampaignID: formPtr(c, "contact[id]"),
		Country:          phone.Region(num),
	}

	msg, err := automessage.Send(s.DB, &am, phone.Normalize(num), defaults)
	if errors.Is(err, automessage.ErrAlreadySent) {
		c.JSON(http.StatusOK, gin.H{"status": "already sent"})
		return
	}
	if err != nil {
		s.Log.Error("automessage send", "id", am.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "send failed"})
		return
	}

	// Delivery runs after the transaction above has committed.
	if err := s.Queue.Publish(c.Request.Context(), outbox.NewTask(msg.ID)); err != nil {
		s.Log.Error("enqueue delivery", "message_id", msg.ID, "error", err)
	}
	c.JSON(http.StatusCreated, gin.H{"status": "sent", "message_id": msg.ID})
}

func formPtr(c *gin.Context, key string) *string {
	if v, ok := c.GetPostForm(key); ok && v != "" {
		return &v
	}
	return nil
}
