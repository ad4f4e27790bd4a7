package web

import (
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jbaxter/correspond/internal/conversation"
	"github.com/jbaxter/correspond/internal/directory"
	"github.com/jbaxter/correspond/internal/models"
	"github.com/jbaxter/correspond/internal/phonepool"
	"github.com/jbaxter/correspond/internal/users"
	"gorm.io/gorm"
)

// handleOrganizationDetail returns the organization with the countries
// it can currently send to, derived from its active number pool.
func (s *Server) handleOrganizationDetail(c *gin.Context) {
	org, err := directory.OrgBySlug(s.DB, c.Param("slug"))
	if errors.Is(err, directory.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown organization"})
		return
	}
	if err != nil {
		s.Log.Error("organization lookup", "slug", c.Param("slug"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	byCountry, err := phonepool.SupportedCountries(s.DB, org.ID)
	if err != nil {
		s.Log.Error("supported countries", "org_id", org.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	countries := make([]string, 0, len(byCountry))
	for country := range byCountry {
		countries = append(countries, country)
	}
	sort.Strings(countries)

	res := OrganizationResource(org)
	res["supported_countries"] = countries
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleConversationList(c *gin.Context) {
	org, err := directory.OrgBySlug(s.DB, c.Param("slug"))
	if errors.Is(err, directory.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown organization"})
		return
	}
	if err != nil {
		s.Log.Error("organization lookup", "slug", c.Param("slug"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	ex := ParseExpand(c.Query("expand"))
	q := s.DB.Where("organization_id = ?", org.ID).
		Order("last_message_at DESC")
	if ex.Has("receiver") {
		q = q.Preload("Receiver")
	}
	if ex.Has("last_message") {
		q = q.Preload("LastMessage")
		if ex.Child("last_message").Has("sender") {
			q = q.Preload("LastMessage.Sender")
		}
	}

	var convs []models.Conversation
	if err := q.Find(&convs).Error; err != nil {
		s.Log.Error("conversation list", "org_id", org.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	out := make([]gin.H, len(convs))
	for i := range convs {
		out[i] = ConversationResource(&convs[i], ex)
	}
	c.JSON(http.StatusOK, gin.H{"conversations": out})
}

func (s *Server) handleMessageList(c *gin.Context) {
	conv, ok := s.findConversation(c)
	if !ok {
		return
	}

	ex := ParseExpand(c.Query("expand"))
	q := s.DB.Where("conversation_id = ?", conv.ID).Order("created_at ASC, id ASC")
	if ex.Has("sender") {
		q = q.Preload("Sender")
	}

	var msgs []models.Message
	if err := q.Find(&msgs).Error; err != nil {
		s.Log.Error("message list", "conversation_id", conv.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	out := make([]gin.H, len(msgs))
	for i := range msgs {
		out[i] = MessageResource(&msgs[i], ex)
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

type messageCreateInput struct {
	SenderID uint   `json:"sender_id" binding:"required"`
	Body     string `json:"body" binding:"required"`
}

// handleMessageCreate appends a staff outbound message and enqueues its
// delivery after commit.
func (s *Server) handleMessageCreate(c *gin.Context) {
	conv, ok := s.findConversation(c)
	if !ok {
		return
	}

	var in messageCreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	var sender models.User
	if err := s.DB.First(&sender, in.SenderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": users.FieldErrors{
				{Field: "sender_id", Message: "sender not found"},
			}})
			return
		}
		s.Log.Error("sender lookup", "sender_id", in.SenderID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	var receiver models.User
	if err := s.DB.First(&receiver, conv.ReceiverID).Error; err != nil {
		s.Log.Error("receiver lookup", "conversation_id", conv.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	msg, err := s.conversations().Append(c.Request.Context(), conversation.AppendOpts{
		Receiver: &receiver,
		SenderID: in.SenderID,
		Body:     in.Body,
		Send:     true,
	})
	if err != nil {
		s.Log.Error("message create", "conversation_id", conv.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "append failed"})
		return
	}
	c.JSON(http.StatusCreated, MessageResource(msg, Expand{}))
}

func (s *Server) handleMark(c *gin.Context) {
	action := conversation.Action(c.Param("action"))
	if action != conversation.ActionRead && action != conversation.ActionUnread {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
		return
	}

	conv, ok := s.findConversation(c)
	if !ok {
		return
	}

	updated, err := conversation.MarkAs(s.DB, conv.ID, action)
	if err != nil {
		s.Log.Error("mark conversation", "id", conv.ID, "action", action, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "mark failed"})
		return
	}
	c.JSON(http.StatusOK, ConversationResource(updated, Expand{}))
}

type userCreateInput struct {
	FirstName        *string `json:"first_name"`
	LastName         *string `json:"last_name"`
	PhoneNumber      *string `json:"phone_number"`
	Email            *string `json:"email"`
	Country          string  `json:"country"`
	ActiveCampaignID *string `json:"active_campaign_id"`
	IsStaff          bool    `json:"is_staff"`
	ManagerID        *uint   `json:"manager_id"`
}

func (s *Server) handleUserCreate(c *gin.Context) {
	org, err := directory.OrgBySlug(s.DB, c.Param("slug"))
	if errors.Is(err, directory.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown organization"})
		return
	}
	if err != nil {
		s.Log.Error("organization lookup", "slug", c.Param("slug"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	var in userCreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	user, err := users.Create(s.DB, org, users.CreateInput{
		FirstName:        in.FirstName,
		LastName:         in.LastName,
		PhoneNumber:      in.PhoneNumber,
		Email:            in.Email,
		Country:          in.Country,
		ActiveCampaignID: in.ActiveCampaignID,
		IsStaff:          in.IsStaff,
		ManagerID:        in.ManagerID,
	}, s.DefaultCountry)
	var fe users.FieldErrors
	if errors.As(err, &fe) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": fe})
		return
	}
	if err != nil {
		s.Log.Error("user create", "org_id", org.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, UserResource(user))
}

type userUpdateInput struct {
	FirstName        *string `json:"first_name"`
	LastName         *string `json:"last_name"`
	PhoneNumber      *string `json:"phone_number"`
	Email            *string `json:"email"`
	Country          *string `json:"country"`
	ActiveCampaignID *string `json:"active_campaign_id"`
	IsStaff          *bool   `json:"is_staff"`
	ManagerID        *uint   `json:"manager_id"`
}

func (s *Server) handleUserUpdate(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown user"})
		return
	}

	var user models.User
	err = s.DB.First(&user, uint(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown user"})
		return
	}
	if err != nil {
		s.Log.Error("user lookup", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	var in userUpdateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	updated, err := users.Update(s.DB, &user, users.UpdateInput{
		FirstName:        in.FirstName,
		LastName:         in.LastName,
		PhoneNumber:      in.PhoneNumber,
		Email:            in.Email,
		Country:          in.Country,
		ActiveCampaignID: in.ActiveCampaignID,
		IsStaff:          in.IsStaff,
		ManagerID:        in.ManagerID,
	}, s.DefaultCountry)
	var fe users.FieldErrors
	if errors.As(err, &fe) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": fe})
		return
	}
	if err != nil {
		s.Log.Error("user update", "id", user.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, UserResource(updated))
}

// findConversation resolves the :id route param, writing the error
// response itself when the conversation cannot be loaded.
func (s *Server) findConversation(c *gin.Context) (*models.Conversation, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown conversation"})
		return nil, false
	}
	var conv models.Conversation
	err = s.DB.First(&conv, uint(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown conversation"})
		return nil, false
	}
	if err != nil {
		s.Log.Error("conversation lookup", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return nil, false
	}
	return &conv, true
}
