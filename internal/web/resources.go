package web

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jbaxter/correspond/internal/models"
)

// Expand is the set of relation names a response should embed. Nested
// relations use dot paths, so "last_message.sender" expands the last
// message and, inside it, its sender. Unknown names are ignored by the
// resource builders.
type Expand map[string]Expand

// ParseExpand builds an Expand set from a comma-separated list of dot
// paths, as received in an "expand" query parameter.
func ParseExpand(raw string) Expand {
	ex := Expand{}
	for _, path := range strings.Split(raw, ",") {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		cur := ex
		for _, name := range strings.Split(path, ".") {
			child, ok := cur[name]
			if !ok {
				child = Expand{}
				cur[name] = child
			}
			cur = child
		}
	}
	return ex
}

// Has reports whether the relation is requested at this level.
func (e Expand) Has(name string) bool {
	_, ok := e[name]
	return ok
}

// Child returns the nested expansion set for a relation, empty when the
// relation was requested without children.
func (e Expand) Child(name string) Expand {
	if child, ok := e[name]; ok {
		return child
	}
	return Expand{}
}

// UserResource serializes a contact.
func UserResource(u *models.User) gin.H {
	if u == nil {
		return nil
	}
	return gin.H{
		"id":                      u.ID,
		"first_name":              u.FirstName,
		"last_name":               u.LastName,
		"name":                    u.Name(),
		"phone_number":            u.PhoneNumber,
		"email":                   u.Email,
		"country":                 u.Country,
		"active_campaign_id":      u.ActiveCampaignID,
		"is_staff":                u.IsStaff,
		"manager_id":              u.ManagerID,
		"organization_id":         u.OrganizationID,
		"messages_sent_count":     u.MessagesSentCount,
		"messages_received_count": u.MessagesReceivedCount,
	}
}

// MessageResource serializes a message, embedding relations named in ex.
func MessageResource(m *models.Message, ex Expand) gin.H {
	if m == nil {
		return nil
	}
	res := gin.H{
		"id":              m.ID,
		"sender_id":       m.SenderID,
		"conversation_id": m.ConversationID,
		"organization_id": m.OrganizationID,
		"auto_message_id": m.AutoMessageID,
		"body":            m.Body,
		"provider_ids":    m.ProviderIDList(),
		"created_at":      m.CreatedAt,
	}
	if ex.Has("sender") {
		res["sender"] = UserResource(m.Sender)
	}
	return res
}

// ConversationResource serializes a conversation with its summary
// fields, embedding relations named in ex.
func ConversationResource(c *models.Conversation, ex Expand) gin.H {
	if c == nil {
		return nil
	}
	res := gin.H{
		"id":              c.ID,
		"receiver_id":     c.ReceiverID,
		"organization_id": c.OrganizationID,
		"phone_number_id": c.PhoneNumberID,
		"messages_count":  c.MessagesCount,
		"last_message_id": c.LastMessageID,
		"last_message_at": c.LastMessageAt,
		"unread":          c.Unread,
	}
	if ex.Has("receiver") {
		res["receiver"] = UserResource(c.Receiver)
	}
	if ex.Has("last_message") {
		res["last_message"] = MessageResource(c.LastMessage, ex.Child("last_message"))
	}
	return res
}

// OrganizationResource serializes an organization.
func OrganizationResource(o *models.Organization) gin.H {
	if o == nil {
		return nil
	}
	return gin.H{
		"id":      o.ID,
		"name":    o.Name,
		"slug":    o.Slug,
		"country": o.Country,
	}
}
