package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jbaxter/correspond/internal/conversation"
	"github.com/jbaxter/correspond/internal/directory"
	"github.com/jbaxter/correspond/internal/reconcile"
)

// nexmoHook is the inbound SMS callback payload. Nexmo sends every
// field as a string, including the concat part numbers.
type nexmoHook struct {
	MSISDN      string `json:"msisdn" form:"msisdn" binding:"required"`
	To          string `json:"to" form:"to" binding:"required"`
	MessageID   string `json:"messageId" form:"messageId" binding:"required"`
	Text        string `json:"text" form:"text"`
	Concat      string `json:"concat" form:"concat"`
	ConcatRef   string `json:"concat-ref" form:"concat-ref"`
	ConcatPart  string `json:"concat-part" form:"concat-part"`
	ConcatTotal string `json:"concat-total" form:"concat-total"`
}

// handleNexmoHook ingests an inbound SMS. The receiving number maps to
// an organization through its phone pool and the sending number to a
// known contact; grouped fragments go through the reconciler, plain
// messages append directly.
func (s *Server) handleNexmoHook(c *gin.Context) {
	var hook nexmoHook
	if err := c.ShouldBind(&hook); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	org, err := directory.OrgByPhone(s.DB, ensurePlus(hook.To))
	if errors.Is(err, directory.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown receiving number"})
		return
	}
	if err != nil {
		s.Log.Error("webhook org lookup", "to", hook.To, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	sender, err := directory.UserByPhone(s.DB, org.ID, ensurePlus(hook.MSISDN))
	if errors.Is(err, directory.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown sender"})
		return
	}
	if err != nil {
		s.Log.Error("webhook sender lookup", "msisdn", hook.MSISDN, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	if hook.Concat != "true" {
		// Single-fragment message, no reassembly needed.
		_, err := conversation.Append(s.DB, conversation.AppendOpts{
			Receiver:    sender,
			SenderID:    sender.ID,
			Body:        hook.Text,
			ProviderIDs: []string{hook.MessageID},
		})
		if err != nil {
			s.Log.Error("webhook append", "message_id", hook.MessageID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "append failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "received"})
		return
	}

	partIndex, err1 := strconv.Atoi(hook.ConcatPart)
	partTotal, err2 := strconv.Atoi(hook.ConcatTotal)
	if hook.ConcatRef == "" || err1 != nil || err2 != nil || partIndex < 1 || partTotal < 1 {
		c.JSON(http.StatusNotAcceptable, gin.H{"error": "malformed concat marker"})
		return
	}

	msg, err := reconcile.Ingest(s.DB, reconcile.Fragment{
		Organization: org,
		Sender:       sender,
		ProviderID:   hook.MessageID,
		Body:         hook.Text,
		PartIndex:    partIndex,
		PartRef:      hook.ConcatRef,
		PartTotal:    partTotal,
	})
	if errors.Is(err, reconcile.ErrDuplicateIndex) {
		c.JSON(http.StatusNotAcceptable, gin.H{"error": "duplicate part index"})
		return
	}
	if err != nil {
		s.Log.Error("webhook reconcile", "ref", hook.ConcatRef, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reconcile failed"})
		return
	}
	if msg == nil {
		c.JSON(http.StatusOK, gin.H{"status": "pending"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "complete", "message_id": msg.ID})
}

// ensurePlus restores the leading + the provider strips from E.164
// numbers.
func ensurePlus(number string) string {
	if number == "" || strings.HasPrefix(number, "+") {
		return number
	}
	return "+" + number
}
