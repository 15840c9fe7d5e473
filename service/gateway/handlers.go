package gateway

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"CareChat/logger"
	mid "CareChat/middleware/security"
	"CareChat/model"
	"CareChat/service/storage"
	"CareChat/tools/ids"
)

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

// member loads the conversation and checks the caller is a participant.
// Non-participants get 403, unknown conversations 404.
func (s *Server) member(c *gin.Context, convID string) (*model.Conversation, model.Participant, bool) {
	conv, err := s.store.Conversation(c.Request.Context(), convID)
	if errors.Is(err, storage.ErrNotFound) {
		fail(c, http.StatusNotFound, "conversation not found")
		return nil, model.Participant{}, false
	}
	if err != nil {
		logger.Errorf("load conversation %s: %v", convID, err)
		fail(c, http.StatusInternalServerError, "internal error")
		return nil, model.Participant{}, false
	}
	caller := mid.Caller(c)
	p, isMember := conv.Participant(caller.UserID)
	if !isMember {
		fail(c, http.StatusForbidden, "not a participant")
		return nil, model.Participant{}, false
	}
	return conv, p, true
}

func (s *Server) getConversation(c *gin.Context) {
	conv, _, authorized := s.member(c, c.Param("id"))
	if !authorized {
		return
	}
	ok(c, conv)
}

func (s *Server) listMessages(c *gin.Context) {
	convID := c.Param("id")
	if _, _, authorized := s.member(c, convID); !authorized {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	msgs, err := s.store.Messages(c.Request.Context(), convID, limit)
	if err != nil {
		logger.Errorf("list messages %s: %v", convID, err)
		fail(c, http.StatusInternalServerError, "internal error")
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	ok(c, gin.H{"items": msgs})
}

type createMessageBody struct {
	Content     string   `json:"content"`
	Attachments []string `json:"attachments"`
	ReplyToID   string   `json:"replyToId"`
}

func (s *Server) createMessage(c *gin.Context) {
	convID := c.Param("id")
	_, p, authorized := s.member(c, convID)
	if !authorized {
		return
	}
	if !p.CanWrite {
		fail(c, http.StatusForbidden, "read-only participant")
		return
	}
	var body createMessageBody
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	if body.Content == "" && len(body.Attachments) == 0 {
		fail(c, http.StatusBadRequest, "empty message")
		return
	}

	caller := mid.Caller(c)
	now := nowMillis()
	msg := model.Message{
		ID:             ids.GenerateString(),
		ConversationID: convID,
		SenderID:       caller.UserID,
		SenderName:     caller.UserName,
		Content:        body.Content,
		ReplyToID:      body.ReplyToID,
		AttachmentIDs:  body.Attachments,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.AppendMessage(c.Request.Context(), &msg); err != nil {
		logger.Errorf("append message %s: %v", convID, err)
		fail(c, http.StatusInternalServerError, "internal error")
		return
	}
	s.relay.Publish(convID, model.MessageCreated{Message: msg})
	if err := s.notify.SendJSON(convID, gin.H{
		"kind":           "message.created",
		"conversationId": convID,
		"messageId":      msg.ID,
		"senderId":       msg.SenderID,
		"ts":             now,
	}); err != nil {
		// Notification delivery is best-effort; the message is persisted.
		logger.Warnf("notify message %s: %v", msg.ID, err)
	}
	ok(c, msg)
}

type updateMessageBody struct {
	Content string `json:"content"`
}

func (s *Server) updateMessage(c *gin.Context) {
	convID, msgID := c.Param("id"), c.Param("msgId")
	if _, _, authorized := s.member(c, convID); !authorized {
		return
	}
	var body updateMessageBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Content == "" {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	msg, err := s.store.Message(c.Request.Context(), convID, msgID)
	if errors.Is(err, storage.ErrNotFound) {
		fail(c, http.StatusNotFound, "message not found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "internal error")
		return
	}
	if msg.SenderID != mid.Caller(c).UserID {
		fail(c, http.StatusForbidden, "not the sender")
		return
	}
	if msg.Deleted {
		fail(c, http.StatusBadRequest, "message deleted")
		return
	}
	now := nowMillis()
	msg.Content = body.Content
	msg.Edited = true
	msg.EditedAt = now
	msg.UpdatedAt = now
	if err := s.store.UpdateMessage(c.Request.Context(), msg); err != nil {
		fail(c, http.StatusInternalServerError, "internal error")
		return
	}
	s.relay.Publish(convID, model.MessageUpdated{Message: *msg})
	ok(c, msg)
}

func (s *Server) deleteMessage(c *gin.Context) {
	convID, msgID := c.Param("id"), c.Param("msgId")
	_, p, authorized := s.member(c, convID)
	if !authorized {
		return
	}
	msg, err := s.store.Message(c.Request.Context(), convID, msgID)
	if errors.Is(err, storage.ErrNotFound) {
		fail(c, http.StatusNotFound, "message not found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "internal error")
		return
	}
	if msg.SenderID != mid.Caller(c).UserID && !p.CanManage {
		fail(c, http.StatusForbidden, "not allowed")
		return
	}
	now := nowMillis()
	// Soft tombstone: the entry keeps its slot, content is blanked.
	msg.MarkDeleted(now)
	if err := s.store.UpdateMessage(c.Request.Context(), msg); err != nil {
		fail(c, http.StatusInternalServerError, "internal error")
		return
	}
	s.relay.Publish(convID, model.MessageDeleted{MessageID: msgID, Ts: now})
	ok(c, gin.H{"deleted": true})
}

type reactionBody struct {
	Emoji string `json:"emoji"`
}

func (s *Server) addReaction(c *gin.Context) {
	convID, msgID := c.Param("id"), c.Param("msgId")
	_, p, authorized := s.member(c, convID)
	if !authorized {
		return
	}
	if !p.CanWrite {
		fail(c, http.StatusForbidden, "read-only participant")
		return
	}
	var body reactionBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Emoji == "" {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	caller := mid.Caller(c)
	reactor := model.Reactor{UserID: caller.UserID, UserName: caller.UserName}
	added, err := s.store.AddReaction(c.Request.Context(), convID, msgID, body.Emoji, reactor)
	if errors.Is(err, storage.ErrNotFound) {
		fail(c, http.StatusNotFound, "message not found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "internal error")
		return
	}
	if !added {
		// Clients treat this answer as confirmation and toggle off.
		fail(c, http.StatusConflict, "Already reacted to this message")
		return
	}
	s.relay.Publish(convID, model.ReactionAdded{MessageID: msgID, Emoji: body.Emoji, Reactor: reactor})
	ok(c, gin.H{"reacted": true})
}

func (s *Server) removeReaction(c *gin.Context) {
	convID, msgID, emoji := c.Param("id"), c.Param("msgId"), c.Param("emoji")
	if _, _, authorized := s.member(c, convID); !authorized {
		return
	}
	caller := mid.Caller(c)
	removed, err := s.store.RemoveReaction(c.Request.Context(), convID, msgID, emoji, caller.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		fail(c, http.StatusNotFound, "message not found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "internal error")
		return
	}
	if removed {
		s.relay.Publish(convID, model.ReactionRemoved{
			MessageID: msgID, Emoji: emoji,
			Reactor: model.Reactor{UserID: caller.UserID, UserName: caller.UserName},
		})
	}
	// Removing an absent reaction is a no-op, not an error.
	ok(c, gin.H{"reacted": false})
}

func (s *Server) leaveConversation(c *gin.Context) {
	convID, userID := c.Param("id"), c.Param("userId")
	if _, _, authorized := s.member(c, convID); !authorized {
		return
	}
	if userID != mid.Caller(c).UserID {
		fail(c, http.StatusForbidden, "can only remove yourself")
		return
	}
	if err := s.store.RemoveParticipant(c.Request.Context(), convID, userID); err != nil {
		fail(c, http.StatusInternalServerError, "internal error")
		return
	}
	ok(c, gin.H{"left": true})
}
