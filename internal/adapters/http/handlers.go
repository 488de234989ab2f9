package http

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/ryanhackme1207/Everspace/internal/auth"
	"github.com/ryanhackme1207/Everspace/internal/chat"
	"github.com/ryanhackme1207/Everspace/internal/config"
	"github.com/ryanhackme1207/Everspace/internal/domain"
	"github.com/ryanhackme1207/Everspace/internal/store"
)

// API is the CRUD and moderation surface around the chat core. Authorization
// (host/creator checks) happens here, before anything reaches the dispatcher.
type API struct {
	Cfg        *config.Config
	Users      store.UserRepository
	Rooms      store.RoomRepository
	Members    store.MembershipRepository
	Bans       store.BanRepository
	Messages   store.MessageRepository
	Dispatcher *chat.Dispatcher
}

type registerRequest struct {
	Username    string `json:"username" binding:"required"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password" binding:"required,min=8"`
}

func (a *API) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	user, err := domain.NewUser(req.Username, req.DisplayName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}
	user.PasswordHash = string(hash)
	if err := a.Users.Create(c.Request.Context(), user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "username taken"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}
	c.JSON(http.StatusCreated, user)
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (a *API) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	user, err := a.Users.GetByUsername(c.Request.Context(), req.Username)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := auth.GenerateToken(user.ID, user.Username, []byte(a.Cfg.Secret), a.Cfg.TokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	sess := sessions.Default(c)
	sess.Set("user_id", user.ID)
	_ = sess.Save()

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

func (a *API) ListRooms(c *gin.Context) {
	rooms, err := a.Rooms.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

type createRoomRequest struct {
	Name       string            `json:"name" binding:"required"`
	Visibility domain.Visibility `json:"visibility"`
	Password   string            `json:"password"`
}

func (a *API) CreateRoom(c *gin.Context) {
	user, _ := currentUser(c)
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	var hash string
	if req.Visibility == domain.VisibilityPrivate {
		if req.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrPasswordRequired.Error()})
			return
		}
		h, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "creation failed"})
			return
		}
		hash = string(h)
	}
	room, err := domain.NewRoom(req.Name, req.Visibility, hash, user.ID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := a.Rooms.Create(c.Request.Context(), room); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "room already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "creation failed"})
		return
	}
	c.JSON(http.StatusCreated, room)
}

// JoinRoom validates a private room's password and unlocks it for the rest
// of the logical session, so the following WS connect skips PendingPassword.
func (a *API) JoinRoom(c *gin.Context) {
	room, ok := a.roomFromPath(c)
	if !ok {
		return
	}
	if !room.IsPrivate() {
		c.JSON(http.StatusOK, gin.H{"unlocked": true})
		return
	}
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(room.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid password"})
		return
	}
	sess := sessions.Default(c)
	sess.Set(unlockKey(room.Name), true)
	_ = sess.Save()
	c.JSON(http.StatusOK, gin.H{"unlocked": true})
}

func (a *API) DeleteRoom(c *gin.Context) {
	user, _ := currentUser(c)
	room, ok := a.roomFromPath(c)
	if !ok {
		return
	}
	if room.CreatorID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the room creator can delete it"})
		return
	}
	if err := a.Dispatcher.DeleteRoom(c.Request.Context(), room); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "deletion failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": room.Name})
}

func (a *API) RoomMessages(c *gin.Context) {
	room, ok := a.roomFromPath(c)
	if !ok {
		return
	}
	msgs, err := a.Messages.ListRecent(c.Request.Context(), room.ID, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

type targetRequest struct {
	Username string `json:"username" binding:"required"`
	Reason   string `json:"reason"`
}

func (a *API) KickUser(c *gin.Context) {
	host, room, target, ok := a.moderationArgs(c)
	if !ok {
		return
	}
	if err := a.Dispatcher.Kick(c.Request.Context(), room, target, host); err != nil {
		a.moderationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kicked": target.Username})
}

func (a *API) BanUser(c *gin.Context) {
	host, room, target, ok := a.moderationArgs(c)
	if !ok {
		return
	}
	var req targetRequest
	_ = c.ShouldBindBodyWithJSON(&req)
	if err := a.Dispatcher.Ban(c.Request.Context(), room, target, host, req.Reason); err != nil {
		a.moderationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"banned": target.Username})
}

func (a *API) UnbanUser(c *gin.Context) {
	_, room, target, ok := a.moderationArgs(c)
	if !ok {
		return
	}
	if err := a.Dispatcher.Unban(c.Request.Context(), room, target); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active ban"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unban failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unbanned": target.Username})
}

func (a *API) TransferOwnership(c *gin.Context) {
	host, room, target, ok := a.moderationArgs(c)
	if !ok {
		return
	}
	if err := a.Dispatcher.TransferOwnership(c.Request.Context(), room, host, target); err != nil {
		a.moderationError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"new_owner": target.Username})
}

func (a *API) roomFromPath(c *gin.Context) (*domain.Room, bool) {
	room, err := a.Rooms.GetByName(c.Request.Context(), c.Param("name"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		}
		return nil, false
	}
	return room, true
}

// moderationArgs loads the room and target and enforces that the caller is
// the room's host.
func (a *API) moderationArgs(c *gin.Context) (*domain.User, *domain.Room, *domain.User, bool) {
	caller, _ := currentUser(c)
	room, ok := a.roomFromPath(c)
	if !ok {
		return nil, nil, nil, false
	}
	m, err := a.Members.Get(c.Request.Context(), room.ID, caller.ID)
	if err != nil || m.Role != domain.RoleHost {
		c.JSON(http.StatusForbidden, gin.H{"error": "host privileges required"})
		return nil, nil, nil, false
	}
	var req targetRequest
	if err := c.ShouldBindBodyWithJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return nil, nil, nil, false
	}
	target, err := a.Users.GetByUsername(c.Request.Context(), req.Username)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "target user not found"})
		return nil, nil, nil, false
	}
	if target.ID == caller.ID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot target yourself"})
		return nil, nil, nil, false
	}
	return caller, room, target, true
}

func (a *API) moderationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrNotMember):
		c.JSON(http.StatusConflict, gin.H{"error": "target is not a member"})
	case errors.Is(err, chat.ErrAlreadyBanned):
		c.JSON(http.StatusConflict, gin.H{"error": "target is already banned"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "moderation failed"})
	}
}
