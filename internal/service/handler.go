package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"sketch_room/internal/metrics"
	"sketch_room/internal/models"
	"sketch_room/internal/repository"
)

// 每則訊息的處理結果，只用於指標與日誌，不會回傳給客戶端
const (
	outcomeOK           = "ok"
	outcomeMalformed    = "malformed"
	outcomeUnknownType  = "unknown_type"
	outcomeUnresolved   = "unresolved"
	outcomeBlocked      = "blocked"
	outcomeUnauthorized = "unauthorized"
	outcomeNotMember    = "not_member"
	outcomeNotFound     = "not_found"
	outcomeStoreError   = "store_error"
	outcomeRateLimited  = "rate_limited"
	outcomeClosed       = "closed"
)

const maxGuestAttempts = 8

// HandlerOptions 是 Handler 的可選設定
type HandlerOptions struct {
	StoreTimeout time.Duration
	RateLimit    float64 // 每秒訊息數，0 表示不限制
	RateBurst    int
	Guests       GuestGenerator
	Metrics      metrics.Recorder
	Logger       *slog.Logger
}

// Handler 是 session 協定的狀態機
//
// 同一條連線的訊息依序呼叫 Handle；不同連線可以並行呼叫。
// 任何失敗都只是本地的 no-op，唯一會送給客戶端的錯誤性通知是 kicked。
type Handler struct {
	registry   *Registry
	directory  *RoomDirectory
	moderation *Moderation
	shapes     repository.ShapeRepository
	verifier   Verifier

	guests       GuestGenerator
	metrics      metrics.Recorder
	logger       *slog.Logger
	storeTimeout time.Duration
	rateLimit    rate.Limit
	rateBurst    int
}

func NewHandler(registry *Registry, directory *RoomDirectory, moderation *Moderation, shapes repository.ShapeRepository, verifier Verifier, opts HandlerOptions) *Handler {
	h := &Handler{
		registry:     registry,
		directory:    directory,
		moderation:   moderation,
		shapes:       shapes,
		verifier:     verifier,
		guests:       opts.Guests,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		storeTimeout: opts.StoreTimeout,
		rateBurst:    opts.RateBurst,
	}
	if h.guests == nil {
		h.guests = RandomGuests()
	}
	if h.metrics == nil {
		h.metrics = metrics.Nop{}
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if opts.RateLimit > 0 {
		h.rateLimit = rate.Limit(opts.RateLimit)
		if h.rateBurst <= 0 {
			h.rateBurst = 1
		}
	}
	return h
}

// Connect 解析連線身分並登記 session
//
// 沒有憑證或驗證失敗時不拒絕連線，而是給一個訪客身分。
func (h *Handler) Connect(conn Conn, credential string) (*Session, error) {
	var limiter *rate.Limiter
	if h.rateLimit > 0 {
		limiter = rate.NewLimiter(h.rateLimit, h.rateBurst)
	}

	if credential != "" && h.verifier != nil {
		identity, err := h.verifier.Verify(credential)
		if err == nil && identity != "" {
			s := newSession(identity, false, conn, limiter)
			if err := h.registry.Register(s); err != nil {
				return nil, err
			}
			h.opened(s)
			return s, nil
		}
		h.logger.Debug("credential rejected, falling back to guest", "error", err)
	}

	for i := 0; i < maxGuestAttempts; i++ {
		s := newSession(h.guests.NewGuestID(), true, conn, limiter)
		if h.registry.RegisterUnique(s) {
			h.opened(s)
			return s, nil
		}
	}
	return nil, errors.New("service: could not allocate a unique guest identity")
}

func (h *Handler) opened(s *Session) {
	h.metrics.SessionOpened(s.guest)
	h.logger.Info("session opened", "session", s.id, "identity", s.identity, "guest", s.guest)
}

// Disconnect 執行斷線清理，只會生效一次
func (h *Handler) Disconnect(s *Session) {
	s.disconnectOnce.Do(func() {
		rooms := h.registry.OnDisconnect(s)
		h.metrics.SessionClosed()
		h.logger.Info("session closed", "session", s.id, "identity", s.identity, "rooms", rooms)
	})
}

// Handle 處理一則入站訊息
func (h *Handler) Handle(ctx context.Context, s *Session, data []byte) {
	if !s.allow() {
		h.record(s, "", outcomeRateLimited)
		return
	}

	var msg InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.record(s, "", outcomeMalformed)
		return
	}

	h.record(s, msg.Type, h.dispatch(ctx, s, &msg))
}

func (h *Handler) dispatch(ctx context.Context, s *Session, msg *InboundMessage) string {
	if !knownType(msg.Type) {
		return outcomeUnknownType
	}
	if msg.RoomID == "" {
		return outcomeMalformed
	}
	lookupCtx, cancel := h.storeContext(ctx)
	owner, ok := h.directory.OwnerOf(lookupCtx, msg.RoomID)
	cancel()
	if !ok {
		return outcomeUnresolved
	}

	switch msg.Type {
	case TypeJoin:
		return h.join(s, msg.RoomID, owner)
	case TypeLeave:
		if !h.registry.Leave(s, msg.RoomID) {
			return outcomeNotMember
		}
		return outcomeOK
	case TypeBlock, TypeUnblock, TypeKick:
		return h.moderate(s, msg, owner)
	}

	// 以下都是繪圖類訊息，被封鎖者一律丟棄
	if h.moderation.IsBlocked(msg.RoomID, s.identity) {
		return outcomeBlocked
	}
	switch msg.Type {
	case TypeShapeCreate:
		return h.createShape(ctx, s, msg)
	case TypeShapeUpdate:
		return h.updateShape(ctx, s, msg)
	case TypeShapeDelete:
		return h.deleteShape(ctx, msg)
	default:
		return h.cursor(s, msg)
	}
}

func (h *Handler) join(s *Session, roomID, owner string) string {
	if !h.registry.Join(s, roomID) {
		return outcomeClosed
	}
	s.Send(encode(RoomStateMessage{
		Type:     TypeRoomState,
		RoomID:   roomID,
		OwnerID:  owner,
		AmIOwner: isOwner(s, owner),
	}))
	return outcomeOK
}

func (h *Handler) moderate(s *Session, msg *InboundMessage, owner string) string {
	if msg.TargetIdentity == "" {
		return outcomeMalformed
	}
	if !isOwner(s, owner) {
		return outcomeUnauthorized
	}

	switch msg.Type {
	case TypeBlock:
		h.moderation.Block(msg.RoomID, msg.TargetIdentity)
	case TypeUnblock:
		h.moderation.Unblock(msg.RoomID, msg.TargetIdentity)
	case TypeKick:
		notice := encode(KickedMessage{Type: TypeKicked, RoomID: msg.RoomID})
		n := h.registry.Kick(msg.RoomID, msg.TargetIdentity, notice)
		h.logger.Info("kicked", "room", msg.RoomID, "target", msg.TargetIdentity, "sessions", n)
	}
	return outcomeOK
}

func (h *Handler) createShape(ctx context.Context, s *Session, msg *InboundMessage) string {
	var shape models.Shape
	if len(msg.Shape) == 0 || json.Unmarshal(msg.Shape, &shape) != nil || shape.Type == "" {
		return outcomeMalformed
	}
	shape.ID = uuid.NewString()
	shape.RoomID = msg.RoomID
	// 建立時間由儲存層決定，客戶端帶來的值不算數
	shape.CreatedAt = time.Time{}
	shape.UpdatedAt = time.Time{}
	shape.ApplyDefaults()

	err := h.store(ctx, "create", func(ctx context.Context) error {
		return h.shapes.Create(ctx, &shape)
	})
	if err != nil {
		h.logger.Warn("shape create failed", "room", msg.RoomID, "identity", s.identity, "error", err)
		return outcomeStoreError
	}

	data, err := json.Marshal(ShapeCreatedMessage{Type: TypeShapeCreate, RoomID: msg.RoomID, Shape: &shape})
	if err != nil {
		h.logger.Warn("shape create encode failed", "room", msg.RoomID, "shape", shape.ID, "error", err)
		return outcomeStoreError
	}
	h.registry.Broadcast(msg.RoomID, data, nil)
	return outcomeOK
}

func (h *Handler) updateShape(ctx context.Context, s *Session, msg *InboundMessage) string {
	var patch models.ShapePatch
	if len(msg.Shape) == 0 || json.Unmarshal(msg.Shape, &patch) != nil || patch.ID == "" {
		return outcomeMalformed
	}
	if outcome := h.checkOwnership(ctx, msg.RoomID, patch.ID); outcome != outcomeOK {
		return outcome
	}

	err := h.store(ctx, "update", func(ctx context.Context) error {
		return h.shapes.Update(ctx, &patch)
	})
	if err != nil {
		return h.storeFailure("update", msg.RoomID, patch.ID, err)
	}

	h.registry.Broadcast(msg.RoomID, encode(ShapeUpdatedMessage{
		Type:   TypeShapeUpdate,
		RoomID: msg.RoomID,
		Shape:  msg.Shape,
	}), s)
	return outcomeOK
}

func (h *Handler) deleteShape(ctx context.Context, msg *InboundMessage) string {
	if msg.ShapeID == "" {
		return outcomeMalformed
	}
	if outcome := h.checkOwnership(ctx, msg.RoomID, msg.ShapeID); outcome != outcomeOK {
		return outcome
	}

	err := h.store(ctx, "delete", func(ctx context.Context) error {
		return h.shapes.Delete(ctx, msg.ShapeID)
	})
	if err != nil {
		return h.storeFailure("delete", msg.RoomID, msg.ShapeID, err)
	}

	h.registry.Broadcast(msg.RoomID, encode(ShapeDeletedMessage{
		Type:    TypeShapeDeleted,
		RoomID:  msg.RoomID,
		ShapeID: msg.ShapeID,
	}), nil)
	return outcomeOK
}

func (h *Handler) cursor(s *Session, msg *InboundMessage) string {
	if msg.X == nil || msg.Y == nil {
		return outcomeMalformed
	}
	h.registry.Broadcast(msg.RoomID, encode(CursorMessage{
		Type:     TypeCursor,
		RoomID:   msg.RoomID,
		SenderID: s.identity,
		X:        *msg.X,
		Y:        *msg.Y,
	}), s)
	return outcomeOK
}

// checkOwnership 確認圖形存在且屬於該房間
func (h *Handler) checkOwnership(ctx context.Context, roomID, shapeID string) string {
	var existing *models.Shape
	err := h.store(ctx, "find", func(ctx context.Context) error {
		var err error
		existing, err = h.shapes.FindByID(ctx, shapeID)
		return err
	})
	if err != nil {
		return h.storeFailure("find", roomID, shapeID, err)
	}
	if existing.RoomID != roomID {
		return outcomeNotFound
	}
	return outcomeOK
}

// store 執行一次儲存呼叫
//
// 使用不會隨連線取消的 context，斷線時進行中的寫入仍會完成並廣播給其他成員。
func (h *Handler) store(ctx context.Context, op string, fn func(context.Context) error) error {
	ctx, cancel := h.storeContext(ctx)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	h.metrics.StoreLatency(op, time.Since(start))
	if err != nil {
		return fmt.Errorf("shape %s: %w", op, err)
	}
	return nil
}

// storeContext 回傳單次儲存呼叫使用的 context，不隨連線取消，但受 storage.timeout 限制
func (h *Handler) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if h.storeTimeout > 0 {
		return context.WithTimeout(ctx, h.storeTimeout)
	}
	return ctx, func() {}
}

func (h *Handler) storeFailure(op, roomID, shapeID string, err error) string {
	if errors.Is(err, repository.ErrNotFound) {
		return outcomeNotFound
	}
	h.logger.Warn("shape store failed", "op", op, "room", roomID, "shape", shapeID, "error", err)
	return outcomeStoreError
}

func (h *Handler) record(s *Session, msgType, outcome string) {
	label := msgType
	if !knownType(msgType) {
		label = "unknown"
	}
	h.metrics.MessageHandled(label, outcome)
	if outcome != outcomeOK {
		h.logger.Debug("message dropped", "session", s.id, "identity", s.identity, "type", msgType, "reason", outcome)
	}
}

// isOwner 訪客永遠不是房主
func isOwner(s *Session, owner string) bool {
	return !s.guest && owner != "" && s.identity == owner
}

func knownType(t string) bool {
	switch t {
	case TypeJoin, TypeLeave, TypeShapeCreate, TypeShapeUpdate, TypeShapeDelete,
		TypeCursor, TypeBlock, TypeUnblock, TypeKick:
		return true
	}
	return false
}
