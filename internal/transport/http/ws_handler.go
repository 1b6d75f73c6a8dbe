package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"training-progress-service/internal/app"
	"training-progress-service/internal/domain"
)

type WSHandler struct {
	service  *app.ProgressService
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.ProgressService, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type taskPayload struct {
	TaskID string `json:"taskId"`
}

type answerPayload struct {
	TaskID   string `json:"taskId"`
	Question int    `json:"question"`
	Choice   int    `json:"choice"`
}

type claimPayload struct {
	RewardID string `json:"rewardId"`
}

type joinedPayload struct {
	ConnectionID string          `json:"connectionId"`
	Overview     domain.Overview `json:"overview"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// connection is the per-socket state. Only the read loop touches it.
type connection struct {
	id      string
	learner *app.Learner
	active  *app.Activation
	send    chan<- outboundMessage[any]
	// writerDone closes when the writer stops; sends are dropped after that.
	writerDone <-chan struct{}
}

func (c *connection) reply(typ string, payload any) {
	select {
	case c.send <- outboundMessage[any]{Type: typ, Payload: payload}:
	case <-c.writerDone:
	}
}

func (c *connection) fail(err error) {
	p, _ := toErrorPayload(err)
	c.reply("error", p)
}

func (c *connection) closeActive() {
	if c.active != nil {
		c.active.Close()
		c.active = nil
	}
}

// ServeWS upgrades HTTP requests to websockets and wires them into the progression use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	learnerID := r.URL.Query().Get("learnerId")
	if learnerID == "" {
		http.Error(w, "missing learnerId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	learner, err := h.service.Join(r.Context(), learnerID)
	if err != nil {
		p, _ := toErrorPayload(err)
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: p})
		return
	}
	events, cancel := learner.Subscribe()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	c := &connection{id: uuid.NewString(), learner: learner, send: send, writerDone: writerDone}
	logger := h.logger.With("learner", learnerID, "conn", c.id)
	logger.Info("learner connected")

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				logger.Warn("ws write error", "err", err)
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "event", Payload: ev}:
				case <-closeSignals:
					return
				case <-writerDone:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	c.reply("joined", joinedPayload{ConnectionID: c.id, Overview: learner.Overview()})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(r, c, inbound)
	}

	c.closeActive()
	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
	cancel()
	h.service.Leave(r.Context(), learnerID)
	logger.Info("learner disconnected")
}

func (h *WSHandler) dispatch(r *http.Request, c *connection, inbound inboundMessage) {
	ctx := r.Context()
	switch inbound.Type {
	case "activate":
		var p taskPayload
		if !decode(c, inbound, &p) {
			return
		}
		a, err := c.learner.Activate(p.TaskID)
		if err != nil {
			c.fail(err)
			return
		}
		c.active = a
		h.replyTaskState(c, p.TaskID)
	case "deactivate":
		taskID := ""
		if c.active != nil {
			taskID = c.active.TaskID()
		}
		c.closeActive()
		if taskID != "" {
			h.replyTaskState(c, taskID)
		}
	case "taskState":
		var p taskPayload
		if !decode(c, inbound, &p) {
			return
		}
		h.replyTaskState(c, p.TaskID)
	case "complete":
		var p taskPayload
		if !decode(c, inbound, &p) {
			return
		}
		state, err := c.learner.RequestComplete(ctx, p.TaskID)
		if err != nil {
			c.fail(err)
			return
		}
		c.reply("taskState", state)
	case "incomplete":
		var p taskPayload
		if !decode(c, inbound, &p) {
			return
		}
		if err := c.learner.RequestIncomplete(ctx, p.TaskID); err != nil {
			c.fail(err)
			return
		}
		h.replyTaskState(c, p.TaskID)
	case "answer":
		var p answerPayload
		if !decode(c, inbound, &p) {
			return
		}
		res, err := c.learner.RecordQuizAnswer(ctx, p.TaskID, p.Question, p.Choice)
		if err != nil {
			c.fail(err)
			return
		}
		c.reply("answerResult", res)
	case "signal":
		var sig domain.Signal
		if !decode(c, inbound, &sig) {
			return
		}
		if c.active == nil {
			c.fail(domain.ErrActivationClosed)
			return
		}
		state, err := c.active.Signal(ctx, sig)
		if err != nil {
			c.fail(err)
			return
		}
		c.reply("taskState", state)
	case "claim":
		var p claimPayload
		if !decode(c, inbound, &p) {
			return
		}
		st, err := c.learner.ClaimReward(ctx, p.RewardID)
		if err != nil {
			c.fail(err)
			return
		}
		c.reply("rewardStatus", st)
	case "refresh":
		c.reply("overview", c.learner.Refresh(ctx))
	case "overview":
		c.reply("overview", c.learner.Overview())
	default:
		c.reply("error", errorPayload{Code: "unsupported", Message: "unsupported message type"})
	}
}

func (h *WSHandler) replyTaskState(c *connection, taskID string) {
	state, err := c.learner.GetTaskState(taskID)
	if err != nil {
		c.fail(err)
		return
	}
	c.reply("taskState", state)
}

func decode(c *connection, inbound inboundMessage, dst any) bool {
	if err := json.Unmarshal(inbound.Payload, dst); err != nil {
		c.reply("error", errorPayload{Code: "invalid_payload", Message: "invalid " + inbound.Type + " payload"})
		return false
	}
	return true
}
