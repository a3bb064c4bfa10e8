package http

import (
	"encoding/json"
	"log"
	"net/http"

	"couple-quiz-service/internal/app"
	"couple-quiz-service/internal/calendar"
	"couple-quiz-service/internal/domain"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
	return &WSHandler{
		service: service,
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

type answerPayload struct {
	Guess domain.Role `json:"guess"`
}

type questionView struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp,omitempty"`
}

// dayPayload is the full board snapshot. Question answers are never
// included; the client learns who said it from answerResult.
type dayPayload struct {
	RequestedDay string                   `json:"requestedDay"`
	Day          string                   `json:"day"`
	State        app.SessionState         `json:"state"`
	Reason       string                   `json:"reason,omitempty"`
	Questions    []questionView           `json:"questions"`
	Progress     map[string]domain.Answer `json:"progress"`
	CurrentIndex int                      `json:"currentIndex"`
	Stats        domain.DailyStats        `json:"stats"`
	DisplayNames map[domain.Role]string   `json:"displayNames,omitempty"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the connection and runs one quiz day session for
// the authenticated identity (resolved upstream; arrives as params).
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity := domain.Identity{
		UserID:      r.URL.Query().Get("userId"),
		CoupleID:    h.service.Couple().CoupleID,
		Role:        domain.Role(r.URL.Query().Get("role")),
		DisplayName: r.URL.Query().Get("name"),
	}
	if identity.UserID == "" || identity.Role == "" {
		http.Error(w, "missing userId or role", http.StatusBadRequest)
		return
	}
	if !h.service.Couple().Pair.Contains(identity.Role) {
		http.Error(w, "unknown role", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	today, err := h.service.Today()
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	session, err := h.service.StartDay(r.Context(), identity, today)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	changes, cancel, err := h.service.SubscribeChanges(r.Context())
	if err != nil {
		// Live updates are an enhancement; the quiz still works without them.
		log.Printf("change subscription failed: %v", err)
		changes, cancel = nil, func() {}
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	changesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(changesDone)
		if changes == nil {
			<-closeSignals
			return
		}
		for {
			select {
			case ev, ok := <-changes:
				if !ok {
					return
				}
				// The payload is only a hint: reconcile our own rows by
				// re-fetching, then push a fresh scoreboard either way.
				if session.Relevant(ev) {
					if err := session.Reconcile(r.Context()); err != nil {
						log.Printf("reconcile failed: %v", err)
					}
					select {
					case send <- h.dayMessage(session, today):
					case <-closeSignals:
						return
					}
				}
				select {
				case send <- h.scoreboardMessage(r, session, identity):
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- h.dayMessage(session, today)
	send <- h.scoreboardMessage(r, session, identity)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			result, err := session.SubmitAnswer(r.Context(), payload.Guess)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "answerResult", Payload: result}
			send <- h.dayMessage(session, today)
			send <- h.scoreboardMessage(r, session, identity)
		case "advance":
			session.Advance()
			send <- h.dayMessage(session, today)
		case "select":
			var payload struct {
				Index int `json:"index"`
			}
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid select payload"}}
				continue
			}
			session.SetCurrentIndex(payload.Index)
			send <- h.dayMessage(session, today)
		case "reload":
			if err := session.Reconcile(r.Context()); err != nil {
				log.Printf("reload reconcile failed: %v", err)
			}
			send <- h.dayMessage(session, today)
			send <- h.scoreboardMessage(r, session, identity)
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-changesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) dayMessage(session *app.DaySession, today calendar.Date) outboundMessage[any] {
	state, reason := session.State()
	questions := session.Questions()
	views := make([]questionView, 0, len(questions))
	for _, q := range questions {
		views = append(views, questionView{ID: q.ID, Text: q.Text, Timestamp: q.Timestamp})
	}
	return outboundMessage[any]{Type: "day", Payload: dayPayload{
		RequestedDay: session.RequestedKey(),
		Day:          session.DayKey(),
		State:        state,
		Reason:       reason,
		Questions:    views,
		Progress:     session.Progress(),
		CurrentIndex: session.CurrentIndex(),
		Stats:        h.service.Stats(today),
		DisplayNames: h.service.Couple().DisplayNames,
	}}
}

func (h *WSHandler) scoreboardMessage(r *http.Request, session *app.DaySession, identity domain.Identity) outboundMessage[any] {
	board, err := h.service.Scoreboard(r.Context(), identity, session.DayKey(), session.Questions())
	if err != nil {
		return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
	}
	return outboundMessage[any]{Type: "scoreboard", Payload: board}
}
