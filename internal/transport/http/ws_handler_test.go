package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"couple-quiz-service/internal/app"
	"couple-quiz-service/internal/calendar"
	"couple-quiz-service/internal/domain"
	"couple-quiz-service/internal/infra/memory"
	"github.com/gorilla/websocket"
)

func newTestService() *app.QuizService {
	bank := domain.Bank{Days: map[string][]domain.Question{
		"2025-01-05": {
			{Text: "omg did you see that", Answer: "jess"},
			{Text: "lol no", Answer: "james"},
			{Text: "miss you", Answer: "jess"},
		},
	}}
	couple := app.CoupleConfig{
		CoupleID:       "c1",
		Pair:           domain.RolePair{A: "james", B: "jess"},
		DisplayNames:   map[domain.Role]string{"james": "James", "jess": "Jess"},
		Timezone:       "America/Los_Angeles",
		Start:          calendar.Date{Year: 2024, Month: 10, Day: 30},
		AnniversaryDay: 30,
		DailyQuestions: 3,
	}
	banks := memory.NewBankCache(memory.NewStaticBankLoader(bank), time.Minute)
	return app.NewQuizService(memory.NewAnswerStore(), banks, couple)
}

func TestWebSocketAnswerFlow(t *testing.T) {
	service := newTestService()
	wsHandler := NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?userId=u1&role=james&name=James"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Day snapshot first, then initial scoreboard.
	typ, payload := readNext(conn, t, "day")
	if typ != "day" {
		t.Fatalf("expected day, got %s", typ)
	}
	// The single bank day is used whatever "today" resolves to.
	if payload["day"] != "2025-01-05" {
		t.Fatalf("expected effective day 2025-01-05, got %v", payload["day"])
	}
	questions, ok := payload["questions"].([]any)
	if !ok || len(questions) != 3 {
		t.Fatalf("expected 3 questions, got %v", payload["questions"])
	}
	readNext(conn, t, "scoreboard")

	answer := map[string]any{
		"type":    "answer",
		"payload": map[string]any{"guess": "jess"},
	}
	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}

	// Change-feed refreshes may interleave with the direct responses;
	// only the set of message types is guaranteed, not their order.
	resultSeen, daySeen, boardSeen := false, false, false
	for i := 0; i < 8 && !(resultSeen && daySeen && boardSeen); i++ {
		typ, payload = readNext(conn, t, "")
		switch typ {
		case "answerResult":
			resultSeen = true
			if payload["correct"] != true || payload["answer"] != "jess" {
				t.Fatalf("expected correct answer revealing jess, got %+v", payload)
			}
		case "day":
			daySeen = true
			progress, _ := payload["progress"].(map[string]any)
			if len(progress) != 1 {
				t.Fatalf("expected 1 answered question in progress, got %v", payload["progress"])
			}
		case "scoreboard":
			boardSeen = true
		}
	}
	if !resultSeen || !daySeen || !boardSeen {
		t.Fatalf("expected answerResult, day and scoreboard, got result=%v day=%v scoreboard=%v", resultSeen, daySeen, boardSeen)
	}
}

func TestWebSocketRejectsUnknownRole(t *testing.T) {
	service := newTestService()
	wsHandler := NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?userId=u3&role=dana&name=Dana"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail for unknown role")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %+v", resp)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}
