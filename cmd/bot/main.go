package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"questwatch.gg/internal/protocol"
)

// bot plays the host side: it keeps a toy in-range set, answers PROBE traffic
// with SIGNAL when the probed entity is in range, and prints everything the
// engine decides.
func main() {
	var (
		url     = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name    = flag.String("name", "bot", "host name")
		inRange = flag.String("in_range", "Bob,Alice", "comma-separated entities currently in range")
		churn   = flag.Bool("churn", true, "randomly move entities in and out of range")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		HostName:        *name,
		AddonID:         "QuestWatch",
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	present := make(map[string]bool)
	for _, n := range strings.Split(*inRange, ",") {
		if n = strings.TrimSpace(n); n != "" {
			present[n] = true
		}
	}
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME session=%s tick_rate=%d slot=%s", w.SessionID, w.EngineParams.TickRateHz, w.EngineParams.BufferSlot)
			sendQuests(conn)

		case protocol.TypeProbe:
			var p protocol.ProbeMsg
			if err := json.Unmarshal(msg, &p); err != nil {
				continue
			}
			if present[p.Entity] {
				_ = conn.WriteJSON(protocol.SignalMsg{
					Type:   protocol.TypeSignal,
					Source: "QuestWatch",
					Action: p.Action,
					Entity: p.Entity,
				})
			}
			if *churn && r.Intn(20) == 0 {
				present[p.Entity] = !present[p.Entity]
				logger.Printf("range change entity=%s in_range=%v", p.Entity, present[p.Entity])
			}

		case protocol.TypeMark:
			var m protocol.MarkMsg
			if err := json.Unmarshal(msg, &m); err != nil {
				continue
			}
			logger.Printf("MARK tick=%d op=%s entity=%s marker=%d", m.Tick, m.Op, m.Entity, m.Marker)

		case protocol.TypeBuffer:
			var b protocol.BufferMsg
			if err := json.Unmarshal(msg, &b); err != nil {
				continue
			}
			logger.Printf("BUFFER tick=%d slot=%s bytes=%d\n%s", b.Tick, b.Slot, len(b.Text), b.Text)

		case protocol.TypeCommand:
			var c protocol.CommandMsg
			if err := json.Unmarshal(msg, &c); err != nil {
				continue
			}
			logger.Printf("COMMAND tick=%d %s", c.Tick, c.Text)

		case protocol.TypeRoster:
			var ros protocol.RosterMsg
			if err := json.Unmarshal(msg, &ros); err != nil {
				continue
			}
			// The roster refreshes every tick; only print occasionally.
			if ros.Tick%100 == 0 {
				logger.Printf("ROSTER tick=%d entities=%d", ros.Tick, len(ros.Entities))
			}
		}
	}
}

func sendQuests(conn *websocket.Conn) {
	_ = conn.WriteJSON(protocol.QuestsMsg{
		Type: protocol.TypeQuests,
		Objectives: []protocol.ObjectiveWire{
			{Name: "Bob", ObjectiveType: "monster", Collected: 4, Needed: 10, Description: "Bob slain: 4/10"},
			{Name: "Alice", QuestComplete: true, Finisher: true, Description: "Return to Alice"},
		},
	})
}
