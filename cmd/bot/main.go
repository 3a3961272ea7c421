package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"voxelwfc.ai/internal/encoding"
	"voxelwfc.ai/internal/protocol"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		seed     = flag.Int64("seed", 0, "first seed (0 lets the server pick every time)")
		count    = flag.Int("n", 1, "number of grids to request (0 runs until interrupted)")
		interval = flag.Duration("every", 2*time.Second, "pause between requests")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var welcome protocol.WelcomeMsg
	if err := readJSON(conn, &welcome); err != nil {
		logger.Fatalf("read WELCOME: %v", err)
	}
	if welcome.Type != protocol.TypeWelcome {
		logger.Fatalf("expected WELCOME, got %s", welcome.Type)
	}
	logger.Printf("WELCOME shape=%v tiles=%d wrap=%v digest=%.12s", welcome.Shape, welcome.TileCount, welcome.Wrap, welcome.CorpusDigest)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	for i := 0; *count == 0 || i < *count; i++ {
		select {
		case <-stop:
			return
		default:
		}

		s := *seed
		if s != 0 {
			s += int64(i)
		}
		req := protocol.GenerateMsg{
			Type:            protocol.TypeGenerate,
			ProtocolVersion: protocol.Version,
			RequestID:       fmt.Sprintf("R_%d", i),
			Seed:            s,
		}
		if err := conn.WriteJSON(req); err != nil {
			logger.Fatalf("send GENERATE: %v", err)
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Fatalf("read: %v", err)
		}
		handleReply(logger, &welcome, msg)

		if *count == 0 || i+1 < *count {
			select {
			case <-stop:
				return
			case <-time.After(*interval):
			}
		}
	}
}

func handleReply(logger *log.Logger, welcome *protocol.WelcomeMsg, msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		logger.Printf("bad reply: %v", err)
		return
	}
	switch base.Type {
	case protocol.TypeGrid:
		var g protocol.GridMsg
		if err := json.Unmarshal(msg, &g); err != nil {
			logger.Printf("bad GRID: %v", err)
			return
		}
		ids, err := encoding.DecodeRLE(g.Data, g.Shape[0]*g.Shape[1]*g.Shape[2])
		if err != nil {
			logger.Printf("GRID %s: %v", g.RequestID, err)
			return
		}
		logger.Printf("GRID %s run=%s seed=%d attempt=%d/%d took=%dms %s",
			g.RequestID, g.RunID, g.Seed, g.Attempt, g.Attempts, g.DurationMS, formatTally(tally(ids, welcome.Palette)))

	case protocol.TypeError:
		var e protocol.ErrorMsg
		if err := json.Unmarshal(msg, &e); err != nil {
			logger.Printf("bad ERROR: %v", err)
			return
		}
		logger.Printf("ERROR %s code=%s message=%s", e.RequestID, e.Code, e.Message)
	}
}

// tally counts cells per tile name.
func tally(ids []uint16, palette []string) map[string]int {
	out := map[string]int{}
	for _, id := range ids {
		name := "?"
		if int(id) < len(palette) {
			name = palette[id]
		}
		out[name]++
	}
	return out
}

// formatTally renders counts as name=count pairs sorted by name.
func formatTally(counts map[string]int) string {
	names := make([]string, 0, len(counts))
	for n := range counts {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%s=%d", n, counts[n])
	}
	return strings.Join(parts, " ")
}

func readJSON(conn *websocket.Conn, v any) error {
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	defer conn.SetReadDeadline(time.Time{})
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return err
	}
	return json.Unmarshal(msg, v)
}
