package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/w1xm/peltrack/arbiter"
	"github.com/w1xm/peltrack/config"
	"github.com/w1xm/peltrack/notify"
	"github.com/w1xm/peltrack/rotor"
)

type Server struct {
	arb      *arbiter.Arbiter
	notifier *notify.Notifier

	calibrationPath string
	limitsPath      string

	// demoMu guards the single demo slot; at most one sweep runs.
	demoMu     sync.Mutex
	demoCancel context.CancelFunc
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Command is the JSON message web clients send over the websocket.
type Command struct {
	Command   string   `json:"command"`
	Azimuth   *float64 `json:"azimuth"`
	Elevation *float64 `json:"elevation"`
	Delta     float64  `json:"delta"`
}

func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	status, err := s.arb.Status(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(status)
	if err != nil {
		log.Print(err)
		return
	}
	w.Write(data)
}

// StatusSocketHandler streams live position updates to the client and
// accepts commands in the other direction.
func (s *Server) StatusSocketHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	// Read and process incoming messages
	go func() {
		for {
			var msg Command
			if err := conn.ReadJSON(&msg); err != nil {
				cancel()
				conn.Close()
				break
			}
			s.dispatch(ctx, msg)
		}
	}()

	updates, unsub := s.notifier.Subscribe()
	defer unsub()

	status, err := s.arb.Status(ctx)
	if err != nil {
		return
	}
	if err := conn.WriteJSON(status); err != nil {
		log.Print(err)
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case status := <-updates:
			if err := conn.WriteJSON(status); err != nil {
				log.Print(err)
				return
			}
		}
	}
}

func (s *Server) dispatch(ctx context.Context, msg Command) {
	var err error
	switch msg.Command {
	case "set_position":
		_, err = s.arb.MoveAbsolute(ctx, rotor.SourceWeb, msg.Azimuth, msg.Elevation)
	case "nudge_elevation":
		_, err = s.arb.NudgeElevation(ctx, rotor.SourceWeb, msg.Delta)
	case "set_horizon":
		_, err = s.arb.SetHorizon(ctx, rotor.SourceWeb)
	case "stop":
		s.stopDemo()
		err = s.arb.Stop(ctx, rotor.SourceWeb)
	case "reset_position":
		if msg.Azimuth == nil || msg.Elevation == nil {
			err = errors.New("reset_position needs azimuth and elevation")
			break
		}
		err = s.arb.ResetPosition(ctx, rotor.SourceWeb, *msg.Azimuth, *msg.Elevation)
	case "reload_config":
		err = s.reload(ctx)
	case "demo":
		s.startDemo(ctx)
	default:
		err = fmt.Errorf("unknown command %q", msg.Command)
	}
	if err != nil {
		log.Printf("web command %q: %v", msg.Command, err)
	}
}

// startDemo claims the demo slot and runs one sweep in the background.
// A demo already running is canceled first, so two clicks never
// interleave. It returns the sweep's context.
func (s *Server) startDemo(ctx context.Context) context.Context {
	s.demoMu.Lock()
	if s.demoCancel != nil {
		s.demoCancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.demoCancel = cancel
	s.demoMu.Unlock()
	go func() {
		defer cancel()
		if err := RunDemo(ctx, s.arb); err != nil && ctx.Err() == nil {
			log.Printf("demo: %v", err)
		}
	}()
	return ctx
}

func (s *Server) stopDemo() {
	s.demoMu.Lock()
	if s.demoCancel != nil {
		s.demoCancel()
		s.demoCancel = nil
	}
	s.demoMu.Unlock()
}

// reload re-reads the calibration and limits records and swaps them
// into the arbiter wholesale.
func (s *Server) reload(ctx context.Context) error {
	cal, err := config.LoadCalibration(s.calibrationPath)
	if err != nil {
		return err
	}
	limits, err := config.LoadLimits(s.limitsPath)
	if err != nil {
		log.Printf("using unrestricted limits: %v", err)
	}
	return s.arb.Reload(ctx, cal, limits)
}
