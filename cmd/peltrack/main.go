// Command peltrack drives a Pelco-D pan/tilt antenna rotor: a web
// control surface over websocket, plus EasyComm and rotctld TCP
// servers for satellite-tracking clients.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/w1xm/peltrack/arbiter"
	"github.com/w1xm/peltrack/config"
	"github.com/w1xm/peltrack/notify"
	"github.com/w1xm/peltrack/pelco"
	"github.com/w1xm/peltrack/remote"
)

var (
	addr            = flag.String("addr", ":8502", "address for the web interface")
	staticDir       = flag.String("static_dir", "static", "directory containing static files")
	serialPort      = flag.String("serial", "", "serial port name (e.g. /dev/ttyUSB0)")
	baud            = flag.Int("baud", pelco.DefaultBaud, "serial baud rate")
	deviceAddress   = flag.Int("device_address", 1, "Pelco-D device address")
	simulate        = flag.Bool("simulate", false, "run against an in-memory rotor instead of hardware")
	calibrationPath = flag.String("calibration", "calibration.yaml", "calibration record")
	limitsPath      = flag.String("limits", "limits.yaml", "travel limits record (optional)")
	statePath       = flag.String("state", "state.yaml", "persisted position")
	easycommAddr    = flag.String("easycomm_addr", ":4534", "address for the EasyComm server")
	rotctldAddr     = flag.String("rotctld_addr", ":4533", "address for the rotctld server")
)

func main() {
	flag.Parse()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cal, err := config.LoadCalibration(*calibrationPath)
	if err != nil {
		log.Fatalf("calibration required before any move: %v", err)
	}
	limits, err := config.LoadLimits(*limitsPath)
	if err != nil {
		log.Printf("using unrestricted limits: %v", err)
	}
	store := config.StateStore{Path: *statePath}

	var transport arbiter.Transport
	if *simulate {
		conn, _ := pelco.NewSimulated(ctx)
		transport = conn
		log.Print("using simulated rotor")
	} else {
		if *serialPort == "" {
			log.Fatal("either -serial or -simulate is required")
		}
		transport = pelco.Open(ctx, *serialPort, *baud)
	}

	notifier := notify.New()
	arb := arbiter.New(arbiter.Config{
		Calibration:     cal,
		Limits:          limits,
		Transport:       transport,
		Address:         byte(*deviceAddress),
		Notify:          notifier.Publish,
		Store:           store,
		InitialPosition: store.Load(),
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return arb.Run(ctx) })

	rsrv := remote.NewServer(arb, limits)
	if err := rsrv.ListenEasycomm(ctx, *easycommAddr); err != nil {
		log.Fatalf("easycomm server: %v", err)
	}
	if err := rsrv.ListenRotctld(ctx, *rotctldAddr); err != nil {
		log.Fatalf("rotctld server: %v", err)
	}

	s := &Server{
		arb:             arb,
		notifier:        notifier,
		calibrationPath: *calibrationPath,
		limitsPath:      *limitsPath,
	}
	r := mux.NewRouter()
	r.HandleFunc("/api/status", s.StatusHandler)
	r.Handle("/api/ws", http.HandlerFunc(s.StatusSocketHandler))
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(*staticDir)))
	srv := &http.Server{Handler: r, Addr: *addr}

	g.Go(func() error {
		log.Printf("web interface listening on %s", *addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return srv.Close()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
	log.Print("shutting down")
}
