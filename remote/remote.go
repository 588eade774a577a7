// Package remote exposes the rotor to satellite-tracking clients over
// two line-oriented TCP dialects: EasyComm II and hamlib rotctld. Every
// connection funnels its commands through the same arbiter, so remote
// and local commands share one total order.
package remote

import (
	"context"
	"log"
	"net"

	"github.com/w1xm/peltrack/arbiter"
	"github.com/w1xm/peltrack/rotor"
)

// Version is reported to EasyComm VE queries.
const Version = "peltrack1.0"

type Server struct {
	arb    *arbiter.Arbiter
	limits rotor.Limits
}

func NewServer(arb *arbiter.Arbiter, limits rotor.Limits) *Server {
	return &Server{arb: arb, limits: limits}
}

type handler func(ctx context.Context, conn net.Conn)

func (s *Server) listen(ctx context.Context, addr, name string, handle handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		log.Printf("shutdown; closing %s socket", name)
		ln.Close()
	}()
	go func() {
		for ctx.Err() == nil {
			conn, err := ln.Accept()
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("failed to accept: %v", err)
				}
				continue
			}
			go handle(ctx, conn)
		}
	}()
	return nil
}
