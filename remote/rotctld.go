package remote

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"

	"github.com/w1xm/peltrack/rotor"
)

// ListenRotctld serves the hamlib rotctld dialect.
func (s *Server) ListenRotctld(ctx context.Context, addr string) error {
	return s.listen(ctx, addr, "rotctld", s.handleRotctld)
}

func (s *Server) handleRotctld(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	log.Printf("accepted rotctld connection from %v", conn.RemoteAddr())
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		// Two forms of command: single character, or "+\" followed by command name.
		cmd := scanner.Text()
		var args []string
		var extended bool
		if len(cmd) == 0 {
			continue
		} else if len(cmd) > 2 && cmd[0:2] == `+\` {
			extended = true
			parts := strings.Split(cmd, " ")
			cmd = parts[0][2:]
			if len(parts) > 1 {
				args = parts[1:]
			}
			fmt.Fprintf(conn, "%s:\n", cmd)
		} else {
			// Space after command is optional.
			if len(cmd) > 1 {
				args = strings.Fields(strings.TrimLeft(cmd[1:], " "))
			}
			cmd = string(cmd[0])
		}
		log.Printf("%v command: %q args: %#v", conn.RemoteAddr(), cmd, args)
		rprt := -1
		switch cmd {
		case "1", "dump_caps":
			fmt.Fprintf(conn, `Model name: Peltrack
Mfg name: Pelco-D
Rot type: Az-El
Min Azimuth: %.2f
Max Azimuth: %.2f
Min Elevation: %.2f
Max Elevation: %.2f
Can set Position: Y
Can get Position: Y
Can Stop: Y
Can Park: N
Can Reset: N
Can Move: N
Can get Info: N
`, s.limits.AzMin, s.limits.AzMax, s.limits.ElMin, s.limits.ElMax)
			rprt = 0
		case "S", "stop":
			extended = true // always print RPRT
			if err := s.arb.Stop(ctx, rotor.SourceRemote); err != nil {
				break
			}
			rprt = 0
		case "P", "set_pos":
			extended = true // always print RPRT
			if len(args) != 2 {
				rprt = -22
				break
			}
			az, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				rprt = -22
				break
			}
			el, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				rprt = -22
				break
			}
			if _, err := s.arb.MoveAbsolute(ctx, rotor.SourceRemote, &az, &el); err != nil {
				break
			}
			rprt = 0
		case "p", "get_pos":
			status, err := s.arb.Status(ctx)
			if err != nil {
				break
			}
			if extended {
				fmt.Fprintf(conn, "Azimuth: %.6f\nElevation: %.6f\n", status.Azimuth, status.Elevation)
			} else {
				fmt.Fprintf(conn, "%.6f\n%.6f\n", status.Azimuth, status.Elevation)
			}
			rprt = 0
		case "q", "quit":
			fmt.Fprintf(conn, "RPRT 0\n")
			return
		}
		if extended || rprt != 0 {
			fmt.Fprintf(conn, "RPRT %d\n", rprt)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("reading from %v: %v", conn.RemoteAddr(), err)
	}
}
