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

// ListenEasycomm serves the EasyComm II dialect as spoken by Gpredict
// and hamlib. Lines carry space-separated commands: AZxxx.x/ELxxx.x to
// move, bare AZ EL to query, SA SE to stop, VE for the version.
// Protocol docs at https://github.com/Hamlib/Hamlib/blob/master/rotators/easycomm/easycomm.txt
func (s *Server) ListenEasycomm(ctx context.Context, addr string) error {
	return s.listen(ctx, addr, "easycomm", s.handleEasycomm)
}

func (s *Server) handleEasycomm(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	log.Printf("accepted easycomm connection from %v", conn.RemoteAddr())
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()

		var az, el *float64
		var query, stop bool
		for _, field := range strings.Fields(line) {
			switch {
			case field == "AZ" || field == "EL":
				query = true
			case field == "SA" || field == "SE":
				stop = true
			case field == "VE":
				fmt.Fprintf(conn, "VE%s\n", Version)
			case strings.HasPrefix(field, "AZ"):
				// Malformed operands are dropped without a reply;
				// easycomm has no error response.
				if v, err := strconv.ParseFloat(field[2:], 64); err == nil {
					az = &v
				}
			case strings.HasPrefix(field, "EL"):
				if v, err := strconv.ParseFloat(field[2:], 64); err == nil {
					el = &v
				}
			default:
				// Unknown verbs (velocity moves, config reads) are
				// ignored, same as real controllers.
			}
		}

		if stop {
			if err := s.arb.Stop(ctx, rotor.SourceRemote); err != nil {
				log.Printf("easycomm stop: %v", err)
			}
		}
		if az != nil || el != nil {
			if _, err := s.arb.MoveAbsolute(ctx, rotor.SourceRemote, az, el); err != nil {
				log.Printf("easycomm move: %v", err)
			}
		}
		if query {
			// Always the live estimate, never the commanded target.
			status, err := s.arb.Status(ctx)
			if err != nil {
				return
			}
			fmt.Fprintf(conn, "AZ%.1f EL%.1f\n", status.Azimuth, status.Elevation)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("reading from %v: %v", conn.RemoteAddr(), err)
	}
}
