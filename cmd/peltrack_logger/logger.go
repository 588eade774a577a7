// Command peltrack_logger tails the controller's live position stream
// and writes it to InfluxDB for charting antenna motion over time.
package main

import (
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"
	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
)

type status struct {
	Azimuth   float64 `json:"azimuth"`
	Elevation float64 `json:"elevation"`
	Moving    bool    `json:"moving"`
}

func main() {
	server := os.Getenv("INFLUX_SERVER")
	if server == "" {
		server = "http://localhost:9999"
	}
	client := influxdb2.NewClient(server, os.Getenv("INFLUX_TOKEN"))
	defer client.Close()
	// Get non-blocking write client
	writeApi := client.WriteApi("w1xm", "rotor.raw")
	defer writeApi.Close()
	errorsCh := writeApi.Errors()
	go func() {
		for err := range errorsCh {
			log.Printf("write error: %v", err)
		}
	}()
	for {
		if err := logData(writeApi); err != nil {
			log.Print(err)
		}
		time.Sleep(1 * time.Second)
	}
}

func logData(writeApi api.WriteApi) error {
	url := os.Getenv("PELTRACK_ADDRESS")
	if url == "" {
		url = "ws://localhost:8502/api/ws"
	}
	defer writeApi.Flush()
	var dialer websocket.Dialer
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	for {
		var s status
		if err := conn.ReadJSON(&s); err != nil {
			return err
		}
		p := influxdb2.NewPoint("rotor.status",
			nil,
			map[string]interface{}{
				"azimuth":   s.Azimuth,
				"elevation": s.Elevation,
				"moving":    s.Moving,
			},
			time.Now(),
		)
		// write asynchronously
		writeApi.WritePoint(p)
	}
}
