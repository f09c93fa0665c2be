package plugins

import (
	"context"
	"encoding/binary"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/BATSNet/sims-sub000/internal/delivery"
	"github.com/BATSNet/sims-sub000/internal/incident"
)

// Mesh downlink frame constants. The frame mirrors the device uplink
// conventions (little-endian, version byte, length-prefixed strings) so field
// hardware shares one parser for both directions.
const (
	meshFrameVersion = 0x01
	meshMaxText      = 64
)

// Mesh broadcasts a compact incident frame to field devices through a mesh
// radio gateway.
type Mesh struct {
	gatewayURL string
	channel    int
	timeout    time.Duration
}

// NewMesh builds the mesh plugin.
func NewMesh(cfg map[string]any, _ map[string]string) (delivery.Plugin, error) {
	return &Mesh{
		gatewayURL: cfgString(cfg, "gateway_url"),
		channel:    cfgInt(cfg, "channel"),
		timeout:    timeout(cfg),
	}, nil
}

// ValidateConfig checks the gateway URL and channel number.
func (m *Mesh) ValidateConfig() error {
	if m.gatewayURL == "" {
		return fmt.Errorf("gateway_url is required")
	}
	u, err := url.Parse(m.gatewayURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("gateway_url must be an http or https URL")
	}
	if m.channel < 0 || m.channel > 255 {
		return fmt.Errorf("channel must be 0..255, got %d", m.channel)
	}
	return nil
}

// Send encodes the downlink frame and posts it to the gateway. The payload
// template is ignored: constrained radios get the fixed binary format.
func (m *Mesh) Send(ctx context.Context, inc *incident.Incident, _ *incident.Organization, _ string) delivery.Result {
	start := time.Now()

	frame := EncodeMeshFrame(inc, byte(m.channel))
	res := doRequest(ctx, "mesh", http.MethodPost, m.gatewayURL, "application/octet-stream", frame, nil, m.timeout)
	result := delivery.Result{
		Success:        res.err == nil,
		StatusCode:     res.statusCode,
		ResponseBody:   res.body,
		Duration:       time.Since(start),
		RequestURL:     m.gatewayURL,
		RequestPayload: fmt.Sprintf("mesh frame, %d bytes", len(frame)),
	}
	if res.err != nil {
		result.ErrorMessage = res.err.Error()
		result.TimedOut = res.err.Type == delivery.ErrorTypeTimeout
		result.Retryable = res.err.Retryable()
	}
	return result
}

// TestConnection probes the mesh gateway.
func (m *Mesh) TestConnection(ctx context.Context) (bool, string) {
	if err := m.ValidateConfig(); err != nil {
		return false, err.Error()
	}
	return reachable(ctx, m.gatewayURL)
}

// EncodeMeshFrame renders the compact downlink frame:
//
//	0     u8   frame version
//	1     u8   channel
//	2     u8   priority (0=critical .. 3=low)
//	3     u8   position present flag
//	4-7   i32  latitude * 1e7 (little-endian, zero when absent)
//	8-11  i32  longitude * 1e7
//	12    u8   code length, then code bytes
//	+1    u8   title length, then title bytes (truncated to 64)
func EncodeMeshFrame(inc *incident.Incident, channel byte) []byte {
	code := truncateBytes(inc.Code, meshMaxText)
	title := truncateBytes(inc.Title, meshMaxText)

	frame := make([]byte, 0, 14+len(code)+len(title))
	frame = append(frame, meshFrameVersion, channel, meshPriority(inc.Priority), 0)
	var lat, lon [4]byte
	if inc.HasPosition() {
		frame[3] = 1
		binary.LittleEndian.PutUint32(lat[:], uint32(int32(*inc.Latitude*1e7)))
		binary.LittleEndian.PutUint32(lon[:], uint32(int32(*inc.Longitude*1e7)))
	}
	frame = append(frame, lat[:]...)
	frame = append(frame, lon[:]...)
	frame = append(frame, byte(len(code)))
	frame = append(frame, code...)
	frame = append(frame, byte(len(title)))
	frame = append(frame, title...)
	return frame
}

func meshPriority(p incident.Priority) byte {
	switch p {
	case incident.PriorityCritical:
		return 0
	case incident.PriorityHigh:
		return 1
	case incident.PriorityLow:
		return 3
	}
	return 2
}

func truncateBytes(s string, n int) []byte {
	b := []byte(s)
	if len(b) > n {
		b = b[:n]
	}
	return b
}
