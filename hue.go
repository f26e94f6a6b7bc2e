package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var hueClient = &http.Client{
	Transport: &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	},
}

// ErrLinkButtonNotPressed is returned by PairBridge when the user has not yet
// pressed the link button on the Hue bridge.
var ErrLinkButtonNotPressed = errors.New("link button not pressed")

// ErrUnauthorized is returned when the bridge rejects the API credentials.
var ErrUnauthorized = errors.New("unauthorized")

// PairBridge registers ambisync with the Hue bridge at ip. The link button
// must have been pressed shortly before.
func PairBridge(ctx context.Context, ip net.IP) (BridgeCredentials, error) {
	body := strings.NewReader(`{"devicetype":"ambisync#device","generateclientkey":true}`)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, bridgeURL(ip, "/api"), body)
	if err != nil {
		return BridgeCredentials{}, fmt.Errorf("creating pair request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := hueClient.Do(req)
	if err != nil {
		return BridgeCredentials{}, fmt.Errorf("pairing request: %w", err)
	}
	defer resp.Body.Close()

	var result []pairResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return BridgeCredentials{}, fmt.Errorf("decoding pair response: %w", err)
	}
	return parsePairResponse(result)
}

func parsePairResponse(result []pairResponse) (BridgeCredentials, error) {
	if len(result) == 0 {
		return BridgeCredentials{}, fmt.Errorf("empty pair response")
	}
	r := result[0]
	if r.Error != nil {
		if r.Error.Type == 101 {
			return BridgeCredentials{}, ErrLinkButtonNotPressed
		}
		return BridgeCredentials{}, fmt.Errorf("bridge error %d: %s", r.Error.Type, r.Error.Description)
	}
	if r.Success == nil {
		return BridgeCredentials{}, fmt.Errorf("unexpected pair response: no success or error")
	}
	return BridgeCredentials{Username: r.Success.Username, Clientkey: r.Success.Clientkey}, nil
}

// EntertainmentArea represents a Hue entertainment configuration.
type EntertainmentArea struct {
	ID         string
	Name       string
	Status     string
	ChannelIDs []uint8
	Lights     int
}

func (a EntertainmentArea) String() string {
	return fmt.Sprintf("%s (%d channels, %d lights)", a.Name, len(a.ChannelIDs), a.Lights)
}

// FetchEntertainmentAreas retrieves entertainment configurations from the bridge.
func FetchEntertainmentAreas(ctx context.Context, ip net.IP, username string) ([]EntertainmentArea, error) {
	req, err := newHueRequest(ctx, http.MethodGet, bridgeURL(ip, "/clip/v2/resource/entertainment_configuration"), nil, username)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := hueClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching entertainment areas: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return nil, ErrUnauthorized
	}
	return decodeEntertainmentAreas(resp.Body)
}

func decodeEntertainmentAreas(r io.Reader) ([]EntertainmentArea, error) {
	var result entertainmentResponse
	if err := json.NewDecoder(r).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding entertainment response: %w", err)
	}

	areas := make([]EntertainmentArea, len(result.Data))
	for i, d := range result.Data {
		ids := make([]uint8, len(d.Channels))
		for j, ch := range d.Channels {
			ids[j] = ch.ChannelID
		}
		areas[i] = EntertainmentArea{
			ID:         d.ID,
			Name:       d.Metadata.Name,
			Status:     d.Status,
			ChannelIDs: ids,
			Lights:     len(d.LightServices),
		}
	}
	return areas, nil
}

// setAreaAction starts or stops entertainment streaming for an area.
func setAreaAction(ctx context.Context, ip net.IP, username, areaID, action string) error {
	url := bridgeURL(ip, "/clip/v2/resource/entertainment_configuration/"+areaID)
	body := strings.NewReader(fmt.Sprintf(`{"action":%q}`, action))

	req, err := newHueRequest(ctx, http.MethodPut, url, body, username)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", action, err)
	}

	resp, err := hueClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s area: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s area: HTTP %d", action, resp.StatusCode)
	}
	return nil
}

// HueOptions configures the optional Hue mirror.
type HueOptions struct {
	Enabled  bool   `yaml:"enabled"`
	BridgeID string `yaml:"bridge_id"`
	BridgeIP string `yaml:"bridge_ip"`
	AreaID   string `yaml:"area_id"`
}

// Validate checks the options of an enabled mirror.
func (o HueOptions) Validate() error {
	if !o.Enabled {
		return nil
	}
	if o.BridgeID == "" {
		return fmt.Errorf("hue: bridge_id is required")
	}
	if net.ParseIP(o.BridgeIP) == nil {
		return fmt.Errorf("hue: invalid bridge_ip %q", o.BridgeIP)
	}
	if _, err := uuid.Parse(o.AreaID); err != nil {
		return fmt.Errorf("hue: invalid area_id %q: %w", o.AreaID, err)
	}
	return nil
}

// HueSink mirrors every frame to a Hue entertainment area.
type HueSink struct {
	ip       net.IP
	username string
	areaID   string
	streamer *Streamer
}

// NewHueSink activates the configured area and opens its stream.
func NewHueSink(ctx context.Context, opts HueOptions) (*HueSink, error) {
	creds, found, err := LoadCredentials(opts.BridgeID)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("no credentials for bridge %s, run 'ambisync pair' first", opts.BridgeID)
	}

	ip := net.ParseIP(opts.BridgeIP)
	areas, err := FetchEntertainmentAreas(ctx, ip, creds.Username)
	if err != nil {
		return nil, err
	}
	var area *EntertainmentArea
	for i := range areas {
		if areas[i].ID == opts.AreaID {
			area = &areas[i]
		}
	}
	if area == nil {
		return nil, fmt.Errorf("entertainment area %s not found on bridge", opts.AreaID)
	}

	if err := setAreaAction(ctx, ip, creds.Username, area.ID, "start"); err != nil {
		return nil, err
	}
	streamer, err := NewStreamer(ctx, ip, creds, area.ID, area.ChannelIDs)
	if err != nil {
		_ = setAreaAction(ctx, ip, creds.Username, area.ID, "stop")
		return nil, err
	}

	log.Info().Str("area", area.Name).Int("channels", len(area.ChannelIDs)).Msg("hue mirror streaming")
	return &HueSink{ip: ip, username: creds.Username, areaID: area.ID, streamer: streamer}, nil
}

func (h *HueSink) Send(colors []Color) error {
	return h.streamer.SendColors(colors)
}

// Close stops the stream and takes the area out of entertainment mode.
func (h *HueSink) Close() error {
	err := h.streamer.Close()
	if serr := setAreaAction(context.Background(), h.ip, h.username, h.areaID, "stop"); serr != nil && err == nil {
		err = serr
	}
	return err
}

func bridgeURL(ip net.IP, path string) string {
	host := ip.String()
	if ip.To4() == nil {
		host = "[" + host + "]"
	}
	return "https://" + host + path
}

func newHueRequest(ctx context.Context, method, url string, body io.Reader, username string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("hue-application-key", username)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// JSON mapping structs

type pairResponse struct {
	Success *pairSuccess `json:"success"`
	Error   *pairError   `json:"error"`
}

type pairSuccess struct {
	Username  string `json:"username"`
	Clientkey string `json:"clientkey"`
}

type pairError struct {
	Type        int    `json:"type"`
	Description string `json:"description"`
}

type entertainmentResponse struct {
	Data []entertainmentData `json:"data"`
}

type entertainmentData struct {
	ID            string            `json:"id"`
	Metadata      entertainmentMeta `json:"metadata"`
	Status        string            `json:"status"`
	Channels      []channelData     `json:"channels"`
	LightServices []json.RawMessage `json:"light_services"`
}

type entertainmentMeta struct {
	Name string `json:"name"`
}

type channelData struct {
	ChannelID uint8 `json:"channel_id"`
}
