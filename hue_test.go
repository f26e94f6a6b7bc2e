package main

import (
	"encoding/json"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodePair(t *testing.T, body string) []pairResponse {
	t.Helper()
	var result []pairResponse
	require.NoError(t, json.Unmarshal([]byte(body), &result))
	return result
}

func TestParsePairResponse(t *testing.T) {
	creds, err := parsePairResponse(decodePair(t, `[{"success":{"username":"abc","clientkey":"0011AA"}}]`))
	require.NoError(t, err)
	assert.Equal(t, BridgeCredentials{Username: "abc", Clientkey: "0011AA"}, creds)
}

func TestParsePairResponse_Errors(t *testing.T) {
	_, err := parsePairResponse(decodePair(t, `[{"error":{"type":101,"description":"link button not pressed"}}]`))
	assert.ErrorIs(t, err, ErrLinkButtonNotPressed)

	_, err = parsePairResponse(decodePair(t, `[{"error":{"type":7,"description":"invalid value"}}]`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLinkButtonNotPressed)
	assert.Contains(t, err.Error(), "invalid value")

	_, err = parsePairResponse(nil)
	assert.Error(t, err)

	_, err = parsePairResponse(decodePair(t, `[{}]`))
	assert.Error(t, err)
}

func TestDecodeEntertainmentAreas(t *testing.T) {
	body := `{"errors":[],"data":[
		{"id":"1a8d99cc-967b-44f2-9202-43f976c0fa6b","metadata":{"name":"TV"},"status":"inactive",
		 "channels":[{"channel_id":0},{"channel_id":1},{"channel_id":2}],
		 "light_services":[{"rid":"a"},{"rid":"b"}]},
		{"id":"3c3b1a7e-5d5e-4f0e-8e61-4a7a1bf5c5d1","metadata":{"name":"Desk"},"status":"active",
		 "channels":[],"light_services":[]}
	]}`

	areas, err := decodeEntertainmentAreas(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, areas, 2)

	assert.Equal(t, EntertainmentArea{
		ID:         "1a8d99cc-967b-44f2-9202-43f976c0fa6b",
		Name:       "TV",
		Status:     "inactive",
		ChannelIDs: []uint8{0, 1, 2},
		Lights:     2,
	}, areas[0])
	assert.Equal(t, "TV (3 channels, 2 lights)", areas[0].String())
	assert.Equal(t, "active", areas[1].Status)
	assert.Empty(t, areas[1].ChannelIDs)
}

func TestDecodeEntertainmentAreas_Malformed(t *testing.T) {
	_, err := decodeEntertainmentAreas(strings.NewReader(`{"data":`))
	assert.Error(t, err)
}

func TestHueOptions_Validate(t *testing.T) {
	valid := HueOptions{
		Enabled:  true,
		BridgeID: "ecb5fafffe123456",
		BridgeIP: "192.168.1.20",
		AreaID:   "1a8d99cc-967b-44f2-9202-43f976c0fa6b",
	}
	require.NoError(t, valid.Validate())
	assert.NoError(t, HueOptions{}.Validate(), "disabled mirror needs no settings")

	tests := []struct {
		name   string
		modify func(*HueOptions)
	}{
		{"no bridge id", func(o *HueOptions) { o.BridgeID = "" }},
		{"bad ip", func(o *HueOptions) { o.BridgeIP = "hue.local" }},
		{"bad area id", func(o *HueOptions) { o.AreaID = "living-room" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := valid
			tt.modify(&opts)
			assert.Error(t, opts.Validate())
		})
	}
}

func TestBridgeURL(t *testing.T) {
	assert.Equal(t, "https://192.168.1.20/api", bridgeURL(net.ParseIP("192.168.1.20"), "/api"))
	assert.Equal(t, "https://[fe80::1]/api", bridgeURL(net.ParseIP("fe80::1"), "/api"))
}
