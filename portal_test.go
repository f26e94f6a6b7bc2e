package main

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSenderToToken(t *testing.T) {
	assert.Equal(t, "1_42", senderToToken(":1.42"))
	assert.Equal(t, "1_2_3", senderToToken("1.2.3"))
}

func TestExtractNodeID(t *testing.T) {
	props := map[string]dbus.Variant{"size": dbus.MakeVariant([]int32{1920, 1080})}

	tests := []struct {
		name    string
		streams interface{}
	}{
		{"nested slices", [][]interface{}{{uint32(57), props}}},
		{"flat slice", []interface{}{[]interface{}{uint32(57), props}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := extractNodeID(map[string]dbus.Variant{"streams": dbus.MakeVariant(tt.streams)})
			require.NoError(t, err)
			assert.Equal(t, uint32(57), id)
		})
	}
}

func TestExtractNodeID_Errors(t *testing.T) {
	tests := []struct {
		name string
		resp map[string]dbus.Variant
	}{
		{"no streams key", map[string]dbus.Variant{}},
		{"empty streams", map[string]dbus.Variant{"streams": dbus.MakeVariant([][]interface{}{})}},
		{"wrong type", map[string]dbus.Variant{"streams": dbus.MakeVariant("pipewire")}},
		{"bad node id", map[string]dbus.Variant{"streams": dbus.MakeVariant([][]interface{}{{"57"}})}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extractNodeID(tt.resp)
			assert.Error(t, err)
		})
	}
}
