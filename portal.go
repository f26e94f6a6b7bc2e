package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	portalDest      = "org.freedesktop.portal.Desktop"
	portalPath      = "/org/freedesktop/portal/desktop"
	screenCastIface = "org.freedesktop.portal.ScreenCast"
	requestIface    = "org.freedesktop.portal.Request"

	portalTimeout = 120 * time.Second // user may need time to pick a screen

	sourceTypeMonitor = uint32(1)
)

// screenCast is a running ScreenCast portal session. conn must stay open
// for as long as the stream is read.
type screenCast struct {
	conn   *dbus.Conn
	nodeID uint32
	remote *os.File
}

// portalClient issues ScreenCast requests and waits for their Response
// signals.
type portalClient struct {
	conn   *dbus.Conn
	portal dbus.BusObject
	sender string
}

// openScreenCast negotiates a monitor ScreenCast session through the XDG
// desktop portal and returns the PipeWire node and remote fd for it.
func openScreenCast() (*screenCast, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connecting to session bus: %w", err)
	}
	if !conn.SupportsUnixFDs() {
		conn.Close()
		return nil, fmt.Errorf("D-Bus connection does not support Unix FD passing")
	}

	pc := &portalClient{
		conn:   conn,
		portal: conn.Object(portalDest, dbus.ObjectPath(portalPath)),
		sender: senderToToken(conn.Names()[0]),
	}
	sc, err := pc.negotiate()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return sc, nil
}

func (pc *portalClient) negotiate() (*screenCast, error) {
	resp, err := pc.request("CreateSession", "create", map[string]dbus.Variant{
		"session_handle_token": dbus.MakeVariant("ambisync_session"),
	})
	if err != nil {
		return nil, err
	}
	handle, ok := resp["session_handle"]
	if !ok {
		return nil, fmt.Errorf("CreateSession: no session_handle in response")
	}
	hs, ok := handle.Value().(string)
	if !ok {
		return nil, fmt.Errorf("CreateSession: unexpected session_handle type %T", handle.Value())
	}
	session := dbus.ObjectPath(hs)

	_, err = pc.request("SelectSources", "select", map[string]dbus.Variant{
		"types":    dbus.MakeVariant(sourceTypeMonitor),
		"multiple": dbus.MakeVariant(false),
	}, session)
	if err != nil {
		return nil, err
	}

	resp, err = pc.request("Start", "start", map[string]dbus.Variant{}, session, "")
	if err != nil {
		return nil, err
	}
	nodeID, err := extractNodeID(resp)
	if err != nil {
		return nil, err
	}

	var fd dbus.UnixFD
	err = pc.portal.Call(screenCastIface+".OpenPipeWireRemote", 0, session, map[string]dbus.Variant{}).Store(&fd)
	if err != nil {
		return nil, fmt.Errorf("OpenPipeWireRemote: %w", err)
	}
	remote := os.NewFile(uintptr(fd), "pipewire-remote")
	if remote == nil {
		return nil, fmt.Errorf("invalid PipeWire fd")
	}

	return &screenCast{conn: pc.conn, nodeID: nodeID, remote: remote}, nil
}

// request calls a ScreenCast method whose reply arrives as a Response
// signal on a request object. args precede the options map.
func (pc *portalClient) request(method, token string, options map[string]dbus.Variant, args ...interface{}) (map[string]dbus.Variant, error) {
	handleToken := "ambisync_req_" + token
	path := dbus.ObjectPath(fmt.Sprintf("%s/request/%s/%s", portalPath, pc.sender, handleToken))

	ch := subscribeSignal(pc.conn, path)
	defer pc.conn.RemoveSignal(ch)

	options["handle_token"] = dbus.MakeVariant(handleToken)
	call := pc.portal.Call(screenCastIface+"."+method, 0, append(args, options)...)
	if call.Err != nil {
		return nil, fmt.Errorf("%s: %w", method, call.Err)
	}

	resp, err := waitForResponse(ch, portalTimeout)
	if err != nil {
		return nil, fmt.Errorf("%s response: %w", method, err)
	}
	return resp, nil
}

// subscribeSignal registers a D-Bus signal match for the portal Response signal
// at the given path and returns a channel that receives matching signals.
func subscribeSignal(conn *dbus.Conn, path dbus.ObjectPath) chan *dbus.Signal {
	ch := make(chan *dbus.Signal, 1)
	conn.Signal(ch)
	conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0,
		fmt.Sprintf("type='signal',interface='%s',member='Response',path='%s'", requestIface, path))
	return ch
}

// waitForResponse waits for a portal Response signal and returns the results map.
// A non-zero response code indicates the user denied or the request failed.
func waitForResponse(ch chan *dbus.Signal, timeout time.Duration) (map[string]dbus.Variant, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for {
		select {
		case sig := <-ch:
			if sig == nil {
				return nil, fmt.Errorf("signal channel closed")
			}
			if len(sig.Body) < 2 {
				continue
			}
			code, ok := sig.Body[0].(uint32)
			if !ok {
				continue
			}
			if code != 0 {
				return nil, fmt.Errorf("portal request denied (code %d)", code)
			}
			results, ok := sig.Body[1].(map[string]dbus.Variant)
			if !ok {
				return nil, fmt.Errorf("unexpected response type")
			}
			return results, nil
		case <-ctx.Done():
			return nil, fmt.Errorf("timed out waiting for portal response")
		}
	}
}

// senderToToken converts a D-Bus sender name like ":1.42" to "1_42" for use
// in request object paths.
func senderToToken(sender string) string {
	s := strings.TrimPrefix(sender, ":")
	return strings.ReplaceAll(s, ".", "_")
}

// extractNodeID pulls the PipeWire node ID of the first stream out of a
// Start response. streams is typed a(ua{sv}); depending on how godbus
// decodes it the entries arrive as [][]interface{} or []interface{}.
func extractNodeID(resp map[string]dbus.Variant) (uint32, error) {
	v, ok := resp["streams"]
	if !ok {
		return 0, fmt.Errorf("no streams in Start response")
	}

	var first interface{}
	switch streams := v.Value().(type) {
	case [][]interface{}:
		if len(streams) == 0 {
			return 0, fmt.Errorf("no streams returned")
		}
		first = streams[0]
	case []interface{}:
		if len(streams) == 0 {
			return 0, fmt.Errorf("no streams returned")
		}
		first = streams[0]
	default:
		return 0, fmt.Errorf("unexpected streams type: %T", v.Value())
	}

	entry, ok := first.([]interface{})
	if !ok || len(entry) == 0 {
		return 0, fmt.Errorf("unexpected stream entry: %T", first)
	}
	nodeID, ok := entry[0].(uint32)
	if !ok {
		return 0, fmt.Errorf("unexpected node ID type: %T", entry[0])
	}
	return nodeID, nil
}
