package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

const (
	scanTimeout    = 5 * time.Second
	requestTimeout = 10 * time.Second
)

type pairState int

const (
	stateScanning pairState = iota
	stateSelectingBridge
	statePairing
	statePairingWait
	stateFetchingAreas
	stateSelectingArea
	stateDone
)

type scanDoneMsg struct {
	bridges []Bridge
	err     error
}

type pairResultMsg struct {
	creds BridgeCredentials
	err   error
}

type areasFetchedMsg struct {
	areas []EntertainmentArea
	err   error
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	itemStyle     = lipgloss.NewStyle().PaddingLeft(2)
	selectedStyle = lipgloss.NewStyle().PaddingLeft(0).Foreground(lipgloss.Color("170"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// picker is a cursor over a list of labels.
type picker struct {
	title  string
	labels []string
	cursor int
}

// update moves the cursor and reports whether enter was pressed.
func (p *picker) update(key string) bool {
	switch key {
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j":
		if p.cursor < len(p.labels)-1 {
			p.cursor++
		}
	case "enter":
		return true
	}
	return false
}

func (p picker) view() string {
	var b strings.Builder
	b.WriteString("\n" + titleStyle.Render("  "+p.title) + "\n\n")
	for i, l := range p.labels {
		if i == p.cursor {
			b.WriteString(selectedStyle.Render("▸ "+l) + "\n")
		} else {
			b.WriteString(itemStyle.Render(l) + "\n")
		}
	}
	b.WriteString("\n" + helpStyle.Render("  ↑/k up · ↓/j down · enter select · q quit") + "\n")
	return b.String()
}

// pairModel walks through bridge discovery, pairing and area selection
// and ends with the hue block for the config file.
type pairModel struct {
	state   pairState
	spinner spinner.Model
	err     error
	pairErr string

	bridges []Bridge
	bridge  *Bridge
	creds   BridgeCredentials
	areas   []EntertainmentArea
	area    *EntertainmentArea
	list    picker
}

func newPairModel() pairModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	return pairModel{state: stateScanning, spinner: s}
}

func (m pairModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, scanCmd())
}

func scanCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
		defer cancel()
		bridges, err := DiscoverBridges(ctx)
		return scanDoneMsg{bridges: bridges, err: err}
	}
}

func pairCmd(ip net.IP) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		creds, err := PairBridge(ctx, ip)
		return pairResultMsg{creds: creds, err: err}
	}
}

func fetchAreasCmd(ip net.IP, username string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		areas, err := FetchEntertainmentAreas(ctx, ip, username)
		return areasFetchedMsg{areas: areas, err: err}
	}
}

func (m pairModel) fail(err error) (tea.Model, tea.Cmd) {
	m.err = err
	m.state = stateDone
	return m, tea.Quit
}

// useBridge continues with stored credentials when there are any.
func (m pairModel) useBridge(b *Bridge) (tea.Model, tea.Cmd) {
	m.bridge = b
	creds, found, err := LoadCredentials(b.ID)
	if err != nil {
		return m.fail(fmt.Errorf("loading credentials: %w", err))
	}
	if !found {
		m.state = statePairing
		return m, nil
	}
	m.creds = creds
	m.state = stateFetchingAreas
	return m, fetchAreasCmd(b.IP, creds.Username)
}

func (m pairModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}
		return m.handleKey(msg.String())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case scanDoneMsg:
		if msg.err != nil {
			return m.fail(msg.err)
		}
		switch len(msg.bridges) {
		case 0:
			return m.fail(fmt.Errorf("no Hue bridges found on the network"))
		case 1:
			return m.useBridge(&msg.bridges[0])
		}
		m.bridges = msg.bridges
		m.list = picker{title: "Select a Hue Bridge:"}
		for _, b := range msg.bridges {
			m.list.labels = append(m.list.labels, fmt.Sprintf("%s (%s) at %s", b.Name, b.ID, b.IP))
		}
		m.state = stateSelectingBridge
		return m, nil

	case pairResultMsg:
		if errors.Is(msg.err, ErrLinkButtonNotPressed) {
			m.pairErr = "Link button not pressed."
			m.state = statePairing
			return m, nil
		}
		if msg.err != nil {
			return m.fail(fmt.Errorf("pairing failed: %w", msg.err))
		}
		m.creds = msg.creds
		m.pairErr = ""
		if err := SaveCredentials(m.bridge.ID, msg.creds); err != nil {
			return m.fail(fmt.Errorf("saving credentials: %w", err))
		}
		m.state = stateFetchingAreas
		return m, fetchAreasCmd(m.bridge.IP, m.creds.Username)

	case areasFetchedMsg:
		if errors.Is(msg.err, ErrUnauthorized) {
			_ = DeleteCredentials(m.bridge.ID)
			m.creds = BridgeCredentials{}
			m.pairErr = "Stored credentials were rejected by the bridge."
			m.state = statePairing
			return m, nil
		}
		if msg.err != nil {
			return m.fail(fmt.Errorf("fetching entertainment areas: %w", msg.err))
		}
		switch len(msg.areas) {
		case 0:
			return m.fail(fmt.Errorf("no entertainment areas configured on this bridge"))
		case 1:
			m.area = &msg.areas[0]
			m.state = stateDone
			return m, tea.Quit
		}
		m.areas = msg.areas
		m.list = picker{title: "Select an Entertainment Area:"}
		for _, a := range msg.areas {
			m.list.labels = append(m.list.labels, a.String())
		}
		m.state = stateSelectingArea
		return m, nil
	}
	return m, nil
}

func (m pairModel) handleKey(key string) (tea.Model, tea.Cmd) {
	switch m.state {
	case stateSelectingBridge:
		if m.list.update(key) {
			return m.useBridge(&m.bridges[m.list.cursor])
		}
	case statePairing:
		if key == "enter" {
			m.state = statePairingWait
			return m, pairCmd(m.bridge.IP)
		}
	case stateSelectingArea:
		if m.list.update(key) {
			m.area = &m.areas[m.list.cursor]
			m.state = stateDone
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m pairModel) View() string {
	busy := func(s string) string {
		return fmt.Sprintf("\n %s %s\n\n", m.spinner.View(), titleStyle.Render(s))
	}

	switch m.state {
	case stateScanning:
		return busy("Scanning for Hue bridges...")
	case statePairingWait:
		return busy("Pairing with bridge...")
	case stateFetchingAreas:
		return busy("Fetching entertainment areas...")
	case stateSelectingBridge, stateSelectingArea:
		return m.list.view()

	case statePairing:
		s := "\n"
		if m.pairErr != "" {
			s += errStyle.Render("  "+m.pairErr) + "\n\n"
		}
		s += titleStyle.Render("  Press the link button on your Hue bridge, then press Enter.") + "\n\n"
		s += helpStyle.Render("  enter pair · q quit") + "\n"
		return s

	case stateDone:
		if m.err != nil {
			return "\n" + errStyle.Render("  Error: "+m.err.Error()) + "\n\n"
		}
		if m.bridge == nil || m.area == nil {
			return ""
		}
		snippet, err := hueSnippet(m.hueOptions())
		if err != nil {
			return "\n" + errStyle.Render("  Error: "+err.Error()) + "\n\n"
		}
		return fmt.Sprintf("\n  Bridge: %s\n  Area:   %s\n\n%s\n%s\n",
			m.bridge, m.area, helpStyle.Render("  Add this to your ambisync.yaml:"), snippet)
	}
	return ""
}

func (m pairModel) hueOptions() HueOptions {
	return HueOptions{
		Enabled:  true,
		BridgeID: m.bridge.ID,
		BridgeIP: m.bridge.IP.String(),
		AreaID:   m.area.ID,
	}
}

// hueSnippet renders opts as the hue section of the config file.
func hueSnippet(opts HueOptions) (string, error) {
	b, err := yaml.Marshal(struct {
		Hue HueOptions `yaml:"hue"`
	}{opts})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// runPairing runs the pairing wizard in the terminal.
func runPairing() error {
	result, err := tea.NewProgram(newPairModel()).Run()
	if err != nil {
		return err
	}
	return result.(pairModel).err
}
