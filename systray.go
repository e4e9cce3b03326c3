package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"fyne.io/systray"

	"github.com/nedpals/davi-tagauth/buildinfo"
	"github.com/nedpals/davi-tagauth/station"
	"github.com/nedpals/davi-tagauth/tagauth"
)

// getLocalIPs returns a list of local IP addresses (excluding loopback)
func getLocalIPs() []string {
	var ips []string
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ips
	}

	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok && !ipNet.IP.IsLoopback() {
			if ipNet.IP.To4() != nil {
				ips = append(ips, ipNet.IP.String())
			}
		}
	}
	return ips
}

// panelText is what the info items of the panel show for one snapshot.
type panelText struct {
	Status  string
	UID     string
	Counter string
	MAC     string
	Outcome string
}

func panelLabels(snap station.Snapshot) panelText {
	text := panelText{
		Status:  "Status: " + snap.Message,
		UID:     "UID: -",
		Counter: "Counter: -",
		MAC:     "MAC: -",
		Outcome: "Outcome: -",
	}
	if snap.Message == "" {
		text.Status = "Status: " + snap.State.String()
	}
	if snap.Error != "" && snap.State == tagauth.StateFailed {
		text.Status += " (" + snap.Error + ")"
	}
	if snap.UID != "" {
		text.UID = "UID: " + snap.UID
	}
	if snap.MAC != "" {
		text.Counter = fmt.Sprintf("Counter: %d", snap.Counter)
		text.MAC = "MAC: " + snap.MAC
	}
	if snap.Outcome != "" {
		text.Outcome = "Outcome: " + strings.ToUpper(snap.Outcome)
	}
	return text
}

// SystrayApp is the debug panel of the tag authenticator.
type SystrayApp struct {
	agent         *Agent
	currentDevice string

	// Info items
	mStatus  *systray.MenuItem
	mUID     *systray.MenuItem
	mCounter *systray.MenuItem
	mMAC     *systray.MenuItem
	mOutcome *systray.MenuItem

	// Actions
	mRead      *systray.MenuItem
	mWriteNext *systray.MenuItem
	mProvision *systray.MenuItem
	mReset     *systray.MenuItem

	// Server items
	mURL     *systray.MenuItem
	mCopyURL *systray.MenuItem

	mDeviceMenu     *systray.MenuItem
	mRefresh        *systray.MenuItem
	mStart          *systray.MenuItem
	mStop           *systray.MenuItem
	mQuit           *systray.MenuItem
	deviceMenuItems map[string]*systray.MenuItem

	// Device items forward clicks here so every menu action runs on the
	// event loop.
	deviceClicks chan string

	mu          sync.Mutex
	unsubscribe func()
}

func NewSystrayApp(agent *Agent, initialDevice string) *SystrayApp {
	return &SystrayApp{
		agent:           agent,
		currentDevice:   initialDevice,
		deviceMenuItems: make(map[string]*systray.MenuItem),
		deviceClicks:    make(chan string),
	}
}

func (s *SystrayApp) Run() {
	systray.Run(s.onReady, s.onExit)
}

func (s *SystrayApp) onReady() {
	s.setupUI()
	s.updateDeviceList()
	s.startAgent()
	go s.handleMenuEvents()
}

func (s *SystrayApp) onExit() {
	s.detach()
	s.agent.Stop()
}

func (s *SystrayApp) setupUI() {
	systray.SetIcon(iconDataStopped)
	systray.SetTooltip(buildinfo.DisplayName)

	s.mStatus = systray.AddMenuItem("Status: Starting...", "Station status")
	s.mStatus.Disable()
	s.mUID = systray.AddMenuItem("UID: -", "UID of the last tag")
	s.mUID.Disable()
	s.mCounter = systray.AddMenuItem("Counter: -", "Counter of the last record")
	s.mCounter.Disable()
	s.mMAC = systray.AddMenuItem("MAC: -", "MAC of the last record")
	s.mMAC.Disable()
	s.mOutcome = systray.AddMenuItem("Outcome: -", "Verification outcome")
	s.mOutcome.Disable()

	systray.AddSeparator()

	s.mRead = systray.AddMenuItem("Read from NFC Card", "Read and verify the tag on the reader")
	s.mWriteNext = systray.AddMenuItem("Write to NFC Card (Increment Counter)", "Write the next record to the last tag read")
	s.mProvision = systray.AddMenuItem("Provision NFC Card", "Write the first record to a blank tag")
	s.mReset = systray.AddMenuItem("Clear Status", "Return the panel to idle")

	systray.AddSeparator()

	s.mURL = systray.AddMenuItem("Server: Not running", "WebSocket URL")
	s.mURL.Disable()
	s.mCopyURL = systray.AddMenuItem("Copy Server URL", "Copy the WebSocket URL to clipboard")

	s.mDeviceMenu = systray.AddMenuItem("Device", "Select NFC Device")
	s.mRefresh = s.mDeviceMenu.AddSubMenuItem("Refresh Devices", "Refresh device list")

	s.mStart = systray.AddMenuItem("Start Station", "Start the reader and server")
	s.mStop = systray.AddMenuItem("Stop Station", "Stop the reader and server")
	s.mStart.Disable()
	s.mStop.Disable()

	systray.AddSeparator()
	s.mQuit = systray.AddMenuItem("Quit", "Quit the application")

	s.setActionsEnabled(false)
}

func (s *SystrayApp) handleMenuEvents() {
	for {
		select {
		case <-s.mRead.ClickedCh:
			s.runAction("read", func(st *station.Station) error {
				_, err := st.Read(context.Background())
				return err
			})
		case <-s.mWriteNext.ClickedCh:
			s.runAction("write", func(st *station.Station) error {
				_, err := st.WriteNext(context.Background())
				return err
			})
		case <-s.mProvision.ClickedCh:
			s.runAction("provision", func(st *station.Station) error {
				_, err := st.Provision(context.Background())
				return err
			})
		case <-s.mReset.ClickedCh:
			if st := s.agent.Station(); st != nil {
				st.Reset()
			}
		case <-s.mCopyURL.ClickedCh:
			if url := s.serverURL(); url != "" {
				if err := copyToClipboard(url); err != nil {
					log.Printf("[systray] Failed to copy to clipboard: %v", err)
				} else {
					log.Printf("[systray] Copied server URL to clipboard")
				}
			}
		case <-s.mRefresh.ClickedCh:
			s.updateDeviceList()
		case device := <-s.deviceClicks:
			s.switchDevice(device)
		case <-s.mStart.ClickedCh:
			s.startAgent()
		case <-s.mStop.ClickedCh:
			s.stopAgent()
		case <-s.mQuit.ClickedCh:
			systray.Quit()
			return
		}
	}
}

// runAction runs a station operation off the event loop. The panel is
// updated from the snapshot subscription, so only failures are logged here.
func (s *SystrayApp) runAction(name string, action func(*station.Station) error) {
	st := s.agent.Station()
	if st == nil {
		return
	}
	go func() {
		if err := action(st); err != nil {
			log.Printf("[systray] %s: %v", name, err)
		}
	}()
}

func (s *SystrayApp) startAgent() {
	if err := s.agent.Start(s.currentDevice); err != nil {
		log.Printf("[systray] Failed to start station: %v", err)
		s.mStatus.SetTitle("Status: Failed to start")
		systray.SetIcon(iconDataError)
		s.mStart.Enable()
		return
	}
	s.attach(s.agent.Station())
	s.updateURL()
	s.mStart.Disable()
	s.mStop.Enable()
	s.setActionsEnabled(true)
}

func (s *SystrayApp) stopAgent() {
	s.detach()
	s.agent.Stop()
	s.mStatus.SetTitle("Status: Stopped")
	s.mURL.SetTitle("Server: Not running")
	systray.SetIcon(iconDataStopped)
	s.setActionsEnabled(false)
	s.mStop.Disable()
	s.mStart.Enable()
}

// attach follows the snapshots of st until detach is called.
func (s *SystrayApp) attach(st *station.Station) {
	snapshots, cancel := st.Subscribe()

	s.mu.Lock()
	s.unsubscribe = cancel
	s.mu.Unlock()

	s.render(st.Snapshot())
	go func() {
		for snap := range snapshots {
			s.render(snap)
		}
	}()
}

func (s *SystrayApp) detach() {
	s.mu.Lock()
	cancel := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (s *SystrayApp) render(snap station.Snapshot) {
	text := panelLabels(snap)
	s.mStatus.SetTitle(text.Status)
	s.mUID.SetTitle(text.UID)
	s.mCounter.SetTitle(text.Counter)
	s.mMAC.SetTitle(text.MAC)
	s.mOutcome.SetTitle(text.Outcome)
	systray.SetIcon(iconForState(snap.State))
}

func (s *SystrayApp) setActionsEnabled(enabled bool) {
	for _, item := range []*systray.MenuItem{s.mRead, s.mWriteNext, s.mProvision, s.mReset} {
		if enabled {
			item.Enable()
		} else {
			item.Disable()
		}
	}
}

func (s *SystrayApp) switchDevice(deviceName string) {
	if s.currentDevice == deviceName {
		return
	}
	for name, item := range s.deviceMenuItems {
		if name == deviceName {
			item.Check()
		} else {
			item.Uncheck()
		}
	}
	s.currentDevice = deviceName

	if s.agent.Running() {
		s.stopAgent()
		s.startAgent()
	}
}

// updateDeviceList refreshes the list of available devices
func (s *SystrayApp) updateDeviceList() {
	for _, item := range s.deviceMenuItems {
		item.Hide()
	}
	s.deviceMenuItems = make(map[string]*systray.MenuItem)

	devices, err := s.agent.Manager.ListDevices()
	if err != nil {
		log.Printf("[systray] Error listing devices: %v", err)
		return
	}

	for _, device := range devices {
		deviceName := device
		isChecked := s.currentDevice == deviceName || (s.currentDevice == "" && len(s.deviceMenuItems) == 0)
		item := s.mDeviceMenu.AddSubMenuItemCheckbox(deviceName, "Select this device", isChecked)
		s.deviceMenuItems[deviceName] = item

		go func() {
			for range item.ClickedCh {
				s.deviceClicks <- deviceName
			}
		}()
	}
}

func (s *SystrayApp) updateURL() {
	if url := s.serverURL(); url != "" {
		s.mURL.SetTitle("Server: " + url)
	}
}

func (s *SystrayApp) serverURL() string {
	if !s.agent.Running() {
		return ""
	}
	host := "localhost"
	if ips := getLocalIPs(); len(ips) > 0 {
		host = ips[0]
	}
	return fmt.Sprintf("ws://%s:%d/ws", host, s.agent.Config.Server.Port)
}

func copyToClipboard(text string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("pbcopy")
	case "linux":
		cmd = exec.Command("xclip", "-selection", "clipboard")
	case "windows":
		cmd = exec.Command("clip")
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	_, err = stdin.Write([]byte(text))
	if err != nil {
		return err
	}

	stdin.Close()
	return cmd.Wait()
}
