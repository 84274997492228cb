package services

import (
	"bytes"
	"errors"
	"log"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// minStepDelay is the minimum pause between clipboard write, paste keystroke
// and Enter. The focused application needs this long to register the previous
// step; shortening it breaks the paste-then-submit sequence.
const minStepDelay = 300 * time.Millisecond

var errUnsupportedPlatform = errors.New("unsupported platform: " + runtime.GOOS)

// ClipboardService shells out to the platform clipboard and keystroke tools.
// Every call is best-effort: failures are logged and reported to the caller,
// which still acknowledges the requesting message.
type ClipboardService struct {
	stepDelay time.Duration
}

// NewClipboardService returns a service with the default inter-step delay.
func NewClipboardService() *ClipboardService {
	return &ClipboardService{stepDelay: minStepDelay}
}

// WriteClipboard replaces the desktop clipboard contents.
func (s *ClipboardService) WriteClipboard(text string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("pbcopy")
	case "linux":
		cmd = exec.Command("xclip", "-selection", "clipboard")
	case "windows":
		cmd = exec.Command("powershell", "-NoProfile", "-Command", "Set-Clipboard -Value ([Console]::In.ReadToEnd())")
	default:
		return errUnsupportedPlatform
	}
	cmd.Stdin = strings.NewReader(text)
	return cmd.Run()
}

// ReadClipboard returns the desktop clipboard contents.
func (s *ClipboardService) ReadClipboard() (string, error) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("pbpaste")
	case "linux":
		cmd = exec.Command("xclip", "-selection", "clipboard", "-o")
	case "windows":
		cmd = exec.Command("powershell", "-NoProfile", "-Command", "Get-Clipboard")
	default:
		return "", errUnsupportedPlatform
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return strings.TrimRight(out.String(), "\r\n"), nil
}

// PasteOnly writes text to the clipboard and simulates a paste keystroke in
// the focused application.
func (s *ClipboardService) PasteOnly(text string) error {
	if err := s.WriteClipboard(text); err != nil {
		return err
	}
	time.Sleep(s.stepDelay)
	return s.sendPaste()
}

// PasteAndSubmit pastes text and then presses Enter. The ordering and delays
// are load-bearing: clipboard write, settle, paste, settle, Enter.
func (s *ClipboardService) PasteAndSubmit(text string) error {
	if err := s.PasteOnly(text); err != nil {
		return err
	}
	time.Sleep(s.stepDelay)
	return s.sendEnter()
}

// ReplaceLine selects the current line in the focused application and pastes
// text over it.
func (s *ClipboardService) ReplaceLine(text string) error {
	if err := s.WriteClipboard(text); err != nil {
		return err
	}
	time.Sleep(s.stepDelay)
	if err := s.selectLine(); err != nil {
		return err
	}
	time.Sleep(s.stepDelay)
	return s.sendPaste()
}

// CurrentLine selects the current line, copies it, and returns the clipboard
// contents. The previous clipboard contents are not restored.
func (s *ClipboardService) CurrentLine() (string, error) {
	if err := s.selectLine(); err != nil {
		return "", err
	}
	time.Sleep(s.stepDelay)
	if err := s.sendCopy(); err != nil {
		return "", err
	}
	time.Sleep(s.stepDelay)
	return s.ReadClipboard()
}

func (s *ClipboardService) sendPaste() error {
	switch runtime.GOOS {
	case "darwin":
		return runKeystroke(`tell application "System Events" to keystroke "v" using command down`)
	case "linux":
		return exec.Command("xdotool", "key", "ctrl+v").Run()
	case "windows":
		return sendKeysWindows("^v")
	default:
		return errUnsupportedPlatform
	}
}

func (s *ClipboardService) sendCopy() error {
	switch runtime.GOOS {
	case "darwin":
		return runKeystroke(`tell application "System Events" to keystroke "c" using command down`)
	case "linux":
		return exec.Command("xdotool", "key", "ctrl+c").Run()
	case "windows":
		return sendKeysWindows("^c")
	default:
		return errUnsupportedPlatform
	}
}

func (s *ClipboardService) sendEnter() error {
	switch runtime.GOOS {
	case "darwin":
		return runKeystroke(`tell application "System Events" to key code 36`)
	case "linux":
		return exec.Command("xdotool", "key", "Return").Run()
	case "windows":
		return sendKeysWindows("{ENTER}")
	default:
		return errUnsupportedPlatform
	}
}

func (s *ClipboardService) selectLine() error {
	switch runtime.GOOS {
	case "darwin":
		// Cursor to line start, then select to line end.
		if err := runKeystroke(`tell application "System Events" to key code 123 using command down`); err != nil {
			return err
		}
		return runKeystroke(`tell application "System Events" to key code 124 using {command down, shift down}`)
	case "linux":
		if err := exec.Command("xdotool", "key", "Home").Run(); err != nil {
			return err
		}
		return exec.Command("xdotool", "key", "shift+End").Run()
	case "windows":
		if err := sendKeysWindows("{HOME}"); err != nil {
			return err
		}
		return sendKeysWindows("+{END}")
	default:
		return errUnsupportedPlatform
	}
}

func runKeystroke(script string) error {
	if err := exec.Command("osascript", "-e", script).Run(); err != nil {
		log.Printf("clipboard: osascript failed: %v", err)
		return err
	}
	return nil
}

func sendKeysWindows(keys string) error {
	script := `$wshell = New-Object -ComObject wscript.shell; $wshell.SendKeys('` + keys + `')`
	return exec.Command("powershell", "-NoProfile", "-Command", script).Run()
}
