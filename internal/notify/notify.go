package notify

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Notifier sends system notifications.
type Notifier struct {
	Enabled bool
}

// Send sends a system notification.
// On macOS, uses osascript to display notifications.
// On other platforms, this is a no-op.
func (n *Notifier) Send(title, message string) error {
	if !n.Enabled {
		return nil
	}

	if runtime.GOOS != "darwin" {
		// Only macOS supported for now
		return nil
	}

	return sendMacOSNotification(title, message)
}

// sendMacOSNotification uses osascript to display a notification.
func sendMacOSNotification(title, message string) error {
	// Escape quotes in title and message
	title = strings.ReplaceAll(title, `"`, `\"`)
	message = strings.ReplaceAll(message, `"`, `\"`)

	script := fmt.Sprintf(`display notification "%s" with title "%s"`, message, title)
	cmd := exec.Command("osascript", "-e", script)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}

	return nil
}

// FormatPlanReady formats the notification for a freshly generated plan.
func FormatPlanReady(date string, timeBlocks, warnings int) (title, message string) {
	title = "✅ Metaplan Ready"
	message = fmt.Sprintf("Plan for %s: %d time blocks", date, timeBlocks)
	if warnings > 0 {
		title = "⚠️ Metaplan Ready (with warnings)"
		message = fmt.Sprintf("Plan for %s: %d time blocks, %d warnings", date, timeBlocks, warnings)
	}
	return title, message
}

// FormatPlanFailed formats the notification for a generation that gave up.
func FormatPlanFailed(date, reason string) (title, message string) {
	title = "❌ Metaplan Failed"
	message = fmt.Sprintf("No plan for %s: %s", date, reason)
	return title, message
}
