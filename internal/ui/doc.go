// Package ui renders terminal output for the cyberq CLI.
//
// One-shot commands print a Header, their own output, and a Result box:
// green for success, orange for warnings, red for failures. Failure boxes
// take their troubleshooting tips from the controller error itself.
//
// The watch command runs DashboardModel, a Bubble Tea program fed by poller
// states over a channel:
//
//	states := make(chan poller.State, 1)
//	p.Subscribe(func(s poller.State) { states <- s })
//	tea.NewProgram(ui.NewDashboardModel(addr, states)).Run()
//
// Logging is controlled via CYBERQ_LOG_LEVEL. When unset, zap logging is
// silent so the styled output is not interleaved with log lines.
package ui
