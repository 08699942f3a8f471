// Package config provides user configuration for the cyberq tools.
//
// Two independent sources live here:
//
// The device registry is a YAML file remembering controllers by serial
// number (nickname, last host and port, model, cloud flag) together with CLI
// preferences. It follows OS conventions for its location:
//   - Linux: $XDG_CONFIG_HOME/cyberq/config.yaml or $HOME/.config/cyberq/config.yaml
//   - macOS: $HOME/.config/cyberq/config.yaml
//   - Windows: %LOCALAPPDATA%\cyberq\config.yaml
//
// Service settings for `cyberq serve` are loaded with viper from defaults, an
// optional YAML file, and CYBERQ_* environment variables:
//
//	s, err := config.LoadSettings("/etc/cyberq.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(s.Redacted())
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File operations are protected by a mutex to ensure atomic writes.
package config
