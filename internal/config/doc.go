// Package config manages the player-cli configuration file.
//
// The file is YAML and holds named server profiles plus protocol defaults
// shared by every profile. It follows OS-specific conventions for its
// location, which PLAYERCLIENT_CONFIG overrides:
//   - Linux: $XDG_CONFIG_HOME/playerclient/config.yaml or $HOME/.config/playerclient/config.yaml
//   - macOS: $HOME/.config/playerclient/config.yaml
//   - Windows: %LOCALAPPDATA%\playerclient\config.yaml
//
// # Example
//
//	version: 1
//	servers:
//	  lab:
//	    host: 10.0.0.12
//	    port: 6665
//	    data_mode: push_new
//	    devices: [laser:0, position2d:0]
//	client:
//	  resync_limit: 4096
//	  read_timeout: 5s
//	  log_level: info
//
// # Usage Example
//
//	f, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	p, err := f.Profile("lab")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	host, port := p.Addr()
//	c, err := player.Dial(ctx, host, port, p.ClientConfig())
//
// Save writes atomically through a temporary file; writes from one process
// are serialized by a mutex.
package config
