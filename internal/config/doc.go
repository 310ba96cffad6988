// Package config handles loading the bookshare configuration file.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/bookshare/config.toml (default)
//  3. If the config file doesn't exist, fall back to hardcoded defaults
//  4. If the file exists but fields are missing/empty, use defaults
//  5. BOOKSHARE_API_URL, when set, overrides api_url
//
// # Default Values
//
//   - Config file: ~/.config/bookshare/config.toml
//   - API URL: http://localhost:5005
//   - Data directory: ~/.local/share/bookshare
//   - Log file: <data_dir>/bookshare.log
//   - Credential file: <data_dir>/credentials.toml
//   - Request timeout: 5 seconds
//   - Dashboard refresh: 15 seconds
//
// # TOML Format
//
//	api_url = "http://localhost:5005"
//	data_dir = "~/.local/share/bookshare"
//	log_file = "~/.local/share/bookshare/bookshare.log"
//	request_timeout_seconds = 5
//	poll_seconds = 15
//
// Every field is optional. Tilde expansion is performed automatically.
//
// # Error Handling
//
// Load returns errors only for files that exist but cannot be read or
// parsed. A missing file is the normal first-run case.
package config
