// Package config loads discuss configuration.
//
// Values are layered, later sources overriding earlier ones:
//
//  1. built-in defaults
//  2. discuss.toml (an explicit path, or the first of ./discuss.toml and
//     $HOME/.discuss.toml)
//  3. DISCUSS_<SECTION>_<FIELD> environment variables
//
// # Configuration File Structure
//
//	[api]
//	base_url = "http://localhost:7070"
//	timeout = "10s"
//
//	[query]
//	stale_time = "0s"
//
//	[mutations]
//	serialize = false
//
//	[server]
//	host = "localhost"
//	port = 7070
//	fail_deletes = false
//
//	[metrics]
//	enabled = true
//	namespace = "discuss"
//
//	[log]
//	level = "info"
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("API:", cfg.API.BaseURL)
package config
