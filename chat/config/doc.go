// Package config loads the chat server configuration.
//
// Sources, lowest precedence first:
//  1. Built-in defaults (Default)
//  2. An optional ini file (Load)
//  3. Environment variables and command-line flags, applied by the caller
//
// Ini layout:
//
//	[server]
//	host = 0.0.0.0
//	port = 8080
//	allowed_origins = https://chat.example.com,https://admin.example.com
//
//	[auth]
//	jwt_secret = change-me
//
//	[session]
//	heartbeat_interval = 5s
//	client_timeout = 10s
//	write_wait = 10s
//	max_message_size = 65536
//	max_content_length = 4096
//	send_buffer = 256
//
//	[hub]
//	queue_size = 1024
//	prune_empty_rooms = true
//
//	[log]
//	level = debug
//	pretty = true
//
//	[ngrok]
//	enabled = false
//	auth_token =
//	domain =
//
// Validate checks cross-field constraints; most importantly the client
// timeout must be at least twice the heartbeat interval so one lost probe
// never disconnects a healthy client.
package config
