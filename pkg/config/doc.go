// Package config loads agent configuration from YAML.
//
// A minimal file:
//
//	server:
//	  discovery: environment
//	  port: 8081
//	reconnect:
//	  max_attempts: -1
//	logging:
//	  level: debug
//	  protocol_log: ${HOME}/agent.ulog
//
// ${VAR} references are expanded from the environment before parsing.
// Unset fields take the Default* values.
package config
