// Package config holds the settings shared by the library and the CLI.
// Values start from DefaultConfig and are overridden by the viper-backed
// config file, then by EASYAUDIOSTREAM_* environment variables. The CLI
// applies its flags last.
package config
