// Package config loads typed configuration structs from environment
// variables, reading a .env file first when one exists. Load caches by struct
// type, so repeated loads of the same config are free and consistent.
package config
